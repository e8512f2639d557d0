package models

import (
	"time"
)

// AddressReview is an untrusted parse waiting for an operator.
type AddressReview struct {
	ID               string         `bson:"_id" json:"id"`
	RawAddress       string         `bson:"raw_address" json:"raw_address"`
	Normalized       string         `bson:"normalized" json:"normalized"`
	AutoParsedResult ParsedAddress  `bson:"auto_parsed_result" json:"auto_parsed_result"`
	Confidence       float64        `bson:"confidence" json:"confidence"`
	Status           string         `bson:"status" json:"status"`
	ManualResult     *ParsedAddress `bson:"manual_result,omitempty" json:"manual_result,omitempty"`
	ReviewerID       *string        `bson:"reviewer_id,omitempty" json:"reviewer_id,omitempty"`
	ReviewedAt       *time.Time     `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`
	CreatedAt        time.Time      `bson:"created_at" json:"created_at"`
}

const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
)

// NewAddressReview queues result for review.
func NewAddressReview(id, rawAddress, normalized string, result ParsedAddress) *AddressReview {
	return &AddressReview{
		ID:               id,
		RawAddress:       rawAddress,
		Normalized:       normalized,
		AutoParsedResult: result,
		Confidence:       result.Confidence,
		Status:           ReviewStatusPending,
		CreatedAt:        time.Now(),
	}
}

func (ar *AddressReview) IsValidStatus() bool {
	switch ar.Status {
	case ReviewStatusPending, ReviewStatusApproved, ReviewStatusRejected:
		return true
	}
	return false
}

// Approve accepts the automatic result.
func (ar *AddressReview) Approve(reviewerID string) {
	ar.finish(ReviewStatusApproved, reviewerID)
}

// Reject marks the address as unparseable.
func (ar *AddressReview) Reject(reviewerID string) {
	ar.finish(ReviewStatusRejected, reviewerID)
}

// SetManualResult replaces the automatic result with an operator's.
func (ar *AddressReview) SetManualResult(result ParsedAddress, reviewerID string) {
	ar.ManualResult = &result
	ar.finish(ReviewStatusApproved, reviewerID)
}

// FinalResult is the manual result when there is one, else the automatic one.
func (ar *AddressReview) FinalResult() ParsedAddress {
	if ar.ManualResult != nil {
		return *ar.ManualResult
	}
	return ar.AutoParsedResult
}

func (ar *AddressReview) finish(status, reviewerID string) {
	ar.Status = status
	ar.ReviewerID = &reviewerID
	now := time.Now()
	ar.ReviewedAt = &now
}

func (ar *AddressReview) IsPending() bool {
	return ar.Status == ReviewStatusPending
}

func (ar *AddressReview) IsCompleted() bool {
	return ar.Status == ReviewStatusApproved || ar.Status == ReviewStatusRejected
}
