package requests

import "github.com/mn-address-parser/app/models"

// ParseAddressRequest asks for one address to be parsed.
type ParseAddressRequest struct {
	Address string       `json:"address"`
	Options ParseOptions `json:"options,omitempty"`
}

// ParseOptions tune a parse request.
type ParseOptions struct {
	UseCache bool `json:"use_cache"` // defaults to true when omitted
	Explain  bool `json:"explain"`   // attach a ParseTrace; bypasses the cache read
}

// DefaultParseOptions are applied before a request body is decoded, so
// absent fields keep these values.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{UseCache: true}
}

// BatchParseRequest submits a background job.
type BatchParseRequest struct {
	Addresses []string     `json:"addresses" binding:"required,min=1,max=20000"`
	Options   ParseOptions `json:"options,omitempty"`
}

// CompareRequest asks for the parser and libpostal side by side.
type CompareRequest struct {
	Address string `json:"address" binding:"required"`
}

// LearnedAliasRequest records another spelling of a district.
type LearnedAliasRequest struct {
	Alias      string  `json:"alias" binding:"required"`
	District   string  `json:"district" binding:"required"`
	Confidence float64 `json:"confidence,omitempty"`
	Source     string  `json:"source,omitempty"`
}

// ReviewApproveRequest accepts a review's automatic result.
type ReviewApproveRequest struct {
	ReviewerID string `json:"reviewer_id" binding:"required"`
}

// ReviewCorrectRequest replaces a review's result.
type ReviewCorrectRequest struct {
	ManualResult models.ParsedAddress `json:"manual_result"`
	ReviewerID   string               `json:"reviewer_id" binding:"required"`
}
