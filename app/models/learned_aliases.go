package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LearnedAliases is an extra spelling of a district collected from reviews
// or added by an operator. It feeds the search synonyms and exports; the
// running parser's alias table is never changed by it.
type LearnedAliases struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	OriginalToken string             `bson:"original_token" json:"original_token"`
	CanonicalForm string             `bson:"canonical_form" json:"canonical_form"`
	AdminLevel    int                `bson:"admin_level" json:"admin_level"`
	AdminID       string             `bson:"admin_id" json:"admin_id"`
	Confidence    float64            `bson:"confidence" json:"confidence"`
	Source        string             `bson:"source" json:"source"`
	UsageCount    int                `bson:"usage_count" json:"usage_count"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	LastUsed      time.Time          `bson:"last_used" json:"last_used"`
}

const (
	SourceManual      = "manual"
	SourceAutoLearned = "auto_learned"
)

// NewLearnedAliases creates an alias with the default confidence of 0.8.
func NewLearnedAliases(originalToken, canonicalForm string, adminLevel int, adminID string, source string) *LearnedAliases {
	now := time.Now()
	return &LearnedAliases{
		OriginalToken: originalToken,
		CanonicalForm: canonicalForm,
		AdminLevel:    adminLevel,
		AdminID:       adminID,
		Confidence:    0.8,
		Source:        source,
		UsageCount:    1,
		CreatedAt:     now,
		LastUsed:      now,
	}
}

func (la *LearnedAliases) IsValidSource() bool {
	return la.Source == SourceManual || la.Source == SourceAutoLearned
}

func (la *LearnedAliases) IsValidAdminLevel() bool {
	return la.AdminLevel >= LevelCity && la.AdminLevel <= LevelSubDistrict
}

// UpdateUsage counts one more use.
func (la *LearnedAliases) UpdateUsage() {
	la.UsageCount++
	la.LastUsed = time.Now()
}

// UpdateConfidence ignores values outside [0, 1].
func (la *LearnedAliases) UpdateConfidence(newConfidence float64) {
	if newConfidence >= 0.0 && newConfidence <= 1.0 {
		la.Confidence = newConfidence
	}
}

func (la *LearnedAliases) IsHighConfidence() bool {
	return la.Confidence >= 0.8
}
