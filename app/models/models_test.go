package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsedAddress_Trusted(t *testing.T) {
	full := ParsedAddress{District: "БАЯНЗҮРХ", SubDistrictID: 3, Building: 15, Block: "0", Door: 45, Confidence: 0.98, MatchedPattern: PatternStrictBlocks}

	tests := []struct {
		name   string
		modify func(p *ParsedAddress)
		want   bool
	}{
		{"complete", func(p *ParsedAddress) {}, true},
		{"no district is still trusted", func(p *ParsedAddress) { p.District = "" }, true},
		{"low confidence", func(p *ParsedAddress) { p.Confidence = 0.9 }, false},
		{"no khoroo", func(p *ParsedAddress) { p.SubDistrictID = 0 }, false},
		{"no building", func(p *ParsedAddress) { p.Building = 0 }, false},
		{"no door", func(p *ParsedAddress) { p.Door = 0 }, false},
		{"door only", func(p *ParsedAddress) { p.MatchedPattern = PatternDoorOnly }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := full
			tt.modify(&p)
			assert.Equal(t, tt.want, p.Trusted(DefaultTrustedConfidence))
		})
	}

	var nilResult *ParsedAddress
	assert.False(t, nilResult.Trusted(DefaultTrustedConfidence))
}

func TestNewEmptyParsedAddress(t *testing.T) {
	p := NewEmptyParsedAddress()
	assert.Equal(t, DefaultBlock, p.Block)
	assert.Equal(t, PatternNone, p.MatchedPattern)
	assert.Zero(t, p.Confidence)
}

func TestAddressReview_Lifecycle(t *testing.T) {
	auto := ParsedAddress{Door: 25, Block: DefaultBlock, MatchedPattern: PatternDoorOnly}
	r := NewAddressReview("id-1", "тоот 25", "ТООТ 25", auto)

	assert.True(t, r.IsPending())
	assert.False(t, r.IsCompleted())
	assert.True(t, r.IsValidStatus())
	assert.Equal(t, auto, r.FinalResult())

	manual := ParsedAddress{District: "БАЯНГОЛ", SubDistrictID: 4, Building: 22, Block: DefaultBlock, Door: 25, Confidence: 1, MatchedPattern: PatternNone}
	r.SetManualResult(manual, "op")
	assert.Equal(t, ReviewStatusApproved, r.Status)
	assert.True(t, r.IsCompleted())
	assert.Equal(t, manual, r.FinalResult())
	require.NotNil(t, r.ReviewerID)
	assert.Equal(t, "op", *r.ReviewerID)

	rejected := NewAddressReview("id-2", "x", "X", auto)
	rejected.Reject("op")
	assert.Equal(t, ReviewStatusRejected, rejected.Status)
	assert.True(t, rejected.IsCompleted())

	rejected.Status = "archived"
	assert.False(t, rejected.IsValidStatus())
}

func TestLearnedAliases(t *testing.T) {
	la := NewLearnedAliases("БЗҮРХ", "БАЯНЗҮРХ", LevelDistrict, "BZD", SourceManual)
	assert.Equal(t, 0.8, la.Confidence)
	assert.Equal(t, 1, la.UsageCount)
	assert.True(t, la.IsValidSource())
	assert.True(t, la.IsValidAdminLevel())
	assert.True(t, la.IsHighConfidence())

	la.UpdateConfidence(1.5)
	assert.Equal(t, 0.8, la.Confidence)
	la.UpdateConfidence(0.5)
	assert.Equal(t, 0.5, la.Confidence)
	assert.False(t, la.IsHighConfidence())

	before := la.LastUsed
	la.UpdateUsage()
	assert.Equal(t, 2, la.UsageCount)
	assert.False(t, la.LastUsed.Before(before))

	la.Source = "guess"
	assert.False(t, la.IsValidSource())
}

func TestAdminUnit(t *testing.T) {
	u := AdminUnit{Level: LevelDistrict, AdminSubtype: AdminSubtypeDistrict, NormalizedName: "БАЯНЗҮРХ", Path: []string{"УЛААНБААТАР"}}
	assert.True(t, u.IsValidLevel())
	assert.True(t, u.IsValidAdminSubtype())
	assert.Equal(t, "УЛААНБААТАР > БАЯНЗҮРХ", u.GetFullPath())
	assert.Equal(t, []string{"УЛААНБААТАР"}, u.Path)

	u.Level = 7
	assert.False(t, u.IsValidLevel())
}

func TestAddressCache(t *testing.T) {
	c := NewAddressCache("fp", "raw", "RAW", "raw", ParsedAddress{}, false, "2024.1")
	assert.True(t, c.IsValidGazetteerVersion("2024.1"))
	assert.False(t, c.IsValidGazetteerVersion("2023.9"))

	c.CreatedAt = time.Now().Add(-2 * time.Hour)
	assert.True(t, c.IsExpired(time.Hour))
	assert.False(t, c.IsExpired(0))

	c.ManuallyVerified = true
	assert.False(t, c.IsExpired(time.Hour))

	c.UpdateAccess()
	assert.Equal(t, 2, c.AccessCount)
}
