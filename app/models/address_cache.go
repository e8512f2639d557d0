package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AddressCache is one cached parse.
type AddressCache struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Fingerprint      string             `bson:"fingerprint" json:"fingerprint"`
	RawAddress       string             `bson:"raw_address" json:"raw_address"`
	Normalized       string             `bson:"normalized" json:"normalized"`
	Latin            string             `bson:"latin" json:"latin"`
	Result           ParsedAddress      `bson:"result" json:"result"`
	Trusted          bool               `bson:"trusted" json:"trusted"`
	GazetteerVersion string             `bson:"gazetteer_version" json:"gazetteer_version"`
	ManuallyVerified bool               `bson:"manually_verified" json:"manually_verified"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	LastAccessed     time.Time          `bson:"last_accessed" json:"last_accessed"`
	AccessCount      int                `bson:"access_count" json:"access_count"`
}

// NewAddressCache wraps a fresh parse for storage.
func NewAddressCache(fingerprint, rawAddress, normalized, latin string, result ParsedAddress, trusted bool, gazetteerVersion string) *AddressCache {
	now := time.Now()
	return &AddressCache{
		Fingerprint:      fingerprint,
		RawAddress:       rawAddress,
		Normalized:       normalized,
		Latin:            latin,
		Result:           result,
		Trusted:          trusted,
		GazetteerVersion: gazetteerVersion,
		CreatedAt:        now,
		LastAccessed:     now,
		AccessCount:      1,
	}
}

// UpdateAccess records a cache hit.
func (ac *AddressCache) UpdateAccess() {
	ac.LastAccessed = time.Now()
	ac.AccessCount++
}

// IsExpired reports whether the entry is older than ttl. Manually verified
// entries never expire.
func (ac *AddressCache) IsExpired(ttl time.Duration) bool {
	if ac.ManuallyVerified || ttl <= 0 {
		return false
	}
	return time.Since(ac.CreatedAt) > ttl
}

// IsValidGazetteerVersion reports whether the entry was parsed against the
// current alias table.
func (ac *AddressCache) IsValidGazetteerVersion(currentVersion string) bool {
	return ac.GazetteerVersion == currentVersion
}
