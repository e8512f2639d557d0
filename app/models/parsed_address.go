package models

// Pattern tags name the rule that produced building, block and door.
const (
	PatternStrictBlocks   = "strict_content_blocks"
	PatternBlockSeparated = "bair.korpus xaalga"
	PatternBlockLetter    = "bair+letter xaalga"
	PatternBuildingDoor   = "bair xaalga"
	PatternDoorOnly       = "xaalga only"
	PatternNone           = "none"
)

// DefaultBlock means "no block found".
const DefaultBlock = "0"

// DefaultTrustedConfidence is the confidence a result needs to be trusted.
const DefaultTrustedConfidence = 0.95

// District resolution methods reported in a ParseTrace.
const (
	MethodExact = "exact"
	MethodFuzzy = "fuzzy"
	MethodNone  = "none"
)

// ParsedAddress is the structured form of one raw address.
type ParsedAddress struct {
	District       string  `json:"district" bson:"district"`               // canonical district, "" if unresolved
	SubDistrictID  int     `json:"sub_district_id" bson:"sub_district_id"` // khoroo number, 0 if unresolved
	Building       int     `json:"building" bson:"building"`
	Block          string  `json:"block" bson:"block"`
	Door           int     `json:"door" bson:"door"`
	Confidence     float64 `json:"confidence" bson:"confidence"`
	MatchedPattern string  `json:"matched_pattern" bson:"matched_pattern"`
}

// NewEmptyParsedAddress returns the result of an address nothing could be
// extracted from.
func NewEmptyParsedAddress() *ParsedAddress {
	return &ParsedAddress{
		Block:          DefaultBlock,
		MatchedPattern: PatternNone,
	}
}

// Trusted reports whether the result is complete enough to be stored without
// review. A door-only match is never trusted, whatever its confidence.
func (p *ParsedAddress) Trusted(minConfidence float64) bool {
	if p == nil {
		return false
	}
	return p.MatchedPattern != PatternDoorOnly &&
		p.Confidence >= minConfidence &&
		p.SubDistrictID > 0 &&
		p.Building > 0 &&
		p.Door > 0
}

// ParseTrace explains how a ParsedAddress was reached.
type ParseTrace struct {
	Raw            string  `json:"raw"`
	Normalized     string  `json:"normalized"`
	Residual       string  `json:"residual"`
	DistrictMethod string  `json:"district_method"`
	DistrictAlias  string  `json:"district_alias,omitempty"`
	DistrictScore  float64 `json:"district_score"`
}
