package parser

import (
	"fmt"

	"github.com/mn-address-parser/app/models"
	"github.com/mn-address-parser/internal/gazetteer"
	"github.com/mn-address-parser/internal/normalizer"
	"go.uber.org/zap"
)

// DefaultConfidence is reported when both building and door were found.
const DefaultConfidence = 0.98

// Options tune the parser. The zero value is usable.
type Options struct {
	FuzzyThreshold float64
	Similarity     string
	Confidence     float64
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		FuzzyThreshold: DefaultFuzzyThreshold,
		Similarity:     SimilarityLCS,
		Confidence:     DefaultConfidence,
	}
}

// AddressParser turns raw Mongolian addresses into ParsedAddress records.
// It holds only read-only state and is safe for concurrent use.
type AddressParser struct {
	table       *gazetteer.Table
	districts   *DistrictResolver
	subDistrict *SubDistrictResolver
	residual    *residualBuilder
	confidence  float64
	logger      *zap.Logger
}

// NewAddressParser compiles every table-dependent rule up front.
func NewAddressParser(table *gazetteer.Table, opts Options, logger *zap.Logger) (*AddressParser, error) {
	if table == nil {
		table = gazetteer.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	similarity, err := SimilarityByName(opts.Similarity)
	if err != nil {
		return nil, fmt.Errorf("failed to configure parser: %w", err)
	}
	if opts.FuzzyThreshold < 0 || opts.FuzzyThreshold > 1 {
		return nil, fmt.Errorf("fuzzy threshold %.2f out of range [0, 1]", opts.FuzzyThreshold)
	}
	if opts.Confidence <= 0 {
		opts.Confidence = DefaultConfidence
	}

	return &AddressParser{
		table:       table,
		districts:   NewDistrictResolver(table, opts.FuzzyThreshold, similarity),
		subDistrict: NewSubDistrictResolver(table),
		residual:    newResidualBuilder(table),
		confidence:  opts.Confidence,
		logger:      logger,
	}, nil
}

// Table returns the alias table the parser was built from.
func (ap *AddressParser) Table() *gazetteer.Table { return ap.table }

// Parse never fails: anything it cannot read is left at its default.
func (ap *AddressParser) Parse(raw string) *models.ParsedAddress {
	result, _ := ap.ParseWithTrace(raw)
	return result
}

// ParseWithTrace parses raw and reports the intermediate texts and how the
// district was found.
func (ap *AddressParser) ParseWithTrace(raw string) (result *models.ParsedAddress, trace *models.ParseTrace) {
	trace = &models.ParseTrace{Raw: raw, DistrictMethod: models.MethodNone}

	defer func() {
		if r := recover(); r != nil {
			ap.logger.Error("address parse panicked", zap.String("raw", raw), zap.Any("panic", r))
			result = models.NewEmptyParsedAddress()
		}
	}()

	norm := normalizer.Normalize(raw)
	trace.Normalized = norm
	if norm == "" {
		return models.NewEmptyParsedAddress(), trace
	}

	dm := ap.districts.Resolve(norm)
	trace.DistrictMethod = dm.Method
	trace.DistrictAlias = dm.Alias
	trace.DistrictScore = dm.Score

	subDistrictID := ap.subDistrict.FindSubDistrict(norm, dm.Name)

	rest := ap.residual.Build(norm, subDistrictID, dm.Name)
	trace.Residual = rest

	ex := ExtractBuilding(rest)

	result = &models.ParsedAddress{
		District:       dm.Name,
		SubDistrictID:  subDistrictID,
		Building:       ex.Building,
		Block:          ex.Block,
		Door:           ex.Door,
		MatchedPattern: ex.Pattern,
	}
	if result.Block == "" {
		result.Block = models.DefaultBlock
	}
	if result.Building > 0 && result.Door > 0 {
		result.Confidence = ap.confidence
	}

	ap.logger.Debug("address parsed",
		zap.String("raw", raw),
		zap.String("normalized", norm),
		zap.String("residual", rest),
		zap.String("district", result.District),
		zap.Int("sub_district_id", result.SubDistrictID),
		zap.Int("building", result.Building),
		zap.String("block", result.Block),
		zap.Int("door", result.Door),
		zap.String("pattern", result.MatchedPattern))

	return result, trace
}
