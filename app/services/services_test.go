package services

import (
	"context"
	"testing"

	"github.com/mn-address-parser/app/models"
	"github.com/mn-address-parser/internal/gazetteer"
	"github.com/mn-address-parser/internal/parser"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	trustedAddress   = "БЗД 3-р хороо 15-р байр 45 тоот"
	untrustedAddress = "тоот 25"
)

func newTestParser(t *testing.T) *parser.AddressParser {
	t.Helper()
	p, err := parser.NewAddressParser(gazetteer.Default(), parser.DefaultOptions(), zap.NewNop())
	require.NoError(t, err)
	return p
}

// fakeIndex records what the admin service pushes to the search index.
type fakeIndex struct {
	synonyms map[string][]string
	seeded   []models.AdminUnit
	units    []models.AdminUnit
	err      error
}

func (f *fakeIndex) Suggest(ctx context.Context, query string, limit int) ([]models.AdminUnit, error) {
	return f.units, f.err
}

func (f *fakeIndex) BuildIndexes(synonyms map[string][]string) (int64, error) {
	f.synonyms = synonyms
	return 1, f.err
}

func (f *fakeIndex) SeedData(units []models.AdminUnit) ([]int64, error) {
	f.seeded = units
	return []int64{2}, f.err
}

func (f *fakeIndex) Health() error { return f.err }
