package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mn-address-parser/app/config"
	"github.com/mn-address-parser/internal/gazetteer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitLogger(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		logger, err := InitLogger(env)
		require.NoError(t, err, env)
		assert.NotNil(t, logger)
	}
}

func TestLoadTable_Default(t *testing.T) {
	cfg, err := config.New("")
	require.NoError(t, err)

	table, err := LoadTable(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, gazetteer.Default(), table)
}

func TestLoadTable_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "districts.yaml")
	doc := "version: test\ncity: {name: УЛААНБААТАР, code: UB}\ndistricts:\n  - name: НАЛАЙХ\n    code: ND\n    aliases: [НАЛАЙХ]\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := config.New("")
	require.NoError(t, err)
	cfg.Parser.DistrictsFile = path

	table, err := LoadTable(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "test", table.Version())
	assert.Len(t, table.Districts(), 1)
}

func TestLoadTable_MissingFile(t *testing.T) {
	cfg, err := config.New("")
	require.NoError(t, err)
	cfg.Parser.DistrictsFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err = LoadTable(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewParser(t *testing.T) {
	cfg, err := config.New("")
	require.NoError(t, err)

	p, err := NewParser(cfg, gazetteer.Default(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "БАЯНЗҮРХ", p.Parse("БЗД 3-р хороо").District)

	cfg.Parser.Similarity = "soundex"
	_, err = NewParser(cfg, gazetteer.Default(), zap.NewNop())
	assert.Error(t, err)
}
