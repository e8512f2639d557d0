package gazetteer

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/mn-address-parser/internal/normalizer"
	"gopkg.in/yaml.v3"
)

//go:embed data/districts.yaml
var districtsYAML []byte

// ErrEmptyTable is returned when a districts document declares no districts.
var ErrEmptyTable = errors.New("gazetteer: no districts declared")

// District is one canonical district with its known spellings.
type District struct {
	Name    string   `yaml:"name" json:"name"`
	Code    string   `yaml:"code" json:"code"`
	Aliases []string `yaml:"aliases" json:"aliases"`
}

// City describes the city the districts belong to.
type City struct {
	Name string `yaml:"name" json:"name"`
	Code string `yaml:"code" json:"code"`
}

type document struct {
	Version     string     `yaml:"version"`
	City        City       `yaml:"city"`
	CityMarkers []string   `yaml:"city_markers"`
	Districts   []District `yaml:"districts"`
}

// Table is the read-only alias table. It is built once and shared by every
// parser instance; nothing mutates it after Load returns.
type Table struct {
	version     string
	city        City
	cityMarkers []string
	districts   []District
	byName      map[string]int
	warnings    []string
}

// Load builds a table from a YAML document.
func Load(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode districts document: %w", err)
	}

	if len(doc.Districts) == 0 {
		return nil, ErrEmptyTable
	}

	t := &Table{
		version:     doc.Version,
		city:        doc.City,
		cityMarkers: append([]string(nil), doc.CityMarkers...),
		districts:   make([]District, 0, len(doc.Districts)),
		byName:      make(map[string]int, len(doc.Districts)),
	}

	owner := make(map[string]string)
	for i, d := range doc.Districts {
		if d.Name == "" {
			return nil, fmt.Errorf("district #%d has no name", i+1)
		}
		if _, dup := t.byName[d.Name]; dup {
			return nil, fmt.Errorf("district %q declared twice", d.Name)
		}
		if len(d.Aliases) == 0 {
			return nil, fmt.Errorf("district %q has no aliases", d.Name)
		}
		if norm := normalizer.Normalize(d.Name); norm != d.Name {
			return nil, fmt.Errorf("district name %q is not normalized (want %q)", d.Name, norm)
		}

		for _, alias := range d.Aliases {
			if norm := normalizer.Normalize(alias); norm != alias {
				return nil, fmt.Errorf("alias %q of %s is not normalized (want %q)", alias, d.Name, norm)
			}
			if prev, taken := owner[alias]; taken && prev != d.Name {
				t.warnings = append(t.warnings,
					fmt.Sprintf("alias %q is declared by %s and %s; %s wins", alias, prev, d.Name, prev))
				continue
			}
			owner[alias] = d.Name
		}

		t.byName[d.Name] = i
		t.districts = append(t.districts, District{
			Name:    d.Name,
			Code:    d.Code,
			Aliases: append([]string(nil), d.Aliases...),
		})
	}

	return t, nil
}

// LoadFile reads a districts document from disk.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read districts file: %w", err)
	}
	return Load(data)
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the table compiled into the binary.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Load(districtsYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded districts table is invalid: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// Version identifies the dataset. Cache entries are keyed on it.
func (t *Table) Version() string { return t.version }

// City returns the city the table describes.
func (t *Table) City() City { return t.city }

// CityMarkers are words that name the city rather than a part of it.
func (t *Table) CityMarkers() []string { return t.cityMarkers }

// Districts returns the districts in declaration order.
func (t *Table) Districts() []District { return t.districts }

// Lookup finds a district by canonical name.
func (t *Table) Lookup(name string) (District, bool) {
	i, ok := t.byName[name]
	if !ok {
		return District{}, false
	}
	return t.districts[i], true
}

// Warnings lists non-fatal problems found while loading, such as an alias
// shared by two districts.
func (t *Table) Warnings() []string { return t.warnings }

// AliasCount is the total number of aliases over all districts.
func (t *Table) AliasCount() int {
	n := 0
	for _, d := range t.districts {
		n += len(d.Aliases)
	}
	return n
}

// MarshalYAML renders the table back into its document form.
func (t *Table) MarshalYAML() (interface{}, error) {
	return document{
		Version:     t.version,
		City:        t.city,
		CityMarkers: t.cityMarkers,
		Districts:   t.districts,
	}, nil
}
