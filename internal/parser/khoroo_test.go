package parser

import (
	"testing"

	"github.com/mn-address-parser/internal/gazetteer"
	"github.com/stretchr/testify/assert"
)

func TestFindSubDistrict(t *testing.T) {
	sr := NewSubDistrictResolver(gazetteer.Default())

	testCases := []struct {
		name     string
		text     string
		district string
		want     int
	}{
		{name: "Ordinal_Khoroo", text: "БЗД 3-Р ХОРОО 15 БАЙР", district: "БАЯНЗҮРХ", want: 3},
		{name: "Plain_Khoroo", text: "СБД 5 ХОРОО", district: "СҮХБААТАР", want: 5},
		{name: "Latin_Khoroo", text: "BZD 12 KHOROO", district: "БАЯНЗҮРХ", want: 12},
		{name: "Latin_Ordinal", text: "BGD 7-R HOROO", district: "БАЯНГОЛ", want: 7},
		{name: "Short_Cyrillic", text: "ХУД 11Х 5 БАЙР", district: "ХАН-УУЛ", want: 11},
		{name: "Short_Latin_Spaced", text: "SBD 4 H 10 BAIR", district: "СҮХБААТАР", want: 4},
		{name: "Lower_Case", text: "бзд 8 хороо", district: "БАЯНЗҮРХ", want: 8},
		{name: "After_District", text: "БЗД 14 15 БАЙР", district: "БАЯНЗҮРХ", want: 14},
		{name: "After_District_Glued", text: "БЗД14 15 БАЙР", district: "БАЯНЗҮРХ", want: 14},
		{name: "After_Canonical_Name", text: "БАЯНГОЛ 2 20 БАЙР", district: "БАЯНГОЛ", want: 2},
		{name: "Number_Without_District", text: "14 15 БАЙР", district: "", want: 0},
		{name: "Three_Digit_After_District", text: "БЗД 140", district: "БАЯНЗҮРХ", want: 0},
		{name: "Nothing", text: "15 БАЙР 45 ТООТ", district: "", want: 0},
		{name: "Empty", text: "", district: "", want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, sr.FindSubDistrict(tc.text, tc.district))
		})
	}
}
