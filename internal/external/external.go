// Package external wraps libpostal for side-by-side comparison with the
// rule-based parser. It needs cgo and an installed libpostal.
package external

import "errors"

// ErrLibpostalUnavailable is returned by builds without cgo.
var ErrLibpostalUnavailable = errors.New("libpostal is not available in this build")

// LP holds the libpostal components of one address.
type LP struct {
	Expanded   string            `json:"expanded"`
	House      string            `json:"house,omitempty"`
	Road       string            `json:"road,omitempty"`
	Unit       string            `json:"unit,omitempty"`
	District   string            `json:"district,omitempty"`
	City       string            `json:"city,omitempty"`
	Components map[string]string `json:"components"`
	Coverage   float64           `json:"coverage"`
}
