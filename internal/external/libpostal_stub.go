//go:build !cgo || !libpostal

package external

// Available reports whether libpostal was compiled in.
func Available() bool { return false }

// ExtractWithLibpostal always fails unless built with cgo and -tags libpostal.
func ExtractWithLibpostal(raw string) (LP, error) {
	return LP{}, ErrLibpostalUnavailable
}
