package knowledge

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// DefaultConfidence is assigned to rules that carry no usable confidence.
const DefaultConfidence = 0.7

// coerceConfidence converts a loosely typed confidence into a number.
// present is false when raw carries no value at all (nil or blank string).
// Booleans and non-finite numbers are not accepted as confidences.
func coerceConfidence(raw any) (value float64, present bool, err error) {
	switch v := raw.(type) {
	case nil:
		return 0, false, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, false, nil
		}
		raw = v
	case json.Number:
		raw = v.String()
	case bool:
		return 0, true, errNotNumeric
	}

	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, true, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true, errNotNumeric
	}
	return f, true, nil
}

// inRange reports whether c lies in (0, 1].
func inRange(c float64) bool {
	return c > 0 && c <= 1
}

type confidenceError string

func (e confidenceError) Error() string { return string(e) }

const errNotNumeric = confidenceError("not a finite number")
