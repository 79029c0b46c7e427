package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMissingValue marks an upstream numeric field that was absent or null.
var ErrMissingValue = errors.New("missing numeric value")

// number decodes a JSON number or a numeric string. Upstreams disagree on
// which they send for the same field. Null, an absent field and an empty
// string leave it unset; anything else that does not parse is an error.
type number struct {
	v     float64
	valid bool
}

func (n *number) UnmarshalJSON(data []byte) error {
	*n = number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	f, ok, err := parseFloat(raw)
	if err != nil {
		return err
	}
	*n = number{v: f, valid: ok}
	return nil
}

// Value reports false when the field was unset.
func (n number) Value() (float64, bool) { return n.v, n.valid }

func (n number) require(field string) (float64, error) {
	if !n.valid {
		return 0, fmt.Errorf("%s: %w", field, ErrMissingValue)
	}
	return n.v, nil
}

type namedNumber struct {
	name string
	n    number
}

// requireAll returns every field by name, or the first one that is unset.
func requireAll(source string, fields ...namedNumber) (map[string]float64, error) {
	out := make(map[string]float64, len(fields))
	for _, f := range fields {
		v, err := f.n.require(f.name)
		if err != nil {
			return nil, fmt.Errorf("%s %w", source, err)
		}
		out[f.name] = v
	}
	return out, nil
}

func parseFloat(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse number %q: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, fmt.Errorf("parse number %q: not finite", s)
	}
	return f, true, nil
}

// parseNumber reads a string-encoded upstream number. Blank is ErrMissingValue.
func parseNumber(field, s string) (float64, error) {
	f, ok, err := parseFloat(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if !ok {
		return 0, fmt.Errorf("%s: %w", field, ErrMissingValue)
	}
	return f, nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}

// confidenceFromScore grows linearly from 0.35 at a flat score to 1 at the
// extremes.
func confidenceFromScore(score float64) float64 {
	return clamp(0.35+0.65*math.Abs(score), 0, 1)
}
