package model

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
)

// Rate is a derived metric emitted as a two-decimal string when its
// denominator was non-zero, and as the number 0 otherwise.
type Rate struct {
	Value   float64
	Defined bool
}

// NewRate returns num/den.
func NewRate(num, den float64) Rate {
	if den == 0 {
		return Rate{}
	}
	return Rate{Value: num / den, Defined: true}
}

// NewPercent returns num/den*100.
func NewPercent(num, den float64) Rate {
	if den == 0 {
		return Rate{}
	}
	return Rate{Value: num / den * 100, Defined: true}
}

// Rounded returns the value rounded to two decimals, or 0 when undefined.
func (r Rate) Rounded() float64 {
	if !r.Defined {
		return 0
	}
	f, _ := strconv.ParseFloat(r.String(), 64)
	return f
}

func (r Rate) String() string {
	if !r.Defined {
		return "0"
	}
	return strconv.FormatFloat(r.Value, 'f', 2, 64)
}

// MarshalJSON emits "12.34" or 0.
func (r Rate) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("0"), nil
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts the forms produced by MarshalJSON.
func (r *Rate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return eris.Wrapf(err, "model: parse rate %q", s)
		}
		*r = Rate{Value: f, Defined: true}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return eris.Wrap(err, "model: parse rate")
	}
	*r = Rate{Value: f, Defined: f != 0}
	return nil
}

// Ratio returns num/den, or nil when den is zero. Ratios are not clamped.
func Ratio(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	v := num / den
	return &v
}
