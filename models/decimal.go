package models

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Float decodes venue numbers that arrive either as JSON numbers or as quoted
// decimal strings. Empty strings and null decode to zero.
type Float float64

func (f *Float) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(strings.Trim(string(data), `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	v, _ := d.Float64()
	*f = Float(v)
	return nil
}

func (f Float) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(FormatDecimal(float64(f)))), nil
}

func (f Float) Float64() float64 {
	return float64(f)
}

// FloatPtr returns nil for a nil pointer and the value otherwise.
func FloatPtr(f *Float) *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

// FormatDecimal renders v in plain decimal notation without exponent, the
// form the venue accepts for prices and quantities. Non-finite values have no
// decimal form and render as strconv does.
func FormatDecimal(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return decimal.NewFromFloat(v).String()
}
