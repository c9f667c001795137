// Package blackscholes prices European options with the Black-Scholes closed
// form and sweeps the price over a (volatility, underlying price) grid.
//
// Everything in this package is pure: no I/O, no shared state, and the same
// inputs always produce the same outputs.
package blackscholes

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidArgument reports an input outside the model's domain.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNumericOverflow reports a non-finite intermediate or result.
	ErrNumericOverflow = errors.New("numeric overflow")
)

// OptionType is the right the option grants. The zero value is not a valid type.
type OptionType int

const (
	Call OptionType = iota + 1
	Put
)

// ParseOptionType accepts "call"/"put" (or "c"/"p"), case-insensitively.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	}
	return 0, fmt.Errorf("%w: option type %q must be call or put", ErrInvalidArgument, s)
}

func (t OptionType) String() string {
	switch t {
	case Call:
		return "call"
	case Put:
		return "put"
	}
	return fmt.Sprintf("OptionType(%d)", int(t))
}

// Valid reports whether t is Call or Put.
func (t OptionType) Valid() bool {
	return t == Call || t == Put
}

// Title returns "Call" or "Put" for display.
func (t OptionType) Title() string {
	switch t {
	case Call:
		return "Call"
	case Put:
		return "Put"
	}
	return t.String()
}

func (t OptionType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: option type %d", ErrInvalidArgument, int(t))
	}
	return []byte(t.String()), nil
}

func (t *OptionType) UnmarshalText(text []byte) error {
	parsed, err := ParseOptionType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Quote holds the scalar inputs of a single pricing request.
type Quote struct {
	Spot   float64    `json:"spot" yaml:"spot"`             // S
	Strike float64    `json:"strike" yaml:"strike"`         // K
	Expiry float64    `json:"expiry" yaml:"expiry"`         // T, years
	Rate   float64    `json:"rate" yaml:"rate"`             // r, continuously compounded
	Vol    float64    `json:"volatility" yaml:"volatility"` // σ, annualised
	Type   OptionType `json:"option_type" yaml:"option_type"`
}

// Price prices the quote. See the package-level Price.
func (q Quote) Price() (float64, error) {
	return Price(q.Spot, q.Strike, q.Expiry, q.Rate, q.Vol, q.Type)
}
