package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidInput is returned by Input.Validate for inputs outside the
// numerically meaningful domain of the Black-Scholes formula.
var ErrInvalidInput = errors.New("invalid pricing input")

// OptionType selects the payoff priced by BlackScholesPrice.
type OptionType int

const (
	Call OptionType = iota // Call is the right to buy at the strike.
	Put                    // Put is the right to sell at the strike.
)

// String returns "Call" or "Put".
func (t OptionType) String() string {
	if t == Put {
		return "Put"
	}
	return "Call"
}

// ParseOptionType accepts "call"/"c" and "put"/"p" in any case.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	}
	return Call, fmt.Errorf("unknown option type %q", s)
}

// Input holds the five scalars and the option type of a single pricing
// request. It is passed by value and never mutated.
type Input struct {
	Type       OptionType
	Spot       float64 // S
	Strike     float64 // K
	Maturity   float64 // T, in years
	Rate       float64 // r, continuously compounded
	Volatility float64 // sigma, annualized
}

// Validate reports the first field that makes the closed form degenerate.
// Price does not call it: degenerate inputs propagate NaN/Inf unless the
// caller validates first.
func (in Input) Validate() error {
	fields := []struct {
		name     string
		v        float64
		positive bool
	}{
		{"spot", in.Spot, true},
		{"strike", in.Strike, true},
		{"maturity", in.Maturity, true},
		{"rate", in.Rate, false},
		{"volatility", in.Volatility, true},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidInput, f.name, f.v)
		}
		if f.positive && f.v <= 0 {
			return fmt.Errorf("%w: %s must be > 0, got %v", ErrInvalidInput, f.name, f.v)
		}
	}
	return nil
}

// Price evaluates BlackScholesPrice for in.
func Price(in Input) float64 {
	return BlackScholesPrice(in.Type, in.Spot, in.Strike, in.Maturity, in.Rate, in.Volatility)
}

// BlackScholesPrice calculates the price of a European option using the Black-Scholes model.
//
// Parameters:
//   - optionType: Call or Put
//   - S: spot price of the underlying asset
//   - K: strike price of the option
//   - T: time to expiry in years
//   - r: risk-free interest rate (annual, continuously compounded)
//   - sigma: volatility of the underlying asset (annual, as a decimal)
//
// No inputs are checked. T or sigma of zero, or non-positive S or K, yield
// NaN or Inf exactly as the closed form does.
func BlackScholesPrice(
	optionType OptionType,
	S float64, // spot
	K float64, // strike
	T float64, // time to expiry in years
	r float64, // risk-free rate
	sigma float64, // volatility
) float64 {

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	discount := math.Exp(-r * T)

	if optionType == Call {
		return S*normCDF(d1) - K*discount*normCDF(d2)
	}
	return K*discount*normCDF(-d2) - S*normCDF(-d1)
}

// normCDF computes the cumulative distribution function of the standard normal distribution
// for a given value x using the error function.
func normCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}
