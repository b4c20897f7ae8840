package display

import (
	"math"

	"github.com/shopspring/decimal"
)

// FormatPrice renders p with four decimal places. Non-finite prices are
// shown as NaN, +Inf or -Inf.
func FormatPrice(p float64) string {
	switch {
	case math.IsNaN(p):
		return "NaN"
	case math.IsInf(p, 1):
		return "+Inf"
	case math.IsInf(p, -1):
		return "-Inf"
	}
	return decimal.NewFromFloat(p).StringFixed(4)
}

// PriceLabel is the line shown under the inputs form.
func PriceLabel(p float64) string {
	return "Option Price: $" + FormatPrice(p)
}
