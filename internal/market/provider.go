// Package market supplies spot prices and price history used to seed the
// pricer inputs from a ticker.
package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear annualizes daily volatility.
const TradingDaysPerYear = 252

// ErrNoData is returned when a provider has nothing for the request.
var ErrNoData = errors.New("no market data")

// Provider supplies market data.
type Provider interface {
	// Spot returns the latest close for ticker.
	Spot(ctx context.Context, ticker string) (float64, error)
	// Bars returns daily bars in [from, to], oldest first.
	Bars(ctx context.Context, ticker string, from, to time.Time) ([]Bar, error)
}

// Bar is a simplified daily OHLC record.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// RealizedVolatility is the annualized sample standard deviation of daily
// log returns of the closes. At least two returns are needed.
func RealizedVolatility(bars []Bar) (float64, error) {
	if len(bars) < 3 {
		return 0, fmt.Errorf("%w: need at least 3 bars for realized volatility, got %d", ErrNoData, len(bars))
	}
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	returns := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1].Close, sorted[i].Close
		if prev <= 0 || cur <= 0 {
			return 0, fmt.Errorf("non-positive close on %s", sorted[i].Date.Format("2006-01-02"))
		}
		returns = append(returns, math.Log(cur/prev))
	}
	return stat.StdDev(returns, nil) * math.Sqrt(TradingDaysPerYear), nil
}

// Estimate fetches the spot for ticker and the realized volatility over the
// lookback window ending at asOf.
func Estimate(ctx context.Context, p Provider, ticker string, asOf time.Time, lookback time.Duration) (spot, vol float64, err error) {
	spot, err = p.Spot(ctx, ticker)
	if err != nil {
		return 0, 0, fmt.Errorf("spot %s: %w", ticker, err)
	}
	bars, err := p.Bars(ctx, ticker, asOf.Add(-lookback), asOf)
	if err != nil {
		return 0, 0, fmt.Errorf("bars %s: %w", ticker, err)
	}
	vol, err = RealizedVolatility(bars)
	if err != nil {
		return 0, 0, fmt.Errorf("volatility %s: %w", ticker, err)
	}
	return spot, vol, nil
}
