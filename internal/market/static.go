package market

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StaticProvider serves fixed data, for offline runs and tests.
type StaticProvider struct {
	spot float64
	bars []Bar
}

var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider returns a provider quoting spot for every ticker.
func NewStaticProvider(spot float64, bars ...Bar) *StaticProvider {
	return &StaticProvider{spot: spot, bars: bars}
}

func (p *StaticProvider) Spot(_ context.Context, ticker string) (float64, error) {
	if strings.TrimSpace(ticker) == "" {
		return 0, fmt.Errorf("empty ticker")
	}
	if p.spot <= 0 {
		return 0, ErrNoData
	}
	return p.spot, nil
}

func (p *StaticProvider) Bars(_ context.Context, _ string, from, to time.Time) ([]Bar, error) {
	var out []Bar
	for _, b := range p.bars {
		if b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}
