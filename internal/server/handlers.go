package server

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contactkeval/option-surface/internal/display"
	"github.com/contactkeval/option-surface/internal/market"
	"github.com/contactkeval/option-surface/internal/pricing"
)

// inputRequest is the wire form of pricing.Input. Missing fields take the
// server defaults.
type inputRequest struct {
	Type       *string  `form:"type" json:"type"`
	Spot       *float64 `form:"spot" json:"spot"`
	Strike     *float64 `form:"strike" json:"strike"`
	Maturity   *float64 `form:"maturity" json:"maturity"`
	Rate       *float64 `form:"rate" json:"rate"`
	Volatility *float64 `form:"volatility" json:"volatility"`
}

func (r inputRequest) input(def pricing.Input) (pricing.Input, error) {
	in := def
	if r.Type != nil {
		t, err := pricing.ParseOptionType(*r.Type)
		if err != nil {
			return in, fmt.Errorf("%w: %v", pricing.ErrInvalidInput, err)
		}
		in.Type = t
	}
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&in.Spot, r.Spot)
	set(&in.Strike, r.Strike)
	set(&in.Maturity, r.Maturity)
	set(&in.Rate, r.Rate)
	set(&in.Volatility, r.Volatility)
	return in, nil
}

// bindInput reads the inputs from the query (GET or empty body) or the body
// (JSON or form) and validates them when enabled.
func (s *Server) bindInput(c *gin.Context) (pricing.Input, error) {
	var req inputRequest
	var err error
	if c.Request.Method == http.MethodGet || c.Request.ContentLength == 0 {
		err = c.ShouldBindQuery(&req)
	} else {
		err = c.ShouldBind(&req)
	}
	if err != nil {
		return s.opts.Defaults, fmt.Errorf("%w: %v", pricing.ErrInvalidInput, err)
	}
	in, err := req.input(s.opts.Defaults)
	if err != nil {
		return in, err
	}
	if s.opts.ValidateInputs {
		if err := in.Validate(); err != nil {
			return in, err
		}
	}
	return in, nil
}

// priceResponse omits Price when it is not finite; Formatted always holds
// the displayed text.
type priceResponse struct {
	Price     *float64 `json:"price,omitempty"`
	Formatted string   `json:"formatted"`
	Label     string   `json:"label"`
}

func newPriceResponse(p float64) priceResponse {
	resp := priceResponse{Formatted: display.FormatPrice(p), Label: display.PriceLabel(p)}
	if !math.IsNaN(p) && !math.IsInf(p, 0) {
		resp.Price = &p
	}
	return resp
}

func (s *Server) apiPrice(c *gin.Context) {
	in, err := s.bindInput(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p := pricing.Price(in)
	s.metrics.PricesTotal.Inc()
	c.JSON(http.StatusOK, newPriceResponse(p))
}

type heatmapResponse struct {
	Path      string     `json:"path"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	SpotRange [2]float64 `json:"spot_range"`
	VolRange  [2]float64 `json:"vol_range"`
}

func (s *Server) apiHeatmap(c *gin.Context) {
	in, err := s.bindInput(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	grid, w, h, err := s.generate(in)
	switch {
	case errors.Is(err, display.ErrDecode):
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": s.viewer.Notice()})
		return
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, heatmapResponse{
		Path:      s.opts.OutputPath,
		Width:     w,
		Height:    h,
		SpotRange: [2]float64{grid.Spot.Min, grid.Spot.Max},
		VolRange:  [2]float64{grid.Vol.Min, grid.Vol.Max},
	})
}

func (s *Server) heatmapImage(c *gin.Context) {
	if s.viewer.Texture() == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no heatmap generated yet"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.File(s.opts.OutputPath)
}

type spotResponse struct {
	Ticker     string   `json:"ticker"`
	Spot       float64  `json:"spot"`
	Volatility *float64 `json:"volatility,omitempty"`
}

func (s *Server) apiSpot(c *gin.Context) {
	if s.market == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market data not configured"})
		return
	}
	ticker := strings.ToUpper(c.Param("ticker"))
	ctx := c.Request.Context()

	resp := spotResponse{Ticker: ticker}
	var err error
	if wantVol, _ := strconv.ParseBool(c.Query("realized_vol")); wantVol {
		var vol float64
		resp.Spot, vol, err = market.Estimate(ctx, s.market, ticker, time.Now().UTC(), s.opts.Lookback)
		resp.Volatility = &vol
	} else {
		resp.Spot, err = s.market.Spot(ctx, ticker)
	}
	switch {
	case errors.Is(err, market.ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, resp)
	}
}

// pageData feeds templates/index.html.
type pageData struct {
	Type       string
	Spot       string
	Strike     string
	Maturity   string
	Rate       string
	Volatility string

	PriceLabel string
	Error      string
	Notice     string
	HeatmapURL string
}

func formatInput(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (s *Server) page(in pricing.Input) pageData {
	d := pageData{
		Type:       strings.ToLower(in.Type.String()),
		Spot:       formatInput(in.Spot),
		Strike:     formatInput(in.Strike),
		Maturity:   formatInput(in.Maturity),
		Rate:       formatInput(in.Rate),
		Volatility: formatInput(in.Volatility),
		Notice:     s.viewer.Notice(),
	}
	if s.viewer.Texture() != nil {
		d.HeatmapURL = fmt.Sprintf("/heatmap.png?v=%d", time.Now().UnixNano())
	}
	return d
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", s.page(s.opts.Defaults))
}

// submit handles both form buttons: "price" and "heatmap".
func (s *Server) submit(c *gin.Context) {
	in, err := s.bindInput(c)
	if err != nil {
		d := s.page(in)
		d.Error = err.Error()
		c.HTML(http.StatusBadRequest, "index.html", d)
		return
	}

	p := pricing.Price(in)
	s.metrics.PricesTotal.Inc()

	var genErr string
	if c.PostForm("action") == "heatmap" {
		if _, _, _, err := s.generate(in); err != nil {
			_ = c.Error(err)
			// decode failures surface through the viewer notice
			if !errors.Is(err, display.ErrDecode) {
				genErr = err.Error()
			}
		}
	}

	d := s.page(in)
	d.PriceLabel = display.PriceLabel(p)
	d.Error = genErr
	c.HTML(http.StatusOK, "index.html", d)
}
