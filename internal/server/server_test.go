package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contactkeval/option-surface/internal/display"
	"github.com/contactkeval/option-surface/internal/market"
	"github.com/contactkeval/option-surface/internal/pricing"
	"github.com/contactkeval/option-surface/internal/surface"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var defaults = pricing.Input{Type: pricing.Call, Spot: 100, Strike: 100, Maturity: 1, Rate: 0.05, Volatility: 0.2}

// stubRenderer returns a small valid PNG, or whatever out/err say.
type stubRenderer struct {
	out   []byte
	err   error
	delay time.Duration

	active, peak atomic.Int32
}

func (r *stubRenderer) Render(g *surface.Grid, _ surface.Labels) ([]byte, error) {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(r.delay)

	if r.err != nil || r.out != nil {
		return r.out, r.err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 6))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newTestServer(t *testing.T, r surface.SurfaceRenderer, prov market.Provider, validate bool) (*Server, string) {
	t.Helper()
	gen, err := surface.NewGenerator(r, surface.DefaultGridSpec())
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "heatmap.png")
	s, err := New(gen, prov, Options{OutputPath: out, ValidateInputs: validate, Defaults: defaults})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, out
}

func do(s *Server, method, target string, body string, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
}

func TestHealthAndRequestID(t *testing.T) {
	s, _ := newTestServer(t, &stubRenderer{}, nil, true)

	w := do(s, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatal("request id not assigned")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Fatalf("request id not propagated, got %q", got)
	}
}

func TestAPIPrice(t *testing.T) {
	s, _ := newTestServer(t, &stubRenderer{}, nil, true)

	tests := []struct {
		name      string
		query     string
		formatted string
	}{
		{"defaults", "", "10.4506"},
		{"put", "type=put", "5.5735"},
		{"explicit", "type=call&spot=100&strike=100&maturity=1&rate=0.05&volatility=0.2", "10.4506"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(s, http.MethodGet, "/api/price?"+tt.query, "", "")
			if w.Code != http.StatusOK {
				t.Fatalf("status %d: %s", w.Code, w.Body)
			}
			var resp priceResponse
			decodeJSON(t, w, &resp)
			if resp.Formatted != tt.formatted || resp.Price == nil {
				t.Fatalf("unexpected response %+v", resp)
			}
			if resp.Label != "Option Price: $"+tt.formatted {
				t.Fatalf("label = %q", resp.Label)
			}
		})
	}
}

func TestAPIPriceValidation(t *testing.T) {
	strict, _ := newTestServer(t, &stubRenderer{}, nil, true)
	for _, q := range []string{"spot=-1", "volatility=0", "maturity=0", "type=straddle", "spot=abc"} {
		if w := do(strict, http.MethodGet, "/api/price?"+q, "", ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", q, w.Code)
		}
	}

	// without validation degenerate inputs pass through as NaN
	lenient, _ := newTestServer(t, &stubRenderer{}, nil, false)
	w := do(lenient, http.MethodGet, "/api/price?spot=-1", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var resp priceResponse
	decodeJSON(t, w, &resp)
	if resp.Formatted != "NaN" || resp.Price != nil {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestAPIHeatmap(t *testing.T) {
	s, out := newTestServer(t, &stubRenderer{}, nil, true)

	if w := do(s, http.MethodGet, "/heatmap.png", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before generation, got %d", w.Code)
	}

	w := do(s, http.MethodPost, "/api/heatmap", `{"type":"put","spot":120}`, "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	var resp heatmapResponse
	decodeJSON(t, w, &resp)
	if resp.Path != out || resp.Width != 8 || resp.Height != 6 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.SpotRange != [2]float64{60, 180} {
		t.Fatalf("spot range %v", resp.SpotRange)
	}

	img := do(s, http.MethodGet, "/heatmap.png", "", "")
	if img.Code != http.StatusOK {
		t.Fatalf("image status %d", img.Code)
	}
	if _, err := png.Decode(img.Body); err != nil {
		t.Fatalf("served image is not a PNG: %v", err)
	}
}

func TestAPIHeatmapRenderFailure(t *testing.T) {
	s, out := newTestServer(t, &stubRenderer{err: errors.New("colorbar needs an image handle")}, nil, true)

	w := do(s, http.MethodPost, "/api/heatmap", "spot=100", "application/x-www-form-urlencoded")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", w.Code)
	}
	var resp map[string]string
	decodeJSON(t, w, &resp)
	if !strings.Contains(resp["error"], surface.ErrRenderFailed.Error()) {
		t.Fatalf("error = %q", resp["error"])
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("no file should be written on render failure")
	}

	// the server keeps serving
	if w := do(s, http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
		t.Fatalf("health after failure: %d", w.Code)
	}
}

func TestAPIHeatmapDecodeFailure(t *testing.T) {
	s, _ := newTestServer(t, &stubRenderer{out: []byte("definitely not a png")}, nil, true)

	w := do(s, http.MethodPost, "/api/heatmap", "", "application/json")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	var resp map[string]string
	decodeJSON(t, w, &resp)
	if resp["error"] != display.LoadFailedNotice {
		t.Fatalf("error = %q", resp["error"])
	}
	if s.Viewer().Texture() != nil {
		t.Fatal("viewer should be cleared")
	}
	if w := do(s, http.MethodGet, "/heatmap.png", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("image after decode failure: %d", w.Code)
	}
}

func TestHeatmapGenerationIsSerialized(t *testing.T) {
	r := &stubRenderer{delay: 20 * time.Millisecond}
	s, _ := newTestServer(t, r, nil, true)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w := do(s, http.MethodPost, "/api/heatmap", "", "application/json"); w.Code != http.StatusOK {
				t.Errorf("status %d", w.Code)
			}
		}()
	}
	wg.Wait()
	if p := r.peak.Load(); p != 1 {
		t.Fatalf("renderer ran %d times concurrently", p)
	}
}

func TestIndexForm(t *testing.T) {
	s, _ := newTestServer(t, &stubRenderer{}, nil, true)

	w := do(s, http.MethodGet, "/", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	for _, want := range []string{"Calculate Price", "Generate Heatmap", `value="100"`, `value="0.05"`} {
		if !strings.Contains(w.Body.String(), want) {
			t.Errorf("page missing %q", want)
		}
	}

	form := url.Values{"spot": {"100"}, "type": {"call"}, "action": {"price"}}
	w = do(s, http.MethodPost, "/", form.Encode(), "application/x-www-form-urlencoded")
	if !strings.Contains(w.Body.String(), "Option Price: $10.4506") {
		t.Fatalf("price not shown:\n%s", w.Body)
	}
	if strings.Contains(w.Body.String(), "<img") {
		t.Fatal("no heatmap should be shown before generating one")
	}

	form.Set("action", "heatmap")
	w = do(s, http.MethodPost, "/", form.Encode(), "application/x-www-form-urlencoded")
	if !strings.Contains(w.Body.String(), `src="/heatmap.png?v=`) {
		t.Fatalf("heatmap not shown:\n%s", w.Body)
	}
}

func TestIndexFormInvalid(t *testing.T) {
	s, _ := newTestServer(t, &stubRenderer{}, nil, true)
	form := url.Values{"spot": {"-5"}, "action": {"price"}}
	w := do(s, http.MethodPost, "/", form.Encode(), "application/x-www-form-urlencoded")
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "invalid pricing input") {
		t.Fatalf("status %d:\n%s", w.Code, w.Body)
	}
}

func TestAPISpot(t *testing.T) {
	s, _ := newTestServer(t, &stubRenderer{}, nil, true)
	if w := do(s, http.MethodGet, "/api/spot/SPY", "", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a provider, got %d", w.Code)
	}

	s, _ = newTestServer(t, &stubRenderer{}, market.NewStaticProvider(581.39), true)
	w := do(s, http.MethodGet, "/api/spot/spy", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var resp spotResponse
	decodeJSON(t, w, &resp)
	if resp.Ticker != "SPY" || resp.Spot != 581.39 || resp.Volatility != nil {
		t.Fatalf("unexpected response %+v", resp)
	}

	// no bars configured
	if w := do(s, http.MethodGet, "/api/spot/spy?realized_vol=true", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without history, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &stubRenderer{}, nil, true)
	do(s, http.MethodPost, "/api/heatmap", "", "application/json")
	do(s, http.MethodGet, "/api/price", "", "")

	w := do(s, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"option_surface_heatmaps_total 1",
		"option_surface_prices_total 1",
		`option_surface_http_requests_total{method="GET",route="/api/price",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
