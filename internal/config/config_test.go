package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/contactkeval/option-surface/internal/pricing"
	"github.com/contactkeval/option-surface/internal/surface"
	"github.com/contactkeval/option-surface/internal/testutil"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	in, err := cfg.Inputs.Input()
	if err != nil {
		t.Fatal(err)
	}
	want := pricing.Input{Type: pricing.Call, Spot: 100, Strike: 100, Maturity: 1, Rate: 0.05, Volatility: 0.2}
	if in != want {
		t.Fatalf("inputs = %+v, want %+v", in, want)
	}
	if cfg.Heatmap.Output != "heatmap.png" || cfg.Heatmap.Grid != surface.DefaultGridSpec() {
		t.Fatalf("heatmap = %+v", cfg.Heatmap)
	}
	rc, err := cfg.Heatmap.Render.Surface()
	if err != nil {
		t.Fatal(err)
	}
	if rc.Colormap != "viridis" || rc.WidthPx != 800 || rc.HeightPx != 600 || rc.Extent != nil {
		t.Fatalf("render = %+v", rc)
	}
	if !cfg.ValidateInputs {
		t.Fatal("input validation should default to on")
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.ReadTimeout != 30*time.Second {
		t.Fatalf("server = %+v", cfg.Server)
	}
}

const sampleYAML = `
inputs:
  type: put
  spot: 120
heatmap:
  output: out/surface.png
  grid:
    spot_steps: 50
  render:
    colormap: kindlmann
    origin: upper
    aspect: square
    extent: [50, 150, 0.1, 0.3]
server:
  read_timeout: 5s
validate_inputs: false
`

func TestLoadFileEnvAndFlags(t *testing.T) {
	path := testutil.WriteFile(t, "option-surface.yaml", []byte(sampleYAML))
	t.Setenv("OPTION_SURFACE_INPUTS_STRIKE", "110")
	t.Setenv("OPTION_SURFACE_INPUTS_SPOT", "130")
	t.Setenv("MASSIVE_API_KEY", "secret")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--spot=140", "--verbosity=2"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"type from file", cfg.Inputs.Type, "put"},
		{"spot: flag beats env and file", cfg.Inputs.Spot, 140.0},
		{"strike from env", cfg.Inputs.Strike, 110.0},
		{"maturity default", cfg.Inputs.Maturity, 1.0},
		{"output from file", cfg.Heatmap.Output, "out/surface.png"},
		{"grid partial override", cfg.Heatmap.Grid.SpotSteps, 50},
		{"grid default kept", cfg.Heatmap.Grid.VolSteps, 100},
		{"unset flag keeps file value", cfg.Heatmap.Render.Colormap, "kindlmann"},
		{"duration parsed", cfg.Server.ReadTimeout, 5 * time.Second},
		{"verbosity flag", cfg.Logging.Verbosity, 2},
		{"api key from MASSIVE_API_KEY", cfg.Market.APIKey, "secret"},
		{"validation disabled", cfg.ValidateInputs, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("got %v (%T), want %v (%T)", tt.got, tt.got, tt.want, tt.want)
			}
		})
	}

	rc, err := cfg.Heatmap.Render.Surface()
	if err != nil {
		t.Fatal(err)
	}
	if rc.Origin != surface.OriginUpper || rc.Aspect != surface.AspectSquare {
		t.Fatalf("render = %+v", rc)
	}
	if rc.Extent == nil || *rc.Extent != (surface.Extent{XMin: 50, XMax: 150, YMin: 0.1, YMax: 0.3}) {
		t.Fatalf("extent = %+v", rc.Extent)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"option type": "inputs:\n  type: straddle\n",
		"grid steps":  "heatmap:\n  grid:\n    vol_steps: 0\n",
		"extent":      "heatmap:\n  render:\n    extent: [1, 2]\n",
		"origin":      "heatmap:\n  render:\n    origin: middle\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := testutil.WriteFile(t, "bad.yaml", []byte(body))
			if _, err := Load(path, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := Load("/nonexistent/option-surface.yaml", nil); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}
