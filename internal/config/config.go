// Package config loads layered settings: built-in defaults, an optional
// YAML file, OPTION_SURFACE_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/contactkeval/option-surface/internal/logger"
	"github.com/contactkeval/option-surface/internal/pricing"
	"github.com/contactkeval/option-surface/internal/surface"
)

// EnvPrefix prefixes every environment override, e.g. OPTION_SURFACE_INPUTS_SPOT.
const EnvPrefix = "OPTION_SURFACE"

// Config is the full application configuration.
type Config struct {
	Inputs         InputsConfig   `mapstructure:"inputs"`
	Heatmap        HeatmapConfig  `mapstructure:"heatmap"`
	Server         ServerConfig   `mapstructure:"server"`
	Logging        logger.Options `mapstructure:"logging"`
	Market         MarketConfig   `mapstructure:"market"`
	ValidateInputs bool           `mapstructure:"validate_inputs"`
}

// InputsConfig holds the pricer inputs shown when the UI opens.
type InputsConfig struct {
	Type       string  `mapstructure:"type"`
	Spot       float64 `mapstructure:"spot"`
	Strike     float64 `mapstructure:"strike"`
	Maturity   float64 `mapstructure:"maturity"`
	Rate       float64 `mapstructure:"rate"`
	Volatility float64 `mapstructure:"volatility"`
}

// HeatmapConfig controls surface generation.
type HeatmapConfig struct {
	Output string           `mapstructure:"output"`
	Grid   surface.GridSpec `mapstructure:"grid"`
	Render RenderConfig     `mapstructure:"render"`
}

// RenderConfig is the file form of surface.RenderConfig.
type RenderConfig struct {
	Colormap string    `mapstructure:"colormap"`
	Origin   string    `mapstructure:"origin"`
	Aspect   string    `mapstructure:"aspect"`
	Extent   []float64 `mapstructure:"extent"` // xmin, xmax, ymin, ymax
	WidthPx  int       `mapstructure:"width_px"`
	HeightPx int       `mapstructure:"height_px"`
	DPI      int       `mapstructure:"dpi"`
}

// ServerConfig controls the HTTP UI.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// MarketConfig configures the Massive market data client.
type MarketConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Retries  int           `mapstructure:"retries"`
	Lookback time.Duration `mapstructure:"lookback"`
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"type":       "inputs.type",
	"spot":       "inputs.spot",
	"strike":     "inputs.strike",
	"maturity":   "inputs.maturity",
	"rate":       "inputs.rate",
	"volatility": "inputs.volatility",
	"output":     "heatmap.output",
	"colormap":   "heatmap.render.colormap",
	"addr":       "server.addr",
	"verbosity":  "logging.verbosity",
	"log-file":   "logging.file",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("inputs.type", "call")
	v.SetDefault("inputs.spot", 100.0)
	v.SetDefault("inputs.strike", 100.0)
	v.SetDefault("inputs.maturity", 1.0)
	v.SetDefault("inputs.rate", 0.05)
	v.SetDefault("inputs.volatility", 0.2)

	grid := surface.DefaultGridSpec()
	v.SetDefault("heatmap.output", "heatmap.png")
	v.SetDefault("heatmap.grid.spot_steps", grid.SpotSteps)
	v.SetDefault("heatmap.grid.vol_steps", grid.VolSteps)
	v.SetDefault("heatmap.grid.spot_low", grid.SpotLow)
	v.SetDefault("heatmap.grid.spot_high", grid.SpotHigh)
	v.SetDefault("heatmap.grid.vol_low", grid.VolLow)
	v.SetDefault("heatmap.grid.vol_high", grid.VolHigh)

	render := surface.DefaultRenderConfig()
	v.SetDefault("heatmap.render.colormap", render.Colormap)
	v.SetDefault("heatmap.render.origin", "lower")
	v.SetDefault("heatmap.render.aspect", "auto")
	v.SetDefault("heatmap.render.extent", []float64{})
	v.SetDefault("heatmap.render.width_px", render.WidthPx)
	v.SetDefault("heatmap.render.height_px", render.HeightPx)
	v.SetDefault("heatmap.render.dpi", render.DPI)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("logging.verbosity", int(logger.Info))
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	v.SetDefault("market.api_key", "")
	v.SetDefault("market.base_url", "https://api.massive.com")
	v.SetDefault("market.timeout", 60*time.Second)
	v.SetDefault("market.retries", 3)
	v.SetDefault("market.lookback", 90*24*time.Hour)

	v.SetDefault("validate_inputs", true)
}

// RegisterFlags defines the flags that Load maps onto configuration keys.
// Their defaults only document the built-in values; unset flags never
// override the file or the environment.
func RegisterFlags(fs *pflag.FlagSet) {
	render := surface.DefaultRenderConfig()
	fs.String("type", "call", "option type: call or put")
	fs.Float64("spot", 100, "underlying spot price S")
	fs.Float64("strike", 100, "strike price K")
	fs.Float64("maturity", 1, "time to maturity T in years")
	fs.Float64("rate", 0.05, "continuously compounded risk-free rate r")
	fs.Float64("volatility", 0.2, "annualized volatility sigma")
	fs.String("output", "heatmap.png", "heatmap output path")
	fs.String("colormap", render.Colormap, "heatmap colormap")
	fs.String("addr", ":8080", "HTTP listen address for --serve")
	fs.Int("verbosity", int(logger.Info), "log verbosity: 0=error 1=info 2=debug 3=trace")
	fs.String("log-file", "", "also write JSON logs to this rotated file")
}

// Load reads configuration. path may be empty; when set, the file must
// exist. Only flags that were set on the command line override lower layers.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("market.api_key", EnvPrefix+"_MARKET_API_KEY", "MASSIVE_API_KEY"); err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := pricing.ParseOptionType(c.Inputs.Type); err != nil {
		return err
	}
	if c.Heatmap.Output == "" {
		return errors.New("heatmap.output is required")
	}
	if err := c.Heatmap.Grid.Validate(); err != nil {
		return err
	}
	if _, err := c.Heatmap.Render.Surface(); err != nil {
		return err
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	return nil
}

// Input converts the configured defaults into a pricing input.
func (c InputsConfig) Input() (pricing.Input, error) {
	t, err := pricing.ParseOptionType(c.Type)
	if err != nil {
		return pricing.Input{}, err
	}
	return pricing.Input{
		Type:       t,
		Spot:       c.Spot,
		Strike:     c.Strike,
		Maturity:   c.Maturity,
		Rate:       c.Rate,
		Volatility: c.Volatility,
	}, nil
}

// Surface converts the file form into surface.RenderConfig.
func (r RenderConfig) Surface() (surface.RenderConfig, error) {
	out := surface.RenderConfig{
		Colormap: r.Colormap,
		WidthPx:  r.WidthPx,
		HeightPx: r.HeightPx,
		DPI:      r.DPI,
	}
	var err error
	if out.Origin, err = surface.ParseOrigin(strings.ToLower(r.Origin)); err != nil {
		return out, err
	}
	if out.Aspect, err = surface.ParseAspect(strings.ToLower(r.Aspect)); err != nil {
		return out, err
	}
	switch len(r.Extent) {
	case 0:
	case 4:
		out.Extent = &surface.Extent{XMin: r.Extent[0], XMax: r.Extent[1], YMin: r.Extent[2], YMax: r.Extent[3]}
	default:
		return out, fmt.Errorf("heatmap.render.extent needs 4 values (xmin, xmax, ymin, ymax), got %d", len(r.Extent))
	}
	return out, nil
}
