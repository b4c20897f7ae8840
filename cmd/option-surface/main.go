package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/contactkeval/option-surface/internal/config"
	"github.com/contactkeval/option-surface/internal/display"
	"github.com/contactkeval/option-surface/internal/logger"
	"github.com/contactkeval/option-surface/internal/market"
	"github.com/contactkeval/option-surface/internal/pricing"
	"github.com/contactkeval/option-surface/internal/render"
	"github.com/contactkeval/option-surface/internal/server"
	"github.com/contactkeval/option-surface/internal/surface"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "option-surface: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("option-surface", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	cfgPath := flags.String("config", "", "path to a YAML, JSON or TOML config file")
	envFile := flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	serve := flags.Bool("serve", false, "run the browser UI instead of printing a price")
	heatmap := flags.Bool("heatmap", false, "also write the spot/volatility heatmap")
	ticker := flags.String("ticker", "", "take the spot price for this ticker from Massive")
	realizedVol := flags.Bool("realized-vol", false, "with --ticker, also take volatility from recent daily closes")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", *envFile, err)
		}
	}

	cfg, err := config.Load(*cfgPath, flags)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	in, err := cfg.Inputs.Input()
	if err != nil {
		return err
	}

	// choose provider
	var prov market.Provider
	if cfg.Market.APIKey != "" {
		prov = market.NewMassiveProvider(cfg.Market.APIKey,
			market.WithBaseURL(cfg.Market.BaseURL),
			market.WithTimeout(cfg.Market.Timeout),
			market.WithRetries(cfg.Market.Retries, time.Second),
		)
		logger.Infof("massive provider enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *ticker != "" {
		if prov == nil {
			return errors.New("--ticker needs a market API key (MASSIVE_API_KEY)")
		}
		if in, err = applyMarket(ctx, prov, in, *ticker, *realizedVol, cfg.Market.Lookback); err != nil {
			return err
		}
	}

	renderCfg, err := cfg.Heatmap.Render.Surface()
	if err != nil {
		return err
	}
	renderer, err := render.NewPlotRenderer(renderCfg)
	if err != nil {
		return err
	}
	gen, err := surface.NewGenerator(renderer, cfg.Heatmap.Grid)
	if err != nil {
		return err
	}

	if *serve {
		if logger.Verbosity() < logger.Debug {
			gin.SetMode(gin.ReleaseMode)
		}
		srv, err := server.New(gen, prov, server.Options{
			OutputPath:     cfg.Heatmap.Output,
			ValidateInputs: cfg.ValidateInputs,
			Defaults:       in,
			Lookback:       cfg.Market.Lookback,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
		})
		if err != nil {
			return err
		}
		return srv.Run(ctx, cfg.Server.Addr)
	}

	if cfg.ValidateInputs {
		if err := in.Validate(); err != nil {
			return err
		}
	}
	fmt.Fprintln(stdout, display.PriceLabel(pricing.Price(in)))

	if !*heatmap {
		return nil
	}
	start := time.Now()
	if _, err := gen.Generate(in, cfg.Heatmap.Output); err != nil {
		return err
	}
	var viewer display.Viewer
	if err := viewer.Reload(cfg.Heatmap.Output); err != nil {
		return errors.New(viewer.Notice())
	}
	w, h := viewer.Texture().Size()
	logger.Infof("heatmap written in %v", time.Since(start))
	fmt.Fprintf(stdout, "Heatmap: %s (%dx%d)\n", cfg.Heatmap.Output, w, h)
	return nil
}

// applyMarket replaces the spot, and optionally the volatility, of in with
// market data for ticker.
func applyMarket(ctx context.Context, prov market.Provider, in pricing.Input, ticker string, withVol bool, lookback time.Duration) (pricing.Input, error) {
	if withVol {
		spot, vol, err := market.Estimate(ctx, prov, ticker, time.Now().UTC(), lookback)
		if err != nil {
			return in, err
		}
		in.Spot, in.Volatility = spot, vol
		logger.Infof("%s: spot=%.4f realized vol=%.4f", ticker, spot, vol)
		return in, nil
	}
	spot, err := prov.Spot(ctx, ticker)
	if err != nil {
		return in, err
	}
	in.Spot = spot
	logger.Infof("%s: spot=%.4f", ticker, spot)
	return in, nil
}
