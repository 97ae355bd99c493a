// Command dashboard is a terminal client for the trading backend's live
// dashboard: it renders the market snapshot, shows trade alerts and relays
// the emergency square-off and logout commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"algo-dashboard/internal/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	flag.Parse()

	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, *configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	a, err := initializeApp(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to start dashboard", err)
		os.Exit(1)
	}

	go a.dash.Run(ctx)
	go a.screen.PaintLoop(ctx)

	logger.Info(ctx, "Dashboard started", "backend", cfg.Backend.BaseURL, "channel", cfg.Channel.URL)

	// a failed first fetch is shown on the status line; live pushes still render
	go a.dash.FetchInitialSnapshot(ctx)
	if err := a.dash.ConnectLiveChannel(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Live channel unavailable", err)
	}

	if err := a.screen.Run(ctx, a.dash); err != nil {
		logger.ErrorWithErr(ctx, "Terminal input failed", err)
	}

	stop()
	logger.Info(context.Background(), "Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.shutdown(shutdownCtx)
}
