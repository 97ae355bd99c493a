// Command mockbackend serves a simulated trading backend for local work on
// the dashboard client.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"algo-dashboard/internal/mockbackend"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", ":5000", "listen address")
	every := flag.Duration("update-every", 2*time.Second, "market_update interval")
	tradeEvery := flag.Int("trade-every", 15, "enter or exit a trade every n updates (0 disables)")
	seed := flag.Int64("seed", 0, "random seed (0 picks one)")
	dev := flag.Bool("dev", true, "human-readable logs")
	flag.Parse()

	var log *zap.Logger
	var err error
	if *dev {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	srv := mockbackend.New(mockbackend.Config{
		SessionCookieName: os.Getenv("DASH_SESSION_COOKIE_NAME"),
		SessionCookie:     os.Getenv("DASH_SESSION_COOKIE"),
		UpdateEvery:       *every,
		TradeEvery:        *tradeEvery,
		Seed:              *seed,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{Addr: *addr, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go srv.Run(ctx)
	go func() {
		log.Info("mock backend listening", zap.String("addr", *addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
}
