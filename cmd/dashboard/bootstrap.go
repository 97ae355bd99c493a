package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"algo-dashboard/internal/api"
	"algo-dashboard/internal/api/apiobs"
	"algo-dashboard/internal/channel"
	"algo-dashboard/internal/dashboard"
	"algo-dashboard/internal/dashboard/dashboardobs"
	"algo-dashboard/internal/eventlog"
	"algo-dashboard/internal/interfaces"
	"algo-dashboard/internal/logger"
	"algo-dashboard/internal/notify"
	"algo-dashboard/internal/notify/telegram"
	"algo-dashboard/internal/store"
	"algo-dashboard/internal/terminal"
	"algo-dashboard/internal/trace"
	"algo-dashboard/internal/view"

	"github.com/joho/godotenv"
)

// app holds everything main needs to run and shut down.
type app struct {
	cfg       *store.Config
	dash      interfaces.Dashboard
	screen    *terminal.Screen
	retention *eventlog.Retention
	telegram  *telegram.Client
}

// initializeSystem initializes logger and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// initializeBackend returns the raw backend, which also navigates, and its
// observed wrapper.
func initializeBackend(cfg *store.Config) (*api.Backend, interfaces.Backend) {
	opts := []api.ClientOption{
		api.WithBaseURL(cfg.Backend.BaseURL),
		api.WithTimeout(time.Duration(cfg.Backend.TimeoutSeconds) * time.Second),
		api.WithHeader("Origin", cfg.Backend.BaseURL),
	}
	if cfg.Secrets.SessionCookie != "" {
		opts = append(opts, api.WithCookie(cfg.Backend.SessionCookieName, cfg.Secrets.SessionCookie))
	}
	backend := api.NewBackend(api.NewClient(opts...), api.BackendParams{
		StatePath:     cfg.Backend.StatePath,
		DashboardPath: cfg.Backend.DashboardPath,
		LogoutURL:     cfg.Backend.LogoutURL,
	})
	return backend, apiobs.Wrap(backend)
}

// initializeChannel builds the live channel with the same session as the
// HTTP client.
func initializeChannel(cfg *store.Config) (*channel.Client, error) {
	var cookies []*http.Cookie
	if cfg.Secrets.SessionCookie != "" {
		cookies = append(cookies, &http.Cookie{Name: cfg.Backend.SessionCookieName, Value: cfg.Secrets.SessionCookie})
	}
	return channel.New(channel.Options{
		URL:               cfg.Channel.URL,
		Cookies:           cookies,
		Origin:            cfg.Backend.BaseURL,
		ReconnectDelay:    time.Duration(cfg.Channel.ReconnectDelayMs) * time.Millisecond,
		ReconnectDelayMax: time.Duration(cfg.Channel.ReconnectDelayMaxMs) * time.Millisecond,
		Randomization:     cfg.Jitter(),
		MaxAttempts:       cfg.Channel.MaxAttempts,
	})
}

// initializeJournal opens the event journal and schedules its retention.
// Both are nil when the journal is disabled.
func initializeJournal(ctx context.Context, cfg *store.Config) (interfaces.Journal, *eventlog.Retention, error) {
	if !cfg.Journal.Enabled {
		logger.Info(ctx, "Event journal disabled")
		return nil, nil, nil
	}
	j := eventlog.New(cfg.Journal.Dir)
	if cfg.Journal.RetentionDays <= 0 {
		return j, nil, nil
	}
	r, err := eventlog.NewRetention(j, cfg.Journal.CompressSchedule, cfg.Journal.RetentionDays)
	if err != nil {
		return nil, nil, err
	}
	r.Start()
	return j, r, nil
}

// initializeTelegram returns nil when forwarding is disabled or the bot
// cannot be reached; the dashboard runs without it.
func initializeTelegram(ctx context.Context, cfg *store.Config) *telegram.Client {
	if !cfg.Telegram.Enabled {
		return nil
	}
	tg, err := telegram.NewClient(cfg.Secrets.TelegramToken, cfg.Telegram.ChatID)
	if err != nil {
		logger.ErrorWithErr(ctx, "Telegram forwarding disabled", err)
		return nil
	}
	logger.Info(ctx, "Forwarding alerts to Telegram", "chat_id", cfg.Telegram.ChatID)
	return tg
}

// initializeApp wires the backend, channel, host and dashboard client.
func initializeApp(ctx context.Context, cfg *store.Config) (*app, error) {
	rawBackend, backend := initializeBackend(cfg)

	ch, err := initializeChannel(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create live channel: %w", err)
	}

	journal, retention, err := initializeJournal(ctx, cfg)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(cfg.Actions))
	for _, a := range cfg.Actions {
		names = append(names, a.Name)
	}
	board := view.NewBoard()
	surface := view.NewSurface(board.Bindings(names...))
	screen := terminal.New(os.Stdout, os.Stdin, board, terminal.Options{
		PrimaryIndex: cfg.Display.PrimaryIndex,
		Actions:      cfg.Actions,
		NoColor:      cfg.Display.NoColor,
		Clear:        true,
	})

	tg := initializeTelegram(ctx, cfg)
	var alerter interfaces.Alerter = screen
	if tg != nil {
		alerter = notify.Fanout(screen, tg)
	}

	client, err := dashboard.New(dashboard.Params{
		Backend:      backend,
		Channel:      ch,
		Surface:      surface,
		Confirmer:    screen,
		Alerter:      alerter,
		Navigator:    rawBackend,
		Journal:      journal,
		Actions:      cfg.Actions,
		PrimaryIndex: cfg.Display.PrimaryIndex,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		dash:      dashboardobs.Wrap(client),
		screen:    screen,
		retention: retention,
		telegram:  tg,
	}, nil
}

// shutdown releases everything in reverse order of creation.
func (a *app) shutdown(ctx context.Context) {
	if err := a.dash.Close(); err != nil {
		logger.Warn(ctx, "Failed to close live channel", "error", err)
	}
	if a.telegram != nil {
		a.telegram.Close()
	}
	if a.retention != nil {
		a.retention.Stop()
	}
	if err := trace.Shutdown(ctx); err != nil {
		logger.Warn(ctx, "Failed to flush traces", "error", err)
	}
}
