package apiobs

import (
	"context"

	"algo-dashboard/internal/interfaces"
	"algo-dashboard/internal/logger"
	"algo-dashboard/internal/trace"
	"algo-dashboard/internal/types"
)

// observableBackend wraps a Backend with observability (logging & tracing)
type observableBackend struct {
	backend interfaces.Backend
}

// Compile-time interface check
var _ interfaces.Backend = (*observableBackend)(nil)

// Wrap wraps a backend with observability middleware
func Wrap(backend interfaces.Backend) interfaces.Backend {
	return &observableBackend{
		backend: backend,
	}
}

// FetchSnapshot fetches the dashboard state with observability
func (ob *observableBackend) FetchSnapshot(ctx context.Context) (*types.MarketSnapshot, error) {
	ctx, span := trace.StartSpan(ctx, "backend.FetchSnapshot")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching dashboard state")

	snap, err := ob.backend.FetchSnapshot(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch dashboard state", err)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Dashboard state fetched",
		"trend", snap.OverallTrend.Text(),
		"indices", len(snap.Indices),
		"trade_open", snap.ActiveTrade.IsOpen(),
	)
	return snap, nil
}

// SendCommand relays a command with observability
func (ob *observableBackend) SendCommand(ctx context.Context, path string) (types.CommandResponse, error) {
	ctx, span := trace.StartSpan(ctx, "backend.SendCommand")
	defer span.End()
	trace.Annotate(ctx, "command.path", path)

	logger.InfoSkip(ctx, 1, "Sending command", "path", path)

	resp, err := ob.backend.SendCommand(ctx, path)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Command failed", err, "path", path, "message", resp.Message)
		return resp, err
	}

	logger.InfoSkip(ctx, 1, "Command acknowledged", "path", path, "message", resp.Message)
	return resp, nil
}

// LogoutURL resolves the logout location with observability
func (ob *observableBackend) LogoutURL(ctx context.Context) (string, error) {
	ctx, span := trace.StartSpan(ctx, "backend.LogoutURL")
	defer span.End()

	u, err := ob.backend.LogoutURL(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to resolve logout URL", err)
		return "", err
	}

	logger.DebugSkip(ctx, 1, "Logout URL resolved", "url", u)
	return u, nil
}
