package dashboardobs

import (
	"context"
	"errors"
	"time"

	"algo-dashboard/internal/dashboard"
	"algo-dashboard/internal/interfaces"
	"algo-dashboard/internal/logger"
	"algo-dashboard/internal/trace"
	"algo-dashboard/internal/types"
)

type observableDashboard struct {
	dash interfaces.Dashboard
}

var _ interfaces.Dashboard = (*observableDashboard)(nil)

func Wrap(dash interfaces.Dashboard) interfaces.Dashboard {
	return &observableDashboard{
		dash: dash,
	}
}

func (od *observableDashboard) Run(ctx context.Context) error {
	logger.InfoSkip(ctx, 1, "Dashboard event loop started")
	err := od.dash.Run(ctx)
	logger.InfoSkip(ctx, 1, "Dashboard event loop stopped")
	return err
}

func (od *observableDashboard) FetchInitialSnapshot(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "dashboard.FetchInitialSnapshot")
	defer span.End()

	start := time.Now()
	if err := od.dash.FetchInitialSnapshot(ctx); err != nil {
		logger.WarnSkip(ctx, 1, "Initial snapshot unavailable",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return err
	}
	logger.InfoSkip(ctx, 1, "Initial snapshot loaded",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (od *observableDashboard) ConnectLiveChannel(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "dashboard.ConnectLiveChannel")
	defer span.End()

	if err := od.dash.ConnectLiveChannel(ctx); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Live channel failed to start", err)
		return err
	}
	logger.InfoSkip(ctx, 1, "Live channel started")
	return nil
}

func (od *observableDashboard) SubmitEmergencyAction(ctx context.Context, name string) (types.CommandResponse, error) {
	ctx, span := trace.StartSpan(ctx, "dashboard.SubmitEmergencyAction")
	defer span.End()
	trace.Annotate(ctx, "command.name", name)

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Submitting command", "command", name)

	resp, err := od.dash.SubmitEmergencyAction(ctx, name)
	switch {
	case errors.Is(err, dashboard.ErrDeclined), errors.Is(err, dashboard.ErrActionInFlight):
		logger.InfoSkip(ctx, 1, "Command not sent", "command", name, "reason", err)
		return resp, err
	case err != nil:
		logger.ErrorWithErrSkip(ctx, 1, "Command failed", err,
			"command", name,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}

	logger.InfoSkip(ctx, 1, "Command completed",
		"command", name,
		"message", resp.Message,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (od *observableDashboard) Logout(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "dashboard.Logout")
	defer span.End()

	if err := od.dash.Logout(ctx); err != nil {
		if errors.Is(err, dashboard.ErrDeclined) {
			logger.InfoSkip(ctx, 1, "Logout declined")
			return err
		}
		logger.ErrorWithErrSkip(ctx, 1, "Logout failed", err)
		return err
	}
	return nil
}

func (od *observableDashboard) Close() error {
	return od.dash.Close()
}
