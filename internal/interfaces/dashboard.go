package interfaces

import (
	"context"

	"algo-dashboard/internal/types"
)

// Dashboard is the sync client as seen by a host.
type Dashboard interface {
	// Run serialises every surface update until ctx is done.
	Run(ctx context.Context) error
	FetchInitialSnapshot(ctx context.Context) error
	ConnectLiveChannel(ctx context.Context) error
	SubmitEmergencyAction(ctx context.Context, name string) (types.CommandResponse, error)
	Logout(ctx context.Context) error
	Close() error
}
