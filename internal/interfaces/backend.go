package interfaces

import (
	"context"

	"algo-dashboard/internal/types"
)

// Backend is the dashboard's HTTP view of the external trading backend.
type Backend interface {
	// FetchSnapshot pulls the latest dashboard state.
	FetchSnapshot(ctx context.Context) (*types.MarketSnapshot, error)

	// SendCommand POSTs a body-less command to path and returns the backend
	// reply. A failed command may still carry the backend's message.
	SendCommand(ctx context.Context, path string) (types.CommandResponse, error)

	// LogoutURL returns the server-provided logout location.
	LogoutURL(ctx context.Context) (string, error)
}
