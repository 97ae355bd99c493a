package interfaces

import (
	"context"
	"encoding/json"
)

// Handler receives the payload of one channel event. Lifecycle events carry
// a synthetic payload: nil for connect, a JSON string reason for disconnect
// and {"message": ...} for connect_error.
type Handler func(payload json.RawMessage)

// Channel is a persistent bidirectional push channel.
type Channel interface {
	// On registers the handler for an event. Registering twice replaces it.
	On(event string, handler Handler)

	// Connect starts the channel in the background and returns. Reconnection
	// is the channel's own business until ctx is cancelled or Close is called.
	Connect(ctx context.Context) error

	// Emit sends a named event with a JSON-encodable payload.
	Emit(ctx context.Context, event string, payload any) error

	// Close stops the channel and any pending reconnect.
	Close() error
}
