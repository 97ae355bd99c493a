package interfaces

import "context"

// Confirmer is the host's blocking yes/no prompt.
type Confirmer interface {
	Confirm(message string) bool
}

// Alerter surfaces a message the user must see.
type Alerter interface {
	Alert(message string)
}

// Navigator leaves the dashboard for another location, e.g. on logout.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}
