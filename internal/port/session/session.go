package session

import (
	"context"
	"errors"

	"github.com/alanyang/statesync/internal/domain/change"
)

var ErrSessionClosed = errors.New("session closed")

// Channel is one logical outbound stream to an observer.
type Channel interface {
	Name() string
	Publish(ctx context.Context, records []change.Record) error
}

// Session is a handle on an observer that may or may not still be reachable.
// Active is checked on every notification and must not be cached by callers.
type Session interface {
	ID() string
	Active() bool
	Channel(name string) (Channel, error)
}
