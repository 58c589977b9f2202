package syncer

import (
	"context"

	"github.com/alanyang/statesync/internal/domain/change"
	"github.com/alanyang/statesync/internal/port/session"
)

// Strategy pushes a state change to an observer session.
// [DIP] Producers depend on this abstraction, not on the dispatch service.
// Notify never reports delivery failures back to the caller.
type Strategy interface {
	Notify(ctx context.Context, sess session.Session, op change.Op, path string, value any)
}
