package metrics

import (
	"context"

	"github.com/alanyang/statesync/internal/domain/delivery"
)

// Recorder receives the outcome of every notification.
// Implementations must be safe for concurrent use.
type Recorder interface {
	RecordDelivery(ctx context.Context, r delivery.Report)
}

// Nop discards reports.
type Nop struct{}

func (Nop) RecordDelivery(context.Context, delivery.Report) {}
