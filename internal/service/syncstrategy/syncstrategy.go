package syncstrategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alanyang/statesync/internal/domain/change"
	"github.com/alanyang/statesync/internal/domain/delivery"
	"github.com/alanyang/statesync/internal/port/metrics"
	"github.com/alanyang/statesync/internal/port/session"
	"github.com/alanyang/statesync/internal/port/syncer"
	"github.com/alanyang/statesync/internal/service/dispatch"
)

const tracerName = "github.com/alanyang/statesync/service/syncstrategy"

var (
	errPublishPanic = errors.New("publish panicked")
	errResolvePanic = errors.New("channel resolution panicked")
)

// Submitter is the slice of the dispatch queue the service needs.
type Submitter interface {
	Submit(task dispatch.Task) error
}

// Service is the Sync Strategy: it turns a notify call into a Change Record
// and hands it to the single dispatch worker for delivery on the session's
// sync channel.
type Service struct {
	queue    Submitter
	recorder metrics.Recorder
	tracer   trace.Tracer
	now      func() time.Time
}

var _ syncer.Strategy = (*Service)(nil)

type Option func(*Service)

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(queue Submitter, recorder metrics.Recorder, opts ...Option) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	s := &Service{
		queue:    queue,
		recorder: recorder,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveChannel returns the channel all notifications for sess share.
// Resolution is never cached: each call asks the current session.
func ResolveChannel(sess session.Session) (session.Channel, error) {
	ch, err := sess.Channel(change.SyncChannel)
	if err != nil {
		return nil, fmt.Errorf("resolve channel %s for session %s: %w", change.SyncChannel, sess.ID(), err)
	}
	return ch, nil
}

// sessionActive treats a nil session, including a typed nil whose Active
// dereferences its receiver, as absent.
func sessionActive(sess session.Session) (active bool) {
	if sess == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			active = false
		}
	}()
	return sess.Active()
}

// resolve keeps a panicking Session.Channel on the producer's side of the
// call from escaping Notify.
func resolve(sess session.Session) (ch session.Channel, err error) {
	defer func() {
		if r := recover(); r != nil {
			ch, err = nil, fmt.Errorf("%w: %v", errResolvePanic, r)
		}
	}()
	return ResolveChannel(sess)
}

// Notify schedules delivery of one change to sess. A nil or inactive session
// is a silent no-op. Notify never blocks on the channel and never reports
// delivery failures to the caller.
func (s *Service) Notify(ctx context.Context, sess session.Session, op change.Op, path string, value any) {
	start := s.now()
	if !sessionActive(sess) {
		slog.DebugContext(ctx, "no active session, not syncing", "path", path)
		return
	}

	if !op.Valid() {
		slog.WarnContext(ctx, "rejecting sync with unknown op", "op", op.String(), "path", path, "session_id", sess.ID())
		s.report(ctx, delivery.Report{
			Op:      op.String(),
			Path:    path,
			Outcome: delivery.OutcomeRejected,
			Err:     change.ErrUnknownOp,
			Total:   s.now().Sub(start),
		})
		return
	}

	ch, err := resolve(sess)
	if err != nil {
		slog.ErrorContext(ctx, "sync channel resolution failed", "session_id", sess.ID(), "path", path, "error", err)
		s.report(ctx, delivery.Report{
			Channel: change.SyncChannel,
			Op:      op.String(),
			Path:    path,
			Outcome: delivery.OutcomeResolveFailed,
			Err:     err,
			Total:   s.now().Sub(start),
		})
		return
	}

	rec := change.New(op, path, value)
	err = s.queue.Submit(func(taskCtx context.Context, enqueued time.Time) {
		s.deliver(taskCtx, ch, rec, start, enqueued)
	})
	if err != nil {
		slog.WarnContext(ctx, "sync dropped before dispatch", "session_id", sess.ID(), "path", rec.Path, "error", err)
		s.report(ctx, delivery.Report{
			Channel: ch.Name(),
			Op:      rec.Op,
			Path:    rec.Path,
			Outcome: delivery.OutcomeDropped,
			Err:     err,
			Total:   s.now().Sub(start),
		})
	}
}

// deliver runs on the dispatch worker.
func (s *Service) deliver(ctx context.Context, ch session.Channel, rec change.Record, start, enqueued time.Time) {
	ctx, span := s.tracer.Start(ctx, "statesync.publish", trace.WithAttributes(
		attribute.String("statesync.channel", ch.Name()),
		attribute.String("statesync.op", rec.Op),
		attribute.String("statesync.path", rec.Path),
	))
	defer span.End()

	prePublish := s.now()
	err := publish(ctx, ch, rec)
	end := s.now()

	r := delivery.Report{
		Channel: ch.Name(),
		Op:      rec.Op,
		Path:    rec.Path,
		Outcome: delivery.OutcomeDelivered,
		Waited:  prePublish.Sub(enqueued),
		Publish: end.Sub(prePublish),
		Total:   end.Sub(start),
	}

	if err != nil {
		r.Outcome = delivery.OutcomePublishFailed
		r.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.WarnContext(ctx, "sync publish failed",
			"channel", r.Channel,
			"path", r.Path,
			"total", r.Total,
			"publish", r.Publish,
			"error", err,
		)
	} else {
		slog.InfoContext(ctx, "sync performed",
			"channel", r.Channel,
			"path", r.Path,
			"total", r.Total,
			"publish", r.Publish,
		)
	}
	s.report(ctx, r)
}

// publish wraps the channel's Publish so a panicking transport fails only
// this record.
func publish(ctx context.Context, ch session.Channel, rec change.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPublishPanic, r)
		}
	}()
	return ch.Publish(ctx, []change.Record{rec})
}

func (s *Service) report(ctx context.Context, r delivery.Report) {
	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "delivery recorder panicked", "panic", p)
		}
	}()
	s.recorder.RecordDelivery(ctx, r)
}
