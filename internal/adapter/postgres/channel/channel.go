package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyang/statesync/internal/domain/change"
	"github.com/alanyang/statesync/internal/port/session"
)

// SessionID is the fixed ID of the Postgres mirror session.
const SessionID = "postgres"

// Handler receives every envelope published to the mirror.
type Handler func(ctx context.Context, env change.Envelope)

// Session mirrors sync traffic onto Postgres NOTIFY so observers in other
// processes can LISTEN for it. NOTIFY is transient: nothing is stored.
type Session struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

var _ session.Session = (*Session)(nil)

func New(pool *pgxpool.Pool) *Session {
	return &Session{pool: pool}
}

func (s *Session) ID() string { return SessionID }

func (s *Session) Active() bool { return s != nil && s.pool != nil && !s.closed.Load() }

// Close marks the mirror inactive. The pool is owned by the caller.
func (s *Session) Close() { s.closed.Store(true) }

func (s *Session) Channel(name string) (session.Channel, error) {
	if !s.Active() {
		return nil, session.ErrSessionClosed
	}
	return &notifyChannel{name: name, sess: s}, nil
}

type notifyChannel struct {
	name string
	sess *Session
}

func (c *notifyChannel) Name() string { return c.name }

// Publish sends the envelope via pg_notify on the Postgres channel for name.
func (c *notifyChannel) Publish(ctx context.Context, records []change.Record) error {
	if !c.sess.Active() {
		return session.ErrSessionClosed
	}
	payload, err := json.Marshal(change.NewEnvelope(c.name, records))
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}

	pgChannel := ChannelName(c.name)
	if _, err := c.sess.pool.Exec(ctx, "SELECT pg_notify($1, $2)", pgChannel, string(payload)); err != nil {
		return fmt.Errorf("publishing on channel %s: %w", pgChannel, err)
	}
	return nil
}

// listenRetryDelay spaces out waits after a transient error.
const listenRetryDelay = time.Second

// Subscription is a running LISTEN loop.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Unsubscribe stops the LISTEN loop and waits for it to release its connection.
func (s *Subscription) Unsubscribe() {
	s.cancel()
	<-s.done
}

// Done is closed when the LISTEN loop exits, whether by Unsubscribe or
// because its connection was lost.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Listen starts a background goroutine that LISTENs on the Postgres channel
// for name and invokes handler for every envelope received.
func Listen(ctx context.Context, pool *pgxpool.Pool, name string, handler Handler) (*Subscription, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection for LISTEN: %w", err)
	}

	pgChannel := ChannelName(name)
	if _, err := conn.Exec(ctx, "LISTEN "+pgChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("executing LISTEN on channel %s: %w", pgChannel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer func() {
			conn.Exec(context.Background(), "UNLISTEN "+pgChannel)
			conn.Release()
			close(sub.done)
		}()

		for {
			notification, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() != nil {
					return
				}
				if conn.Conn().IsClosed() {
					slog.Error("postgres listener connection lost", "channel", pgChannel, "error", err)
					return
				}
				slog.Warn("postgres listener wait failed", "channel", pgChannel, "error", err)
				select {
				case <-subCtx.Done():
					return
				case <-time.After(listenRetryDelay):
				}
				continue
			}

			var env change.Envelope
			if err := json.Unmarshal([]byte(notification.Payload), &env); err != nil {
				slog.Warn("postgres listener dropped malformed payload", "channel", pgChannel, "error", err)
				continue
			}
			handler(subCtx, env)
		}
	}()

	return sub, nil
}

// ChannelName converts a sync channel name into a safe Postgres identifier:
// "/sync" becomes "statesync_sync".
func ChannelName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		b := name[i]
		switch {
		case b >= 'a' && b <= 'z', b >= '0' && b <= '9', b == '_':
			out = append(out, b)
		case b >= 'A' && b <= 'Z':
			out = append(out, b+('a'-'A'))
		case len(out) > 0 && out[len(out)-1] != '_':
			out = append(out, '_')
		}
	}
	for len(out) > 0 && out[len(out)-1] == '_' {
		out = out[:len(out)-1]
	}
	return "statesync_" + string(out)
}
