package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/alanyang/statesync/internal/domain/change"
	"github.com/alanyang/statesync/internal/port/session"
)

// PublishCall records a single Publish delivered to a CaptureChannel.
type PublishCall struct {
	Channel string
	Records []change.Record
}

// CaptureChannel is a test-double session.Channel.
// It records every call with a mutex so it is safe for concurrent use.
// PublishFunc, when set, runs before the call is recorded and its error is returned.
type CaptureChannel struct {
	ChannelName string
	PublishFunc func(ctx context.Context, records []change.Record) error

	mu     sync.Mutex
	calls  []PublishCall
	notify chan struct{}
}

func NewCaptureChannel(name string) *CaptureChannel {
	return &CaptureChannel{ChannelName: name, notify: make(chan struct{}, 1024)}
}

func (c *CaptureChannel) Name() string { return c.ChannelName }

func (c *CaptureChannel) Publish(ctx context.Context, records []change.Record) error {
	var err error
	if c.PublishFunc != nil {
		err = c.PublishFunc(ctx, records)
	}

	c.mu.Lock()
	c.calls = append(c.calls, PublishCall{Channel: c.ChannelName, Records: records})
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return err
}

// Calls returns a copy of every recorded publish, in order.
func (c *CaptureChannel) Calls() []PublishCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PublishCall, len(c.calls))
	copy(out, c.calls)
	return out
}

// Records flattens every published record, in order.
func (c *CaptureChannel) Records() []change.Record {
	var out []change.Record
	for _, call := range c.Calls() {
		out = append(out, call.Records...)
	}
	return out
}

// Published signals once per recorded publish (buffered, best-effort).
func (c *CaptureChannel) Published() <-chan struct{} { return c.notify }

// FakeSession is a session.Session over a fixed channel.
type FakeSession struct {
	SessionID  string
	Ch         session.Channel
	ResolveErr error

	inactive atomic.Bool
	resolves atomic.Int64
}

func NewFakeSession(id string, ch session.Channel) *FakeSession {
	return &FakeSession{SessionID: id, Ch: ch}
}

func (s *FakeSession) ID() string { return s.SessionID }

func (s *FakeSession) Active() bool { return s != nil && !s.inactive.Load() }

// SetActive flips the session's liveness.
func (s *FakeSession) SetActive(active bool) { s.inactive.Store(!active) }

func (s *FakeSession) Channel(_ string) (session.Channel, error) {
	s.resolves.Add(1)
	if s.ResolveErr != nil {
		return nil, s.ResolveErr
	}
	return s.Ch, nil
}

// Resolves returns how many times Channel was called.
func (s *FakeSession) Resolves() int { return int(s.resolves.Load()) }
