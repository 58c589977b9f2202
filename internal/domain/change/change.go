package change

import (
	"errors"
	"fmt"
	"strings"
)

// SyncChannel is the one channel every observer session receives changes on.
const SyncChannel = "/sync"

var ErrUnknownOp = errors.New("change: unknown op")

type Op uint8

const (
	OpCreate Op = iota + 1
	OpUpdate
	OpDelete
)

var opNames = map[Op]string{
	OpCreate: "create",
	OpUpdate: "update",
	OpDelete: "delete",
}

// String returns the lower-case wire form of the op.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

func (o Op) Valid() bool {
	_, ok := opNames[o]
	return ok
}

// ParseOp accepts the op name in any case.
func ParseOp(s string) (Op, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for op, n := range opNames {
		if n == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOp, s)
}

// Record describes one state mutation destined for an observer.
// Records are never mutated once built; Value is owned by the caller and
// passed through untouched.
type Record struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// New builds a Record. A non-empty path gains a leading "/"; an empty path
// stays empty.
func New(op Op, path string, value any) Record {
	if len(path) > 0 {
		path = "/" + path
	}
	return Record{
		Op:    op.String(),
		Path:  path,
		Value: value,
	}
}

// Envelope is the frame transports put on the wire.
type Envelope struct {
	Channel string   `json:"channel"`
	Data    []Record `json:"data"`
}

func NewEnvelope(channel string, records []Record) Envelope {
	return Envelope{Channel: channel, Data: records}
}
