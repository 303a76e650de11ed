// Package store is the shared key-path store every room, game and chat log
// lives in. Paths are slash separated; the first two segments name a document
// (rooms/AB12CD) and anything deeper addresses a field inside it. Writers get
// single-document atomicity and readers get push notifications.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
)

var (
	ErrInvalidPath = errors.New("path needs at least a collection and a document id")
	ErrNotFound    = errors.New("no value at path")
	ErrConflict    = errors.New("document kept changing, giving up")
)

// Snapshot is the value at a path at one point in time.
type Snapshot struct {
	Path   string          `json:"path"`
	Key    string          `json:"key,omitempty"`
	Exists bool            `json:"exists"`
	Value  json.RawMessage `json:"value,omitempty"`
}

// Decode unmarshals the value into dst, or returns ErrNotFound.
func (s Snapshot) Decode(dst any) error {
	if !s.Exists {
		return ErrNotFound
	}
	return json.Unmarshal(s.Value, dst)
}

type Handler func(Snapshot)

// TxFunc receives the committed value at a path and returns the changes to
// apply to it, keyed relative to that path ("" replaces the value itself). A
// non-nil error aborts the transaction and is returned unchanged.
type TxFunc func(current Snapshot) (map[string]any, error)

type Store interface {
	// Set overwrites the value at path; a nil value removes it.
	Set(ctx context.Context, path string, value any) error
	// Update merges fields into the value at path in one atomic write. Keys are
	// relative paths; nil values delete.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Transact reads, decides and writes one document atomically, retrying
	// when another writer got in first.
	Transact(ctx context.Context, path string, fn TxFunc) error
	Get(ctx context.Context, path string) (Snapshot, error)
	Remove(ctx context.Context, path string) error

	// Append adds a child to the ordered log at path and returns its key.
	Append(ctx context.Context, path string, value any) (string, error)
	// Children returns the log at path in append order.
	Children(ctx context.Context, path string) ([]Snapshot, error)

	// Subscribe calls fn with the current value and then after every change.
	Subscribe(ctx context.Context, path string, fn Handler) (*Subscription, error)
	// SubscribeAppended calls fn once for every child appended from now on.
	SubscribeAppended(ctx context.Context, path string, fn Handler) (*Subscription, error)

	Close() error
}

// Subscription stops a feed. Unsubscribe is safe to call more than once.
type Subscription struct {
	once   sync.Once
	cancel func()
	done   chan struct{}
}

func newSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel, done: make(chan struct{})}
}

func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.cancel()
		close(s.done)
	})
}

// Done is closed once the subscription has ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// bind ends sub when ctx is cancelled.
func bind(ctx context.Context, sub *Subscription) *Subscription {
	if ctx.Done() == nil {
		return sub
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-sub.done:
		}
	}()

	return sub
}

type location struct {
	doc   string
	field []string
}

func (l location) path() string {
	if len(l.field) == 0 {
		return l.doc
	}
	return l.doc + "/" + strings.Join(l.field, "/")
}

func (l location) isDocument() bool {
	return len(l.field) == 0
}

func parsePath(p string) (location, error) {
	segs := splitSegments(p)
	if len(segs) < 2 {
		return location{}, ErrInvalidPath
	}
	return location{doc: segs[0] + "/" + segs[1], field: segs[2:]}, nil
}

func splitSegments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Join builds a store path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}
