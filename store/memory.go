package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

type watcher struct {
	loc  location
	feed *feed
}

// MemoryStore keeps everything in process. It backs tests and single-node
// development runs.
type MemoryStore struct {
	mu        sync.Mutex
	docs      map[string][]byte
	logs      map[string][]Snapshot
	watchers  map[string]map[*watcher]struct{}
	appenders map[string]map[*feed]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string][]byte),
		logs:      make(map[string][]Snapshot),
		watchers:  make(map[string]map[*watcher]struct{}),
		appenders: make(map[string]map[*feed]struct{}),
	}
}

func (m *MemoryStore) Set(ctx context.Context, path string, value any) error {
	return m.Transact(ctx, path, func(Snapshot) (map[string]any, error) {
		return map[string]any{"": value}, nil
	})
}

func (m *MemoryStore) Update(ctx context.Context, path string, fields map[string]any) error {
	return m.Transact(ctx, path, func(Snapshot) (map[string]any, error) {
		return fields, nil
	})
}

func (m *MemoryStore) Transact(ctx context.Context, path string, fn TxFunc) error {
	loc, err := parsePath(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := snapshotOf(loc, m.docs[loc.doc])
	if err != nil {
		return err
	}

	changes, err := fn(current)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}

	next, err := applyChanges(m.docs[loc.doc], loc.field, changes)
	if err != nil {
		return err
	}

	if next == nil {
		delete(m.docs, loc.doc)
	} else {
		m.docs[loc.doc] = next
	}

	m.notifyLocked(loc.doc, next)
	return nil
}

func (m *MemoryStore) notifyLocked(doc string, value []byte) {
	for w := range m.watchers[doc] {
		snap, err := snapshotOf(w.loc, value)
		if err != nil {
			continue
		}
		w.feed.push(snap)
	}
}

func (m *MemoryStore) Get(ctx context.Context, path string) (Snapshot, error) {
	loc, err := parsePath(path)
	if err != nil {
		return Snapshot{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return snapshotOf(loc, m.docs[loc.doc])
}

func (m *MemoryStore) Remove(ctx context.Context, path string) error {
	loc, err := parsePath(path)
	if err != nil {
		return err
	}

	if loc.isDocument() {
		m.mu.Lock()
		delete(m.logs, loc.doc)
		m.mu.Unlock()
	}

	return m.Set(ctx, path, nil)
}

func (m *MemoryStore) Append(ctx context.Context, path string, value any) (string, error) {
	loc, err := parsePath(path)
	if err != nil {
		return "", err
	}
	if !loc.isDocument() {
		return "", ErrInvalidPath
	}

	b, err := json.Marshal(value)
	if err != nil {
		return "", err
	}

	key := uuid.NewString()
	child := Snapshot{Path: Join(loc.doc, key), Key: key, Exists: true, Value: b}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.logs[loc.doc] = append(m.logs[loc.doc], child)
	for f := range m.appenders[loc.doc] {
		f.push(child)
	}

	return key, nil
}

func (m *MemoryStore) Children(ctx context.Context, path string) ([]Snapshot, error) {
	loc, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Snapshot(nil), m.logs[loc.doc]...), nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, path string, fn Handler) (*Subscription, error) {
	loc, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := snapshotOf(loc, m.docs[loc.doc])
	if err != nil {
		return nil, err
	}

	w := &watcher{loc: loc, feed: newFeed(fn)}
	if m.watchers[loc.doc] == nil {
		m.watchers[loc.doc] = make(map[*watcher]struct{})
	}
	m.watchers[loc.doc][w] = struct{}{}
	w.feed.push(current)

	return bind(ctx, newSubscription(func() {
		m.mu.Lock()
		delete(m.watchers[loc.doc], w)
		m.mu.Unlock()
		w.feed.stop()
	})), nil
}

func (m *MemoryStore) SubscribeAppended(ctx context.Context, path string, fn Handler) (*Subscription, error) {
	loc, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	f := newFeed(fn)

	m.mu.Lock()
	if m.appenders[loc.doc] == nil {
		m.appenders[loc.doc] = make(map[*feed]struct{})
	}
	m.appenders[loc.doc][f] = struct{}{}
	m.mu.Unlock()

	return bind(ctx, newSubscription(func() {
		m.mu.Lock()
		delete(m.appenders[loc.doc], f)
		m.mu.Unlock()
		f.stop()
	})), nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ws := range m.watchers {
		for w := range ws {
			w.feed.stop()
		}
	}
	for _, fs := range m.appenders {
		for f := range fs {
			f.stop()
		}
	}

	m.watchers = make(map[string]map[*watcher]struct{})
	m.appenders = make(map[string]map[*feed]struct{})
	return nil
}
