package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 16

// change is what gets published on a document's channel after every write.
type change struct {
	Exists bool            `json:"exists"`
	Value  json.RawMessage `json:"value,omitempty"`
}

type RedisOptions struct {
	// Prefix namespaces every key and channel.
	Prefix string
	// TTL expires idle documents and logs. Zero keeps them forever.
	TTL time.Duration
}

// RedisStore keeps one JSON string per document, one list per append log and
// uses pub/sub channels for change feeds. Writes go through WATCH/MULTI so a
// document is never written from a stale read.
type RedisStore struct {
	rdb  *redis.Client
	opts RedisOptions
}

func NewRedisStore(rdb *redis.Client, opts RedisOptions) *RedisStore {
	if opts.Prefix == "" {
		opts.Prefix = "ludo:"
	}
	return &RedisStore{rdb: rdb, opts: opts}
}

func (s *RedisStore) docKey(doc string) string {
	return s.opts.Prefix + "doc:" + doc
}

func (s *RedisStore) logKey(doc string) string {
	return s.opts.Prefix + "log:" + doc
}

func (s *RedisStore) changeChannel(doc string) string {
	return s.opts.Prefix + "changes:" + doc
}

func (s *RedisStore) appendChannel(doc string) string {
	return s.opts.Prefix + "appended:" + doc
}

func (s *RedisStore) Set(ctx context.Context, path string, value any) error {
	return s.Transact(ctx, path, func(Snapshot) (map[string]any, error) {
		return map[string]any{"": value}, nil
	})
}

func (s *RedisStore) Update(ctx context.Context, path string, fields map[string]any) error {
	return s.Transact(ctx, path, func(Snapshot) (map[string]any, error) {
		return fields, nil
	})
}

func (s *RedisStore) Transact(ctx context.Context, path string, fn TxFunc) error {
	loc, err := parsePath(path)
	if err != nil {
		return err
	}

	key := s.docKey(loc.doc)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		current, err := snapshotOf(loc, raw)
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

		next, err := applyChanges(raw, loc.field, changes)
		if err != nil {
			return err
		}

		msg, err := json.Marshal(change{Exists: next != nil, Value: next})
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, next, s.opts.TTL)
			}
			pipe.Publish(ctx, s.changeChannel(loc.doc), msg)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	return fmt.Errorf("%s: %w", path, ErrConflict)
}

func (s *RedisStore) Get(ctx context.Context, path string) (Snapshot, error) {
	loc, err := parsePath(path)
	if err != nil {
		return Snapshot{}, err
	}

	raw, err := s.rdb.Get(ctx, s.docKey(loc.doc)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Snapshot{}, err
	}

	return snapshotOf(loc, raw)
}

func (s *RedisStore) Remove(ctx context.Context, path string) error {
	loc, err := parsePath(path)
	if err != nil {
		return err
	}

	if loc.isDocument() {
		if err := s.rdb.Del(ctx, s.logKey(loc.doc)).Err(); err != nil {
			return err
		}
	}

	return s.Set(ctx, path, nil)
}

func (s *RedisStore) Append(ctx context.Context, path string, value any) (string, error) {
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
	entry, err := json.Marshal(Snapshot{Path: Join(loc.doc, key), Key: key, Exists: true, Value: b})
	if err != nil {
		return "", err
	}

	logKey := s.logKey(loc.doc)

	// RPUSH and PUBLISH in one MULTI so the feed order matches the log order.
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, logKey, entry)
		if s.opts.TTL > 0 {
			pipe.Expire(ctx, logKey, s.opts.TTL)
		}
		pipe.Publish(ctx, s.appendChannel(loc.doc), entry)
		return nil
	})
	if err != nil {
		return "", err
	}

	return key, nil
}

func (s *RedisStore) Children(ctx context.Context, path string) ([]Snapshot, error) {
	loc, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	items, err := s.rdb.LRange(ctx, s.logKey(loc.doc), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Snapshot, 0, len(items))
	for _, item := range items {
		var snap Snapshot
		if err := json.Unmarshal([]byte(item), &snap); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}

	return out, nil
}

func (s *RedisStore) Subscribe(ctx context.Context, path string, fn Handler) (*Subscription, error) {
	loc, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	// subscribe before reading so no change can fall between the two
	pubsub := s.rdb.Subscribe(ctx, s.changeChannel(loc.doc))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	current, err := s.Get(ctx, path)
	if err != nil {
		pubsub.Close()
		return nil, err
	}

	f := newFeed(fn)
	f.push(current)

	go func() {
		for msg := range pubsub.Channel() {
			var c change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				log.Printf("store: bad change message on %s: %v", msg.Channel, err)
				continue
			}

			var doc []byte
			if c.Exists {
				doc = c.Value
			}

			snap, err := snapshotOf(loc, doc)
			if err != nil {
				log.Printf("store: cannot read %s from change: %v", loc.path(), err)
				continue
			}
			f.push(snap)
		}
	}()

	return bind(ctx, newSubscription(func() {
		pubsub.Close()
		f.stop()
	})), nil
}

func (s *RedisStore) SubscribeAppended(ctx context.Context, path string, fn Handler) (*Subscription, error) {
	loc, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	pubsub := s.rdb.Subscribe(ctx, s.appendChannel(loc.doc))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	f := newFeed(fn)

	go func() {
		for msg := range pubsub.Channel() {
			var snap Snapshot
			if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
				log.Printf("store: bad append message on %s: %v", msg.Channel, err)
				continue
			}
			f.push(snap)
		}
	}()

	return bind(ctx, newSubscription(func() {
		pubsub.Close()
		f.stop()
	})), nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
