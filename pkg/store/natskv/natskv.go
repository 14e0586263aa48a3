// Package natskv feeds a memory store from a NATS JetStream key-value
// bucket. Keys have the form <event>.<collection>.<id>, values are JSON.
package natskv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/fpv-racedash/log"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/pkg/store"
	"github.com/mpapenbr/fpv-racedash/pkg/store/memory"
)

const DefaultBucket = "fpvdash"

type (
	Source struct {
		*memory.Store
		ctx     context.Context
		cancel  context.CancelFunc
		conn    *nats.Conn
		kv      jetstream.KeyValue
		watcher jetstream.KeyWatcher
		bucket  string
		event   string
		l       *log.Logger
	}
	Option func(*Source)
)

var _ store.Source = (*Source)(nil)

func WithBucket(bucket string) Option {
	return func(s *Source) {
		s.bucket = bucket
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Source) {
		s.l = l
	}
}

// Key builds the bucket key of a record.
func Key(event, collection, id string) string {
	return fmt.Sprintf("%s.%s.%s", event, collection, id)
}

// KVRecordID is the id part of the key of a configuration entry.
func KVRecordID(namespace, key string) string {
	return namespace + "." + key
}

// parseKey splits a bucket key into collection and id.
func parseKey(key string) (collection, id string, ok bool) {
	parts := strings.SplitN(key, ".", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// OpenBucket returns the bucket, creating it if needed.
func OpenBucket(ctx context.Context, conn *nats.Conn, bucket string) (jetstream.KeyValue, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, err
	}
	return js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "fpvdash event records",
	})
}

// New starts watching the records of event. It returns once the initial
// content of the bucket has been loaded.
//
//nolint:whitespace // editor/linter issue
func New(
	ctx context.Context,
	conn *nats.Conn,
	event string,
	opts ...Option,
) (*Source, error) {
	s := &Source{
		conn:   conn,
		bucket: DefaultBucket,
		event:  event,
		l:      log.Default().Named("store.nats"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.Store = memory.New(memory.WithLogger(s.l.Named("memory")))
	var err error
	if s.kv, err = OpenBucket(s.ctx, conn, s.bucket); err != nil {
		s.cancel()
		return nil, err
	}
	if s.watcher, err = s.kv.Watch(s.ctx, event+".>"); err != nil {
		s.cancel()
		return nil, err
	}
	initial, err := s.loadInitial()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.l.Info("initial records loaded",
		log.String("bucket", s.bucket), log.String("event", event),
		log.Int("entries", initial))
	go s.watch()
	return s, nil
}

// loadInitial applies all entries delivered before the watcher signals the
// end of the initial values with a nil entry.
func (s *Source) loadInitial() (int, error) {
	entries := []jetstream.KeyValueEntry{}
	for {
		select {
		case <-s.ctx.Done():
			return 0, s.ctx.Err()
		case kve, ok := <-s.watcher.Updates():
			if !ok {
				return 0, store.ErrClosed
			}
			if kve == nil {
				return len(entries), s.Update(func(tx *memory.Tx) error {
					for _, e := range entries {
						s.apply(tx, e)
					}
					return nil
				})
			}
			entries = append(entries, kve)
		}
	}
}

func (s *Source) watch() {
	for kve := range s.watcher.Updates() {
		if kve == nil {
			continue
		}
		s.l.Debug("record update",
			log.String("key", kve.Key()),
			log.String("op", kve.Operation().String()),
			log.Uint64("rev", kve.Revision()))
		if err := s.Update(func(tx *memory.Tx) error {
			s.apply(tx, kve)
			return nil
		}); err != nil {
			s.l.Debug("store closed, stopping watch", log.ErrorField(err))
			return
		}
	}
	s.l.Debug("watch done")
}

// apply maps a bucket entry to a store modification. Broken entries are
// logged and skipped.
func (s *Source) apply(tx *memory.Tx, kve jetstream.KeyValueEntry) {
	collection, id, ok := parseKey(kve.Key())
	if !ok {
		s.l.Warn("ignoring key", log.String("key", kve.Key()))
		return
	}
	var err error
	switch kve.Operation() {
	case jetstream.KeyValuePut:
		err = tx.PutJSON(collection, id, kve.Value())
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		if collection == store.CollectionKV {
			ns, key, _ := strings.Cut(id, ".")
			tx.DeleteKV(ns, key)
			return
		}
		err = tx.Delete(collection, id)
	}
	if err != nil {
		s.l.Warn("ignoring entry", log.String("key", kve.Key()), log.ErrorField(err))
	}
}

func (s *Source) Close() {
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			s.l.Debug("error stopping watch", log.ErrorField(err))
		}
	}
	s.cancel()
	s.Store.Close()
}

// Publisher writes event records into the bucket.
type Publisher struct {
	kv    jetstream.KeyValue
	event string
}

func NewPublisher(kv jetstream.KeyValue, event string) *Publisher {
	return &Publisher{kv: kv, event: event}
}

func (p *Publisher) Put(ctx context.Context, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = p.kv.Put(ctx, Key(p.event, collection, id), data)
	return err
}

func (p *Publisher) Delete(ctx context.Context, collection, id string) error {
	return p.kv.Delete(ctx, Key(p.event, collection, id))
}

// PublishAll writes all records and returns the number of entries written.
//
//nolint:cyclop // one loop per collection
func (p *Publisher) PublishAll(ctx context.Context, r model.Records) (int, error) {
	n := 0
	put := func(collection, id string, v any) error {
		if err := p.Put(ctx, collection, id, v); err != nil {
			return fmt.Errorf("%s %s: %w", collection, id, err)
		}
		n++
		return nil
	}
	for _, v := range r.Pilots {
		if err := put(store.CollectionPilots, v.ID, v); err != nil {
			return n, err
		}
	}
	for _, v := range r.Channels {
		if err := put(store.CollectionChannels, v.ID, v); err != nil {
			return n, err
		}
	}
	for _, v := range r.Rounds {
		if err := put(store.CollectionRounds, v.ID, v); err != nil {
			return n, err
		}
	}
	for _, v := range r.Races {
		if err := put(store.CollectionRaces, v.ID, v); err != nil {
			return n, err
		}
	}
	for _, v := range r.Detections {
		if err := put(store.CollectionDetections, v.ID, v); err != nil {
			return n, err
		}
	}
	for _, v := range r.Laps {
		if err := put(store.CollectionLaps, v.ID, v); err != nil {
			return n, err
		}
	}
	for _, v := range r.KV {
		if err := put(store.CollectionKV, KVRecordID(v.Namespace, v.Key), v); err != nil {
			return n, err
		}
	}
	return n, nil
}
