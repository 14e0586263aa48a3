// Package memory provides a mutable in-memory record store that publishes
// a new snapshot after each change.
package memory

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/mpapenbr/fpv-racedash/log"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/pkg/store"
	"github.com/mpapenbr/fpv-racedash/pkg/utils/broadcast"
)

type (
	Store struct {
		mu      sync.Mutex
		data    *Tx
		current atomic.Pointer[model.Snapshot]
		source  chan *model.Snapshot
		bs      broadcast.BroadcastServer[*model.Snapshot]
		closed  atomic.Bool
		l       *log.Logger
	}
	Option func(*Store)

	// Tx collects modifications applied by Update.
	Tx struct {
		pilots     map[string]model.Pilot
		channels   map[string]model.Channel
		rounds     map[string]model.Round
		races      map[string]model.Race
		laps       map[string]model.Lap
		detections map[string]model.Detection
		kv         map[string]model.KVEntry
		changed    bool
	}
)

var _ store.Source = (*Store)(nil)

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.l = l
	}
}

// WithRecords sets the initial content.
func WithRecords(r model.Records) Option {
	return func(s *Store) {
		s.data.Replace(r)
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		data:   newTx(),
		source: make(chan *model.Snapshot),
		l:      log.Default().Named("store.memory"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(model.NewSnapshot(s.data.records()))
	s.bs = broadcast.NewBroadcastServer("store.memory", s.source,
		broadcast.WithBufferSize[*model.Snapshot](1))
	return s
}

func (s *Store) Current() *model.Snapshot {
	return s.current.Load()
}

func (s *Store) Subscribe() <-chan *model.Snapshot {
	return s.bs.Subscribe()
}

func (s *Store) CancelSubscription(ch <-chan *model.Snapshot) {
	s.bs.CancelSubscription(ch)
}

func (s *Store) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.source)
	s.bs.Close()
}

// Update applies all modifications of fn at once and publishes a single
// snapshot if anything changed. Nothing is applied if fn returns an error.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return store.ErrClosed
	}
	tx := s.data.clone()
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.changed {
		return nil
	}
	tx.changed = false
	s.data = tx
	snap := model.NewSnapshot(tx.records())
	s.current.Store(snap)
	s.l.Debug("publishing snapshot",
		log.Int("races", len(snap.Races())))
	s.source <- snap
	return nil
}

// Replace swaps the complete content of the store.
func (s *Store) Replace(r model.Records) error {
	return s.Update(func(tx *Tx) error {
		tx.Replace(r)
		return nil
	})
}

// LoadFile reads records from a JSON file.
func LoadFile(path string) (model.Records, error) {
	var r model.Records
	data, err := os.ReadFile(path)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func newTx() *Tx {
	return &Tx{
		pilots:     map[string]model.Pilot{},
		channels:   map[string]model.Channel{},
		rounds:     map[string]model.Round{},
		races:      map[string]model.Race{},
		laps:       map[string]model.Lap{},
		detections: map[string]model.Detection{},
		kv:         map[string]model.KVEntry{},
	}
}

func (tx *Tx) clone() *Tx {
	return &Tx{
		pilots:     maps.Clone(tx.pilots),
		channels:   maps.Clone(tx.channels),
		rounds:     maps.Clone(tx.rounds),
		races:      maps.Clone(tx.races),
		laps:       maps.Clone(tx.laps),
		detections: maps.Clone(tx.detections),
		kv:         maps.Clone(tx.kv),
	}
}

func sortedValues[T any](m map[string]T) []T {
	keys := slices.Sorted(maps.Keys(m))
	ret := make([]T, 0, len(keys))
	for _, k := range keys {
		ret = append(ret, m[k])
	}
	return ret
}

func (tx *Tx) records() model.Records {
	return model.Records{
		Pilots:     sortedValues(tx.pilots),
		Channels:   sortedValues(tx.channels),
		Rounds:     sortedValues(tx.rounds),
		Races:      sortedValues(tx.races),
		Laps:       sortedValues(tx.laps),
		Detections: sortedValues(tx.detections),
		KV:         sortedValues(tx.kv),
	}
}

func KVID(namespace, key string) string {
	return namespace + "/" + key
}

// ensureID assigns a random id to records created without one.
func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func (tx *Tx) Replace(r model.Records) {
	fresh := newTx()
	for _, p := range r.Pilots {
		fresh.PutPilot(p)
	}
	for _, c := range r.Channels {
		fresh.PutChannel(c)
	}
	for _, rd := range r.Rounds {
		fresh.PutRound(rd)
	}
	for _, race := range r.Races {
		fresh.PutRace(race)
	}
	for _, l := range r.Laps {
		fresh.PutLap(l)
	}
	for _, d := range r.Detections {
		fresh.PutDetection(d)
	}
	for _, e := range r.KV {
		fresh.PutKV(e)
	}
	*tx = *fresh
	tx.changed = true
}

func (tx *Tx) PutPilot(p model.Pilot) {
	ensureID(&p.ID)
	tx.pilots[p.ID] = p
	tx.changed = true
}

func (tx *Tx) PutChannel(c model.Channel) {
	ensureID(&c.ID)
	tx.channels[c.ID] = c
	tx.changed = true
}

func (tx *Tx) PutRound(r model.Round) {
	ensureID(&r.ID)
	tx.rounds[r.ID] = r
	tx.changed = true
}

func (tx *Tx) PutRace(r model.Race) {
	ensureID(&r.ID)
	tx.races[r.ID] = r
	tx.changed = true
}

func (tx *Tx) PutLap(l model.Lap) {
	ensureID(&l.ID)
	tx.laps[l.ID] = l
	tx.changed = true
}

func (tx *Tx) PutDetection(d model.Detection) {
	ensureID(&d.ID)
	tx.detections[d.ID] = d
	tx.changed = true
}

// PutKV stores a configuration entry keyed by namespace and key.
func (tx *Tx) PutKV(e model.KVEntry) {
	tx.kv[KVID(e.Namespace, e.Key)] = e
	tx.changed = true
}

func (tx *Tx) DeleteKV(namespace, key string) {
	if deleteKey(tx.kv, KVID(namespace, key)) {
		tx.changed = true
	}
}

// Delete removes a record. Unknown ids are ignored.
func (tx *Tx) Delete(collection, id string) error {
	var found bool
	switch collection {
	case store.CollectionPilots:
		found = deleteKey(tx.pilots, id)
	case store.CollectionChannels:
		found = deleteKey(tx.channels, id)
	case store.CollectionRounds:
		found = deleteKey(tx.rounds, id)
	case store.CollectionRaces:
		found = deleteKey(tx.races, id)
	case store.CollectionLaps:
		found = deleteKey(tx.laps, id)
	case store.CollectionDetections:
		found = deleteKey(tx.detections, id)
	case store.CollectionKV:
		found = deleteKey(tx.kv, id)
	default:
		return fmt.Errorf("%w: %s", store.ErrUnknownCollection, collection)
	}
	tx.changed = tx.changed || found
	return nil
}

func deleteKey[T any](m map[string]T, id string) bool {
	if _, ok := m[id]; !ok {
		return false
	}
	delete(m, id)
	return true
}

// PutJSON decodes data into a record of the collection and stores it.
// The id argument overrides the id in the document. For kv entries the id
// is not used.
//
//nolint:cyclop // dispatch
func (tx *Tx) PutJSON(collection, id string, data []byte) error {
	decode := func(v any) error {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		return nil
	}
	switch collection {
	case store.CollectionPilots:
		var v model.Pilot
		if err := decode(&v); err != nil {
			return err
		}
		v.ID = id
		tx.PutPilot(v)
	case store.CollectionChannels:
		var v model.Channel
		if err := decode(&v); err != nil {
			return err
		}
		v.ID = id
		tx.PutChannel(v)
	case store.CollectionRounds:
		var v model.Round
		if err := decode(&v); err != nil {
			return err
		}
		v.ID = id
		tx.PutRound(v)
	case store.CollectionRaces:
		var v model.Race
		if err := decode(&v); err != nil {
			return err
		}
		v.ID = id
		tx.PutRace(v)
	case store.CollectionLaps:
		var v model.Lap
		if err := decode(&v); err != nil {
			return err
		}
		v.ID = id
		tx.PutLap(v)
	case store.CollectionDetections:
		var v model.Detection
		if err := decode(&v); err != nil {
			return err
		}
		v.ID = id
		tx.PutDetection(v)
	case store.CollectionKV:
		var v model.KVEntry
		if err := decode(&v); err != nil {
			return err
		}
		tx.PutKV(v)
	default:
		return fmt.Errorf("%w: %s", store.ErrUnknownCollection, collection)
	}
	return nil
}
