package model

import (
	"slices"
	"strings"
)

// Records is the raw content of the record store for one event.
type Records struct {
	Pilots     []Pilot     `json:"pilots"`
	Channels   []Channel   `json:"channels"`
	Rounds     []Round     `json:"rounds"`
	Races      []Race      `json:"races"`
	Laps       []Lap       `json:"laps"`
	Detections []Detection `json:"detections"`
	KV         []KVEntry   `json:"kv"`
}

type kvKey struct {
	namespace string
	key       string
}

// Snapshot is an immutable, indexed view of Records.
// All derived values are computed from a snapshot.
type Snapshot struct {
	records    Records
	pilots     map[string]*Pilot
	channels   map[string]*Channel
	rounds     map[string]*Round
	races      []*Race
	raceByID   map[string]*Race
	laps       map[string][]*Lap
	detections map[string][]*Detection
	detByID    map[string]*Detection
	kv         map[kvKey]*KVEntry
}

// NewSnapshot indexes the given records. The snapshot takes ownership of
// the slices; callers must not modify them afterwards.
//
//nolint:funlen // readability
func NewSnapshot(r Records) *Snapshot {
	s := &Snapshot{
		records:    r,
		pilots:     make(map[string]*Pilot, len(r.Pilots)),
		channels:   make(map[string]*Channel, len(r.Channels)),
		rounds:     make(map[string]*Round, len(r.Rounds)),
		races:      make([]*Race, 0, len(r.Races)),
		raceByID:   make(map[string]*Race, len(r.Races)),
		laps:       make(map[string][]*Lap),
		detections: make(map[string][]*Detection),
		detByID:    make(map[string]*Detection, len(r.Detections)),
		kv:         make(map[kvKey]*KVEntry, len(r.KV)),
	}
	for i := range r.Pilots {
		s.pilots[r.Pilots[i].ID] = &r.Pilots[i]
	}
	for i := range r.Channels {
		s.channels[r.Channels[i].ID] = &r.Channels[i]
	}
	for i := range r.Rounds {
		s.rounds[r.Rounds[i].ID] = &r.Rounds[i]
	}
	for i := range r.Races {
		s.races = append(s.races, &r.Races[i])
		s.raceByID[r.Races[i].ID] = &r.Races[i]
	}
	slices.SortStableFunc(s.races, func(a, b *Race) int {
		if a.RaceOrder != b.RaceOrder {
			return a.RaceOrder - b.RaceOrder
		}
		return strings.Compare(a.ID, b.ID)
	})
	for i := range r.Detections {
		d := &r.Detections[i]
		s.detByID[d.ID] = d
		s.detections[d.Race] = append(s.detections[d.Race], d)
	}
	for i := range r.Laps {
		l := &r.Laps[i]
		s.laps[l.Race] = append(s.laps[l.Race], l)
	}
	for _, laps := range s.laps {
		slices.SortStableFunc(laps, func(a, b *Lap) int {
			return a.LapNumber - b.LapNumber
		})
	}
	for i := range r.KV {
		e := &r.KV[i]
		s.kv[kvKey{namespace: e.Namespace, key: e.Key}] = e
	}
	return s
}

// Records returns the records this snapshot was built from.
func (s *Snapshot) Records() Records {
	return s.records
}

func (s *Snapshot) Pilot(id string) (*Pilot, bool) {
	p, ok := s.pilots[id]
	return p, ok
}

// PilotName returns the display name or the id if the pilot is unknown.
func (s *Snapshot) PilotName(id string) string {
	if p, ok := s.pilots[id]; ok && p.Name != "" {
		return p.Name
	}
	return id
}

func (s *Snapshot) Channel(id string) (*Channel, bool) {
	c, ok := s.channels[id]
	return c, ok
}

func (s *Snapshot) Round(id string) (*Round, bool) {
	r, ok := s.rounds[id]
	return r, ok
}

// Races returns all races ordered by raceOrder.
func (s *Snapshot) Races() []*Race {
	return s.races
}

func (s *Snapshot) Race(id string) (*Race, bool) {
	r, ok := s.raceByID[id]
	return r, ok
}

func (s *Snapshot) RaceByOrder(order int) (*Race, bool) {
	idx, found := slices.BinarySearchFunc(s.races, order, func(r *Race, o int) int {
		return r.RaceOrder - o
	})
	if !found {
		return nil, false
	}
	return s.races[idx], true
}

func (s *Snapshot) RaceBySourceID(sourceID string) (*Race, bool) {
	if sourceID == "" {
		return nil, false
	}
	for _, r := range s.races {
		if r.SourceID == sourceID {
			return r, true
		}
	}
	return nil, false
}

// RoundOf returns the round a race belongs to.
func (s *Snapshot) RoundOf(r *Race) (*Round, bool) {
	return s.Round(r.Round)
}

// Laps returns the laps of a race ordered by lap number.
func (s *Snapshot) Laps(raceID string) []*Lap {
	return s.laps[raceID]
}

func (s *Snapshot) Detections(raceID string) []*Detection {
	return s.detections[raceID]
}

func (s *Snapshot) Detection(id string) (*Detection, bool) {
	d, ok := s.detByID[id]
	return d, ok
}

// KV returns the raw JSON value of a configuration entry.
func (s *Snapshot) KV(namespace, key string) (string, bool) {
	e, ok := s.kv[kvKey{namespace: namespace, key: key}]
	if !ok {
		return "", false
	}
	return e.Value, true
}

// RacePilots returns the scheduled pilots of a race followed by pilots
// that only appear in detections (ordered by id).
func (s *Snapshot) RacePilots(raceID string) []string {
	r, ok := s.raceByID[raceID]
	if !ok {
		return nil
	}
	ret := r.ScheduledPilots()
	seen := make(map[string]struct{}, len(ret))
	for _, id := range ret {
		seen[id] = struct{}{}
	}
	extra := make([]string, 0)
	for _, d := range s.detections[raceID] {
		if _, ok := seen[d.Pilot]; ok || d.Pilot == "" {
			continue
		}
		seen[d.Pilot] = struct{}{}
		extra = append(extra, d.Pilot)
	}
	slices.Sort(extra)
	return append(ret, extra...)
}
