// Package postgres feeds a memory store by polling the records of an event
// from the database.
package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/mpapenbr/fpv-racedash/log"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/pkg/repository/event"
	"github.com/mpapenbr/fpv-racedash/pkg/repository/records"
	"github.com/mpapenbr/fpv-racedash/pkg/store"
	"github.com/mpapenbr/fpv-racedash/pkg/store/memory"
	"github.com/mpapenbr/fpv-racedash/pkg/utils"
)

const (
	DefaultActiveInterval = 500 * time.Millisecond
	DefaultIdleInterval   = 10 * time.Second
)

type (
	Source struct {
		*memory.Store
		ctx            context.Context
		cancel         context.CancelFunc
		pool           *pgxpool.Pool
		eventID        uuid.UUID
		activeInterval time.Duration
		idleInterval   time.Duration
		fingerprint    string
		l              *log.Logger
	}
	Option func(*Source)
)

var _ store.Source = (*Source)(nil)

// WithActiveInterval sets the poll interval used while a race is running.
func WithActiveInterval(d time.Duration) Option {
	return func(s *Source) {
		s.activeInterval = d
	}
}

func WithIdleInterval(d time.Duration) Option {
	return func(s *Source) {
		s.idleInterval = d
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Source) {
		s.l = l
	}
}

// New loads the records of the event with the given key and keeps polling
// until ctx is done or Close is called.
//
//nolint:whitespace // editor/linter issue
func New(
	ctx context.Context,
	pool *pgxpool.Pool,
	eventKey string,
	opts ...Option,
) (*Source, error) {
	e, err := event.LoadByKey(ctx, pool, eventKey)
	if err != nil {
		return nil, err
	}
	s := &Source{
		pool:           pool,
		eventID:        e.ID,
		activeInterval: DefaultActiveInterval,
		idleInterval:   DefaultIdleInterval,
		l:              log.Default().Named("store.postgres"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.Store = memory.New(memory.WithLogger(s.l.Named("memory")))
	if _, err := s.poll(); err != nil {
		s.Close()
		return nil, err
	}
	go s.run()
	return s, nil
}

// poll loads the records and replaces the store content if they changed.
func (s *Source) poll() (bool, error) {
	r, err := records.Load(s.ctx, s.pool, s.eventID)
	if err != nil {
		return false, err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return false, err
	}
	fp := utils.Fingerprint(data)
	if fp == s.fingerprint {
		return false, nil
	}
	s.fingerprint = fp
	return true, s.Replace(r)
}

func (s *Source) run() {
	timer := time.NewTimer(s.nextInterval())
	defer timer.Stop()
	for {
		select {
		case <-s.ctx.Done():
			s.l.Debug("polling stopped")
			return
		case <-timer.C:
			changed, err := s.poll()
			if err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.l.Warn("error polling records", log.ErrorField(err))
			} else if changed {
				s.l.Debug("records changed")
			}
			timer.Reset(s.nextInterval())
		}
	}
}

func (s *Source) nextInterval() time.Duration {
	return pollInterval(s.Current(), s.activeInterval, s.idleInterval)
}

// pollInterval returns active if any race of snap is running.
func pollInterval(snap *model.Snapshot, active, idle time.Duration) time.Duration {
	if snap != nil && lo.SomeBy(snap.Races(), func(r *model.Race) bool {
		return r.Status() == model.RaceActive
	}) {
		return active
	}
	return idle
}

func (s *Source) Close() {
	s.cancel()
	s.Store.Close()
}
