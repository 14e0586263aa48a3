// Package engine recomputes the derived state whenever the record store
// publishes a new snapshot.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/fpv-racedash/log"
	"github.com/mpapenbr/fpv-racedash/pkg/bracket"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/pkg/store"
	"github.com/mpapenbr/fpv-racedash/pkg/utils/broadcast"
)

// FormatSource provides the bracket format in use. bracket.Watcher
// implements it.
type FormatSource interface {
	Current() *bracket.Format
}

type staticFormat struct{ f *bracket.Format }

func (s staticFormat) Current() *bracket.Format { return s.f }

type (
	Engine struct {
		src      store.Source
		formats  FormatSource
		settings Settings
		current  atomic.Pointer[State]
		version  atomic.Uint64
		dirty    chan struct{}
		out      chan *State
		bs       broadcast.BroadcastServer[*State]
		ctx      context.Context
		cancel   context.CancelFunc
		wg       sync.WaitGroup
		closed   atomic.Bool

		recomputes metric.Int64Counter
		coalesced  metric.Int64Counter
		duration   metric.Float64Histogram
		l          *log.Logger
	}
	Option func(*Engine)
)

func WithSettings(s Settings) Option {
	return func(e *Engine) {
		e.settings = s
	}
}

// WithFormat uses a fixed bracket format.
func WithFormat(f *bracket.Format) Option {
	return func(e *Engine) {
		e.formats = staticFormat{f: f}
	}
}

func WithFormatSource(src FormatSource) Option {
	return func(e *Engine) {
		e.formats = src
	}
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.l = l
	}
}

// New computes the state of the current snapshot and starts following the
// source. Close stops the engine; the source stays open.
func New(ctx context.Context, src store.Source, opts ...Option) *Engine {
	e := &Engine{
		src:      src,
		formats:  staticFormat{},
		settings: DefaultSettings(),
		dirty:    make(chan struct{}, 1),
		out:      make(chan *State),
		l:        log.Default().Named("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.setupMetrics()
	e.bs = broadcast.NewBroadcastServer("engine", e.out,
		broadcast.WithBufferSize[*State](1))
	e.recompute()

	snapshots := src.Subscribe()
	e.wg.Add(2)
	go e.follow(snapshots)
	go e.work()
	return e
}

func (e *Engine) setupMetrics() {
	meter := otel.GetMeterProvider().Meter("fpvdash.engine")
	var err error
	if e.recomputes, err = meter.Int64Counter("fpvdash.engine.recompute",
		metric.WithDescription("Number of state recomputations"),
		metric.WithUnit("{count}")); err != nil {
		e.l.Error("failed to register metric", log.ErrorField(err))
	}
	if e.coalesced, err = meter.Int64Counter("fpvdash.engine.coalesced",
		metric.WithDescription("Number of changes merged into a pending recomputation"),
		metric.WithUnit("{count}")); err != nil {
		e.l.Error("failed to register metric", log.ErrorField(err))
	}
	if e.duration, err = meter.Float64Histogram("fpvdash.engine.recompute.duration",
		metric.WithDescription("Duration of a state recomputation"),
		metric.WithUnit("ms")); err != nil {
		e.l.Error("failed to register metric", log.ErrorField(err))
	}
}

// Current returns the latest computed state.
func (e *Engine) Current() *State {
	return e.current.Load()
}

func (e *Engine) Subscribe() <-chan *State {
	return e.bs.Subscribe()
}

func (e *Engine) CancelSubscription(ch <-chan *State) {
	e.bs.CancelSubscription(ch)
}

// Trigger requests a recomputation. Requests arriving while one is pending
// are merged.
func (e *Engine) Trigger() {
	select {
	case e.dirty <- struct{}{}:
	default:
		if e.coalesced != nil {
			e.coalesced.Add(e.ctx, 1)
		}
	}
}

func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return
	}
	e.cancel()
	e.wg.Wait()
	close(e.out)
	e.bs.Close()
}

func (e *Engine) follow(snapshots <-chan *model.Snapshot) {
	defer e.wg.Done()
	defer e.src.CancelSubscription(snapshots)
	for {
		select {
		case <-e.ctx.Done():
			return
		case _, ok := <-snapshots:
			if !ok {
				e.l.Debug("source closed")
				return
			}
			e.Trigger()
		}
	}
}

func (e *Engine) work() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.dirty:
			st := e.recompute()
			select {
			case e.out <- st:
			case <-e.ctx.Done():
				return
			}
		}
	}
}

// recompute always works on the latest snapshot of the source, so changes
// that arrived meanwhile are covered as well.
func (e *Engine) recompute() *State {
	start := time.Now()
	st := Compute(e.src.Current(), e.formats.Current(), e.settings)
	st.Version = e.version.Add(1)
	e.current.Store(st)
	elapsed := time.Since(start)
	if e.recomputes != nil {
		e.recomputes.Add(e.ctx, 1)
	}
	if e.duration != nil {
		e.duration.Record(e.ctx, float64(elapsed.Microseconds())/1000)
	}
	e.l.Debug("state recomputed",
		log.Uint64("version", st.Version),
		log.Duration("duration", elapsed),
		log.String("currentRace", st.Leaderboard.CurrentRaceID))
	return st
}
