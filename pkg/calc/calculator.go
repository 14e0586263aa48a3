package calc

import (
	"context"
	"math"

	"github.com/aarondl/opt/null"

	"github.com/mpapenbr/fpv-racedash/log"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/pkg/utils/cache"
	"github.com/mpapenbr/fpv-racedash/pkg/utils/cache/loadercache"
)

const DefaultConsecutiveLaps = 3

type (
	pilotKey struct {
		raceID  string
		pilotID string
	}
	metricKey struct {
		pilotKey
		metric Metric
	}
	lapEntry struct {
		lap           *model.Lap
		detectionTime int64
	}
	// the relevant data of a pilot within a race
	pilotLaps struct {
		race       *model.Race
		holeshot   *model.Lap
		laps       []lapEntry // non-holeshot laps, ordered by lap number
		firstDet   null.Val[float64]
		hasRecords bool
	}
)

// Calculator computes per-pilot metrics for one snapshot. Results are
// memoized per (race, pilot, metric); a new snapshot requires a new
// Calculator (or Reset).
type Calculator struct {
	snap        *model.Snapshot
	consecutive int
	metrics     cache.Cache[metricKey, null.Val[float64]]
	laps        cache.Cache[pilotKey, pilotLaps]
	l           *log.Logger
}

type Option func(*Calculator)

// WithConsecutiveLaps sets the window size of MetricConsecutive.
func WithConsecutiveLaps(n int) Option {
	return func(c *Calculator) {
		c.consecutive = n
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Calculator) {
		c.l = l
	}
}

func New(snap *model.Snapshot, opts ...Option) *Calculator {
	c := &Calculator{
		snap:        snap,
		consecutive: DefaultConsecutiveLaps,
		l:           log.Default().Named("calc"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.laps = loadercache.New(
		loadercache.WithExpiration[pilotKey, pilotLaps](0),
		loadercache.WithLogger[pilotKey, pilotLaps](c.l),
		loadercache.WithLoader[pilotKey, pilotLaps](func(k pilotKey) (*pilotLaps, error) {
			pl := c.collect(k)
			return &pl, nil
		}))
	c.metrics = loadercache.New(
		loadercache.WithExpiration[metricKey, null.Val[float64]](0),
		loadercache.WithLogger[metricKey, null.Val[float64]](c.l),
		loadercache.WithLoader[metricKey, null.Val[float64]](func(k metricKey) (*null.Val[float64], error) {
			v := c.compute(k)
			return &v, nil
		}))
	return c
}

func (c *Calculator) Snapshot() *model.Snapshot {
	return c.snap
}

func (c *Calculator) ConsecutiveLaps() int {
	return c.consecutive
}

// Reset switches to a new snapshot and drops all memoized values.
func (c *Calculator) Reset(snap *model.Snapshot) {
	c.snap = snap
	c.metrics.InvalidateAll(context.Background())
	c.laps.InvalidateAll(context.Background())
}

// Value returns the metric of a pilot within a race.
func (c *Calculator) Value(raceID, pilotID string, m Metric) null.Val[float64] {
	v, err := c.metrics.Get(context.Background(),
		metricKey{pilotKey: pilotKey{raceID: raceID, pilotID: pilotID}, metric: m})
	if err != nil || v == nil {
		return null.Val[float64]{}
	}
	return *v
}

func (c *Calculator) CompletedLaps(raceID, pilotID string) null.Val[float64] {
	return c.Value(raceID, pilotID, MetricCompletedLaps)
}

func (c *Calculator) BestLap(raceID, pilotID string) null.Val[float64] {
	return c.Value(raceID, pilotID, MetricBestLap)
}

func (c *Calculator) Consecutive(raceID, pilotID string) null.Val[float64] {
	return c.Value(raceID, pilotID, MetricConsecutive)
}

func (c *Calculator) FinishElapsed(raceID, pilotID string) null.Val[float64] {
	return c.Value(raceID, pilotID, MetricFinishElapsed)
}

func (c *Calculator) FinishDetection(raceID, pilotID string) null.Val[float64] {
	return c.Value(raceID, pilotID, MetricFinishDetection)
}

func (c *Calculator) CompletionTime(raceID, pilotID string) null.Val[float64] {
	return c.Value(raceID, pilotID, MetricCompletionTime)
}

func (c *Calculator) TotalTime(raceID, pilotID string) null.Val[float64] {
	return c.Value(raceID, pilotID, MetricTotalTime)
}

func (c *Calculator) FirstDetection(raceID, pilotID string) null.Val[float64] {
	return c.Value(raceID, pilotID, MetricFirstDetection)
}

func (c *Calculator) ChannelSlot(raceID, pilotID string) null.Val[float64] {
	return c.Value(raceID, pilotID, MetricChannelSlot)
}

// ForRace returns a Provider bound to one race.
func (c *Calculator) ForRace(raceID string) Provider {
	return raceView{c: c, raceID: raceID}
}

type raceView struct {
	c      *Calculator
	raceID string
}

func (r raceView) Value(m Metric, pilotID string) null.Val[float64] {
	return r.c.Value(r.raceID, pilotID, m)
}

func (c *Calculator) pilotLaps(k pilotKey) *pilotLaps {
	pl, err := c.laps.Get(context.Background(), k)
	if err != nil || pl == nil {
		return &pilotLaps{}
	}
	return pl
}

// collect gathers the valid laps and detections of a pilot in a race.
func (c *Calculator) collect(k pilotKey) pilotLaps {
	ret := pilotLaps{}
	race, ok := c.snap.Race(k.raceID)
	if !ok {
		return ret
	}
	ret.race = race
	first := int64(math.MaxInt64)
	for _, d := range c.snap.Detections(k.raceID) {
		if d.Pilot != k.pilotID || !d.Valid {
			continue
		}
		ret.hasRecords = true
		if d.Time < first {
			first = d.Time
		}
	}
	if ret.hasRecords {
		ret.firstDet = null.From(float64(first))
	}
	for _, lap := range c.snap.Laps(k.raceID) {
		d, ok := c.snap.Detection(lap.Detection)
		if !ok || !d.Valid || d.Pilot != k.pilotID {
			continue
		}
		if d.IsHoleshot {
			if ret.holeshot == nil {
				ret.holeshot = lap
			}
			continue
		}
		ret.laps = append(ret.laps, lapEntry{lap: lap, detectionTime: d.Time})
	}
	return ret
}

//nolint:cyclop // dispatch
func (c *Calculator) compute(k metricKey) null.Val[float64] {
	pl := c.pilotLaps(k.pilotKey)
	if pl.race == nil {
		return null.Val[float64]{}
	}
	switch k.metric {
	case MetricCompletedLaps:
		return null.From(float64(len(pl.laps)))
	case MetricBestLap:
		return pl.bestLap()
	case MetricConsecutive:
		return pl.consecutive(c.consecutive)
	case MetricFinishElapsed:
		return pl.finishElapsed()
	case MetricFinishDetection:
		return pl.finishDetection()
	case MetricCompletionTime:
		return pl.completionTime()
	case MetricTotalTime:
		return pl.totalTime()
	case MetricFirstDetection:
		return pl.firstDet
	case MetricChannelSlot:
		if slot := pl.race.ChannelSlot(k.pilotID); slot >= 0 {
			return null.From(float64(slot))
		}
	}
	return null.Val[float64]{}
}

func (p *pilotLaps) holeshotLength() float64 {
	if p.holeshot == nil {
		return 0
	}
	return p.holeshot.LengthSeconds
}

func (p *pilotLaps) finished() bool {
	return p.race.TargetLaps > 0 && len(p.laps) >= p.race.TargetLaps
}

func (p *pilotLaps) bestLap() null.Val[float64] {
	if len(p.laps) == 0 {
		return null.Val[float64]{}
	}
	best := p.laps[0].lap.LengthSeconds
	for _, e := range p.laps[1:] {
		best = math.Min(best, e.lap.LengthSeconds)
	}
	return null.From(best)
}

// minimum sum of n contiguous laps
func (p *pilotLaps) consecutive(n int) null.Val[float64] {
	if n <= 0 || len(p.laps) < n {
		return null.Val[float64]{}
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += p.laps[i].lap.LengthSeconds
	}
	best := sum
	for i := n; i < len(p.laps); i++ {
		sum += p.laps[i].lap.LengthSeconds - p.laps[i-n].lap.LengthSeconds
		best = math.Min(best, sum)
	}
	return null.From(best)
}

func (p *pilotLaps) finishDetection() null.Val[float64] {
	if !p.finished() {
		return null.Val[float64]{}
	}
	return null.From(float64(p.laps[p.race.TargetLaps-1].detectionTime))
}

func (p *pilotLaps) finishElapsed() null.Val[float64] {
	if !p.finished() {
		return null.Val[float64]{}
	}
	start, ok := p.race.StartMillis()
	if !ok {
		return null.Val[float64]{}
	}
	return null.From(float64(p.laps[p.race.TargetLaps-1].detectionTime - start))
}

func (p *pilotLaps) completionTime() null.Val[float64] {
	if !p.finished() {
		return null.Val[float64]{}
	}
	sum := p.holeshotLength()
	for _, e := range p.laps[:p.race.TargetLaps] {
		sum += e.lap.LengthSeconds
	}
	return null.From(sum)
}

func (p *pilotLaps) totalTime() null.Val[float64] {
	if p.holeshot == nil && len(p.laps) == 0 {
		return null.Val[float64]{}
	}
	sum := p.holeshotLength()
	for _, e := range p.laps {
		sum += e.lap.LengthSeconds
	}
	return null.From(sum)
}
