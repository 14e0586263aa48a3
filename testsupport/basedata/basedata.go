// Package basedata builds record snapshots for tests.
package basedata

import (
	"fmt"
	"strconv"

	"github.com/mpapenbr/fpv-racedash/pkg/model"
)

type (
	EventBuilder struct {
		recs   model.Records
		races  []*RaceBuilder
		lapSeq int
	}
	RaceBuilder struct {
		e        *EventBuilder
		race     model.Race
		lapCount map[string]int
		lastTime map[string]int64
	}
)

func NewEvent() *EventBuilder {
	return &EventBuilder{}
}

func (e *EventBuilder) Pilot(id, name string) *EventBuilder {
	e.recs.Pilots = append(e.recs.Pilots, model.Pilot{ID: id, Name: name, SourceID: "src-" + id})
	return e
}

// Pilots adds pilots named after their ids.
func (e *EventBuilder) Pilots(ids ...string) *EventBuilder {
	for _, id := range ids {
		e.Pilot(id, id)
	}
	return e
}

func (e *EventBuilder) Channel(id string, number int) *EventBuilder {
	e.recs.Channels = append(e.recs.Channels,
		model.Channel{ID: id, ShortBand: "R", Number: number, Color: "#ffffff"})
	return e
}

func (e *EventBuilder) Round(id string, typ model.EventType) *EventBuilder {
	e.recs.Rounds = append(e.recs.Rounds,
		model.Round{ID: id, Name: id, Number: len(e.recs.Rounds) + 1, EventType: typ})
	return e
}

func (e *EventBuilder) KV(namespace, key, value string) *EventBuilder {
	e.recs.KV = append(e.recs.KV, model.KVEntry{Namespace: namespace, Key: key, Value: value})
	return e
}

// Race adds a valid race. The pilots are scheduled in the given order.
//
//nolint:whitespace // editor/linter issue
func (e *EventBuilder) Race(
	id, round string,
	order, targetLaps int,
	pilots ...string,
) *RaceBuilder {
	pcs := make([]model.PilotChannel, 0, len(pilots))
	for i, p := range pilots {
		pcs = append(pcs, model.PilotChannel{
			ID: fmt.Sprintf("%s-pc%d", id, i), PilotID: p, ChannelID: fmt.Sprintf("ch%d", i+1),
		})
	}
	rb := &RaceBuilder{
		e: e,
		race: model.Race{
			ID: id, Round: round, RaceOrder: order, SourceID: "src-" + id,
			TargetLaps: targetLaps, Valid: true, PilotChannels: pcs,
		},
		lapCount: map[string]int{},
		lastTime: map[string]int64{},
	}
	e.races = append(e.races, rb)
	return rb
}

func (r *RaceBuilder) Started(ms int64) *RaceBuilder {
	r.race.Start = strconv.FormatInt(ms, 10)
	return r
}

func (r *RaceBuilder) Ended(ms int64) *RaceBuilder {
	r.race.End = strconv.FormatInt(ms, 10)
	return r
}

// Completed marks the race as started and finished.
func (r *RaceBuilder) Completed() *RaceBuilder {
	if r.race.Start == "" {
		r.race.Start = "1"
	}
	r.race.End = "2"
	return r
}

func (r *RaceBuilder) Invalid() *RaceBuilder {
	r.race.Valid = false
	return r
}

// Holeshot records the start gate crossing of a pilot.
func (r *RaceBuilder) Holeshot(pilot string, at int64, length float64) *RaceBuilder {
	r.addLap(pilot, at, length, true, 0)
	r.lastTime[pilot] = at
	return r
}

// Laps records consecutive laps. Detection times continue from the last
// detection of the pilot (or 0).
func (r *RaceBuilder) Laps(pilot string, lengths ...float64) *RaceBuilder {
	for _, l := range lengths {
		at := r.lastTime[pilot] + int64(l*1000)
		r.LapAt(pilot, at, l)
	}
	return r
}

// LapAt records a single lap detected at the given time.
func (r *RaceBuilder) LapAt(pilot string, at int64, length float64) *RaceBuilder {
	r.lapCount[pilot]++
	r.addLap(pilot, at, length, false, r.lapCount[pilot])
	r.lastTime[pilot] = at
	return r
}

//nolint:whitespace // editor/linter issue
func (r *RaceBuilder) addLap(
	pilot string, at int64, length float64, holeshot bool, lapNumber int,
) {
	r.e.lapSeq++
	detID := fmt.Sprintf("d%d", r.e.lapSeq)
	r.e.recs.Detections = append(r.e.recs.Detections, model.Detection{
		ID: detID, Race: r.race.ID, Pilot: pilot, IsHoleshot: holeshot, Valid: true, Time: at,
	})
	r.e.recs.Laps = append(r.e.recs.Laps, model.Lap{
		ID: fmt.Sprintf("l%d", r.e.lapSeq), Race: r.race.ID, Detection: detID,
		LapNumber: lapNumber, LengthSeconds: length,
		StartTime: at - int64(length*1000), EndTime: at,
	})
}

// Event returns to the event builder.
func (r *RaceBuilder) Event() *EventBuilder {
	return r.e
}

func (e *EventBuilder) Records() model.Records {
	ret := e.recs
	ret.Races = make([]model.Race, 0, len(e.races))
	for _, rb := range e.races {
		ret.Races = append(ret.Races, rb.race)
	}
	return ret
}

func (e *EventBuilder) Snapshot() *model.Snapshot {
	return model.NewSnapshot(e.Records())
}
