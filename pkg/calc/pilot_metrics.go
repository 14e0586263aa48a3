package calc

import (
	"math"

	"github.com/aarondl/opt/null"
)

// PilotMetrics is the rendered metric set of a pilot within a race.
//
//nolint:tagliatelle // client compatibility
type PilotMetrics struct {
	RaceID          string            `json:"raceId"`
	PilotID         string            `json:"pilotId"`
	CompletedLaps   int               `json:"completedLaps"`
	BestLap         null.Val[float64] `json:"bestLap"`
	Consecutive     null.Val[float64] `json:"consecutive"`
	ConsecutiveLaps int               `json:"consecutiveLaps"`
	FinishElapsed   null.Val[float64] `json:"finishElapsed"`
	FinishDetection null.Val[float64] `json:"finishDetection"`
	CompletionTime  null.Val[float64] `json:"completionTime"`
	TotalTime       null.Val[float64] `json:"totalTime"`
	FirstDetection  null.Val[float64] `json:"firstDetection"`
	ChannelSlot     null.Val[float64] `json:"channelSlot"`
	Finished        bool              `json:"finished"`
	LapTimes        []LapTime         `json:"lapTimes"`
}

type LapTime struct {
	LapNumber     int     `json:"lapNumber"`
	Seconds       float64 `json:"seconds"`
	DetectionTime int64   `json:"detectionTime"`
}

func (c *Calculator) PilotMetrics(raceID, pilotID string) PilotMetrics {
	ret := PilotMetrics{
		RaceID:          raceID,
		PilotID:         pilotID,
		CompletedLaps:   int(c.CompletedLaps(raceID, pilotID).GetOrZero()),
		BestLap:         c.BestLap(raceID, pilotID),
		Consecutive:     c.Consecutive(raceID, pilotID),
		ConsecutiveLaps: c.consecutive,
		FinishElapsed:   c.FinishElapsed(raceID, pilotID),
		FinishDetection: c.FinishDetection(raceID, pilotID),
		CompletionTime:  c.CompletionTime(raceID, pilotID),
		TotalTime:       c.TotalTime(raceID, pilotID),
		FirstDetection:  c.FirstDetection(raceID, pilotID),
		ChannelSlot:     c.ChannelSlot(raceID, pilotID),
		LapTimes:        c.LapTimes(raceID, pilotID),
	}
	ret.Finished = ret.FinishDetection.IsValue() || ret.CompletionTime.IsValue()
	return ret
}

// LapTimes returns the non-holeshot laps of a pilot in lap number order.
func (c *Calculator) LapTimes(raceID, pilotID string) []LapTime {
	pl := c.pilotLaps(pilotKey{raceID: raceID, pilotID: pilotID})
	ret := make([]LapTime, 0, len(pl.laps))
	for _, e := range pl.laps {
		ret = append(ret, LapTime{
			LapNumber:     e.lap.LapNumber,
			Seconds:       e.lap.LengthSeconds,
			DetectionTime: e.detectionTime,
		})
	}
	return ret
}

// ClosestLap returns the lap of a pilot whose length is closest to target
// seconds. The second return value is false if the pilot has no laps.
func (c *Calculator) ClosestLap(raceID, pilotID string, target float64) (LapTime, bool) {
	var ret LapTime
	found := false
	for _, lt := range c.LapTimes(raceID, pilotID) {
		if !found || math.Abs(lt.Seconds-target) < math.Abs(ret.Seconds-target) {
			ret = lt
			found = true
		}
	}
	return ret, found
}
