package model

// records as delivered by the external record store.

//nolint:tagliatelle // client compatibility
type (
	Pilot struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		SourceID string `json:"sourceId"`
	}

	Channel struct {
		ID        string `json:"id"`
		ShortBand string `json:"shortBand"`
		Number    int    `json:"number"`
		Color     string `json:"color"`
	}

	Round struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Number    int       `json:"roundNumber"`
		EventType EventType `json:"eventType"`
	}

	PilotChannel struct {
		ID        string `json:"id"`
		PilotID   string `json:"pilotId"`
		ChannelID string `json:"channelId"`
	}

	Race struct {
		ID            string         `json:"id"`
		Round         string         `json:"round"`
		RaceOrder     int            `json:"raceOrder"`
		SourceID      string         `json:"sourceId"`
		Start         string         `json:"start,omitempty"`
		End           string         `json:"end,omitempty"`
		TargetLaps    int            `json:"targetLaps"`
		Valid         bool           `json:"valid"`
		PilotChannels []PilotChannel `json:"pilotChannels"`
	}

	Lap struct {
		ID            string  `json:"id"`
		Race          string  `json:"race"`
		Detection     string  `json:"detection"`
		LapNumber     int     `json:"lapNumber"`
		LengthSeconds float64 `json:"lengthSeconds"`
		StartTime     int64   `json:"startTime"`
		EndTime       int64   `json:"endTime"`
	}

	Detection struct {
		ID         string `json:"id"`
		Race       string `json:"race"`
		Pilot      string `json:"pilot"`
		IsHoleshot bool   `json:"isHoleshot"`
		Valid      bool   `json:"valid"`
		Time       int64  `json:"time"` // milliseconds, same time base as race start
	}

	// KVEntry holds a JSON encoded configuration value.
	KVEntry struct {
		Namespace string `json:"namespace"`
		Key       string `json:"key"`
		Value     string `json:"value"`
		Event     string `json:"event,omitempty"`
	}
)

type EventType string

const (
	EventTypeRace       EventType = "Race"
	EventTypeEndurance  EventType = "Endurance"
	EventTypeTimeTrial  EventType = "TimeTrial"
	EventTypePractice   EventType = "Practice"
	EventTypeQualifying EventType = "Qualifying"
)

// IsRace reports whether rounds of this type are first-to-finish races.
func (e EventType) IsRace() bool {
	return e == EventTypeRace || e == EventTypeEndurance
}

type RaceStatus int

const (
	RaceScheduled RaceStatus = iota
	RaceActive
	RaceCompleted
	RaceInvalidated
)

func (s RaceStatus) String() string {
	switch s {
	case RaceScheduled:
		return "scheduled"
	case RaceActive:
		return "active"
	case RaceCompleted:
		return "completed"
	case RaceInvalidated:
		return "invalidated"
	}
	return "unknown"
}

func (s RaceStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StartMillis returns the race start in epoch milliseconds.
func (r *Race) StartMillis() (int64, bool) {
	return ParseTimestamp(r.Start)
}

func (r *Race) EndMillis() (int64, bool) {
	return ParseTimestamp(r.End)
}

func (r *Race) Status() RaceStatus {
	if !r.Valid {
		return RaceInvalidated
	}
	_, started := r.StartMillis()
	_, ended := r.EndMillis()
	switch {
	case started && ended:
		return RaceCompleted
	case started:
		return RaceActive
	default:
		return RaceScheduled
	}
}

// ChannelSlot returns the position of the pilot in the scheduled
// pilot-channel list, -1 if the pilot is not scheduled.
func (r *Race) ChannelSlot(pilotID string) int {
	for i := range r.PilotChannels {
		if r.PilotChannels[i].PilotID == pilotID {
			return i
		}
	}
	return -1
}

func (r *Race) ScheduledPilots() []string {
	ret := make([]string, 0, len(r.PilotChannels))
	for i := range r.PilotChannels {
		if r.PilotChannels[i].PilotID != "" {
			ret = append(ret, r.PilotChannels[i].PilotID)
		}
	}
	return ret
}
