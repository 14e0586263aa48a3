package config

import (
	"github.com/mpapenbr/fpv-racedash/pkg/bracket"
	"github.com/mpapenbr/fpv-racedash/pkg/calc"
	"github.com/mpapenbr/fpv-racedash/pkg/engine"
	"github.com/mpapenbr/fpv-racedash/pkg/finals"
)

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	DB                 string // connection string for the database
	NatsURL            string // URL of the NATS server
	NatsBucket         string // JetStream KV bucket holding the records
	Event              string // key of the event to follow
	Store              string // record store backend: memory, nats, postgres
	SnapshotFile       string // JSON file with records (memory backend)
	BracketFile        string // bracket format file, empty uses the builtin format
	Addr               string // listen addr of the HTTP API
	WaitForServices    string // duration to wait for other services to be ready
	LogLevel           string // sets the log level (zap log level values)
	SQLLogLevel        string // sets the log level for sql subsystem
	LogFormat          string // text vs json
	LogFilter          string // zapfilter rules, e.g. "*:* -debug:store.*"
	EnableTelemetry    bool   // enable telemetry
	TelemetryEndpoint  string // endpoint for telemetry
	TelemetryStdout    bool   // print telemetry data to stdout instead of OTLP
	ActivePollInterval string // poll interval while a race is running (postgres)
	IdlePollInterval   string // poll interval otherwise (postgres)
)

// EngineConfig holds the ranking constants
type EngineConfig struct {
	ConsecutiveLaps int
	WinsRequired    int
	MinHeats        int
	MaxHeats        int
	BracketAnchor   int
}

func DefaultEngineConfig() EngineConfig {
	f := finals.DefaultConfig()
	return EngineConfig{
		ConsecutiveLaps: calc.DefaultConsecutiveLaps,
		WinsRequired:    f.WinsRequired,
		MinHeats:        f.MinHeats,
		MaxHeats:        f.MaxHeats,
		BracketAnchor:   bracket.DefaultAnchor,
	}
}

// Settings converts the values for the engine. Non-positive values fall
// back to the defaults.
func (c EngineConfig) Settings() engine.Settings {
	ret := engine.DefaultSettings()
	def := DefaultEngineConfig()
	pick := func(v, d int) int {
		if v > 0 {
			return v
		}
		return d
	}
	ret.ConsecutiveLaps = pick(c.ConsecutiveLaps, def.ConsecutiveLaps)
	ret.BracketAnchor = pick(c.BracketAnchor, def.BracketAnchor)
	ret.Finals.WinsRequired = pick(c.WinsRequired, def.WinsRequired)
	ret.Finals.MinHeats = pick(c.MinHeats, def.MinHeats)
	ret.Finals.MaxHeats = pick(c.MaxHeats, def.MaxHeats)
	return ret
}
