// Package kvconfig parses the JSON encoded key-value configuration entries.
// Malformed values are treated as absent; no parser returns an error.
package kvconfig

import (
	"math"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/mpapenbr/fpv-racedash/log"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
)

const (
	NamespaceRace        = "race"
	NamespaceLeaderboard = "leaderboard"
	NamespaceBracket     = "bracket"

	KeyCurrentOrder       = "currentOrder"
	KeySplitIndex         = "splitIndex"
	KeyLockedPositions    = "lockedPositions"
	KeyNextRaceOverrides  = "nextRaceOverrides"
	KeyClosestLapTarget   = "closestLapTargetSeconds"
	KeyBracketAnchorOrder = "anchorRaceOrder"
)

//nolint:tagliatelle // client compatibility
type (
	CurrentOrder struct {
		Order    *int   `json:"order,omitempty"`
		SourceID string `json:"sourceId,omitempty"`
	}

	LockedPosition struct {
		PilotID  string `json:"pilotId"`
		Position int    `json:"position"`
		Note     string `json:"note,omitempty"`
		Done     bool   `json:"done,omitempty"`
	}

	// NextRaceOverride replaces the "next race" label while the current race
	// lies between StartSourceID and EndSourceID. An entry without start
	// means there are no further races.
	NextRaceOverride struct {
		StartSourceID string `json:"startSourceId,omitempty"`
		EndSourceID   string `json:"endSourceId,omitempty"`
		Label         string `json:"label"`
	}
)

var (
	pathOrder    = jp.MustParseString("$.order")
	pathSourceID = jp.MustParseString("$.sourceId")
	l            = log.Default().Named("kvconfig")
)

// parse returns the decoded value or nil if the value is not valid JSON.
func parse(raw, what string) any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	v, err := oj.ParseString(raw)
	if err != nil {
		l.Debug("ignoring malformed kv value",
			log.String("key", what), log.String("value", raw), log.ErrorField(err))
		return nil
	}
	return v
}

// asInt accepts integral JSON numbers only.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int(n), true
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// ParseCurrentOrder parses race/currentOrder. Returns nil if neither order
// nor sourceId is usable.
func ParseCurrentOrder(raw string) *CurrentOrder {
	v := parse(raw, KeyCurrentOrder)
	if _, ok := v.(map[string]any); !ok {
		return nil
	}
	ret := &CurrentOrder{}
	if o := pathOrder.First(v); o != nil {
		if n, ok := asInt(o); ok {
			ret.Order = &n
		}
	}
	if s, ok := pathSourceID.First(v).(string); ok {
		ret.SourceID = s
	}
	if ret.Order == nil && ret.SourceID == "" {
		return nil
	}
	return ret
}

// ParseSplitIndex parses leaderboard/splitIndex. Returns nil (feature
// disabled) for anything but a non-negative integer.
func ParseSplitIndex(raw string) *int {
	n, ok := asInt(parse(raw, KeySplitIndex))
	if !ok || n < 0 {
		return nil
	}
	return &n
}

// ParseClosestLapTarget parses leaderboard/closestLapTargetSeconds.
// Only positive numbers enable the feature.
func ParseClosestLapTarget(raw string) *float64 {
	f, ok := asFloat(parse(raw, KeyClosestLapTarget))
	if !ok || f <= 0 || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ParseBracketAnchor parses bracket/anchorRaceOrder.
func ParseBracketAnchor(raw string) *int {
	n, ok := asInt(parse(raw, KeyBracketAnchorOrder))
	if !ok {
		return nil
	}
	return &n
}

// ParseLockedPositions parses leaderboard/lockedPositions. Invalid entries
// are skipped; a value that is not an array yields nil.
func ParseLockedPositions(raw string) []LockedPosition {
	items, ok := parse(raw, KeyLockedPositions).([]any)
	if !ok {
		return nil
	}
	ret := make([]LockedPosition, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["pilotId"].(string)
		pos, ok := asInt(m["position"])
		if id == "" || !ok || pos < 1 {
			continue
		}
		lp := LockedPosition{PilotID: id, Position: pos}
		lp.Note, _ = m["note"].(string)
		lp.Done, _ = m["done"].(bool)
		ret = append(ret, lp)
	}
	return ret
}

// ParseNextRaceOverrides parses leaderboard/nextRaceOverrides. Entries
// that are not objects are skipped.
func ParseNextRaceOverrides(raw string) []NextRaceOverride {
	items, ok := parse(raw, KeyNextRaceOverrides).([]any)
	if !ok {
		return nil
	}
	ret := make([]NextRaceOverride, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		o := NextRaceOverride{}
		o.StartSourceID, _ = m["startSourceId"].(string)
		o.EndSourceID, _ = m["endSourceId"].(string)
		o.Label, _ = m["label"].(string)
		ret = append(ret, o)
	}
	return ret
}

// Config holds all parsed configuration entries of a snapshot.
type Config struct {
	CurrentOrder      *CurrentOrder
	SplitIndex        *int
	LockedPositions   []LockedPosition
	NextRaceOverrides []NextRaceOverride
	ClosestLapTarget  *float64
	BracketAnchor     *int
}

// FromSnapshot reads every known entry of the snapshot.
func FromSnapshot(s *model.Snapshot) Config {
	get := func(ns, key string) string {
		v, _ := s.KV(ns, key)
		return v
	}
	return Config{
		CurrentOrder:      ParseCurrentOrder(get(NamespaceRace, KeyCurrentOrder)),
		SplitIndex:        ParseSplitIndex(get(NamespaceLeaderboard, KeySplitIndex)),
		LockedPositions:   ParseLockedPositions(get(NamespaceLeaderboard, KeyLockedPositions)),
		NextRaceOverrides: ParseNextRaceOverrides(get(NamespaceLeaderboard, KeyNextRaceOverrides)),
		ClosestLapTarget:  ParseClosestLapTarget(get(NamespaceLeaderboard, KeyClosestLapTarget)),
		BracketAnchor:     ParseBracketAnchor(get(NamespaceBracket, KeyBracketAnchorOrder)),
	}
}
