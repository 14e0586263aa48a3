//nolint:funlen // ok for tests
package bracket

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/fpv-racedash/pkg/calc"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/testsupport/basedata"
)

const minimalJSON = `{
  "name": "mini",
  "nodes": [
    {"order": 1, "code": "A", "label": "A", "round": "r1", "stage": "winners", "slots": 2,
     "rules": [{"position": 1, "to": 2}, {"position": 2, "to": "out"}]},
    {"order": 2, "code": "B", "label": "B", "round": "r1", "stage": "winners", "slots": 2,
     "rules": [{"position": 1, "to": "final"}]}
  ],
  "rounds": [{"id": "r1", "label": "Round 1", "nodes": [1, 2]}],
  "edges": [{"from": 1, "to": 2, "type": "advance"}]
}`

func TestBuiltinDefault(t *testing.T) {
	f, err := Builtin(DefaultFormat)
	require.NoError(t, err)
	assert.Equal(t, DefaultFormat, f.Name)
	assert.Len(t, f.Nodes, 5)
	w, r, ok := f.FinalsNodes()
	assert.True(t, ok)
	assert.Equal(t, 4, w)
	assert.Equal(t, 5, r)
	assert.Contains(t, BuiltinNames(), DefaultFormat)

	_, err = Builtin("nope")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestParseJSON(t *testing.T) {
	f, err := Parse([]byte(minimalJSON), EncodingJSON)
	require.NoError(t, err)
	n, ok := f.Node(1)
	require.True(t, ok)
	dest, ok := n.Destination(1)
	assert.True(t, ok)
	assert.Equal(t, ToNode(2), dest)
	dest, _ = n.Destination(2)
	assert.Equal(t, Out, dest)
	_, ok = n.Destination(3)
	assert.False(t, ok)
	assert.Equal(t, []int{1, 2}, f.Sequence())
}

func TestParseYAML(t *testing.T) {
	doc := `
name: mini
nodes:
  - order: 1
    code: A
    label: A
    round: r1
    stage: winners
    slots: 2
    rules:
      - {position: 1, to: 2}
      - {position: 2, to: out}
  - order: 2
    code: B
    label: B
    round: r1
    stage: redemption
    slots: 2
    rules:
      - {position: 1, to: final}
rounds:
  - {id: r1, label: Round 1, nodes: [1, 2]}
runSequence: [2, 1]
`
	f, err := Parse([]byte(doc), EncodingYAML)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, f.Sequence())
	n, _ := f.Node(2)
	assert.Equal(t, Final, n.Rules[0].To)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`{"name":"x","nodez":[]}`), EncodingJSON)
	assert.Error(t, err)
}

func TestParseRejectsFractionalTarget(t *testing.T) {
	for _, to := range []string{`1.5`, `2e0`, `"1.5"`} {
		doc := `{"name":"x","nodes":[{"order":1,"code":"A","label":"A","round":"r1",` +
			`"stage":"winners","slots":2,"rules":[{"position":1,"to":` + to + `}]}]}`
		_, err := Parse([]byte(doc), EncodingJSON)
		if assert.Error(t, err, to) {
			assert.Contains(t, err.Error(), "invalid target")
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Format {
		f, err := Parse([]byte(minimalJSON), EncodingJSON)
		require.NoError(t, err)
		return f
	}
	tests := []struct {
		name   string
		modify func(f *Format)
		want   string
	}{
		{"dangling rule", func(f *Format) {
			f.Nodes[0].Rules[0].To = ToNode(42)
		}, "references unknown node order 42"},
		{"duplicate order", func(f *Format) {
			f.Nodes[1].Order = 1
		}, "node order 1 is used more than once"},
		{"unknown round", func(f *Format) {
			f.Nodes[0].Round = "rx"
		}, `node 1 references unknown round "rx"`},
		{"round with unknown node", func(f *Format) {
			f.Rounds[0].Nodes = append(f.Rounds[0].Nodes, 7)
		}, `round "r1" references unknown node order 7`},
		{"edge source", func(f *Format) {
			f.Edges[0].From = 8
		}, "edge 1: unknown source node order 8"},
		{"edge target", func(f *Format) {
			f.Edges[0].To = 9
		}, "edge 1: unknown target node order 9"},
		{"run sequence", func(f *Format) {
			f.RunSequence = []int{1, 2, 11}
		}, "run sequence references unknown node order 11"},
		{"finals", func(f *Format) {
			f.Finals = &Finals{WinnersFinal: 2, RedemptionFinal: 12}
		}, "redemption final references unknown node order 12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid()
			tt.modify(f)
			err := Validate(f)
			require.Error(t, err)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	f, err := Parse([]byte(minimalJSON), EncodingJSON)
	require.NoError(t, err)
	f.Nodes[0].Rules[0].To = ToNode(42)
	f.Edges[0].To = 43
	err = Validate(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "42")
	assert.Contains(t, err.Error(), "43")
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errs, 2)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mini.json")
	require.NoError(t, os.WriteFile(path, []byte(minimalJSON), 0o600))
	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mini", f.Name)

	_, err = Load(filepath.Join(dir, "mini.txt"))
	assert.Error(t, err)

	broken := strings.Replace(minimalJSON, `"to": 2`, `"to": 5`, 1)
	require.NoError(t, os.WriteFile(path, []byte(broken), 0o600))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5")
}

func TestMap(t *testing.T) {
	f, err := Builtin(DefaultFormat)
	require.NoError(t, err)
	e := basedata.NewEvent()
	e.Race("q1", "q", 1, 0)
	for i, id := range []string{"b1", "b2", "b3", "b4"} {
		e.Race(id, "b", 10+i, 3)
	}
	m := Map(e.Snapshot().Races(), 10, f)
	assert.Len(t, m, 4)
	assert.Equal(t, "b1", m[1].ID)
	assert.Equal(t, "b4", m[4].ID)
	_, ok := m[5]
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	f, err := Builtin(DefaultFormat)
	require.NoError(t, err)
	e := basedata.NewEvent().Pilots("a", "b", "c", "d").Round("b", model.EventTypeRace)
	e.Race("w1", "b", 1, 1, "a", "b", "c", "d").
		Laps("a", 30).Laps("b", 20).Laps("c", 25).Laps("d", 40).
		Completed()
	e.Race("w2", "b", 2, 1, "d", "c")

	states := Resolve(calc.New(e.Snapshot()), f, DefaultAnchor)
	require.Len(t, states, 5)

	w1 := states[0]
	assert.Equal(t, "w1", w1.RaceID)
	assert.Equal(t, "completed", w1.Status)
	require.Len(t, w1.Placements, 4)
	got := []string{}
	for _, p := range w1.Placements {
		got = append(got, p.PilotID)
	}
	assert.Equal(t, []string{"b", "c", "a", "d"}, got)
	assert.Equal(t, ToNode(4), *w1.Placements[0].Destination)
	assert.Equal(t, ToNode(3), *w1.Placements[3].Destination)

	w2 := states[1]
	assert.Equal(t, "scheduled", w2.Status)
	assert.Nil(t, w2.Placements[0].Destination)
	assert.Equal(t, "d", w2.Placements[0].PilotID)

	assert.Equal(t, "unmapped", states[2].Status)

	ranked, ok := RankedPilots(calc.New(e.Snapshot()), f, DefaultAnchor, 1)
	assert.True(t, ok)
	assert.Equal(t, []string{"b", "c", "a", "d"}, ranked)
	_, ok = RankedPilots(calc.New(e.Snapshot()), f, DefaultAnchor, 2)
	assert.False(t, ok)
}

func TestWatcherKeepsPreviousOnInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mini.json")
	require.NoError(t, os.WriteFile(path, []byte(minimalJSON), 0o600))

	var changed *Format
	w, err := NewWatcher(path, WithOnChange(func(f *Format) { changed = f }))
	require.NoError(t, err)
	first := w.Current()

	require.NoError(t, os.WriteFile(path, []byte(`{"name": "broken"`), 0o600))
	assert.False(t, w.reload())
	assert.Same(t, first, w.Current())
	assert.Nil(t, changed)

	updated := strings.Replace(minimalJSON, `"name": "mini"`, `"name": "mini-2"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	assert.True(t, w.reload())
	assert.Equal(t, "mini-2", w.Current().Name)
	assert.Same(t, w.Current(), changed)
}
