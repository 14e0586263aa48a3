// Package bracket describes elimination bracket formats and maps them onto
// the races of an event.
package bracket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Stage string

const (
	StageWinners    Stage = "winners"
	StageRedemption Stage = "redemption"
)

type EdgeType string

const (
	EdgeAdvance EdgeType = "advance"
	EdgeDrop    EdgeType = "drop"
)

type TargetKind int

const (
	TargetNode TargetKind = iota
	TargetOut
	TargetFinal
)

// Target is the destination of a finishing position: another node (by
// order), "out" or "final".
type Target struct {
	Kind TargetKind
	Node int
}

func ToNode(order int) Target { return Target{Kind: TargetNode, Node: order} }

var (
	Out   = Target{Kind: TargetOut}
	Final = Target{Kind: TargetFinal}
)

func (t Target) String() string {
	switch t.Kind {
	case TargetOut:
		return "out"
	case TargetFinal:
		return "final"
	default:
		return strconv.Itoa(t.Node)
	}
}

func (t *Target) parse(s string) error {
	switch s {
	case "out":
		*t = Out
	case "final":
		*t = Final
	default:
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid target %q: expected node order, \"out\" or \"final\"", s)
		}
		*t = ToNode(n)
	}
	return nil
}

func (t *Target) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: target must be a scalar", value.Line)
	}
	return t.parse(value.Value)
}

func (t Target) MarshalYAML() (any, error) {
	if t.Kind == TargetNode {
		return t.Node, nil
	}
	return t.String(), nil
}

func (t *Target) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		// raw text so 1.5 or 2e1 are rejected instead of truncated
		return t.parse(string(bytes.TrimSpace(data)))
	case string:
		return t.parse(x)
	}
	return fmt.Errorf("invalid target %s", string(data))
}

func (t Target) MarshalJSON() ([]byte, error) {
	if t.Kind == TargetNode {
		return json.Marshal(t.Node)
	}
	return json.Marshal(t.String())
}

//nolint:tagliatelle // document format
type (
	// Rule sends the pilot finishing at Position to To.
	Rule struct {
		Position int    `json:"position" yaml:"position"`
		To       Target `json:"to" yaml:"to"`
	}
	Node struct {
		Order int    `json:"order" yaml:"order"`
		Code  string `json:"code" yaml:"code"`
		Label string `json:"label" yaml:"label"`
		Round string `json:"round" yaml:"round"`
		Stage Stage  `json:"stage" yaml:"stage"`
		Slots int    `json:"slots" yaml:"slots"`
		Rules []Rule `json:"rules" yaml:"rules"`
	}
	Round struct {
		ID    string `json:"id" yaml:"id"`
		Label string `json:"label" yaml:"label"`
		Nodes []int  `json:"nodes" yaml:"nodes"`
	}
	Edge struct {
		From int      `json:"from" yaml:"from"`
		To   int      `json:"to" yaml:"to"`
		Type EdgeType `json:"type" yaml:"type"`
	}
	// Finals names the two races whose top finishers form the finals pool.
	Finals struct {
		WinnersFinal    int `json:"winnersFinal" yaml:"winnersFinal"`
		RedemptionFinal int `json:"redemptionFinal" yaml:"redemptionFinal"`
	}
	Format struct {
		Name        string  `json:"name" yaml:"name"`
		Nodes       []Node  `json:"nodes" yaml:"nodes"`
		Rounds      []Round `json:"rounds" yaml:"rounds"`
		Edges       []Edge  `json:"edges" yaml:"edges"`
		RunSequence []int   `json:"runSequence,omitempty" yaml:"runSequence,omitempty"`
		Finals      *Finals `json:"finals,omitempty" yaml:"finals,omitempty"`
	}
)

func (f *Format) Node(order int) (*Node, bool) {
	for i := range f.Nodes {
		if f.Nodes[i].Order == order {
			return &f.Nodes[i], true
		}
	}
	return nil, false
}

// Destination returns where the pilot finishing at position goes.
func (n *Node) Destination(position int) (Target, bool) {
	for _, r := range n.Rules {
		if r.Position == position {
			return r.To, true
		}
	}
	return Target{}, false
}

// FinalsNodes returns the orders of the winners and the redemption final.
// Without an explicit finals section the last node of each stage with a
// rule leading to "final" is used.
func (f *Format) FinalsNodes() (winners, redemption int, ok bool) {
	if f.Finals != nil {
		return f.Finals.WinnersFinal, f.Finals.RedemptionFinal, true
	}
	for _, n := range f.Nodes {
		leadsToFinal := false
		for _, r := range n.Rules {
			if r.To.Kind == TargetFinal {
				leadsToFinal = true
				break
			}
		}
		if !leadsToFinal {
			continue
		}
		switch n.Stage {
		case StageWinners:
			winners = max(winners, n.Order)
		case StageRedemption:
			redemption = max(redemption, n.Order)
		}
	}
	return winners, redemption, winners > 0 && redemption > 0
}
