package bracket

import (
	"errors"
	"fmt"
)

// ValidationError collects every problem found in a format.
type ValidationError struct {
	Format string
	Errs   []error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid bracket format %q:\n%v", e.Format, errors.Join(e.Errs...))
}

func (e *ValidationError) Unwrap() []error {
	return e.Errs
}

// Validate checks the references within a format. All problems are
// reported at once.
//
//nolint:funlen,cyclop,gocognit // sequence of independent checks
func Validate(f *Format) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}
	if len(f.Nodes) == 0 {
		add("no nodes defined")
	}
	orders := map[int]bool{}
	for _, n := range f.Nodes {
		if n.Order <= 0 {
			add("node %q: order %d must be positive", n.Code, n.Order)
		}
		if orders[n.Order] {
			add("node order %d is used more than once", n.Order)
		}
		orders[n.Order] = true
	}
	rounds := map[string]bool{}
	for _, r := range f.Rounds {
		if rounds[r.ID] {
			add("round id %q is used more than once", r.ID)
		}
		rounds[r.ID] = true
		for _, o := range r.Nodes {
			if !orders[o] {
				add("round %q references unknown node order %d", r.ID, o)
			}
		}
	}
	for _, n := range f.Nodes {
		if n.Round != "" && !rounds[n.Round] {
			add("node %d references unknown round %q", n.Order, n.Round)
		}
		if n.Stage != StageWinners && n.Stage != StageRedemption {
			add("node %d has invalid stage %q", n.Order, n.Stage)
		}
		positions := map[int]bool{}
		for _, r := range n.Rules {
			if r.Position < 1 || (n.Slots > 0 && r.Position > n.Slots) {
				add("node %d: rule position %d is outside of 1..%d", n.Order, r.Position, n.Slots)
			}
			if positions[r.Position] {
				add("node %d: position %d has more than one rule", n.Order, r.Position)
			}
			positions[r.Position] = true
			if r.To.Kind == TargetNode {
				if !orders[r.To.Node] {
					add("node %d: rule for position %d references unknown node order %d",
						n.Order, r.Position, r.To.Node)
				} else if r.To.Node == n.Order {
					add("node %d: rule for position %d references the node itself", n.Order, r.Position)
				}
			}
		}
	}
	for i, e := range f.Edges {
		if !orders[e.From] {
			add("edge %d: unknown source node order %d", i+1, e.From)
		}
		if !orders[e.To] {
			add("edge %d: unknown target node order %d", i+1, e.To)
		}
		if e.Type != EdgeAdvance && e.Type != EdgeDrop {
			add("edge %d: invalid type %q", i+1, e.Type)
		}
	}
	seen := map[int]bool{}
	for _, o := range f.RunSequence {
		if !orders[o] {
			add("run sequence references unknown node order %d", o)
		}
		if seen[o] {
			add("run sequence contains node order %d more than once", o)
		}
		seen[o] = true
	}
	if f.Finals != nil {
		if !orders[f.Finals.WinnersFinal] {
			add("finals: winners final references unknown node order %d", f.Finals.WinnersFinal)
		}
		if !orders[f.Finals.RedemptionFinal] {
			add("finals: redemption final references unknown node order %d", f.Finals.RedemptionFinal)
		}
		if f.Finals.WinnersFinal == f.Finals.RedemptionFinal {
			add("finals: winners and redemption final must differ")
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Format: f.Name, Errs: errs}
	}
	return nil
}
