// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package placement computes the feed positions at which injected content
// (ads, banners, videos) appears relative to a stream of content cards.
//
// A Rule describes the first slot (AfterNth, 1-based), an optional repeat
// interval (Every) and how often the interval repeats (Repeat). Slots are
// pure arithmetic; no I/O happens here.
package placement

import (
	"errors"
	"fmt"
	"math"
)

// DefaultMaxSlots caps unbounded rules when the caller supplies no bound.
const DefaultMaxSlots = 100

// RepeatKind tells how many times a rule repeats after its first slot.
type RepeatKind int

const (
	// Once places a single slot at AfterNth.
	Once RepeatKind = iota
	// Bounded repeats Count more times after the first slot.
	Bounded
	// Unbounded repeats until the caller's bound is reached.
	Unbounded
)

// String returns the form value for the kind.
func (k RepeatKind) String() string {
	switch k {
	case Bounded:
		return "bounded"
	case Unbounded:
		return "unbounded"
	default:
		return "once"
	}
}

// ParseRepeatKind parses a form value produced by RepeatKind.String.
func ParseRepeatKind(s string) (RepeatKind, error) {
	switch s {
	case "", "once":
		return Once, nil
	case "bounded":
		return Bounded, nil
	case "unbounded":
		return Unbounded, nil
	}
	return Once, fmt.Errorf("unknown repeat kind %q", s)
}

// Repeat is the explicit repeat policy of a rule.
type Repeat struct {
	Kind  RepeatKind
	Count int // only meaningful for Bounded
}

// RepeatOnce returns the single-slot policy.
func RepeatOnce() Repeat { return Repeat{Kind: Once} }

// RepeatBounded returns a policy repeating n more times.
func RepeatBounded(n int) Repeat { return Repeat{Kind: Bounded, Count: n} }

// RepeatUnbounded returns a policy repeating until the bound.
func RepeatUnbounded() Repeat { return Repeat{Kind: Unbounded} }

// Rule is a placement/injection rule.
type Rule struct {
	AfterNth int
	Every    int
	Repeat   Repeat
}

// Bound limits the generated slots. Zero fields mean "no bound".
type Bound struct {
	// TotalCards drops every slot beyond the last card. A slot equal to
	// TotalCards (after the last card) is kept.
	TotalCards int
	// MaxSlots caps the number of returned slots.
	MaxSlots int
}

// Validation errors returned by Rule.Validate.
var (
	ErrNegativeAfter     = errors.New("placement: position must not be negative")
	ErrNegativeEvery     = errors.New("placement: repeat interval must not be negative")
	ErrNegativeCount     = errors.New("placement: repeat count must not be negative")
	ErrRepeatWithoutStep = errors.New("placement: repeating requires a repeat interval")
)

// Validate reports configuration mistakes an admin form should reject.
// Slots never fails; it clamps instead.
func (r Rule) Validate() error {
	switch {
	case r.AfterNth < 0:
		return ErrNegativeAfter
	case r.Every < 0:
		return ErrNegativeEvery
	case r.Repeat.Kind == Bounded && r.Repeat.Count < 0:
		return ErrNegativeCount
	case r.Repeat.Kind != Once && r.Every == 0:
		return ErrRepeatWithoutStep
	}
	return nil
}

// IsZero reports whether the rule defines no injection at all.
func (r Rule) IsZero() bool {
	return r.AfterNth <= 0
}

// Slots returns the ascending 1-based positions the rule resolves to.
// The result is always finite; invalid inputs yield an empty slice and
// positions never exceed math.MaxInt.
func Slots(r Rule, b Bound) []int {
	n := Count(r, b)
	slots := make([]int, 0, min(n, DefaultMaxSlots))
	for i := range n {
		slots = append(slots, r.AfterNth+i*r.Every)
	}
	return slots
}

// Count returns len(Slots(r, b)) without building the slice.
func Count(r Rule, b Bound) int {
	if r.AfterNth <= 0 {
		return 0
	}
	ceiling := math.MaxInt
	if b.TotalCards > 0 {
		ceiling = b.TotalCards
	}
	return max(min(slotLimit(r, b), fit(r, ceiling)), 0)
}

// fit returns how many positions AfterNth, AfterNth+Every, ... stay at or
// below ceiling.
func fit(r Rule, ceiling int) int {
	switch {
	case r.AfterNth > ceiling:
		return 0
	case r.Every <= 0:
		return 1
	default:
		return (ceiling-r.AfterNth)/r.Every + 1
	}
}

// slotLimit returns the maximum number of slots before position trimming.
func slotLimit(r Rule, b Bound) int {
	n := 1
	if r.Every > 0 {
		switch r.Repeat.Kind {
		case Bounded:
			if r.Repeat.Count > 0 {
				n = r.Repeat.Count
				if n < math.MaxInt {
					n++
				}
			}
		case Unbounded:
			n = unboundedLimit(r, b)
		}
	}
	if b.MaxSlots > 0 && n > b.MaxSlots {
		n = b.MaxSlots
	}
	return n
}

func unboundedLimit(r Rule, b Bound) int {
	switch {
	case b.TotalCards > 0:
		return fit(r, b.TotalCards)
	case b.MaxSlots > 0:
		return b.MaxSlots
	default:
		return DefaultMaxSlots
	}
}

// Calculate resolves the flat integer form used across the admin pages.
// repeatCount 0 means "no repeats beyond the first slot".
func Calculate(afterNth, repeatEvery, repeatCount int, b Bound) []int {
	return Slots(FromLegacy(afterNth, repeatEvery, repeatCount, ZeroMeansOnce), b)
}
