// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package placement

// ZeroCount tells how a wire repeatCount of 0 is read when repeatEvery > 0.
// The backend pages disagree, so every resource declares its convention.
type ZeroCount int

const (
	// ZeroMeansOnce reads repeatCount 0 as "no repeats".
	ZeroMeansOnce ZeroCount = iota
	// ZeroMeansUnbounded reads repeatCount 0 as "repeat until the feed ends".
	ZeroMeansUnbounded
)

// String returns a human readable description used in admin help texts.
func (z ZeroCount) String() string {
	if z == ZeroMeansUnbounded {
		return "0 repeats forever"
	}
	return "0 means no repeats"
}

// FromLegacy converts the flat {afterNth, repeatEvery, repeatCount} triple
// into a Rule. Negative values are clamped to zero.
func FromLegacy(afterNth, repeatEvery, repeatCount int, zero ZeroCount) Rule {
	r := Rule{
		AfterNth: max(afterNth, 0),
		Every:    max(repeatEvery, 0),
		Repeat:   RepeatOnce(),
	}
	if r.Every == 0 {
		return r
	}

	switch {
	case repeatCount > 0:
		r.Repeat = RepeatBounded(repeatCount)
	case zero == ZeroMeansUnbounded:
		r.Repeat = RepeatUnbounded()
	}
	return r
}

// Legacy converts the rule back to the flat triple for the given convention.
// A rule that cannot be expressed (Unbounded under ZeroMeansOnce) is sent as
// Once, which is the closest safe meaning. Under ZeroMeansOnce the interval
// of a single-slot rule is kept so an unchanged record saves unchanged.
func (r Rule) Legacy(zero ZeroCount) (afterNth, repeatEvery, repeatCount int) {
	afterNth = max(r.AfterNth, 0)
	if r.Every <= 0 {
		return afterNth, 0, 0
	}

	switch {
	case r.Repeat.Kind == Bounded && r.Repeat.Count > 0:
		return afterNth, r.Every, r.Repeat.Count
	case zero == ZeroMeansOnce:
		return afterNth, r.Every, 0
	case r.Repeat.Kind == Unbounded:
		return afterNth, r.Every, 0
	default:
		// an interval with count 0 would repeat forever here
		return afterNth, 0, 0
	}
}
