// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package placement

// Inject returns cards with an injected item inserted after every slot the
// rule resolves to. The card count is used as TotalCards unless the bound
// already sets a smaller one. makeItem receives the slot position.
func Inject[T any](cards []T, r Rule, b Bound, makeItem func(slot int) T) []T {
	if b.TotalCards <= 0 || b.TotalCards > len(cards) {
		b.TotalCards = len(cards)
	}
	if b.TotalCards == 0 {
		return append([]T(nil), cards...)
	}
	slots := Slots(r, b)

	out := make([]T, 0, len(cards)+len(slots))
	next := 0
	for i, card := range cards {
		out = append(out, card)
		pos := i + 1
		if next < len(slots) && slots[next] == pos {
			out = append(out, makeItem(pos))
			next++
		}
	}
	return out
}
