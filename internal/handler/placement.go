// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/olegiv/feedadmin/internal/placement"
	"github.com/olegiv/feedadmin/internal/render"
	"github.com/olegiv/feedadmin/internal/resource"
)

// Placement preview limits.
const (
	defaultPreviewCards = 30
	maxPreviewCards     = 500
	// maxAPISlots caps the slots returned by the JSON endpoint.
	maxAPISlots = 1000
)

// PlacementHandler serves the placement calculator.
type PlacementHandler struct {
	renderer *render.Renderer
	registry *resource.Registry
}

// NewPlacementHandler creates a PlacementHandler.
func NewPlacementHandler(renderer *render.Renderer, registry *resource.Registry) *PlacementHandler {
	return &PlacementHandler{renderer: renderer, registry: registry}
}

// FeedCell is one position of the simulated feed.
type FeedCell struct {
	Position int
	Injected bool
	Label    string
}

// WireForm is a rule encoded for one repeatCount convention.
type WireForm struct {
	Convention  string
	AfterNth    int
	RepeatEvery int
	RepeatCount int
	Exact       bool
}

// PlacementPreview is the data of the placement page.
type PlacementPreview struct {
	Rule        *RuleField
	TotalCards  int
	MaxSlots    int
	Valid       bool
	Description string
	Slots       []int
	Feed        []FeedCell
	Wire        []WireForm
	Resources   []*resource.Resource
}

// Preview handles GET /admin/placement.
func (h *PlacementHandler) Preview(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get(resource.RuleKindKey) == "" && query.Get(resource.RuleAfterKey) == "" {
		query = url.Values{}
		resource.SetRuleValues(query, placement.Rule{AfterNth: 3, Every: 5, Repeat: placement.RepeatBounded(3)})
	}

	total := ParseIntParam(r, "total", defaultPreviewCards, 1, maxPreviewCards)
	maxSlots := ParseIntParam(r, "max", 0, 1, maxAPISlots)

	ps := &resource.PlacementSpec{ZeroCount: placement.ZeroMeansUnbounded}
	data := PlacementPreview{
		TotalCards: total,
		MaxSlots:   maxSlots,
		Resources:  h.registry.WithPlacement(),
	}

	rule, ok := ruleFromInputs(query.Get(resource.RuleAfterKey), query.Get(resource.RuleEveryKey),
		query.Get(resource.RuleCountKey), query.Get(resource.RuleKindKey))
	ruleErr := ""
	if !ok {
		ruleErr = "Enter whole, non-negative numbers. Repeating needs an interval greater than 0."
	}
	data.Rule = buildRuleField(ps, query, ruleErr)

	status := http.StatusOK
	if ok {
		bound := placement.Bound{TotalCards: total, MaxSlots: maxSlots}
		data.Valid = true
		data.Description = describeRule(rule)
		data.Slots = placement.Slots(rule, bound)
		data.Feed = simulateFeed(rule, bound)
		data.Wire = wireForms(rule)
	} else {
		status = http.StatusUnprocessableEntity
	}

	renderPage(w, r, h.renderer, status, pagePlacement, render.TemplateData{
		Title:  "Placement calculator",
		Active: "placement",
		Data:   data,
	})
}

// simulateFeed interleaves placeholder cards with injected items.
func simulateFeed(rule placement.Rule, bound placement.Bound) []FeedCell {
	cards := make([]FeedCell, bound.TotalCards)
	for i := range cards {
		cards[i] = FeedCell{Position: i + 1, Label: "Card " + strconv.Itoa(i+1)}
	}
	return placement.Inject(cards, rule, bound, func(slot int) FeedCell {
		return FeedCell{Position: slot, Injected: true, Label: "Injected after " + strconv.Itoa(slot)}
	})
}

// wireForms shows how the rule is stored under each convention.
func wireForms(rule placement.Rule) []WireForm {
	out := make([]WireForm, 0, 2)
	for _, zero := range []placement.ZeroCount{placement.ZeroMeansOnce, placement.ZeroMeansUnbounded} {
		a, e, c := rule.Legacy(zero)
		back := placement.FromLegacy(a, e, c, zero)
		out = append(out, WireForm{
			Convention:  zero.String(),
			AfterNth:    a,
			RepeatEvery: e,
			RepeatCount: c,
			Exact:       sameSlots(rule, back),
		})
	}
	return out
}

func sameSlots(a, b placement.Rule) bool {
	bound := placement.Bound{MaxSlots: placement.DefaultMaxSlots}
	sa, sb := placement.Slots(a, bound), placement.Slots(b, bound)
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// SlotsResponse is the JSON answer of the slot calculator.
type SlotsResponse struct {
	AfterNth    int    `json:"afterNth"`
	RepeatEvery int    `json:"repeatEvery"`
	RepeatCount int    `json:"repeatCount"`
	ZeroCount   string `json:"zeroCount"`
	Repeat      string `json:"repeat"`
	Slots       []int  `json:"slots"`
	Count       int    `json:"count"`
	Truncated   bool   `json:"truncated"`
}

// APISlots handles GET /api/placement/slots. It takes the flat integer
// form (afterNth, repeatEvery, repeatCount) plus optional zeroCount
// ("once" or "unbounded"), totalCards and maxSlots.
func (h *PlacementHandler) APISlots(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	ints := map[string]int{}
	for _, key := range []string{"afterNth", "repeatEvery", "repeatCount", "totalCards", "maxSlots"} {
		raw := strings.TrimSpace(query.Get(key))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("%s must be an integer", key))
			return
		}
		ints[key] = v
	}

	zero := placement.ZeroMeansOnce
	switch query.Get("zeroCount") {
	case "", "once":
	case "unbounded":
		zero = placement.ZeroMeansUnbounded
	default:
		writeJSONError(w, http.StatusBadRequest, `zeroCount must be "once" or "unbounded"`)
		return
	}

	rule := placement.FromLegacy(ints["afterNth"], ints["repeatEvery"], ints["repeatCount"], zero)
	bound := placement.Bound{TotalCards: max(ints["totalCards"], 0), MaxSlots: max(ints["maxSlots"], 0)}

	truncated := false
	switch {
	case rule.Repeat.Kind == placement.Unbounded && bound.TotalCards == 0:
		// an open-ended sequence is always cut somewhere
		if bound.MaxSlots == 0 || bound.MaxSlots > maxAPISlots {
			bound.MaxSlots = maxAPISlots
		}
		truncated = true
	case bound.MaxSlots == 0 || bound.MaxSlots > maxAPISlots:
		if placement.Count(rule, bound) > maxAPISlots {
			bound.MaxSlots = maxAPISlots
			truncated = true
		}
	}

	slots := placement.Slots(rule, bound)
	writeJSON(w, http.StatusOK, SlotsResponse{
		AfterNth:    ints["afterNth"],
		RepeatEvery: ints["repeatEvery"],
		RepeatCount: ints["repeatCount"],
		ZeroCount:   zeroName(zero),
		Repeat:      rule.Repeat.Kind.String(),
		Slots:       slots,
		Count:       len(slots),
		Truncated:   truncated,
	})
}

func zeroName(z placement.ZeroCount) string {
	if z == placement.ZeroMeansUnbounded {
		return "unbounded"
	}
	return "once"
}
