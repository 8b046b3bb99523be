// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"html/template"
	"net/url"
	"strconv"
	"strings"

	"github.com/olegiv/feedadmin/internal/placement"
	"github.com/olegiv/feedadmin/internal/resource"
)

// previewSlots is the number of slots shown next to a placement rule.
const previewSlots = 8

// FormView is the data of the create/edit page.
type FormView struct {
	Resource  *resource.Resource
	ID        string
	Creating  bool
	Action    string
	Multipart bool
	Fields    []FormField
	Rule      *RuleField
	Error     string
	ListURL   string
	DeleteURL string
}

// FormField is one rendered input.
type FormField struct {
	resource.Field
	Value      string
	Checked    bool
	Error      string
	CurrentURL string
	InputType  string
	Preview    template.HTML
}

// RuleField is the placement rule editor.
type RuleField struct {
	After          string
	Every          string
	Count          string
	Kind           string
	AllowUnbounded bool
	ZeroNote       string
	MinAfter       int
	Error          string
	Slots          []int
	More           bool
}

// ListView is the data of a resource list page.
type ListView struct {
	Resource   *resource.Resource
	Columns    []string
	Rows       []ListRow
	Query      string
	Total      int
	Cached     bool
	Pagination AdminPagination
	NewURL     string
}

// ListRow is one list table row.
type ListRow struct {
	ID        string
	Title     string
	Cells     []string
	Rule      string
	Slots     string
	EditURL   string
	DeleteURL string
	Thumb     string
}

func resourceURL(res *resource.Resource) string {
	return RouteAdmin + "/" + res.Name
}

func itemURL(res *resource.Resource, id string) string {
	return resourceURL(res) + "/" + url.PathEscape(id)
}

// inputType maps a field kind to an HTML input type.
func inputType(k resource.Kind) string {
	switch k {
	case resource.KindURL:
		return "url"
	case resource.KindNumber:
		return "number"
	case resource.KindDateTime:
		return "datetime-local"
	case resource.KindFile:
		return "file"
	case resource.KindBool:
		return "checkbox"
	default:
		return "text"
	}
}

// buildForm assembles the form view from input values and errors.
// item is nil on create.
func buildForm(res *resource.Resource, values url.Values, errs resource.FieldErrors, item *resource.Item) FormView {
	view := FormView{
		Resource:  res,
		Creating:  item == nil,
		Multipart: res.HasFiles(),
		ListURL:   resourceURL(res),
		Action:    resourceURL(res),
	}
	if item != nil {
		view.ID = item.ID()
		view.Action = itemURL(res, view.ID)
		view.DeleteURL = view.Action + RouteSuffixDelete
	}

	for _, f := range res.Fields {
		ff := FormField{
			Field:     f,
			Value:     values.Get(f.Name),
			Error:     errs[f.Name],
			InputType: inputType(f.Kind),
		}
		switch f.Kind {
		case resource.KindBool:
			ff.Checked = isChecked(ff.Value)
		case resource.KindFile:
			ff.Value = ""
			if item != nil {
				ff.CurrentURL = item.FileURL(f.Name)
			}
		case resource.KindMarkdown:
			if ff.Value != "" {
				if html, err := resource.RenderMarkdown(ff.Value); err == nil {
					ff.Preview = html
				}
			}
		}
		view.Fields = append(view.Fields, ff)
	}

	if res.Placement != nil {
		view.Rule = buildRuleField(res.Placement, values, errs[resource.RuleField])
	}
	return view
}

func isChecked(v string) bool {
	switch strings.ToLower(v) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}

// buildRuleField fills the placement editor and previews its slots when
// the inputs form a valid rule.
func buildRuleField(ps *resource.PlacementSpec, values url.Values, errMsg string) *RuleField {
	rf := &RuleField{
		After:          values.Get(resource.RuleAfterKey),
		Every:          values.Get(resource.RuleEveryKey),
		Count:          values.Get(resource.RuleCountKey),
		Kind:           values.Get(resource.RuleKindKey),
		AllowUnbounded: ps.ZeroCount == placement.ZeroMeansUnbounded,
		ZeroNote:       ps.ZeroCount.String(),
		MinAfter:       ps.MinAfter,
		Error:          errMsg,
	}
	if rf.Kind == "" {
		rf.Kind = placement.Once.String()
	}
	if errMsg != "" {
		return rf
	}

	rule, ok := ruleFromInputs(rf.After, rf.Every, rf.Count, rf.Kind)
	if !ok || rule.AfterNth < 1 {
		return rf
	}
	slots := placement.Slots(rule, placement.Bound{MaxSlots: previewSlots + 1})
	if len(slots) > previewSlots {
		rf.Slots, rf.More = slots[:previewSlots], true
	} else {
		rf.Slots = slots
	}
	return rf
}

func ruleFromInputs(after, every, count, kind string) (placement.Rule, bool) {
	a, errA := atoiDefault(after)
	e, errE := atoiDefault(every)
	c, errC := atoiDefault(count)
	k, errK := placement.ParseRepeatKind(kind)
	if errA != nil || errE != nil || errC != nil || errK != nil {
		return placement.Rule{}, false
	}
	rule := placement.Rule{AfterNth: a, Every: e, Repeat: placement.Repeat{Kind: k}}
	if k == placement.Bounded {
		rule.Repeat.Count = c
	}
	if rule.Validate() != nil {
		return placement.Rule{}, false
	}
	return rule, true
}

func atoiDefault(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// describeRule renders a rule as short text for list tables.
func describeRule(rule placement.Rule) string {
	if rule.AfterNth <= 0 {
		return "not placed"
	}
	var b strings.Builder
	b.WriteString("after #")
	b.WriteString(strconv.Itoa(rule.AfterNth))
	if rule.Every <= 0 || rule.Repeat.Kind == placement.Once {
		return b.String()
	}
	b.WriteString(", every ")
	b.WriteString(strconv.Itoa(rule.Every))
	switch rule.Repeat.Kind {
	case placement.Bounded:
		b.WriteString(", ")
		b.WriteString(strconv.Itoa(rule.Repeat.Count))
		if rule.Repeat.Count == 1 {
			b.WriteString(" repeat")
		} else {
			b.WriteString(" repeats")
		}
	case placement.Unbounded:
		b.WriteString(", no limit")
	}
	return b.String()
}

// slotSummary lists the first slots of a rule, e.g. "10, 15, 20, ...".
func slotSummary(rule placement.Rule, limit int) string {
	slots := placement.Slots(rule, placement.Bound{MaxSlots: limit + 1})
	if len(slots) == 0 {
		return ""
	}
	more := len(slots) > limit
	if more {
		slots = slots[:limit]
	}
	parts := make([]string, len(slots))
	for i, s := range slots {
		parts[i] = strconv.Itoa(s)
	}
	out := strings.Join(parts, ", ")
	if more {
		out += ", ..."
	}
	return out
}

// buildRow converts an item into a list table row.
func buildRow(item resource.Item) ListRow {
	res := item.Resource
	id := item.ID()
	row := ListRow{
		ID:    id,
		Title: item.Title(),
		Cells: make([]string, len(res.ListColumns)),
	}
	if id != "" {
		row.EditURL = itemURL(res, id)
		row.DeleteURL = row.EditURL + RouteSuffixDelete
	}
	for i, col := range res.ListColumns {
		row.Cells[i] = item.String(col)
	}
	if rule, ok := item.Rule(); ok {
		row.Rule = describeRule(rule)
		row.Slots = slotSummary(rule, 5)
	}
	for _, f := range res.FileFields() {
		if f.Accepts(resource.AcceptImage) {
			if u := item.FileURL(f.Name); u != "" {
				row.Thumb = u
				break
			}
		}
	}
	return row
}

// columnNames labels wire keys that are not form fields.
var columnNames = map[string]string{
	"placementIndex": "Position",
	"repeatEvery":    "Every",
	"repeatCount":    "Repeats",
	"createdAt":      "Created",
	"updatedAt":      "Updated",
}

// columnLabels returns the header labels of a list table.
func columnLabels(res *resource.Resource) []string {
	labels := make([]string, len(res.ListColumns))
	for i, col := range res.ListColumns {
		if f, ok := res.Field(col); ok {
			labels[i] = f.Label
			continue
		}
		if name, ok := columnNames[col]; ok {
			labels[i] = name
			continue
		}
		labels[i] = col
	}
	return labels
}
