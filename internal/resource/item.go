// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package resource

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/olegiv/feedadmin/internal/backend"
	"github.com/olegiv/feedadmin/internal/placement"
)

// Item is a backend record viewed through its resource schema.
type Item struct {
	Resource *Resource
	Record   backend.Record
}

// NewItem wraps a record.
func (r *Resource) NewItem(rec backend.Record) Item {
	return Item{Resource: r, Record: rec}
}

// ID returns the record identifier.
func (i Item) ID() string { return i.Record.ID() }

// String returns a field formatted for display.
func (i Item) String(key string) string {
	if list := i.Record.Strings(key); list != nil {
		return strings.Join(list, ", ")
	}
	return i.Record.String(key)
}

// Title returns the display name, falling back to the ID.
func (i Item) Title() string {
	if t := i.Record.String(i.Resource.TitleKey); t != "" {
		return t
	}
	return i.ID()
}

// Rule returns the item's placement rule, if the resource has one and the
// record carries it.
func (i Item) Rule() (placement.Rule, bool) {
	p := i.Resource.Placement
	if p == nil {
		return placement.Rule{}, false
	}
	src := i.Record
	if p.Key != "" {
		src = i.Record.Object(p.Key)
	}
	if src == nil {
		return placement.Rule{}, false
	}
	if _, ok := src[p.AfterKey]; !ok {
		return placement.Rule{}, false
	}
	return placement.FromLegacy(src.Int(p.AfterKey), src.Int(p.EveryKey), src.Int(p.CountKey), p.ZeroCount), true
}

// Matches reports whether any list column contains q (case-insensitive).
func (i Item) Matches(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(i.ID()), q) || strings.Contains(strings.ToLower(i.Title()), q) {
		return true
	}
	for _, col := range i.Resource.ListColumns {
		if strings.Contains(strings.ToLower(i.String(col)), q) {
			return true
		}
	}
	return false
}

// FormValues converts the item into form input values for the edit page.
func (i Item) FormValues() url.Values {
	v := url.Values{}
	for _, f := range i.Resource.Fields {
		if f.IsFile() {
			continue
		}
		switch f.Kind {
		case KindList:
			v.Set(f.Name, strings.Join(i.Record.Strings(f.Name), "\n"))
		case KindCountries:
			v.Set(f.Name, strings.Join(i.Record.Strings(f.Name), ", "))
		case KindBool:
			if i.Record.Bool(f.Name) {
				v.Set(f.Name, "true")
			}
		case KindDateTime:
			if t, err := ParseDateTime(i.Record.String(f.Name)); err == nil {
				v.Set(f.Name, t.UTC().Format(DateTimeLayout))
			} else {
				v.Set(f.Name, i.Record.String(f.Name))
			}
		default:
			v.Set(f.Name, i.Record.String(f.Name))
		}
	}
	if rule, ok := i.Rule(); ok {
		SetRuleValues(v, rule)
	}
	return v
}

// SetRuleValues writes a rule into placement editor form keys.
func SetRuleValues(v url.Values, rule placement.Rule) {
	v.Set(RuleAfterKey, strconv.Itoa(rule.AfterNth))
	v.Set(RuleEveryKey, strconv.Itoa(rule.Every))
	v.Set(RuleKindKey, rule.Repeat.Kind.String())
	if rule.Repeat.Kind == placement.Bounded {
		v.Set(RuleCountKey, strconv.Itoa(rule.Repeat.Count))
	}
}

// FileURL returns the stored URL of an uploaded file field, if the backend
// reports one under the field name or a "<field>Url" key.
func (i Item) FileURL(field string) string {
	for _, k := range []string{field + "Url", field + "URL", field} {
		if s := i.Record.String(k); strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "/") {
			return s
		}
	}
	return ""
}

// Updated returns the record's last modification time, if present.
func (i Item) Updated() (time.Time, bool) {
	for _, k := range []string{"updatedAt", "createdAt"} {
		if t, err := time.Parse(time.RFC3339, i.Record.String(k)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
