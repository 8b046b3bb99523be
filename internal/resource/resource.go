// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package resource describes the content collections managed by the admin.
// Each Resource is a schema: its backend endpoint, its form fields and, for
// injected content, where its placement rule lives in the wire payload.
// One generic list/form handler serves every resource from this schema.
package resource

import (
	"net/http"
	"strings"

	"github.com/olegiv/feedadmin/internal/placement"
)

// Kind is the input type of a form field.
type Kind string

// Field kinds.
const (
	KindText      Kind = "text"
	KindTextarea  Kind = "textarea"
	KindMarkdown  Kind = "markdown"
	KindNumber    Kind = "number"
	KindBool      Kind = "bool"
	KindURL       Kind = "url"
	KindSelect    Kind = "select"
	KindDateTime  Kind = "datetime"
	KindList      Kind = "list"
	KindFile      Kind = "file"
	KindCountries Kind = "countries"
	KindLanguage  Kind = "language"
	KindSlug      Kind = "slug"
)

// Accepted upload families for file fields.
const (
	AcceptImage = "image"
	AcceptVideo = "video"
	AcceptMedia = "image,video"
)

// Field describes one form input and the payload key it maps to.
// For file fields Name is the multipart field name expected by the backend.
type Field struct {
	Name     string
	Label    string
	Kind     Kind
	Required bool
	Options  []string
	Help     string
	// Accept lists upload families for file fields.
	Accept string
	// Rules holds extra validator tags, e.g. "gte=0,lte=100".
	Rules string
	// From names the field a slug is derived from when left empty.
	From string
}

// IsFile reports whether the field is an upload.
func (f Field) IsFile() bool { return f.Kind == KindFile }

// Accepts reports whether the field takes uploads of the given family.
func (f Field) Accepts(family string) bool {
	for _, a := range strings.Split(f.Accept, ",") {
		if strings.TrimSpace(a) == family {
			return true
		}
	}
	return false
}

// PlacementSpec tells where a resource keeps its placement rule.
// With Key set the three integers live in a nested object under Key,
// otherwise they are flat keys on the record itself.
type PlacementSpec struct {
	Key      string
	AfterKey string
	EveryKey string
	CountKey string
	// ZeroCount is how this backend collection reads repeatCount 0.
	ZeroCount placement.ZeroCount
	// MinAfter is the smallest accepted first position (0 or 1).
	MinAfter int
}

// Resource is one backend collection.
type Resource struct {
	Name     string
	Title    string
	Singular string
	Endpoint string
	// UpdateMethod is PUT or PATCH.
	UpdateMethod string
	Fields       []Field
	Placement    *PlacementSpec
	// ListColumns are the record keys shown in the list table.
	ListColumns []string
	// TitleKey is the record key used as the item's display name.
	TitleKey string
}

// Field returns the field with the given name.
func (r *Resource) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasFiles reports whether the form needs multipart encoding.
func (r *Resource) HasFiles() bool {
	for _, f := range r.Fields {
		if f.IsFile() {
			return true
		}
	}
	return false
}

// FileFields returns the upload fields in form order.
func (r *Resource) FileFields() []Field {
	var out []Field
	for _, f := range r.Fields {
		if f.IsFile() {
			out = append(out, f)
		}
	}
	return out
}

// Method returns the HTTP method used for updates.
func (r *Resource) Method() string {
	if r.UpdateMethod == "" {
		return http.MethodPut
	}
	return r.UpdateMethod
}

// flat builds a PlacementSpec for the flat placementIndex style.
func flat(zero placement.ZeroCount) *PlacementSpec {
	return &PlacementSpec{
		AfterKey:  "placementIndex",
		EveryKey:  "repeatEvery",
		CountKey:  "repeatCount",
		ZeroCount: zero,
		MinAfter:  1,
	}
}

// nested builds a PlacementSpec for a {afterNth, repeatEvery, repeatCount} sub-object.
func nested(key string, zero placement.ZeroCount, minAfter int) *PlacementSpec {
	return &PlacementSpec{
		Key:       key,
		AfterKey:  "afterNth",
		EveryKey:  "repeatEvery",
		CountKey:  "repeatCount",
		ZeroCount: zero,
		MinAfter:  minAfter,
	}
}
