// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package resource

import (
	"errors"
	"math"
	"mime/multipart"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/olegiv/feedadmin/internal/backend"
	"github.com/olegiv/feedadmin/internal/placement"
	"github.com/olegiv/feedadmin/internal/util"
)

// Form keys of the placement editor. The rule is edited as an explicit
// repeat kind and re-encoded into the resource's wire convention.
const (
	RuleField    = "rule"
	RuleAfterKey = "rule.afterNth"
	RuleEveryKey = "rule.repeatEvery"
	RuleKindKey  = "rule.repeat"
	RuleCountKey = "rule.repeatCount"
)

// DateTimeLayout is the value format of <input type="datetime-local">.
const DateTimeLayout = "2006-01-02T15:04"

// DecodeOptions controls Decode.
type DecodeOptions struct {
	// Creating makes required uploads mandatory. On update an empty file
	// input keeps the stored file.
	Creating bool
	// MaxUploadBytes bounds each uploaded file. Zero means no limit.
	MaxUploadBytes int64
}

// Submission is a decoded form ready to be sent to the backend.
type Submission struct {
	Body    backend.Body
	Rule    placement.Rule
	HasRule bool
}

// Decode validates a submitted form and builds the backend payload.
// files may be nil for forms without uploads. On failure the returned
// FieldErrors is non-empty and the submission must not be sent.
func (r *Resource) Decode(form url.Values, files map[string][]*multipart.FileHeader, opts DecodeOptions) (*Submission, FieldErrors) {
	errs := FieldErrors{}
	sub := &Submission{Body: backend.Body{Fields: make(map[string]any)}}

	for _, f := range r.Fields {
		if f.IsFile() {
			r.decodeFile(f, files, opts, sub, errs)
			continue
		}
		if value, ok := decodeValue(f, form, errs); ok {
			sub.Body.Fields[f.Name] = value
		}
	}

	if r.Placement != nil {
		rule, ok := r.Placement.decodeRule(form, errs)
		if ok {
			sub.Rule, sub.HasRule = rule, true
			r.Placement.encode(rule, sub.Body.Fields)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return sub, nil
}

// decodeValue converts one non-file field. It reports false when the field
// contributes nothing to the payload.
func decodeValue(f Field, form url.Values, errs FieldErrors) (any, bool) {
	raw := strings.TrimSpace(form.Get(f.Name))
	label := f.Label

	switch f.Kind {
	case KindBool:
		switch strings.ToLower(raw) {
		case "on", "true", "1", "yes":
			return true, true
		}
		return false, true

	case KindNumber:
		if raw == "" {
			if f.Required {
				errs.Add(f.Name, label+" is required")
			}
			return nil, false
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			errs.Add(f.Name, label+" must be a number")
			return nil, false
		}
		if msg := check(n, f.Rules, label); msg != "" {
			errs.Add(f.Name, msg)
			return nil, false
		}
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n), true
		}
		return n, true

	case KindDateTime:
		if raw == "" {
			if f.Required {
				errs.Add(f.Name, label+" is required")
			}
			return nil, false
		}
		t, err := ParseDateTime(raw)
		if err != nil {
			errs.Add(f.Name, label+" must be a date and time")
			return nil, false
		}
		return t.UTC().Format(time.RFC3339), true

	case KindList, KindCountries:
		if f.Kind == KindCountries {
			raw = strings.ToUpper(strings.ReplaceAll(raw, " ", ","))
		}
		items := SplitList(raw)
		if len(items) == 0 {
			if f.Required {
				errs.Add(f.Name, label+" is required")
				return nil, false
			}
			return []string{}, true
		}
		tag := f.Rules
		if f.Kind == KindCountries {
			tag = joinTags("dive", "iso3166_1_alpha2")
		}
		if msg := check(items, tag, label); msg != "" {
			errs.Add(f.Name, msg)
			return nil, false
		}
		return items, true

	case KindSlug:
		if raw == "" && f.From != "" {
			raw = util.Slugify(form.Get(f.From))
		}
		if raw == "" {
			if f.Required {
				errs.Add(f.Name, label+" is required")
				return nil, false
			}
			return "", true
		}
		if msg := check(raw, joinTags("slug", f.Rules), label); msg != "" {
			errs.Add(f.Name, msg)
			return nil, false
		}
		return raw, true
	}

	// text-like kinds
	if raw == "" {
		if f.Required {
			errs.Add(f.Name, check(raw, "required", label))
			return nil, false
		}
		return "", true
	}

	var tag string
	switch f.Kind {
	case KindURL:
		tag = "http_url"
	case KindLanguage:
		tag = "bcp47_language_tag"
	case KindSelect:
		if len(f.Options) > 0 {
			tag = "oneof=" + strings.Join(f.Options, " ")
		}
	}
	if f.Kind == KindMarkdown || f.Kind == KindTextarea {
		// keep author line breaks
		raw = strings.TrimSpace(strings.ReplaceAll(form.Get(f.Name), "\r\n", "\n"))
	}
	if msg := check(raw, joinTags(tag, f.Rules), label); msg != "" {
		errs.Add(f.Name, msg)
		return nil, false
	}
	return raw, true
}

func (r *Resource) decodeFile(f Field, files map[string][]*multipart.FileHeader, opts DecodeOptions, sub *Submission, errs FieldErrors) {
	headers := files[f.Name]
	if len(headers) == 0 || headers[0] == nil || headers[0].Filename == "" {
		if f.Required && opts.Creating {
			errs.Add(f.Name, f.Label+" is required")
		}
		return
	}

	up, err := ReadUpload(headers[0], f.Accept, opts.MaxUploadBytes)
	if err != nil {
		errs.Add(f.Name, f.Label+": "+uploadMessage(err))
		return
	}
	sub.Body.Files = append(sub.Body.Files, backend.File{
		Field:       f.Name,
		Filename:    up.Filename,
		ContentType: up.ContentType,
		Data:        up.Data,
	})
}

// decodeRule reads the placement editor inputs.
func (p *PlacementSpec) decodeRule(form url.Values, errs FieldErrors) (placement.Rule, bool) {
	after, okAfter := formInt(form, RuleAfterKey, 0)
	every, okEvery := formInt(form, RuleEveryKey, 0)
	count, okCount := formInt(form, RuleCountKey, 0)
	if !okAfter || !okEvery || !okCount {
		errs.Add(RuleField, "Placement values must be whole numbers")
		return placement.Rule{}, false
	}

	kind, err := placement.ParseRepeatKind(strings.TrimSpace(form.Get(RuleKindKey)))
	if err != nil {
		errs.Add(RuleField, "Unknown repeat mode")
		return placement.Rule{}, false
	}

	rule := placement.Rule{AfterNth: after, Every: every, Repeat: placement.Repeat{Kind: kind}}
	switch kind {
	case placement.Bounded:
		rule.Repeat.Count = count
		if count < 1 {
			errs.Add(RuleField, "A bounded repeat needs a count of at least 1")
			return placement.Rule{}, false
		}
	case placement.Unbounded:
		if p.ZeroCount != placement.ZeroMeansUnbounded {
			errs.Add(RuleField, "This collection cannot repeat without a limit, choose a repeat count")
			return placement.Rule{}, false
		}
	}

	if err := rule.Validate(); err != nil {
		errs.Add(RuleField, ruleMessage(err))
		return placement.Rule{}, false
	}
	if after < p.MinAfter {
		errs.Add(RuleField, "First position must be at least "+strconv.Itoa(p.MinAfter))
		return placement.Rule{}, false
	}
	return rule, true
}

// encode writes the rule into the payload in the collection's wire shape.
func (p *PlacementSpec) encode(rule placement.Rule, fields map[string]any) {
	after, every, count := rule.Legacy(p.ZeroCount)
	values := map[string]any{
		p.AfterKey: after,
		p.EveryKey: every,
		p.CountKey: count,
	}
	if p.Key == "" {
		for k, v := range values {
			fields[k] = v
		}
		return
	}
	fields[p.Key] = values
}

func ruleMessage(err error) string {
	switch {
	case errors.Is(err, placement.ErrNegativeAfter):
		return "First position must not be negative"
	case errors.Is(err, placement.ErrNegativeEvery):
		return "Repeat interval must not be negative"
	case errors.Is(err, placement.ErrNegativeCount):
		return "Repeat count must not be negative"
	case errors.Is(err, placement.ErrRepeatWithoutStep):
		return "Repeating needs a repeat interval greater than 0"
	}
	return "Invalid placement"
}

// formInt parses an optional integer form value.
func formInt(form url.Values, key string, def int) (int, bool) {
	raw := strings.TrimSpace(form.Get(key))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, false
	}
	return n, true
}

// SplitList splits a textarea or comma separated value into trimmed,
// de-duplicated non-empty entries.
func SplitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r' || r == ';'
	})
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// ParseDateTime accepts datetime-local input values and RFC 3339 timestamps.
func ParseDateTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(DateTimeLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
