// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package resource

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/olegiv/feedadmin/internal/util"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator instance with the admin's
// custom tags registered. It is safe for concurrent use.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return util.IsValidSlug(fl.Field().String())
		})
	})
	return validate
}

// FieldErrors maps form field names to user-facing messages.
type FieldErrors map[string]string

// Add records the first message for a field.
func (e FieldErrors) Add(field, msg string) {
	if _, exists := e[field]; !exists {
		e[field] = msg
	}
}

// Has reports whether the field has an error.
func (e FieldErrors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Error joins all messages in field order.
func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return strings.Join(parts, "; ")
}

// check runs the tag against value and returns a message for label, or "".
func check(value any, tag, label string) string {
	if tag == "" {
		return ""
	}
	err := Validator().Var(value, tag)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return label + " is invalid"
	}
	return label + " " + describe(verrs[0])
}

// describe turns a validator failure into a short phrase.
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("needs at least %s entries", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "http_url":
		return "must be a valid http(s) URL"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "iso3166_1_alpha2":
		return fmt.Sprintf("contains an unknown country code %q", fe.Value())
	case "bcp47_language_tag":
		return "must be a BCP 47 language tag such as en or pt-BR"
	case "slug":
		return "may only contain lowercase letters, digits and single hyphens"
	default:
		return "is invalid"
	}
}

// joinTags joins non-empty validator tag fragments.
func joinTags(tags ...string) string {
	var out []string
	for _, t := range tags {
		if t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, ",")
}
