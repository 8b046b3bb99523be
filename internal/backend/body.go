// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package backend

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// File is an upload attached to a mutation. Field is the multipart field
// name the backend expects (for example "media", "poster", "background").
type File struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Body is the payload of a create or update call. Without files it is sent
// as JSON, with files as multipart/form-data.
type Body struct {
	Fields map[string]any
	Files  []File
}

// IsMultipart reports whether the body is sent as multipart/form-data.
func (b Body) IsMultipart() bool {
	return len(b.Files) > 0
}

// encode returns the serialized body and its content type.
func (b Body) encode() ([]byte, string, error) {
	if !b.IsMultipart() {
		fields := b.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return nil, "", fmt.Errorf("encoding json body: %w", err)
		}
		return data, "application/json", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	// Sorted for stable request bodies.
	keys := make([]string, 0, len(b.Fields))
	for k := range b.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		value, err := formValue(b.Fields[k])
		if err != nil {
			return nil, "", fmt.Errorf("encoding field %q: %w", k, err)
		}
		if err := w.WriteField(k, value); err != nil {
			return nil, "", fmt.Errorf("writing field %q: %w", k, err)
		}
	}

	for _, f := range b.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(f.Field), quoteEscaper.Replace(f.Filename)))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("creating file part %q: %w", f.Field, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("writing file part %q: %w", f.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// formValue renders a field for multipart transport. Nested objects and
// lists are JSON encoded into a single string value.
func formValue(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
