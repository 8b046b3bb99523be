// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package resource

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/olegiv/feedadmin/internal/util"
)

// Upload errors.
var (
	ErrUploadTooLarge    = errors.New("upload too large")
	ErrUploadUnsupported = errors.New("unsupported file type")
	ErrUploadCorrupt     = errors.New("image could not be decoded")
	ErrUploadEmpty       = errors.New("empty file")
)

// allowedImageTypes are the image types the backend stores.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// allowedVideoTypes are the video types the backend stores.
var allowedVideoTypes = map[string]bool{
	"video/mp4":  true,
	"video/webm": true,
}

// Upload is an inspected file ready to be forwarded.
type Upload struct {
	Filename    string
	ContentType string
	Family      string
	Width       int
	Height      int
	Data        []byte
}

// ReadUpload reads a multipart file and checks it against accept.
func ReadUpload(fh *multipart.FileHeader, accept string, maxBytes int64) (*Upload, error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrUploadTooLarge, fh.Size)
	}

	name, err := util.SanitizeFilename(fh.Filename)
	if err != nil {
		return nil, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrUploadTooLarge, maxBytes)
	}

	up, err := Inspect(data, accept)
	if err != nil {
		return nil, err
	}
	up.Filename = name
	return up, nil
}

// Inspect sniffs the content type of data and checks it against the
// comma separated families in accept ("image", "video").
// Image dimensions are read from the header without decoding pixels.
func Inspect(data []byte, accept string) (*Upload, error) {
	if len(data) == 0 {
		return nil, ErrUploadEmpty
	}

	contentType := http.DetectContentType(data)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}

	up := &Upload{ContentType: contentType, Data: data}
	field := Field{Accept: accept}

	switch {
	case allowedImageTypes[contentType] && field.Accepts(AcceptImage):
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUploadCorrupt, err)
		}
		up.Family = AcceptImage
		up.Width, up.Height = cfg.Width, cfg.Height
	case allowedVideoTypes[contentType] && field.Accepts(AcceptVideo):
		up.Family = AcceptVideo
	default:
		return nil, fmt.Errorf("%w: %s", ErrUploadUnsupported, contentType)
	}
	return up, nil
}

// uploadMessage maps upload errors to form text.
func uploadMessage(err error) string {
	switch {
	case errors.Is(err, ErrUploadTooLarge):
		return "file is too large"
	case errors.Is(err, ErrUploadUnsupported):
		return "file type is not accepted here"
	case errors.Is(err, ErrUploadCorrupt):
		return "image is damaged or truncated"
	case errors.Is(err, ErrUploadEmpty):
		return "file is empty"
	}
	return "file could not be read"
}
