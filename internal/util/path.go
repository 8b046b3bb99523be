// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SanitizeFilename extracts only the base filename from an uploaded file
// name, dropping directory components and control characters. Browsers on
// Windows may send full paths like C:\Users\me\poster.png.
func SanitizeFilename(filename string) (string, error) {
	filename = strings.ReplaceAll(filename, `\`, "/")
	safe := filepath.Base(filename)
	safe = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, safe)
	safe = strings.TrimSpace(safe)
	if safe == "." || safe == ".." || safe == "" || safe == "/" {
		return "", fmt.Errorf("invalid filename: %q", filename)
	}
	return safe, nil
}
