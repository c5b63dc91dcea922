// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package packfile

import "strings"

// normalizePath normalizes an entry path for lookup.
// Converts backslashes to forward slashes and lowercases, matching the
// game's case-insensitive path handling.
func normalizePath(path string) string {
	normalized := strings.ReplaceAll(path, "\\", "/")
	normalized = strings.ToLower(normalized)
	for strings.Contains(normalized, "//") {
		normalized = strings.ReplaceAll(normalized, "//", "/")
	}
	return strings.TrimPrefix(normalized, "/")
}

// NormalizePath returns the lookup form of an entry path. Two paths name the
// same entry when their normalized forms are equal.
func NormalizePath(path string) string {
	return normalizePath(path)
}

// SamePath reports whether two entry paths name the same entry.
func SamePath(a, b string) bool {
	return normalizePath(a) == normalizePath(b)
}
