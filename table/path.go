// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package table

import "strings"

// NameFromPath returns the table name of a DB entry path such as
// "db/units_tables/data__". Separators may be '/' or '\\'. Entry paths are
// case-insensitive, so the name is returned in lower case.
func NameFromPath(path string) (string, bool) {
	parts := strings.Split(strings.ReplaceAll(path, "\\", "/"), "/")
	if len(parts) != 3 || !strings.EqualFold(parts[0], "db") || parts[1] == "" || parts[2] == "" {
		return "", false
	}
	return strings.ToLower(parts[1]), true
}

// IsTablePath reports whether path names a DB table entry.
func IsTablePath(path string) bool {
	_, ok := NameFromPath(path)
	return ok
}
