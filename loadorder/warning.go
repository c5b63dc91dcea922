// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package loadorder

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// WarningKind classifies a Warning.
type WarningKind int

// Warning kinds
const (
	// MissingContainer: an identifier in the load order has no container.
	MissingContainer WarningKind = iota
	// UndecodableTable: a table entry failed to decode and was skipped.
	UndecodableTable
	// DuplicateKey: one container defines a key more than once. The last
	// row wins.
	DuplicateKey
	// VersionConverted: a table was converted to the version of the highest
	// precedence table.
	VersionConverted
	// NoKeyFields: the table has no key fields, so rows are keyed on every field.
	NoKeyFields
)

var warningKindNames = [...]string{
	MissingContainer: "missing container",
	UndecodableTable: "undecodable table",
	DuplicateKey:     "duplicate key",
	VersionConverted: "version converted",
	NoKeyFields:      "no key fields",
}

func (k WarningKind) String() string {
	if k >= 0 && int(k) < len(warningKindNames) {
		return warningKindNames[k]
	}
	return fmt.Sprintf("warningkind(%d)", int(k))
}

// Warning is a recoverable anomaly found while resolving. Resolution always
// continues past it.
type Warning struct {
	Kind      WarningKind
	Container string
	Entry     string
	Message   string
}

func (w Warning) String() string {
	s := w.Kind.String()
	if w.Container != "" {
		s += " in " + w.Container
	}
	if w.Entry != "" {
		s += " " + w.Entry
	}
	if w.Message != "" {
		s += ": " + w.Message
	}
	return s
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (w Warning) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("kind", w.Kind.String())
	if w.Container != "" {
		enc.AddString("container", w.Container)
	}
	if w.Entry != "" {
		enc.AddString("entry", w.Entry)
	}
	if w.Message != "" {
		enc.AddString("message", w.Message)
	}
	return nil
}

var _ zapcore.ObjectMarshaler = Warning{}

func warningField(w Warning) zap.Field { return zap.Object("warning", w) }
