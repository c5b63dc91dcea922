// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package packfile

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
)

var (
	// ErrFormat marks containers whose header or index cannot be read.
	ErrFormat = errors.New("packfile: format error")
	// ErrUnsupportedVariant marks recognized containers using flags the variant cannot handle.
	ErrUnsupportedVariant = errors.New("packfile: unsupported variant")
	// ErrEntry marks a single entry whose payload failed to decode.
	ErrEntry = errors.New("packfile: entry error")

	// ErrNotFound is returned when no entry has the requested path.
	ErrNotFound = errors.New("packfile: entry not found")
	// ErrExists is returned when adding an entry whose path is taken.
	ErrExists = errors.New("packfile: entry already exists")
	// ErrTruncated is wrapped by entry errors for payloads cut short by the end of the file.
	ErrTruncated = errors.New("payload truncated")
)

// FormatError reports an unreadable header or index. Decoding aborts.
type FormatError struct {
	Offset int
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	s := "packfile: format error at offset " + strconv.Itoa(e.Offset) + ": " + e.Reason
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFormat) hold.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// UnsupportedVariantError reports a recognized preamble with flags it cannot carry.
type UnsupportedVariantError struct {
	Preamble string
	Flags    Flags
	Reason   string
}

func (e *UnsupportedVariantError) Error() string {
	return fmt.Sprintf("packfile: unsupported variant %s flags 0x%08x: %s", e.Preamble, uint32(e.Flags), e.Reason)
}

// Is makes errors.Is(err, ErrUnsupportedVariant) hold.
func (e *UnsupportedVariantError) Is(target error) bool { return target == ErrUnsupportedVariant }

// EntryError is attached to an entry whose payload could not be decrypted
// or decompressed. The rest of the container stays usable.
type EntryError struct {
	Path string
	Err  error
}

func (e *EntryError) Error() string { return "packfile: entry " + e.Path + ": " + e.Err.Error() }

func (e *EntryError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrEntry) hold.
func (e *EntryError) Is(target error) bool { return target == ErrEntry }
