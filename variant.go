// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package packfile

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"
)

// Variant describes the layout differences of one container format
// revision, identified by its preamble.
type Variant struct {
	Preamble string
	// HeaderTimestamp is the width in bytes of the header timestamp: 0, 4 or 8.
	HeaderTimestamp int
	// IndexTimestamp is the width in bytes of the per-entry timestamp written
	// when FlagIndexTimestamps is set.
	IndexTimestamp int
	// Extras is the number of opaque bytes following the header timestamp.
	Extras int
	// EntryCompression reports whether index records carry a compressed flag.
	EntryCompression bool
	// Flags is the set of header flags the variant supports.
	Flags Flags
	// Check rejects flag combinations the variant cannot represent.
	Check func(Flags) error
}

// validate reports whether f can be decoded or encoded with v.
func (v *Variant) validate(f Flags) error {
	if extra := f &^ v.Flags; extra != 0 {
		return &UnsupportedVariantError{Preamble: v.Preamble, Flags: f, Reason: fmt.Sprintf("flags 0x%08x not supported", uint32(extra))}
	}
	if v.Check != nil {
		if err := v.Check(f); err != nil {
			return &UnsupportedVariantError{Preamble: v.Preamble, Flags: f, Reason: err.Error()}
		}
	}
	return nil
}

// Variants maps preambles to their layout. It is an explicit input to
// Decode and Encode so new revisions can be added without code changes.
type Variants struct {
	m map[string]*Variant
}

// NewVariants returns an empty registry.
func NewVariants() *Variants {
	return &Variants{m: make(map[string]*Variant)}
}

// DefaultVariants returns a new registry holding the known revisions,
// PFH0 and PFH2 through PFH6.
func DefaultVariants() *Variants {
	vs := NewVariants()
	vs.Register(Variant{Preamble: "PFH0"})
	vs.Register(Variant{Preamble: "PFH2", HeaderTimestamp: 8, IndexTimestamp: 8, Flags: FlagIndexTimestamps})
	vs.Register(Variant{Preamble: "PFH3", HeaderTimestamp: 8, IndexTimestamp: 8, Flags: FlagIndexTimestamps})
	vs.Register(Variant{
		Preamble:        "PFH4",
		HeaderTimestamp: 4,
		IndexTimestamp:  4,
		Flags:           FlagEncryptedData | FlagIndexTimestamps | FlagEncryptedIndex,
	})
	vs.Register(Variant{
		Preamble:         "PFH5",
		HeaderTimestamp:  4,
		IndexTimestamp:   4,
		EntryCompression: true,
		Flags:            FlagEncryptedData | FlagIndexTimestamps | FlagEncryptedIndex | FlagExtendedHeader,
		Check: func(f Flags) error {
			if f.Has(FlagExtendedHeader | FlagEncryptedIndex) {
				return errors.New("extended header with encrypted index")
			}
			return nil
		},
	})
	vs.Register(Variant{
		Preamble:         "PFH6",
		HeaderTimestamp:  4,
		IndexTimestamp:   4,
		Extras:           272,
		EntryCompression: true,
		Flags:            FlagEncryptedData | FlagIndexTimestamps | FlagEncryptedIndex,
	})
	return vs
}

// Register adds or replaces a variant. The preamble must be four bytes.
func (vs *Variants) Register(v Variant) {
	if len(v.Preamble) != preambleSize {
		panic("packfile: variant preamble must be 4 bytes: " + v.Preamble)
	}
	vs.m[v.Preamble] = &v
}

// Lookup returns the variant for a preamble.
func (vs *Variants) Lookup(preamble string) (*Variant, bool) {
	v, ok := vs.m[preamble]
	return v, ok
}

// Preambles returns the registered preambles in sorted order.
func (vs *Variants) Preambles() []string {
	out := make([]string, 0, len(vs.m))
	for p := range vs.m {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
