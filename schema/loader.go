// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package schema

import (
	"io"
	"sort"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// definitionFile is the on-disk layout of a schema definition file.
type definitionFile struct {
	Release string                       `yaml:"release"`
	Tables  map[string][]versionDocument `yaml:"tables"`
}

type versionDocument struct {
	Version int32           `yaml:"version"`
	Fields  []fieldDocument `yaml:"fields"`
}

type fieldDocument struct {
	Name      string             `yaml:"name"`
	Type      string             `yaml:"type"`
	Width     int                `yaml:"width,omitempty"`
	Key       bool               `yaml:"key,omitempty"`
	Ref       *referenceDocument `yaml:"ref,omitempty"`
	Optional  bool               `yaml:"optional,omitempty"`
	Releases  []string           `yaml:"releases,omitempty"`
	Tombstone bool               `yaml:"tombstone,omitempty"`
	Default   string             `yaml:"default,omitempty"`
}

type referenceDocument struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

// Load builds a registry from a YAML (or JSON) definition file. The file's
// release is used unless opts select another one. The returned registry is
// not frozen.
func Load(r io.Reader, opts ...Option) (*Registry, error) {
	var doc definitionFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "parse schema definitions")
	}

	reg := NewRegistry(append([]Option{WithRelease(doc.Release)}, opts...)...)

	names := make([]string, 0, len(doc.Tables))
	for name := range doc.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, v := range doc.Tables[name] {
			fields := make([]FieldDef, len(v.Fields))
			for i, fd := range v.Fields {
				f, err := fd.fieldDef()
				if err != nil {
					return nil, errors.Wrapf(err, "%s version %d field %d", name, v.Version, i)
				}
				fields[i] = f
			}
			if err := reg.Register(name, v.Version, fields); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}

func (fd fieldDocument) fieldDef() (FieldDef, error) {
	t, err := ParseFieldType(fd.Type)
	if err != nil {
		return FieldDef{}, err
	}
	f := FieldDef{
		Name:      fd.Name,
		Type:      t,
		Width:     fd.Width,
		Key:       fd.Key,
		Optional:  fd.Optional,
		Releases:  fd.Releases,
		Tombstone: fd.Tombstone,
		Default:   fd.Default,
	}
	if fd.Ref != nil {
		f.Ref = &Reference{Table: fd.Ref.Table, Column: fd.Ref.Column}
	}
	return f, nil
}
