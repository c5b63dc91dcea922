// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package loadorder

import (
	"github.com/suprsokr/go-packfile"
)

// Chain is a prioritized view of the entries of every container in a load
// order. An entry in a later container shadows the entry with the same
// path in earlier ones.
type Chain struct {
	ids        []string
	containers []*packfile.Container
	missing    []string
	fileMap    map[string]int // cache: normalized path -> container index
	cacheBuilt bool           // whether fileMap has been populated
}

// NewChain builds a chain over the containers of order. Identifiers with no
// container are skipped and reported by Missing.
func NewChain(order LoadOrder, containers Set) *Chain {
	chain := &Chain{fileMap: make(map[string]int)}
	for _, id := range order {
		c := containers[id]
		if c == nil {
			chain.missing = append(chain.missing, id)
			continue
		}
		chain.ids = append(chain.ids, id)
		chain.containers = append(chain.containers, c)
	}
	chain.rebuildFileMap()
	return chain
}

// Len returns the number of containers in the chain.
func (p *Chain) Len() int { return len(p.containers) }

// Missing returns the identifiers of the load order that had no container.
func (p *Chain) Missing() []string { return p.missing }

// Has reports whether any container holds path.
func (p *Chain) Has(path string) bool {
	_, _, ok := p.Lookup(path)
	return ok
}

// Lookup returns the highest precedence entry for path and where it lives.
func (p *Chain) Lookup(path string) (*packfile.Entry, Source, bool) {
	// Ensure cache is built
	if !p.cacheBuilt {
		p.rebuildFileMap()
	}

	idx, found := p.fileMap[packfile.NormalizePath(path)]
	if !found {
		return nil, Source{}, false
	}

	// Verify the entry still exists
	e, ok := p.containers[idx].Entry(path)
	if !ok {
		// Entry removed? Rebuild cache and fall back to a linear search
		p.rebuildFileMap()
		return p.lookupLinear(path)
	}
	return e, Source{Container: p.ids[idx], Entry: e.Path()}, true
}

// lookupLinear is the fallback linear search implementation.
func (p *Chain) lookupLinear(path string) (*packfile.Entry, Source, bool) {
	for i := len(p.containers) - 1; i >= 0; i-- {
		if e, ok := p.containers[i].Entry(path); ok {
			return e, Source{Container: p.ids[i], Entry: e.Path()}, true
		}
	}
	return nil, Source{}, false
}

// Sources returns every container holding path, lowest precedence first.
func (p *Chain) Sources(path string) []Source {
	var out []Source
	for i, c := range p.containers {
		if e, ok := c.Entry(path); ok {
			out = append(out, Source{Container: p.ids[i], Entry: e.Path()})
		}
	}
	return out
}

// Paths returns the union of entry paths across the chain, in the order
// they are first seen from the lowest precedence container.
func (p *Chain) Paths() []string {
	seen := make(map[string]struct{})
	var result []string
	for _, c := range p.containers {
		for _, path := range c.Paths() {
			key := packfile.NormalizePath(path)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			result = append(result, path)
		}
	}
	return result
}

// Refresh rebuilds the lookup cache. Call it after adding entries to a
// container of the chain.
func (p *Chain) Refresh() { p.rebuildFileMap() }

// rebuildFileMap rebuilds the internal path cache.
func (p *Chain) rebuildFileMap() {
	p.fileMap = make(map[string]int)

	// Process containers in reverse order (highest precedence first) so
	// later containers override earlier ones
	for i := len(p.containers) - 1; i >= 0; i-- {
		for _, path := range p.containers[i].Paths() {
			key := packfile.NormalizePath(path)
			if _, exists := p.fileMap[key]; !exists {
				p.fileMap[key] = i
			}
		}
	}

	p.cacheBuilt = true
}
