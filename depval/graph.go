// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package depval implements the Dependency Validation Graph of
// spec.md section 4.6: a process-wide, free-threaded, ref-counted
// graph associating opaque markers with the files and upstream
// markers they were built from, propagating an invalidation bump
// through the transitive closure whenever a watched file changes.
//
// The single-mutex-for-the-whole-call shape is grounded on the
// teacher's tenant/dcache.Cache.lockID/unlockID pattern: every public
// Graph method acquires one lock for its duration and never blocks on
// another in-flight call completing, so (unlike dcache) no
// sync.Cond is required.
package depval

import (
	"sync"

	"github.com/google/uuid"

	"github.com/sneller-labs/contentval/filemon"
)

// Marker is an opaque handle into a Graph.
type Marker uint32

// NoMarker is the invalid-marker sentinel (spec.md section 3).
const NoMarker Marker = ^Marker(0)

// Logger is the Printf-shaped, nil-safe logging convention used
// throughout this module (see tenant/dcache.Logger in the teacher).
type Logger interface {
	Printf(format string, args ...interface{})
}

type entry struct {
	refCount        uint32
	validationIndex uint64
}

type fileLink struct {
	path       string
	stateIndex int
}

// GraphStats is a racy, telemetry-only snapshot of graph occupancy
// (spec.md section 11 supplement, grounded on
// tenant/dcache.Cache.Hits/Misses/LiveHits).
type GraphStats struct {
	LiveMarkers int
	FileLinks   int
	AssetLinks  int
}

// Graph is the free-threaded Dependency Validation Graph. Every
// public method is safe to call concurrently from any number of
// goroutines; see spec.md section 5 for the exact ordering
// guarantees this provides.
type Graph struct {
	Logger Logger

	adapter *filemon.Adapter

	mu      sync.Mutex
	entries []entry
	free    []Marker

	fileLinks   map[Marker]fileLink
	fileMarkers map[string][]Marker // sorted, path -> markers linked to it

	deps       map[Marker][]Marker // sorted, dependent -> dependencies
	dependents map[Marker][]Marker // sorted, dependency -> dependents
}

// NewGraph returns an empty Graph backed by host for file monitoring.
func NewGraph(host filemon.Host) *Graph {
	g := &Graph{
		fileLinks:   make(map[Marker]fileLink),
		fileMarkers: make(map[string][]Marker),
		deps:        make(map[Marker][]Marker),
		dependents:  make(map[Marker][]Marker),
	}
	g.adapter = filemon.New(host)
	g.adapter.OnChange = g.onFileChange
	return g
}

func (g *Graph) logf(format string, args ...interface{}) {
	if g.Logger != nil {
		g.Logger.Printf(format, args...)
	}
}

func (g *Graph) validLocked(m Marker) bool {
	return m != NoMarker && int(m) < len(g.entries) && g.entries[m].refCount > 0
}

// allocLocked returns a fresh marker with refCount 1 and
// validationIndex 0. Caller must hold g.mu.
func (g *Graph) allocLocked() Marker {
	if n := len(g.free); n > 0 {
		m := g.free[n-1]
		g.free = g.free[:n-1]
		g.entries[m] = entry{refCount: 1}
		return m
	}
	m := Marker(len(g.entries))
	g.entries = append(g.entries, entry{refCount: 1})
	return m
}

// Make allocates a fresh marker with refCount 1 and no dependencies.
func (g *Graph) Make() Marker {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.allocLocked()
}

// MakeWithPaths allocates a fresh marker and registers a file
// dependency on each of paths before returning it, so the caller
// never observes the marker without its file inputs already wired.
func (g *Graph) MakeWithPaths(paths []string) (Marker, error) {
	g.mu.Lock()
	m := g.allocLocked()
	g.mu.Unlock()

	for _, p := range paths {
		if err := g.RegisterFileDependency(m, p); err != nil {
			return m, err
		}
	}
	return m, nil
}

// PrefetchedFile pairs a path with a FileState the caller already
// obtained, letting MakeWithFileStates seed the monitored-file
// history without a redundant host.GetDesc round trip.
type PrefetchedFile struct {
	Path  string
	State filemon.FileState
}

// MakeWithFileStates allocates a fresh marker and registers a file
// dependency on each entry, seeding each path's monitored history
// with the supplied FileState when the path has not been observed
// before (if it has, the existing history wins and the supplied
// state is ignored — this only ever helps avoid the first stat).
func (g *Graph) MakeWithFileStates(files []PrefetchedFile) (Marker, error) {
	g.mu.Lock()
	m := g.allocLocked()
	g.mu.Unlock()

	for _, f := range files {
		idx, err := g.adapter.Seed(f.Path, f.State)
		if err != nil {
			return m, err
		}
		g.mu.Lock()
		if !g.validLocked(m) {
			g.mu.Unlock()
			return m, errf(InvalidMarker, "marker %d released during MakeWithFileStates", m)
		}
		g.linkFileLocked(m, f.Path, idx)
		g.mu.Unlock()
	}
	return m, nil
}

// AddRef increments m's reference count.
func (g *Graph) AddRef(m Marker) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.validLocked(m) {
		return errf(InvalidMarker, "marker %d", m)
	}
	g.entries[m].refCount++
	return nil
}

// Release decrements m's reference count. When it reaches zero, m's
// outgoing file and asset links are removed, its former asset
// dependencies are released in turn (spec.md section 4.6's "release
// semantics", recursion bounded by the refcount invariants), and m's
// id is returned to the free list for reuse.
func (g *Graph) Release(m Marker) error {
	g.mu.Lock()
	if !g.validLocked(m) {
		g.mu.Unlock()
		return errf(InvalidMarker, "marker %d", m)
	}
	g.entries[m].refCount--
	if g.entries[m].refCount > 0 {
		g.mu.Unlock()
		return nil
	}

	if fl, ok := g.fileLinks[m]; ok {
		delete(g.fileLinks, m)
		g.fileMarkers[fl.path] = removeMarkerSorted(g.fileMarkers[fl.path], m)
		if len(g.fileMarkers[fl.path]) == 0 {
			delete(g.fileMarkers, fl.path)
		}
	}
	deps := g.deps[m]
	delete(g.deps, m)
	for _, d := range deps {
		g.dependents[d] = removeMarkerSorted(g.dependents[d], m)
		if len(g.dependents[d]) == 0 {
			delete(g.dependents, d)
		}
	}
	g.entries[m] = entry{}
	g.free = append(g.free, m)
	g.mu.Unlock()

	var firstErr error
	for _, d := range deps {
		if err := g.Release(d); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (g *Graph) linkFileLocked(m Marker, path string, stateIndex int) {
	if old, ok := g.fileLinks[m]; ok && old.path != path {
		g.fileMarkers[old.path] = removeMarkerSorted(g.fileMarkers[old.path], m)
		if len(g.fileMarkers[old.path]) == 0 {
			delete(g.fileMarkers, old.path)
		}
	}
	g.fileLinks[m] = fileLink{path: path, stateIndex: stateIndex}
	g.fileMarkers[path] = insertMarkerSorted(g.fileMarkers[path], m)
}

// RegisterFileDependency records that m was built from the file at
// path, storing the most recently observed state index for that file
// (spec.md section 3, "Dep-Val Links": "most recent registration
// wins"). Calling it N times with the same (m, path) has the same
// effect as calling it once. path need not exist; a DoesNotExist
// version is recorded and a later creation still propagates.
func (g *Graph) RegisterFileDependency(m Marker, path string) error {
	g.mu.Lock()
	if !g.validLocked(m) {
		g.mu.Unlock()
		return errf(InvalidMarker, "marker %d", m)
	}
	g.mu.Unlock()

	_, idx, err := g.adapter.EnsureState(path)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.validLocked(m) {
		return errf(InvalidMarker, "marker %d released during registration", m)
	}
	g.linkFileLocked(m, path, idx)
	return nil
}

// RegisterAssetDependency records that dependent was built in part
// from dependency, bumping dependency's refcount. It is idempotent:
// registering the same edge more than once has no further effect.
// Adding an edge that would create a cycle fails with CycleDetected
// (spec.md section 9, option (b)) and leaves both markers untouched.
func (g *Graph) RegisterAssetDependency(dependent, dependency Marker) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.validLocked(dependent) {
		return errf(InvalidMarker, "dependent marker %d", dependent)
	}
	if !g.validLocked(dependency) {
		return errf(InvalidMarker, "dependency marker %d", dependency)
	}
	if dependent == dependency {
		return errf(CycleDetected, "marker %d cannot depend on itself", dependent)
	}
	if containsMarkerSorted(g.deps[dependent], dependency) {
		return nil
	}
	if g.reachableLocked(dependency, dependent) {
		return errf(CycleDetected, "registering %d -> %d would create a cycle", dependent, dependency)
	}

	g.deps[dependent] = insertMarkerSorted(g.deps[dependent], dependency)
	g.dependents[dependency] = insertMarkerSorted(g.dependents[dependency], dependent)
	g.entries[dependency].refCount++
	return nil
}

// reachableLocked reports whether to is reachable from from by
// following asset-dependency edges (from depends on ... depends on
// to). Caller must hold g.mu.
func (g *Graph) reachableLocked(from, to Marker) bool {
	if from == to {
		return true
	}
	visited := make(map[Marker]bool)
	stack := []Marker{from}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if cur == to {
			return true
		}
		stack = append(stack, g.deps[cur]...)
	}
	return false
}

// GetValidationIndex returns m's current validation index.
func (g *Graph) GetValidationIndex(m Marker) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.validLocked(m) {
		return 0, errf(InvalidMarker, "marker %d", m)
	}
	return g.entries[m].validationIndex, nil
}

// GetDependentFileState returns a snapshot of the current known state
// of path, mounting and monitoring it via the host if this is the
// first observation. This does not require any marker to already
// hold a file link on path.
func (g *Graph) GetDependentFileState(path string) (filemon.FileState, error) {
	state, _, err := g.adapter.EnsureState(path)
	return state, err
}

// ShadowFile appends a synthetic invalidation version to path's
// history and unconditionally triggers propagation, independent of
// whether anything on disk actually changed (spec.md section 4.6).
func (g *Graph) ShadowFile(path string) {
	batch := uuid.NewString()
	g.logf("depval: shadowing %s (batch %s)", path, batch)
	g.adapter.Shadow(path)
}

// onFileChange is the filemon.ChangeFunc wired into g.adapter in
// NewGraph; it is invoked by the adapter whenever a new FileState
// version is appended to a monitored file's history, and implements
// the closure-propagation algorithm of spec.md section 4.6: every
// marker with a direct file link to path, plus every marker reachable
// from those by following asset-dependency edges, has its
// validationIndex bumped exactly once.
func (g *Graph) onFileChange(path string, index int, state filemon.FileState) {
	g.mu.Lock()
	defer g.mu.Unlock()

	queue := append([]Marker(nil), g.fileMarkers[path]...)
	visited := make(map[Marker]bool, len(queue))
	bumped := 0
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		if visited[m] {
			continue
		}
		visited[m] = true
		g.entries[m].validationIndex++
		bumped++
		queue = append(queue, g.dependents[m]...)
	}
	g.logf("depval: %s changed (status=%s): %d marker(s) invalidated", path, state.Status, bumped)
}

// Stats returns a racy, telemetry-only snapshot of graph occupancy.
func (g *Graph) Stats() GraphStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	live := 0
	for _, e := range g.entries {
		if e.refCount > 0 {
			live++
		}
	}
	assetLinks := 0
	for _, ds := range g.deps {
		assetLinks += len(ds)
	}
	return GraphStats{
		LiveMarkers: live,
		FileLinks:   len(g.fileLinks),
		AssetLinks:  assetLinks,
	}
}
