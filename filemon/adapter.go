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

package filemon

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/dchest/siphash"
	"golang.org/x/crypto/blake2b"
)

// ErrFakeChangeUnsupported is returned by a Host.FakeChange
// implementation that has no way to inject a synthetic change.
var ErrFakeChangeUnsupported = errors.New("filemon: host does not support FakeChange")

// pathKey is fixed to a stable constant pair so that the hash is
// reproducible across process runs (this table is never persisted,
// but stable hashing makes log output comparable across runs).
const pathKey0, pathKey1 = 0x9ae16a3b2f90404f, 0xc2b2ae3d27d4eb4f

func hashPath(p string) uint64 {
	norm := filepath.ToSlash(filepath.Clean(p))
	return siphash.Hash(pathKey0, pathKey1, []byte(norm))
}

// MonitoredFile is the {id, path, stateHistory} record from spec.md
// section 3.
type MonitoredFile struct {
	ID      int
	Path    string
	History []FileState
}

// Logger is the same convention used throughout this module (see
// depval.Logger): Printf-shaped, nil-safe.
type Logger interface {
	Printf(format string, args ...interface{})
}

// ChangeFunc is invoked once per newly-appended FileState version,
// with the index of that version in the file's History.
type ChangeFunc func(path string, index int, state FileState)

// Adapter implements spec.md section 4.7: it stores monitored files
// in a map keyed by a normalized-path hash (siphash-2-4, matching the
// teacher's keyed-hash usage for correlation/dedup tables elsewhere
// in the pack), issuing host.Watch on first observation and seeding
// history from host.GetDesc.
//
// Adapter is safe for concurrent use.
type Adapter struct {
	Logger   Logger
	OnChange ChangeFunc

	host Host

	mu       sync.Mutex
	byHash   map[uint64]*MonitoredFile
	watching map[uint64]bool
	nextID   int
}

// New returns an Adapter driven by host. OnChange should be set by
// the caller (typically a depval.Graph) before any file is observed.
func New(host Host) *Adapter {
	return &Adapter{
		host:     host,
		byHash:   make(map[uint64]*MonitoredFile),
		watching: make(map[uint64]bool),
	}
}

func (a *Adapter) logf(format string, args ...interface{}) {
	if a.Logger != nil {
		a.Logger.Printf(format, args...)
	}
}

// ensureLocked returns the MonitoredFile for path, creating it (and
// issuing host.Watch + an initial host.GetDesc) on first observation.
// Caller must hold a.mu.
func (a *Adapter) ensureLocked(path string) (*MonitoredFile, error) {
	h := hashPath(path)
	if mf, ok := a.byHash[h]; ok {
		return mf, nil
	}
	mf := &MonitoredFile{ID: a.nextID, Path: path}
	a.nextID++
	a.byHash[h] = mf

	if !a.watching[h] {
		if err := a.host.Watch(path, a.onHostCallback); err != nil {
			delete(a.byHash, h)
			a.nextID--
			return nil, &Error{Op: OpWatch, Path: path, Err: err}
		}
		a.watching[h] = true
	}

	state, err := a.describe(path)
	if err != nil {
		return nil, err
	}
	mf.History = append(mf.History, state)
	return mf, nil
}

func (a *Adapter) describe(path string) (FileState, error) {
	desc, err := a.host.GetDesc(path)
	if err != nil {
		return FileState{}, &Error{Op: OpGetDesc, Path: path, Err: err}
	}
	st := FileState{ModTime: desc.ModTime, Status: desc.Status}
	if desc.Status == Normal && desc.Body != nil {
		st.ContentHash = blake2b.Sum256(desc.Body)
	}
	return st, nil
}

// EnsureState returns the current known FileState for path, mounting
// and monitoring it via the host if this is the first observation.
// This is the implementation behind
// depval.Graph.GetDependentFileState and the file-link-registration
// path.
func (a *Adapter) EnsureState(path string) (FileState, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	mf, err := a.ensureLocked(path)
	if err != nil {
		return FileState{}, 0, err
	}
	idx := len(mf.History) - 1
	return mf.History[idx], idx, nil
}

// onHostCallback is registered with host.Watch for every path this
// adapter monitors; the host invokes it on creation, modification or
// deletion of that path.
func (a *Adapter) onHostCallback(path string) {
	a.mu.Lock()
	h := hashPath(path)
	mf, ok := a.byHash[h]
	if !ok {
		a.mu.Unlock()
		return
	}
	state, err := a.describe(path)
	if err != nil {
		a.mu.Unlock()
		a.logf("filemon: re-stat %s after change notification: %s", path, err)
		return
	}
	mf.History = append(mf.History, state)
	idx := len(mf.History) - 1
	onChange := a.OnChange
	a.mu.Unlock()

	if onChange != nil {
		onChange(path, idx, state)
	}
}

// Seed mounts path (issuing host.Watch, as ensureLocked does) and
// seeds its history with state, without calling host.GetDesc, when
// this is the first observation of path. If path has already been
// observed, state is ignored and the existing history's latest index
// is returned unchanged: the real monitored history always wins over
// a caller's possibly-stale snapshot.
func (a *Adapter) Seed(path string, state FileState) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	h := hashPath(path)
	if mf, ok := a.byHash[h]; ok {
		return len(mf.History) - 1, nil
	}
	mf := &MonitoredFile{ID: a.nextID, Path: path}
	a.nextID++
	a.byHash[h] = mf

	if !a.watching[h] {
		if err := a.host.Watch(path, a.onHostCallback); err != nil {
			delete(a.byHash, h)
			a.nextID--
			return 0, &Error{Op: OpWatch, Path: path, Err: err}
		}
		a.watching[h] = true
	}
	mf.History = append(mf.History, state)
	return 0, nil
}

// Shadow appends a synthetic Shadowed version to path's history
// (mounting it first if necessary) and notifies the subscriber,
// unconditionally — spec.md section 4.6 requires shadowFile to
// always trigger propagation, regardless of whether the host's
// FakeChange call succeeds.
func (a *Adapter) Shadow(path string) {
	a.mu.Lock()
	mf, err := a.ensureLocked(path)
	if err != nil {
		a.mu.Unlock()
		a.logf("filemon: shadow %s: mounting failed: %s", path, err)
		return
	}
	state := FileState{Status: Shadowed}
	mf.History = append(mf.History, state)
	idx := len(mf.History) - 1
	onChange := a.OnChange
	a.mu.Unlock()

	if err := a.host.FakeChange(path); err != nil && !errors.Is(err, ErrFakeChangeUnsupported) {
		a.logf("filemon: host FakeChange(%s): %s", path, err)
	}
	if onChange != nil {
		onChange(path, idx, state)
	}
}

// ChangedContent reports whether the most recent two recorded
// versions of path differ in content hash. It is a convenience for
// hosts that want to skip a rebuild when only mtime moved; it has no
// bearing on the mandatory invalidation algorithm. Returns false if
// fewer than two versions have been observed, or if either of the
// last two versions has an unknown (zero) content hash.
func (a *Adapter) ChangedContent(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	mf, ok := a.byHash[hashPath(path)]
	if !ok || len(mf.History) < 2 {
		return false
	}
	prev := mf.History[len(mf.History)-2]
	cur := mf.History[len(mf.History)-1]
	if prev.ContentHash == ([32]byte{}) || cur.ContentHash == ([32]byte{}) {
		return false
	}
	return prev.ContentHash != cur.ContentHash
}

// History returns a copy of the recorded history for path, or nil if
// path has never been observed.
func (a *Adapter) History(path string) []FileState {
	a.mu.Lock()
	defer a.mu.Unlock()
	mf, ok := a.byHash[hashPath(path)]
	if !ok {
		return nil
	}
	out := make([]FileState, len(mf.History))
	copy(out, mf.History)
	return out
}
