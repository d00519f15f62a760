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

// Package filemon is the thin adapter described in spec.md section
// 4.7: it translates a host-supplied "watch this path, call back on
// change" primitive into an append-only per-path history of observed
// FileStates, and notifies a subscriber (normally a depval.Graph) of
// every new version.
//
// filemon deliberately knows nothing about dep-val markers: it only
// owns the monitored-file table. This mirrors the teacher's
// fsutil.VisitDirFS split between "the host may supply an optimized
// primitive" and "the generic fallback", kept as a standalone layer
// rather than folded into the graph.
package filemon

import "time"

// FileStatus classifies one version of a monitored file's history.
type FileStatus uint8

const (
	// Normal means the file exists and was read/stat-able.
	Normal FileStatus = iota
	// Shadowed is a synthetic version injected by Shadow, not
	// backed by an actual filesystem change.
	Shadowed
	// DoesNotExist means the file was absent at observation time.
	DoesNotExist
)

func (s FileStatus) String() string {
	switch s {
	case Normal:
		return "normal"
	case Shadowed:
		return "shadowed"
	case DoesNotExist:
		return "does-not-exist"
	default:
		return "unknown"
	}
}

// FileState is one version in a monitored file's append-only
// history (spec.md section 3, "Monitored File").
type FileState struct {
	ModTime time.Time
	Status  FileStatus
	// ContentHash is a blake2b-256 digest of the file body, when the
	// host descriptor made a readable snapshot available; it is the
	// zero value for DoesNotExist and Shadowed versions, and for
	// hosts that cannot cheaply provide one. It never participates
	// in the mandatory invalidation algorithm (spec.md section 4.6);
	// it only backs the optional ChangedContent convenience.
	ContentHash [32]byte
}

// Desc is a point-in-time filesystem descriptor, as returned by
// Host.GetDesc.
type Desc struct {
	Status  FileStatus // Normal or DoesNotExist only
	ModTime time.Time
	Size    int64
	// Body, if non-nil, is a snapshot of the file's contents the
	// host happened to have handy (e.g. because it just read the
	// file to serve a compile request). When nil, Adapter simply
	// skips content hashing for that version.
	Body []byte
}

// Host is the file-watching capability the core consumes from the
// mounting tree / virtual filesystem layer, per spec.md section 1's
// "out of scope" note: the core only needs this interface, not the
// mounting tree itself.
type Host interface {
	// Watch arranges for callback to be invoked whenever the file at
	// path is created, modified or deleted. Multiple Watch calls on
	// the same path must coalesce: the host may install at most one
	// underlying OS watch per path.
	//
	// The host must never invoke callback synchronously from within
	// Watch, and must never re-enter any depval.Graph method from
	// within callback while that Graph call that reached this Watch
	// is still executing (spec.md section 5).
	Watch(path string, callback func(path string)) error
	// GetDesc returns the current on-disk state of path.
	GetDesc(path string) (Desc, error)
	// FakeChange optionally injects a synthetic host-level change
	// notification for path, used by Adapter.Shadow when the host
	// can do better than an adapter-only synthetic version (e.g. to
	// also notify other non-Go observers). Hosts that don't support
	// this may return ErrFakeChangeUnsupported; Shadow falls back to
	// an adapter-local synthetic version either way.
	FakeChange(path string) error
}
