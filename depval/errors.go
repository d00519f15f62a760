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

package depval

import "fmt"

// ErrKind classifies an Error returned by a Graph operation.
type ErrKind uint8

const (
	// InvalidMarker is returned for any operation against a marker
	// that is NoMarker, out of range, or already released.
	InvalidMarker ErrKind = iota
	// CycleDetected is returned by RegisterAssetDependency when
	// adding the edge would create a cycle in the asset-dependency
	// graph (spec.md section 9, option (b)).
	CycleDetected
)

func (k ErrKind) String() string {
	switch k {
	case InvalidMarker:
		return "InvalidMarker"
	case CycleDetected:
		return "CycleDetected"
	default:
		return "Unknown"
	}
}

// Error is DepValError from spec.md section 7.
type Error struct {
	Kind ErrKind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("depval: %s: %s", e.Kind, e.Msg)
}

func errf(kind ErrKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
