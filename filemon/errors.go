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

import "fmt"

// Op names the Host call an Error wraps a failure from.
type Op uint8

const (
	OpWatch Op = iota
	OpGetDesc
	OpFakeChange
)

func (o Op) String() string {
	switch o {
	case OpWatch:
		return "Watch"
	case OpGetDesc:
		return "GetDesc"
	case OpFakeChange:
		return "FakeChange"
	default:
		return "Unknown"
	}
}

// Error is the IoError case from spec.md section 7, covering a
// host-supplied failure surfaced while querying file state. The
// corresponding failure mode for #include resolution during schema
// parsing is cpptok.IncludeError — the same taxonomy entry, split
// across the two packages that each own a distinct host callback.
type Error struct {
	Op   Op
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("filemon: %s(%s): %s", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
