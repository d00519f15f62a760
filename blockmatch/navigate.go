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

package blockmatch

import "github.com/sneller-labs/contentval/binfmt"

// Root returns the indices of every top-level Member (ParentIndex ==
// RootMarker), in on-disk order.
func (m *Match) Root() []int {
	return m.Children(RootMarker)
}

// Member returns the Member at idx.
func (m *Match) Member(idx int) Member {
	return m.members[idx]
}

// Len returns the total number of Members in the tree.
func (m *Match) Len() int { return len(m.members) }

// Children returns the indices of every Member whose ParentIndex is
// parent, in on-disk order. parent == RootMarker returns the
// top-level members.
func (m *Match) Children(parent int) []int {
	var out []int
	for i, mem := range m.members {
		if mem.ParentIndex == parent {
			out = append(out, i)
		}
	}
	return out
}

// Find returns the index of the first member of parent's children
// whose Name equals name.
func (m *Match) Find(parent int, name string) (int, bool) {
	h := hashName(name)
	for i, mem := range m.members {
		if mem.ParentIndex != parent {
			continue
		}
		if mem.NameHash == h && mem.Name == name {
			return i, true
		}
	}
	return 0, false
}

// AsInt64 casts member idx's raw data to an int64 using the same
// rules binfmt applies when populating a frame's local variable
// context. The second return is false for a block, an array, or a
// scalar whose category has no integral interpretation (float,
// double, or a collapsed string); a void scalar casts to 0.
func (m *Match) AsInt64(idx int) (int64, bool) {
	mem := m.members[idx]
	if mem.IsBlock || mem.IsArray || mem.Desc.Hint != 0 {
		return 0, false
	}
	return binfmt.CastInt64(mem.Data, m.order, mem.Desc.Category)
}

// AsString returns the raw bytes of a collapsed single-byte-element
// array member (spec.md section 4.4's "hint=String" collapse) as a
// string, or false if idx is not such a member.
func (m *Match) AsString(idx int) (string, bool) {
	mem := m.members[idx]
	if mem.Desc.Hint == 0 {
		return "", false
	}
	return string(mem.Data), true
}
