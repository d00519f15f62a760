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

// Package blockmatch is the eager-tree variant of binfmt described in
// spec.md section 4.5: it drains a binfmt.Formatter for one block
// into an indexed, navigable tree of Member records, instead of
// handing the caller a streaming cursor.
//
// This mirrors the relationship between the teacher's streaming
// ion.Reader (Peek/try-consume) and its block-indexed container
// reader in ion/blockfmt/trailer.go, which parses a whole trailer
// into an addressable structure up front.
package blockmatch

import (
	"encoding/binary"

	"github.com/dchest/siphash"

	"github.com/sneller-labs/contentval/binfmt"
	"github.com/sneller-labs/contentval/evalctx"
	"github.com/sneller-labs/contentval/schema"
)

// RootMarker is the ParentIndex of every top-level Member.
const RootMarker = -1

// nameKey0/nameKey1 need not match filemon's path-hashing key: the
// two hash different kinds of strings for different purposes and
// sharing a key would gain nothing.
const nameKey0, nameKey1 = 0x5bd1e995d5c4c3a1, 0x27d4eb2f165667c5

func hashName(name string) uint64 {
	return siphash.Hash(nameKey0, nameKey1, []byte(name))
}

// Member is one node of the tree built by Build: a named or
// positional (array-element) value, block, or array, exactly as
// spec.md section 4.5 describes.
type Member struct {
	NameHash   uint64
	Name       string
	Data       []byte
	Desc       schema.ValueType
	TypeID     evalctx.TypeID
	ParentIndex int
	ArrayCount int
	IsArray    bool
	// IsBlock is true for a Member that represents a nested block
	// (whose children follow it in Match.members with ParentIndex
	// equal to this member's own index).
	IsBlock bool
}

// Match is the materialized tree produced by Build: a flat slice of
// Members in on-disk order, navigable via ParentIndex.
type Match struct {
	ec      *evalctx.Context
	order   binary.ByteOrder
	members []Member
}

// Build walks buf against blockName using ec and s, materializing the
// entire block (and every nested block and array it contains) into a
// Match tree.
func Build(buf []byte, ec *evalctx.Context, s *schema.Schemata, blockName string, params []evalctx.Param) (*Match, error) {
	f := binfmt.Open(buf, ec, s)
	if err := f.PushPattern(blockName, params); err != nil {
		return nil, err
	}
	m := &Match{ec: ec, order: ec.ByteOrder}
	if err := m.drainBlock(f, RootMarker); err != nil {
		if f.Err() != nil {
			return nil, f.Err()
		}
		return nil, err
	}
	return m, nil
}

func (m *Match) add(mem Member) int {
	mem.NameHash = hashName(mem.Name)
	idx := len(m.members)
	m.members = append(m.members, mem)
	return idx
}

func (m *Match) drainBlock(f *binfmt.Formatter, parent int) error {
	for {
		switch f.PeekNext() {
		case binfmt.None:
			return nil
		case binfmt.EndBlock:
			if !f.TryEndBlock() {
				return f.Err()
			}
			return nil
		case binfmt.KeyedItem:
			name, ok := f.TryKeyedItem()
			if !ok {
				return f.Err()
			}
			if err := m.consumeKeyed(f, parent, name); err != nil {
				return err
			}
		default:
			return f.Err()
		}
	}
}

func (m *Match) consumeKeyed(f *binfmt.Formatter, parent int, name string) error {
	if v, ok := f.TryValue(); ok {
		m.add(Member{Name: name, Data: v.Data, Desc: v.Desc, TypeID: v.TypeID, ParentIndex: parent})
		return nil
	}
	if id, ok := f.TryBeginBlock(); ok {
		idx := m.add(Member{Name: name, TypeID: id, ParentIndex: parent, IsBlock: true})
		return m.drainBlock(f, idx)
	}
	if count, elemID, ok := f.TryBeginArray(); ok {
		idx := m.add(Member{Name: name, TypeID: elemID, ParentIndex: parent, ArrayCount: int(count), IsArray: true})
		return m.drainArray(f, idx, elemID)
	}
	if err := f.Err(); err != nil {
		return err
	}
	return &Error{Msg: "keyed item " + name + " was neither a value, a block, nor an array"}
}

func (m *Match) drainArray(f *binfmt.Formatter, parent int, elemID evalctx.TypeID) error {
	for {
		switch f.PeekNext() {
		case binfmt.EndArray:
			if !f.TryEndArray() {
				return f.Err()
			}
			return nil
		case binfmt.ValueMember:
			v, ok := f.TryValue()
			if !ok {
				return f.Err()
			}
			m.add(Member{Data: v.Data, Desc: v.Desc, TypeID: v.TypeID, ParentIndex: parent})
		case binfmt.BeginBlock:
			id, ok := f.TryBeginBlock()
			if !ok {
				return f.Err()
			}
			idx := m.add(Member{TypeID: id, ParentIndex: parent, IsBlock: true})
			if err := m.drainBlock(f, idx); err != nil {
				return err
			}
		default:
			return f.Err()
		}
	}
}

// Error reports a structural mismatch encountered while building a
// Match that the underlying Formatter did not itself surface as a
// binfmt.Error (e.g. an unrecognized blob kind at a keyed position).
type Error struct{ Msg string }

func (e *Error) Error() string { return "blockmatch: " + e.Msg }
