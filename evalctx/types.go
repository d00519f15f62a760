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

// Package evalctx hash-conses evaluated type instances (a block or
// alias bound to concrete template arguments, or a bare primitive)
// into a small id-indexed table, and caches which of those instances
// have a fixed, buffer-independent size.
//
// Two instances with structurally identical (name, arguments) are
// always the same TypeID: GetEvaluatedType performs the lookup under
// typeMu and only resolves (and appends) on a miss, the same
// read-then-resolve-then-recheck shape ion.Symtab uses for interning
// symbols.
package evalctx

import (
	"encoding/binary"
	"strconv"

	"github.com/sneller-labs/contentval/schema"
)

// TypeID indexes an EvaluatedType within a Context.
type TypeID uint32

// Param is one bound template argument: either a concrete integer
// (for an Expression-kind parameter) or a previously-resolved TypeID
// (for a Typename-kind parameter).
type Param struct {
	Kind schema.ParamKind
	Int  int64
	Type TypeID
}

// EvaluatedType is a block or alias definition bound to concrete
// template arguments, or a bare primitive. It is immutable once
// constructed by Context.GetEvaluatedType.
type EvaluatedType struct {
	Name string

	// Desc is set when this type denotes a primitive value directly
	// (either because Name named a primitive, or because an alias
	// chain bottoms out at one).
	Desc    schema.ValueType
	IsPrim  bool
	IsBlock bool
	Block   schema.BlockID
	IsAlias bool
	Alias   schema.AliasID

	Params []Param
}

type sizeState uint8

const (
	sizeUnknown sizeState = iota
	sizeFixed
	sizeDynamic
)

type sizeCacheEntry struct {
	state sizeState
	fixed int
}

// TypeString renders id the way a human-readable dump names a type:
// the block/alias/primitive name, followed by its bound template
// arguments in parentheses (nested typenames rendered recursively,
// expression arguments rendered as plain integers).
func (c *Context) TypeString(id TypeID) string {
	t := c.GetType(id)
	name := t.Name
	if len(t.Params) == 0 {
		return name
	}
	var b []byte
	b = append(b, name...)
	b = append(b, '(')
	for i, p := range t.Params {
		if i != 0 {
			b = append(b, ", "...)
		}
		if p.Kind == schema.Typename {
			b = append(b, c.TypeString(p.Type)...)
		} else {
			b = strconv.AppendInt(b, p.Int, 10)
		}
	}
	b = append(b, ')')
	return string(b)
}

func paramKey(name string, params []Param) string {
	buf := make([]byte, 0, len(name)+len(params)*9+1)
	buf = append(buf, name...)
	buf = append(buf, 0)
	var tmp [8]byte
	for _, p := range params {
		buf = append(buf, byte(p.Kind))
		if p.Kind == schema.Expression {
			binary.LittleEndian.PutUint64(tmp[:], uint64(p.Int))
		} else {
			binary.LittleEndian.PutUint64(tmp[:], uint64(p.Type))
		}
		buf = append(buf, tmp[:]...)
	}
	return string(buf)
}
