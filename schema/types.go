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

// Package schema holds the parsed form of a binary-layout schema
// source file: named block definitions (each a flat command list
// plus its own token.Dict), type aliases, bitfield definitions and
// literal tables.
package schema

// Category is the primitive kind of a value type.
type Category uint8

const (
	Void Category = iota
	Bool
	Int8
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Int64
	UInt64
	Float
	Double
)

func (c Category) String() string {
	switch c {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case Int8:
		return "int8"
	case UInt8:
		return "uint8"
	case Int16:
		return "int16"
	case UInt16:
		return "uint16"
	case Int32:
		return "int32"
	case UInt32:
		return "uint32"
	case Int64:
		return "int64"
	case UInt64:
		return "uint64"
	case Float:
		return "float32"
	case Double:
		return "float64"
	default:
		return "unknown"
	}
}

// elementSize returns the in-buffer size, in bytes, of a single
// element of c. Void has size 0, every other category has a fixed
// size, and an unrecognized category also reports 0.
func (c Category) elementSize() int {
	switch c {
	case Void:
		return 0
	case Bool, Int8, UInt8:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float:
		return 4
	case Int64, UInt64, Double:
		return 8
	default:
		return 0
	}
}

// Hint carries formatting intent that does not affect decoding.
type Hint uint8

const (
	NoHint Hint = iota
	// StringHint marks a value as a collapsed array of single-byte
	// elements that should be presented as text.
	StringHint
)

// ValueType is the primitive type descriptor from spec.md section 3:
// {category, arrayCount, hint}.
type ValueType struct {
	Category   Category
	ArrayCount int
	Hint       Hint
}

// Size returns the deterministic in-buffer size of the type.
func (t ValueType) Size() int {
	n := t.ArrayCount
	if n < 1 {
		n = 1
	}
	return t.Category.elementSize() * n
}

// primitiveDesc records how a schema primitive type name decodes.
type primitiveDesc struct {
	category Category
}

// primitives is the default set of primitive names recognized by
// the schema grammar (spec.md section 6). float16 decodes as a raw
// 2-byte value (UInt16 storage): interpreting its bits as an IEEE
// half-precision float is explicitly out of scope.
var primitives = map[string]primitiveDesc{
	"void":    {Void},
	"bool":    {Bool},
	"int8":    {Int8},
	"uint8":   {UInt8},
	"int16":   {Int16},
	"uint16":  {UInt16},
	"int32":   {Int32},
	"uint32":  {UInt32},
	"int64":   {Int64},
	"uint64":  {UInt64},
	"float16": {UInt16},
	"float32": {Float},
	"float64": {Double},
}

// LookupPrimitive returns the value type for a primitive name, or
// false if name is not a recognized primitive.
func LookupPrimitive(name string) (ValueType, bool) {
	p, ok := primitives[name]
	if !ok {
		return ValueType{}, false
	}
	return ValueType{Category: p.category, ArrayCount: 1}, true
}
