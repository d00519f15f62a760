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

package schema

import "github.com/sneller-labs/contentval/token"

// ParamKind distinguishes a template parameter or argument that
// binds a type from one that binds an integer expression.
type ParamKind uint8

const (
	Typename ParamKind = iota
	Expression
)

// TemplateParam is one parameter of a "block template(...)" decl.
type TemplateParam struct {
	NameTok token.ID
	Kind    ParamKind
}

// Op is one of the five command opcodes from spec.md section 3.
type Op uint8

const (
	OpLookupType Op = iota
	OpEvaluateExpression
	OpInlineIndividualMember
	OpInlineArrayMember
	OpIfFalseThenJump
)

func (o Op) String() string {
	switch o {
	case OpLookupType:
		return "LookupType"
	case OpEvaluateExpression:
		return "EvaluateExpression"
	case OpInlineIndividualMember:
		return "InlineIndividualMember"
	case OpInlineArrayMember:
		return "InlineArrayMember"
	case OpIfFalseThenJump:
		return "IfFalseThenJump"
	default:
		return "Unknown"
	}
}

// Cmd is one entry of a block's compiled command list. Only the
// fields relevant to Op are populated; this mirrors the spec's flat
// "32-bit opcode stream" while keeping variable-length operand lists
// (ParamKinds, Expr) as Go slices instead of packing them by hand.
type Cmd struct {
	Op Op

	// OpLookupType
	NameTok    token.ID
	ParamKinds []ParamKind

	// OpEvaluateExpression
	Expr token.ExprTokens

	// OpInlineIndividualMember / OpInlineArrayMember
	MemberNameTok token.ID

	// OpIfFalseThenJump: absolute index into the owning BlockDef's
	// Cmds to jump to when the popped value is zero.
	Target int
}

// BlockID indexes a BlockDef within a Schemata.
type BlockID uint32

// BlockDef is a named, possibly template-parametrized block
// definition: a flat command list plus the per-block token
// dictionary that every NameTok/Expr token id in Cmds refers into.
type BlockDef struct {
	Name   string
	Dict   *token.Dict
	Params []TemplateParam
	Cmds   []Cmd
}

// AliasID indexes an Alias within a Schemata.
type AliasID uint32

// TypeArg is one argument of a type reference, e.g. the "expr 3" in
// "V(expr 3)".
type TypeArg struct {
	Kind ParamKind
	// Typename holds the referenced type name when Kind == Typename.
	Typename string
	TypeArgs []TypeArg
	// Expr holds the postfix expression when Kind == Expression.
	Expr token.ExprTokens
}

// Alias is a named reference to another type, with optional
// template arguments, an optional bitfield decoder and an optional
// enum (literals) decoder.
type Alias struct {
	Name     string
	Base     string
	BaseArgs []TypeArg
	Dict     *token.Dict // owns any Expression-kind BaseArgs' tokens

	HasBitField bool
	BitField    BitFieldID

	HasEnum bool
	Enum    LiteralsID
}

// BitFieldID indexes a BitField within a Schemata.
type BitFieldID uint32

// BitRange is one {minBit, bitCount, name, storageType} entry of a
// bitfield definition.
type BitRange struct {
	MinBit      int
	BitCount    int
	Name        string
	StorageType string // empty if not specified
}

// BitField is a named, ordered list of bit ranges.
type BitField struct {
	Name   string
	Ranges []BitRange
}

// LiteralsID indexes a Literals table within a Schemata.
type LiteralsID uint32

// Literals is a named map of identifier to integer constant. Order
// is preserved for deterministic iteration/serialization.
type Literals struct {
	Name   string
	Order  []string
	Values map[string]int64
}
