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

package binfmt

import "fmt"

// ErrKind classifies a FormatError.
type ErrKind uint8

const (
	// UnexpectedEnd is returned when a read would run past the end
	// of the buffer. PushPattern also reports an unknown block name
	// with this kind.
	UnexpectedEnd ErrKind = iota
	// JumpOutOfRange is returned when an IfFalseThenJump's target
	// falls outside the owning block's command list.
	JumpOutOfRange
	// NonNumericLocalInExpression is returned when an expression
	// references a member whose decoded value could not be cast to
	// an integer (e.g. a float, or a collapsed string).
	NonNumericLocalInExpression
	// UnknownCommand is returned when a command carries an Op this
	// formatter does not recognize, when a command finds the type or
	// value stack operands it needs missing or malformed, and when
	// evaluating an expression fails (e.g. a division by zero).
	UnknownCommand
)

func (k ErrKind) String() string {
	switch k {
	case UnexpectedEnd:
		return "UnexpectedEnd"
	case JumpOutOfRange:
		return "JumpOutOfRange"
	case NonNumericLocalInExpression:
		return "NonNumericLocalInExpression"
	case UnknownCommand:
		return "UnknownCommand"
	default:
		return "Unknown"
	}
}

// Error is FormatError from spec.md section 7.
type Error struct {
	Kind   ErrKind
	Block  string
	Member string
	Offset int
	Msg    string
}

func (e *Error) Error() string {
	switch {
	case e.Member != "":
		return fmt.Sprintf("%s: block %q, member %q at offset %d: %s", e.Kind, e.Block, e.Member, e.Offset, e.Msg)
	case e.Block != "":
		return fmt.Sprintf("%s: block %q at offset %d: %s", e.Kind, e.Block, e.Offset, e.Msg)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func errf(kind ErrKind, block, member string, offset int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Block: block, Member: member, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}
