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

package evalctx

import "fmt"

// ErrKind classifies an Error returned while resolving a type
// reference against a Context.
type ErrKind uint8

const (
	// UnknownTypeReference is returned when a name is neither a
	// recognized primitive, nor a known alias, nor a known block.
	UnknownTypeReference ErrKind = iota
	// WrongParamKind is returned when a template argument's kind
	// (typename vs. expr) does not match the corresponding
	// declared template parameter.
	WrongParamKind
	// WrongParamCount is returned when the number of supplied
	// template arguments does not match the block's declared
	// parameter list.
	WrongParamCount
)

func (k ErrKind) String() string {
	switch k {
	case UnknownTypeReference:
		return "UnknownTypeReference"
	case WrongParamKind:
		return "WrongParamKind"
	case WrongParamCount:
		return "WrongParamCount"
	default:
		return "Unknown"
	}
}

// Error is EvalError from spec.md section 7.
type Error struct {
	Kind ErrKind
	Name string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %q: %s", e.Kind, e.Name, e.Msg)
}

func errf(kind ErrKind, name, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Name: name, Msg: fmt.Sprintf(format, args...)}
}
