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

// Package token implements an interning dictionary for the small
// expression language used inside binary-layout schemas, and a
// postfix (RPN) evaluator over the interned tokens.
//
// A Dict is append-only, much like an ion symbol table: a token is
// either already present (in which case its existing ID is returned)
// or it is appended and a new ID is handed out. IDs are never reused
// for the lifetime of a Dict.
package token

import "fmt"

// Kind identifies the lexical category of a Token.
type Kind uint8

const (
	// Variable is a named reference resolved against a
	// resolver callback at evaluation time.
	Variable Kind = iota
	// Literal is an integer constant spelled out in Value.
	Literal
	// IsDefinedTest is the operand of a defined(x) probe; Value
	// holds the name being probed.
	IsDefinedTest
	// Operator is an arithmetic, comparison, logical, bitwise or
	// ternary operator; Value holds its spelling.
	Operator
	// FunctionCall is a named function invocation; Value holds
	// the function name. Only reserved for schema-language
	// extensions - the evaluator does not invoke these.
	FunctionCall
	// OpenParen, CloseParen and Comma complete the token kind set;
	// the schema parser compiles infix to postfix by recursive
	// descent and never interns them, and Evaluate rejects them.
	OpenParen
	CloseParen
	Comma
)

func (k Kind) String() string {
	switch k {
	case Variable:
		return "variable"
	case Literal:
		return "literal"
	case IsDefinedTest:
		return "defined"
	case Operator:
		return "operator"
	case FunctionCall:
		return "call"
	case OpenParen:
		return "("
	case CloseParen:
		return ")"
	case Comma:
		return ","
	default:
		return "unknown"
	}
}

// ID is a small unsigned index into a Dict.
type ID uint32

// Token is a single interned lexical unit.
type Token struct {
	Kind  Kind
	Value string
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Kind, t.Value)
}

type key struct {
	kind  Kind
	value string
}

// Dict is an append-only, interning table of Tokens.
//
// Dict is not safe for concurrent use; callers that share a Dict
// across goroutines must serialize access externally (see the
// package-level doc of evalctx for the convention this module uses).
type Dict struct {
	toks  []Token
	index map[key]ID
}

// NewDict returns an empty token dictionary.
func NewDict() *Dict {
	return &Dict{index: make(map[key]ID)}
}

// Len returns the number of distinct tokens interned so far.
func (d *Dict) Len() int { return len(d.toks) }

// Lookup returns the Token associated with id.
//
// Lookup panics if id was not produced by this Dict; callers that
// accept external IDs should validate them with a range check first.
func (d *Dict) Lookup(id ID) Token {
	return d.toks[id]
}

// TryGetToken returns the ID already associated with (kind, value),
// or (0, false) if no such token has been interned.
func (d *Dict) TryGetToken(kind Kind, value string) (ID, bool) {
	id, ok := d.index[key{kind, value}]
	return id, ok
}

// GetToken interns (kind, value) if necessary and returns its ID.
func (d *Dict) GetToken(kind Kind, value string) ID {
	k := key{kind, value}
	if id, ok := d.index[k]; ok {
		return id
	}
	id := ID(len(d.toks))
	d.toks = append(d.toks, Token{Kind: kind, Value: value})
	d.index[k] = id
	return id
}

// Translate copies the token at otherID in other into d (interning it
// if necessary) and returns its ID in d.
func (d *Dict) Translate(other *Dict, otherID ID) ID {
	tok := other.Lookup(otherID)
	return d.GetToken(tok.Kind, tok.Value)
}

// TranslateExpr copies every token referenced by expr (a postfix
// expression over other's IDs) into d and returns the equivalent
// expression over d's IDs.
func (d *Dict) TranslateExpr(other *Dict, expr []ID) []ID {
	out := make([]ID, len(expr))
	for i, id := range expr {
		out[i] = d.Translate(other, id)
	}
	return out
}
