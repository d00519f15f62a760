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

package token

import (
	"fmt"
	"strconv"
)

// ErrKind classifies an ExprError.
type ErrKind uint8

const (
	// DivideByZero is returned when / or % would divide by zero.
	DivideByZero ErrKind = iota
	// MalformedExpr is returned when the postfix token stream does
	// not form a well-formed expression (e.g. leftover operands,
	// or an operator with too few operands).
	MalformedExpr
	// BadLiteral is returned when a Literal token's Value cannot
	// be parsed as an integer.
	BadLiteral
)

// ExprError is the error type returned by Evaluate.
type ExprError struct {
	Kind ErrKind
	Msg  string
}

func (e *ExprError) Error() string {
	return "expression: " + e.Msg
}

func exprErrf(k ErrKind, format string, args ...interface{}) *ExprError {
	return &ExprError{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// ExprTokens is a sequence of token IDs forming a postfix (RPN)
// integer expression over some Dict.
type ExprTokens []ID

// Resolver is invoked by Evaluate for every Variable and
// IsDefinedTest token encountered. It returns the variable's
// current value and whether the variable is known at all. Unknown
// variables are not an error: Evaluate treats a false return as the
// value 0 (per spec.md, unknown variables yield 0).
type Resolver func(tok Token, id ID) (int64, bool)

// node is an intermediate tree form of a postfix expression, built
// so that && / || / ?: can short-circuit the way a flat RPN stack
// machine cannot: a flat machine must have already evaluated both
// operands of every operator by the time it reaches that operator,
// which would force evaluation of branches the spec requires to be
// skipped (e.g. the untaken side of a ternary, or the right-hand
// side of a short-circuited && / ||). Building a tree first and
// evaluating it recursively mirrors the expr package's AST-based
// evaluation rather than a bytecode stack machine.
type node struct {
	tok      Token
	id       ID
	operands []*node
}

func parseTree(d *Dict, expr ExprTokens) (*node, error) {
	var stack []*node
	pop := func(n int) ([]*node, bool) {
		if len(stack) < n {
			return nil, false
		}
		args := append([]*node(nil), stack[len(stack)-n:]...)
		stack = stack[:len(stack)-n]
		return args, true
	}
	for _, id := range expr {
		tok := d.Lookup(id)
		switch tok.Kind {
		case Variable, Literal:
			stack = append(stack, &node{tok: tok, id: id})
		case IsDefinedTest:
			stack = append(stack, &node{tok: tok, id: id})
		case Operator:
			n := arity(tok.Value)
			if n < 0 {
				return nil, exprErrf(MalformedExpr, "unknown operator %q", tok.Value)
			}
			args, ok := pop(n)
			if !ok {
				return nil, exprErrf(MalformedExpr, "operator %q needs %d operands", tok.Value, n)
			}
			stack = append(stack, &node{tok: tok, id: id, operands: args})
		case FunctionCall:
			// Reserved for schema-language extensions; treated
			// as a zero-operand leaf since no builtin functions
			// are defined by this spec.
			stack = append(stack, &node{tok: tok, id: id})
		default:
			return nil, exprErrf(MalformedExpr, "unexpected token %s in expression", tok)
		}
	}
	if len(stack) != 1 {
		return nil, exprErrf(MalformedExpr, "expression did not reduce to a single value (%d remaining)", len(stack))
	}
	return stack[0], nil
}

// arity returns the number of operands an operator spelling consumes,
// or -1 if the spelling is not recognized.
func arity(op string) int {
	switch op {
	case "!", "~", "neg":
		return 1
	case "*", "/", "%", "+", "-", "<<", ">>",
		"<", "<=", ">", ">=", "==", "!=",
		"&", "^", "|", "&&", "||":
		return 2
	case "?:":
		return 3
	default:
		return -1
	}
}

// Evaluate interprets expr as a postfix integer expression,
// resolving Variable and IsDefinedTest tokens via resolve.
func Evaluate(d *Dict, expr ExprTokens, resolve Resolver) (int64, error) {
	n, err := parseTree(d, expr)
	if err != nil {
		return 0, err
	}
	return evalNode(n, resolve)
}

func evalNode(n *node, resolve Resolver) (int64, error) {
	switch n.tok.Kind {
	case Literal:
		v, err := strconv.ParseInt(n.tok.Value, 0, 64)
		if err != nil {
			return 0, exprErrf(BadLiteral, "literal %q: %s", n.tok.Value, err)
		}
		return v, nil
	case Variable:
		v, ok := resolve(n.tok, n.id)
		if !ok {
			return 0, nil
		}
		return v, nil
	case IsDefinedTest:
		_, ok := resolve(n.tok, n.id)
		if ok {
			return 1, nil
		}
		return 0, nil
	case FunctionCall:
		// No builtin functions are defined; an unresolved call
		// behaves like an unresolved variable.
		return 0, nil
	}
	switch n.tok.Value {
	case "!":
		v, err := evalNode(n.operands[0], resolve)
		if err != nil {
			return 0, err
		}
		if v == 0 {
			return 1, nil
		}
		return 0, nil
	case "~":
		v, err := evalNode(n.operands[0], resolve)
		if err != nil {
			return 0, err
		}
		return ^v, nil
	case "neg":
		v, err := evalNode(n.operands[0], resolve)
		if err != nil {
			return 0, err
		}
		return -v, nil
	case "&&":
		l, err := evalNode(n.operands[0], resolve)
		if err != nil {
			return 0, err
		}
		if l == 0 {
			return 0, nil
		}
		r, err := evalNode(n.operands[1], resolve)
		if err != nil {
			return 0, err
		}
		if r != 0 {
			return 1, nil
		}
		return 0, nil
	case "||":
		l, err := evalNode(n.operands[0], resolve)
		if err != nil {
			return 0, err
		}
		if l != 0 {
			return 1, nil
		}
		r, err := evalNode(n.operands[1], resolve)
		if err != nil {
			return 0, err
		}
		if r != 0 {
			return 1, nil
		}
		return 0, nil
	case "?:":
		c, err := evalNode(n.operands[0], resolve)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return evalNode(n.operands[1], resolve)
		}
		return evalNode(n.operands[2], resolve)
	}
	// remaining binary operators always evaluate both sides
	l, err := evalNode(n.operands[0], resolve)
	if err != nil {
		return 0, err
	}
	r, err := evalNode(n.operands[1], resolve)
	if err != nil {
		return 0, err
	}
	switch n.tok.Value {
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, exprErrf(DivideByZero, "division by zero")
		}
		return l / r, nil
	case "%":
		if r == 0 {
			return 0, exprErrf(DivideByZero, "modulo by zero")
		}
		return l % r, nil
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "<<":
		return l << uint64(r), nil
	case ">>":
		return l >> uint64(r), nil
	case "<":
		return boolInt(l < r), nil
	case "<=":
		return boolInt(l <= r), nil
	case ">":
		return boolInt(l > r), nil
	case ">=":
		return boolInt(l >= r), nil
	case "==":
		return boolInt(l == r), nil
	case "!=":
		return boolInt(l != r), nil
	case "&":
		return l & r, nil
	case "^":
		return l ^ r, nil
	case "|":
		return l | r, nil
	}
	return 0, exprErrf(MalformedExpr, "unknown operator %q", n.tok.Value)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
