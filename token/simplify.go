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

import "strconv"

// Simplify constant-folds subtrees of expr whose operands are all
// literals, and rewrites "defined(X) && X" into "X != 0" when X is
// the same variable as the one probed (a pattern schema authors
// commonly write to guard a variable's use). Simplify never changes
// the result Evaluate would produce for any resolver: folding only
// touches all-literal subtrees, and the defined(X) && X rewrite is
// safe because Evaluate treats an undefined X as 0, so both forms
// yield 0 when X is undefined and 1 or 0 by X != 0 when it is defined.
func Simplify(d *Dict, expr ExprTokens) ExprTokens {
	n, err := parseTree(d, expr)
	if err != nil {
		// Leave malformed input untouched; Evaluate will
		// surface the same error later.
		return expr
	}
	n = fold(d, n)
	n = rewriteDefinedGuard(d, n)
	return flatten(n)
}

func isLiteral(n *node) bool { return n.tok.Kind == Literal }

func fold(d *Dict, n *node) *node {
	for i, op := range n.operands {
		n.operands[i] = fold(d, op)
	}
	if n.tok.Kind != Operator {
		return n
	}
	allLiteral := true
	for _, op := range n.operands {
		if !isLiteral(op) {
			allLiteral = false
			break
		}
	}
	if !allLiteral || len(n.operands) == 0 {
		return n
	}
	v, err := evalNode(n, func(Token, ID) (int64, bool) { return 0, false })
	if err != nil {
		// e.g. a constant division by zero: leave it unfolded so
		// Evaluate reports the same error at evaluation time.
		return n
	}
	lit := strconv.FormatInt(v, 10)
	id := d.GetToken(Literal, lit)
	return &node{tok: Token{Kind: Literal, Value: lit}, id: id}
}

// rewriteDefinedGuard rewrites a node of the form
// (defined(X) && X) into (X != 0), recursively.
func rewriteDefinedGuard(d *Dict, n *node) *node {
	for i, op := range n.operands {
		n.operands[i] = rewriteDefinedGuard(d, op)
	}
	if n.tok.Kind == Operator && n.tok.Value == "&&" && len(n.operands) == 2 {
		l, r := n.operands[0], n.operands[1]
		if l.tok.Kind == IsDefinedTest && r.tok.Kind == Variable && l.tok.Value == r.tok.Value {
			zero := &node{tok: Token{Kind: Literal, Value: "0"}, id: d.GetToken(Literal, "0")}
			ne := Token{Kind: Operator, Value: "!="}
			return &node{tok: ne, id: d.GetToken(Operator, "!="), operands: []*node{r, zero}}
		}
	}
	return n
}

func flatten(n *node) ExprTokens {
	var out ExprTokens
	var walk func(*node)
	walk = func(n *node) {
		for _, op := range n.operands {
			walk(op)
		}
		out = append(out, n.id)
	}
	walk(n)
	return out
}
