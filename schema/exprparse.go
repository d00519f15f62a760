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

import (
	"errors"

	"github.com/sneller-labs/contentval/cpptok"
	"github.com/sneller-labs/contentval/token"
)

// tokenSrc is a tiny peekable view over a cpptok.RawToken stream,
// shared by the main schema parser (reading from its own lexer) and
// by parseCondString (reading from a throwaway lexer over a
// condition string synthesized by cpptok.Lexer.GetCurrentConditionString).
type tokenSrc interface {
	peekRaw() cpptok.RawToken
	advanceRaw() error
}

// parseExpr parses a C-like infix expression from src and interns
// its tokens into dict, returning the equivalent postfix ExprTokens.
// This implements the precedence table from spec.md section 4.1,
// from lowest to highest: ?: , || , && , | , ^ , & , == != ,
// < <= > >= , << >> , + - , * / % , and finally the unary group
// ! ~ (unary -).
func parseExpr(dict *token.Dict, src tokenSrc) (token.ExprTokens, error) {
	p := &exprParser{dict: dict, src: src}
	toks, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return toks, nil
}

type exprParser struct {
	dict *token.Dict
	src  tokenSrc
}

func (p *exprParser) peek() cpptok.RawToken { return p.src.peekRaw() }
func (p *exprParser) adv() error            { return p.src.advanceRaw() }

func (p *exprParser) ternary() (token.ExprTokens, error) {
	cond, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	if p.peek().Kind == cpptok.Punct && p.peek().Text == "?" {
		if err := p.adv(); err != nil {
			return nil, err
		}
		then, err := p.ternary()
		if err != nil {
			return nil, err
		}
		if p.peek().Text != ":" {
			return nil, exprSyntaxErr(p.peek(), "expected ':' in ternary expression")
		}
		if err := p.adv(); err != nil {
			return nil, err
		}
		els, err := p.ternary()
		if err != nil {
			return nil, err
		}
		out := append(token.ExprTokens{}, cond...)
		out = append(out, then...)
		out = append(out, els...)
		out = append(out, p.dict.GetToken(token.Operator, "?:"))
		return out, nil
	}
	return cond, nil
}

// precedence levels, lowest to highest; each entry is the set of
// operator spellings recognized at that level.
var precedence = [][]string{
	{"||"},
	{"&&"},
	{"|"},
	{"^"},
	{"&"},
	{"==", "!="},
	{"<", "<=", ">", ">="},
	{"<<", ">>"},
	{"+", "-"},
	{"*", "/", "%"},
}

func (p *exprParser) binary(level int) (token.ExprTokens, error) {
	if level >= len(precedence) {
		return p.unary()
	}
	lhs, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Kind != cpptok.Punct || !contains(precedence[level], tok.Text) {
			return lhs, nil
		}
		op := tok.Text
		if err := p.adv(); err != nil {
			return nil, err
		}
		rhs, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}
		out := append(token.ExprTokens{}, lhs...)
		out = append(out, rhs...)
		out = append(out, p.dict.GetToken(token.Operator, op))
		lhs = out
	}
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func (p *exprParser) unary() (token.ExprTokens, error) {
	tok := p.peek()
	if tok.Kind == cpptok.Punct && (tok.Text == "!" || tok.Text == "~" || tok.Text == "-") {
		if err := p.adv(); err != nil {
			return nil, err
		}
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		spelling := tok.Text
		if spelling == "-" {
			spelling = "neg"
		}
		return append(operand, p.dict.GetToken(token.Operator, spelling)), nil
	}
	return p.primary()
}

func (p *exprParser) primary() (token.ExprTokens, error) {
	tok := p.peek()
	switch {
	case tok.Kind == cpptok.Punct && tok.Text == "(":
		if err := p.adv(); err != nil {
			return nil, err
		}
		inner, err := p.ternary()
		if err != nil {
			return nil, err
		}
		if p.peek().Text != ")" {
			return nil, exprSyntaxErr(p.peek(), "expected ')'")
		}
		if err := p.adv(); err != nil {
			return nil, err
		}
		return inner, nil
	case tok.Kind == cpptok.Number:
		if err := p.adv(); err != nil {
			return nil, err
		}
		return token.ExprTokens{p.dict.GetToken(token.Literal, tok.Text)}, nil
	case tok.Kind == cpptok.Ident && tok.Text == "defined":
		if err := p.adv(); err != nil {
			return nil, err
		}
		if p.peek().Text != "(" {
			return nil, exprSyntaxErr(p.peek(), "expected '(' after defined")
		}
		if err := p.adv(); err != nil {
			return nil, err
		}
		name := p.peek()
		if name.Kind != cpptok.Ident {
			return nil, exprSyntaxErr(name, "expected identifier inside defined(...)")
		}
		if err := p.adv(); err != nil {
			return nil, err
		}
		if p.peek().Text != ")" {
			return nil, exprSyntaxErr(p.peek(), "expected ')' after defined(...")
		}
		if err := p.adv(); err != nil {
			return nil, err
		}
		return token.ExprTokens{p.dict.GetToken(token.IsDefinedTest, name.Text)}, nil
	case tok.Kind == cpptok.Ident:
		if err := p.adv(); err != nil {
			return nil, err
		}
		return token.ExprTokens{p.dict.GetToken(token.Variable, tok.Text)}, nil
	default:
		return nil, exprSyntaxErr(tok, "unexpected token in expression")
	}
}

func exprSyntaxErr(tok cpptok.RawToken, msg string) *Error {
	return errf(ParseFailed, tok.File, tok.Offset, "%s (got %q)", msg, tok.Text)
}

// parseCondString parses a condition string produced by
// cpptok.Lexer.GetCurrentConditionString into a postfix expression
// interned into dict. Used to compile the IfFalseThenJump guard for
// a run of statements whose Cond differs from the previous run.
func parseCondString(dict *token.Dict, cond string) (token.ExprTokens, error) {
	lx := cpptok.New("<condition>", []byte(cond), nil)
	src := &lexerSrc{lx: lx}
	if err := src.advanceRaw(); err != nil {
		return nil, err
	}
	return parseExpr(dict, src)
}

// lexerSrc adapts a cpptok.Lexer (which has no native lookahead) to
// tokenSrc by buffering exactly one token.
type lexerSrc struct {
	lx  *cpptok.Lexer
	cur cpptok.RawToken
}

func (s *lexerSrc) peekRaw() cpptok.RawToken { return s.cur }
func (s *lexerSrc) advanceRaw() error {
	tok, err := s.lx.Next()
	if err != nil {
		var incErr *cpptok.IncludeError
		if errors.As(err, &incErr) {
			return &Error{Kind: IncludeNotFound, File: incErr.File, Msg: incErr.Error(), Err: err}
		}
		return err
	}
	s.cur = tok
	return nil
}
