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
	"strconv"

	"github.com/sneller-labs/contentval/cpptok"
	"github.com/sneller-labs/contentval/token"
)

// IncludeResolver opens an #include target by path. It is the same
// shape as cpptok.IncludeResolver; schema re-declares it so callers
// outside this module don't need to import cpptok directly.
type IncludeResolver = cpptok.IncludeResolver

// Parse parses schema source text into a Schemata.
//
// name identifies src in error messages. resolver is consulted for
// #include directives and may be nil if src contains none. Includes
// is populated with every file path opened via #include, in open
// order, for the caller to register as dep-val file dependencies
// (spec.md section 4.2 construction note).
func Parse(name string, src []byte, resolver IncludeResolver) (s *Schemata, includes []string, err error) {
	lx := cpptok.New(name, src, resolver)
	p := &Parser{lexerSrc: &lexerSrc{lx: lx}, sch: newSchemata()}
	if err := p.advanceRaw(); err != nil {
		return nil, nil, err
	}
	for p.peek().Kind != cpptok.EOF {
		if err := p.parseDecl(); err != nil {
			return nil, lx.Includes, err
		}
	}
	return p.sch, lx.Includes, nil
}

// Parser drives recursive-descent parsing of one schema source file
// (and its transitive #includes) into a Schemata.
type Parser struct {
	*lexerSrc
	sch *Schemata
}

func (p *Parser) peek() cpptok.RawToken { return p.peekRaw() }

func (p *Parser) expectPunct(s string) error {
	tok := p.peek()
	if tok.Kind != cpptok.Punct || tok.Text != s {
		return exprSyntaxErr(tok, "expected '"+s+"'")
	}
	return p.advanceRaw()
}

func (p *Parser) expectIdentText(s string) error {
	tok := p.peek()
	if tok.Kind != cpptok.Ident || tok.Text != s {
		return exprSyntaxErr(tok, "expected '"+s+"'")
	}
	return p.advanceRaw()
}

func (p *Parser) expectIdent() (string, error) {
	tok := p.peek()
	if tok.Kind != cpptok.Ident {
		return "", exprSyntaxErr(tok, "expected identifier")
	}
	name := tok.Text
	return name, p.advanceRaw()
}

func (p *Parser) atIdent(s string) bool {
	tok := p.peek()
	return tok.Kind == cpptok.Ident && tok.Text == s
}

func (p *Parser) atPunct(s string) bool {
	tok := p.peek()
	return tok.Kind == cpptok.Punct && tok.Text == s
}

func (p *Parser) parseDecl() error {
	switch {
	case p.atIdent("block"):
		return p.parseBlock()
	case p.atIdent("alias"):
		return p.parseAlias()
	case p.atIdent("bitfield"):
		return p.parseBitField()
	case p.atIdent("literals"):
		return p.parseLiterals()
	default:
		return errf(ParseFailed, p.peek().File, p.peek().Offset,
			"expected one of block/alias/bitfield/literals, got %q", p.peek().Text)
	}
}

// --- block ---

func (p *Parser) parseBlock() error {
	if err := p.expectIdentText("block"); err != nil {
		return err
	}
	b := BlockDef{Dict: token.NewDict()}
	if p.atIdent("template") {
		if err := p.advanceRaw(); err != nil {
			return err
		}
		if err := p.expectPunct("("); err != nil {
			return err
		}
		for {
			param, err := p.parseTemplateParam(b.Dict)
			if err != nil {
				return err
			}
			b.Params = append(b.Params, param)
			if p.atPunct(",") {
				if err := p.advanceRaw(); err != nil {
					return err
				}
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return err
		}
	}
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	b.Name = name
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	if err := p.parseBlockBody(&b); err != nil {
		return err
	}
	if err := p.expectPunct("}"); err != nil {
		return err
	}
	if err := p.expectPunct(";"); err != nil {
		return err
	}
	p.sch.addBlock(b)
	return nil
}

func (p *Parser) parseTemplateParam(dict *token.Dict) (TemplateParam, error) {
	var kind ParamKind
	switch {
	case p.atIdent("typename"):
		kind = Typename
	case p.atIdent("expr"):
		kind = Expression
	default:
		return TemplateParam{}, exprSyntaxErr(p.peek(), "expected 'typename' or 'expr'")
	}
	if err := p.advanceRaw(); err != nil {
		return TemplateParam{}, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return TemplateParam{}, err
	}
	return TemplateParam{NameTok: dict.GetToken(token.Variable, name), Kind: kind}, nil
}

// parseBlockBody parses the ";"-terminated statement list of a block
// body, compiling "#if"-gated runs of statements into
// EvaluateExpression + IfFalseThenJump pairs. Every statement run
// sharing the same (possibly empty) Cond string is one such region;
// region boundaries are detected purely from Cond transitions, since
// cpptok has already resolved #if/#elif/#else/#endif into per-token
// condition strings by the time tokens reach the parser.
func (p *Parser) parseBlockBody(b *BlockDef) error {
	currentCond := ""
	pendingJump := -1
	closeRegion := func() {
		if pendingJump >= 0 {
			b.Cmds[pendingJump].Target = len(b.Cmds)
			pendingJump = -1
		}
	}
	for !p.atPunct("}") {
		tok := p.peek()
		if tok.Cond != currentCond {
			closeRegion()
			currentCond = tok.Cond
			if currentCond != "" {
				condExpr, err := parseCondString(b.Dict, currentCond)
				if err != nil {
					return err
				}
				b.Cmds = append(b.Cmds, Cmd{Op: OpEvaluateExpression, Expr: condExpr})
				pendingJump = len(b.Cmds)
				b.Cmds = append(b.Cmds, Cmd{Op: OpIfFalseThenJump, Target: -1})
			}
		}
		if err := p.parseMember(b); err != nil {
			return err
		}
	}
	closeRegion()
	return nil
}

func (p *Parser) parseMember(b *BlockDef) error {
	if err := p.compileType(b); err != nil {
		return err
	}
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	memberTok := b.Dict.GetToken(token.Variable, name)
	if p.atPunct("[") {
		if err := p.advanceRaw(); err != nil {
			return err
		}
		countExpr, err := parseExpr(b.Dict, p)
		if err != nil {
			return err
		}
		if err := p.expectPunct("]"); err != nil {
			return err
		}
		b.Cmds = append(b.Cmds, Cmd{Op: OpEvaluateExpression, Expr: countExpr})
		b.Cmds = append(b.Cmds, Cmd{Op: OpInlineArrayMember, MemberNameTok: memberTok})
	} else {
		b.Cmds = append(b.Cmds, Cmd{Op: OpInlineIndividualMember, MemberNameTok: memberTok})
	}
	return p.expectPunct(";")
}

// compileType parses the "type" nonterminal and appends the command
// sequence that, when executed, pushes the resolved evaluated type
// onto the formatter's type stack (ending in an OpLookupType).
func (p *Parser) compileType(b *BlockDef) error {
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	nameTok := b.Dict.GetToken(token.Variable, name)
	var kinds []ParamKind
	if p.atPunct("(") {
		if err := p.advanceRaw(); err != nil {
			return err
		}
		for {
			switch {
			case p.atIdent("typename"):
				if err := p.advanceRaw(); err != nil {
					return err
				}
				kinds = append(kinds, Typename)
				if err := p.compileType(b); err != nil {
					return err
				}
			case p.atIdent("expr"):
				if err := p.advanceRaw(); err != nil {
					return err
				}
				kinds = append(kinds, Expression)
				e, err := parseExpr(b.Dict, p)
				if err != nil {
					return err
				}
				b.Cmds = append(b.Cmds, Cmd{Op: OpEvaluateExpression, Expr: e})
			default:
				return exprSyntaxErr(p.peek(), "expected 'typename' or 'expr' in type argument")
			}
			if p.atPunct(",") {
				if err := p.advanceRaw(); err != nil {
					return err
				}
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return err
		}
	}
	b.Cmds = append(b.Cmds, Cmd{Op: OpLookupType, NameTok: nameTok, ParamKinds: kinds})
	return nil
}

// --- alias ---

func (p *Parser) parseAlias() error {
	if err := p.expectIdentText("alias"); err != nil {
		return err
	}
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	if err := p.expectPunct("="); err != nil {
		return err
	}
	a := Alias{Name: name, Dict: p.sch.Dict}
	base, args, err := p.parseTypeRef(p.sch.Dict)
	if err != nil {
		return err
	}
	a.Base = base
	a.BaseArgs = args
	if err := p.expectPunct(";"); err != nil {
		return err
	}
	p.sch.addAlias(a)
	return nil
}

// parseTypeRef parses a "type" nonterminal into a (name, args) pair
// without compiling it to commands; used where a type reference
// describes a static alias target rather than a live decode step.
func (p *Parser) parseTypeRef(dict *token.Dict) (string, []TypeArg, error) {
	name, err := p.expectIdent()
	if err != nil {
		return "", nil, err
	}
	var args []TypeArg
	if p.atPunct("(") {
		if err := p.advanceRaw(); err != nil {
			return "", nil, err
		}
		for {
			switch {
			case p.atIdent("typename"):
				if err := p.advanceRaw(); err != nil {
					return "", nil, err
				}
				tn, nested, err := p.parseTypeRef(dict)
				if err != nil {
					return "", nil, err
				}
				args = append(args, TypeArg{Kind: Typename, Typename: tn, TypeArgs: nested})
			case p.atIdent("expr"):
				if err := p.advanceRaw(); err != nil {
					return "", nil, err
				}
				e, err := parseExpr(dict, p)
				if err != nil {
					return "", nil, err
				}
				args = append(args, TypeArg{Kind: Expression, Expr: e})
			default:
				return "", nil, exprSyntaxErr(p.peek(), "expected 'typename' or 'expr' in type argument")
			}
			if p.atPunct(",") {
				if err := p.advanceRaw(); err != nil {
					return "", nil, err
				}
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return "", nil, err
		}
	}
	return name, args, nil
}

// --- bitfield ---

func (p *Parser) parseBitField() error {
	if err := p.expectIdentText("bitfield"); err != nil {
		return err
	}
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	bf := BitField{Name: name}
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	for !p.atPunct("}") {
		r, err := p.parseBitRange()
		if err != nil {
			return err
		}
		bf.Ranges = append(bf.Ranges, r)
		if err := p.expectPunct(";"); err != nil {
			return err
		}
	}
	if err := p.advanceRaw(); err != nil { // consume '}'
		return err
	}
	p.sch.addBitField(bf)
	return nil
}

func (p *Parser) parseBitRange() (BitRange, error) {
	minTok := p.peek()
	if minTok.Kind != cpptok.Number {
		return BitRange{}, exprSyntaxErr(minTok, "expected bit range start")
	}
	minBit, err := strconv.Atoi(minTok.Text)
	if err != nil {
		return BitRange{}, errf(ParseFailed, minTok.File, minTok.Offset, "invalid bit index %q", minTok.Text)
	}
	if err := p.advanceRaw(); err != nil {
		return BitRange{}, err
	}
	if err := p.expectPunct(":"); err != nil {
		return BitRange{}, err
	}
	countTok := p.peek()
	if countTok.Kind != cpptok.Number {
		return BitRange{}, exprSyntaxErr(countTok, "expected bit count")
	}
	bitCount, err := strconv.Atoi(countTok.Text)
	if err != nil {
		return BitRange{}, errf(ParseFailed, countTok.File, countTok.Offset, "invalid bit count %q", countTok.Text)
	}
	if err := p.advanceRaw(); err != nil {
		return BitRange{}, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return BitRange{}, err
	}
	r := BitRange{MinBit: minBit, BitCount: bitCount, Name: name}
	if p.atPunct(":") {
		if err := p.advanceRaw(); err != nil {
			return BitRange{}, err
		}
		storage, _, err := p.parseTypeRef(p.sch.Dict)
		if err != nil {
			return BitRange{}, err
		}
		r.StorageType = storage
	}
	return r, nil
}

// --- literals ---

func (p *Parser) parseLiterals() error {
	if err := p.expectIdentText("literals"); err != nil {
		return err
	}
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	l := Literals{Name: name, Values: make(map[string]int64)}
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	for !p.atPunct("}") {
		ident, err := p.expectIdent()
		if err != nil {
			return err
		}
		if err := p.expectPunct("="); err != nil {
			return err
		}
		neg := false
		if p.atPunct("-") {
			neg = true
			if err := p.advanceRaw(); err != nil {
				return err
			}
		}
		numTok := p.peek()
		if numTok.Kind != cpptok.Number {
			return exprSyntaxErr(numTok, "expected integer literal")
		}
		v, err := strconv.ParseInt(numTok.Text, 0, 64)
		if err != nil {
			return errf(ParseFailed, numTok.File, numTok.Offset, "invalid literal %q", numTok.Text)
		}
		if neg {
			v = -v
		}
		if err := p.advanceRaw(); err != nil {
			return err
		}
		if err := p.expectPunct(";"); err != nil {
			return err
		}
		if _, dup := l.Values[ident]; !dup {
			l.Order = append(l.Order, ident)
		}
		l.Values[ident] = v
	}
	if err := p.advanceRaw(); err != nil { // consume '}'
		return err
	}
	p.sch.addLiterals(l)
	return nil
}
