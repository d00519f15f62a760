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

import (
	"github.com/sneller-labs/contentval/evalctx"
	"github.com/sneller-labs/contentval/schema"
	"github.com/sneller-labs/contentval/token"
)

// frame is one Block Stack Frame: the live decoding state of a
// single block instance, from spec.md section 3.
type frame struct {
	blockName string
	dict      *token.Dict
	cmds      []schema.Cmd
	pc        int

	typeStack  []evalctx.TypeID
	valueStack []int64

	// localEvalContext: decoded member values, keyed by the member's
	// own name token (shared Dict, so a later expression referencing
	// the same name resolves to the same token.ID without any
	// separate name-hash lookup).
	locals map[token.ID]int64
	// nonIntegerLocalVariables: members whose decoded value could
	// not be represented as an int64 (a float/double, or a collapsed
	// string), by name.
	nonInt map[string]bool

	// templateParams/templateTypes: this block's bound template
	// arguments, keyed by the declared parameter's own name token.
	templateParams map[token.ID]int64
	templateTypes  map[token.ID]evalctx.TypeID

	// pending member state, set by peekNext, consumed by exactly one
	// of tryKeyedItem/tryBeginBlock/tryValue/tryBeginArray.
	pendingIsArray    bool
	pendingMemberName string
	pendingMemberTok  token.ID
	pendingArrayCount int64

	// array iteration state, active once tryBeginArray has consumed
	// a pending array member.
	inArray          bool
	arrayRemaining   int64
	arrayElemType    evalctx.TypeID
	arrayElemIsBlock bool
}

func newFrame(b *schema.BlockDef, params []evalctx.Param) *frame {
	f := &frame{
		blockName:      b.Name,
		dict:           b.Dict,
		cmds:           b.Cmds,
		locals:         make(map[token.ID]int64),
		nonInt:         make(map[string]bool),
		templateParams: make(map[token.ID]int64),
		templateTypes:  make(map[token.ID]evalctx.TypeID),
	}
	for i, p := range params {
		if i >= len(b.Params) {
			break
		}
		name := b.Params[i].NameTok
		if p.Kind == schema.Expression {
			f.templateParams[name] = p.Int
		} else {
			f.templateTypes[name] = p.Type
		}
	}
	return f
}

func (f *frame) resolve(ec *evalctx.Context) token.Resolver {
	return func(tok token.Token, id token.ID) (int64, bool) {
		if v, ok := f.locals[id]; ok {
			return v, true
		}
		if v, ok := f.templateParams[id]; ok {
			return v, true
		}
		if v, ok := ec.GetGlobalParameter(tok.Value); ok {
			return v, true
		}
		return 0, false
	}
}

// checkNonNumeric reports whether expr references any member already
// recorded as non-numeric, returning the offending name.
func (f *frame) checkNonNumeric(expr token.ExprTokens) (string, bool) {
	for _, id := range expr {
		tok := f.dict.Lookup(id)
		if tok.Kind == token.Variable && f.nonInt[tok.Value] {
			return tok.Value, true
		}
	}
	return "", false
}

func (f *frame) popType() (evalctx.TypeID, bool) {
	if len(f.typeStack) == 0 {
		return 0, false
	}
	n := len(f.typeStack) - 1
	id := f.typeStack[n]
	f.typeStack = f.typeStack[:n]
	return id, true
}

func (f *frame) popValue() (int64, bool) {
	if len(f.valueStack) == 0 {
		return 0, false
	}
	n := len(f.valueStack) - 1
	v := f.valueStack[n]
	f.valueStack = f.valueStack[:n]
	return v, true
}

// popParams reconstructs a LookupType's bound Params in declared
// order from the tail of typeStack/valueStack; mirrors
// evalctx.sizeWalker.popParams exactly, since both replay the same
// command stream under the same stack discipline.
func (f *frame) popParams(kinds []schema.ParamKind) ([]evalctx.Param, bool) {
	if len(kinds) == 0 {
		return nil, true
	}
	nTypes, nValues := 0, 0
	for _, k := range kinds {
		if k == schema.Typename {
			nTypes++
		} else {
			nValues++
		}
	}
	if len(f.typeStack) < nTypes || len(f.valueStack) < nValues {
		return nil, false
	}
	types := f.typeStack[len(f.typeStack)-nTypes:]
	values := f.valueStack[len(f.valueStack)-nValues:]
	f.typeStack = f.typeStack[:len(f.typeStack)-nTypes]
	f.valueStack = f.valueStack[:len(f.valueStack)-nValues]

	params := make([]evalctx.Param, len(kinds))
	ti, vi := 0, 0
	for i, k := range kinds {
		if k == schema.Typename {
			params[i] = evalctx.Param{Kind: schema.Typename, Type: types[ti]}
			ti++
		} else {
			params[i] = evalctx.Param{Kind: schema.Expression, Int: values[vi]}
			vi++
		}
	}
	return params, true
}
