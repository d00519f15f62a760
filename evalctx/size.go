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

import (
	"github.com/sneller-labs/contentval/schema"
	"github.com/sneller-labs/contentval/token"
)

// TryCalculateFixedSize reports whether id has a size that can be
// determined without reference to any particular buffer, and if so
// what it is. The result is cached per-TypeID and invalidated
// whenever a global parameter changes.
//
// The calculation walks a block's command list independently of any
// decode in progress, mirroring the stack discipline binfmt.Formatter
// uses at decode time (a type stack and a value stack fed by
// LookupType/EvaluateExpression, drained by Inline*Member), but
// treating an IfFalseThenJump whose condition cannot be resolved from
// template arguments and global parameters alone as proof the type is
// not fixed-size - exactly the case in spec.md's "block C { uint8
// flag; #if flag uint32 payload; #endif uint8 tail; }" scenario, where
// flag is a record-local value unknowable until decode time. A
// condition that *can* be resolved statically (e.g. one built only
// from global parameters) does not by itself make a block dynamic;
// only an actually-unresolvable guard does.
func (c *Context) TryCalculateFixedSize(id TypeID) (int, bool) {
	c.sizeMu.Lock()
	if e, ok := c.sizeCache[id]; ok {
		c.sizeMu.Unlock()
		if e.state == sizeFixed {
			return e.fixed, true
		}
		return 0, false
	}
	c.sizeMu.Unlock()

	fixed, ok := c.calcFixedSize(id)

	c.sizeMu.Lock()
	if ok {
		c.sizeCache[id] = sizeCacheEntry{state: sizeFixed, fixed: fixed}
	} else {
		c.sizeCache[id] = sizeCacheEntry{state: sizeDynamic}
	}
	c.sizeMu.Unlock()
	return fixed, ok
}

func (c *Context) calcFixedSize(id TypeID) (int, bool) {
	et := c.GetType(id)
	if et.IsPrim {
		return et.Desc.Size(), true
	}
	if et.IsAlias {
		alias := c.Schemata.GetAlias(et.Alias)
		if alias.HasBitField {
			bf := c.Schemata.GetBitField(alias.BitField)
			return bitFieldStorageSize(bf), true
		}
		baseParams, err := c.resolveTypeArgs(alias.Dict, alias.BaseArgs)
		if err != nil {
			return 0, false
		}
		baseID, err := c.GetEvaluatedType(alias.Base, baseParams)
		if err != nil {
			return 0, false
		}
		return c.TryCalculateFixedSize(baseID)
	}
	if !et.IsBlock {
		return 0, false
	}

	b := c.Schemata.GetBlockDefinition(et.Block)
	w := &sizeWalker{ctx: c, dict: b.Dict, locals: map[token.ID]int64{}}
	for i, p := range et.Params {
		if b.Params[i].Kind == schema.Expression {
			w.locals[b.Params[i].NameTok] = p.Int
		}
	}
	return w.walk(b.Cmds)
}

func bitFieldStorageSize(bf *schema.BitField) int {
	maxBit := 0
	for _, r := range bf.Ranges {
		end := r.MinBit + r.BitCount
		if end > maxBit {
			maxBit = end
		}
	}
	return (maxBit + 7) / 8
}

// sizeWalker replays a block's command list without any backing
// buffer, tracking only what is needed to decide whether the block's
// total size is a fixed constant.
type sizeWalker struct {
	ctx    *Context
	dict   *token.Dict
	locals map[token.ID]int64

	typeStack  []TypeID
	valueStack []int64
}

func (w *sizeWalker) walk(cmds []schema.Cmd) (int, bool) {
	total := 0
	pc := 0
	for pc < len(cmds) {
		cmd := cmds[pc]
		switch cmd.Op {
		case schema.OpLookupType:
			params, ok := w.popParams(cmd.ParamKinds)
			if !ok {
				return 0, false
			}
			name := w.dict.Lookup(cmd.NameTok).Value
			id, err := w.ctx.GetEvaluatedType(name, params)
			if err != nil {
				return 0, false
			}
			w.typeStack = append(w.typeStack, id)

		case schema.OpEvaluateExpression:
			v, ok := w.tryEvalStatic(cmd.Expr)
			if !ok {
				return 0, false
			}
			w.valueStack = append(w.valueStack, v)

		case schema.OpInlineIndividualMember:
			if len(w.typeStack) == 0 {
				return 0, false
			}
			tid := w.popType()
			sz, ok := w.ctx.TryCalculateFixedSize(tid)
			if !ok {
				return 0, false
			}
			total += sz

		case schema.OpInlineArrayMember:
			if len(w.typeStack) == 0 || len(w.valueStack) == 0 {
				return 0, false
			}
			count := w.popValue()
			tid := w.popType()
			sz, ok := w.ctx.TryCalculateFixedSize(tid)
			if !ok {
				return 0, false
			}
			if count < 0 {
				return 0, false
			}
			total += sz * int(count)

		case schema.OpIfFalseThenJump:
			if len(w.valueStack) == 0 {
				return 0, false
			}
			cond := w.popValue()
			if cond == 0 {
				pc = cmd.Target
				continue
			}
		}
		pc++
	}
	return total, true
}

func (w *sizeWalker) popType() TypeID {
	n := len(w.typeStack) - 1
	id := w.typeStack[n]
	w.typeStack = w.typeStack[:n]
	return id
}

func (w *sizeWalker) popValue() int64 {
	n := len(w.valueStack) - 1
	v := w.valueStack[n]
	w.valueStack = w.valueStack[:n]
	return v
}

// popParams reconstructs a LookupType's bound Params in declared
// order from the tail of typeStack/valueStack, given how many of
// each kind were just pushed by the preceding argument commands.
func (w *sizeWalker) popParams(kinds []schema.ParamKind) ([]Param, bool) {
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
	if len(w.typeStack) < nTypes || len(w.valueStack) < nValues {
		return nil, false
	}
	types := w.typeStack[len(w.typeStack)-nTypes:]
	values := w.valueStack[len(w.valueStack)-nValues:]
	w.typeStack = w.typeStack[:len(w.typeStack)-nTypes]
	w.valueStack = w.valueStack[:len(w.valueStack)-nValues]

	params := make([]Param, len(kinds))
	ti, vi := 0, 0
	for i, k := range kinds {
		if k == schema.Typename {
			params[i] = Param{Kind: schema.Typename, Type: types[ti]}
			ti++
		} else {
			params[i] = Param{Kind: schema.Expression, Int: values[vi]}
			vi++
		}
	}
	return params, true
}

// tryEvalStatic evaluates expr using only w.locals (bound template
// "expr" parameters) and the context's global parameters, reporting
// ok == false if any variable actually reached during evaluation
// (short-circuiting may skip some) could not be resolved from either.
func (w *sizeWalker) tryEvalStatic(expr token.ExprTokens) (int64, bool) {
	resolvedAll := true
	resolve := func(tok token.Token, id token.ID) (int64, bool) {
		if v, ok := w.locals[id]; ok {
			return v, true
		}
		if v, ok := w.ctx.GetGlobalParameter(tok.Value); ok {
			return v, true
		}
		resolvedAll = false
		return 0, false
	}
	v, err := token.Evaluate(w.dict, expr, resolve)
	if err != nil {
		return 0, false
	}
	return v, resolvedAll
}
