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
	"encoding/binary"
	"sync"

	"github.com/sneller-labs/contentval/schema"
	"github.com/sneller-labs/contentval/token"
)

// Context binds a Schemata to a concrete decoding environment: a byte
// order, a set of named global parameters, and the hash-consed table
// of every EvaluatedType resolved against it so far.
//
// A Context is safe for concurrent use. Its three locks guard
// independently-invalidatable state, matching ion.Symtab's split
// between its interning table and its index: typeMu guards the
// type table (append-only, never invalidated), sizeMu guards the
// fixed-size cache (cleared wholesale whenever a global parameter
// changes, since any block's computed size may have depended on it),
// and paramMu guards the global parameter bindings.
type Context struct {
	Schemata  *schema.Schemata
	ByteOrder binary.ByteOrder

	typeMu    sync.Mutex
	types     []EvaluatedType
	typeIndex map[string]TypeID

	sizeMu    sync.Mutex
	sizeCache map[TypeID]sizeCacheEntry

	paramMu sync.Mutex
	globals map[string]int64
}

// New returns a Context over s with little-endian byte order and no
// global parameters set.
func New(s *schema.Schemata) *Context {
	return &Context{
		Schemata:  s,
		ByteOrder: binary.LittleEndian,
		typeIndex: make(map[string]TypeID),
		sizeCache: make(map[TypeID]sizeCacheEntry),
		globals:   make(map[string]int64),
	}
}

// SetGlobalParameter binds name to v, invalidating the fixed-size
// cache: any previously-cached size may have been computed assuming
// a different value (or no value) for name.
func (c *Context) SetGlobalParameter(name string, v int64) {
	c.paramMu.Lock()
	c.globals[name] = v
	c.paramMu.Unlock()

	c.sizeMu.Lock()
	c.sizeCache = make(map[TypeID]sizeCacheEntry)
	c.sizeMu.Unlock()
}

// GetGlobalParameter returns the bound value for name, if any.
func (c *Context) GetGlobalParameter(name string) (int64, bool) {
	c.paramMu.Lock()
	defer c.paramMu.Unlock()
	v, ok := c.globals[name]
	return v, ok
}

// GetType returns the EvaluatedType for id.
func (c *Context) GetType(id TypeID) *EvaluatedType {
	c.typeMu.Lock()
	defer c.typeMu.Unlock()
	return &c.types[id]
}

// GetEvaluatedType resolves name (a primitive, alias or block name)
// bound to params into a TypeID, hash-consing so structurally
// identical (name, params) pairs always yield the same id.
func (c *Context) GetEvaluatedType(name string, params []Param) (TypeID, error) {
	key := paramKey(name, params)

	c.typeMu.Lock()
	if id, ok := c.typeIndex[key]; ok {
		c.typeMu.Unlock()
		return id, nil
	}
	c.typeMu.Unlock()

	et, err := c.resolve(name, params)
	if err != nil {
		return 0, err
	}

	c.typeMu.Lock()
	defer c.typeMu.Unlock()
	if id, ok := c.typeIndex[key]; ok {
		return id, nil
	}
	id := TypeID(len(c.types))
	c.types = append(c.types, *et)
	c.typeIndex[key] = id
	return id, nil
}

// GetPrimitiveType returns the (uncached-miss-free, always
// succeeding) TypeID for a bare primitive category.
func (c *Context) GetPrimitiveType(desc schema.ValueType) TypeID {
	name := desc.Category.String()
	id, err := c.GetEvaluatedType(name, nil)
	if err != nil {
		// Category.String() always names a recognized primitive;
		// resolve can only fail on an unrecognized name or a
		// param-count/kind mismatch, neither possible here.
		panic(err)
	}
	return id
}

func (c *Context) resolve(name string, params []Param) (*EvaluatedType, error) {
	if prim, ok := schema.LookupPrimitive(name); ok {
		if len(params) != 0 {
			return nil, errf(WrongParamCount, name, "primitive type takes no template arguments")
		}
		return &EvaluatedType{Name: name, Desc: prim, IsPrim: true}, nil
	}

	if aliasID, ok := c.Schemata.FindAlias(name); ok {
		if len(params) != 0 {
			return nil, errf(WrongParamCount, name, "alias takes no template arguments")
		}
		return c.resolveAlias(name, aliasID)
	}

	if blockID, ok := c.Schemata.FindBlockDefinition(name); ok {
		return c.resolveBlock(name, blockID, params)
	}

	return nil, errf(UnknownTypeReference, name, "not a known primitive, alias or block")
}

func (c *Context) resolveAlias(name string, aliasID schema.AliasID) (*EvaluatedType, error) {
	alias := c.Schemata.GetAlias(aliasID)
	baseParams, err := c.resolveTypeArgs(alias.Dict, alias.BaseArgs)
	if err != nil {
		return nil, err
	}
	baseID, err := c.GetEvaluatedType(alias.Base, baseParams)
	if err != nil {
		return nil, err
	}
	base := c.GetType(baseID)
	et := &EvaluatedType{
		Name:    name,
		Desc:    base.Desc,
		IsPrim:  base.IsPrim,
		IsBlock: base.IsBlock,
		Block:   base.Block,
		IsAlias: true,
		Alias:   aliasID,
	}
	return et, nil
}

func (c *Context) resolveBlock(name string, blockID schema.BlockID, params []Param) (*EvaluatedType, error) {
	b := c.Schemata.GetBlockDefinition(blockID)
	if len(params) != len(b.Params) {
		return nil, errf(WrongParamCount, name, "block expects %d template argument(s), got %d", len(b.Params), len(params))
	}
	for i, p := range params {
		if p.Kind != b.Params[i].Kind {
			return nil, errf(WrongParamKind, name, "template argument %d: expected %v, got %v", i, b.Params[i].Kind, p.Kind)
		}
	}
	return &EvaluatedType{Name: name, IsBlock: true, Block: blockID, Params: params}, nil
}

// resolveTypeArgs binds a schema.TypeArg list (the static form found
// on an alias's base type reference) into Params, recursively
// resolving nested typename arguments and evaluating expr arguments
// against global parameters only (an alias's base arguments cannot
// reference any record-local value, since an alias is not template-
// parametrized itself).
func (c *Context) resolveTypeArgs(dict *token.Dict, args []schema.TypeArg) ([]Param, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make([]Param, len(args))
	resolveGlobal := func(tok token.Token, id token.ID) (int64, bool) {
		return c.GetGlobalParameter(tok.Value)
	}
	for i, a := range args {
		switch a.Kind {
		case schema.Typename:
			nested, err := c.resolveTypeArgs(dict, a.TypeArgs)
			if err != nil {
				return nil, err
			}
			id, err := c.GetEvaluatedType(a.Typename, nested)
			if err != nil {
				return nil, err
			}
			params[i] = Param{Kind: schema.Typename, Type: id}
		case schema.Expression:
			v, err := token.Evaluate(dict, a.Expr, resolveGlobal)
			if err != nil {
				return nil, errf(WrongParamKind, "", "evaluating alias base argument: %s", err)
			}
			params[i] = Param{Kind: schema.Expression, Int: v}
		}
	}
	return params, nil
}
