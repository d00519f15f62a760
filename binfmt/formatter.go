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

// Package binfmt walks a raw byte buffer as a tree of typed records
// described by a schema.Schemata, driven by an evalctx.Context.
package binfmt

import (
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/sneller-labs/contentval/evalctx"
	"github.com/sneller-labs/contentval/schema"
	"github.com/sneller-labs/contentval/token"
)

// Formatter is a streaming cursor over a byte buffer. It is not safe
// for concurrent use.
type Formatter struct {
	ec     *evalctx.Context
	sch    *schema.Schemata
	buf    []byte
	pos    int
	frames []*frame
	pend   Blob
	err    error
}

// Open returns a Formatter over buf. Call PushPattern to begin
// walking a named block.
func Open(buf []byte, ec *evalctx.Context, s *schema.Schemata) *Formatter {
	return &Formatter{ec: ec, sch: s, buf: buf}
}

// OpenCompressed decompresses r in full (a zstd frame) before
// constructing a Formatter over the resulting buffer: the formatter
// always operates on an in-memory slice, streaming decompression is
// not supported.
func OpenCompressed(r io.Reader, ec *evalctx.Context, s *schema.Schemata) (*Formatter, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	buf, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}
	return Open(buf, ec, s), nil
}

// OpenMmap maps path into memory read-only and returns a Formatter
// over the mapping, plus a closer the caller must invoke once done
// with every Value returned from the Formatter (Value.Data aliases
// the mapping). Only implemented on Linux; on every other platform
// it returns an error.
func OpenMmap(path string, ec *evalctx.Context, s *schema.Schemata) (*Formatter, func() error, error) {
	mem, closer, err := mmapFile(path)
	if err != nil {
		return nil, nil, err
	}
	return Open(mem, ec, s), closer, nil
}

// PushPattern begins walking blockName, bound to the given template
// arguments, as the new innermost frame.
func (f *Formatter) PushPattern(blockName string, params []evalctx.Param) error {
	id, ok := f.sch.FindBlockDefinition(blockName)
	if !ok {
		return errf(UnexpectedEnd, blockName, "", f.pos, "unknown block")
	}
	b := f.sch.GetBlockDefinition(id)
	f.frames = append(f.frames, newFrame(b, params))
	return nil
}

func (f *Formatter) top() *frame { return f.frames[len(f.frames)-1] }

func (f *Formatter) fail(err error) {
	f.err = err
	f.pend = None
	f.frames = nil
}

// Err returns the error that put the formatter into its terminal
// failed state, if any.
func (f *Formatter) Err() error { return f.err }

func (f *Formatter) take(n int) ([]byte, bool) {
	if f.pos+n > len(f.buf) {
		return nil, false
	}
	b := f.buf[f.pos : f.pos+n]
	f.pos += n
	return b, true
}

// PeekNext advances internal command execution up to the next event
// boundary without consuming it.
func (f *Formatter) PeekNext() Blob {
	if f.err != nil {
		return None
	}
	if f.pend != None {
		return f.pend
	}
	for len(f.frames) > 0 {
		fr := f.top()

		if fr.inArray {
			if fr.arrayRemaining == 0 {
				f.pend = EndArray
				return f.pend
			}
			if fr.arrayElemIsBlock {
				f.pend = BeginBlock
			} else {
				f.pend = ValueMember
			}
			return f.pend
		}

		if fr.pc >= len(fr.cmds) {
			if len(f.frames) == 1 {
				f.frames = f.frames[:0]
				f.pend = None
				return None
			}
			f.pend = EndBlock
			return f.pend
		}

		cmd := fr.cmds[fr.pc]
		switch cmd.Op {
		case schema.OpLookupType:
			params, ok := fr.popParams(cmd.ParamKinds)
			if !ok {
				f.fail(errf(UnknownCommand, fr.blockName, "", f.pos, "malformed type argument stack"))
				return None
			}
			name := fr.dict.Lookup(cmd.NameTok).Value
			id, err := f.ec.GetEvaluatedType(name, params)
			if err != nil {
				f.fail(err)
				return None
			}
			fr.typeStack = append(fr.typeStack, id)
			fr.pc++

		case schema.OpEvaluateExpression:
			if name, bad := fr.checkNonNumeric(cmd.Expr); bad {
				f.fail(errf(NonNumericLocalInExpression, fr.blockName, name, f.pos, "referenced in an expression"))
				return None
			}
			v, err := evaluateExpr(fr, f.ec, cmd.Expr)
			if err != nil {
				f.fail(err)
				return None
			}
			fr.valueStack = append(fr.valueStack, v)
			fr.pc++

		case schema.OpInlineIndividualMember:
			fr.pendingIsArray = false
			fr.pendingMemberName = fr.dict.Lookup(cmd.MemberNameTok).Value
			fr.pendingMemberTok = cmd.MemberNameTok
			f.pend = KeyedItem
			return f.pend

		case schema.OpInlineArrayMember:
			count, ok := fr.popValue()
			if !ok {
				f.fail(errf(UnknownCommand, fr.blockName, "", f.pos, "array member missing count"))
				return None
			}
			fr.pendingIsArray = true
			fr.pendingArrayCount = count
			fr.pendingMemberName = fr.dict.Lookup(cmd.MemberNameTok).Value
			fr.pc++
			f.pend = KeyedItem
			return f.pend

		case schema.OpIfFalseThenJump:
			cond, ok := fr.popValue()
			if !ok {
				f.fail(errf(UnknownCommand, fr.blockName, "", f.pos, "conditional jump missing condition"))
				return None
			}
			if cond == 0 {
				if cmd.Target < 0 || cmd.Target > len(fr.cmds) {
					f.fail(errf(JumpOutOfRange, fr.blockName, "", f.pos, "jump target %d out of range", cmd.Target))
					return None
				}
				fr.pc = cmd.Target
			} else {
				fr.pc++
			}

		default:
			f.fail(errf(UnknownCommand, fr.blockName, "", f.pos, "unrecognized opcode %v", cmd.Op))
			return None
		}
	}
	f.pend = None
	return None
}

// TryKeyedItem succeeds only if PeekNext() == KeyedItem.
func (f *Formatter) TryKeyedItem() (string, bool) {
	if f.PeekNext() != KeyedItem {
		return "", false
	}
	return f.top().pendingMemberName, true
}

// TryBeginBlock consumes a pending KeyedItem (scalar or array
// element) whose type is a block, pushing a new frame for it.
func (f *Formatter) TryBeginBlock() (evalctx.TypeID, bool) {
	fr := f.top()
	if fr.inArray {
		if f.PeekNext() != BeginBlock {
			return 0, false
		}
		id := fr.arrayElemType
		fr.arrayRemaining--
		f.pend = None
		b := f.sch.GetBlockDefinition(f.ec.GetType(id).Block)
		f.frames = append(f.frames, newFrame(b, f.ec.GetType(id).Params))
		return id, true
	}
	if f.PeekNext() != KeyedItem || fr.pendingIsArray {
		return 0, false
	}
	id, ok := fr.popType()
	if !ok {
		return 0, false
	}
	et := f.ec.GetType(id)
	if !et.IsBlock {
		fr.typeStack = append(fr.typeStack, id) // restore: wrong call for this type
		return 0, false
	}
	fr.pc++
	f.pend = None
	b := f.sch.GetBlockDefinition(et.Block)
	f.frames = append(f.frames, newFrame(b, et.Params))
	return id, true
}

// TryEndBlock pops the current (non-root) frame.
func (f *Formatter) TryEndBlock() bool {
	if f.PeekNext() != EndBlock {
		return false
	}
	f.frames = f.frames[:len(f.frames)-1]
	f.pend = None
	return true
}

// TryBeginArray consumes a pending array KeyedItem, switching the
// frame into array-iteration mode.
func (f *Formatter) TryBeginArray() (int64, evalctx.TypeID, bool) {
	if f.PeekNext() != KeyedItem {
		return 0, 0, false
	}
	fr := f.top()
	if !fr.pendingIsArray {
		return 0, 0, false
	}
	id, ok := fr.popType()
	if !ok {
		return 0, 0, false
	}
	fr.inArray = true
	fr.arrayRemaining = fr.pendingArrayCount
	fr.arrayElemType = id
	fr.arrayElemIsBlock = f.ec.GetType(id).IsBlock
	f.pend = None
	return fr.pendingArrayCount, id, true
}

// TryEndArray consumes a pending EndArray.
func (f *Formatter) TryEndArray() bool {
	if f.PeekNext() != EndArray {
		return false
	}
	fr := f.top()
	fr.inArray = false
	f.pend = None
	return true
}

// Value is the result of a successful TryValue call.
type Value struct {
	Data   []byte
	Desc   schema.ValueType
	TypeID evalctx.TypeID
}

// TryValue consumes a pending scalar KeyedItem, a pending
// single-byte-element array KeyedItem (collapsed into one
// hint=String value), or a pending per-element ValueMember inside an
// array being iterated via TryBeginArray.
func (f *Formatter) TryValue() (Value, bool) {
	b := f.PeekNext()
	fr := f.top()

	if fr.inArray {
		if b != ValueMember {
			return Value{}, false
		}
		return f.readValue(fr, fr.arrayElemType, "", 0, false)
	}
	if b != KeyedItem {
		return Value{}, false
	}
	if !fr.pendingIsArray {
		id, ok := fr.popType()
		if !ok {
			return Value{}, false
		}
		et := f.ec.GetType(id)
		if et.IsBlock {
			fr.typeStack = append(fr.typeStack, id) // restore: wrong call for this type
			return Value{}, false
		}
		v, ok := f.readValue(fr, id, fr.pendingMemberName, fr.pendingMemberTok, true)
		if ok {
			fr.pc++
		}
		return v, ok
	}

	// collapsed string path: array member whose element type is a
	// single-byte primitive, read in one shot.
	id, ok := fr.popType()
	if !ok {
		return Value{}, false
	}
	et := f.ec.GetType(id)
	if et.IsBlock || !et.IsPrim || et.Desc.Size() != 1 {
		fr.typeStack = append(fr.typeStack, id)
		return Value{}, false
	}
	n := int(fr.pendingArrayCount)
	data, ok := f.take(n)
	if !ok {
		f.fail(errf(UnexpectedEnd, fr.blockName, fr.pendingMemberName, f.pos, "reading %d-byte array", n))
		return Value{}, false
	}
	fr.nonInt[fr.pendingMemberName] = true
	f.pend = None
	desc := schema.ValueType{Category: et.Desc.Category, ArrayCount: n, Hint: schema.StringHint}
	return Value{Data: data, Desc: desc, TypeID: id}, true
}

func (f *Formatter) readValue(fr *frame, id evalctx.TypeID, memberName string, nameTok token.ID, recordLocal bool) (Value, bool) {
	et := f.ec.GetType(id)
	size := et.Desc.Size()
	data, ok := f.take(size)
	if !ok {
		f.fail(errf(UnexpectedEnd, fr.blockName, memberName, f.pos, "reading %d-byte value", size))
		return Value{}, false
	}
	if recordLocal {
		v, castOK := readInt(data, f.ec.ByteOrder, et.Desc.Category)
		if castOK {
			fr.locals[nameTok] = v
		} else {
			fr.nonInt[memberName] = true
		}
	}
	if fr.inArray {
		fr.arrayRemaining--
	}
	f.pend = None
	return Value{Data: data, Desc: et.Desc, TypeID: id}, true
}
