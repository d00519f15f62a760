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
	"fmt"
	"testing"

	"github.com/sneller-labs/contentval/token"
)

// Scenario 1: a fixed-layout block of primitive members.
func TestParseFixedBlock(t *testing.T) {
	src := `
block Header {
	uint32 magic;
	uint16 version;
	uint8 flags;
};
`
	s, includes, err := Parse("t1.schema", []byte(src), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(includes) != 0 {
		t.Fatalf("expected no includes, got %v", includes)
	}
	id, ok := s.FindBlockDefinition("Header")
	if !ok {
		t.Fatal("Header block not found")
	}
	b := s.GetBlockDefinition(id)
	// each member compiles to LookupType followed by
	// InlineIndividualMember: three members, six commands.
	if len(b.Cmds) != 6 {
		t.Fatalf("expected 6 commands, got %d: %+v", len(b.Cmds), b.Cmds)
	}
	wantOps := []Op{
		OpLookupType, OpInlineIndividualMember,
		OpLookupType, OpInlineIndividualMember,
		OpLookupType, OpInlineIndividualMember,
	}
	for i, op := range wantOps {
		if b.Cmds[i].Op != op {
			t.Errorf("cmd[%d].Op = %v, want %v", i, b.Cmds[i].Op, op)
		}
	}
	if name := b.Dict.Lookup(b.Cmds[0].NameTok).Value; name != "uint32" {
		t.Errorf("cmd[0] type name = %q, want uint32", name)
	}
}

// Scenario 2: a variable-length array member.
func TestParseArrayMember(t *testing.T) {
	src := `
block Blob {
	uint32 count;
	uint8 data[count];
};
`
	s, _, err := Parse("t2.schema", []byte(src), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	id, _ := s.FindBlockDefinition("Blob")
	b := s.GetBlockDefinition(id)
	// count: LookupType, InlineIndividualMember (2)
	// data:  LookupType, EvaluateExpression, InlineArrayMember (3)
	if len(b.Cmds) != 5 {
		t.Fatalf("expected 5 commands, got %d: %+v", len(b.Cmds), b.Cmds)
	}
	if b.Cmds[4].Op != OpInlineArrayMember {
		t.Fatalf("last command = %v, want InlineArrayMember", b.Cmds[4].Op)
	}
	if b.Cmds[3].Op != OpEvaluateExpression {
		t.Fatalf("cmds[3] = %v, want EvaluateExpression", b.Cmds[3].Op)
	}
	// the array-count expression references "count" as a single
	// Variable token.
	expr := b.Cmds[3].Expr
	if len(expr) != 1 {
		t.Fatalf("expected a single-token count expression, got %d", len(expr))
	}
	tok := b.Dict.Lookup(expr[0])
	if tok.Kind != token.Variable || tok.Value != "count" {
		t.Fatalf("count expr token = %+v, want Variable(count)", tok)
	}
}

// Scenario 3: an in-block #if compiles to a runtime guard rather
// than being statically resolved, since the guard references a
// record-local value only known at decode time.
func TestParseConditionalMember(t *testing.T) {
	src := `
block C {
	uint8 flag;
#if flag
	uint32 payload;
#endif
	uint8 tail;
};
`
	s, _, err := Parse("t3.schema", []byte(src), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	id, _ := s.FindBlockDefinition("C")
	b := s.GetBlockDefinition(id)

	var ifIdx, jumpIdx = -1, -1
	for i, c := range b.Cmds {
		if c.Op == OpEvaluateExpression && ifIdx == -1 && i > 1 {
			ifIdx = i
		}
		if c.Op == OpIfFalseThenJump {
			jumpIdx = i
		}
	}
	if ifIdx == -1 || jumpIdx != ifIdx+1 {
		t.Fatalf("expected EvaluateExpression immediately followed by IfFalseThenJump, cmds=%+v", b.Cmds)
	}
	target := b.Cmds[jumpIdx].Target
	if target <= jumpIdx || target > len(b.Cmds) {
		t.Fatalf("jump target %d out of range for %d commands", target, len(b.Cmds))
	}
	// the jump must land exactly after "payload"'s two commands
	// (LookupType, InlineIndividualMember), i.e. right before "tail"'s
	// own LookupType.
	if b.Cmds[target].Op != OpLookupType {
		t.Fatalf("jump target lands on %v, want LookupType (tail)", b.Cmds[target].Op)
	}
	tailNameTok := b.Cmds[target].NameTok
	if b.Dict.Lookup(tailNameTok).Value != "uint8" {
		t.Fatalf("jump target type = %q, want uint8", b.Dict.Lookup(tailNameTok).Value)
	}
}

// Scenario 4: template instantiation compiles a typename parameter
// through to a nested LookupType and an expr parameter through to an
// EvaluateExpression ahead of the LookupType that consumes it.
func TestParseTemplateBlock(t *testing.T) {
	src := `
block template(typename T, expr n) Array {
	T(expr n) items[n];
};
`
	s, _, err := Parse("t4.schema", []byte(src), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	id, ok := s.FindBlockDefinition("Array")
	if !ok {
		t.Fatal("Array block not found")
	}
	b := s.GetBlockDefinition(id)
	if len(b.Params) != 2 {
		t.Fatalf("expected 2 template params, got %d", len(b.Params))
	}
	if b.Params[0].Kind != Typename || b.Params[1].Kind != Expression {
		t.Fatalf("unexpected param kinds: %+v", b.Params)
	}
	// "T" is looked up as a type name (itself taking an expr
	// argument "n"), so the compiled sequence begins with the
	// EvaluateExpression for that inner argument, then LookupType,
	// then the EvaluateExpression for the outer array count, then
	// InlineArrayMember.
	var ops []Op
	for _, c := range b.Cmds {
		ops = append(ops, c.Op)
	}
	want := []Op{OpEvaluateExpression, OpLookupType, OpEvaluateExpression, OpInlineArrayMember}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("ops = %v, want %v", ops, want)
		}
	}
	typeNameTok := b.Cmds[1].NameTok
	if b.Dict.Lookup(typeNameTok).Value != "T" {
		t.Fatalf("looked-up type name = %q, want T", b.Dict.Lookup(typeNameTok).Value)
	}
	if len(b.Cmds[1].ParamKinds) != 1 || b.Cmds[1].ParamKinds[0] != Expression {
		t.Fatalf("T's param kinds = %+v, want [Expression]", b.Cmds[1].ParamKinds)
	}
}

func TestParseAliasBitFieldLiterals(t *testing.T) {
	src := `
literals Status {
	OK = 0;
	ERROR = 1;
}

bitfield Flags {
	0:1 enabled;
	1:3 mode : uint8;
}

alias Count = uint32;
`
	s, _, err := Parse("t5.schema", []byte(src), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	litID, ok := s.FindLiterals("Status")
	if !ok {
		t.Fatal("Status literals not found")
	}
	lit := s.GetLiterals(litID)
	if lit.Values["OK"] != 0 || lit.Values["ERROR"] != 1 {
		t.Fatalf("unexpected literal values: %+v", lit.Values)
	}
	if len(lit.Order) != 2 || lit.Order[0] != "OK" || lit.Order[1] != "ERROR" {
		t.Fatalf("unexpected literal order: %v", lit.Order)
	}

	bfID, ok := s.FindBitField("Flags")
	if !ok {
		t.Fatal("Flags bitfield not found")
	}
	bf := s.GetBitField(bfID)
	if len(bf.Ranges) != 2 {
		t.Fatalf("expected 2 bit ranges, got %d", len(bf.Ranges))
	}
	if bf.Ranges[0].MinBit != 0 || bf.Ranges[0].BitCount != 1 || bf.Ranges[0].Name != "enabled" {
		t.Fatalf("unexpected range[0]: %+v", bf.Ranges[0])
	}
	if bf.Ranges[1].StorageType != "uint8" {
		t.Fatalf("unexpected range[1] storage type: %+v", bf.Ranges[1])
	}

	aliasID, ok := s.FindAlias("Count")
	if !ok {
		t.Fatal("Count alias not found")
	}
	alias := s.GetAlias(aliasID)
	if alias.Base != "uint32" {
		t.Fatalf("unexpected alias base: %q", alias.Base)
	}
}

func TestParseRejectsUnknownDecl(t *testing.T) {
	_, _, err := Parse("bad.schema", []byte("garbage;"), nil)
	if err == nil {
		t.Fatal("expected an error for an unrecognized top-level declaration")
	}
}

type failingResolver struct{}

func (failingResolver) Open(path string) ([]byte, error) {
	return nil, fmt.Errorf("no such file: %s", path)
}

func TestParseWrapsIncludeFailureAsSchemaError(t *testing.T) {
	_, _, err := Parse("top.schema", []byte(`#include "missing.schema"
block P { uint8 a; };
`), failingResolver{})
	if err == nil {
		t.Fatal("expected an error for a failing include resolver")
	}
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("expected a *schema.Error, got %T: %v", err, err)
	}
	if se.Kind != IncludeNotFound {
		t.Fatalf("Kind = %v, want IncludeNotFound", se.Kind)
	}
}
