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
	"testing"

	"github.com/sneller-labs/contentval/schema"
)

func mustParse(t *testing.T, src string) *schema.Schemata {
	t.Helper()
	s, _, err := schema.Parse("t.schema", []byte(src), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return s
}

func TestGetEvaluatedTypeHashConsesPrimitives(t *testing.T) {
	s := mustParse(t, `block Empty { };`)
	ctx := New(s)
	id1, err := ctx.GetEvaluatedType("uint32", nil)
	if err != nil {
		t.Fatalf("GetEvaluatedType: %v", err)
	}
	id2, err := ctx.GetEvaluatedType("uint32", nil)
	if err != nil {
		t.Fatalf("GetEvaluatedType: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected hash-consing to return the same id, got %d and %d", id1, id2)
	}
	et := ctx.GetType(id1)
	if !et.IsPrim || et.Desc.Category != schema.UInt32 {
		t.Fatalf("unexpected evaluated type: %+v", et)
	}
}

func TestGetEvaluatedTypeUnknownName(t *testing.T) {
	s := mustParse(t, `block Empty { };`)
	ctx := New(s)
	if _, err := ctx.GetEvaluatedType("nonexistent", nil); err == nil {
		t.Fatal("expected an error for an unrecognized type name")
	}
}

func TestFixedSizeSimpleBlock(t *testing.T) {
	s := mustParse(t, `
block Header {
	uint32 magic;
	uint16 version;
	uint8 flags;
};
`)
	ctx := New(s)
	blockID, _ := s.FindBlockDefinition("Header")
	id, err := ctx.GetEvaluatedType("Header", nil)
	if err != nil {
		t.Fatalf("GetEvaluatedType: %v", err)
	}
	sz, ok := ctx.TryCalculateFixedSize(id)
	if !ok {
		t.Fatalf("expected a fixed size for a block of primitives (block %d)", blockID)
	}
	if sz != 4+2+1 {
		t.Fatalf("size = %d, want 7", sz)
	}
}

func TestFixedSizeDynamicOnLocalArrayCount(t *testing.T) {
	s := mustParse(t, `
block Blob {
	uint32 count;
	uint8 data[count];
};
`)
	ctx := New(s)
	id, err := ctx.GetEvaluatedType("Blob", nil)
	if err != nil {
		t.Fatalf("GetEvaluatedType: %v", err)
	}
	if _, ok := ctx.TryCalculateFixedSize(id); ok {
		t.Fatal("expected Blob's size to be unresolvable (array count is a record-local value)")
	}
}

func TestFixedSizeDynamicOnLocalCondition(t *testing.T) {
	s := mustParse(t, `
block C {
	uint8 flag;
#if flag
	uint32 payload;
#endif
	uint8 tail;
};
`)
	ctx := New(s)
	id, err := ctx.GetEvaluatedType("C", nil)
	if err != nil {
		t.Fatalf("GetEvaluatedType: %v", err)
	}
	if _, ok := ctx.TryCalculateFixedSize(id); ok {
		t.Fatal("expected C's size to be unresolvable (the #if guard is record-local)")
	}
}

func TestFixedSizeResolvesGlobalCondition(t *testing.T) {
	s := mustParse(t, `
block D {
#if has_payload
	uint32 payload;
#endif
	uint8 tail;
};
`)
	ctx := New(s)
	ctx.SetGlobalParameter("has_payload", 0)
	id, err := ctx.GetEvaluatedType("D", nil)
	if err != nil {
		t.Fatalf("GetEvaluatedType: %v", err)
	}
	sz, ok := ctx.TryCalculateFixedSize(id)
	if !ok {
		t.Fatal("expected D's size to resolve statically once has_payload is a global parameter")
	}
	if sz != 1 {
		t.Fatalf("size = %d, want 1 (payload skipped)", sz)
	}
}

func TestFixedSizeTemplateBlock(t *testing.T) {
	s := mustParse(t, `
block template(expr n) Padding {
	uint8 pad[n];
};
`)
	ctx := New(s)
	id, err := ctx.GetEvaluatedType("Padding", []Param{{Kind: schema.Expression, Int: 16}})
	if err != nil {
		t.Fatalf("GetEvaluatedType: %v", err)
	}
	sz, ok := ctx.TryCalculateFixedSize(id)
	if !ok {
		t.Fatal("expected a fixed size when the array count is a bound template argument")
	}
	if sz != 16 {
		t.Fatalf("size = %d, want 16", sz)
	}

	id2, err := ctx.GetEvaluatedType("Padding", []Param{{Kind: schema.Expression, Int: 16}})
	if err != nil {
		t.Fatalf("GetEvaluatedType: %v", err)
	}
	if id != id2 {
		t.Fatalf("expected identical template arguments to hash-cons to the same id, got %d and %d", id, id2)
	}
	id3, err := ctx.GetEvaluatedType("Padding", []Param{{Kind: schema.Expression, Int: 8}})
	if err != nil {
		t.Fatalf("GetEvaluatedType: %v", err)
	}
	if id3 == id {
		t.Fatal("expected different template arguments to produce a distinct id")
	}
}

func TestSetGlobalParameterInvalidatesSizeCache(t *testing.T) {
	s := mustParse(t, `
block D {
#if has_payload
	uint32 payload;
#endif
	uint8 tail;
};
`)
	ctx := New(s)
	id, _ := ctx.GetEvaluatedType("D", nil)

	if _, ok := ctx.TryCalculateFixedSize(id); ok {
		t.Fatal("expected D's size to be unresolvable before has_payload is set")
	}
	ctx.SetGlobalParameter("has_payload", 1)
	sz, ok := ctx.TryCalculateFixedSize(id)
	if !ok {
		t.Fatal("expected D's size to resolve once has_payload is set")
	}
	if sz != 4+1 {
		t.Fatalf("size = %d, want 5", sz)
	}
}
