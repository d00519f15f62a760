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
	"testing"

	"github.com/sneller-labs/contentval/evalctx"
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

// Scenario 1 (spec.md section 8): a primitive fixed block.
func TestScenarioPrimitiveFixedBlock(t *testing.T) {
	s := mustParse(t, `
block P {
	uint32 a;
	uint16 b;
};
`)
	ec := evalctx.New(s)
	buf := []byte{0x01, 0x00, 0x00, 0x00, 0x02, 0x00}
	f := Open(buf, ec, s)
	if err := f.PushPattern("P", nil); err != nil {
		t.Fatal(err)
	}

	name, ok := f.TryKeyedItem()
	if !ok || name != "a" {
		t.Fatalf("expected KeyedItem(a), got name=%q ok=%v", name, ok)
	}
	v, ok := f.TryValue()
	if !ok {
		t.Fatal("TryValue(a) failed")
	}
	if got, _ := CastInt64(v.Data, ec.ByteOrder, v.Desc.Category); got != 1 {
		t.Fatalf("a = %d, want 1", got)
	}

	name, ok = f.TryKeyedItem()
	if !ok || name != "b" {
		t.Fatalf("expected KeyedItem(b), got name=%q ok=%v", name, ok)
	}
	v, ok = f.TryValue()
	if !ok {
		t.Fatal("TryValue(b) failed")
	}
	if got, _ := CastInt64(v.Data, ec.ByteOrder, v.Desc.Category); got != 2 {
		t.Fatalf("b = %d, want 2", got)
	}

	if f.PeekNext() != None {
		t.Fatalf("expected None after last member, got %v", f.PeekNext())
	}

	id, err := ec.GetEvaluatedType("P", nil)
	if err != nil {
		t.Fatal(err)
	}
	sz, ok := ec.TryCalculateFixedSize(id)
	if !ok || sz != 6 {
		t.Fatalf("fixed size = (%d, %v), want (6, true)", sz, ok)
	}
}

// Scenario 2: a variable-length string collapsed into a single
// hint=String value.
func TestScenarioVariableLengthString(t *testing.T) {
	s := mustParse(t, `
alias char = uint8;
block S {
	uint16 len;
	char text[len];
};
`)
	ec := evalctx.New(s)
	buf := []byte{0x05, 0x00, 'H', 'e', 'l', 'l', 'o'}
	f := Open(buf, ec, s)
	if err := f.PushPattern("S", nil); err != nil {
		t.Fatal(err)
	}

	if _, ok := f.TryKeyedItem(); !ok {
		t.Fatal("expected KeyedItem(len)")
	}
	v, ok := f.TryValue()
	if !ok || v.Data[0] != 5 {
		t.Fatalf("len: ok=%v data=%v", ok, v.Data)
	}

	name, ok := f.TryKeyedItem()
	if !ok || name != "text" {
		t.Fatalf("expected KeyedItem(text), got name=%q ok=%v", name, ok)
	}
	v, ok = f.TryValue()
	if !ok {
		t.Fatal("TryValue(text) failed")
	}
	if v.Desc.Hint != schema.StringHint || string(v.Data) != "Hello" {
		t.Fatalf("text = %+v, want Hello/StringHint", v)
	}
	if f.PeekNext() != None {
		t.Fatalf("expected None, got %v", f.PeekNext())
	}

	id, _ := ec.GetEvaluatedType("S", nil)
	if _, ok := ec.TryCalculateFixedSize(id); ok {
		t.Fatal("expected DynamicSize for a record-local array count")
	}
}

// Scenario 3: a conditional member gated on an earlier record-local
// value, exercised for both branches.
func TestScenarioConditionalMember(t *testing.T) {
	s := mustParse(t, `
block C {
	uint8 flag;
#if flag
	uint32 payload;
#endif
	uint8 tail;
};
`)
	ec := evalctx.New(s)

	walk := func(buf []byte) []int64 {
		f := Open(buf, ec, s)
		if err := f.PushPattern("C", nil); err != nil {
			t.Fatal(err)
		}
		var got []int64
		for {
			name, ok := f.TryKeyedItem()
			if !ok {
				break
			}
			v, ok := f.TryValue()
			if !ok {
				t.Fatalf("TryValue(%s) failed: %v", name, f.Err())
			}
			n, _ := CastInt64(v.Data, ec.ByteOrder, v.Desc.Category)
			got = append(got, n)
		}
		if f.Err() != nil {
			t.Fatal(f.Err())
		}
		return got
	}

	if got := walk([]byte{0x00, 0xAA}); len(got) != 2 || got[0] != 0 || got[1] != 0xAA {
		t.Fatalf("buffer A: got %v, want [0 170]", got)
	}
	if got := walk([]byte{0x01, 0xEF, 0xBE, 0xAD, 0xDE, 0x7F}); len(got) != 3 ||
		got[0] != 1 || got[1] != 0xDEADBEEF || got[2] != 0x7F {
		t.Fatalf("buffer B: got %v, want [1 3735928559 127]", got)
	}
}

// Scenario 4: template instantiation nests a block, then an array of
// primitives sized by an expr template parameter.
func TestScenarioTemplateInstantiation(t *testing.T) {
	s := mustParse(t, `
block template(expr N) V {
	uint16 data[N];
};
block W {
	V(expr 3) v;
};
`)
	ec := evalctx.New(s)
	buf := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00}
	f := Open(buf, ec, s)
	if err := f.PushPattern("W", nil); err != nil {
		t.Fatal(err)
	}

	if _, ok := f.TryKeyedItem(); !ok {
		t.Fatal("expected KeyedItem(v)")
	}
	if _, ok := f.TryBeginBlock(); !ok {
		t.Fatalf("expected BeginBlock, err=%v", f.Err())
	}
	if _, ok := f.TryKeyedItem(); !ok {
		t.Fatal("expected KeyedItem(data)")
	}
	count, _, ok := f.TryBeginArray()
	if !ok || count != 3 {
		t.Fatalf("TryBeginArray: count=%d ok=%v", count, ok)
	}
	var got []int64
	for i := 0; i < 3; i++ {
		v, ok := f.TryValue()
		if !ok {
			t.Fatalf("array element %d: %v", i, f.Err())
		}
		n, _ := CastInt64(v.Data, ec.ByteOrder, v.Desc.Category)
		got = append(got, n)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("array values = %v, want [1 2 3]", got)
	}
	if !f.TryEndArray() {
		t.Fatal("expected EndArray")
	}
	if !f.TryEndBlock() {
		t.Fatal("expected EndBlock")
	}
	if f.PeekNext() != None {
		t.Fatalf("expected None, got %v", f.PeekNext())
	}
}

// Boundary: an empty buffer against a block with no members emits
// None immediately.
func TestEmptyBlockNoMembers(t *testing.T) {
	s := mustParse(t, `block Empty { };`)
	ec := evalctx.New(s)
	f := Open(nil, ec, s)
	if err := f.PushPattern("Empty", nil); err != nil {
		t.Fatal(err)
	}
	if f.PeekNext() != None {
		t.Fatalf("expected None, got %v", f.PeekNext())
	}
}

// Boundary: a zero-length array yields BeginArray/EndArray
// back-to-back, and SkipArrayElements on it is a no-op.
func TestZeroLengthArray(t *testing.T) {
	s := mustParse(t, `
block Z {
	uint32 count;
	uint8 data[count];
};
`)
	ec := evalctx.New(s)
	buf := []byte{0, 0, 0, 0}
	f := Open(buf, ec, s)
	if err := f.PushPattern("Z", nil); err != nil {
		t.Fatal(err)
	}
	f.TryKeyedItem()
	f.TryValue()

	if _, ok := f.TryKeyedItem(); !ok {
		t.Fatal("expected KeyedItem(data)")
	}
	data, ok := f.SkipArrayElements()
	if !ok {
		t.Fatalf("SkipArrayElements failed: %v", f.Err())
	}
	if len(data) != 0 {
		t.Fatalf("expected zero bytes skipped, got %d", len(data))
	}
	if f.PeekNext() != None {
		t.Fatalf("expected None, got %v", f.PeekNext())
	}
}

// Skip equivalence: SkipNextBlob on a pending array member advances
// the cursor identically to SkipArrayElements on the same array.
func TestSkipEquivalence(t *testing.T) {
	s := mustParse(t, `
block Inner {
	uint16 x;
	uint16 y;
};
block Outer {
	uint8 n;
	Inner items[n];
	uint8 tail;
};
`)
	ec := evalctx.New(s)
	buf := []byte{
		2,          // n
		1, 0, 2, 0, // items[0]
		3, 0, 4, 0, // items[1]
		0xFF, // tail
	}

	// Walk A: skip the whole array in one call via SkipNextBlob,
	// which for a pending array member delegates to
	// SkipArrayElements internally.
	fa := Open(buf, ec, s)
	if err := fa.PushPattern("Outer", nil); err != nil {
		t.Fatal(err)
	}
	fa.TryKeyedItem()
	fa.TryValue() // n
	if _, ok := fa.TryKeyedItem(); !ok {
		t.Fatal("expected KeyedItem(items)")
	}
	skippedViaBlob, ok := fa.SkipNextBlob()
	if !ok {
		t.Fatalf("SkipNextBlob: %v", fa.Err())
	}
	if _, ok := fa.TryKeyedItem(); !ok {
		t.Fatal("expected KeyedItem(tail) after SkipNextBlob")
	}
	tailA, ok := fa.TryValue()
	if !ok || tailA.Data[0] != 0xFF {
		t.Fatalf("tail after SkipNextBlob: ok=%v data=%v", ok, tailA.Data)
	}

	// Walk B: skip the same array explicitly via SkipArrayElements,
	// compare final cursor position (bytes consumed) and outcome.
	fb := Open(buf, ec, s)
	if err := fb.PushPattern("Outer", nil); err != nil {
		t.Fatal(err)
	}
	fb.TryKeyedItem()
	fb.TryValue() // n
	if _, ok := fb.TryKeyedItem(); !ok {
		t.Fatal("expected KeyedItem(items)")
	}
	skipped, ok := fb.SkipArrayElements()
	if !ok {
		t.Fatalf("SkipArrayElements: %v", fb.Err())
	}
	if len(skipped) != 8 {
		t.Fatalf("expected 8 bytes skipped (2 elements * 4 bytes), got %d", len(skipped))
	}
	if len(skippedViaBlob) != len(skipped) {
		t.Fatalf("SkipNextBlob consumed %d bytes, SkipArrayElements consumed %d", len(skippedViaBlob), len(skipped))
	}
	if _, ok := fb.TryKeyedItem(); !ok {
		t.Fatal("expected KeyedItem(tail) after skip")
	}
	v, ok := fb.TryValue()
	if !ok || v.Data[0] != 0xFF {
		t.Fatalf("tail after skip: ok=%v data=%v", ok, v.Data)
	}
}
