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

package blockmatch

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

func TestBuildPrimitiveBlock(t *testing.T) {
	s := mustParse(t, `
block P {
	uint32 a;
	uint16 b;
};
`)
	ec := evalctx.New(s)
	buf := []byte{0x01, 0x00, 0x00, 0x00, 0x02, 0x00}
	m, err := Build(buf, ec, s, "P", nil)
	if err != nil {
		t.Fatal(err)
	}
	root := m.Root()
	if len(root) != 2 {
		t.Fatalf("expected 2 top-level members, got %d", len(root))
	}
	ai, ok := m.Find(RootMarker, "a")
	if !ok {
		t.Fatal("member a not found")
	}
	v, ok := m.AsInt64(ai)
	if !ok || v != 1 {
		t.Fatalf("a = (%d, %v), want (1, true)", v, ok)
	}
	bi, ok := m.Find(RootMarker, "b")
	if !ok {
		t.Fatal("member b not found")
	}
	v, ok = m.AsInt64(bi)
	if !ok || v != 2 {
		t.Fatalf("b = (%d, %v), want (2, true)", v, ok)
	}
}

func TestBuildNestedBlockAndArray(t *testing.T) {
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
	m, err := Build(buf, ec, s, "Outer", nil)
	if err != nil {
		t.Fatal(err)
	}

	itemsIdx, ok := m.Find(RootMarker, "items")
	if !ok {
		t.Fatal("items member not found")
	}
	items := m.Member(itemsIdx)
	if !items.IsArray || items.ArrayCount != 2 {
		t.Fatalf("items = %+v, want IsArray with ArrayCount=2", items)
	}

	children := m.Children(itemsIdx)
	if len(children) != 2 {
		t.Fatalf("expected 2 array elements, got %d", len(children))
	}
	for i, childIdx := range children {
		el := m.Member(childIdx)
		if !el.IsBlock {
			t.Fatalf("element %d: expected IsBlock, got %+v", i, el)
		}
		grandchildren := m.Children(childIdx)
		if len(grandchildren) != 2 {
			t.Fatalf("element %d: expected 2 fields, got %d", i, len(grandchildren))
		}
		xi, ok := m.Find(childIdx, "x")
		if !ok {
			t.Fatalf("element %d: x not found", i)
		}
		x, _ := m.AsInt64(xi)
		if int(x) != 2*i+1 {
			t.Fatalf("element %d: x = %d, want %d", i, x, 2*i+1)
		}
	}

	tailIdx, ok := m.Find(RootMarker, "tail")
	if !ok {
		t.Fatal("tail not found")
	}
	tail, _ := m.AsInt64(tailIdx)
	if tail != 0xFF {
		t.Fatalf("tail = %d, want 255", tail)
	}
}

func TestBuildCollapsedString(t *testing.T) {
	s := mustParse(t, `
alias char = uint8;
block S {
	uint16 len;
	char text[len];
};
`)
	ec := evalctx.New(s)
	buf := []byte{0x05, 0x00, 'H', 'e', 'l', 'l', 'o'}
	m, err := Build(buf, ec, s, "S", nil)
	if err != nil {
		t.Fatal(err)
	}
	ti, ok := m.Find(RootMarker, "text")
	if !ok {
		t.Fatal("text not found")
	}
	str, ok := m.AsString(ti)
	if !ok || str != "Hello" {
		t.Fatalf("text = (%q, %v), want (Hello, true)", str, ok)
	}
}
