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

package token

import "testing"

func TestInternIdempotent(t *testing.T) {
	d := NewDict()
	a := d.GetToken(Variable, "flag")
	b := d.GetToken(Variable, "flag")
	if a != b {
		t.Fatalf("interning the same token twice produced different ids: %d != %d", a, b)
	}
	if d.Len() != 1 {
		t.Fatalf("expected 1 interned token, got %d", d.Len())
	}
}

func TestTryGetToken(t *testing.T) {
	d := NewDict()
	if _, ok := d.TryGetToken(Variable, "missing"); ok {
		t.Fatal("expected TryGetToken to report absent token")
	}
	id := d.GetToken(Variable, "present")
	got, ok := d.TryGetToken(Variable, "present")
	if !ok || got != id {
		t.Fatalf("TryGetToken(present) = (%d, %v), want (%d, true)", got, ok, id)
	}
}

func TestTranslate(t *testing.T) {
	src := NewDict()
	srcID := src.GetToken(Literal, "42")

	dst := NewDict()
	dstID := dst.Translate(src, srcID)
	if dst.Lookup(dstID) != src.Lookup(srcID) {
		t.Fatalf("translated token mismatch: %v != %v", dst.Lookup(dstID), src.Lookup(srcID))
	}

	// translating again must not duplicate the entry
	dstID2 := dst.Translate(src, srcID)
	if dstID != dstID2 {
		t.Fatalf("re-translating the same token produced a new id: %d != %d", dstID, dstID2)
	}
}

func TestTranslateExpr(t *testing.T) {
	src := NewDict()
	a := src.GetToken(Variable, "a")
	b := src.GetToken(Variable, "b")
	plus := src.GetToken(Operator, "+")
	expr := ExprTokens{a, b, plus}

	dst := NewDict()
	out := dst.TranslateExpr(src, expr)
	if len(out) != len(expr) {
		t.Fatalf("translated expression length mismatch")
	}
	if dst.Lookup(out[0]).Value != "a" || dst.Lookup(out[1]).Value != "b" {
		t.Fatalf("translated expression has wrong operands: %v", out)
	}
}
