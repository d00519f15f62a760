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

package schemacfg

import (
	"strings"
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

func TestLoadAndApplyGlobalParams(t *testing.T) {
	o, err := Load(strings.NewReader(`
global_params:
  version: 3
  flags: 7
`))
	if err != nil {
		t.Fatal(err)
	}
	if len(o.GlobalParams) != 2 || o.GlobalParams["version"] != 3 || o.GlobalParams["flags"] != 7 {
		t.Fatalf("GlobalParams = %+v", o.GlobalParams)
	}

	s := mustParse(t, `block P { uint32 a; };`)
	ec := evalctx.New(s)
	o.Apply(ec)

	v, ok := ec.GetGlobalParameter("version")
	if !ok || v != 3 {
		t.Fatalf("version = (%d, %v), want (3, true)", v, ok)
	}
	v, ok = ec.GetGlobalParameter("flags")
	if !ok || v != 7 {
		t.Fatalf("flags = (%d, %v), want (7, true)", v, ok)
	}
}

func TestMergeLiteralsOverridesByName(t *testing.T) {
	s := mustParse(t, `
literals Color {
	Red = 0;
	Green = 1;
}
block P { uint8 c; };
`)
	if _, ok := s.FindLiterals("Color"); !ok {
		t.Fatal("expected Color literal table from source")
	}

	o, err := Load(strings.NewReader(`
literals:
  Color:
    Red: 0
    Green: 1
    Blue: 2
`))
	if err != nil {
		t.Fatal(err)
	}
	o.MergeLiterals(s)

	id, ok := s.FindLiterals("Color")
	if !ok {
		t.Fatal("Color disappeared after merge")
	}
	l := s.GetLiterals(id)
	if len(l.Order) != 3 {
		t.Fatalf("Color.Order = %v, want 3 entries", l.Order)
	}
	if l.Values["Blue"] != 2 {
		t.Fatalf("Blue = %d, want 2", l.Values["Blue"])
	}
}

func TestMergeLiteralsAddsNewTable(t *testing.T) {
	s := mustParse(t, `block P { uint8 a; };`)
	o, err := Load(strings.NewReader(`
literals:
  Kind:
    A: 0
    B: 1
`))
	if err != nil {
		t.Fatal(err)
	}
	o.MergeLiterals(s)

	id, ok := s.FindLiterals("Kind")
	if !ok {
		t.Fatal("expected Kind literal table to be added")
	}
	l := s.GetLiterals(id)
	if l.Values["A"] != 0 || l.Values["B"] != 1 {
		t.Fatalf("Kind = %+v", l)
	}
}

func TestLoadEmptyOverlay(t *testing.T) {
	o, err := Load(strings.NewReader(``))
	if err != nil {
		t.Fatal(err)
	}
	if len(o.GlobalParams) != 0 || len(o.Literals) != 0 || len(o.IncludePaths) != 0 {
		t.Fatalf("expected zero-value overlay, got %+v", o)
	}
}
