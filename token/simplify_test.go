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

func TestSimplifyConstantFold(t *testing.T) {
	b := newBuilder()
	b.lit("2").lit("3").op("+")
	simplified := Simplify(b.d, b.expr)
	if len(simplified) != 1 {
		t.Fatalf("expected constant folding to collapse to one token, got %d", len(simplified))
	}
	got, err := Evaluate(b.d, simplified, noVars)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
}

func TestSimplifyPreservesResultAcrossResolvers(t *testing.T) {
	b := newBuilder()
	b.varr("a").lit("1").op("+")
	simplified := Simplify(b.d, b.expr)

	resolvers := []Resolver{
		noVars,
		func(Token, ID) (int64, bool) { return 41, true },
	}
	for _, r := range resolvers {
		want, err := Evaluate(b.d, b.expr, r)
		if err != nil {
			t.Fatal(err)
		}
		got, err := Evaluate(b.d, simplified, r)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("simplify changed observable result: got %d want %d", got, want)
		}
	}
}

func TestSimplifyDefinedGuard(t *testing.T) {
	b := newBuilder()
	b.isDefined("flag")
	b.varr("flag")
	b.op("&&")
	simplified := Simplify(b.d, b.expr)

	resolvers := []Resolver{
		noVars,
		func(Token, ID) (int64, bool) { return 5, true },
	}
	for _, r := range resolvers {
		want, err := Evaluate(b.d, b.expr, r)
		if err != nil {
			t.Fatal(err)
		}
		got, err := Evaluate(b.d, simplified, r)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("defined-guard rewrite changed result: got %d want %d", got, want)
		}
	}
}
