// Copyright (C) 2024 graphd, Inc.
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

package wire

import (
	"strings"
	"testing"

	"github.com/graphd/graphd/internal/graphderr"
)

func TestRenderScalarKinds(t *testing.T) {
	cases := []struct {
		r    Reply
		want string
	}{
		{Null(), "null"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Number(42), "42"},
		{String(`say "hi"`), `"say \"hi\""`},
		{GUIDHex("deadbeef"), "deadbeef"},
	}
	for _, c := range cases {
		var b strings.Builder
		Render(&b, c.r)
		if b.String() != c.want {
			t.Fatalf("Render(%+v) = %q, want %q", c.r, b.String(), c.want)
		}
	}
}

func TestBuilderNestedList(t *testing.T) {
	var b Builder
	b.BeginList()
	b.Append(GUIDHex("aaaa"))
	b.BeginList()
	b.Append(Number(1))
	b.Append(Number(2))
	b.EndList()
	b.EndList()
	got := b.Finish()

	var out strings.Builder
	Render(&out, got)
	if out.String() != "(aaaa (1 2))" {
		t.Fatalf("got %q", out.String())
	}
}

func TestOKFormatting(t *testing.T) {
	got := OK(List(GUIDHex("cafe")))
	if got != "ok (cafe)" {
		t.Fatalf("got %q", got)
	}
}

func TestErrorLineFormatsGraphderr(t *testing.T) {
	err := graphderr.Semanticsf("missing key field")
	got := ErrorLine(err)
	want := `error "SEMANTICS missing key field"`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
