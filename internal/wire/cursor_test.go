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
	"reflect"
	"testing"

	"github.com/graphd/graphd/internal/dateline"
)

func TestCursorRoundTripNoDateline(t *testing.T) {
	c := Cursor{Offset: 10, SortOffset: 0, State: []byte("abcxyz")}
	text := c.Encode()
	got, err := DecodeCursor(text)
	if err != nil {
		t.Fatal(err)
	}
	if got.Offset != c.Offset || got.HasDate || !reflect.DeepEqual(got.State, c.State) {
		t.Fatalf("got %+v, want %+v", got, c)
	}
}

func TestCursorRoundTripWithDateline(t *testing.T) {
	dl := dateline.New(dateline.Entry{InstanceID: 1, MaxLocalID: 100})
	c := Cursor{
		Offset:     25,
		HasDate:    true,
		Dateline:   dl,
		SortOffset: 7,
		State:      []byte{0x01, 0x02, 0x03},
	}
	text := c.Encode()
	got, err := DecodeCursor(text)
	if err != nil {
		t.Fatal(err)
	}
	if got.Offset != c.Offset || !got.HasDate || got.SortOffset != c.SortOffset {
		t.Fatalf("got %+v, want %+v", got, c)
	}
	if got.Dateline.Compare(dl) != 0 {
		t.Fatalf("dateline mismatch: got %v want %v", got.Dateline, dl)
	}
	if !reflect.DeepEqual(got.State, c.State) {
		t.Fatalf("state mismatch: got %v want %v", got.State, c.State)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	if _, err := DecodeCursor("not-valid-base64!!"); err == nil {
		t.Fatal("expected error decoding garbage cursor text")
	}
}
