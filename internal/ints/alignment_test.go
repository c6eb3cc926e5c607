// Copyright (C) 2024 The pmemstream Authors.
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

package ints

import "testing"

func TestAlignUp(t *testing.T) {
	cases := []struct {
		v, a, want uint64
	}{
		{0, 64, 0},
		{1, 64, 64},
		{63, 64, 64},
		{64, 64, 64},
		{65, 64, 128},
		{100, 8, 104},
	}
	for _, c := range cases {
		if got := AlignUp(c.v, c.a); got != c.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", c.v, c.a, got, c.want)
		}
	}
}

func TestAlignDown(t *testing.T) {
	cases := []struct {
		v, a, want uint64
	}{
		{0, 64, 0},
		{63, 64, 0},
		{64, 64, 64},
		{127, 64, 64},
	}
	for _, c := range cases {
		if got := AlignDown(c.v, c.a); got != c.want {
			t.Errorf("AlignDown(%d, %d) = %d, want %d", c.v, c.a, got, c.want)
		}
	}
}

func TestIsAligned(t *testing.T) {
	if !IsAligned(uint64(128), uint64(64)) {
		t.Error("128 should be aligned to 64")
	}
	if IsAligned(uint64(127), uint64(64)) {
		t.Error("127 should not be aligned to 64")
	}
}
