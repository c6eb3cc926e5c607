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

package pmemstream

import (
	"bytes"
	"testing"
)

// TestPersistentMemcpyContents checks the resulting bytes for a
// single-fragment copy against a misaligned destination
// (scenario S6: a small copy entirely inside the alignment prefix).
func TestPersistentMemcpyContents(t *testing.T) {
	m := newMemMapping(256)
	destOff := 16 // misaligned relative to a 64-byte cache line
	src := bytes.Repeat([]byte{0xAB}, 16)

	persistentMemcpy(m, m.Base()[destOff:destOff+len(src)], src)

	if !bytes.Equal(m.Base()[destOff:destOff+len(src)], src) {
		t.Fatalf("copied bytes mismatch")
	}
	if d := m.totalDrains(); d != 1 {
		t.Fatalf("want exactly 1 drain, got %d", d)
	}
}

// TestPersistentMemcpyMultiFragment exercises scenario S5: several
// fragments of varying size, spanning multiple cache lines, written as
// one persistentMemcpy call.
func TestPersistentMemcpyMultiFragment(t *testing.T) {
	m := newMemMapping(512)
	a := bytes.Repeat([]byte{1}, 8)
	b := bytes.Repeat([]byte{2}, 8)
	c := bytes.Repeat([]byte{3}, 80)
	d := bytes.Repeat([]byte{4}, 32)
	e := bytes.Repeat([]byte{5}, 64)

	total := len(a) + len(b) + len(c) + len(d) + len(e)
	dest := m.Base()[0:total]
	persistentMemcpy(m, dest, a, b, c, d, e)

	want := append(append(append(append(append([]byte{}, a...), b...), c...), d...), e...)
	if !bytes.Equal(dest, want) {
		t.Fatalf("multi-fragment copy mismatch")
	}
	if d := m.totalDrains(); d != 1 {
		t.Fatalf("want exactly 1 drain, got %d", d)
	}
}

// TestPersistentMemcpyZeroLength covers boundary behavior B1: a
// zero-length fragment (and a zero-length total copy) is a complete
// no-op, issuing no Memcpy or Drain call at all.
func TestPersistentMemcpyZeroLength(t *testing.T) {
	m := newMemMapping(64)
	persistentMemcpy(m, m.Base()[0:0])
	if len(m.calls) != 0 || m.totalDrains() != 0 {
		t.Fatalf("zero-length copy must not call Memcpy or Drain")
	}

	// A zero-length fragment mixed with real ones must not appear as a
	// separate call and must not perturb the single-drain contract.
	m2 := newMemMapping(64)
	src := bytes.Repeat([]byte{0x7}, 10)
	dest := m2.Base()[0:10]
	persistentMemcpy(m2, dest, nil, src, nil)
	if !bytes.Equal(dest, src) {
		t.Fatalf("copy with empty fragments mismatch")
	}
	if d := m2.totalDrains(); d != 1 {
		t.Fatalf("want exactly 1 drain, got %d", d)
	}
}

// TestPersistentMemcpyCacheLineAligned covers a copy landing exactly on
// a cache-line boundary with nothing left to stage, which must still
// issue exactly one trailing Drain (the "nothing staged" branch).
func TestPersistentMemcpyCacheLineAligned(t *testing.T) {
	m := newMemMapping(256)
	src := bytes.Repeat([]byte{0x9}, CacheLineSize*2)
	dest := m.Base()[0:len(src)]
	persistentMemcpy(m, dest, src)

	if !bytes.Equal(dest, src) {
		t.Fatalf("aligned copy mismatch")
	}
	if d := m.totalDrains(); d != 1 {
		t.Fatalf("want exactly 1 drain, got %d", d)
	}
}
