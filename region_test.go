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
	"errors"
	"testing"
)

// newTestStream builds a Stream directly over an in-memory Mapping
// double, bypassing file creation, for unit tests that only care about
// the span/allocator/runtime logic.
func newTestStream(t testing.TB, mapSize int) *Stream {
	t.Helper()
	m := newMemMapping(mapSize)
	writeSuperblock(m, uint64(CacheLineSize))
	return &Stream{
		m:           m,
		closeMap:    func() error { return nil },
		blockSize:   uint64(CacheLineSize),
		firstRegion: superblockSize,
		mapSize:     uint64(mapSize),
		runtimes:    newRuntimeMap(),
		Logger:      &testLogger{out: t},
	}
}

func TestRegionAllocateBasic(t *testing.T) {
	s := newTestStream(t, 1<<16)
	r, err := s.RegionAllocate(1000)
	if err != nil {
		t.Fatalf("RegionAllocate: %v", err)
	}
	// P5: region size is always block_size-aligned.
	if r.Size()%s.blockSize != 0 {
		t.Fatalf("region size %d not aligned to block_size %d", r.Size(), s.blockSize)
	}
	if r.Size() < 1000 {
		t.Fatalf("region size %d smaller than requested 1000", r.Size())
	}
}

func TestRegionAllocateOutOfSpace(t *testing.T) {
	s := newTestStream(t, 1<<12)
	_, err := s.RegionAllocate(1 << 20)
	if !errors.Is(err, ErrOutOfSpace) {
		t.Fatalf("want ErrOutOfSpace, got %v", err)
	}
}

func TestRegionFreeAndReuse(t *testing.T) {
	s := newTestStream(t, 1<<16)
	r1, err := s.RegionAllocate(2048)
	if err != nil {
		t.Fatalf("RegionAllocate #1: %v", err)
	}
	if err := s.RegionFree(r1); err != nil {
		t.Fatalf("RegionFree: %v", err)
	}

	r2, err := s.RegionAllocate(2048)
	if err != nil {
		t.Fatalf("RegionAllocate #2: %v", err)
	}
	if r2.Offset != r1.Offset {
		t.Fatalf("expected reuse of freed region at %d, got new region at %d", r1.Offset, r2.Offset)
	}
}

// TestRegionReuseZeroFillsPayload is the correctness property a
// recovery scan depends on (§4.E): a region reused from the free list
// must not expose stale ENTRY spans from its previous life as live
// data.
func TestRegionReuseZeroFillsPayload(t *testing.T) {
	s := newTestStream(t, 1<<16)
	r, err := s.RegionAllocate(4096)
	if err != nil {
		t.Fatalf("RegionAllocate: %v", err)
	}
	rt, err := s.RegionRuntimeInitialize(r)
	if err != nil {
		t.Fatalf("RegionRuntimeInitialize: %v", err)
	}
	if _, err := s.Append(r, rt, []byte("stale data that must not survive reuse")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.RegionFree(r); err != nil {
		t.Fatalf("RegionFree: %v", err)
	}

	r2, err := s.RegionAllocate(4096)
	if err != nil {
		t.Fatalf("RegionAllocate (reuse): %v", err)
	}
	if r2.Offset != r.Offset {
		t.Fatalf("expected reuse at same offset")
	}

	rt2, err := s.RegionRuntimeInitialize(r2)
	if err != nil {
		t.Fatalf("RegionRuntimeInitialize (reused): %v", err)
	}
	it := s.Entries(r2)
	if _, ok := it.Next(); ok {
		t.Fatal("reused region must not expose entries from its previous allocation")
	}
	_ = rt2
}

func TestRegionSizeMismatchIsError(t *testing.T) {
	s := newTestStream(t, 1<<16)
	_, err := s.RegionSize(Region{Offset: s.firstRegion + 4096})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument for a non-region offset, got %v", err)
	}
}
