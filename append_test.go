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
	"fmt"
	"sync"
	"testing"
)

func TestAppendAndReadBack(t *testing.T) {
	s := newTestStream(t, 1<<16)
	r, err := s.RegionAllocate(4096)
	if err != nil {
		t.Fatalf("RegionAllocate: %v", err)
	}
	rt, err := s.RegionRuntimeInitialize(r)
	if err != nil {
		t.Fatalf("RegionRuntimeInitialize: %v", err)
	}

	want := [][]byte{[]byte("first"), []byte("second"), []byte("third, a little longer")}
	for _, w := range want {
		if _, err := s.Append(r, rt, w); err != nil {
			t.Fatalf("Append(%q): %v", w, err)
		}
	}

	it := s.Entries(r)
	var got [][]byte
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, append([]byte{}, s.EntryData(e)...))
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if string(got[i]) != string(want[i]) {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAppendOutOfRange(t *testing.T) {
	s := newTestStream(t, 1<<16)
	r, err := s.RegionAllocate(uint64(CacheLineSize))
	if err != nil {
		t.Fatalf("RegionAllocate: %v", err)
	}
	rt, err := s.RegionRuntimeInitialize(r)
	if err != nil {
		t.Fatalf("RegionRuntimeInitialize: %v", err)
	}

	big := make([]byte, r.Size()*4)
	if _, err := s.Append(r, rt, big); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("want ErrOutOfRange for an oversized append, got %v", err)
	}
}

// TestAppendConcurrentReservationsDoNotOverlap checks that every
// reservation in a region gets disjoint space: no two goroutines
// observe the same reserved offset, even without an external lock.
func TestAppendConcurrentReservationsDoNotOverlap(t *testing.T) {
	s := newTestStream(t, 1<<20)
	r, err := s.RegionAllocate(1 << 16)
	if err != nil {
		t.Fatalf("RegionAllocate: %v", err)
	}
	rt, err := s.RegionRuntimeInitialize(r)
	if err != nil {
		t.Fatalf("RegionRuntimeInitialize: %v", err)
	}

	const n = 64
	payload := []byte("xyz")
	offsets := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := s.Append(r, rt, payload)
			if err != nil {
				t.Errorf("Append: %v", err)
				return
			}
			offsets[i] = e.Offset
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	for _, off := range offsets {
		if seen[off] {
			t.Fatalf("duplicate reservation offset %d", off)
		}
		seen[off] = true
	}

	// Every entry must independently pass its popcount check (P3: no
	// reservation corrupted another's header/payload).
	it := s.Entries(r)
	count := 0
	for {
		if _, ok := it.Next(); !ok {
			break
		}
		count++
	}
	if count != n {
		t.Fatalf("got %d committed entries, want %d", count, n)
	}
}

func TestReserveWritePublishSplit(t *testing.T) {
	s := newTestStream(t, 1<<16)
	r, err := s.RegionAllocate(4096)
	if err != nil {
		t.Fatalf("RegionAllocate: %v", err)
	}
	rt, err := s.RegionRuntimeInitialize(r)
	if err != nil {
		t.Fatalf("RegionRuntimeInitialize: %v", err)
	}

	payload := []byte("reserved then published")
	res, err := s.Reserve(r, rt, uint64(len(payload)))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	// Before Publish, the entry must not be visible to a reader.
	if it := s.Entries(r); func() bool { _, ok := it.Next(); return ok }() {
		t.Fatal("unpublished reservation must not be visible to readers")
	}

	if err := s.EntryWrite(res, payload); err != nil {
		t.Fatalf("EntryWrite: %v", err)
	}
	if err := s.Publish(r, rt, res); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	it := s.Entries(r)
	e, ok := it.Next()
	if !ok {
		t.Fatal("published entry must be visible")
	}
	if string(s.EntryData(e)) != string(payload) {
		t.Fatalf("entry data = %q, want %q", s.EntryData(e), payload)
	}
}

func TestAppendOnClosedStream(t *testing.T) {
	s := newTestStream(t, 1<<16)
	r, err := s.RegionAllocate(4096)
	if err != nil {
		t.Fatalf("RegionAllocate: %v", err)
	}
	s.closed.Store(true)
	if _, err := s.Append(r, nil, []byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
}

func ExampleStream_Append() {
	s := newMemStreamForExample()
	defer s.Close()

	r, _ := s.RegionAllocate(4096)
	rt, _ := s.RegionRuntimeInitialize(r)
	e, _ := s.Append(r, rt, []byte("hello"))
	fmt.Println(string(s.EntryData(e)))
	// Output: hello
}

func newMemStreamForExample() *Stream {
	m := newMemMapping(1 << 16)
	writeSuperblock(m, uint64(CacheLineSize))
	return &Stream{
		m:           m,
		closeMap:    func() error { return nil },
		blockSize:   uint64(CacheLineSize),
		firstRegion: superblockSize,
		mapSize:     1 << 16,
		runtimes:    newRuntimeMap(),
	}
}
