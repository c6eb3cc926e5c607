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
	"fmt"

	"github.com/ashgrove-labs/pmemstream/internal/ints"
)

// Region is a non-owning handle to an allocated REGION span. Its
// lifetime is bounded by the Stream that produced it; using a Region
// after the underlying span has been freed returns ErrInvalidArgument
// from any operation that checks it against the media.
type Region struct {
	Offset uint64
	size   uint64 // payload capacity, see Size
}

// Size returns the region's payload capacity. This is
// align_up(requested_size, block_size) (§4.C, P5), except when
// RegionAllocate reuses a free span too small to split: the whole span
// is handed back, and its size is then larger and need not be a
// multiple of block_size.
func (r Region) Size() uint64 { return r.size }

// RegionAllocate allocates a region of at least size bytes, reusing a
// free-list entry if one is large enough, per §4.C.
func (s *Stream) RegionAllocate(size uint64) (Region, error) {
	if s.closed.Load() {
		return Region{}, ErrClosed
	}
	aligned := ints.AlignUp(size, s.blockSize)

	s.allocMu.Lock()
	defer s.allocMu.Unlock()

	data := s.m.Base()
	off := s.firstRegion
	for off < s.mapSize {
		sp, err := spanDecode(data, off)
		if err != nil {
			break
		}
		if sp.Type != spanRegion {
			break
		}
		if sp.IsFree && sp.Size >= aligned {
			return s.reuseFreeRegionLocked(sp, aligned)
		}
		off = sp.next()
	}

	total := uint64(headerSize) + aligned
	if off+total > s.mapSize {
		return Region{}, fmt.Errorf("region_allocate(%d): %w", size, ErrOutOfSpace)
	}
	s.zeroFill(off+headerSize, aligned)
	spanCreate(s.m, off, spanRegion, aligned, false)
	s.logf("pmemstream: allocated region at %d (%d bytes)", off, aligned)
	return Region{Offset: off, size: aligned}, nil
}

// reuseFreeRegionLocked reuses sp (a free REGION span known to be large
// enough) to satisfy an allocation of aligned bytes, splitting off the
// remainder as a new free region when there's enough room to do so.
// Callers must hold s.allocMu.
func (s *Stream) reuseFreeRegionLocked(sp Span, aligned uint64) (Region, error) {
	remainder := sp.Size - aligned
	if remainder == 0 {
		s.zeroFill(sp.payloadOffset(), sp.Size)
		spanCreate(s.m, sp.Offset, spanRegion, sp.Size, false)
		s.logf("pmemstream: reused free region at %d (%d bytes)", sp.Offset, sp.Size)
		return Region{Offset: sp.Offset, size: sp.Size}, nil
	}

	reused := Span{Offset: sp.Offset, Type: spanRegion, Size: aligned}
	newOff := reused.next()
	totalOld := sp.next()
	if totalOld < newOff+headerSize {
		// Not enough room left to host a free-list marker: don't split,
		// hand back the whole (slightly oversized) free span.
		s.zeroFill(sp.payloadOffset(), sp.Size)
		spanCreate(s.m, sp.Offset, spanRegion, sp.Size, false)
		return Region{Offset: sp.Offset, size: sp.Size}, nil
	}

	newSize := totalOld - newOff - headerSize
	s.zeroFill(sp.payloadOffset(), aligned)
	spanCreate(s.m, sp.Offset, spanRegion, aligned, false)
	spanCreate(s.m, newOff, spanRegion, newSize, true)
	s.logf("pmemstream: split free region at %d into %d (%d bytes, in-use) + %d (%d bytes, free)",
		sp.Offset, sp.Offset, aligned, newOff, newSize)
	return Region{Offset: sp.Offset, size: aligned}, nil
}

// RegionFree marks r's span free, making it eligible for reuse by a
// future RegionAllocate and visible to region iterators, per §4.C.
func (s *Stream) RegionFree(r Region) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.allocMu.Lock()
	defer s.allocMu.Unlock()

	data := s.m.Base()
	sp, err := spanDecode(data, r.Offset)
	if err != nil || sp.Type != spanRegion || sp.IsFree {
		return fmt.Errorf("region_free(%d): %w", r.Offset, ErrInvalidArgument)
	}
	spanCreate(s.m, r.Offset, spanRegion, sp.Size, true)
	s.runtimes.remove(r.Offset)
	s.logf("pmemstream: freed region at %d", r.Offset)
	return nil
}

// RegionSize returns the usable payload capacity of r, re-reading it from
// the media (unlike Region.Size, which reports the capacity as of
// allocation time — the two only disagree if r has since been freed and
// reused with a different size, which callers should not rely on). A
// freed region returns ErrInvalidArgument.
func (s *Stream) RegionSize(r Region) (uint64, error) {
	data := s.m.Base()
	sp, err := spanDecode(data, r.Offset)
	if err != nil || sp.Type != spanRegion || sp.IsFree {
		return 0, fmt.Errorf("region_size(%d): %w", r.Offset, ErrInvalidArgument)
	}
	return sp.Size, nil
}

// zeroFill durably zeroes [offset, offset+n) via the persistent memcpy
// path, so that a freshly allocated or reused region's payload starts in
// the all-zero state §4.E's recovery protocol assumes.
func (s *Stream) zeroFill(offset, n uint64) {
	if n == 0 {
		return
	}
	zeros := make([]byte, n)
	dest := s.m.Base()[offset : offset+n]
	persistentMemcpy(s.m, dest, zeros)
}

// firstEntryOffset returns the offset of the first possible ENTRY span
// within region r's payload, rounded up to SPAN_ALIGN: the region's own
// header is only headerSize bytes, which does not by itself land the
// payload on a span-aligned boundary, but §3 requires every span —
// including the region's first ENTRY — to begin SPAN_ALIGN-aligned.
func firstEntryOffset(r Region) uint64 {
	return ints.AlignUp(r.Offset+headerSize, uint64(CacheLineSize))
}
