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

// RegionIterator walks every REGION span (allocated or free) in a
// stream's span sequence in offset order, per §4.G. It holds no lock
// across calls to Next: a region freed or allocated concurrently with
// iteration may or may not be observed, but the walk itself never reads
// past a span whose header it has not yet decoded.
type RegionIterator struct {
	s   *Stream
	off uint64
	end uint64
}

// Regions returns an iterator over every region in the stream, in
// offset order (a region reused from the free list keeps its position).
func (s *Stream) Regions() *RegionIterator {
	return &RegionIterator{s: s, off: s.firstRegion, end: s.mapSize}
}

// Next advances the iterator and returns the next region along with
// whether it is currently free. It returns ok=false once the span
// sequence is exhausted or a non-REGION span is encountered (the
// sequence of REGION spans is always contiguous from firstRegion).
func (it *RegionIterator) Next() (r Region, free bool, ok bool) {
	if it.off >= it.end {
		return Region{}, false, false
	}
	sp, err := spanDecode(it.s.m.Base(), it.off)
	if err != nil || sp.Type != spanRegion {
		return Region{}, false, false
	}
	it.off = sp.next()
	return Region{Offset: sp.Offset, size: sp.Size}, sp.IsFree, true
}

// EntryIterator walks the ENTRY spans of a single region in append
// order, per §4.G. Reaching a non-ENTRY span, an out-of-bounds next
// offset, or a popcount mismatch (torn tail) ends the iteration. Next
// never changes the region's runtime state: Entries recovers the runtime
// (the same work as RegionRuntimeInitialize, §4.E) before returning the
// iterator, if it is still READ_READY.
type EntryIterator struct {
	s      *Stream
	region Region
	off    uint64
	end    uint64
}

// Entries returns an iterator over region r's committed entries. This
// also triggers recovery of r's runtime if it has not already happened,
// since computing "where do committed entries end" and "where can the
// next append go" are the same scan (a SUPPLEMENTED FEATURE: the
// original exposes no standalone read-only iterator constructor
// separate from recovery — see SPEC_FULL.md). The iteration bound is the
// region's committed_offset at the time Entries is called; entries
// committed after that are not returned by this iterator.
func (s *Stream) Entries(r Region) *EntryIterator {
	rt := s.ensureWriteReady(r)
	end := firstEntryOffset(r) + rt.committedOffset.Load()
	return &EntryIterator{s: s, region: r, off: firstEntryOffset(r), end: end}
}

// Next advances the iterator and returns the next entry, or ok=false
// once the committed portion of the region has been fully walked.
func (it *EntryIterator) Next() (e Entry, ok bool) {
	if it.off >= it.end {
		return Entry{}, false
	}
	data := it.s.m.Base()
	sp, err := spanDecode(data, it.off)
	if err != nil || sp.Type != spanEntry || !entryCheckConsistency(data, sp) {
		it.end = it.off // torn or corrupt: stop here for good
		return Entry{}, false
	}
	it.off = sp.next()
	return Entry{Offset: sp.Offset, size: sp.Size}, true
}

// EntryData returns the payload bytes of e. The returned slice aliases
// the stream's mapping and is valid only until the Stream is closed.
func (s *Stream) EntryData(e Entry) []byte {
	sp := Span{Offset: e.Offset, Type: spanEntry, Size: e.size}
	return entryData(s.m.Base(), sp)
}
