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

	"github.com/ashgrove-labs/pmemstream/internal/atomicext"
	"github.com/ashgrove-labs/pmemstream/internal/ints"
)

// Entry is a handle to a written ENTRY span, returned by Append and by the
// entry iterator.
type Entry struct {
	Offset uint64
	size   uint64
}

// Size returns the entry's payload length in bytes.
func (e Entry) Size() uint64 { return e.size }

// Append is the combination of Reserve+EntryWrite+Publish described in
// §4.F, for callers that don't need the steps split. It is equivalent to:
//
//	res, _ := s.Reserve(r, rt, uint64(len(payload)))
//	s.EntryWrite(res, payload)
//	s.Publish(r, rt, res)
//
// with header, popcount and payload written by one scatter-gather
// memcpy, matching entry_write's single-drain contract.
func (s *Stream) Append(r Region, rt *RegionRuntime, payload []byte) (Entry, error) {
	if s.closed.Load() {
		return Entry{}, ErrClosed
	}
	runtime := s.resolveRuntime(r, rt)

	need := ints.AlignUp(uint64(headerSize+popcountSize+len(payload)), uint64(CacheLineSize))
	off, err := s.reserveLocked(runtime, r, need)
	if err != nil {
		return Entry{}, err
	}

	entryWrite(s.m, off, payload)
	s.publish(runtime, off+need-firstEntryOffset(r))
	s.logf("pmemstream: appended entry at %d (%d bytes) to region %d", off, len(payload), r.Offset)
	return Entry{Offset: off, size: uint64(len(payload))}, nil
}

// Reservation is a handle to space claimed by Reserve but not yet
// published; the caller writes the payload into it with EntryWrite (which
// makes it durable) and must call Publish exactly once to make the write
// visible to readers.
type Reservation struct {
	Offset uint64
	size   uint64 // on-media span size, header+popcount+payload, aligned
}

// Reserve claims room within r for an entry of size payload bytes and returns a
// Reservation naming the span that will hold it, per §4.F reserve. No
// media write happens yet — the slot stays whatever it was before
// (all-zero for a never-used tail, so a concurrent recovery scan simply
// sees EMPTY and stops there). The caller calls EntryWrite (or writes
// through the mapping directly) followed by Publish; EntryWrite's single
// scatter-gather memcpy is what actually turns the slot into a valid
// ENTRY span.
func (s *Stream) Reserve(r Region, rt *RegionRuntime, size uint64) (Reservation, error) {
	if s.closed.Load() {
		return Reservation{}, ErrClosed
	}
	runtime := s.resolveRuntime(r, rt)
	need := ints.AlignUp(uint64(headerSize+popcountSize)+size, uint64(CacheLineSize))
	off, err := s.reserveLocked(runtime, r, need)
	if err != nil {
		return Reservation{}, err
	}
	return Reservation{Offset: off, size: need}, nil
}

// reserveLocked advances rt's append_offset by need with a
// compare-and-swap retry loop, the reservation half of §4.F; it fails
// with ErrOutOfRange once the region's payload bound would be exceeded.
// No lock is taken on the hot path.
func (s *Stream) reserveLocked(rt *regionRuntime, r Region, need uint64) (uint64, error) {
	regionEnd := r.Offset + headerSize + r.size
	for {
		cur := rt.appendOffset.Load()
		off := firstEntryOffset(r) + cur
		if off+need > regionEnd {
			return 0, fmt.Errorf("reserve(%d): %w", need, ErrOutOfRange)
		}
		if rt.appendOffset.CompareAndSwap(cur, cur+need) {
			return off, nil
		}
	}
}

// EntryWrite writes payload into a reservation's span, durably, via the
// same single-drain scatter-gather memcpy entry_write uses for Append.
// Callers using Reserve/Publish directly (rather than Append) call this
// before Publish.
func (s *Stream) EntryWrite(res Reservation, payload []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	entryWrite(s.m, res.Offset, payload)
	return nil
}

// Publish makes a reservation visible to readers and advances the
// region's committed_offset, per §4.F publish.
func (s *Stream) Publish(r Region, rt *RegionRuntime, res Reservation) error {
	if s.closed.Load() {
		return ErrClosed
	}
	runtime := s.resolveRuntime(r, rt)
	s.publish(runtime, res.Offset+res.size-firstEntryOffset(r))
	return nil
}

// publish implements the committed-offset ordering policy documented in
// DESIGN.md's Open Question section: rather than track the set of
// outstanding reservations to publish strictly in reservation order, this
// advances committed_offset to the maximum of its current value and
// newCommitted, retried under a CAS loop (atomicext.MaxUint64). A publish
// that completes out of order can momentarily expose a not-yet-written
// slot as committed; any reader that races it sees a popcount mismatch on
// that slot (§4.E) and stops, so the hazard never surfaces as a valid
// entry, only as a transient "nothing here yet."
func (s *Stream) publish(rt *regionRuntime, newCommitted uint64) {
	atomicext.MaxUint64(&rt.committedOffset, newCommitted)
}
