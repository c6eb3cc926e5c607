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

// recoverAndPromote implements §4.E's recover_and_promote protocol. It
// is safe to call on an already WRITE_READY runtime (a cheap no-op).
func (s *Stream) recoverAndPromote(rt *regionRuntime) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.State() == stateWriteReady {
		return
	}

	data := s.m.Base()
	off := firstEntryOffset(rt.region)
	end := rt.region.Offset + headerSize + rt.region.size

	for off < end {
		sp, err := spanDecode(data, off)
		if err != nil {
			break
		}
		if sp.Type != spanEntry {
			// EMPTY or an uninitialized cache line: normal tail sentinel.
			break
		}
		next := sp.next()
		if next > end || !entryCheckConsistency(data, sp) {
			// Torn tail: treat as if this entry did not exist; its
			// bytes become the start of the next writable region.
			s.logf("pmemstream: region %d: torn entry at %d", rt.region.Offset, off)
			break
		}
		off = next
	}

	rel := off - firstEntryOffset(rt.region)
	rt.appendOffset.Store(rel)
	rt.committedOffset.Store(rel)
	s.logf("pmemstream: region %d recovered, append_offset=%d", rt.region.Offset, off)
	rt.state.Store(int32(stateWriteReady))
}

// ensureWriteReady returns the runtime for r, recovering it first if it
// is still READ_READY. This is the entry point used by append/reserve
// and by RegionRuntimeInitialize.
func (s *Stream) ensureWriteReady(r Region) *regionRuntime {
	rt := s.runtimes.getOrCreate(r)
	if rt.State() == stateReadReady {
		s.recoverAndPromote(rt)
	}
	return rt
}

// RegionRuntimeInitialize explicitly triggers recovery for r ahead of
// the first append, so that callers sensitive to the O(entries) recovery
// scan latency can pay it off the hot path (§5).
func (s *Stream) RegionRuntimeInitialize(r Region) (*RegionRuntime, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return &RegionRuntime{rt: s.ensureWriteReady(r)}, nil
}

// resolveRuntime returns the regionRuntime behind an optional
// *RegionRuntime, creating and recovering one via the region map if rt
// is nil, matching the "runtime?" optional parameter of §4.F/§6.
func (s *Stream) resolveRuntime(r Region, rt *RegionRuntime) *regionRuntime {
	if rt != nil && rt.rt != nil {
		return rt.rt
	}
	return s.ensureWriteReady(r)
}
