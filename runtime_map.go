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
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// regionRuntimeState is the state machine of §4.E: READ_READY ->
// WRITE_READY, no other transitions.
type regionRuntimeState int32

const (
	stateReadReady regionRuntimeState = iota
	stateWriteReady
)

// regionRuntime is the volatile per-region state described in §3/§4.D.
// append_offset and committed_offset are read lock-free on the hot
// append path by many goroutines at once, so the struct is padded on
// both sides to keep them off a cache line shared with an unrelated
// region's runtime.
type regionRuntime struct {
	_ cpu.CacheLinePad

	region Region

	state           atomic.Int32
	appendOffset    atomic.Uint64
	committedOffset atomic.Uint64

	// mu protects only the READ_READY -> WRITE_READY transition; it is
	// never held across a drain. The Stream's Logger, if set, is called
	// while it is held.
	mu sync.Mutex

	_ cpu.CacheLinePad
}

func newRegionRuntime(r Region) *regionRuntime {
	rt := &regionRuntime{region: r}
	rt.state.Store(int32(stateReadReady))
	return rt
}

func (rt *regionRuntime) State() regionRuntimeState {
	return regionRuntimeState(rt.state.Load())
}

// RegionRuntime is a non-owning, pre-warmed handle to a region's runtime
// state, obtained via Stream.RegionRuntimeInitialize. Passing one to
// Append/Reserve/Publish lets a caller pay the one-time recovery scan
// cost (§5's "callers that must not block during first write") ahead of
// time, off the latency-sensitive path.
type RegionRuntime struct {
	rt *regionRuntime
}

// runtimeMap is the concurrent offset -> *regionRuntime map of §4.D. The
// spec sanctions "a global reader-writer lock... given the low insert
// rate" (§9), so that's what this is: readers take the map's RWMutex only
// long enough to look up a pointer, never while touching the runtime
// itself.
type runtimeMap struct {
	mu sync.RWMutex
	m  map[uint64]*regionRuntime
}

func newRuntimeMap() *runtimeMap {
	return &runtimeMap{m: make(map[uint64]*regionRuntime)}
}

// getOrCreate returns the runtime for r, constructing one in
// READ_READY state on first access.
func (rm *runtimeMap) getOrCreate(r Region) *regionRuntime {
	rm.mu.RLock()
	rt, ok := rm.m[r.Offset]
	rm.mu.RUnlock()
	if ok {
		return rt
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rt, ok := rm.m[r.Offset]; ok {
		return rt
	}
	rt = newRegionRuntime(r)
	rm.m[r.Offset] = rt
	return rt
}

// lookup returns the runtime for offset without creating one.
func (rm *runtimeMap) lookup(offset uint64) (*regionRuntime, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	rt, ok := rm.m[offset]
	return rt, ok
}

// remove drops the runtime for offset, called by RegionFree.
func (rm *runtimeMap) remove(offset uint64) {
	rm.mu.Lock()
	delete(rm.m, offset)
	rm.mu.Unlock()
}
