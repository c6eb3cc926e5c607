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

// Package pmemstream implements a persistent, log-structured,
// append-only stream of variable-length entries grouped into regions,
// over a byte-addressable memory-mapped file. See SPEC_FULL.md for the
// external contract this package implements.
package pmemstream

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ashgrove-labs/pmemstream/internal/ints"
)

const (
	headerMagic   = "PMEMSTRM"
	headerVersion = uint32(1)
	// superblockSize is the fixed-size region at offset 0 holding the
	// format magic, version, block_size (u32 at byte 12) and the first
	// region offset (u64 at byte 16); the first REGION span begins
	// immediately after it, cache-line aligned.
	superblockSize = 64
)

// Stream is a handle to an open, memory-mapped stream. A Stream is safe
// for concurrent use by multiple goroutines; all exported methods may be
// called concurrently with each other and with themselves.
type Stream struct {
	m        Mapping
	closeMap func() error

	blockSize   uint64
	firstRegion uint64
	mapSize     uint64

	allocMu  sync.Mutex
	runtimes *runtimeMap

	closed  atomic.Bool
	session uuid.UUID

	// Logger receives diagnostic events (recovery, torn-tail detection,
	// allocation/free); nil disables logging.
	Logger Logger
}

// Create initializes a new stream file at path, sized to mapSize bytes
// with the given block_size (§6 stream_open), and opens it.
// block_size must be a power of two no smaller than the cache-line
// alignment that fits the superblock's 32-bit field; mapSize must be
// large enough to hold the superblock plus at least one cache line.
func Create(path string, blockSize, mapSize uint64) (*Stream, error) {
	if blockSize == 0 || blockSize&(blockSize-1) != 0 || blockSize < uint64(CacheLineSize) || blockSize > math.MaxUint32 {
		return nil, fmt.Errorf("create(%q): block_size=%d: %w", path, blockSize, ErrBadBlockSize)
	}
	if mapSize < superblockSize+uint64(CacheLineSize) {
		return nil, fmt.Errorf("create(%q): map_size too small: %w", path, ErrInvalidArgument)
	}

	m, closeFn, err := CreateFile(path, int64(mapSize))
	if err != nil {
		return nil, fmt.Errorf("create(%q): %w", path, err)
	}

	writeSuperblock(m, blockSize)

	s := &Stream{
		m:           m,
		closeMap:    closeFn,
		blockSize:   blockSize,
		firstRegion: superblockSize,
		mapSize:     mapSize,
		runtimes:    newRuntimeMap(),
		session:     uuid.New(),
	}
	s.logf("pmemstream: created %q (session %s, block_size=%d, map_size=%d)", path, s.session, blockSize, mapSize)
	return s, nil
}

// Open opens an existing stream file at path, validating its superblock.
// The region map and region runtimes are populated lazily: Open itself
// performs no region recovery scan, matching §2 (opening is read-ready).
func Open(path string) (*Stream, error) {
	m, closeFn, err := OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open(%q): %w", path, err)
	}

	blockSize, err := readSuperblock(m)
	if err != nil {
		closeFn()
		return nil, fmt.Errorf("open(%q): %w", path, err)
	}

	s := &Stream{
		m:           m,
		closeMap:    closeFn,
		blockSize:   blockSize,
		firstRegion: superblockSize,
		mapSize:     uint64(len(m.Base())),
		runtimes:    newRuntimeMap(),
		session:     uuid.New(),
	}
	s.logf("pmemstream: opened %q (session %s, block_size=%d, map_size=%d)", path, s.session, blockSize, s.mapSize)
	return s, nil
}

// Close unmaps the stream's backing file. After Close, RegionAllocate,
// RegionFree, RegionRuntimeInitialize, Append, Reserve, EntryWrite,
// Publish and Snapshot return ErrClosed; the other methods do not check.
// Close is idempotent.
func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.logf("pmemstream: closing (session %s)", s.session)
	return s.closeMap()
}

// BlockSize returns the stream's block_size, the allocation granularity
// for RegionAllocate.
func (s *Stream) BlockSize() uint64 { return s.blockSize }

// writeSuperblock durably writes the format magic, version, block_size
// and first region offset at offset 0, per §6.
func writeSuperblock(m Mapping, blockSize uint64) {
	var buf [superblockSize]byte
	copy(buf[0:8], headerMagic)
	binary.NativeEndian.PutUint32(buf[8:12], headerVersion)
	binary.NativeEndian.PutUint32(buf[12:16], uint32(blockSize))
	binary.NativeEndian.PutUint64(buf[16:24], superblockSize)
	persistentMemcpy(m, m.Base()[0:superblockSize], buf[:])
}

// readSuperblock validates the format magic/version and returns
// block_size, per §7 (BAD_FORMAT).
func readSuperblock(m Mapping) (uint64, error) {
	data := m.Base()
	if len(data) < superblockSize {
		return 0, ErrBadFormat
	}
	if string(data[0:8]) != headerMagic {
		return 0, ErrBadFormat
	}
	version := binary.NativeEndian.Uint32(data[8:12])
	if version != headerVersion {
		return 0, fmt.Errorf("superblock version %d (want %d): %w", version, headerVersion, ErrBadFormat)
	}
	blockSize := uint64(binary.NativeEndian.Uint32(data[12:16]))
	if blockSize == 0 || !ints.IsAligned(blockSize, uint64(CacheLineSize)) {
		return 0, ErrBadFormat
	}
	return blockSize, nil
}
