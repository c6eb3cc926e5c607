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

import "errors"

// Sentinel errors, one per taxonomy kind (§7 of SPEC_FULL.md). Callers
// should compare against these with errors.Is; call sites that have more
// context to add wrap them with fmt.Errorf("...: %w", ...).
var (
	// ErrInvalidArgument is returned for freeing or sizing an offset that
	// is not a known allocated region, a map size too small for Create,
	// and a region tag that does not verify.
	ErrInvalidArgument = errors.New("pmemstream: invalid argument")

	// ErrOutOfSpace is returned when a region allocation cannot be
	// satisfied by either the free list or the tail of the map.
	ErrOutOfSpace = errors.New("pmemstream: out of space")

	// ErrOutOfRange is returned when an append or reserve would exceed
	// the region's payload bound.
	ErrOutOfRange = errors.New("pmemstream: out of range")

	// ErrBadFormat is returned when the stream header magic or version
	// does not match on open.
	ErrBadFormat = errors.New("pmemstream: bad format")

	// ErrBadBlockSize is returned when block_size is not a power of two
	// or is smaller than CacheLineSize.
	ErrBadBlockSize = errors.New("pmemstream: bad block size")

	// ErrClosed is returned by any operation on a Stream after Close.
	ErrClosed = errors.New("pmemstream: stream closed")
)
