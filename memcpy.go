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

import "unsafe"

// fragCursor walks a list of source fragments as a single concatenated
// byte stream, handing out contiguous runs that never cross a fragment
// boundary (the caller re-requests remaining bytes on the next call).
// Zero-length fragments are skipped transparently, which is what gives us
// boundary behavior B1 (a zero-length fragment is a no-op) for free.
type fragCursor struct {
	frags [][]byte
	fi    int
	fo    int
}

// next returns up to n bytes from the current position, never crossing a
// fragment boundary, or nil if the stream is exhausted.
func (c *fragCursor) next(n int) []byte {
	for c.fi < len(c.frags) {
		f := c.frags[c.fi]
		avail := len(f) - c.fo
		if avail == 0 {
			c.fi++
			c.fo = 0
			continue
		}
		if n > avail {
			n = avail
		}
		b := f[c.fo : c.fo+n]
		c.fo += n
		return b
	}
	return nil
}

// persistentMemcpy implements §4.A: it copies the concatenation of frags
// into dest, aligning the destination to a cache line, using
// FlagNonTemporal|FlagNoDrain stores for the aligned bulk of the copy and
// a cache-line-sized staging buffer to coalesce unaligned head/tail
// fragments, and issues exactly one drain at the end.
//
// dest and every element of frags must be sub-slices of the same
// Mapping's Base(). len(dest) must equal the sum of len(f) for f in
// frags; a zero total length is a complete no-op (no Memcpy or Drain
// call at all).
func persistentMemcpy(m Mapping, dest []byte, frags ...[]byte) {
	total := 0
	for _, f := range frags {
		total += len(f)
	}
	if total == 0 {
		return
	}

	cur := fragCursor{frags: frags}
	destPos := 0

	cl := CacheLineSize
	destAddr := uintptr(unsafe.Pointer(&dest[0]))
	misalign := int((alignUpUintptr(destAddr, uintptr(cl)) - destAddr))
	if misalign > total {
		misalign = total
	}

	// Step 1: copy the misalignment prefix directly, advancing dest.
	for misalign > 0 {
		chunk := cur.next(misalign)
		if chunk == nil {
			break
		}
		m.Memcpy(dest[destPos:destPos+len(chunk)], chunk, FlagNonTemporal|FlagNoDrain)
		destPos += len(chunk)
		misalign -= len(chunk)
	}

	// Step 2-4: cache-line-staged scatter-gather over the now-aligned
	// remainder. drained tracks whether the last store we issued already
	// carried a drain (via flush(true)); if the copy ends
	// exactly on a cache-line boundary with nothing staged, we still owe
	// exactly one Drain call.
	var staging [CacheLineSize]byte
	stagingLen := 0
	drained := false

	flush := func(final bool) {
		if stagingLen == 0 {
			return
		}
		flags := FlagNonTemporal | FlagNoDrain
		if final {
			flags = FlagNonTemporal
		}
		m.Memcpy(dest[destPos:destPos+stagingLen], staging[:stagingLen], flags)
		destPos += stagingLen
		stagingLen = 0
		if final {
			drained = true
		}
	}

	remaining := total - destPos
	for remaining > 0 {
		if stagingLen > 0 {
			need := cl - stagingLen
			chunk := cur.next(need)
			if chunk == nil {
				break
			}
			copy(staging[stagingLen:], chunk)
			stagingLen += len(chunk)
			remaining -= len(chunk)
			if stagingLen == cl {
				flush(false)
			}
			continue
		}

		chunk := cur.next(cl)
		if chunk == nil {
			break
		}
		if len(chunk) == cl {
			m.Memcpy(dest[destPos:destPos+cl], chunk, FlagNonTemporal|FlagNoDrain)
			destPos += cl
			remaining -= cl
		} else {
			copy(staging[:len(chunk)], chunk)
			stagingLen = len(chunk)
			remaining -= len(chunk)
		}
	}

	if stagingLen > 0 {
		flush(true)
	} else if !drained {
		m.Drain()
	}
}

func alignUpUintptr(v, alignment uintptr) uintptr {
	return ((v + alignment - 1) / alignment) * alignment
}
