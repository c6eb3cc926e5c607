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
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/ashgrove-labs/pmemstream/internal/ints"
)

// spanType is the low 2 bits of a span header.
type spanType uint8

const (
	spanEmpty  spanType = 0
	spanEntry  spanType = 1
	spanRegion spanType = 2
)

func (t spanType) String() string {
	switch t {
	case spanEmpty:
		return "EMPTY"
	case spanEntry:
		return "ENTRY"
	case spanRegion:
		return "REGION"
	default:
		return fmt.Sprintf("spanType(%d)", uint8(t))
	}
}

const (
	// headerSize is the size, in bytes, of the packed span header.
	headerSize = 8
	// popcountSize is the size, in bytes, of an ENTRY span's popcount word.
	popcountSize = 8

	spanTypeMask  = 0x3
	spanFreeBit   = 0x4
	spanSizeShift = 3
)

// encodeSpanHeader packs a span header per §6 of SPEC_FULL.md.
func encodeSpanHeader(t spanType, size uint64, isFree bool) uint64 {
	h := uint64(t) & spanTypeMask
	if isFree {
		h |= spanFreeBit
	}
	h |= size << spanSizeShift
	return h
}

// decodeSpanHeader unpacks a span header.
func decodeSpanHeader(h uint64) (t spanType, size uint64, isFree bool) {
	t = spanType(h & spanTypeMask)
	isFree = h&spanFreeBit != 0
	size = h >> spanSizeShift
	return
}

// Span is a decoded view of the record at Offset. It does not copy the
// underlying payload; use entryData (or Stream.EntryData) to get an
// entry's payload as a byte slice into the mapping.
type Span struct {
	Offset uint64
	Type   spanType
	Size   uint64 // payload size in bytes
	IsFree bool   // meaningful only for REGION spans
}

// headerBytes returns the packed on-media header (type, free bit, size)
// of s.
func (s Span) headerBytes() [headerSize]byte {
	var b [headerSize]byte
	binary.NativeEndian.PutUint64(b[:], encodeSpanHeader(s.Type, s.Size, s.IsFree))
	return b
}

// payloadOffset is the offset of the first payload byte for REGION and
// EMPTY spans (EMPTY has no payload, so this is only used for bounds math).
func (s Span) payloadOffset() uint64 {
	return s.Offset + headerSize
}

// entryPayloadOffset is the offset of the first user-data byte of an
// ENTRY span, i.e. past the header and the popcount word.
func (s Span) entryPayloadOffset() uint64 {
	return s.Offset + headerSize + popcountSize
}

// next returns the offset of the span immediately following s, per the
// forward-linking arithmetic in §3: next(span) = align_up(offset(span) +
// header_size [+ popcount_size] + payload_size, SPAN_ALIGN).
func (s Span) next() uint64 {
	end := s.Offset + headerSize
	if s.Type == spanEntry {
		end += popcountSize
	}
	end += s.Size
	return ints.AlignUp(end, uint64(CacheLineSize))
}

// spanDecode decodes the span header at offset within data. It returns an
// error only when the header itself cannot be read (offset out of
// bounds); a header decoding to EMPTY/size=0 — including an all-zero
// cache line read from never-written media — is a valid, non-error
// result, per §4.B's edge case.
func spanDecode(data []byte, offset uint64) (Span, error) {
	if offset+headerSize > uint64(len(data)) {
		return Span{}, fmt.Errorf("span header at %d: %w", offset, ErrOutOfRange)
	}
	h := binary.NativeEndian.Uint64(data[offset : offset+headerSize])
	t, size, isFree := decodeSpanHeader(h)
	return Span{Offset: offset, Type: t, Size: size, IsFree: isFree}, nil
}

// spanCreate writes a span header (EMPTY or REGION; use entryWrite for
// ENTRY spans, which also carry a popcount word) via the persistent
// memcpy path (§4.B span_create).
func spanCreate(m Mapping, offset uint64, t spanType, size uint64, isFree bool) Span {
	s := Span{Offset: offset, Type: t, Size: size, IsFree: isFree}
	hdr := s.headerBytes()
	dest := m.Base()[offset : offset+headerSize]
	persistentMemcpy(m, dest, hdr[:])
	return s
}

// popcount returns the number of set bits across payload.
func popcount(payload []byte) uint64 {
	var n uint64
	i := 0
	for ; i+8 <= len(payload); i += 8 {
		n += uint64(bits.OnesCount64(binary.NativeEndian.Uint64(payload[i : i+8])))
	}
	for ; i < len(payload); i++ {
		n += uint64(bits.OnesCount8(payload[i]))
	}
	return n
}

// entryWrite writes a complete ENTRY span (header + popcount + payload)
// as a single scatter-gather persistent memcpy, per §4.B entry_write.
func entryWrite(m Mapping, offset uint64, payload []byte) Span {
	s := Span{Offset: offset, Type: spanEntry, Size: uint64(len(payload))}
	hdr := s.headerBytes()

	var pc [popcountSize]byte
	binary.NativeEndian.PutUint64(pc[:], popcount(payload))

	total := headerSize + popcountSize + len(payload)
	dest := m.Base()[offset : offset+uint64(total)]
	persistentMemcpy(m, dest, hdr[:], pc[:], payload)
	return s
}

// entryCheckConsistency recomputes the popcount over the entry's payload
// and compares it against the stored popcount word (§4.B, I6).
func entryCheckConsistency(data []byte, s Span) bool {
	payloadStart := s.entryPayloadOffset()
	payloadEnd := payloadStart + s.Size
	if payloadEnd > uint64(len(data)) {
		return false
	}
	pcOff := s.Offset + headerSize
	stored := binary.NativeEndian.Uint64(data[pcOff : pcOff+popcountSize])
	return stored == popcount(data[payloadStart:payloadEnd])
}

// entryData returns the payload bytes of an ENTRY span.
func entryData(data []byte, s Span) []byte {
	start := s.entryPayloadOffset()
	return data[start : start+s.Size]
}
