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

// CopyFlag mirrors the PMEM2_F_MEM_* flags of the external mapping
// contract described in §1 of SPEC_FULL.md.
type CopyFlag int

const (
	// FlagNonTemporal requests a write-combining, non-temporal store.
	FlagNonTemporal CopyFlag = 1 << iota
	// FlagNoDrain suppresses the trailing store-fence/drain: the write is
	// not guaranteed durable until a later call without this flag, or an
	// explicit Drain.
	FlagNoDrain
)

// Mapping is the external collaborator described in §1 of SPEC_FULL.md: a
// byte-addressable, persistent, memory-mapped region together with the
// primitives needed to write to it durably. A Stream does not own a
// Mapping's lifetime beyond Close; callers are responsible for the
// underlying file.
//
// Implementations must be safe for concurrent use: Memcpy and Drain are
// called from every caller goroutine performing an append.
type Mapping interface {
	// Base returns the entire mapped region as a byte slice. Reads
	// through the returned slice are always safe; writes must go
	// through Memcpy so that durability flags are honored.
	Base() []byte

	// Memcpy copies src into dest, both of which must be sub-slices of
	// Base(). If flags omits FlagNoDrain, the write is durable upon
	// return (a drain is issued). This method itself is not expected to
	// do a scatter-gather; persistentMemcpy sequences calls to it.
	Memcpy(dest, src []byte, flags CopyFlag)

	// Drain issues a store-persistence fence: once it returns, all prior
	// Memcpy calls on this Mapping (regardless of flags) are durable.
	Drain()
}
