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

//go:build linux

package pmemstream

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fileMapping is the default Mapping implementation: a writable,
// MAP_SHARED mmap of a regular file. Go has no portable access to the
// non-temporal store / CLWB instructions the external contract in §1
// describes, so FlagNonTemporal has no effect (every write is an
// ordinary copy(), which the Go compiler may vectorize); durability is
// provided by Msync, which is semantically what "drain" requires: prior
// writes reach the backing file before Msync returns.
type fileMapping struct {
	f    *os.File
	data []byte
}

// OpenFile mmaps path (which must already exist and be sized to the
// desired mapping length) read-write and returns a Mapping over it.
func OpenFile(path string) (Mapping, func() error, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	fm := &fileMapping{f: f, data: data}
	closeFn := func() error {
		err := unix.Munmap(fm.data)
		if cerr := fm.f.Close(); err == nil {
			err = cerr
		}
		return err
	}
	return fm, closeFn, nil
}

// CreateFile creates (or truncates) path to size bytes and returns a
// Mapping over it, zero-filled.
func CreateFile(path string, size int64) (Mapping, func() error, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, nil, err
	}
	if err := unix.Fallocate(int(f.Fd()), 0, 0, size); err != nil {
		// Fallocate is a best-effort durability/contiguity hint; some
		// filesystems (tmpfs, overlayfs) reject it outright.
		_ = err
	}
	f.Close()
	return OpenFile(path)
}

func (m *fileMapping) Base() []byte { return m.data }

func (m *fileMapping) Memcpy(dest, src []byte, flags CopyFlag) {
	n := copy(dest, src)
	if n != len(src) {
		panic(fmt.Sprintf("pmemstream: short copy %d/%d", n, len(src)))
	}
	if flags&FlagNoDrain == 0 {
		m.Drain()
	}
}

func (m *fileMapping) Drain() {
	_ = unix.Msync(m.data, unix.MS_SYNC)
}
