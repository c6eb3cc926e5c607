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

//go:build !linux

package pmemstream

import (
	"fmt"
	"io"
	"os"
)

// fileMapping is the non-Linux fallback Mapping: the whole file is read
// into memory on open, and Drain flushes the in-memory buffer back to the
// file with a Sync, mirroring the ReadAll/Truncate+Write fallback used by
// the teacher's own non-Linux cache backend.
type fileMapping struct {
	f    *os.File
	data []byte
}

// OpenFile reads path into memory and returns a Mapping over it.
func OpenFile(path string) (Mapping, func() error, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	fm := &fileMapping{f: f, data: data}
	closeFn := func() error {
		if err := fm.syncToFile(); err != nil {
			fm.f.Close()
			return err
		}
		return fm.f.Close()
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
	_ = m.syncToFile()
}

func (m *fileMapping) syncToFile() error {
	if _, err := m.f.WriteAt(m.data, 0); err != nil {
		return err
	}
	return m.f.Sync()
}
