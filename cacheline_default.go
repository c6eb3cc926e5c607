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

//go:build !ppc64 && !ppc64le

package pmemstream

// CacheLineSize is the cache line size of the host architecture, in bytes.
// It is also the span alignment (SPAN_ALIGN) used throughout the on-media
// format. A runtime override is intentionally not supported: see §9 of
// SPEC_FULL.md.
const CacheLineSize = 64
