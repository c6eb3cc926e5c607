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

// Package atomicext provides small helpers for the spin-wait retry loops
// used by the committed-offset advance on the append path.
package atomicext

// Pause is a hint that the calling goroutine is in a spin-wait loop. A
// real PAUSE/YIELD instruction needs architecture-specific assembly;
// lacking that, this is a no-op kept as its own call site so every
// retry loop already pays for the call and a future arch-specific
// implementation can be dropped in without touching callers. noinline
// ensures the call itself is not optimized away.
//
//go:noinline
func Pause() {}
