// Copyright (C) 2022 Sneller, Inc.
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

package atomicext

import "sync/atomic"

// MaxUint64 atomically sets *ptr to the larger of its current value and
// value, retrying the compare-and-swap against Pause until it wins. This
// is the "committed_offset only ever moves forward" primitive behind the
// append path's max-on-publish rule: concurrent Publish calls racing on
// the same region must not let an earlier reservation's commit clobber a
// later one's.
func MaxUint64(ptr *atomic.Uint64, value uint64) {
	for {
		before := ptr.Load()
		if before >= value {
			return
		}
		if ptr.CompareAndSwap(before, value) {
			return
		}
		Pause()
	}
}
