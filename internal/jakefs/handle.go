// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jakefs

import (
	"fmt"

	"github.com/jacobsa/fuse/fuseops"
)

// The top two bits of a handle encode read/write capability (spec §4.3,
// glossary "Capability bit"). The remaining 62 bits are an outstanding-open
// counter for the inode.
const (
	handleReadBit  fuseops.HandleID = 1 << 63
	handleWriteBit fuseops.HandleID = 1 << 62

	// maxHandleCounter is the exclusive upper bound on counter values: the
	// allocator hands out at most maxHandleCounter-1, and reaching it is a
	// fatal condition (spec §5): min(2^63, 2^62) == 2^62, since the top two
	// bits are reserved.
	maxHandleCounter = fuseops.HandleID(1) << 62
)

// handleAllocator tracks, per inode, a counter of currently outstanding open
// handles (spec §4.3). It does not identify individual handles: two
// concurrent opens get distinct handle integers, but release only
// decrements the shared counter. This is sound under the single-threaded
// cooperative dispatch model of spec §5; a multi-threaded dispatcher would
// need a per-handle record instead (spec §9).
type handleAllocator struct {
	counters map[fuseops.InodeID]fuseops.HandleID
}

func newHandleAllocator() *handleAllocator {
	return &handleAllocator{counters: make(map[fuseops.InodeID]fuseops.HandleID)}
}

// allocate bumps the outstanding-open counter for ino and returns an opaque
// handle with the requested capability bits set.
//
// Fatal if the counter would reach maxHandleCounter (spec §5): this is an
// unreachable condition on realistic workloads and signals a leak.
func (h *handleAllocator) allocate(ino fuseops.InodeID, canRead, canWrite bool) fuseops.HandleID {
	counter := h.counters[ino] + 1
	if counter >= maxHandleCounter {
		panic(fmt.Sprintf("file handle counter exhausted for inode %d", ino))
	}
	h.counters[ino] = counter

	handle := counter
	if canRead {
		handle |= handleReadBit
	}
	if canWrite {
		handle |= handleWriteBit
	}
	return handle
}

// release decrements the outstanding-open counter for ino, floored at zero.
// It does not invalidate the specific handle passed to it, only the count
// (spec §4.3).
func (h *handleAllocator) release(ino fuseops.InodeID) {
	counter := h.counters[ino]
	if counter == 0 {
		return
	}
	h.counters[ino] = counter - 1
}

// canWriteHandle reports whether handle carries the write capability bit,
// without consulting the inode (spec §4.3's write-handler capability check).
func canWriteHandle(handle fuseops.HandleID) bool {
	return handle&handleWriteBit != 0
}
