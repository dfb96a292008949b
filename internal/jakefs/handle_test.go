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
	"testing"

	"github.com/jacobsa/fuse/fuseops"
)

func TestHandleAllocatorCapabilityBits(t *testing.T) {
	h := newHandleAllocator()

	handle := h.allocate(1, true, false)
	if canWriteHandle(handle) {
		t.Fatalf("read-only handle should not carry the write bit")
	}
	if handle&handleReadBit == 0 {
		t.Fatalf("read handle should carry the read bit")
	}

	handle = h.allocate(1, false, true)
	if !canWriteHandle(handle) {
		t.Fatalf("write handle should carry the write bit")
	}
	if handle&handleReadBit != 0 {
		t.Fatalf("write-only handle should not carry the read bit")
	}
}

func TestHandleAllocatorDistinctHandlesPerOpen(t *testing.T) {
	h := newHandleAllocator()

	first := h.allocate(1, true, true)
	second := h.allocate(1, true, true)

	if first == second {
		t.Fatalf("two concurrent opens on the same inode should get distinct handles")
	}
}

// TestHandleAllocatorReleaseRestoresCounter exercises P5: after release
// following allocate, the stored counter returns to its pre-allocate value.
func TestHandleAllocatorReleaseRestoresCounter(t *testing.T) {
	h := newHandleAllocator()
	var ino fuseops.InodeID = 42

	before := h.counters[ino]
	h.allocate(ino, true, false)
	h.release(ino)

	if h.counters[ino] != before {
		t.Fatalf("counter after allocate+release = %d, want %d", h.counters[ino], before)
	}
}

func TestHandleAllocatorReleaseFloorsAtZero(t *testing.T) {
	h := newHandleAllocator()
	var ino fuseops.InodeID = 7

	h.release(ino)
	h.release(ino)

	if h.counters[ino] != 0 {
		t.Fatalf("releasing with no outstanding opens should floor at zero, got %d", h.counters[ino])
	}
}

func TestHandleAllocatorPerInodeIndependence(t *testing.T) {
	h := newHandleAllocator()

	h.allocate(1, true, false)
	h.allocate(1, true, false)
	h.release(2) // unrelated inode, never allocated

	if h.counters[1] != 2 {
		t.Fatalf("inode 1's counter should be unaffected by releasing inode 2, got %d", h.counters[1])
	}
}
