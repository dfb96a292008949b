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
	"os"
	"testing"

	"github.com/jacobsa/timeutil"
)

// TestAllocateNumberMonotonic exercises P4: inode numbers are never reused
// and the counter only increases.
func TestAllocateNumberMonotonic(t *testing.T) {
	s := newStore(timeutil.RealClock(), 0)

	var prev uint64
	for i := 0; i < 5; i++ {
		got := s.allocateNumber()
		if uint64(got) <= prev {
			t.Fatalf("allocateNumber returned %d after %d, not monotonic", got, prev)
		}
		prev = uint64(got)
	}
}

func TestNewInodeAppendsToParentContents(t *testing.T) {
	s := newStore(timeutil.RealClock(), 0)
	root := s.newInode(kindDirectory, 0, "", "/", os.ModeDir|0755, 0, 0, 0)

	child := s.newInode(kindRegular, root.num, root.path, "foo", 0644, 0, 0, 0)

	found := false
	for _, c := range root.children {
		if c == child.num {
			found = true
		}
	}
	if !found {
		t.Fatalf("new inode's number should be appended to its parent's children (I1)")
	}
}

func TestNewInodeDerivesBlockCount(t *testing.T) {
	s := newStore(timeutil.RealClock(), 512)
	root := s.newInode(kindDirectory, 0, "", "/", os.ModeDir|0755, 0, 0, 0)

	in := s.newInode(kindRegular, root.num, root.path, "foo", 0644, 1000, 0, 0)
	if in.attrs.blocks != 2 {
		t.Fatalf("blocks for size 1000 at blksize 512 should be ceil(1000/512) = 2, got %d", in.attrs.blocks)
	}
}

func TestGetByPathExactMatch(t *testing.T) {
	s := newStore(timeutil.RealClock(), 0)
	root := s.newInode(kindDirectory, 0, "", "/", os.ModeDir|0755, 0, 0, 0)
	s.newInode(kindRegular, root.num, root.path, "foo", 0644, 0, 0, 0)

	if got := s.getByPath("/foo"); got == nil || got.name != "foo" {
		t.Fatalf("getByPath(/foo) should find the inode named foo, got %v", got)
	}
	if got := s.getByPath("/bar"); got != nil {
		t.Fatalf("getByPath(/bar) should return nil for a nonexistent path, got %v", got)
	}
}

func TestPutOverwritesByNum(t *testing.T) {
	s := newStore(timeutil.RealClock(), 0)
	root := s.newInode(kindDirectory, 0, "", "/", os.ModeDir|0755, 0, 0, 0)
	in := s.newInode(kindRegular, root.num, root.path, "foo", 0644, 0, 0, 0)

	in.attrs.uid = 42
	s.put(in)

	if got := s.get(in.num); got.attrs.uid != 42 {
		t.Fatalf("put should overwrite the stored inode, got uid %d", got.attrs.uid)
	}
}

func TestRemoveDeletesFromTable(t *testing.T) {
	s := newStore(timeutil.RealClock(), 0)
	root := s.newInode(kindDirectory, 0, "", "/", os.ModeDir|0755, 0, 0, 0)
	in := s.newInode(kindRegular, root.num, root.path, "foo", 0644, 0, 0, 0)

	s.remove(in.num)

	if got := s.get(in.num); got != nil {
		t.Fatalf("remove should delete the inode from the table, got %v", got)
	}
}

func TestBlockCountRoundsUp(t *testing.T) {
	cases := []struct {
		size, blksize uint64
		want          uint64
	}{
		{0, 512, 0},
		{1, 512, 1},
		{512, 512, 1},
		{513, 512, 2},
	}
	for _, c := range cases {
		if got := blockCount(c.size, uint32(c.blksize)); got != c.want {
			t.Errorf("blockCount(%d, %d) = %d, want %d", c.size, c.blksize, got, c.want)
		}
	}
}
