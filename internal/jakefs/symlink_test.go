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

func TestResolveSymlinkNotASymlink(t *testing.T) {
	s := newStore(timeutil.RealClock(), 0)
	root := s.newInode(kindDirectory, 0, "", "/", os.ModeDir|0755, 0, 0, 0)
	file := s.newInode(kindRegular, root.num, root.path, "foo", 0644, 0, 0, 0)

	if got := s.resolveSymlink(file); got != nil {
		t.Fatalf("resolveSymlink on a non-symlink should return nil, got %v", got)
	}
}

func TestResolveSymlinkBrokenTarget(t *testing.T) {
	s := newStore(timeutil.RealClock(), 0)
	root := s.newInode(kindDirectory, 0, "", "/", os.ModeDir|0755, 0, 0, 0)
	link := s.newInode(kindSymlink, root.num, root.path, "link", os.ModeSymlink|0777, 0, 0, 0)
	link.target = 0 // broken at creation time

	got := s.resolveSymlink(link)
	if got != link {
		t.Fatalf("a symlink with no target should resolve to itself as the terminal inode")
	}
}

func TestResolveSymlinkMissingTarget(t *testing.T) {
	s := newStore(timeutil.RealClock(), 0)
	root := s.newInode(kindDirectory, 0, "", "/", os.ModeDir|0755, 0, 0, 0)
	link := s.newInode(kindSymlink, root.num, root.path, "link", os.ModeSymlink|0777, 0, 0, 0)
	link.target = 999 // never allocated

	got := s.resolveSymlink(link)
	if got != link {
		t.Fatalf("a symlink whose target is absent from the store should resolve to itself")
	}
}

func TestResolveSymlinkChain(t *testing.T) {
	s := newStore(timeutil.RealClock(), 0)
	root := s.newInode(kindDirectory, 0, "", "/", os.ModeDir|0755, 0, 0, 0)
	target := s.newInode(kindRegular, root.num, root.path, "answer", 0644, 2, 0, 0)

	linkA := s.newInode(kindSymlink, root.num, root.path, "a", os.ModeSymlink|0777, 0, 0, 0)
	linkB := s.newInode(kindSymlink, root.num, root.path, "b", os.ModeSymlink|0777, 0, 0, 0)
	linkA.target = linkB.num
	linkB.target = target.num

	got := s.resolveSymlink(linkA)
	if got != target {
		t.Fatalf("resolveSymlink should follow the chain to the terminal file, got %v", got)
	}
}

func TestResolveSymlinkCycleBounded(t *testing.T) {
	s := newStore(timeutil.RealClock(), 0)
	root := s.newInode(kindDirectory, 0, "", "/", os.ModeDir|0755, 0, 0, 0)

	linkA := s.newInode(kindSymlink, root.num, root.path, "a", os.ModeSymlink|0777, 0, 0, 0)
	linkB := s.newInode(kindSymlink, root.num, root.path, "b", os.ModeSymlink|0777, 0, 0, 0)
	linkA.target = linkB.num
	linkB.target = linkA.num

	got := s.resolveSymlink(linkA)
	if got != nil {
		t.Fatalf("a symlink cycle should resolve to nil after exceeding the hop cap, got %v", got)
	}
}
