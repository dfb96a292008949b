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

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/timeutil"
)

// store is the inode table described in spec §4.1: a mapping from inode
// number to inode record, plus the monotonic number allocator.
//
// INVARIANT: nextNum is the last number handed out (0 before the first
// allocation, so the root gets 1)
// INVARIANT: for all keys k, store[k].num == k (I5)
type store struct {
	clock   timeutil.Clock
	blkSize uint32

	nextNum fuseops.InodeID // GUARDED_BY(fs.mu)
	inodes  map[fuseops.InodeID]*inode
}

func newStore(clock timeutil.Clock, blkSize uint32) *store {
	if blkSize == 0 {
		blkSize = defaultBlockSize
	}
	return &store{
		clock:   clock,
		blkSize: blkSize,
		nextNum: 0,
		inodes:  make(map[fuseops.InodeID]*inode),
	}
}

// allocateNumber returns the next inode number and advances the counter
// (spec §4.1). Numbers are never reused (P4).
func (s *store) allocateNumber() fuseops.InodeID {
	s.nextNum++
	return s.nextNum
}

// get returns the inode for ino, or nil if absent.
func (s *store) get(ino fuseops.InodeID) *inode {
	return s.inodes[ino]
}

// getByPath performs the linear scan spec §4.1 calls for: exact string
// equality against every stored inode's path. O(N); acceptable for the
// small in-memory trees this filesystem holds (spec §9).
func (s *store) getByPath(path string) *inode {
	for _, in := range s.inodes {
		if in.path == path {
			return in
		}
	}
	return nil
}

// put inserts or overwrites the inode keyed by its own num field.
func (s *store) put(in *inode) {
	s.inodes[in.num] = in
}

// remove deletes ino from the table.
func (s *store) remove(ino fuseops.InodeID) {
	delete(s.inodes, ino)
}

// newInode builds a fully populated inode: timestamps = now, blocks derived
// from size and the store's block size, nlink = 1 (spec §4.1). If parent is
// non-zero, the new inode's number is appended to the parent's children.
func (s *store) newInode(
	k kind,
	parent fuseops.InodeID,
	parentPath string,
	name string,
	mode os.FileMode,
	size uint64,
	uid, gid uint32) *inode {
	now := s.clock.Now()
	num := s.allocateNumber()

	path := name
	if parent != 0 {
		if parentPath == "/" {
			path = "/" + name
		} else {
			path = parentPath + "/" + name
		}
	}

	in := &inode{
		num:    num,
		kind:   k,
		path:   path,
		name:   name,
		parent: parent,
		attrs: attrs{
			ino:     num,
			size:    size,
			blocks:  blockCount(size, s.blkSize),
			atime:   now,
			mtime:   now,
			ctime:   now,
			crtime:  now,
			mode:    mode,
			nlink:   1,
			uid:     uid,
			gid:     gid,
			blksize: s.blkSize,
		},
		numLinks: 1,
	}

	s.put(in)

	if parent != 0 {
		if p := s.get(parent); p != nil {
			p.asDir().children = append(p.children, num)
		}
	}

	return in
}
