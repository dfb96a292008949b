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
	"os"
	"time"

	"github.com/jacobsa/fuse/fuseops"
)

// kind tags the three inode variants. Only one kind's fields are valid on a
// given inode; reaching for the wrong one is a programming error (spec
// invariant I6) and panics rather than silently returning a zero value.
type kind int

const (
	kindRegular kind = iota
	kindDirectory
	kindSymlink
)

func (k kind) String() string {
	switch k {
	case kindRegular:
		return "file"
	case kindDirectory:
		return "directory"
	case kindSymlink:
		return "symlink"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// attrs is the POSIX attribute block carried by every inode (spec §3). It is
// richer than fuseops.InodeAttributes (which lacks ino/blocks/rdev/blksize/
// flags) because those fields are part of this spec's invariants (I4, I5)
// even though the driver dependency's wire format doesn't need all of them.
type attrs struct {
	ino     fuseops.InodeID
	size    uint64
	blocks  uint64
	atime   time.Time
	mtime   time.Time
	ctime   time.Time
	crtime  time.Time
	mode    os.FileMode
	nlink   uint32
	uid     uint32
	gid     uint32
	rdev    uint32
	blksize uint32
	flags   uint32
}

const defaultBlockSize = 512

func blockCount(size uint64, blksize uint32) uint64 {
	if blksize == 0 {
		blksize = defaultBlockSize
	}
	return (size + uint64(blksize) - 1) / uint64(blksize)
}

// perm returns the POSIX permission triplet (low 9 bits of mode).
func (a *attrs) perm() os.FileMode {
	return a.mode.Perm()
}

// inode is the common-header-plus-variant record described in spec §3.
//
// INVARIANT: attrs.ino == num (I5)
// INVARIANT: attrs.size == len(data) for regular files (I4)
// INVARIANT: attrs.blocks == ceil(attrs.size / attrs.blksize) (I4)
// INVARIANT: only one of data/children/(target,targetPath) is meaningful,
// selected by kind (I6)
type inode struct {
	num      fuseops.InodeID
	kind     kind
	attrs    attrs
	path     string
	name     string
	parent   fuseops.InodeID
	numLinks uint32

	// Regular file.
	data []byte

	// Directory. Order is insertion order; preserved across rename (spec §3).
	children []fuseops.InodeID

	// Symlink.
	target     fuseops.InodeID
	targetPath string
}

func (in *inode) isDir() bool     { return in.kind == kindDirectory }
func (in *inode) isSymlink() bool { return in.kind == kindSymlink }
func (in *inode) isFile() bool    { return in.kind == kindRegular }

// asDir panics unless in is a directory (I6).
func (in *inode) asDir() *inode {
	if !in.isDir() {
		panic(fmt.Sprintf("inode %d (%v) is not a directory", in.num, in.kind))
	}
	return in
}

// asFile panics unless in is a regular file (I6).
func (in *inode) asFile() *inode {
	if !in.isFile() {
		panic(fmt.Sprintf("inode %d (%v) is not a regular file", in.num, in.kind))
	}
	return in
}

// asSymlink panics unless in is a symlink (I6).
func (in *inode) asSymlink() *inode {
	if !in.isSymlink() {
		panic(fmt.Sprintf("inode %d (%v) is not a symlink", in.num, in.kind))
	}
	return in
}

// toInodeAttributes projects the richer internal attrs down to the wire
// format the driver dependency expects in ChildInodeEntry/GetInodeAttributesOp
// responses.
func (a *attrs) toInodeAttributes() fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:   a.size,
		Nlink:  uint64(a.nlink),
		Mode:   a.mode,
		Atime:  a.atime,
		Mtime:  a.mtime,
		Ctime:  a.ctime,
		Crtime: a.crtime,
		Uid:    a.uid,
		Gid:    a.gid,
	}
}

// findChild returns the index of name within in.children, or ok == false.
//
// REQUIRES: in.isDir()
func (in *inode) findChild(store *store, name string) (idx int, ok bool) {
	for i, childNum := range in.children {
		child := store.get(childNum)
		if child == nil {
			// A directory's recorded child missing from the store is a structural
			// invariant violation (spec §5): unreachable in a correctly
			// maintained tree.
			panic(fmt.Sprintf("child %d of directory %d missing from store", childNum, in.num))
		}
		if child.name == name {
			return i, true
		}
	}
	return 0, false
}
