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
	"strings"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
	"golang.org/x/sys/unix"
)

const entryTTL = time.Second

// fmodeExec mirrors the Linux kernel's __FMODE_EXEC, folded into the open
// flags the VFS passes down when a binary is being loaded for execve(2).
const fmodeExec = 0x20

// FileSystem is the jakefs engine (spec §2): an in-memory inode store, a
// file-handle allocator, and the request handlers that drive them. It embeds
// NotImplementedFileSystem so unimplemented kernel ops (mkdir, flush, sync,
// forget, ...) fall back to ENOSYS without being listed here.
type FileSystem struct {
	fuseutil.NotImplementedFileSystem

	clock      timeutil.Clock
	mountPoint string

	// The driver dependency dispatches each op on its own goroutine (spec §5
	// describes the *logical* single-dispatcher model the engine is designed
	// against; the real driver beneath it is concurrent), so every access to
	// store/handles below is made under mu, mirroring memFS.mu in
	// samples/memfs/fs.go.
	mu syncutil.InvariantMutex

	store   *store           // GUARDED_BY(mu)
	handles *handleAllocator // GUARDED_BY(mu)
}

// NewFileSystem builds a FileSystem seeded with the root directory and the
// fixed initial contents described in spec §6: /foo = "bar", /answer = "42".
func NewFileSystem(clock timeutil.Clock, mountPoint string, blkSize uint32) *FileSystem {
	s := newStore(clock, blkSize)

	root := s.newInode(kindDirectory, 0, "", "/", os.ModeDir|0755, 0, 0, 0)
	root.parent = 0

	s.newInode(kindRegular, root.num, root.path, "foo", 0644, 3, 1000, 1000).data = []byte("bar")
	s.newInode(kindRegular, root.num, root.path, "answer", 0644, 2, 1000, 1000).data = []byte("42")

	fs := &FileSystem{
		clock:      clock,
		mountPoint: mountPoint,
		store:      s,
		handles:    newHandleAllocator(),
	}
	fs.mu = syncutil.NewInvariantMutex(fs.checkInvariants)
	return fs
}

// checkInvariants validates I1, I2, I4 and I5 over the live store. It is run
// by the InvariantMutex on every Unlock and panics (fatal, per spec §5) on
// violation, the same contract as checkInvariants in
// samples/memfs/fs.go and gcsfuse's fs.checkInvariants.
func (fs *FileSystem) checkInvariants() {
	for num, in := range fs.store.inodes {
		if in.num != num {
			panic(fmt.Sprintf("inode stored under %d has num %d (I5)", num, in.num))
		}
		if in.attrs.ino != in.num {
			panic(fmt.Sprintf("inode %d: attrs.ino %d != num (I5)", in.num, in.attrs.ino))
		}
		if in.isFile() {
			if in.attrs.size != uint64(len(in.data)) {
				panic(fmt.Sprintf("inode %d: attrs.size %d != len(data) %d (I4)", in.num, in.attrs.size, len(in.data)))
			}
			if want := blockCount(in.attrs.size, fs.store.blkSize); in.attrs.blocks != want {
				panic(fmt.Sprintf("inode %d: attrs.blocks %d != ceil(size/blksize) %d (I4)", in.num, in.attrs.blocks, want))
			}
		}
		if in.parent != 0 {
			parent := fs.store.inodes[in.parent]
			if parent == nil || !parent.isDir() {
				panic(fmt.Sprintf("inode %d: parent %d missing or not a directory (I1)", in.num, in.parent))
			}
			found := false
			for _, c := range parent.children {
				if c == in.num {
					found = true
					break
				}
			}
			if !found {
				panic(fmt.Sprintf("inode %d: not present in parent %d's children (I1)", in.num, in.parent))
			}
		}
		if in.isDir() {
			seen := make(map[string]bool, len(in.children))
			for _, childNum := range in.children {
				child := fs.store.inodes[childNum]
				if child == nil {
					continue
				}
				if seen[child.name] {
					panic(fmt.Sprintf("directory %d has two children named %q (I2)", in.num, child.name))
				}
				seen[child.name] = true
			}
		}
	}
}

func (fs *FileSystem) now() time.Time {
	return fs.clock.Now()
}

// touch bumps mtime/atime on in to now (used after directory contents or
// file data change, per spec §4.5's handler contracts).
func (fs *FileSystem) touch(in *inode) {
	n := fs.now()
	in.attrs.mtime = n
	in.attrs.atime = n
}

func (fs *FileSystem) Init(op *fuseops.InitOp) {
	op.Respond(nil)
}

// LookUpInode implements spec §4.5's lookup handler.
func (fs *FileSystem) LookUpInode(op *fuseops.LookUpInodeOp) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent := fs.store.get(op.Parent)
	if parent == nil {
		op.Respond(ENOENT)
		return
	}

	idx, ok := parent.asDir().findChild(fs.store, op.Name)
	if !ok {
		op.Respond(ENOENT)
		return
	}

	child := fs.store.get(parent.children[idx])
	op.Entry = fs.childEntry(child)
	op.Respond(nil)
}

func (fs *FileSystem) childEntry(in *inode) fuseops.ChildInodeEntry {
	return fuseops.ChildInodeEntry{
		Child:                in.num,
		Generation:           0,
		Attributes:           in.attrs.toInodeAttributes(),
		AttributesExpiration: fs.now().Add(entryTTL),
		EntryExpiration:      fs.now().Add(entryTTL),
	}
}

// GetInodeAttributes implements spec §4.5's getattr handler.
func (fs *FileSystem) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in := fs.store.get(op.Inode)
	if in == nil {
		op.Respond(ENOENT)
		return
	}

	op.Attributes = in.attrs.toInodeAttributes()
	op.AttributesExpiration = fs.now().Add(entryTTL)
	op.Respond(nil)
}

// SetInodeAttributes implements spec §4.5's setattr handler.
func (fs *FileSystem) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in := fs.store.get(op.Inode)
	if in == nil {
		op.Respond(EPERM)
		return
	}

	h := op.Header()
	if !canWrite(in.attrs.mode, in.attrs.uid, in.attrs.gid, h.Uid, h.Gid) {
		op.Respond(EPERM)
		return
	}

	if op.Mode != nil {
		// Mask to the low 16 bits and drop the set-group-id bit (spec §4.5).
		mode := *op.Mode & 0xFFFF &^ os.ModeSetgid
		in.attrs.mode = mode
	}
	if op.Size != nil {
		in.asFile().resizeData(*op.Size)
		in.attrs.size = *op.Size
		in.attrs.blocks = blockCount(*op.Size, fs.store.blkSize)
	}
	if op.Atime != nil {
		in.attrs.atime = *op.Atime
	}
	if op.Mtime != nil {
		in.attrs.mtime = *op.Mtime
	}
	if op.Uid != nil {
		in.attrs.uid = *op.Uid
	}
	if op.Gid != nil {
		in.attrs.gid = *op.Gid
	}
	in.attrs.ctime = fs.now()

	fs.store.put(in)

	op.Attributes = in.attrs.toInodeAttributes()
	op.AttributesExpiration = time.Time{}
	op.Respond(nil)
}

// OpenDir is a trivial pass-through (spec §4.5 treats directory handles as
// uninteresting; only ReadDir carries semantics).
func (fs *FileSystem) OpenDir(op *fuseops.OpenDirOp) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.store.get(op.Inode) == nil {
		op.Respond(ENOENT)
		return
	}
	op.Handle = 0
	op.Respond(nil)
}

// ReleaseDirHandle is a trivial pass-through, mirroring OpenDir.
func (fs *FileSystem) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) {
	op.Respond(nil)
}

// ReadDir implements spec §4.5's readdir handler: a single-batch enumeration,
// only offset 0 produces entries.
func (fs *FileSystem) ReadDir(op *fuseops.ReadDirOp) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir := fs.store.get(op.Inode)
	if dir == nil {
		op.Respond(ENOENT)
		return
	}

	if op.Offset != 0 {
		op.Data = nil
		op.Respond(nil)
		return
	}

	var data []byte
	data = fuseutil.AppendDirent(data, fuseutil.Dirent{Offset: 1, Inode: dir.num, Name: ".", Type: fuseutil.DT_Directory})
	data = fuseutil.AppendDirent(data, fuseutil.Dirent{Offset: 2, Inode: dir.parentOrSelf(), Name: "..", Type: fuseutil.DT_Directory})

	for idx, childNum := range dir.asDir().children {
		child := fs.store.get(childNum)
		if child == nil {
			panic("directory child missing from store during readdir")
		}
		data = fuseutil.AppendDirent(data, fuseutil.Dirent{
			Offset: fuseops.DirOffset(idx + 3),
			Inode:  child.num,
			Name:   child.name,
			Type:   direntType(child.kind),
		})
	}

	if len(data) > op.Size {
		data = data[:op.Size]
	}
	op.Data = data
	op.Respond(nil)
}

func (in *inode) parentOrSelf() fuseops.InodeID {
	if in.parent == 0 {
		return in.num
	}
	return in.parent
}

func direntType(k kind) fuseutil.DirentType {
	switch k {
	case kindDirectory:
		return fuseutil.DT_Directory
	case kindSymlink:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}

// OpenFile implements spec §4.5's open handler.
func (fs *FileSystem) OpenFile(op *fuseops.OpenFileOp) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	flags := uint32(op.Flags)
	canR, canW, err := parseAccessFlags(flags)
	if err != nil {
		op.Respond(err)
		return
	}

	in := fs.store.get(op.Inode)
	if in == nil {
		op.Respond(ENOSYS)
		return
	}

	h := op.Header()
	if canR && flags&unix.O_TRUNC != 0 && !canW {
		op.Respond(EACCES)
		return
	}

	if canR {
		// fmodeExec is the kernel's __FMODE_EXEC bit, set on the open(2) the
		// loader issues to execute a binary; it arrives folded into the open
		// flags rather than as a distinct O_* constant (spec §4.5).
		exec := flags&fmodeExec != 0
		ok := false
		if exec {
			ok = canExecute(in.attrs.mode, in.attrs.uid, in.attrs.gid, h.Uid, h.Gid)
		} else {
			ok = canRead(in.attrs.mode, in.attrs.uid, in.attrs.gid, h.Uid, h.Gid)
		}
		if !ok {
			op.Respond(EACCES)
			return
		}
	}
	if canW && !canWrite(in.attrs.mode, in.attrs.uid, in.attrs.gid, h.Uid, h.Gid) {
		op.Respond(EACCES)
		return
	}

	op.Handle = fs.handles.allocate(in.num, canR, canW)
	op.Respond(nil)
}

// parseAccessFlags implements the O_ACCMODE table in spec §4.5.
func parseAccessFlags(flags uint32) (canRead, canWrite bool, err error) {
	switch flags & uint32(unix.O_ACCMODE) {
	case unix.O_RDONLY:
		return true, false, nil
	case unix.O_WRONLY:
		return false, true, nil
	case unix.O_RDWR:
		return true, true, nil
	default:
		return false, false, EINVAL
	}
}

// ReadFile implements spec §4.5's read handler.
func (fs *FileSystem) ReadFile(op *fuseops.ReadFileOp) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in := fs.store.get(op.Inode)
	if in == nil {
		op.Respond(EPERM)
		return
	}

	target := in
	if in.isSymlink() {
		resolved := fs.store.resolveSymlink(in)
		if resolved == nil || resolved.isSymlink() {
			// Broken link or cycle: nothing to read.
			op.Data = nil
			op.Respond(nil)
			return
		}
		target = resolved
	}

	h := op.Header()
	if !canRead(target.attrs.mode, target.attrs.uid, target.attrs.gid, h.Uid, h.Gid) {
		op.Respond(EACCES)
		return
	}

	data := target.asFile().data
	start := op.Offset
	if start > int64(len(data)) {
		start = int64(len(data))
	}
	end := start + int64(op.Size)
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	op.Data = data[start:end]
	op.Respond(nil)
}

// WriteFile implements spec §4.5's write handler.
func (fs *FileSystem) WriteFile(op *fuseops.WriteFileOp) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !canWriteHandle(op.Handle) {
		op.Respond(EACCES)
		return
	}

	in := fs.store.get(op.Inode)
	if in == nil {
		op.Respond(EBADF)
		return
	}

	f := in.asFile()
	end := op.Offset + int64(len(op.Data))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[op.Offset:end], op.Data)

	fs.touch(in)
	in.attrs.size = uint64(len(f.data))
	in.attrs.blocks = blockCount(in.attrs.size, fs.store.blkSize)
	fs.store.put(in)

	op.Respond(nil)
}

// ReleaseFileHandle implements spec §4.5's release handler: never errors.
func (fs *FileSystem) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.handles.release(op.Inode)
	op.Respond(nil)
}

// Unlink implements spec §4.5's unlink handler.
func (fs *FileSystem) Unlink(op *fuseops.UnlinkOp) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent := fs.store.get(op.Parent)
	if parent == nil {
		op.Respond(EBADF)
		return
	}

	h := op.Header()
	if !canWrite(parent.attrs.mode, parent.attrs.uid, parent.attrs.gid, h.Uid, h.Gid) {
		op.Respond(EACCES)
		return
	}

	dir := parent.asDir()
	idx, ok := dir.findChild(fs.store, op.Name)
	if ok {
		childNum := dir.children[idx]
		dir.children = append(dir.children[:idx], dir.children[idx+1:]...)
		fs.store.remove(childNum)
	}

	fs.touch(parent)
	fs.store.put(parent)
	op.Respond(nil)
}

// CreateFile implements spec §4.5's create handler.
func (fs *FileSystem) CreateFile(op *fuseops.CreateFileOp) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent := fs.store.get(op.Parent)
	if parent == nil {
		op.Respond(EEXIST)
		return
	}

	parent.asDir()
	fullPath := joinPath(parent.path, op.Name)
	if existing := fs.store.getByPath(fullPath); existing != nil {
		op.Respond(EEXIST)
		return
	}

	canR, canW, err := parseAccessFlags(uint32(op.Flags))
	if err != nil {
		op.Respond(err)
		return
	}

	h := op.Header()
	if !canWrite(parent.attrs.mode, parent.attrs.uid, parent.attrs.gid, h.Uid, h.Gid) {
		op.Respond(EACCES)
		return
	}

	fs.touch(parent)
	fs.store.put(parent)

	mode := op.Mode & 0xFFFF
	child := fs.store.newInode(kindRegular, parent.num, parent.path, op.Name, mode, 0, h.Uid, h.Gid)

	op.Entry = fs.childEntry(child)
	op.Entry.AttributesExpiration = time.Time{}
	op.Entry.EntryExpiration = time.Time{}
	op.Handle = fs.handles.allocate(child.num, canR, canW)
	op.Respond(nil)
}

// Rename implements spec §4.5's rename handler.
func (fs *FileSystem) Rename(op *fuseops.RenameOp) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	oldParent := fs.store.get(op.OldParent)
	newParent := fs.store.get(op.NewParent)
	if oldParent == nil || newParent == nil {
		op.Respond(EPERM)
		return
	}

	srcPath := joinPath(oldParent.path, op.OldName)
	src := fs.store.getByPath(srcPath)
	if src == nil {
		op.Respond(EPERM)
		return
	}

	dstPath := joinPath(newParent.path, op.NewName)
	if existing := fs.store.getByPath(dstPath); existing != nil {
		op.Respond(EINVAL)
		return
	}

	h := op.Header()
	if !canRead(src.attrs.mode, src.attrs.uid, src.attrs.gid, h.Uid, h.Gid) {
		op.Respond(EPERM)
		return
	}
	if !canWrite(newParent.attrs.mode, newParent.attrs.uid, newParent.attrs.gid, h.Uid, h.Gid) {
		op.Respond(EPERM)
		return
	}

	now := fs.now()
	src.attrs.mtime = now
	src.attrs.atime = now
	oldParent.attrs.mtime = now
	oldParent.attrs.atime = now
	newParent.attrs.mtime = now
	newParent.attrs.atime = now

	// A same-directory rename leaves the entry where it is, so the directory's
	// order is preserved.
	oldDir := oldParent.asDir()
	if oldParent != newParent {
		if idx, ok := oldDir.findChild(fs.store, op.OldName); ok {
			oldDir.children = append(oldDir.children[:idx], oldDir.children[idx+1:]...)
		}
	}

	newDir := newParent.asDir()
	present := false
	for _, c := range newDir.children {
		if c == src.num {
			present = true
			break
		}
	}
	if !present {
		newDir.children = append(newDir.children, src.num)
	}

	src.parent = newParent.num
	src.name = op.NewName
	src.path = dstPath

	fs.store.put(src)
	fs.store.put(oldParent)
	fs.store.put(newParent)

	op.Respond(nil)
}

// CreateSymlink implements spec §4.5's symlink handler.
func (fs *FileSystem) CreateSymlink(op *fuseops.CreateSymlinkOp) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent := fs.store.get(op.Parent)
	if parent == nil {
		op.Respond(EPERM)
		return
	}

	h := op.Header()
	if !canWrite(parent.attrs.mode, parent.attrs.uid, parent.attrs.gid, h.Uid, h.Gid) {
		op.Respond(EACCES)
		return
	}

	var targetIno fuseops.InodeID
	var targetPath string
	if resolvedTarget := fs.store.getByPath("/" + op.Target); resolvedTarget != nil {
		targetIno = resolvedTarget.num
		targetPath = strings.TrimSuffix(fs.mountPoint, "/") + "/" + strings.TrimPrefix(resolvedTarget.path, "/")
	} else {
		targetIno = 0
		targetPath = op.Target
	}

	link := fs.store.newInode(kindSymlink, parent.num, parent.path, op.Name, os.ModeSymlink|0777, uint64(len(op.Target)), h.Uid, h.Gid)
	link.target = targetIno
	link.targetPath = targetPath

	op.Entry = fs.childEntry(link)
	op.Respond(nil)
}

// ReadSymlink implements spec §4.5's readlink handler.
func (fs *FileSystem) ReadSymlink(op *fuseops.ReadSymlinkOp) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	link := fs.store.get(op.Inode)
	if link == nil || !link.isSymlink() {
		op.Respond(ENOSYS)
		return
	}

	resolved := fs.store.resolveSymlink(link)
	if resolved == nil {
		op.Respond(ENOSYS)
		return
	}

	h := op.Header()
	if !canRead(resolved.attrs.mode, resolved.attrs.uid, resolved.attrs.gid, h.Uid, h.Gid) {
		op.Respond(EACCES)
		return
	}

	op.Target = link.asSymlink().targetPath
	op.Respond(nil)
}

func joinPath(parentPath, name string) string {
	if parentPath == "/" {
		return "/" + name
	}
	return parentPath + "/" + name
}

// resizeData truncates or zero-extends a regular file's data to size bytes
// (spec §4.5's setattr size field).
func (in *inode) resizeData(size uint64) {
	f := in.asFile()
	if uint64(len(f.data)) == size {
		return
	}
	grown := make([]byte, size)
	copy(grown, f.data)
	f.data = grown
}
