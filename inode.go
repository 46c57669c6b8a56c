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

package vfs

import (
	"time"

	"github.com/jacobsa/vfs/vfsattr"
)

// dent is a directory entry: a (name, inode reference) pair. Slots 0 and 1
// hold the literal "." and ".." and never own their name string; every
// later slot owns an allocated name.
type dent struct {
	name string
	ino  *inode
}

// inode is the metadata+payload object for one file-system object, common
// across the three variants the engine supports. Every inode is one of
// Regular, Directory, or Symlink, distinguished by attrs.Mode.Type().
//
// INVARIANT: attrs.Mode.Type() is one of the three recognized type bits.
// INVARIANT: attrs.Size == regular file length; for a directory, the sum of
// its user entries' name lengths; 0 for a symlink.
// INVARIANT: len(entries) == 0 unless this is a directory.
// INVARIANT: entries[0] == (".", self); entries[1] == ("..", parent).
type inode struct {
	id  uint64 // stable for the inode's lifetime
	ndx int    // current slot index in the owning table

	attrs vfsattr.Attributes

	// Directory-only.
	entries []dent

	// Regular-file-only.
	data *regularPayload

	// Symlink-only: the raw target as given at creation (returned verbatim
	// by readlink), and the target resolved against the cwd at creation
	// time (used when following).
	rawTarget      string
	resolvedTarget string

	// Number of open file descriptors referencing this inode. Used for the
	// "unlinked but open" lifecycle (§3 invariant 6): a zero-link inode is
	// reclaimed the instant this reaches zero.
	fdRefs int
}

func newRegularInode(id uint64, mode vfsattr.Mode, now time.Time) *inode {
	return &inode{
		id: id,
		attrs: vfsattr.Attributes{
			Ino: id, Mode: mode, Nlink: 1,
			Birth: now, Ctime: now, Mtime: now, Atime: now,
		},
		data: &regularPayload{},
	}
}

func newDirInode(id uint64, mode vfsattr.Mode, now time.Time) *inode {
	in := &inode{
		id: id,
		attrs: vfsattr.Attributes{
			Ino: id, Mode: mode | vfsattr.ModeDir, Nlink: 2,
			Birth: now, Ctime: now, Mtime: now, Atime: now,
		},
	}
	in.entries = []dent{{name: "."}, {name: ".."}}
	return in
}

func newSymlinkInode(id uint64, raw, resolved string, now time.Time) *inode {
	return &inode{
		id: id,
		attrs: vfsattr.Attributes{
			Ino: id, Mode: vfsattr.ModeSymlink | 0777, Nlink: 1,
			Birth: now, Ctime: now, Mtime: now, Atime: now,
		},
		rawTarget:      raw,
		resolvedTarget: resolved,
	}
}

func (in *inode) isDir() bool     { return in.attrs.Mode.IsDir() }
func (in *inode) isRegular() bool { return in.attrs.Mode.IsRegular() }
func (in *inode) isSymlink() bool { return in.attrs.Mode.IsSymlink() }

// dotEntry / dotdotEntry return the pinned self/parent entries.
func (in *inode) dotEntry() *dent    { return &in.entries[0] }
func (in *inode) dotdotEntry() *dent { return &in.entries[1] }

func (in *inode) parent() *inode { return in.dotdotEntry().ino }

// checkInvariants enforces §3's universal invariants for a single inode; it
// is called from the engine's top-level checkInvariants under the coarse
// lock, the same layered-invariant-checking pattern syncutil.InvariantMutex
// is built to drive.
func (in *inode) checkInvariants() error {
	switch {
	case in.isDir():
		if len(in.entries) < 2 {
			return EIO
		}
		if in.entries[0].name != "." || in.entries[0].ino != in {
			return EIO
		}
		if in.entries[1].name != ".." {
			return EIO
		}
	case in.isRegular():
		if in.data == nil {
			return EIO
		}
		if err := in.data.checkInvariants(); err != nil {
			return err
		}
		if uint64(in.data.size) != in.attrs.Size {
			return EIO
		}
	case in.isSymlink():
		// Nothing further beyond the stored strings.
	default:
		return EIO
	}
	return nil
}

////////////////////////////////////////////////////////////////////////
// Directory entry management (§4.3)
////////////////////////////////////////////////////////////////////////

// findChild returns the index of the entry named name among the non-pinned
// slots, or ok=false.
func (in *inode) findChild(name string) (idx int, ok bool) {
	for i := 2; i < len(in.entries); i++ {
		if in.entries[i].name == name {
			return i, true
		}
	}
	return 0, false
}

func (in *inode) lookupChild(name string) (*inode, bool) {
	i, ok := in.findChild(name)
	if !ok {
		return nil, false
	}
	return in.entries[i].ino, true
}

// pushChild appends a new entry, increasing the directory's byte-size by
// len(name) per §4.3.
func (in *inode) pushChild(name string, child *inode) {
	in.entries = append(in.entries, dent{name: name, ino: child})
	in.attrs.Size += uint64(len(name))
}

// removeChild locates the entry by name, frees it, and shifts the tail.
func (in *inode) removeChild(name string) bool {
	i, ok := in.findChild(name)
	if !ok {
		return false
	}
	in.attrs.Size -= uint64(len(name))
	in.entries = append(in.entries[:i], in.entries[i+1:]...)
	return true
}

// childCount returns the number of user entries (excluding "." and "..").
func (in *inode) childCount() int { return len(in.entries) - 2 }

// isInSelf recursively checks whether any descendant entry's inode equals
// target, used to reject rename loops (§4.3, §4.6 rename cycle-avoidance).
func (in *inode) isInSelf(target *inode) bool {
	if in == target {
		return true
	}
	if !in.isDir() {
		return false
	}
	for i := 2; i < len(in.entries); i++ {
		child := in.entries[i].ino
		if child.isDir() && child.isInSelf(target) {
			return true
		}
		if child == target {
			return true
		}
	}
	return false
}
