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

import "sort"

// fd is a per-open-file record: the fd number, the inode it refers to, the
// flags it was opened with, and its seek offset (which Getdents uses as an
// entry index for a directory fd).
type fd struct {
	num   int
	ino   *inode
	flags openFlagsState
	seek  int64

	// isDir caches ino.isDir() at open time, since a directory fd never
	// changes kind.
	isDir bool
}

// openFlagsState is the subset of open(2) flags that persist for the
// lifetime of the descriptor (access mode, append, no-atime); O_CREAT,
// O_EXCL, O_TRUNC are one-shot and not retained.
type openFlagsState struct {
	writable bool
	readable bool
	append   bool
	noAtime  bool
}

// fdTable assigns fd numbers by the same lowest-free-id discipline as the
// inode table (§4.5), keeping the slice sorted by fd number.
type fdTable struct {
	fds []*fd
}

func (t *fdTable) push(in *inode, flags openFlagsState, isDir bool) *fd {
	num := 0
	for i, f := range t.fds {
		if f.num != i {
			break
		}
		num = i + 1
	}

	f := &fd{num: num, ino: in, flags: flags, isDir: isDir}
	in.fdRefs++

	i := sort.Search(len(t.fds), func(i int) bool { return t.fds[i].num >= num })
	t.fds = append(t.fds, nil)
	copy(t.fds[i+1:], t.fds[i:])
	t.fds[i] = f
	return f
}

// pushAt inserts a fd at exactly num, for dup3(2); the caller must have
// already removed any existing fd at num.
func (t *fdTable) pushAt(num int, in *inode, flags openFlagsState, isDir bool, seek int64) *fd {
	f := &fd{num: num, ino: in, flags: flags, isDir: isDir, seek: seek}
	in.fdRefs++

	i := sort.Search(len(t.fds), func(i int) bool { return t.fds[i].num >= num })
	t.fds = append(t.fds, nil)
	copy(t.fds[i+1:], t.fds[i:])
	t.fds[i] = f
	return f
}

func (t *fdTable) lookup(num int) (*fd, bool) {
	i := sort.Search(len(t.fds), func(i int) bool { return t.fds[i].num >= num })
	if i < len(t.fds) && t.fds[i].num == num {
		return t.fds[i], true
	}
	return nil, false
}

// remove deletes the fd, decrementing the owning inode's reference count.
// Returns the inode so the caller can decide whether to reclaim it (§4.5:
// if the owning inode has zero links, it is reclaimed too).
func (t *fdTable) remove(num int) *inode {
	i := sort.Search(len(t.fds), func(i int) bool { return t.fds[i].num >= num })
	if i >= len(t.fds) || t.fds[i].num != num {
		return nil
	}
	in := t.fds[i].ino
	in.fdRefs--
	t.fds = append(t.fds[:i], t.fds[i+1:]...)
	return in
}

// closeRange removes every fd whose number lies in [lo, hi], returning
// their owning inodes for reclaim checks.
func (t *fdTable) closeRange(lo, hi int) []*inode {
	var removed []*inode
	var kept []*fd
	for _, f := range t.fds {
		if f.num >= lo && f.num <= hi {
			f.ino.fdRefs--
			removed = append(removed, f.ino)
		} else {
			kept = append(kept, f)
		}
	}
	t.fds = kept
	return removed
}

func (t *fdTable) referencesInode(in *inode) bool {
	return in.fdRefs > 0
}
