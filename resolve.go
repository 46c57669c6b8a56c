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
	"strings"

	"github.com/jacobsa/vfs/vfsattr"
)

// Permission class bits interpreted against the single implicit subject
// this core supports (no uid/gid/ACL enforcement, per spec.md §1
// Non-goals): the owner rwx triplet, i.e. the top three permission bits.
const (
	permRead    = 0400
	permWrite   = 0200
	permExecute = 0100
)

func hasPerm(in *inode, bit vfsattr.Mode) bool {
	return in.attrs.Mode.Perm()&bit != 0
}

// resolveState threads the shared follow counter through the resolver's
// recursion, per design note: "pass the counter explicitly rather than
// maintaining hidden state".
type resolveState struct {
	follows int
}

// resolve implements §4.4's path resolution contract: walk path component
// by component from either root or cwd, following symlinks (budgeted),
// checking execute permission on traversed directories, and returning the
// target inode, its parent directory (when wantParent or needed to retry a
// create), and an error.
//
// followTerminal controls whether a symlink at the final component is
// itself followed once more.
func (e *Engine) resolve(
	path string,
	wantParent bool,
	followTerminal bool,
	st *resolveState,
) (target *inode, parent *inode, err error) {
	if len(path) == 0 {
		return nil, nil, ENOENT
	}
	if len(path) >= vfsattr.PathMax {
		return nil, nil, ENAMETOOLONG
	}

	var cur, curParent *inode
	if path[0] == '/' {
		cur = e.root
		curParent = e.root
	} else {
		cur = e.cwdIno
		curParent = e.cwdParent
	}

	comps := strings.Split(path, "/")
	// Split on "/" turns a leading "/" into a leading "" component and a
	// trailing "/" into a trailing "" component; both are walk artifacts we
	// discard (a trailing slash only matters for the "must be a directory"
	// check below).
	trailingSlash := strings.HasSuffix(path, "/")
	var parts []string
	for _, c := range comps {
		if c == "" {
			continue
		}
		parts = append(parts, c)
	}

	if len(parts) == 0 {
		// path was "/" (or a run of slashes): resolves to root itself.
		return cur, curParent, nil
	}

	for i, name := range parts {
		last := i == len(parts)-1

		if len(name) > vfsattr.NameMax {
			return nil, nil, ENAMETOOLONG
		}

		if !last {
			if !cur.isDir() {
				return nil, nil, ENOTDIR
			}
			if !hasPerm(cur, permExecute) {
				return nil, nil, EACCES
			}

			child, ok := lookupComponent(cur, name)
			if !ok {
				return nil, nil, ENOENT
			}

			curParent = cur
			cur = child

			if cur.isSymlink() {
				cur, err = e.followSymlink(cur, st)
				if err != nil {
					return nil, nil, err
				}
			}
			continue
		}

		// Final component.
		if !cur.isDir() {
			return nil, nil, ENOTDIR
		}

		if wantParent {
			parent = cur
		}

		if !hasPerm(cur, permExecute) {
			return nil, nil, EACCES
		}

		child, ok := lookupComponent(cur, name)
		if !ok {
			if wantParent {
				return nil, parent, ENOENT
			}
			return nil, nil, ENOENT
		}

		if trailingSlash && !child.isDir() && !child.isSymlink() {
			return nil, parent, ENOTDIR
		}

		if child.isSymlink() && (followTerminal || trailingSlash) {
			resolved, err := e.followSymlink(child, st)
			if err != nil {
				return nil, parent, err
			}
			child = resolved
			if trailingSlash && !child.isDir() {
				return nil, parent, ENOTDIR
			}
		}

		target = child
	}

	return target, parent, nil
}

// lookupComponent looks up "." and ".." as well as ordinary children, since
// the pinned entries are indistinguishable from user entries once stored.
func lookupComponent(dir *inode, name string) (*inode, bool) {
	switch name {
	case ".":
		return dir, true
	case "..":
		return dir.parent(), true
	default:
		return dir.lookupChild(name)
	}
}

// followSymlink resolves a symlink's stored resolved target, sharing st's
// follow counter across the recursion per design note.
func (e *Engine) followSymlink(link *inode, st *resolveState) (*inode, error) {
	st.follows++
	if st.follows > vfsattr.MaxFollowCount {
		return nil, ELOOP
	}

	target, _, err := e.resolve(link.resolvedTarget, false, true, st)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ENOENT
	}
	return target, nil
}

// resolvePath is the public entry point used by operation handlers: it
// allocates a fresh follow-counter state for a top-level call.
func (e *Engine) resolvePath(path string, wantParent, followTerminal bool) (*inode, *inode, error) {
	st := &resolveState{}
	return e.resolve(path, wantParent, followTerminal, st)
}

// withDirFD redirects the implicit cwd to dirfd's inode for the duration of
// fn, for *at-style calls. dirfd must refer to a directory: any other fd
// yields ENOTDIR, also when the caller passed AT_EMPTY_PATH, so the
// AT_EMPTY_PATH branches of Statx, Utimensat and Linkat reach
// resolveAtEmptyPath only for AT_FDCWD or a directory fd. dirfd ==
// vfsattr.AT_FDCWD leaves the real cwd in place.
func (e *Engine) withDirFD(dirfd int, fn func() error) error {
	if dirfd == vfsattr.AT_FDCWD {
		return fn()
	}

	f, ok := e.fds.lookup(dirfd)
	if !ok {
		return EBADF
	}
	if !f.isDir {
		return ENOTDIR
	}

	savedIno, savedParent := e.cwdIno, e.cwdParent
	e.cwdIno = f.ino
	e.cwdParent = f.ino.parent()
	defer func() { e.cwdIno, e.cwdParent = savedIno, savedParent }()

	return fn()
}

// resolveAtEmptyPath resolves the special case of an *at call made with an
// empty path and AT_EMPTY_PATH set: the target is dirfd's inode directly,
// with no path walk at all.
func (e *Engine) resolveAtEmptyPath(dirfd int) (*inode, error) {
	if dirfd == vfsattr.AT_FDCWD {
		return e.cwdIno, nil
	}
	f, ok := e.fds.lookup(dirfd)
	if !ok {
		return nil, EBADF
	}
	return f.ino, nil
}
