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
	"context"

	"github.com/jacobsa/vfs/vfsattr"
)

// Open implements open(2)/openat(2), relative to the engine's cwd. See
// Openat for the *at-redirecting variant and spec.md §4.6's contract
// table.
func (e *Engine) Open(ctx context.Context, path string, flags vfsattr.OpenFlags, mode vfsattr.Mode) (fdnum int, err error) {
	return e.Openat(ctx, vfsattr.AT_FDCWD, path, flags, mode)
}

func (e *Engine) Openat(ctx context.Context, dirfd int, path string, flags vfsattr.OpenFlags, mode vfsattr.Mode) (fdnum int, err error) {
	err = e.withLock(ctx, "Openat", func() error {
		if !flags.Known() {
			return EINVAL
		}
		return e.withDirFD(dirfd, func() error {
			var n int
			n, err := e.openLocked(path, flags, mode)
			fdnum = n
			return err
		})
	})
	return fdnum, err
}

func (e *Engine) openLocked(path string, flags vfsattr.OpenFlags, mode vfsattr.Mode) (int, error) {
	if flags&vfsattr.O_TMPFILE == vfsattr.O_TMPFILE {
		return e.openTmpfileLocked(path, flags, mode)
	}

	followTerminal := flags&vfsattr.O_NOFOLLOW == 0 && flags&vfsattr.O_EXCL == 0
	target, parent, err := e.resolvePath(path, true, followTerminal)

	switch {
	case err == ENOENT && flags&vfsattr.O_CREAT != 0:
		if parent == nil {
			return 0, ENOENT
		}
		name, perr := lastComponent(path)
		if perr != nil {
			return 0, perr
		}
		if !hasPerm(parent, permWrite) {
			return 0, EACCES
		}
		child := newRegularInode(0, e.applyUmask(mode.Perm()), e.clock.Now())
		if aerr := e.allocInode(child); aerr != nil {
			return 0, EIO
		}
		parent.pushChild(name, child)
		e.touchCtimeMtime(parent)
		target = child

	case err != nil:
		return 0, err

	default:
		if flags&vfsattr.O_CREAT != 0 && flags&vfsattr.O_EXCL != 0 {
			return 0, EEXIST
		}
		if flags&vfsattr.O_NOFOLLOW != 0 && target.isSymlink() {
			return 0, ELOOP
		}
	}

	if flags&vfsattr.O_DIRECTORY != 0 && !target.isDir() {
		return 0, ENOTDIR
	}
	if target.isDir() && flags.Writable() {
		return 0, EISDIR
	}

	if flags.Writable() && target.isRegular() && flags&vfsattr.O_TRUNC != 0 {
		target.data.TruncateData(0)
		target.attrs.Size = 0
		e.touchCtimeMtime(target)
	}

	st := openFlagsState{
		writable: flags.Writable(),
		readable: flags.Readable(),
		append:   flags&vfsattr.O_APPEND != 0,
		noAtime:  flags&vfsattr.O_NOATIME != 0,
	}
	f := e.fds.push(target, st, target.isDir())
	return f.num, nil
}

// openTmpfileLocked implements O_TMPFILE: path must resolve to a
// directory, and an anonymous regular inode is created reachable only
// through the returned FD (§4.6).
func (e *Engine) openTmpfileLocked(path string, flags vfsattr.OpenFlags, mode vfsattr.Mode) (int, error) {
	dir, _, err := e.resolvePath(path, false, true)
	if err != nil {
		return 0, err
	}
	if !dir.isDir() {
		return 0, ENOTDIR
	}
	if !hasPerm(dir, permWrite) {
		return 0, EACCES
	}

	in := newRegularInode(0, e.applyUmask(mode.Perm()), e.clock.Now())
	in.attrs.Nlink = 0
	if aerr := e.allocInode(in); aerr != nil {
		return 0, EIO
	}

	st := openFlagsState{
		writable: flags.Writable(),
		readable: flags.Readable(),
		noAtime:  flags&vfsattr.O_NOATIME != 0,
	}
	f := e.fds.push(in, st, false)
	return f.num, nil
}

// Close implements close(2): releases the FD, reclaiming the inode if it
// has become unreferenced (§4.5).
func (e *Engine) Close(ctx context.Context, fdnum int) error {
	return e.withLock(ctx, "Close", func() error {
		in := e.fds.remove(fdnum)
		if in == nil {
			return EBADF
		}
		e.reclaimIfUnused(in)
		return nil
	})
}

// CloseRange implements close_range(2): removes every fd whose number
// lies in [lo, hi], reclaiming any inode left unreferenced.
func (e *Engine) CloseRange(ctx context.Context, lo, hi int) error {
	return e.withLock(ctx, "CloseRange", func() error {
		if lo > hi {
			return EINVAL
		}
		for _, in := range e.fds.closeRange(lo, hi) {
			e.reclaimIfUnused(in)
		}
		return nil
	})
}

// Mkdir implements mkdir(2)/mkdirat(2).
func (e *Engine) Mkdir(ctx context.Context, path string, mode vfsattr.Mode) error {
	return e.Mkdirat(ctx, vfsattr.AT_FDCWD, path, mode)
}

func (e *Engine) Mkdirat(ctx context.Context, dirfd int, path string, mode vfsattr.Mode) error {
	return e.withLock(ctx, "Mkdirat", func() error {
		return e.withDirFD(dirfd, func() error {
			_, parent, err := e.resolvePath(path, true, false)
			if err == nil {
				return EEXIST
			}
			if err != ENOENT || parent == nil {
				return err
			}
			name, nerr := lastComponent(path)
			if nerr != nil {
				return nerr
			}
			if !hasPerm(parent, permWrite) {
				return EACCES
			}

			child := newDirInode(0, e.applyUmask(mode.Perm()), e.clock.Now())
			if aerr := e.allocInode(child); aerr != nil {
				return EIO
			}
			child.dotEntry().ino = child
			child.dotdotEntry().ino = parent

			parent.pushChild(name, child)
			parent.attrs.Nlink++
			e.touchCtimeMtime(parent)
			return nil
		})
	})
}

// Mknod implements mknod(2), restricted to regular files: device, fifo,
// and socket inode types are out of this engine's scope (SPEC_FULL.md §3).
func (e *Engine) Mknod(ctx context.Context, path string, mode vfsattr.Mode) error {
	return e.Mknodat(ctx, vfsattr.AT_FDCWD, path, mode)
}

func (e *Engine) Mknodat(ctx context.Context, dirfd int, path string, mode vfsattr.Mode) error {
	return e.withLock(ctx, "Mknodat", func() error {
		return e.withDirFD(dirfd, func() error {
			if mode.Type() != 0 && mode.Type() != vfsattr.ModeRegular {
				return EOPNOTSUPP
			}
			_, parent, err := e.resolvePath(path, true, false)
			if err == nil {
				return EEXIST
			}
			if err != ENOENT || parent == nil {
				return err
			}
			name, nerr := lastComponent(path)
			if nerr != nil {
				return nerr
			}
			if !hasPerm(parent, permWrite) {
				return EACCES
			}

			child := newRegularInode(0, e.applyUmask(mode.Perm()), e.clock.Now())
			if aerr := e.allocInode(child); aerr != nil {
				return EIO
			}
			parent.pushChild(name, child)
			e.touchCtimeMtime(parent)
			return nil
		})
	})
}

// Symlink implements symlink(2)/symlinkat(2). The resolved-target string
// stored alongside the raw target is computed against the engine's cwd at
// creation time, per §3's Symlink data model.
func (e *Engine) Symlink(ctx context.Context, target, linkpath string) error {
	return e.Symlinkat(ctx, target, vfsattr.AT_FDCWD, linkpath)
}

func (e *Engine) Symlinkat(ctx context.Context, target string, dirfd int, linkpath string) error {
	return e.withLock(ctx, "Symlinkat", func() error {
		return e.withDirFD(dirfd, func() error {
			if len(target) == 0 {
				return EINVAL
			}
			_, parent, err := e.resolvePath(linkpath, true, false)
			if err == nil {
				return EEXIST
			}
			if err != ENOENT || parent == nil {
				return err
			}
			name, nerr := lastComponent(linkpath)
			if nerr != nil {
				return nerr
			}
			if !hasPerm(parent, permWrite) {
				return EACCES
			}

			resolved := target
			if len(target) > 0 && target[0] != '/' {
				resolved = e.cwdPath + "/" + target
			}

			child := newSymlinkInode(0, target, resolved, e.clock.Now())
			if aerr := e.allocInode(child); aerr != nil {
				return EIO
			}
			parent.pushChild(name, child)
			e.touchCtimeMtime(parent)
			return nil
		})
	})
}

// lastComponent extracts the final path component for create-class ops
// (the resolver already validated length/ENAMETOOLONG along the way; this
// just re-derives the name rather than threading it back out of resolve).
func lastComponent(path string) (string, error) {
	i := len(path) - 1
	for i >= 0 && path[i] == '/' {
		i--
	}
	if i < 0 {
		return "", EINVAL
	}
	end := i + 1
	for i >= 0 && path[i] != '/' {
		i--
	}
	name := path[i+1 : end]
	if name == "." || name == ".." {
		return "", EEXIST
	}
	if len(name) > vfsattr.NameMax {
		return "", ENAMETOOLONG
	}
	return name, nil
}
