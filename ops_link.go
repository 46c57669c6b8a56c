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

// Link implements link(2)/linkat(2): creates a new entry pointing to an
// existing inode. Directories cannot be hard-linked (§4.6).
func (e *Engine) Link(ctx context.Context, oldpath, newpath string) error {
	return e.Linkat(ctx, vfsattr.AT_FDCWD, oldpath, vfsattr.AT_FDCWD, newpath, 0)
}

func (e *Engine) Linkat(ctx context.Context, olddirfd int, oldpath string, newdirfd int, newpath string, flags vfsattr.AtFlags) error {
	return e.withLock(ctx, "Linkat", func() error {
		if !flags.KnownForLink() {
			return EINVAL
		}

		var src *inode
		var err error
		err = e.withDirFD(olddirfd, func() error {
			if oldpath == "" && flags&vfsattr.AT_EMPTY_PATH != 0 {
				src, err = e.resolveAtEmptyPath(olddirfd)
				return err
			}
			src, _, err = e.resolvePath(oldpath, false, flags&vfsattr.AT_SYMLINK_FOLLOW != 0)
			return err
		})
		if err != nil {
			return err
		}
		if src.isDir() {
			return EPERM
		}

		return e.withDirFD(newdirfd, func() error {
			_, parent, perr := e.resolvePath(newpath, true, false)
			if perr == nil {
				return EEXIST
			}
			if perr != ENOENT || parent == nil {
				return perr
			}
			name, nerr := lastComponent(newpath)
			if nerr != nil {
				return nerr
			}
			if !hasPerm(parent, permWrite) {
				return EACCES
			}

			parent.pushChild(name, src)
			src.attrs.Nlink++
			e.touchCtime(src)
			e.touchCtimeMtime(parent)
			return nil
		})
	})
}

// Unlink implements unlink(2)/unlinkat(2). AT_REMOVEDIR requires the
// target be an empty directory (exactly two entries) and not the root.
// A non-directory that is still open stays usable through its descriptors
// and is reclaimed when the last of them closes.
func (e *Engine) Unlink(ctx context.Context, path string) error {
	return e.Unlinkat(ctx, vfsattr.AT_FDCWD, path, 0)
}

// Rmdir is rmdir(2), equivalent to Unlinkat(..., AT_REMOVEDIR).
func (e *Engine) Rmdir(ctx context.Context, path string) error {
	return e.Unlinkat(ctx, vfsattr.AT_FDCWD, path, vfsattr.AT_REMOVEDIR)
}

func (e *Engine) Unlinkat(ctx context.Context, dirfd int, path string, flags vfsattr.AtFlags) error {
	return e.withLock(ctx, "Unlinkat", func() error {
		if !flags.KnownForUnlink() {
			return EINVAL
		}
		return e.withDirFD(dirfd, func() error {
			target, parent, err := e.resolvePath(path, true, false)
			if err != nil {
				return err
			}
			name, nerr := lastComponent(path)
			if nerr != nil {
				return nerr
			}
			if !hasPerm(parent, permWrite) {
				return EACCES
			}

			wantDir := flags&vfsattr.AT_REMOVEDIR != 0
			if wantDir != target.isDir() {
				if target.isDir() {
					return EISDIR
				}
				return ENOTDIR
			}

			if wantDir {
				if target == e.root {
					return EBUSY
				}
				if target.childCount() != 0 {
					return ENOTEMPTY
				}
				if e.fds.referencesInode(target) {
					return EBUSY
				}
				parent.removeChild(name)
				target.attrs.Nlink--
				parent.attrs.Nlink--
			} else {
				parent.removeChild(name)
				target.attrs.Nlink--
			}

			e.touchCtimeMtime(parent)
			e.reclaimIfUnused(target)
			return nil
		})
	})
}

// Readlink implements readlink(2)/readlinkat(2): returns the raw target
// verbatim, never following it.
func (e *Engine) Readlink(ctx context.Context, path string) (target string, err error) {
	return e.Readlinkat(ctx, vfsattr.AT_FDCWD, path)
}

func (e *Engine) Readlinkat(ctx context.Context, dirfd int, path string) (target string, err error) {
	err = e.withLock(ctx, "Readlinkat", func() error {
		return e.withDirFD(dirfd, func() error {
			in, _, rerr := e.resolvePath(path, false, false)
			if rerr != nil {
				return rerr
			}
			if !in.isSymlink() {
				return EINVAL
			}
			target = in.rawTarget
			return nil
		})
	})
	return target, err
}

// Rename implements rename(2); see Renameat2 for the flag-accepting form.
func (e *Engine) Rename(ctx context.Context, oldpath, newpath string) error {
	return e.Renameat2(ctx, vfsattr.AT_FDCWD, oldpath, vfsattr.AT_FDCWD, newpath, 0)
}

func (e *Engine) Renameat2(ctx context.Context, olddirfd int, oldpath string, newdirfd int, newpath string, flags vfsattr.RenameFlags) error {
	return e.withLock(ctx, "Renameat2", func() error {
		if !flags.Known() {
			return EINVAL
		}
		if flags&vfsattr.RENAME_NOREPLACE != 0 && flags&vfsattr.RENAME_EXCHANGE != 0 {
			return EINVAL
		}

		oldName, nerr := lastComponent(oldpath)
		if nerr != nil {
			return nerr
		}
		newName, nerr2 := lastComponent(newpath)
		if nerr2 != nil {
			return nerr2
		}

		var oldParent, newParent, oldTarget, newTarget *inode
		err := e.withDirFD(olddirfd, func() error {
			var rerr error
			oldTarget, oldParent, rerr = e.resolvePath(oldpath, true, false)
			return rerr
		})
		if err != nil {
			return err
		}

		err = e.withDirFD(newdirfd, func() error {
			target, parent, rerr := e.resolvePath(newpath, true, false)
			newParent = parent
			if rerr != nil && rerr != ENOENT {
				return rerr
			}
			newTarget = target
			return nil
		})
		if err != nil {
			return err
		}

		if oldParent == nil || newParent == nil {
			return ENOENT
		}
		if !hasPerm(oldParent, permWrite) || !hasPerm(newParent, permWrite) {
			return EACCES
		}

		// Idempotent no-op rename (§8 testable property).
		if oldParent == newParent && oldName == newName {
			return nil
		}

		if flags&vfsattr.RENAME_EXCHANGE != 0 {
			if newTarget == nil {
				return ENOENT
			}
			return e.renameExchange(oldParent, oldName, oldTarget, newParent, newName, newTarget)
		}

		if newTarget != nil {
			if flags&vfsattr.RENAME_NOREPLACE != 0 {
				return EEXIST
			}
			if oldTarget.isDir() != newTarget.isDir() {
				if oldTarget.isDir() {
					return ENOTDIR
				}
				return EISDIR
			}
			if newTarget.isDir() && newTarget.childCount() != 0 {
				return ENOTEMPTY
			}
		}

		if oldTarget.isDir() && oldTarget.isInSelf(newParent) {
			return EINVAL
		}

		if newTarget != nil {
			newParent.removeChild(newName)
			newTarget.attrs.Nlink--
			if newTarget.isDir() {
				newParent.attrs.Nlink--
			}
			e.reclaimIfUnused(newTarget)
		}

		oldParent.removeChild(oldName)
		newParent.pushChild(newName, oldTarget)

		if oldTarget.isDir() && oldParent != newParent {
			oldTarget.dotdotEntry().ino = newParent
			oldParent.attrs.Nlink--
			newParent.attrs.Nlink++
		}

		e.touchCtime(oldTarget)
		e.touchCtimeMtime(oldParent)
		e.touchCtimeMtime(newParent)
		return nil
	})
}

func (e *Engine) renameExchange(oldParent *inode, oldName string, oldTarget *inode, newParent *inode, newName string, newTarget *inode) error {
	if oldTarget.isDir() && oldTarget.isInSelf(newParent) {
		return EINVAL
	}
	if newTarget.isDir() && newTarget.isInSelf(oldParent) {
		return EINVAL
	}

	oldIdx, _ := oldParent.findChild(oldName)
	oldParent.entries[oldIdx].ino = newTarget
	newIdx, _ := newParent.findChild(newName)
	newParent.entries[newIdx].ino = oldTarget

	if oldTarget.isDir() && oldParent != newParent {
		oldTarget.dotdotEntry().ino = newParent
		newTarget.dotdotEntry().ino = oldParent
		oldParent.attrs.Nlink--
		newParent.attrs.Nlink++
		newParent.attrs.Nlink--
		oldParent.attrs.Nlink++
	}

	e.touchCtime(oldTarget)
	e.touchCtime(newTarget)
	e.touchCtimeMtime(oldParent)
	e.touchCtimeMtime(newParent)
	return nil
}

// Dup implements dup(2): duplicates fdnum onto the lowest free fd number,
// sharing the underlying inode and flags. The seek offset is copied at dup
// time rather than shared, since there is no separate open-file-description
// object: a later seek, read or write on one descriptor does not move the
// other's offset.
func (e *Engine) Dup(ctx context.Context, fdnum int) (newfd int, err error) {
	err = e.withLock(ctx, "Dup", func() error {
		f, ok := e.fds.lookup(fdnum)
		if !ok {
			return EBADF
		}
		nf := e.fds.push(f.ino, f.flags, f.isDir)
		nf.seek = f.seek
		newfd = nf.num
		return nil
	})
	return newfd, err
}

// Dup3 implements dup3(2): duplicates fdnum onto exactly newfdnum, closing
// any existing descriptor there first.
func (e *Engine) Dup3(ctx context.Context, fdnum, newfdnum int) error {
	return e.withLock(ctx, "Dup3", func() error {
		if fdnum == newfdnum {
			return EINVAL
		}
		f, ok := e.fds.lookup(fdnum)
		if !ok {
			return EBADF
		}
		if in := e.fds.remove(newfdnum); in != nil {
			e.reclaimIfUnused(in)
		}
		e.fds.pushAt(newfdnum, f.ino, f.flags, f.isDir, f.seek)
		return nil
	})
}
