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
	"strings"
	"time"

	"github.com/jacobsa/vfs/vfsattr"
)

func timeFromSpec(sec, nsec int64) time.Time {
	return time.Unix(sec, nsec)
}

// Stat implements stat(2): resolves path following a terminal symlink.
func (e *Engine) Stat(ctx context.Context, path string) (attrs vfsattr.Attributes, err error) {
	err = e.withLock(ctx, "Stat", func() error {
		in, _, rerr := e.resolvePath(path, false, true)
		if rerr != nil {
			return rerr
		}
		attrs = in.attrs
		return nil
	})
	return attrs, err
}

// Lstat implements lstat(2): does not follow a terminal symlink.
func (e *Engine) Lstat(ctx context.Context, path string) (attrs vfsattr.Attributes, err error) {
	err = e.withLock(ctx, "Lstat", func() error {
		in, _, rerr := e.resolvePath(path, false, false)
		if rerr != nil {
			return rerr
		}
		attrs = in.attrs
		return nil
	})
	return attrs, err
}

// Fstat implements fstat(2): projects the attributes of the inode an
// already-open fd refers to.
func (e *Engine) Fstat(ctx context.Context, fdnum int) (attrs vfsattr.Attributes, err error) {
	err = e.withLock(ctx, "Fstat", func() error {
		f, ok := e.fds.lookup(fdnum)
		if !ok {
			return EBADF
		}
		attrs = f.ino.attrs
		return nil
	})
	return attrs, err
}

// Statx implements statx(2): like Stat/Lstat, but the caller also supplies
// dirfd/flags and a field mask; unrequested fields are left zeroed in the
// result rather than computed, matching statx's selective-population
// contract.
func (e *Engine) Statx(ctx context.Context, dirfd int, path string, flags vfsattr.AtFlags, mask vfsattr.StatxMask) (attrs vfsattr.Attributes, err error) {
	err = e.withLock(ctx, "Statx", func() error {
		if !flags.KnownForStat() {
			return EINVAL
		}
		return e.withDirFD(dirfd, func() error {
			var in *inode
			var rerr error
			if path == "" && flags&vfsattr.AT_EMPTY_PATH != 0 {
				in, rerr = e.resolveAtEmptyPath(dirfd)
			} else {
				in, _, rerr = e.resolvePath(path, false, flags&vfsattr.AT_SYMLINK_NOFOLLOW == 0)
			}
			if rerr != nil {
				return rerr
			}

			var out vfsattr.Attributes
			if mask&vfsattr.STATX_INO != 0 {
				out.Ino = in.attrs.Ino
			}
			if mask&vfsattr.STATX_SIZE != 0 {
				out.Size = in.attrs.Size
			}
			if mask&vfsattr.STATX_NLINK != 0 {
				out.Nlink = in.attrs.Nlink
			}
			if mask&(vfsattr.STATX_TYPE|vfsattr.STATX_MODE) != 0 {
				out.Mode = in.attrs.Mode
			}
			if mask&vfsattr.STATX_BTIME != 0 {
				out.Birth = in.attrs.Birth
			}
			if mask&vfsattr.STATX_CTIME != 0 {
				out.Ctime = in.attrs.Ctime
			}
			if mask&vfsattr.STATX_MTIME != 0 {
				out.Mtime = in.attrs.Mtime
			}
			if mask&vfsattr.STATX_ATIME != 0 {
				out.Atime = in.attrs.Atime
			}
			attrs = out
			return nil
		})
	})
	return attrs, err
}

// Chmod implements chmod(2)/fchmodat(2): replaces the permission bits only,
// preserving the type bits.
func (e *Engine) Chmod(ctx context.Context, path string, perm vfsattr.Mode) error {
	return e.Fchmodat(ctx, vfsattr.AT_FDCWD, path, perm, 0)
}

func (e *Engine) Fchmodat(ctx context.Context, dirfd int, path string, perm vfsattr.Mode, flags vfsattr.AtFlags) error {
	return e.withLock(ctx, "Fchmodat", func() error {
		return e.withDirFD(dirfd, func() error {
			in, _, err := e.resolvePath(path, false, flags&vfsattr.AT_SYMLINK_NOFOLLOW == 0)
			if err != nil {
				return err
			}
			in.attrs.Mode = in.attrs.Mode.Type() | perm.Perm()
			e.touchCtime(in)
			return nil
		})
	})
}

// Fchmod implements fchmod(2): chmod against an already-open fd.
func (e *Engine) Fchmod(ctx context.Context, fdnum int, perm vfsattr.Mode) error {
	return e.withLock(ctx, "Fchmod", func() error {
		f, ok := e.fds.lookup(fdnum)
		if !ok {
			return EBADF
		}
		f.ino.attrs.Mode = f.ino.attrs.Mode.Type() | perm.Perm()
		e.touchCtime(f.ino)
		return nil
	})
}

// Access implements access(2)/faccessat(2): checks the requested permission
// bits against the single implicit subject this core supports.
func (e *Engine) Access(ctx context.Context, path string, mode vfsattr.Mode) error {
	return e.Faccessat(ctx, vfsattr.AT_FDCWD, path, mode, 0)
}

func (e *Engine) Faccessat(ctx context.Context, dirfd int, path string, mode vfsattr.Mode, flags vfsattr.AtFlags) error {
	return e.withLock(ctx, "Faccessat", func() error {
		return e.withDirFD(dirfd, func() error {
			in, _, err := e.resolvePath(path, false, flags&vfsattr.AT_SYMLINK_NOFOLLOW == 0)
			if err != nil {
				return err
			}
			want := mode.Perm()
			if want&permRead != 0 && !hasPerm(in, permRead) {
				return EACCES
			}
			if want&permWrite != 0 && !hasPerm(in, permWrite) {
				return EACCES
			}
			if want&permExecute != 0 && !hasPerm(in, permExecute) {
				return EACCES
			}
			return nil
		})
	})
}

// Chdir implements chdir(2): resolves path (following symlinks), requires
// directory-ness, and replaces the engine's cwd with the absolute,
// normalized form of path alongside the resolved inode and its parent.
func (e *Engine) Chdir(ctx context.Context, path string) error {
	return e.withLock(ctx, "Chdir", func() error {
		in, _, err := e.resolvePath(path, false, true)
		if err != nil {
			return err
		}
		if !in.isDir() {
			return ENOTDIR
		}
		if !hasPerm(in, permExecute) {
			return EACCES
		}

		e.cwdPath = normalizeAbsolute(e.cwdPath, path)
		e.cwdIno = in
		e.cwdParent = in.parent()
		return nil
	})
}

// normalizeAbsolute computes the absolute, slash-collapsed form of path,
// resolved against base when path is relative. "." and ".." components are
// collapsed lexically; this is purely a string the engine carries for
// Symlink's relative-target resolution (§3), not a second path-resolution
// pass.
func normalizeAbsolute(base, path string) string {
	full := path
	if len(path) == 0 || path[0] != '/' {
		full = base + "/" + path
	}

	parts := strings.Split(full, "/")
	var out []string
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, p)
		}
	}

	return "/" + strings.Join(out, "/")
}

// Utimensat implements utimensat(2): UTIME_OMIT skips a field, UTIME_NOW
// sets it from the clock, any other value is taken as seconds.nanoseconds
// to set directly.
func (e *Engine) Utimensat(ctx context.Context, dirfd int, path string, atimeSec, atimeNsec, mtimeSec, mtimeNsec int64, flags vfsattr.AtFlags) error {
	return e.withLock(ctx, "Utimensat", func() error {
		return e.withDirFD(dirfd, func() error {
			var in *inode
			var err error
			if path == "" && flags&vfsattr.AT_EMPTY_PATH != 0 {
				in, err = e.resolveAtEmptyPath(dirfd)
			} else {
				in, _, err = e.resolvePath(path, false, flags&vfsattr.AT_SYMLINK_NOFOLLOW == 0)
			}
			if err != nil {
				return err
			}

			now := e.clock.Now()
			switch atimeNsec {
			case vfsattr.UTIME_OMIT:
			case vfsattr.UTIME_NOW:
				in.attrs.Atime = now
			default:
				in.attrs.Atime = timeFromSpec(atimeSec, atimeNsec)
			}
			switch mtimeNsec {
			case vfsattr.UTIME_OMIT:
			case vfsattr.UTIME_NOW:
				in.attrs.Mtime = now
			default:
				in.attrs.Mtime = timeFromSpec(mtimeSec, mtimeNsec)
			}
			in.attrs.Ctime = now
			return nil
		})
	})
}

// Statfs implements statfs(2)/fstatfs(2)'s minimal surface: this engine has
// no fixed backing capacity, so it reports sentinel values signaling
// "effectively unbounded" rather than fabricating a block count that means
// nothing for memory-backed storage.
type Statfs struct {
	BlockSize int64
	Blocks    uint64
	BlocksFree uint64
	Files     uint64
	FilesFree uint64
	NameMax   int64
}

func (e *Engine) Statfs(ctx context.Context, path string) (sfs Statfs, err error) {
	err = e.withLock(ctx, "Statfs", func() error {
		_, _, rerr := e.resolvePath(path, false, true)
		if rerr != nil {
			return rerr
		}
		sfs = Statfs{
			BlockSize:  4096,
			Blocks:     ^uint64(0),
			BlocksFree: ^uint64(0),
			Files:      uint64(e.inodes.len()),
			FilesFree:  ^uint64(0),
			NameMax:    vfsattr.NameMax,
		}
		return nil
	})
	return sfs, err
}
