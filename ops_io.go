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
	"math"

	"github.com/jacobsa/vfs/vfsattr"
)

func clampCount(n int64) int64 {
	if n > vfsattr.MaxRWCount {
		return vfsattr.MaxRWCount
	}
	return n
}

// checkWriteOverflow implements spec.md §4.6's "overflow of offset+count →
// EFBIG" rule for write-class calls.
func checkWriteOverflow(off int64, n int) error {
	if off > math.MaxInt64-int64(n) {
		return EFBIG
	}
	return nil
}

// Pread implements pread(2): a positioned read that doesn't touch the fd's
// seek offset.
func (e *Engine) Pread(ctx context.Context, fdnum int, buf []byte, off int64) (n int, err error) {
	err = e.withLock(ctx, "Pread", func() error {
		f, ok := e.fds.lookup(fdnum)
		if !ok {
			return EBADF
		}
		if f.isDir || !f.flags.readable {
			return EBADF
		}
		if off < 0 {
			return EINVAL
		}
		buf = buf[:clampCount(int64(len(buf)))]
		n = f.ino.data.ReadAt(buf, off)
		if !f.flags.noAtime {
			e.touchAtime(f.ino)
		}
		return nil
	})
	return n, err
}

// Read implements read(2): Pread at the fd's current offset, then advances
// it by the number of bytes copied.
func (e *Engine) Read(ctx context.Context, fdnum int, buf []byte) (n int, err error) {
	err = e.withLock(ctx, "Read", func() error {
		f, ok := e.fds.lookup(fdnum)
		if !ok {
			return EBADF
		}
		if f.isDir || !f.flags.readable {
			return EBADF
		}
		buf = buf[:clampCount(int64(len(buf)))]
		n = f.ino.data.ReadAt(buf, f.seek)
		f.seek += int64(n)
		if !f.flags.noAtime {
			e.touchAtime(f.ino)
		}
		return nil
	})
	return n, err
}

// Preadv implements preadv(2): scatter a positioned read across iovecs,
// advancing off between them but never touching the fd's seek offset.
func (e *Engine) Preadv(ctx context.Context, fdnum int, iovecs [][]byte, off int64) (n int, err error) {
	err = e.withLock(ctx, "Preadv", func() error {
		f, ok := e.fds.lookup(fdnum)
		if !ok {
			return EBADF
		}
		if f.isDir || !f.flags.readable {
			return EBADF
		}
		if off < 0 {
			return EINVAL
		}
		pos := off
		for _, iov := range iovecs {
			got := f.ino.data.ReadAt(iov, pos)
			n += got
			pos += int64(got)
			if got < len(iov) {
				break
			}
		}
		if !f.flags.noAtime {
			e.touchAtime(f.ino)
		}
		return nil
	})
	return n, err
}

// Readv implements readv(2): Preadv at, then advances, the fd's current
// offset.
func (e *Engine) Readv(ctx context.Context, fdnum int, iovecs [][]byte) (n int, err error) {
	err = e.withLock(ctx, "Readv", func() error {
		f, ok := e.fds.lookup(fdnum)
		if !ok {
			return EBADF
		}
		if f.isDir || !f.flags.readable {
			return EBADF
		}
		pos := f.seek
		for _, iov := range iovecs {
			got := f.ino.data.ReadAt(iov, pos)
			n += got
			pos += int64(got)
			if got < len(iov) {
				break
			}
		}
		f.seek = pos
		if !f.flags.noAtime {
			e.touchAtime(f.ino)
		}
		return nil
	})
	return n, err
}

// Pwrite implements pwrite(2). O_APPEND forces the write to the file's
// current end regardless of off, per open(2).
func (e *Engine) Pwrite(ctx context.Context, fdnum int, data []byte, off int64) (n int, err error) {
	err = e.withLock(ctx, "Pwrite", func() error {
		f, ok := e.fds.lookup(fdnum)
		if !ok {
			return EBADF
		}
		if f.isDir || !f.flags.writable {
			return EBADF
		}
		if off < 0 {
			return EINVAL
		}
		data = data[:clampCount(int64(len(data)))]
		if f.flags.append {
			off = int64(f.ino.attrs.Size)
		}
		if oerr := checkWriteOverflow(off, len(data)); oerr != nil {
			return oerr
		}
		got, werr := f.ino.data.WriteAt(data, off)
		if werr != nil {
			return werr
		}
		n = got
		changed := got > 0 || uint64(f.ino.data.size) != f.ino.attrs.Size
		f.ino.attrs.Size = uint64(f.ino.data.size)
		if changed {
			e.touchCtimeMtime(f.ino)
		}
		return nil
	})
	return n, err
}

// Write implements write(2): Pwrite at the fd's current offset (or the
// file's end under O_APPEND), then advances the offset.
func (e *Engine) Write(ctx context.Context, fdnum int, data []byte) (n int, err error) {
	err = e.withLock(ctx, "Write", func() error {
		f, ok := e.fds.lookup(fdnum)
		if !ok {
			return EBADF
		}
		if f.isDir || !f.flags.writable {
			return EBADF
		}
		data = data[:clampCount(int64(len(data)))]
		off := f.seek
		if f.flags.append {
			off = int64(f.ino.attrs.Size)
		}
		if oerr := checkWriteOverflow(off, len(data)); oerr != nil {
			return oerr
		}
		got, werr := f.ino.data.WriteAt(data, off)
		if werr != nil {
			return werr
		}
		n = got
		f.seek = off + int64(got)
		changed := got > 0 || uint64(f.ino.data.size) != f.ino.attrs.Size
		f.ino.attrs.Size = uint64(f.ino.data.size)
		if changed {
			e.touchCtimeMtime(f.ino)
		}
		return nil
	})
	return n, err
}

// Pwritev implements pwritev(2).
func (e *Engine) Pwritev(ctx context.Context, fdnum int, iovecs [][]byte, off int64) (n int, err error) {
	err = e.withLock(ctx, "Pwritev", func() error {
		f, ok := e.fds.lookup(fdnum)
		if !ok {
			return EBADF
		}
		if f.isDir || !f.flags.writable {
			return EBADF
		}
		if off < 0 {
			return EINVAL
		}
		pos := off
		if f.flags.append {
			pos = int64(f.ino.attrs.Size)
		}
		for _, iov := range iovecs {
			if oerr := checkWriteOverflow(pos, len(iov)); oerr != nil {
				if n == 0 {
					return oerr
				}
				break
			}
			got, werr := f.ino.data.WriteAt(iov, pos)
			n += got
			pos += int64(got)
			if werr != nil {
				break
			}
		}
		f.ino.attrs.Size = uint64(f.ino.data.size)
		e.touchCtimeMtime(f.ino)
		return nil
	})
	return n, err
}

// Writev implements writev(2).
func (e *Engine) Writev(ctx context.Context, fdnum int, iovecs [][]byte) (n int, err error) {
	err = e.withLock(ctx, "Writev", func() error {
		f, ok := e.fds.lookup(fdnum)
		if !ok {
			return EBADF
		}
		if f.isDir || !f.flags.writable {
			return EBADF
		}
		pos := f.seek
		if f.flags.append {
			pos = int64(f.ino.attrs.Size)
		}
		for _, iov := range iovecs {
			if oerr := checkWriteOverflow(pos, len(iov)); oerr != nil {
				if n == 0 {
					return oerr
				}
				break
			}
			got, werr := f.ino.data.WriteAt(iov, pos)
			n += got
			pos += int64(got)
			if werr != nil {
				break
			}
		}
		f.seek = pos
		f.ino.attrs.Size = uint64(f.ino.data.size)
		e.touchCtimeMtime(f.ino)
		return nil
	})
	return n, err
}

// Sendfile implements sendfile(2) restricted to this engine's own inodes on
// both ends (there is no host fd to splice to or from; see SPEC_FULL.md's
// domain-stack note). When inOff is non-nil, the read is positioned and
// doesn't disturb the source fd's seek offset; otherwise the source fd's
// offset is used and advanced.
func (e *Engine) Sendfile(ctx context.Context, outfd, infd int, inOff *int64, count int64) (n int, err error) {
	err = e.withLock(ctx, "Sendfile", func() error {
		in, ok := e.fds.lookup(infd)
		if !ok {
			return EBADF
		}
		out, ok := e.fds.lookup(outfd)
		if !ok {
			return EBADF
		}
		if in.isDir || out.isDir || !in.flags.readable || !out.flags.writable {
			return EBADF
		}
		count = clampCount(count)

		readOff := in.seek
		if inOff != nil {
			readOff = *inOff
		}

		buf := make([]byte, count)
		got := in.ino.data.ReadAt(buf, readOff)
		buf = buf[:got]

		writeOff := out.seek
		if out.flags.append {
			writeOff = int64(out.ino.attrs.Size)
		}
		wrote, werr := out.ino.data.WriteAt(buf, writeOff)
		if werr != nil {
			return werr
		}

		if inOff != nil {
			*inOff = readOff + int64(wrote)
		} else {
			in.seek = readOff + int64(wrote)
		}
		out.seek = writeOff + int64(wrote)
		out.ino.attrs.Size = uint64(out.ino.data.size)

		if !in.flags.noAtime {
			e.touchAtime(in.ino)
		}
		e.touchCtimeMtime(out.ino)
		n = wrote
		return nil
	})
	return n, err
}

// Lseek implements lseek(2), including the SEEK_DATA/SEEK_HOLE extensions
// driven by nextDataOffset/nextHoleOffset (§8's sparse-file testable
// properties).
func (e *Engine) Lseek(ctx context.Context, fdnum int, offset int64, whence vfsattr.Whence) (newoff int64, err error) {
	err = e.withLock(ctx, "Lseek", func() error {
		f, ok := e.fds.lookup(fdnum)
		if !ok {
			return EBADF
		}

		var base int64
		switch whence {
		case vfsattr.SEEK_SET:
			base = 0
		case vfsattr.SEEK_CUR:
			base = f.seek
		case vfsattr.SEEK_END:
			base = int64(f.ino.attrs.Size)
		case vfsattr.SEEK_DATA:
			if f.isDir || offset < 0 || uint64(offset) > f.ino.attrs.Size {
				return ENXIO
			}
			pos := f.ino.data.nextDataOffset(offset)
			if uint64(pos) >= f.ino.attrs.Size {
				return ENXIO
			}
			f.seek = pos
			newoff = pos
			return nil
		case vfsattr.SEEK_HOLE:
			if f.isDir || offset < 0 || uint64(offset) > f.ino.attrs.Size {
				return ENXIO
			}
			pos := f.ino.data.nextHoleOffset(offset)
			f.seek = pos
			newoff = pos
			return nil
		default:
			return EINVAL
		}

		if offset > 0 && base > math.MaxInt64-offset {
			return EOVERFLOW
		}
		if offset < 0 && base < math.MinInt64-offset {
			return EOVERFLOW
		}
		result := base + offset
		if result < 0 {
			return EINVAL
		}
		f.seek = result
		newoff = result
		return nil
	})
	return newoff, err
}

// Truncate implements truncate(2).
func (e *Engine) Truncate(ctx context.Context, path string, length int64) error {
	return e.withLock(ctx, "Truncate", func() error {
		if length < 0 {
			return EINVAL
		}
		in, _, err := e.resolvePath(path, false, true)
		if err != nil {
			return err
		}
		if !in.isRegular() {
			return EISDIR
		}
		if !hasPerm(in, permWrite) {
			return EACCES
		}
		in.data.TruncateData(length)
		in.attrs.Size = uint64(length)
		e.touchCtimeMtime(in)
		return nil
	})
}

// Ftruncate implements ftruncate(2): the fd need not be writable-opened in
// POSIX strictly, but this engine follows Linux's practical behavior of
// requiring it.
func (e *Engine) Ftruncate(ctx context.Context, fdnum int, length int64) error {
	return e.withLock(ctx, "Ftruncate", func() error {
		if length < 0 {
			return EINVAL
		}
		f, ok := e.fds.lookup(fdnum)
		if !ok {
			return EBADF
		}
		if f.isDir || !f.flags.writable {
			return EBADF
		}
		f.ino.data.TruncateData(length)
		f.ino.attrs.Size = uint64(length)
		e.touchCtimeMtime(f.ino)
		return nil
	})
}

// Fallocate implements fallocate(2)'s two modes this engine supports:
// preallocation (default / FALLOC_FL_KEEP_SIZE) and FALLOC_FL_PUNCH_HOLE.
func (e *Engine) Fallocate(ctx context.Context, fdnum int, mode vfsattr.FallocateMode, offset, length int64) error {
	return e.withLock(ctx, "Fallocate", func() error {
		if !mode.Known() {
			return EOPNOTSUPP
		}
		if offset < 0 || length <= 0 {
			return EINVAL
		}
		f, ok := e.fds.lookup(fdnum)
		if !ok {
			return EBADF
		}
		if f.isDir || !f.flags.writable {
			return EBADF
		}

		if mode&vfsattr.FALLOC_FL_PUNCH_HOLE != 0 {
			if mode&vfsattr.FALLOC_FL_KEEP_SIZE == 0 {
				return EINVAL
			}
			if err := f.ino.data.PunchHole(offset, length); err != nil {
				return err
			}
			e.touchCtimeMtime(f.ino)
			return nil
		}

		allocLen := length
		if mode&vfsattr.FALLOC_FL_KEEP_SIZE != 0 {
			// Preallocation may never make ranges visible past the file's
			// reported size (§3 invariant 4): clamp to what fits within it.
			if uint64(offset) >= f.ino.attrs.Size {
				e.touchCtimeMtime(f.ino)
				return nil
			}
			if room := int64(f.ino.attrs.Size) - offset; allocLen > room {
				allocLen = room
			}
		}
		if allocLen > 0 {
			if _, err := f.ino.data.AllocData(offset, allocLen); err != nil {
				return err
			}
		}
		if mode&vfsattr.FALLOC_FL_KEEP_SIZE == 0 && uint64(offset+length) > f.ino.attrs.Size {
			f.ino.attrs.Size = uint64(offset + length)
			f.ino.data.size = int64(f.ino.attrs.Size)
		}
		e.touchCtimeMtime(f.ino)
		return nil
	})
}
