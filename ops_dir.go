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

	"github.com/jacobsa/vfs/vfsutil"
)

func direntType(in *inode) vfsutil.DirentType {
	switch {
	case in.isDir():
		return vfsutil.DT_DIR
	case in.isSymlink():
		return vfsutil.DT_LNK
	default:
		return vfsutil.DT_REG
	}
}

// Getdents implements getdents(2): emits directory entry records into buf
// starting from the fd's current seek position (which this engine treats
// as an entry index, not a byte offset, the same simplification the
// teacher's samples/memfs makes for fuseops.ReadDirOp), advancing it by the
// number of entries emitted. Returns the number of bytes written, zero at
// end of directory, or EINVAL if buf is too small for even the first
// pending record.
func (e *Engine) Getdents(ctx context.Context, fdnum int, buf []byte) (n int, err error) {
	err = e.withLock(ctx, "Getdents", func() error {
		f, ok := e.fds.lookup(fdnum)
		if !ok {
			return EBADF
		}
		if !f.isDir {
			return ENOTDIR
		}

		entries := f.ino.entries
		idx := int(f.seek)
		if idx >= len(entries) {
			return nil
		}

		off := 0
		for idx < len(entries) {
			d := entries[idx]
			rec := vfsutil.Dirent{
				Ino:  d.ino.id,
				Off:  uint64(idx + 1),
				Type: direntType(d.ino),
				Name: d.name,
			}
			written := vfsutil.WriteDirent(buf[off:], rec)
			if written == 0 {
				if off == 0 {
					return EINVAL
				}
				break
			}
			off += written
			idx++
		}

		f.seek = int64(idx)
		n = off
		if !f.flags.noAtime {
			e.touchAtime(f.ino)
		}
		return nil
	})
	return n, err
}
