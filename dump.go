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
	"io"
	"time"

	"github.com/jacobsa/vfs/internal/image"
	"github.com/jacobsa/vfs/vfsattr"
)

func toTimespec(t time.Time) image.Timespec {
	return image.Timespec{Sec: t.Unix(), Nsec: int64(t.Nanosecond())}
}

func fromUnix(ts image.Timespec) time.Time {
	return time.Unix(ts.Sec, ts.Nsec)
}

// Dump serializes the entire engine state to w in the format SPEC_FULL.md
// §6 describes, holding the engine lock for the duration (§5 permits
// blocking on the external byte stream while locked).
func (e *Engine) Dump(ctx context.Context, w io.Writer) error {
	return e.withLock(ctx, "Dump", func() error {
		iw := image.NewWriter(w)
		if err := iw.WriteHeader(uint64(e.inodes.len())); err != nil {
			return EIO
		}

		for i := 0; i < e.inodes.len(); i++ {
			in := e.inodes.at(i)

			var kind image.InodeKind
			switch {
			case in.isRegular():
				kind = image.KindRegular
			case in.isDir():
				kind = image.KindDir
			case in.isSymlink():
				kind = image.KindSymlink
			}

			size := in.attrs.Size
			if in.isSymlink() {
				// The fixed record's size field doubles as the raw target's
				// byte length for symlinks, read back verbatim by
				// ReadSymlinkPayload; it is distinct from attrs.Size, which
				// the in-memory invariant pins at 0 for symlinks.
				size = uint64(len(in.rawTarget))
			}

			rec := image.FixedRecord{
				ID:    in.id,
				Size:  size,
				Nlink: in.attrs.Nlink,
				Mode:  uint32(in.attrs.Mode),
				Kind:  kind,
				Birth: toTimespec(in.attrs.Birth),
				Ctime: toTimespec(in.attrs.Ctime),
				Mtime: toTimespec(in.attrs.Mtime),
				Atime: toTimespec(in.attrs.Atime),
			}
			if err := iw.WriteFixedRecord(rec); err != nil {
				return EIO
			}

			switch {
			case in.isSymlink():
				if err := iw.WriteSymlinkPayload(in.resolvedTarget, in.rawTarget); err != nil {
					return EIO
				}

			case in.isDir():
				var entries []image.DirEntryRecord
				for k := 2; k < len(in.entries); k++ {
					d := in.entries[k]
					entries = append(entries, image.DirEntryRecord{
						ChildIndex: uint64(d.ino.ndx),
						Name:       d.name,
					})
				}
				if err := iw.WriteDirPayload(uint64(in.parent().ndx), entries); err != nil {
					return EIO
				}

			case in.isRegular():
				if in.attrs.Size == 0 {
					continue
				}
				var ranges []image.RangeRecord
				for _, r := range in.data.ranges {
					ranges = append(ranges, image.RangeRecord{Offset: r.Offset, Bytes: r.Bytes})
				}
				if err := iw.WriteRegularPayload(ranges); err != nil {
					return EIO
				}
			}
		}

		if err := iw.Flush(); err != nil {
			return EIO
		}
		return nil
	})
}

// Load replaces the entire engine state by reading an image previously
// produced by Dump. On success the engine's cwd is reset to root (§4.7).
// On any error the engine's prior state is left untouched (all-or-nothing,
// §7): decoding happens into a fresh table first, and only swapped in once
// fully validated.
func (e *Engine) Load(ctx context.Context, r io.Reader) error {
	return e.withLock(ctx, "Load", func() error {
		ir := image.NewReader(r)
		count, err := ir.ReadHeader()
		if err != nil {
			return EIO
		}

		inodes := make([]*inode, count)
		dirPayloads := make(map[int][]image.DirEntryRecord)
		dirParent := make(map[int]uint64)

		for i := uint64(0); i < count; i++ {
			rec, rerr := ir.ReadFixedRecord()
			if rerr != nil {
				return EIO
			}

			now := fromUnix(rec.Birth)
			var in *inode
			switch rec.Kind {
			case image.KindRegular:
				in = newRegularInode(rec.ID, vfsattr.Mode(rec.Mode), now)
				if rec.Size > 0 {
					ranges, perr := ir.ReadRegularPayload()
					if perr != nil {
						return EIO
					}
					for _, rr := range ranges {
						in.data.ranges = append(in.data.ranges, &DataRange{Offset: rr.Offset, Bytes: rr.Bytes})
					}
					in.data.size = int64(rec.Size)
					in.attrs.Size = rec.Size
				}

			case image.KindSymlink:
				resolved, raw, perr := ir.ReadSymlinkPayload(rec.Size)
				if perr != nil {
					return EIO
				}
				in = newSymlinkInode(rec.ID, raw, resolved, now)

			case image.KindDir:
				in = newDirInode(rec.ID, vfsattr.Mode(rec.Mode), now)
				parentIdx, entries, perr := ir.ReadDirPayload()
				if perr != nil {
					return EIO
				}
				dirPayloads[int(i)] = entries
				dirParent[int(i)] = parentIdx

			default:
				return EIO
			}

			in.attrs.Nlink = rec.Nlink
			in.attrs.Ctime = fromUnix(rec.Ctime)
			in.attrs.Mtime = fromUnix(rec.Mtime)
			in.attrs.Atime = fromUnix(rec.Atime)
			in.ndx = int(i)
			inodes[i] = in
		}

		// Relink pass: directory entries and dotdot currently hold
		// inode-table indices; translate to pointers now that every inode
		// object exists.
		for idx, entries := range dirPayloads {
			dir := inodes[idx]
			dir.dotEntry().ino = dir
			parentIdx := dirParent[idx]
			if int(parentIdx) >= len(inodes) {
				return EIO
			}
			dir.dotdotEntry().ino = inodes[parentIdx]

			for _, er := range entries {
				if int(er.ChildIndex) >= len(inodes) {
					return EIO
				}
				dir.pushChild(er.Name, inodes[er.ChildIndex])
			}
		}

		// Prune any inode whose persisted link count is zero (§4.7); it was
		// kept through the relink pass so any directory entry pointing at it
		// still resolved above, but no entry should actually reference a
		// zero-link inode in a well-formed image.
		var live []*inode
		for _, in := range inodes {
			if in.attrs.Nlink == 0 {
				continue
			}
			live = append(live, in)
		}
		for i, in := range live {
			in.ndx = i
		}

		e.inodes = inodeTable{slots: live}
		e.fds = fdTable{}
		e.root = inodes[0]
		e.cwdPath = "/"
		e.cwdIno = e.root
		e.cwdParent = e.root
		return nil
	})
}
