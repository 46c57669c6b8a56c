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

// Package image implements the engine's binary dump/load codec, described
// in SPEC_FULL.md §6. This is a portable on-disk format read back by a
// different process or binary, so it is built on encoding/binary's
// explicit, endian-stable encoding rather than an unsafe-pointer struct
// reinterpret, which would only be valid within a single process's own
// in-memory layout.
package image

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Magic is the four leading bytes of every dump image: "\x7FVFS".
var Magic = [4]byte{0x7F, 'V', 'F', 'S'}

const maxChunk = 0x7FFFF000

// RangeChunkSize caps the size of a single written/read data chunk for a
// regular file's range payload, matching SPEC_FULL.md §6's "written in
// chunks no larger than 0x7FFFF000".
const RangeChunkSize = maxChunk

// InodeKind distinguishes the three variant payloads a fixed record is
// followed by.
type InodeKind uint32

const (
	KindRegular InodeKind = 1
	KindDir     InodeKind = 2
	KindSymlink InodeKind = 3
)

// Timespec is a (seconds, nanoseconds) pair, the wire form of one of the
// four timestamps in a fixed record.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// FixedRecord is the portion of §6's per-inode layout common to every
// variant.
type FixedRecord struct {
	ID    uint64
	Size  uint64
	Nlink uint32
	Mode  uint32
	Kind  InodeKind

	Birth  Timespec
	Ctime  Timespec
	Mtime  Timespec
	Atime  Timespec
}

// RangeRecord is one (offset, bytes) pair of a regular file's payload.
type RangeRecord struct {
	Offset int64
	Bytes  []byte
}

// DirEntryRecord is one non-pinned directory entry: the child's inode
// index (table position, relinked to a pointer on load) and its name.
type DirEntryRecord struct {
	ChildIndex uint64
	Name       string
}

// Writer sequences the calls a caller must make to produce a valid image:
// WriteHeader, then per inode WriteFixedRecord followed by exactly the
// variant-appropriate payload call, in table order.
type Writer struct {
	w   *bufio.Writer
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) writeUint64(v uint64) {
	if w.err != nil {
		return
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	if _, err := w.w.Write(b[:]); err != nil {
		w.fail(err)
	}
}

func (w *Writer) writeUint32(v uint32) {
	if w.err != nil {
		return
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	if _, err := w.w.Write(b[:]); err != nil {
		w.fail(err)
	}
}

func (w *Writer) writeInt64(v int64) { w.writeUint64(uint64(v)) }

func (w *Writer) writeTimespec(ts Timespec) {
	w.writeInt64(ts.Sec)
	w.writeInt64(ts.Nsec)
}

func (w *Writer) writeCString(s string) {
	if w.err != nil {
		return
	}
	if _, err := w.w.WriteString(s); err != nil {
		w.fail(err)
		return
	}
	if err := w.w.WriteByte(0); err != nil {
		w.fail(err)
	}
}

func (w *Writer) writeBytes(b []byte) {
	if w.err != nil {
		return
	}
	if _, err := w.w.Write(b); err != nil {
		w.fail(err)
	}
}

// WriteHeader writes the magic and the inode count.
func (w *Writer) WriteHeader(inodeCount uint64) error {
	if w.err != nil {
		return w.err
	}
	if _, err := w.w.Write(Magic[:]); err != nil {
		w.fail(err)
		return w.err
	}
	w.writeUint64(inodeCount)
	return w.err
}

// WriteFixedRecord writes the per-inode fixed portion.
func (w *Writer) WriteFixedRecord(r FixedRecord) error {
	w.writeUint64(r.ID)
	w.writeUint64(r.Size)
	w.writeUint32(r.Nlink)
	w.writeUint32(r.Mode)
	w.writeUint32(uint32(r.Kind))
	w.writeTimespec(r.Birth)
	w.writeTimespec(r.Ctime)
	w.writeTimespec(r.Mtime)
	w.writeTimespec(r.Atime)
	return w.err
}

// WriteSymlinkPayload writes resolved (NUL-terminated) then raw target
// bytes, per §6.
func (w *Writer) WriteSymlinkPayload(resolved, raw string) error {
	w.writeCString(resolved)
	w.writeBytes([]byte(raw))
	return w.err
}

// WriteDirPayload writes the entry count, the parent inode index, then
// each non-pinned entry's child index and NUL-terminated name.
func (w *Writer) WriteDirPayload(parentIndex uint64, entries []DirEntryRecord) error {
	w.writeUint64(uint64(len(entries)))
	w.writeUint64(parentIndex)
	for _, e := range entries {
		w.writeUint64(e.ChildIndex)
		w.writeCString(e.Name)
	}
	return w.err
}

// WriteRegularPayload writes the range count, then each range's offset,
// size, and bytes chunked at RangeChunkSize.
func (w *Writer) WriteRegularPayload(ranges []RangeRecord) error {
	w.writeUint64(uint64(len(ranges)))
	for _, r := range ranges {
		w.writeInt64(r.Offset)
		w.writeUint64(uint64(len(r.Bytes)))
		for off := 0; off < len(r.Bytes); off += maxChunk {
			end := off + maxChunk
			if end > len(r.Bytes) {
				end = len(r.Bytes)
			}
			w.writeBytes(r.Bytes[off:end])
		}
	}
	return w.err
}

// Flush flushes the underlying buffered writer and returns the first write
// error encountered, if any.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if err := w.w.Flush(); err != nil {
		w.fail(err)
	}
	return w.err
}

// Reader is the dual of Writer: load tolerates only the exact layout
// Writer produces, and any short read aborts with failure (§4.7).
type Reader struct {
	r   *bufio.Reader
	err error
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) readFull(n int) []byte {
	if r.err != nil {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.fail(err)
		return nil
	}
	return buf
}

func (r *Reader) readUint64() uint64 {
	b := r.readFull(8)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) readUint32() uint32 {
	b := r.readFull(4)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) readInt64() int64 { return int64(r.readUint64()) }

func (r *Reader) readTimespec() Timespec {
	return Timespec{Sec: r.readInt64(), Nsec: r.readInt64()}
}

func (r *Reader) readCString() string {
	if r.err != nil {
		return ""
	}
	s, err := r.r.ReadString(0)
	if err != nil {
		r.fail(err)
		return ""
	}
	return s[:len(s)-1]
}

// ReadHeader validates the magic and returns the inode count.
func (r *Reader) ReadHeader() (uint64, error) {
	got := r.readFull(4)
	if r.err != nil {
		return 0, r.err
	}
	if got[0] != Magic[0] || got[1] != Magic[1] || got[2] != Magic[2] || got[3] != Magic[3] {
		return 0, errBadMagic
	}
	count := r.readUint64()
	return count, r.err
}

func (r *Reader) ReadFixedRecord() (FixedRecord, error) {
	var rec FixedRecord
	rec.ID = r.readUint64()
	rec.Size = r.readUint64()
	rec.Nlink = r.readUint32()
	rec.Mode = r.readUint32()
	rec.Kind = InodeKind(r.readUint32())
	rec.Birth = r.readTimespec()
	rec.Ctime = r.readTimespec()
	rec.Mtime = r.readTimespec()
	rec.Atime = r.readTimespec()
	return rec, r.err
}

func (r *Reader) ReadSymlinkPayload(size uint64) (resolved, raw string, err error) {
	resolved = r.readCString()
	rawBytes := r.readFull(int(size))
	if r.err != nil {
		return "", "", r.err
	}
	return resolved, string(rawBytes), nil
}

func (r *Reader) ReadDirPayload() (parentIndex uint64, entries []DirEntryRecord, err error) {
	count := r.readUint64()
	parentIndex = r.readUint64()
	entries = make([]DirEntryRecord, 0, count)
	for i := uint64(0); i < count; i++ {
		idx := r.readUint64()
		name := r.readCString()
		if r.err != nil {
			return 0, nil, r.err
		}
		entries = append(entries, DirEntryRecord{ChildIndex: idx, Name: name})
	}
	return parentIndex, entries, r.err
}

func (r *Reader) ReadRegularPayload() ([]RangeRecord, error) {
	count := r.readUint64()
	ranges := make([]RangeRecord, 0, count)
	for i := uint64(0); i < count; i++ {
		offset := r.readInt64()
		size := r.readUint64()
		buf := make([]byte, 0, size)
		for remaining := size; remaining > 0; {
			chunk := remaining
			if chunk > maxChunk {
				chunk = maxChunk
			}
			got := r.readFull(int(chunk))
			if r.err != nil {
				return nil, r.err
			}
			buf = append(buf, got...)
			remaining -= chunk
		}
		ranges = append(ranges, RangeRecord{Offset: offset, Bytes: buf})
	}
	return ranges, r.err
}

// errBadMagic is returned when a would-be image doesn't open with the
// expected four magic bytes.
var errBadMagic = magicError{}

type magicError struct{}

func (magicError) Error() string { return "image: bad magic" }
