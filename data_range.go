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

// DataRange is a contiguous extent of a regular file's content, located at
// a file offset. It is the unit the sparse allocator works in; see
// regularPayload.ranges below for the invariants that a sorted list of
// these must satisfy.
type DataRange struct {
	Offset int64
	Bytes  []byte
}

func (r *DataRange) End() int64 { return r.Offset + int64(len(r.Bytes)) }

// HoleRange is derived, never stored: the gap between consecutive ranges, or
// between the last range and the file's logical size.
type HoleRange struct {
	Offset int64
	Size   int64
}

func (h HoleRange) End() int64 { return h.Offset + h.Size }

// regularPayload is the per-inode state for a regular file: an ordered,
// disjoint, non-adjacent list of DataRange segments plus the logical size
// (which may exceed the sum of segment sizes; the gap reads as zero).
//
// INVARIANT: ranges sorted by Offset.
// INVARIANT: for i < len(ranges)-1, ranges[i].End() < ranges[i+1].Offset.
// INVARIANT: ranges[len(ranges)-1].End() <= size.
type regularPayload struct {
	ranges []*DataRange
	size   int64
}

func (p *regularPayload) checkInvariants() error {
	var prevEnd int64 = -1
	for i, r := range p.ranges {
		if r.Offset < prevEnd {
			return EIO
		}
		if i > 0 && r.Offset <= prevEnd {
			// Adjacent or overlapping: violates the no-touch invariant.
			return EIO
		}
		if int64(len(r.Bytes)) < 0 {
			return EIO
		}
		prevEnd = r.End()
	}
	if prevEnd > p.size {
		return EIO
	}
	return nil
}

// indexAtOrAfter returns the index of the first range whose End() exceeds
// offset, i.e. the first candidate that offset could fall inside of or
// abut. Binary search per §4.1 step 1.
func (p *regularPayload) indexAtOrAfter(offset int64) int {
	return sort.Search(len(p.ranges), func(i int) bool {
		return p.ranges[i].End() > offset
	})
}

// AllocData implements the §4.1 allocator contract: ensures a single range
// covers [offset, offset+length), preserving any data already present in
// the touched region, merging and absorbing neighbors as needed, and
// raising p.size if the new region extends past it.
func (p *regularPayload) AllocData(offset, length int64) (*DataRange, error) {
	if length < 0 || offset < 0 {
		return nil, EINVAL
	}

	reqEnd := offset + length
	i := p.indexAtOrAfter(offset)
	if i > 0 && p.ranges[i-1].End() == offset {
		// offset adjoins the end of the preceding range: reuse that range.
		i--
	}

	var target *DataRange
	var targetIdx int

	switch {
	case i < len(p.ranges) && offset+length == p.ranges[i].Offset:
		// The new region exactly abuts ranges[i]'s start. Walk leftward to
		// find predecessors whose end reaches offset (i.e. are themselves
		// abutting or overlapping the new region), per §4.1 step 2.
		left := i - 1
		for left >= 0 && p.ranges[left].End() >= offset {
			left--
		}
		left++ // left is now the leftmost absorbed predecessor, or i if none.

		if left == i {
			// No predecessor touches; widen ranges[i] leftward.
			target = p.ranges[i]
			target.Bytes = append(make([]byte, target.Offset-offset, target.Offset-offset+int64(len(target.Bytes))), target.Bytes...)
			target.Offset = offset
			targetIdx = i
		} else {
			target = p.ranges[left]
			newBuf := make([]byte, p.ranges[i].End()-target.Offset)
			for k := left; k <= i; k++ {
				r := p.ranges[k]
				copy(newBuf[r.Offset-target.Offset:], r.Bytes)
			}
			target.Bytes = newBuf
			p.ranges = append(p.ranges[:left+1], p.ranges[i+1:]...)
			targetIdx = left
		}

	case i < len(p.ranges) && p.ranges[i].Offset <= offset && offset <= p.ranges[i].End():
		// offset falls inside ranges[i] or adjoins its end (step 3, reuse).
		target = p.ranges[i]
		targetIdx = i

	default:
		// offset lies in no range; insert a fresh one (step 3, else branch).
		// Any later range the new region overlaps is absorbed below.
		target = &DataRange{Offset: offset, Bytes: make([]byte, length)}
		p.ranges = append(p.ranges, nil)
		copy(p.ranges[i+1:], p.ranges[i:])
		p.ranges[i] = target
		targetIdx = i
	}

	// Step 4: compute the new end as the max of reqEnd and any overlapping
	// successor's end, absorbing successors whose start lies within the new
	// region (step 5).
	newEnd := reqEnd
	if target.End() > newEnd {
		newEnd = target.End()
	}

	j := targetIdx + 1
	for j < len(p.ranges) && p.ranges[j].Offset <= newEnd {
		r := p.ranges[j]
		if r.End() > newEnd {
			newEnd = r.End()
		}
		j++
	}

	if newEnd > target.End() || j > targetIdx+1 {
		newBuf := make([]byte, newEnd-target.Offset)
		copy(newBuf, target.Bytes)
		for k := targetIdx + 1; k < j; k++ {
			r := p.ranges[k]
			copy(newBuf[r.Offset-target.Offset:], r.Bytes)
		}
		target.Bytes = newBuf
	}

	if j > targetIdx+1 {
		p.ranges = append(p.ranges[:targetIdx+1], p.ranges[j:]...)
	}

	// Step 6: raise size if needed.
	if target.End() > p.size {
		p.size = target.End()
	}

	return target, nil
}

// TruncateData implements §4.1 truncate.
func (p *regularPayload) TruncateData(newLen int64) {
	switch {
	case newLen >= p.size:
		p.size = newLen
		return
	case newLen == 0:
		p.ranges = nil
		p.size = 0
		return
	}

	i := sort.Search(len(p.ranges), func(i int) bool {
		return p.ranges[i].Offset >= newLen
	})
	p.ranges = p.ranges[:i]

	if n := len(p.ranges); n > 0 {
		last := p.ranges[n-1]
		if last.End() > newLen {
			last.Bytes = last.Bytes[:newLen-last.Offset]
		}
	}

	p.size = newLen
}

// PunchHole drops data in [offset, offset+length) without changing size,
// supporting FALLOC_FL_PUNCH_HOLE (see SPEC_FULL.md's domain-stack
// supplement for fallocate).
func (p *regularPayload) PunchHole(offset, length int64) error {
	if offset < 0 || length < 0 {
		return EINVAL
	}
	end := offset + length

	var out []*DataRange
	for _, r := range p.ranges {
		switch {
		case r.End() <= offset || r.Offset >= end:
			out = append(out, r)
		case r.Offset < offset && r.End() > end:
			// Hole lies strictly inside: split into two ranges.
			left := &DataRange{Offset: r.Offset, Bytes: append([]byte(nil), r.Bytes[:offset-r.Offset]...)}
			right := &DataRange{Offset: end, Bytes: append([]byte(nil), r.Bytes[end-r.Offset:]...)}
			out = append(out, left, right)
		case r.Offset < offset:
			r.Bytes = r.Bytes[:offset-r.Offset]
			out = append(out, r)
		case r.End() > end:
			r.Bytes = r.Bytes[end-r.Offset:]
			r.Offset = end
			out = append(out, r)
		default:
			// Fully covered by the hole: drop it.
		}
	}
	p.ranges = out
	return nil
}

// ReadAt copies bytes from the logical content into dst, zero-filling
// holes, stopping at p.size. Returns the number of bytes copied.
func (p *regularPayload) ReadAt(dst []byte, off int64) int {
	if off >= p.size {
		return 0
	}
	want := int64(len(dst))
	if off+want > p.size {
		want = p.size - off
	}
	out := dst[:want]

	it := newDataIterator(p, off)
	pos := off
	for pos < off+want {
		if it.isInData() {
			r := it.getRange()
			segEnd := r.End()
			if segEnd > off+want {
				segEnd = off + want
			}
			n := copy(out[pos-off:segEnd-off], r.Bytes[pos-r.Offset:])
			pos += int64(n)
		} else {
			h := it.getHole()
			segEnd := h.End()
			if segEnd > off+want {
				segEnd = off + want
			}
			for k := pos; k < segEnd; k++ {
				out[k-off] = 0
			}
			pos = segEnd
		}
		if pos < off+want {
			it.next()
		}
	}

	return int(want)
}

// WriteAt allocates a covering range via AllocData and copies src in.
func (p *regularPayload) WriteAt(src []byte, off int64) (int, error) {
	if len(src) == 0 {
		if off > p.size {
			p.size = off
		}
		return 0, nil
	}
	r, err := p.AllocData(off, int64(len(src)))
	if err != nil {
		return 0, err
	}
	copy(r.Bytes[off-r.Offset:], src)
	return len(src), nil
}

////////////////////////////////////////////////////////////////////////
// DataIterator
////////////////////////////////////////////////////////////////////////

// dataIterator walks a regular file's ranges and holes in offset order. It
// is the primitive behind ReadAt, and so behind read and sendfile; writes go
// through AllocData, and lseek(SEEK_DATA|SEEK_HOLE) through nextDataOffset
// and nextHoleOffset.
type dataIterator struct {
	p       *regularPayload
	idx     int  // index into p.ranges of the current or next range
	inData  bool
	off     int64 // current position
}

func newDataIterator(p *regularPayload, offset int64) *dataIterator {
	it := &dataIterator{p: p}
	it.seekTo(offset)
	return it
}

// seekTo fast-forwards the iterator to the segment containing offset.
func (it *dataIterator) seekTo(offset int64) {
	it.off = offset
	i := it.p.indexAtOrAfter(offset)
	if i < len(it.p.ranges) && it.p.ranges[i].Offset <= offset {
		it.idx = i
		it.inData = true
	} else {
		it.idx = i
		it.inData = false
	}
}

func (it *dataIterator) isInData() bool { return it.inData }

// getRange returns the data range containing the iterator's position.
// REQUIRES: isInData()
func (it *dataIterator) getRange() *DataRange {
	return it.p.ranges[it.idx]
}

// getHole synthesizes the hole containing the iterator's position.
// REQUIRES: !isInData()
func (it *dataIterator) getHole() HoleRange {
	start := it.off
	var end int64
	if it.idx < len(it.p.ranges) {
		end = it.p.ranges[it.idx].Offset
	} else {
		end = it.p.size
	}
	return HoleRange{Offset: start, Size: end - start}
}

// next steps to the following segment, toggling data<->hole and advancing
// the underlying range index when leaving data.
func (it *dataIterator) next() {
	if it.inData {
		r := it.p.ranges[it.idx]
		it.off = r.End()
		it.idx++
		it.inData = false
	} else {
		if it.idx < len(it.p.ranges) {
			it.off = it.p.ranges[it.idx].Offset
			it.inData = true
		} else {
			it.off = it.p.size
		}
	}
}

// nextDataOffset returns the offset of the next data byte at or after from,
// or size if none, per lseek(SEEK_DATA).
func (p *regularPayload) nextDataOffset(from int64) int64 {
	i := p.indexAtOrAfter(from)
	if i < len(p.ranges) {
		if p.ranges[i].Offset <= from {
			return from
		}
		return p.ranges[i].Offset
	}
	return p.size
}

// nextHoleOffset returns the offset of the next hole byte at or after from,
// or size if the region from `from` to size is entirely data followed
// immediately by EOF (size itself is always a valid "hole" position).
func (p *regularPayload) nextHoleOffset(from int64) int64 {
	i := p.indexAtOrAfter(from)
	if i < len(p.ranges) && p.ranges[i].Offset <= from {
		return p.ranges[i].End()
	}
	return from
}
