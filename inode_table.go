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

// inodeTable is a slot-indexed array of live inodes, sorted by slot index,
// assigning stable ids by lowest-free-id scan (§4.2). This engine's root
// inode is required to sit at a fixed index forever, so the table is kept
// dense rather than a sparse array with nil holes and a free list: removing
// a slot shifts every later inode's ndx down by one, which is cheap at the
// in-memory scale this engine targets and keeps "ndx equals position" (§3
// invariant 5) trivially true rather than merely an invariant to check.
type inodeTable struct {
	slots []*inode
}

// push inserts in, assigning it a fresh stable id by lowest-free-id scan:
// if every existing slot's id equals its index, the new id is len(slots);
// otherwise the first gap becomes the new id, and in is inserted at that
// gap's slot position rather than appended, so id and ndx coincide at
// assignment time per §4.2.
func (t *inodeTable) push(in *inode) error {
	id := uint64(len(t.slots))
	insertAt := len(t.slots)
	for i, s := range t.slots {
		if s.id != uint64(i) {
			id = uint64(i)
			insertAt = i
			break
		}
	}

	in.id = id
	t.slots = append(t.slots, nil)
	copy(t.slots[insertAt+1:], t.slots[insertAt:])
	t.slots[insertAt] = in
	for j := insertAt; j < len(t.slots); j++ {
		t.slots[j].ndx = j
	}
	return nil
}

// remove deletes in from the table, shifting every later slot's ndx down
// by one.
func (t *inodeTable) remove(in *inode) {
	i := in.ndx
	t.slots = append(t.slots[:i], t.slots[i+1:]...)
	for j := i; j < len(t.slots); j++ {
		t.slots[j].ndx = j
	}
	in.ndx = -1
}

func (t *inodeTable) at(ndx int) *inode {
	if ndx < 0 || ndx >= len(t.slots) {
		return nil
	}
	return t.slots[ndx]
}

func (t *inodeTable) len() int { return len(t.slots) }

func (t *inodeTable) checkInvariants() error {
	for i, s := range t.slots {
		if s.ndx != i {
			return EIO
		}
	}
	if len(t.slots) == 0 {
		return EIO
	}
	root := t.slots[0]
	if root.id != 0 || !root.isDir() {
		return EIO
	}
	return nil
}

// removalThreshold returns the link count at or below which in should be
// garbage collected: 0 for non-directories, 1 for directories, whose
// baseline "." self-reference keeps Nlink at 1 even once unlinked.
func removalThreshold(in *inode) uint32 {
	if in.isDir() {
		return 1
	}
	return 0
}

// collectable reports whether in's link count has dropped to its removal
// threshold and no open FD still references it (§3 invariant 6).
func collectable(in *inode) bool {
	return in.attrs.Nlink <= removalThreshold(in) && in.fdRefs == 0
}
