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

// Package vfsattr holds the wire-shaped vocabulary of the engine: inode
// attributes, mode bits, and the flag constants accepted by its operations.
// It plays the role fuseops plays for the kernel-facing FileSystem
// interface, but for a library that is driven directly rather than mounted.
package vfsattr

import "time"

// Mode encodes the Linux-style type bits plus the 12 permission bits.
type Mode uint32

// Type bits, stored in the high nibble of Mode the way Linux stores them in
// st_mode's S_IFMT field (shifted down by 12 for the getdents type byte).
const (
	ModeRegular Mode = 0100000
	ModeDir     Mode = 0040000
	ModeSymlink Mode = 0120000

	ModeTypeMask Mode = 0170000
	ModePermMask Mode = 0007777
)

// Type returns the type bits only.
func (m Mode) Type() Mode { return m & ModeTypeMask }

// Perm returns the permission bits only.
func (m Mode) Perm() Mode { return m & ModePermMask }

func (m Mode) IsRegular() bool { return m.Type() == ModeRegular }
func (m Mode) IsDir() bool     { return m.Type() == ModeDir }
func (m Mode) IsSymlink() bool { return m.Type() == ModeSymlink }

// DirentType returns the getdents d_type byte for this mode, per spec: the
// type field shifted right by twelve bits.
func (m Mode) DirentType() uint8 {
	return uint8(m.Type() >> 12)
}

// Attributes is the metadata projection returned by stat/lstat/fstat/statx.
type Attributes struct {
	Ino   uint64
	Size  uint64
	Nlink uint32
	Mode  Mode

	Birth  time.Time
	Ctime  time.Time
	Mtime  time.Time
	Atime  time.Time
}
