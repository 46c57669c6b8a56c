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

package vfsattr

import "golang.org/x/sys/unix"

// OpenFlags mirrors the open(2) flag word. Values are pulled from
// golang.org/x/sys/unix rather than redeclared, the same way
// fuseops/common_op.go reaches into golang.org/x/sys/unix for kernel
// constants instead of hand-rolling them.
type OpenFlags uint32

const (
	O_RDONLY    OpenFlags = unix.O_RDONLY
	O_WRONLY    OpenFlags = unix.O_WRONLY
	O_RDWR      OpenFlags = unix.O_RDWR
	O_ACCMODE   OpenFlags = unix.O_ACCMODE
	O_CREAT     OpenFlags = unix.O_CREAT
	O_EXCL      OpenFlags = unix.O_EXCL
	O_TRUNC     OpenFlags = unix.O_TRUNC
	O_APPEND    OpenFlags = unix.O_APPEND
	O_DIRECTORY OpenFlags = unix.O_DIRECTORY
	O_NOFOLLOW  OpenFlags = unix.O_NOFOLLOW
	O_NOATIME   OpenFlags = unix.O_NOATIME
	O_TMPFILE   OpenFlags = 020000000 | unix.O_DIRECTORY // O_TMPFILE == __O_TMPFILE | O_DIRECTORY

	openFlagsKnown = O_ACCMODE | O_CREAT | O_EXCL | O_TRUNC | O_APPEND |
		O_DIRECTORY | O_NOFOLLOW | O_NOATIME | O_TMPFILE
)

// Known reports whether f contains only bits this engine understands.
func (f OpenFlags) Known() bool { return f&^openFlagsKnown == 0 }

func (f OpenFlags) Accmode() OpenFlags { return f & O_ACCMODE }
func (f OpenFlags) Writable() bool     { return f.Accmode() == O_WRONLY || f.Accmode() == O_RDWR }
func (f OpenFlags) Readable() bool     { return f.Accmode() == O_RDONLY || f.Accmode() == O_RDWR }

// AtFlags mirrors the *at(2) family's flags argument.
type AtFlags uint32

const (
	AT_FDCWD            = -100
	AT_EMPTY_PATH       AtFlags = unix.AT_EMPTY_PATH
	AT_REMOVEDIR        AtFlags = unix.AT_REMOVEDIR
	AT_SYMLINK_FOLLOW   AtFlags = unix.AT_SYMLINK_FOLLOW
	AT_SYMLINK_NOFOLLOW AtFlags = unix.AT_SYMLINK_NOFOLLOW

	atFlagsKnownUnlink = AT_REMOVEDIR
	atFlagsKnownStat   = AT_EMPTY_PATH | AT_SYMLINK_NOFOLLOW
	atFlagsKnownLink   = AT_EMPTY_PATH | AT_SYMLINK_FOLLOW
)

func (f AtFlags) KnownForUnlink() bool { return f&^atFlagsKnownUnlink == 0 }
func (f AtFlags) KnownForStat() bool   { return f&^atFlagsKnownStat == 0 }
func (f AtFlags) KnownForLink() bool   { return f&^atFlagsKnownLink == 0 }

// Whence selects the reference point for lseek.
type Whence int

const (
	SEEK_SET  Whence = unix.SEEK_SET
	SEEK_CUR  Whence = unix.SEEK_CUR
	SEEK_END  Whence = unix.SEEK_END
	SEEK_DATA Whence = unix.SEEK_DATA
	SEEK_HOLE Whence = unix.SEEK_HOLE
)

// RenameFlags mirrors renameat2(2)'s flags argument.
type RenameFlags uint32

const (
	RENAME_NOREPLACE RenameFlags = unix.RENAME_NOREPLACE
	RENAME_EXCHANGE  RenameFlags = unix.RENAME_EXCHANGE

	renameFlagsKnown = RENAME_NOREPLACE | RENAME_EXCHANGE
)

func (f RenameFlags) Known() bool { return f&^renameFlagsKnown == 0 }

// StatxMask selects which fields of statx(2)'s result the caller asked for.
type StatxMask uint32

const (
	STATX_TYPE  StatxMask = unix.STATX_TYPE
	STATX_MODE  StatxMask = unix.STATX_MODE
	STATX_NLINK StatxMask = unix.STATX_NLINK
	STATX_SIZE  StatxMask = unix.STATX_SIZE
	STATX_ATIME StatxMask = unix.STATX_ATIME
	STATX_MTIME StatxMask = unix.STATX_MTIME
	STATX_CTIME StatxMask = unix.STATX_CTIME
	STATX_BTIME StatxMask = unix.STATX_BTIME
	STATX_INO   StatxMask = unix.STATX_INO
	STATX_BASIC_STATS StatxMask = unix.STATX_BASIC_STATS
	STATX_ALL         StatxMask = unix.STATX_ALL
)

// UTIME sentinels for utimensat(2)-style calls.
const (
	UTIME_NOW  int64 = unix.UTIME_NOW
	UTIME_OMIT int64 = unix.UTIME_OMIT
)

// CloseRangeFlags is reserved for future close_range(2) flags; none are
// currently understood.
type CloseRangeFlags uint32

// FallocateMode mirrors fallocate(2)'s mode argument.
type FallocateMode uint32

const (
	FALLOC_FL_KEEP_SIZE  FallocateMode = unix.FALLOC_FL_KEEP_SIZE
	FALLOC_FL_PUNCH_HOLE FallocateMode = unix.FALLOC_FL_PUNCH_HOLE

	fallocateModeKnown = FALLOC_FL_KEEP_SIZE | FALLOC_FL_PUNCH_HOLE
)

func (f FallocateMode) Known() bool { return f&^fallocateModeKnown == 0 }

// Limits bounds path and component length, mirroring Linux's PATH_MAX and
// NAME_MAX.
const (
	PathMax = 4096
	NameMax = 255

	// MaxRWCount is the clamp applied to read/write/sendfile byte counts,
	// matching Linux's MAX_RW_COUNT (INT_MAX rounded down to a page).
	MaxRWCount = 0x7FFFF000

	// MaxFollowCount bounds symlink recursion; see the resolver's follow
	// counter.
	MaxFollowCount = 40
)
