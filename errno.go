// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package vfs

import "syscall"

// Errno is the error type returned by every engine operation: a POSIX errno
// value. The zero value is not a valid error; callers get nil on success,
// matching the rest of the Go ecosystem rather than the raw negative-int
// convention of the original C engine (see DESIGN.md).
type Errno syscall.Errno

func (e Errno) Error() string { return syscall.Errno(e).Error() }

// Negative returns the negative-integer form described in spec.md §6, for
// bindings that want to hand a raw errno back across a language boundary.
func (e Errno) Negative() int { return -int(e) }

// Errors corresponding to kernel error numbers, exactly the set spec.md §6
// requires the engine to be able to produce.
const (
	EACCES       = Errno(syscall.EACCES)
	EBADF        = Errno(syscall.EBADF)
	EBUSY        = Errno(syscall.EBUSY)
	EEXIST       = Errno(syscall.EEXIST)
	EFBIG        = Errno(syscall.EFBIG)
	EINVAL       = Errno(syscall.EINVAL)
	EISDIR       = Errno(syscall.EISDIR)
	ELOOP        = Errno(syscall.ELOOP)
	ENAMETOOLONG = Errno(syscall.ENAMETOOLONG)
	ENODEV       = Errno(syscall.ENODEV)
	ENOENT       = Errno(syscall.ENOENT)
	ENOMEM       = Errno(syscall.ENOMEM)
	ENOTDIR      = Errno(syscall.ENOTDIR)
	ENOTEMPTY    = Errno(syscall.ENOTEMPTY)
	ENXIO        = Errno(syscall.ENXIO)
	EOPNOTSUPP   = Errno(syscall.EOPNOTSUPP)
	EOVERFLOW    = Errno(syscall.EOVERFLOW)
	EPERM        = Errno(syscall.EPERM)
	ERANGE       = Errno(syscall.ERANGE)
	EIO          = Errno(syscall.EIO)
)
