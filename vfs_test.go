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

package vfs_test

import (
	"testing"

	"github.com/jacobsa/vfs"
	"github.com/jacobsa/vfs/vfsattr"
	"github.com/jacobsa/vfs/vfstesting"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestVFS(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Core scenarios
////////////////////////////////////////////////////////////////////////

type VFSTest struct {
	vfstesting.EngineTest
}

func init() { RegisterTestSuite(&VFSTest{}) }

func (t *VFSTest) SetUp(ti *TestInfo) {
	t.EngineTest.SetUp()
}

func (t *VFSTest) Mkdir_CreateThenStat() {
	err := t.Engine.Mkdir(t.Ctx, "/foo", 0755)
	AssertEq(nil, err)

	attrs, err := t.Engine.Stat(t.Ctx, "/foo")
	AssertEq(nil, err)
	ExpectTrue(attrs.Mode.IsDir())
	ExpectEq(0755, attrs.Mode.Perm())
}

func (t *VFSTest) Mkdir_AlreadyExists() {
	AssertEq(nil, t.Engine.Mkdir(t.Ctx, "/foo", 0755))
	err := t.Engine.Mkdir(t.Ctx, "/foo", 0755)
	ExpectEq(vfs.EEXIST, err)
}

func (t *VFSTest) OpenCreateExcl_SecondCallFails() {
	fd, err := t.Engine.Open(t.Ctx, "/foo", vfsattr.O_CREAT|vfsattr.O_EXCL|vfsattr.O_WRONLY, 0644)
	AssertEq(nil, err)
	AssertEq(nil, t.Engine.Close(t.Ctx, fd))

	_, err = t.Engine.Open(t.Ctx, "/foo", vfsattr.O_CREAT|vfsattr.O_EXCL|vfsattr.O_WRONLY, 0644)
	ExpectEq(vfs.EEXIST, err)
}

func (t *VFSTest) WriteThenReadBack() {
	fd, err := t.Engine.Open(t.Ctx, "/foo", vfsattr.O_CREAT|vfsattr.O_RDWR, 0644)
	AssertEq(nil, err)

	n, err := t.Engine.Write(t.Ctx, fd, []byte("hello, world"))
	AssertEq(nil, err)
	AssertEq(len("hello, world"), n)

	buf := make([]byte, 64)
	n, err = t.Engine.Pread(t.Ctx, fd, buf, 0)
	AssertEq(nil, err)
	ExpectEq("hello, world", string(buf[:n]))
}

func (t *VFSTest) SparseWrite_ReadsZeroesInHole() {
	fd, err := t.Engine.Open(t.Ctx, "/foo", vfsattr.O_CREAT|vfsattr.O_RDWR, 0644)
	AssertEq(nil, err)

	_, err = t.Engine.Pwrite(t.Ctx, fd, []byte("AA"), 0)
	AssertEq(nil, err)
	_, err = t.Engine.Pwrite(t.Ctx, fd, []byte("BB"), 100)
	AssertEq(nil, err)

	buf := make([]byte, 102)
	n, err := t.Engine.Pread(t.Ctx, fd, buf, 0)
	AssertEq(nil, err)
	AssertEq(102, n)

	ExpectEq("AA", string(buf[0:2]))
	ExpectEq("BB", string(buf[100:102]))
	for i := 2; i < 100; i++ {
		ExpectEq(byte(0), buf[i])
	}
}

func (t *VFSTest) SeekDataAndHole() {
	fd, err := t.Engine.Open(t.Ctx, "/foo", vfsattr.O_CREAT|vfsattr.O_RDWR, 0644)
	AssertEq(nil, err)

	_, err = t.Engine.Pwrite(t.Ctx, fd, []byte("AA"), 10)
	AssertEq(nil, err)

	off, err := t.Engine.Lseek(t.Ctx, fd, 0, vfsattr.SEEK_DATA)
	AssertEq(nil, err)
	ExpectEq(10, off)

	off, err = t.Engine.Lseek(t.Ctx, fd, 10, vfsattr.SEEK_HOLE)
	AssertEq(nil, err)
	ExpectEq(12, off)
}

func (t *VFSTest) SymlinkLoop_ELOOP() {
	AssertEq(nil, t.Engine.Symlink(t.Ctx, "/b", "/a"))
	AssertEq(nil, t.Engine.Symlink(t.Ctx, "/a", "/b"))

	_, err := t.Engine.Stat(t.Ctx, "/a")
	ExpectEq(vfs.ELOOP, err)
}

func (t *VFSTest) RenameExchange() {
	AssertEq(nil, t.Engine.Mkdir(t.Ctx, "/a", 0755))
	AssertEq(nil, t.Engine.Mkdir(t.Ctx, "/b", 0755))

	fd, err := t.Engine.Open(t.Ctx, "/a/file", vfsattr.O_CREAT|vfsattr.O_WRONLY, 0644)
	AssertEq(nil, err)
	AssertEq(nil, t.Engine.Close(t.Ctx, fd))

	AssertEq(nil, t.Engine.Renameat2(t.Ctx, vfsattr.AT_FDCWD, "/a", vfsattr.AT_FDCWD, "/b", vfsattr.RENAME_EXCHANGE))

	_, err = t.Engine.Stat(t.Ctx, "/b/file")
	ExpectEq(nil, err)
	_, err = t.Engine.Stat(t.Ctx, "/a/file")
	ExpectThat(err, Error(HasSubstr("no such file")))
}

func (t *VFSTest) Rename_IdempotentNoOp() {
	AssertEq(nil, t.Engine.Mkdir(t.Ctx, "/a", 0755))
	before, err := t.Engine.Stat(t.Ctx, "/a")
	AssertEq(nil, err)

	AssertEq(nil, t.Engine.Rename(t.Ctx, "/a", "/a"))

	after, err := t.Engine.Stat(t.Ctx, "/a")
	AssertEq(nil, err)
	ExpectEq(before.Ino, after.Ino)
}

func (t *VFSTest) UnlinkWhileOpen_StaysReadableUntilClose() {
	fd, err := t.Engine.Open(t.Ctx, "/foo", vfsattr.O_CREAT|vfsattr.O_RDWR, 0644)
	AssertEq(nil, err)
	_, err = t.Engine.Write(t.Ctx, fd, []byte("data"))
	AssertEq(nil, err)

	AssertEq(nil, t.Engine.Unlink(t.Ctx, "/foo"))

	buf := make([]byte, 16)
	n, err := t.Engine.Pread(t.Ctx, fd, buf, 0)
	AssertEq(nil, err)
	ExpectEq("data", string(buf[:n]))

	_, err = t.Engine.Stat(t.Ctx, "/foo")
	ExpectNe(nil, err)

	AssertEq(nil, t.Engine.Close(t.Ctx, fd))
}

func (t *VFSTest) Rmdir_NonEmpty() {
	AssertEq(nil, t.Engine.Mkdir(t.Ctx, "/a", 0755))
	AssertEq(nil, t.Engine.Mkdir(t.Ctx, "/a/b", 0755))

	err := t.Engine.Rmdir(t.Ctx, "/a")
	ExpectEq(vfs.ENOTEMPTY, err)
}

func (t *VFSTest) DotDot_ResolvesToParent() {
	AssertEq(nil, t.Engine.Mkdir(t.Ctx, "/a", 0755))
	AssertEq(nil, t.Engine.Mkdir(t.Ctx, "/a/b", 0755))

	attrs, err := t.Engine.Stat(t.Ctx, "/a/b/..")
	AssertEq(nil, err)

	parentAttrs, err := t.Engine.Stat(t.Ctx, "/a")
	AssertEq(nil, err)
	ExpectEq(parentAttrs.Ino, attrs.Ino)
}

func (t *VFSTest) Getdents_ListsCreatedEntries() {
	AssertEq(nil, t.Engine.Mkdir(t.Ctx, "/a", 0755))
	fd, err := t.Engine.Open(t.Ctx, "/a/x", vfsattr.O_CREAT|vfsattr.O_WRONLY, 0644)
	AssertEq(nil, err)
	AssertEq(nil, t.Engine.Close(t.Ctx, fd))

	dfd, err := t.Engine.Open(t.Ctx, "/a", vfsattr.O_RDONLY|vfsattr.O_DIRECTORY, 0)
	AssertEq(nil, err)

	buf := make([]byte, 4096)
	n, err := t.Engine.Getdents(t.Ctx, dfd, buf)
	AssertEq(nil, err)
	ExpectTrue(n > 0)
}
