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
	"bytes"

	"github.com/jacobsa/vfs/vfsattr"
	"github.com/jacobsa/vfs/vfstesting"
	"github.com/kylelemons/godebug/pretty"
	. "github.com/jacobsa/ogletest"
)

// attrSnapshot holds the subset of vfsattr.Attributes that dump/load
// promises to preserve byte-for-byte, compared with pretty.Compare rather
// than field access so a future field added to the fixed record shows up
// as a diff instead of silently passing.
type attrSnapshot struct {
	Size      uint64
	Nlink     uint32
	Mode      vfsattr.Mode
	CtimeUnix int64
	MtimeUnix int64
}

func snapshot(a vfsattr.Attributes) attrSnapshot {
	return attrSnapshot{
		Size:      a.Size,
		Nlink:     a.Nlink,
		Mode:      a.Mode,
		CtimeUnix: a.Ctime.Unix(),
		MtimeUnix: a.Mtime.Unix(),
	}
}

type DumpLoadTest struct {
	vfstesting.EngineTest
}

func init() { RegisterTestSuite(&DumpLoadTest{}) }

func (t *DumpLoadTest) SetUp(ti *TestInfo) {
	t.EngineTest.SetUp()
}

func (t *DumpLoadTest) RoundTrip_PreservesTreeAndContent() {
	AssertEq(nil, t.Engine.Mkdir(t.Ctx, "/dir", 0755))
	AssertEq(nil, t.Engine.Symlink(t.Ctx, "/dir", "/link"))

	fd, err := t.Engine.Open(t.Ctx, "/dir/file", vfsattr.O_CREAT|vfsattr.O_RDWR, 0644)
	AssertEq(nil, err)
	_, err = t.Engine.Pwrite(t.Ctx, fd, []byte("hello"), 0)
	AssertEq(nil, err)
	_, err = t.Engine.Pwrite(t.Ctx, fd, []byte("world"), 1000)
	AssertEq(nil, err)
	AssertEq(nil, t.Engine.Close(t.Ctx, fd))

	before, err := t.Engine.Stat(t.Ctx, "/dir/file")
	AssertEq(nil, err)

	var buf bytes.Buffer
	AssertEq(nil, t.Engine.Dump(t.Ctx, &buf))

	t.EngineTest.SetUp()
	AssertEq(nil, t.Engine.Load(t.Ctx, &buf))

	attrs, err := t.Engine.Stat(t.Ctx, "/dir/file")
	AssertEq(nil, err)
	ExpectEq(1005, attrs.Size)
	ExpectEq("", pretty.Compare(snapshot(before), snapshot(attrs)))

	target, err := t.Engine.Readlink(t.Ctx, "/link")
	AssertEq(nil, err)
	ExpectEq("/dir", target)

	rfd, err := t.Engine.Open(t.Ctx, "/dir/file", vfsattr.O_RDONLY, 0)
	AssertEq(nil, err)
	out := make([]byte, 5)
	n, err := t.Engine.Pread(t.Ctx, rfd, out, 0)
	AssertEq(nil, err)
	ExpectEq("hello", string(out[:n]))
}
