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
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestDataRange(t *testing.T) { RunTests(t) }

type RegularPayloadTest struct {
	p regularPayload
}

func init() { RegisterTestSuite(&RegularPayloadTest{}) }

func (t *RegularPayloadTest) SetUp(ti *TestInfo) {
	t.p = regularPayload{}
}

func (t *RegularPayloadTest) AllocData_AbutsFromRight() {
	_, err := t.p.AllocData(10, 5) // [10, 15)
	AssertEq(nil, err)
	_, err = t.p.AllocData(0, 10) // [0, 10), abuts [10, 15)
	AssertEq(nil, err)

	AssertEq(1, len(t.p.ranges))
	ExpectEq(0, t.p.ranges[0].Offset)
	ExpectEq(15, t.p.ranges[0].End())
}

func (t *RegularPayloadTest) AllocData_AbsorbsOverlappingSuccessors() {
	_, err := t.p.AllocData(0, 5) // [0,5)
	AssertEq(nil, err)
	_, err = t.p.AllocData(20, 5) // [20,25)
	AssertEq(nil, err)
	_, err = t.p.AllocData(0, 30) // covers both and the gap between
	AssertEq(nil, err)

	AssertEq(1, len(t.p.ranges))
	ExpectEq(0, t.p.ranges[0].Offset)
	ExpectEq(30, t.p.ranges[0].End())
	ExpectEq(30, t.p.size)
}

func (t *RegularPayloadTest) AllocData_DisjointRangesStayDisjoint() {
	_, err := t.p.AllocData(0, 5)
	AssertEq(nil, err)
	_, err = t.p.AllocData(100, 5)
	AssertEq(nil, err)

	AssertEq(2, len(t.p.ranges))
	ExpectEq(105, t.p.size)
}

func (t *RegularPayloadTest) TruncateData_ShrinksAndClipsLastRange() {
	_, err := t.p.AllocData(0, 20)
	AssertEq(nil, err)

	t.p.TruncateData(10)
	AssertEq(1, len(t.p.ranges))
	ExpectEq(10, t.p.ranges[0].End())
	ExpectEq(10, t.p.size)
}

func (t *RegularPayloadTest) PunchHole_SplitsMiddleRange() {
	r, err := t.p.AllocData(0, 30)
	AssertEq(nil, err)
	for i := range r.Bytes {
		r.Bytes[i] = byte(i + 1)
	}

	AssertEq(nil, t.p.PunchHole(10, 10))

	AssertEq(2, len(t.p.ranges))
	ExpectEq(0, t.p.ranges[0].Offset)
	ExpectEq(10, t.p.ranges[0].End())
	ExpectEq(20, t.p.ranges[1].Offset)
	ExpectEq(30, t.p.ranges[1].End())
}

func (t *RegularPayloadTest) ReadAt_ZeroFillsHoles() {
	_, err := t.p.AllocData(0, 2)
	AssertEq(nil, err)
	copy(t.p.ranges[0].Bytes, []byte{1, 2})
	_, err = t.p.AllocData(10, 2)
	AssertEq(nil, err)
	copy(t.p.ranges[1].Bytes, []byte{9, 9})

	buf := make([]byte, 12)
	n := t.p.ReadAt(buf, 0)
	AssertEq(12, n)

	ExpectThat(buf[0:2], ElementsAre(byte(1), byte(2)))
	for i := 2; i < 10; i++ {
		ExpectEq(byte(0), buf[i])
	}
	ExpectThat(buf[10:12], ElementsAre(byte(9), byte(9)))
}
