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

// Package vfstesting holds the shared test fixture the engine-level test
// suites in this module embed, the same role samples.SampleTest plays for the
// teacher's mount-based sample tests: set the one field SetUp needs, call
// SetUp, get back a ready-to-drive instance.
package vfstesting

import (
	"context"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/jacobsa/vfs"
)

// EngineTest is an embeddable fixture providing a fresh engine wired to a
// SimulatedClock with a fixed, deterministic start time, plus a background
// context for driving its operations.
type EngineTest struct {
	// Config is consulted by SetUp; set it (or leave zero) before calling
	// SetUp.
	Config vfs.Config

	Ctx   context.Context
	Clock timeutil.SimulatedClock

	Engine *vfs.Engine
}

// SetUp initializes Ctx, Clock, and Engine. Call it from your test
// fixture's own SetUp after setting Config, if you need anything other
// than the default umask/logging.
func (t *EngineTest) SetUp() {
	t.Ctx = context.Background()
	t.Clock.SetTime(time.Date(2012, 8, 15, 22, 56, 0, 0, time.UTC))
	t.Engine = vfs.New(&t.Clock, t.Config)
}

// AdvanceTime moves the fixture's clock forward, for tests asserting on
// ctime/mtime/atime transitions.
func (t *EngineTest) AdvanceTime(d time.Duration) {
	t.Clock.AdvanceTime(d)
}
