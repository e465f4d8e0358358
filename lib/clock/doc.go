// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets code that reads the time be tested
// deterministically.
//
// The registry only measures time (operation durations for metrics,
// timestamps in logs); it never waits. So a [Clock] just reports the
// current time. Production code passes [Real]; tests pass a
// [FakeClock] and move it with [FakeClock.Advance].
package clock
