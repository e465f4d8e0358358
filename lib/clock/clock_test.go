// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	fake := Fake(epoch)
	if got := fake.Now(); !got.Equal(epoch) {
		t.Errorf("Now = %v, want %v", got, epoch)
	}
	if got := fake.Now(); !got.Equal(epoch) {
		t.Errorf("Now moved without Advance: %v", got)
	}
}

func TestFakeClockAdvance(t *testing.T) {
	fake := Fake(epoch)
	fake.Advance(90 * time.Second)
	if got := fake.Now(); !got.Equal(epoch.Add(90 * time.Second)) {
		t.Errorf("Now = %v, want %v", got, epoch.Add(90*time.Second))
	}
}

func TestFakeClockStep(t *testing.T) {
	fake := Fake(epoch)
	fake.SetStep(250 * time.Millisecond)

	start := fake.Now()
	if elapsed := Since(fake, start); elapsed != 250*time.Millisecond {
		t.Errorf("Since = %v, want 250ms", elapsed)
	}
}

func TestFakeClockConcurrentAccess(t *testing.T) {
	fake := Fake(epoch)
	var waitGroup sync.WaitGroup
	for range 10 {
		waitGroup.Add(2)
		go func() {
			defer waitGroup.Done()
			fake.Advance(time.Second)
		}()
		go func() {
			defer waitGroup.Done()
			fake.Now()
		}()
	}
	waitGroup.Wait()
	if got := fake.Now(); !got.Equal(epoch.Add(10 * time.Second)) {
		t.Errorf("Now = %v, want %v", got, epoch.Add(10*time.Second))
	}
}

func TestImplementsClock(t *testing.T) {
	var _ Clock = Real()
	var _ Clock = Fake(epoch)
}
