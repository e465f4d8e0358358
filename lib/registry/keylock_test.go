// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/pypiserver/lib/testutil"
)

func TestKeyLockExcludes(t *testing.T) {
	locks := newKeyLocks()
	ctx := context.Background()

	unlock, err := locks.lock(ctx, "foo@1.0")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		second, err := locks.lock(ctx, "foo@1.0")
		if err != nil {
			t.Errorf("second lock: %v", err)
			return
		}
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	testutil.RequireClosed(t, acquired, 5*time.Second, "second holder after unlock")
}

func TestKeyLockIndependentKeys(t *testing.T) {
	locks := newKeyLocks()
	ctx := context.Background()

	unlockFoo, err := locks.lock(ctx, "foo@1.0")
	if err != nil {
		t.Fatalf("lock foo: %v", err)
	}
	defer unlockFoo()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	unlockBar, err := locks.lock(ctx, "bar@1.0")
	if err != nil {
		t.Fatalf("lock bar while foo is held: %v", err)
	}
	unlockBar()
}

func TestKeyLockCancellation(t *testing.T) {
	locks := newKeyLocks()
	unlock, err := locks.lock(context.Background(), "foo@1.0")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := locks.lock(ctx, "foo@1.0"); !errors.Is(err, context.Canceled) {
		t.Errorf("lock with cancelled context = %v, want context.Canceled", err)
	}

	unlock()
	unlock()
	if n := locks.size(); n != 0 {
		t.Errorf("%d entries remain after every holder released", n)
	}
}

func TestKeyLockStress(t *testing.T) {
	locks := newKeyLocks()
	counter := 0
	var waitGroup sync.WaitGroup
	for range 50 {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			unlock, err := locks.lock(context.Background(), "shared")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			counter++
			unlock()
		}()
	}
	waitGroup.Wait()
	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if n := locks.size(); n != 0 {
		t.Errorf("%d entries leaked", n)
	}
}
