// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rwrecur

import (
	"sync"
	"testing"
	"time"
)

func TestRecursiveWriteLock(t *testing.T) {
	m := New()
	tok := NewToken()

	m.Lock(tok)
	m.Lock(tok) // re-entrant, same token
	m.Unlock(tok)
	m.Unlock(tok)

	// A third Unlock with no matching Lock must panic.
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unbalanced Unlock")
		}
	}()
	m.Unlock(tok)
}

func TestReadThenUpgradeToWrite(t *testing.T) {
	m := New()
	tok := NewToken()

	m.RLock(tok)
	m.Lock(tok) // upgrade while holding a read lock
	m.Unlock(tok)
	m.RUnlock(tok)
}

func TestRecursiveReadLock(t *testing.T) {
	m := New()
	tok := NewToken()

	m.RLock(tok)
	defer m.RUnlock(tok)

	// A second RLock by a token holding only a read lock must panic.
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on recursive RLock")
		}
	}()
	m.RLock(tok)
}

func TestWriterExcludesOtherReaders(t *testing.T) {
	m := New()
	writer := NewToken()
	reader := NewToken()

	m.Lock(writer)

	acquired := make(chan struct{})
	go func() {
		m.RLock(reader)
		close(acquired)
		m.RUnlock(reader)
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired RLock while writer held Lock")
	case <-time.After(50 * time.Millisecond):
	}

	m.Unlock(writer)
	<-acquired
}

func TestConcurrentReaders(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok := NewToken()
			<-start
			m.RLock(tok)
			defer m.RUnlock(tok)
			time.Sleep(time.Millisecond)
		}()
	}
	close(start)
	wg.Wait()
}
