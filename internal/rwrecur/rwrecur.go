// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package rwrecur is a small recursive reader/writer lock: a focused
// primitive with one job, built because the standard library's sync.RWMutex
// does not support re-entrant acquisition: here the holder of the write lock
// may take further write or read acquisitions, and a token holding a read
// lock may upgrade to the write lock, where sync.RWMutex would deadlock.
package rwrecur

import "sync"

// Mutex is a reader/writer lock that allows the SAME token to acquire the
// write lock re-entrantly (Lock while already holding Lock), to take read
// locks while holding the write lock, and to acquire the write lock while
// already holding a read lock (RLock then Lock, as a form of lock upgrade).
// Read-read recursion is rejected: RLock by a token that holds only a read
// lock panics. Readers with different tokens share the lock as with
// sync.RWMutex.
//
// The zero value is an unlocked Mutex.
type Mutex struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state state
}

type state struct {
	writer    int64 // owner token id holding the write lock, 0 if none
	writerRec int   // recursion depth of the write lock
	readers   map[int64]int
}

// goroutine identification in Go has no public API. rwrecur sidesteps this
// by handing callers an explicit Token instead of inferring identity from
// the runtime, which is both simpler and immune to goroutine-id churn.
type Token struct {
	id int64
}

var nextID int64
var nextIDMu sync.Mutex

// NewToken allocates a Token identifying one logical owner (typically one
// goroutine, or one call chain that never hands the token to another
// goroutine concurrently). Callers obtain a Token once and thread it through
// every Lock/RLock/Unlock/RUnlock call they make on a given Mutex.
func NewToken() Token {
	nextIDMu.Lock()
	defer nextIDMu.Unlock()
	nextID++
	return Token{id: nextID}
}

// New returns a ready-to-use Mutex.
func New() *Mutex {
	m := &Mutex{state: state{readers: map[int64]int{}}}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Lock acquires the write lock for tok. It is re-entrant: tok may call Lock
// again while already holding the write lock, and may call Lock while
// already holding a read lock (a lock upgrade), each case incrementing a
// recursion counter that Unlock decrements. It blocks while any other
// token holds the write lock, or holds a read lock.
func (m *Mutex) Lock(tok Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if m.state.writer == tok.id {
			m.state.writerRec++
			return
		}
		if m.state.writer == 0 && m.onlyReader(tok.id) {
			m.state.writer = tok.id
			m.state.writerRec = 1
			return
		}
		m.cond.Wait()
	}
}

// onlyReader reports whether the current reader set is empty, or contains
// only id itself (the lock-upgrade case).
func (m *Mutex) onlyReader(id int64) bool {
	for reader := range m.state.readers {
		if reader != id {
			return false
		}
	}
	return true
}

// Unlock releases one level of write-lock recursion for tok. Once the
// recursion counter reaches zero the write lock is released and any
// goroutine that held a read lock before upgrading keeps that read lock.
func (m *Mutex) Unlock(tok Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.writer != tok.id || m.state.writerRec == 0 {
		panic("rwrecur: Unlock of a Mutex not locked for writing by this token")
	}
	m.state.writerRec--
	if m.state.writerRec == 0 {
		m.state.writer = 0
		m.cond.Broadcast()
	}
}

// RLock acquires a read lock for tok. It blocks while another token holds
// the write lock. A token that already holds the write lock may take RLock
// any number of times, each call incrementing a per-token counter that
// RUnlock decrements; a token that holds only a read lock panics if it
// calls RLock again.
func (m *Mutex) RLock(tok Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.writer != tok.id && m.state.readers[tok.id] > 0 {
		panic("rwrecur: recursive RLock by a token holding only a read lock")
	}
	for {
		if m.state.writer == tok.id {
			m.state.readers[tok.id]++
			return
		}
		if m.state.writer == 0 {
			m.state.readers[tok.id]++
			return
		}
		m.cond.Wait()
	}
}

// RUnlock releases one level of read-lock recursion for tok.
func (m *Mutex) RUnlock(tok Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.state.readers[tok.id]
	if !ok || n == 0 {
		panic("rwrecur: RUnlock of a Mutex not read-locked by this token")
	}
	n--
	if n == 0 {
		delete(m.state.readers, tok.id)
	} else {
		m.state.readers[tok.id] = n
	}
	m.cond.Broadcast()
}
