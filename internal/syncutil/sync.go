// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package syncutil wraps the standard sync primitives behind constructors so
// that call sites read the same regardless of whether lock-hold-time
// instrumentation is switched on, mirroring the teacher's lib/sync package.
package syncutil

import (
	"sync"
	"time"

	"github.com/sccpgw/sccpgw/internal/logger"
)

const debugFacility = "sync"

// Mutex is the interface satisfied by both the plain and the instrumented
// mutex implementations.
type Mutex interface {
	Lock()
	Unlock()
}

// RWMutex is the interface satisfied by both the plain and the instrumented
// RWMutex implementations.
type RWMutex interface {
	Mutex
	RLock()
	RUnlock()
}

// NewMutex returns a Mutex; when the "sync" debug facility is enabled on
// logger.L, lock holds longer than longWait are logged.
func NewMutex() Mutex {
	if logger.L.Debug(debugFacility) {
		return &loggedMutex{}
	}
	return &sync.Mutex{}
}

// NewRWMutex returns an RWMutex with the same instrumentation rule.
func NewRWMutex() RWMutex {
	if logger.L.Debug(debugFacility) {
		return &loggedRWMutex{}
	}
	return &sync.RWMutex{}
}

const longWait = 100 * time.Millisecond

type loggedMutex struct {
	sync.Mutex
	start time.Time
}

func (m *loggedMutex) Lock() {
	t0 := time.Now()
	m.Mutex.Lock()
	m.start = time.Now()
	if d := m.start.Sub(t0); d > longWait {
		logger.L.DebugFacilityf(debugFacility, "mutex %p took %v to acquire", m, d)
	}
}

func (m *loggedMutex) Unlock() {
	if d := time.Since(m.start); d > longWait {
		logger.L.DebugFacilityf(debugFacility, "mutex %p held for %v", m, d)
	}
	m.Mutex.Unlock()
}

type loggedRWMutex struct {
	sync.RWMutex
	start time.Time
}

func (m *loggedRWMutex) Lock() {
	t0 := time.Now()
	m.RWMutex.Lock()
	m.start = time.Now()
	if d := m.start.Sub(t0); d > longWait {
		logger.L.DebugFacilityf(debugFacility, "rwmutex %p took %v to acquire (write)", m, d)
	}
}

func (m *loggedRWMutex) Unlock() {
	if d := time.Since(m.start); d > longWait {
		logger.L.DebugFacilityf(debugFacility, "rwmutex %p held for %v (write)", m, d)
	}
	m.RWMutex.Unlock()
}

func (m *loggedRWMutex) RLock() {
	m.RWMutex.RLock()
}

func (m *loggedRWMutex) RUnlock() {
	m.RWMutex.RUnlock()
}
