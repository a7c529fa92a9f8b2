// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package syncutil

import (
	"testing"

	"github.com/sccpgw/sccpgw/internal/logger"
)

func TestNewMutexPlain(t *testing.T) {
	logger.L.SetDebug(debugFacility, false)
	m := NewMutex()
	if _, ok := m.(*loggedMutex); ok {
		t.Fatal("expected plain mutex when debug facility disabled")
	}
	m.Lock()
	m.Unlock()
}

func TestNewMutexLogged(t *testing.T) {
	logger.L.SetDebug(debugFacility, true)
	defer logger.L.SetDebug(debugFacility, false)

	m := NewMutex()
	if _, ok := m.(*loggedMutex); !ok {
		t.Fatal("expected logged mutex when debug facility enabled")
	}
	m.Lock()
	m.Unlock()
}

func TestNewRWMutex(t *testing.T) {
	logger.L.SetDebug(debugFacility, false)
	m := NewRWMutex()
	m.Lock()
	m.Unlock()
	m.RLock()
	m.RLock()
	m.RUnlock()
	m.RUnlock()
}

func TestNewRWMutexLogged(t *testing.T) {
	logger.L.SetDebug(debugFacility, true)
	defer logger.L.SetDebug(debugFacility, false)

	m := NewRWMutex()
	if _, ok := m.(*loggedRWMutex); !ok {
		t.Fatal("expected logged rwmutex when debug facility enabled")
	}
	m.Lock()
	m.Unlock()
	m.RLock()
	m.RUnlock()
}
