// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package logger

import (
	"bytes"
	"testing"
)

func TestAPI(t *testing.T) {
	l := New()
	l.SetFlags(0)
	l.SetOutput(&bytes.Buffer{})

	debug, info, warn := 0, 0, 0
	l.AddHandler(LevelDebug, func(LogLevel, string) { debug++ })
	l.AddHandler(LevelInfo, func(LogLevel, string) { info++ })
	l.AddHandler(LevelWarn, func(LogLevel, string) { warn++ })

	l.Debugf("test %d", 0)
	l.Debugln("test", 0)
	l.Infof("test %d", 1)
	l.Infoln("test", 1)
	l.Warnf("test %d", 3)
	l.Warnln("test", 3)

	if debug != 2 {
		t.Errorf("Debug handler called %d != 2 times", debug)
	}
	if info != 2 {
		t.Errorf("Info handler called %d != 2 times", info)
	}
	if warn != 2 {
		t.Errorf("Warn handler called %d != 2 times", warn)
	}
}

func TestDebugFacility(t *testing.T) {
	l := New()
	l.SetOutput(&bytes.Buffer{})

	if l.Debug("socket") {
		t.Fatal("facility should default to disabled")
	}
	l.SetDebug("socket", true)
	if !l.Debug("socket") {
		t.Fatal("facility should be enabled after SetDebug")
	}

	calls := 0
	l.AddHandler(LevelDebug, func(LogLevel, string) { calls++ })
	l.DebugFacilityln("socket", "hello")
	l.DebugFacilityln("devstate", "hidden")
	if calls != 1 {
		t.Errorf("expected exactly 1 debug call gated by facility, got %d", calls)
	}
}
