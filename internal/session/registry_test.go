// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package session

import (
	"net"
	"testing"
	"time"

	"github.com/sccpgw/sccpgw/internal/device"
)

// pipeSession returns a Session wired to one end of an in-memory net.Pipe,
// standing in for a TCP connection the way net.Pipe is used throughout the
// standard library's own net/http tests.
func pipeSession(t *testing.T, reg *Registry) (*Session, net.Conn) {
	t.Helper()
	return pipeSessionWithLookup(t, reg, nil)
}

// pipeSessionWithLookup is pipeSession with an explicit DeviceLookup, for
// tests driving Session.AttachDeviceByID rather than calling Registry.Attach
// directly.
func pipeSessionWithLookup(t *testing.T, reg *Registry, lookup DeviceLookup) (*Session, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })
	s := newSession(server, time.Minute, lookup, reg)
	return s, client
}

func TestRegistryInsertFindRemove(t *testing.T) {
	reg := NewRegistry(nil)
	s, _ := pipeSession(t, reg)

	reg.Insert(s)
	reg.Insert(s) // duplicate insert is a no-op

	if got, ok := reg.FindByPeer(s.RemoteAddr()); !ok || got != s {
		t.Fatalf("expected to find session by peer address")
	}
	if len(reg.All()) != 1 {
		t.Fatalf("expected 1 session in registry, got %d", len(reg.All()))
	}

	if !reg.Remove(s) {
		t.Fatal("expected Remove to report true on first removal")
	}
	if reg.Remove(s) {
		t.Fatal("expected Remove to report false on second removal")
	}
	if _, ok := reg.FindByPeer(s.RemoteAddr()); ok {
		t.Fatal("expected FindByPeer to miss after removal")
	}
}

func TestRegistryFindByPeerHidesStoppedSession(t *testing.T) {
	reg := NewRegistry(nil)
	s, _ := pipeSession(t, reg)
	reg.Insert(s)

	s.Stop()

	if _, ok := reg.FindByPeer(s.RemoteAddr()); ok {
		t.Fatal("expected a stopped session to be hidden from FindByPeer")
	}
}

func TestAttachDetachMaintainsCrossLink(t *testing.T) {
	reg := NewRegistry(nil)
	s, _ := pipeSession(t, reg)
	reg.Insert(s)

	dev := device.New("SEP001122334455", nil)

	n, err := reg.Attach(s, dev)
	if err != nil || n != 1 {
		t.Fatalf("expected Attach to take a new reference, got n=%d err=%v", n, err)
	}

	got, ok := s.Device()
	if !ok || got.ID() != dev.ID() {
		t.Fatal("expected session.Device() to return the attached device")
	}
	if found, ok := reg.FindByDeviceID(dev.ID()); !ok || found != s {
		t.Fatal("expected FindByDeviceID to resolve the attached session")
	}
	if dev.RefCount() != 2 {
		t.Fatalf("expected 2 references after Attach (caller's + session's), got %d", dev.RefCount())
	}

	released, ok := reg.Detach(s)
	if !ok || released.ID() != dev.ID() {
		t.Fatal("expected Detach to hand back the device reference")
	}
	released.Release()

	if _, ok := s.Device(); ok {
		t.Fatal("expected session.Device() to report none after Detach")
	}
	if _, ok := reg.FindByDeviceID(dev.ID()); ok {
		t.Fatal("expected FindByDeviceID to miss after Detach")
	}
	if released.RegistrationState() != device.StateNone {
		t.Fatalf("expected NONE after Detach, got %s", released.RegistrationState())
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	reg := NewRegistry(nil)
	s, _ := pipeSession(t, reg)
	reg.Insert(s)
	dev := device.New("SEP001122334455", nil)
	reg.Attach(s, dev)

	reg.Destroy(s, 0)
	reg.Destroy(s, 0) // must not panic or double-close

	select {
	case <-s.Done():
	default:
		t.Fatal("expected Done() to be closed after Destroy")
	}
	if len(reg.All()) != 0 {
		t.Fatal("expected registry to be empty after Destroy")
	}
}

func TestResolveCrossDeviceCollisionStopsPreviousSession(t *testing.T) {
	reg := NewRegistry(func() time.Duration { return 42 * time.Second })
	prev, _ := pipeSession(t, reg)
	next, nextConn := pipeSession(t, reg)
	reg.Insert(prev)
	reg.Insert(next)

	dev := device.New("SEP001122334455", nil)
	reg.Attach(prev, dev)

	// Drain next's write so Send doesn't block on the unread pipe.
	done := make(chan struct{})
	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := nextConn.Read(buf); err != nil {
				close(done)
				return
			}
		}
	}()

	reg.ResolveCrossDeviceCollision(next, dev, true)

	if !prev.Stopped() {
		t.Fatal("expected the previous session's worker to be signaled to stop")
	}
	if _, ok := reg.FindByDeviceID(dev.ID()); ok {
		t.Fatal("expected the previous session to no longer own the device")
	}
	if !next.Stopped() {
		t.Fatal("expected the rejected session to be stopped too")
	}
	nextConn.Close()
	<-done
}
