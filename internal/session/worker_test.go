// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package session

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sccpgw/sccpgw/internal/device"
	"github.com/sccpgw/sccpgw/internal/frame"
	"github.com/sccpgw/sccpgw/internal/handler"
)

// registerTable builds a handler.Table whose MsgIDRegister entry attaches
// the sender's device id, the same shape cmd/sccpgw's registerHandler uses.
func registerTable() handler.Table {
	return handler.Table{
		handler.MsgIDRegister: func(f frame.Frame, s handler.Session) error {
			return s.AttachDeviceByID(string(f.Payload))
		},
	}
}

// registerFrame encodes a Register message (§8 Scenario 1/5 shape) carrying
// deviceID as a null-padded 32-byte payload, matching
// handler.DefaultMessageSet's canonical Register size.
func registerFrame(deviceID string) []byte {
	payload := make([]byte, 32)
	copy(payload, deviceID)
	f := frame.Frame{Header: frame.Header{MessageID: handler.MsgIDRegister}, Payload: payload}
	f.Header.Length = uint32(frame.HeaderSize-frame.LengthFieldSize) + uint32(len(payload))
	return frame.Encode(f)
}

// drainDiscard reads and discards everything conn produces until it's
// closed, unblocking a Session.Send made over a net.Pipe (whose Write blocks
// until something reads).
func drainDiscard(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

func TestWorkerTimeoutWirelessSlack(t *testing.T) {
	reg := NewRegistry(nil)
	s, _ := pipeSession(t, reg)

	base := workerTimeout(s, time.Minute)
	if base != time.Minute+6*time.Second {
		t.Fatalf("expected +10%% base slack, got %v", base)
	}

	dev := device.New("VG001122334455", nil)
	dev.SetWireless(true)
	reg.Attach(s, dev)

	withWireless := workerTimeout(s, time.Minute)
	if withWireless != time.Minute+12*time.Second {
		t.Fatalf("expected +20%% for a wireless device, got %v", withWireless)
	}
}

func TestDrainFramesDispatchesCompleteFrames(t *testing.T) {
	var gotID uint32
	table := handler.Table{
		1: func(f frame.Frame, s handler.Session) error {
			gotID = f.Header.MessageID
			return nil
		},
	}
	ms := frame.MessageSet{SCCPSize: map[uint32]uint32{1: 4}, SPCPLowBoundary: 0x8000}

	f := frame.Frame{Header: frame.Header{MessageID: 1}, Payload: []byte{1, 2, 3, 4}}
	f.Header.Length = uint32(frame.HeaderSize-frame.LengthFieldSize) + uint32(len(f.Payload))
	wire := frame.Encode(f)

	reg := NewRegistry(nil)
	s, _ := pipeSession(t, reg)

	consumed, err := drainFrames(s, table, ms, wire)
	if err != nil {
		t.Fatalf("drainFrames: %v", err)
	}
	if consumed != len(wire) {
		t.Fatalf("expected to consume the whole buffer, consumed %d of %d", consumed, len(wire))
	}
	if gotID != 1 {
		t.Fatalf("expected handler invoked with id 1, got %d", gotID)
	}
}

func TestDrainFramesStopsOnPartialFrame(t *testing.T) {
	ms := frame.MessageSet{SCCPSize: map[uint32]uint32{1: 4}, SPCPLowBoundary: 0x8000}
	f := frame.Frame{Header: frame.Header{MessageID: 1}, Payload: []byte{1, 2, 3, 4}}
	f.Header.Length = uint32(frame.HeaderSize-frame.LengthFieldSize) + uint32(len(f.Payload))
	wire := frame.Encode(f)

	reg := NewRegistry(nil)
	s, _ := pipeSession(t, reg)

	consumed, err := drainFrames(s, handler.Table{}, ms, wire[:frame.HeaderSize+1])
	if err != nil {
		t.Fatalf("drainFrames: %v", err)
	}
	if consumed != 0 {
		t.Fatalf("expected no bytes consumed for a partially-buffered frame, got %d", consumed)
	}
}

// TestRegisterHandlerResolvesCrossDeviceCollision drives §8 Scenario 5
// ("Cross-device takeover") through the real Register-message path: two
// sessions dispatching through the same handler.Table/AttachDeviceByID code
// the worker loop uses, rather than calling Registry.ResolveCrossDeviceCollision
// directly. The second Register for an already-bound device id must tear
// down the first session and reject+stop the second.
func TestRegisterHandlerResolvesCrossDeviceCollision(t *testing.T) {
	const deviceID = "SEP001122334455"

	reg := NewRegistry(func() time.Duration { return 42 * time.Second })
	table := registerTable()
	ms := handler.DefaultMessageSet()

	var mu sync.Mutex
	byID := make(map[string]device.Handle)
	lookup := func(id string) (device.Handle, error) {
		mu.Lock()
		defer mu.Unlock()
		if h, ok := byID[id]; ok {
			return h, nil
		}
		h := device.New(id, nil)
		byID[id] = h
		return h, nil
	}

	prev, prevConn := pipeSessionWithLookup(t, reg, lookup)
	reg.Insert(prev)
	go drainDiscard(prevConn)

	wire := registerFrame(deviceID)
	consumed, err := drainFrames(prev, table, ms, wire)
	if err != nil {
		t.Fatalf("first Register: unexpected dispatch error: %v", err)
	}
	if consumed != len(wire) {
		t.Fatalf("first Register: consumed %d of %d", consumed, len(wire))
	}
	if _, ok := reg.FindByDeviceID(deviceID); !ok {
		t.Fatal("expected the first session to own the device after Register")
	}

	next, nextConn := pipeSessionWithLookup(t, reg, lookup)
	reg.Insert(next)
	go drainDiscard(nextConn)

	consumed, err = drainFrames(next, table, ms, wire)
	if !errors.Is(err, ErrCrossDeviceCollision) {
		t.Fatalf("second Register: expected ErrCrossDeviceCollision, got %v", err)
	}
	// Dispatch failed before the frame's bytes were counted as consumed;
	// the caller (runWorker) tears the session down regardless, see
	// drainFrames's "on dispatch failure... return consumed, err" contract.
	if consumed != 0 {
		t.Fatalf("second Register: consumed %d, want 0", consumed)
	}

	if !prev.Stopped() {
		t.Fatal("expected the first session's worker to be stopped after the takeover")
	}
	if !next.Stopped() {
		t.Fatal("expected the second (rejecting) session to be stopped too")
	}
	if _, ok := next.Device(); ok {
		t.Fatal("expected the second session to never have attached the device")
	}
}
