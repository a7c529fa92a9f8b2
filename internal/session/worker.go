// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package session

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/sccpgw/sccpgw/internal/device"
	"github.com/sccpgw/sccpgw/internal/frame"
	"github.com/sccpgw/sccpgw/internal/handler"
	"github.com/sccpgw/sccpgw/internal/logger"
	"github.com/sccpgw/sccpgw/internal/messages"
)

// readChunk is the per-Read buffer size; the accumulation buffer starts
// with 2x frame.MaxPacket capacity, mirroring the reference's recv_buffer
// sizing, and is not capped: consumed bytes are sliced off its front and
// append reallocates it when it fills.
const readChunk = 4096

// keepaliveSlackBase is the unconditional +10% the worker's timeout
// computation applies on top of the device's raw keepalive interval.
const keepaliveSlackBase = 0.10

// runWorker is the per-connection worker (C5): a single-threaded
// poll-and-dispatch loop owning s's socket, framing inbound bytes via
// internal/frame, dispatching through table, and refreshing the keepalive
// on every successful iteration. Exit, regardless of cause, runs destroy()
// exactly once through a deferred call.
func runWorker(s *Session, registry *Registry, table handler.Table, keepaliveInterval time.Duration, reloadInProgress ReloadGate) {
	defer registry.Destroy(s, SessionDeviceCleanupTime)

	ms := handler.DefaultMessageSet()
	buf := make([]byte, 0, 2*frame.MaxPacket)

	for {
		if s.Stopped() {
			return
		}

		if dev, ok := s.Device(); ok && dev.PendingMaintenance() && !reloadInProgress() {
			dev.CheckUpdate()
		}

		timeout := workerTimeout(s, keepaliveInterval)
		s.conn.SetReadDeadline(time.Now().Add(timeout))

		chunk := make([]byte, readChunk)
		n, err := s.conn.Read(chunk)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if s.IdleFor() > timeout {
					s.SetState(StateTimeout)
					logger.L.DebugFacilityf(debugFacility, "%s: keepalive timeout", s.Designator())
					return
				}
				continue
			}
			if errors.Is(err, io.EOF) || s.Stopped() {
				return
			}
			failWorker(s)
			return
		}
		if n == 0 {
			continue
		}
		buf = append(buf, chunk[:n]...)

		consumed, derr := drainFrames(s, table, ms, buf)
		buf = buf[consumed:]
		if derr != nil {
			logger.L.DebugFacilityf(debugFacility, "%s: dispatch failed: %v", s.Designator(), derr)
			failWorker(s)
			return
		}

		s.Touch()
	}
}

// drainFrames decodes and dispatches every complete frame currently
// buffered, returning how many bytes were consumed. Mirrors process_buffer's
// compaction loop, expressed as a slice-returning function instead of an
// in-place memmove.
func drainFrames(s *Session, table handler.Table, ms frame.MessageSet, buf []byte) (int, error) {
	consumed := 0
	for len(buf)-consumed >= frame.HeaderSize {
		h, err := frame.PeekHeader(buf[consumed:])
		if err != nil {
			break
		}
		wireSize, canonicalSize, derr := frame.Dissect(ms, h)
		if derr != nil && errors.Is(derr, frame.ErrUnknownMessage) {
			if uint64(consumed)+uint64(wireSize) > uint64(len(buf)) {
				break
			}
			consumed += int(wireSize)
			continue
		}
		if derr != nil {
			return consumed, derr
		}
		if uint64(consumed)+uint64(wireSize) > uint64(len(buf)) {
			break
		}

		f := frame.Decode(buf[consumed:], h, wireSize, canonicalSize)
		if err := table.Dispatch(f, s); err != nil {
			return consumed, err
		}
		consumed += int(wireSize)
	}
	return consumed, nil
}

// failWorker sends a Reset(RESTART) to the attached device, if any, and
// marks it FAILED, mirroring the "on dispatch failure... send RESET
// RESTART... mark FAILED" rule.
func failWorker(s *Session) {
	s.SetState(StateFailed)
	if dev, ok := s.Device(); ok {
		dev.SendReset(device.ResetRestart)
		dev.SetRegistrationState(device.StateFailed)
		s.Send(messages.Reset(messages.ResetRestart))
	}
}

// workerTimeout computes the poll timeout for the current iteration: the
// listener's keepalive interval extended by the +10% base slack, plus any
// additional device-type-specific slack reported by
// device.Handle.KeepaliveSlack. The same base interval is used whether or
// not a device is attached; devices carry no keepalive interval of their own.
func workerTimeout(s *Session, defaultKeepalive time.Duration) time.Duration {
	base := defaultKeepalive
	extra := keepaliveSlackBase
	if dev, ok := s.Device(); ok {
		extra += dev.KeepaliveSlack()
	}
	return time.Duration(float64(base) * (1 + extra))
}
