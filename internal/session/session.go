// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package session implements the session core (C2-C7): per-connection
// session state, the process-wide registry, the accepting listener, the
// per-connection worker loop, the device-binding manager, and the send
// path. Grounded in full on sccp_session.c.
package session

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sccpgw/sccpgw/internal/device"
	"github.com/sccpgw/sccpgw/internal/deviceid"
	"github.com/sccpgw/sccpgw/internal/frame"
	"github.com/sccpgw/sccpgw/internal/logger"
	"github.com/sccpgw/sccpgw/internal/messages"
	"github.com/sccpgw/sccpgw/internal/syncutil"
)

const debugFacility = "socket"

// nextSocketID hands out the CLI's "Socket" column value. Go's net.Conn
// gives no portable access to the underlying file descriptor without a
// platform-specific syscall.RawConn dance, so a monotonically increasing
// package-wide counter stands in for the original's raw fd, preserving
// the column's role (a short, stable per-connection identifier) without
// the portability cost.
var nextSocketID int32

func allocSocketID() int32 {
	return atomic.AddInt32(&nextSocketID, 1)
}

// Flavor distinguishes the SCCP and SPCP wire dialects a session speaks.
// A new session defaults to SCCP and may be upgraded by the first message,
// mirroring sccp_session_setProtocol.
type Flavor int

const (
	FlavorSCCP Flavor = iota
	FlavorSPCP
)

// State records why a session stopped, surfaced on the CLI's State column.
type State int

const (
	StateActive State = iota
	StateFailed
	StateTimeout
)

func (s State) String() string {
	switch s {
	case StateFailed:
		return "FAILED"
	case StateTimeout:
		return "TIMEOUT"
	default:
		return "ACTIVE"
	}
}

// ErrSessionStopped is returned by Send when the session has already begun
// teardown.
var ErrSessionStopped = errors.New("session: stopped")

// DeviceLookup resolves a device id (as carried in a Register message) to a
// Handle, the integration point a real PBX/device directory would provide.
type DeviceLookup func(id string) (device.Handle, error)

// Session is one accepted TCP connection and everything bound to it.
// Created by the Listener; freed only through Registry.Destroy, which its
// own worker calls on exit and which a Destroy of another session bound to
// the same device id also calls after stopping it.
type Session struct {
	socketID int32
	conn     net.Conn
	peerAddr net.Addr
	localAddr net.Addr

	lastKeepAlive int64 // unix seconds written only by the worker; 0 = marked dead
	stopFlag      int32 // atomic bool
	state         int32 // atomic State

	writeMu syncutil.Mutex
	lock    syncutil.Mutex // structural mutex: guards dev/designator/protocolFlavor

	protocolFlavor Flavor
	dev            device.Handle
	hasDevice      bool
	designator     string

	keepaliveInterval time.Duration
	lookupDevice      DeviceLookup

	registry *Registry
	done     chan struct{}

	destroyOnce sync.Once
}

func newSession(conn net.Conn, keepaliveInterval time.Duration, lookup DeviceLookup, reg *Registry) *Session {
	s := &Session{
		socketID:          allocSocketID(),
		conn:              conn,
		peerAddr:          conn.RemoteAddr(),
		localAddr:         conn.LocalAddr(),
		lastKeepAlive:     time.Now().Unix(),
		writeMu:           syncutil.NewMutex(),
		lock:              syncutil.NewMutex(),
		protocolFlavor:    FlavorSCCP,
		keepaliveInterval: keepaliveInterval,
		lookupDevice:      lookup,
		registry:          reg,
		done:              make(chan struct{}),
	}
	s.designator = s.LocalAddr()
	return s
}

// SocketID returns the session's CLI "Socket" column value (see
// allocSocketID).
func (s *Session) SocketID() int32 {
	return s.socketID
}

// KeepaliveInterval returns the keepalive interval this session was created
// with, the CLI's "KAI" column.
func (s *Session) KeepaliveInterval() time.Duration {
	return s.keepaliveInterval
}

// RemoteAddr returns the peer's socket address, satisfying handler.Session.
func (s *Session) RemoteAddr() string {
	return s.peerAddr.String()
}

// LocalAddr returns the family-generic local address the peer connected to,
// mirroring the original's ourip.
func (s *Session) LocalAddr() string {
	if s.localAddr == nil {
		return ""
	}
	return s.localAddr.String()
}

// LocalAddr4 returns a best-effort IPv4-only rendering of the local
// address, mirroring the original's separately tracked ourIPv4 (used
// downstream for RTP media negotiation, out of this package's scope but
// preserved for API parity).
func (s *Session) LocalAddr4() string {
	host, _, err := net.SplitHostPort(s.LocalAddr())
	if err != nil {
		return ""
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return ""
	}
	return ip.To4().String()
}

// Designator returns the session's human-readable log/CLI tag: "<id>:<fd>"
// once a device is attached (fd being the SocketID stand-in), else the
// local address.
func (s *Session) Designator() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.designator
}

// Protocol reports which wire dialect this session currently speaks.
func (s *Session) Protocol() Flavor {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.protocolFlavor
}

// SetProtocol upgrades the session's wire dialect, mirroring
// sccp_session_setProtocol.
func (s *Session) SetProtocol(f Flavor) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.protocolFlavor = f
}

// Touch refreshes the last-keepalive timestamp to now; only the owning
// worker ever calls this.
func (s *Session) Touch() {
	atomic.StoreInt64(&s.lastKeepAlive, time.Now().Unix())
}

// MarkDead zeroes the keepalive timestamp, the listener sweep's signal that
// this session is already gone and should be stopped without a grace
// period.
func (s *Session) MarkDead() {
	atomic.StoreInt64(&s.lastKeepAlive, 0)
}

// IdleFor reports how long it has been since the last keepalive, or a very
// large duration if the session has been marked dead.
func (s *Session) IdleFor() time.Duration {
	last := atomic.LoadInt64(&s.lastKeepAlive)
	if last == 0 {
		return time.Duration(1<<62 - 1)
	}
	return time.Since(time.Unix(last, 0))
}

// Stop sets the stop flag and shuts down the read half of the socket,
// waking a blocking read the same way __sccp_session_stopthread's
// shutdown(fd, SHUT_RD) wakes poll. Idempotent: subsequent calls are no-ops.
func (s *Session) Stop() {
	if !atomic.CompareAndSwapInt32(&s.stopFlag, 0, 1) {
		return
	}
	if tc, ok := s.conn.(*net.TCPConn); ok {
		tc.CloseRead()
	} else {
		s.conn.SetReadDeadline(time.Unix(1, 0))
	}
}

// Stopped reports whether Stop has been called.
func (s *Session) Stopped() bool {
	return atomic.LoadInt32(&s.stopFlag) == 1
}

// SetState records why the session stopped, for the CLI's State column.
func (s *Session) SetState(st State) {
	atomic.StoreInt32(&s.state, int32(st))
}

// State reports the session's last recorded state.
func (s *Session) State() State {
	return State(atomic.LoadInt32(&s.state))
}

// Done returns a channel closed once the owning worker has exited and
// cleanup has run.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Device returns the currently attached device handle, if any.
func (s *Session) Device() (device.Handle, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.dev, s.hasDevice
}

// AttachDeviceByID validates id, resolves it via the session's DeviceLookup,
// and attaches the result through the owning Registry, satisfying
// handler.Session. The device's wireless flag is derived from the
// identifier's naming convention (deviceid.ID.IsWireless) so the worker's
// keepalive slack computation sees it without a separate configuration
// lookup.
func (s *Session) AttachDeviceByID(id string) error {
	parsed, err := deviceid.Parse(id)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if s.lookupDevice == nil {
		return fmt.Errorf("session: no device lookup configured")
	}
	dev, err := s.lookupDevice(parsed.String())
	if err != nil {
		return err
	}
	dev.SetWireless(parsed.IsWireless())
	_, err = s.registry.Attach(s, dev)
	return err
}

// Send implements the send path (C7): patches the protocol-version header
// byte, serializes writers under the write mutex, and retries on transient
// I/O errors with exponential backoff, mirroring sccp_session_send2.
func (s *Session) Send(f frame.Frame) (int, error) {
	if s.Stopped() {
		return 0, ErrSessionStopped
	}

	var inUseVersion uint32
	if dev, ok := s.Device(); ok {
		inUseVersion = dev.InUseProtocolVersion()
	}
	f = messages.PatchProtocolVersion(f, inUseVersion)
	wire := frame.Encode(f)

	if logger.L.Debug("message") {
		logger.L.DebugFacilityf("message", "%s: sending", s.Designator())
		frame.Dump(debugWriter{}, f)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	backoff := writeBackoffInitial
	sent := 0
	for sent < len(wire) {
		n, err := s.conn.Write(wire[sent:])
		sent += n
		if err == nil {
			continue
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			time.Sleep(backoff)
			if backoff < writeBackoffMax {
				backoff *= 2
			}
			continue
		}
		return sent, err
	}
	return sent, nil
}

const (
	writeBackoffInitial = time.Millisecond
	writeBackoffMax     = 500 * time.Millisecond
)

// debugWriter routes frame.Dump's output through the logger instead of a
// raw io.Writer; kept trivial since Dump's only caller here is debug-gated.
type debugWriter struct{}

func (debugWriter) Write(p []byte) (int, error) {
	logger.L.DebugFacilityln("message", string(p))
	return len(p), nil
}
