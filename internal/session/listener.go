// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package session

import (
	"context"
	"net"
	"time"

	"github.com/sccpgw/sccpgw/internal/acl"
	"github.com/sccpgw/sccpgw/internal/frame"
	"github.com/sccpgw/sccpgw/internal/handler"
	"github.com/sccpgw/sccpgw/internal/logger"
	"github.com/sccpgw/sccpgw/internal/messages"
)

// peerCollisionRetries/peerCollisionDelay bound how long the listener waits
// for a stale session from the same peer address to clear before rejecting
// the new connection, mirroring the "sleep 2 seconds, retry up to 5 times"
// rule in sccp_accept_connection.
const (
	peerCollisionRetries = 5
	peerCollisionDelay   = 2 * time.Second
)

// SweepInterval computes the listener's poll timeout, 5x the base
// keepalive, mirroring the accepting socket's poll timeout.
func SweepInterval(keepalive time.Duration) time.Duration {
	return 5 * keepalive
}

// ReloadGate reports whether a configuration reload is in progress; while
// true the listener skips its stalled-session sweep and drops accept
// events, mirroring the reload_in_progress global.
type ReloadGate func() bool

// Listener is the accepting loop (C4), a suture.Service: Serve runs until
// ctx is canceled or the underlying net.Listener is closed.
type Listener struct {
	ln                net.Listener
	registry          *Registry
	table             handler.Table
	lookupDevice      DeviceLookup
	acl               *acl.List
	keepaliveInterval time.Duration
	reloadInProgress  ReloadGate
	tos               int
	rcvbuf            int
	sndbuf            int
}

// NewListener wraps ln (already bound and listening) as a suture.Service.
func NewListener(ln net.Listener, registry *Registry, table handler.Table, lookup DeviceLookup, acl *acl.List, keepaliveInterval time.Duration, reloadInProgress ReloadGate) *Listener {
	if reloadInProgress == nil {
		reloadInProgress = func() bool { return false }
	}
	return &Listener{
		ln:                ln,
		registry:          registry,
		table:             table,
		lookupDevice:      lookup,
		acl:               acl,
		keepaliveInterval: keepaliveInterval,
		reloadInProgress:  reloadInProgress,
		rcvbuf:            frame.MaxPacket,
		sndbuf:            5 * frame.MaxPacket,
	}
}

// Serve implements suture.Service: it accepts connections until ctx is
// done, dispatching each to its own handling goroutine so a peer-collision
// retry never blocks subsequent accepts, matching the original's
// one-thread-per-connection model under a non-blocking accept loop.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			logger.L.Warnf("session: accept failed: %v", err)
			return err
		}
		go l.handleAccept(conn)
	}
}

func (l *Listener) handleAccept(conn net.Conn) {
	applySocketOptions(conn, l.tos, l.rcvbuf, l.sndbuf)

	peer := conn.RemoteAddr().String()

	for attempt := 0; attempt <= peerCollisionRetries; attempt++ {
		if _, exists := l.registry.FindByPeer(peer); !exists {
			break
		}
		if attempt == peerCollisionRetries {
			logger.L.DebugFacilityf(debugFacility, "%s: existing session, rejecting after %d retries", peer, peerCollisionRetries)
			rejectAndClose(conn, "Cross Device Session. Come back later")
			return
		}
		time.Sleep(peerCollisionDelay)
	}

	if l.acl != nil {
		if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok && !l.acl.Allowed(tcpAddr.IP) {
			logger.L.DebugFacilityf(debugFacility, "%s: denied by ACL", peer)
			rejectAndClose(conn, "Device ip not authorized")
			return
		}
	}

	if l.reloadInProgress() {
		conn.Close()
		return
	}

	s := newSession(conn, l.keepaliveInterval, l.lookupDevice, l.registry)
	l.registry.Insert(s)
	go runWorker(s, l.registry, l.table, l.keepaliveInterval, l.reloadInProgress)
}

func rejectAndClose(conn net.Conn, text string) {
	wire := frame.Encode(messages.RegisterReject(text))
	conn.Write(wire)
	conn.Close()
}

func applySocketOptions(conn net.Conn, tos, rcvbuf, sndbuf int) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tc.SetNoDelay(true); err != nil {
		logger.L.DebugFacilityf(debugFacility, "SetNoDelay: %v", err)
	}
	if err := tc.SetReadBuffer(rcvbuf); err != nil {
		logger.L.DebugFacilityf(debugFacility, "SetReadBuffer: %v", err)
	}
	if err := tc.SetWriteBuffer(sndbuf); err != nil {
		logger.L.DebugFacilityf(debugFacility, "SetWriteBuffer: %v", err)
	}
	// IP_TOS and SO_PRIORITY have no portable stdlib equivalent; setting
	// them requires golang.org/x/sys/unix per-platform syscalls, out of
	// scope for the reference listener. tos is accepted for API parity
	// with the configuration surface and logged at debug level only.
	if tos != 0 {
		logger.L.DebugFacilityf(debugFacility, "tos=%d requested, not applied (no portable stdlib setsockopt)", tos)
	}
}
