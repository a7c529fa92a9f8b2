// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package session

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/sccpgw/sccpgw/internal/device"
	"github.com/sccpgw/sccpgw/internal/logger"
	"github.com/sccpgw/sccpgw/internal/messages"
	"github.com/sccpgw/sccpgw/internal/syncutil"
)

// ErrCrossDeviceCollision is returned by Attach when dev is already bound to
// a different, still-live session. The caller's session has already been
// rejected and stopped by ResolveCrossDeviceCollision by the time this is
// returned; it propagates up through the handler table's "non-zero means
// fatal, close the session" contract (§6) so the worker tears s down too.
var ErrCrossDeviceCollision = errors.New("session: device already registered on another session")

// SessionDeviceCleanupTime is the grace period destroy() gives device-side
// cleanup, mirroring SESSION_DEVICE_CLEANUP_TIME (10s).
const SessionDeviceCleanupTime = 10 * time.Second

// Registry is the process-wide set of live sessions (C3), with
// read-mostly traversal and the device-binding manager (C6) layered on top
// since cross-device collision resolution needs registry-wide lookups.
type Registry struct {
	mu       syncutil.RWMutex
	byPeer   map[string]*Session
	byDevice map[string]*Session
	sessions map[*Session]struct{}

	tokenBackoff func() time.Duration
}

// NewRegistry returns an empty Registry. tokenBackoff supplies the backoff
// duration used in token-based cross-device rejections; pass nil to use a
// fixed default.
func NewRegistry(tokenBackoff func() time.Duration) *Registry {
	return &Registry{
		byPeer:       make(map[string]*Session),
		byDevice:     make(map[string]*Session),
		sessions:     make(map[*Session]struct{}),
		mu:           syncutil.NewRWMutex(),
		tokenBackoff: tokenBackoff,
	}
}

// Insert adds s to the registry, a no-op if s is already present.
func (r *Registry) Insert(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s]; ok {
		return
	}
	r.sessions[s] = struct{}{}
	r.byPeer[s.RemoteAddr()] = s
}

// Remove deletes s from the registry and reports whether it was present.
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s]; !ok {
		return false
	}
	delete(r.sessions, s)
	if r.byPeer[s.RemoteAddr()] == s {
		delete(r.byPeer, s.RemoteAddr())
	}
	if dev, ok := s.Device(); ok {
		if r.byDevice[dev.ID()] == s {
			delete(r.byDevice, dev.ID())
		}
	}
	return true
}

// FindByPeer returns the live session bound to the given peer address, if
// any. A session with its stop flag set is never returned.
func (r *Registry) FindByPeer(addr string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byPeer[addr]
	if !ok || s.Stopped() {
		return nil, false
	}
	return s, true
}

// FindByDeviceID returns the live session currently bound to deviceID.
func (r *Registry) FindByDeviceID(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byDevice[id]
	if !ok || s.Stopped() {
		return nil, false
	}
	return s, true
}

// All returns a snapshot of every session currently in the registry, safe
// for the caller to range over even as sessions are concurrently removed.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Row is one line of the CLI's "sessions list" table: Socket/IP/Port/KA/
// KAI/DeviceName/State/Type/RegState/Token, mirroring sccp_cli_show_sessions.
type Row struct {
	Socket     int32
	IP         string
	Port       string
	KA         time.Duration
	KAI        time.Duration
	DeviceName string
	State      string
	Type       string
	RegState   string
	Token      string
}

// Rows renders every session as a CLI Row. Sessions with no attached device
// are omitted unless all is true, mirroring the reference's "all" CLI
// argument.
func (r *Registry) Rows(all bool) []Row {
	sessions := r.All()
	rows := make([]Row, 0, len(sessions))
	for _, s := range sessions {
		dev, hasDevice := s.Device()
		if !hasDevice && !all {
			continue
		}

		row := Row{
			Socket: s.SocketID(),
			KA:     s.IdleFor(),
			KAI:    s.KeepaliveInterval(),
			State:  s.State().String(),
		}
		host, port, err := net.SplitHostPort(s.RemoteAddr())
		if err == nil {
			row.IP, row.Port = host, port
		} else {
			row.IP = s.RemoteAddr()
		}
		if hasDevice {
			row.DeviceName = dev.ID()
			row.Type = dev.DeviceType()
			row.RegState = dev.RegistrationState().String()
			if dev.TokenBased() {
				row.Token = "yes"
			} else {
				row.Token = "no"
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// TerminateAll signals every registered worker to stop; it does not wait
// for them to exit.
func (r *Registry) TerminateAll() {
	for _, s := range r.All() {
		s.Stop()
	}
}

// StalledSince returns every session whose keepalive has gone silent for
// longer than maxIdle, or whose keepalive was explicitly zeroed (marked
// dead), for the listener sweep to act on.
func (r *Registry) StalledSince(maxIdle time.Duration) []*Session {
	var out []*Session
	for _, s := range r.All() {
		if s.Stopped() {
			continue
		}
		if s.IdleFor() > maxIdle {
			out = append(out, s)
		}
	}
	return out
}

// Attach is the device-binding manager's Attach operation (C6): retains
// dev, detaches any device already bound to s, installs the new cross-link
// under s's structural lock, and indexes the session by device id.
// Returns +1 if a new reference was taken, 0 if dev was already attached to
// s, -1 if retain failed. If dev is already bound to a different, still-live
// session, Attach instead resolves the cross-device collision (mirroring
// sccp_session_crossdevice_cleanup: the previous session is torn down, s is
// rejected and stopped) and returns ErrCrossDeviceCollision without
// attaching anything.
func (r *Registry) Attach(s *Session, dev device.Handle) (int, error) {
	if prev, ok := r.FindByDeviceID(dev.ID()); ok && prev != s {
		r.ResolveCrossDeviceCollision(s, dev, dev.TokenBased())
		return -1, ErrCrossDeviceCollision
	}

	retained, ok := dev.Retain()
	if !ok {
		return -1, nil
	}

	s.lock.Lock()
	if s.hasDevice && s.dev.ID() == retained.ID() {
		s.lock.Unlock()
		retained.Release()
		return 0, nil
	}
	var old device.Handle
	hadOld := s.hasDevice
	if hadOld {
		old = s.dev
	}
	s.dev = retained
	s.hasDevice = true
	s.designator = retained.ID() + ":" + strconv.Itoa(int(s.socketID))
	s.lock.Unlock()

	if hadOld {
		old.SetRegistrationState(device.StateNone)
		old.Release()
	}

	r.mu.Lock()
	if hadOld && r.byDevice[old.ID()] == s {
		delete(r.byDevice, old.ID())
	}
	r.byDevice[retained.ID()] = s
	r.mu.Unlock()

	return 1, nil
}

// Detach is the device-binding manager's Detach operation (C6): clears the
// cross-link, resets the designator to the local-address string, marks the
// device unregistered, and returns the previously-owned reference for the
// caller to release.
func (r *Registry) Detach(s *Session) (device.Handle, bool) {
	s.lock.Lock()
	if !s.hasDevice {
		s.lock.Unlock()
		return device.Handle{}, false
	}
	dev := s.dev
	s.hasDevice = false
	s.dev = device.Handle{}
	s.designator = s.LocalAddr()
	s.lock.Unlock()

	dev.SetRegistrationState(device.StateNone)

	r.mu.Lock()
	if r.byDevice[dev.ID()] == s {
		delete(r.byDevice, dev.ID())
	}
	r.mu.Unlock()

	return dev, true
}

// ResolveCrossDeviceCollision implements the cross-device cleanup path: if
// dev is already bound to a session other than s, that previous session is
// stopped and its device detached through the abrupt-cleanup path, then s
// is rejected (token-reject if tokenBased, then always a register-reject)
// and stopped so the phone retries from scratch. Mirrors
// sccp_session_crossdevice_cleanup.
func (r *Registry) ResolveCrossDeviceCollision(s *Session, dev device.Handle, tokenBased bool) {
	prev, ok := r.FindByDeviceID(dev.ID())
	if ok && prev != s {
		logger.L.DebugFacilityf(debugFacility, "%s: previous session for %s needs to be cleaned up and killed", s.Designator(), dev.ID())

		if d, ok := r.Detach(prev); ok {
			d.SetRegistrationState(device.StateNone)
			d.Clean(false, 0)
		}
		prev.Stop()
		r.Remove(prev)
	}

	if tokenBased {
		backoff := 60 * time.Second
		if r.tokenBackoff != nil {
			backoff = r.tokenBackoff()
		}
		s.Send(messages.RegisterTokenReject(uint32(backoff.Milliseconds())))
	}
	s.Send(messages.RegisterReject("Crossover session not allowed, come back later"))
	s.Stop()
}

// Destroy is the only path that frees a session (§4.6): idempotent, it
// retains and cleans any attached device, tears down sibling sessions
// sharing the same device id, deregisters s, and closes its socket.
func (r *Registry) Destroy(s *Session, cleanupTime time.Duration) {
	s.destroyOnce.Do(func() {
		dev, hadDevice := r.Detach(s)
		if hadDevice {
			dev.SetRegistrationState(device.StateCleaning)
			dev.Clean(false, cleanupTime)
			r.destroyAllWithDeviceID(dev.ID(), s, cleanupTime)
			dev.Release()
		}

		r.Remove(s)
		s.conn.Close()
		close(s.done)
	})
}

// destroyAllWithDeviceID tears down every other session in the registry
// still associated with deviceID, handling the pathological case where two
// sessions end up sharing a phone. except is excluded (it is already being
// destroyed by the caller).
func (r *Registry) destroyAllWithDeviceID(deviceID string, except *Session, cleanupTime time.Duration) {
	for _, s := range r.All() {
		if s == except {
			continue
		}
		d, ok := s.Device()
		if !ok || d.ID() != deviceID {
			continue
		}
		s.Stop()
		r.Destroy(s, cleanupTime)
	}
}
