// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package device is a reference implementation of the device module the
// session and devstate cores treat as an external collaborator. Its
// retain/release vocabulary and button-config traversal are grounded on the
// original sources' sccp_device_t handling (dev_clean, setRegistrationState,
// buttonconfig list), and its registry-visitor shape on webpa-common's
// device.Interface/Registry split.
package device

import (
	"sync"
	"time"
)

// RegistrationState mirrors the device registration state machine the
// binding manager and destruction path drive: NONE -> TOKEN -> REGISTERED,
// with CLEANING and FAILED as teardown states.
type RegistrationState int

const (
	StateNone RegistrationState = iota
	StateTokenSent
	StateRegistered
	StateCleaning
	StateFailed
)

func (s RegistrationState) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateTokenSent:
		return "TOKEN"
	case StateRegistered:
		return "REGISTERED"
	case StateCleaning:
		return "CLEANING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ButtonFeatureID identifies the function of a FEATURE-type button.
type ButtonFeatureID int

const (
	FeatureNone ButtonFeatureID = iota
	FeatureDevstate
)

// ButtonType distinguishes line/speeddial/feature buttons; only FEATURE
// buttons are relevant to the devstate subscription core.
type ButtonType int

const (
	ButtonLine ButtonType = iota
	ButtonFeature
)

// ButtonConfig is one entry of a device's button layout, owned by the
// device and referenced (not copied) by devstate subscribers.
type ButtonConfig struct {
	Instance  int
	Type      ButtonType
	FeatureID ButtonFeatureID
	// Option is the feature's configuration string; for a DEVSTATE button
	// this is the devstate name to subscribe to.
	Option string
	Label  string
}

// ResetKind distinguishes the reset variants sendReset can issue.
type ResetKind int

const (
	ResetRestart ResetKind = iota
	ResetReset
)

// Handle is a reference-counted, non-nil pointer to a Device. A released
// Handle must not be dereferenced; Release returns ok=false once the
// device's reference count has already reached zero, guarding against the use-after-release bug class the original
// C's isPointerDead check existed for.
type Handle struct {
	d *Device
}

// Device is the reference device object. Real deployments back this with
// PBX channel/line state; here it tracks only what the session and devstate
// cores need to exercise against.
type Device struct {
	mu sync.Mutex

	id                  string
	deviceType          string
	tokenBased          bool
	refs                int32
	released            bool
	regState            RegistrationState
	inUseProtocolVersion uint32
	needsUpdate         bool
	needsDelete         bool
	wireless            bool
	buttons             []ButtonConfig
	lastReset           ResetKind
	lastResetAt         time.Time
}

// New returns a Device with one reference already held, returned as a
// Handle. The caller owns this first reference.
func New(id string, buttons []ButtonConfig) Handle {
	d := &Device{id: id, refs: 1, buttons: buttons}
	return Handle{d: d}
}

// ID returns the device's identifier (e.g. "SEP0011223344").
func (h Handle) ID() string {
	return h.d.id
}

// SetDeviceType records the phone model/type string, surfaced on the CLI's
// Type column.
func (h Handle) SetDeviceType(t string) {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	h.d.deviceType = t
}

// DeviceType returns the phone model/type string, if one was recorded.
func (h Handle) DeviceType() string {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	return h.d.deviceType
}

// SetTokenBased records whether this device registers via the token
// handshake, surfaced on the CLI's Token column.
func (h Handle) SetTokenBased(tokenBased bool) {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	h.d.tokenBased = tokenBased
}

// TokenBased reports whether this device uses the token handshake.
func (h Handle) TokenBased() bool {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	return h.d.tokenBased
}

// Retain increments the reference count and returns a new Handle to the
// same Device, and ok=false if the device has already hit zero references
// (it is being destroyed and must not be resurrected).
func (h Handle) Retain() (Handle, bool) {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	if h.d.released {
		return Handle{}, false
	}
	h.d.refs++
	return Handle{d: h.d}, true
}

// Release drops a reference; when the count reaches zero the device is
// marked released and must not be used again. Release on an
// already-exhausted Handle returns ok=false.
func (h Handle) Release() bool {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	if h.d.released {
		return false
	}
	h.d.refs--
	if h.d.refs <= 0 {
		h.d.released = true
	}
	return true
}

// RefCount reports the current reference count, for tests and diagnostics.
func (h Handle) RefCount() int {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	return int(h.d.refs)
}

// SetRegistrationState updates the device's registration state.
func (h Handle) SetRegistrationState(s RegistrationState) {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	h.d.regState = s
}

// RegistrationState reports the device's current registration state.
func (h Handle) RegistrationState() RegistrationState {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	return h.d.regState
}

// SetInUseProtocolVersion records the protocol version the device reported
// in its Register message, consulted by the send path's version-patching
// rule.
func (h Handle) SetInUseProtocolVersion(v uint32) {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	h.d.inUseProtocolVersion = v
}

// InUseProtocolVersion returns the last reported protocol version.
func (h Handle) InUseProtocolVersion() uint32 {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	return h.d.inUseProtocolVersion
}

// MarkUpdate / MarkDelete set the pending-maintenance flags the worker loop
// polls once per iteration.
func (h Handle) MarkUpdate()  { h.setFlags(true, false) }
func (h Handle) MarkDelete()  { h.setFlags(false, true) }
func (h Handle) ClearFlags()  { h.setFlags(false, false) }

func (h Handle) setFlags(update, del bool) {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	h.d.needsUpdate = update
	h.d.needsDelete = del
}

// PendingMaintenance reports whether CheckUpdate should be invoked.
func (h Handle) PendingMaintenance() bool {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	return h.d.needsUpdate || h.d.needsDelete
}

// CheckUpdate runs the device's pending update/delete maintenance and
// clears the flags, mirroring device.check_update().
func (h Handle) CheckUpdate() {
	h.ClearFlags()
}

// Clean releases channels, lines, and timers bound to the device, mirroring
// dev_clean(device, realtime, cleanup_time). cleanupTime bounds how long the
// operation may take before the caller gives up waiting on it.
func (h Handle) Clean(realtime bool, cleanupTime time.Duration) {
	h.SetRegistrationState(StateCleaning)
	// Reference device object has nothing further to tear down; real PBX
	// integrations would release channel/line/timer resources here within
	// cleanupTime.
	_ = realtime
	_ = cleanupTime
}

// SendReset records that a reset of the given kind was requested for the
// device. A real deployment would funnel this through the session's send
// path with a Reset message; it is exposed here so callers can assert on it
// in tests without a live socket.
func (h Handle) SendReset(kind ResetKind) {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	h.d.lastReset = kind
	h.d.lastResetAt = time.Now()
}

// LastReset reports the most recent reset kind requested, and whether any
// reset has been requested at all.
func (h Handle) LastReset() (ResetKind, bool) {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	return h.d.lastReset, !h.d.lastResetAt.IsZero()
}

// Buttons returns the device's button configuration list.
func (h Handle) Buttons() []ButtonConfig {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	return append([]ButtonConfig(nil), h.d.buttons...)
}

// SetWireless records whether this device is one of the models the worker's
// timeout computation grants an extra +10% keepalive slack, mirroring the
// device-type-id hard-coding in the original (promoted here to an explicit
// flag set from deviceid.ID.IsWireless at registration time, per the open
// question in §9 of the design).
func (h Handle) SetWireless(wireless bool) {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	h.d.wireless = wireless
}

// KeepaliveSlack returns the extra fraction of the base keepalive interval
// this device type needs on top of the worker's unconditional +10% base
// slack: 0 for ordinary phones, +0.10 for wireless models, mirroring the
// per-device-type slack hard-coded in the worker's timeout computation.
func (h Handle) KeepaliveSlack() float64 {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	if h.d.wireless {
		return 0.10
	}
	return 0
}
