// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package handler defines the dispatch contract the worker loop calls into
// for every decoded frame, plus a small reference message-size set
// (DefaultMessageSet). The concrete handler table is built by its caller
// (cmd/sccpgw wires Register/Unregister handlers). §6 of the design calls
// this an external collaborator: production deployments supply their own
// Table built from a much larger per-message-id handler set.
package handler

import "github.com/sccpgw/sccpgw/internal/frame"

// Session is the narrow view of a session a handler needs: enough to attach
// a device and read its peer address, without importing internal/session
// (which would create an import cycle back into handler's dispatch).
type Session interface {
	RemoteAddr() string
	AttachDeviceByID(id string) error
}

// Func handles one decoded frame for a session. A non-nil error means
// "fatal, close the session", mirroring the C handler table's "(msg,
// session) -> int, non-zero means fatal" contract.
type Func func(f frame.Frame, s Session) error

// Table maps message id to handler, standing in for the reference's
// array-of-function-pointers indexed by SKINNY/SPCP message id.
type Table map[uint32]Func

// Dispatch looks up and invokes the handler for f's message id. An unknown
// id is not fatal: session_dissect_header already discarded unknown ids
// before a frame reaches dispatch, so a miss here only happens for ids a
// deployment's Table genuinely has no handler for, which this package
// treats as a no-op success rather than a fatal error.
func (t Table) Dispatch(f frame.Frame, s Session) error {
	fn, ok := t[f.Header.MessageID]
	if !ok {
		return nil
	}
	return fn(f, s)
}
