// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package handler

import "github.com/sccpgw/sccpgw/internal/frame"

// Message ids the reference message set recognizes. MsgIDRegister matches
// the length=40/id=1 "clean connect" scenario from the original test suite.
const (
	MsgIDKeepAlive   uint32 = 0x0000
	MsgIDRegister    uint32 = 0x0001
	MsgIDUnregister  uint32 = 0x0002
)

// DefaultMessageSet is a small reference table covering the messages this
// repository's own handlers and tests exercise. Production deployments
// supply their own, much larger, frame.MessageSet built from the full
// SCCP/SPCP message catalog; unknown ids are not fatal (see frame.Dissect),
// so omissions here only mean "discard and continue", never "close the
// session".
func DefaultMessageSet() frame.MessageSet {
	return frame.MessageSet{
		SCCPSize: map[uint32]uint32{
			MsgIDKeepAlive:  0,
			MsgIDRegister:   32, // 40-byte frame: HeaderSize(12) - 4 + 32 payload bytes = length 40
			MsgIDUnregister: 0,
		},
		SPCPSize:        map[uint32]uint32{},
		SPCPLowBoundary: 0x8000,
	}
}
