// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package messages builds the small set of fixed-layout frames the session
// core emits without involving the external handler table: register
// rejections, token handshake rejections/acks, and feature-status pushes.
// Grounded on the REQ(msg, ...) builders in sccp_session.c
// (sccp_session_reject, sccp_session_tokenReject/tokenAck and their SPCP
// variants) and the FeatureStatMessage builder in sccp_devstate.c.
package messages

import (
	"encoding/binary"

	"github.com/sccpgw/sccpgw/internal/frame"
)

// Message ids for the frames this package builds. Real deployments source
// the full table from the handler package; only the ids needed to emit
// these specific frames live here.
const (
	MsgIDKeepAliveAck            uint32 = 0x0004
	MsgIDRegisterAck             uint32 = 0x0081
	MsgIDUnregisterAck           uint32 = 0x0118
	MsgIDRegisterReject          uint32 = 0x009D
	MsgIDRegisterTokenAck        uint32 = 0x0110
	MsgIDRegisterTokenReject     uint32 = 0x0111
	MsgIDSPCPRegisterTokenAck    uint32 = 0x0112
	MsgIDSPCPRegisterTokenReject uint32 = 0x0113
	MsgIDFeatureStat             uint32 = 0x0152
	MsgIDReset                   uint32 = 0x008F
)

// registerRejectTextLen matches the reference struct's fixed text[] field.
const registerRejectTextLen = 32

// ResetKind mirrors device.ResetKind without importing the device package,
// keeping this a leaf dependency usable directly by the session core.
type ResetKind int

const (
	ResetRestart ResetKind = iota
	ResetReset
)

// RegisterReject builds a RegisterRejectMessage carrying text, truncated to
// the wire field's fixed capacity, mirroring sccp_copy_string's truncating
// copy into msg->data.RegisterRejectMessage.text.
func RegisterReject(text string) frame.Frame {
	buf := make([]byte, registerRejectTextLen)
	copy(buf, text)
	return buildFrame(MsgIDRegisterReject, buf)
}

// RegisterTokenReject builds a RegisterTokenReject carrying the backoff, in
// milliseconds, the phone should wait before retrying token registration.
func RegisterTokenReject(backoffMillis uint32) frame.Frame {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, backoffMillis)
	return buildFrame(MsgIDRegisterTokenReject, payload)
}

// RegisterTokenAck builds a bare RegisterTokenAck, which carries no payload.
func RegisterTokenAck() frame.Frame {
	return buildFrame(MsgIDRegisterTokenAck, nil)
}

// SPCPRegisterTokenAck builds the SPCP variant of RegisterTokenAck, carrying
// a features bitmask.
func SPCPRegisterTokenAck(features uint32) frame.Frame {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, features)
	return buildFrame(MsgIDSPCPRegisterTokenAck, payload)
}

// SPCPRegisterTokenReject builds the SPCP variant of RegisterTokenReject,
// carrying a features bitmask instead of a backoff.
func SPCPRegisterTokenReject(features uint32) frame.Frame {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, features)
	return buildFrame(MsgIDSPCPRegisterTokenReject, payload)
}

// FeatureStat builds a FeatureStatMessage for a feature-button lamp update:
// instance index, the BUTTONTYPE_FEATURE constant, the new boolean status,
// and the cached label, mirroring sccp_devstate_notifySubscriber.
func FeatureStat(instance int32, status bool, label string) frame.Frame {
	const buttonTypeFeature uint32 = 0x11
	const labelLen = 40

	payload := make([]byte, 4+4+4+labelLen)
	binary.LittleEndian.PutUint32(payload[0:4], uint32(instance))
	binary.LittleEndian.PutUint32(payload[4:8], buttonTypeFeature)
	st := uint32(0)
	if status {
		st = 1
	}
	binary.LittleEndian.PutUint32(payload[8:12], st)
	copy(payload[12:12+labelLen], label)
	return buildFrame(MsgIDFeatureStat, payload)
}

// Reset builds a Reset message of the given kind, mirroring
// sccp_session_sendResetMsg(RESTART|RESET).
func Reset(kind ResetKind) frame.Frame {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, uint32(kind))
	return buildFrame(MsgIDReset, payload)
}

func buildFrame(msgID uint32, payload []byte) frame.Frame {
	f := frame.Frame{
		Header: frame.Header{
			Length:    uint32(frame.HeaderSize-frame.LengthFieldSize) + uint32(len(payload)),
			MessageID: msgID,
		},
		Payload: payload,
	}
	return f
}

// PatchProtocolVersion rewrites a frame's protocol-version header field per
// the send path's rule: force 0 for KeepAliveAck/RegisterAck/UnregisterAck;
// force 0x11 if the attached device reports inuseprotocolversion >= 17;
// else 0. Mirrors the version-patching branch at the top of
// sccp_session_send2.
func PatchProtocolVersion(f frame.Frame, inUseProtocolVersion uint32) frame.Frame {
	switch f.Header.MessageID {
	case MsgIDKeepAliveAck, MsgIDRegisterAck, MsgIDUnregisterAck:
		f.Header.ProtocolVersion = 0
	default:
		if inUseProtocolVersion >= 17 {
			f.Header.ProtocolVersion = 0x11
		} else {
			f.Header.ProtocolVersion = 0
		}
	}
	return f
}
