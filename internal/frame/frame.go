// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package frame implements the SCCP/SPCP wire framing: a little-endian
// length-prefixed header followed by a protocol-version-specific payload.
// It is grounded on session_dissect_header and process_buffer from the
// reference session core, reworked into a stateless codec the caller drives
// from its own read loop instead of a blocking poll(2)/recv(2) pair.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// LengthFieldSize is the size of the leading length prefix.
	LengthFieldSize = 4

	// HeaderSize is the length prefix plus the protocol version and message
	// ID fields that follow it, all fixed-size and little-endian.
	HeaderSize = 12

	// MaxPacket bounds a single frame, including HeaderSize. Frames
	// reporting a larger size are rejected and the connection closed, as in
	// the original's "Size of the data payload... is bigger than max
	// packet" guard.
	MaxPacket = 3000
)

// Errors returned by Frame parsing. ErrBadLength and ErrTooLarge are fatal to
// the connection (the original closes the socket); ErrUnknownMessage is not
// (the original reads and discards the message body and keeps going).
var (
	ErrBadLength      = errors.New("frame: length field out of bounds")
	ErrTooLarge       = errors.New("frame: frame exceeds MaxPacket")
	ErrUnknownMessage = errors.New("frame: unknown message id")
)

// Header is the decoded fixed portion of a frame.
type Header struct {
	// Length is the wire length field: the number of bytes following the
	// length field itself (ProtocolVersion + MessageID + payload).
	Length          uint32
	ProtocolVersion uint32
	MessageID       uint32
}

// Frame is a fully decoded message: header plus its payload bytes (excluding
// the header itself).
type Frame struct {
	Header  Header
	Payload []byte
}

// Size reports the total number of bytes this frame occupies on the wire,
// including the length field.
func (h Header) Size() uint32 {
	return h.Length + LengthFieldSize
}

// PeekHeader decodes the fixed header from the front of buf. It requires at
// least HeaderSize bytes; callers must ensure that much is buffered before
// calling (mirroring process_buffer's `*len >= SCCP_PACKET_HEADER` check).
func PeekHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, io.ErrShortBuffer
	}
	h := Header{
		Length:          binary.LittleEndian.Uint32(buf[0:4]),
		ProtocolVersion: binary.LittleEndian.Uint32(buf[4:8]),
		MessageID:       binary.LittleEndian.Uint32(buf[8:12]),
	}
	return h, nil
}

// FrameSize validates h.Length against the wire's documented bounds
// (`length < 4` or `length > MaxPacket-8` is rejected) and returns the total
// number of bytes (including the length field) the caller must have
// buffered before decoding the full frame. It returns ErrBadLength/ErrTooLarge
// for a header that can never be valid, mirroring process_buffer's
// payload_len bound check.
func FrameSize(h Header) (uint32, error) {
	if h.Length < 4 {
		return 0, ErrBadLength
	}
	if h.Length > MaxPacket-8 {
		return 0, ErrTooLarge
	}
	return h.Size(), nil
}

// MessageSet resolves message IDs to their fixed payload size, mirroring
// sccp_messagetypes/spcp_messagetypes plus the SCCP_MESSAGE_HIGH_BOUNDARY /
// SPCP_MESSAGE_LOW_BOUNDARY / SPCP_MESSAGE_HIGH_BOUNDARY split in
// session_dissect_header.
type MessageSet struct {
	// SCCPSize maps a message ID in the SCCP message-ID space to its known
	// fixed payload size (excluding HeaderSize).
	SCCPSize map[uint32]uint32
	// SPCPSize maps a message ID in the SPCP message-ID space to its known
	// fixed payload size.
	SPCPSize map[uint32]uint32
	// SPCPLowBoundary is the first message ID considered part of the SPCP
	// space; IDs below it are looked up in SCCPSize.
	SPCPLowBoundary uint32
}

// KnownSize returns the payload size session_dissect_header would have
// computed for messageID, and whether the ID is known at all. An unknown
// message ID is not fatal: the original reads and discards it using the
// length the peer claimed.
func (ms MessageSet) KnownSize(messageID uint32) (uint32, bool) {
	if messageID < ms.SPCPLowBoundary {
		sz, ok := ms.SCCPSize[messageID]
		return sz, ok
	}
	sz, ok := ms.SPCPSize[messageID]
	return sz, ok
}

// Dissect reproduces session_dissect_header: given a decoded Header, it
// returns the number of bytes the caller must consume from the wire
// (wireSize, bounds-checked by FrameSize) and the canonical payload size the
// message table assigns to h.MessageID. The two sizes may disagree — a phone
// may send a frame larger or smaller than the table expects due to firmware
// drift — and Decode reconciles them by truncating or zero-padding. When the
// message ID is unknown, wireSize is still valid (the original's "unknown
// message, read it and discard content completely" path) but canonicalSize
// is meaningless and err is ErrUnknownMessage.
func Dissect(ms MessageSet, h Header) (wireSize uint32, canonicalSize uint32, err error) {
	wireSize, err = FrameSize(h)
	if err != nil {
		return 0, 0, err
	}
	size, ok := ms.KnownSize(h.MessageID)
	if !ok {
		return wireSize, 0, fmt.Errorf("%w: id=%d", ErrUnknownMessage, h.MessageID)
	}
	return wireSize, size, nil
}

// Decode extracts f's payload from buf (which must have at least wireSize
// bytes buffered from offset 0), truncating or zero-padding it to exactly
// canonicalSize bytes the way session_buffer2msg normalizes a peer's
// declared size to the table's expectation before dispatch. Header.Length is
// rewritten to reflect the canonical size actually handed to the dispatcher.
func Decode(buf []byte, h Header, wireSize, canonicalSize uint32) Frame {
	payload := make([]byte, canonicalSize)
	available := wireSize - HeaderSize
	n := available
	if n > canonicalSize {
		n = canonicalSize
	}
	copy(payload, buf[HeaderSize:HeaderSize+n])
	h.Length = canonicalSize + (HeaderSize - LengthFieldSize)
	return Frame{Header: h, Payload: payload}
}

// Encode serializes f back to wire bytes.
func Encode(f Frame) []byte {
	out := make([]byte, HeaderSize+len(f.Payload))
	binary.LittleEndian.PutUint32(out[0:4], f.Header.Length)
	binary.LittleEndian.PutUint32(out[4:8], f.Header.ProtocolVersion)
	binary.LittleEndian.PutUint32(out[8:12], f.Header.MessageID)
	copy(out[HeaderSize:], f.Payload)
	return out
}

// Dump writes a short hex summary of f to w, for parity with sccp_dump_msg's
// debug-only packet dump before every send.
func Dump(w io.Writer, f Frame) {
	fmt.Fprintf(w, "frame: len=%d protover=%d msgid=0x%x payload=% x\n",
		f.Header.Length, f.Header.ProtocolVersion, f.Header.MessageID, f.Payload)
}
