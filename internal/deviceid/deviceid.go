// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package deviceid validates and normalizes the device identifiers carried
// in Register messages (e.g. "SEP0011223344AABB"). It is grounded on the
// teacher's protocol.DeviceID parsing pattern in cmd/syncthing/cli/main.go
// (protocol.NewDeviceID(cert.Certificate[0])) with the certificate-derived
// identity stripped out: spec Non-goals exclude TLS, so there is no
// certificate to hash an ID from here, only the phone-reported string.
package deviceid

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalid is returned by Parse when id is not a well-formed device
// identifier.
var ErrInvalid = errors.New("deviceid: malformed device identifier")

// maxLen bounds a device identifier the way sccp_device_t's name[] field
// does (StationMaxDeviceNameSize in the original headers).
const maxLen = 16

var validID = regexp.MustCompile(`^[A-Za-z0-9]{1,16}$`)

// ID is a validated, case-preserved device identifier.
type ID string

// Parse validates raw as a device identifier: non-empty, at most maxLen
// alphanumeric characters, matching the SEP<mac>/ATA<mac>/VG<mac>-style
// names the original's RegisterMessage carries.
func Parse(raw string) (ID, error) {
	raw = strings.TrimRight(raw, "\x00")
	if !validID.MatchString(raw) {
		return "", ErrInvalid
	}
	return ID(raw), nil
}

// String returns the identifier as a plain string.
func (id ID) String() string {
	return string(id)
}

// IsWireless reports whether id matches a device-name prefix known to need
// the extra keepalive slack the worker's timeout computation applies to
// certain wireless phone models (§4.4, §9 open question: the original
// hard-codes this by device-type id; we key it off the name prefix
// instead, since that is all this package validates).
func (id ID) IsWireless() bool {
	return strings.HasPrefix(strings.ToUpper(string(id)), "VG")
}
