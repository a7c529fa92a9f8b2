// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sccpgw/sccpgw/internal/session"
)

func TestWriteTableRendersHeaderAndRows(t *testing.T) {
	rows := []session.Row{
		{Socket: 3, IP: "10.0.0.5", Port: "52312", KA: 5 * time.Second, KAI: 30 * time.Second, DeviceName: "SEP001122334455", State: "ACTIVE", Type: "7965", RegState: "REGISTERED", Token: "no"},
		{Socket: 4, IP: "10.0.0.6", Port: "52313", State: "ACTIVE"},
	}

	var buf bytes.Buffer
	WriteTable(&buf, rows)

	out := buf.String()
	if !strings.Contains(out, "Socket") || !strings.Contains(out, "DeviceName") {
		t.Fatalf("expected header row, got %q", out)
	}
	if !strings.Contains(out, "SEP001122334455") {
		t.Fatalf("expected device row, got %q", out)
	}
	if !strings.Contains(out, "-") {
		t.Fatalf("expected device-less row to show placeholders, got %q", out)
	}
}
