// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package handler

import (
	"errors"
	"testing"

	"github.com/sccpgw/sccpgw/internal/frame"
)

type fakeSession struct {
	attached string
	failWith error
}

func (f *fakeSession) RemoteAddr() string { return "203.0.113.5:2000" }

func (f *fakeSession) AttachDeviceByID(id string) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.attached = id
	return nil
}

func registerHandler(f frame.Frame, s Session) error {
	return s.AttachDeviceByID(string(f.Payload))
}

func TestDispatchKnownMessage(t *testing.T) {
	table := Table{1: registerHandler}
	s := &fakeSession{}

	err := table.Dispatch(frame.Frame{Header: frame.Header{MessageID: 1}, Payload: []byte("SEP001")}, s)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if s.attached != "SEP001" {
		t.Fatalf("expected device SEP001 attached, got %q", s.attached)
	}
}

func TestDispatchUnknownMessageIsNotFatal(t *testing.T) {
	table := Table{}
	s := &fakeSession{}

	if err := table.Dispatch(frame.Frame{Header: frame.Header{MessageID: 999}}, s); err != nil {
		t.Fatalf("expected nil error for unknown message id, got %v", err)
	}
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	boom := errors.New("boom")
	table := Table{1: registerHandler}
	s := &fakeSession{failWith: boom}

	if err := table.Dispatch(frame.Frame{Header: frame.Header{MessageID: 1}}, s); !errors.Is(err, boom) {
		t.Fatalf("expected handler error to propagate, got %v", err)
	}
}
