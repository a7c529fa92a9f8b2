// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package eventbus

import (
	"testing"
	"time"
)

func TestSubscribeAndLog(t *testing.T) {
	b := New()
	s := b.Subscribe("Custom:DND1")

	b.Log("Custom:DND1", 1)

	ev, err := s.Poll(time.Second)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if ev.Name != "Custom:DND1" || ev.Data != 1 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestPollTimeout(t *testing.T) {
	b := New()
	s := b.Subscribe("Custom:DND1")

	_, err := s.Poll(10 * time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestUnrelatedNameNotDelivered(t *testing.T) {
	b := New()
	s := b.Subscribe("Custom:DND1")

	b.Log("Custom:Other", 1)

	_, err := s.Poll(10 * time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout for unrelated event, got %v", err)
	}
}

func TestAllEventsSubscription(t *testing.T) {
	b := New()
	s := b.Subscribe(AllEvents)

	b.Log("Custom:DND1", "a")
	b.Log("Custom:DND2", "b")

	for _, want := range []string{"Custom:DND1", "Custom:DND2"} {
		ev, err := s.Poll(time.Second)
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if ev.Name != want {
			t.Fatalf("expected %s, got %s", want, ev.Name)
		}
	}
}

func TestUnsubscribeDrainsThenCloses(t *testing.T) {
	b := New()
	s := b.Subscribe("Custom:DND1")
	b.Log("Custom:DND1", 1)
	b.Unsubscribe(s)

	if _, err := s.Poll(time.Second); err != nil {
		t.Fatalf("expected backlog event, got err %v", err)
	}
	if _, err := s.Poll(time.Second); err != ErrClosed {
		t.Fatalf("expected ErrClosed after drain, got %v", err)
	}
}

func TestCloseBus(t *testing.T) {
	b := New()
	s := b.Subscribe(AllEvents)
	b.Close()

	if _, err := s.Poll(10 * time.Millisecond); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
