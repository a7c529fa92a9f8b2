// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"time"

	"github.com/sccpgw/sccpgw/internal/gwconfig"
	"github.com/sccpgw/sccpgw/internal/session"
)

// stalledSessionSweeper is the listener's periodic stalled-session sweep
// (§4.3 step 1), split out from session.Listener.Serve (which only accepts
// connections) since Go's deadline-based reads make the "poll with a 5x
// keepalive timeout, and on timeout sweep" pattern more naturally two
// suture.Services sharing one Registry than a single accept loop
// interleaving both concerns, as sccp_socket_thread did.
type stalledSessionSweeper struct {
	registry *session.Registry
	cfg      *gwconfig.Wrapper
}

// Serve implements suture.Service.
func (w stalledSessionSweeper) Serve(ctx context.Context) error {
	for {
		interval := session.SweepInterval(w.cfg.Raw().KeepAlive)
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}

		if w.cfg.ReloadInProgress() {
			continue
		}

		maxIdle := session.SweepInterval(w.cfg.Raw().KeepAlive)
		for _, s := range w.registry.StalledSince(maxIdle) {
			s.MarkDead()
			s.Stop()
		}
	}
}
