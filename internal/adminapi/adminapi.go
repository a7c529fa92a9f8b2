// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package adminapi is the gateway's read-only local HTTP surface backing
// the CLI's "sessions list" command, grounded on the teacher's
// cmd/syncthing/gui.go REST dispatch (a net/http.ServeMux of /rest/...
// routes, each writing a JSON-encoded response).
package adminapi

import (
	"encoding/json"
	"net/http"

	"github.com/sccpgw/sccpgw/internal/session"
)

// Server exposes the session registry over a minimal REST API.
type Server struct {
	registry *session.Registry
	mux      *http.ServeMux
}

// New returns a Server backed by reg.
func New(reg *session.Registry) *Server {
	s := &Server{registry: reg, mux: http.NewServeMux()}
	s.mux.HandleFunc("/rest/sessions", s.restGetSessions)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// restGetSessions writes every session as a session.Row, mirroring
// restGetConnections's "snapshot the model, encode it" shape. The "all"
// query parameter includes sessions with no device attached, mirroring the
// reference CLI's "all" argument.
func (s *Server) restGetSessions(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("all") != ""
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(s.registry.Rows(all))
}
