// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package gwconfig holds the gateway's mutable global configuration (bind
// address, keepalive interval, QoS markings, ACL, token backoff) behind a
// mutex-guarded Wrapper with live-reload subscription, grounded on the
// teacher's config.Wrapper/connectionSvc.CommitConfiguration pattern in
// cmd/syncthing/connections.go.
package gwconfig

import (
	"os"
	"time"

	"github.com/sccpgw/sccpgw/internal/acl"
	"github.com/sccpgw/sccpgw/internal/syncutil"
	"gopkg.in/yaml.v3"
)

// ACLRule is a single permit/deny CIDR entry as it appears in YAML.
type ACLRule struct {
	Permit string `yaml:"permit,omitempty"`
	Deny   string `yaml:"deny,omitempty"`
}

// Configuration is the declarative, YAML-loadable global configuration,
// mirroring the globals in sccp_session.c: bindaddr, keepalive,
// sccp_tos/sccp_cos, and token_backoff_time.
type Configuration struct {
	BindAddress       string        `yaml:"bindaddr"`
	KeepAlive         time.Duration `yaml:"keepalive"`
	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`
	TOS               int           `yaml:"sccp_tos"`
	COS               int           `yaml:"sccp_cos"`
	TokenBackoff      time.Duration `yaml:"token_backoff_time"`
	ACLRules          []ACLRule     `yaml:"acl"`
}

// DefaultConfiguration returns the built-in defaults, matching the
// reference's compiled-in fallbacks.
func DefaultConfiguration() Configuration {
	return Configuration{
		BindAddress:       "0.0.0.0:2000",
		KeepAlive:         60 * time.Second,
		KeepAliveInterval: 10 * time.Second,
		TOS:               0xb8,
		COS:               4,
		TokenBackoff:      60 * time.Second,
	}
}

// Committer is notified of a configuration change before it takes effect and
// may veto a change requiring an incompatible restart, mirroring
// connectionSvc's VerifyConfiguration/CommitConfiguration pair.
type Committer interface {
	// VerifyConfiguration returns an error if to is not an acceptable
	// configuration to move to.
	VerifyConfiguration(from, to Configuration) error
	// CommitConfiguration applies the change live and reports whether the
	// change could be applied without a restart.
	CommitConfiguration(from, to Configuration) bool
}

// Wrapper guards a Configuration and notifies subscribed Committers of
// changes, modeled on config.Wrapper.
type Wrapper struct {
	mut       syncutil.RWMutex
	cfg       Configuration
	subs      []Committer
	reloading bool
	moduleUp  bool
}

// Wrap returns a Wrapper seeded with cfg.
func Wrap(cfg Configuration) *Wrapper {
	return &Wrapper{mut: syncutil.NewRWMutex(), cfg: cfg}
}

// Load reads and parses a YAML configuration file, starting from
// DefaultConfiguration so unset fields keep their defaults.
func Load(path string) (*Wrapper, error) {
	cfg := DefaultConfiguration()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return Wrap(cfg), nil
}

// Raw returns a copy of the current configuration.
func (w *Wrapper) Raw() Configuration {
	w.mut.RLock()
	defer w.mut.RUnlock()
	return w.cfg
}

// ACL builds an acl.List from the current configuration's ACLRules.
func (w *Wrapper) ACL() (*acl.List, error) {
	cfg := w.Raw()
	l := acl.New()
	for _, r := range cfg.ACLRules {
		if r.Permit != "" {
			if err := l.Permit(r.Permit); err != nil {
				return nil, err
			}
		}
		if r.Deny != "" {
			if err := l.Deny(r.Deny); err != nil {
				return nil, err
			}
		}
	}
	return l, nil
}

// Subscribe registers c to be notified of future Replace calls.
func (w *Wrapper) Subscribe(c Committer) {
	w.mut.Lock()
	defer w.mut.Unlock()
	w.subs = append(w.subs, c)
}

// Replace verifies to with every subscriber, then commits it; ReloadInProgress
// is held true for the duration, mirroring reload_in_progress in the reference.
func (w *Wrapper) Replace(to Configuration) error {
	w.mut.Lock()
	from := w.cfg
	w.reloading = true
	w.mut.Unlock()
	defer func() {
		w.mut.Lock()
		w.reloading = false
		w.mut.Unlock()
	}()

	w.mut.RLock()
	subs := append([]Committer(nil), w.subs...)
	w.mut.RUnlock()

	for _, c := range subs {
		if err := c.VerifyConfiguration(from, to); err != nil {
			return err
		}
	}

	w.mut.Lock()
	w.cfg = to
	w.mut.Unlock()

	for _, c := range subs {
		c.CommitConfiguration(from, to)
	}
	return nil
}

// ReloadInProgress reports whether a Replace call is currently in flight.
func (w *Wrapper) ReloadInProgress() bool {
	w.mut.RLock()
	defer w.mut.RUnlock()
	return w.reloading
}

// SetModuleRunning records whether the gateway's session core is up,
// mirroring the reference's module_running flag.
func (w *Wrapper) SetModuleRunning(up bool) {
	w.mut.Lock()
	defer w.mut.Unlock()
	w.moduleUp = up
}

// ModuleRunning reports the module_running flag.
func (w *Wrapper) ModuleRunning() bool {
	w.mut.RLock()
	defer w.mut.RUnlock()
	return w.moduleUp
}
