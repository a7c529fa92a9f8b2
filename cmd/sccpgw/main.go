// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Command sccpgw is the gateway daemon: it loads configuration, runs the
// SCCP/SPCP listener and the stalled-session sweeper under one
// suture.Supervisor, and starts the devstate subscription core, which it
// shuts down after the supervisor returns. Grounded on cmd/syncthing/main.go's top-level
// wiring and connections.go's connectionSvc/suture.Supervisor pairing.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/sccpgw/sccpgw/internal/adminapi"
	"github.com/sccpgw/sccpgw/internal/device"
	"github.com/sccpgw/sccpgw/internal/devstate"
	"github.com/sccpgw/sccpgw/internal/eventbus"
	"github.com/sccpgw/sccpgw/internal/frame"
	"github.com/sccpgw/sccpgw/internal/gwconfig"
	"github.com/sccpgw/sccpgw/internal/handler"
	"github.com/sccpgw/sccpgw/internal/logger"
	"github.com/sccpgw/sccpgw/internal/messages"
	"github.com/sccpgw/sccpgw/internal/session"
	"github.com/sccpgw/sccpgw/internal/syncutil"
)

var l = logger.L

func main() {
	confPath := flag.String("config", "", "path to the gateway YAML configuration")
	adminAddr := flag.String("admin-address", "127.0.0.1:2112", "address the read-only admin API listens on")
	debugFacilities := flag.String("debug", "", "comma-separated debug facilities to enable (socket,devstate,message,sync)")
	flag.Parse()

	for _, f := range splitNonEmpty(*debugFacilities, ',') {
		l.SetDebug(f, true)
	}

	cfg, err := loadConfig(*confPath)
	if err != nil {
		l.Fatalln("loading configuration:", err)
	}

	aclList, err := cfg.ACL()
	if err != nil {
		l.Fatalln("building ACL:", err)
	}

	ln, err := netListen(cfg.Raw().BindAddress)
	if err != nil {
		l.Fatalln("binding listener:", err)
	}

	bus := eventbus.New()
	devices := newDeviceDirectory()

	registry := session.NewRegistry(func() time.Duration { return cfg.Raw().TokenBackoff })

	states := devstate.New(bus, sendFeatureStat(registry))

	table := buildHandlerTable(devices, states)

	listenerSvc := session.NewListener(ln, registry, table, devices.lookup, aclList, cfg.Raw().KeepAlive, cfg.ReloadInProgress)

	sup := suture.NewSimple("sccpgw")
	sup.Add(listenerSvc)
	sup.Add(stalledSessionSweeper{registry: registry, cfg: cfg})

	admin := &http.Server{Addr: *adminAddr, Handler: adminapi.New(registry)}
	go func() {
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Warnf("admin API stopped: %v", err)
		}
	}()

	cfg.SetModuleRunning(true)

	ctx, cancel := context.WithCancel(context.Background())
	go waitForSignal(cancel)

	l.Infof("sccpgw listening on %s, admin API on %s", ln.Addr(), *adminAddr)
	if err := sup.Serve(ctx); err != nil && err != context.Canceled {
		l.Warnf("supervisor exited: %v", err)
	}

	cfg.SetModuleRunning(false)
	registry.TerminateAll()
	states.Shutdown()
	admin.Close()
}

func netListen(addr string) (net.Listener, error) {
	if addr == "" {
		addr = gwconfig.DefaultConfiguration().BindAddress
	}
	return net.Listen("tcp", addr)
}

func loadConfig(path string) (*gwconfig.Wrapper, error) {
	if path == "" {
		return gwconfig.Wrap(gwconfig.DefaultConfiguration()), nil
	}
	return gwconfig.Load(path)
}

func waitForSignal(cancel context.CancelFunc) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	cancel()
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// sendFeatureStat adapts the devstate core's SendFunc to the session
// registry's device-id lookup plus Session.Send, the wiring devstate.go's
// SendFunc doc comment anticipates.
func sendFeatureStat(registry *session.Registry) devstate.SendFunc {
	return func(deviceID string, instance int32, status bool, label string) error {
		s, ok := registry.FindByDeviceID(deviceID)
		if !ok {
			return nil
		}
		_, err := s.Send(messages.FeatureStat(instance, status, label))
		return err
	}
}

// buildHandlerTable wires the reference Register/Unregister handlers to the
// session and devstate cores, standing in for the full per-message-id
// handler set a production deployment supplies (§6: "external
// collaborator").
func buildHandlerTable(devices *deviceDirectory, states *devstate.Core) handler.Table {
	return handler.Table{
		handler.MsgIDRegister:   registerHandler(devices, states),
		handler.MsgIDUnregister: unregisterHandler(devices, states),
	}
}

func registerHandler(devices *deviceDirectory, states *devstate.Core) handler.Func {
	return func(f frame.Frame, s handler.Session) error {
		id := trimNulls(f.Payload)
		if err := s.AttachDeviceByID(id); err != nil {
			return err
		}
		if dev, ok := devices.lookupExisting(id); ok {
			states.OnDeviceRegistered(dev)
		}
		return nil
	}
}

func unregisterHandler(devices *deviceDirectory, states *devstate.Core) handler.Func {
	return func(f frame.Frame, s handler.Session) error {
		id := trimNulls(f.Payload)
		if dev, ok := devices.lookupExisting(id); ok {
			states.OnDeviceUnregistered(dev)
		}
		return nil
	}
}

func trimNulls(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// deviceDirectory is the reference device directory: it lazily creates a
// device.Handle per id the first time it is seen, the minimal stand-in for
// a real PBX device directory (§6's "Device module (external
// collaborator)").
type deviceDirectory struct {
	mu   syncutil.Mutex
	byID map[string]device.Handle
}

func newDeviceDirectory() *deviceDirectory {
	return &deviceDirectory{mu: syncutil.NewMutex(), byID: make(map[string]device.Handle)}
}

func (d *deviceDirectory) lookup(id string) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h, ok := d.byID[id]; ok {
		return h, nil
	}
	h := device.New(id, nil)
	d.byID[id] = h
	return h, nil
}

func (d *deviceDirectory) lookupExisting(id string) (device.Handle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.byID[id]
	return h, ok
}
