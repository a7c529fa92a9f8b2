// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package devstate is the device-state subscription core (C8): a
// process-wide, name-keyed table of handlers, each fanning external
// device-state events out to the phones whose feature buttons subscribe to
// that state. Grounded in full on sccp_devstate.c: sccp_devstate_deviceState_t,
// sccp_devstate_SubscribingDevice_t, sccp_devstate_addSubscriber,
// sccp_devstate_removeSubscriber, sccp_devstate_notifySubscriber, and
// sccp_devstate_changed_cb.
package devstate

import (
	"strings"

	"github.com/sccpgw/sccpgw/internal/device"
	"github.com/sccpgw/sccpgw/internal/eventbus"
	"github.com/sccpgw/sccpgw/internal/logger"
	"github.com/sccpgw/sccpgw/internal/syncutil"
)

const debugFacility = "devstate"

// customPrefix is prepended to a button's option string before subscribing
// to the external event bus, mirroring sccp_devstate_createDeviceStateHandler.
const customPrefix = "Custom:"

// notInUse is the external state value that maps to a false/0 feature
// status; every other value maps to true/1, mirroring sccp_devstate_changed_cb's
// `state == AST_DEVICE_NOT_INUSE ? 0 : 1` rule.
const notInUse = "NOT_INUSE"

// subscriber is one (handler, device, feature-button) triple.
type subscriber struct {
	dev      device.Handle
	instance int32
	label    string
	status   bool
}

// handlerEntry is one devstate handler: a distinct external state name, its
// cached boolean value, and the phones currently subscribed to it.
type handlerEntry struct {
	name         string
	sub          *eventbus.Subscription
	featureState bool
	subscribers  []*subscriber
}

// SendFunc delivers a FeatureStatMessage-shaped frame to the session bound
// to deviceID. Callers in cmd/sccpgw adapt this from session.Registry's
// device lookup plus Session.Send.
type SendFunc func(deviceID string, instance int32, status bool, label string) error

// Core is the process-wide devstate handler table.
type Core struct {
	bus  *eventbus.Bus
	send SendFunc

	mu       syncutil.RWMutex
	handlers map[string]*handlerEntry
	stopped  bool
}

// New returns a Core watching bus for external events and delivering
// feature-status updates through send.
func New(bus *eventbus.Bus, send SendFunc) *Core {
	return &Core{
		bus:      bus,
		send:     send,
		mu:       syncutil.NewRWMutex(),
		handlers: make(map[string]*handlerEntry),
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// getOrCreateHandler returns the handler for option, creating and
// subscribing it on the bus if this is the first button referencing it.
// Must be called with mu held.
func (c *Core) getOrCreateHandler(option string) *handlerEntry {
	key := normalize(option)
	if h, ok := c.handlers[key]; ok {
		return h
	}
	externalName := customPrefix + option
	h := &handlerEntry{name: externalName}
	h.sub = c.bus.Subscribe(externalName)
	c.handlers[key] = h
	go c.watch(h)
	return h
}

// watch polls h's subscription until it is closed (by Shutdown),
// delivering each event to handleEvent. This is the
// goroutine-per-handler analogue of sccp_devstate_changed_cb being invoked
// by the external event bus's own dispatch thread.
func (c *Core) watch(h *handlerEntry) {
	for {
		ev, err := h.sub.Poll(0)
		if err != nil {
			return
		}
		state, _ := ev.Data.(string)
		c.handleEvent(h, state)
	}
}

// handleEvent applies a new external state value to h and fans the
// resulting boolean out to every subscriber, mirroring
// sccp_devstate_changed_cb + sccp_devstate_notifySubscriber.
func (c *Core) handleEvent(h *handlerEntry, state string) {
	status := strings.ToUpper(state) != notInUse

	c.mu.Lock()
	h.featureState = status
	subs := append([]*subscriber(nil), h.subscribers...)
	c.mu.Unlock()

	for _, s := range subs {
		c.mu.Lock()
		s.status = status
		instance, label := s.instance, s.label
		c.mu.Unlock()

		if c.send == nil {
			continue
		}
		if err := c.send(s.dev.ID(), instance, status, label); err != nil {
			logger.L.DebugFacilityf(debugFacility, "devstate: notify %s failed: %v", s.dev.ID(), err)
		}
	}
}

// OnDeviceRegistered walks dev's button configuration for FEATURE/DEVSTATE
// buttons, attaches a subscriber to each referenced handler (creating the
// handler lazily), and immediately pushes the handler's current status so
// the phone's lamp is correct on registration. Mirrors the
// "sccp_devstate_deviceRegistered" path in sccp_devstate.c.
func (c *Core) OnDeviceRegistered(dev device.Handle) {
	for _, btn := range dev.Buttons() {
		if btn.Type != device.ButtonFeature || btn.FeatureID != device.FeatureDevstate {
			continue
		}

		retained, ok := dev.Retain()
		if !ok {
			continue
		}

		c.mu.Lock()
		h := c.getOrCreateHandler(btn.Option)
		s := &subscriber{dev: retained, instance: int32(btn.Instance), label: btn.Label, status: h.featureState}
		h.subscribers = append(h.subscribers, s)
		status := h.featureState
		c.mu.Unlock()

		if c.send != nil {
			if err := c.send(dev.ID(), s.instance, status, s.label); err != nil {
				logger.L.DebugFacilityf(debugFacility, "devstate: initial notify %s failed: %v", dev.ID(), err)
			}
		}
	}
}

// OnDeviceUnregistered removes every subscriber belonging to dev, releasing
// each one's retained device reference. Mirrors
// sccp_devstate_deviceUnRegistered.
func (c *Core) OnDeviceUnregistered(dev device.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, h := range c.handlers {
		kept := h.subscribers[:0]
		for _, s := range h.subscribers {
			if s.dev.ID() == dev.ID() {
				s.dev.Release()
				continue
			}
			kept = append(kept, s)
		}
		h.subscribers = kept
	}
}

// Shutdown unsubscribes every handler's external hook and releases every
// remaining subscriber's device reference, mirroring
// sccp_devstate_module_stop.
func (c *Core) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true

	for _, h := range c.handlers {
		for _, s := range h.subscribers {
			s.dev.Release()
		}
		h.subscribers = nil
		c.bus.Unsubscribe(h.sub)
	}
	c.handlers = make(map[string]*handlerEntry)
}

// HandlerCount reports how many distinct devstate handlers currently exist,
// for tests and diagnostics.
func (c *Core) HandlerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handlers)
}

// FeatureState reports the cached boolean value of the handler for name,
// and whether that handler exists at all.
func (c *Core) FeatureState(name string) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[normalize(name)]
	if !ok {
		return false, false
	}
	return h.featureState, true
}

// Notify publishes an external event for name on the bus this Core watches,
// a convenience used by the PBX bridge (and tests) in place of driving the
// bus directly.
func (c *Core) Notify(name, state string) {
	c.bus.Log(customPrefix+name, state)
}
