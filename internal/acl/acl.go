// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package acl is a permit/deny CIDR list gating which peers may establish a
// session, grounded on the ACL check in sccp_accept_connection.
package acl

import "net"

// Verdict is the result of checking an address against a List.
type Verdict int

const (
	// Unspecified is returned when the address matched no rule; Allowed
	// treats it as permitted, whether or not the list is empty.
	Unspecified Verdict = iota
	Permit
	Deny
)

type rule struct {
	net    *net.IPNet
	permit bool
}

// List is an ordered sequence of permit/deny CIDR rules, evaluated
// first-match-wins like the reference implementation's ACL walk.
type List struct {
	rules []rule
}

// New returns an empty List; an empty List permits every address.
func New() *List {
	return &List{}
}

// Permit appends a rule allowing addresses inside cidr.
func (l *List) Permit(cidr string) error {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return err
	}
	l.rules = append(l.rules, rule{net: ipnet, permit: true})
	return nil
}

// Deny appends a rule rejecting addresses inside cidr.
func (l *List) Deny(cidr string) error {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return err
	}
	l.rules = append(l.rules, rule{net: ipnet, permit: false})
	return nil
}

// Check evaluates ip against the list in rule order and returns the verdict
// of the first matching rule.
func (l *List) Check(ip net.IP) Verdict {
	for _, r := range l.rules {
		if r.net.Contains(ip) {
			if r.permit {
				return Permit
			}
			return Deny
		}
	}
	return Unspecified
}

// Allowed reports whether ip may establish a session: permitted explicitly,
// or matched by no rule. Only a matching deny rule refuses it.
func (l *List) Allowed(ip net.IP) bool {
	switch l.Check(ip) {
	case Deny:
		return false
	default:
		return true
	}
}
