// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Command sccpgwctl is the gateway's CLI client: it talks to a running
// sccpgw daemon's admin API and renders its session table, grounded on
// cmd/syncthing/cli's kong-driven command struct.
package main

import (
	"os"

	"github.com/alecthomas/kong"

	"github.com/sccpgw/sccpgw/internal/cli"
)

var root struct {
	AdminAddress string `name:"admin-address" help:"Address of the gateway's admin API" default:"http://127.0.0.1:2112"`

	Sessions cli.SessionsCommand `cmd:"" help:"Inspect live phone sessions"`
}

func main() {
	kctx := kong.Parse(&root,
		kong.Name("sccpgwctl"),
		kong.Description("Control and inspect a running sccpgw gateway."),
		kong.UsageOnError(),
	)

	runCtx := cli.Context{
		Client: cli.NewClient(root.AdminAddress),
		Stdout: os.Stdout,
	}

	err := kctx.Run(runCtx)
	kctx.FatalIfErrorf(err)
}
