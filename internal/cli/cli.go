// Copyright (C) 2026 The sccpgw Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package cli is the gateway's one CLI surface: "sessions list", a kong
// command rendering the admin API's session rows as a tabwriter table.
// Grounded on cmd/syncthing/cli's showCommand (kong struct-tag commands)
// and index_accounting.go's tabwriter.NewWriter table rendering.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/sccpgw/sccpgw/internal/session"
)

// Client fetches session rows from a running gateway's admin API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a Client talking to the admin API at baseURL (e.g.
// "http://127.0.0.1:2112").
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: http.DefaultClient}
}

// Sessions fetches the current session rows, including device-less
// sessions when all is true.
func (c *Client) Sessions(all bool) ([]session.Row, error) {
	url := c.BaseURL + "/rest/sessions"
	if all {
		url += "?all=1"
	}
	resp, err := c.HTTP.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cli: admin API returned %s", resp.Status)
	}
	var rows []session.Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SessionsCommand is the kong command for "sccpgwctl sessions list".
type SessionsCommand struct {
	List struct {
		All bool `help:"Include sessions with no device attached"`
	} `cmd:"" help:"List live phone sessions"`
}

// Context carries the admin API client through to a command's Run method,
// the same wiring shape as the teacher's cli.Context/clientFactory.
type Context struct {
	Client *Client
	Stdout io.Writer
}

// Run dispatches the selected subcommand.
func (c *SessionsCommand) Run(ctx Context) error {
	rows, err := ctx.Client.Sessions(c.List.All)
	if err != nil {
		return err
	}
	WriteTable(ctx.Stdout, rows)
	return nil
}

// WriteTable renders rows as the Socket/IP/Port/KA/KAI/DeviceName/State/
// Type/RegState/Token table, mirroring sccp_cli_show_sessions's column
// layout.
func WriteTable(w io.Writer, rows []session.Row) {
	tw := tabwriter.NewWriter(w, 1, 1, 1, ' ', 0)
	fmt.Fprintln(tw, "Socket\tIP\tPort\tKA\tKAI\tDeviceName\tState\tType\tRegState\tToken")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			r.Socket, r.IP, r.Port,
			int(r.KA/time.Second), int(r.KAI/time.Second),
			display(r.DeviceName), r.State, display(r.Type), display(r.RegState), display(r.Token))
	}
	tw.Flush()
}

func display(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
