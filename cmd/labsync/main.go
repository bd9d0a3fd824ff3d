// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

// labsync is the staff-side synchronization client for the lab
// equipment issuance service. It keeps a local two-tier page cache
// warm, follows the push channels, and applies staff decisions
// (approve, reject, submit) optimistically.
//
// Usage:
//
//	labsync [--config labsync.yaml] <command> [flags]
//
// Commands:
//
//	watch     follow the push channels and log reconciled events
//	pending   list pending requests grouped by requester
//	approve   approve one or more requests
//	reject    reject one or more requests with a remark
//	submit    mark approved requests as handed over
//	bills     list one fiscal year's bills
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/labfoundry/labsync/lib/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "labsync: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := pflag.NewFlagSet("labsync", pflag.ContinueOnError)
	configPath := global.String("config", "", "path to labsync.yaml (default: $LABSYNC_CONFIG)")
	global.SetInterspersed(false)

	if err := global.Parse(args); err != nil {
		return err
	}
	rest := global.Args()
	if len(rest) == 0 {
		return fmt.Errorf("command required: watch, pending, approve, reject, submit, or bills")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	command, commandArgs := rest[0], rest[1:]
	switch command {
	case "watch":
		return runWatch(cfg, commandArgs)
	case "pending":
		return runPending(cfg, commandArgs)
	case "approve":
		return runApprove(cfg, commandArgs)
	case "reject":
		return runReject(cfg, commandArgs)
	case "submit":
		return runSubmit(cfg, commandArgs)
	case "bills":
		return runBills(cfg, commandArgs)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
