// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/labfoundry/labsync/engine"
	"github.com/labfoundry/labsync/feed"
	"github.com/labfoundry/labsync/lib/config"
)

// runWatch follows the configured push channels until interrupted,
// logging every reconciled event.
func runWatch(cfg *config.Config, args []string) error {
	flags := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.loadWorkingSet(ctx); err != nil {
		return err
	}

	type channel struct {
		name    string
		enabled bool
		handler feed.Handler
	}
	channels := []channel{
		{"requests", cfg.Feed.Requests, a.engine.HandleRequestMessage},
		{"inventory", cfg.Feed.Inventory, a.engine.HandleInventoryMessage},
		{"billing", cfg.Feed.Billing, a.billing.HandleMessage},
	}

	errs := make(chan error, len(channels))
	running := 0
	for _, ch := range channels {
		if !ch.enabled {
			continue
		}
		source, err := feed.OpenSource(ctx, feed.SourceConfig{
			BaseURL: cfg.API.BaseURL,
			Channel: ch.name,
			Logger:  a.logger,
		})
		if err != nil {
			return err
		}
		pump, err := feed.NewPump(feed.PumpConfig{
			Name:    ch.name,
			Source:  source,
			Handler: ch.handler,
			Logger:  a.logger,
		})
		if err != nil {
			return err
		}
		running++
		go func() { errs <- pump.Run(ctx) }()
	}
	if running == 0 {
		return fmt.Errorf("no push channels enabled in the config")
	}

	a.logger.Info("watching push channels", "channels", running)
	for ; running > 0; running-- {
		if err := <-errs; err != nil {
			stop()
			return err
		}
	}
	return nil
}

// runPending prints the pending tab grouped by requester.
func runPending(cfg *config.Config, args []string) error {
	flags := pflag.NewFlagSet("pending", pflag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.APITimeout()+5*time.Second)
	defer cancel()
	if err := a.loadWorkingSet(ctx); err != nil {
		return err
	}

	groups := a.engine.PendingView()
	if len(groups) == 0 {
		fmt.Println("no pending requests")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REQUESTER\tCOUNT\tLATEST\tLAST REMARK\tUNREAD")
	for _, g := range groups {
		unread := ""
		if g.Unread {
			unread = "*"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			g.RequesterName, g.Count, g.Latest.Format("02 Jan 15:04"), g.LastRemark, unread)
	}
	return w.Flush()
}

// runApprove approves the listed request ids; with none given, every
// pending request.
func runApprove(cfg *config.Config, args []string) error {
	flags := pflag.NewFlagSet("approve", pflag.ContinueOnError)
	days := flags.Int("days", 0, "return deadline in days from now")
	returnBy := flags.String("return-by", "", "explicit return date (2006-01-02); wins over --days")
	remark := flags.String("remark", "", "approval remark")
	markSubmitted := flags.Bool("submit", false, "also mark the equipment as handed over")
	if err := flags.Parse(args); err != nil {
		return err
	}
	ids, err := parseIDs(flags.Args())
	if err != nil {
		return err
	}

	opts := engine.ApproveOptions{
		ReturnDays:    *days,
		Remark:        *remark,
		MarkSubmitted: *markSubmitted,
	}
	if *returnBy != "" {
		date, err := time.Parse("2006-01-02", *returnBy)
		if err != nil {
			return fmt.Errorf("--return-by: %w", err)
		}
		opts.ReturnDate = &date
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.APITimeout()+5*time.Second)
	defer cancel()
	if err := a.loadWorkingSet(ctx); err != nil {
		return err
	}

	if len(ids) == 1 {
		if err := a.engine.Approve(ctx, ids[0], opts); err != nil {
			return err
		}
		fmt.Printf("approved request %d\n", ids[0])
		return nil
	}
	result, err := a.engine.BulkApprove(ctx, ids, opts)
	if err != nil {
		return err
	}
	fmt.Printf("approved %d requests\n", result.Updated)
	return nil
}

// runReject rejects the listed request ids; with none given, every
// pending request. The remark is mandatory.
func runReject(cfg *config.Config, args []string) error {
	flags := pflag.NewFlagSet("reject", pflag.ContinueOnError)
	remark := flags.String("remark", "", "rejection reason (required)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	ids, err := parseIDs(flags.Args())
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.APITimeout()+5*time.Second)
	defer cancel()
	if err := a.loadWorkingSet(ctx); err != nil {
		return err
	}

	if len(ids) == 1 {
		if err := a.engine.Reject(ctx, ids[0], *remark); err != nil {
			return err
		}
		fmt.Printf("rejected request %d\n", ids[0])
		return nil
	}
	result, err := a.engine.BulkReject(ctx, ids, *remark)
	if err != nil {
		return err
	}
	fmt.Printf("rejected %d requests\n", result.Updated)
	return nil
}

// runSubmit marks approved requests as handed over; with no ids, every
// approval still awaiting handover.
func runSubmit(cfg *config.Config, args []string) error {
	flags := pflag.NewFlagSet("submit", pflag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}
	ids, err := parseIDs(flags.Args())
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.APITimeout()+5*time.Second)
	defer cancel()
	if err := a.loadWorkingSet(ctx); err != nil {
		return err
	}

	a.engine.MarkSubmitted(ctx, ids)
	fmt.Println("submission recorded")
	return nil
}

// runBills prints one fiscal year's bills.
func runBills(cfg *config.Config, args []string) error {
	flags := pflag.NewFlagSet("bills", pflag.ContinueOnError)
	year := flags.String("year", "", "fiscal year, e.g. 2025-26 (required)")
	page := flags.Int("page", 1, "page number")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *year == "" {
		return fmt.Errorf("--year is required")
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.APITimeout()+5*time.Second)
	defer cancel()

	bills, err := a.billing.LoadBills(ctx, *year, *page)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tVENDOR\tAMOUNT\tDATE")
	for _, bill := range bills.Items {
		fmt.Fprintf(w, "%s\t%s\t%d.%02d\t%s\n",
			bill.Number, bill.Vendor, bill.Amount/100, bill.Amount%100,
			bill.CreatedAt.Format("02 Jan 2006"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("page %d of %d (%d bills)\n", bills.Page, bills.TotalPages, bills.Total)
	return nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("request id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
