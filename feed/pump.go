// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"context"
	"fmt"
	"log/slog"
)

// Source delivers push-channel messages in arrival order. Next blocks
// until a message is available, the context ends, or the source fails
// permanently.
type Source interface {
	Next(ctx context.Context) (Message, error)
}

// Handler consumes one message. A returned error means the message was
// malformed or unprocessable; the pump logs it and moves on. Handlers
// run on the pump goroutine, so per-channel arrival order is the
// processing order.
type Handler func(Message) error

// PumpConfig holds the parameters for creating a Pump.
type PumpConfig struct {
	// Name identifies the channel in log output ("requests",
	// "inventory", "billing").
	Name string

	// Source supplies the messages.
	Source Source

	// Handler processes each message in order.
	Handler Handler

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Pump drains one push channel on a single goroutine, preserving
// arrival order. One bad message never stops the stream; only a
// permanent source failure or context end does.
type Pump struct {
	name    string
	source  Source
	handler Handler
	logger  *slog.Logger
}

// NewPump validates the configuration and creates a Pump.
func NewPump(config PumpConfig) (*Pump, error) {
	if config.Source == nil {
		return nil, fmt.Errorf("feed: Source is required")
	}
	if config.Handler == nil {
		return nil, fmt.Errorf("feed: Handler is required")
	}
	name := config.Name
	if name == "" {
		name = "feed"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pump{
		name:    name,
		source:  config.Source,
		handler: config.Handler,
		logger:  logger,
	}, nil
}

// Run processes messages until the context ends or the source fails
// permanently. Returns nil on context end.
func (p *Pump) Run(ctx context.Context) error {
	for {
		msg, err := p.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("feed: %s channel: %w", p.name, err)
		}
		if err := p.handler(msg); err != nil {
			p.logger.Warn("dropping message",
				"channel", p.name,
				"event", msg.Event,
				"error", err,
			)
		}
	}
}
