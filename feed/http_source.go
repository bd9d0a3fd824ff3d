// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// maxPollRetries is the number of consecutive poll failures allowed
// before Next returns an error. Each retry uses a 1-second server-side
// timeout so the HTTP round-trip itself provides backoff.
const maxPollRetries = 5

// longPollTimeout is the server-side hold time in milliseconds for
// normal polls. The server returns immediately when messages arrive.
const longPollTimeout = 30000

// retryTimeout is the server-side timeout in milliseconds used after a
// poll error. Short so the retry completes quickly.
const retryTimeout = 1000

// pollResponse is the wire shape of one long-poll response.
type pollResponse struct {
	Messages []Message `json:"messages"`
	Cursor   string    `json:"cursor"`
}

// SourceConfig holds the parameters for opening an HTTPSource.
type SourceConfig struct {
	// BaseURL is the service root, shared with the REST client.
	BaseURL string

	// Channel names the feed to follow: "requests", "inventory", or
	// "billing". The poll endpoint is {BaseURL}/feed/{Channel}.
	Channel string

	// HTTPClient is used for all polls. If nil, http.DefaultClient is
	// used. Its Timeout must exceed the 30-second long-poll hold or
	// every quiet poll will error.
	HTTPClient *http.Client

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// HTTPSource is a long-polling Source over the service's feed
// endpoint. Not safe for concurrent use; one Pump owns one source.
type HTTPSource struct {
	pollURL    string
	channel    string
	httpClient *http.Client
	logger     *slog.Logger

	cursor  string
	pending []Message // received but not yet consumed
}

var _ Source = (*HTTPSource)(nil)

// OpenSource captures the current position of the channel's stream.
// The returned source only sees messages arriving after this call.
// The anchor poll uses a zero server-side timeout so it never blocks.
func OpenSource(ctx context.Context, config SourceConfig) (*HTTPSource, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("feed: BaseURL is required")
	}
	if config.Channel == "" {
		return nil, fmt.Errorf("feed: Channel is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	source := &HTTPSource{
		pollURL:    strings.TrimRight(config.BaseURL, "/") + "/feed/" + config.Channel,
		channel:    config.Channel,
		httpClient: httpClient,
		logger:     logger,
	}

	response, err := source.poll(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("feed: anchoring %s channel: %w", config.Channel, err)
	}
	source.cursor = response.Cursor
	return source, nil
}

// Next returns the next message in arrival order, long-polling the
// server when the local buffer is empty. On transient poll errors it
// retries up to maxPollRetries times with a short server-side timeout
// before giving up.
func (s *HTTPSource) Next(ctx context.Context) (Message, error) {
	if len(s.pending) > 0 {
		msg := s.pending[0]
		s.pending = s.pending[1:]
		return msg, nil
	}

	var pollRetries int
	for {
		pollTimeout := longPollTimeout
		if pollRetries > 0 {
			pollTimeout = retryTimeout
		}
		response, err := s.poll(ctx, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return Message{}, fmt.Errorf("feed: %s channel: %w", s.channel, ctx.Err())
			}
			pollRetries++
			// Transport errors often indicate a poisoned connection in
			// the HTTP pool. Drop idle connections so the next attempt
			// opens a fresh socket.
			s.httpClient.CloseIdleConnections()
			if pollRetries > maxPollRetries {
				return Message{}, fmt.Errorf("feed: %s channel: poll failed %d consecutive times: %w",
					s.channel, pollRetries, err)
			}
			s.logger.Debug("feed poll error, retrying",
				"channel", s.channel,
				"attempt", pollRetries,
				"max_attempts", maxPollRetries,
				"error", err,
			)
			continue
		}
		pollRetries = 0
		s.cursor = response.Cursor

		if len(response.Messages) == 0 {
			// Long-poll hold expired with nothing new.
			continue
		}

		s.pending = append(s.pending, response.Messages[1:]...)
		return response.Messages[0], nil
	}
}

// Cursor returns the current stream position token.
func (s *HTTPSource) Cursor() string {
	return s.cursor
}

func (s *HTTPSource) poll(ctx context.Context, timeoutMillis int) (pollResponse, error) {
	query := url.Values{}
	query.Set("timeout", strconv.Itoa(timeoutMillis))
	if s.cursor != "" {
		query.Set("cursor", s.cursor)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pollURL+"?"+query.Encode(), nil)
	if err != nil {
		return pollResponse{}, fmt.Errorf("creating poll request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	httpResponse, err := s.httpClient.Do(request)
	if err != nil {
		return pollResponse{}, err
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResponse.Body, 8<<20))
	if err != nil {
		return pollResponse{}, fmt.Errorf("reading poll response: %w", err)
	}
	if httpResponse.StatusCode != http.StatusOK {
		return pollResponse{}, fmt.Errorf("poll returned %d: %s",
			httpResponse.StatusCode, strings.TrimSpace(string(body)))
	}

	var response pollResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return pollResponse{}, fmt.Errorf("parsing poll response: %w", err)
	}
	return response, nil
}
