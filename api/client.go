// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package api is the REST client for the lab equipment service. It
// covers the two traffic classes the sync engine needs: paginated
// collection reads (used by both blocking first fetches and
// background revalidation) and issue-request mutations (create,
// approve, reject, bulk, submit).
//
// Authentication is external: callers supply an http.Client whose
// transport injects the session cookie or bearer token. The package
// never manages credentials.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// maxResponseBytes bounds how much of a response body is read. Pages
// are small; anything larger is a server fault, not data.
const maxResponseBytes = 8 << 20

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the service root (e.g., "https://lab.example.edu/api").
	BaseURL string

	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client is an HTTP client for the lab equipment API. Safe for
// concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates the configuration and creates a Client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("api: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("api: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// doRequest performs an HTTP request and returns the response body.
// On 2xx, returns the body. On 4xx/5xx, returns a *Error decoded
// from the server's {detail} shape. Transport failures come back
// wrapped, never as *Error; callers distinguish the two with
// errors.As.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, requestBody any) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("api: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("api: creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("api: reading %s %s response: %w", method, path, err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	apiErr := &Error{StatusCode: response.StatusCode}
	if jsonErr := json.Unmarshal(responseBody, apiErr); jsonErr != nil || apiErr.Detail == "" {
		// Non-JSON or detail-less error body. Keep the raw text so
		// the failure is still diagnosable.
		apiErr.Detail = strings.TrimSpace(string(responseBody))
		if apiErr.Detail == "" {
			apiErr.Detail = http.StatusText(response.StatusCode)
		}
	}
	return nil, apiErr
}

func decodeInto[T any](body []byte, what string) (T, error) {
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("api: parsing %s response: %w", what, err)
	}
	return out, nil
}
