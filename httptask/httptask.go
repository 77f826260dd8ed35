// Copyright 2025 Mark Karren
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httptask adapts HTTP fetch and download tasks into Deferreds.
//
// It's a thin layer over the public deferred API: each request runs as a
// producer on an executor, network-level retries are handled by the
// underlying retryable client, and consumers compose the returned
// Deferreds like any other. Producers watch Resolver.NeedsResolution and
// abandon requests whose consumers have gone away.
package httptask

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/mkarren/deferred"
	"github.com/mkarren/deferred/exec"
)

// StatusError is the failure of a request that completed with a non-2xx
// status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httptask: unexpected status %d from %s", e.Code, e.URL)
}

// Response is the collected outcome of a fetch.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client turns HTTP tasks into Deferreds.
type Client struct {
	http *retryablehttp.Client
	exec exec.Executor
	log  hclog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithExecutor sets the executor fetch producers and handlers run on.
// The default is the shared utility-QoS pool.
func WithExecutor(e exec.Executor) Option {
	return func(c *Client) { c.exec = e }
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l hclog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithHTTPClient replaces the underlying retryable client entirely.
func WithHTTPClient(rc *retryablehttp.Client) Option {
	return func(c *Client) { c.http = rc }
}

// WithRetryMax sets the maximum number of network-level retries.
func WithRetryMax(n int) Option {
	return func(c *Client) { c.http.RetryMax = n }
}

// NewClient builds a Client over a pooled transport.
func NewClient(options ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = cleanhttp.DefaultPooledClient()
	rc.RetryMax = 2
	rc.Logger = nil

	c := &Client{
		http: rc,
		exec: exec.At(exec.QoSUtility),
		log:  hclog.NewNullLogger(),
	}
	for _, opt := range options {
		opt(c)
	}
	c.http.Logger = c.log
	return c
}

// Fetch GETs url and resolves with the collected response.
// Context cancellation resolves the Deferred canceled; a non-2xx status
// resolves it with a StatusError.
func (c *Client) Fetch(ctx context.Context, url string) *deferred.Deferred[*Response] {
	return deferred.WithProducer(c.exec, func(r *deferred.Resolver[*Response]) {
		body, resp, err := c.roundTrip(ctx, r.NeedsResolution, url, nil)
		switch {
		case err != nil:
			r.ResolveErr(c.taskErr(ctx, url, err))
		case resp == nil:
			// consumer went away; the request was abandoned
		default:
			r.ResolveValue(&Response{
				Status: resp.StatusCode,
				Header: resp.Header,
				Body:   body,
			})
		}
	})
}

// FetchJSON GETs url and resolves with the response body decoded into T.
func FetchJSON[T any](c *Client, ctx context.Context, url string) *deferred.Deferred[T] {
	return deferred.TryMap(c.Fetch(ctx, url), func(resp *Response) (T, error) {
		var v T
		if err := json.Unmarshal(resp.Body, &v); err != nil {
			return v, fmt.Errorf("httptask: decoding %s: %w", url, err)
		}
		return v, nil
	})
}

// Download GETs url, streams the body into w, and resolves with the byte
// count written.
func (c *Client) Download(ctx context.Context, url string, w io.Writer) *deferred.Deferred[int64] {
	return deferred.WithProducer(c.exec, func(r *deferred.Resolver[int64]) {
		_, resp, err := c.roundTrip(ctx, r.NeedsResolution, url, w)
		switch {
		case err != nil:
			r.ResolveErr(c.taskErr(ctx, url, err))
		case resp == nil:
			// consumer went away; the request was abandoned
		default:
			// copyBody stashed the written byte count on ContentLength.
			r.ResolveValue(resp.ContentLength)
		}
	})
}

// roundTrip performs the request and collects the body. A nil response
// with a nil error means the consumer dropped the Deferred and the work
// was abandoned.
func (c *Client) roundTrip(
	ctx context.Context,
	needsResolution func() bool,
	url string,
	w io.Writer,
) ([]byte, *http.Response, error) {
	if !needsResolution() {
		c.log.Debug("abandoning request before start", "url", url)
		return nil, nil, nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}

	c.log.Debug("fetching", "url", url)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &StatusError{Code: resp.StatusCode, URL: url}
	}
	if !needsResolution() {
		c.log.Debug("abandoning request after response", "url", url)
		return nil, nil, nil
	}

	if w != nil {
		if err := copyBody(w, resp); err != nil {
			return nil, nil, err
		}
		return nil, resp, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return body, resp, nil
}

// copyBody drains resp.Body into w and stashes the count on ContentLength
// for the streaming caller.
func copyBody(w io.Writer, resp *http.Response) error {
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return err
	}
	resp.ContentLength = n
	return nil
}

// taskErr maps a transport error to the failure the Deferred carries,
// preferring the context's cancellation over whatever the transport
// wrapped it in.
func (c *Client) taskErr(ctx context.Context, url string, err error) error {
	if ctx.Err() != nil {
		c.log.Debug("request canceled", "url", url, "error", ctx.Err())
		return &deferred.CanceledError{Reason: ctx.Err().Error()}
	}
	c.log.Warn("request failed", "url", url, "error", err)
	return err
}
