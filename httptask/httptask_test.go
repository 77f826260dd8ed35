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

package httptask

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarren/deferred"
	"github.com/mkarren/deferred/exec"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.Write([]byte("hello"))
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"deferred","count":3}`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	return NewClient(
		WithExecutor(exec.Go()),
		WithLogger(hclog.NewNullLogger()),
		WithRetryMax(0),
	)
}

func TestFetch(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t)

	resp, ok := c.Fetch(context.Background(), srv.URL+"/ok").Value()
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "yes", resp.Header.Get("X-Test"))
	assert.Equal(t, []byte("hello"), resp.Body)
}

func TestFetchStatusError(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t)

	err := c.Fetch(context.Background(), srv.URL+"/missing").Err()
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusNotFound, serr.Code)
}

func TestFetchJSON(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t)

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	v, ok := FetchJSON[payload](c, context.Background(), srv.URL+"/json").Value()
	require.True(t, ok)
	assert.Equal(t, payload{Name: "deferred", Count: 3}, v)
}

func TestFetchJSONDecodeError(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t)

	err := FetchJSON[int](c, context.Background(), srv.URL+"/ok").Err()
	require.Error(t, err)
	assert.NotErrorIs(t, err, deferred.ErrCanceled)
}

func TestFetchContextCanceled(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Fetch(ctx, srv.URL+"/ok").Err()
	assert.ErrorIs(t, err, deferred.ErrCanceled)
}

func TestFetchTransportError(t *testing.T) {
	c := newTestClient(t)

	// nothing listens here; the transport fails without retrying.
	err := c.Fetch(context.Background(), "http://127.0.0.1:1/nope").Err()
	require.Error(t, err)
	assert.False(t, errors.Is(err, deferred.ErrCanceled))
}

func TestDownload(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t)

	var buf bytes.Buffer
	n, ok := c.Download(context.Background(), srv.URL+"/ok", &buf).Value()
	require.True(t, ok)
	assert.EqualValues(t, len("hello"), n)
	assert.Equal(t, "hello", buf.String())
}

func TestFetchComposes(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t)

	// the adapter's Deferreds take combinators like any other.
	d := deferred.Map(c.Fetch(context.Background(), srv.URL+"/ok"), func(r *Response) int {
		return len(r.Body)
	})
	v, ok := d.Value()
	require.True(t, ok)
	assert.Equal(t, 5, v)
}
