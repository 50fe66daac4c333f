package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/notesync/internal/wire"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := newTestStore(t)
	return httptest.NewServer(Router(st, zerolog.Nop()))
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	if out != nil {
		defer resp.Body.Close()
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	var health wire.HealthResponse
	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil, &health)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", health.Status)
}

func TestHandlePushThenPull(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	push := wire.PushRequest{DeviceID: "d1", Notes: []wire.Note{sampleNote("n1")}}
	var pushResp wire.PushResponse
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sync/push", push, &pushResp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, pushResp.Accepted)

	var pullResp wire.PullResponse
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/sync/pull", wire.PullRequest{DeviceID: "d2", LastSyncRevision: 0}, &pullResp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, pullResp.Notes, 1)
	require.Equal(t, "n1", pullResp.Notes[0].ID)
}

func TestHandlePushRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/sync/push", bytes.NewBufferString("not json"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleListNotesReturnsAllIncludingTombstoned(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	tombstoned := sampleNote("n1")
	tombstoned.IsDeleted = true
	push := wire.PushRequest{Notes: []wire.Note{tombstoned}}
	var pushResp wire.PushResponse
	doJSON(t, http.MethodPost, srv.URL+"/api/sync/push", push, &pushResp)

	var notes []wire.Note
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/notes/", nil, &notes)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, notes, 1)
}
