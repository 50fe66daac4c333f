// Package sync implements the client Sync Engine: an HTTP client that
// pulls remote changes into the local store, applies them with the same
// last-write-wins rule the store already exercises internally, then pushes
// every local change the remote hasn't seen, advancing the local cursor as
// it goes.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kittclouds/notesync/internal/apperr"
	"github.com/kittclouds/notesync/internal/store"
	"github.com/kittclouds/notesync/internal/wire"
)

// Engine drives pull-then-push cycles against a remote server for one
// local Store. A sync.Mutex enforces the single-flight requirement: a
// second Sync call arriving while one is in flight fails fast with a Sync
// apperr instead of blocking, matching SPEC_FULL.md §4.3.5.
type Engine struct {
	store    *store.Store
	baseURL  string
	deviceID string
	client   *http.Client
	log      zerolog.Logger

	mu      sync.Mutex
	syncing bool
}

func New(st *store.Store, baseURL, deviceID string, log zerolog.Logger) *Engine {
	return &Engine{
		store:    st,
		baseURL:  baseURL,
		deviceID: deviceID,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

// Result summarizes one completed sync cycle.
type Result struct {
	Pulled         int
	Pushed         int
	Conflicts      []wire.Conflict
	ServerRevision int64
}

// Sync runs one pull-then-push cycle. It returns a Sync apperr immediately,
// without touching the network, if another cycle is already in flight.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return nil, apperr.New(apperr.Sync, "a sync cycle is already in progress")
	}
	e.syncing = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()
	}()

	pulled, pullConflicts, err := e.pull(ctx)
	if err != nil {
		return nil, err
	}
	pushed, pushConflicts, serverRev, err := e.push(ctx)
	if err != nil {
		return nil, err
	}

	conflicts := append(pullConflicts, pushConflicts...)
	return &Result{Pulled: pulled, Pushed: pushed, Conflicts: conflicts, ServerRevision: serverRev}, nil
}

// pull applies every entity the server reports as changed since the local
// cursor. A pull-time conflict is one where the local copy outranks the
// incoming remote one under the LWW rule — the remote write is discarded
// and reported back to the caller as resolved "local_wins".
func (e *Engine) pull(ctx context.Context) (int, []wire.Conflict, error) {
	state, err := e.store.GetSyncState()
	if err != nil {
		return 0, nil, err
	}

	var resp wire.PullResponse
	if err := e.post(ctx, "/api/sync/pull", wire.PullRequest{
		DeviceID:         e.deviceID,
		LastSyncRevision: state.LastPullRevision,
	}, &resp); err != nil {
		return 0, nil, err
	}

	applied := 0
	var conflicts []wire.Conflict
	for _, wn := range resp.Notes {
		n, err := wire.NoteFromWire(wn)
		if err != nil {
			return applied, conflicts, apperr.Wrap(apperr.Sync, err, "decode pulled note")
		}
		conflicted, err := e.store.UpsertNoteFromRemote(n)
		if err != nil {
			return applied, conflicts, apperr.Wrap(apperr.Sync, err, "apply pulled note")
		}
		if conflicted {
			local, err := e.store.GetNote(n.ID)
			if err != nil {
				return applied, conflicts, apperr.Wrap(apperr.Sync, err, "read conflicted note")
			}
			conflicts = append(conflicts, wire.Conflict{
				EntityType: "note", EntityID: n.ID, LocalRevision: local.Revision, RemoteRevision: n.Revision, Resolution: "local_wins",
			})
		}
		applied++
	}
	for _, wnb := range resp.Notebooks {
		nb, err := wire.NotebookFromWire(wnb)
		if err != nil {
			return applied, conflicts, apperr.Wrap(apperr.Sync, err, "decode pulled notebook")
		}
		conflicted, err := e.store.UpsertNotebookFromRemote(nb)
		if err != nil {
			return applied, conflicts, apperr.Wrap(apperr.Sync, err, "apply pulled notebook")
		}
		if conflicted {
			local, err := e.store.GetNotebook(nb.ID)
			if err != nil {
				return applied, conflicts, apperr.Wrap(apperr.Sync, err, "read conflicted notebook")
			}
			conflicts = append(conflicts, wire.Conflict{
				EntityType: "notebook", EntityID: nb.ID, LocalRevision: local.Revision, RemoteRevision: nb.Revision, Resolution: "local_wins",
			})
		}
		applied++
	}
	for _, wt := range resp.Tags {
		t, err := wire.TagFromWire(wt)
		if err != nil {
			return applied, conflicts, apperr.Wrap(apperr.Sync, err, "decode pulled tag")
		}
		conflicted, err := e.store.UpsertTagFromRemote(t)
		if err != nil {
			return applied, conflicts, apperr.Wrap(apperr.Sync, err, "apply pulled tag")
		}
		if conflicted {
			local, err := e.store.GetTag(t.ID)
			if err != nil {
				return applied, conflicts, apperr.Wrap(apperr.Sync, err, "read conflicted tag")
			}
			conflicts = append(conflicts, wire.Conflict{
				EntityType: "tag", EntityID: t.ID, LocalRevision: local.Revision, RemoteRevision: t.Revision, Resolution: "local_wins",
			})
		}
		applied++
	}

	if err := e.store.SetPullRevision(resp.ServerRevision); err != nil {
		return applied, conflicts, err
	}
	return applied, conflicts, nil
}

func (e *Engine) push(ctx context.Context) (int, []wire.Conflict, int64, error) {
	state, err := e.store.GetSyncState()
	if err != nil {
		return 0, nil, 0, err
	}

	notes, err := e.store.ChangesSinceNotes(state.LastPushRevision)
	if err != nil {
		return 0, nil, 0, err
	}
	notebooks, err := e.store.ChangesSinceNotebooks(state.LastPushRevision)
	if err != nil {
		return 0, nil, 0, err
	}
	tags, err := e.store.ChangesSinceTags(state.LastPushRevision)
	if err != nil {
		return 0, nil, 0, err
	}
	if len(notes) == 0 && len(notebooks) == 0 && len(tags) == 0 {
		return 0, nil, state.LastPullRevision, nil
	}

	req := wire.PushRequest{DeviceID: e.deviceID}
	for _, n := range notes {
		req.Notes = append(req.Notes, wire.NoteToWire(n))
	}
	for _, nb := range notebooks {
		req.Notebooks = append(req.Notebooks, wire.NotebookToWire(nb))
	}
	for _, t := range tags {
		req.Tags = append(req.Tags, wire.TagToWire(t))
	}

	var resp wire.PushResponse
	if err := e.post(ctx, "/api/sync/push", req, &resp); err != nil {
		return 0, nil, 0, err
	}

	if err := e.store.SetPushRevision(resp.ServerRevision); err != nil {
		return resp.Accepted, resp.Conflicts, resp.ServerRevision, err
	}
	return resp.Accepted, resp.Conflicts, resp.ServerRevision, nil
}

func (e *Engine) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return apperr.Wrap(apperr.Sync, err, "encode request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return apperr.Wrap(apperr.Sync, err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return apperr.Wrap(apperr.Sync, err, fmt.Sprintf("request %s", path))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return apperr.New(apperr.Sync, fmt.Sprintf("%s returned status %d", path, resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Wrap(apperr.Sync, err, "decode response")
	}
	return nil
}

// CheckConnection probes the server's health endpoint with a short
// deadline. It never returns an error: any failure — timeout, connection
// refused, non-2xx status — is reported as false so callers can surface a
// simple "offline" indicator without handling a distinct error path.
func (e *Engine) CheckConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
