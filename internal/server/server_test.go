package server

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/notesync/internal/wire"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleNote(id string) wire.Note {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return wire.Note{
		ID: id, Title: "T", Content: "C", Tags: "[]", Status: "active",
		Revision: 0, CreatedAt: now, UpdatedAt: now,
	}
}

func TestApplyPushInsertsNewNoteAndAdvancesRevision(t *testing.T) {
	s := newTestStore(t)
	resp, err := s.ApplyPush(wire.PushRequest{DeviceID: "d1", Notes: []wire.Note{sampleNote("n1")}})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Accepted)
	require.Empty(t, resp.Conflicts)
	require.Equal(t, int64(1), resp.ServerRevision)

	changes, err := s.ChangesSinceNotes(0)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, "n1", changes[0].ID)
	require.Equal(t, int64(1), changes[0].Revision)
}

func TestApplyPushRejectsStaleUpdateAsConflict(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ApplyPush(wire.PushRequest{Notes: []wire.Note{sampleNote("n1")}})
	require.NoError(t, err)

	changes, err := s.ChangesSinceNotes(0)
	require.NoError(t, err)
	serverRev := changes[0].Revision

	stale := sampleNote("n1")
	stale.Title = "Stale"
	stale.Revision = serverRev - 1 // older than what the server now holds
	stale.UpdatedAt = time.Now().Add(-time.Hour).UTC().Format(time.RFC3339Nano)

	resp, err := s.ApplyPush(wire.PushRequest{Notes: []wire.Note{stale}})
	require.NoError(t, err)
	require.Equal(t, 0, resp.Accepted)
	require.Len(t, resp.Conflicts, 1)
	require.Equal(t, "note", resp.Conflicts[0].EntityType)
	require.Equal(t, "server_wins", resp.Conflicts[0].Resolution)
	require.Equal(t, serverRev, resp.Conflicts[0].LocalRevision)
	require.Equal(t, stale.Revision, resp.Conflicts[0].RemoteRevision)

	got, err := s.ChangesSinceNotes(0)
	require.NoError(t, err)
	require.Equal(t, "T", got[0].Title) // server's row untouched
}

func TestChangesSinceNotebooksAndTagsOnlyReturnNewer(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	resp, err := s.ApplyPush(wire.PushRequest{
		Notebooks: []wire.Notebook{{ID: "nb1", Name: "Work", CreatedAt: now, UpdatedAt: now}},
		Tags:      []wire.Tag{{ID: "t1", Name: "urgent", CreatedAt: now, UpdatedAt: now}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Accepted)

	nbs, err := s.ChangesSinceNotebooks(0)
	require.NoError(t, err)
	require.Len(t, nbs, 1)

	tags, err := s.ChangesSinceTags(0)
	require.NoError(t, err)
	require.Len(t, tags, 1)

	// cursor at current global revision should yield nothing further
	rev, err := s.GlobalRevision()
	require.NoError(t, err)
	nbs, err = s.ChangesSinceNotebooks(rev)
	require.NoError(t, err)
	require.Empty(t, nbs)
}

func TestApplyPushAcceptsTombstoneDelete(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ApplyPush(wire.PushRequest{Notes: []wire.Note{sampleNote("n1")}})
	require.NoError(t, err)

	changes, err := s.ChangesSinceNotes(0)
	require.NoError(t, err)
	deleted := changes[0]
	deleted.IsDeleted = true
	deleted.UpdatedAt = time.Now().Add(time.Minute).UTC().Format(time.RFC3339Nano)

	resp, err := s.ApplyPush(wire.PushRequest{Notes: []wire.Note{deleted}})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Accepted)

	got, err := s.ChangesSinceNotes(0)
	require.NoError(t, err)
	require.True(t, got[0].IsDeleted)
}
