package store

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/notesync/internal/apperr"
	"github.com/kittclouds/notesync/internal/entities"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetNote(t *testing.T) {
	s := newTestStore(t)

	n, err := s.CreateNote("Title", "Body", nil, []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, int64(1), n.Revision)
	require.Equal(t, entities.StatusActive, n.Status)

	got, err := s.GetNote(n.ID)
	require.NoError(t, err)
	require.Equal(t, n.Title, got.Title)
	require.Equal(t, []string{"a", "b"}, got.Tags)
}

func TestCreateNoteRejectsMissingNotebook(t *testing.T) {
	s := newTestStore(t)
	missing := "does-not-exist"
	_, err := s.CreateNote("T", "C", &missing, nil)
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.Validation))
}

func TestUpdateNoteBumpsRevision(t *testing.T) {
	s := newTestStore(t)
	n, err := s.CreateNote("T", "C", nil, nil)
	require.NoError(t, err)

	newTitle := "New Title"
	updated, err := s.UpdateNote(n.ID, entities.NotePatch{Title: &newTitle})
	require.NoError(t, err)
	require.Equal(t, "New Title", updated.Title)
	require.Equal(t, int64(2), updated.Revision)
}

func TestUpdateNotePatchCanClearNotebook(t *testing.T) {
	s := newTestStore(t)
	nb, err := s.CreateNotebook("Work", nil, nil, nil)
	require.NoError(t, err)
	n, err := s.CreateNote("T", "C", &nb.ID, nil)
	require.NoError(t, err)

	var nilID *string
	updated, err := s.UpdateNote(n.ID, entities.NotePatch{NotebookID: &nilID})
	require.NoError(t, err)
	require.Nil(t, updated.NotebookID)
}

func TestSoftDeleteNoteCascadesReminders(t *testing.T) {
	s := newTestStore(t)
	n, err := s.CreateNote("T", "C", nil, nil)
	require.NoError(t, err)
	r, err := s.CreateReminder(n.ID, "ping", n.CreatedAt)
	require.NoError(t, err)

	require.NoError(t, s.SoftDeleteNote(n.ID))

	got, err := s.getNote(n.ID)
	require.NoError(t, err)
	require.True(t, got.IsTombstoned())
	require.Equal(t, entities.StatusTrashed, got.Status)

	reminder, err := s.getReminder(r.ID)
	require.NoError(t, err)
	require.True(t, reminder.IsTombstoned())
}

func TestRestoreNote(t *testing.T) {
	s := newTestStore(t)
	n, err := s.CreateNote("T", "C", nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.SoftDeleteNote(n.ID))

	restored, err := s.RestoreNote(n.ID)
	require.NoError(t, err)
	require.Nil(t, restored.DeletedAt)
	require.Equal(t, entities.StatusActive, restored.Status)
}

func TestListNotesExcludesTombstonedByDefault(t *testing.T) {
	s := newTestStore(t)
	n1, err := s.CreateNote("One", "C", nil, nil)
	require.NoError(t, err)
	_, err = s.CreateNote("Two", "C", nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.SoftDeleteNote(n1.ID))

	notes, err := s.ListNotes(entities.NoteFilter{})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, "Two", notes[0].Title)
}

func TestListNotesFilterByNotebook(t *testing.T) {
	s := newTestStore(t)
	nb, err := s.CreateNotebook("Work", nil, nil, nil)
	require.NoError(t, err)
	_, err = s.CreateNote("In Notebook", "C", &nb.ID, nil)
	require.NoError(t, err)
	_, err = s.CreateNote("No Notebook", "C", nil, nil)
	require.NoError(t, err)

	notes, err := s.ListNotes(entities.NoteFilter{NotebookID: nb.ID})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, "In Notebook", notes[0].Title)
}

func TestHardDeleteNoteCascadesReminders(t *testing.T) {
	s := newTestStore(t)
	n, err := s.CreateNote("T", "C", nil, nil)
	require.NoError(t, err)
	r, err := s.CreateReminder(n.ID, "ping", n.CreatedAt)
	require.NoError(t, err)

	require.NoError(t, s.HardDeleteNote(n.ID))

	_, err = s.GetNote(n.ID)
	require.True(t, apperr.Is(err, apperr.NotFound))
	_, err = s.GetReminder(r.ID)
	require.True(t, apperr.Is(err, apperr.NotFound))
}
