package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/notesync/internal/apperr"
	"github.com/kittclouds/notesync/internal/entities"
)

func TestCreateNotebookRejectsMissingParent(t *testing.T) {
	s := newTestStore(t)
	missing := "nope"
	_, err := s.CreateNotebook("Child", nil, nil, &missing)
	require.True(t, apperr.Is(err, apperr.Validation))
}

func TestNotebookCannotBeOwnParent(t *testing.T) {
	s := newTestStore(t)
	nb, err := s.CreateNotebook("Self", nil, nil, nil)
	require.NoError(t, err)

	selfID := nb.ID
	selfPtr := &selfID
	_, err = s.UpdateNotebook(nb.ID, entities.NotebookPatch{ParentID: &selfPtr})
	require.True(t, apperr.Is(err, apperr.Validation))
}

func TestSoftDeleteNotebookClearsNoteReferences(t *testing.T) {
	s := newTestStore(t)
	nb, err := s.CreateNotebook("Work", nil, nil, nil)
	require.NoError(t, err)
	n, err := s.CreateNote("T", "C", &nb.ID, nil)
	require.NoError(t, err)

	require.NoError(t, s.SoftDeleteNotebook(nb.ID))

	got, err := s.GetNote(n.ID)
	require.NoError(t, err)
	require.Nil(t, got.NotebookID)
}

func TestHardDeleteNotebookClearsChildParent(t *testing.T) {
	s := newTestStore(t)
	parent, err := s.CreateNotebook("Parent", nil, nil, nil)
	require.NoError(t, err)
	child, err := s.CreateNotebook("Child", nil, nil, &parent.ID)
	require.NoError(t, err)

	require.NoError(t, s.HardDeleteNotebook(parent.ID))

	got, err := s.GetNotebook(child.ID)
	require.NoError(t, err)
	require.Nil(t, got.ParentID)
}
