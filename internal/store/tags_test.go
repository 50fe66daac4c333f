package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/notesync/internal/apperr"
	"github.com/kittclouds/notesync/internal/entities"
)

func TestCreateTagRejectsDuplicateName(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateTag("work", nil)
	require.NoError(t, err)

	_, err = s.CreateTag("work", nil)
	require.True(t, apperr.Is(err, apperr.Conflict))
}

func TestRenameTagPropagatesToNotes(t *testing.T) {
	s := newTestStore(t)
	tag, err := s.CreateTag("work", nil)
	require.NoError(t, err)
	n, err := s.CreateNote("T", "C", nil, []string{"work", "urgent"})
	require.NoError(t, err)

	newName := "office"
	_, err = s.UpdateTag(tag.ID, entities.TagPatch{Name: &newName})
	require.NoError(t, err)

	got, err := s.GetNote(n.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"office", "urgent"}, got.Tags)
}

func TestSoftDeleteTagStripsFromNotes(t *testing.T) {
	s := newTestStore(t)
	tag, err := s.CreateTag("work", nil)
	require.NoError(t, err)
	n1, err := s.CreateNote("One", "C", nil, []string{"work"})
	require.NoError(t, err)
	n2, err := s.CreateNote("Two", "C", nil, []string{"workshop"}) // substring of "work", must survive
	require.NoError(t, err)

	require.NoError(t, s.SoftDeleteTag(tag.ID))

	got1, err := s.GetNote(n1.ID)
	require.NoError(t, err)
	require.Empty(t, got1.Tags)

	got2, err := s.GetNote(n2.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"workshop"}, got2.Tags)
}

func TestUpdateTagRejectsNameCollision(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateTag("work", nil)
	require.NoError(t, err)
	t2, err := s.CreateTag("home", nil)
	require.NoError(t, err)

	collide := "work"
	_, err = s.UpdateTag(t2.ID, entities.TagPatch{Name: &collide})
	require.True(t, apperr.Is(err, apperr.Conflict))
}

func TestHardDeleteTagStripsFromNotes(t *testing.T) {
	s := newTestStore(t)
	tag, err := s.CreateTag("work", nil)
	require.NoError(t, err)
	n, err := s.CreateNote("T", "C", nil, []string{"work"})
	require.NoError(t, err)

	require.NoError(t, s.HardDeleteTag(tag.ID))

	got, err := s.GetNote(n.ID)
	require.NoError(t, err)
	require.Empty(t, got.Tags)

	_, err = s.GetTag(tag.ID)
	require.True(t, apperr.Is(err, apperr.NotFound))
}
