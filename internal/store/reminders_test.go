package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/notesync/internal/apperr"
	"github.com/kittclouds/notesync/internal/entities"
)

func TestCreateReminderRejectsMissingNote(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateReminder("does-not-exist", "ping", time.Now())
	require.True(t, apperr.Is(err, apperr.Validation))
}

func TestUpcomingAndOverdueReminders(t *testing.T) {
	s := newTestStore(t)
	n, err := s.CreateNote("T", "C", nil, nil)
	require.NoError(t, err)

	past, err := s.CreateReminder(n.ID, "overdue", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = s.CreateReminder(n.ID, "soon", time.Now().Add(time.Hour))
	require.NoError(t, err)

	overdue, err := s.OverdueReminders()
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, past.ID, overdue[0].ID)

	upcoming, err := s.UpcomingReminders(1)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	require.Equal(t, "soon", upcoming[0].Message)
}

func TestCompleteReminderExcludesItFromDueReminders(t *testing.T) {
	s := newTestStore(t)
	n, err := s.CreateNote("T", "C", nil, nil)
	require.NoError(t, err)
	r, err := s.CreateReminder(n.ID, "ping", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	due, err := s.DueReminders()
	require.NoError(t, err)
	require.Len(t, due, 1)

	completed, err := s.CompleteReminder(r.ID)
	require.NoError(t, err)
	require.True(t, completed.Completed)

	due, err = s.DueReminders()
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestMarkNotifiedExcludesFromDueReminders(t *testing.T) {
	s := newTestStore(t)
	n, err := s.CreateNote("T", "C", nil, nil)
	require.NoError(t, err)
	r, err := s.CreateReminder(n.ID, "ping", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = s.MarkNotified(r.ID)
	require.NoError(t, err)

	due, err := s.DueReminders()
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestUpdateReminderBumpsRevision(t *testing.T) {
	s := newTestStore(t)
	n, err := s.CreateNote("T", "C", nil, nil)
	require.NoError(t, err)
	r, err := s.CreateReminder(n.ID, "ping", time.Now())
	require.NoError(t, err)

	newMessage := "pong"
	updated, err := s.UpdateReminder(r.ID, entities.ReminderPatch{Message: &newMessage})
	require.NoError(t, err)
	require.Equal(t, "pong", updated.Message)
	require.Equal(t, int64(2), updated.Revision)
}

func TestHardDeleteReminder(t *testing.T) {
	s := newTestStore(t)
	n, err := s.CreateNote("T", "C", nil, nil)
	require.NoError(t, err)
	r, err := s.CreateReminder(n.ID, "ping", time.Now())
	require.NoError(t, err)

	require.NoError(t, s.HardDeleteReminder(r.ID))
	_, err = s.GetReminder(r.ID)
	require.True(t, apperr.Is(err, apperr.NotFound))

	err = s.HardDeleteReminder(r.ID)
	require.True(t, apperr.Is(err, apperr.NotFound))
}

func TestRemindersForNote(t *testing.T) {
	s := newTestStore(t)
	n1, err := s.CreateNote("One", "C", nil, nil)
	require.NoError(t, err)
	n2, err := s.CreateNote("Two", "C", nil, nil)
	require.NoError(t, err)
	_, err = s.CreateReminder(n1.ID, "a", time.Now())
	require.NoError(t, err)
	_, err = s.CreateReminder(n2.ID, "b", time.Now())
	require.NoError(t, err)

	reminders, err := s.RemindersForNote(n1.ID)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	require.Equal(t, "a", reminders[0].Message)
}
