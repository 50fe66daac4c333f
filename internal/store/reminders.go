package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/kittclouds/notesync/internal/apperr"
	"github.com/kittclouds/notesync/internal/entities"
)

func (s *Store) CreateReminder(noteID, message string, dueDate time.Time) (*entities.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM notes WHERE id = ? AND deleted_at IS NULL`, noteID).Scan(&exists); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "check note")
	}
	if exists == 0 {
		return nil, apperr.Validationf("note %s does not exist", noteID)
	}

	now := time.Now().UTC()
	r := &entities.Reminder{
		ID:        uuid.NewString(),
		NoteID:    noteID,
		Message:   message,
		DueDate:   dueDate,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.Exec(`
		INSERT INTO reminders (id, note_id, message, due_date, completed, notified, revision, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, 0, 0, ?, ?, ?, NULL)`,
		r.ID, r.NoteID, r.Message, formatTime(r.DueDate), r.Revision, formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "insert reminder")
	}
	return r, nil
}

func (s *Store) GetReminder(id string) (*entities.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getReminder(id)
}

func (s *Store) getReminder(id string) (*entities.Reminder, error) {
	row := s.db.QueryRow(`
		SELECT id, note_id, message, due_date, completed, notified, revision, created_at, updated_at, deleted_at
		FROM reminders WHERE id = ?`, id)
	return scanReminder(row)
}

func scanReminder(row *sql.Row) (*entities.Reminder, error) {
	var r entities.Reminder
	var deletedAt sql.NullString
	var dueDate, createdAt, updatedAt string
	var completed, notified int
	if err := row.Scan(&r.ID, &r.NoteID, &r.Message, &dueDate, &completed, &notified, &r.Revision, &createdAt, &updatedAt, &deletedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFoundf("reminder not found")
		}
		return nil, apperr.Wrap(apperr.Database, err, "scan reminder")
	}
	r.Completed = intToBool(completed)
	r.Notified = intToBool(notified)
	var err error
	if r.DueDate, err = parseTime(dueDate); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "parse due_date")
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "parse created_at")
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "parse updated_at")
	}
	if r.DeletedAt, err = sqlToNullableTime(deletedAt); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "parse deleted_at")
	}
	return &r, nil
}

func scanReminders(rows *sql.Rows) ([]*entities.Reminder, error) {
	var out []*entities.Reminder
	for rows.Next() {
		var r entities.Reminder
		var deletedAt sql.NullString
		var dueDate, createdAt, updatedAt string
		var completed, notified int
		if err := rows.Scan(&r.ID, &r.NoteID, &r.Message, &dueDate, &completed, &notified, &r.Revision, &createdAt, &updatedAt, &deletedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "scan reminder row")
		}
		r.Completed = intToBool(completed)
		r.Notified = intToBool(notified)
		var err error
		if r.DueDate, err = parseTime(dueDate); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "parse due_date")
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "parse created_at")
		}
		if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "parse updated_at")
		}
		if r.DeletedAt, err = sqlToNullableTime(deletedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "parse deleted_at")
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

const reminderColumns = `id, note_id, message, due_date, completed, notified, revision, created_at, updated_at, deleted_at`

func (s *Store) ListReminders() ([]*entities.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT `+reminderColumns+` FROM reminders WHERE deleted_at IS NULL ORDER BY due_date ASC`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "list reminders")
	}
	defer rows.Close()
	return scanReminders(rows)
}

func (s *Store) RemindersForNote(noteID string) ([]*entities.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT `+reminderColumns+` FROM reminders WHERE note_id = ? AND deleted_at IS NULL ORDER BY due_date ASC`, noteID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "reminders for note")
	}
	defer rows.Close()
	return scanReminders(rows)
}

// UpcomingReminders returns reminders due within the next withinDays days,
// not yet completed.
func (s *Store) UpcomingReminders(withinDays int) ([]*entities.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := formatTime(time.Now().UTC().AddDate(0, 0, withinDays))
	now := formatTime(time.Now().UTC())
	rows, err := s.db.Query(`SELECT `+reminderColumns+` FROM reminders
		WHERE deleted_at IS NULL AND completed = 0 AND due_date >= ? AND due_date <= ? ORDER BY due_date ASC`, now, cutoff)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "upcoming reminders")
	}
	defer rows.Close()
	return scanReminders(rows)
}

func (s *Store) OverdueReminders() ([]*entities.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := formatTime(time.Now().UTC())
	rows, err := s.db.Query(`SELECT `+reminderColumns+` FROM reminders
		WHERE deleted_at IS NULL AND completed = 0 AND due_date < ? ORDER BY due_date ASC`, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "overdue reminders")
	}
	defer rows.Close()
	return scanReminders(rows)
}

// DueReminders returns reminders that are due now, not completed, and have
// not yet been notified — the set a notification poller would consume.
func (s *Store) DueReminders() ([]*entities.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := formatTime(time.Now().UTC())
	rows, err := s.db.Query(`SELECT `+reminderColumns+` FROM reminders
		WHERE deleted_at IS NULL AND completed = 0 AND notified = 0 AND due_date <= ? ORDER BY due_date ASC`, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "due reminders")
	}
	defer rows.Close()
	return scanReminders(rows)
}

func (s *Store) UpdateReminder(id string, patch entities.ReminderPatch) (*entities.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.getReminder(id)
	if err != nil {
		return nil, err
	}
	if patch.Message != nil {
		r.Message = *patch.Message
	}
	if patch.DueDate != nil {
		r.DueDate = *patch.DueDate
	}
	if patch.Completed != nil {
		r.Completed = *patch.Completed
	}
	if patch.Notified != nil {
		r.Notified = *patch.Notified
	}
	r.Revision++
	r.UpdatedAt = time.Now().UTC()

	_, err = s.db.Exec(`
		UPDATE reminders SET message = ?, due_date = ?, completed = ?, notified = ?, revision = ?, updated_at = ?
		WHERE id = ?`,
		r.Message, formatTime(r.DueDate), boolToInt(r.Completed), boolToInt(r.Notified), r.Revision, formatTime(r.UpdatedAt), r.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "update reminder")
	}
	return r, nil
}

// CompleteReminder and MarkNotified are named shortcuts over UpdateReminder,
// matching the donor command layer's convenience wrappers.
func (s *Store) CompleteReminder(id string) (*entities.Reminder, error) {
	done := true
	return s.UpdateReminder(id, entities.ReminderPatch{Completed: &done})
}

func (s *Store) MarkNotified(id string) (*entities.Reminder, error) {
	notified := true
	return s.UpdateReminder(id, entities.ReminderPatch{Notified: &notified})
}

func (s *Store) HardDeleteReminder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "hard delete reminder")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("reminder not found")
	}
	return nil
}
