package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kittclouds/notesync/internal/apperr"
	"github.com/kittclouds/notesync/internal/entities"
)

func encodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func decodeTags(s string) []string {
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return []string{}
	}
	return tags
}

// CreateNote inserts a new note with revision 1. Fails with Validation if
// notebook_id is set but does not resolve to an existing notebook.
func (s *Store) CreateNote(title, content string, notebookID *string, tags []string) (*entities.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if notebookID != nil {
		var exists int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM notebooks WHERE id = ? AND deleted_at IS NULL`, *notebookID).Scan(&exists); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "check notebook")
		}
		if exists == 0 {
			return nil, apperr.Validationf("notebook %s does not exist", *notebookID)
		}
	}

	now := time.Now().UTC()
	n := &entities.Note{
		ID:         uuid.NewString(),
		Title:      title,
		Content:    content,
		NotebookID: notebookID,
		Tags:       tags,
		Status:     entities.StatusActive,
		Revision:   1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.db.Exec(`
		INSERT INTO notes (id, title, content, notebook_id, tags, status, is_pinned, revision, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		n.ID, n.Title, n.Content, nullableStringToSQL(n.NotebookID), encodeTags(n.Tags), string(n.Status),
		boolToInt(n.IsPinned), n.Revision, formatTime(n.CreatedAt), formatTime(n.UpdatedAt))
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "insert note")
	}
	return n, nil
}

func (s *Store) GetNote(id string) (*entities.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getNote(id)
}

func (s *Store) getNote(id string) (*entities.Note, error) {
	row := s.db.QueryRow(`
		SELECT id, title, content, notebook_id, tags, status, is_pinned, revision, created_at, updated_at, deleted_at
		FROM notes WHERE id = ?`, id)
	return scanNote(row)
}

func scanNote(row *sql.Row) (*entities.Note, error) {
	var n entities.Note
	var notebookID, deletedAt sql.NullString
	var tagsJSON, status string
	var isPinned int
	var createdAt, updatedAt string
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &notebookID, &tagsJSON, &status, &isPinned, &n.Revision, &createdAt, &updatedAt, &deletedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFoundf("note not found")
		}
		return nil, apperr.Wrap(apperr.Database, err, "scan note")
	}
	n.NotebookID = sqlToNullableString(notebookID)
	n.Tags = decodeTags(tagsJSON)
	n.Status = entities.NoteStatus(status)
	n.IsPinned = intToBool(isPinned)
	var err error
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "parse created_at")
	}
	if n.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "parse updated_at")
	}
	if n.DeletedAt, err = sqlToNullableTime(deletedAt); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "parse deleted_at")
	}
	return &n, nil
}

// ListNotes applies the spec's filter set. Default ordering is
// is_pinned DESC, updated_at DESC. Tombstoned notes are excluded unless
// filter.Status is explicitly "trashed".
func (s *Store) ListNotes(filter entities.NoteFilter) ([]*entities.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conds []string
	var args []any

	if filter.Status == entities.StatusTrashed {
		conds = append(conds, `deleted_at IS NOT NULL`)
	} else {
		conds = append(conds, `deleted_at IS NULL`)
		if filter.Status != "" {
			conds = append(conds, `status = ?`)
			args = append(args, string(filter.Status))
		} else {
			statuses := []string{string(entities.StatusActive)}
			if filter.IncludeArchived {
				statuses = append(statuses, string(entities.StatusArchived))
			}
			if filter.IncludeTrashed {
				statuses = append(statuses, string(entities.StatusTrashed))
			}
			placeholders := make([]string, len(statuses))
			for i, st := range statuses {
				placeholders[i] = "?"
				args = append(args, st)
			}
			conds = append(conds, fmt.Sprintf(`status IN (%s)`, strings.Join(placeholders, ",")))
		}
	}
	if filter.NotebookID != "" {
		conds = append(conds, `notebook_id = ?`)
		args = append(args, filter.NotebookID)
	}
	if filter.Tag != "" {
		conds = append(conds, `tags LIKE ?`)
		args = append(args, "%\""+filter.Tag+"\"%")
	}
	if filter.Query != "" {
		conds = append(conds, `(title LIKE ? OR content LIKE ?)`)
		like := "%" + filter.Query + "%"
		args = append(args, like, like)
	}

	query := `SELECT id, title, content, notebook_id, tags, status, is_pinned, revision, created_at, updated_at, deleted_at FROM notes`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY is_pinned DESC, updated_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(` LIMIT %d OFFSET %d`, limit, filter.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "list notes")
	}
	defer rows.Close()

	var out []*entities.Note
	for rows.Next() {
		var n entities.Note
		var notebookID, deletedAt sql.NullString
		var tagsJSON, status string
		var isPinned int
		var createdAt, updatedAt string
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &notebookID, &tagsJSON, &status, &isPinned, &n.Revision, &createdAt, &updatedAt, &deletedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "scan note row")
		}
		n.NotebookID = sqlToNullableString(notebookID)
		n.Tags = decodeTags(tagsJSON)
		n.Status = entities.NoteStatus(status)
		n.IsPinned = intToBool(isPinned)
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "parse created_at")
		}
		if n.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "parse updated_at")
		}
		if n.DeletedAt, err = sqlToNullableTime(deletedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "parse deleted_at")
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *Store) CountNotes() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM notes WHERE deleted_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, apperr.Wrap(apperr.Database, err, "count notes")
	}
	return n, nil
}

// UpdateNote applies patch, bumping revision and updated_at.
func (s *Store) UpdateNote(id string, patch entities.NotePatch) (*entities.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.getNote(id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		n.Title = *patch.Title
	}
	if patch.Content != nil {
		n.Content = *patch.Content
	}
	if patch.NotebookID != nil {
		if *patch.NotebookID != nil {
			var exists int
			if err := s.db.QueryRow(`SELECT COUNT(*) FROM notebooks WHERE id = ? AND deleted_at IS NULL`, **patch.NotebookID).Scan(&exists); err != nil {
				return nil, apperr.Wrap(apperr.Database, err, "check notebook")
			}
			if exists == 0 {
				return nil, apperr.Validationf("notebook %s does not exist", **patch.NotebookID)
			}
		}
		n.NotebookID = *patch.NotebookID
	}
	if patch.Tags != nil {
		n.Tags = *patch.Tags
	}
	if patch.Status != nil {
		n.Status = *patch.Status
	}
	if patch.IsPinned != nil {
		n.IsPinned = *patch.IsPinned
	}
	n.Revision++
	n.UpdatedAt = time.Now().UTC()

	_, err = s.db.Exec(`
		UPDATE notes SET title = ?, content = ?, notebook_id = ?, tags = ?, status = ?, is_pinned = ?, revision = ?, updated_at = ?
		WHERE id = ?`,
		n.Title, n.Content, nullableStringToSQL(n.NotebookID), encodeTags(n.Tags), string(n.Status),
		boolToInt(n.IsPinned), n.Revision, formatTime(n.UpdatedAt), n.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "update note")
	}
	return n, nil
}

// SoftDeleteNote moves the note to trashed, sets deleted_at, and soft-deletes
// any reminders still attached to it (a trashed note's reminders should stop
// firing, even though the note itself may later be restored).
func (s *Store) SoftDeleteNote(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "begin tx")
	}
	defer tx.Rollback()

	now := formatTime(time.Now().UTC())
	res, err := tx.Exec(`UPDATE notes SET status = ?, deleted_at = ?, revision = revision + 1, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		string(entities.StatusTrashed), now, now, id)
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "soft delete note")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("note not found")
	}
	if _, err := tx.Exec(`UPDATE reminders SET deleted_at = ?, revision = revision + 1, updated_at = ? WHERE note_id = ? AND deleted_at IS NULL`, now, now, id); err != nil {
		return apperr.Wrap(apperr.Database, err, "soft delete note reminders")
	}
	return tx.Commit()
}

// HardDeleteNote removes the row and cascade-hard-deletes its reminders.
func (s *Store) HardDeleteNote(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "begin tx")
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "hard delete note")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("note not found")
	}
	if _, err := tx.Exec(`DELETE FROM reminders WHERE note_id = ?`, id); err != nil {
		return apperr.Wrap(apperr.Database, err, "cascade delete reminders")
	}
	return tx.Commit()
}

// RestoreNote clears the tombstone, returns status to active, and bumps
// revision.
func (s *Store) RestoreNote(id string) (*entities.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.getNote(id)
	if err != nil {
		return nil, err
	}
	n.DeletedAt = nil
	n.Status = entities.StatusActive
	n.Revision++
	n.UpdatedAt = time.Now().UTC()
	_, err = s.db.Exec(`UPDATE notes SET status = ?, deleted_at = NULL, revision = ?, updated_at = ? WHERE id = ?`,
		string(n.Status), n.Revision, formatTime(n.UpdatedAt), n.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "restore note")
	}
	return n, nil
}
