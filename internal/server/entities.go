package server

import (
	"database/sql"

	"github.com/kittclouds/notesync/internal/apperr"
	"github.com/kittclouds/notesync/internal/wire"
)

// ChangesSinceNotes/Notebooks/Tags return every row (including tombstoned)
// with global_revision > cursor, ascending — the pull response body.

func (s *Store) ChangesSinceNotes(cursor int64) ([]wire.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT id, title, content, notebook_id, tags, status, is_pinned, revision, is_deleted, created_at, updated_at
		FROM notes WHERE revision > ? ORDER BY revision ASC`, cursor)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "changes since notes")
	}
	defer rows.Close()

	var out []wire.Note
	for rows.Next() {
		var w wire.Note
		var notebookID sql.NullString
		var isPinned, isDeleted int
		if err := rows.Scan(&w.ID, &w.Title, &w.Content, &notebookID, &w.Tags, &w.Status, &isPinned, &w.Revision, &isDeleted, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "scan note row")
		}
		w.NotebookID = sqlToNullableString(notebookID)
		w.IsPinned = intToBool(isPinned)
		w.IsDeleted = intToBool(isDeleted)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) ChangesSinceNotebooks(cursor int64) ([]wire.Notebook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT id, name, color, icon, parent_id, revision, is_deleted, created_at, updated_at
		FROM notebooks WHERE revision > ? ORDER BY revision ASC`, cursor)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "changes since notebooks")
	}
	defer rows.Close()

	var out []wire.Notebook
	for rows.Next() {
		var w wire.Notebook
		var color, icon, parentID sql.NullString
		var isDeleted int
		if err := rows.Scan(&w.ID, &w.Name, &color, &icon, &parentID, &w.Revision, &isDeleted, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "scan notebook row")
		}
		w.Color = sqlToNullableString(color)
		w.Icon = sqlToNullableString(icon)
		w.ParentID = sqlToNullableString(parentID)
		w.IsDeleted = intToBool(isDeleted)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) ChangesSinceTags(cursor int64) ([]wire.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT id, name, color, revision, is_deleted, created_at, updated_at
		FROM tags WHERE revision > ? ORDER BY revision ASC`, cursor)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "changes since tags")
	}
	defer rows.Close()

	var out []wire.Tag
	for rows.Next() {
		var w wire.Tag
		var color sql.NullString
		var isDeleted int
		if err := rows.Scan(&w.ID, &w.Name, &color, &w.Revision, &isDeleted, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "scan tag row")
		}
		w.Color = sqlToNullableString(color)
		w.IsDeleted = intToBool(isDeleted)
		out = append(out, w)
	}
	return out, rows.Err()
}

// localNoteRevision/localNotebookRevision/localTagRevision fetch the minimal
// revision/updated_at pair ResolveLWW needs, without pulling the whole row.

func (s *Store) localNoteRevision(tx *sql.Tx, id string) (exists bool, revision int64, updatedAt string, err error) {
	err = tx.QueryRow(`SELECT revision, updated_at FROM notes WHERE id = ?`, id).Scan(&revision, &updatedAt)
	if err == sql.ErrNoRows {
		return false, 0, "", nil
	}
	if err != nil {
		return false, 0, "", apperr.Wrap(apperr.Database, err, "read local note revision")
	}
	return true, revision, updatedAt, nil
}

func (s *Store) localNotebookRevision(tx *sql.Tx, id string) (exists bool, revision int64, updatedAt string, err error) {
	err = tx.QueryRow(`SELECT revision, updated_at FROM notebooks WHERE id = ?`, id).Scan(&revision, &updatedAt)
	if err == sql.ErrNoRows {
		return false, 0, "", nil
	}
	if err != nil {
		return false, 0, "", apperr.Wrap(apperr.Database, err, "read local notebook revision")
	}
	return true, revision, updatedAt, nil
}

func (s *Store) localTagRevision(tx *sql.Tx, id string) (exists bool, revision int64, updatedAt string, err error) {
	err = tx.QueryRow(`SELECT revision, updated_at FROM tags WHERE id = ?`, id).Scan(&revision, &updatedAt)
	if err == sql.ErrNoRows {
		return false, 0, "", nil
	}
	if err != nil {
		return false, 0, "", apperr.Wrap(apperr.Database, err, "read local tag revision")
	}
	return true, revision, updatedAt, nil
}
