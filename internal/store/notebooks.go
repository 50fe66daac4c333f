package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/kittclouds/notesync/internal/apperr"
	"github.com/kittclouds/notesync/internal/entities"
)

// CreateNotebook inserts a new notebook with revision 1. Fails with
// Validation if parent_id is set but does not resolve to an existing
// notebook.
func (s *Store) CreateNotebook(name string, color, icon, parentID *string) (*entities.Notebook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if parentID != nil {
		var exists int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM notebooks WHERE id = ? AND deleted_at IS NULL`, *parentID).Scan(&exists); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "check parent notebook")
		}
		if exists == 0 {
			return nil, apperr.Validationf("parent notebook %s does not exist", *parentID)
		}
	}

	now := time.Now().UTC()
	nb := &entities.Notebook{
		ID:        uuid.NewString(),
		Name:      name,
		Color:     color,
		Icon:      icon,
		ParentID:  parentID,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.Exec(`
		INSERT INTO notebooks (id, name, color, icon, parent_id, revision, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		nb.ID, nb.Name, nullableStringToSQL(nb.Color), nullableStringToSQL(nb.Icon), nullableStringToSQL(nb.ParentID),
		nb.Revision, formatTime(nb.CreatedAt), formatTime(nb.UpdatedAt))
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "insert notebook")
	}
	return nb, nil
}

func (s *Store) GetNotebook(id string) (*entities.Notebook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getNotebook(id)
}

func (s *Store) getNotebook(id string) (*entities.Notebook, error) {
	row := s.db.QueryRow(`
		SELECT id, name, color, icon, parent_id, revision, created_at, updated_at, deleted_at
		FROM notebooks WHERE id = ?`, id)
	return scanNotebook(row)
}

func scanNotebook(row *sql.Row) (*entities.Notebook, error) {
	var nb entities.Notebook
	var color, icon, parentID, deletedAt sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&nb.ID, &nb.Name, &color, &icon, &parentID, &nb.Revision, &createdAt, &updatedAt, &deletedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFoundf("notebook not found")
		}
		return nil, apperr.Wrap(apperr.Database, err, "scan notebook")
	}
	nb.Color = sqlToNullableString(color)
	nb.Icon = sqlToNullableString(icon)
	nb.ParentID = sqlToNullableString(parentID)
	var err error
	if nb.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "parse created_at")
	}
	if nb.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "parse updated_at")
	}
	if nb.DeletedAt, err = sqlToNullableTime(deletedAt); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "parse deleted_at")
	}
	return &nb, nil
}

// ListNotebooks returns all non-tombstoned notebooks ordered by name.
func (s *Store) ListNotebooks() ([]*entities.Notebook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, name, color, icon, parent_id, revision, created_at, updated_at, deleted_at
		FROM notebooks WHERE deleted_at IS NULL ORDER BY name ASC`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "list notebooks")
	}
	defer rows.Close()

	var out []*entities.Notebook
	for rows.Next() {
		var nb entities.Notebook
		var color, icon, parentID, deletedAt sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&nb.ID, &nb.Name, &color, &icon, &parentID, &nb.Revision, &createdAt, &updatedAt, &deletedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "scan notebook row")
		}
		nb.Color = sqlToNullableString(color)
		nb.Icon = sqlToNullableString(icon)
		nb.ParentID = sqlToNullableString(parentID)
		if nb.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "parse created_at")
		}
		if nb.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "parse updated_at")
		}
		if nb.DeletedAt, err = sqlToNullableTime(deletedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "parse deleted_at")
		}
		out = append(out, &nb)
	}
	return out, rows.Err()
}

// UpdateNotebook applies patch, bumping revision and updated_at.
func (s *Store) UpdateNotebook(id string, patch entities.NotebookPatch) (*entities.Notebook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nb, err := s.getNotebook(id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		nb.Name = *patch.Name
	}
	if patch.Color != nil {
		nb.Color = *patch.Color
	}
	if patch.Icon != nil {
		nb.Icon = *patch.Icon
	}
	if patch.ParentID != nil {
		if *patch.ParentID != nil {
			if **patch.ParentID == id {
				return nil, apperr.Validationf("notebook cannot be its own parent")
			}
			var exists int
			if err := s.db.QueryRow(`SELECT COUNT(*) FROM notebooks WHERE id = ? AND deleted_at IS NULL`, **patch.ParentID).Scan(&exists); err != nil {
				return nil, apperr.Wrap(apperr.Database, err, "check parent notebook")
			}
			if exists == 0 {
				return nil, apperr.Validationf("parent notebook %s does not exist", **patch.ParentID)
			}
		}
		nb.ParentID = *patch.ParentID
	}
	nb.Revision++
	nb.UpdatedAt = time.Now().UTC()

	_, err = s.db.Exec(`
		UPDATE notebooks SET name = ?, color = ?, icon = ?, parent_id = ?, revision = ?, updated_at = ?
		WHERE id = ?`,
		nb.Name, nullableStringToSQL(nb.Color), nullableStringToSQL(nb.Icon), nullableStringToSQL(nb.ParentID),
		nb.Revision, formatTime(nb.UpdatedAt), nb.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "update notebook")
	}
	return nb, nil
}

// SoftDeleteNotebook tombstones the notebook and, in the same transaction,
// clears notebook_id (and bumps revision) on every note that referenced it.
func (s *Store) SoftDeleteNotebook(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "begin tx")
	}
	defer tx.Rollback()

	now := formatTime(time.Now().UTC())
	res, err := tx.Exec(`UPDATE notebooks SET deleted_at = ?, revision = revision + 1, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, now, now, id)
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "soft delete notebook")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("notebook not found")
	}
	if err := clearNotebookReferences(tx, id, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.Database, err, "commit")
	}
	return nil
}

// HardDeleteNotebook removes the row outright, clears parent_id on child
// notebooks (no cascade), and clears notebook_id on referring notes.
func (s *Store) HardDeleteNotebook(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "begin tx")
	}
	defer tx.Rollback()

	now := formatTime(time.Now().UTC())
	res, err := tx.Exec(`DELETE FROM notebooks WHERE id = ?`, id)
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "hard delete notebook")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("notebook not found")
	}
	if _, err := tx.Exec(`UPDATE notebooks SET parent_id = NULL, revision = revision + 1, updated_at = ? WHERE parent_id = ?`, now, id); err != nil {
		return apperr.Wrap(apperr.Database, err, "clear child parent_id")
	}
	if err := clearNotebookReferences(tx, id, now); err != nil {
		return err
	}
	return tx.Commit()
}

func clearNotebookReferences(tx *sql.Tx, notebookID, now string) error {
	if _, err := tx.Exec(`UPDATE notes SET notebook_id = NULL, revision = revision + 1, updated_at = ? WHERE notebook_id = ?`, now, notebookID); err != nil {
		return apperr.Wrap(apperr.Database, err, "clear notebook references on notes")
	}
	return nil
}

// RestoreNotebook clears the tombstone and bumps revision.
func (s *Store) RestoreNotebook(id string) (*entities.Notebook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nb, err := s.getNotebook(id)
	if err != nil {
		return nil, err
	}
	nb.DeletedAt = nil
	nb.Revision++
	nb.UpdatedAt = time.Now().UTC()
	_, err = s.db.Exec(`UPDATE notebooks SET deleted_at = NULL, revision = ?, updated_at = ? WHERE id = ?`, nb.Revision, formatTime(nb.UpdatedAt), nb.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "restore notebook")
	}
	return nb, nil
}
