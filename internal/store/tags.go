package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/coregx/ahocorasick"
	"github.com/google/uuid"

	"github.com/kittclouds/notesync/internal/apperr"
	"github.com/kittclouds/notesync/internal/entities"
)

func (s *Store) CreateTag(name string, color *string) (*entities.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tags WHERE name = ? AND deleted_at IS NULL`, name).Scan(&exists); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "check tag name")
	}
	if exists > 0 {
		return nil, apperr.Conflictf("tag %q already exists", name)
	}

	now := time.Now().UTC()
	tag := &entities.Tag{
		ID:        uuid.NewString(),
		Name:      name,
		Color:     color,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.Exec(`INSERT INTO tags (id, name, color, revision, created_at, updated_at, deleted_at) VALUES (?, ?, ?, ?, ?, ?, NULL)`,
		tag.ID, tag.Name, nullableStringToSQL(tag.Color), tag.Revision, formatTime(tag.CreatedAt), formatTime(tag.UpdatedAt))
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "insert tag")
	}
	return tag, nil
}

func (s *Store) GetTag(id string) (*entities.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTag(id)
}

func (s *Store) getTag(id string) (*entities.Tag, error) {
	row := s.db.QueryRow(`SELECT id, name, color, revision, created_at, updated_at, deleted_at FROM tags WHERE id = ?`, id)
	return scanTag(row)
}

func scanTag(row *sql.Row) (*entities.Tag, error) {
	var t entities.Tag
	var color, deletedAt sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.Name, &color, &t.Revision, &createdAt, &updatedAt, &deletedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFoundf("tag not found")
		}
		return nil, apperr.Wrap(apperr.Database, err, "scan tag")
	}
	t.Color = sqlToNullableString(color)
	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "parse created_at")
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "parse updated_at")
	}
	if t.DeletedAt, err = sqlToNullableTime(deletedAt); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "parse deleted_at")
	}
	return &t, nil
}

func (s *Store) ListTags() ([]*entities.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, name, color, revision, created_at, updated_at, deleted_at FROM tags WHERE deleted_at IS NULL ORDER BY name ASC`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "list tags")
	}
	defer rows.Close()

	var out []*entities.Tag
	for rows.Next() {
		var t entities.Tag
		var color, deletedAt sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.Name, &color, &t.Revision, &createdAt, &updatedAt, &deletedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "scan tag row")
		}
		t.Color = sqlToNullableString(color)
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "parse created_at")
		}
		if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "parse updated_at")
		}
		if t.DeletedAt, err = sqlToNullableTime(deletedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "parse deleted_at")
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// UpdateTag renames/recolors a tag. A rename is rejected with Conflict if it
// collides with another live tag's name.
func (s *Store) UpdateTag(id string, patch entities.TagPatch) (*entities.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag, err := s.getTag(id)
	if err != nil {
		return nil, err
	}
	oldName := tag.Name
	if patch.Name != nil && *patch.Name != oldName {
		var exists int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM tags WHERE name = ? AND deleted_at IS NULL AND id != ?`, *patch.Name, id).Scan(&exists); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "check tag name")
		}
		if exists > 0 {
			return nil, apperr.Conflictf("tag %q already exists", *patch.Name)
		}
		tag.Name = *patch.Name
	}
	if patch.Color != nil {
		tag.Color = *patch.Color
	}
	tag.Revision++
	tag.UpdatedAt = time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE tags SET name = ?, color = ?, revision = ?, updated_at = ? WHERE id = ?`,
		tag.Name, nullableStringToSQL(tag.Color), tag.Revision, formatTime(tag.UpdatedAt), tag.ID); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "update tag")
	}
	if tag.Name != oldName {
		if err := renameTagOnNotes(tx, oldName, tag.Name); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "commit")
	}
	return tag, nil
}

// SoftDeleteTag tombstones the tag and strips its name from every note's
// tag list in the same transaction, bumping each affected note's revision.
func (s *Store) SoftDeleteTag(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag, err := s.getTag(id)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "begin tx")
	}
	defer tx.Rollback()

	now := formatTime(time.Now().UTC())
	if _, err := tx.Exec(`UPDATE tags SET deleted_at = ?, revision = revision + 1, updated_at = ? WHERE id = ?`, now, now, tag.ID); err != nil {
		return apperr.Wrap(apperr.Database, err, "soft delete tag")
	}
	if err := stripTagFromNotes(tx, tag.Name, now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) HardDeleteTag(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag, err := s.getTag(id)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "begin tx")
	}
	defer tx.Rollback()

	now := formatTime(time.Now().UTC())
	if _, err := tx.Exec(`DELETE FROM tags WHERE id = ?`, tag.ID); err != nil {
		return apperr.Wrap(apperr.Database, err, "hard delete tag")
	}
	if err := stripTagFromNotes(tx, tag.Name, now); err != nil {
		return err
	}
	return tx.Commit()
}

// stripTagFromNotes removes name from every note's decoded tag list.
//
// Candidate rows are narrowed first with a single Aho-Corasick scan over
// every note's raw tags column (one automaton built for the quoted tag
// name, one linear pass over all rows) rather than one LIKE query per note;
// each candidate is then decoded and filtered exactly, so a tag name that
// happens to be a substring of another's never causes a false strip.
func stripTagFromNotes(tx *sql.Tx, name, now string) error {
	needle := mustQuoteJSON(name)
	automaton, err := ahocorasick.NewBuilder().
		AddStrings([]string{needle}).
		SetMatchKind(ahocorasick.LeftmostLongest).
		Build()
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "build tag scan automaton")
	}

	rows, err := tx.Query(`SELECT id, tags, revision FROM notes`)
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "scan notes for tag strip")
	}
	type candidate struct {
		id  string
		tag []string
		rev int64
	}
	var candidates []candidate
	for rows.Next() {
		var id, tagsJSON string
		var rev int64
		if err := rows.Scan(&id, &tagsJSON, &rev); err != nil {
			rows.Close()
			return apperr.Wrap(apperr.Database, err, "scan note row for tag strip")
		}
		if len(automaton.FindAllOverlapping([]byte(tagsJSON))) == 0 {
			continue
		}
		var tags []string
		if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
			continue
		}
		candidates = append(candidates, candidate{id: id, tag: tags, rev: rev})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apperr.Wrap(apperr.Database, err, "iterate notes for tag strip")
	}

	for _, c := range candidates {
		filtered := make([]string, 0, len(c.tag))
		changed := false
		for _, t := range c.tag {
			if t == name {
				changed = true
				continue
			}
			filtered = append(filtered, t)
		}
		if !changed {
			continue
		}
		encoded, err := json.Marshal(filtered)
		if err != nil {
			return apperr.Wrap(apperr.Database, err, "encode filtered tags")
		}
		if _, err := tx.Exec(`UPDATE notes SET tags = ?, revision = revision + 1, updated_at = ? WHERE id = ?`, string(encoded), now, c.id); err != nil {
			return apperr.Wrap(apperr.Database, err, "strip tag from note")
		}
	}
	return nil
}

func renameTagOnNotes(tx *sql.Tx, oldName, newName string) error {
	rows, err := tx.Query(`SELECT id, tags FROM notes WHERE deleted_at IS NULL`)
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "scan notes for tag rename")
	}
	type candidate struct {
		id   string
		tags []string
	}
	var candidates []candidate
	for rows.Next() {
		var id, tagsJSON string
		if err := rows.Scan(&id, &tagsJSON); err != nil {
			rows.Close()
			return apperr.Wrap(apperr.Database, err, "scan note row for tag rename")
		}
		var tags []string
		if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
			continue
		}
		for _, t := range tags {
			if t == oldName {
				candidates = append(candidates, candidate{id: id, tags: tags})
				break
			}
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apperr.Wrap(apperr.Database, err, "iterate notes for tag rename")
	}

	now := formatTime(time.Now().UTC())
	for _, c := range candidates {
		for i, t := range c.tags {
			if t == oldName {
				c.tags[i] = newName
			}
		}
		encoded, err := json.Marshal(c.tags)
		if err != nil {
			return apperr.Wrap(apperr.Database, err, "encode renamed tags")
		}
		if _, err := tx.Exec(`UPDATE notes SET tags = ?, revision = revision + 1, updated_at = ? WHERE id = ?`, string(encoded), now, c.id); err != nil {
			return apperr.Wrap(apperr.Database, err, "rename tag on note")
		}
	}
	return nil
}

func mustQuoteJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
