package store

import (
	"database/sql"

	"github.com/kittclouds/notesync/internal/apperr"
	"github.com/kittclouds/notesync/internal/entities"
)

// ChangesSinceNotes/Notebooks/Tags return every row (including tombstoned)
// whose revision exceeds cursor. This is the sole primitive the client's
// push step uses to decide what to send.

func (s *Store) ChangesSinceNotes(cursor int64) ([]*entities.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`
		SELECT id, title, content, notebook_id, tags, status, is_pinned, revision, created_at, updated_at, deleted_at
		FROM notes WHERE revision > ? ORDER BY revision ASC`, cursor)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "changes since notes")
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
		var perr error
		if n.CreatedAt, perr = parseTime(createdAt); perr != nil {
			return nil, apperr.Wrap(apperr.Database, perr, "parse created_at")
		}
		if n.UpdatedAt, perr = parseTime(updatedAt); perr != nil {
			return nil, apperr.Wrap(apperr.Database, perr, "parse updated_at")
		}
		if n.DeletedAt, perr = sqlToNullableTime(deletedAt); perr != nil {
			return nil, apperr.Wrap(apperr.Database, perr, "parse deleted_at")
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *Store) ChangesSinceNotebooks(cursor int64) ([]*entities.Notebook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`
		SELECT id, name, color, icon, parent_id, revision, created_at, updated_at, deleted_at
		FROM notebooks WHERE revision > ? ORDER BY revision ASC`, cursor)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "changes since notebooks")
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
		var perr error
		if nb.CreatedAt, perr = parseTime(createdAt); perr != nil {
			return nil, apperr.Wrap(apperr.Database, perr, "parse created_at")
		}
		if nb.UpdatedAt, perr = parseTime(updatedAt); perr != nil {
			return nil, apperr.Wrap(apperr.Database, perr, "parse updated_at")
		}
		if nb.DeletedAt, perr = sqlToNullableTime(deletedAt); perr != nil {
			return nil, apperr.Wrap(apperr.Database, perr, "parse deleted_at")
		}
		out = append(out, &nb)
	}
	return out, rows.Err()
}

func (s *Store) ChangesSinceTags(cursor int64) ([]*entities.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`
		SELECT id, name, color, revision, created_at, updated_at, deleted_at
		FROM tags WHERE revision > ? ORDER BY revision ASC`, cursor)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "changes since tags")
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
		var perr error
		if t.CreatedAt, perr = parseTime(createdAt); perr != nil {
			return nil, apperr.Wrap(apperr.Database, perr, "parse created_at")
		}
		if t.UpdatedAt, perr = parseTime(updatedAt); perr != nil {
			return nil, apperr.Wrap(apperr.Database, perr, "parse updated_at")
		}
		if t.DeletedAt, perr = sqlToNullableTime(deletedAt); perr != nil {
			return nil, apperr.Wrap(apperr.Database, perr, "parse deleted_at")
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// LWWDecision is the outcome of comparing a local and a remote entity
// revision/timestamp pair per the merge rule in §4.3.3.
type LWWDecision int

const (
	ApplyRemote LWWDecision = iota
	KeepLocal
)

// ResolveLWW implements the merge rule: no local row always applies remote;
// otherwise the higher revision wins, ties break on updated_at, and a dead
// tie keeps local.
func ResolveLWW(localExists bool, localRevision, remoteRevision int64, localUpdatedAt, remoteUpdatedAt int64) (decision LWWDecision, conflicted bool) {
	if !localExists {
		return ApplyRemote, false
	}
	switch {
	case remoteRevision > localRevision:
		return ApplyRemote, false
	case remoteRevision == localRevision:
		if remoteUpdatedAt > localUpdatedAt {
			return ApplyRemote, false
		}
		return KeepLocal, false
	default:
		return KeepLocal, true
	}
}

// UpsertNoteFromRemote applies the LWW merge rule for a note arriving from
// a server pull through the sync engine. It reports whether the incoming
// entity lost (conflicted, local kept) so the caller can build a conflict
// report.
func (s *Store) UpsertNoteFromRemote(remote *entities.Note) (conflicted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	local, lerr := s.getNote(remote.ID)
	localExists := lerr == nil
	if lerr != nil && !apperr.Is(lerr, apperr.NotFound) {
		return false, lerr
	}

	var localRev, localTS int64
	if localExists {
		localRev = local.Revision
		localTS = local.UpdatedAt.UnixNano()
	}
	decision, conflicted := ResolveLWW(localExists, localRev, remote.Revision, localTS, remote.UpdatedAt.UnixNano())
	if decision == KeepLocal {
		return conflicted, nil
	}

	if localExists {
		_, err = s.db.Exec(`
			UPDATE notes SET title = ?, content = ?, notebook_id = ?, tags = ?, status = ?, is_pinned = ?, revision = ?, created_at = ?, updated_at = ?, deleted_at = ?
			WHERE id = ?`,
			remote.Title, remote.Content, nullableStringToSQL(remote.NotebookID), encodeTags(remote.Tags), string(remote.Status),
			boolToInt(remote.IsPinned), remote.Revision, formatTime(remote.CreatedAt), formatTime(remote.UpdatedAt), nullableTimeToSQL(remote.DeletedAt), remote.ID)
	} else {
		_, err = s.db.Exec(`
			INSERT INTO notes (id, title, content, notebook_id, tags, status, is_pinned, revision, created_at, updated_at, deleted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			remote.ID, remote.Title, remote.Content, nullableStringToSQL(remote.NotebookID), encodeTags(remote.Tags), string(remote.Status),
			boolToInt(remote.IsPinned), remote.Revision, formatTime(remote.CreatedAt), formatTime(remote.UpdatedAt), nullableTimeToSQL(remote.DeletedAt))
	}
	if err != nil {
		return false, apperr.Wrap(apperr.Database, err, "apply remote note")
	}
	return false, nil
}

func (s *Store) UpsertNotebookFromRemote(remote *entities.Notebook) (conflicted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	local, lerr := s.getNotebook(remote.ID)
	localExists := lerr == nil
	if lerr != nil && !apperr.Is(lerr, apperr.NotFound) {
		return false, lerr
	}
	var localRev, localTS int64
	if localExists {
		localRev = local.Revision
		localTS = local.UpdatedAt.UnixNano()
	}
	decision, conflicted := ResolveLWW(localExists, localRev, remote.Revision, localTS, remote.UpdatedAt.UnixNano())
	if decision == KeepLocal {
		return conflicted, nil
	}

	if localExists {
		_, err = s.db.Exec(`
			UPDATE notebooks SET name = ?, color = ?, icon = ?, parent_id = ?, revision = ?, created_at = ?, updated_at = ?, deleted_at = ?
			WHERE id = ?`,
			remote.Name, nullableStringToSQL(remote.Color), nullableStringToSQL(remote.Icon), nullableStringToSQL(remote.ParentID),
			remote.Revision, formatTime(remote.CreatedAt), formatTime(remote.UpdatedAt), nullableTimeToSQL(remote.DeletedAt), remote.ID)
	} else {
		_, err = s.db.Exec(`
			INSERT INTO notebooks (id, name, color, icon, parent_id, revision, created_at, updated_at, deleted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			remote.ID, remote.Name, nullableStringToSQL(remote.Color), nullableStringToSQL(remote.Icon), nullableStringToSQL(remote.ParentID),
			remote.Revision, formatTime(remote.CreatedAt), formatTime(remote.UpdatedAt), nullableTimeToSQL(remote.DeletedAt))
	}
	if err != nil {
		return false, apperr.Wrap(apperr.Database, err, "apply remote notebook")
	}
	return false, nil
}

func (s *Store) UpsertTagFromRemote(remote *entities.Tag) (conflicted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	local, lerr := s.getTag(remote.ID)
	localExists := lerr == nil
	if lerr != nil && !apperr.Is(lerr, apperr.NotFound) {
		return false, lerr
	}
	var localRev, localTS int64
	if localExists {
		localRev = local.Revision
		localTS = local.UpdatedAt.UnixNano()
	}
	decision, conflicted := ResolveLWW(localExists, localRev, remote.Revision, localTS, remote.UpdatedAt.UnixNano())
	if decision == KeepLocal {
		return conflicted, nil
	}

	if localExists {
		_, err = s.db.Exec(`
			UPDATE tags SET name = ?, color = ?, revision = ?, created_at = ?, updated_at = ?, deleted_at = ?
			WHERE id = ?`,
			remote.Name, nullableStringToSQL(remote.Color), remote.Revision, formatTime(remote.CreatedAt), formatTime(remote.UpdatedAt), nullableTimeToSQL(remote.DeletedAt), remote.ID)
	} else {
		_, err = s.db.Exec(`
			INSERT INTO tags (id, name, color, revision, created_at, updated_at, deleted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			remote.ID, remote.Name, nullableStringToSQL(remote.Color), remote.Revision, formatTime(remote.CreatedAt), formatTime(remote.UpdatedAt), nullableTimeToSQL(remote.DeletedAt))
	}
	if err != nil {
		return false, apperr.Wrap(apperr.Database, err, "apply remote tag")
	}
	return false, nil
}

// PutNote inserts or replaces a note verbatim — same id, revision,
// timestamps, status, pin, and tombstone state as given — bypassing the
// LWW merge rule entirely. Used by backup import, which must restore the
// exact entity graph rather than merge it against what is already there.
func (s *Store) PutNote(n *entities.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO notes (id, title, content, notebook_id, tags, status, is_pinned, revision, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.Content, nullableStringToSQL(n.NotebookID), encodeTags(n.Tags), string(n.Status),
		boolToInt(n.IsPinned), n.Revision, formatTime(n.CreatedAt), formatTime(n.UpdatedAt), nullableTimeToSQL(n.DeletedAt))
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "put note")
	}
	return nil
}

// PutNotebook is PutNote's counterpart for notebooks.
func (s *Store) PutNotebook(nb *entities.Notebook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO notebooks (id, name, color, icon, parent_id, revision, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nb.ID, nb.Name, nullableStringToSQL(nb.Color), nullableStringToSQL(nb.Icon), nullableStringToSQL(nb.ParentID),
		nb.Revision, formatTime(nb.CreatedAt), formatTime(nb.UpdatedAt), nullableTimeToSQL(nb.DeletedAt))
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "put notebook")
	}
	return nil
}

// PutTag is PutNote's counterpart for tags.
func (s *Store) PutTag(t *entities.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO tags (id, name, color, revision, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, nullableStringToSQL(t.Color), t.Revision, formatTime(t.CreatedAt), formatTime(t.UpdatedAt), nullableTimeToSQL(t.DeletedAt))
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "put tag")
	}
	return nil
}

// LocalSyncState is the client's persisted sync cursor pair, stored as the
// single fixed-key row in local_sync_state.
type LocalSyncState struct {
	LastPullRevision int64
	LastPushRevision int64
	LastSyncedAt     *string
	PendingChanges   int
}

func (s *Store) GetSyncState() (*LocalSyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st LocalSyncState
	var lastSynced sql.NullString
	err := s.db.QueryRow(`SELECT last_pull_revision, last_push_revision, last_synced_at FROM local_sync_state WHERE id = 1`).
		Scan(&st.LastPullRevision, &st.LastPushRevision, &lastSynced)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "get sync state")
	}
	if lastSynced.Valid {
		st.LastSyncedAt = &lastSynced.String
	}

	var pending int
	err = s.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM notes WHERE revision > ?) +
			(SELECT COUNT(*) FROM notebooks WHERE revision > ?) +
			(SELECT COUNT(*) FROM tags WHERE revision > ?)`,
		st.LastPushRevision, st.LastPushRevision, st.LastPushRevision).Scan(&pending)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "count pending changes")
	}
	st.PendingChanges = pending
	return &st, nil
}

// SetPullRevision advances last_pull_revision and, per the resolved open
// question in SPEC_FULL.md §4.3.2, also advances last_push_revision to the
// same value so freshly pulled entities do not appear spuriously pending.
func (s *Store) SetPullRevision(rev int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := formatTime(nowFn())
	_, err := s.db.Exec(`UPDATE local_sync_state SET last_pull_revision = ?, last_push_revision = ?, last_synced_at = ? WHERE id = 1`, rev, rev, now)
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "set pull revision")
	}
	return nil
}

func (s *Store) SetPushRevision(rev int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := formatTime(nowFn())
	_, err := s.db.Exec(`UPDATE local_sync_state SET last_push_revision = ?, last_synced_at = ? WHERE id = 1`, rev, now)
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "set push revision")
	}
	return nil
}
