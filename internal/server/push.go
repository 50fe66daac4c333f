package server

import (
	"database/sql"

	"github.com/kittclouds/notesync/internal/apperr"
	"github.com/kittclouds/notesync/internal/store"
	"github.com/kittclouds/notesync/internal/wire"
)

// ApplyPush runs the full batch from a client's push request inside one
// transaction, applying the same last-write-wins rule the client uses on
// pull, mirrored server-side: a pushed entity that does not beat the stored
// row (lower revision, or equal revision without a newer updated_at) is
// reported back as a server_wins conflict rather than applied, and never
// advances global_revision. If applying an entity fails, the entities
// applied before it stay committed and the error is returned.
func (s *Store) ApplyPush(req wire.PushRequest) (wire.PushResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var resp wire.PushResponse

	tx, err := s.db.Begin()
	if err != nil {
		return resp, apperr.Wrap(apperr.Database, err, "begin push tx")
	}
	defer tx.Rollback()

	for _, wn := range req.Notes {
		conflicted, localRev, err := s.pushNote(tx, wn)
		if err != nil {
			_ = tx.Commit()
			return resp, err
		}
		if conflicted {
			resp.Conflicts = append(resp.Conflicts, wire.Conflict{
				EntityType: "note", EntityID: wn.ID, LocalRevision: localRev, RemoteRevision: wn.Revision, Resolution: "server_wins",
			})
			continue
		}
		resp.Accepted++
	}
	for _, wn := range req.Notebooks {
		conflicted, localRev, err := s.pushNotebook(tx, wn)
		if err != nil {
			_ = tx.Commit()
			return resp, err
		}
		if conflicted {
			resp.Conflicts = append(resp.Conflicts, wire.Conflict{
				EntityType: "notebook", EntityID: wn.ID, LocalRevision: localRev, RemoteRevision: wn.Revision, Resolution: "server_wins",
			})
			continue
		}
		resp.Accepted++
	}
	for _, wt := range req.Tags {
		conflicted, localRev, err := s.pushTag(tx, wt)
		if err != nil {
			_ = tx.Commit()
			return resp, err
		}
		if conflicted {
			resp.Conflicts = append(resp.Conflicts, wire.Conflict{
				EntityType: "tag", EntityID: wt.ID, LocalRevision: localRev, RemoteRevision: wt.Revision, Resolution: "server_wins",
			})
			continue
		}
		resp.Accepted++
	}

	if err := tx.Commit(); err != nil {
		return resp, apperr.Wrap(apperr.Database, err, "commit push tx")
	}

	var rev int64
	if err := s.db.QueryRow(`SELECT global_revision FROM sync_state WHERE id = 1`).Scan(&rev); err != nil {
		return resp, apperr.Wrap(apperr.Database, err, "read global revision")
	}
	resp.ServerRevision = rev
	return resp, nil
}

func (s *Store) pushNote(tx *sql.Tx, wn wire.Note) (conflicted bool, localRev int64, err error) {
	exists, localRev, localUpdatedAt, err := s.localNoteRevision(tx, wn.ID)
	if err != nil {
		return false, 0, err
	}
	var localTS int64
	if exists {
		t, perr := parseTime(localUpdatedAt)
		if perr != nil {
			return false, localRev, apperr.Wrap(apperr.Database, perr, "parse local note updated_at")
		}
		localTS = t.UnixNano()
	}
	incomingTS, err := parseTime(wn.UpdatedAt)
	if err != nil {
		return false, localRev, apperr.Validationf("note %s: invalid updated_at", wn.ID)
	}
	decision, _ := store.ResolveLWW(exists, localRev, wn.Revision, localTS, incomingTS.UnixNano())
	if decision == store.KeepLocal {
		return true, localRev, nil
	}

	rev, err := nextRevisionTx(tx)
	if err != nil {
		return false, localRev, err
	}
	if exists {
		_, err = tx.Exec(`UPDATE notes SET title=?, content=?, notebook_id=?, tags=?, status=?, is_pinned=?, revision=?, is_deleted=?, updated_at=?
			WHERE id=?`, wn.Title, wn.Content, nullableStringToSQL(wn.NotebookID), wn.Tags, wn.Status, boolToInt(wn.IsPinned), rev, boolToInt(wn.IsDeleted), wn.UpdatedAt, wn.ID)
	} else {
		_, err = tx.Exec(`INSERT INTO notes (id, title, content, notebook_id, tags, status, is_pinned, revision, is_deleted, created_at, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`, wn.ID, wn.Title, wn.Content, nullableStringToSQL(wn.NotebookID), wn.Tags, wn.Status, boolToInt(wn.IsPinned), rev, boolToInt(wn.IsDeleted), wn.CreatedAt, wn.UpdatedAt)
	}
	if err != nil {
		return false, localRev, apperr.Wrap(apperr.Database, err, "apply pushed note")
	}
	return false, localRev, nil
}

func (s *Store) pushNotebook(tx *sql.Tx, wn wire.Notebook) (conflicted bool, localRev int64, err error) {
	exists, localRev, localUpdatedAt, err := s.localNotebookRevision(tx, wn.ID)
	if err != nil {
		return false, 0, err
	}
	var localTS int64
	if exists {
		t, perr := parseTime(localUpdatedAt)
		if perr != nil {
			return false, localRev, apperr.Wrap(apperr.Database, perr, "parse local notebook updated_at")
		}
		localTS = t.UnixNano()
	}
	incomingTS, err := parseTime(wn.UpdatedAt)
	if err != nil {
		return false, localRev, apperr.Validationf("notebook %s: invalid updated_at", wn.ID)
	}
	decision, _ := store.ResolveLWW(exists, localRev, wn.Revision, localTS, incomingTS.UnixNano())
	if decision == store.KeepLocal {
		return true, localRev, nil
	}

	rev, err := nextRevisionTx(tx)
	if err != nil {
		return false, localRev, err
	}
	if exists {
		_, err = tx.Exec(`UPDATE notebooks SET name=?, color=?, icon=?, parent_id=?, revision=?, is_deleted=?, updated_at=? WHERE id=?`,
			wn.Name, nullableStringToSQL(wn.Color), nullableStringToSQL(wn.Icon), nullableStringToSQL(wn.ParentID), rev, boolToInt(wn.IsDeleted), wn.UpdatedAt, wn.ID)
	} else {
		_, err = tx.Exec(`INSERT INTO notebooks (id, name, color, icon, parent_id, revision, is_deleted, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
			wn.ID, wn.Name, nullableStringToSQL(wn.Color), nullableStringToSQL(wn.Icon), nullableStringToSQL(wn.ParentID), rev, boolToInt(wn.IsDeleted), wn.CreatedAt, wn.UpdatedAt)
	}
	if err != nil {
		return false, localRev, apperr.Wrap(apperr.Database, err, "apply pushed notebook")
	}
	return false, localRev, nil
}

func (s *Store) pushTag(tx *sql.Tx, wt wire.Tag) (conflicted bool, localRev int64, err error) {
	exists, localRev, localUpdatedAt, err := s.localTagRevision(tx, wt.ID)
	if err != nil {
		return false, 0, err
	}
	var localTS int64
	if exists {
		t, perr := parseTime(localUpdatedAt)
		if perr != nil {
			return false, localRev, apperr.Wrap(apperr.Database, perr, "parse local tag updated_at")
		}
		localTS = t.UnixNano()
	}
	incomingTS, err := parseTime(wt.UpdatedAt)
	if err != nil {
		return false, localRev, apperr.Validationf("tag %s: invalid updated_at", wt.ID)
	}
	decision, _ := store.ResolveLWW(exists, localRev, wt.Revision, localTS, incomingTS.UnixNano())
	if decision == store.KeepLocal {
		return true, localRev, nil
	}

	rev, err := nextRevisionTx(tx)
	if err != nil {
		return false, localRev, err
	}
	if exists {
		_, err = tx.Exec(`UPDATE tags SET name=?, color=?, revision=?, is_deleted=?, updated_at=? WHERE id=?`,
			wt.Name, nullableStringToSQL(wt.Color), rev, boolToInt(wt.IsDeleted), wt.UpdatedAt, wt.ID)
	} else {
		_, err = tx.Exec(`INSERT INTO tags (id, name, color, revision, is_deleted, created_at, updated_at) VALUES (?,?,?,?,?,?,?)`,
			wt.ID, wt.Name, nullableStringToSQL(wt.Color), rev, boolToInt(wt.IsDeleted), wt.CreatedAt, wt.UpdatedAt)
	}
	if err != nil {
		return false, localRev, apperr.Wrap(apperr.Database, err, "apply pushed tag")
	}
	return false, localRev, nil
}
