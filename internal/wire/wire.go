// Package wire defines the HTTP wire-format entity shapes and the explicit
// translation layer the sync boundary uses between them and the client's
// canonical entities.Note/Notebook/Tag. The wire form always carries
// is_deleted as a bool and encodes a note's tags as a JSON-encoded string
// (double-encoded), never a nested array, per the External Interfaces
// section of the specification.
package wire

import (
	"encoding/json"
	"time"

	"github.com/kittclouds/notesync/internal/entities"
)

type Note struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	NotebookID *string `json:"notebook_id,omitempty"`
	Tags       string  `json:"tags"`
	Status     string  `json:"status"`
	IsPinned   bool    `json:"is_pinned"`
	Revision   int64   `json:"revision"`
	IsDeleted  bool    `json:"is_deleted"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

type Notebook struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Color     *string `json:"color,omitempty"`
	Icon      *string `json:"icon,omitempty"`
	ParentID  *string `json:"parent_id,omitempty"`
	Revision  int64   `json:"revision"`
	IsDeleted bool    `json:"is_deleted"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type Tag struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Color     *string `json:"color,omitempty"`
	Revision  int64   `json:"revision"`
	IsDeleted bool    `json:"is_deleted"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

// NoteToWire translates the client/tombstone representation (nullable
// deleted_at) into the server/boolean representation (is_deleted +
// updated_at as tombstone time). Tags are JSON-encoded into a string,
// matching the double-encoding the spec requires on the wire.
func NoteToWire(n *entities.Note) Note {
	tagsJSON, _ := json.Marshal(n.Tags)
	return Note{
		ID:         n.ID,
		Title:      n.Title,
		Content:    n.Content,
		NotebookID: n.NotebookID,
		Tags:       string(tagsJSON),
		Status:     string(n.Status),
		IsPinned:   n.IsPinned,
		Revision:   n.Revision,
		IsDeleted:  n.DeletedAt != nil,
		CreatedAt:  fmtTime(n.CreatedAt),
		UpdatedAt:  fmtTime(n.UpdatedAt),
	}
}

// NoteFromWire is the inverse translation: is_deleted=true reconstructs
// deleted_at as updated_at (the tombstone time), exactly as §9 "Dual
// soft-delete representation" specifies.
func NoteFromWire(w Note) (*entities.Note, error) {
	created, err := parseTime(w.CreatedAt)
	if err != nil {
		return nil, err
	}
	updated, err := parseTime(w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	var tags []string
	if w.Tags != "" {
		if err := json.Unmarshal([]byte(w.Tags), &tags); err != nil {
			return nil, err
		}
	}
	n := &entities.Note{
		ID:         w.ID,
		Title:      w.Title,
		Content:    w.Content,
		NotebookID: w.NotebookID,
		Tags:       tags,
		Status:     entities.NoteStatus(w.Status),
		IsPinned:   w.IsPinned,
		Revision:   w.Revision,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}
	if w.IsDeleted {
		n.DeletedAt = &updated
	}
	return n, nil
}

func NotebookToWire(nb *entities.Notebook) Notebook {
	return Notebook{
		ID: nb.ID, Name: nb.Name, Color: nb.Color, Icon: nb.Icon, ParentID: nb.ParentID,
		Revision: nb.Revision, IsDeleted: nb.DeletedAt != nil,
		CreatedAt: fmtTime(nb.CreatedAt), UpdatedAt: fmtTime(nb.UpdatedAt),
	}
}

func NotebookFromWire(w Notebook) (*entities.Notebook, error) {
	created, err := parseTime(w.CreatedAt)
	if err != nil {
		return nil, err
	}
	updated, err := parseTime(w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	nb := &entities.Notebook{
		ID: w.ID, Name: w.Name, Color: w.Color, Icon: w.Icon, ParentID: w.ParentID,
		Revision: w.Revision, CreatedAt: created, UpdatedAt: updated,
	}
	if w.IsDeleted {
		nb.DeletedAt = &updated
	}
	return nb, nil
}

func TagToWire(t *entities.Tag) Tag {
	return Tag{
		ID: t.ID, Name: t.Name, Color: t.Color, Revision: t.Revision, IsDeleted: t.DeletedAt != nil,
		CreatedAt: fmtTime(t.CreatedAt), UpdatedAt: fmtTime(t.UpdatedAt),
	}
}

func TagFromWire(w Tag) (*entities.Tag, error) {
	created, err := parseTime(w.CreatedAt)
	if err != nil {
		return nil, err
	}
	updated, err := parseTime(w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t := &entities.Tag{ID: w.ID, Name: w.Name, Color: w.Color, Revision: w.Revision, CreatedAt: created, UpdatedAt: updated}
	if w.IsDeleted {
		t.DeletedAt = &updated
	}
	return t, nil
}

// Conflict is the report shape emitted by both pull-time (client) and
// push-time (server) LWW resolution.
type Conflict struct {
	EntityType    string `json:"entity_type"`
	EntityID      string `json:"entity_id"`
	LocalRevision int64  `json:"local_revision"`
	RemoteRevision int64 `json:"remote_revision"`
	Resolution    string `json:"resolution"`
}

type PullRequest struct {
	DeviceID         string `json:"device_id"`
	LastSyncRevision int64  `json:"last_sync_revision"`
}

type PullResponse struct {
	Notes          []Note     `json:"notes"`
	Notebooks      []Notebook `json:"notebooks"`
	Tags           []Tag      `json:"tags"`
	ServerRevision int64      `json:"server_revision"`
}

type PushRequest struct {
	DeviceID  string     `json:"device_id"`
	Notes     []Note     `json:"notes"`
	Notebooks []Notebook `json:"notebooks"`
	Tags      []Tag      `json:"tags"`
}

type PushResponse struct {
	Accepted       int        `json:"accepted"`
	Conflicts      []Conflict `json:"conflicts"`
	ServerRevision int64      `json:"server_revision"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
