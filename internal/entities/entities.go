// Package entities defines the client-form entity shapes shared by the
// store, search, sync, and backup components: Note, Notebook, Tag, and
// Reminder. All four carry identity, a monotonic revision, created_at and
// updated_at timestamps, and a nullable deleted_at tombstone marker.
package entities

import "time"

// NoteStatus is the lifecycle state of a Note.
type NoteStatus string

const (
	StatusActive   NoteStatus = "active"
	StatusArchived NoteStatus = "archived"
	StatusTrashed  NoteStatus = "trashed"
)

// Note is a single document, optionally filed under a Notebook and tagged.
type Note struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	NotebookID *string    `json:"notebook_id,omitempty"`
	Tags       []string   `json:"tags"`
	Status     NoteStatus `json:"status"`
	IsPinned   bool       `json:"is_pinned"`
	Revision   int64      `json:"revision"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

func (n *Note) IsTombstoned() bool { return n.DeletedAt != nil }

// Notebook groups notes, optionally nested under a parent notebook.
type Notebook struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Color     *string    `json:"color,omitempty"`
	Icon      *string    `json:"icon,omitempty"`
	ParentID  *string    `json:"parent_id,omitempty"`
	Revision  int64      `json:"revision"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func (n *Notebook) IsTombstoned() bool { return n.DeletedAt != nil }

// Tag is a named label, unique by name among non-deleted tags.
type Tag struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Color     *string    `json:"color,omitempty"`
	Revision  int64      `json:"revision"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func (t *Tag) IsTombstoned() bool { return t.DeletedAt != nil }

// Reminder is attached to a note and cascade-deletes with it.
type Reminder struct {
	ID        string     `json:"id"`
	NoteID    string     `json:"note_id"`
	Message   string     `json:"message"`
	DueDate   time.Time  `json:"due_date"`
	Completed bool       `json:"completed"`
	Notified  bool       `json:"notified"`
	Revision  int64      `json:"revision"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func (r *Reminder) IsTombstoned() bool { return r.DeletedAt != nil }

// Kind identifies which of the four entity kinds a value holds, used by the
// generic store operations (create/read/list/update/soft_delete/...).
type Kind string

const (
	KindNote     Kind = "note"
	KindNotebook Kind = "notebook"
	KindTag      Kind = "tag"
	KindReminder Kind = "reminder"
)

// NotePatch carries optional field updates for Note.update; a nil field
// preserves the prior value.
type NotePatch struct {
	Title      *string
	Content    *string
	NotebookID **string // double pointer: nil = leave alone, pointee nil = clear
	Tags       *[]string
	Status     *NoteStatus
	IsPinned   *bool
}

type NotebookPatch struct {
	Name     *string
	Color    **string
	Icon     **string
	ParentID **string
}

type TagPatch struct {
	Name  *string
	Color **string
}

type ReminderPatch struct {
	Message   *string
	DueDate   *time.Time
	Completed *bool
	Notified  *bool
}

// NoteFilter controls Store.ListNotes.
type NoteFilter struct {
	NotebookID      string
	Status          NoteStatus
	Tag             string
	Query           string
	IncludeArchived bool
	IncludeTrashed  bool
	Limit           int
	Offset          int
}
