package store

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/orsinium-labs/stopwords"

	"github.com/kittclouds/notesync/internal/apperr"
	"github.com/kittclouds/notesync/internal/entities"
	"github.com/kittclouds/notesync/pkg/pool"
)

// SearchOptions mirrors the spec's search(options) contract.
type SearchOptions struct {
	Query           string
	Limit, Offset   int
	NotebookID      string
	IncludeArchived bool
	IncludeTrashed  bool
}

// SearchResult pairs a note with its BM25-style rank (smaller is better)
// and a highlighted snippet.
type SearchResult struct {
	Note    *entities.Note
	Rank    float64
	Snippet string
}

var english = stopwords.MustGet("en")

// prepareQuery splits on whitespace, drops stopwords (unless doing so would
// leave nothing), and turns each remaining term into an FTS5 prefix-match
// token: bare `token*` when the term is purely alphanumeric, `"token"*`
// otherwise so punctuation inside a term (e.g. an apostrophe) cannot break
// the MATCH expression.
func prepareQuery(query string) string {
	terms := pool.GetStringSlice()
	defer pool.PutStringSlice(terms)
	for _, f := range strings.Fields(query) {
		if f == "" {
			continue
		}
		terms = append(terms, f)
	}
	if len(terms) == 0 {
		return ""
	}

	filtered := pool.GetStringSlice()
	defer pool.PutStringSlice(filtered)
	for _, t := range terms {
		if english.Contains(strings.ToLower(t)) {
			continue
		}
		filtered = append(filtered, t)
	}
	if len(filtered) > 0 {
		terms = filtered
	}

	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		if isAlphanumeric(t) {
			parts = append(parts, t+"*")
		} else {
			escaped := strings.ReplaceAll(t, `"`, `""`)
			parts = append(parts, `"`+escaped+`"*`)
		}
	}
	return strings.Join(parts, " ")
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Search ranks notes by relevance to options.Query using the FTS5 index
// kept coherent with notes via triggers (schema.go). Tombstoned notes are
// always excluded regardless of options.
func (s *Store) Search(options SearchOptions) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matchExpr := prepareQuery(options.Query)
	if matchExpr == "" {
		return nil, nil
	}

	limit := options.Limit
	if limit <= 0 {
		limit = 50
	}

	statuses := []string{string(entities.StatusActive)}
	if options.IncludeArchived {
		statuses = append(statuses, string(entities.StatusArchived))
	}
	if options.IncludeTrashed {
		statuses = append(statuses, string(entities.StatusTrashed))
	}
	placeholders := make([]string, len(statuses))
	args := []any{matchExpr}
	for i, st := range statuses {
		placeholders[i] = "?"
		args = append(args, st)
	}

	query := fmt.Sprintf(`
		SELECT n.id, n.title, n.content, n.notebook_id, n.tags, n.status, n.is_pinned, n.revision, n.created_at, n.updated_at, n.deleted_at,
		       bm25(notes_fts) AS rank,
		       snippet(notes_fts, 1, '<mark>', '</mark>', '…', 32) AS snippet
		FROM notes_fts
		JOIN notes n ON n.rowid = notes_fts.rowid
		WHERE notes_fts MATCH ? AND n.deleted_at IS NULL AND n.status IN (%s)`, strings.Join(placeholders, ","))
	if options.NotebookID != "" {
		query += " AND n.notebook_id = ?"
		args = append(args, options.NotebookID)
	}
	query += fmt.Sprintf(" ORDER BY rank ASC LIMIT %d OFFSET %d", limit, options.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "search notes")
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		n, rank, snippet, err := scanSearchRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, SearchResult{Note: n, Rank: rank, Snippet: snippet})
	}
	return out, rows.Err()
}

func scanSearchRow(rows *sql.Rows) (*entities.Note, float64, string, error) {
	var n entities.Note
	var notebookID, deletedAt sql.NullString
	var tagsJSON, status string
	var isPinned int
	var createdAt, updatedAt string
	var rank float64
	var snippet string
	if err := rows.Scan(&n.ID, &n.Title, &n.Content, &notebookID, &tagsJSON, &status, &isPinned, &n.Revision, &createdAt, &updatedAt, &deletedAt, &rank, &snippet); err != nil {
		return nil, 0, "", apperr.Wrap(apperr.Database, err, "scan search row")
	}
	n.NotebookID = sqlToNullableString(notebookID)
	n.Tags = decodeTags(tagsJSON)
	n.Status = entities.NoteStatus(status)
	n.IsPinned = intToBool(isPinned)
	var err error
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, 0, "", apperr.Wrap(apperr.Database, err, "parse created_at")
	}
	if n.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, 0, "", apperr.Wrap(apperr.Database, err, "parse updated_at")
	}
	if n.DeletedAt, err = sqlToNullableTime(deletedAt); err != nil {
		return nil, 0, "", apperr.Wrap(apperr.Database, err, "parse deleted_at")
	}
	return &n, rank, snippet, nil
}

// RebuildIndex drops and repopulates notes_fts from the current notes rows.
// It exists for recovery and schema migrations, not for ordinary mutation
// flow (which relies on the triggers in schema.go).
func (s *Store) RebuildIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO notes_fts(notes_fts) VALUES ('rebuild')`); err != nil {
		return apperr.Wrap(apperr.Database, err, "rebuild fts index")
	}
	return tx.Commit()
}
