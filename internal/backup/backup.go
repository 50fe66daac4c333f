// Package backup implements the export/import archive format: a single
// ZIP file containing one data.json entry with every notebook, tag, and
// note the local store holds. Import is forward-tolerant (unknown fields
// in data.json are ignored via encoding/json's default behavior) and
// applies entities in dependency order — notebooks, then tags, then notes
// — so a note's notebook_id always resolves by the time the note is
// inserted.
package backup

import (
	"archive/zip"
	"encoding/json"
	"io"
	"time"

	"github.com/kittclouds/notesync/internal/apperr"
	"github.com/kittclouds/notesync/internal/entities"
	"github.com/kittclouds/notesync/internal/store"
)

const dataEntryName = "data.json"
const formatVersion = "1.0"

// Archive is the decoded shape of data.json.
type Archive struct {
	Version    string               `json:"version"`
	ExportedAt string               `json:"exported_at"`
	Notes      []*entities.Note     `json:"notes"`
	Notebooks  []*entities.Notebook `json:"notebooks"`
	Tags       []*entities.Tag      `json:"tags"`
}

// Export serializes every notebook, tag, and note in st into a ZIP
// archive written to w, regardless of soft-delete state: a tombstoned
// row is exported the same as a live one so the archive round-trips the
// entire entity graph, not just what is currently visible.
func Export(st *store.Store, w io.Writer) error {
	notebooks, err := st.ChangesSinceNotebooks(0)
	if err != nil {
		return err
	}
	tags, err := st.ChangesSinceTags(0)
	if err != nil {
		return err
	}
	notes, err := st.ChangesSinceNotes(0)
	if err != nil {
		return err
	}

	archive := Archive{
		Version:    formatVersion,
		ExportedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Notes:      notes,
		Notebooks:  notebooks,
		Tags:       tags,
	}
	payload, err := json.MarshalIndent(archive, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.Io, err, "encode archive")
	}

	zw := zip.NewWriter(w)
	entry, err := zw.Create(dataEntryName)
	if err != nil {
		return apperr.Wrap(apperr.Io, err, "create zip entry")
	}
	if _, err := entry.Write(payload); err != nil {
		return apperr.Wrap(apperr.Io, err, "write zip entry")
	}
	return zw.Close()
}

// ImportOptions controls how Import reconciles archive rows against
// existing ones.
type ImportOptions struct {
	// OverwriteExisting replaces an existing row sharing an ID rather than
	// skipping it. Without it, Import is additive-only.
	OverwriteExisting bool
}

// ImportResult tallies what Import actually did.
type ImportResult struct {
	NotebooksImported int
	TagsImported      int
	NotesImported     int
	Skipped           int
}

// Import reads a ZIP archive from r (size is required by archive/zip's
// reader) and applies it to st in notebooks -> tags -> notes order, using
// the store's verbatim Put* upserts rather than Create* — an archived row
// keeps its original id, revision, timestamps, and tombstone state instead
// of being re-minted, so import(export(s)) reproduces s exactly. A note
// whose notebook_id does not resolve to any notebook already present (in
// the store or earlier in this same import) is rejected with a
// Validation error and Import stops there. Import performs no transaction
// spanning the three entity kinds: each Put* commits on its own, so the
// rows written before the failing note stay in the store.
func Import(st *store.Store, r io.ReaderAt, size int64, opts ImportOptions) (*ImportResult, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, apperr.Wrap(apperr.Io, err, "open zip archive")
	}

	var f *zip.File
	for _, candidate := range zr.File {
		if candidate.Name == dataEntryName {
			f = candidate
			break
		}
	}
	if f == nil {
		return nil, apperr.Validationf("archive missing %s", dataEntryName)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, apperr.Wrap(apperr.Io, err, "open archive entry")
	}
	defer rc.Close()

	var archive Archive
	if err := json.NewDecoder(rc).Decode(&archive); err != nil {
		return nil, apperr.Wrap(apperr.Validation, err, "decode archive")
	}

	result := &ImportResult{}

	for _, nb := range archive.Notebooks {
		if !opts.OverwriteExisting {
			if _, err := st.GetNotebook(nb.ID); err == nil {
				result.Skipped++
				continue
			}
		}
		if err := st.PutNotebook(nb); err != nil {
			return result, apperr.Wrap(apperr.Validation, err, "import notebook")
		}
		result.NotebooksImported++
	}

	for _, t := range archive.Tags {
		if !opts.OverwriteExisting {
			if _, err := st.GetTag(t.ID); err == nil {
				result.Skipped++
				continue
			}
		}
		if err := st.PutTag(t); err != nil {
			return result, apperr.Wrap(apperr.Validation, err, "import tag")
		}
		result.TagsImported++
	}

	for _, n := range archive.Notes {
		if n.NotebookID != nil {
			if _, err := st.GetNotebook(*n.NotebookID); err != nil {
				return result, apperr.Validationf("note %s references unresolved notebook %s", n.ID, *n.NotebookID)
			}
		}
		if !opts.OverwriteExisting {
			if _, err := st.GetNote(n.ID); err == nil {
				result.Skipped++
				continue
			}
		}
		if err := st.PutNote(n); err != nil {
			return result, apperr.Wrap(apperr.Validation, err, "import note")
		}
		result.NotesImported++
	}

	return result, nil
}
