// Command notesync is the local client: it opens the on-disk Entity
// Store directly (no daemon) and exposes note/notebook/tag CRUD, search,
// manual sync, and backup export/import as cobra subcommands, the way the
// donor CLI exposes its repo-local commands over a local SQLite database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kittclouds/notesync/internal/backup"
	"github.com/kittclouds/notesync/internal/config"
	"github.com/kittclouds/notesync/internal/entities"
	"github.com/kittclouds/notesync/internal/logging"
	"github.com/kittclouds/notesync/internal/store"
	"github.com/kittclouds/notesync/internal/sync"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "notesync",
		Short: "Local-first note store with optional server sync",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to notesync.yaml")

	root.AddCommand(
		newNoteCmd(),
		newNotebookCmd(),
		newTagCmd(),
		newSearchCmd(),
		newSyncCmd(),
		newBackupCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*store.Store, *config.Client, error) {
	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(cfg.LogLevel, os.Stderr)
	dbPath := filepath.Join(cfg.DataDir, "notesync.db")
	st, err := store.Open(dbPath, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open local store: %w", err)
	}
	return st, cfg, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func newNoteCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "note", Short: "Manage notes"}

	var notebookID string
	var tags []string
	create := &cobra.Command{
		Use:  "create <title> <content>",
		Args: cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			var nb *string
			if notebookID != "" {
				nb = &notebookID
			}
			n, err := st.CreateNote(args[0], args[1], nb, tags)
			if err != nil {
				return err
			}
			printJSON(n)
			return nil
		},
	}
	create.Flags().StringVar(&notebookID, "notebook", "", "notebook id")
	create.Flags().StringSliceVar(&tags, "tag", nil, "tags")

	list := &cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			notes, err := st.ListNotes(entities.NoteFilter{})
			if err != nil {
				return err
			}
			printJSON(notes)
			return nil
		},
	}

	get := &cobra.Command{
		Use:  "get <id>",
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			n, err := st.GetNote(args[0])
			if err != nil {
				return err
			}
			printJSON(n)
			return nil
		},
	}

	del := &cobra.Command{
		Use:  "rm <id>",
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			return st.SoftDeleteNote(args[0])
		},
	}

	cmd.AddCommand(create, list, get, del)
	return cmd
}

func newNotebookCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "notebook", Short: "Manage notebooks"}

	create := &cobra.Command{
		Use:  "create <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			nb, err := st.CreateNotebook(args[0], nil, nil, nil)
			if err != nil {
				return err
			}
			printJSON(nb)
			return nil
		},
	}

	list := &cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			nbs, err := st.ListNotebooks()
			if err != nil {
				return err
			}
			printJSON(nbs)
			return nil
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}

func newTagCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tag", Short: "Manage tags"}

	create := &cobra.Command{
		Use:  "create <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			t, err := st.CreateTag(args[0], nil)
			if err != nil {
				return err
			}
			printJSON(t)
			return nil
		},
	}

	list := &cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			tags, err := st.ListTags()
			if err != nil {
				return err
			}
			printJSON(tags)
			return nil
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "search <query>",
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			results, err := st.Search(store.SearchOptions{Query: args[0]})
			if err != nil {
				return err
			}
			printJSON(results)
			return nil
		},
	}
}

func newSyncCmd() *cobra.Command {
	var deviceID string
	cmd := &cobra.Command{
		Use:  "sync",
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			st, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if deviceID == "" {
				deviceID = cfg.DeviceID
			}
			if deviceID == "" {
				deviceID = uuid.NewString()
			}

			log := logging.New(cfg.LogLevel, os.Stderr)
			engine := sync.New(st, cfg.ServerURL, deviceID, log)

			if !engine.CheckConnection(context.Background()) {
				return fmt.Errorf("server at %s is unreachable", cfg.ServerURL)
			}
			result, err := engine.Sync(context.Background())
			if err != nil {
				return err
			}
			printJSON(result)
			return nil
		},
	}
	cmd.Flags().StringVar(&deviceID, "device", "", "device id override")
	return cmd
}

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "backup", Short: "Export and import archives"}

	var outPath string
	export := &cobra.Command{
		Use:  "export",
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()
			return backup.Export(st, f)
		},
	}
	export.Flags().StringVar(&outPath, "out", "notesync-backup.zip", "output archive path")

	var overwrite bool
	var inPath string
	importCmd := &cobra.Command{
		Use:  "import",
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			f, err := os.Open(inPath)
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}
			result, err := backup.Import(st, f, info.Size(), backup.ImportOptions{OverwriteExisting: overwrite})
			if err != nil {
				return err
			}
			printJSON(result)
			return nil
		},
	}
	importCmd.Flags().StringVar(&inPath, "in", "notesync-backup.zip", "input archive path")
	importCmd.Flags().BoolVar(&overwrite, "overwrite", false, "overwrite existing entities sharing an id")

	cmd.AddCommand(export, importCmd)
	return cmd
}
