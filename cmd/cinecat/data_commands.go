package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cinecat/internal/catalog"
	"cinecat/internal/config"
	"cinecat/internal/failure"
	"cinecat/internal/record"
	"cinecat/internal/store"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var (
		section     string
		subsections bool
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Merge records from a catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if section != "" && subsections {
				return errors.New("use either --section or --subsections, not both")
			}
			path, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve import path: %w", err)
			}
			doc, err := store.ReadImportFile(path)
			if err != nil {
				if errors.Is(err, failure.ErrMalformed) {
					return fmt.Errorf("%s is not a valid catalog file; nothing was imported: %w", path, err)
				}
				return err
			}
			return ctx.mutate(cmd, func(ws *workspace) (bool, error) {
				result := ws.catalog.Import(doc, catalog.ImportOptions{Section: section, Fresh: subsections})
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %d of %d records\n", result.Added, result.Total)
				if skipped := result.DuplicateID + result.DuplicateLink; skipped > 0 {
					fmt.Fprintf(out, "Skipped %d duplicates (%d by id, %d by link)\n",
						skipped, result.DuplicateID, result.DuplicateLink)
				}
				if result.Settings {
					fmt.Fprintln(out, "Settings updated from file")
				}
				return result.Added > 0 || result.Settings, nil
			})
		},
	}

	cmd.Flags().StringVar(&section, "section", "", "Import every record into this category as a new copy")
	cmd.Flags().BoolVar(&subsections, "subsections", false, "Import a sub-section export as new copies, keeping each record's category")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		single      string
		section     string
		subsections string
		outPath     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog as shard files, one snapshot, or a portable section file",
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := 0
			for _, set := range []string{single, section, subsections} {
				if strings.TrimSpace(set) != "" {
					modes++
				}
			}
			if modes > 1 {
				return errors.New("use only one of --single, --section, or --subsections")
			}
			var group []string
			if subsections != "" {
				var ok bool
				if group, ok = record.SubsectionGroup(subsections); !ok {
					return fmt.Errorf("--subsections: unsupported value %q (use %q or %q)", subsections, record.GroupGeneral, record.GroupPrivate)
				}
			}

			return ctx.withWorkspace(cmd, func(ws *workspace) error {
				snap := ws.catalog.Snapshot()
				out := cmd.OutOrStdout()

				if target := strings.TrimSpace(single); target != "" {
					path, err := config.ExpandPath(target)
					if err != nil {
						return fmt.Errorf("resolve export path: %w", err)
					}
					if err := store.WriteSnapshot(path, snap, time.Now()); err != nil {
						return err
					}
					fmt.Fprintf(out, "Wrote %d records to %s\n", len(snap.Records), path)
					return nil
				}

				if section != "" || group != nil {
					kind, name := "section", section
					recs := slices.DeleteFunc(slices.Clone(snap.Records), func(rec record.Record) bool {
						if group != nil {
							return !slices.Contains(group, rec.Category)
						}
						return rec.Category != section
					})
					if group != nil {
						kind, name = "subsections", subsections
					}
					path := filepath.Join(ws.cfg.Paths.ExportDir, store.SectionFileName(kind, name, time.Now()))
					if target := strings.TrimSpace(outPath); target != "" {
						var err error
						if path, err = config.ExpandPath(target); err != nil {
							return fmt.Errorf("resolve export path: %w", err)
						}
					}
					if err := store.WriteSection(path, recs, group != nil); err != nil {
						return err
					}
					fmt.Fprintf(out, "Wrote %d records to %s\n", len(recs), path)
					return nil
				}

				result, err := store.NewExporter(ws.cfg, ws.logger).Export(snap)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %d shard files to %s\n", len(result.Files), result.Dir)
				fmt.Fprintf(out, "Initial shard: %d records  Later shards: %d records\n", result.Initial, result.Later)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&single, "single", "", "Write one snapshot file instead of shards")
	cmd.Flags().StringVar(&section, "section", "", "Write only this category as a portable section file")
	cmd.Flags().StringVar(&subsections, "subsections", "", "Write a sub-section group (general or private) as a portable file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Section file path (default: export dir)")
	return cmd
}

func newSaveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Rewrite the persisted catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(cmd, func(ws *workspace) error {
				result, err := ws.store.Save(commandCtx(cmd), ws.catalog.Snapshot())
				if err != nil {
					return fmt.Errorf("save catalog: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %d records in %d chunks (%d bytes)\n",
					result.Records, result.Chunks, result.Bytes)
				return nil
			})
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every record and the persisted catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to clear the catalog without --yes")
			}
			return ctx.withWorkspace(cmd, func(ws *workspace) error {
				removed := ws.catalog.Clear()
				if err := ws.store.Clear(commandCtx(cmd)); err != nil {
					return fmt.Errorf("clear store: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d records\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm removal")
	return cmd
}
