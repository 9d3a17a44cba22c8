package main

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cinecat/internal/catalog"
	"cinecat/internal/record"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		category string
		site     string
		search   string
		hidden   bool
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(cmd, func(ws *workspace) error {
				query := catalog.Query{Category: category, Site: strings.ToLower(site), IncludeHidden: hidden}
				recs := ws.catalog.Filter(query)
				if strings.TrimSpace(search) != "" {
					matched := make(map[string]struct{})
					for _, rec := range ws.catalog.Search(search) {
						matched[rec.ID] = struct{}{}
					}
					recs = slices.DeleteFunc(recs, func(rec record.Record) bool {
						_, ok := matched[rec.ID]
						return !ok
					})
				}

				out := cmd.OutOrStdout()
				if len(recs) == 0 {
					fmt.Fprintln(out, "No records match")
					return nil
				}
				total := len(recs)
				if limit > 0 && total > limit {
					recs = recs[:limit]
				}
				rows := make([][]string, 0, len(recs))
				for _, rec := range recs {
					rows = append(rows, []string{
						rec.ID,
						rec.Title,
						rec.Category,
						rec.Site,
						yesNo(rec.Hidden),
						yesNo(rec.IsFavorite),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Category", "Site", "Hidden", "Favorite"},
					rows,
					nil,
				))
				if len(recs) < total {
					fmt.Fprintf(out, "Showing %d of %d records\n", len(recs), total)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only records in this category")
	cmd.Flags().StringVar(&site, "site", "", "Only records from this site")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Case-insensitive title search")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "Include hidden records")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum rows to print (0 for all)")
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show visible record counts per category",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(cmd, func(ws *workspace) error {
				counts := ws.catalog.Counts()
				categories := append([]string(nil), record.Categories...)
				for _, cat := range ws.catalog.Categories() {
					if !record.KnownCategory(cat) {
						categories = append(categories, cat)
					}
				}
				rows := make([][]string, 0, len(categories))
				for _, cat := range categories {
					if cat == record.DefaultCategory {
						continue
					}
					rows = append(rows, []string{cat, strconv.Itoa(counts[cat])})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(
					[]string{"Category", "Records"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
					"Total", strconv.Itoa(counts[record.DefaultCategory]),
				))
				settings := ws.catalog.Settings()
				fmt.Fprintf(out, "Stored records: %d  Login required: %s  Restricted mode: %s\n",
					ws.catalog.Len(), yesNo(settings.LoginRequired), yesNo(settings.RestrictedModeActive))
				return nil
			})
		},
	}
}

func newSitesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "Show per-site statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(cmd, func(ws *workspace) error {
				stats := ws.catalog.Sites()
				out := cmd.OutOrStdout()
				if len(stats) == 0 {
					fmt.Fprintln(out, "Catalog is empty")
					return nil
				}
				rows := make([][]string, 0, len(stats))
				for _, stat := range stats {
					rows = append(rows, []string{
						stat.Site,
						strconv.Itoa(stat.Visible),
						strconv.Itoa(stat.Hidden),
						strings.Join(stat.Categories, ", "),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Site", "Visible", "Hidden", "Categories"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		title    string
		image    string
		category string
		hidden   bool
	)

	cmd := &cobra.Command{
		Use:   "add <link>",
		Short: "Add a single record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.mutate(cmd, func(ws *workspace) (bool, error) {
				rec, added := ws.catalog.AddSingle(record.Record{
					Title:    title,
					ImageURL: image,
					Link:     strings.TrimSpace(args[0]),
					Category: category,
					Hidden:   hidden,
				})
				if !added {
					return false, fmt.Errorf("a record with link %s already exists in %s", rec.Link, rec.Category)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s) to %s\n", rec.ID, rec.Site, rec.Category)
				return true, nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Record title")
	cmd.Flags().StringVar(&image, "image", "", "Poster image URL")
	cmd.Flags().StringVar(&category, "category", record.DefaultCategory, "Category")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "Add the record hidden")
	return cmd
}

func newEditCommand(ctx *commandContext) *cobra.Command {
	var (
		title    string
		link     string
		image    string
		category string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a record's title, link, image, or category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("title") && !flags.Changed("link") && !flags.Changed("image") && !flags.Changed("category") {
				return errors.New("nothing to change: pass --title, --link, --image, or --category")
			}
			return ctx.mutate(cmd, func(ws *workspace) (bool, error) {
				current, ok := ws.catalog.Get(args[0])
				if !ok {
					return false, fmt.Errorf("no record with id %s", args[0])
				}
				nextLink := current.Link
				if flags.Changed("link") {
					nextLink = strings.TrimSpace(link)
				}
				nextCategory := current.Category
				if flags.Changed("category") {
					nextCategory = category
				}
				if nextLink != current.Link && ws.catalog.IsDuplicateLink(nextLink, nextCategory) {
					return false, fmt.Errorf("a record with link %s already exists", nextLink)
				}

				updated, err := ws.catalog.Update(args[0], func(rec *record.Record) {
					if flags.Changed("title") {
						rec.Title = title
					}
					if flags.Changed("image") {
						rec.ImageURL = image
					}
					rec.Link = nextLink
					rec.Category = nextCategory
				})
				if err != nil {
					return false, err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s) in %s\n", updated.ID, updated.Site, updated.Category)
				return true, nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	cmd.Flags().StringVar(&link, "link", "", "New link; the site is derived from it")
	cmd.Flags().StringVar(&image, "image", "", "New poster image URL")
	cmd.Flags().StringVar(&category, "category", "", "New category")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	var (
		category string
		site     string
	)

	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a record, a whole category, or every record from a site",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selectors := 0
			for _, set := range []bool{len(args) == 1, category != "", site != ""} {
				if set {
					selectors++
				}
			}
			if selectors != 1 {
				return errors.New("specify exactly one of an id, --category, or --site")
			}
			return ctx.mutate(cmd, func(ws *workspace) (bool, error) {
				var removed int
				switch {
				case len(args) == 1:
					if ws.catalog.Delete(args[0]) {
						removed = 1
					}
				case category != "":
					removed = ws.catalog.DeleteCategory(category)
				default:
					removed = ws.catalog.DeleteSite(strings.ToLower(site))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d records\n", removed)
				return removed > 0, nil
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Delete every record in this category")
	cmd.Flags().StringVar(&site, "site", "", "Delete every record from this site")
	return cmd
}

func newFavoriteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <id> <section>",
		Short: "Copy a record into a curated section",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.mutate(cmd, func(ws *workspace) (bool, error) {
				copied, err := ws.catalog.Favorite(args[0], args[1])
				if err != nil {
					return false, err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s as %s\n", args[0], copied.Category, copied.ID)
				return true, nil
			})
		},
	}
}

func newMoveCommand(ctx *commandContext) *cobra.Command {
	var (
		from string
		site string
		to   string
	)

	cmd := &cobra.Command{
		Use:   "move --to <category> (--from <category> | --site <site>)",
		Short: "Move records to another category",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(to) == "" {
				return errors.New("--to is required")
			}
			if (from == "") == (site == "") {
				return errors.New("specify exactly one of --from or --site")
			}
			return ctx.mutate(cmd, func(ws *workspace) (bool, error) {
				var moved int
				if from != "" {
					moved = ws.catalog.MoveCategory(from, to)
				} else {
					moved = ws.catalog.MoveSite(strings.ToLower(site), to)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved %d records to %s\n", moved, to)
				return moved > 0, nil
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Source category")
	cmd.Flags().StringVar(&site, "site", "", "Source site")
	cmd.Flags().StringVar(&to, "to", "", "Destination category")
	return cmd
}

func newHideSiteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "hide-site <site>",
		Short: "Hide every record from a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.mutate(cmd, func(ws *workspace) (bool, error) {
				n := ws.catalog.SetSiteHidden(strings.ToLower(args[0]), true)
				fmt.Fprintf(cmd.OutOrStdout(), "Hid %d records\n", n)
				return n > 0, nil
			})
		},
	}
}

func newShowSiteCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "show-site [site]",
		Short: "Unhide records from a site, or every hidden record with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("specify a site or --all")
			}
			return ctx.mutate(cmd, func(ws *workspace) (bool, error) {
				var n int
				if all {
					n = ws.catalog.RestoreHidden()
				} else {
					n = ws.catalog.SetSiteHidden(strings.ToLower(args[0]), false)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d records\n", n)
				return n > 0, nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Restore every hidden record")
	return cmd
}

func newCleanTitlesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clean-titles <category> <word>...",
		Short: "Remove words from the titles of a category",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.mutate(cmd, func(ws *workspace) (bool, error) {
				n := ws.catalog.CleanTitles(args[0], args[1:])
				fmt.Fprintf(cmd.OutOrStdout(), "Cleaned %d titles\n", n)
				return n > 0, nil
			})
		},
	}
}
