package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kobodown/internal/kobo"
)

func newPickCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var all bool

	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Select books interactively and download them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(cctx context.Context, client *kobo.Client) error {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}

				books, err := ctx.bookList(cctx, client, all, false)
				if err != nil {
					return fmt.Errorf("list books: %w", err)
				}
				if len(books) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No books found.")
					return nil
				}

				out := cmd.OutOrStdout()
				rows := make([][]string, 0, len(books))
				for i, book := range books {
					rows = append(rows, []string{strconv.Itoa(i + 1), book.String()})
				}
				fmt.Fprintln(out, renderTable([]string{"#", "Book"}, rows, 1))

				line, err := promptLine(cmd, "Select books (e.g. 1 3-5, or 'all'): ")
				if err != nil {
					return err
				}
				selected, err := parseSelection(line, len(books))
				if err != nil {
					return err
				}
				if len(selected) == 0 {
					return nil
				}

				dir := outputDir
				if dir == "" {
					dir = cfg.Paths.OutputDir
				}

				for _, i := range selected {
					book := books[i]
					name := bookFilename(book.Authors, book.Title)
					access, err := client.AccessBook(cctx, book.RevisionID)
					if err != nil {
						return fmt.Errorf("access %s: %w", book.Title, err)
					}
					if err := downloadBook(cctx, client, access, dir, name); err != nil {
						return err
					}
				}
				fmt.Fprintf(out, "Downloaded %d book(s).\n", len(selected))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Directory to write the books into")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include finished books")

	return cmd
}

// parseSelection turns user input like "1 3-5" into zero-based indexes,
// deduplicated and sorted. "all" selects everything.
func parseSelection(input string, count int) ([]int, error) {
	input = strings.TrimSpace(input)
	if strings.EqualFold(input, "all") {
		selected := make([]int, count)
		for i := range selected {
			selected[i] = i
		}
		return selected, nil
	}

	seen := make(map[int]struct{})
	for _, tok := range strings.FieldsFunc(input, func(r rune) bool { return r == ' ' || r == ',' }) {
		lo, hi, ok := strings.Cut(tok, "-")
		from, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q", tok)
		}
		to := from
		if ok {
			if to, err = strconv.Atoi(hi); err != nil {
				return nil, fmt.Errorf("invalid selection %q", tok)
			}
		}
		if from < 1 || to > count || from > to {
			return nil, fmt.Errorf("selection %q is out of range", tok)
		}
		for i := from; i <= to; i++ {
			seen[i-1] = struct{}{}
		}
	}

	selected := make([]int, 0, len(seen))
	for i := range seen {
		selected = append(selected, i)
	}
	sort.Ints(selected)
	return selected, nil
}
