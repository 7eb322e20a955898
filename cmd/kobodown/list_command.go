package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"kobodown/internal/kobo"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var refresh bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List purchased books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(cctx context.Context, client *kobo.Client) error {
				books, err := ctx.bookList(cctx, client, all, refresh)
				if err != nil {
					return fmt.Errorf("list books: %w", err)
				}
				if len(books) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No books found.")
					return nil
				}

				rows := make([][]string, 0, len(books))
				for _, book := range books {
					rows = append(rows, []string{
						book.RevisionID,
						book.Title,
						book.Authors,
						yesNo(book.Archived),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Authors", "Archived"},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include finished books")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the catalog cache and sync from the store")

	return cmd
}
