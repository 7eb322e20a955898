package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"kobodown/internal/kobo"
)

func newInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info <id>",
		Short: "Show store metadata for one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(cctx context.Context, client *kobo.Client) error {
				book, err := client.BookInfo(cctx, args[0])
				if err != nil {
					return fmt.Errorf("book info: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Title:  %s\n", book.Title)
				if book.Author != "" {
					fmt.Fprintf(out, "Author: %s\n", book.Author)
				}
				fmt.Fprintf(out, "File:   %s\n", bookFilename(book.Author, book.Title))
				return nil
			})
		},
	}
}
