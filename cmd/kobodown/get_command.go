package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"kobodown/internal/kobo"
)

func newGetCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var outputFile string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Download one book and strip its protection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(cctx context.Context, client *kobo.Client) error {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}

				dir := outputDir
				if dir == "" {
					dir = cfg.Paths.OutputDir
				}

				name := outputFile
				if name != "" {
					dir, name, err = splitOutputFile(dir, name)
					if err != nil {
						return err
					}
				} else {
					book, err := client.BookInfo(cctx, args[0])
					if err != nil {
						return fmt.Errorf("book info: %w", err)
					}
					name = bookFilename(book.Author, book.Title)
				}

				access, err := client.AccessBook(cctx, args[0])
				if err != nil {
					return fmt.Errorf("access book: %w", err)
				}
				if err := downloadBook(cctx, client, access, dir, name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", filepath.Join(dir, name))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Directory to write the book into")
	cmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "Output file name (overrides the derived name)")

	return cmd
}

// splitOutputFile separates an --output-file value into directory and
// file name. A relative parent in the value nests under dir; an absolute
// parent replaces it.
func splitOutputFile(dir, value string) (string, string, error) {
	if value == "" || strings.HasSuffix(value, string(filepath.Separator)) {
		return "", "", errors.New("invalid output file name")
	}
	name := filepath.Base(value)
	if name == "." || name == string(filepath.Separator) {
		return "", "", errors.New("invalid output file name")
	}
	parent := filepath.Dir(value)
	if parent == "." {
		return dir, name, nil
	}
	if filepath.IsAbs(parent) || dir == "" {
		return parent, name, nil
	}
	return filepath.Join(dir, parent), name, nil
}
