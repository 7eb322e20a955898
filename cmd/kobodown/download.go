package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"

	"kobodown/internal/drm"
	"kobodown/internal/kobo"
	"kobodown/internal/tmpfiles"
)

// downloadBook fetches one book into dir/name. Encrypted content is
// staged in a temp file next to the target and transcoded into a clean
// zip; in both paths the in-progress files are registered so an
// interrupt leaves no partial output behind.
func downloadBook(ctx context.Context, client *kobo.Client, access kobo.AccessBook, dir, name string) error {
	tmpfiles.HandleInterrupt()

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	target := filepath.Join(dir, name)

	if access.ContentKeys == nil {
		return downloadPlain(ctx, client, access, target, name)
	}
	return downloadEncrypted(ctx, client, access, target, name)
}

func downloadPlain(ctx context.Context, client *kobo.Client, access kobo.AccessBook, target, name string) error {
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	key := tmpfiles.Register(target)

	bar := downloadBar(access.Size, "Downloading "+name)
	err = client.Download(ctx, access.URL, io.MultiWriter(out, bar))
	_ = bar.Close()
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		tmpfiles.Remove(key)
		return fmt.Errorf("download %s: %w", name, err)
	}
	tmpfiles.Release(key)
	return nil
}

func downloadEncrypted(ctx context.Context, client *kobo.Client, access kobo.AccessBook, target, name string) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, name+".*.part")
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	tmpKey := tmpfiles.Register(tmp.Name())
	fail := func(err error) error {
		_ = tmp.Close()
		tmpfiles.Remove(tmpKey)
		return err
	}

	bar := downloadBar(access.Size, "Downloading "+name)
	err = client.Download(ctx, access.URL, io.MultiWriter(tmp, bar))
	_ = bar.Close()
	if err != nil {
		return fail(fmt.Errorf("download %s: %w", name, err))
	}

	info, err := tmp.Stat()
	if err != nil {
		return fail(fmt.Errorf("stat staging file: %w", err))
	}

	out, err := os.Create(target)
	if err != nil {
		return fail(fmt.Errorf("create output file: %w", err))
	}
	outKey := tmpfiles.Register(target)

	fmt.Fprintf(os.Stderr, "Decrypting %s...\n", name)
	err = drm.DecryptArchive(tmp, info.Size(), out, access.ContentKeys)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		tmpfiles.Remove(outKey)
		return fail(fmt.Errorf("decrypt %s: %w", name, err))
	}

	tmpfiles.Release(outKey)
	_ = tmp.Close()
	tmpfiles.Remove(tmpKey)
	return nil
}

func downloadBar(size uint64, description string) *progressbar.ProgressBar {
	length := int64(size)
	if length == 0 {
		// Unknown length renders as a spinner.
		length = -1
	}
	return progressbar.DefaultBytes(length, description)
}
