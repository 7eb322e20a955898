// Package drm rewrites a downloaded book container into a plain zip
// archive. Entries named in the content-key map are decrypted and
// recompressed; everything else is copied through untouched.
package drm

import (
	"archive/zip"
	"crypto/aes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// ErrPadding reports a decrypted entry whose padding is malformed,
// which almost always means the wrong key was used.
var ErrPadding = errors.New("invalid padding after decryption")

// decryptEntry decrypts one protected entry with AES-128 in ECB mode
// and strips the PKCS7 padding.
func decryptEntry(key, data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("encrypted entry is %d bytes, not a whole number of blocks", len(data))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(data))
	for off := 0; off < len(data); off += aes.BlockSize {
		block.Decrypt(plain[off:off+aes.BlockSize], data[off:off+aes.BlockSize])
	}
	pad := int(plain[len(plain)-1])
	if pad < 1 || pad > aes.BlockSize || pad > len(plain) {
		return nil, ErrPadding
	}
	for _, b := range plain[len(plain)-pad:] {
		if int(b) != pad {
			return nil, ErrPadding
		}
	}
	return plain[:len(plain)-pad], nil
}

// DecryptArchive reads the zip container in (of the given size), writes
// a decrypted container to out, and decrypts every entry whose name
// appears in keys. Entries without a key keep their stored bytes.
// Nothing is finalized until every entry has been processed, so a
// failure leaves out incomplete rather than silently corrupt.
func DecryptArchive(in io.ReaderAt, size int64, out io.Writer, keys map[string][]byte) error {
	zr, err := zip.NewReader(in, size)
	if err != nil {
		return fmt.Errorf("open container: %w", err)
	}
	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})

	for _, f := range zr.File {
		key, protected := keys[f.Name]
		if !protected {
			if err := zw.Copy(f); err != nil {
				return fmt.Errorf("copy entry %q: %w", f.Name, err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open entry %q: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("read entry %q: %w", f.Name, err)
		}
		plain, err := decryptEntry(key, data)
		if err != nil {
			return fmt.Errorf("decrypt entry %q: %w", f.Name, err)
		}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			return fmt.Errorf("create entry %q: %w", f.Name, err)
		}
		if _, err := w.Write(plain); err != nil {
			return fmt.Errorf("write entry %q: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize container: %w", err)
	}
	return nil
}
