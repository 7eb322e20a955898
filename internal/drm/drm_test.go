package drm

import (
	"archive/zip"
	"bytes"
	"crypto/aes"
	"io"
	"testing"
)

// encryptEntry builds the ciphertext the store would ship: PKCS7 padded,
// AES-128 ECB.
func encryptEntry(t *testing.T, key, plain []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes: %v", err)
	}
	pad := aes.BlockSize - len(plain)%aes.BlockSize
	padded := make([]byte, len(plain)+pad)
	copy(padded, plain)
	for i := len(plain); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	out := make([]byte, len(padded))
	for off := 0; off < len(padded); off += aes.BlockSize {
		block.Encrypt(out[off:off+aes.BlockSize], padded[off:off+aes.BlockSize])
	}
	return out
}

func buildContainer(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func readContainer(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		out[f.Name] = content
	}
	return out
}

func TestDecryptEntryRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef")
	plain := []byte("chapter text that spans more than one block")

	got, err := decryptEntry(key, encryptEntry(t, key, plain))
	if err != nil {
		t.Fatalf("decryptEntry: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("decrypted %q, want %q", got, plain)
	}
}

func TestDecryptEntryExactBlockGetsFullPaddingBlock(t *testing.T) {
	key := []byte("0123456789abcdef")
	plain := []byte("0123456789abcdef0123456789abcdef")

	cipher := encryptEntry(t, key, plain)
	if len(cipher) != len(plain)+aes.BlockSize {
		t.Fatalf("cipher length = %d", len(cipher))
	}
	got, err := decryptEntry(key, cipher)
	if err != nil {
		t.Fatalf("decryptEntry: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("decrypted %q, want %q", got, plain)
	}
}

// encryptRaw encrypts whole blocks without adding padding, to forge
// ciphertexts that decrypt to a chosen plaintext.
func encryptRaw(t *testing.T, key, padded []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes: %v", err)
	}
	out := make([]byte, len(padded))
	for off := 0; off < len(padded); off += aes.BlockSize {
		block.Encrypt(out[off:off+aes.BlockSize], padded[off:off+aes.BlockSize])
	}
	return out
}

func TestDecryptEntryRejectsBadInput(t *testing.T) {
	key := []byte("0123456789abcdef")
	if _, err := decryptEntry(key, []byte("short")); err == nil {
		t.Fatalf("accepted partial block")
	}
	if _, err := decryptEntry(key, nil); err == nil {
		t.Fatalf("accepted empty entry")
	}

	// Plaintexts whose trailing bytes are not valid padding.
	bad := [][]byte{
		[]byte("aaaaaaaaaaaaaaa\x00"), // pad byte zero
		[]byte("aaaaaaaaaaaaaaa\x11"), // pad byte larger than a block
		[]byte("aaaaaaaaaaaaaa\x01\x02"), // inconsistent pad bytes
	}
	for _, plain := range bad {
		if _, err := decryptEntry(key, encryptRaw(t, key, plain)); err == nil {
			t.Fatalf("accepted entry with padding %x", plain[len(plain)-2:])
		}
	}
}

func TestDecryptArchive(t *testing.T) {
	key := []byte("0123456789abcdef")
	chapter := []byte("<html><body>chapter one</body></html>")
	mimetype := []byte("application/epub+zip")

	container := buildContainer(t, map[string][]byte{
		"OEBPS/ch1.html": encryptEntry(t, key, chapter),
		"mimetype":       mimetype,
	})

	var out bytes.Buffer
	keys := map[string][]byte{"OEBPS/ch1.html": key}
	if err := DecryptArchive(bytes.NewReader(container), int64(len(container)), &out, keys); err != nil {
		t.Fatalf("DecryptArchive: %v", err)
	}

	entries := readContainer(t, out.Bytes())
	if !bytes.Equal(entries["OEBPS/ch1.html"], chapter) {
		t.Fatalf("chapter = %q, want decrypted text", entries["OEBPS/ch1.html"])
	}
	if !bytes.Equal(entries["mimetype"], mimetype) {
		t.Fatalf("unkeyed entry changed: %q", entries["mimetype"])
	}
}

func TestDecryptArchiveBadEntryFails(t *testing.T) {
	key := []byte("0123456789abcdef")
	container := buildContainer(t, map[string][]byte{
		"OEBPS/ch1.html": encryptRaw(t, key, []byte("aaaaaaaaaaaaaaa\x00")),
	})

	var out bytes.Buffer
	keys := map[string][]byte{"OEBPS/ch1.html": key}
	err := DecryptArchive(bytes.NewReader(container), int64(len(container)), &out, keys)
	if err == nil {
		t.Fatalf("entry with corrupt padding accepted")
	}
}

func TestDecryptArchiveNotAZip(t *testing.T) {
	junk := []byte("definitely not a zip file")
	var out bytes.Buffer
	if err := DecryptArchive(bytes.NewReader(junk), int64(len(junk)), &out, nil); err == nil {
		t.Fatalf("junk input accepted")
	}
}
