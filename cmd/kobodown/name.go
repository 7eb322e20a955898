package main

import "strings"

// sanitizeName strips path separators and characters that common
// filesystems reject, so a store title can be used as a file name.
func sanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
		case strings.ContainsRune(`/\?*:|"<>`, r):
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(b.String(), ". ")
}

// bookFilename builds the output name "Author - Title.epub", falling
// back to the title alone when no author is known.
func bookFilename(author, title string) string {
	author = sanitizeName(author)
	title = sanitizeName(title)
	if title == "" {
		title = "book"
	}
	if author == "" {
		return title + ".epub"
	}
	return author + " - " + title + ".epub"
}
