package kobo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"kobodown/internal/mediatype"
)

// Book is one entry of the user's library.
type Book struct {
	RevisionID string
	Title      string
	Authors    string
	Archived   bool
}

func (b Book) String() string {
	if b.Authors == "" {
		return b.Title
	}
	return b.Title + " by " + b.Authors
}

// BookInfo is the store metadata for a single product.
type BookInfo struct {
	Title  string
	Author string
}

type contributorRole struct {
	Role string `json:"Role"`
	Name string `json:"Name"`
}

type bookMetadata struct {
	RevisionID       *string           `json:"RevisionId"`
	Title            *string           `json:"Title"`
	ContributorRoles []contributorRole `json:"ContributorRoles"`
}

type bookEntitlement struct {
	Accessibility *string `json:"Accessibility"`
	IsLocked      *bool   `json:"IsLocked"`
	IsRemoved     *bool   `json:"IsRemoved"`
}

type statusInfo struct {
	Status *string `json:"Status"`
}

type readingState struct {
	StatusInfo *statusInfo `json:"StatusInfo"`
}

type syncEntitlement struct {
	BookEntitlement *bookEntitlement `json:"BookEntitlement"`
	ReadingState    *readingState    `json:"ReadingState"`
	BookMetadata    *bookMetadata    `json:"BookMetadata"`
}

type syncItem struct {
	NewEntitlement *syncEntitlement `json:"NewEntitlement"`
}

// joinAuthors collapses the contributor list into a display string. All
// credited authors are joined with " & "; when no contributor carries
// the Author role the first contributor stands in.
func joinAuthors(roles []contributorRole) string {
	var b strings.Builder
	for _, r := range roles {
		if r.Role != "Author" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" & ")
		}
		b.WriteString(r.Name)
	}
	if b.Len() == 0 && len(roles) > 0 {
		return roles[0].Name
	}
	return b.String()
}

// entitlementBook converts one sync item into a Book. Items that do not
// describe a usable entitlement report ok=false and are dropped: preview
// access, locked entitlements, items missing their metadata, and, when
// finished filtering applies, books whose reading status is Finished.
func entitlementBook(e *syncEntitlement, skipFinished bool) (Book, bool) {
	if e == nil || e.BookMetadata == nil || e.BookMetadata.RevisionID == nil || e.BookMetadata.Title == nil {
		return Book{}, false
	}
	archived := false
	if ent := e.BookEntitlement; ent != nil {
		if ent.Accessibility != nil && *ent.Accessibility == "Preview" {
			return Book{}, false
		}
		if ent.IsLocked != nil && *ent.IsLocked {
			return Book{}, false
		}
		if ent.IsRemoved != nil {
			archived = *ent.IsRemoved
		}
	}
	if skipFinished {
		if e.ReadingState == nil || e.ReadingState.StatusInfo == nil {
			return Book{}, false
		}
		if s := e.ReadingState.StatusInfo.Status; s != nil && *s == "Finished" {
			return Book{}, false
		}
	}
	return Book{
		RevisionID: *e.BookMetadata.RevisionID,
		Title:      *e.BookMetadata.Title,
		Authors:    joinAuthors(e.BookMetadata.ContributorRoles),
		Archived:   archived,
	}, true
}

// syncPage fetches one page of the library sync feed. A non-empty token
// resumes a paginated sync; the returned next token is empty once the
// server has no further pages.
func (c *Client) syncPage(ctx context.Context, token string, skipFinished bool) (books []Book, next string, err error) {
	settings, err := c.fetchSettings(ctx)
	if err != nil {
		return nil, "", err
	}
	u, err := url.Parse(settings.LibrarySync)
	if err != nil {
		return nil, "", fmt.Errorf("parse library sync url: %w", err)
	}
	req := NewRequest(http.MethodGet, u)
	if token != "" {
		req.Header.Set("x-kobo-synctoken", token)
	}
	resp, err := c.authorizedRequest(ctx, req)
	if err != nil {
		return nil, "", err
	}
	if resp.Header.Get("x-kobo-sync") == "continue" {
		next = resp.Header.Get("x-kobo-synctoken")
	}
	var items []json.RawMessage
	decodeErr := mediatype.DecodeJSON(resp.StatusCode, resp.Header, resp.Body, &items)
	resp.closeBody()
	if decodeErr != nil {
		return nil, "", fmt.Errorf("decode library sync page: %w", decodeErr)
	}
	for _, raw := range items {
		// Items that are not entitlements at all decode to nothing
		// and fall out in entitlementBook.
		var item syncItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		if book, ok := entitlementBook(item.NewEntitlement, skipFinished); ok {
			books = append(books, book)
		}
	}
	return books, next, nil
}

// BookList returns the user's library sorted by title. By default books
// whose reading status is Finished are left out; all includes them.
func (c *Client) BookList(ctx context.Context, all bool) ([]Book, error) {
	var books []Book
	token := ""
	for {
		page, next, err := c.syncPage(ctx, token, !all)
		if err != nil {
			return nil, err
		}
		books = append(books, page...)
		if next == "" {
			break
		}
		token = next
	}
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].Title < books[j].Title
	})
	c.logger.Debug("library synced", "books", len(books))
	return books, nil
}

// BookInfo fetches the store metadata for one product.
func (c *Client) BookInfo(ctx context.Context, productID string) (BookInfo, error) {
	settings, err := c.fetchSettings(ctx)
	if err != nil {
		return BookInfo{}, err
	}
	u, err := url.Parse(templateURL(settings.Book, productID))
	if err != nil {
		return BookInfo{}, fmt.Errorf("parse book url: %w", err)
	}
	resp, err := c.authorizedRequest(ctx, NewRequest(http.MethodGet, u))
	if err != nil {
		return BookInfo{}, err
	}
	var raw struct {
		Title            string            `json:"Title"`
		ContributorRoles []contributorRole `json:"ContributorRoles"`
	}
	decodeErr := mediatype.DecodeJSON(resp.StatusCode, resp.Header, resp.Body, &raw)
	resp.closeBody()
	if decodeErr != nil {
		return BookInfo{}, fmt.Errorf("decode book info: %w", decodeErr)
	}
	return BookInfo{Title: raw.Title, Author: joinAuthors(raw.ContributorRoles)}, nil
}
