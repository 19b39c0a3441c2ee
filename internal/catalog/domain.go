package catalog

import (
	"fmt"

	"github.com/google/uuid"

	"libshelf/internal/circulation"
)

// Book is one catalog entry.
type Book struct {
	ID      uuid.UUID          `json:"id"`
	Title   string             `json:"title"`
	Author  string             `json:"author"`
	Year    int                `json:"year"`
	Issued  circulation.Status `json:"issued"`
	Version int                `json:"version"`
}

// SortKey selects the field a sort orders by. The numeric values match the
// console menu.
type SortKey int

const (
	SortByYear SortKey = iota + 1
	SortByAuthor
	SortByTitle
)

func (k SortKey) String() string {
	switch k {
	case SortByYear:
		return "year"
	case SortByAuthor:
		return "author"
	case SortByTitle:
		return "title"
	default:
		return fmt.Sprintf("SortKey(%d)", int(k))
	}
}

// Valid reports whether k is one of the known keys.
func (k SortKey) Valid() bool {
	return k >= SortByYear && k <= SortByTitle
}

// Activity is one line of the session's activity log.
type Activity struct {
	Seq    int64  `json:"seq"`
	Type   string `json:"type"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
}

const (
	BookAddedEventType      = "BookAdded"
	BookRemovedEventType    = "BookRemoved"
	BookIssuedEventType     = "BookIssued"
	BookReturnedEventType   = "BookReturned"
	CatalogSortedEventType  = "CatalogSorted"
	CatalogClearedEventType = "CatalogCleared"
)

// BookAddedEvent is recorded when a new book enters the catalog.
type BookAddedEvent struct {
	BookID uuid.UUID `json:"book_id"`
	Title  string    `json:"title"`
	Author string    `json:"author"`
	Year   int       `json:"year"`
}

// BookRemovedEvent is recorded when a book is deleted.
type BookRemovedEvent struct {
	BookID uuid.UUID `json:"book_id"`
	Title  string    `json:"title"`
}

// CatalogSortedEvent is recorded after every sort request.
type CatalogSortedEvent struct {
	Key   string `json:"key"`
	Swaps int    `json:"swaps"`
}

// CatalogClearedEvent is recorded on teardown.
type CatalogClearedEvent struct {
	Released int `json:"released"`
}
