package circulation

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrAlreadyIssued = errors.New("book is already issued")
	ErrNotIssued     = errors.New("book is not issued")
)

// Status is the borrowing state of a single book.
type Status bool

const (
	Available Status = false
	Issued    Status = true
)

// String returns the display label used in listings.
func (s Status) String() string {
	if s == Issued {
		return "Yes"
	}
	return "No"
}

// Issue moves an available book to Issued.
func (s Status) Issue() (Status, error) {
	if s == Issued {
		return s, ErrAlreadyIssued
	}
	return Issued, nil
}

// Return moves an issued book back to Available.
func (s Status) Return() (Status, error) {
	if s == Available {
		return s, ErrNotIssued
	}
	return Available, nil
}

// BookIssuedEvent is recorded when a book is issued.
type BookIssuedEvent struct {
	BookID uuid.UUID `json:"book_id"`
	Title  string    `json:"title"`
}

// BookReturnedEvent is recorded when a book is submitted back.
type BookReturnedEvent struct {
	BookID uuid.UUID `json:"book_id"`
	Title  string    `json:"title"`
}
