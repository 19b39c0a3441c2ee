package catalog

import (
	"errors"

	"libshelf/internal/circulation"
)

var (
	ErrEmptyCatalog   = errors.New("catalog is empty")
	ErrNotFound       = errors.New("book not found")
	ErrInvalidSortKey = errors.New("invalid sort key")

	ErrAlreadyIssued = circulation.ErrAlreadyIssued
	ErrNotIssued     = circulation.ErrNotIssued
)
