package catalog

import (
	"context"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, title, author string, year int) (Book, error)
	DeleteBook(ctx context.Context, title string) (Book, error)
	SearchBook(ctx context.Context, title string) (Book, error)
	CountBooks(ctx context.Context) int
	ListBooks(ctx context.Context) []Book
	IssueBook(ctx context.Context, title string) (Book, error)
	SubmitBook(ctx context.Context, title string) (Book, error)
	SortBooks(ctx context.Context, key SortKey) (int, error)
	Teardown(ctx context.Context) (int, error)
	Activity(ctx context.Context) ([]Activity, error)
	History(ctx context.Context, title string) ([]Activity, error)
}
