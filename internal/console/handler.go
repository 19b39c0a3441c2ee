package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"libshelf/internal/catalog"
	"libshelf/internal/config"
)

// errInputClosed signals that the input ran out in the middle of a prompt.
var errInputClosed = errors.New("input closed")

type Handler struct {
	service catalog.Service
	in      *bufio.Scanner
	out     io.Writer
	cfg     config.ConsoleConfig
	logger  *slog.Logger
}

func NewHandler(service catalog.Service, in io.Reader, out io.Writer, cfg config.ConsoleConfig, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		in:      bufio.NewScanner(in),
		out:     out,
		cfg:     cfg,
		logger:  logger,
	}
}

func (h *Handler) printf(format string, args ...any) {
	fmt.Fprintf(h.out, format, args...)
}

// ask prints prompt and returns the next input line without surrounding
// whitespace.
func (h *Handler) ask(prompt string) (string, error) {
	h.printf("%s", prompt)
	if !h.in.Scan() {
		if err := h.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", errInputClosed
	}
	return strings.TrimSpace(h.in.Text()), nil
}

func (h *Handler) askInt(prompt string) (int, bool, error) {
	line, err := h.ask(prompt)
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

func (h *Handler) printBook(b catalog.Book) {
	h.printf("Title: %s\n", b.Title)
	h.printf("Author: %s\n", b.Author)
	h.printf("Year of Publication: %d\n", b.Year)
	h.printf("Issued: %s\n", b.Issued)
	h.printf("--------------------------\n")
}

// unexpected reports an error outside the catalog's known outcomes.
func (h *Handler) unexpected(ctx context.Context, op string, err error) {
	h.logger.ErrorContext(ctx, "operation failed", "op", op, "error", err)
	h.printf("Something went wrong: %v\n", err)
}

func (h *Handler) handleAddBook(ctx context.Context) error {
	title, err := h.ask("Enter the title of the book: ")
	if err != nil {
		return err
	}
	if title == "" {
		h.printf("Title cannot be empty.\n")
		return nil
	}
	author, err := h.ask("Enter the author of the book: ")
	if err != nil {
		return err
	}
	year, ok, err := h.askInt("Enter the year of publication: ")
	if err != nil {
		return err
	}
	if !ok {
		h.printf("Invalid year. Please enter a number.\n")
		return nil
	}

	if _, err := h.service.AddBook(ctx, title, author, year); err != nil {
		h.unexpected(ctx, "add", err)
		return nil
	}
	h.printf("Book added successfully!\n")
	return nil
}

func (h *Handler) handleDeleteBook(ctx context.Context) error {
	title, err := h.ask("Enter the title of the book to delete: ")
	if err != nil {
		return err
	}

	_, err = h.service.DeleteBook(ctx, title)
	switch {
	case err == nil:
		h.printf("Book deleted successfully.\n")
	case errors.Is(err, catalog.ErrEmptyCatalog):
		h.printf("Book not found. List is empty.\n")
	case errors.Is(err, catalog.ErrNotFound):
		h.printf("Book not found.\n")
	default:
		h.unexpected(ctx, "delete", err)
	}
	return nil
}

func (h *Handler) handleSearchBook(ctx context.Context) error {
	title, err := h.ask("Enter the title of the book to search: ")
	if err != nil {
		return err
	}

	book, err := h.service.SearchBook(ctx, title)
	switch {
	case err == nil:
		h.printf("Book found:\n")
		h.printBook(book)
	case errors.Is(err, catalog.ErrNotFound):
		h.printf("Book not found!\n")
	default:
		h.unexpected(ctx, "search", err)
	}
	return nil
}

func (h *Handler) handleDisplayBooks(ctx context.Context) error {
	books := h.service.ListBooks(ctx)
	if len(books) == 0 {
		h.printf("The library is empty.\n")
		return nil
	}
	for _, b := range books {
		h.printBook(b)
	}
	return nil
}

func (h *Handler) handleSortBooks(ctx context.Context) error {
	h.printf("1. Sort by publishing year\n")
	h.printf("2. Sort by author\n")
	h.printf("3. Sort by title\n")
	choice, ok, err := h.askInt("Enter your choice for sorting: ")
	if err != nil {
		return err
	}

	key := catalog.SortKey(choice)
	if !ok || !key.Valid() {
		h.printf("Invalid choice. Please enter a valid option.\n")
		return nil
	}

	if _, err := h.service.SortBooks(ctx, key); err != nil {
		h.unexpected(ctx, "sort", err)
		return nil
	}
	if h.cfg.ShowAfterSort {
		if err := h.handleDisplayBooks(ctx); err != nil {
			return err
		}
	}
	h.printf("Books sorted successfully!\n")
	return nil
}

func (h *Handler) handleIssueBook(ctx context.Context) error {
	title, err := h.ask("Enter the title of the book to issue: ")
	if err != nil {
		return err
	}

	book, err := h.service.IssueBook(ctx, title)
	switch {
	case err == nil:
		h.printf("Book '%s' issued successfully.\n", book.Title)
	case errors.Is(err, catalog.ErrAlreadyIssued):
		h.printf("Book '%s' is already issued.\n", book.Title)
	case errors.Is(err, catalog.ErrNotFound):
		h.printf("Book not found!\n")
	default:
		h.unexpected(ctx, "issue", err)
	}
	return nil
}

func (h *Handler) handleSubmitBook(ctx context.Context) error {
	title, err := h.ask("Enter the title of the book to submit: ")
	if err != nil {
		return err
	}

	book, err := h.service.SubmitBook(ctx, title)
	switch {
	case err == nil:
		h.printf("Book '%s' submitted successfully.\n", book.Title)
	case errors.Is(err, catalog.ErrNotIssued):
		h.printf("Book '%s' is not issued.\n", book.Title)
	case errors.Is(err, catalog.ErrNotFound):
		h.printf("Book not found!\n")
	default:
		h.unexpected(ctx, "submit", err)
	}
	return nil
}

func (h *Handler) handleCountBooks(ctx context.Context) error {
	h.printf("Total number of books in the library: %d\n", h.service.CountBooks(ctx))
	return nil
}

func (h *Handler) handleActivity(ctx context.Context) error {
	entries, err := h.service.Activity(ctx)
	if err != nil {
		h.unexpected(ctx, "activity", err)
		return nil
	}
	if len(entries) == 0 {
		h.printf("No activity yet.\n")
		return nil
	}

	h.printf("Activity log:\n")
	for _, e := range entries {
		h.printf("%s\n", formatActivity(e))
	}
	return nil
}

func (h *Handler) handleBookHistory(ctx context.Context) error {
	title, err := h.ask("Enter the title of the book: ")
	if err != nil {
		return err
	}

	entries, err := h.service.History(ctx, title)
	switch {
	case err == nil:
		h.printf("History of '%s':\n", entries[0].Title)
		for _, e := range entries {
			h.printf("%s\n", formatActivity(e))
		}
	case errors.Is(err, catalog.ErrNotFound):
		h.printf("Book not found!\n")
	default:
		h.unexpected(ctx, "history", err)
	}
	return nil
}

func formatActivity(e catalog.Activity) string {
	line := fmt.Sprintf("#%d %s", e.Seq, e.Type)
	if e.Title != "" {
		line += fmt.Sprintf(" '%s'", e.Title)
	}
	if e.Detail != "" {
		line += " " + e.Detail
	}
	return line
}
