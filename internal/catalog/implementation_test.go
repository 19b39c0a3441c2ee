package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libshelf/internal/circulation"
	"libshelf/pkg/eventstore"
)

// newTestService accepts both *testing.T and *rapid.T.
func newTestService(t interface{ Helper() }) Service {
	t.Helper()
	return NewService(eventstore.NewEventStore(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func seedClassics(t testing.TB, svc Service) {
	t.Helper()
	ctx := context.Background()
	for _, b := range []struct {
		title, author string
		year          int
	}{
		{"Dune", "Herbert", 1965},
		{"Neuromancer", "Gibson", 1984},
		{"Foundation", "Asimov", 1951},
	} {
		_, err := svc.AddBook(ctx, b.title, b.author, b.year)
		require.NoError(t, err)
	}
}

func titles(books []Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.Title
	}
	return out
}

func TestAddBookKeepsYearOrder(t *testing.T) {
	svc := newTestService(t)
	seedClassics(t, svc)
	ctx := context.Background()

	assert.Equal(t, []string{"Foundation", "Dune", "Neuromancer"}, titles(svc.ListBooks(ctx)))
	assert.Equal(t, 3, svc.CountBooks(ctx))
}

func TestAddBookEqualYearGoesAfterExisting(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, title := range []string{"B", "A", "C"} {
		_, err := svc.AddBook(ctx, title, "x", 2000)
		require.NoError(t, err)
	}
	_, err := svc.AddBook(ctx, "Early", "x", 1999)
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, "D", "x", 2000)
	require.NoError(t, err)

	assert.Equal(t, []string{"Early", "B", "A", "C", "D"}, titles(svc.ListBooks(ctx)))
}

func TestAddBookSameYearKeepsArrivalOrder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, title := range []string{"First", "Second", "Third"} {
		_, err := svc.AddBook(ctx, title, "x", 1965)
		require.NoError(t, err)
	}
	_, err := svc.AddBook(ctx, "Later", "x", 1966)
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, "Fourth", "x", 1965)
	require.NoError(t, err)

	assert.Equal(t, []string{"First", "Second", "Third", "Fourth", "Later"}, titles(svc.ListBooks(ctx)))
}

func TestAddBookDefaults(t *testing.T) {
	svc := newTestService(t)

	book, err := svc.AddBook(context.Background(), "Dune", "Herbert", 1965)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, book.ID)
	assert.Equal(t, circulation.Available, book.Issued)
	assert.Equal(t, 1, book.Version)
}

func TestDeleteBook(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.DeleteBook(ctx, "Dune")
	assert.ErrorIs(t, err, ErrEmptyCatalog)

	seedClassics(t, svc)

	_, err = svc.DeleteBook(ctx, "Missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 3, svc.CountBooks(ctx))

	removed, err := svc.DeleteBook(ctx, "Neuromancer")
	require.NoError(t, err)
	assert.Equal(t, "Gibson", removed.Author)

	_, err = svc.SearchBook(ctx, "neuromancer")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"Foundation", "Dune"}, titles(svc.ListBooks(ctx)))
}

func TestDeleteBookIsCaseSensitive(t *testing.T) {
	svc := newTestService(t)
	seedClassics(t, svc)

	_, err := svc.DeleteBook(context.Background(), "dune")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 3, svc.CountBooks(context.Background()))
}

func TestDeleteBookRemovesFirstDuplicateOnly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.AddBook(ctx, "Emma", "Austen", 1815)
	require.NoError(t, err)
	second, err := svc.AddBook(ctx, "Emma", "Someone Else", 1990)
	require.NoError(t, err)

	removed, err := svc.DeleteBook(ctx, "Emma")
	require.NoError(t, err)
	assert.Equal(t, first.ID, removed.ID)

	books := svc.ListBooks(ctx)
	require.Len(t, books, 1)
	assert.Equal(t, second.ID, books[0].ID)
}

func TestSearchBookIgnoresCase(t *testing.T) {
	svc := newTestService(t)
	seedClassics(t, svc)

	book, err := svc.SearchBook(context.Background(), "fOuNdAtIoN")
	require.NoError(t, err)
	assert.Equal(t, "Foundation", book.Title)
	assert.Equal(t, 1951, book.Year)
}

func TestSearchBookReturnsCopy(t *testing.T) {
	svc := newTestService(t)
	seedClassics(t, svc)
	ctx := context.Background()

	book, err := svc.SearchBook(ctx, "dune")
	require.NoError(t, err)
	book.Title = "Changed"
	book.Issued = circulation.Issued

	again, err := svc.SearchBook(ctx, "dune")
	require.NoError(t, err)
	assert.Equal(t, "Dune", again.Title)
	assert.Equal(t, circulation.Available, again.Issued)
}

func TestIssueAndSubmit(t *testing.T) {
	svc := newTestService(t)
	seedClassics(t, svc)
	ctx := context.Background()

	issued, err := svc.IssueBook(ctx, "dune")
	require.NoError(t, err)
	assert.Equal(t, circulation.Issued, issued.Issued)
	assert.Equal(t, "Dune", issued.Title)

	again, err := svc.IssueBook(ctx, "dune")
	assert.ErrorIs(t, err, ErrAlreadyIssued)
	assert.Equal(t, "Dune", again.Title)
	assert.Equal(t, circulation.Issued, again.Issued)

	returned, err := svc.SubmitBook(ctx, "DUNE")
	require.NoError(t, err)
	assert.Equal(t, circulation.Available, returned.Issued)

	_, err = svc.SubmitBook(ctx, "Dune")
	assert.ErrorIs(t, err, ErrNotIssued)

	book, err := svc.SearchBook(ctx, "Dune")
	require.NoError(t, err)
	assert.Equal(t, circulation.Available, book.Issued)
	assert.Equal(t, 3, book.Version)
}

func TestIssueAndSubmitNotFound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.IssueBook(ctx, "Dune")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.SubmitBook(ctx, "Dune")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSortBooks(t *testing.T) {
	svc := newTestService(t)
	seedClassics(t, svc)
	ctx := context.Background()

	_, err := svc.SortBooks(ctx, SortByAuthor)
	require.NoError(t, err)
	assert.Equal(t, []string{"Foundation", "Neuromancer", "Dune"}, titles(svc.ListBooks(ctx)))

	_, err = svc.SortBooks(ctx, SortByTitle)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dune", "Foundation", "Neuromancer"}, titles(svc.ListBooks(ctx)))

	_, err = svc.SortBooks(ctx, SortByYear)
	require.NoError(t, err)
	assert.Equal(t, []string{"Foundation", "Dune", "Neuromancer"}, titles(svc.ListBooks(ctx)))
}

func TestSortBooksIgnoresCase(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, b := range []struct{ title, author string }{
		{"b", "zed"},
		{"A", "Young"},
		{"c", "alpha"},
	} {
		_, err := svc.AddBook(ctx, b.title, b.author, 2000)
		require.NoError(t, err)
	}

	_, err := svc.SortBooks(ctx, SortByTitle)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "b", "c"}, titles(svc.ListBooks(ctx)))

	_, err = svc.SortBooks(ctx, SortByAuthor)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "A", "b"}, titles(svc.ListBooks(ctx)))
}

func TestSortBooksInvalidKey(t *testing.T) {
	svc := newTestService(t)
	seedClassics(t, svc)
	ctx := context.Background()

	_, err := svc.SortBooks(ctx, SortKey(7))
	assert.ErrorIs(t, err, ErrInvalidSortKey)
	assert.Equal(t, []string{"Foundation", "Dune", "Neuromancer"}, titles(svc.ListBooks(ctx)))
}

func TestSortBooksEmptyAndSingle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	swaps, err := svc.SortBooks(ctx, SortByTitle)
	require.NoError(t, err)
	assert.Zero(t, swaps)

	_, err = svc.AddBook(ctx, "Solo", "One", 2001)
	require.NoError(t, err)
	swaps, err = svc.SortBooks(ctx, SortByAuthor)
	require.NoError(t, err)
	assert.Zero(t, swaps)
}

func TestTeardown(t *testing.T) {
	svc := newTestService(t)
	seedClassics(t, svc)
	ctx := context.Background()

	released, err := svc.Teardown(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, released)
	assert.Zero(t, svc.CountBooks(ctx))
	assert.Empty(t, svc.ListBooks(ctx))

	released, err = svc.Teardown(ctx)
	require.NoError(t, err)
	assert.Zero(t, released)

	_, err = svc.DeleteBook(ctx, "Dune")
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestActivity(t *testing.T) {
	svc := newTestService(t)
	seedClassics(t, svc)
	ctx := context.Background()

	_, err := svc.IssueBook(ctx, "dune")
	require.NoError(t, err)
	_, err = svc.IssueBook(ctx, "dune")
	require.ErrorIs(t, err, ErrAlreadyIssued)
	_, err = svc.SubmitBook(ctx, "dune")
	require.NoError(t, err)
	_, err = svc.SortBooks(ctx, SortByAuthor)
	require.NoError(t, err)
	_, err = svc.DeleteBook(ctx, "Neuromancer")
	require.NoError(t, err)
	_, err = svc.Teardown(ctx)
	require.NoError(t, err)

	entries, err := svc.Activity(ctx)
	require.NoError(t, err)

	var types []string
	for _, e := range entries {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		BookAddedEventType, BookAddedEventType, BookAddedEventType,
		BookIssuedEventType, BookReturnedEventType,
		CatalogSortedEventType, BookRemovedEventType, CatalogClearedEventType,
	}, types)

	assert.Equal(t, "Dune", entries[0].Title)
	assert.Equal(t, "Herbert, 1965", entries[0].Detail)
	assert.Equal(t, "by author (swaps: 1)", entries[5].Detail)
	assert.Equal(t, "Neuromancer", entries[6].Title)
	assert.Equal(t, "2 books released", entries[7].Detail)
	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i].Seq, entries[i-1].Seq)
	}
}

func TestSortKeyString(t *testing.T) {
	assert.Equal(t, "year", SortByYear.String())
	assert.Equal(t, "author", SortByAuthor.String())
	assert.Equal(t, "title", SortByTitle.String())
	assert.Equal(t, "SortKey(0)", SortKey(0).String())
	assert.False(t, SortKey(4).Valid())
}

func TestSortBooksLeavesOrderOnJournalFailure(t *testing.T) {
	svc := newTestService(t)
	seedClassics(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	swaps, err := svc.SortBooks(ctx, SortByTitle)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, swaps)
	assert.Equal(t, []string{"Foundation", "Dune", "Neuromancer"}, titles(svc.ListBooks(context.Background())))
}

func TestTeardownKeepsBooksOnJournalFailure(t *testing.T) {
	svc := newTestService(t)
	seedClassics(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	released, err := svc.Teardown(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, released)
	assert.Equal(t, 3, svc.CountBooks(context.Background()))

	released, err = svc.Teardown(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, released)
}

func TestBookVersionFollowsJournal(t *testing.T) {
	svc := newTestService(t)
	seedClassics(t, svc)
	ctx := context.Background()

	book, err := svc.IssueBook(ctx, "dune")
	require.NoError(t, err)
	assert.Equal(t, 2, book.Version)

	book, err = svc.SubmitBook(ctx, "dune")
	require.NoError(t, err)
	assert.Equal(t, 3, book.Version)

	removed, err := svc.DeleteBook(ctx, "Dune")
	require.NoError(t, err)
	assert.Equal(t, 4, removed.Version)
}

func TestHistory(t *testing.T) {
	svc := newTestService(t)
	seedClassics(t, svc)
	ctx := context.Background()

	_, err := svc.IssueBook(ctx, "dune")
	require.NoError(t, err)
	_, err = svc.IssueBook(ctx, "neuromancer")
	require.NoError(t, err)
	_, err = svc.SubmitBook(ctx, "dune")
	require.NoError(t, err)

	entries, err := svc.History(ctx, "DUNE")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, BookAddedEventType, entries[0].Type)
	assert.Equal(t, "Herbert, 1965", entries[0].Detail)
	assert.Equal(t, BookIssuedEventType, entries[1].Type)
	assert.Equal(t, BookReturnedEventType, entries[2].Type)
	for _, e := range entries {
		assert.Equal(t, "Dune", e.Title)
	}

	_, err = svc.History(ctx, "Snow Crash")
	assert.ErrorIs(t, err, ErrNotFound)
}
