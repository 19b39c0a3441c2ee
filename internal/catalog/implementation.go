package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"libshelf/internal/circulation"
	"libshelf/pkg/eventstore"
)

const (
	bookAggregate    = "book"
	catalogAggregate = "catalog"
	streamBatchSize  = 100
)

// service implements the Service interface.
type service struct {
	mu sync.Mutex
	// books is kept ascending by year after every insertion; SortBooks may
	// reorder it by another key.
	books []*Book
	id    uuid.UUID

	eventStore *eventstore.EventStore
	logger     *slog.Logger
	tracer     trace.Tracer
	operations metric.Int64Counter
	held       metric.Int64UpDownCounter
}

// Option configures the catalog service.
type Option func(*service)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithTracerProvider sets the provider spans are created from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *service) {
		s.tracer = tp.Tracer("libshelf/catalog")
	}
}

// WithMeterProvider sets the provider the operation counters come from.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *service) {
		s.initInstruments(mp.Meter("libshelf/catalog"))
	}
}

// NewService creates a new, empty catalog that journals its changes to es.
func NewService(es *eventstore.EventStore, opts ...Option) Service {
	s := &service{
		id:         uuid.New(),
		eventStore: es,
		logger:     slog.Default(),
		tracer:     otel.Tracer("libshelf/catalog"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.operations == nil {
		s.initInstruments(otel.Meter("libshelf/catalog"))
	}
	return s
}

func (s *service) initInstruments(meter metric.Meter) {
	var err error
	s.operations, err = meter.Int64Counter("libshelf.catalog.operations",
		metric.WithDescription("Catalog operations by outcome"),
	)
	if err != nil {
		s.logger.Warn("falling back to noop operations counter", "error", err)
		s.operations, _ = noop.Meter{}.Int64Counter("libshelf.catalog.operations")
	}
	s.held, err = meter.Int64UpDownCounter("libshelf.catalog.books",
		metric.WithDescription("Books currently held by the catalog"),
	)
	if err != nil {
		s.logger.Warn("falling back to noop books counter", "error", err)
		s.held, _ = noop.Meter{}.Int64UpDownCounter("libshelf.catalog.books")
	}
}

// AddBook inserts a new, available book keeping the catalog ascending by
// year. A book whose year ties existing entries goes after them.
func (s *service) AddBook(ctx context.Context, title, author string, year int) (Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.add",
		trace.WithAttributes(
			attribute.String("book.title", title),
			attribute.Int("book.year", year),
		),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	book := &Book{
		ID:     uuid.New(),
		Title:  title,
		Author: author,
		Year:   year,
		Issued: circulation.Available,
	}

	version, err := s.appendBookEvent(ctx, book.ID, BookAddedEventType, BookAddedEvent{
		BookID: book.ID,
		Title:  title,
		Author: author,
		Year:   year,
	})
	if err != nil {
		return Book{}, s.fail(ctx, span, "add", err)
	}
	book.Version = version

	pos := s.insertPosition(year)
	s.books = append(s.books, nil)
	copy(s.books[pos+1:], s.books[pos:])
	s.books[pos] = book

	span.SetAttributes(attribute.Int("book.position", pos))
	s.held.Add(ctx, 1)
	s.record(ctx, "add", nil)
	s.logger.DebugContext(ctx, "book added", "title", title, "year", year, "position", pos)

	return *book, nil
}

// insertPosition returns the index a book of the given year is inserted at:
// the front when the catalog is empty or year precedes the first entry,
// otherwise just past the last entry whose year is less than or equal.
func (s *service) insertPosition(year int) int {
	if len(s.books) == 0 || year < s.books[0].Year {
		return 0
	}
	pos := 0
	for pos+1 < len(s.books) && s.books[pos+1].Year <= year {
		pos++
	}
	return pos + 1
}

// DeleteBook removes the first book whose title matches exactly.
func (s *service) DeleteBook(ctx context.Context, title string) (Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.delete",
		trace.WithAttributes(attribute.String("book.title", title)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.books) == 0 {
		s.record(ctx, "delete", ErrEmptyCatalog)
		return Book{}, ErrEmptyCatalog
	}

	idx := -1
	for i, b := range s.books {
		if b.Title == title {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.record(ctx, "delete", ErrNotFound)
		return Book{}, ErrNotFound
	}

	book := s.books[idx]
	version, err := s.appendBookEvent(ctx, book.ID, BookRemovedEventType, BookRemovedEvent{BookID: book.ID, Title: book.Title})
	if err != nil {
		return Book{}, s.fail(ctx, span, "delete", err)
	}
	book.Version = version

	copy(s.books[idx:], s.books[idx+1:])
	s.books[len(s.books)-1] = nil
	s.books = s.books[:len(s.books)-1]

	s.held.Add(ctx, -1)
	s.record(ctx, "delete", nil)
	s.logger.DebugContext(ctx, "book deleted", "title", title, "position", idx)

	return *book, nil
}

// SearchBook returns a copy of the first book whose title matches,
// ignoring case.
func (s *service) SearchBook(ctx context.Context, title string) (Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.search",
		trace.WithAttributes(attribute.String("book.title", title)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	book := s.find(title)
	if book == nil {
		s.record(ctx, "search", ErrNotFound)
		return Book{}, ErrNotFound
	}
	s.record(ctx, "search", nil)
	return *book, nil
}

func (s *service) find(title string) *Book {
	want := fold(title)
	for _, b := range s.books {
		if fold(b.Title) == want {
			return b
		}
	}
	return nil
}

// CountBooks returns the number of books held.
func (s *service) CountBooks(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.books)
}

// ListBooks returns a snapshot of every book in current order.
func (s *service) ListBooks(ctx context.Context) []Book {
	s.mu.Lock()
	defer s.mu.Unlock()

	books := make([]Book, len(s.books))
	for i, b := range s.books {
		books[i] = *b
	}
	return books
}

// IssueBook marks the matching book as issued.
func (s *service) IssueBook(ctx context.Context, title string) (Book, error) {
	return s.transition(ctx, "issue", title, BookIssuedEventType, circulation.Status.Issue)
}

// SubmitBook marks the matching book as returned.
func (s *service) SubmitBook(ctx context.Context, title string) (Book, error) {
	return s.transition(ctx, "submit", title, BookReturnedEventType, circulation.Status.Return)
}

func (s *service) transition(ctx context.Context, op, title, eventType string, next func(circulation.Status) (circulation.Status, error)) (Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog."+op,
		trace.WithAttributes(attribute.String("book.title", title)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	book := s.find(title)
	if book == nil {
		s.record(ctx, op, ErrNotFound)
		return Book{}, ErrNotFound
	}

	status, err := next(book.Issued)
	if err != nil {
		s.record(ctx, op, err)
		return *book, err
	}

	var data any = circulation.BookIssuedEvent{BookID: book.ID, Title: book.Title}
	if eventType == BookReturnedEventType {
		data = circulation.BookReturnedEvent{BookID: book.ID, Title: book.Title}
	}
	version, err := s.appendBookEvent(ctx, book.ID, eventType, data)
	if err != nil {
		return Book{}, s.fail(ctx, span, op, err)
	}
	book.Version = version
	book.Issued = status

	s.record(ctx, op, nil)
	s.logger.DebugContext(ctx, "book status changed", "op", op, "title", book.Title, "issued", status.String())

	return *book, nil
}

// SortBooks reorders the whole catalog by key and returns the swap count.
func (s *service) SortBooks(ctx context.Context, key SortKey) (int, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.sort",
		trace.WithAttributes(attribute.String("sort.key", key.String())),
	)
	defer span.End()

	if !key.Valid() {
		s.record(ctx, "sort", ErrInvalidSortKey)
		return 0, ErrInvalidSortKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := slices.Clone(s.books)
	swaps := bubbleSort(sorted, key)
	span.SetAttributes(attribute.Int("sort.swaps", swaps))

	if err := s.appendCatalogEvent(ctx, CatalogSortedEventType, CatalogSortedEvent{Key: key.String(), Swaps: swaps}); err != nil {
		return 0, s.fail(ctx, span, "sort", err)
	}
	s.books = sorted

	s.record(ctx, "sort", nil)
	s.logger.DebugContext(ctx, "catalog sorted", "key", key.String(), "swaps", swaps)
	return swaps, nil
}

// Teardown releases every book and returns how many were held.
func (s *service) Teardown(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.teardown")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	released := len(s.books)
	span.SetAttributes(attribute.Int("books.released", released))

	if err := s.appendCatalogEvent(ctx, CatalogClearedEventType, CatalogClearedEvent{Released: released}); err != nil {
		return 0, s.fail(ctx, span, "teardown", err)
	}
	clear(s.books)
	s.books = nil
	s.held.Add(ctx, int64(-released))

	s.record(ctx, "teardown", nil)
	s.logger.DebugContext(ctx, "catalog torn down", "released", released)
	return released, nil
}

func (s *service) appendCatalogEvent(ctx context.Context, eventType string, data any) error {
	_, err := s.appendEvent(ctx, s.id, catalogAggregate, eventType, data)
	return err
}

// appendBookEvent journals one event for a book and returns its new version.
func (s *service) appendBookEvent(ctx context.Context, bookID uuid.UUID, eventType string, data any) (int, error) {
	return s.appendEvent(ctx, bookID, bookAggregate, eventType, data)
}

// appendEvent appends one event at the aggregate's current journal version.
func (s *service) appendEvent(ctx context.Context, id uuid.UUID, aggregateType, eventType string, data any) (int, error) {
	event, err := eventstore.NewEvent(eventType, data)
	if err != nil {
		return 0, err
	}
	version, err := s.eventStore.GetCurrentVersion(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to read version: %w", err)
	}
	if err := s.eventStore.AppendEvents(ctx, id, aggregateType, version, []eventstore.Event{event}); err != nil {
		return 0, fmt.Errorf("failed to append event: %w", err)
	}
	return version + 1, nil
}

// History returns the journal entries of the first book whose title
// matches, ignoring case, oldest first.
func (s *service) History(ctx context.Context, title string) ([]Activity, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.history",
		trace.WithAttributes(attribute.String("book.title", title)),
	)
	defer span.End()

	s.mu.Lock()
	book := s.find(title)
	if book == nil {
		s.mu.Unlock()
		s.record(ctx, "history", ErrNotFound)
		return nil, ErrNotFound
	}
	id := book.ID
	s.mu.Unlock()

	events, err := s.eventStore.LoadEvents(ctx, id, 1, 0)
	if errors.Is(err, eventstore.ErrAggregateNotFound) {
		s.record(ctx, "history", ErrNotFound)
		return nil, fmt.Errorf("%w: no journal for %q", ErrNotFound, title)
	}
	if err != nil {
		return nil, s.fail(ctx, span, "history", err)
	}

	entries := make([]Activity, 0, len(events))
	for _, event := range events {
		entry, err := describe(event)
		if err != nil {
			return nil, s.fail(ctx, span, "history", err)
		}
		entries = append(entries, entry)
	}

	span.SetAttributes(attribute.Int("history.entries", len(entries)))
	s.record(ctx, "history", nil)
	return entries, nil
}

// Activity replays the journal into a readable log, oldest first.
func (s *service) Activity(ctx context.Context) ([]Activity, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.activity")
	defer span.End()

	var entries []Activity
	var from int64
	for {
		batch, err := s.eventStore.StreamEvents(ctx, from, streamBatchSize)
		if err != nil {
			return nil, s.fail(ctx, span, "activity", err)
		}
		if len(batch) == 0 {
			break
		}
		for _, event := range batch {
			entry, err := describe(event)
			if err != nil {
				return nil, s.fail(ctx, span, "activity", err)
			}
			entries = append(entries, entry)
		}
		from = batch[len(batch)-1].ID
	}

	span.SetAttributes(attribute.Int("activity.entries", len(entries)))
	return entries, nil
}

func describe(event eventstore.Event) (Activity, error) {
	entry := Activity{Seq: event.ID, Type: event.EventType}
	switch event.EventType {
	case BookAddedEventType:
		var data BookAddedEvent
		if err := event.Decode(&data); err != nil {
			return entry, err
		}
		entry.Title = data.Title
		entry.Detail = fmt.Sprintf("%s, %d", data.Author, data.Year)
	case BookRemovedEventType:
		var data BookRemovedEvent
		if err := event.Decode(&data); err != nil {
			return entry, err
		}
		entry.Title = data.Title
	case BookIssuedEventType:
		var data circulation.BookIssuedEvent
		if err := event.Decode(&data); err != nil {
			return entry, err
		}
		entry.Title = data.Title
	case BookReturnedEventType:
		var data circulation.BookReturnedEvent
		if err := event.Decode(&data); err != nil {
			return entry, err
		}
		entry.Title = data.Title
	case CatalogSortedEventType:
		var data CatalogSortedEvent
		if err := event.Decode(&data); err != nil {
			return entry, err
		}
		entry.Detail = fmt.Sprintf("by %s (swaps: %d)", data.Key, data.Swaps)
	case CatalogClearedEventType:
		var data CatalogClearedEvent
		if err := event.Decode(&data); err != nil {
			return entry, err
		}
		entry.Detail = fmt.Sprintf("%d books released", data.Released)
	}
	return entry, nil
}

// record counts one operation under its outcome label.
func (s *service) record(ctx context.Context, op string, err error) {
	s.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome(err)),
	))
}

// fail marks span as errored, counts the failure and logs it.
func (s *service) fail(ctx context.Context, span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.record(ctx, op, err)
	s.logger.ErrorContext(ctx, "catalog operation failed", "op", op, "error", err)
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyCatalog):
		return "empty_catalog"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyIssued):
		return "already_issued"
	case errors.Is(err, ErrNotIssued):
		return "not_issued"
	case errors.Is(err, ErrInvalidSortKey):
		return "invalid_sort_key"
	default:
		return "error"
	}
}
