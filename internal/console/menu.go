package console

import (
	"context"
	"errors"
	"strconv"
)

const (
	choiceAdd = iota + 1
	choiceDelete
	choiceSearch
	choiceDisplay
	choiceSort
	choiceIssue
	choiceSubmit
	choiceCount
	choiceExit
	choiceActivity
	choiceHistory
)

func (h *Handler) printMenu() {
	h.printf("\n")
	h.printf("1. Add a book\n")
	h.printf("2. Delete a book\n")
	h.printf("3. Search for a book\n")
	h.printf("4. Display books\n")
	h.printf("5. Sort books\n")
	h.printf("6. Issue a book\n")
	h.printf("7. Submit a book\n")
	h.printf("8. Count books\n")
	h.printf("9. Exit\n")
	h.printf("10. Show activity log\n")
	h.printf("11. Show book history\n")
}

// Run presents the menu until the user exits or input ends, then tears the
// catalog down.
func (h *Handler) Run(ctx context.Context) error {
	h.logger.InfoContext(ctx, "console started")

	err := h.loop(ctx)
	if errors.Is(err, errInputClosed) {
		h.printf("\n")
		err = nil
	}

	// The catalog is released even when ctx was cancelled.
	released, tdErr := h.service.Teardown(context.WithoutCancel(ctx))
	h.logger.InfoContext(ctx, "console stopped", "released", released)
	return errors.Join(err, tdErr)
}

func (h *Handler) loop(ctx context.Context) error {
	handlers := map[int]func(context.Context) error{
		choiceAdd:      h.handleAddBook,
		choiceDelete:   h.handleDeleteBook,
		choiceSearch:   h.handleSearchBook,
		choiceDisplay:  h.handleDisplayBooks,
		choiceSort:     h.handleSortBooks,
		choiceIssue:    h.handleIssueBook,
		choiceSubmit:   h.handleSubmitBook,
		choiceCount:    h.handleCountBooks,
		choiceActivity: h.handleActivity,
		choiceHistory:  h.handleBookHistory,
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		h.printMenu()
		line, err := h.ask(h.cfg.Prompt)
		if err != nil {
			return err
		}

		choice, convErr := strconv.Atoi(line)
		if convErr == nil && choice == choiceExit {
			return nil
		}
		handle, ok := handlers[choice]
		if convErr != nil || !ok {
			h.logger.DebugContext(ctx, "invalid menu choice", "input", line)
			h.printf("Invalid choice. Please enter a valid option.\n")
			continue
		}

		if err := handle(ctx); err != nil {
			return err
		}
	}
}
