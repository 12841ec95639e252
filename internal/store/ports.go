package store

import (
	"context"

	"gofinances/internal/core"
)

// Ports for the persistence collaborators. Services receive these at
// construction; concrete implementations live in store/memory and storage.
type (
	CategoryStore interface {
		// FindByTitle returns the category with the exact title, or nil
		// when no such category exists.
		FindByTitle(ctx context.Context, title string) (*core.Category, error)

		// FindByTitles returns all categories whose title is in the given
		// set, in one batched lookup.
		FindByTitles(ctx context.Context, titles []string) ([]core.Category, error)

		// Create persists a new category with the given title.
		Create(ctx context.Context, title string) (core.Category, error)

		// CreateBulk persists one category per title in a single batch and
		// returns them in input order.
		CreateBulk(ctx context.Context, titles []string) ([]core.Category, error)

		// List returns all categories.
		List(ctx context.Context) ([]core.Category, error)
	}

	TransactionStore interface {
		// FindByID returns the transaction with the given id, or nil when
		// it does not exist.
		FindByID(ctx context.Context, id string) (*core.Transaction, error)

		// Save persists a single transaction and returns it with its
		// assigned id.
		Save(ctx context.Context, t core.Transaction) (core.Transaction, error)

		// SaveBulk persists all transactions in one batch operation.
		SaveBulk(ctx context.Context, ts []core.Transaction) ([]core.Transaction, error)

		// Delete permanently removes the transaction with the given id.
		Delete(ctx context.Context, id string) error

		// ListAll returns every stored transaction.
		ListAll(ctx context.Context) ([]core.Transaction, error)

		// Totals returns the aggregated income and outcome cents across
		// all stored transactions.
		Totals(ctx context.Context) (incomeCents, outcomeCents int64, err error)
	}
)
