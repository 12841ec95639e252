package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gofinances/internal/amqp"
	"gofinances/internal/core"
	"gofinances/internal/log"
	"gofinances/internal/store"
)

// CreateTransactionInput carries the caller-supplied fields for a new
// transaction. Category is a title; the matching category is looked up or
// created on demand.
type CreateTransactionInput struct {
	Title    string
	Value    core.Money
	Type     core.TransactionType
	Category string
}

// TransactionService implements transaction creation, deletion, listing and
// balance computation over the injected stores.
type TransactionService struct {
	categories   store.CategoryStore
	transactions store.TransactionStore
	events       *amqp.Client
}

func NewTransactionService(categories store.CategoryStore, transactions store.TransactionStore, events *amqp.Client) *TransactionService {
	return &TransactionService{
		categories:   categories,
		transactions: transactions,
		events:       events,
	}
}

// Create validates the input against the current balance, resolves the
// category (lookup-or-create by title), and persists the transaction.
//
// The balance check and the insert are not atomic with respect to concurrent
// Create calls; callers needing strict non-negative balance must serialize
// writes or enforce the invariant in the storage layer.
func (s *TransactionService) Create(ctx context.Context, in CreateTransactionInput) (core.Transaction, error) {
	t := core.Transaction{
		Title: strings.TrimSpace(in.Title),
		Value: in.Value,
		Type:  in.Type,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	categoryTitle := strings.TrimSpace(in.Category)
	if categoryTitle == "" {
		return core.Transaction{}, core.ErrEmptyCategory
	}

	if t.Type == core.Outcome {
		balance, err := s.Balance(ctx)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("compute balance: %w", err)
		}
		if t.Value.Cents > balance.Total.Cents {
			return core.Transaction{}, core.ErrInsufficientFunds
		}
	}

	category, err := s.resolveCategory(ctx, categoryTitle)
	if err != nil {
		return core.Transaction{}, err
	}
	t.CategoryID = category.ID

	saved, err := s.transactions.Save(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.publishCreated(ctx, saved.ID)

	slog.InfoContext(ctx, "Transaction created",
		log.FieldComponent, log.ComponentService,
		log.FieldOperation, log.OpCreate,
		log.FieldTransaction, saved.ID,
		log.FieldTitle, saved.Title,
		log.FieldValueCents, saved.Value.Cents,
		"value", core.FormatDecimal(saved.Value.Cents),
		log.FieldType, saved.Type,
		log.FieldCategory, category.Title)

	return saved, nil
}

// Delete removes the transaction with the given id. Categories are never
// deleted by this path, even when they become unreferenced.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	existing, err := s.transactions.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find transaction: %w", err)
	}
	if existing == nil {
		return core.ErrTransactionNotFound
	}

	if err := s.transactions.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.publishDeleted(ctx, id)

	slog.InfoContext(ctx, "Transaction deleted",
		log.FieldComponent, log.ComponentService,
		log.FieldOperation, log.OpDelete,
		log.FieldTransaction, id)
	return nil
}

// List returns every stored transaction together with the current balance.
func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, core.Balance, error) {
	transactions, err := s.transactions.ListAll(ctx)
	if err != nil {
		return nil, core.Balance{}, fmt.Errorf("list transactions: %w", err)
	}
	balance, err := s.Balance(ctx)
	if err != nil {
		return nil, core.Balance{}, err
	}
	if transactions == nil {
		transactions = []core.Transaction{}
	}

	slog.DebugContext(ctx, "Transactions listed",
		log.FieldComponent, log.ComponentService,
		log.FieldOperation, log.OpList,
		log.FieldCount, len(transactions))
	return transactions, balance, nil
}

// Balance returns the current derived balance.
func (s *TransactionService) Balance(ctx context.Context) (core.Balance, error) {
	income, outcome, err := s.transactions.Totals(ctx)
	if err != nil {
		return core.Balance{}, fmt.Errorf("aggregate totals: %w", err)
	}
	balance := core.NewBalance(income, outcome)

	slog.DebugContext(ctx, "Balance computed",
		log.FieldComponent, log.ComponentService,
		log.FieldOperation, log.OpBalance,
		"total", core.FormatDecimal(balance.Total.Cents))
	return balance, nil
}

// resolveCategory finds the category with the exact title, creating it when
// absent. Lookup-or-create is idempotent, so retrying a failed Create call
// is safe even if the category was persisted on the first attempt.
func (s *TransactionService) resolveCategory(ctx context.Context, title string) (core.Category, error) {
	existing, err := s.categories.FindByTitle(ctx, title)
	if err != nil {
		return core.Category{}, fmt.Errorf("find category: %w", err)
	}
	if existing != nil {
		return *existing, nil
	}

	created, err := s.categories.Create(ctx, title)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

func (s *TransactionService) publishCreated(ctx context.Context, id string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransactionCreated(ctx, id); err != nil {
		// The write already succeeded; a lost event never fails the request.
		slog.ErrorContext(ctx, "Failed to publish created event",
			log.FieldTransaction, id, log.FieldError, err)
	}
}

func (s *TransactionService) publishDeleted(ctx context.Context, id string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransactionDeleted(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish deleted event",
			log.FieldTransaction, id, log.FieldError, err)
	}
}
