package core

import (
	"errors"
	"strings"
)

const (
	Income  TransactionType = "income"
	Outcome TransactionType = "outcome"
)

type (
	TransactionType string

	Money struct {
		Cents int64
	}

	// Category groups transactions under a named label ("Housing", "Salary").
	// Titles are intended to be unique; lookups go by exact title match.
	Category struct {
		ID    string
		Title string
	}

	// Transaction is a single recorded money movement. Transactions are
	// never mutated after creation; they are only created and deleted.
	Transaction struct {
		ID         string
		Title      string
		Value      Money
		Type       TransactionType
		CategoryID string
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidType         = errors.New("type must be income or outcome")
	ErrEmptyTitle          = errors.New("empty title")
	ErrEmptyCategory       = errors.New("empty category title")
	ErrInsufficientFunds   = errors.New("not enough balance in account")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrMissingSource       = errors.New("missing import source")
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Outcome
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if len(strings.TrimSpace(t.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Value.Validate(); err != nil {
		return err
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return ErrEmptyCategory
	}
	return nil
}
