package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"gofinances/internal/core"
)

// Store is an in-memory implementation of both persistence ports. It backs
// the default data backend and the service tests.
type Store struct {
	mu           sync.Mutex
	categories   []core.Category
	transactions []core.Transaction
}

func New() *Store {
	return &Store{}
}

// FindByTitle implements store.CategoryStore.
func (s *Store) FindByTitle(_ context.Context, title string) (*core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.Title == title {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

// FindByTitles implements store.CategoryStore.
func (s *Store) FindByTitles(_ context.Context, titles []string) ([]core.Category, error) {
	wanted := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		wanted[t] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.categories {
		if _, ok := wanted[c.Title]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Create implements store.CategoryStore.
func (s *Store) Create(_ context.Context, title string) (core.Category, error) {
	c := core.Category{ID: uuid.NewString(), Title: title}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append(s.categories, c)
	return c, nil
}

// CreateBulk implements store.CategoryStore.
func (s *Store) CreateBulk(ctx context.Context, titles []string) ([]core.Category, error) {
	out := make([]core.Category, 0, len(titles))
	for _, title := range titles {
		c, err := s.Create(ctx, title)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// List implements store.CategoryStore.
func (s *Store) List(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.categories...), nil
}

// FindByID implements store.TransactionStore.
func (s *Store) FindByID(_ context.Context, id string) (*core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.ID == id {
			found := t
			return &found, nil
		}
	}
	return nil, nil
}

// Save implements store.TransactionStore.
func (s *Store) Save(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t.ID = uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, t)
	return t, nil
}

// SaveBulk implements store.TransactionStore.
func (s *Store) SaveBulk(ctx context.Context, ts []core.Transaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(ts))
	for _, t := range ts {
		saved, err := s.Save(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	return out, nil
}

// Delete implements store.TransactionStore.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.transactions {
		if t.ID == id {
			s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
			return nil
		}
	}
	return core.ErrTransactionNotFound
}

// ListAll implements store.TransactionStore.
func (s *Store) ListAll(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.transactions...), nil
}

// Totals implements store.TransactionStore.
func (s *Store) Totals(_ context.Context) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance := core.ComputeBalance(s.transactions)
	return balance.Income.Cents, balance.Outcome.Cents, nil
}
