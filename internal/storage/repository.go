package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gofinances/internal/core"
	"gofinances/internal/log"
)

// SQLiteRepository implements both store.CategoryStore and
// store.TransactionStore on a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// FindByTitle implements store.CategoryStore.
func (r *SQLiteRepository) FindByTitle(ctx context.Context, title string) (*core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title FROM categories WHERE title = ? LIMIT 1`, title,
	).Scan(&c.ID, &c.Title)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category by title: %w", err)
	}
	return &c, nil
}

// FindByTitles implements store.CategoryStore with a single IN query.
func (r *SQLiteRepository) FindByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(titles))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(titles))
	for i, t := range titles {
		args[i] = t
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title FROM categories WHERE title IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("find categories by titles: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Title); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create implements store.CategoryStore.
func (r *SQLiteRepository) Create(ctx context.Context, title string) (core.Category, error) {
	c := core.Category{ID: uuid.NewString(), Title: title}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, title) VALUES (?, ?)`, c.ID, c.Title); err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}

	slog.InfoContext(ctx, "Category created",
		log.FieldComponent, log.ComponentStorage, "id", c.ID, log.FieldTitle, c.Title)
	return c, nil
}

// CreateBulk implements store.CategoryStore. All inserts run in one
// database transaction.
func (r *SQLiteRepository) CreateBulk(ctx context.Context, titles []string) ([]core.Category, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk category insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO categories (id, title) VALUES (?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare category insert: %w", err)
	}
	defer stmt.Close()

	out := make([]core.Category, 0, len(titles))
	for _, title := range titles {
		c := core.Category{ID: uuid.NewString(), Title: title}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Title); err != nil {
			return nil, fmt.Errorf("insert category %q: %w", title, err)
		}
		out = append(out, c)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk category insert: %w", err)
	}

	slog.InfoContext(ctx, "Categories created in bulk",
		log.FieldComponent, log.ComponentStorage, log.FieldCount, len(out))
	return out, nil
}

// List implements store.CategoryStore.
func (r *SQLiteRepository) List(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title FROM categories ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Title); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindByID implements store.TransactionStore.
func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*core.Transaction, error) {
	var t core.Transaction
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, value_cents, type, category_id FROM transactions WHERE id = ?`, id,
	).Scan(&t.ID, &t.Title, &t.Value.Cents, &t.Type, &t.CategoryID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction by id: %w", err)
	}
	return &t, nil
}

// Save implements store.TransactionStore.
func (r *SQLiteRepository) Save(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t.ID = uuid.NewString()
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, title, value_cents, type, category_id) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Value.Cents, t.Type, t.CategoryID); err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		log.FieldComponent, log.ComponentStorage,
		"id", t.ID,
		log.FieldTitle, t.Title,
		log.FieldValueCents, t.Value.Cents,
		log.FieldType, t.Type)

	return t, nil
}

// SaveBulk implements store.TransactionStore. The whole batch is persisted
// in one database transaction.
func (r *SQLiteRepository) SaveBulk(ctx context.Context, ts []core.Transaction) ([]core.Transaction, error) {
	if len(ts) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk transaction insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transactions (id, title, value_cents, type, category_id) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare transaction insert: %w", err)
	}
	defer stmt.Close()

	out := make([]core.Transaction, 0, len(ts))
	for _, t := range ts {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		t.ID = uuid.NewString()
		if _, err := stmt.ExecContext(ctx, t.ID, t.Title, t.Value.Cents, t.Type, t.CategoryID); err != nil {
			return nil, fmt.Errorf("insert transaction %q: %w", t.Title, err)
		}
		out = append(out, t)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk transaction insert: %w", err)
	}

	slog.InfoContext(ctx, "Transactions saved in bulk",
		log.FieldComponent, log.ComponentStorage, log.FieldCount, len(out))
	return out, nil
}

// Delete implements store.TransactionStore.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrTransactionNotFound
	}

	slog.InfoContext(ctx, "Transaction deleted",
		log.FieldComponent, log.ComponentStorage, "id", id)
	return nil
}

// ListAll implements store.TransactionStore.
func (r *SQLiteRepository) ListAll(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, value_cents, type, category_id FROM transactions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		if err := rows.Scan(&t.ID, &t.Title, &t.Value.Cents, &t.Type, &t.CategoryID); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Totals implements store.TransactionStore with a single aggregation query.
func (r *SQLiteRepository) Totals(ctx context.Context) (int64, int64, error) {
	var income, outcome int64
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'income' THEN value_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'outcome' THEN value_cents ELSE 0 END), 0)
		FROM transactions`,
	).Scan(&income, &outcome)
	if err != nil {
		return 0, 0, fmt.Errorf("aggregate totals: %w", err)
	}
	return income, outcome, nil
}
