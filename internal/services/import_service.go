package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gofinances/internal/amqp"
	"gofinances/internal/core"
	"gofinances/internal/log"
	"gofinances/internal/store"
)

// ImportService ingests transactions in bulk from CSV files. Each data row
// is `title,type,value,category`; the first row is a header.
type ImportService struct {
	categories   store.CategoryStore
	transactions store.TransactionStore
	events       *amqp.Client
}

func NewImportService(categories store.CategoryStore, transactions store.TransactionStore, events *amqp.Client) *ImportService {
	return &ImportService{
		categories:   categories,
		transactions: transactions,
		events:       events,
	}
}

// csvRow is one accepted data row, fields trimmed, value parsed.
type csvRow struct {
	title    string
	txType   core.TransactionType
	cents    int64
	category string
}

// Import reads the CSV file at path, creates any categories the rows
// reference that do not yet exist, persists all transactions in one batch
// and removes the source file. Malformed rows are skipped, never fatal.
//
// The whole stream is consumed before any category resolution starts: the
// accumulated title list is the key set for the single batched lookup.
func (s *ImportService) Import(ctx context.Context, path string) ([]core.Transaction, error) {
	if strings.TrimSpace(path) == "" {
		return nil, core.ErrMissingSource
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import source: %w", err)
	}
	defer f.Close()

	rows, titles, skipped, err := s.collectRows(ctx, f)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped malformed import rows",
			"skipped", skipped, "accepted", len(rows), log.FieldSource, path)
	}

	pool, err := s.resolveCategories(ctx, titles)
	if err != nil {
		return nil, err
	}

	transactions := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		transactions = append(transactions, core.Transaction{
			Title:      row.title,
			Value:      core.Money{Cents: row.cents},
			Type:       row.txType,
			CategoryID: pool[row.category].ID,
		})
	}

	saved, err := s.transactions.SaveBulk(ctx, transactions)
	if err != nil {
		return nil, fmt.Errorf("save imported transactions: %w", err)
	}

	// Cleanup is best-effort; the import itself already succeeded.
	if err := os.Remove(path); err != nil {
		slog.WarnContext(ctx, "Failed to remove import source",
			log.FieldSource, path, log.FieldError, err)
	}

	if s.events != nil {
		if err := s.events.PublishImportCompleted(ctx, len(saved)); err != nil {
			slog.ErrorContext(ctx, "Failed to publish import event",
				log.FieldCount, len(saved), log.FieldError, err)
		}
	}

	slog.InfoContext(ctx, "Import completed",
		log.FieldComponent, log.ComponentImport,
		log.FieldOperation, log.OpImport,
		log.FieldSource, path,
		log.FieldCount, len(saved),
		"skipped_rows", skipped)

	return saved, nil
}

// collectRows streams the CSV source to the end, returning the accepted rows
// in source order and every referenced category title (duplicates included).
func (s *ImportService) collectRows(ctx context.Context, src io.Reader) ([]csvRow, []string, int, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	// Header row; an empty file yields an empty import.
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, 0, nil
		}
		return nil, nil, 0, fmt.Errorf("read csv header: %w", err)
	}

	var (
		rows    []csvRow
		titles  []string
		skipped int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, 0, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A structurally broken line is treated like any other bad row.
			skipped++
			continue
		}

		row, ok := parseRow(record)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, row)
		titles = append(titles, row.category)
	}

	return rows, titles, skipped, nil
}

// parseRow trims and validates a raw record. Rows missing title, type or
// value, or whose type or value do not parse, are rejected.
func parseRow(record []string) (csvRow, bool) {
	if len(record) < 4 {
		return csvRow{}, false
	}

	title := strings.TrimSpace(record[0])
	typeStr := strings.TrimSpace(record[1])
	valueStr := strings.TrimSpace(record[2])
	category := strings.TrimSpace(record[3])

	if title == "" || typeStr == "" || valueStr == "" || category == "" {
		return csvRow{}, false
	}

	txType := core.TransactionType(typeStr)
	if !txType.Valid() {
		return csvRow{}, false
	}

	cents, err := core.ParseDecimalToCents(valueStr)
	if err != nil {
		return csvRow{}, false
	}

	return csvRow{title: title, txType: txType, cents: cents, category: category}, true
}

// resolveCategories performs the batched category resolution: one lookup for
// all referenced titles, one bulk create for the missing ones (deduplicated
// in first-occurrence order), returning a pool keyed by title. Keying by
// title guarantees pool uniqueness before transactions are matched.
func (s *ImportService) resolveCategories(ctx context.Context, titles []string) (map[string]core.Category, error) {
	pool := make(map[string]core.Category)
	if len(titles) == 0 {
		return pool, nil
	}

	existing, err := s.categories.FindByTitles(ctx, titles)
	if err != nil {
		return nil, fmt.Errorf("find existing categories: %w", err)
	}
	for _, c := range existing {
		pool[c.Title] = c
	}

	var missing []string
	for _, title := range titles {
		if _, ok := pool[title]; ok {
			continue
		}
		missing = append(missing, title)
		// Reserve the slot so duplicates collapse to the first occurrence.
		pool[title] = core.Category{}
	}

	created, err := s.categories.CreateBulk(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("create categories: %w", err)
	}
	for _, c := range created {
		pool[c.Title] = c
	}

	slog.InfoContext(ctx, "Categories resolved for import",
		"referenced", len(titles),
		"existing", len(existing),
		"created", len(created))

	return pool, nil
}
