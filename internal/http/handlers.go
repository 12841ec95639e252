package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gofinances/internal/core"
	"gofinances/internal/log"
	"gofinances/internal/services"
)

const listCacheKey = "all"

type categoryJSON struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type transactionJSON struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Value    float64      `json:"value"`
	Type     string       `json:"type"`
	Category categoryJSON `json:"category"`
}

type balanceJSON struct {
	Income  float64 `json:"income"`
	Outcome float64 `json:"outcome"`
	Total   float64 `json:"total"`
}

type listResponse struct {
	Transactions []transactionJSON `json:"transactions"`
	Balance      balanceJSON       `json:"balance"`
}

type importResponse struct {
	Transactions []transactionJSON `json:"transactions"`
	Count        int               `json:"count"`
}

type createRequest struct {
	Title    string      `json:"title"`
	Value    json.Number `json:"value"`
	Type     string      `json:"type"`
	Category string      `json:"category"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTransactions(w, r)
	case http.MethodPost:
		s.handleCreateTransaction(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	if resp, found := s.listCache.Get(listCacheKey); found {
		slog.DebugContext(r.Context(), "Transaction list cache hit", log.FieldCount, len(resp.Transactions))
		writeJSON(w, http.StatusOK, resp)
		return
	}

	transactions, balance, err := s.transactions.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Transaction list error", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	titles, err := s.categoryTitles(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Category list error", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := listResponse{
		Transactions: make([]transactionJSON, 0, len(transactions)),
		Balance: balanceJSON{
			Income:  balance.Income.Decimal(),
			Outcome: balance.Outcome.Decimal(),
			Total:   balance.Total.Decimal(),
		},
	}
	for _, t := range transactions {
		resp.Transactions = append(resp.Transactions, toTransactionJSON(t, titles))
	}

	s.listCache.Set(listCacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Value.String())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid value: must be a positive amount")
		return
	}

	created, err := s.transactions.Create(r.Context(), services.CreateTransactionInput{
		Title:    req.Title,
		Value:    core.Money{Cents: cents},
		Type:     core.TransactionType(strings.TrimSpace(req.Type)),
		Category: req.Category,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "Transaction create error")
		return
	}

	s.listCache.Delete(listCacheKey)

	writeJSON(w, http.StatusCreated, transactionJSON{
		ID:    created.ID,
		Title: created.Title,
		Value: created.Value.Decimal(),
		Type:  string(created.Type),
		Category: categoryJSON{
			ID:    created.CategoryID,
			Title: strings.TrimSpace(req.Category),
		},
	})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.Header().Set("Allow", "DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/transactions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}

	if err := s.transactions.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err, "Transaction delete error")
		return
	}

	s.listCache.Delete(listCacheKey)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing 'file' field")
		return
	}
	defer func() { _ = file.Close() }()

	path, err := s.saveUpload(file, header.Filename)
	if err != nil {
		slog.ErrorContext(r.Context(), "Upload save error", log.FieldError, err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	imported, err := s.importer.Import(r.Context(), path)
	if err != nil {
		// The service unlinks the file only on success.
		_ = os.Remove(path)
		s.writeServiceError(w, r, err, "Import error")
		return
	}

	s.listCache.Delete(listCacheKey)

	titles, err := s.categoryTitles(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Category list error", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := importResponse{
		Transactions: make([]transactionJSON, 0, len(imported)),
		Count:        len(imported),
	}
	for _, t := range imported {
		resp.Transactions = append(resp.Transactions, toTransactionJSON(t, titles))
	}
	writeJSON(w, http.StatusCreated, resp)
}

// saveUpload stores the uploaded stream under the upload directory with a
// unique name, returning the stored path.
func (s *Server) saveUpload(src io.Reader, filename string) (string, error) {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) {
		base = "upload.csv"
	}

	dst, err := os.CreateTemp(s.uploadDir, "import-*-"+base)
	if err != nil {
		return "", err
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func (s *Server) categoryTitles(r *http.Request) (map[string]string, error) {
	cats, err := s.categories.List(r.Context())
	if err != nil {
		return nil, err
	}
	titles := make(map[string]string, len(cats))
	for _, c := range cats {
		titles[c.ID] = c.Title
	}
	return titles, nil
}

func toTransactionJSON(t core.Transaction, titles map[string]string) transactionJSON {
	return transactionJSON{
		ID:    t.ID,
		Title: t.Title,
		Value: t.Value.Decimal(),
		Type:  string(t.Type),
		Category: categoryJSON{
			ID:    t.CategoryID,
			Title: titles[t.CategoryID],
		},
	}
}

// writeServiceError maps domain errors to HTTP statuses, hiding internals on 500s.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), logMsg, log.FieldError, err, log.FieldPath, r.URL.Path)
		writeError(w, status, "internal server error")
		return
	}
	slog.WarnContext(r.Context(), logMsg, log.FieldError, err, log.FieldPath, r.URL.Path)
	writeError(w, status, err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInsufficientFunds),
		errors.Is(err, core.ErrMissingSource),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrEmptyTitle),
		errors.Is(err, core.ErrEmptyCategory):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
