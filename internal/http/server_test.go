package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gofinances/internal/services"
	"gofinances/internal/store/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st := memory.New()
	tm := services.NewTransactionService(st, st, nil)
	imp := services.NewImportService(st, st, nil)
	srv := NewServer(":0", tm, imp, st, t.TempDir(), 1<<20)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "")
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestCreateAndListTransactions(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/transactions",
		`{"title":"Salary","value":5000,"type":"income","category":"Salary"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}

	var created transactionJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == "" {
		t.Error("expected generated transaction id")
	}
	if created.Value != 5000 {
		t.Errorf("expected value 5000, got %v", created.Value)
	}
	if created.Category.Title != "Salary" {
		t.Errorf("expected category title Salary, got %q", created.Category.Title)
	}

	rr = doJSON(t, srv, http.MethodGet, "/transactions", "")
	if rr.Code != 200 {
		t.Fatalf("list status=%d", rr.Code)
	}
	var list listResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(list.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(list.Transactions))
	}
	if list.Transactions[0].Category.Title != "Salary" {
		t.Errorf("expected category title in list, got %q", list.Transactions[0].Category.Title)
	}
	if list.Balance.Income != 5000 || list.Balance.Total != 5000 {
		t.Errorf("unexpected balance: %+v", list.Balance)
	}
}

func TestCreateTransactionErrors(t *testing.T) {
	srv := newTestServer(t)

	// Outcome with no funds
	rr := doJSON(t, srv, http.MethodPost, "/transactions",
		`{"title":"Rent","value":1200,"type":"outcome","category":"Housing"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for insufficient funds, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not enough balance") {
		t.Errorf("expected insufficient funds message, got %s", rr.Body.String())
	}

	// Empty title
	rr = doJSON(t, srv, http.MethodPost, "/transactions",
		`{"title":"","value":10,"type":"income","category":"Misc"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty title, got %d", rr.Code)
	}

	// Unknown type
	rr = doJSON(t, srv, http.MethodPost, "/transactions",
		`{"title":"x","value":10,"type":"transfer","category":"Misc"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown type, got %d", rr.Code)
	}

	// Malformed JSON
	rr = doJSON(t, srv, http.MethodPost, "/transactions", `{"title":`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed JSON, got %d", rr.Code)
	}

	// Wrong method
	rr = doJSON(t, srv, http.MethodPut, "/transactions", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for PUT, got %d", rr.Code)
	}
}

func TestDeleteTransaction(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/transactions",
		`{"title":"Salary","value":5000,"type":"income","category":"Salary"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}
	var created transactionJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/transactions/"+created.ID, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body.String())
	}

	// Second delete must 404
	rr = doJSON(t, srv, http.MethodDelete, "/transactions/"+created.ID, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 on repeated delete, got %d", rr.Code)
	}

	// List no longer contains the transaction
	rr = doJSON(t, srv, http.MethodGet, "/transactions", "")
	var list listResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Transactions) != 0 {
		t.Errorf("expected empty list after delete, got %d", len(list.Transactions))
	}

	// Wrong method on the item path
	rr = doJSON(t, srv, http.MethodGet, "/transactions/"+created.ID, "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET on item path, got %d", rr.Code)
	}
}

func TestListCacheInvalidatedOnWrite(t *testing.T) {
	srv := newTestServer(t)

	// Prime the cache with an empty listing
	rr := doJSON(t, srv, http.MethodGet, "/transactions", "")
	if rr.Code != 200 {
		t.Fatalf("list status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPost, "/transactions",
		`{"title":"Salary","value":100,"type":"income","category":"Salary"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/transactions", "")
	var list listResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Transactions) != 1 {
		t.Errorf("expected fresh listing after create, got %d transactions", len(list.Transactions))
	}
}

func multipartCSV(t *testing.T, csv string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "import.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(csv)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestImportTransactions(t *testing.T) {
	srv := newTestServer(t)

	csv := "title,type,value,category\n" +
		"Salary,income,5000,Salary\n" +
		"Rent,outcome,1200,Housing\n" +
		"Groceries,outcome,400,Food\n"
	body, contentType := multipartCSV(t, csv)

	req := httptest.NewRequest(http.MethodPost, "/transactions/import", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("import status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp importResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode import response: %v", err)
	}
	if resp.Count != 3 {
		t.Fatalf("expected 3 imported transactions, got %d", resp.Count)
	}
	if resp.Transactions[1].Category.Title != "Housing" {
		t.Errorf("expected Housing category on second row, got %q", resp.Transactions[1].Category.Title)
	}

	rr = doJSON(t, srv, http.MethodGet, "/transactions", "")
	var list listResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Transactions) != 3 {
		t.Errorf("expected 3 transactions after import, got %d", len(list.Transactions))
	}
	if list.Balance.Total != 3400 {
		t.Errorf("expected total 3400 after import, got %v", list.Balance.Total)
	}
}

func TestImportMissingFileField(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("other", "value"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/transactions/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing file field, got %d", rr.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/transactions", "")
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff header, got %q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected DENY frame options, got %q", got)
	}
}

func TestRateLimiterBlocksBursts(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 60; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d unexpectedly limited", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("expected request 61 to be limited")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("limit must be per client")
	}
}

func TestLRUCacheEvictionAndTTL(t *testing.T) {
	c := newLRUCache[int](2, 50*time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3) // evicts a

	if _, found := c.Get("a"); found {
		t.Error("expected oldest entry evicted")
	}
	if v, found := c.Get("c"); !found || v != 3 {
		t.Errorf("expected c=3, got %v found=%v", v, found)
	}

	time.Sleep(60 * time.Millisecond)
	if _, found := c.Get("c"); found {
		t.Error("expected entry expired after TTL")
	}
	if cleaned := c.CleanExpired(); cleaned != 1 {
		t.Errorf("expected 1 expired entry cleaned (b), got %d", cleaned)
	}
}
