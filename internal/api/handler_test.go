package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/insightdelivered/spendsense/internal/category"
	"github.com/insightdelivered/spendsense/internal/logger"
	"github.com/insightdelivered/spendsense/internal/pipeline"
	"github.com/insightdelivered/spendsense/internal/service"
	"github.com/insightdelivered/spendsense/internal/session"
)

const ledgerDoc = `Account Statement
Date Description Amount Dr/Cr Balance
05.01.2024 Grocery 120,50 DR 1.379,50
10.01.2024 Salary 2.000,00 CR 3.379,50
15.01.2024 Grocery 45,25 DR 3.334,25
`

func setupTestApp(limiter *rate.Limiter) *fiber.App {
	reg := prometheus.NewRegistry()
	log := logger.NewNop()
	p := pipeline.New(pipeline.Config{Timeout: 5 * time.Second}, category.NewDefault(), log, pipeline.NewMetrics(reg))
	svc := service.NewStatementService(session.NewMemoryStore(time.Hour), p, log, 1<<20)
	return NewApp(ServerConfig{CorsAllowedOrigins: "*", MaxUploadBytes: 1 << 20}, NewHandler(svc, log, limiter), reg)
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	part.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func upload(t *testing.T, app *fiber.App, filename, content string) string {
	t.Helper()
	resp, body := do(t, app, uploadRequest(t, filename, content))
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("upload: expected 201, got %d: %s", resp.StatusCode, body)
	}
	var up UploadResponse
	if err := json.Unmarshal(body, &up); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if up.SessionID == "" {
		t.Fatal("upload returned no session id")
	}
	return up.SessionID
}

func TestHealthEndpoint(t *testing.T) {
	app := setupTestApp(nil)

	resp, body := do(t, app, httptest.NewRequest("GET", "/api/health", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]string
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["status"] != "ok" || result["service"] != "spendsense" {
		t.Errorf("unexpected health body: %v", result)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	app := setupTestApp(nil)

	req := httptest.NewRequest("POST", "/api/upload", nil)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=----test")
	resp, _ := do(t, app, req)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400 for missing file, got %d", resp.StatusCode)
	}
}

func TestUploadRejectsExtension(t *testing.T) {
	app := setupTestApp(nil)
	resp, _ := do(t, app, uploadRequest(t, "statement.docx", ledgerDoc))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestFullFlow(t *testing.T) {
	app := setupTestApp(nil)
	id := upload(t, app, "january.txt", ledgerDoc)

	resp, body := do(t, app, httptest.NewRequest("POST", "/api/process/"+id, nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("process: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var result struct {
		SessionID        string `json:"session_id"`
		FormatType       string `json:"format_type"`
		TotalAmount      string `json:"total_amount"`
		TransactionCount int    `json:"transaction_count"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if result.SessionID != id || result.FormatType != "ledger" || result.TransactionCount != 3 || result.TotalAmount != "1834.25" {
		t.Errorf("unexpected result: %+v", result)
	}

	// A second call returns the stored result.
	resp, again := do(t, app, httptest.NewRequest("POST", "/api/process/"+id, nil))
	if resp.StatusCode != fiber.StatusOK || !bytes.Equal(body, again) {
		t.Errorf("repeat process: got %d, body changed: %v", resp.StatusCode, !bytes.Equal(body, again))
	}

	resp, body = do(t, app, httptest.NewRequest("GET", "/api/status/"+id, nil))
	var status StatusResponse
	json.Unmarshal(body, &status)
	if resp.StatusCode != fiber.StatusOK || status.State != "completed" || status.Filename != "january.txt" {
		t.Errorf("status: got %d %+v", resp.StatusCode, status)
	}

	form := url.Values{"export_type": {"csv"}, "include_summary": {"false"}}
	req := httptest.NewRequest("POST", "/api/export/"+id, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, body = do(t, app, req)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("export: expected 200, got %d: %s", resp.StatusCode, body)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "january_transactions.csv") {
		t.Errorf("content disposition: %q", cd)
	}
	if lines := strings.Count(strings.TrimSpace(string(body)), "\n"); lines != 3 {
		t.Errorf("csv: expected header + 3 rows, got %d newlines", lines)
	}

	resp, _ = do(t, app, httptest.NewRequest("POST", "/api/export/"+id, nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("default export: expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("default export content type: %q", ct)
	}
}

func TestProcessErrors(t *testing.T) {
	app := setupTestApp(nil)

	resp, _ := do(t, app, httptest.NewRequest("POST", "/api/process/does-not-exist", nil))
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("unknown session: expected 404, got %d", resp.StatusCode)
	}

	id := upload(t, app, "notes.txt", "Dear customer,\nthank you for banking with us.\n")
	resp, body := do(t, app, httptest.NewRequest("POST", "/api/process/"+id, nil))
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Errorf("unrecognized document: expected 422, got %d", resp.StatusCode)
	}
	var e ErrorResponse
	json.Unmarshal(body, &e)
	if e.Success || e.Error == "" {
		t.Errorf("error body: %+v", e)
	}

	resp, body = do(t, app, httptest.NewRequest("GET", "/api/status/"+id, nil))
	var status StatusResponse
	json.Unmarshal(body, &status)
	if status.State != "failed" || status.Error == "" {
		t.Errorf("status after failure: %d %+v", resp.StatusCode, status)
	}
}

func TestExportErrors(t *testing.T) {
	app := setupTestApp(nil)
	id := upload(t, app, "january.txt", ledgerDoc)

	resp, _ := do(t, app, httptest.NewRequest("POST", "/api/export/"+id, nil))
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("export before processing: expected 404, got %d", resp.StatusCode)
	}

	do(t, app, httptest.NewRequest("POST", "/api/process/"+id, nil))

	form := url.Values{"export_type": {"pdf"}}
	req := httptest.NewRequest("POST", "/api/export/"+id, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, _ = do(t, app, req)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("unknown export type: expected 400, got %d", resp.StatusCode)
	}
}

func TestResultAndDiscard(t *testing.T) {
	app := setupTestApp(nil)
	id := upload(t, app, "january.txt", ledgerDoc)

	resp, _ := do(t, app, httptest.NewRequest("GET", "/api/result/"+id, nil))
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("result before processing: expected 404, got %d", resp.StatusCode)
	}

	_, processed := do(t, app, httptest.NewRequest("POST", "/api/process/"+id, nil))
	resp, stored := do(t, app, httptest.NewRequest("GET", "/api/result/"+id, nil))
	if resp.StatusCode != fiber.StatusOK || !bytes.Equal(processed, stored) {
		t.Errorf("result: got %d, matches process response: %v", resp.StatusCode, bytes.Equal(processed, stored))
	}

	resp, _ = do(t, app, httptest.NewRequest("DELETE", "/api/session/"+id, nil))
	if resp.StatusCode != fiber.StatusNoContent {
		t.Errorf("discard: expected 204, got %d", resp.StatusCode)
	}
	resp, _ = do(t, app, httptest.NewRequest("GET", "/api/status/"+id, nil))
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("status after discard: expected 404, got %d", resp.StatusCode)
	}
}

func TestProcessRateLimit(t *testing.T) {
	app := setupTestApp(rate.NewLimiter(rate.Every(time.Hour), 1))

	resp, _ := do(t, app, httptest.NewRequest("POST", "/api/process/a", nil))
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("first call: expected 404, got %d", resp.StatusCode)
	}
	resp, _ = do(t, app, httptest.NewRequest("POST", "/api/process/b", nil))
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Errorf("second call: expected 429, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := setupTestApp(nil)
	id := upload(t, app, "january.txt", ledgerDoc)
	do(t, app, httptest.NewRequest("POST", "/api/process/"+id, nil))

	resp, body := do(t, app, httptest.NewRequest("GET", "/metrics", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "spendsense_") {
		t.Errorf("metrics output has no spendsense series")
	}
}

func TestStatusFor(t *testing.T) {
	if got := statusFor(io.EOF); got != fiber.StatusInternalServerError {
		t.Errorf("unknown error: got %d", got)
	}
	if got := statusFor(fiber.ErrMethodNotAllowed); got != fiber.StatusMethodNotAllowed {
		t.Errorf("fiber error: got %d", got)
	}
}

func TestNewLimiter(t *testing.T) {
	if NewLimiter(0, 5) != nil {
		t.Error("expected nil limiter for zero rate")
	}
	if l := NewLimiter(2, 0); l == nil || l.Burst() != 1 {
		t.Errorf("expected burst 1, got %v", l)
	}
}

func TestCORSPreflightAllowsDelete(t *testing.T) {
	app := setupTestApp(nil)

	req := httptest.NewRequest("OPTIONS", "/api/session/abc", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "DELETE")
	resp, _ := do(t, app, req)
	if resp.StatusCode != fiber.StatusNoContent {
		t.Errorf("preflight: expected 204, got %d", resp.StatusCode)
	}
	if methods := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(methods, "DELETE") {
		t.Errorf("allowed methods: %q", methods)
	}
}
