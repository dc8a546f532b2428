package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	healthuc "github.com/kailas-cloud/searchsync/internal/usecase/health"
	"github.com/kailas-cloud/searchsync/internal/usecase/indexing"
	searchuc "github.com/kailas-cloud/searchsync/internal/usecase/search"
)

// --- Mocks ---

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type mockSearch struct {
	searchFn func(ctx context.Context, backend, contentType, query string, limit int) ([]indexing.Hit, error)
}

func (m *mockSearch) Search(
	ctx context.Context, backend, contentType, query string, limit int,
) ([]indexing.Hit, error) {
	return m.searchFn(ctx, backend, contentType, query, limit)
}

func do(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// --- Tests ---

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		report   healthuc.Report
		wantCode int
	}{
		{"healthy", healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK}}, 200},
		{"degraded", healthuc.Report{Status: healthuc.Degraded, Checks: map[string]healthuc.CheckResult{"backend:main": healthuc.CheckError}}, 200},
		{"unhealthy", healthuc.Report{Status: healthuc.Unhealthy, Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckError}}, 503},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServer(&mockHealth{report: tt.report}, nil, nil).Router(nil)
			rr := do(t, h, "/healthz")

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != string(tt.report.Status) || len(resp.Checks) != len(tt.report.Checks) {
				t.Errorf("unexpected body: %+v", resp)
			}
			if rr.Header().Get("X-Request-ID") == "" {
				t.Error("expected X-Request-ID header")
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewServer(&mockHealth{}, nil, nil).Router(nil)
	rr := do(t, h, "/metrics")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Error("expected default go collector metrics")
	}
}

func TestSearch(t *testing.T) {
	var gotBackend, gotCT, gotQuery string
	var gotLimit int
	s := &mockSearch{searchFn: func(_ context.Context, backend, ct, q string, limit int) ([]indexing.Hit, error) {
		gotBackend, gotCT, gotQuery, gotLimit = backend, ct, q, limit
		return []indexing.Hit{{ID: "shop_digitalproduct:7", Score: 1.5}}, nil
	}}
	h := NewServer(&mockHealth{}, s, nil).Router(nil)

	rr := do(t, h, "/search/shop.Product?q=coffee+mug&backend=main&limit=5")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if gotBackend != "main" || gotCT != "shop.Product" || gotQuery != "coffee mug" || gotLimit != 5 {
		t.Errorf("unexpected call: %q %q %q %d", gotBackend, gotCT, gotQuery, gotLimit)
	}

	var resp SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := HitResponse{ID: "shop_digitalproduct:7", Type: "shop_digitalproduct", PK: "7", Score: 1.5}
	if len(resp.Hits) != 1 || resp.Hits[0] != want {
		t.Errorf("hits = %+v, want %+v", resp.Hits, want)
	}
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   string
		wantCode int
		wantBody string
	}{
		{"bad limit", nil, "/search/shop.Product?limit=x", 400, codeBadRequest},
		{"unknown type", fmt.Errorf("x: %w", searchuc.ErrUnknownContentType), "/search/shop.Nope", 404, codeNotFound},
		{"unknown backend", indexing.ErrUnknownBackend, "/search/shop.Product?backend=x", 404, codeNotFound},
		{"not searchable", searchuc.ErrNotSearchable, "/search/shop.Product", 501, codeNotSearchable},
		{"backend failure", errors.New("conn refused"), "/search/shop.Product", 502, codeBackendError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &mockSearch{searchFn: func(context.Context, string, string, string, int) ([]indexing.Hit, error) {
				return nil, tt.err
			}}
			rr := do(t, NewServer(&mockHealth{}, s, nil).Router(nil), tt.target)

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tt.wantBody {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantBody)
			}
			if tt.wantCode == 502 && strings.Contains(resp.Message, "conn refused") {
				t.Error("backend error details should not leak")
			}
		})
	}
}

func TestSearch_DisabledWithoutService(t *testing.T) {
	rr := do(t, NewServer(&mockHealth{}, nil, nil).Router(nil), "/search/shop.Product")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestRouter_AuthProtectsSearchOnly(t *testing.T) {
	s := &mockSearch{searchFn: func(context.Context, string, string, string, int) ([]indexing.Hit, error) {
		return nil, nil
	}}
	h := NewServer(&mockHealth{report: healthuc.Report{Status: healthuc.Healthy}}, s, nil).Router([]string{"secret"})

	if rr := do(t, h, "/healthz"); rr.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rr.Code)
	}
	if rr := do(t, h, "/search/shop.Product"); rr.Code != http.StatusUnauthorized {
		t.Errorf("search status = %d, want 401", rr.Code)
	}
}

func TestJSONRecoverer(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := JSONRecoverer(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := do(t, h, "/")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != codeInternal {
		t.Errorf("code = %q", resp.Code)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Error("expected panic log entry")
	}
}

func TestWideEventMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewServer(&mockHealth{report: healthuc.Report{Status: healthuc.Healthy}}, nil, zap.New(core)).Router(nil)

	do(t, h, "/healthz")

	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 request log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/healthz" || fields["status"] != int64(200) {
		t.Errorf("unexpected fields: %v", fields)
	}
	if fields["request_id"] == "" {
		t.Error("expected request_id field")
	}
}
