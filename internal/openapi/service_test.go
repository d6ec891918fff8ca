package openapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewServiceValidatesDocument(t *testing.T) {
	svc, err := NewService()
	if err != nil {
		t.Fatalf("expected valid embedded document: %v", err)
	}
	if len(svc.Document()) == 0 {
		t.Fatalf("expected non-empty document")
	}
}

func TestHandlerServesDocument(t *testing.T) {
	svc, err := NewService()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	rr := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type: %s", ct)
	}

	var doc struct {
		OpenAPI string `json:"openapi"`
		Paths   map[string]json.RawMessage
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.OpenAPI == "" {
		t.Fatalf("expected openapi version field")
	}
	if _, ok := doc.Paths["/auth/login"]; !ok {
		t.Fatalf("expected login path in document")
	}
}
