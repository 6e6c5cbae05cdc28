package serp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCSE_Search(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("key") != "test-key" || q.Get("cx") != "test-cx" {
			t.Errorf("missing credentials in request: %s", r.URL.RawQuery)
		}
		if q.Get("q") != "GENEBRE 3186 04" {
			t.Errorf("unexpected query %q", q.Get("q"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"items": [
				{"link": "https://www.genebre.es/valve-3186", "title": "Valve 3186"},
				{"link": "https://example.com/other", "title": "Other"},
				{"link": "", "title": "no link"}
			]
		}`))
	}))
	defer ts.Close()

	cse, err := NewCSE(CSEConfig{Key: "test-key", CX: "test-cx", Endpoint: ts.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := cse.Search(context.Background(), "GENEBRE 3186 04", 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].URL != "https://www.genebre.es/valve-3186" {
		t.Errorf("unexpected first result %q", results[0].URL)
	}
	if results[0].Title != "Valve 3186" {
		t.Errorf("unexpected title %q", results[0].Title)
	}
}

func TestCSE_SearchLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": [
			{"link": "https://a.example/1"},
			{"link": "https://a.example/2"},
			{"link": "https://a.example/3"}
		]}`))
	}))
	defer ts.Close()

	cse, _ := NewCSE(CSEConfig{Key: "k", CX: "c", Endpoint: ts.URL})
	results, err := cse.Search(context.Background(), "anything", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected results capped at 2, got %d", len(results))
	}
}

func TestCSE_QuotaExceeded(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	cse, _ := NewCSE(CSEConfig{Key: "k", CX: "c", Endpoint: ts.URL})
	_, err := cse.Search(context.Background(), "anything", 8)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestCSE_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	cse, _ := NewCSE(CSEConfig{Key: "k", CX: "c", Endpoint: ts.URL})
	_, err := cse.Search(context.Background(), "anything", 8)
	if err == nil {
		t.Fatal("expected error on 500")
	}
	if errors.Is(err, ErrQuotaExceeded) {
		t.Error("a 500 must not look like a quota signal")
	}
}

func TestNewCSE_MissingCredentials(t *testing.T) {
	if _, err := NewCSE(CSEConfig{Key: "k"}); err == nil {
		t.Error("expected error on missing cx")
	}
	if _, err := NewCSE(CSEConfig{CX: "c"}); err == nil {
		t.Error("expected error on missing key")
	}
}
