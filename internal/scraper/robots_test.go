package scraper

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/ferret/internal/fingerprint"
)

func TestRobotsAuditor_IsAllowed(t *testing.T) {
	var fetches atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(`
User-agent: *
Disallow: /admin/
Allow: /admin/public/

User-agent: BadBot
Disallow: /
		`))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	fetcher, _ := New(Config{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	})

	auditor := NewRobotsAuditor(fetcher, slog.Default())
	ctx := context.Background()

	allowed, err := auditor.IsAllowed(ctx, ts.URL+"/public-page", "GoodBot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Errorf("expected /public-page to be allowed")
	}

	allowed, _ = auditor.IsAllowed(ctx, ts.URL+"/admin/secret", "GoodBot")
	if allowed {
		t.Errorf("expected /admin/secret to be disallowed")
	}

	allowed, _ = auditor.IsAllowed(ctx, ts.URL+"/admin/public/index.html", "GoodBot")
	if !allowed {
		t.Errorf("expected /admin/public/index.html to be allowed")
	}

	allowed, _ = auditor.IsAllowed(ctx, ts.URL+"/public-page", "BadBot")
	if allowed {
		t.Errorf("expected BadBot to be disallowed everywhere")
	}

	if got := fetches.Load(); got != 1 {
		t.Errorf("expected robots.txt fetched once (cached), got %d", got)
	}
}

func TestRobotsAuditor_FailsOpen(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	fetcher, _ := New(Config{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	})

	auditor := NewRobotsAuditor(fetcher, nil)

	allowed, err := auditor.IsAllowed(context.Background(), ts.URL+"/anything", "GoodBot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("missing robots.txt should fail open")
	}
}
