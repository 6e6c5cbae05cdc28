package metrics

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestRecordCounters(t *testing.T) {
	// Must not panic and must accept arbitrary label values.
	RecordSearch("cse", "ok")
	RecordSearch("scrape", "quota")
	RecordFetch("example.com", "200", 120*time.Millisecond)
	RecordFetch("example.com", "error", 0)
	AssetsFoundTotal.WithLabelValues("pdf").Inc()
	RowsTotal.WithLabelValues("filled").Inc()
}

func TestMetricsServer(t *testing.T) {
	// Find a free port first.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	srv := Start(port)
	defer func() {
		if err := srv.Stop(context.Background()); err != nil {
			t.Errorf("stop: %v", err)
		}
	}()

	RecordSearch("cse", "ok")

	var body string
	for i := 0; i < 20; i++ {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", port))
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		body = string(b)
		break
	}

	if !strings.Contains(body, "ferret_searches_total") {
		t.Errorf("expected ferret_searches_total in /metrics output")
	}
}
