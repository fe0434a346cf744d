package subscription

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkgerrors "hytun/pkg/errors"
)

func newTestFetcher() *Fetcher {
	f := NewFetcher()
	f.backoff = time.Millisecond
	return f
}

func TestFetchLinesTrimsAndSkipsBlanks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("  hy2://pw@a:443#One  \n\n\t\nplain line\n"))
	}))
	defer srv.Close()

	lines, err := newTestFetcher().FetchLines(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchLines failed: %v", err)
	}
	want := []string{"hy2://pw@a:443#One", "plain line"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestFetchLinesRetriesServerErrors(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("hy2://pw@a:443#One\n"))
	}))
	defer srv.Close()

	lines, err := newTestFetcher().FetchLines(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchLines failed after retries: %v", err)
	}
	if hits != 3 {
		t.Errorf("server hit %d times, want 3", hits)
	}
	if len(lines) != 1 {
		t.Errorf("got %d lines, want 1", len(lines))
	}
}

func TestFetchLinesClientErrorIsPermanent(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestFetcher().FetchLines(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("FetchLines succeeded against a 404")
	}
	if hits != 1 {
		t.Errorf("server hit %d times, want 1 (no retry on 4xx)", hits)
	}
	if !errors.Is(err, pkgerrors.ErrSubscriptionFetchFailed) {
		t.Errorf("error %v does not unwrap to ErrSubscriptionFetchFailed", err)
	}
	var fe *pkgerrors.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error %v is not a FetchError", err)
	}
	if fe.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", fe.StatusCode)
	}
	if !fe.Permanent() {
		t.Error("404 not reported as permanent")
	}
}
