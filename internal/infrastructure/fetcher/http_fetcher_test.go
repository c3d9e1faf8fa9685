package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchReturnsBodyOn200(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<sales_data date="2024-01-15"></sales_data>`))
	}))
	defer server.Close()

	f := NewHTTPFetcher(server.Client(), nil)

	body, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if body != `<sales_data date="2024-01-15"></sales_data>` {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestFetchRejectsNon200(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	f := NewHTTPFetcher(server.Client(), nil)

	if _, err := f.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestFetchRejectsInvalidText(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0xff, 0xfe, 0xfd})
	}))
	defer server.Close()

	f := NewHTTPFetcher(server.Client(), nil)

	if _, err := f.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for undecodable body")
	}
}

func TestFetchTimesOut(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := &http.Client{Timeout: 50 * time.Millisecond}
	f := NewHTTPFetcher(client, nil)

	if _, err := f.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestFetchTransportError(t *testing.T) {
	t.Parallel()

	f := NewHTTPFetcher(&http.Client{Timeout: time.Second}, nil)

	if _, err := f.Fetch(context.Background(), "http://127.0.0.1:1/report.xml"); err == nil {
		t.Fatal("expected connection error")
	}
}
