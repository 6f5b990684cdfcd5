package icons

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGuessDomain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple name", "Netflix", "netflix.com"},
		{"name with spaces", "Apple Music", "applemusic.com"},
		{"trailing whitespace", "  Spotify  ", "spotify.com"},
		{"already a domain", "hbomax.com", "hbomax.com"},
		{"punctuation stripped", "Disney+", "disney.com"},
		{"empty", "", ""},
		{"only punctuation", "+++", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := guessDomain(tt.input); got != tt.expected {
				t.Errorf("guessDomain(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLookupIconURL(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path == "/netflix.com.ico" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, srv.Client())
	ctx := context.Background()

	url := c.LookupIconURL(ctx, "Netflix")
	if url != srv.URL+"/netflix.com.ico" {
		t.Errorf("LookupIconURL = %q", url)
	}

	// Second lookup is served from cache.
	c.LookupIconURL(ctx, "Netflix")
	if hits != 1 {
		t.Errorf("hits = %d, want 1 (cached)", hits)
	}
}

func TestLookupIconURLNegativeResultCached(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, srv.Client())
	ctx := context.Background()

	if url := c.LookupIconURL(ctx, "Unknown Service"); url != "" {
		t.Errorf("LookupIconURL = %q, want empty", url)
	}
	c.LookupIconURL(ctx, "Unknown Service")
	if hits != 1 {
		t.Errorf("hits = %d, want 1 (negative result cached)", hits)
	}
}

func TestLookupIconURLServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClientWithBaseURL(srv.URL, nil)
	if url := c.LookupIconURL(context.Background(), "Netflix"); url != "" {
		t.Errorf("LookupIconURL = %q, want empty on connection error", url)
	}
}
