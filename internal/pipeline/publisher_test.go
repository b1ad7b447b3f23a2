package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dgallion1/docxref/internal/pathstore"
	"github.com/dgallion1/docxref/internal/xref"
)

func TestLinkKey(t *testing.T) {
	tests := []struct {
		target, want string
	}{
		{"eq:main", "xref/builds/b1/links/eq:main"},
		{"fig:a_b", "xref/builds/b1/links/fig:a_b"},
		{"fig:a-b", "xref/builds/b1/links/fig:a-b"},
		{"Fig:A", "xref/builds/b1/links/Fig:A"},
		{"a/b", "xref/builds/b1/links/a%2Fb"},
		{"a b", "xref/builds/b1/links/a%20b"},
		{"", "xref/builds/b1/untargeted"},
	}
	seen := make(map[string]string)
	for _, tt := range tests {
		got := LinkKey("b1", tt.target)
		if got != tt.want {
			t.Errorf("LinkKey(%q): expected %q, got %q", tt.target, tt.want, got)
		}
		if prev, ok := seen[got]; ok {
			t.Errorf("LinkKey(%q) collides with %q", tt.target, prev)
		}
		seen[got] = tt.target
	}
}

func TestPublisher_FlushWritesBufferedRecords(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewPublisher(pathstore.NewClient(srv.URL, "k"), nil)
	p.Report("b1", "link", xref.LinkResult{Target: "eq:main", Status: xref.StatusCreated})
	p.Report("b1", "summary", xref.Summary{Processed: 1, Fixed: 1})

	written, failed := p.Flush(context.Background(), "b1")
	if written != 2 || failed != 0 {
		t.Fatalf("expected 2 written 0 failed, got %d/%d", written, failed)
	}
	want := []string{"/kv/xref/builds/b1/links/eq:main", "/kv/xref/builds/b1/summary"}
	if len(paths) != len(want) {
		t.Fatalf("expected %d writes, got %v", len(want), paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("write %d: expected %q, got %q", i, want[i], paths[i])
		}
	}

	if written, _ := p.Flush(context.Background(), "b1"); written != 0 {
		t.Errorf("expected nothing left to flush, got %d", written)
	}
}

func TestPublisher_PermanentErrorIsCounted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewPublisher(pathstore.NewClient(srv.URL, "k"), nil)
	p.Report("b2", "summary", xref.Summary{})
	written, failed := p.Flush(context.Background(), "b2")
	if written != 0 || failed != 1 {
		t.Fatalf("expected 0 written 1 failed, got %d/%d", written, failed)
	}
}

func TestPublisher_DisabledIsNoop(t *testing.T) {
	p := NewPublisher(nil, nil)
	p.Report("b3", "summary", xref.Summary{})
	if written, failed := p.Flush(context.Background(), "b3"); written != 0 || failed != 0 {
		t.Fatalf("expected no-op, got %d/%d", written, failed)
	}
	if err := p.Forget(context.Background(), "b3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
