package pathstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPutNode_SendsAuthAndBody(t *testing.T) {
	var gotKey, gotAuth string
	var gotBody NodeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	err := c.PutNode(context.Background(), "xref/builds/b1/summary", NodeRequest{Value: map[string]any{"fixed": 3}, Source: "xref:b1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "/kv/xref/builds/b1/summary" {
		t.Errorf("expected key path, got %q", gotKey)
	}
	if gotAuth != "Bearer k" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotBody.Source != "xref:b1" {
		t.Errorf("expected source %q, got %q", "xref:b1", gotBody.Source)
	}
}

func TestPutNode_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "k").PutNode(context.Background(), "x", NodeRequest{})
	var retry *RetryableError
	if !errors.As(err, &retry) {
		t.Fatalf("expected RetryableError, got %v", err)
	}
	if retry.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", retry.StatusCode)
	}
}

func TestPutNode_ClientErrorIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "k").PutNode(context.Background(), "x", NodeRequest{})
	if err == nil {
		t.Fatal("expected an error")
	}
	var retry *RetryableError
	if errors.As(err, &retry) {
		t.Error("expected 4xx to be permanent")
	}
}

func TestDeleteNode_MissingIsNotAnError(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, "k").DeleteNode(context.Background(), "xref/builds/b1", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "children=true" {
		t.Errorf("expected recursive delete, got query %q", gotQuery)
	}
}
