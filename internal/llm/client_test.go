package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/forgescene/scene-crew/internal/domain"
)

func testAgent() domain.AgentIdentity {
	id, _ := domain.Lookup(domain.Programmer)
	return id
}

func TestComplete_ReturnsText(t *testing.T) {
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.Write([]byte(`{"content":[{"type":"text","text":"import unreal"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "primary", "", 5*time.Second)
	text, err := c.Complete(context.Background(), testAgent(), "scene context", []Message{{Role: "user", Content: "build"}})
	if err != nil {
		t.Fatal(err)
	}
	if text != "import unreal" {
		t.Errorf("text = %q", text)
	}
	if gotAuth != "Bearer primary" {
		t.Errorf("auth = %q", gotAuth)
	}
	if !strings.Contains(gotBody, "scene context") {
		t.Error("context text not embedded in system prompt")
	}
	if !strings.Contains(gotBody, `"max_tokens":8192`) {
		t.Errorf("agent token budget not sent: %s", gotBody)
	}
}

func TestComplete_FallbackCredential(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		keys = append(keys, key)
		if key == "primary" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"invalid key"}}`))
			return
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "primary", "fallback", 5*time.Second)
	text, err := c.Complete(context.Background(), testAgent(), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if text != "ok" {
		t.Errorf("text = %q", text)
	}
	if len(keys) != 2 || keys[0] != "primary" || keys[1] != "fallback" {
		t.Errorf("key sequence = %v, want [primary fallback]", keys)
	}
}

func TestComplete_FallbackAlsoFails(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid key"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "primary", "fallback", 5*time.Second)
	_, err := c.Complete(context.Background(), testAgent(), "", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	perr, ok := err.(*ProviderError)
	if !ok {
		t.Fatalf("error type = %T, want *ProviderError", err)
	}
	if perr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d", perr.StatusCode)
	}
	// Exactly one fallback retry, never more
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestComplete_NoFallbackOnServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer srv.Close()

	// A 500 is not a credential problem; the fallback key must stay unused.
	c := NewClient(srv.URL, "primary", "fallback", 5*time.Second)
	if _, err := c.Complete(context.Background(), testAgent(), "", nil); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no credential retry on server errors)", calls)
	}
}

func TestComplete_NoFallbackConfigured(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"no"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "primary", "", 5*time.Second)
	if _, err := c.Complete(context.Background(), testAgent(), "", nil); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no fallback key)", calls)
	}
}

func TestComplete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"content":[{"type":"text","text":"late"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "", 50*time.Millisecond)
	_, err := c.Complete(context.Background(), testAgent(), "", nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if _, ok := err.(*ProviderError); !ok {
		t.Errorf("error type = %T, want *ProviderError", err)
	}
}
