package bus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_CallRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping-fn" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req ModuleIDRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.CorrelationID == "" {
			t.Fatal("expected a correlation id to be set on the request")
		}
		_ = json.NewEncoder(w).Encode(SuccessResponse{Success: true})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	req := &ModuleIDRequest{ModuleID: 5}
	var resp SuccessResponse
	if err := c.Call(context.Background(), "ping-fn", req, &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success")
	}
}

func TestClient_CallServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	var resp SuccessResponse
	err := c.Call(context.Background(), "fails", &Envelope{}, &resp)
	if err == nil {
		t.Fatal("expected an error on a 5xx response")
	}
}

func TestClient_Reachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	if !c.Reachable(context.Background()) {
		t.Fatal("expected Reachable to be true against a live server")
	}
}

func TestClient_ReachableNoServer(t *testing.T) {
	c := New("http://127.0.0.1:1", 100*time.Millisecond)
	if c.Reachable(context.Background()) {
		t.Fatal("expected Reachable to be false with nothing listening")
	}
}

func TestClient_DefaultTimeoutApplied(t *testing.T) {
	c := New("http://example.invalid", 0)
	if c.http.Timeout != 10*time.Second {
		t.Fatalf("expected the default 10s timeout, got %v", c.http.Timeout)
	}
}
