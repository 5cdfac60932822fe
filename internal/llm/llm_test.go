package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"haven/internal/config"
)

func testClient(url string) *Client {
	cfg := &config.Config{}
	cfg.Generator.URL = url
	cfg.Generator.Model = "test-model"
	cfg.Generator.TimeoutSeconds = 5
	cfg.Generator.FailureThreshold = 3
	cfg.Generator.CooldownSeconds = 60
	return NewClient(cfg)
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"You are not alone in this."}}]}`)
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).Generate(context.Background(), "be supportive", "I had a rough day")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "You are not alone in this." {
		t.Errorf("unexpected response: %q", got)
	}
}

func TestGenerateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Generate(context.Background(), "", "hello"); err == nil {
		t.Error("expected error on 500")
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Generate(context.Background(), "", "hello"); err == nil {
		t.Error("expected error on empty choices")
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	fail := func() error { return errors.New("backend down") }

	for i := 0; i < 3; i++ {
		if err := cb.Call(fail); err == nil {
			t.Fatal("expected failure")
		}
	}
	if !cb.Open() {
		t.Error("expected open circuit after threshold failures")
	}
	if err := cb.Call(fail); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreakerRecovers(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	fail := func() error { return errors.New("backend down") }
	ok := func() error { return nil }

	cb.Call(fail)
	cb.Call(fail)
	if !cb.Open() {
		t.Fatal("expected open circuit")
	}

	// Force the cooldown to elapse.
	cb.mu.Lock()
	cb.lastFailureTime = time.Now().Add(-2 * time.Minute)
	cb.mu.Unlock()

	// Half-open probes succeed twice, closing the circuit.
	if err := cb.Call(ok); err != nil {
		t.Fatalf("half-open probe rejected: %v", err)
	}
	if err := cb.Call(ok); err != nil {
		t.Fatalf("half-open probe rejected: %v", err)
	}

	cb.mu.RLock()
	state := cb.state
	cb.mu.RUnlock()
	if state != stateClosed {
		t.Errorf("expected closed circuit, got %s", state)
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	cb.Call(func() error { return errors.New("down") })

	cb.mu.Lock()
	cb.lastFailureTime = time.Now().Add(-2 * time.Minute)
	cb.mu.Unlock()

	cb.Call(func() error { return errors.New("still down") })
	if !cb.Open() {
		t.Error("expected circuit to reopen after failed probe")
	}
}

func TestBreakerResetsFailureCountOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	fail := func() error { return errors.New("flaky") }
	ok := func() error { return nil }

	cb.Call(fail)
	cb.Call(fail)
	cb.Call(ok)
	cb.Call(fail)
	cb.Call(fail)
	if cb.Open() {
		t.Error("interleaved successes must reset the failure count")
	}
}
