package httpkit

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestNewClient_DefaultTimeout(t *testing.T) {
	c := NewClient()
	if c.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", c.Timeout)
	}
}

func TestNewClient_CustomTimeout(t *testing.T) {
	c := NewClient(WithTimeout(5 * time.Second))
	if c.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", c.Timeout)
	}
}

func TestNewClient_ZeroTimeout(t *testing.T) {
	c := NewClient(WithTimeout(0))
	if c.Timeout != 0 {
		t.Errorf("expected 0 timeout for long-lived requests, got %v", c.Timeout)
	}
}

func TestNewClient_UserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer srv.Close()

	c := NewClient(WithUserAgent("TestBot/1.0"))
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "TestBot/1.0" {
		t.Errorf("expected TestBot/1.0, got %q", body)
	}
}

func TestNewClient_DefaultUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer srv.Close()

	c := NewClient()
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(body), "dirigent") {
		t.Errorf("expected dirigent prefix, got %q", body)
	}
}

func TestNewClient_ExistingUserAgentPreserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer srv.Close()

	c := NewClient()
	req, _ := http.NewRequest("GET", srv.URL, nil)
	req.Header.Set("User-Agent", "Custom/2.0")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "Custom/2.0" {
		t.Errorf("expected Custom/2.0, got %q", body)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"ECONNREFUSED", syscall.ECONNREFUSED, true},
		{"EHOSTUNREACH", syscall.EHOSTUNREACH, true},
		{"ENETUNREACH", syscall.ENETUNREACH, true},
		{"ECONNRESET excluded", syscall.ECONNRESET, false},
		{"wrapped in OpError", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tc := range tests {
		if got := isRetryableError(tc.err); got != tc.want {
			t.Errorf("%s: isRetryableError = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestWithRetry_RecoverFromRefusedConnection(t *testing.T) {
	// Reserve a port, then close the listener so the first dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	started := make(chan struct{})
	go func() {
		// Bring a real server up on the same port before the retry fires.
		time.Sleep(50 * time.Millisecond)
		ln2, err := net.Listen("tcp", addr)
		if err != nil {
			return
		}
		close(started)
		http.Serve(ln2, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		}))
	}()

	c := NewClient(WithRetry(3, 100*time.Millisecond))
	resp, err := c.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	defer resp.Body.Close()
	<-started
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestReadErrorBody(t *testing.T) {
	rc := io.NopCloser(strings.NewReader("error detail here"))
	got := ReadErrorBody(rc, 1024)
	if got != "error detail here" {
		t.Errorf("ReadErrorBody = %q", got)
	}

	if got := ReadErrorBody(nil, 1024); got != "" {
		t.Errorf("ReadErrorBody(nil) = %q, want empty", got)
	}

	rc = io.NopCloser(strings.NewReader("0123456789"))
	got = ReadErrorBody(rc, 4)
	if got != "0123" {
		t.Errorf("ReadErrorBody limited = %q, want %q", got, "0123")
	}
}

func TestDrainAndClose_NilSafe(t *testing.T) {
	DrainAndClose(nil, 1024) // must not panic
}
