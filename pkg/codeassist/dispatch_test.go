package codeassist

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// countingHost records how many requests it served.
type countingHost struct {
	calls atomic.Int64
	srv   *httptest.Server
}

func newCountingHost(t *testing.T, status int, body string) *countingHost {
	t.Helper()
	h := &countingHost{}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.calls.Add(1)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func TestSend_FailsOverOnTransientStatus(t *testing.T) {
	a := newCountingHost(t, http.StatusServiceUnavailable, "")
	b := newCountingHost(t, http.StatusOK, `{"response":{}}`)
	c := newCountingHost(t, http.StatusOK, `{"response":{}}`)

	d := NewDispatcher([]string{a.srv.URL, b.srv.URL, c.srv.URL}, nil)
	body, err := d.Send(context.Background(), "tok", generatePath, []byte(`{}`))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(body) != `{"response":{}}` {
		t.Errorf("unexpected body %q", body)
	}
	if a.calls.Load() != 1 || b.calls.Load() != 1 {
		t.Errorf("expected one call each to A and B, got %d/%d", a.calls.Load(), b.calls.Load())
	}
	if c.calls.Load() != 0 {
		t.Errorf("C must never be contacted, got %d calls", c.calls.Load())
	}
}

func TestSend_TerminalStatusAbortsImmediately(t *testing.T) {
	a := newCountingHost(t, http.StatusUnauthorized, `{"error":"expired"}`)
	b := newCountingHost(t, http.StatusOK, `{"response":{}}`)

	d := NewDispatcher([]string{a.srv.URL, b.srv.URL}, nil)
	_, err := d.Send(context.Background(), "tok", generatePath, []byte(`{}`))

	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rejected.Status != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rejected.Status)
	}
	if rejected.Body != `{"error":"expired"}` {
		t.Errorf("expected provider body preserved, got %q", rejected.Body)
	}
	if a.calls.Load() != 1 || b.calls.Load() != 0 {
		t.Errorf("expected exactly one call total, got %d/%d", a.calls.Load(), b.calls.Load())
	}
}

func TestSend_ForbiddenAndNotFoundAreTransient(t *testing.T) {
	a := newCountingHost(t, http.StatusForbidden, "")
	b := newCountingHost(t, http.StatusNotFound, "")
	c := newCountingHost(t, http.StatusOK, `{}`)

	d := NewDispatcher([]string{a.srv.URL, b.srv.URL, c.srv.URL}, nil)
	if _, err := d.Send(context.Background(), "tok", generatePath, []byte(`{}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if c.calls.Load() != 1 {
		t.Errorf("expected fallthrough to C, got %d calls", c.calls.Load())
	}
}

func TestSend_AllTransientExhaustsEndpoints(t *testing.T) {
	a := newCountingHost(t, http.StatusServiceUnavailable, "")
	b := newCountingHost(t, http.StatusInternalServerError, "")

	d := NewDispatcher([]string{a.srv.URL, b.srv.URL}, nil)
	_, err := d.Send(context.Background(), "tok", generatePath, []byte(`{}`))
	if !errors.Is(err, ErrEndpointsExhausted) {
		t.Errorf("expected ErrEndpointsExhausted, got %v", err)
	}
}

func TestSend_TransportErrorOnLastHostSurfaces(t *testing.T) {
	a := newCountingHost(t, http.StatusServiceUnavailable, "")

	// An unreachable final host: the transport error must surface.
	d := NewDispatcher([]string{a.srv.URL, "http://127.0.0.1:1"}, nil)
	_, err := d.Send(context.Background(), "tok", generatePath, []byte(`{}`))
	if err == nil || errors.Is(err, ErrEndpointsExhausted) {
		t.Errorf("expected transport error from last host, got %v", err)
	}
}

func TestSend_SetsAuthAndClientHeaders(t *testing.T) {
	var gotAuth, gotAgent, gotAPIClient string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		gotAPIClient = r.Header.Get("X-Goog-Api-Client")
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	d := NewDispatcher([]string{srv.URL}, nil)
	if _, err := d.Send(context.Background(), "tok-123", generatePath, []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotAgent == "" || gotAPIClient == "" {
		t.Errorf("client identification headers missing: %q / %q", gotAgent, gotAPIClient)
	}
}

func TestOpenStream_FailsOverBeforeHeadersOnly(t *testing.T) {
	a := newCountingHost(t, http.StatusServiceUnavailable, "")
	b := newCountingHost(t, http.StatusOK, "data: {\"response\":{}}\n\n")

	d := NewDispatcher([]string{a.srv.URL, b.srv.URL}, nil)
	body, err := d.OpenStream(context.Background(), "tok", streamGeneratePath, []byte(`{}`))
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if len(data) == 0 {
		t.Error("expected stream body from second host")
	}
}

func TestOpenStream_TerminalStatusCarriesBody(t *testing.T) {
	a := newCountingHost(t, http.StatusTooManyRequests, `{"error":"quota"}`)

	d := NewDispatcher([]string{a.srv.URL}, nil)
	_, err := d.OpenStream(context.Background(), "tok", streamGeneratePath, []byte(`{}`))

	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rejected.Status != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rejected.Status)
	}
}
