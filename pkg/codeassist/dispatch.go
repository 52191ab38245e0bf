package codeassist

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mbertram/relais/pkg/debug"
	"github.com/mbertram/relais/pkg/observability"
)

// Endpoints is the ordered backend host list: high-availability tier
// first, production last. Dispatch walks it in order.
var Endpoints = []string{
	"https://daily-cloudcode-pa.sandbox.googleapis.com",
	"https://daily-cloudcode-pa.googleapis.com",
	"https://cloudcode-pa.googleapis.com",
}

// Fixed client-identification headers expected by the backend.
const (
	clientUserAgent = "antigravity/1.11.5 windows/amd64"
	apiClientValue  = "gl-node/22.17.0"
)

// outcome classifies a backend HTTP status for the failover loop.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeTransient
	outcomeTerminal
)

// classify maps a status code to a failover outcome. 403 and 404 are
// transient here: the high-availability hosts reject callers that are
// not provisioned for them, and the next host in line usually is.
func classify(status int) outcome {
	switch {
	case status >= 200 && status < 300:
		return outcomeSuccess
	case status == http.StatusForbidden, status == http.StatusNotFound:
		return outcomeTransient
	case status >= 500:
		return outcomeTransient
	default:
		return outcomeTerminal
	}
}

// Dispatcher sends a payload to an ordered host list with failover.
type Dispatcher struct {
	hosts  []string
	client *http.Client
}

// NewDispatcher creates a dispatcher over the given hosts. A nil host
// list uses the default endpoint order; a nil client uses a client with
// no overall timeout, since streaming responses can stay open for minutes.
func NewDispatcher(hosts []string, client *http.Client) *Dispatcher {
	if hosts == nil {
		hosts = Endpoints
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Dispatcher{hosts: hosts, client: client}
}

func (d *Dispatcher) newRequest(ctx context.Context, host, path, token string, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", clientUserAgent)
	req.Header.Set("X-Goog-Api-Client", apiClientValue)
	return req, nil
}

// Send posts the payload to each host in order until one succeeds.
// A 2xx returns the body. 403, 404 and 5xx fall through to the next
// host, as do transport errors except on the final host. Any other
// status is a terminal RejectedError. When every host failed
// transiently the result is ErrEndpointsExhausted.
func (d *Dispatcher) Send(ctx context.Context, token, path string, payload []byte) ([]byte, error) {
	debug.Raw("backend", string(payload))
	for i, host := range d.hosts {
		debug.Log("backend", "dispatching", "host", host, "path", path)
		req, err := d.newRequest(ctx, host, path, token, payload)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := d.client.Do(req)
		if err != nil {
			observability.BackendRequestsTotal.WithLabelValues(host, observability.OutcomeError).Inc()
			if i == len(d.hosts)-1 {
				return nil, fmt.Errorf("backend request to %s failed: %w", host, err)
			}
			slog.Warn("backend host unreachable, trying next",
				"host", host,
				"error", err.Error(),
			)
			continue
		}
		observability.BackendLatency.WithLabelValues(host).Observe(time.Since(start).Seconds())

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch classify(resp.StatusCode) {
		case outcomeSuccess:
			observability.BackendRequestsTotal.WithLabelValues(host, observability.OutcomeSuccess).Inc()
			if readErr != nil {
				return nil, fmt.Errorf("reading backend response from %s: %w", host, readErr)
			}
			slog.Debug("backend call succeeded",
				"host", host,
				"status", resp.StatusCode,
				"duration", time.Since(start),
			)
			debug.Raw("backend", string(body))
			return body, nil
		case outcomeTransient:
			observability.BackendRequestsTotal.WithLabelValues(host, observability.OutcomeTransient).Inc()
			slog.Warn("backend host returned transient status, trying next",
				"host", host,
				"status", resp.StatusCode,
			)
			continue
		default:
			observability.BackendRequestsTotal.WithLabelValues(host, observability.OutcomeRejected).Inc()
			return nil, &RejectedError{Status: resp.StatusCode, Body: string(body)}
		}
	}
	return nil, ErrEndpointsExhausted
}

// OpenStream posts the payload and returns the response body of the
// first host that answers 2xx. Failover applies only up to receipt of
// the response headers; once a stream is open the caller owns it, and
// any later fault is terminal. The caller must close the body.
func (d *Dispatcher) OpenStream(ctx context.Context, token, path string, payload []byte) (io.ReadCloser, error) {
	for i, host := range d.hosts {
		req, err := d.newRequest(ctx, host, path, token, payload)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/event-stream")

		resp, err := d.client.Do(req)
		if err != nil {
			observability.BackendRequestsTotal.WithLabelValues(host, observability.OutcomeError).Inc()
			if i == len(d.hosts)-1 {
				return nil, fmt.Errorf("backend request to %s failed: %w", host, err)
			}
			slog.Warn("backend host unreachable, trying next",
				"host", host,
				"error", err.Error(),
			)
			continue
		}

		switch classify(resp.StatusCode) {
		case outcomeSuccess:
			observability.BackendRequestsTotal.WithLabelValues(host, observability.OutcomeSuccess).Inc()
			slog.Debug("backend stream opened", "host", host)
			return resp.Body, nil
		case outcomeTransient:
			observability.BackendRequestsTotal.WithLabelValues(host, observability.OutcomeTransient).Inc()
			resp.Body.Close()
			slog.Warn("backend host returned transient status, trying next",
				"host", host,
				"status", resp.StatusCode,
			)
			continue
		default:
			observability.BackendRequestsTotal.WithLabelValues(host, observability.OutcomeRejected).Inc()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, &RejectedError{Status: resp.StatusCode, Body: string(body)}
		}
	}
	return nil, ErrEndpointsExhausted
}
