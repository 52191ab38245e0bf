package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mbertram/relais/pkg/api"
)

// writerState tracks the state of an SSE stream writer.
type writerState int

const (
	writerIdle      writerState = iota // no writes yet
	writerStreaming                    // at least one frame written
	writerCompleted                    // sentinel or error frame sent
)

// sseWriter writes the outbound SSE stream. Chunk frames are
// `data: <json>` records; a successful stream ends with the [DONE]
// sentinel, a failed one with a single error frame and no sentinel.
type sseWriter struct {
	w     http.ResponseWriter
	rc    *http.ResponseController
	state writerState
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

// WriteChunk sends one streaming frame, setting the SSE headers on the
// first write.
func (s *sseWriter) WriteChunk(chunk *api.ChatCompletionChunk) error {
	if s.state == writerCompleted {
		return errors.New("cannot write chunk: stream is completed")
	}
	if s.state == writerIdle {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.state = writerStreaming
	}

	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write chunk: %w", err)
	}
	return s.rc.Flush()
}

// WriteDone sends the stream-end sentinel and completes the writer.
func (s *sseWriter) WriteDone() error {
	if s.state == writerCompleted {
		return errors.New("cannot write sentinel: stream is completed")
	}
	s.state = writerCompleted
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("failed to write sentinel: %w", err)
	}
	return s.rc.Flush()
}

// WriteStreamError sends a terminal error frame and completes the
// writer. No sentinel follows an error.
func (s *sseWriter) WriteStreamError(apiErr *api.APIError) error {
	if s.state == writerCompleted {
		return errors.New("cannot write error: stream is completed")
	}
	if s.state == writerIdle {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
	}
	s.state = writerCompleted

	data, err := json.Marshal(api.ErrorResponse{Error: apiErr})
	if err != nil {
		return fmt.Errorf("failed to marshal error frame: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write error frame: %w", err)
	}
	return s.rc.Flush()
}

// started reports whether response headers have been committed to the
// SSE stream.
func (s *sseWriter) started() bool {
	return s.state != writerIdle
}
