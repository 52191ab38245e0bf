package codeassist

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/google/uuid"
)

// Backend API paths.
const (
	generatePath       = "/v1internal:generateContent"
	streamGeneratePath = "/v1internal:streamGenerateContent?alt=sse"
	loadCodeAssistPath = "/v1internal:loadCodeAssist"
	onboardUserPath    = "/v1internal:onboardUser"
)

// envelopeUserAgent is the client identity carried inside the request
// body, distinct from the HTTP User-Agent header.
const envelopeUserAgent = "antigravity"

// DefaultProject is used when the credential carries no resolved
// project id.
const DefaultProject = "default-project"

// TokenSource yields a valid bearer token, refreshing if necessary.
type TokenSource interface {
	EnsureValid(ctx context.Context) (string, error)
}

// Client talks to the Code Assist generation API. It is safe for
// concurrent use.
type Client struct {
	tokens     TokenSource
	dispatcher *Dispatcher
}

// NewClient creates a backend client. A nil dispatcher uses the default
// endpoint order.
func NewClient(tokens TokenSource, dispatcher *Dispatcher) *Client {
	if dispatcher == nil {
		dispatcher = NewDispatcher(nil, nil)
	}
	return &Client{tokens: tokens, dispatcher: dispatcher}
}

func newRequestID() string {
	return "agent-" + uuid.NewString()
}

func (c *Client) envelope(project, model string, req *GenerateRequest) ([]byte, error) {
	if project == "" {
		project = DefaultProject
	}
	return json.Marshal(&Envelope{
		Project:   project,
		Model:     model,
		Request:   req,
		UserAgent: envelopeUserAgent,
		RequestID: newRequestID(),
	})
}

// Generate performs a blocking generation call.
func (c *Client) Generate(ctx context.Context, project, model string, req *GenerateRequest) (*GenerateResponse, error) {
	token, err := c.tokens.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := c.envelope(project, model, req)
	if err != nil {
		return nil, err
	}
	body, err := c.dispatcher.Send(ctx, token, generatePath, payload)
	if err != nil {
		return nil, err
	}
	return decodeResponse(body)
}

// Stream performs a streaming generation call. The returned channel
// carries content, thinking and usage chunks in backend emission order
// and always ends with a single terminal chunk: ChunkDone on clean
// end-of-stream, ChunkError on a mid-stream fault. Cancelling the
// context closes the backend connection and stops the read loop.
func (c *Client) Stream(ctx context.Context, project, model string, req *GenerateRequest) (<-chan StreamChunk, error) {
	token, err := c.tokens.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := c.envelope(project, model, req)
	if err != nil {
		return nil, err
	}
	body, err := c.dispatcher.OpenStream(ctx, token, streamGeneratePath, payload)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk)
	go c.readStream(ctx, body, ch)
	return ch, nil
}

// readStream pumps the backend body through the parser onto ch. The
// channel is closed when the stream ends. Consumption is pull-driven:
// the loop advances only as fast as the receiver drains ch.
func (c *Client) readStream(ctx context.Context, body io.ReadCloser, ch chan<- StreamChunk) {
	defer close(ch)

	// Close the body when the downstream consumer goes away so the
	// blocked Read unblocks and the upstream connection is released.
	watchdone := make(chan struct{})
	defer close(watchdone)
	go func() {
		select {
		case <-ctx.Done():
			body.Close()
		case <-watchdone:
		}
	}()
	defer body.Close()

	parser := NewStreamParser()
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, chunk := range parser.Feed(buf[:n]) {
				select {
				case ch <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}
		if err != nil {
			var terminal StreamChunk
			if errors.Is(err, io.EOF) {
				terminal = StreamChunk{Kind: ChunkDone}
			} else {
				if ctx.Err() != nil {
					return
				}
				fault := &StreamFault{Message: err.Error()}
				terminal = StreamChunk{Kind: ChunkError, Err: fault.Error()}
			}
			select {
			case ch <- terminal:
			case <-ctx.Done():
			}
			return
		}
	}
}
