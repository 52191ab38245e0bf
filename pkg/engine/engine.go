package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/mbertram/relais/pkg/api"
	"github.com/mbertram/relais/pkg/codeassist"
	"github.com/mbertram/relais/pkg/observability"
	"github.com/mbertram/relais/pkg/registry"
)

// Backend is the generation client the engine dispatches to.
type Backend interface {
	Generate(ctx context.Context, project, model string, req *codeassist.GenerateRequest) (*codeassist.GenerateResponse, error)
	Stream(ctx context.Context, project, model string, req *codeassist.GenerateRequest) (<-chan codeassist.StreamChunk, error)
}

// ProjectSource yields the project id bound to the active credential.
type ProjectSource interface {
	ProjectID() string
}

// Engine wires model validation, translation and dispatch.
type Engine struct {
	backend  Backend
	projects ProjectSource
}

// New creates an engine over the given backend and project source.
func New(backend Backend, projects ProjectSource) *Engine {
	return &Engine{backend: backend, projects: projects}
}

func (e *Engine) project() string {
	if e.projects == nil {
		return ""
	}
	return e.projects.ProjectID()
}

// resolveModel validates the requested model against the registry. An
// unknown id fails before any network call is attempted.
func resolveModel(id string) (registry.Model, *api.APIError) {
	model, ok := registry.Lookup(id)
	if !ok {
		return registry.Model{}, api.NewInvalidRequestError("model", "unknown model: "+id)
	}
	return model, nil
}

// Generate handles a blocking completion request.
func (e *Engine) Generate(ctx context.Context, req *api.ChatCompletionRequest) (*api.ChatCompletionResponse, error) {
	model, apiErr := resolveModel(req.Model)
	if apiErr != nil {
		return nil, apiErr
	}

	backendReq := codeassist.ToBackend(req, model, false)
	resp, err := e.backend.Generate(ctx, e.project(), model.ID, backendReq)
	if err != nil {
		return nil, err
	}

	out := codeassist.ToPublic(resp, model.ID, "")
	if out.Usage != nil {
		recordTokens(model.ID, out.Usage.PromptTokens, out.Usage.CompletionTokens)
	}
	return out, nil
}

// StreamEvent is one frame of the outbound event stream. Chunk frames
// carry incremental deltas; exactly one of Done or Err terminates the
// stream. Done is followed by the [DONE] sentinel on the wire, Err is not.
type StreamEvent struct {
	Chunk *api.ChatCompletionChunk
	Done  bool
	Err   error
}

// GenerateStream handles a streaming completion request. The returned
// channel is closed after the terminal event. Cancelling the context
// releases the backend stream.
func (e *Engine) GenerateStream(ctx context.Context, req *api.ChatCompletionRequest) (<-chan StreamEvent, error) {
	model, apiErr := resolveModel(req.Model)
	if apiErr != nil {
		return nil, apiErr
	}

	backendReq := codeassist.ToBackend(req, model, true)
	chunks, err := e.backend.Stream(ctx, e.project(), model.ID, backendReq)
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent)
	go e.pumpStream(ctx, model.ID, chunks, events)
	return events, nil
}

// pumpStream translates backend chunks into outbound events. The first
// content delta carries the assistant role marker; thinking chunks are
// not forwarded. On done the closing delta carries finish reason stop
// and accumulated usage when any counts were observed.
func (e *Engine) pumpStream(ctx context.Context, modelID string, chunks <-chan codeassist.StreamChunk, events chan<- StreamEvent) {
	defer close(events)

	id := api.NewCompletionID()
	created := time.Now().Unix()
	first := true
	var usage *api.Usage

	emit := func(ev StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	newChunk := func() *api.ChatCompletionChunk {
		return &api.ChatCompletionChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   modelID,
		}
	}

	for chunk := range chunks {
		switch chunk.Kind {
		case codeassist.ChunkContent:
			frame := newChunk()
			delta := api.ChunkDelta{Content: chunk.Text}
			if first {
				delta.Role = api.RoleAssistant
				first = false
			}
			frame.Choices = []api.ChunkChoice{{Index: 0, Delta: delta}}
			if !emit(StreamEvent{Chunk: frame}) {
				return
			}

		case codeassist.ChunkThinking:
			// Reasoning text stays server-side.

		case codeassist.ChunkUsage:
			usage = &api.Usage{
				PromptTokens:     chunk.Usage.PromptTokenCount,
				CompletionTokens: chunk.Usage.CandidatesTokenCount,
				TotalTokens:      chunk.Usage.TotalTokenCount,
			}

		case codeassist.ChunkDone:
			frame := newChunk()
			finish := api.FinishStop
			frame.Choices = []api.ChunkChoice{{Index: 0, FinishReason: &finish}}
			if usage != nil && usage.TotalTokens+usage.PromptTokens+usage.CompletionTokens > 0 {
				frame.Usage = usage
				recordTokens(modelID, usage.PromptTokens, usage.CompletionTokens)
			}
			if !emit(StreamEvent{Chunk: frame}) {
				return
			}
			emit(StreamEvent{Done: true})
			return

		case codeassist.ChunkError:
			slog.Warn("backend stream fault", "model", modelID, "error", chunk.Err)
			emit(StreamEvent{Err: api.NewServerError(chunk.Err)})
			return
		}
	}
}

func recordTokens(modelID string, prompt, completion int) {
	observability.TokensTotal.WithLabelValues(modelID, "input").Add(float64(prompt))
	observability.TokensTotal.WithLabelValues(modelID, "output").Add(float64(completion))
}
