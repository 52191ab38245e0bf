package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbertram/relais/pkg/api"
	"github.com/mbertram/relais/pkg/engine"
	"github.com/mbertram/relais/pkg/observability"
	"github.com/mbertram/relais/pkg/registry"
)

// Completer handles validated chat completion requests.
type Completer interface {
	Generate(ctx context.Context, req *api.ChatCompletionRequest) (*api.ChatCompletionResponse, error)
	GenerateStream(ctx context.Context, req *api.ChatCompletionRequest) (<-chan engine.StreamEvent, error)
}

// Handler routes the gateway's HTTP surface.
type Handler struct {
	completer   Completer
	logger      *slog.Logger
	maxBodySize int64
}

// NewHandler creates the route handler.
func NewHandler(completer Completer, logger *slog.Logger, maxBodySize int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBodySize <= 0 {
		maxBodySize = 10 << 20
	}
	return &Handler{completer: completer, logger: logger, maxBodySize: maxBodySize}
}

// Mux returns the route multiplexer.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", h.handleChatCompletions)
	mux.HandleFunc("GET /v1/models", h.handleModels)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (h *Handler) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req api.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, api.NewInvalidRequestError("", "invalid JSON body: "+err.Error()))
		return
	}
	if err := api.ValidateChatRequest(&req); err != nil {
		WriteError(w, err)
		return
	}

	if req.Stream {
		h.streamCompletion(w, r, &req)
		return
	}

	resp, err := h.completer.Generate(r.Context(), &req)
	if err != nil {
		WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// streamCompletion writes the SSE response. Errors before the first
// frame use the regular JSON error path; once headers are committed,
// faults become a terminal error frame instead.
func (h *Handler) streamCompletion(w http.ResponseWriter, r *http.Request, req *api.ChatCompletionRequest) {
	events, err := h.completer.GenerateStream(r.Context(), req)
	if err != nil {
		WriteError(w, err)
		return
	}

	observability.StreamingConnections.Inc()
	defer observability.StreamingConnections.Dec()

	writer := newSSEWriter(w)
	for ev := range events {
		switch {
		case ev.Chunk != nil:
			if err := writer.WriteChunk(ev.Chunk); err != nil {
				// Downstream consumer is gone; the request context
				// cancellation stops the backend read loop.
				h.logger.Debug("dropping stream, client write failed",
					"request_id", RequestIDFromContext(r.Context()),
					"error", err.Error(),
				)
				return
			}
		case ev.Done:
			if err := writer.WriteDone(); err != nil {
				h.logger.Debug("failed to write stream sentinel", "error", err.Error())
			}
			return
		case ev.Err != nil:
			apiErr, status := APIErrorFor(ev.Err)
			if !writer.started() {
				WriteErrorResponse(w, apiErr, status)
				return
			}
			if err := writer.WriteStreamError(apiErr); err != nil {
				h.logger.Debug("failed to write stream error frame", "error", err.Error())
			}
			return
		}
	}
}

func (h *Handler) handleModels(w http.ResponseWriter, r *http.Request) {
	list := api.ModelList{Object: "list"}
	for _, m := range registry.All() {
		list.Data = append(list.Data, api.Model{
			ID:      m.ID,
			Object:  "model",
			OwnedBy: m.OwnedBy,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
