// Command mock-backend runs a deterministic Code Assist server for
// local development and conformance testing. Point the gateway at it
// with RELAIS_BACKEND_HOSTS=http://localhost:9090.
//
// Responses are predictable and derived from the request content: tool
// declarations yield a function call, thinking config yields a thought
// part before the text, everything else yields a short text answer.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1internal:generateContent", requireAuth(handleGenerate))
	mux.HandleFunc("POST /v1internal:streamGenerateContent", requireAuth(handleStreamGenerate))
	mux.HandleFunc("POST /v1internal:loadCodeAssist", requireAuth(handleLoadCodeAssist))
	mux.HandleFunc("POST /v1internal:onboardUser", requireAuth(handleOnboardUser))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			http.Error(w, `{"error":{"code":401,"message":"missing bearer token"}}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// --- Request types ---

// envelope mirrors the Code Assist wire envelope, loosely typed so the
// mock stays decoupled from the gateway's own structs.
type envelope struct {
	Project string          `json:"project"`
	Model   string          `json:"model"`
	Request generateRequest `json:"request"`
}

type generateRequest struct {
	Contents       []content       `json:"contents"`
	Tools          []any           `json:"tools"`
	ThinkingConfig *thinkingConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type thinkingConfig struct {
	Thinking *struct{} `json:"thinkingConfig"`
}

// --- Handlers ---

func handleGenerate(w http.ResponseWriter, r *http.Request) {
	var env envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, `{"error":{"code":400,"message":"invalid request"}}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"response": classifyAndRespond(&env)})
}

func classifyAndRespond(env *envelope) map[string]any {
	if len(env.Request.Tools) > 0 {
		return toolCallResponse()
	}
	return textResponse(responseText(env), wantsThinking(env))
}

func responseText(env *envelope) string {
	last := lastUserText(env)
	if strings.Contains(strings.ToLower(last), "count from 1 to 5") {
		return "1, 2, 3, 4, 5"
	}
	return "Hello, nice day!"
}

func wantsThinking(env *envelope) bool {
	return env.Request.ThinkingConfig != nil && env.Request.ThinkingConfig.Thinking != nil
}

func textResponse(text string, thinking bool) map[string]any {
	parts := []map[string]any{}
	if thinking {
		parts = append(parts, map[string]any{"text": "Considering the question.", "thought": true})
	}
	parts = append(parts, map[string]any{"text": text})

	return map[string]any{
		"candidates": []map[string]any{{
			"content":      map[string]any{"role": "model", "parts": parts},
			"finishReason": "STOP",
		}},
		"usageMetadata": map[string]any{
			"promptTokenCount":     10,
			"candidatesTokenCount": 5,
			"totalTokenCount":      15,
		},
	}
}

func toolCallResponse() map[string]any {
	return map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"role": "model",
				"parts": []map[string]any{{
					"functionCall": map[string]any{
						"name": "get_weather",
						"args": map[string]any{"location": "San Francisco", "unit": "celsius"},
					},
				}},
			},
			"finishReason": "STOP",
		}},
		"usageMetadata": map[string]any{
			"promptTokenCount":     20,
			"candidatesTokenCount": 15,
			"totalTokenCount":      35,
		},
	}
}

// --- Streaming ---

func handleStreamGenerate(w http.ResponseWriter, r *http.Request) {
	var env envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, `{"error":{"code":400,"message":"invalid request"}}`, http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	tokens := strings.SplitAfter(responseText(&env), " ")
	if wantsThinking(&env) {
		writeStreamRecord(w, map[string]any{"text": "Considering the question.", "thought": true}, nil)
		flusher.Flush()
	}
	for _, token := range tokens {
		writeStreamRecord(w, map[string]any{"text": token}, nil)
		flusher.Flush()
	}
	writeStreamRecord(w, nil, map[string]any{
		"promptTokenCount":     10,
		"candidatesTokenCount": len(tokens),
		"totalTokenCount":      10 + len(tokens),
	})
	flusher.Flush()
}

func writeStreamRecord(w http.ResponseWriter, p map[string]any, usage map[string]any) {
	resp := map[string]any{}
	if p != nil {
		resp["candidates"] = []map[string]any{{
			"content": map[string]any{"role": "model", "parts": []map[string]any{p}},
		}}
	}
	if usage != nil {
		resp["usageMetadata"] = usage
	}

	data, _ := json.Marshal(map[string]any{"response": resp})
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// --- Project endpoints ---

func handleLoadCodeAssist(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"cloudaicompanionProject": "mock-project",
		"allowedTiers": []map[string]any{
			{"id": "free-tier", "isDefault": true},
		},
	})
}

func handleOnboardUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"done": true,
		"response": map[string]any{
			"cloudaicompanionProject": map[string]any{"id": "mock-project"},
		},
	})
}

// --- Helpers ---

func lastUserText(env *envelope) string {
	for i := len(env.Request.Contents) - 1; i >= 0; i-- {
		c := env.Request.Contents[i]
		if c.Role != "user" {
			continue
		}
		for _, p := range c.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}
