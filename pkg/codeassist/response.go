package codeassist

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/mbertram/relais/pkg/api"
)

// Backend finish reason for hitting the output token limit.
const finishMaxTokens = "MAX_TOKENS"

// ToPublic translates a complete backend response into the public chat
// completion shape. Only the first candidate is considered. Thought
// parts are excluded from the assembled text; function-call parts become
// tool calls with freshly generated ids.
func ToPublic(resp *GenerateResponse, modelID, requestID string) *api.ChatCompletionResponse {
	if requestID == "" {
		requestID = api.NewCompletionID()
	}

	var text strings.Builder
	var toolCalls []api.ToolCall
	finishReason := ""

	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		finishReason = cand.FinishReason
		for _, part := range cand.Content.Parts {
			switch {
			case part.Thought:
				// Hidden reasoning, never surfaced.
			case part.FunctionCall != nil:
				toolCalls = append(toolCalls, api.ToolCall{
					ID:   api.NewToolCallID(),
					Type: "function",
					Function: api.FunctionCall{
						Name:      part.FunctionCall.Name,
						Arguments: encodeCallArgs(part.FunctionCall.Args),
					},
				})
			case part.Text != "":
				text.WriteString(part.Text)
			}
		}
	}

	usage := &api.Usage{}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = resp.UsageMetadata.PromptTokenCount
		usage.CompletionTokens = resp.UsageMetadata.CandidatesTokenCount
		usage.TotalTokens = resp.UsageMetadata.TotalTokenCount
	}

	return &api.ChatCompletionResponse{
		ID:      requestID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   modelID,
		Choices: []api.Choice{{
			Index: 0,
			Message: api.AssistantMessage{
				Role:      api.RoleAssistant,
				Content:   text.String(),
				ToolCalls: toolCalls,
			},
			FinishReason: mapFinishReason(finishReason, len(toolCalls) > 0),
		}},
		Usage: usage,
	}
}

// mapFinishReason converts the backend finish reason. The length limit
// wins over tool calls; everything else is a natural stop.
func mapFinishReason(reason string, hasToolCalls bool) string {
	if reason == finishMaxTokens {
		return api.FinishLength
	}
	if hasToolCalls {
		return api.FinishToolCalls
	}
	return api.FinishStop
}

func encodeCallArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
