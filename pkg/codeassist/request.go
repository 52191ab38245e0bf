package codeassist

import (
	"encoding/json"
	"strings"

	"github.com/mbertram/relais/pkg/api"
	"github.com/mbertram/relais/pkg/registry"
)

// Backend turn roles.
const (
	roleUser  = "user"
	roleModel = "model"
)

// thinkingOutputFloor is the minimum maxOutputTokens for budget-mode
// models. Hidden reasoning tokens count against the output limit, so a
// small caller value would starve the visible answer. Raise-only: a
// larger caller value is kept.
const thinkingOutputFloor = 65536

// ToBackend translates a chat request into the backend generation
// shape for the given model. streaming selects the stream-only wire
// flags. Message order is preserved throughout.
func ToBackend(req *api.ChatCompletionRequest, model registry.Model, streaming bool) *GenerateRequest {
	out := &GenerateRequest{}

	if sys := collectSystemText(req.Messages); sys != "" {
		out.SystemInstruction = &Content{Parts: []Part{{Text: sys}}}
	}

	for _, msg := range req.Messages {
		if msg.Role == api.RoleSystem {
			continue
		}
		turn := translateTurn(msg)
		// A turn with no parts is dropped, never sent empty.
		if len(turn.Parts) == 0 {
			continue
		}
		out.Contents = append(out.Contents, turn)
	}

	out.GenerationConfig = generationConfig(req, model)
	out.Tools = translateTools(req.Tools)
	out.ToolConfig = toolConfig(req, model)

	if streaming && model.Thinking == registry.ThinkingBudget {
		out.Extra = map[string]any{"interleaved": true}
	}

	return out
}

// collectSystemText concatenates all system messages, blank-line
// separated, in original order.
func collectSystemText(messages []api.ChatMessage) string {
	var sections []string
	for _, msg := range messages {
		if msg.Role != api.RoleSystem {
			continue
		}
		if text := textContent(msg.Content); text != "" {
			sections = append(sections, text)
		}
	}
	return strings.Join(sections, "\n\n")
}

// textContent flattens a message content value to its text segments.
func textContent(content any) string {
	var b strings.Builder
	for _, part := range api.ContentParts(content) {
		if part.Type == "text" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// translateTurn maps one non-system message to a backend turn.
func translateTurn(msg api.ChatMessage) Content {
	if msg.Role == api.RoleTool {
		return toolResultTurn(msg)
	}

	role := roleUser
	if msg.Role == api.RoleAssistant {
		role = roleModel
	}

	turn := Content{Role: role}
	for _, part := range api.ContentParts(msg.Content) {
		switch part.Type {
		case "text":
			if part.Text != "" {
				turn.Parts = append(turn.Parts, Part{Text: part.Text})
			}
		case "image_url":
			if part.ImageURL == nil {
				continue
			}
			// Only data URIs can be inlined; remote references are dropped.
			if blob, ok := decodeDataURI(part.ImageURL.URL); ok {
				turn.Parts = append(turn.Parts, Part{InlineData: blob})
			}
		}
	}

	for _, tc := range msg.ToolCalls {
		turn.Parts = append(turn.Parts, Part{FunctionCall: &FunctionCall{
			Name: tc.Function.Name,
			Args: parseCallArgs(tc.Function.Arguments),
		}})
	}

	return turn
}

// toolResultTurn wraps a tool-role message as a user turn holding a
// single function-response part, keyed by the declared tool name with
// the call id as fallback.
func toolResultTurn(msg api.ChatMessage) Content {
	name := msg.Name
	if name == "" {
		name = msg.ToolCallID
	}

	raw := textContent(msg.Content)
	return Content{
		Role: roleUser,
		Parts: []Part{{FunctionResponse: &FunctionResponse{
			Name:     name,
			Response: parseToolResult(raw),
		}}},
	}
}

// parseToolResult interprets a tool result body. A JSON object passes
// through as-is; anything else is wrapped so the wire always carries an
// object.
func parseToolResult(raw string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		return obj
	}
	return map[string]any{"result": raw}
}

// parseCallArgs decodes a JSON-encoded argument string. Malformed
// arguments degrade to an empty object rather than failing the request.
func parseCallArgs(encoded string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(encoded), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

// decodeDataURI splits a data:<mime>;base64,<payload> reference.
func decodeDataURI(uri string) (*Blob, bool) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, false
	}
	mime, payload, ok := strings.Cut(rest, ";base64,")
	if !ok || mime == "" || payload == "" {
		return nil, false
	}
	return &Blob{MimeType: mime, Data: payload}, true
}

// generationConfig copies sampling parameters through and applies the
// model's thinking augmentation. Absent caller fields stay unset.
func generationConfig(req *api.ChatCompletionRequest, model registry.Model) *GenerationConfig {
	gc := &GenerationConfig{
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if req.MaxTokens != nil {
		max := *req.MaxTokens
		gc.MaxOutputTokens = &max
	}

	switch model.Thinking {
	case registry.ThinkingLevel:
		gc.ThinkingConfig = &ThinkingConfig{
			IncludeThoughts: true,
			ThinkingLevel:   model.Level,
		}
	case registry.ThinkingBudget:
		budget := model.Budget
		gc.ThinkingConfig = &ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  &budget,
		}
		if gc.MaxOutputTokens == nil || *gc.MaxOutputTokens < thinkingOutputFloor {
			floor := thinkingOutputFloor
			gc.MaxOutputTokens = &floor
		}
	}

	if gc.Temperature == nil && gc.TopP == nil && gc.MaxOutputTokens == nil && gc.ThinkingConfig == nil {
		return nil
	}
	return gc
}

// translateTools maps public function tools to backend declarations.
// A missing parameter schema defaults to an empty object schema.
func translateTools(tools []api.Tool) []Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		params := t.Function.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{}`)
		}
		decls = append(decls, FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  params,
		})
	}
	return []Tool{{FunctionDeclarations: decls}}
}

// toolConfig maps tool_choice to a function calling mode. Budget-family
// models take the stricter validation mode whenever tools are declared,
// preserving any named-function allow-list.
func toolConfig(req *api.ChatCompletionRequest, model registry.Model) *ToolConfig {
	cfg := FunctionCallingConfig{}

	switch kind, name := api.ParseToolChoice(req.ToolChoice); kind {
	case api.ToolChoiceNone:
		cfg.Mode = ModeNone
	case api.ToolChoiceAuto:
		cfg.Mode = ModeAuto
	case api.ToolChoiceFunction:
		cfg.Mode = ModeAny
		cfg.AllowedFunctionNames = []string{name}
	}

	if registry.IsBudgetFamily(model.ID) && len(req.Tools) > 0 {
		cfg.Mode = ModeValidated
	}

	if cfg.Mode == "" {
		return nil
	}
	return &ToolConfig{FunctionCallingConfig: cfg}
}
