package api

import "strconv"

var validRoles = map[string]bool{
	RoleSystem:    true,
	RoleUser:      true,
	RoleAssistant: true,
	RoleTool:      true,
}

// ValidateChatRequest checks structural validity of an inbound request.
// Model existence is checked separately against the model registry.
func ValidateChatRequest(req *ChatCompletionRequest) *APIError {
	if req.Model == "" {
		return NewInvalidRequestError("model", "model is required")
	}
	if len(req.Messages) == 0 {
		return NewInvalidRequestError("messages", "messages must not be empty")
	}
	for i, m := range req.Messages {
		if !validRoles[m.Role] {
			return NewInvalidRequestError("messages", "unknown role "+m.Role+" at index "+strconv.Itoa(i))
		}
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return NewInvalidRequestError("temperature", "temperature must be between 0 and 2")
	}
	if req.TopP != nil && (*req.TopP < 0 || *req.TopP > 1) {
		return NewInvalidRequestError("top_p", "top_p must be between 0 and 1")
	}
	if req.MaxTokens != nil && *req.MaxTokens <= 0 {
		return NewInvalidRequestError("max_tokens", "max_tokens must be positive")
	}
	for _, t := range req.Tools {
		if t.Type != "function" {
			return NewInvalidRequestError("tools", "unsupported tool type "+t.Type)
		}
		if t.Function.Name == "" {
			return NewInvalidRequestError("tools", "function tool requires a name")
		}
	}
	return nil
}
