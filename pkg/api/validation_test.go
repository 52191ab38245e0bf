package api

import "testing"

func validRequest() *ChatCompletionRequest {
	return &ChatCompletionRequest{
		Model:    "gemini-2.5-flash",
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	}
}

func TestValidateChatRequest_OK(t *testing.T) {
	if err := ValidateChatRequest(validRequest()); err != nil {
		t.Errorf("expected valid request, got %v", err)
	}
}

func TestValidateChatRequest_MissingModel(t *testing.T) {
	req := validRequest()
	req.Model = ""
	err := ValidateChatRequest(req)
	if err == nil || err.Param != "model" {
		t.Errorf("expected model error, got %v", err)
	}
}

func TestValidateChatRequest_EmptyMessages(t *testing.T) {
	req := validRequest()
	req.Messages = nil
	err := ValidateChatRequest(req)
	if err == nil || err.Param != "messages" {
		t.Errorf("expected messages error, got %v", err)
	}
}

func TestValidateChatRequest_BadRole(t *testing.T) {
	req := validRequest()
	req.Messages = []ChatMessage{{Role: "robot", Content: "hi"}}
	if err := ValidateChatRequest(req); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestValidateChatRequest_TemperatureRange(t *testing.T) {
	req := validRequest()
	temp := 3.5
	req.Temperature = &temp
	if err := ValidateChatRequest(req); err == nil {
		t.Error("expected error for out-of-range temperature")
	}
}

func TestValidateChatRequest_ToolWithoutName(t *testing.T) {
	req := validRequest()
	req.Tools = []Tool{{Type: "function"}}
	if err := ValidateChatRequest(req); err == nil {
		t.Error("expected error for unnamed function tool")
	}
}

func TestParseToolChoice(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		wantKind string
		wantName string
	}{
		{"unset", nil, "", ""},
		{"none", "none", ToolChoiceNone, ""},
		{"auto", "auto", ToolChoiceAuto, ""},
		{"named", map[string]any{
			"type":     "function",
			"function": map[string]any{"name": "get_weather"},
		}, ToolChoiceFunction, "get_weather"},
		{"malformed object", map[string]any{"type": "function"}, ToolChoiceAuto, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, name := ParseToolChoice(tt.in)
			if kind != tt.wantKind || name != tt.wantName {
				t.Errorf("ParseToolChoice(%v) = (%q, %q), want (%q, %q)",
					tt.in, kind, name, tt.wantKind, tt.wantName)
			}
		})
	}
}

func TestContentParts_String(t *testing.T) {
	parts := ContentParts("hello")
	if len(parts) != 1 || parts[0].Type != "text" || parts[0].Text != "hello" {
		t.Errorf("unexpected parts: %+v", parts)
	}
}

func TestContentParts_Array(t *testing.T) {
	content := []any{
		map[string]any{"type": "text", "text": "look:"},
		map[string]any{"type": "image_url", "image_url": map[string]any{"url": "data:image/png;base64,AAAA"}},
		map[string]any{"type": "audio"},
	}
	parts := ContentParts(content)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d: %+v", len(parts), parts)
	}
	if parts[1].ImageURL == nil || parts[1].ImageURL.URL != "data:image/png;base64,AAAA" {
		t.Errorf("unexpected image part: %+v", parts[1])
	}
}
