package codeassist

import (
	"encoding/json"

	"github.com/tidwall/sjson"
)

// Content is one conversation turn on the backend wire.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is one element of a turn. Exactly one of the payload fields is
// set; Thought marks hidden reasoning text.
type Part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
	InlineData       *Blob             `json:"inlineData,omitempty"`
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse carries a tool result back to the model.
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// Blob is inline binary data, base64-encoded.
type Blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FunctionDeclaration exposes one callable function to the model.
type FunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Tool groups function declarations.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

// Function calling modes.
const (
	ModeNone      = "NONE"
	ModeAuto      = "AUTO"
	ModeAny       = "ANY"
	ModeValidated = "VALIDATED"
)

// FunctionCallingConfig restricts how the model may call functions.
type FunctionCallingConfig struct {
	Mode                 string   `json:"mode"`
	AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
}

// ToolConfig wraps the function calling configuration.
type ToolConfig struct {
	FunctionCallingConfig FunctionCallingConfig `json:"functionCallingConfig"`
}

// ThinkingConfig controls hidden-reasoning token allocation. Level and
// budget are mutually exclusive; which one applies is a property of the
// model, not the request.
type ThinkingConfig struct {
	IncludeThoughts bool   `json:"includeThoughts,omitempty"`
	ThinkingBudget  *int   `json:"thinkingBudget,omitempty"`
	ThinkingLevel   string `json:"thinkingLevel,omitempty"`
}

// GenerationConfig carries sampling parameters. Fields are pointers so
// absent caller values stay absent on the wire.
type GenerationConfig struct {
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"topP,omitempty"`
	MaxOutputTokens *int            `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  *ThinkingConfig `json:"thinkingConfig,omitempty"`
}

// GenerateRequest is the translated generation request. Extra carries
// wire-level flags outside the stable schema (keyed by JSON path); it is
// merged into the serialized form rather than modeled as named fields.
type GenerateRequest struct {
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	Contents          []Content         `json:"contents"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	Tools             []Tool            `json:"tools,omitempty"`
	ToolConfig        *ToolConfig       `json:"toolConfig,omitempty"`

	Extra map[string]any `json:"-"`
}

// MarshalJSON merges the passthrough fields into the encoded request.
func (r GenerateRequest) MarshalJSON() ([]byte, error) {
	type plain GenerateRequest
	data, err := json.Marshal(plain(r))
	if err != nil || len(r.Extra) == 0 {
		return data, err
	}
	for path, value := range r.Extra {
		if data, err = sjson.SetBytes(data, path, value); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Envelope is the outer body posted to the generation endpoints.
type Envelope struct {
	Project   string           `json:"project"`
	Model     string           `json:"model"`
	Request   *GenerateRequest `json:"request"`
	UserAgent string           `json:"userAgent"`
	RequestID string           `json:"requestId"`
}

// Candidate is one alternative generation. Only the first is consumed.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// UsageMetadata is the backend's token accounting.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// GenerateResponse is the unwrapped generation result.
type GenerateResponse struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

// decodeResponse unwraps a generation result. The backend nests the
// payload under a "response" key; bare payloads are accepted too.
func decodeResponse(data []byte) (*GenerateResponse, error) {
	var env struct {
		Response *GenerateResponse `json:"response"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Response != nil {
		return env.Response, nil
	}
	var resp GenerateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
