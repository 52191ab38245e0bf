// Package registry holds the static model-capability table. It is read-only
// at runtime: every model the gateway accepts is declared here, together
// with the thinking mode the backend expects for it.
package registry

import "strings"

// ThinkingMode selects how hidden-reasoning capacity is requested for a model.
type ThinkingMode int

const (
	// ThinkingNone disables thought augmentation entirely.
	ThinkingNone ThinkingMode = iota
	// ThinkingLevel requests a named reasoning level ("low" or "high").
	ThinkingLevel
	// ThinkingBudget requests an explicit reasoning token budget.
	ThinkingBudget
)

// Level values for ThinkingLevel models.
const (
	LevelLow  = "low"
	LevelHigh = "high"
)

// Model describes one backend model the gateway can serve.
type Model struct {
	ID       string
	OwnedBy  string
	Thinking ThinkingMode
	// Level is set for ThinkingLevel models.
	Level string
	// Budget is the reasoning token budget for ThinkingBudget models.
	Budget int
}

// BudgetFamilySubstring identifies the provider family whose models take a
// thinking budget and the stricter tool-calling validation mode. Matching is
// case-insensitive on the model ID.
const BudgetFamilySubstring = "claude"

// IsBudgetFamily reports whether the model ID belongs to the thinking-budget
// provider family.
func IsBudgetFamily(modelID string) bool {
	return strings.Contains(strings.ToLower(modelID), BudgetFamilySubstring)
}

var models = []Model{
	{ID: "gemini-3-pro-high", OwnedBy: "google", Thinking: ThinkingLevel, Level: LevelHigh},
	{ID: "gemini-3-pro-low", OwnedBy: "google", Thinking: ThinkingLevel, Level: LevelLow},
	{ID: "gemini-3-flash", OwnedBy: "google", Thinking: ThinkingLevel, Level: LevelLow},
	{ID: "gemini-2.5-flash", OwnedBy: "google", Thinking: ThinkingNone},
	{ID: "gemini-2.5-flash-lite", OwnedBy: "google", Thinking: ThinkingNone},
	{ID: "claude-sonnet-4-5", OwnedBy: "anthropic", Thinking: ThinkingNone},
	{ID: "claude-sonnet-4-5-thinking", OwnedBy: "anthropic", Thinking: ThinkingBudget, Budget: 32768},
	{ID: "claude-opus-4-5-thinking", OwnedBy: "anthropic", Thinking: ThinkingBudget, Budget: 32768},
}

var byID = func() map[string]Model {
	m := make(map[string]Model, len(models))
	for _, md := range models {
		m[md.ID] = md
	}
	return m
}()

// Lookup returns the descriptor for a model ID.
func Lookup(id string) (Model, bool) {
	m, ok := byID[id]
	return m, ok
}

// All returns every registered model in declaration order.
func All() []Model {
	out := make([]Model, len(models))
	copy(out, models)
	return out
}
