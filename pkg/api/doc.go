// Package api defines the public Chat Completions wire types served by the
// relais gateway, the structured error taxonomy shared across packages, and
// helpers for ID generation and request validation.
//
// The types mirror the OpenAI Chat Completions API format. Backend-side
// (Code Assist) types live in pkg/codeassist.
package api
