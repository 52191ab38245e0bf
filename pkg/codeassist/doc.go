// Package codeassist implements the Code Assist backend protocol: the
// generation wire types, request/response translation to and from the
// public chat-completion shapes, multi-host dispatch with ordered
// failover, and incremental SSE stream parsing.
package codeassist
