// Package transport is the HTTP front end of the gateway: routing,
// request decoding and validation, SSE stream writing, error-to-status
// mapping, and the middleware chain (request id, logging, recovery,
// optional inbound API key).
package transport
