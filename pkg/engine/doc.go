// Package engine is the gateway's composition root for request handling:
// it validates the model against the registry, translates the chat request
// to the backend shape, dispatches it, and translates the result back,
// blocking for Generate and incrementally for GenerateStream.
package engine
