package codeassist

import (
	"bytes"
	"log/slog"

	"github.com/mbertram/relais/pkg/debug"
)

// ChunkKind tags a StreamChunk variant.
type ChunkKind int

const (
	ChunkContent ChunkKind = iota
	ChunkThinking
	ChunkUsage
	ChunkDone
	ChunkError
)

// StreamChunk is the protocol-agnostic unit produced while consuming a
// backend event stream. ChunkDone and ChunkError are terminal; no chunk
// follows either within one stream.
type StreamChunk struct {
	Kind  ChunkKind
	Text  string // ChunkContent, ChunkThinking
	Usage *UsageMetadata
	Err   string // ChunkError
}

// StreamParser incrementally decodes an SSE-framed backend stream. It is
// line-oriented and keeps a carry-over buffer across reads, so records
// split mid-line by the transport reassemble losslessly.
type StreamParser struct {
	buf []byte
}

// NewStreamParser creates an empty parser.
func NewStreamParser() *StreamParser {
	return &StreamParser{}
}

// Feed appends a read to the buffer and returns the chunks produced by
// every complete line now available. The trailing fragment after the
// last newline stays buffered for the next read.
func (p *StreamParser) Feed(data []byte) []StreamChunk {
	p.buf = append(p.buf, data...)

	var chunks []StreamChunk
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			return chunks
		}
		line := p.buf[:i]
		p.buf = p.buf[i+1:]
		chunks = append(chunks, parseLine(line)...)
	}
}

// parseLine decodes one SSE line. Non-data lines and unparsable
// payloads produce nothing; the stream continues.
func parseLine(line []byte) []StreamChunk {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, []byte("data:")) {
		return nil
	}
	payload := bytes.TrimSpace(line[len("data:"):])
	if len(payload) == 0 {
		return nil
	}
	debug.Raw("streaming", string(payload))

	resp, err := decodeResponse(payload)
	if err != nil {
		slog.Warn("skipping malformed stream record", "error", err.Error())
		return nil
	}

	var chunks []StreamChunk
	if len(resp.Candidates) > 0 {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text == "" {
				continue
			}
			kind := ChunkContent
			if part.Thought {
				kind = ChunkThinking
			}
			chunks = append(chunks, StreamChunk{Kind: kind, Text: part.Text})
		}
	}
	if resp.UsageMetadata != nil {
		chunks = append(chunks, StreamChunk{Kind: ChunkUsage, Usage: resp.UsageMetadata})
	}
	return chunks
}
