package codeassist

import (
	"testing"
)

func TestStreamParser_SplitLineReassembly(t *testing.T) {
	p := NewStreamParser()

	chunks := p.Feed([]byte(`data: {"response":{"candidates":[{"content":{"parts":[{"te`))
	if len(chunks) != 0 {
		t.Fatalf("incomplete line must yield no chunks, got %d", len(chunks))
	}

	chunks = p.Feed([]byte("xt\":\"hi\"}]}}]}}\n\n"))
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk, got %d", len(chunks))
	}
	if chunks[0].Kind != ChunkContent || chunks[0].Text != "hi" {
		t.Errorf("unexpected chunk %+v", chunks[0])
	}
}

func TestStreamParser_ThoughtPartsYieldThinkingChunks(t *testing.T) {
	p := NewStreamParser()
	line := `data: {"response":{"candidates":[{"content":{"parts":[` +
		`{"text":"pondering","thought":true},{"text":"answer"}]}}]}}` + "\n\n"

	chunks := p.Feed([]byte(line))
	if len(chunks) != 2 {
		t.Fatalf("expected two chunks, got %d", len(chunks))
	}
	if chunks[0].Kind != ChunkThinking || chunks[0].Text != "pondering" {
		t.Errorf("first chunk should be thinking, got %+v", chunks[0])
	}
	if chunks[1].Kind != ChunkContent || chunks[1].Text != "answer" {
		t.Errorf("second chunk should be content, got %+v", chunks[1])
	}
}

func TestStreamParser_UsageChunk(t *testing.T) {
	p := NewStreamParser()
	line := `data: {"response":{"candidates":[{"content":{"parts":[{"text":"x"}]}}],` +
		`"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":7,"totalTokenCount":10}}}` + "\n\n"

	chunks := p.Feed([]byte(line))
	if len(chunks) != 2 {
		t.Fatalf("expected content plus usage, got %d chunks", len(chunks))
	}
	usage := chunks[1]
	if usage.Kind != ChunkUsage || usage.Usage == nil {
		t.Fatalf("expected usage chunk, got %+v", usage)
	}
	if usage.Usage.PromptTokenCount != 3 || usage.Usage.CandidatesTokenCount != 7 || usage.Usage.TotalTokenCount != 10 {
		t.Errorf("unexpected usage %+v", usage.Usage)
	}
}

func TestStreamParser_MalformedLineSkipped(t *testing.T) {
	p := NewStreamParser()

	chunks := p.Feed([]byte("data: {broken json\n\n"))
	if len(chunks) != 0 {
		t.Fatalf("malformed record must be dropped, got %d chunks", len(chunks))
	}

	// The stream continues after the bad record.
	chunks = p.Feed([]byte(`data: {"response":{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}}` + "\n\n"))
	if len(chunks) != 1 || chunks[0].Text != "ok" {
		t.Errorf("expected parser to recover, got %+v", chunks)
	}
}

func TestStreamParser_IgnoresNonDataLines(t *testing.T) {
	p := NewStreamParser()
	chunks := p.Feed([]byte(": keepalive comment\n\nevent: ping\n\n"))
	if len(chunks) != 0 {
		t.Errorf("non-data lines must yield nothing, got %d chunks", len(chunks))
	}
}

func TestStreamParser_MultipleRecordsInOneRead(t *testing.T) {
	p := NewStreamParser()
	data := `data: {"response":{"candidates":[{"content":{"parts":[{"text":"a"}]}}]}}` + "\n\n" +
		`data: {"response":{"candidates":[{"content":{"parts":[{"text":"b"}]}}]}}` + "\n\n"

	chunks := p.Feed([]byte(data))
	if len(chunks) != 2 {
		t.Fatalf("expected two chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "a" || chunks[1].Text != "b" {
		t.Errorf("order not preserved: %+v", chunks)
	}
}
