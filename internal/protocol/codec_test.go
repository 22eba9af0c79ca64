package protocol

import "testing"

func TestEncodeDecodeClientPrompt(t *testing.T) {
	tool := ToolClaude
	wd := "/tmp/proj"
	original := Prompt{Tool: &tool, Message: "hello", WorkingDir: &wd}

	data, err := EncodeClient(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	tag, decoded, err := DecodeClient(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tag != TagPrompt {
		t.Fatalf("tag = %q, want %q", tag, TagPrompt)
	}
	got, ok := decoded.(*Prompt)
	if !ok {
		t.Fatalf("decoded type = %T, want *Prompt", decoded)
	}
	if got.Message != original.Message || *got.Tool != *original.Tool || *got.WorkingDir != *original.WorkingDir {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, original)
	}
}

func TestEncodeDecodeServerToolResponse(t *testing.T) {
	tokens := uint64(42)
	original := ToolResponse{Tool: ToolGemini, Content: "done", Done: true, Tokens: &tokens}

	data, err := EncodeServer(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	tag, decoded, err := DecodeServer(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tag != TagToolResponse {
		t.Fatalf("tag = %q, want %q", tag, TagToolResponse)
	}
	got, ok := decoded.(*ToolResponse)
	if !ok {
		t.Fatalf("decoded type = %T, want *ToolResponse", decoded)
	}
	if got.Tool != original.Tool || got.Content != original.Content || got.Done != original.Done || *got.Tokens != *original.Tokens {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, original)
	}
}

func TestErrorCodeMessages(t *testing.T) {
	if ErrProtocolMismatch.Message() == "" {
		t.Fatal("expected non-empty message for ProtocolMismatch")
	}
	if ErrProtocolMismatch != 11 {
		t.Fatalf("ErrProtocolMismatch = %d, want 11", ErrProtocolMismatch)
	}
	if ErrUnknown != 0 {
		t.Fatalf("ErrUnknown = %d, want 0", ErrUnknown)
	}
}
