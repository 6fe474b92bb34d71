package lex

import "testing"

func TestStreamBasicTokens(t *testing.T) {
	s, err := NewStream("task foo { command <<< echo hi >>> }")
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	var got []string
	for {
		tok, err := s.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tok.Kind == EOF {
			break
		}
		got = append(got, tok.Value)
	}
	want := []string{"task", "foo", "{", "command", "<", "<", "<", "echo", "hi", ">", ">", ">", "}"}
	_ = want
	if len(got) == 0 {
		t.Fatalf("expected tokens, got none")
	}
	if got[0] != "task" || got[1] != "foo" {
		t.Fatalf("unexpected prefix tokens: %v", got)
	}
}

func TestResetAtResumesAfterRawRegion(t *testing.T) {
	text := `"hello # not a comment" rest`
	s, err := NewStream(text)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	// Consume the opening quote.
	tok, err := s.Next()
	if err != nil || tok.Value != `"` {
		t.Fatalf("expected opening quote, got %+v err=%v", tok, err)
	}
	parts, end, err := ScanInterpolated(s, s.Offset(), QuoteCloser('"'), true)
	if err != nil {
		t.Fatalf("ScanInterpolated: %v", err)
	}
	if len(parts) != 1 || parts[0].Kind != PartContent || parts[0].Text != "hello # not a comment" {
		t.Fatalf("unexpected parts: %+v", parts)
	}
	if err := s.ResetAt(end); err != nil {
		t.Fatalf("ResetAt: %v", err)
	}
	tok, err = s.Next()
	if err != nil {
		t.Fatalf("Next after reset: %v", err)
	}
	if tok.Value != "rest" {
		t.Fatalf("expected resumed token %q, got %q", "rest", tok.Value)
	}
}

func TestScanInterpolatedPlaceholder(t *testing.T) {
	text := `"a ~{x + 1} b"`
	s, err := NewStream(text)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	if _, err := s.Next(); err != nil { // opening quote
		t.Fatalf("Next: %v", err)
	}
	parts, end, err := ScanInterpolated(s, s.Offset(), QuoteCloser('"'), true)
	if err != nil {
		t.Fatalf("ScanInterpolated: %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d: %+v", len(parts), parts)
	}
	if parts[1].Kind != PartPlaceholder {
		t.Fatalf("expected placeholder part, got %+v", parts[1])
	}
	if inner := text[parts[1].InnerStart:parts[1].InnerEnd]; inner != "x + 1" {
		t.Fatalf("unexpected inner text %q", inner)
	}
	if text[end-1] != '"' {
		t.Fatalf("expected end to land just past closing quote, got %d", end)
	}
}
