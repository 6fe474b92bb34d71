package lex

import (
	"github.com/ritamzico/wdlast/internal/ast"
)

// PartKind classifies one constituent of an interpolated string or command
// body.
type PartKind int

const (
	PartContent PartKind = iota
	PartEscape
	PartPlaceholder
)

// RawPart is one constituent of a string/command body as found by
// ScanInterpolated. For PartPlaceholder, InnerStart/InnerEnd bound the
// placeholder's expression text (excluding the ~{ $ { opener and the
// closing }); each backend reparses that substring with its own
// expression grammar, via a Stream reset to InnerStart.
type RawPart struct {
	Kind       PartKind
	Text       string
	Span       ast.Span
	InnerStart int
	InnerEnd   int
}

// Closer decides whether the byte at text[pos:] closes the interpolated
// region being scanned, returning how many bytes the closing delimiter
// occupies. It is called before escape/placeholder checks at every
// position, so e.g. a heredoc scanner can match ">>>" while a
// double-quote scanner matches a bare `"`.
type Closer func(text string, pos int) (length int, ok bool)

// ScanInterpolated reads raw source bytes from start until Closer
// matches, splitting the content into Content/Escape/Placeholder parts.
// dollarPlaceholders controls whether "${" (in addition to "~{") opens a
// placeholder; command bodies and ordinary string literals pass true,
// while meta strings and import URIs pass false.
//
// It returns the parts found and the byte offset immediately past the
// consumed closing delimiter. The caller must call Stream.ResetAt(end)
// before resuming structural tokenization.
func ScanInterpolated(s *Stream, start int, closer Closer, dollarPlaceholders bool) (parts []RawPart, end int, err error) {
	text := s.text
	pos := start
	contentStart := start

	flush := func(upTo int) {
		if upTo > contentStart {
			parts = append(parts, RawPart{
				Kind: PartContent,
				Text: text[contentStart:upTo],
				Span: ast.NewSpan(s.lines.Position(contentStart), s.lines.Position(upTo)),
			})
		}
	}

	for pos < len(text) {
		if n, ok := closer(text, pos); ok {
			flush(pos)
			return parts, pos + n, nil
		}
		switch {
		case text[pos] == '\\':
			flush(pos)
			escEnd, escErr := scanEscape(text, pos)
			if escErr != nil {
				return nil, 0, escErr
			}
			parts = append(parts, RawPart{
				Kind: PartEscape,
				Text: text[pos:escEnd],
				Span: ast.NewSpan(s.lines.Position(pos), s.lines.Position(escEnd)),
			})
			pos = escEnd
			contentStart = pos
		case text[pos] == '~' && pos+1 < len(text) && text[pos+1] == '{':
			pos, contentStart = scanPlaceholder(s, text, pos, &parts, flush, contentStart)
		case dollarPlaceholders && text[pos] == '$' && pos+1 < len(text) && text[pos+1] == '{':
			pos, contentStart = scanPlaceholder(s, text, pos, &parts, flush, contentStart)
		default:
			pos++
		}
	}
	return nil, 0, ast.Grammarf("unterminated interpolated region starting at offset %d", start)
}

func scanEscape(text string, pos int) (int, error) {
	if pos+1 >= len(text) {
		return 0, ast.Grammarf("dangling escape at offset %d", pos)
	}
	switch text[pos+1] {
	case 'u':
		if pos+6 > len(text) {
			return 0, ast.Grammarf("truncated \\u escape at offset %d", pos)
		}
		return pos + 6, nil
	case 'U':
		if pos+10 > len(text) {
			return 0, ast.Grammarf("truncated \\U escape at offset %d", pos)
		}
		return pos + 10, nil
	default:
		return pos + 2, nil
	}
}

// scanPlaceholder finds the brace matching the one at text[pos+1], treating
// nested '{'/'}' pairs as increasing/decreasing depth. It does not attempt
// to understand nested string literals inside the placeholder; a '}' that
// is itself part of a nested string closes the placeholder early.
func scanPlaceholder(s *Stream, text string, pos int, parts *[]RawPart, flush func(int), contentStart int) (newPos, newContentStart int) {
	flush(pos)
	innerStart := pos + 2
	depth := 1
	i := innerStart
	for i < len(text) {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				*parts = append(*parts, RawPart{
					Kind:       PartPlaceholder,
					Text:       text[pos : i+1],
					Span:       ast.NewSpan(s.lines.Position(pos), s.lines.Position(i+1)),
					InnerStart: innerStart,
					InnerEnd:   i,
				})
				return i + 1, i + 1
			}
		}
		i++
	}
	// Unterminated placeholder: treat the rest of the text as inner content
	// so callers surface a parse error from the expression grammar instead
	// of silently losing source.
	*parts = append(*parts, RawPart{
		Kind:       PartPlaceholder,
		Text:       text[pos:],
		Span:       ast.NewSpan(s.lines.Position(pos), s.lines.Position(len(text))),
		InnerStart: innerStart,
		InnerEnd:   len(text),
	})
	return len(text), len(text)
}
