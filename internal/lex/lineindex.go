package lex

import (
	"sort"

	"github.com/ritamzico/wdlast/internal/ast"
)

// LineIndex maps a byte offset into a document back to a 0-based
// (line, column) pair. It is built once per document and consulted by both
// backends, so every Position in the resulting AST is computed the same
// way regardless of which sub-lexer instance produced the underlying
// token — sub-lexers are frequently reset to scan string/command bodies
// (see Stream.ResetAt) and do not themselves track a meaningful line
// number past their own restart point.
type LineIndex struct {
	// starts[i] is the byte offset of the first byte of line i (0-based).
	starts []int
}

// NewLineIndex scans text once and records the offset of every line start.
func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{starts: starts}
}

// Position returns the (line, column, offset) triple for a byte offset.
func (li *LineIndex) Position(offset int) ast.Position {
	// Find the last line start <= offset.
	i := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return ast.NewPosition(i, offset-li.starts[i], offset)
}
