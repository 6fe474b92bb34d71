package ast

import "sort"

// Comments is an ordered mapping of source line number to the single
// comment anchored on that line. WDL has no block comments, so at most one
// comment may occupy a given line.
//
// During parsing the cursor of either backend discovers comments lazily
// while lowering functions consume non-comment children, so Comments is
// built up incrementally and handed around by pointer; once a Document is
// returned from the parser facade, no further mutation occurs.
type Comments struct {
	byLine map[int]Anchor[string]
}

// NewComments returns an empty Comments map.
func NewComments() *Comments {
	return &Comments{byLine: make(map[int]Anchor[string])}
}

// TryInsert adds a comment at the given line, returning an
// ErrCommentRepeatedLine error if a comment already occupies that line.
func (c *Comments) TryInsert(line int, comment Anchor[string]) error {
	if _, ok := c.byLine[line]; ok {
		return CommentRepeatedLine(line)
	}
	c.byLine[line] = comment
	return nil
}

// Get returns the comment on the given line, if any.
func (c *Comments) Get(line int) (Anchor[string], bool) {
	a, ok := c.byLine[line]
	return a, ok
}

// Values returns all comments in ascending line order.
func (c *Comments) Values() []Anchor[string] {
	lines := c.sortedLines()
	out := make([]Anchor[string], 0, len(lines))
	for _, l := range lines {
		out = append(out, c.byLine[l])
	}
	return out
}

// Range returns the comments whose line falls in the half-open [start, end)
// range, in ascending line order.
func (c *Comments) Range(start, end int) []Anchor[string] {
	var out []Anchor[string]
	for _, l := range c.sortedLines() {
		if l >= start && l < end {
			out = append(out, c.byLine[l])
		}
	}
	return out
}

// Len returns the number of comments held.
func (c *Comments) Len() int {
	return len(c.byLine)
}

func (c *Comments) sortedLines() []int {
	lines := make([]int, 0, len(c.byLine))
	for l := range c.byLine {
		lines = append(lines, l)
	}
	sort.Ints(lines)
	return lines
}
