package treewalk

import "github.com/ritamzico/wdlast/internal/ast"

// blockState names one step of the delimited-list state machine every
// brace/bracket/paren list in the grammar drives through:
//
//	Enter -> Open -> Item -> (NextItem | NextDelim -> Delim -> NextItem)*
//	      -> Exhaust -> Exit -> Done
//
// Enter consumes the opening delimiter and Open checks for an immediately
// closed list; each Item parses one element;
// NextItem checks whether another element follows directly, NextDelim
// checks whether a separator (",") precedes the next element, Exhaust
// recognizes the closing delimiter, and Exit consumes it. This mirrors
// the cursor state machine original_source/src/parsers/tree_sitter drives
// over incremental parse trees, adapted here to drive the same shape of
// decision over Parser's token stream instead of a pre-built tree.
type blockState int

const (
	stateEnter blockState = iota
	stateOpen
	stateItem
	stateNextItem
	stateNextDelim
	stateDelim
	stateExhaust
	stateExit
	stateDone
)

// parseBlock drives the state machine above: it consumes open, then
// repeatedly parses items (optionally separated by a "," delimiter) until
// close is seen, then consumes close. A delimiter immediately before close
// (a trailing comma) is always accepted.
func (p *Parser) parseBlock(open, close string, parseItem func() (*Node, error)) ([]*Node, ast.Span, error) {
	state := stateEnter
	var items []*Node
	var span ast.Span

	for {
		switch state {
		case stateEnter:
			tok, err := p.expectPunct(open)
			if err != nil {
				return nil, span, err
			}
			span.Start = tok.Span.Start
			state = stateOpen
		case stateOpen:
			closed, err := p.at(close)
			if err != nil {
				return nil, span, err
			}
			if closed {
				state = stateExhaust
				continue
			}
			state = stateItem
		case stateItem:
			item, err := parseItem()
			if err != nil {
				return nil, span, err
			}
			items = append(items, item)
			state = stateNextItem
		case stateNextItem:
			closed, err := p.at(close)
			if err != nil {
				return nil, span, err
			}
			if closed {
				state = stateExhaust
				continue
			}
			state = stateNextDelim
		case stateNextDelim:
			hasDelim, err := p.at(",")
			if err != nil {
				return nil, span, err
			}
			if hasDelim {
				state = stateDelim
				continue
			}
			// No delimiter and not at close: WDL lists are also legal with
			// no separator between declarations, so treat this the same as
			// finding another item directly.
			state = stateItem
		case stateDelim:
			if _, err := p.expectPunct(","); err != nil {
				return nil, span, err
			}
			closed, err := p.at(close)
			if err != nil {
				return nil, span, err
			}
			if closed {
				state = stateExhaust
				continue
			}
			state = stateItem
		case stateExhaust:
			state = stateExit
		case stateExit:
			tok, err := p.expectPunct(close)
			if err != nil {
				return nil, span, err
			}
			span.End = tok.Span.End
			state = stateDone
		case stateDone:
			return items, span, nil
		}
	}
}
