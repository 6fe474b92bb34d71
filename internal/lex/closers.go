package lex

// QuoteCloser matches a single unescaped quote byte (" or ').
func QuoteCloser(quote byte) Closer {
	return func(text string, pos int) (int, bool) {
		if text[pos] == quote {
			return 1, true
		}
		return 0, false
	}
}

// HeredocCloser matches the closing ">>>" of a `command <<< ... >>>` body.
func HeredocCloser() Closer {
	return func(text string, pos int) (int, bool) {
		if pos+3 <= len(text) && text[pos:pos+3] == ">>>" {
			return 3, true
		}
		return 0, false
	}
}

// BraceCloser matches the closing "}" of a `command { ... }` body.
func BraceCloser() Closer {
	return func(text string, pos int) (int, bool) {
		if text[pos] == '}' {
			return 1, true
		}
		return 0, false
	}
}
