package modules

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Quote quotes s as a single /bin/sh word.
func Quote(s string) string {
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return q
}

// QuoteAll quotes every word and joins them with spaces.
func QuoteAll(words ...string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = Quote(w)
	}
	return strings.Join(quoted, " ")
}

// Words splits a command line into words the way a shell would, without
// expanding anything. Operators such as "|" or ">" are ordinary words.
func Words(s string) ([]string, error) {
	tokens, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = unquoteWord(tok)
	}
	return words, nil
}

func unquoteWord(tok string) string {
	var (
		b      strings.Builder
		quote  rune
		escape bool
	)
	for _, r := range tok {
		switch {
		case escape:
			b.WriteRune(r)
			escape = false
		case r == '\\' && quote != '\'':
			escape = true
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
