// Package dateutil formats timestamps with yyyy-MM-dd style patterns.
//
// Supported letters: yyyy yy MMMM MMM MM M dd d HH H hh h mm m ss s SSS a
// EEEE EEE Z XXX. Text inside single quotes is copied verbatim ('' is a literal
// quote) and every other non-letter is a literal.
package dateutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/vjeantet/jodaTime"
)

// DefaultPattern renders a local date and time to the second.
const DefaultPattern = "yyyy-MM-dd HH:mm:ss"

// supported lists the pattern tokens Format accepts. Everything but XXX is
// rendered by jodaTime, which shares the letter set.
var supported = func() map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields("yyyy yy MMMM MMM MM M dd d HH H hh h mm m ss s SSS a EEEE EEE Z XXX") {
		set[tok] = true
	}
	return set
}()

// Format renders t using pattern.
func Format(t time.Time, pattern string) (string, error) {
	tokens, err := tokenize(pattern)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, tok := range tokens {
		if tok.literal {
			b.WriteString(tok.text)
			continue
		}
		b.WriteString(render(t, tok.text))
	}
	return b.String(), nil
}

// MustFormat is Format for constant patterns; it panics on an invalid pattern.
func MustFormat(t time.Time, pattern string) string {
	s, err := Format(t, pattern)
	if err != nil {
		panic(err)
	}
	return s
}

func render(t time.Time, token string) string {
	if token == "XXX" {
		// ISO 8601 offset, "Z" for UTC.
		return t.Format("Z07:00")
	}
	return jodaTime.Format(token, t)
}

type token struct {
	text    string
	literal bool
}

func tokenize(pattern string) ([]token, error) {
	var tokens []token
	runes := []rune(pattern)

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '\'':
			lit, next, err := quoted(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{text: lit, literal: true})
			i = next
		case isLetter(r):
			j := i
			for j < len(runes) && runes[j] == r {
				j++
			}
			text := string(runes[i:j])
			if !supported[text] {
				return nil, fmt.Errorf("unsupported pattern token %q at offset %d", text, i)
			}
			tokens = append(tokens, token{text: text})
			i = j
		default:
			tokens = append(tokens, token{text: string(r), literal: true})
			i++
		}
	}
	return tokens, nil
}

// quoted reads a single-quoted literal starting at runes[start].
func quoted(runes []rune, start int) (string, int, error) {
	if start+1 < len(runes) && runes[start+1] == '\'' {
		return "'", start + 2, nil
	}

	var b strings.Builder
	for i := start + 1; i < len(runes); i++ {
		if runes[i] != '\'' {
			b.WriteRune(runes[i])
			continue
		}
		if i+1 < len(runes) && runes[i+1] == '\'' {
			b.WriteRune('\'')
			i++
			continue
		}
		return b.String(), i + 1, nil
	}
	return "", 0, fmt.Errorf("unterminated quote at offset %d", start)
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
