package jwplayer

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var setupCallRE = regexp.MustCompile(`jwplayer\s*\(\s*(?:"[^"]*"|'[^']*'|[\w$.]*)\s*\)\s*\.setup\s*\(\s*`)

// Find returns the object literal handed to the first jwplayer(...).setup call found in the
// page scripts.
func Find(page string) (string, bool) {
	z := html.NewTokenizer(strings.NewReader(page))
	inScript := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", false
		case html.StartTagToken:
			name, _ := z.TagName()
			inScript = string(name) == "script"
		case html.EndTagToken, html.SelfClosingTagToken:
			inScript = false
		case html.TextToken:
			if !inScript {
				continue
			}
			if literal, ok := findSetup(string(z.Text())); ok {
				return literal, true
			}
		}
	}
}

func findSetup(script string) (string, bool) {
	for _, loc := range setupCallRE.FindAllStringIndex(script, -1) {
		rest := script[loc[1]:]
		if !strings.HasPrefix(rest, "{") {
			continue
		}
		if literal, ok := balancedObject(rest); ok {
			return literal, true
		}
	}
	return "", false
}

// balancedObject returns the prefix of s spanning the object literal that opens at s[0].
func balancedObject(s string) (string, bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\'', '`':
			end := skipString(s, i)
			if end < 0 {
				return "", false
			}
			i = end
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				nl := strings.IndexByte(s[i:], '\n')
				if nl < 0 {
					return "", false
				}
				i += nl
			} else if i+1 < len(s) && s[i+1] == '*' {
				end := strings.Index(s[i+2:], "*/")
				if end < 0 {
					return "", false
				}
				i += end + 3
			}
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// skipString returns the index of the quote closing the string opened at s[start], or -1.
func skipString(s string, start int) int {
	quote := s[start]
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return -1
}
