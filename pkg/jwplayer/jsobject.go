package jwplayer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
)

// ErrInvalidLiteral is returned when an object literal cannot be turned into JSON.
var ErrInvalidLiteral = errors.New("invalid object literal")

// ToJSON rewrites a JavaScript object literal as JSON. It handles single quoted and template
// strings, unquoted keys, trailing commas, comments, hexadecimal numbers and undefined.
// Bare identifiers other than keywords become strings.
func ToJSON(literal string) (string, error) {
	out := make([]byte, 0, len(literal))

	for i := 0; i < len(literal); {
		c := literal[i]
		switch {
		case c == '"' || c == '\'' || c == '`':
			value, n, err := readString(literal[i:])
			if err != nil {
				return "", err
			}
			b, err := json.Marshal(value)
			if err != nil {
				return "", fmt.Errorf("failed to json.Marshal: %w", err)
			}
			out = append(out, b...)
			i += n

		case c == '/' && i+1 < len(literal) && literal[i+1] == '/':
			nl := strings.IndexByte(literal[i:], '\n')
			if nl < 0 {
				i = len(literal)
			} else {
				i += nl
			}

		case c == '/' && i+1 < len(literal) && literal[i+1] == '*':
			end := strings.Index(literal[i+2:], "*/")
			if end < 0 {
				return "", fmt.Errorf("%w: unterminated comment", ErrInvalidLiteral)
			}
			i += end + 4

		case c == '}' || c == ']':
			out = trimTrailingComma(out)
			out = append(out, c)
			i++

		case isIdentStart(c):
			j := i + 1
			for j < len(literal) && isIdentPart(literal[j]) {
				j++
			}
			switch word := literal[i:j]; word {
			case "true", "false", "null":
				out = append(out, word...)
			case "undefined", "NaN", "Infinity":
				out = append(out, "null"...)
			default:
				out = strconv.AppendQuote(out, word)
			}
			i = j

		case isDigit(c) || (c == '.' && i+1 < len(literal) && isDigit(literal[i+1])):
			j := i + 1
			for j < len(literal) && isNumberPart(literal, j) {
				j++
			}
			number, err := normalizeNumber(literal[i:j])
			if err != nil {
				return "", err
			}
			out = append(out, number...)
			i = j

		default:
			out = append(out, c)
			i++
		}
	}

	return string(out), nil
}

// readString decodes the quoted string at the start of s and reports how many bytes it spans.
func readString(s string) (string, int, error) {
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == quote:
			return b.String(), i + 1, nil
		case quote == '`' && c == '$' && i+1 < len(s) && s[i+1] == '{':
			return "", 0, fmt.Errorf("%w: template substitution", ErrInvalidLiteral)
		case c != '\\':
			b.WriteByte(c)
			continue
		}

		i++
		if i >= len(s) {
			break
		}
		switch e := s[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case '\n':
			// line continuation
		case 'x':
			if i+2 >= len(s) {
				return "", 0, fmt.Errorf("%w: truncated \\x escape", ErrInvalidLiteral)
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", 0, fmt.Errorf("%w: bad \\x escape", ErrInvalidLiteral)
			}
			b.WriteRune(rune(v))
			i += 2
		case 'u':
			r, n, err := readUnicodeEscape(s[i+1:])
			if err != nil {
				return "", 0, err
			}
			if utf16.IsSurrogate(r) && strings.HasPrefix(s[i+1+n:], `\u`) {
				low, m, err := readUnicodeEscape(s[i+1+n+2:])
				if err == nil {
					r = utf16.DecodeRune(r, low)
					n += 2 + m
				}
			}
			b.WriteRune(r)
			i += n
		default:
			b.WriteByte(e)
		}
	}
	return "", 0, fmt.Errorf("%w: unterminated string", ErrInvalidLiteral)
}

// readUnicodeEscape decodes the hex part of a \u escape, either XXXX or {X...}.
func readUnicodeEscape(s string) (rune, int, error) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return 0, 0, fmt.Errorf("%w: bad \\u escape", ErrInvalidLiteral)
		}
		v, err := strconv.ParseUint(s[1:end], 16, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: bad \\u escape", ErrInvalidLiteral)
		}
		return rune(v), end + 1, nil
	}
	if len(s) < 4 {
		return 0, 0, fmt.Errorf("%w: truncated \\u escape", ErrInvalidLiteral)
	}
	v, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad \\u escape", ErrInvalidLiteral)
	}
	return rune(v), 4, nil
}

func normalizeNumber(word string) (string, error) {
	lower := strings.ToLower(word)
	if strings.HasPrefix(lower, "0x") {
		v, err := strconv.ParseInt(lower[2:], 16, 64)
		if err != nil {
			return "", fmt.Errorf("%w: bad number %q", ErrInvalidLiteral, word)
		}
		return strconv.FormatInt(v, 10), nil
	}
	if _, err := strconv.ParseFloat(word, 64); err != nil {
		return "", fmt.Errorf("%w: bad number %q", ErrInvalidLiteral, word)
	}
	if strings.HasPrefix(word, ".") {
		word = "0" + word
	}
	if strings.HasSuffix(word, ".") {
		word += "0"
	}
	return word, nil
}

func trimTrailingComma(out []byte) []byte {
	end := len(out)
	for end > 0 && isSpace(out[end-1]) {
		end--
	}
	if end > 0 && out[end-1] == ',' {
		return out[:end-1]
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isNumberPart(s string, i int) bool {
	c := s[i]
	switch {
	case isDigit(c), c == '.', c == 'x', c == 'X':
		return true
	case ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F'):
		return true
	case c == '+' || c == '-':
		return s[i-1] == 'e' || s[i-1] == 'E'
	}
	return false
}
