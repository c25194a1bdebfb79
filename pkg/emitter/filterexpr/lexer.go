package filterexpr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// SyntaxError reports a malformed filter expression.
type SyntaxError struct {
	Src string
	Pos int
	Msg string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("filter %q: %s at offset %d", e.Src, e.Msg, e.Pos)
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case c == utf8.RuneError && size == 1:
			return nil, &SyntaxError{Src: src, Pos: i, Msg: "invalid UTF-8"}
		case unicode.IsSpace(c):
			i += size
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '\'' || c == '"':
			end := strings.IndexRune(src[i+1:], c)
			if end < 0 {
				return nil, &SyntaxError{Src: src, Pos: i, Msg: "unterminated string"}
			}
			toks = append(toks, token{kind: tokString, text: src[i+1 : i+1+end], pos: i})
			i += end + 2
		case strings.ContainsRune("=!<>", c):
			op := string(c)
			if i+1 < len(src) && src[i+1] == '=' {
				op += "="
			}
			if op == "=" {
				return nil, &SyntaxError{Src: src, Pos: i, Msg: "single '=' is not an operator"}
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		case isDigit(src[i]) || (c == '-' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			i++
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], pos: start})
		case isIdentRune(c):
			start := i
			for i < len(src) {
				r, n := utf8.DecodeRuneInString(src[i:])
				if !isIdentRune(r) {
					break
				}
				i += n
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		default:
			return nil, &SyntaxError{Src: src, Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

func isDigit(b byte) bool { return '0' <= b && b <= '9' }

// isIdentRune accepts Unicode letters and digits. RuneError is rejected so
// malformed input never forms part of a name.
func isIdentRune(c rune) bool {
	return c == '_' || c == '.' || unicode.IsLetter(c) || unicode.IsDigit(c)
}
