package native

import (
	"fmt"
	"strings"
	"unicode"
)

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokNewline
	tokInt
	tokFloat
	tokStr
	tokName
	tokOp     // + - * / % == != < <= > >= = ( ) , .
	tokKeyword // and or not import from as True False None
)

var keywords = map[string]bool{
	"and": true, "or": true, "not": true,
	"import": true, "from": true, "as": true,
	"True": true, "False": true, "None": true,
}

type token struct {
	kind tokKind
	text string
	line int
}

type lexer struct {
	src   string
	pos   int
	line  int
	parens int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1}
}

func (lx *lexer) errf(format string, args ...interface{}) error {
	return fmt.Errorf("line %d: "+format, append([]interface{}{lx.line}, args...)...)
}

func (lx *lexer) peekByte() byte {
	if lx.pos >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos]
}

// next returns the next token. Newlines inside parentheses are skipped, as
// are comment-to-end-of-line sequences introduced by '#'.
func (lx *lexer) next() (token, error) {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			lx.pos++
		case c == '#':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.pos++
			}
		case c == '\n' || c == ';':
			lx.pos++
			if c == '\n' {
				lx.line++
			}
			if lx.parens > 0 {
				continue
			}
			return token{kind: tokNewline, text: "\n", line: lx.line}, nil
		default:
			return lx.lexToken()
		}
	}
	return token{kind: tokEOF, line: lx.line}, nil
}

func (lx *lexer) lexToken() (token, error) {
	c := lx.src[lx.pos]
	line := lx.line
	switch {
	case c >= '0' && c <= '9':
		start := lx.pos
		isFloat := false
		for lx.pos < len(lx.src) {
			b := lx.src[lx.pos]
			if b >= '0' && b <= '9' {
				lx.pos++
			} else if b == '.' && !isFloat && lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] >= '0' && lx.src[lx.pos+1] <= '9' {
				isFloat = true
				lx.pos++
			} else {
				break
			}
		}
		k := tokInt
		if isFloat {
			k = tokFloat
		}
		return token{kind: k, text: lx.src[start:lx.pos], line: line}, nil

	case c == '"' || c == '\'':
		quote := c
		lx.pos++
		var sb strings.Builder
		for {
			if lx.pos >= len(lx.src) {
				return token{}, lx.errf("unterminated string literal")
			}
			b := lx.src[lx.pos]
			if b == quote {
				lx.pos++
				return token{kind: tokStr, text: sb.String(), line: line}, nil
			}
			if b == '\n' {
				return token{}, lx.errf("newline in string literal")
			}
			if b == '\\' && lx.pos+1 < len(lx.src) {
				lx.pos++
				switch lx.src[lx.pos] {
				case 'n':
					sb.WriteByte('\n')
				case 't':
					sb.WriteByte('\t')
				case '\\':
					sb.WriteByte('\\')
				case byte(quote):
					sb.WriteByte(quote)
				default:
					return token{}, lx.errf("unknown escape \\%c", lx.src[lx.pos])
				}
				lx.pos++
				continue
			}
			sb.WriteByte(b)
			lx.pos++
		}

	case isNameStart(rune(c)):
		start := lx.pos
		for lx.pos < len(lx.src) && isNameCont(rune(lx.src[lx.pos])) {
			lx.pos++
		}
		text := lx.src[start:lx.pos]
		if keywords[text] {
			return token{kind: tokKeyword, text: text, line: line}, nil
		}
		return token{kind: tokName, text: text, line: line}, nil

	default:
		// Two-character operators first.
		if lx.pos+1 < len(lx.src) {
			two := lx.src[lx.pos : lx.pos+2]
			switch two {
			case "==", "!=", "<=", ">=":
				lx.pos += 2
				return token{kind: tokOp, text: two, line: line}, nil
			}
		}
		switch c {
		case '+', '-', '*', '/', '%', '<', '>', '=', ',', '.':
			lx.pos++
			return token{kind: tokOp, text: string(c), line: line}, nil
		case '(':
			lx.pos++
			lx.parens++
			return token{kind: tokOp, text: "(", line: line}, nil
		case ')':
			lx.pos++
			if lx.parens > 0 {
				lx.parens--
			}
			return token{kind: tokOp, text: ")", line: line}, nil
		}
		return token{}, lx.errf("unexpected character %q", c)
	}
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNameCont(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
