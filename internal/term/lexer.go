package term

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// tokenType represents the type of a lexical token
type tokenType int

const (
	tokenEOF tokenType = iota
	tokenLBrace
	tokenRBrace
	tokenLBracket
	tokenRBracket
	tokenComma
	tokenEnd      // terminating '.'
	tokenBinOpen  // <<
	tokenBinClose // >>
	tokenAtom
	tokenString
	tokenInteger
	tokenFloat
	tokenChar
	tokenVar
	tokenMapOpen // #{
	tokenArrow   // =>
)

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "end of input"
	case tokenLBrace:
		return "'{'"
	case tokenRBrace:
		return "'}'"
	case tokenLBracket:
		return "'['"
	case tokenRBracket:
		return "']'"
	case tokenComma:
		return "','"
	case tokenEnd:
		return "'.'"
	case tokenBinOpen:
		return "'<<'"
	case tokenBinClose:
		return "'>>'"
	case tokenAtom:
		return "atom"
	case tokenString:
		return "string"
	case tokenInteger:
		return "integer"
	case tokenFloat:
		return "float"
	case tokenChar:
		return "character"
	case tokenVar:
		return "variable"
	case tokenMapOpen:
		return "'#{'"
	case tokenArrow:
		return "'=>'"
	}
	return "token"
}

type token struct {
	typ   tokenType
	value string
	line  int
	col   int
}

// SyntaxError reports where a term could not be read.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Col, e.Msg)
}

type lexer struct {
	input string
	pos   int
	line  int
	col   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input, line: 1, col: 1}
}

func (l *lexer) errorf(format string, args ...any) error {
	return &SyntaxError{Line: l.line, Col: l.col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.input) {
		return 0
	}
	return l.input[l.pos+n]
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.input); i++ {
		if l.input[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

// skipSpace advances past whitespace and % comments.
func (l *lexer) skipSpace() {
	for l.pos < len(l.input) {
		ch := l.peek()
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			l.advance(1)
		case ch == '%':
			for l.pos < len(l.input) && l.peek() != '\n' {
				l.advance(1)
			}
		default:
			return
		}
	}
}

func (l *lexer) nextToken() (token, error) {
	l.skipSpace()
	tok := token{line: l.line, col: l.col}
	if l.pos >= len(l.input) {
		tok.typ = tokenEOF
		return tok, nil
	}

	ch := l.peek()
	switch ch {
	case '{':
		l.advance(1)
		tok.typ = tokenLBrace
		return tok, nil
	case '}':
		l.advance(1)
		tok.typ = tokenRBrace
		return tok, nil
	case '[':
		l.advance(1)
		tok.typ = tokenLBracket
		return tok, nil
	case ']':
		l.advance(1)
		tok.typ = tokenRBracket
		return tok, nil
	case ',':
		l.advance(1)
		tok.typ = tokenComma
		return tok, nil
	case '.':
		next := l.peekAt(1)
		if next == 0 || next == ' ' || next == '\t' || next == '\r' || next == '\n' || next == '%' {
			l.advance(1)
			tok.typ = tokenEnd
			return tok, nil
		}
		return token{}, l.errorf("unexpected '.'")
	case '<':
		if l.peekAt(1) == '<' {
			l.advance(2)
			tok.typ = tokenBinOpen
			return tok, nil
		}
	case '>':
		if l.peekAt(1) == '>' {
			l.advance(2)
			tok.typ = tokenBinClose
			return tok, nil
		}
	case '#':
		if l.peekAt(1) == '{' {
			l.advance(2)
			tok.typ = tokenMapOpen
			return tok, nil
		}
	case '=':
		if l.peekAt(1) == '>' {
			l.advance(2)
			tok.typ = tokenArrow
			return tok, nil
		}
	case '$':
		r, err := l.readChar()
		if err != nil {
			return token{}, err
		}
		tok.typ = tokenChar
		tok.value = string(r)
		return tok, nil
	case '"':
		s, err := l.readQuoted('"')
		if err != nil {
			return token{}, err
		}
		tok.typ = tokenString
		tok.value = s
		return tok, nil
	case '\'':
		s, err := l.readQuoted('\'')
		if err != nil {
			return token{}, err
		}
		tok.typ = tokenAtom
		tok.value = s
		return tok, nil
	}

	switch {
	case ch == '-' && isDigit(l.peekAt(1)), isDigit(ch):
		tok.typ, tok.value = l.readNumber()
		return tok, nil
	case ch >= 'a' && ch <= 'z':
		tok.typ = tokenAtom
		tok.value = l.readWhile(0, isNameChar)
		return tok, nil
	case (ch >= 'A' && ch <= 'Z') || ch == '_':
		tok.typ = tokenVar
		tok.value = l.readWhile(0, isNameChar)
		return tok, nil
	}

	return token{}, l.errorf("unexpected character %q", ch)
}

// readWhile consumes skip leading bytes unconditionally, then every byte
// accepted by ok.
func (l *lexer) readWhile(skip int, ok func(byte) bool) string {
	start := l.pos
	l.advance(skip)
	for l.pos < len(l.input) && ok(l.peek()) {
		l.advance(1)
	}
	return l.input[start:l.pos]
}

// readNumber reads an integer, a based integer (16#ff) or a float
// (1.5, 2.0e-3). The literal text is returned unchanged.
func (l *lexer) readNumber() (tokenType, string) {
	start := l.pos
	l.readWhile(1, isDigit)
	switch {
	case l.peek() == '#' && isAlnum(l.peekAt(1)):
		l.readWhile(1, isAlnum)
		return tokenInteger, l.input[start:l.pos]
	case l.peek() == '.' && isDigit(l.peekAt(1)):
		l.readWhile(1, isDigit)
		if e := l.peek(); e == 'e' || e == 'E' {
			switch {
			case isDigit(l.peekAt(1)):
				l.readWhile(1, isDigit)
			case (l.peekAt(1) == '-' || l.peekAt(1) == '+') && isDigit(l.peekAt(2)):
				l.readWhile(2, isDigit)
			}
		}
		return tokenFloat, l.input[start:l.pos]
	}
	return tokenInteger, l.input[start:l.pos]
}

// readChar reads a character literal such as $a, $, or $\n.
func (l *lexer) readChar() (rune, error) {
	l.advance(1)
	if l.pos >= len(l.input) {
		return 0, l.errorf("unterminated character literal")
	}
	if l.peek() == '\\' {
		r, ok := charEscapes[l.peekAt(1)]
		if !ok {
			return 0, l.errorf("unsupported escape $\\%c", l.peekAt(1))
		}
		l.advance(2)
		return r, nil
	}
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.advance(size)
	return r, nil
}

var charEscapes = map[byte]rune{
	'n': '\n', 't': '\t', 'r': '\r', 's': ' ', 'e': 0x1b,
	'0': 0, '\\': '\\', '\'': '\'', '"': '"',
}

// readQuoted reads a string or quoted atom, resolving the escapes that
// appear in practice.
func (l *lexer) readQuoted(quote byte) (string, error) {
	l.advance(1)
	var sb strings.Builder
	for {
		if l.pos >= len(l.input) {
			return "", l.errorf("unterminated %s", quoteKind(quote))
		}
		ch := l.peek()
		if ch == quote {
			l.advance(1)
			return sb.String(), nil
		}
		if ch == '\\' {
			next := l.peekAt(1)
			switch next {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\', '"', '\'':
				sb.WriteByte(next)
			default:
				return "", l.errorf("unsupported escape \\%c", next)
			}
			l.advance(2)
			continue
		}
		sb.WriteByte(ch)
		l.advance(1)
	}
}

func quoteKind(q byte) string {
	if q == '"' {
		return "string literal"
	}
	return "quoted atom"
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isAlnum(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isNameChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || isDigit(ch) || ch == '_' || ch == '@'
}
