package term

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

type parser struct {
	lexer   *lexer
	current token
	vars    map[string]bool
}

func newParser(input string, vars []string) (*parser, error) {
	p := &parser{lexer: newLexer(input), vars: make(map[string]bool, len(vars))}
	for _, v := range vars {
		p.vars[v] = true
	}
	tok, err := p.lexer.nextToken()
	if err != nil {
		return nil, err
	}
	p.current = tok
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lexer.nextToken()
	if err != nil {
		return err
	}
	p.current = tok
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Line: p.current.line, Col: p.current.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(typ tokenType) error {
	if p.current.typ != typ {
		return p.errorf("expected %s, got %s", typ, p.describe())
	}
	return p.advance()
}

func (p *parser) describe() string {
	if p.current.value != "" {
		return fmt.Sprintf("%s %q", p.current.typ, p.current.value)
	}
	return p.current.typ.String()
}

// Parse reads every dot-terminated term in src. vars names the placeholder
// variables the input may reference; any other variable is an error.
func Parse(src []byte, vars ...string) ([]Term, error) {
	p, err := newParser(string(src), vars)
	if err != nil {
		return nil, err
	}

	var forms []Term
	for p.current.typ != tokenEOF {
		t, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokenEnd); err != nil {
			return nil, err
		}
		forms = append(forms, t)
	}
	return forms, nil
}

// ParseOne reads a source that must contain exactly one dot-terminated term.
func ParseOne(src []byte, vars ...string) (Term, error) {
	forms, err := Parse(src, vars...)
	if err != nil {
		return nil, err
	}
	if len(forms) != 1 {
		return nil, fmt.Errorf("expected exactly one term, found %d", len(forms))
	}
	return forms[0], nil
}

func (p *parser) parseTerm() (Term, error) {
	tok := p.current
	switch tok.typ {
	case tokenAtom:
		return Atom(tok.value), p.advance()
	case tokenString:
		s, err := p.parseAdjacentStrings()
		return String(s), err
	case tokenInteger:
		n, err := parseInteger(tok.value)
		if err != nil {
			return nil, p.errorf("invalid integer %q", tok.value)
		}
		return Integer(n), p.advance()
	case tokenFloat:
		return Float(tok.value), p.advance()
	case tokenChar:
		r, _ := utf8.DecodeRuneInString(tok.value)
		return Char(r), p.advance()
	case tokenMapOpen:
		return p.parseMap()
	case tokenVar:
		if !p.vars[tok.value] {
			return nil, p.errorf("unbound variable %s", tok.value)
		}
		return Var(tok.value), p.advance()
	case tokenLBrace:
		elems, err := p.parseSeq(tokenRBrace)
		return Tuple(elems), err
	case tokenLBracket:
		elems, err := p.parseSeq(tokenRBracket)
		return List(elems), err
	case tokenBinOpen:
		return p.parseBinary()
	}
	return nil, p.errorf("unexpected %s", p.describe())
}

// parseAdjacentStrings joins "a" "b" into "ab" the way the Erlang reader does.
func (p *parser) parseAdjacentStrings() (string, error) {
	s := p.current.value
	if err := p.advance(); err != nil {
		return "", err
	}
	for p.current.typ == tokenString {
		s += p.current.value
		if err := p.advance(); err != nil {
			return "", err
		}
	}
	return s, nil
}

// parseSeq parses the comma-separated elements after an opening bracket up to
// and including the closing token.
func (p *parser) parseSeq(closing tokenType) ([]Term, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	elems := []Term{}
	if p.current.typ == closing {
		return elems, p.advance()
	}
	for {
		t, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		elems = append(elems, t)
		if p.current.typ == tokenComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		return elems, p.expect(closing)
	}
}

func (p *parser) parseBinary() (Term, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.current.typ == tokenBinClose {
		return Binary(""), p.advance()
	}
	if p.current.typ != tokenString {
		return nil, p.errorf("only string binaries are supported, got %s", p.describe())
	}
	s, err := p.parseAdjacentStrings()
	if err != nil {
		return nil, err
	}
	return Binary(s), p.expect(tokenBinClose)
}

// parseInteger accepts decimal and Base#Digits literals.
func parseInteger(lit string) (int64, error) {
	base, digits, ok := strings.Cut(lit, "#")
	if !ok {
		return strconv.ParseInt(lit, 10, 64)
	}
	neg := strings.HasPrefix(base, "-")
	b, err := strconv.Atoi(strings.TrimPrefix(base, "-"))
	if err != nil || b < 2 || b > 36 {
		return 0, fmt.Errorf("invalid base in %q", lit)
	}
	n, err := strconv.ParseInt(digits, b, 64)
	if neg {
		n = -n
	}
	return n, err
}

func (p *parser) parseMap() (Term, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	m := Map{}
	if p.current.typ == tokenRBrace {
		return m, p.advance()
	}
	for {
		k, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokenArrow); err != nil {
			return nil, err
		}
		v, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		m = append(m, MapPair{Key: k, Value: v})
		if p.current.typ == tokenComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		return m, p.expect(tokenRBrace)
	}
}
