package koda

import (
	"strconv"
)

// ParseOptions bounds the resources a single Parse call may consume.
type ParseOptions struct {
	// MaxDepth rejects documents nested deeper than this. 0 means use the
	// default (256).
	MaxDepth int
	// MaxInputLength rejects input longer than this many bytes before
	// parsing begins. 0 means unbounded.
	MaxInputLength int
}

// DefaultParseOptions returns the default resource bounds for Parse.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{MaxDepth: 256}
}

func (o ParseOptions) maxDepth() int {
	if o.MaxDepth <= 0 {
		return 256
	}
	return o.MaxDepth
}

// parser consumes tokens from a lexer and builds a Value tree, tracking
// container nesting depth against maxDepth.
type parser struct {
	lex      *lexer
	maxDepth int
	depth    int
	peeked   *token
}

func newParser(src []byte, opts ParseOptions) *parser {
	return &parser{lex: newLexer(src), maxDepth: opts.maxDepth()}
}

func (p *parser) peek() (token, error) {
	if p.peeked != nil {
		return *p.peeked, nil
	}
	t, err := p.lex.next()
	if err != nil {
		return token{}, err
	}
	p.peeked = &t
	return t, nil
}

func (p *parser) advance() (token, error) {
	t, err := p.peek()
	if err != nil {
		return token{}, err
	}
	p.peeked = nil
	return t, nil
}

func (p *parser) errorf(t token, kind error, format string, args ...any) *ParseError {
	return newParseError(t.line, t.col, t.offset, kind, format, args...)
}

// skipOptionalSeparator consumes a single comma if present. Whitespace and
// comments are already skipped by the lexer between every token, so commas
// are the only separator the parser must explicitly handle.
func (p *parser) skipOptionalSeparator() error {
	t, err := p.peek()
	if err != nil {
		return err
	}
	if t.kind == tokComma {
		_, err := p.advance()
		return err
	}
	return nil
}

// Parse parses a single KODA document from text and returns its Value tree.
// A document is either an ordinary value or, per the grammar's top-level
// shorthand, a bare sequence of "key: value" pairs with no enclosing braces
// — the document is then treated as an Object running to end of input.
func Parse(text string, opts ParseOptions) (*Value, error) {
	if opts.MaxInputLength > 0 && len(text) > opts.MaxInputLength {
		return nil, newParseError(1, 1, 0, ErrInputTooLarge, "input is %d bytes, limit is %d", len(text), opts.MaxInputLength)
	}
	p := newParser([]byte(text), opts)
	v, err := p.parseDocument()
	if err != nil {
		return nil, err
	}
	last, err := p.advance()
	if err != nil {
		return nil, err
	}
	if last.kind != tokEOF {
		return nil, p.errorf(last, ErrTrailingBytes, "unexpected trailing content")
	}
	return v, nil
}

func (p *parser) parseDocument() (*Value, error) {
	implicit, err := p.startsImplicitObject()
	if err != nil {
		return nil, err
	}
	if implicit {
		return p.parseImplicitObject()
	}
	return p.parseValue()
}

// startsImplicitObject reports whether the document opens with "key:",
// which only a bare top-level object can. It looks one token past the
// current one without disturbing the parser's real position.
func (p *parser) startsImplicitObject() (bool, error) {
	t, err := p.peek()
	if err != nil {
		return false, err
	}
	if t.kind != tokIdent && t.kind != tokString {
		return false, nil
	}
	lookahead := *p.lex
	next, err := lookahead.next()
	if err != nil {
		return false, nil
	}
	return next.kind == tokColon, nil
}

// parseImplicitObject parses "key: value" pairs with no enclosing braces,
// running to end of input instead of a closing '}'.
func (p *parser) parseImplicitObject() (*Value, error) {
	first, err := p.peek()
	if err != nil {
		return nil, err
	}
	p.depth++
	defer p.leave()
	if p.depth > p.maxDepth {
		return nil, p.errorf(first, ErrDepthExceeded, "depth exceeds %d", p.maxDepth)
	}

	obj := NewObject()
	seen := make(map[string]struct{})
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.kind == tokEOF {
			return obj, nil
		}

		key, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		colonTok, err := p.advance()
		if err != nil {
			return nil, err
		}
		if colonTok.kind != tokColon {
			return nil, p.errorf(colonTok, ErrUnexpectedChar, "expected ':' after key %q", key)
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[key]; dup {
			return nil, p.errorf(t, ErrDuplicateKey, "%q", key)
		}
		seen[key] = struct{}{}
		obj.objectValue = append(obj.objectValue, Pair{Key: key, Value: val})

		if err := p.skipOptionalSeparator(); err != nil {
			return nil, err
		}
	}
}

func (p *parser) enter(t token) error {
	p.depth++
	if p.depth > p.maxDepth {
		return p.errorf(t, ErrDepthExceeded, "depth exceeds %d", p.maxDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) parseValue() (*Value, error) {
	t, err := p.advance()
	if err != nil {
		return nil, err
	}
	switch t.kind {
	case tokLBrace:
		return p.parseObject(t)
	case tokLBracket:
		return p.parseArray(t)
	case tokString:
		return NewString(t.str), nil
	case tokNumber:
		return parseNumberToken(t)
	case tokIdent:
		switch t.str {
		case "true":
			return NewBool(true), nil
		case "false":
			return NewBool(false), nil
		case "null":
			return Null, nil
		default:
			return NewString(t.str), nil
		}
	case tokEOF:
		return nil, p.errorf(t, ErrUnexpectedEOF, "expected a value")
	default:
		return nil, p.errorf(t, ErrUnexpectedChar, "expected a value")
	}
}

func parseNumberToken(t token) (*Value, error) {
	if !t.isFloat {
		if n, err := strconv.ParseInt(t.str, 10, 64); err == nil {
			return NewInt(n), nil
		}
		// Lexically an integer but out of int64 range: falls back to Float
		// per the classification rule in the spec.
	}
	f, err := strconv.ParseFloat(t.str, 64)
	if err != nil {
		return nil, newParseError(t.line, t.col, t.offset, ErrInvalidNumber, "%s", t.str)
	}
	return NewFloat(f), nil
}

// parseKey reads a key token: an identifier (including true/false/null,
// disambiguated from value position by the caller) or a quoted string.
func (p *parser) parseKey() (string, error) {
	t, err := p.advance()
	if err != nil {
		return "", err
	}
	switch t.kind {
	case tokIdent:
		return t.str, nil
	case tokString:
		return t.str, nil
	case tokEOF:
		return "", p.errorf(t, ErrUnexpectedEOF, "expected a key")
	default:
		return "", p.errorf(t, ErrUnexpectedChar, "expected a key")
	}
}

func (p *parser) parseObject(open token) (*Value, error) {
	if err := p.enter(open); err != nil {
		return nil, err
	}
	defer p.leave()

	obj := NewObject()
	seen := make(map[string]struct{})
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.kind == tokRBrace {
			p.advance()
			return obj, nil
		}
		if t.kind == tokEOF {
			return nil, p.errorf(t, ErrUnexpectedEOF, "unterminated object")
		}

		key, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		colonTok, err := p.advance()
		if err != nil {
			return nil, err
		}
		if colonTok.kind != tokColon {
			return nil, p.errorf(colonTok, ErrUnexpectedChar, "expected ':' after key %q", key)
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[key]; dup {
			return nil, p.errorf(t, ErrDuplicateKey, "%q", key)
		}
		seen[key] = struct{}{}
		obj.objectValue = append(obj.objectValue, Pair{Key: key, Value: val})

		if err := p.skipOptionalSeparator(); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseArray(open token) (*Value, error) {
	if err := p.enter(open); err != nil {
		return nil, err
	}
	defer p.leave()

	arr := NewArray()
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.kind == tokRBracket {
			p.advance()
			return arr, nil
		}
		if t.kind == tokEOF {
			return nil, p.errorf(t, ErrUnexpectedEOF, "unterminated array")
		}

		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		arr.arrayValue = append(arr.arrayValue, val)

		if err := p.skipOptionalSeparator(); err != nil {
			return nil, err
		}
	}
}
