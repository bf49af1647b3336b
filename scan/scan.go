package scan

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/value"
)

// Part is one element of a scan feed: either source text or a value that
// is spliced in as-is at that position.
type Part struct {
	Value  *value.Value
	Source string
	Splice bool
}

// Source makes a text part.
func Source(s string) Part { return Part{Source: s} }

// Splice makes a spliced value part.
func Splice(v *value.Value) Part { return Part{Value: v, Splice: true} }

// String scans a single source string.
func String(src string) ([]*value.Value, error) {
	return Parts([]Part{Source(src)})
}

// Parts scans a feed of fragments and spliced values as one sequence.
// Blocks and groups may open in one fragment and close in a later one.
// A part boundary always separates tokens. Pending quote marks apply to
// the next item even when that item is a spliced value.
func Parts(parts []Part) ([]*value.Value, error) {
	s := &scanner{line: 1}
	s.stack = []*frame{{}}
	for _, p := range parts {
		if p.Splice {
			v := p.Value
			if v == nil {
				v = value.Null()
			}
			s.emit(v)
			continue
		}
		if err := s.scan(p.Source); err != nil {
			return nil, err
		}
	}
	if s.quotes > 0 {
		return nil, errors.Syntax(s.line, s.col, "quote mark without a value")
	}
	if len(s.stack) > 1 {
		top := s.stack[len(s.stack)-1]
		want := "]"
		if top.kind == value.KindGroup {
			want = ")"
		}
		return nil, errors.Syntax(top.line, top.col, "missing "+want)
	}
	return s.stack[0].items, nil
}

type frame struct {
	items  []*value.Value
	kind   value.Kind
	line   int
	col    int
	quotes int // quote marks that preceded the opening bracket
}

type scanner struct {
	src    string
	pos    int
	line   int
	col    int
	quotes int
	stack  []*frame
}

func (s *scanner) emit(v *value.Value) {
	if s.quotes > 0 {
		v = value.Quoted(v, s.quotes)
		s.quotes = 0
	}
	top := s.stack[len(s.stack)-1]
	top.items = append(top.items, v)
}

func (s *scanner) fail(msg string) error {
	return errors.Syntax(s.line, s.col, msg)
}

func (s *scanner) peek() byte {
	if s.pos < len(s.src) {
		return s.src[s.pos]
	}
	return 0
}

func (s *scanner) advance() rune {
	r, size := utf8.DecodeRuneInString(s.src[s.pos:])
	s.pos += size
	if r == '\n' {
		s.line++
		s.col = 0
	} else {
		s.col++
	}
	return r
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '[', ']', '(', ')', '{', '}', '"', ';':
		return true
	}
	return false
}

func (s *scanner) scan(src string) error {
	if !utf8.ValidString(src) {
		return errors.InvalidUTF8(errors.PhaseScan, "", []byte(src))
	}
	s.src, s.pos = src, 0

	for s.pos < len(s.src) {
		c := s.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			s.advance()
		case c == ';':
			for s.pos < len(s.src) && s.peek() != '\n' {
				s.advance()
			}
		case c == '[' || c == '(':
			kind := value.KindBlock
			if c == '(' {
				kind = value.KindGroup
			}
			s.stack = append(s.stack, &frame{kind: kind, line: s.line, col: s.col, quotes: s.quotes})
			s.quotes = 0
			s.advance()
		case c == ']' || c == ')':
			if err := s.close(c); err != nil {
				return err
			}
			s.advance()
		case c == '"':
			text, err := s.quotedText()
			if err != nil {
				return err
			}
			s.emit(value.Text(text))
		case c == '{':
			text, err := s.bracedText()
			if err != nil {
				return err
			}
			s.emit(value.Text(text))
		case c == '}':
			return s.fail("unexpected }")
		case c == '\'':
			s.advance()
			s.quotes++
			if s.pos < len(s.src) && isSpace(s.peek()) {
				return s.fail("quote mark without a value")
			}
		case c == '#':
			if err := s.hash(); err != nil {
				return err
			}
		default:
			if err := s.atom(); err != nil {
				return err
			}
		}
	}
	return nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func (s *scanner) close(c byte) error {
	want := value.KindBlock
	if c == ')' {
		want = value.KindGroup
	}
	if len(s.stack) == 1 {
		return s.fail("unexpected " + string(c))
	}
	top := s.stack[len(s.stack)-1]
	if top.kind != want {
		return s.fail("mismatched " + string(c))
	}
	if s.quotes > 0 {
		return s.fail("quote mark without a value")
	}
	s.stack = s.stack[:len(s.stack)-1]
	v := &value.Value{Kind: top.kind, Items: top.items}
	if v.Items == nil {
		v.Items = []*value.Value{}
	}
	s.quotes = top.quotes
	s.emit(v)
	return nil
}

func (s *scanner) escape() (rune, error) {
	// caller consumed '^'
	if s.pos >= len(s.src) {
		return 0, s.fail("unterminated escape")
	}
	r := s.advance()
	switch r {
	case '/':
		return '\n', nil
	case '-':
		return '\t', nil
	case '@':
		return 0, nil
	case '(':
		start := s.pos
		for s.pos < len(s.src) && s.peek() != ')' {
			s.advance()
		}
		if s.pos >= len(s.src) {
			return 0, s.fail("unterminated ^( escape")
		}
		code := s.src[start:s.pos]
		s.advance()
		switch strings.ToLower(code) {
		case "line":
			return '\n', nil
		case "tab":
			return '\t', nil
		case "null":
			return 0, nil
		}
		n, err := strconv.ParseUint(code, 16, 32)
		if err != nil || !utf8.ValidRune(rune(n)) {
			return 0, s.fail("invalid ^(" + code + ") escape")
		}
		return rune(n), nil
	}
	return r, nil
}

func (s *scanner) quotedText() (string, error) {
	s.advance()
	var b strings.Builder
	for {
		if s.pos >= len(s.src) {
			return "", s.fail("missing \" at end of text")
		}
		r := s.advance()
		switch r {
		case '"':
			return b.String(), nil
		case '\n':
			return "", s.fail("newline in quoted text")
		case '^':
			e, err := s.escape()
			if err != nil {
				return "", err
			}
			b.WriteRune(e)
		default:
			b.WriteRune(r)
		}
	}
}

func (s *scanner) bracedText() (string, error) {
	s.advance()
	var b strings.Builder
	depth := 1
	for {
		if s.pos >= len(s.src) {
			return "", s.fail("missing } at end of text")
		}
		r := s.advance()
		switch r {
		case '{':
			depth++
			b.WriteRune(r)
		case '}':
			depth--
			if depth == 0 {
				return b.String(), nil
			}
			b.WriteRune(r)
		case '^':
			e, err := s.escape()
			if err != nil {
				return "", err
			}
			b.WriteRune(e)
		default:
			b.WriteRune(r)
		}
	}
}

func (s *scanner) hash() error {
	if s.pos+1 >= len(s.src) {
		return s.fail("incomplete # literal")
	}
	switch s.src[s.pos+1] {
	case '"':
		s.advance()
		text, err := s.quotedText()
		if err != nil {
			return err
		}
		if utf8.RuneCountInString(text) != 1 {
			return s.fail("char literal must hold exactly one character")
		}
		r, _ := utf8.DecodeRuneInString(text)
		s.emit(value.Char(r))
		return nil
	case '{':
		s.advance()
		s.advance()
		var digits strings.Builder
		for {
			if s.pos >= len(s.src) {
				return s.fail("missing } at end of binary")
			}
			r := s.advance()
			if r == '}' {
				break
			}
			if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
				continue
			}
			digits.WriteRune(r)
		}
		data, err := hex.DecodeString(digits.String())
		if err != nil {
			return errors.Wrap(errors.PhaseScan, errors.KindSyntax, err, "invalid binary literal")
		}
		s.emit(value.Binary(data))
		return nil
	}
	return s.fail("unsupported # literal")
}

func (s *scanner) atom() error {
	line, col := s.line, s.col
	start := s.pos
	for s.pos < len(s.src) && !isDelimiter(s.peek()) {
		s.advance()
	}
	tok := s.src[start:s.pos]

	v, err := classify(tok)
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			e.Path = []string{strconv.Itoa(line) + ":" + strconv.Itoa(col)}
		}
		return err
	}
	s.emit(v)
	return nil
}

func classify(tok string) (*value.Value, error) {
	if tok == "_" {
		return value.Blank(), nil
	}
	if looksNumeric(tok) {
		return number(tok)
	}
	if strings.HasPrefix(tok, ":") {
		name := tok[1:]
		if name == "" || strings.HasSuffix(name, ":") {
			return nil, errors.Syntax(0, 0, "invalid get-word "+tok)
		}
		return value.GetWord(name), nil
	}
	if strings.HasSuffix(tok, ":") {
		name := tok[:len(tok)-1]
		if name == "" {
			return nil, errors.Syntax(0, 0, "invalid set-word "+tok)
		}
		return value.SetWord(name), nil
	}
	if strings.ContainsAny(tok, "'#") {
		return nil, errors.Syntax(0, 0, "invalid word "+tok)
	}
	return value.Word(tok), nil
}

func looksNumeric(tok string) bool {
	i := 0
	if i < len(tok) && (tok[i] == '+' || tok[i] == '-') {
		i++
	}
	if i < len(tok) && tok[i] == '.' {
		i++
	}
	return i < len(tok) && tok[i] >= '0' && tok[i] <= '9'
}

func number(tok string) (*value.Value, error) {
	clean := strings.ReplaceAll(tok, "'", "")
	if !strings.ContainsAny(clean, ".eE") {
		i, err := strconv.ParseInt(clean, 10, 64)
		if err == nil {
			return value.Integer(i), nil
		}
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return nil, errors.New(errors.PhaseScan, errors.KindOverflow).
				Detail("integer literal %s out of range", tok).
				Value(tok).
				Build()
		}
		return nil, errors.Syntax(0, 0, "invalid integer "+tok)
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return nil, errors.Syntax(0, 0, "invalid decimal "+tok)
	}
	return value.Decimal(f), nil
}
