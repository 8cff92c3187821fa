package property

import "strings"

const defaultValue = "yes"

// scan tokenizes a comma-separated clause list. Negation and != are only
// accepted when query is true.
func scan(s string, query bool) ([]Clause, error) {
	p := scanner{in: s}
	var out []Clause
	p.skipSpace()
	if p.eof() {
		return nil, nil
	}
	for {
		c, err := p.clause(query)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		p.skipSpace()
		if p.eof() {
			return out, nil
		}
		if p.peek() != ',' {
			return nil, p.fail("expected ','")
		}
		p.pos++
		p.skipSpace()
		if p.eof() {
			return nil, p.fail("trailing ','")
		}
	}
}

type scanner struct {
	in  string
	pos int
}

func (p *scanner) eof() bool  { return p.pos >= len(p.in) }
func (p *scanner) peek() byte { return p.in[p.pos] }

func (p *scanner) fail(reason string) error {
	return &SyntaxError{Input: p.in, Pos: p.pos, Reason: reason}
}

func (p *scanner) skipSpace() {
	for !p.eof() && (p.peek() == ' ' || p.peek() == '\t') {
		p.pos++
	}
}

func (p *scanner) clause(query bool) (Clause, error) {
	if p.peek() == '-' {
		if !query {
			return Clause{}, p.fail("negation not allowed in a definition")
		}
		p.pos++
		key, err := p.key()
		if err != nil {
			return Clause{}, err
		}
		p.skipSpace()
		if !p.eof() && p.peek() != ',' {
			return Clause{}, p.fail("negated clause takes no value")
		}
		return Clause{Key: key, Op: OpAbsent}, nil
	}

	key, err := p.key()
	if err != nil {
		return Clause{}, err
	}
	p.skipSpace()
	if p.eof() || p.peek() == ',' {
		return Clause{Key: key, Op: OpEq, Value: defaultValue}, nil
	}

	op := OpEq
	switch {
	case p.peek() == '=':
		p.pos++
	case strings.HasPrefix(p.in[p.pos:], "!="):
		if !query {
			return Clause{}, p.fail("'!=' not allowed in a definition")
		}
		op = OpNe
		p.pos += 2
	default:
		return Clause{}, p.fail("expected '=', '!=' or ','")
	}
	p.skipSpace()
	val, err := p.value()
	if err != nil {
		return Clause{}, err
	}
	return Clause{Key: key, Op: op, Value: val}, nil
}

func (p *scanner) key() (string, error) {
	start := p.pos
	if p.eof() || !isAlpha(p.peek()) {
		return "", p.fail("expected property name")
	}
	for !p.eof() && (isAlpha(p.peek()) || isDigit(p.peek()) || strings.IndexByte("._-", p.peek()) >= 0) {
		p.pos++
	}
	return p.in[start:p.pos], nil
}

func (p *scanner) value() (string, error) {
	if p.eof() {
		return "", p.fail("missing value")
	}
	if q := p.peek(); q == '"' || q == '\'' {
		p.pos++
		end := strings.IndexByte(p.in[p.pos:], q)
		if end < 0 {
			return "", p.fail("unterminated quoted value")
		}
		v := p.in[p.pos : p.pos+end]
		p.pos += end + 1
		return v, nil
	}
	start := p.pos
	for !p.eof() && p.peek() != ',' {
		c := p.peek()
		if c == '=' || c == '!' || c == '"' || c == '\'' || c < 0x20 || c > 0x7e {
			return "", p.fail("invalid character in value")
		}
		p.pos++
	}
	v := strings.TrimRight(p.in[start:p.pos], " \t")
	if v == "" {
		return "", p.fail("missing value")
	}
	return v, nil
}

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }
