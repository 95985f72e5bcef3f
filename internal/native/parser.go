package native

import (
	"fmt"
	"strconv"
	"strings"
)

// RunMode selects how source text is compiled.
type RunMode int

const (
	// ModeEval compiles a single expression whose value is the result.
	ModeEval RunMode = iota
	// ModeExec compiles a statement block producing no value.
	ModeExec
	// ModeSingle compiles one interactive statement; an expression
	// statement yields its value so a REPL can print it.
	ModeSingle
)

func (m RunMode) String() string {
	switch m {
	case ModeEval:
		return "eval"
	case ModeExec:
		return "exec"
	case ModeSingle:
		return "single"
	default:
		return "unknown"
	}
}

// ── AST ───────────────────────────────────────────────────────

type node interface {
	nodeLine() int
}

type baseNode struct{ line int }

func (n baseNode) nodeLine() int { return n.line }

type litNode struct {
	baseNode
	kind kind // kindInt, kindFloat, kindStr, kindBool, kindNone
	i    int64
	f    float64
	s    string
	b    bool
}

type nameNode struct {
	baseNode
	name string
}

type unaryNode struct {
	baseNode
	op string
	x  node
}

type binNode struct {
	baseNode
	op   string
	l, r node
}

type callNode struct {
	baseNode
	fn   node
	args []node
}

type assignNode struct {
	baseNode
	name string
	rhs  node
}

type importName struct {
	name  string
	alias string
}

type importNode struct {
	baseNode
	module string       // dotted module path
	alias  string       // binding name for plain import
	names  []importName // non-nil for "from m import a, b"
}

type codeObject struct {
	filename string
	mode     RunMode
	stmts    []node
	lines    []string // source split by line, for tracebacks
}

// ── parser ────────────────────────────────────────────────────

type parser struct {
	lx  *lexer
	tok token
}

func (p *parser) advance() error {
	t, err := p.lx.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) expectOp(text string) error {
	if p.tok.kind != tokOp || p.tok.text != text {
		return fmt.Errorf("line %d: expected %q, got %q", p.tok.line, text, p.tok.text)
	}
	return p.advance()
}

func parseSource(source, filename string, mode RunMode) (*codeObject, error) {
	p := &parser{lx: newLexer(source)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var stmts []node
	for p.tok.kind != tokEOF {
		if p.tok.kind == tokNewline {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		st, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
		if p.tok.kind != tokEOF && p.tok.kind != tokNewline {
			return nil, fmt.Errorf("line %d: unexpected %q after statement", p.tok.line, p.tok.text)
		}
	}
	switch mode {
	case ModeEval:
		if len(stmts) != 1 {
			return nil, fmt.Errorf("eval mode requires exactly one expression, got %d statements", len(stmts))
		}
		if _, ok := stmts[0].(assignNode); ok {
			return nil, fmt.Errorf("eval mode does not allow assignment")
		}
		if _, ok := stmts[0].(importNode); ok {
			return nil, fmt.Errorf("eval mode does not allow import")
		}
	case ModeSingle:
		if len(stmts) > 1 {
			return nil, fmt.Errorf("single mode requires at most one statement, got %d", len(stmts))
		}
	}
	return &codeObject{
		filename: filename,
		mode:     mode,
		stmts:    stmts,
		lines:    strings.Split(source, "\n"),
	}, nil
}

func (p *parser) parseStatement() (node, error) {
	if p.tok.kind == tokKeyword && (p.tok.text == "import" || p.tok.text == "from") {
		return p.parseImport()
	}
	// Lookahead for "name = expr": parse an expression and rewrite when the
	// next token is a bare assignment of a plain name.
	if p.tok.kind == tokName {
		name := p.tok.text
		line := p.tok.line
		save := *p.lx
		saveTok := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind == tokOp && p.tok.text == "=" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			rhs, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return assignNode{baseNode{line}, name, rhs}, nil
		}
		*p.lx = save
		p.tok = saveTok
	}
	return p.parseExpr()
}

func (p *parser) parseImport() (node, error) {
	line := p.tok.line
	if p.tok.text == "import" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		mod, err := p.parseDottedName()
		if err != nil {
			return nil, err
		}
		alias := mod[strings.LastIndex(mod, ".")+1:]
		if p.tok.kind == tokKeyword && p.tok.text == "as" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.tok.kind != tokName {
				return nil, fmt.Errorf("line %d: expected name after 'as'", p.tok.line)
			}
			alias = p.tok.text
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		return importNode{baseNode{line}, mod, alias, nil}, nil
	}

	// from MOD import a [as x], b [as y]
	if err := p.advance(); err != nil {
		return nil, err
	}
	mod, err := p.parseDottedName()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokKeyword || p.tok.text != "import" {
		return nil, fmt.Errorf("line %d: expected 'import' in from-statement", p.tok.line)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var names []importName
	for {
		if p.tok.kind != tokName {
			return nil, fmt.Errorf("line %d: expected name in import list", p.tok.line)
		}
		in := importName{name: p.tok.text, alias: p.tok.text}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind == tokKeyword && p.tok.text == "as" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.tok.kind != tokName {
				return nil, fmt.Errorf("line %d: expected name after 'as'", p.tok.line)
			}
			in.alias = p.tok.text
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		names = append(names, in)
		if p.tok.kind == tokOp && p.tok.text == "," {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return importNode{baseNode{line}, mod, "", names}, nil
}

func (p *parser) parseDottedName() (string, error) {
	if p.tok.kind != tokName {
		return "", fmt.Errorf("line %d: expected module name", p.tok.line)
	}
	var sb strings.Builder
	sb.WriteString(p.tok.text)
	if err := p.advance(); err != nil {
		return "", err
	}
	for p.tok.kind == tokOp && p.tok.text == "." {
		if err := p.advance(); err != nil {
			return "", err
		}
		if p.tok.kind != tokName {
			return "", fmt.Errorf("line %d: expected name after '.'", p.tok.line)
		}
		sb.WriteByte('.')
		sb.WriteString(p.tok.text)
		if err := p.advance(); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// Precedence climbing: or < and < not < comparison < additive <
// multiplicative < unary < call/atom.

func (p *parser) parseExpr() (node, error) { return p.parseOr() }

func (p *parser) parseOr() (node, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokKeyword && p.tok.text == "or" {
		line := p.tok.line
		if err := p.advance(); err != nil {
			return nil, err
		}
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = binNode{baseNode{line}, "or", l, r}
	}
	return l, nil
}

func (p *parser) parseAnd() (node, error) {
	l, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokKeyword && p.tok.text == "and" {
		line := p.tok.line
		if err := p.advance(); err != nil {
			return nil, err
		}
		r, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l = binNode{baseNode{line}, "and", l, r}
	}
	return l, nil
}

func (p *parser) parseNot() (node, error) {
	if p.tok.kind == tokKeyword && p.tok.text == "not" {
		line := p.tok.line
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return unaryNode{baseNode{line}, "not", x}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	l, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp {
		switch p.tok.text {
		case "==", "!=", "<", "<=", ">", ">=":
			op := p.tok.text
			line := p.tok.line
			if err := p.advance(); err != nil {
				return nil, err
			}
			r, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			l = binNode{baseNode{line}, op, l, r}
			continue
		}
		break
	}
	return l, nil
}

func (p *parser) parseAdditive() (node, error) {
	l, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text
		line := p.tok.line
		if err := p.advance(); err != nil {
			return nil, err
		}
		r, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		l = binNode{baseNode{line}, op, l, r}
	}
	return l, nil
}

func (p *parser) parseMultiplicative() (node, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/" || p.tok.text == "%") {
		op := p.tok.text
		line := p.tok.line
		if err := p.advance(); err != nil {
			return nil, err
		}
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = binNode{baseNode{line}, op, l, r}
	}
	return l, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.tok.kind == tokOp && p.tok.text == "-" {
		line := p.tok.line
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{baseNode{line}, "-", x}, nil
	}
	return p.parseCall()
}

func (p *parser) parseCall() (node, error) {
	fn, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && p.tok.text == "(" {
		line := p.tok.line
		if err := p.advance(); err != nil {
			return nil, err
		}
		var args []node
		for !(p.tok.kind == tokOp && p.tok.text == ")") {
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.tok.kind == tokOp && p.tok.text == "," {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		fn = callNode{baseNode{line}, fn, args}
	}
	return fn, nil
}

func (p *parser) parseAtom() (node, error) {
	t := p.tok
	switch t.kind {
	case tokInt:
		v, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad int literal %q", t.line, t.text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return litNode{baseNode: baseNode{t.line}, kind: kindInt, i: v}, nil
	case tokFloat:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad float literal %q", t.line, t.text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return litNode{baseNode: baseNode{t.line}, kind: kindFloat, f: v}, nil
	case tokStr:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return litNode{baseNode: baseNode{t.line}, kind: kindStr, s: t.text}, nil
	case tokName:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return nameNode{baseNode{t.line}, t.text}, nil
	case tokKeyword:
		switch t.text {
		case "True", "False":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return litNode{baseNode: baseNode{t.line}, kind: kindBool, b: t.text == "True"}, nil
		case "None":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return litNode{baseNode: baseNode{t.line}, kind: kindNone}, nil
		}
	case tokOp:
		if t.text == "(" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			inner, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return inner, nil
		}
	}
	return nil, fmt.Errorf("line %d: unexpected %q", t.line, t.text)
}
