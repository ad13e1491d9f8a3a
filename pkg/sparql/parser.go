package sparql

import (
	"strings"
)

// Parse parses a query in the supported SELECT subset. The well-known
// rdf/rdfs/owl/xsd prefixes are pre-bound; PREFIX declarations may
// override them.
func Parse(input string) (*Query, error) {
	return ParseWithPrefixes(input, nil)
}

// ParseWithPrefixes parses a query with additional pre-bound prefixes,
// typically the namespaces bound on the store. Graph-bound prefixes
// resolve without PREFIX declarations, matching how the original
// rdflib-backed engine treated queries; in-query PREFIX declarations
// still take precedence.
func ParseWithPrefixes(input string, bound map[string]string) (*Query, error) {
	toks, lerr := lex(input)
	if lerr != nil {
		return nil, lerr
	}
	prefixes := map[string]string{
		"rdf":  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
		"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
		"owl":  "http://www.w3.org/2002/07/owl#",
		"xsd":  "http://www.w3.org/2001/XMLSchema#",
	}
	for prefix, ns := range bound {
		prefixes[prefix] = ns
	}
	p := &parser{toks: toks, prefixes: prefixes}
	return p.parseQuery()
}

type parser struct {
	toks     []tok
	i        int
	prefixes map[string]string
}

func (p *parser) cur() tok  { return p.toks[p.i] }
func (p *parser) advance()  { p.i++ }
func (p *parser) peek() tok { return p.toks[p.i] }

func (p *parser) errf(msg string) *ParseError {
	return &ParseError{Msg: msg, Pos: p.cur().pos}
}

func (p *parser) isKeyword(kw string) bool {
	return p.cur().kind == tWord && p.cur().kw == kw
}

func (p *parser) expectKeyword(kw string) *ParseError {
	if !p.isKeyword(kw) {
		return p.errf("expected " + kw)
	}
	p.advance()
	return nil
}

func (p *parser) expand(pname string, pos int) (string, *ParseError) {
	idx := strings.Index(pname, ":")
	prefix, local := pname[:idx], pname[idx+1:]
	ns, ok := p.prefixes[prefix]
	if !ok {
		return "", &ParseError{Msg: "undeclared prefix " + prefix, Pos: pos}
	}
	return ns + local, nil
}

func (p *parser) parseQuery() (*Query, error) {
	for p.isKeyword("PREFIX") {
		p.advance()
		name := p.cur()
		if name.kind != tPName || !strings.HasSuffix(name.text, ":") {
			return nil, p.errf("expected prefix name after PREFIX")
		}
		p.advance()
		iri := p.cur()
		if iri.kind != tIRI {
			return nil, p.errf("expected namespace IRI in PREFIX declaration")
		}
		p.advance()
		p.prefixes[strings.TrimSuffix(name.text, ":")] = iri.text
	}

	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}

	sel := &SelectQuery{}
	if p.isKeyword("DISTINCT") {
		sel.Distinct = true
		p.advance()
	} else if p.isKeyword("REDUCED") {
		p.advance()
	}

	for {
		t := p.cur()
		if t.kind == tStar {
			sel.Star = true
			p.advance()
			continue
		}
		if t.kind == tVar {
			sel.Projections = append(sel.Projections, Projection{Var: t.text})
			p.advance()
			continue
		}
		if t.kind == tLParen {
			p.advance()
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectKeyword("AS"); err != nil {
				return nil, err
			}
			alias := p.cur()
			if alias.kind != tVar {
				return nil, p.errf("expected variable after AS")
			}
			p.advance()
			if p.cur().kind != tRParen {
				return nil, p.errf("expected ')' after projection alias")
			}
			p.advance()
			sel.Projections = append(sel.Projections, Projection{Expr: expr, Alias: alias.text})
			continue
		}
		break
	}
	if !sel.Star && len(sel.Projections) == 0 {
		return nil, p.errf("SELECT needs at least one projection")
	}

	if p.isKeyword("WHERE") {
		p.advance()
	}
	where, err := p.parseGroupPattern()
	if err != nil {
		return nil, err
	}
	sel.Where = where

	if p.isKeyword("GROUP") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for p.cur().kind == tVar {
			sel.GroupBy = append(sel.GroupBy, p.cur().text)
			p.advance()
		}
		if len(sel.GroupBy) == 0 {
			return nil, p.errf("GROUP BY needs at least one variable")
		}
	}

	if p.isKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			t := p.cur()
			if t.kind == tVar {
				sel.OrderBy = append(sel.OrderBy, OrderKey{Var: t.text})
				p.advance()
				continue
			}
			if t.kind == tWord && (t.kw == "ASC" || t.kw == "DESC") {
				desc := t.kw == "DESC"
				p.advance()
				if p.cur().kind != tLParen {
					return nil, p.errf("expected '(' after " + t.kw)
				}
				p.advance()
				v := p.cur()
				if v.kind != tVar {
					return nil, p.errf("expected variable in ORDER BY")
				}
				p.advance()
				if p.cur().kind != tRParen {
					return nil, p.errf("expected ')' in ORDER BY")
				}
				p.advance()
				sel.OrderBy = append(sel.OrderBy, OrderKey{Var: v.text, Desc: desc})
				continue
			}
			break
		}
		if len(sel.OrderBy) == 0 {
			return nil, p.errf("ORDER BY needs at least one key")
		}
	}

	if p.isKeyword("LIMIT") {
		p.advance()
		n, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		sel.Limit = n
	}
	if p.isKeyword("OFFSET") {
		p.advance()
		n, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		sel.Offset = n
	}

	if p.cur().kind != tEOF {
		return nil, p.errf("unexpected trailing input")
	}
	return &Query{Prefixes: p.prefixes, Select: sel}, nil
}

func (p *parser) parseInt() (int, *ParseError) {
	t := p.cur()
	if t.kind != tNumber {
		return 0, p.errf("expected number")
	}
	p.advance()
	n := 0
	for _, r := range t.text {
		if r < '0' || r > '9' {
			return 0, &ParseError{Msg: "expected integer", Pos: t.pos}
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

func (p *parser) parseGroupPattern() (*GroupPattern, error) {
	if p.cur().kind != tLBrace {
		return nil, p.errf("expected '{'")
	}
	p.advance()

	g := &GroupPattern{}
	for {
		t := p.cur()
		switch {
		case t.kind == tRBrace:
			p.advance()
			return g, nil

		case t.kind == tEOF:
			return nil, p.errf("unexpected end of query inside group pattern")

		case t.kind == tWord && t.kw == "FILTER":
			p.advance()
			expr, err := p.parseFilterExpr()
			if err != nil {
				return nil, err
			}
			g.Filters = append(g.Filters, expr)

		case t.kind == tWord && t.kw == "OPTIONAL":
			p.advance()
			inner, err := p.parseGroupPattern()
			if err != nil {
				return nil, err
			}
			g.Optionals = append(g.Optionals, inner)

		case t.kind == tWord && t.kw == "BIND":
			p.advance()
			if p.cur().kind != tLParen {
				return nil, p.errf("expected '(' after BIND")
			}
			p.advance()
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectKeyword("AS"); err != nil {
				return nil, err
			}
			v := p.cur()
			if v.kind != tVar {
				return nil, p.errf("expected variable after AS in BIND")
			}
			p.advance()
			if p.cur().kind != tRParen {
				return nil, p.errf("expected ')' after BIND")
			}
			p.advance()
			g.Binds = append(g.Binds, BindClause{Expr: expr, Var: v.text})

		case t.kind == tDot:
			p.advance()

		default:
			if err := p.parseTriplesBlock(g); err != nil {
				return nil, err
			}
		}
	}
}

// parseFilterExpr accepts both FILTER(expr) and the bare function form
// FILTER CONTAINS(...).
func (p *parser) parseFilterExpr() (Expr, error) {
	if p.cur().kind == tLParen {
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.cur().kind != tRParen {
			return nil, p.errf("expected ')' after FILTER expression")
		}
		p.advance()
		return expr, nil
	}
	return p.parseUnary()
}

func (p *parser) parseTriplesBlock(g *GroupPattern) error {
	subject, err := p.parseNode()
	if err != nil {
		return err
	}

	for {
		pattern := TriplePattern{Subject: subject}
		if p.cur().kind == tVar {
			pattern.PredVar = p.cur().text
			p.advance()
		} else {
			path, err := p.parsePath()
			if err != nil {
				return err
			}
			pattern.Path = path
		}

		for {
			object, err := p.parseNode()
			if err != nil {
				return err
			}
			tp := pattern
			tp.Object = object
			g.Patterns = append(g.Patterns, tp)

			if p.cur().kind == tComma {
				p.advance()
				continue
			}
			break
		}

		if p.cur().kind == tSemicolon {
			p.advance()
			// A trailing ';' before '.' or '}' closes the block.
			if p.cur().kind == tDot || p.cur().kind == tRBrace {
				return nil
			}
			continue
		}
		return nil
	}
}

func (p *parser) parsePath() ([]PathStep, error) {
	var steps []PathStep
	for {
		step, err := p.parsePathStep()
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
		if p.cur().kind == tSlash {
			p.advance()
			continue
		}
		return steps, nil
	}
}

func (p *parser) parsePathStep() (PathStep, error) {
	t := p.cur()
	var iri string
	switch t.kind {
	case tIRI:
		iri = t.text
		p.advance()
	case tPName:
		expanded, err := p.expand(t.text, t.pos)
		if err != nil {
			return PathStep{}, err
		}
		iri = expanded
		p.advance()
	case tWord:
		if t.text == "a" {
			iri = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
			p.advance()
			break
		}
		return PathStep{}, p.errf("expected predicate")
	default:
		return PathStep{}, p.errf("expected predicate")
	}

	step := PathStep{IRI: iri}
	switch p.cur().kind {
	case tStar:
		step.Mod = '*'
		p.advance()
	case tPlus:
		step.Mod = '+'
		p.advance()
	}
	return step, nil
}

func (p *parser) parseNode() (Node, error) {
	t := p.cur()
	switch t.kind {
	case tVar:
		p.advance()
		return Node{Kind: NodeVar, Value: t.text}, nil
	case tIRI:
		p.advance()
		return Node{Kind: NodeIRI, Value: t.text}, nil
	case tPName:
		iri, err := p.expand(t.text, t.pos)
		if err != nil {
			return Node{}, err
		}
		p.advance()
		return Node{Kind: NodeIRI, Value: iri}, nil
	case tString:
		p.advance()
		node := Node{Kind: NodeLiteral, Value: t.text}
		switch p.cur().kind {
		case tDTMark:
			p.advance()
			dt, err := p.parseDatatype()
			if err != nil {
				return Node{}, err
			}
			node.Datatype = dt
		case tLang:
			node.Lang = p.cur().text
			p.advance()
		}
		return node, nil
	case tNumber:
		p.advance()
		dt := "http://www.w3.org/2001/XMLSchema#integer"
		if strings.Contains(t.text, ".") {
			dt = "http://www.w3.org/2001/XMLSchema#decimal"
		}
		return Node{Kind: NodeLiteral, Value: t.text, Datatype: dt}, nil
	case tWord:
		if t.kw == "TRUE" || t.kw == "FALSE" {
			p.advance()
			return Node{Kind: NodeLiteral, Value: strings.ToLower(t.text), Datatype: "http://www.w3.org/2001/XMLSchema#boolean"}, nil
		}
	}
	return Node{}, p.errf("expected subject or object term")
}

func (p *parser) parseDatatype() (string, *ParseError) {
	t := p.cur()
	switch t.kind {
	case tIRI:
		p.advance()
		return t.text, nil
	case tPName:
		iri, err := p.expand(t.text, t.pos)
		if err != nil {
			return "", err
		}
		p.advance()
		return iri, nil
	default:
		return "", p.errf("expected datatype after '^^'")
	}
}

// Expression parsing, precedence: || then && then comparison then unary.

func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tOp && p.cur().text == "||" {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: "||", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tOp && p.cur().text == "&&" {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: "&&", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	t := p.cur()
	if t.kind == tOp {
		switch t.text {
		case "=", "!=", "<", "<=", ">", ">=":
			p.advance()
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return BinaryExpr{Op: t.text, Left: left, Right: right}, nil
		}
	}
	return left, nil
}

var builtinFunctions = map[string]int{
	"STR": 1, "STRAFTER": 2, "STRBEFORE": 2, "CONTAINS": 2,
	"LCASE": 1, "UCASE": 1, "DATATYPE": 1, "BOUND": 1,
}

var aggregateFunctions = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
}

func (p *parser) parseUnary() (Expr, error) {
	t := p.cur()

	if t.kind == tOp && t.text == "!" {
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: "!", X: inner}, nil
	}

	switch t.kind {
	case tLParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.cur().kind != tRParen {
			return nil, p.errf("expected ')'")
		}
		p.advance()
		return inner, nil

	case tVar:
		p.advance()
		return VarExpr{Name: t.text}, nil

	case tString:
		p.advance()
		lit := LiteralExpr{Value: t.text}
		switch p.cur().kind {
		case tDTMark:
			p.advance()
			dt, err := p.parseDatatype()
			if err != nil {
				return nil, err
			}
			lit.Datatype = dt
		case tLang:
			lit.Lang = p.cur().text
			p.advance()
		}
		return lit, nil

	case tNumber:
		p.advance()
		dt := "http://www.w3.org/2001/XMLSchema#integer"
		if strings.Contains(t.text, ".") {
			dt = "http://www.w3.org/2001/XMLSchema#decimal"
		}
		return LiteralExpr{Value: t.text, Datatype: dt}, nil

	case tIRI:
		p.advance()
		return IRIExpr{Value: t.text}, nil

	case tPName:
		iri, err := p.expand(t.text, t.pos)
		if err != nil {
			return nil, err
		}
		p.advance()
		return IRIExpr{Value: iri}, nil

	case tWord:
		if t.kw == "TRUE" || t.kw == "FALSE" {
			p.advance()
			return LiteralExpr{Value: strings.ToLower(t.text), Datatype: "http://www.w3.org/2001/XMLSchema#boolean"}, nil
		}
		if aggregateFunctions[t.kw] {
			return p.parseAggregate(t.kw)
		}
		if _, ok := builtinFunctions[t.kw]; ok {
			return p.parseCall(t.kw)
		}
	}
	return nil, p.errf("unsupported expression")
}

func (p *parser) parseCall(name string) (Expr, error) {
	p.advance()
	if p.cur().kind != tLParen {
		return nil, p.errf("expected '(' after " + name)
	}
	p.advance()

	call := CallExpr{Name: name}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if p.cur().kind == tComma {
			p.advance()
			continue
		}
		break
	}
	if p.cur().kind != tRParen {
		return nil, p.errf("expected ')' after " + name + " arguments")
	}
	p.advance()

	if want := builtinFunctions[name]; len(call.Args) != want {
		return nil, p.errf(name + " takes a fixed number of arguments")
	}
	return call, nil
}

func (p *parser) parseAggregate(name string) (Expr, error) {
	p.advance()
	if p.cur().kind != tLParen {
		return nil, p.errf("expected '(' after " + name)
	}
	p.advance()

	agg := AggExpr{Func: name}
	if p.isKeyword("DISTINCT") {
		agg.Distinct = true
		p.advance()
	}
	switch p.cur().kind {
	case tStar:
		if name != "COUNT" {
			return nil, p.errf("'*' is only valid in COUNT")
		}
		agg.Star = true
		p.advance()
	case tVar:
		agg.Var = p.cur().text
		p.advance()
	default:
		return nil, p.errf("expected variable or '*' in " + name)
	}
	if p.cur().kind != tRParen {
		return nil, p.errf("expected ')' after aggregate")
	}
	p.advance()
	return agg, nil
}
