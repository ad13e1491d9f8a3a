package rdf

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// The Turtle subset understood here covers what the ontology file and the
// persistence round-trip need: @prefix declarations, IRIs, prefixed names,
// the 'a' keyword, string/numeric/boolean literals with ^^datatype and
// @lang, ';' and ',' continuations, and '#' comments.

var dateOnlyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type turtleScanner struct {
	input []rune
	pos   int
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIRI
	tokPName
	tokString
	tokNumber
	tokBoolean
	tokA
	tokPrefixDecl
	tokDot
	tokSemicolon
	tokComma
	tokDatatypeMark // ^^
	tokLangTag
)

type token struct {
	kind  tokenKind
	value string
}

func (sc *turtleScanner) skipSpace() {
	for sc.pos < len(sc.input) {
		r := sc.input[sc.pos]
		if r == '#' {
			for sc.pos < len(sc.input) && sc.input[sc.pos] != '\n' {
				sc.pos++
			}
			continue
		}
		if !unicode.IsSpace(r) {
			return
		}
		sc.pos++
	}
}

func (sc *turtleScanner) next() (token, error) {
	sc.skipSpace()
	if sc.pos >= len(sc.input) {
		return token{kind: tokEOF}, nil
	}
	r := sc.input[sc.pos]

	switch {
	case r == '<':
		end := sc.pos + 1
		for end < len(sc.input) && sc.input[end] != '>' {
			end++
		}
		if end >= len(sc.input) {
			return token{}, fmt.Errorf("unterminated IRI at offset %d", sc.pos)
		}
		val := string(sc.input[sc.pos+1 : end])
		sc.pos = end + 1
		return token{kind: tokIRI, value: val}, nil

	case r == '"':
		var sb strings.Builder
		i := sc.pos + 1
		for i < len(sc.input) {
			c := sc.input[i]
			if c == '\\' && i+1 < len(sc.input) {
				switch sc.input[i+1] {
				case 'n':
					sb.WriteRune('\n')
				case 't':
					sb.WriteRune('\t')
				case '"':
					sb.WriteRune('"')
				case '\\':
					sb.WriteRune('\\')
				default:
					sb.WriteRune(sc.input[i+1])
				}
				i += 2
				continue
			}
			if c == '"' {
				sc.pos = i + 1
				return token{kind: tokString, value: sb.String()}, nil
			}
			sb.WriteRune(c)
			i++
		}
		return token{}, fmt.Errorf("unterminated string literal at offset %d", sc.pos)

	case r == '.':
		sc.pos++
		return token{kind: tokDot}, nil
	case r == ';':
		sc.pos++
		return token{kind: tokSemicolon}, nil
	case r == ',':
		sc.pos++
		return token{kind: tokComma}, nil

	case r == '^':
		if sc.pos+1 < len(sc.input) && sc.input[sc.pos+1] == '^' {
			sc.pos += 2
			return token{kind: tokDatatypeMark}, nil
		}
		return token{}, fmt.Errorf("unexpected '^' at offset %d", sc.pos)

	case r == '@':
		end := sc.pos + 1
		for end < len(sc.input) && (unicode.IsLetter(sc.input[end]) || sc.input[end] == '-') {
			end++
		}
		word := string(sc.input[sc.pos+1 : end])
		sc.pos = end
		if word == "prefix" {
			return token{kind: tokPrefixDecl}, nil
		}
		return token{kind: tokLangTag, value: word}, nil

	case r == '-' || r == '+' || unicode.IsDigit(r):
		end := sc.pos + 1
		for end < len(sc.input) && (unicode.IsDigit(sc.input[end]) || sc.input[end] == '.' || sc.input[end] == 'e' || sc.input[end] == 'E' || sc.input[end] == '-' || sc.input[end] == '+') {
			// A '.' followed by whitespace terminates the statement, not
			// the number.
			if sc.input[end] == '.' && (end+1 >= len(sc.input) || !unicode.IsDigit(sc.input[end+1])) {
				break
			}
			end++
		}
		val := string(sc.input[sc.pos:end])
		sc.pos = end
		return token{kind: tokNumber, value: val}, nil

	default:
		end := sc.pos
		for end < len(sc.input) {
			c := sc.input[end]
			if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '-' || c == ':' {
				end++
				continue
			}
			break
		}
		if end == sc.pos {
			return token{}, fmt.Errorf("unexpected character %q at offset %d", r, sc.pos)
		}
		word := string(sc.input[sc.pos:end])
		sc.pos = end
		switch {
		case word == "a":
			return token{kind: tokA}, nil
		case word == "true" || word == "false":
			return token{kind: tokBoolean, value: word}, nil
		case strings.Contains(word, ":"):
			return token{kind: tokPName, value: word}, nil
		default:
			return token{}, fmt.Errorf("unexpected token %q at offset %d", word, sc.pos)
		}
	}
}

type turtleDecoder struct {
	sc       *turtleScanner
	prefixes map[string]string
	repaired int
	peeked   *token
}

func (d *turtleDecoder) next() (token, error) {
	if d.peeked != nil {
		t := *d.peeked
		d.peeked = nil
		return t, nil
	}
	return d.sc.next()
}

func (d *turtleDecoder) peek() (token, error) {
	if d.peeked == nil {
		t, err := d.sc.next()
		if err != nil {
			return token{}, err
		}
		d.peeked = &t
	}
	return *d.peeked, nil
}

func (d *turtleDecoder) expand(pname string) (string, error) {
	idx := strings.Index(pname, ":")
	prefix, local := pname[:idx], pname[idx+1:]
	ns, ok := d.prefixes[prefix]
	if !ok {
		return "", fmt.Errorf("undeclared prefix %q", prefix)
	}
	return ns + local, nil
}

// literal builds a literal term from a string token, consuming any
// ^^datatype or @lang suffix. Date-only values typed xsd:dateTime are
// reclassified to xsd:date here.
func (d *turtleDecoder) literal(value string) (Term, error) {
	peeked, err := d.peek()
	if err != nil {
		return Term{}, err
	}
	switch peeked.kind {
	case tokDatatypeMark:
		d.peeked = nil
		dtTok, err := d.next()
		if err != nil {
			return Term{}, err
		}
		var dt string
		switch dtTok.kind {
		case tokIRI:
			dt = dtTok.value
		case tokPName:
			dt, err = d.expand(dtTok.value)
			if err != nil {
				return Term{}, err
			}
		default:
			return Term{}, fmt.Errorf("expected datatype after ^^")
		}
		if dt == XSDDateTime && dateOnlyPattern.MatchString(value) {
			dt = XSDDate
			d.repaired++
		}
		return TypedLiteral(value, dt), nil
	case tokLangTag:
		d.peeked = nil
		return LangLiteral(value, peeked.value), nil
	default:
		return Literal(value), nil
	}
}

func (d *turtleDecoder) term(t token) (Term, error) {
	switch t.kind {
	case tokIRI:
		return IRI(t.value), nil
	case tokPName:
		iri, err := d.expand(t.value)
		if err != nil {
			return Term{}, err
		}
		return IRI(iri), nil
	case tokString:
		return d.literal(t.value)
	case tokNumber:
		if strings.ContainsAny(t.value, ".eE") {
			return TypedLiteral(t.value, XSDDecimal), nil
		}
		return TypedLiteral(t.value, XSDInteger), nil
	case tokBoolean:
		return TypedLiteral(t.value, XSDBoolean), nil
	case tokA:
		return IRI(RDFType), nil
	default:
		return Term{}, fmt.Errorf("unexpected token in term position")
	}
}

// DecodeTurtle parses the supported Turtle subset, returning the triples,
// the declared prefixes and the number of repaired date literals.
func DecodeTurtle(r io.Reader) ([]Triple, map[string]string, int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to read input: %w", err)
	}
	d := &turtleDecoder{
		sc:       &turtleScanner{input: []rune(string(data))},
		prefixes: make(map[string]string),
	}

	var triples []Triple
	for {
		t, err := d.next()
		if err != nil {
			return nil, nil, 0, err
		}
		if t.kind == tokEOF {
			return triples, d.prefixes, d.repaired, nil
		}

		if t.kind == tokPrefixDecl {
			nameTok, err := d.next()
			if err != nil {
				return nil, nil, 0, err
			}
			if nameTok.kind != tokPName || !strings.HasSuffix(nameTok.value, ":") {
				return nil, nil, 0, fmt.Errorf("malformed @prefix declaration")
			}
			iriTok, err := d.next()
			if err != nil {
				return nil, nil, 0, err
			}
			if iriTok.kind != tokIRI {
				return nil, nil, 0, fmt.Errorf("expected namespace IRI in @prefix declaration")
			}
			dot, err := d.next()
			if err != nil {
				return nil, nil, 0, err
			}
			if dot.kind != tokDot {
				return nil, nil, 0, fmt.Errorf("expected '.' after @prefix declaration")
			}
			d.prefixes[strings.TrimSuffix(nameTok.value, ":")] = iriTok.value
			continue
		}

		subject, err := d.term(t)
		if err != nil {
			return nil, nil, 0, err
		}

		for {
			predTok, err := d.next()
			if err != nil {
				return nil, nil, 0, err
			}
			predicate, err := d.term(predTok)
			if err != nil {
				return nil, nil, 0, fmt.Errorf("bad predicate: %w", err)
			}

			for {
				objTok, err := d.next()
				if err != nil {
					return nil, nil, 0, err
				}
				object, err := d.term(objTok)
				if err != nil {
					return nil, nil, 0, fmt.Errorf("bad object: %w", err)
				}
				triples = append(triples, Triple{Subject: subject, Predicate: predicate, Object: object})

				sep, err := d.next()
				if err != nil {
					return nil, nil, 0, err
				}
				if sep.kind == tokComma {
					continue
				}
				d.peeked = &sep
				break
			}

			sep, err := d.next()
			if err != nil {
				return nil, nil, 0, err
			}
			if sep.kind == tokSemicolon {
				// Allow a trailing ';' directly before '.'.
				after, err := d.peek()
				if err != nil {
					return nil, nil, 0, err
				}
				if after.kind == tokDot {
					d.peeked = nil
					break
				}
				continue
			}
			if sep.kind == tokDot {
				break
			}
			return nil, nil, 0, fmt.Errorf("expected '.', ';' or ',' after object")
		}
	}
}

// EncodeTurtle serializes triples with the given prefix table, one triple
// per line, preferring prefixed names where a namespace matches.
func EncodeTurtle(w io.Writer, triples []Triple, prefixes map[string]string) error {
	bw := bufio.NewWriter(w)

	names := make([]string, 0, len(prefixes))
	for p := range prefixes {
		names = append(names, p)
	}
	sort.Strings(names)
	for _, p := range names {
		fmt.Fprintf(bw, "@prefix %s: <%s> .\n", p, prefixes[p])
	}
	if len(names) > 0 {
		fmt.Fprintln(bw)
	}

	for _, t := range triples {
		pred := renderTerm(t.Predicate, prefixes)
		if t.Predicate.IsIRI() && t.Predicate.Value == RDFType {
			pred = "a"
		}
		fmt.Fprintf(bw, "%s %s %s .\n",
			renderTerm(t.Subject, prefixes),
			pred,
			renderTerm(t.Object, prefixes))
	}
	return bw.Flush()
}

var localNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)

func renderTerm(t Term, prefixes map[string]string) string {
	switch t.Kind {
	case TermIRI:
		names := make([]string, 0, len(prefixes))
		for p := range prefixes {
			names = append(names, p)
		}
		sort.Strings(names)
		for _, p := range names {
			ns := prefixes[p]
			if strings.HasPrefix(t.Value, ns) {
				local := strings.TrimPrefix(t.Value, ns)
				if localNamePattern.MatchString(local) {
					return p + ":" + local
				}
			}
		}
		return "<" + t.Value + ">"
	case TermBlank:
		return "_:" + t.Value
	default:
		escaped := strings.ReplaceAll(t.Value, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		escaped = strings.ReplaceAll(escaped, "\n", `\n`)
		out := `"` + escaped + `"`
		if t.Lang != "" {
			return out + "@" + t.Lang
		}
		if t.Datatype != "" && t.Datatype != XSDString {
			return out + "^^" + renderTerm(IRI(t.Datatype), prefixes)
		}
		return out
	}
}
