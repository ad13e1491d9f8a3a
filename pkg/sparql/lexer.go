package sparql

import (
	"strings"
	"unicode"
)

type tokKind int

const (
	tEOF tokKind = iota
	tVar
	tIRI
	tPName
	tString
	tNumber
	tWord // keyword or bare identifier, uppercased in kw
	tLBrace
	tRBrace
	tLParen
	tRParen
	tDot
	tSemicolon
	tComma
	tSlash
	tStar
	tPlus
	tOp     // && || ! = != < <= > >=
	tDTMark // ^^
	tLang   // @tag
)

type tok struct {
	kind tokKind
	text string // raw text
	kw   string // uppercased text for tWord
	pos  int
}

type lexer struct {
	input []rune
	pos   int
	toks  []tok
}

func lex(input string) ([]tok, *ParseError) {
	l := &lexer{input: []rune(input)}
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		l.toks = append(l.toks, t)
		if t.kind == tEOF {
			return l.toks, nil
		}
	}
}

func (l *lexer) errf(pos int, msg string) *ParseError {
	return &ParseError{Msg: msg, Pos: pos}
}

func (l *lexer) next() (tok, *ParseError) {
	for l.pos < len(l.input) {
		r := l.input[l.pos]
		if r == '#' {
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		if unicode.IsSpace(r) {
			l.pos++
			continue
		}
		break
	}
	if l.pos >= len(l.input) {
		return tok{kind: tEOF, pos: l.pos}, nil
	}

	start := l.pos
	r := l.input[l.pos]

	switch r {
	case '{':
		l.pos++
		return tok{kind: tLBrace, pos: start}, nil
	case '}':
		l.pos++
		return tok{kind: tRBrace, pos: start}, nil
	case '(':
		l.pos++
		return tok{kind: tLParen, pos: start}, nil
	case ')':
		l.pos++
		return tok{kind: tRParen, pos: start}, nil
	case '.':
		l.pos++
		return tok{kind: tDot, pos: start}, nil
	case ';':
		l.pos++
		return tok{kind: tSemicolon, pos: start}, nil
	case ',':
		l.pos++
		return tok{kind: tComma, pos: start}, nil
	case '/':
		l.pos++
		return tok{kind: tSlash, pos: start}, nil
	case '*':
		l.pos++
		return tok{kind: tStar, pos: start}, nil
	case '+':
		l.pos++
		return tok{kind: tPlus, pos: start}, nil

	case '?', '$':
		end := l.pos + 1
		for end < len(l.input) && (unicode.IsLetter(l.input[end]) || unicode.IsDigit(l.input[end]) || l.input[end] == '_') {
			end++
		}
		if end == l.pos+1 {
			return tok{}, l.errf(start, "empty variable name")
		}
		name := string(l.input[l.pos+1 : end])
		l.pos = end
		return tok{kind: tVar, text: name, pos: start}, nil

	case '<':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return tok{kind: tOp, text: "<=", pos: start}, nil
		}
		// IRIs never contain whitespace; a '<' followed by space is the
		// less-than operator.
		if l.pos+1 < len(l.input) && (unicode.IsSpace(l.input[l.pos+1]) || l.input[l.pos+1] == '?' || l.input[l.pos+1] == '$' || unicode.IsDigit(l.input[l.pos+1])) {
			l.pos++
			return tok{kind: tOp, text: "<", pos: start}, nil
		}
		end := l.pos + 1
		for end < len(l.input) && l.input[end] != '>' && !unicode.IsSpace(l.input[end]) {
			end++
		}
		if end >= len(l.input) || l.input[end] != '>' {
			l.pos++
			return tok{kind: tOp, text: "<", pos: start}, nil
		}
		val := string(l.input[l.pos+1 : end])
		l.pos = end + 1
		return tok{kind: tIRI, text: val, pos: start}, nil

	case '>':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return tok{kind: tOp, text: ">=", pos: start}, nil
		}
		l.pos++
		return tok{kind: tOp, text: ">", pos: start}, nil

	case '=':
		l.pos++
		return tok{kind: tOp, text: "=", pos: start}, nil

	case '!':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return tok{kind: tOp, text: "!=", pos: start}, nil
		}
		l.pos++
		return tok{kind: tOp, text: "!", pos: start}, nil

	case '&':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '&' {
			l.pos += 2
			return tok{kind: tOp, text: "&&", pos: start}, nil
		}
		return tok{}, l.errf(start, "expected '&&'")

	case '|':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '|' {
			l.pos += 2
			return tok{kind: tOp, text: "||", pos: start}, nil
		}
		return tok{}, l.errf(start, "expected '||'")

	case '^':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '^' {
			l.pos += 2
			return tok{kind: tDTMark, pos: start}, nil
		}
		return tok{}, l.errf(start, "expected '^^'")

	case '@':
		end := l.pos + 1
		for end < len(l.input) && (unicode.IsLetter(l.input[end]) || l.input[end] == '-') {
			end++
		}
		tag := string(l.input[l.pos+1 : end])
		l.pos = end
		return tok{kind: tLang, text: tag, pos: start}, nil

	case '"', '\'':
		quote := r
		var sb strings.Builder
		i := l.pos + 1
		for i < len(l.input) {
			c := l.input[i]
			if c == '\\' && i+1 < len(l.input) {
				switch l.input[i+1] {
				case 'n':
					sb.WriteRune('\n')
				case 't':
					sb.WriteRune('\t')
				case '"':
					sb.WriteRune('"')
				case '\'':
					sb.WriteRune('\'')
				case '\\':
					sb.WriteRune('\\')
				default:
					sb.WriteRune(l.input[i+1])
				}
				i += 2
				continue
			}
			if c == quote {
				l.pos = i + 1
				return tok{kind: tString, text: sb.String(), pos: start}, nil
			}
			sb.WriteRune(c)
			i++
		}
		return tok{}, l.errf(start, "unterminated string literal")
	}

	if r == '-' || unicode.IsDigit(r) {
		end := l.pos + 1
		for end < len(l.input) && (unicode.IsDigit(l.input[end]) || l.input[end] == '.') {
			if l.input[end] == '.' && (end+1 >= len(l.input) || !unicode.IsDigit(l.input[end+1])) {
				break
			}
			end++
		}
		val := string(l.input[l.pos:end])
		l.pos = end
		return tok{kind: tNumber, text: val, pos: start}, nil
	}

	if unicode.IsLetter(r) || r == '_' {
		end := l.pos
		hasColon := false
		for end < len(l.input) {
			c := l.input[end]
			if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '-' {
				end++
				continue
			}
			if c == ':' && !hasColon {
				hasColon = true
				end++
				continue
			}
			break
		}
		word := string(l.input[l.pos:end])
		l.pos = end
		if hasColon {
			return tok{kind: tPName, text: word, pos: start}, nil
		}
		return tok{kind: tWord, text: word, kw: strings.ToUpper(word), pos: start}, nil
	}

	return tok{}, l.errf(start, "unexpected character "+string(r))
}
