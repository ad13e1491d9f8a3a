package rewrite

import (
	"strings"
	"unicode"
)

type qtokKind int

const (
	qWord qtokKind = iota
	qPName
	qIRI
	qVar
	qString
	qPunct
)

// qtok is a lexical span of the query text. The scanner exists so rewrite
// rules never touch tokens inside string literals or full IRIs, which is
// what keeps every rule idempotent.
type qtok struct {
	kind  qtokKind
	text  string // token text without delimiters for IRI/string
	start int
	end   int
}

func scanTokens(input string) []qtok {
	runes := []rune(input)
	// Byte offsets per rune index so spans map back into the original string.
	offsets := make([]int, len(runes)+1)
	b := 0
	for i, r := range runes {
		offsets[i] = b
		b += len(string(r))
	}
	offsets[len(runes)] = b

	var toks []qtok
	i := 0
	for i < len(runes) {
		r := runes[i]

		if unicode.IsSpace(r) {
			i++
			continue
		}

		switch r {
		case '<':
			j := i + 1
			for j < len(runes) && runes[j] != '>' && !unicode.IsSpace(runes[j]) {
				j++
			}
			if j < len(runes) && runes[j] == '>' {
				toks = append(toks, qtok{kind: qIRI, text: string(runes[i+1 : j]), start: offsets[i], end: offsets[j+1]})
				i = j + 1
				continue
			}
			toks = append(toks, qtok{kind: qPunct, text: "<", start: offsets[i], end: offsets[i+1]})
			i++
			continue

		case '"', '\'':
			quote := r
			j := i + 1
			for j < len(runes) {
				if runes[j] == '\\' {
					j += 2
					continue
				}
				if runes[j] == quote {
					break
				}
				j++
			}
			if j >= len(runes) {
				j = len(runes) - 1
			}
			toks = append(toks, qtok{kind: qString, text: string(runes[i+1 : j]), start: offsets[i], end: offsets[j+1]})
			i = j + 1
			continue

		case '?', '$':
			j := i + 1
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			toks = append(toks, qtok{kind: qVar, text: string(runes[i+1 : j]), start: offsets[i], end: offsets[j]})
			i = j
			continue
		}

		if unicode.IsLetter(r) || r == '_' {
			j := i
			hasColon := false
			for j < len(runes) {
				c := runes[j]
				if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '-' {
					j++
					continue
				}
				if c == ':' && !hasColon {
					hasColon = true
					j++
					continue
				}
				break
			}
			kind := qWord
			if hasColon {
				kind = qPName
			}
			toks = append(toks, qtok{kind: kind, text: string(runes[i:j]), start: offsets[i], end: offsets[j]})
			i = j
			continue
		}

		toks = append(toks, qtok{kind: qPunct, text: string(runes[i : i+1]), start: offsets[i], end: offsets[i+1]})
		i++
	}
	return toks
}

// splitPName splits a prefixed name into prefix and local part.
func splitPName(pname string) (string, string) {
	idx := strings.Index(pname, ":")
	return pname[:idx], pname[idx+1:]
}

// declaredPrefixes extracts PREFIX declarations from the token stream.
func declaredPrefixes(toks []qtok) map[string]string {
	out := make(map[string]string)
	for i := 0; i+2 < len(toks); i++ {
		if toks[i].kind == qWord && strings.EqualFold(toks[i].text, "PREFIX") &&
			toks[i+1].kind == qPName && toks[i+2].kind == qIRI {
			prefix, _ := splitPName(toks[i+1].text)
			out[prefix] = toks[i+2].text
		}
	}
	return out
}

// spliceSpans rebuilds the query text replacing the given byte spans. Spans
// must be non-overlapping and sorted by start offset.
type splice struct {
	start, end  int
	replacement string
}

func applySplices(input string, splices []splice) string {
	if len(splices) == 0 {
		return input
	}
	var sb strings.Builder
	last := 0
	for _, s := range splices {
		sb.WriteString(input[last:s.start])
		sb.WriteString(s.replacement)
		last = s.end
	}
	sb.WriteString(input[last:])
	return sb.String()
}
