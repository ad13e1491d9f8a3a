package rdf

import (
	"fmt"
	"strings"
)

// Well-known vocabulary namespaces.
const (
	RDFNS  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFSNS = "http://www.w3.org/2000/01/rdf-schema#"
	OWLNS  = "http://www.w3.org/2002/07/owl#"
	XSDNS  = "http://www.w3.org/2001/XMLSchema#"
)

// Frequently used vocabulary terms.
const (
	RDFType       = RDFNS + "type"
	RDFSSubClass  = RDFSNS + "subClassOf"
	RDFSLabel     = RDFSNS + "label"
	OWLClass      = OWLNS + "Class"
	XSDString     = XSDNS + "string"
	XSDInteger    = XSDNS + "integer"
	XSDDecimal    = XSDNS + "decimal"
	XSDDouble     = XSDNS + "double"
	XSDBoolean    = XSDNS + "boolean"
	XSDDate       = XSDNS + "date"
	XSDDateTime   = XSDNS + "dateTime"
	XSDFloat      = XSDNS + "float"
)

// TermKind distinguishes the three kinds of RDF terms.
type TermKind int

const (
	TermIRI TermKind = iota
	TermLiteral
	TermBlank
)

// Term is an RDF term: an IRI, a literal (optionally typed or
// language-tagged) or a blank node.
type Term struct {
	Kind     TermKind `json:"kind"`
	Value    string   `json:"value"`
	Datatype string   `json:"datatype,omitempty"`
	Lang     string   `json:"lang,omitempty"`
}

// IRI returns an IRI term.
func IRI(value string) Term {
	return Term{Kind: TermIRI, Value: value}
}

// Literal returns a plain (untyped) literal term.
func Literal(value string) Term {
	return Term{Kind: TermLiteral, Value: value}
}

// TypedLiteral returns a literal term with an explicit datatype IRI.
func TypedLiteral(value, datatype string) Term {
	return Term{Kind: TermLiteral, Value: value, Datatype: datatype}
}

// LangLiteral returns a language-tagged literal term.
func LangLiteral(value, lang string) Term {
	return Term{Kind: TermLiteral, Value: value, Lang: lang}
}

// Blank returns a blank node term.
func Blank(label string) Term {
	return Term{Kind: TermBlank, Value: label}
}

// IsIRI reports whether the term is an IRI.
func (t Term) IsIRI() bool { return t.Kind == TermIRI }

// IsLiteral reports whether the term is a literal.
func (t Term) IsLiteral() bool { return t.Kind == TermLiteral }

// Equal reports whether two terms are identical.
func (t Term) Equal(o Term) bool {
	return t.Kind == o.Kind && t.Value == o.Value && t.Datatype == o.Datatype && t.Lang == o.Lang
}

// Key returns a canonical string form usable as a map key.
func (t Term) Key() string {
	switch t.Kind {
	case TermIRI:
		return "<" + t.Value + ">"
	case TermBlank:
		return "_:" + t.Value
	default:
		var sb strings.Builder
		sb.WriteString(`"`)
		sb.WriteString(t.Value)
		sb.WriteString(`"`)
		if t.Datatype != "" {
			sb.WriteString("^^<" + t.Datatype + ">")
		}
		if t.Lang != "" {
			sb.WriteString("@" + t.Lang)
		}
		return sb.String()
	}
}

// String implements fmt.Stringer using the canonical key form.
func (t Term) String() string { return t.Key() }

// LocalName returns the trailing local-name segment of an IRI: the text
// after the last '#', or after the last '/' when no fragment is present.
func LocalName(iri string) string {
	if idx := strings.LastIndex(iri, "#"); idx != -1 && idx < len(iri)-1 {
		return iri[idx+1:]
	}
	if idx := strings.LastIndex(iri, "/"); idx != -1 && idx < len(iri)-1 {
		return iri[idx+1:]
	}
	return iri
}

// Triple is a single (subject, predicate, object) fact.
type Triple struct {
	Subject   Term `json:"subject"`
	Predicate Term `json:"predicate"`
	Object    Term `json:"object"`
}

// Key returns a canonical string form of the triple.
func (t Triple) Key() string {
	return fmt.Sprintf("%s %s %s", t.Subject.Key(), t.Predicate.Key(), t.Object.Key())
}
