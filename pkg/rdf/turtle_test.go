package rdf

import (
	"bytes"
	"strings"
	"testing"
)

const sampleTurtle = `
@prefix ex: <http://example.org/> .
@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .

# a comment
ex:bus a ex:Bus ;
    ex:nom "Bus 324" ;
    ex:capacite "32"^^xsd:integer ,
        "33"^^xsd:integer .

ex:accident ex:date "2025-10-27"^^xsd:dateTime .
ex:embouteillage ex:date "2025-11-05T08:30:00"^^xsd:dateTime .
`

func TestDecodeTurtleContinuationsAndComments(t *testing.T) {
	triples, prefixes, _, err := DecodeTurtle(strings.NewReader(sampleTurtle))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if prefixes["ex"] != "http://example.org/" {
		t.Errorf("prefix not captured: %v", prefixes)
	}
	// 1 type + 1 nom + 2 capacite + 2 dates.
	if len(triples) != 6 {
		t.Fatalf("expected 6 triples, got %d: %v", len(triples), triples)
	}

	var typeCount int
	for _, tr := range triples {
		if tr.Predicate.Value == RDFType {
			typeCount++
			if tr.Object.Value != "http://example.org/Bus" {
				t.Errorf("'a' keyword not expanded to rdf:type object: %v", tr)
			}
		}
	}
	if typeCount != 1 {
		t.Errorf("expected one rdf:type triple, got %d", typeCount)
	}
}

func TestDecodeRepairsDateOnlyDateTimes(t *testing.T) {
	triples, _, repaired, err := DecodeTurtle(strings.NewReader(sampleTurtle))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if repaired != 1 {
		t.Errorf("expected 1 repaired literal, got %d", repaired)
	}
	for _, tr := range triples {
		if tr.Object.Value == "2025-10-27" && tr.Object.Datatype != XSDDate {
			t.Errorf("date-only value kept dateTime type: %v", tr.Object)
		}
		if tr.Object.Value == "2025-11-05T08:30:00" && tr.Object.Datatype != XSDDateTime {
			t.Errorf("full dateTime value was wrongly reclassified: %v", tr.Object)
		}
	}
}

func TestEncodePrefersPrefixedNames(t *testing.T) {
	triples := []Triple{
		{Subject: IRI("http://example.org/a"), Predicate: IRI(RDFType), Object: IRI("http://example.org/Bus")},
		{Subject: IRI("http://example.org/a"), Predicate: IRI("http://example.org/nom"), Object: Literal("ligne \"express\"")},
	}
	prefixes := map[string]string{"ex": "http://example.org/"}

	var buf bytes.Buffer
	if err := EncodeTurtle(&buf, triples, prefixes); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "ex:a a ex:Bus") {
		t.Errorf("expected prefixed type statement, got:\n%s", out)
	}
	if !strings.Contains(out, `\"express\"`) {
		t.Errorf("quotes not escaped:\n%s", out)
	}

	back, _, _, err := DecodeTurtle(&buf)
	if err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}
	if len(back) != len(triples) {
		t.Errorf("round trip changed triple count: %d != %d", len(back), len(triples))
	}
}

func TestDecodeRejectsUnknownPrefix(t *testing.T) {
	_, _, _, err := DecodeTurtle(strings.NewReader(`foo:a foo:b "c" .`))
	if err == nil {
		t.Error("expected error for undeclared prefix")
	}
}
