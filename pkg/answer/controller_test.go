package answer

import (
	"testing"

	"github.com/smart-mobility/smartcity-go/pkg/rdf"
	"github.com/smart-mobility/smartcity-go/pkg/rewrite"
	"github.com/smart-mobility/smartcity-go/pkg/sparql"
)

const sc = "http://example.org/smartcity#"
const ont = "http://www.co-ode.org/ontologies/ont.owl#"

func testStore(t *testing.T) *rdf.Store {
	t.Helper()
	store := rdf.NewStore(nil)
	store.Bind("smartcity", sc)
	store.Bind("ont", ont)

	add := func(s, p string, o rdf.Term) {
		store.Add(rdf.Triple{Subject: rdf.IRI(s), Predicate: rdf.IRI(p), Object: o})
	}
	add(sc+"Bus", rdf.RDFSSubClass, rdf.IRI(sc+"Transport"))
	add(sc+"Velo", rdf.RDFSSubClass, rdf.IRI(sc+"Transport"))
	add(sc+"Bus_1", rdf.RDFType, rdf.IRI(sc+"Bus"))
	add(sc+"Bus_1", ont+"Nom", rdf.Literal("Ligne 1"))
	add(sc+"Bus_1", ont+"Capacite", rdf.TypedLiteral("80", rdf.XSDInteger))
	add(sc+"Velo_1", rdf.RDFType, rdf.IRI(sc+"Velo"))
	add(sc+"Velo_1", ont+"Nom", rdf.Literal("Velib 1"))

	add(sc+"Embouteillage", rdf.RDFSSubClass, rdf.IRI(sc+"EvenementDeCirculation"))
	add(sc+"Event_1", rdf.RDFType, rdf.IRI(sc+"Embouteillage"))
	add(sc+"Event_1", ont+"aDateEvenement", rdf.TypedLiteral("2026-08-20", rdf.XSDDate))
	add(sc+"Event_2", rdf.RDFType, rdf.IRI(sc+"Embouteillage"))
	add(sc+"Event_2", ont+"aDateEvenement", rdf.TypedLiteral("2026-08-25T08:00:00", rdf.XSDDateTime))
	return store
}

func newController(t *testing.T, store *rdf.Store) *Controller {
	t.Helper()
	rw := rewrite.New(store, nil)
	norm := NewNormalizer(store, rdf.RDFSLabel, ont+"Nom")
	return NewController(store, rw, norm, nil)
}

func TestRunDirectSuccess(t *testing.T) {
	store := testStore(t)
	c := newController(t, store)
	out := c.Run(rewrite.ExecutableQuery{
		Text: `PREFIX ont: <` + ont + `> SELECT ?n WHERE { ?s ont:Nom ?n }`,
	})
	if out.Status != StatusOk {
		t.Fatalf("expected ok, got %s (err=%v)", out.Status, out.Err)
	}
	if out.Count() != 2 {
		t.Errorf("expected 2 results, got %d", out.Count())
	}
}

func TestRunResolvesGraphBoundPrefixes(t *testing.T) {
	store := testStore(t)
	c := newController(t, store)
	// No PREFIX lines: the smartcity prefix is bound on the store, so the
	// query must resolve and execute instead of failing to parse.
	exec := rewrite.New(store, nil).Rewrite(rewrite.CandidateQuery{
		Text:       `SELECT ?t WHERE { ?t a smartcity:Bus }`,
		Provenance: rewrite.ProvenanceUser,
	})
	out := c.Run(exec)
	if out.Err != nil {
		t.Fatalf("prefixed query without declarations failed: %v", out.Err)
	}
	if out.Count() != 1 {
		t.Errorf("expected the bus instance, got %d results", out.Count())
	}
}

func TestForcedSubclassRetryRecoversEmptyResult(t *testing.T) {
	store := testStore(t)
	c := newController(t, store)
	// A plain type check against the superclass matches nothing; the
	// controller must widen it and recover.
	out := c.Run(rewrite.ExecutableQuery{
		Text: `PREFIX smartcity: <` + sc + `> SELECT ?t WHERE { ?t rdf:type smartcity:Transport }`,
	})
	if out.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", out.Status)
	}
	if out.Count() != 2 {
		t.Errorf("expected both transport instances, got %d", out.Count())
	}
	if out.Reason != "subclass-aware retry" {
		t.Errorf("unexpected reason %q", out.Reason)
	}
}

func TestDateComparisonRetryRecoversMixedTyping(t *testing.T) {
	store := testStore(t)
	c := newController(t, store)
	// The cutoff is past the only xsd:date-typed event, so the typed
	// comparison matches nothing; the dateTime-typed event is reachable
	// only through the string-form retry.
	out := c.Run(rewrite.ExecutableQuery{
		Text: `PREFIX ont: <` + ont + `>
			SELECT ?e WHERE { ?e ont:aDateEvenement ?d . FILTER(?d >= "2026-08-22"^^xsd:date) }`,
	})
	if out.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", out.Status)
	}
	if out.Count() != 1 {
		t.Fatalf("expected the dateTime event via string comparison, got %d", out.Count())
	}
	if out.Reason != "string-form date comparison retry" {
		t.Errorf("unexpected reason %q", out.Reason)
	}
}

func TestDateComparisonRetrySuccessDropsSuggestions(t *testing.T) {
	store := testStore(t)
	c := newController(t, store)
	// The class reference makes the empty first attempt compute predicate
	// diagnostics; they must not survive once the string-form retry
	// recovers actual rows.
	out := c.Run(rewrite.ExecutableQuery{
		Text: `PREFIX smartcity: <` + sc + `>
			PREFIX ont: <` + ont + `>
			SELECT ?e WHERE {
				?e rdf:type/rdfs:subClassOf* smartcity:EvenementDeCirculation .
				?e ont:aDateEvenement ?d .
				FILTER(?d >= "2026-08-22"^^xsd:date)
			}`,
	})
	if out.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s (err=%v)", out.Status, out.Err)
	}
	if out.Count() != 1 {
		t.Fatalf("expected the dateTime event via string comparison, got %d", out.Count())
	}
	if len(out.Suggestions) != 0 {
		t.Errorf("diagnostics must be dropped on recovery, got %v", out.Suggestions)
	}
}

func TestEmptyQueryYieldsSuggestions(t *testing.T) {
	store := testStore(t)
	c := newController(t, store)
	out := c.Run(rewrite.ExecutableQuery{
		Text: `PREFIX smartcity: <` + sc + `>
			PREFIX ont: <` + ont + `>
			SELECT ?t WHERE { ?t rdf:type/rdfs:subClassOf* smartcity:Transport . ?t ont:Inexistant ?x }`,
	})
	if !out.Empty {
		t.Fatal("expected empty classification")
	}
	if len(out.Suggestions) == 0 {
		t.Fatal("expected predicate suggestions for the referenced class")
	}
	// rdf:type is asserted for both instances, so it leads the usage list.
	if out.Suggestions[0].Predicate != rdf.RDFType || out.Suggestions[0].Count != 2 {
		t.Errorf("unexpected top suggestion %+v", out.Suggestions[0])
	}
}

func TestFirstErrorPropagatesWhenAllAttemptsFail(t *testing.T) {
	store := testStore(t)
	c := newController(t, store)
	out := c.Run(rewrite.ExecutableQuery{Text: `SELECT ?x WHERE { broken`})
	if out.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", out.Status)
	}
	if out.Err == nil || !sparql.IsParseError(out.Err) {
		t.Errorf("expected wrapped parse error, got %v", out.Err)
	}
}

func TestClassifyEmptySingleZeroAggregate(t *testing.T) {
	zero := &sparql.QueryResult{
		Variables: []string{"n"},
		Bindings: []sparql.BindingRow{
			{"n": sparql.BindingValue{Type: "literal", Value: "0"}},
		},
	}
	if !classifyEmpty(zero) {
		t.Error("single all-zero aggregate row must classify as empty")
	}

	nonZero := &sparql.QueryResult{
		Variables: []string{"n"},
		Bindings: []sparql.BindingRow{
			{"n": sparql.BindingValue{Type: "literal", Value: "4"}},
		},
	}
	if classifyEmpty(nonZero) {
		t.Error("non-zero aggregate must not classify as empty")
	}

	textual := &sparql.QueryResult{
		Variables: []string{"nom"},
		Bindings: []sparql.BindingRow{
			{"nom": sparql.BindingValue{Type: "literal", Value: "Ligne 1"}},
		},
	}
	if classifyEmpty(textual) {
		t.Error("textual single row must not classify as empty")
	}
}

func TestNormalizerLabelFallbackChain(t *testing.T) {
	store := testStore(t)
	store.Add(rdf.Triple{
		Subject:   rdf.IRI(sc + "Bus_1"),
		Predicate: rdf.IRI(rdf.RDFSLabel),
		Object:    rdf.Literal("Bus de la ligne 1"),
	})
	n := NewNormalizer(store, rdf.RDFSLabel, ont+"Nom")

	// rdfs:label wins over ont:Nom.
	got := n.NormalizeValue(sparql.BindingValue{Type: "uri", Value: sc + "Bus_1"})
	if got != "Bus de la ligne 1" {
		t.Errorf("expected rdfs:label, got %q", got)
	}

	// No label, no name: trailing local-name segment.
	got = n.NormalizeValue(sparql.BindingValue{Type: "uri", Value: sc + "Event_1"})
	if got != "Event_1" {
		t.Errorf("expected local name, got %q", got)
	}

	got = n.NormalizeValue(sparql.BindingValue{Type: "uri", Value: "http://example.org/zones/Nord"})
	if got != "Nord" {
		t.Errorf("expected path segment fallback, got %q", got)
	}
}

func TestNormalizerOmitsUnboundAndSkipsEmptyRows(t *testing.T) {
	store := testStore(t)
	n := NewNormalizer(store)
	rows := []sparql.BindingRow{
		{"a": sparql.BindingValue{Type: "literal", Value: "x"}},
		{},
	}
	recs := n.NormalizeRows(rows)
	if len(recs) != 1 {
		t.Fatalf("expected the empty row to be skipped, got %d records", len(recs))
	}
	if _, ok := recs[0]["b"]; ok {
		t.Error("unbound variable must be absent from the record")
	}
}
