package rdf

import (
	"path/filepath"
	"testing"
)

func TestAddDeduplicates(t *testing.T) {
	s := NewStore(nil)
	tr := Triple{Subject: IRI("ex:s"), Predicate: IRI("ex:p"), Object: Literal("v")}
	if !s.Add(tr) {
		t.Error("first add should report insertion")
	}
	if s.Add(tr) {
		t.Error("second add of the same triple should be a no-op")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 triple, got %d", s.Len())
	}
}

func TestMatchWithWildcards(t *testing.T) {
	s := NewStore(nil)
	s.Add(Triple{Subject: IRI("ex:a"), Predicate: IRI("ex:p"), Object: Literal("1")})
	s.Add(Triple{Subject: IRI("ex:a"), Predicate: IRI("ex:q"), Object: Literal("2")})
	s.Add(Triple{Subject: IRI("ex:b"), Predicate: IRI("ex:p"), Object: Literal("3")})

	subj := IRI("ex:a")
	if got := len(s.Match(&subj, nil, nil)); got != 2 {
		t.Errorf("subject match: expected 2, got %d", got)
	}
	pred := IRI("ex:p")
	if got := len(s.Match(nil, &pred, nil)); got != 2 {
		t.Errorf("predicate match: expected 2, got %d", got)
	}
	if got := len(s.Match(nil, nil, nil)); got != 3 {
		t.Errorf("full scan: expected 3, got %d", got)
	}
}

func TestRemoveBySubject(t *testing.T) {
	s := NewStore(nil)
	s.Add(Triple{Subject: IRI("ex:a"), Predicate: IRI("ex:p"), Object: Literal("1")})
	s.Add(Triple{Subject: IRI("ex:a"), Predicate: IRI("ex:q"), Object: Literal("2")})
	s.Add(Triple{Subject: IRI("ex:b"), Predicate: IRI("ex:r"), Object: IRI("ex:a")})

	subj := IRI("ex:a")
	if removed := s.Remove(&subj, nil, nil); removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	obj := IRI("ex:a")
	if removed := s.Remove(nil, nil, &obj); removed != 1 {
		t.Errorf("expected 1 dangling reference removed, got %d", removed)
	}
	if s.Len() != 0 {
		t.Errorf("store not empty after removal: %d", s.Len())
	}
}

func TestSubclassClosureIsTransitiveAndReflexive(t *testing.T) {
	s := NewStore(nil)
	s.Add(Triple{Subject: IRI("ex:Bus"), Predicate: IRI(RDFSSubClass), Object: IRI("ex:Transport")})
	s.Add(Triple{Subject: IRI("ex:Minibus"), Predicate: IRI(RDFSSubClass), Object: IRI("ex:Bus")})

	closure := s.SubclassClosure("ex:Transport")
	want := map[string]bool{"ex:Transport": true, "ex:Bus": true, "ex:Minibus": true}
	if len(closure) != len(want) {
		t.Fatalf("closure %v, want members of %v", closure, want)
	}
	for _, c := range closure {
		if !want[c] {
			t.Errorf("unexpected member %q", c)
		}
	}

	if !s.HasSubclasses("ex:Transport") {
		t.Error("Transport should have subclasses")
	}
	if s.HasSubclasses("ex:Minibus") {
		t.Error("leaf class should not report subclasses")
	}
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	s := NewStore(nil)
	s.Bind("ex", "http://example.org/")
	s.Add(Triple{
		Subject:   IRI("http://example.org/a"),
		Predicate: IRI("http://example.org/p"),
		Object:    TypedLiteral("5", XSDInteger),
	})
	s.Add(Triple{
		Subject:   IRI("http://example.org/a"),
		Predicate: IRI(RDFSLabel),
		Object:    Literal("entité à accents"),
	})

	path := filepath.Join(t.TempDir(), "graph.ttl")
	if err := s.SaveFile(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded := NewStore(nil)
	if err := loaded.LoadFile(path); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Len() != s.Len() {
		t.Errorf("round trip changed triple count: %d != %d", loaded.Len(), s.Len())
	}
	subj := IRI("http://example.org/a")
	pred := IRI(RDFSLabel)
	got := loaded.Match(&subj, &pred, nil)
	if len(got) != 1 || got[0].Object.Value != "entité à accents" {
		t.Errorf("label literal did not survive round trip: %v", got)
	}
}
