package rdf

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Store is an in-memory triple store guarding all access with a single
// read/write mutex. Every mutation goes through that lock, so a write from
// one request cannot interleave with another mid-mutation; there is still
// no isolation between separate read-modify-write sequences on the HTTP
// surface, which is a documented limitation.
type Store struct {
	mu       sync.RWMutex
	triples  []Triple
	keys     map[string]struct{}
	prefixes map[string]string
	logger   *zap.Logger
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		keys:     make(map[string]struct{}),
		prefixes: make(map[string]string),
		logger:   logger,
	}
}

// Bind associates a prefix with a namespace IRI.
func (s *Store) Bind(prefix, namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefixes[prefix] = namespace
}

// Namespaces returns a copy of the bound prefix map.
func (s *Store) Namespaces() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.prefixes))
	for p, ns := range s.prefixes {
		out[p] = ns
	}
	return out
}

// Add inserts a triple, reporting whether it was not already present.
func (s *Store) Add(t Triple) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(t)
}

// AddAll inserts a batch of triples, returning the number actually added.
func (s *Store) AddAll(triples []Triple) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, t := range triples {
		if s.addLocked(t) {
			added++
		}
	}
	return added
}

func (s *Store) addLocked(t Triple) bool {
	key := t.Key()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	s.triples = append(s.triples, t)
	return true
}

// Remove deletes every triple matching the given pattern; nil components
// act as wildcards. It returns the number of triples removed.
func (s *Store) Remove(subject, predicate, object *Term) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.triples[:0]
	removed := 0
	for _, t := range s.triples {
		if matchComponent(subject, t.Subject) &&
			matchComponent(predicate, t.Predicate) &&
			matchComponent(object, t.Object) {
			delete(s.keys, t.Key())
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.triples = kept
	return removed
}

func matchComponent(pattern *Term, actual Term) bool {
	return pattern == nil || pattern.Equal(actual)
}

// Match returns every triple matching the pattern; nil components act as
// wildcards.
func (s *Store) Match(subject, predicate, object *Term) []Triple {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Triple
	for _, t := range s.triples {
		if matchComponent(subject, t.Subject) &&
			matchComponent(predicate, t.Predicate) &&
			matchComponent(object, t.Object) {
			out = append(out, t)
		}
	}
	return out
}

// Snapshot returns a copy of all triples for lock-free read access.
func (s *Store) Snapshot() []Triple {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Triple, len(s.triples))
	copy(out, s.triples)
	return out
}

// Len returns the number of triples held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.triples)
}

// ContainsIRI reports whether the IRI occurs anywhere in the store, as a
// subject, predicate or object.
func (s *Store) ContainsIRI(iri string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.triples {
		if (t.Subject.IsIRI() && t.Subject.Value == iri) ||
			(t.Predicate.IsIRI() && t.Predicate.Value == iri) ||
			(t.Object.IsIRI() && t.Object.Value == iri) {
			return true
		}
	}
	return false
}

// HasSubject reports whether any triple has the given IRI as its subject.
func (s *Store) HasSubject(iri string) bool {
	subj := IRI(iri)
	return len(s.Match(&subj, nil, nil)) > 0
}

// SubclassClosure returns the named class together with every transitive
// subclass asserted via rdfs:subClassOf, sorted for determinism.
func (s *Store) SubclassClosure(class string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Invert subClassOf edges once per call; graphs here are small.
	children := make(map[string][]string)
	for _, t := range s.triples {
		if t.Predicate.IsIRI() && t.Predicate.Value == RDFSSubClass &&
			t.Subject.IsIRI() && t.Object.IsIRI() {
			children[t.Object.Value] = append(children[t.Object.Value], t.Subject.Value)
		}
	}

	seen := map[string]struct{}{class: {}}
	queue := []string{class}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, sub := range children[cur] {
			if _, ok := seen[sub]; !ok {
				seen[sub] = struct{}{}
				queue = append(queue, sub)
			}
		}
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// HasSubclasses reports whether at least one class is asserted as a strict
// subclass of the given class.
func (s *Store) HasSubclasses(class string) bool {
	return len(s.SubclassClosure(class)) > 1
}

// LoadFile parses a Turtle file into the store, replacing its contents.
// Date-only lexical values mistyped as xsd:dateTime are reclassified to
// xsd:date during load; the repair is logged, never an error.
func (s *Store) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open RDF file: %w", err)
	}
	defer f.Close()

	triples, prefixes, repaired, err := DecodeTurtle(f)
	if err != nil {
		return fmt.Errorf("failed to parse RDF file %s: %w", path, err)
	}

	s.mu.Lock()
	s.triples = nil
	s.keys = make(map[string]struct{})
	for p, ns := range prefixes {
		s.prefixes[p] = ns
	}
	for _, t := range triples {
		s.addLocked(t)
	}
	count := len(s.triples)
	s.mu.Unlock()

	if repaired > 0 {
		s.logger.Warn("reclassified date-only dateTime literals during load",
			zap.Int("repaired", repaired), zap.String("path", path))
	}
	s.logger.Info("RDF graph loaded", zap.String("path", path), zap.Int("triples", count))
	return nil
}

// SaveFile serializes the whole store back to a Turtle file. Callers treat
// failure as best-effort and log it rather than failing the request.
func (s *Store) SaveFile(path string) error {
	s.mu.RLock()
	triples := make([]Triple, len(s.triples))
	copy(triples, s.triples)
	prefixes := make(map[string]string, len(s.prefixes))
	for p, ns := range s.prefixes {
		prefixes[p] = ns
	}
	s.mu.RUnlock()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create RDF file: %w", err)
	}
	if err := EncodeTurtle(f, triples, prefixes); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to serialize RDF graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to flush RDF file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace RDF file: %w", err)
	}
	return nil
}
