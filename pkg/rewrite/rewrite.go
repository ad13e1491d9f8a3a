// Package rewrite derives executable queries from loosely generated
// candidates. Each rule deterministically increases the odds that a query
// matches the concrete graph without changing its intended meaning; a rule
// whose precondition is absent leaves the text untouched, so rewriting
// never fails.
package rewrite

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smart-mobility/smartcity-go/pkg/metrics"
	"github.com/smart-mobility/smartcity-go/pkg/rdf"
)

// Provenance records where a candidate query came from.
type Provenance string

const (
	ProvenanceModel  Provenance = "generated-by-model"
	ProvenanceBypass Provenance = "hand-authored-bypass"
	ProvenanceUser   Provenance = "user-supplied"
)

// CandidateQuery is an immutable query string claimed to be valid. It is
// never executed directly; the rewriter derives an ExecutableQuery from it
// so the original survives for display and debugging.
type CandidateQuery struct {
	Text       string
	Provenance Provenance
}

// ExecutableQuery is the rewritten form together with the names of the
// rules that actually changed the text.
type ExecutableQuery struct {
	Candidate CandidateQuery
	Text      string
	Applied   []string
}

// GraphInfo is the view of the store the rewriter needs.
type GraphInfo interface {
	Namespaces() map[string]string
	ContainsIRI(iri string) bool
	HasSubclasses(class string) bool
}

// Rewriter applies the repair rules against the current graph state.
type Rewriter struct {
	graph  GraphInfo
	logger *zap.Logger
	now    func() time.Time
}

// New creates a rewriter. A nil logger disables logging.
func New(graph GraphInfo, logger *zap.Logger) *Rewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{graph: graph, logger: logger, now: time.Now}
}

// WithClock overrides the time source, used by tests and the relative-date
// rule.
func (r *Rewriter) WithClock(now func() time.Time) *Rewriter {
	r.now = now
	return r
}

// Rewrite applies all rules in their fixed order.
func (r *Rewriter) Rewrite(c CandidateQuery) ExecutableQuery {
	exec := ExecutableQuery{Candidate: c, Text: c.Text}

	rules := []struct {
		name string
		fn   func(string) (string, bool)
	}{
		{"distinct-count", ensureDistinctCount},
		{"namespace-repair", r.repairNamespaces},
		{"subclass-types", func(s string) (string, bool) { return r.rewriteTypeChecks(s, false) }},
		{"relative-dates", r.resolveRelativeDates},
	}

	for _, rule := range rules {
		next, changed := rule.fn(exec.Text)
		if changed {
			exec.Text = next
			exec.Applied = append(exec.Applied, rule.name)
			metrics.RewritesTotal.WithLabelValues(rule.name).Inc()
			r.logger.Debug("rewrite rule applied", zap.String("rule", rule.name))
		}
	}
	return exec
}

// ForceSubclassRewrite rewrites every type check to its subclass-aware path
// form regardless of whether the class has known subclasses. The fallback
// controller uses it when a first execution came back empty.
func (r *Rewriter) ForceSubclassRewrite(text string) (string, bool) {
	return r.rewriteTypeChecks(text, true)
}

// Rule 1: COUNT(?x) without DISTINCT silently overcounts when a variable is
// reachable via multiple derivation paths; counts must mean distinct
// entities.
var countPattern = regexp.MustCompile(`(?i)(COUNT\s*\(\s*)(\?[A-Za-z_][A-Za-z0-9_]*)`)

func ensureDistinctCount(text string) (string, bool) {
	out := countPattern.ReplaceAllString(text, "${1}DISTINCT ${2}")
	return out, out != text
}

// reservedPrefixes are vocabulary namespaces that are never treated as
// data-namespace mistakes.
var reservedPrefixes = map[string]bool{
	"rdf": true, "rdfs": true, "owl": true, "xsd": true,
}

// Rule 2: for every prefix:Local token whose expansion is absent from the
// graph, look for another bound namespace under which the local name does
// exist and substitute the full IRI. Full IRIs are never re-matched, which
// makes the rule idempotent.
func (r *Rewriter) repairNamespaces(text string) (string, bool) {
	toks := scanTokens(text)
	declared := declaredPrefixes(toks)

	namespaces := make(map[string]string)
	for p, ns := range r.graph.Namespaces() {
		namespaces[p] = ns
	}
	for p, ns := range declared {
		namespaces[p] = ns
	}

	// Deterministic candidate order when scanning for a better namespace.
	ordered := make([]string, 0, len(namespaces))
	for p := range namespaces {
		if !reservedPrefixes[p] {
			ordered = append(ordered, p)
		}
	}
	sort.Strings(ordered)

	var splices []splice
	for i, t := range toks {
		if t.kind != qPName {
			continue
		}
		// Skip the name token of a PREFIX declaration itself.
		if i > 0 && toks[i-1].kind == qWord && strings.EqualFold(toks[i-1].text, "PREFIX") {
			continue
		}
		prefix, local := splitPName(t.text)
		if local == "" || reservedPrefixes[prefix] {
			continue
		}
		if ns, ok := namespaces[prefix]; ok && r.graph.ContainsIRI(ns+local) {
			continue
		}
		for _, p := range ordered {
			if full := namespaces[p] + local; r.graph.ContainsIRI(full) {
				splices = append(splices, splice{start: t.start, end: t.end, replacement: "<" + full + ">"})
				r.logger.Debug("namespace token repaired",
					zap.String("token", t.text), zap.String("resolved", full))
				break
			}
		}
	}
	if len(splices) == 0 {
		return text, false
	}
	return applySplices(text, splices), true
}

const subclassPath = "<" + rdf.RDFType + ">/<" + rdf.RDFSSubClass + ">*"

// Rule 3: instances are always typed by a leaf subclass, never the abstract
// superclass, so a plain type check against a parent class matches nothing.
// The predicate becomes a subclass-transitive path. A type predicate already
// followed by '/' is part of a path and is left alone.
func (r *Rewriter) rewriteTypeChecks(text string, force bool) (string, bool) {
	toks := scanTokens(text)
	declared := declaredPrefixes(toks)

	namespaces := make(map[string]string)
	for p, ns := range r.graph.Namespaces() {
		namespaces[p] = ns
	}
	for p, ns := range declared {
		namespaces[p] = ns
	}

	var splices []splice
	for i, t := range toks {
		if !isTypePredicate(t) {
			continue
		}
		if i+1 >= len(toks) {
			continue
		}
		next := toks[i+1]
		// Already a path step, or followed by a modifier.
		if next.kind == qPunct && (next.text == "/" || next.text == "*" || next.text == "+") {
			continue
		}
		class := resolveClassToken(next, namespaces)
		if class == "" {
			continue
		}
		if !force && !r.graph.HasSubclasses(class) {
			continue
		}
		splices = append(splices, splice{start: t.start, end: t.end, replacement: subclassPath})
	}
	if len(splices) == 0 {
		return text, false
	}
	return applySplices(text, splices), true
}

func isTypePredicate(t qtok) bool {
	switch t.kind {
	case qWord:
		return t.text == "a"
	case qPName:
		return t.text == "rdf:type"
	case qIRI:
		return t.text == rdf.RDFType
	}
	return false
}

func resolveClassToken(t qtok, namespaces map[string]string) string {
	switch t.kind {
	case qIRI:
		return t.text
	case qPName:
		prefix, local := splitPName(t.text)
		if local == "" {
			return ""
		}
		if ns, ok := namespaces[prefix]; ok {
			return ns + local
		}
	}
	return ""
}

// Rule 4: the engine does not support duration arithmetic against the
// heterogeneous date literals actually stored, so "now minus N days" becomes
// a concrete calendar date computed at rewrite time.
var relativeDatePattern = regexp.MustCompile(
	`(?i)NOW\s*\(\s*\)\s*-\s*"P(\d+)D"(\s*\^\^\s*(?:xsd:dayTimeDuration|<[^>]*dayTimeDuration>))?`)

func (r *Rewriter) resolveRelativeDates(text string) (string, bool) {
	changed := false
	out := relativeDatePattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := relativeDatePattern.FindStringSubmatch(m)
		days, err := strconv.Atoi(sub[1])
		if err != nil {
			return m
		}
		changed = true
		cutoff := r.now().AddDate(0, 0, -days).Format("2006-01-02")
		return fmt.Sprintf("%q^^<%s>", cutoff, rdf.XSDDate)
	})
	return out, changed
}

// Date-comparison fallback used by the execution controller, not part of
// the standard rule order: comparisons against typed date literals are
// replaced by comparisons of the lexical string forms, which span the
// store's mixed xsd:date and xsd:dateTime typing.
var typedDateComparison = regexp.MustCompile(
	`(\?[A-Za-z_][A-Za-z0-9_]*)\s*(>=|<=|!=|=|>|<)\s*"([^"]+)"\s*\^\^\s*(?:xsd:date(?:Time)?|<http://www\.w3\.org/2001/XMLSchema#date(?:Time)?>)`)

// RewriteDateComparisons converts typed date comparisons to string form.
func RewriteDateComparisons(text string) (string, bool) {
	out := typedDateComparison.ReplaceAllString(text, `STR(${1}) ${2} "${3}"`)
	return out, out != text
}

// HasTypedDateComparison reports whether the controller's date fallback has
// anything to work on.
func HasTypedDateComparison(text string) bool {
	return typedDateComparison.MatchString(text)
}

// HasPlainTypeCheck reports whether the query still contains a type check
// that is not subclass-aware.
func HasPlainTypeCheck(text string) bool {
	toks := scanTokens(text)
	for i, t := range toks {
		if !isTypePredicate(t) {
			continue
		}
		if i+1 < len(toks) && toks[i+1].kind == qPunct &&
			(toks[i+1].text == "/" || toks[i+1].text == "*" || toks[i+1].text == "+") {
			continue
		}
		return true
	}
	return false
}

// ReferencedClasses returns the full IRIs of classes named in type checks,
// in order of appearance. The controller uses them to target its
// predicate-usage diagnostic.
func ReferencedClasses(text string, graph GraphInfo) []string {
	toks := scanTokens(text)
	declared := declaredPrefixes(toks)

	namespaces := make(map[string]string)
	for p, ns := range graph.Namespaces() {
		namespaces[p] = ns
	}
	for p, ns := range declared {
		namespaces[p] = ns
	}

	var out []string
	seen := make(map[string]bool)
	for i, t := range toks {
		classAt := -1
		if isTypePredicate(t) {
			classAt = i + 1
			// Step over a subclass path: type/subClassOf* class.
			if classAt+2 < len(toks) && toks[classAt].kind == qPunct && toks[classAt].text == "/" {
				classAt += 2
				if classAt < len(toks) && toks[classAt].kind == qPunct && toks[classAt].text == "*" {
					classAt++
				}
			}
		}
		if classAt < 0 || classAt >= len(toks) {
			continue
		}
		class := resolveClassToken(toks[classAt], namespaces)
		if class == "" || seen[class] {
			continue
		}
		seen[class] = true
		out = append(out, class)
	}
	return out
}
