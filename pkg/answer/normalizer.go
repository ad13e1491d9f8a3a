package answer

import (
	"strings"

	"github.com/smart-mobility/smartcity-go/pkg/rdf"
	"github.com/smart-mobility/smartcity-go/pkg/sparql"
)

// NormalizedRecord is a binding row projected to display-ready strings.
// Unbound variables are absent, never empty strings, so callers can tell
// an unmatched optional pattern from a matched empty value.
type NormalizedRecord map[string]string

// Normalizer resolves URI-valued bindings to human-readable labels.
type Normalizer struct {
	store           *rdf.Store
	labelPredicates []string
}

// NewNormalizer creates a normalizer. labelPredicates are tried in order
// when resolving a URI; when empty, rdfs:label alone is consulted.
func NewNormalizer(store *rdf.Store, labelPredicates ...string) *Normalizer {
	if len(labelPredicates) == 0 {
		labelPredicates = []string{rdf.RDFSLabel}
	}
	return &Normalizer{store: store, labelPredicates: labelPredicates}
}

// NormalizeRows converts raw bindings to records. A row with zero bound
// variables is skipped entirely.
func (n *Normalizer) NormalizeRows(rows []sparql.BindingRow) []NormalizedRecord {
	out := make([]NormalizedRecord, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		rec := make(NormalizedRecord, len(row))
		for name, bv := range row {
			rec[name] = n.NormalizeValue(bv)
		}
		out = append(out, rec)
	}
	return out
}

// NormalizeValue resolves a single bound value. Resolution never fails:
// any lookup problem for an individual value degrades to the shortened
// URI form for that value alone.
func (n *Normalizer) NormalizeValue(bv sparql.BindingValue) string {
	if bv.Type == "uri" || looksLikeURI(bv.Value) {
		if label := n.resolveLabel(bv.Value); label != "" {
			return label
		}
		return rdf.LocalName(bv.Value)
	}
	return bv.Value
}

func (n *Normalizer) resolveLabel(iri string) string {
	subj := rdf.IRI(iri)
	for _, pred := range n.labelPredicates {
		p := rdf.IRI(pred)
		for _, t := range n.store.Match(&subj, &p, nil) {
			if t.Object.IsLiteral() && t.Object.Value != "" {
				return t.Object.Value
			}
		}
	}
	return ""
}

func looksLikeURI(v string) bool {
	return strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") || strings.HasPrefix(v, "urn:")
}
