package sparql

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/smart-mobility/smartcity-go/pkg/rdf"
)

// Evaluator executes parsed queries against a store snapshot.
type Evaluator struct {
	store *rdf.Store
}

// NewEvaluator creates an evaluator bound to a store.
func NewEvaluator(store *rdf.Store) *Evaluator {
	return &Evaluator{store: store}
}

// Query parses and evaluates a SELECT query. Prefixes bound on the
// store resolve without PREFIX declarations.
func (e *Evaluator) Query(text string) (*QueryResult, error) {
	q, err := ParseWithPrefixes(text, e.store.Namespaces())
	if err != nil {
		return nil, err
	}
	return e.Eval(q)
}

// Eval evaluates an already-parsed query.
func (e *Evaluator) Eval(q *Query) (*QueryResult, error) {
	start := time.Now()
	ds := newDataset(e.store.Snapshot())

	sols := matchGroup(ds, q.Select.Where, []solution{{}})

	rows, variables, err := project(q.Select, sols)
	if err != nil {
		return nil, err
	}

	if len(q.Select.OrderBy) > 0 {
		orderRows(rows, q.Select.OrderBy)
	}
	if q.Select.Distinct {
		rows = distinctRows(rows, variables)
	}
	if q.Select.Offset > 0 {
		if q.Select.Offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[q.Select.Offset:]
		}
	}
	if q.Select.Limit > 0 && len(rows) > q.Select.Limit {
		rows = rows[:q.Select.Limit]
	}

	return &QueryResult{
		Variables: variables,
		Bindings:  rows,
		Duration:  time.Since(start),
	}, nil
}

type solution map[string]rdf.Term

func (s solution) clone() solution {
	out := make(solution, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	return out
}

type dataset struct {
	triples []rdf.Triple
	byPred  map[string][]rdf.Triple
}

func newDataset(triples []rdf.Triple) *dataset {
	ds := &dataset{triples: triples, byPred: make(map[string][]rdf.Triple)}
	for _, t := range triples {
		if t.Predicate.IsIRI() {
			ds.byPred[t.Predicate.Value] = append(ds.byPred[t.Predicate.Value], t)
		}
	}
	return ds
}

// allTerms returns every distinct subject and object term.
func (ds *dataset) allTerms() []rdf.Term {
	seen := make(map[string]rdf.Term)
	for _, t := range ds.triples {
		seen[t.Subject.Key()] = t.Subject
		seen[t.Object.Key()] = t.Object
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]rdf.Term, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out
}

func matchGroup(ds *dataset, g *GroupPattern, sols []solution) []solution {
	for _, tp := range g.Patterns {
		sols = matchPattern(ds, tp, sols)
	}

	for _, opt := range g.Optionals {
		var joined []solution
		for _, sol := range sols {
			matched := matchGroup(ds, opt, []solution{sol})
			if len(matched) > 0 {
				joined = append(joined, matched...)
			} else {
				joined = append(joined, sol)
			}
		}
		sols = joined
	}

	for _, b := range g.Binds {
		for _, sol := range sols {
			if _, bound := sol[b.Var]; bound {
				continue
			}
			if term, err := evalExpr(b.Expr, sol); err == nil {
				sol[b.Var] = term
			}
		}
	}

	if len(g.Filters) > 0 {
		var kept []solution
		for _, sol := range sols {
			ok := true
			for _, f := range g.Filters {
				term, err := evalExpr(f, sol)
				if err != nil || !ebv(term) {
					ok = false
					break
				}
			}
			if ok {
				kept = append(kept, sol)
			}
		}
		sols = kept
	}
	return sols
}

func matchPattern(ds *dataset, tp TriplePattern, sols []solution) []solution {
	var out []solution
	for _, sol := range sols {
		out = append(out, matchPatternOne(ds, tp, sol)...)
	}
	return out
}

func matchPatternOne(ds *dataset, tp TriplePattern, sol solution) []solution {
	// Variable predicate: plain scan over all triples.
	if tp.PredVar != "" {
		var out []solution
		for _, t := range ds.triples {
			ext, ok := unifyNode(tp.Subject, t.Subject, sol)
			if !ok {
				continue
			}
			if bound, has := ext[tp.PredVar]; has {
				if !bound.Equal(t.Predicate) {
					continue
				}
			} else {
				ext = ext.clone()
				ext[tp.PredVar] = t.Predicate
			}
			final, ok := unifyNode(tp.Object, t.Object, ext)
			if !ok {
				continue
			}
			out = append(out, final)
		}
		return out
	}

	// Fast path: single unmodified step.
	if len(tp.Path) == 1 && tp.Path[0].Mod == 0 {
		var out []solution
		for _, t := range ds.byPred[tp.Path[0].IRI] {
			ext, ok := unifyNode(tp.Subject, t.Subject, sol)
			if !ok {
				continue
			}
			final, ok := unifyNode(tp.Object, t.Object, ext)
			if !ok {
				continue
			}
			out = append(out, final)
		}
		return out
	}

	// General property path.
	starts := pathStarts(ds, tp, sol)
	var out []solution
	for _, s := range starts {
		ext, ok := unifyNode(tp.Subject, s, sol)
		if !ok {
			continue
		}
		for _, end := range pathEnds(ds, s, tp.Path) {
			final, ok := unifyNode(tp.Object, end, ext)
			if !ok {
				continue
			}
			out = append(out, final)
		}
	}
	return out
}

// pathStarts determines the candidate starting terms for a path pattern.
func pathStarts(ds *dataset, tp TriplePattern, sol solution) []rdf.Term {
	if tp.Subject.Kind != NodeVar {
		return []rdf.Term{nodeTerm(tp.Subject)}
	}
	if bound, ok := sol[tp.Subject.Value]; ok {
		return []rdf.Term{bound}
	}
	if tp.Path[0].Mod == 0 {
		seen := make(map[string]struct{})
		var out []rdf.Term
		for _, t := range ds.byPred[tp.Path[0].IRI] {
			if _, ok := seen[t.Subject.Key()]; ok {
				continue
			}
			seen[t.Subject.Key()] = struct{}{}
			out = append(out, t.Subject)
		}
		return out
	}
	// A leading zero-or-more step can start from any term in the graph.
	return ds.allTerms()
}

// pathEnds walks a path sequence forward from start.
func pathEnds(ds *dataset, start rdf.Term, steps []PathStep) []rdf.Term {
	current := map[string]rdf.Term{start.Key(): start}
	for _, step := range steps {
		next := make(map[string]rdf.Term)
		for _, t := range current {
			switch step.Mod {
			case 0:
				for _, tr := range ds.byPred[step.IRI] {
					if tr.Subject.Equal(t) {
						next[tr.Object.Key()] = tr.Object
					}
				}
			case '*':
				for k, v := range closure(ds, t, step.IRI, true) {
					next[k] = v
				}
			case '+':
				for k, v := range closure(ds, t, step.IRI, false) {
					next[k] = v
				}
			}
		}
		current = next
	}

	keys := make([]string, 0, len(current))
	for k := range current {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]rdf.Term, 0, len(keys))
	for _, k := range keys {
		out = append(out, current[k])
	}
	return out
}

// closure computes the set reachable from start via the predicate,
// including start itself when reflexive is true.
func closure(ds *dataset, start rdf.Term, pred string, reflexive bool) map[string]rdf.Term {
	out := make(map[string]rdf.Term)
	if reflexive {
		out[start.Key()] = start
	}
	queue := []rdf.Term{start}
	visited := map[string]struct{}{start.Key(): {}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, tr := range ds.byPred[pred] {
			if !tr.Subject.Equal(cur) {
				continue
			}
			key := tr.Object.Key()
			out[key] = tr.Object
			if _, ok := visited[key]; !ok {
				visited[key] = struct{}{}
				queue = append(queue, tr.Object)
			}
		}
	}
	return out
}

func nodeTerm(n Node) rdf.Term {
	switch n.Kind {
	case NodeIRI:
		return rdf.IRI(n.Value)
	default:
		return rdf.Term{Kind: rdf.TermLiteral, Value: n.Value, Datatype: n.Datatype, Lang: n.Lang}
	}
}

// unifyNode matches a pattern node against a concrete term, returning the
// (possibly extended) solution.
func unifyNode(n Node, term rdf.Term, sol solution) (solution, bool) {
	if n.Kind == NodeVar {
		if bound, ok := sol[n.Value]; ok {
			if bound.Equal(term) {
				return sol, true
			}
			return nil, false
		}
		ext := sol.clone()
		ext[n.Value] = term
		return ext, true
	}
	if nodeTerm(n).Equal(term) {
		return sol, true
	}
	return nil, false
}

// Projection and aggregation.

func project(sel *SelectQuery, sols []solution) ([]BindingRow, []string, error) {
	grouped := sel.HasAggregates() || len(sel.GroupBy) > 0

	var variables []string
	if sel.Star {
		variables = starVariables(sel.Where)
	} else {
		for _, p := range sel.Projections {
			variables = append(variables, p.Name())
		}
	}

	if !grouped {
		rows := make([]BindingRow, 0, len(sols))
		for _, sol := range sols {
			row := BindingRow{}
			if sel.Star {
				for _, v := range variables {
					if term, ok := sol[v]; ok {
						row[v] = termValue(term)
					}
				}
			} else {
				for _, p := range sel.Projections {
					if p.Expr == nil {
						if term, ok := sol[p.Var]; ok {
							row[p.Var] = termValue(term)
						}
						continue
					}
					if term, err := evalExpr(p.Expr, sol); err == nil {
						row[p.Alias] = termValue(term)
					}
				}
			}
			rows = append(rows, row)
		}
		return rows, variables, nil
	}

	if sel.Star {
		return nil, nil, errors.New("SELECT * cannot be combined with aggregation")
	}

	groups := groupSolutions(sel.GroupBy, sols)
	rows := make([]BindingRow, 0, len(groups))
	for _, group := range groups {
		row := BindingRow{}
		for _, p := range sel.Projections {
			if p.Expr == nil {
				// A plain variable in an aggregated query takes its value
				// from the group it identifies.
				if len(group) > 0 {
					if term, ok := group[0][p.Var]; ok {
						row[p.Var] = termValue(term)
					}
				}
				continue
			}
			if agg, ok := p.Expr.(AggExpr); ok {
				if term, ok := evalAggregate(agg, group); ok {
					row[p.Alias] = termValue(term)
				}
				continue
			}
			if len(group) > 0 {
				if term, err := evalExpr(p.Expr, group[0]); err == nil {
					row[p.Alias] = termValue(term)
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, variables, nil
}

// groupSolutions partitions solutions by the GROUP BY keys. With no keys,
// all solutions form a single group, which exists even when empty so that
// aggregates like COUNT still produce a row.
func groupSolutions(keys []string, sols []solution) [][]solution {
	if len(keys) == 0 {
		return [][]solution{sols}
	}
	index := make(map[string]int)
	var groups [][]solution
	for _, sol := range sols {
		var kb strings.Builder
		for _, k := range keys {
			if term, ok := sol[k]; ok {
				kb.WriteString(term.Key())
			}
			kb.WriteByte('|')
		}
		key := kb.String()
		if at, ok := index[key]; ok {
			groups[at] = append(groups[at], sol)
		} else {
			index[key] = len(groups)
			groups = append(groups, []solution{sol})
		}
	}
	return groups
}

func evalAggregate(agg AggExpr, group []solution) (rdf.Term, bool) {
	switch agg.Func {
	case "COUNT":
		n := 0
		if agg.Star {
			if agg.Distinct {
				seen := make(map[string]struct{})
				for _, sol := range group {
					seen[solutionKey(sol)] = struct{}{}
				}
				n = len(seen)
			} else {
				n = len(group)
			}
		} else if agg.Distinct {
			seen := make(map[string]struct{})
			for _, sol := range group {
				if term, ok := sol[agg.Var]; ok {
					seen[term.Key()] = struct{}{}
				}
			}
			n = len(seen)
		} else {
			for _, sol := range group {
				if _, ok := sol[agg.Var]; ok {
					n++
				}
			}
		}
		return rdf.TypedLiteral(strconv.Itoa(n), rdf.XSDInteger), true

	case "SUM", "AVG":
		var sum float64
		count := 0
		seen := make(map[string]struct{})
		for _, sol := range group {
			term, ok := sol[agg.Var]
			if !ok {
				continue
			}
			if agg.Distinct {
				if _, dup := seen[term.Key()]; dup {
					continue
				}
				seen[term.Key()] = struct{}{}
			}
			f, err := strconv.ParseFloat(term.Value, 64)
			if err != nil {
				continue
			}
			sum += f
			count++
		}
		if agg.Func == "SUM" {
			return rdf.TypedLiteral(formatFloat(sum), rdf.XSDDecimal), true
		}
		if count == 0 {
			return rdf.Term{}, false
		}
		return rdf.TypedLiteral(formatFloat(sum/float64(count)), rdf.XSDDecimal), true

	case "MIN", "MAX":
		var best *rdf.Term
		for _, sol := range group {
			term, ok := sol[agg.Var]
			if !ok {
				continue
			}
			t := term
			if best == nil {
				best = &t
				continue
			}
			cmp := compareTermsLoose(t, *best)
			if (agg.Func == "MIN" && cmp < 0) || (agg.Func == "MAX" && cmp > 0) {
				best = &t
			}
		}
		if best == nil {
			return rdf.Term{}, false
		}
		return *best, true
	}
	return rdf.Term{}, false
}

func compareTermsLoose(a, b rdf.Term) int {
	fa, errA := strconv.ParseFloat(a.Value, 64)
	fb, errB := strconv.ParseFloat(b.Value, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a.Value, b.Value)
}

func solutionKey(sol solution) string {
	keys := make([]string, 0, len(sol))
	for k := range sol {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(sol[k].Key())
		sb.WriteByte('|')
	}
	return sb.String()
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	return s
}

func starVariables(g *GroupPattern) []string {
	var order []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		order = append(order, name)
	}
	var walk func(*GroupPattern)
	walk = func(g *GroupPattern) {
		for _, tp := range g.Patterns {
			if tp.Subject.Kind == NodeVar {
				add(tp.Subject.Value)
			}
			add(tp.PredVar)
			if tp.Object.Kind == NodeVar {
				add(tp.Object.Value)
			}
		}
		for _, opt := range g.Optionals {
			walk(opt)
		}
		for _, b := range g.Binds {
			add(b.Var)
		}
	}
	walk(g)
	return order
}

func termValue(t rdf.Term) BindingValue {
	switch t.Kind {
	case rdf.TermIRI:
		return BindingValue{Type: "uri", Value: t.Value}
	case rdf.TermBlank:
		return BindingValue{Type: "bnode", Value: t.Value}
	default:
		return BindingValue{Type: "literal", Value: t.Value, Datatype: t.Datatype, Lang: t.Lang}
	}
}

func orderRows(rows []BindingRow, keys []OrderKey) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			a, aok := rows[i][k.Var]
			b, bok := rows[j][k.Var]
			if !aok && !bok {
				continue
			}
			// Unbound sorts first, as rdflib does.
			if !aok {
				return !k.Desc
			}
			if !bok {
				return k.Desc
			}
			cmp := compareBindingValues(a, b)
			if cmp == 0 {
				continue
			}
			if k.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareBindingValues(a, b BindingValue) int {
	fa, errA := strconv.ParseFloat(a.Value, 64)
	fb, errB := strconv.ParseFloat(b.Value, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a.Value, b.Value)
}

func distinctRows(rows []BindingRow, variables []string) []BindingRow {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0]
	for _, row := range rows {
		var sb strings.Builder
		for _, v := range variables {
			if bv, ok := row[v]; ok {
				fmt.Fprintf(&sb, "%s\x00%s\x00%s\x00%s", bv.Type, bv.Value, bv.Datatype, bv.Lang)
			}
			sb.WriteByte('\x01')
		}
		key := sb.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out
}
