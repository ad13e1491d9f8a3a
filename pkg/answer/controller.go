// Package answer runs executable queries and recovers from the predictable
// classes of "technically valid but returns nothing" failure that loosely
// generated queries produce.
package answer

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/smart-mobility/smartcity-go/pkg/metrics"
	"github.com/smart-mobility/smartcity-go/pkg/rdf"
	"github.com/smart-mobility/smartcity-go/pkg/rewrite"
	"github.com/smart-mobility/smartcity-go/pkg/sparql"
)

// Status classifies how an outcome was obtained.
type Status string

const (
	// StatusOk means the query executed and returned results directly.
	StatusOk Status = "ok"
	// StatusDegraded means results (or an empty-but-valid answer) were
	// obtained only through a fallback path.
	StatusDegraded Status = "degraded"
	// StatusFailed means every attempt errored.
	StatusFailed Status = "failed"
)

// DiagnosticSuggestion is a predicate-usage hint surfaced when a query
// returns no results.
type DiagnosticSuggestion struct {
	Predicate string `json:"predicate"`
	Count     int    `json:"count"`
}

// Outcome is the structured result of running a query through the
// fallback chain.
type Outcome struct {
	Status        Status
	ExecutedQuery string
	Results       []NormalizedRecord
	Raw           *sparql.QueryResult
	Empty         bool
	Suggestions   []DiagnosticSuggestion
	Reason        string
	Err           error
}

// Count returns the number of normalized result records.
func (o Outcome) Count() int { return len(o.Results) }

// Controller orchestrates execution, empty-result detection, fallback
// retries and diagnostics.
type Controller struct {
	store      *rdf.Store
	engine     *sparql.Evaluator
	rewriter   *rewrite.Rewriter
	normalizer *Normalizer
	logger     *zap.Logger
}

// NewController wires a controller over a shared store.
func NewController(store *rdf.Store, rewriter *rewrite.Rewriter, normalizer *Normalizer, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:      store,
		engine:     sparql.NewEvaluator(store),
		rewriter:   rewriter,
		normalizer: normalizer,
		logger:     logger,
	}
}

type attempt struct {
	text    string
	raw     *sparql.QueryResult
	records []NormalizedRecord
	empty   bool
	err     error
}

func (c *Controller) execute(text string) attempt {
	a := attempt{text: text}
	a.raw, a.err = c.engine.Query(text)
	if a.err != nil {
		a.empty = true
		return a
	}
	a.records = c.normalizer.NormalizeRows(a.raw.Bindings)
	a.empty = classifyEmpty(a.raw)
	return a
}

// Run executes the query and walks the fallback chain in fixed order,
// stopping at the first attempt that yields a non-empty result. When every
// attempt is exhausted, the last executed variant and its empty result are
// returned; if the first attempt errored and nothing recovered, that first
// error is what propagates.
func (c *Controller) Run(exec rewrite.ExecutableQuery) Outcome {
	first := c.execute(exec.Text)
	if first.err == nil && !first.empty {
		return Outcome{
			Status:        StatusOk,
			ExecutedQuery: first.text,
			Results:       first.records,
			Raw:           first.raw,
		}
	}
	if first.err != nil {
		c.logger.Warn("first query attempt failed", zap.Error(first.err))
	}

	last := first

	// Forced subclass retry: the standard rewrite only fires on type tokens
	// its scan recognized; retry with every type check widened.
	if rewrite.HasPlainTypeCheck(last.text) {
		if forced, changed := c.rewriter.ForceSubclassRewrite(last.text); changed {
			metrics.FallbacksTotal.WithLabelValues("subclass-retry").Inc()
			a := c.execute(forced)
			if a.err == nil && !a.empty {
				return Outcome{
					Status:        StatusDegraded,
					ExecutedQuery: a.text,
					Results:       a.records,
					Raw:           a.raw,
					Reason:        "subclass-aware retry",
				}
			}
			if a.err == nil {
				last = a
			}
		}
	}

	// Best-effort predicate diagnostics for the first referenced class.
	var suggestions []DiagnosticSuggestion
	for _, class := range rewrite.ReferencedClasses(last.text, c.store) {
		suggestions = c.predicateUsage(class)
		if suggestions != nil {
			break
		}
	}

	// String-form date comparison retry, compensating for the store's mixed
	// xsd:date and xsd:dateTime literal typing.
	if rewrite.HasTypedDateComparison(last.text) {
		if rewritten, changed := rewrite.RewriteDateComparisons(last.text); changed {
			metrics.FallbacksTotal.WithLabelValues("date-comparison-retry").Inc()
			a := c.execute(rewritten)
			if a.err == nil && !a.empty {
				// Diagnostics accompany empty results only; a recovered
				// attempt drops them.
				return Outcome{
					Status:        StatusDegraded,
					ExecutedQuery: a.text,
					Results:       a.records,
					Raw:           a.raw,
					Reason:        "string-form date comparison retry",
				}
			}
			if a.err == nil {
				last = a
			}
		}
	}

	if last.err != nil {
		// Every variant errored; surface the first attempt's message.
		return Outcome{
			Status:        StatusFailed,
			ExecutedQuery: first.text,
			Empty:         true,
			Err:           fmt.Errorf("query execution failed: %w", first.err),
			Suggestions:   suggestions,
		}
	}

	status := StatusOk
	reason := ""
	if last.text != first.text || first.err != nil {
		status = StatusDegraded
		reason = "all fallback attempts empty"
	}
	return Outcome{
		Status:        status,
		ExecutedQuery: last.text,
		Results:       last.records,
		Raw:           last.raw,
		Empty:         true,
		Suggestions:   suggestions,
		Reason:        reason,
	}
}

// classifyEmpty treats as empty both a zero-row result and the common case
// of a single aggregate row whose bound values are all numerically zero.
// A single all-zero row can in principle be legitimate data, which callers
// accept as the cost of useful "no results" messaging.
func classifyEmpty(res *sparql.QueryResult) bool {
	if len(res.Bindings) == 0 {
		return true
	}
	if len(res.Bindings) != 1 {
		return false
	}
	row := res.Bindings[0]
	if len(row) == 0 {
		return true
	}
	for _, bv := range row {
		f, err := strconv.ParseFloat(bv.Value, 64)
		if err != nil || f != 0 {
			return false
		}
	}
	return true
}

// predicateUsage lists the most used predicates across instances of the
// class, capped at 20. It is strictly best-effort: any failure yields nil
// and is never surfaced to the caller.
func (c *Controller) predicateUsage(class string) []DiagnosticSuggestion {
	query := fmt.Sprintf(`SELECT ?p (COUNT(DISTINCT ?s) AS ?usage) WHERE {
		?s <%s>/<%s>* <%s> .
		?s ?p ?o .
	} GROUP BY ?p ORDER BY DESC(?usage) LIMIT 20`, rdf.RDFType, rdf.RDFSSubClass, class)

	res, err := c.engine.Query(query)
	if err != nil {
		c.logger.Debug("predicate diagnostic failed", zap.String("class", class), zap.Error(err))
		return nil
	}
	var out []DiagnosticSuggestion
	for _, row := range res.Bindings {
		pred, ok := row["p"]
		if !ok {
			continue
		}
		count, _ := strconv.Atoi(row["usage"].Value)
		out = append(out, DiagnosticSuggestion{Predicate: pred.Value, Count: count})
	}
	return out
}
