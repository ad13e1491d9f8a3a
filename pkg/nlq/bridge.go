// Package nlq bridges natural-language questions to SPARQL execution. A
// question either matches a recognized intent and is answered through a
// hand-built query, or is translated by the generative model and pushed
// through the rewrite and fallback pipeline.
package nlq

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smart-mobility/smartcity-go/pkg/ai"
	"github.com/smart-mobility/smartcity-go/pkg/answer"
	"github.com/smart-mobility/smartcity-go/pkg/metrics"
	"github.com/smart-mobility/smartcity-go/pkg/rdf"
	"github.com/smart-mobility/smartcity-go/pkg/rewrite"
	"github.com/smart-mobility/smartcity-go/pkg/smartcity"
	"github.com/smart-mobility/smartcity-go/pkg/sparql"
)

// Fallback strings used when the secondary explanation call degrades.
const (
	fallbackExplanation = "Impossible de générer des insights pour le moment."
	fallbackTitle       = "Résultats de la requête SPARQL"
	emptyMessage        = "Aucun résultat trouvé pour cette question."
)

// Answer is the structured response to a natural-language question.
type Answer struct {
	Question       string                        `json:"question"`
	GeneratedQuery string                        `json:"generatedQuery"`
	ExecutedQuery  string                        `json:"executedQuery"`
	Results        []answer.NormalizedRecord     `json:"results"`
	Count          int                           `json:"count"`
	Explanation    string                        `json:"explanation"`
	UserMessage    string                        `json:"userMessage"`
	Suggestions    []answer.DiagnosticSuggestion `json:"suggestions,omitempty"`
	Status         answer.Status                 `json:"status"`
	Provenance     rewrite.Provenance            `json:"provenance"`
}

// Bridge wires the intent matcher, the model client and the execution
// pipeline together.
type Bridge struct {
	store      *rdf.Store
	engine     *sparql.Evaluator
	model      ai.Client
	rewriter   *rewrite.Rewriter
	controller *answer.Controller
	logger     *zap.Logger
	now        func() time.Time
}

// NewBridge creates a bridge. A nil logger disables logging.
func NewBridge(store *rdf.Store, model ai.Client, rewriter *rewrite.Rewriter, controller *answer.Controller, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		store:      store,
		engine:     sparql.NewEvaluator(store),
		model:      model,
		rewriter:   rewriter,
		controller: controller,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source for the date-window computation.
func (b *Bridge) WithClock(now func() time.Time) *Bridge {
	b.now = now
	return b
}

// Ask answers a natural-language question. A non-nil error means no
// usable answer could be produced at all; degraded paths (empty results,
// missing explanation) come back as a populated Answer instead.
func (b *Bridge) Ask(ctx context.Context, question string) (*Answer, error) {
	intent := MatchIntent(question)
	if intent.Kind == IntentAverageSeverity {
		return b.averageSeverity(ctx, question, intent.Days)
	}
	return b.generate(ctx, question)
}

// averageSeverity answers the recognized aggregate intent with a
// type-robust query: raw events filtered by lexical string date comparison,
// averaged in code over the rows whose severity coerces to a number.
func (b *Bridge) averageSeverity(ctx context.Context, question string, days int) (*Answer, error) {
	cutoff := b.now().AddDate(0, 0, -days).Format("2006-01-02")
	query := fmt.Sprintf(`SELECT ?event ?date ?gravite WHERE {
	?event <%s>/<%s>* <%s> .
	?event <%s> ?date .
	?event <%s> ?gravite .
	FILTER(STR(?date) >= %q)
}`, rdf.RDFType, rdf.RDFSSubClass, smartcity.ClassEvenement,
		smartcity.PropDateEvenement, smartcity.PropGravite, cutoff)

	res, err := b.engine.Query(query)
	if err != nil {
		return nil, fmt.Errorf("severity query failed: %w", err)
	}

	var sum float64
	numeric := 0
	rawValues := make(map[string]struct{})
	for _, row := range res.Bindings {
		g, ok := row["gravite"]
		if !ok {
			continue
		}
		rawValues[g.Value] = struct{}{}
		if f, err := strconv.ParseFloat(g.Value, 64); err == nil {
			sum += f
			numeric++
		}
	}

	ans := &Answer{
		Question:       question,
		GeneratedQuery: query,
		ExecutedQuery:  query,
		Count:          len(res.Bindings),
		Status:         answer.StatusOk,
		Provenance:     rewrite.ProvenanceBypass,
	}

	switch {
	case len(res.Bindings) == 0:
		ans.UserMessage = emptyMessage
		ans.Explanation = fmt.Sprintf("Aucun événement de circulation sur les %d derniers jours.", days)
	case numeric == 0:
		// Events matched the window but none carries a numeric severity;
		// surface the distinct raw values so the caller sees why the
		// average is undefined.
		values := make([]string, 0, len(rawValues))
		for v := range rawValues {
			values = append(values, v)
		}
		sort.Strings(values)
		ans.Status = answer.StatusDegraded
		ans.UserMessage = fmt.Sprintf("Moyenne indéfinie: aucune gravité numérique. Valeurs rencontrées: %s", strings.Join(values, ", "))
		ans.Results = []answer.NormalizedRecord{{
			"nombreEvenements": strconv.Itoa(len(res.Bindings)),
			"periodeJours":     strconv.Itoa(days),
			"valeursGravite":   strings.Join(values, ", "),
		}}
	default:
		avg := sum / float64(numeric)
		ans.Results = []answer.NormalizedRecord{{
			"moyenneGravite":   strconv.FormatFloat(avg, 'f', -1, 64),
			"nombreEvenements": strconv.Itoa(len(res.Bindings)),
			"periodeJours":     strconv.Itoa(days),
		}}
		ans.UserMessage = fmt.Sprintf("Gravité moyenne de %.1f sur %d événements (%d derniers jours).", avg, len(res.Bindings), days)
		ans.Explanation = b.explain(ctx, question, ans.Results)
	}
	return ans, nil
}

// generate obtains a candidate query from the model and runs it through
// the rewrite and fallback pipeline.
func (b *Bridge) generate(ctx context.Context, question string) (*Answer, error) {
	raw, err := b.model.CompleteSimple(ctx, buildQueryPrompt(question))
	if err != nil {
		metrics.ModelCallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	metrics.ModelCallsTotal.WithLabelValues("ok").Inc()

	candidate := StripFences(raw)
	if !LooksLikeQuery(candidate) {
		return nil, fmt.Errorf("model did not return a usable query")
	}

	exec := b.rewriter.Rewrite(rewrite.CandidateQuery{
		Text:       candidate,
		Provenance: rewrite.ProvenanceModel,
	})
	outcome := b.controller.Run(exec)

	ans := &Answer{
		Question:       question,
		GeneratedQuery: candidate,
		ExecutedQuery:  outcome.ExecutedQuery,
		Results:        outcome.Results,
		Count:          outcome.Count(),
		Suggestions:    outcome.Suggestions,
		Status:         outcome.Status,
		Provenance:     rewrite.ProvenanceModel,
	}

	if outcome.Status == answer.StatusFailed {
		ans.UserMessage = "La requête générée n'a pas pu être exécutée."
		if outcome.Err != nil {
			return ans, outcome.Err
		}
		return ans, fmt.Errorf("query execution failed")
	}

	if outcome.Empty {
		ans.UserMessage = emptyMessage
		ans.Explanation = fallbackExplanation
		return ans, nil
	}

	ans.UserMessage = fallbackTitle
	ans.Explanation = b.explain(ctx, question, outcome.Results)
	return ans, nil
}

// Suggestions asks the model for example questions a user might pose.
func (b *Bridge) Suggestions(ctx context.Context) (string, error) {
	prompt := "Tu assistes les utilisateurs d'une application de mobilité urbaine.\n" +
		"Propose 3 questions utiles qu'un utilisateur pourrait poser sur les données\n" +
		"(transports, stations, événements de circulation, zones). Une question par ligne."
	text, err := b.model.CompleteSimple(ctx, prompt)
	if err != nil {
		metrics.ModelCallsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("suggestion call failed: %w", err)
	}
	metrics.ModelCallsTotal.WithLabelValues("ok").Inc()
	return strings.TrimSpace(text), nil
}

// Insights summarizes the given data summary into a few observations. It
// degrades to the static fallback sentence instead of failing.
func (b *Bridge) Insights(ctx context.Context, dataSummary string) string {
	prompt := fmt.Sprintf("Résumé des données de mobilité urbaine:\n%s\n\n"+
		"Donne 2 ou 3 observations concrètes sur la situation de mobilité. "+
		"Réponds en français, de façon concise et professionnelle.", dataSummary)
	text, err := b.model.CompleteSimple(ctx, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		metrics.ModelCallsTotal.WithLabelValues("error").Inc()
		b.logger.Debug("insights call degraded", zap.Error(err))
		return fallbackExplanation
	}
	metrics.ModelCallsTotal.WithLabelValues("ok").Inc()
	return strings.TrimSpace(text)
}

// RelatedQueries suggests follow-up queries for the one just executed.
// The model separates queries with "---"; failures yield an empty list.
func (b *Bridge) RelatedQueries(ctx context.Context, currentQuery string) []string {
	prompt := fmt.Sprintf("Un utilisateur vient d'exécuter cette requête SPARQL:\n%s\n\n"+
		"Schéma de l'ontologie:\n%s\n"+
		"Propose 2 requêtes SPARQL de suivi pertinentes, séparées par \"---\".",
		currentQuery, smartcity.SchemaDescription())
	text, err := b.model.CompleteSimple(ctx, prompt)
	if err != nil {
		metrics.ModelCallsTotal.WithLabelValues("error").Inc()
		b.logger.Debug("related-query call degraded", zap.Error(err))
		return nil
	}
	metrics.ModelCallsTotal.WithLabelValues("ok").Inc()
	var out []string
	for _, part := range strings.Split(text, "---") {
		if q := StripFences(part); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// explain requests a natural-language summary of the results. It is a
// best-effort secondary call: any failure degrades to the static fallback
// sentence and never blocks the primary response.
func (b *Bridge) explain(ctx context.Context, question string, results []answer.NormalizedRecord) string {
	text, err := b.model.CompleteSimple(ctx, buildExplanationPrompt(question, results))
	if err != nil || strings.TrimSpace(text) == "" {
		metrics.ModelCallsTotal.WithLabelValues("error").Inc()
		b.logger.Debug("explanation call degraded", zap.Error(err))
		return fallbackExplanation
	}
	metrics.ModelCallsTotal.WithLabelValues("ok").Inc()
	return strings.TrimSpace(text)
}

func buildQueryPrompt(question string) string {
	var sb strings.Builder
	sb.WriteString("Tu es un expert SPARQL pour une ontologie de mobilité urbaine.\n")
	sb.WriteString("Schéma de l'ontologie:\n\n")
	sb.WriteString(smartcity.SchemaDescription())
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nGénère UNIQUEMENT la requête SPARQL SELECT correspondante, ")
	sb.WriteString("sans explication ni formatage markdown. ")
	sb.WriteString("Utilise les préfixes smartcity: et ont: déclarés ci-dessus.")
	return sb.String()
}

const maxExplainedRows = 10

func buildExplanationPrompt(question string, results []answer.NormalizedRecord) string {
	var sb strings.Builder
	sb.WriteString("Question posée: ")
	sb.WriteString(question)
	sb.WriteString("\nRésultats obtenus:\n")
	for i, rec := range results {
		if i >= maxExplainedRows {
			fmt.Fprintf(&sb, "... et %d autres lignes\n", len(results)-maxExplainedRows)
			break
		}
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s", k, rec[k])
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nRédige une courte explication en français de ces résultats (2 phrases maximum).")
	return sb.String()
}

// queryKeywords are the query-form keywords accepted by the minimal
// "does this look like a query" validation.
var queryKeywords = []string{"SELECT", "ASK", "CONSTRUCT", "DESCRIBE"}

// LooksLikeQuery reports whether the text contains at least one
// recognizable query-form keyword.
func LooksLikeQuery(text string) bool {
	upper := strings.ToUpper(text)
	for _, kw := range queryKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

// StripFences removes markdown code fences the model tends to wrap
// queries in, including a language tag on the opening fence.
func StripFences(text string) string {
	out := strings.TrimSpace(text)
	if !strings.HasPrefix(out, "```") {
		return out
	}
	out = strings.TrimPrefix(out, "```")
	if idx := strings.Index(out, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(out[:idx])
		if firstLine == "" || strings.EqualFold(firstLine, "sparql") || strings.EqualFold(firstLine, "sql") {
			out = out[idx+1:]
		}
	}
	out = strings.TrimSuffix(strings.TrimSpace(out), "```")
	return strings.TrimSpace(out)
}
