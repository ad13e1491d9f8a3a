package nlq

import (
	"regexp"
	"strconv"
	"strings"
)

// IntentKind tags how a question will be answered.
type IntentKind int

const (
	// IntentGenerate sends the question to the generative model.
	IntentGenerate IntentKind = iota
	// IntentAverageSeverity answers via the hand-built type-robust query,
	// bypassing the model's known comparison-operator mismatches.
	IntentAverageSeverity
)

// Intent is the matched variant with its parameters.
type Intent struct {
	Kind IntentKind
	Days int
}

// defaultWindowDays is used when the question names no period.
const defaultWindowDays = 30

var (
	averageWords  = []string{"moyenne", "moyen", "average", "avg"}
	severityWords = []string{"gravité", "gravite", "severity", "sévérité", "severite"}

	daysPattern = regexp.MustCompile(`(\d+)\s*(?:derniers?\s+)?jours?|last\s+(\d+)\s+days?|(\d+)\s+days?`)
)

// MatchIntent classifies a question against the recognized high-value
// patterns. The rules are deliberately explicit rather than scattered
// substring checks so they stay testable.
func MatchIntent(question string) Intent {
	q := strings.ToLower(question)

	if containsAny(q, averageWords) && containsAny(q, severityWords) {
		return Intent{Kind: IntentAverageSeverity, Days: extractDays(q)}
	}
	return Intent{Kind: IntentGenerate}
}

func containsAny(q string, words []string) bool {
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

func extractDays(q string) int {
	m := daysPattern.FindStringSubmatch(q)
	if m == nil {
		return defaultWindowDays
	}
	for _, g := range m[1:] {
		if g == "" {
			continue
		}
		if n, err := strconv.Atoi(g); err == nil && n > 0 {
			return n
		}
	}
	return defaultWindowDays
}
