package sparql

import (
	"errors"
	"fmt"
	"time"
)

// BindingValue is a bound value in a query result, mirroring the SPARQL
// JSON results vocabulary (type is "uri", "literal" or "bnode").
type BindingValue struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"lang,omitempty"`
}

// BindingRow maps variable names to bound values. Unbound variables are
// absent from the map, never present with a placeholder.
type BindingRow map[string]BindingValue

// QueryResult is the outcome of a SELECT query execution.
type QueryResult struct {
	Variables []string      `json:"variables"`
	Bindings  []BindingRow  `json:"bindings"`
	Duration  time.Duration `json:"duration"`
}

// ParseError is raised for syntactically invalid queries. The execution
// controller distinguishes it from empty-but-valid results.
type ParseError struct {
	Msg string
	Pos int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("SPARQL syntax error at offset %d: %s", e.Pos, e.Msg)
}

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
