package sparql

// Query is the parsed form of a SELECT query in the supported subset.
type Query struct {
	Prefixes map[string]string
	Select   *SelectQuery
}

// SelectQuery carries projections, the graph pattern and solution
// modifiers.
type SelectQuery struct {
	Distinct    bool
	Star        bool
	Projections []Projection
	Where       *GroupPattern
	GroupBy     []string
	OrderBy     []OrderKey
	Limit       int
	Offset      int
}

// Projection is either a plain variable or an (EXPR AS ?alias) form.
type Projection struct {
	Var   string // plain variable projection
	Expr  Expr   // non-nil for expression projections
	Alias string
}

// Name returns the output column name of the projection.
func (p Projection) Name() string {
	if p.Expr != nil {
		return p.Alias
	}
	return p.Var
}

// GroupPattern is a basic graph pattern with its attached OPTIONAL blocks,
// FILTER expressions and BIND clauses.
type GroupPattern struct {
	Patterns  []TriplePattern
	Optionals []*GroupPattern
	Filters   []Expr
	Binds     []BindClause
}

// BindClause is a BIND(expr AS ?var) clause.
type BindClause struct {
	Expr Expr
	Var  string
}

// NodeKind distinguishes pattern node kinds.
type NodeKind int

const (
	NodeVar NodeKind = iota
	NodeIRI
	NodeLiteral
)

// Node is a subject or object position in a triple pattern.
type Node struct {
	Kind     NodeKind
	Value    string
	Datatype string
	Lang     string
}

// PathStep is one element of a property-path sequence; Mod is 0 for a
// plain step, '*' for zero-or-more and '+' for one-or-more.
type PathStep struct {
	IRI string
	Mod byte
}

// TriplePattern matches subject and object across a predicate path. A path
// of one unmodified step is an ordinary triple pattern. PredVar is set
// instead of Path when the predicate position is a variable.
type TriplePattern struct {
	Subject Node
	Path    []PathStep
	PredVar string
	Object  Node
}

// OrderKey is one ORDER BY sort key.
type OrderKey struct {
	Var  string
	Desc bool
}

// Expr is a filter/bind/projection expression.
type Expr interface{ isExpr() }

// VarExpr references a variable.
type VarExpr struct{ Name string }

// LiteralExpr is a constant literal.
type LiteralExpr struct {
	Value    string
	Datatype string
	Lang     string
}

// IRIExpr is a constant IRI.
type IRIExpr struct{ Value string }

// BinaryExpr applies a binary operator: || && = != < <= > >=.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

// UnaryExpr applies a unary operator (only '!').
type UnaryExpr struct {
	Op string
	X  Expr
}

// CallExpr is a builtin function call (STR, STRAFTER, CONTAINS, LCASE,
// UCASE, DATATYPE, BOUND).
type CallExpr struct {
	Name string
	Args []Expr
}

// AggExpr is an aggregate: COUNT (optionally DISTINCT, optionally *),
// SUM, AVG, MIN or MAX over a variable.
type AggExpr struct {
	Func     string
	Distinct bool
	Star     bool
	Var      string
}

func (VarExpr) isExpr()     {}
func (LiteralExpr) isExpr() {}
func (IRIExpr) isExpr()     {}
func (BinaryExpr) isExpr()  {}
func (UnaryExpr) isExpr()   {}
func (CallExpr) isExpr()    {}
func (AggExpr) isExpr()     {}

// HasAggregates reports whether any projection carries an aggregate.
func (s *SelectQuery) HasAggregates() bool {
	for _, p := range s.Projections {
		if p.Expr != nil && containsAggregate(p.Expr) {
			return true
		}
	}
	return false
}

func containsAggregate(e Expr) bool {
	switch v := e.(type) {
	case AggExpr:
		return true
	case BinaryExpr:
		return containsAggregate(v.Left) || containsAggregate(v.Right)
	case UnaryExpr:
		return containsAggregate(v.X)
	case CallExpr:
		for _, a := range v.Args {
			if containsAggregate(a) {
				return true
			}
		}
	}
	return false
}
