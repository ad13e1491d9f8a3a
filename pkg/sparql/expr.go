package sparql

import (
	"errors"
	"strconv"
	"strings"

	"github.com/smart-mobility/smartcity-go/pkg/rdf"
)

var (
	errUnbound      = errors.New("unbound variable")
	errTypeMismatch = errors.New("incomparable operand types")
	errNotBoolean   = errors.New("no effective boolean value")
)

var trueTerm = rdf.TypedLiteral("true", rdf.XSDBoolean)
var falseTerm = rdf.TypedLiteral("false", rdf.XSDBoolean)

func boolTerm(b bool) rdf.Term {
	if b {
		return trueTerm
	}
	return falseTerm
}

// evalExpr evaluates an expression against a single solution. Errors follow
// SPARQL semantics: in a FILTER they make the row fail, in a BIND or
// projection they leave the target variable unbound.
func evalExpr(e Expr, sol solution) (rdf.Term, error) {
	switch v := e.(type) {
	case VarExpr:
		term, ok := sol[v.Name]
		if !ok {
			return rdf.Term{}, errUnbound
		}
		return term, nil

	case LiteralExpr:
		return rdf.Term{Kind: rdf.TermLiteral, Value: v.Value, Datatype: v.Datatype, Lang: v.Lang}, nil

	case IRIExpr:
		return rdf.IRI(v.Value), nil

	case UnaryExpr:
		inner, err := evalExpr(v.X, sol)
		if err != nil {
			return rdf.Term{}, err
		}
		b, err := ebvErr(inner)
		if err != nil {
			return rdf.Term{}, err
		}
		return boolTerm(!b), nil

	case BinaryExpr:
		return evalBinary(v, sol)

	case CallExpr:
		return evalCall(v, sol)

	case AggExpr:
		return rdf.Term{}, errors.New("aggregate outside grouping context")
	}
	return rdf.Term{}, errors.New("unsupported expression")
}

func evalBinary(e BinaryExpr, sol solution) (rdf.Term, error) {
	switch e.Op {
	case "||":
		// Logical-or tolerates one erroring side when the other is true.
		lt, lerr := evalExpr(e.Left, sol)
		rt, rerr := evalExpr(e.Right, sol)
		lb, lbe := false, lerr
		if lerr == nil {
			lb, lbe = ebvBool(lt)
		}
		rb, rbe := false, rerr
		if rerr == nil {
			rb, rbe = ebvBool(rt)
		}
		if lbe == nil && lb || rbe == nil && rb {
			return trueTerm, nil
		}
		if lbe != nil {
			return rdf.Term{}, lbe
		}
		if rbe != nil {
			return rdf.Term{}, rbe
		}
		return falseTerm, nil

	case "&&":
		lt, err := evalExpr(e.Left, sol)
		if err != nil {
			return rdf.Term{}, err
		}
		lb, err := ebvBool(lt)
		if err != nil {
			return rdf.Term{}, err
		}
		if !lb {
			return falseTerm, nil
		}
		rt, err := evalExpr(e.Right, sol)
		if err != nil {
			return rdf.Term{}, err
		}
		rb, err := ebvBool(rt)
		if err != nil {
			return rdf.Term{}, err
		}
		return boolTerm(rb), nil
	}

	lt, err := evalExpr(e.Left, sol)
	if err != nil {
		return rdf.Term{}, err
	}
	rt, err := evalExpr(e.Right, sol)
	if err != nil {
		return rdf.Term{}, err
	}
	return compareTerms(e.Op, lt, rt)
}

var numericDatatypes = map[string]bool{
	rdf.XSDInteger: true,
	rdf.XSDDecimal: true,
	rdf.XSDDouble:  true,
	rdf.XSDFloat:   true,
}

// compareTerms applies a comparison operator. Literals whose datatypes
// differ and are not both numeric do not compare; the resulting error
// drops the row in FILTER context. Date and dateTime literals therefore
// never compare against each other, which is what makes string-form
// comparison retries worthwhile.
func compareTerms(op string, a, b rdf.Term) (rdf.Term, error) {
	if a.Kind == rdf.TermIRI || b.Kind == rdf.TermIRI {
		if a.Kind != b.Kind {
			return rdf.Term{}, errTypeMismatch
		}
		switch op {
		case "=":
			return boolTerm(a.Value == b.Value), nil
		case "!=":
			return boolTerm(a.Value != b.Value), nil
		}
		return rdf.Term{}, errTypeMismatch
	}

	aNum := numericDatatypes[a.Datatype]
	bNum := numericDatatypes[b.Datatype]
	if aNum || bNum {
		fa, errA := strconv.ParseFloat(a.Value, 64)
		fb, errB := strconv.ParseFloat(b.Value, 64)
		if errA != nil || errB != nil {
			return rdf.Term{}, errTypeMismatch
		}
		return boolCompare(op, compareFloats(fa, fb))
	}

	da := a.Datatype
	if da == rdf.XSDString {
		da = ""
	}
	db := b.Datatype
	if db == rdf.XSDString {
		db = ""
	}
	if da != db {
		return rdf.Term{}, errTypeMismatch
	}
	return boolCompare(op, strings.Compare(a.Value, b.Value))
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func boolCompare(op string, cmp int) (rdf.Term, error) {
	switch op {
	case "=":
		return boolTerm(cmp == 0), nil
	case "!=":
		return boolTerm(cmp != 0), nil
	case "<":
		return boolTerm(cmp < 0), nil
	case "<=":
		return boolTerm(cmp <= 0), nil
	case ">":
		return boolTerm(cmp > 0), nil
	case ">=":
		return boolTerm(cmp >= 0), nil
	}
	return rdf.Term{}, errors.New("unsupported operator " + op)
}

func evalCall(e CallExpr, sol solution) (rdf.Term, error) {
	if e.Name == "BOUND" {
		v, ok := e.Args[0].(VarExpr)
		if !ok {
			return rdf.Term{}, errors.New("BOUND requires a variable argument")
		}
		_, bound := sol[v.Name]
		return boolTerm(bound), nil
	}

	args := make([]rdf.Term, len(e.Args))
	for i, a := range e.Args {
		t, err := evalExpr(a, sol)
		if err != nil {
			return rdf.Term{}, err
		}
		args[i] = t
	}

	switch e.Name {
	case "STR":
		return rdf.Literal(args[0].Value), nil
	case "STRAFTER":
		idx := strings.Index(args[0].Value, args[1].Value)
		if idx < 0 {
			return rdf.Literal(""), nil
		}
		return rdf.Literal(args[0].Value[idx+len(args[1].Value):]), nil
	case "STRBEFORE":
		idx := strings.Index(args[0].Value, args[1].Value)
		if idx < 0 {
			return rdf.Literal(""), nil
		}
		return rdf.Literal(args[0].Value[:idx]), nil
	case "CONTAINS":
		return boolTerm(strings.Contains(args[0].Value, args[1].Value)), nil
	case "LCASE":
		return rdf.Literal(strings.ToLower(args[0].Value)), nil
	case "UCASE":
		return rdf.Literal(strings.ToUpper(args[0].Value)), nil
	case "DATATYPE":
		if args[0].Kind != rdf.TermLiteral {
			return rdf.Term{}, errors.New("DATATYPE of a non-literal")
		}
		dt := args[0].Datatype
		if dt == "" {
			dt = rdf.XSDString
		}
		return rdf.IRI(dt), nil
	}
	return rdf.Term{}, errors.New("unsupported function " + e.Name)
}

// ebv computes the effective boolean value, treating errors as false.
func ebv(t rdf.Term) bool {
	b, err := ebvBool(t)
	return err == nil && b
}

func ebvErr(t rdf.Term) (bool, error) {
	return ebvBool(t)
}

func ebvBool(t rdf.Term) (bool, error) {
	if t.Kind != rdf.TermLiteral {
		return false, errNotBoolean
	}
	switch {
	case t.Datatype == rdf.XSDBoolean:
		return t.Value == "true" || t.Value == "1", nil
	case numericDatatypes[t.Datatype]:
		f, err := strconv.ParseFloat(t.Value, 64)
		if err != nil {
			return false, errNotBoolean
		}
		return f != 0, nil
	case t.Datatype == "" || t.Datatype == rdf.XSDString:
		return t.Value != "", nil
	}
	return false, errNotBoolean
}
