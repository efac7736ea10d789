package expr

import (
	"fmt"
	"regexp"
	"strings"

	"cbird/pkg/media"
)

// Node is one closure-tree node: a leaf comparison or a boolean
// combinator, matching the design note's "parse once into a closure
// tree whose leaves are property extractors and whose internal nodes
// are AND/OR/UNARY/BINARY combinators" (spec §9).
type Node func(m media.Media) bool

// compileFunc builds the leaf comparison node for one `prop OP value`
// clause.
type compileFunc func(path Path, rhs string) (Node, error)

var comparators = map[string]compileFunc{
	"==": func(p Path, rhs string) (Node, error) {
		return func(m media.Media) bool { return p.Eval(m).asString() == rhs }, nil
	},
	"!=": func(p Path, rhs string) (Node, error) {
		return func(m media.Media) bool { return p.Eval(m).asString() != rhs }, nil
	},
	"<": func(p Path, rhs string) (Node, error) { return numericCompare(p, rhs, func(a, b float64) bool { return a < b }) },
	"<=": func(p Path, rhs string) (Node, error) {
		return numericCompare(p, rhs, func(a, b float64) bool { return a <= b })
	},
	">": func(p Path, rhs string) (Node, error) { return numericCompare(p, rhs, func(a, b float64) bool { return a > b }) },
	">=": func(p Path, rhs string) (Node, error) {
		return numericCompare(p, rhs, func(a, b float64) bool { return a >= b })
	},
	"~": func(p Path, rhs string) (Node, error) {
		return func(m media.Media) bool { return strings.Contains(p.Eval(m).asString(), rhs) }, nil
	},
	":regex": func(p Path, rhs string) (Node, error) {
		re, err := regexp.Compile(rhs)
		if err != nil {
			return nil, fmt.Errorf("expr: invalid regex %q: %w", rhs, err)
		}
		return func(m media.Media) bool { return re.MatchString(p.Eval(m).asString()) }, nil
	},
}

func numericCompare(p Path, rhs string, cmp func(a, b float64) bool) (Node, error) {
	var rhsVal Value
	if f, err := parseFloatStrict(rhs); err == nil {
		rhsVal = numValue(f)
	} else {
		rhsVal = strValue(rhs)
	}
	want, ok := rhsVal.asFloat()
	if !ok {
		return nil, fmt.Errorf("expr: %q is not numeric", rhs)
	}
	return func(m media.Media) bool {
		got, ok := p.Eval(m).asFloat()
		return ok && cmp(got, want)
	}, nil
}

func parseFloatStrict(s string) (float64, error) {
	v := strValue(s)
	f, ok := v.asFloat()
	if !ok {
		return 0, fmt.Errorf("not numeric")
	}
	return f, nil
}

// clause operators recognized by splitClause, longest-match first so
// "<=" isn't mis-split as "<" followed by "=".
var clauseOps = []string{"<=", ">=", "==", "!=", ":regex", "<", ">", "~"}

// Compile parses a single `&&`/`||`-composed boolean expression into a
// Node. Operator precedence is intentionally flat: && and || are
// evaluated strictly left to right with no precedence between them,
// matching the grammar in spec §6. `!expr` negates the following clause;
// `%null`/`%empty` are unary property predicates rather than binary
// comparisons.
func Compile(expr string) (Node, error) {
	tokens, err := splitBoolean(expr)
	if err != nil {
		return nil, err
	}
	return compileTokens(tokens)
}

type token struct {
	clause string // "" for "&&"/"||"
	op     string // "&&" or "||" when clause == ""
}

func splitBoolean(expr string) ([]token, error) {
	var tokens []token
	rest := expr
	for {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return nil, fmt.Errorf("expr: empty clause in %q", expr)
		}
		andIdx := strings.Index(rest, "&&")
		orIdx := strings.Index(rest, "||")
		cut := -1
		op := ""
		switch {
		case andIdx < 0 && orIdx < 0:
			cut = len(rest)
		case andIdx < 0:
			cut, op = orIdx, "||"
		case orIdx < 0:
			cut, op = andIdx, "&&"
		case andIdx < orIdx:
			cut, op = andIdx, "&&"
		default:
			cut, op = orIdx, "||"
		}

		clause := strings.TrimSpace(rest[:cut])
		if clause == "" {
			return nil, fmt.Errorf("expr: empty clause in %q", expr)
		}
		tokens = append(tokens, token{clause: clause})
		if op == "" {
			break
		}
		tokens = append(tokens, token{op: op})
		rest = rest[cut+2:]
	}
	return tokens, nil
}

func compileTokens(tokens []token) (Node, error) {
	node, err := compileClause(tokens[0].clause)
	if err != nil {
		return nil, err
	}
	i := 1
	for i < len(tokens) {
		op := tokens[i].op
		rhsNode, err := compileClause(tokens[i+1].clause)
		if err != nil {
			return nil, err
		}
		left := node
		if op == "&&" {
			node = func(m media.Media) bool { return left(m) && rhsNode(m) }
		} else {
			node = func(m media.Media) bool { return left(m) || rhsNode(m) }
		}
		i += 2
	}
	return node, nil
}

func compileClause(clause string) (Node, error) {
	negate := false
	if strings.HasPrefix(clause, "!") {
		negate = true
		clause = strings.TrimPrefix(clause, "!")
	}

	var node Node
	var err error
	switch {
	case strings.HasSuffix(clause, "%null"):
		node, err = unaryClause(clause, "%null", func(v Value) bool { return v.Null })
	case strings.HasSuffix(clause, "%empty"):
		node, err = unaryClause(clause, "%empty", func(v Value) bool { return v.Null || v.asString() == "" })
	default:
		node, err = binaryClause(clause)
	}
	if err != nil {
		return nil, err
	}
	if negate {
		inner := node
		return func(m media.Media) bool { return !inner(m) }, nil
	}
	return node, nil
}

func unaryClause(clause, suffix string, pred func(Value) bool) (Node, error) {
	pathStr := strings.TrimSuffix(clause, suffix)
	path, err := ParsePath(pathStr)
	if err != nil {
		return nil, err
	}
	return func(m media.Media) bool { return pred(path.Eval(m)) }, nil
}

func binaryClause(clause string) (Node, error) {
	for _, op := range clauseOps {
		idx := strings.Index(clause, op)
		if idx < 0 {
			continue
		}
		pathStr := strings.TrimSpace(clause[:idx])
		rhs := strings.TrimSpace(clause[idx+len(op):])
		path, err := ParsePath(pathStr)
		if err != nil {
			return nil, err
		}
		return comparators[op](path, rhs)
	}
	return nil, fmt.Errorf("expr: no comparison operator found in clause %q", clause)
}
