package demobackend

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nornicgraph/boltd/pkg/backend"
	"github.com/nornicgraph/boltd/pkg/packstream"
)

// returnStatement is "RETURN <expr> [AS alias], ...".
type returnStatement struct {
	fields []string
	values backend.Record
}

// createNodeStatement is "CREATE (<var>:<Label> {<props>}) RETURN <var>".
type createNodeStatement struct {
	label      string
	props      map[string]any
	returnAlias string
}

func (c *createNodeStatement) build(id int64) *packstream.Node {
	props := packstream.NewDictionary()
	for k, v := range c.props {
		props.Set(k, v)
	}
	return &packstream.Node{
		ID:         id,
		ElementID:  fmt.Sprintf("4:%s:%d", uuid.NewString(), id),
		Labels:     []string{c.label},
		Properties: props,
	}
}

var createNodeRe = regexp.MustCompile(`(?is)^CREATE\s*\(\s*(\w+)\s*:\s*(\w+)\s*(\{.*\})?\s*\)\s*RETURN\s+(\w+)\s*$`)

// parseStatement recognizes the narrow grammar this demo backend supports.
// It returns (nil, nil), not an error, when the text isn't one of the
// recognized shapes at all — callers turn that into a syntax-error
// Failure, keeping "I don't understand this" and "I understood it and it's
// malformed" distinguishable.
func parseStatement(query string, params map[string]any) (any, error) {
	q := strings.TrimSpace(query)

	if m := createNodeRe.FindStringSubmatch(q); m != nil {
		varName, label, rawProps, returnVar := m[1], m[2], m[3], m[4]
		if returnVar != varName {
			return nil, backend.NewFailure(backend.FailureKindSyntaxError, backend.CodeSyntaxError,
				fmt.Sprintf("demobackend: RETURN must reference the created variable %q", varName))
		}
		props := map[string]any{}
		if rawProps != "" {
			var err error
			props, err = parsePropertyMap(rawProps, params)
			if err != nil {
				return nil, err
			}
		}
		return &createNodeStatement{label: label, props: props, returnAlias: varName}, nil
	}

	if rest, ok := stripKeyword(q, "RETURN"); ok {
		return parseReturn(rest, params)
	}

	return nil, nil
}

func stripKeyword(q, kw string) (string, bool) {
	if len(q) < len(kw) || !strings.EqualFold(q[:len(kw)], kw) {
		return "", false
	}
	rest := q[len(kw):]
	if rest != "" && !isSpace(rest[0]) {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' }

func parseReturn(exprList string, params map[string]any) (*returnStatement, error) {
	items := splitTopLevel(exprList, ',')
	if len(items) == 0 {
		return nil, backend.NewFailure(backend.FailureKindSyntaxError, backend.CodeSyntaxError,
			"demobackend: RETURN requires at least one expression")
	}
	stmt := &returnStatement{}
	for _, item := range items {
		item = strings.TrimSpace(item)
		expr, alias := item, item
		if idx := findTopLevelAs(item); idx >= 0 {
			expr = strings.TrimSpace(item[:idx])
			alias = strings.TrimSpace(item[idx+3:])
		}
		val, err := evalExpr(expr, params)
		if err != nil {
			return nil, err
		}
		stmt.fields = append(stmt.fields, alias)
		stmt.values = append(stmt.values, val)
	}
	return stmt, nil
}

func findTopLevelAs(s string) int {
	upper := strings.ToUpper(s)
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		}
		if depth == 0 && i+4 <= len(s) && upper[i:i+4] == " AS " {
			return i + 1
		}
	}
	return -1
}

// evalExpr evaluates a parameter reference ($name) or a literal.
func evalExpr(expr string, params map[string]any) (any, error) {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "$") {
		name := expr[1:]
		v, ok := params[name]
		if !ok {
			return nil, backend.NewFailure(backend.FailureKindSyntaxError, backend.CodeSyntaxError,
				fmt.Sprintf("demobackend: unbound parameter $%s", name))
		}
		return v, nil
	}
	return parseLiteral(expr)
}

// parseLiteral parses one Cypher-ish literal: integer, float, quoted
// string, true/false/null, or a bracketed list of literals.
func parseLiteral(s string) (any, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "true":
		return true, nil
	case s == "false":
		return false, nil
	case s == "null":
		return nil, nil
	case len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0]:
		return s[1 : len(s)-1], nil
	case len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']':
		items := splitTopLevel(s[1:len(s)-1], ',')
		out := make([]any, 0, len(items))
		for _, item := range items {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			v, err := parseLiteral(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return nil, backend.NewFailure(backend.FailureKindSyntaxError, backend.CodeSyntaxError,
		fmt.Sprintf("demobackend: cannot parse literal %q", s))
}

// parsePropertyMap parses a flat "{k: v, k2: v2}" map of scalar literals or
// parameter references.
func parsePropertyMap(s string, params map[string]any) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, backend.NewFailure(backend.FailureKindSyntaxError, backend.CodeSyntaxError,
			fmt.Sprintf("demobackend: malformed property map %q", s))
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	props := map[string]any{}
	if inner == "" {
		return props, nil
	}
	for _, pair := range splitTopLevel(inner, ',') {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			return nil, backend.NewFailure(backend.FailureKindSyntaxError, backend.CodeSyntaxError,
				fmt.Sprintf("demobackend: malformed property entry %q", pair))
		}
		key := strings.TrimSpace(kv[0])
		val, err := evalExpr(strings.TrimSpace(kv[1]), params)
		if err != nil {
			return nil, err
		}
		props[key] = val
	}
	return props, nil
}

// splitTopLevel splits s on sep, ignoring occurrences nested inside
// (), [], {}, or quotes.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == sep && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	last := strings.TrimSpace(s[start:])
	if last != "" || len(out) > 0 {
		out = append(out, s[start:])
	}
	return out
}
