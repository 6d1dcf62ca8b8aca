package ddbstore

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/acksell/refcache/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func ptrStr(s string) *string {
	return &s
}

var (
	andSeparator = regexp.MustCompile(`(?i)\s+AND\s+`)
	setPrefix    = regexp.MustCompile(`(?i)^\s*SET\s+`)
	attrToken    = regexp.MustCompile(`^#?[A-Za-z0-9_\-]+$`)
	valueToken   = regexp.MustCompile(`^:[A-Za-z0-9_\-]+$`)
)

// equality is one `name = :value` term of a key condition or SET clause.
type equality struct {
	name  string
	value types.AttributeValue
}

type exprParams struct {
	names  map[string]string
	values map[string]types.AttributeValue
}

func (p exprParams) name(tok string) (string, error) {
	tok = strings.TrimSpace(tok)
	if !attrToken.MatchString(tok) {
		return "", fmt.Errorf("unsupported attribute path %q", tok)
	}
	if !strings.HasPrefix(tok, "#") {
		return tok, nil
	}
	name, ok := p.names[tok]
	if !ok {
		return "", fmt.Errorf("expression attribute name %s is not defined", tok)
	}
	return name, nil
}

func (p exprParams) value(tok string) (types.AttributeValue, error) {
	tok = strings.TrimSpace(tok)
	if !valueToken.MatchString(tok) {
		return nil, fmt.Errorf("unsupported operand %q, only value placeholders are supported", tok)
	}
	v, ok := p.values[tok]
	if !ok {
		return nil, fmt.Errorf("expression attribute value %s is not defined", tok)
	}
	return v, nil
}

func (p exprParams) equality(term string) (equality, error) {
	parts := strings.Split(term, "=")
	if len(parts) != 2 {
		return equality{}, fmt.Errorf("unsupported term %q, only equality is supported", strings.TrimSpace(term))
	}
	name, err := p.name(parts[0])
	if err != nil {
		return equality{}, err
	}
	value, err := p.value(parts[1])
	if err != nil {
		return equality{}, err
	}
	return equality{name: name, value: value}, nil
}

// parseKeyCondition reads `pk = :v [AND sk = :w]`, with or without the
// parentheses the expression builder adds.
func parseKeyCondition(expr string, keys table.PrimaryKeyDefinition, p exprParams) (partition types.AttributeValue, sort types.AttributeValue, err error) {
	expr = strings.NewReplacer("(", " ", ")", " ").Replace(expr)
	for _, term := range andSeparator.Split(strings.TrimSpace(expr), -1) {
		eq, err := p.equality(term)
		if err != nil {
			return nil, nil, fmt.Errorf("parse key condition: %w", err)
		}
		switch eq.name {
		case keys.PartitionKey.Name:
			partition = eq.value
		case keys.SortKey.Name:
			sort = eq.value
		default:
			return nil, nil, fmt.Errorf("key condition on non-key attribute %q", eq.name)
		}
	}
	if partition == nil {
		return nil, nil, fmt.Errorf("key condition must constrain partition key %q", keys.PartitionKey.Name)
	}
	return partition, sort, nil
}

// parseSetUpdate reads `SET a = :v, #b = :w`.
func parseSetUpdate(expr string, p exprParams) ([]equality, error) {
	if !setPrefix.MatchString(expr) {
		return nil, fmt.Errorf("unsupported update expression %q, only SET is supported", expr)
	}
	var out []equality
	for _, clause := range strings.Split(setPrefix.ReplaceAllString(expr, ""), ",") {
		eq, err := p.equality(clause)
		if err != nil {
			return nil, fmt.Errorf("parse update expression: %w", err)
		}
		out = append(out, eq)
	}
	return out, nil
}

// parseProjection reads a comma separated list of top level attributes.
func parseProjection(expr *string, p exprParams) ([]string, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return nil, nil
	}
	var out []string
	for _, tok := range strings.Split(*expr, ",") {
		name, err := p.name(tok)
		if err != nil {
			return nil, fmt.Errorf("parse projection: %w", err)
		}
		out = append(out, name)
	}
	return out, nil
}

func project(item map[string]types.AttributeValue, attrs []string) map[string]types.AttributeValue {
	if len(attrs) == 0 {
		return item
	}
	out := make(map[string]types.AttributeValue, len(attrs))
	for _, a := range attrs {
		if v, ok := item[a]; ok {
			out[a] = v
		}
	}
	return out
}

func isKeyAttribute(name string, keys table.PrimaryKeyDefinition) bool {
	return name == keys.PartitionKey.Name || (keys.SortKey.Name != "" && name == keys.SortKey.Name)
}
