package cacheitem

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/acksell/refcache/dynamodb/attr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var (
	plainIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	placeholderSafe = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// UpdateExpression is a SET update over the record's data fields.
type UpdateExpression struct {
	Clauses []string
	Names   map[string]string
	Values  map[string]attr.Value
}

// Expression returns the SET expression, or "" when there is nothing to set.
func (u UpdateExpression) Expression() string {
	if len(u.Clauses) == 0 {
		return ""
	}
	return "SET " + strings.Join(u.Clauses, ", ")
}

// AttributeValues returns the value bindings for the SDK.
func (u UpdateExpression) AttributeValues() (map[string]types.AttributeValue, error) {
	return attr.ToAttributeValueMap(u.Values)
}

// AttributeNames returns the name aliases, or nil when none were needed.
func (u UpdateExpression) AttributeNames() map[string]string {
	if len(u.Names) == 0 {
		return nil
	}
	return u.Names
}

// UpdateExpressionValues builds a SET clause per data field. Fields whose
// scalar encoded value is listed in excluded are skipped, so address values
// are never rewritten. Fields that are not plain identifiers are aliased.
func (r *Record) UpdateExpressionValues(excluded []string) (UpdateExpression, error) {
	u := UpdateExpression{
		Names:  map[string]string{},
		Values: map[string]attr.Value{},
	}
	fields := maps.Keys(r.Data)
	slices.Sort(fields)
	for _, field := range fields {
		if field == attr.ReservedUpdateField {
			continue
		}
		v, err := attr.Encode(r.Data[field])
		if err != nil {
			return UpdateExpression{}, fmt.Errorf("field %q: %w", field, err)
		}
		if (v.Tag == attr.TagS || v.Tag == attr.TagN) && slices.Contains(excluded, v.Str) {
			continue
		}

		safe := placeholderSafe.ReplaceAllString(field, "_")
		placeholder := ":val_" + safe
		for i := 2; ; i++ {
			if _, taken := u.Values[placeholder]; !taken {
				break
			}
			placeholder = fmt.Sprintf(":val_%s_%d", safe, i)
		}
		name := field
		if !plainIdentifier.MatchString(field) {
			name = "#" + strings.TrimPrefix(placeholder, ":val_")
			u.Names[name] = field
		}
		u.Clauses = append(u.Clauses, name+" = "+placeholder)
		u.Values[placeholder] = v
	}
	return u, nil
}
