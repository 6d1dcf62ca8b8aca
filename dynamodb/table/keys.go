package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type PrimaryKeyDefinition struct {
	PartitionKey KeyDef
	SortKey      KeyDef // Name is empty for tables without a sort key
}

type KeyDef struct {
	Name string
	Kind KeyKind
}

type KeyKind string

const (
	KeyKindS KeyKind = "S"
	KeyKindN KeyKind = "N"
	KeyKindB KeyKind = "B"
)

type PrimaryKeyValues struct {
	PartitionKey any
	// SortKey may be nil, meaning the whole partition is addressed.
	SortKey any
}

type PrimaryKey struct {
	Definition PrimaryKeyDefinition
	Values     PrimaryKeyValues
}

// DDB marshals the key into DynamoDB attribute values.
// A nil sort key is left out, which only a query accepts.
func (k PrimaryKey) DDB() (map[string]types.AttributeValue, error) {
	pk, err := marshalKey(k.Definition.PartitionKey, k.Values.PartitionKey)
	if err != nil {
		return nil, fmt.Errorf("partition key: %w", err)
	}
	out := map[string]types.AttributeValue{
		k.Definition.PartitionKey.Name: pk,
	}
	if k.Definition.SortKey.Name == "" || k.Values.SortKey == nil {
		return out, nil
	}
	sk, err := marshalKey(k.Definition.SortKey, k.Values.SortKey)
	if err != nil {
		return nil, fmt.Errorf("sort key: %w", err)
	}
	out[k.Definition.SortKey.Name] = sk
	return out, nil
}

// HasSortKey reports whether the key addresses a single item.
func (k PrimaryKey) HasSortKey() bool {
	return k.Definition.SortKey.Name == "" || k.Values.SortKey != nil
}

func marshalKey(def KeyDef, v any) (types.AttributeValue, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %q of type %T: %w", def.Name, v, err)
	}
	if err := attributeMatchesDefinition(def.Kind, av); err != nil {
		return nil, fmt.Errorf("%q kind does not match dynamo value: %w", def.Name, err)
	}
	return av, nil
}

func attributeMatchesDefinition(want KeyKind, v types.AttributeValue) error {
	var got KeyKind
	switch v.(type) {
	case *types.AttributeValueMemberS:
		got = KeyKindS
	case *types.AttributeValueMemberN:
		got = KeyKindN
	case *types.AttributeValueMemberB:
		got = KeyKindB
	default:
		return fmt.Errorf("unexpected key attribute type %T", v)
	}
	if got != want {
		return fmt.Errorf("got KeyKind %q want %q", got, want)
	}
	return nil
}
