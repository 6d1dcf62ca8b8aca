package ddbstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
	"golang.org/x/exp/maps"
)

// UpdateItem applies a SET update, creating the item if it does not exist.
func (s *Store) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if params.Key == nil {
		return nil, fmt.Errorf("key is required")
	}
	if params.UpdateExpression == nil {
		return nil, fmt.Errorf("UpdateExpression is required")
	}
	if params.ConditionExpression != nil {
		return nil, fmt.Errorf("condition expressions are not supported")
	}

	tabl, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}

	pk, err := tabl.definition.ExtractPrimaryKey(params.Key)
	if err != nil {
		return nil, fmt.Errorf("extract primary key: %w", err)
	}

	key, err := tabl.encodeKey(pk)
	if err != nil {
		return nil, fmt.Errorf("encode key: %w", err)
	}

	sets, err := parseSetUpdate(*params.UpdateExpression, exprParams{
		names:  params.ExpressionAttributeNames,
		values: params.ExpressionAttributeValues,
	})
	if err != nil {
		return nil, err
	}
	for _, set := range sets {
		if isKeyAttribute(set.name, tabl.definition.KeyDefinitions) {
			return nil, fmt.Errorf("cannot update key attribute %q", set.name)
		}
	}

	var oldItem, newItem map[string]types.AttributeValue
	err = s.db.Update(func(txn *badger.Txn) error {
		oldItem, err = getItem(txn, key)
		if err != nil {
			return err
		}
		newItem = maps.Clone(oldItem)
		if newItem == nil {
			newItem = maps.Clone(params.Key)
		}
		for _, set := range sets {
			newItem[set.name] = set.value
		}
		itemBytes, err := SerializeItem(newItem)
		if err != nil {
			return fmt.Errorf("serialize item: %w", err)
		}
		return txn.Set(key, itemBytes)
	})
	if err != nil {
		return nil, err
	}

	updated := make([]string, len(sets))
	for i, set := range sets {
		updated[i] = set.name
	}

	out := &dynamodb.UpdateItemOutput{}
	switch params.ReturnValues {
	case types.ReturnValueAllNew:
		out.Attributes = newItem
	case types.ReturnValueUpdatedNew:
		out.Attributes = project(newItem, updated)
	case types.ReturnValueAllOld:
		out.Attributes = oldItem
	case types.ReturnValueUpdatedOld:
		if oldItem != nil {
			out.Attributes = project(oldItem, updated)
		}
	}
	return out, nil
}
