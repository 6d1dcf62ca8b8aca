package ddbstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// PutItem creates or replaces an item.
func (s *Store) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if params.Item == nil {
		return nil, fmt.Errorf("item is required")
	}
	if params.ConditionExpression != nil {
		return nil, fmt.Errorf("condition expressions are not supported")
	}

	tabl, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}

	pk, err := tabl.definition.ExtractPrimaryKey(params.Item)
	if err != nil {
		return nil, fmt.Errorf("extract primary key: %w", err)
	}

	key, err := tabl.encodeKey(pk)
	if err != nil {
		return nil, fmt.Errorf("encode key: %w", err)
	}

	itemBytes, err := SerializeItem(params.Item)
	if err != nil {
		return nil, fmt.Errorf("serialize item: %w", err)
	}

	var oldItem map[string]types.AttributeValue
	err = s.db.Update(func(txn *badger.Txn) error {
		oldItem, err = getItem(txn, key)
		if err != nil {
			return err
		}
		return txn.Set(key, itemBytes)
	})
	if err != nil {
		return nil, err
	}

	out := &dynamodb.PutItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld && oldItem != nil {
		out.Attributes = oldItem
	}
	return out, nil
}

// getItem returns the stored item under key, or nil if there is none.
func getItem(txn *badger.Txn, key []byte) (map[string]types.AttributeValue, error) {
	existing, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var item map[string]types.AttributeValue
	err = existing.Value(func(val []byte) error {
		item, err = DeserializeItem(val)
		return err
	})
	return item, err
}
