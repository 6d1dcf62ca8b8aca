package ddbstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// DeleteItem removes an item. Deleting a missing item is not an error.
func (s *Store) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if params.Key == nil {
		return nil, fmt.Errorf("key is required")
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

	var oldItem map[string]types.AttributeValue
	err = s.db.Update(func(txn *badger.Txn) error {
		oldItem, err = getItem(txn, key)
		if err != nil || oldItem == nil {
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return nil, err
	}

	out := &dynamodb.DeleteItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld && oldItem != nil {
		out.Attributes = oldItem
	}
	return out, nil
}
