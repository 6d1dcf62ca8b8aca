package ddbstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// Query returns the items of one partition, optionally narrowed to a single
// sort key. Items come back in sort key order.
func (s *Store) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if params.KeyConditionExpression == nil {
		return nil, fmt.Errorf("key condition expression is required")
	}
	if params.IndexName != nil || params.FilterExpression != nil {
		return nil, fmt.Errorf("indexes and filter expressions are not supported")
	}

	tabl, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	keys := tabl.definition.KeyDefinitions

	ep := exprParams{names: params.ExpressionAttributeNames, values: params.ExpressionAttributeValues}
	partitionAV, sortAV, err := parseKeyCondition(*params.KeyConditionExpression, keys, ep)
	if err != nil {
		return nil, err
	}
	projection, err := parseProjection(params.ProjectionExpression, ep)
	if err != nil {
		return nil, err
	}

	keyDoc := map[string]types.AttributeValue{keys.PartitionKey.Name: partitionAV}
	if sortAV != nil {
		keyDoc[keys.SortKey.Name] = sortAV
	}

	limit := 0
	if params.Limit != nil {
		limit = int(*params.Limit)
	}
	scanForward := params.ScanIndexForward == nil || *params.ScanIndexForward

	var items []map[string]types.AttributeValue
	err = s.db.View(func(txn *badger.Txn) error {
		if sortAV != nil {
			pk, err := keys.ExtractPrimaryKey(keyDoc)
			if err != nil {
				return fmt.Errorf("extract primary key: %w", err)
			}
			key, err := tabl.encodeKey(pk)
			if err != nil {
				return fmt.Errorf("encode key: %w", err)
			}
			item, err := getItem(txn, key)
			if err != nil || item == nil {
				return err
			}
			items = append(items, item)
			return nil
		}

		pk, err := keys.ExtractPartitionKey(keyDoc)
		if err != nil {
			return fmt.Errorf("extract partition key: %w", err)
		}
		prefix, err := encodePartitionPrefix(tabl.definition.Name, keys, pk.Values.PartitionKey)
		if err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = !scanForward
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := prefix
		if opts.Reverse {
			seek = append(append([]byte{}, prefix...), 0xFF)
		}
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(items) >= limit {
				break
			}
			var item map[string]types.AttributeValue
			err := it.Item().Value(func(val []byte) error {
				var err error
				item, err = DeserializeItem(val)
				return err
			})
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := &dynamodb.QueryOutput{
		Items:        make([]map[string]types.AttributeValue, 0, len(items)),
		Count:        int32(len(items)),
		ScannedCount: int32(len(items)),
	}
	for _, item := range items {
		out.Items = append(out.Items, project(item, projection))
	}
	return out, nil
}
