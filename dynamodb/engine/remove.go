package engine

import (
	"context"
	"fmt"

	"github.com/acksell/refcache/dynamodb/cacheitem"
	"github.com/acksell/refcache/dynamodb/remote"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	opRemove = "remove"
	opDelete = "delete"
)

// RemoveRequest is the payload of the remove function.
type RemoveRequest struct {
	Primary string `json:"primary"`
	Sort    string `json:"sort"`
}

// Remove deletes a record through the remove function.
func (e *Engine) Remove(ctx context.Context, primary, sort string) (res remote.Response, err error) {
	ctx, log, done := e.begin(ctx, opRemove)
	defer done(&err)

	return e.invoke(ctx, log, e.functions.Remove, RemoveRequest{Primary: primary, Sort: sort})
}

// RemoveFromDatastore deletes rec from its table. It returns rec reconciled
// with the removed attributes, or nil if nothing was stored at its address.
func (e *Engine) RemoveFromDatastore(ctx context.Context, rec *cacheitem.Record) (removed *cacheitem.Record, err error) {
	ctx, log, done := e.begin(ctx, opDelete)
	defer done(&err)

	if e.ddb == nil {
		return nil, ErrNoStore
	}
	if rec.SortKey == nil {
		return nil, fmt.Errorf("%s %q has no sort key", rec.Type(), rec.Partition)
	}
	def, err := e.tables.Table(rec.Variant())
	if err != nil {
		return nil, err
	}
	key, err := recordKey(def, rec).DDB()
	if err != nil {
		return nil, err
	}
	out, err := e.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(def.Name),
		Key:          key,
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete %s: %w", rec.Type(), err)
	}
	log.DebugContext(ctx, "record deleted", "table", def.Name, "existed", len(out.Attributes) > 0)
	if len(out.Attributes) == 0 {
		return nil, nil
	}
	old, err := decodeItem(out.Attributes)
	if err != nil {
		return nil, err
	}
	return cacheitem.Reconcile(rec, old), nil
}
