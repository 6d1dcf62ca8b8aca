package engine

import (
	"context"
	"fmt"

	"github.com/acksell/refcache/dynamodb/attr"
	"github.com/acksell/refcache/dynamodb/cacheitem"
	"github.com/acksell/refcache/dynamodb/remote"
	"github.com/acksell/refcache/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/exp/slices"
)

const (
	opInsert = "insert"
	opWrite  = "write"
)

// PayloadField holds insert payloads that are not maps.
const PayloadField = "payload"

// Payload turns an insert payload into record data. Maps are used as they
// are; anything else is stored in a single PayloadField column.
func Payload(v any) cacheitem.Data {
	if m, ok := v.(map[string]any); ok {
		return cacheitem.DataMap(m)
	}
	return cacheitem.DataMap(map[string]any{PayloadField: v})
}

// Cache inserts or updates an object record through the insert function.
// The tokens select the sort key and columns, see [ResolveSelection].
func (e *Engine) Cache(ctx context.Context, req Request, tokens ...string) (res remote.Response, err error) {
	ctx, log, done := e.begin(ctx, opInsert)
	defer done(&err)

	item, err := InsertRecord(req, tokens...)
	if err != nil {
		return remote.Response{}, err
	}
	env, err := item.Serialize()
	if err != nil {
		return remote.Response{}, err
	}
	log.DebugContext(ctx, "caching record", "partition", item.Partition, "id", item.ID())
	return e.invoke(ctx, log, e.functions.Insert, env)
}

// InsertRecord builds the object record Cache sends. Only the selected
// columns are kept. The selected identifier becomes the sort key unless the
// record derived one and the identifier is the record key itself.
func InsertRecord(req Request, tokens ...string) (*cacheitem.Record, error) {
	fields, err := req.Data.Resolve()
	if err != nil {
		return nil, err
	}
	sel := ResolveSelection(tokens, sortedKeys(fields), req.Key)

	picked := make(map[string]any, len(sel.Columns))
	for _, col := range sel.Columns {
		if v, ok := fields[col]; ok {
			picked[col] = v
		}
	}
	item, err := cacheitem.NewObjectItem(cacheitem.Input{
		Key:    cacheitem.KeyName(req.Key),
		Client: req.Client,
		Source: req.Source,
		Data:   cacheitem.DataMap(picked),
	})
	if err != nil {
		return nil, err
	}
	if item.SortKey == nil || req.Key != sel.Identifier {
		item.ResetID(sel.Identifier)
	}
	return item, nil
}

// WriteOptions control a direct datastore write.
type WriteOptions struct {
	// ReturnValues asks the store for the previous attributes of a put, or
	// the updated attributes of an update. They are reconciled into the
	// returned record.
	ReturnValues bool
	// IsUpdate writes with a SET update instead of replacing the item.
	IsUpdate bool
}

// WriteToDatastore stores rec in its table. The returned record is rec
// reconciled with whatever attributes the store returned; local values win.
func (e *Engine) WriteToDatastore(ctx context.Context, rec *cacheitem.Record, opts WriteOptions) (out *cacheitem.Record, err error) {
	ctx, log, done := e.begin(ctx, opWrite)
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
	log = log.With("table", def.Name, "partition", rec.Partition, "sort", rec.ID())

	var attrs map[string]types.AttributeValue
	if opts.IsUpdate {
		attrs, err = e.update(ctx, def, rec, opts.ReturnValues)
	} else {
		attrs, err = e.put(ctx, def.Name, rec, opts.ReturnValues)
	}
	if err != nil {
		return nil, err
	}
	log.DebugContext(ctx, "record written", "update", opts.IsUpdate, "returned", len(attrs))
	if len(attrs) == 0 {
		return rec, nil
	}

	stored, err := decodeItem(attrs)
	if err != nil {
		return nil, err
	}
	return cacheitem.Reconcile(rec, stored), nil
}

func (e *Engine) put(ctx context.Context, tableName string, rec *cacheitem.Record, returnValues bool) (map[string]types.AttributeValue, error) {
	item, err := rec.ToAttributeValues()
	if err != nil {
		return nil, err
	}
	rv := types.ReturnValueNone
	if returnValues {
		rv = types.ReturnValueAllOld
	}
	out, err := e.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:    aws.String(tableName),
		Item:         item,
		ReturnValues: rv,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put %s: %w", rec.Type(), err)
	}
	return out.Attributes, nil
}

func (e *Engine) update(ctx context.Context, def table.TableDefinition, rec *cacheitem.Record, returnValues bool) (map[string]types.AttributeValue, error) {
	key, err := recordKey(def, rec).DDB()
	if err != nil {
		return nil, err
	}
	var excluded []string
	for _, v := range rec.Address() {
		excluded = append(excluded, v.Str)
	}
	slices.Sort(excluded)

	ue, err := rec.UpdateExpressionValues(excluded)
	if err != nil {
		return nil, err
	}
	if ue.Expression() == "" {
		return nil, fmt.Errorf("%s %q has no fields to update", rec.Type(), rec.Partition)
	}
	values, err := ue.AttributeValues()
	if err != nil {
		return nil, err
	}
	rv := types.ReturnValueNone
	if returnValues {
		rv = types.ReturnValueUpdatedNew
	}
	out, err := e.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(def.Name),
		Key:                       key,
		UpdateExpression:          aws.String(ue.Expression()),
		ExpressionAttributeNames:  ue.AttributeNames(),
		ExpressionAttributeValues: values,
		ReturnValues:              rv,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", rec.Type(), err)
	}
	return out.Attributes, nil
}

// recordKey addresses rec in def. A record without a sort key addresses its
// whole partition.
func recordKey(def table.TableDefinition, rec *cacheitem.Record) table.PrimaryKey {
	var sort any
	if rec.SortKey != nil {
		sort = *rec.SortKey
	}
	return def.Key(rec.Partition, sort)
}

// decodeItem converts a stored item to native values.
func decodeItem(item map[string]types.AttributeValue) (map[string]any, error) {
	values, err := attr.FromAttributeValueMap(item)
	if err != nil {
		return nil, err
	}
	return attr.DecodeRecord(values)
}
