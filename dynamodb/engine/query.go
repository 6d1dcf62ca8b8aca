package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/acksell/refcache/dynamodb/cacheitem"
	"github.com/acksell/refcache/dynamodb/remote"
	"github.com/acksell/refcache/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	opQuery = "query"
	opRead  = "read"
)

// Get fetches object records through the query function. The tokens select
// the sort key and the columns to return, see [ResolveSelection]. A reply
// holding a single record is returned as a one element slice.
func (e *Engine) Get(ctx context.Context, req Request, tokens ...string) (recs []*cacheitem.Record, err error) {
	ctx, log, done := e.begin(ctx, opQuery)
	defer done(&err)

	ref, err := QueryReference(req, tokens...)
	if err != nil {
		return nil, err
	}
	env, err := ref.Serialize()
	if err != nil {
		return nil, err
	}
	res, err := e.invoke(ctx, log, e.functions.Query, env)
	if err != nil {
		return nil, err
	}
	recs, err = decodeResults(res)
	if err != nil {
		return nil, err
	}
	log.DebugContext(ctx, "query returned", "results", len(recs))
	return recs, nil
}

// QueryReference builds the object record Get sends: the selected columns
// without values, addressed by the selected identifier.
func QueryReference(req Request, tokens ...string) (*cacheitem.Record, error) {
	fields, err := req.Data.Resolve()
	if err != nil {
		return nil, err
	}
	sel := ResolveSelection(tokens, sortedKeys(fields), req.Key)

	ref, err := cacheitem.NewObjectItem(cacheitem.Input{
		Key:    cacheitem.KeyName(req.Key),
		Client: req.Client,
		Source: req.Source,
		Data:   cacheitem.DataColumns(sel.Columns...),
	})
	if err != nil {
		return nil, err
	}
	ref.ResetID(sel.Identifier)
	return ref, nil
}

func decodeResults(res remote.Response) ([]*cacheitem.Record, error) {
	payload := bytes.TrimSpace(res.Payload)
	if res.Accepted || len(payload) == 0 || string(payload) == "null" {
		return []*cacheitem.Record{}, nil
	}
	// Results may arrive as JSON text holding the envelope or list.
	if payload[0] == '"' {
		var text string
		if err := json.Unmarshal(payload, &text); err != nil {
			return nil, fmt.Errorf("failed to unmarshal query results: %w", err)
		}
		payload = bytes.TrimSpace([]byte(text))
	}
	res.Payload = payload
	raw := []json.RawMessage{payload}
	if res.IsList() {
		raw = nil
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal query results: %w", err)
		}
	}
	recs := make([]*cacheitem.Record, 0, len(raw))
	for i, r := range raw {
		rec, err := cacheitem.DeserializeJSON(r)
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// ReadFromDatastore reads ref directly from its table. A sort key other
// than the wildcard reads that one item, otherwise the whole partition is
// queried. Only the sort attribute and the data fields of ref are read, and
// each row is rebuilt as a record of the same variant.
func (e *Engine) ReadFromDatastore(ctx context.Context, ref *cacheitem.Record) (recs []*cacheitem.Record, err error) {
	ctx, log, done := e.begin(ctx, opRead)
	defer done(&err)

	if e.ddb == nil {
		return nil, ErrNoStore
	}
	def, err := e.tables.Table(ref.Variant())
	if err != nil {
		return nil, err
	}

	var sortKey any
	if ref.SortKey != nil && *ref.SortKey != Wildcard {
		sortKey = *ref.SortKey
	}
	pk := def.Key(ref.Partition, sortKey)

	proj := expression.NamesList(expression.Name(ref.SortName()))
	for _, field := range sortedKeys(ref.Data) {
		if field != ref.SortName() {
			proj = proj.AddNames(expression.Name(field))
		}
	}

	var items []map[string]types.AttributeValue
	if pk.HasSortKey() {
		items, err = e.getItem(ctx, def, pk, proj)
	} else {
		items, err = e.queryPartition(ctx, def, pk, proj)
	}
	if err != nil {
		return nil, err
	}
	log.DebugContext(ctx, "read returned", "table", def.Name, "single", pk.HasSortKey(), "items", len(items))

	recs = make([]*cacheitem.Record, 0, len(items))
	for _, item := range items {
		data, err := decodeItem(item)
		if err != nil {
			return nil, err
		}
		rec, err := cacheitem.New(ref.Variant(), cacheitem.Input{
			Key:    cacheitem.KeyName(ref.Key),
			Client: ref.Client,
			Source: ref.Source,
			Data:   cacheitem.DataMap(data),
		})
		if err != nil {
			return nil, err
		}
		if id, ok := data[ref.SortName()].(string); ok {
			rec.ResetID(id)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (e *Engine) getItem(ctx context.Context, def table.TableDefinition, pk table.PrimaryKey, proj expression.ProjectionBuilder) ([]map[string]types.AttributeValue, error) {
	key, err := pk.DDB()
	if err != nil {
		return nil, err
	}
	expr, err := expression.NewBuilder().WithProjection(proj).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build projection: %w", err)
	}
	out, err := e.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(def.Name),
		Key:                      key,
		ProjectionExpression:     expr.Projection(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item from %s: %w", def.Name, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return []map[string]types.AttributeValue{out.Item}, nil
}

func (e *Engine) queryPartition(ctx context.Context, def table.TableDefinition, pk table.PrimaryKey, proj expression.ProjectionBuilder) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key(def.KeyDefinitions.PartitionKey.Name).Equal(expression.Value(pk.Values.PartitionKey))
	expr, err := expression.NewBuilder().
		WithKeyCondition(keyCond).
		WithProjection(proj).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	out, err := e.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(def.Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", def.Name, err)
	}
	return out.Items, nil
}
