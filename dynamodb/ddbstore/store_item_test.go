package ddbstore

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetItem(t *testing.T) {
	store := newTestStore(t, singleTableDesign)
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		got, err := store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: &singleTableDesign.Name,
			Key:       map[string]types.AttributeValue{"pk": s("nonexistent"), "sk": s("nonexistent")},
		})
		require.NoError(t, err)
		assert.Nil(t, got.Item)
	})

	t.Run("found after put", func(t *testing.T) {
		item := map[string]types.AttributeValue{
			"pk":   s("user#123"),
			"sk":   s("profile"),
			"name": s("John Doe"),
			"age":  n("30"),
		}
		putItems(t, store, singleTableDesign.Name, item)

		got, err := store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: &singleTableDesign.Name,
			Key:       map[string]types.AttributeValue{"pk": s("user#123"), "sk": s("profile")},
		})
		require.NoError(t, err)
		assert.Equal(t, item, got.Item)
	})

	t.Run("projection", func(t *testing.T) {
		got, err := store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:                &singleTableDesign.Name,
			Key:                      map[string]types.AttributeValue{"pk": s("user#123"), "sk": s("profile")},
			ProjectionExpression:     ptrStr("#n, age"),
			ExpressionAttributeNames: map[string]string{"#n": "name"},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]types.AttributeValue{"name": s("John Doe"), "age": n("30")}, got.Item)
	})

	t.Run("incomplete key", func(t *testing.T) {
		_, err := store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: &singleTableDesign.Name,
			Key:       map[string]types.AttributeValue{"pk": s("user#123")},
		})
		require.Error(t, err)
	})
}

func TestStore_PutItem(t *testing.T) {
	store := newTestStore(t, singleTableDesign, noSortKeyTable)
	ctx := context.Background()

	t.Run("return old values", func(t *testing.T) {
		first := map[string]types.AttributeValue{"pk": s("a"), "sk": s("1"), "v": s("first")}
		putItems(t, store, singleTableDesign.Name, first)

		out, err := store.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:    &singleTableDesign.Name,
			Item:         map[string]types.AttributeValue{"pk": s("a"), "sk": s("1"), "v": s("second")},
			ReturnValues: types.ReturnValueAllOld,
		})
		require.NoError(t, err)
		assert.Equal(t, first, out.Attributes)
	})

	t.Run("no old values for new item", func(t *testing.T) {
		out, err := store.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:    &singleTableDesign.Name,
			Item:         map[string]types.AttributeValue{"pk": s("b"), "sk": s("1")},
			ReturnValues: types.ReturnValueAllOld,
		})
		require.NoError(t, err)
		assert.Nil(t, out.Attributes)
	})

	t.Run("missing key attribute", func(t *testing.T) {
		_, err := store.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: &singleTableDesign.Name,
			Item:      map[string]types.AttributeValue{"pk": s("c")},
		})
		require.Error(t, err)
	})

	t.Run("condition expressions rejected", func(t *testing.T) {
		_, err := store.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           &singleTableDesign.Name,
			Item:                map[string]types.AttributeValue{"pk": s("d"), "sk": s("1")},
			ConditionExpression: ptrStr("attribute_not_exists(pk)"),
		})
		require.Error(t, err)
	})

	t.Run("table without sort key", func(t *testing.T) {
		item := map[string]types.AttributeValue{"pk": s("solo"), "v": n("1")}
		putItems(t, store, noSortKeyTable.Name, item)
		got, err := store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: &noSortKeyTable.Name,
			Key:       map[string]types.AttributeValue{"pk": s("solo")},
		})
		require.NoError(t, err)
		assert.Equal(t, item, got.Item)
	})
}

func TestStore_DeleteItem(t *testing.T) {
	store := newTestStore(t, singleTableDesign)
	ctx := context.Background()
	item := map[string]types.AttributeValue{"pk": s("a"), "sk": s("1"), "v": s("x")}
	putItems(t, store, singleTableDesign.Name, item)

	out, err := store.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    &singleTableDesign.Name,
		Key:          map[string]types.AttributeValue{"pk": s("a"), "sk": s("1")},
		ReturnValues: types.ReturnValueAllOld,
	})
	require.NoError(t, err)
	assert.Equal(t, item, out.Attributes)

	got, err := store.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &singleTableDesign.Name,
		Key:       map[string]types.AttributeValue{"pk": s("a"), "sk": s("1")},
	})
	require.NoError(t, err)
	assert.Nil(t, got.Item)

	t.Run("missing item", func(t *testing.T) {
		out, err := store.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:    &singleTableDesign.Name,
			Key:          map[string]types.AttributeValue{"pk": s("a"), "sk": s("1")},
			ReturnValues: types.ReturnValueAllOld,
		})
		require.NoError(t, err)
		assert.Nil(t, out.Attributes)
	})
}

func TestStore_UpdateItem(t *testing.T) {
	store := newTestStore(t, singleTableDesign)
	ctx := context.Background()
	key := map[string]types.AttributeValue{"pk": s("a"), "sk": s("1")}

	t.Run("creates missing item", func(t *testing.T) {
		out, err := store.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 &singleTableDesign.Name,
			Key:                       key,
			UpdateExpression:          ptrStr("SET name = :val_name"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":val_name": s("x")},
			ReturnValues:              types.ReturnValueAllNew,
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]types.AttributeValue{"pk": s("a"), "sk": s("1"), "name": s("x")}, out.Attributes)
	})

	t.Run("updated new with aliases", func(t *testing.T) {
		out, err := store.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 &singleTableDesign.Name,
			Key:                       key,
			UpdateExpression:          ptrStr("SET count = :val_count, #display_name = :val_display_name"),
			ExpressionAttributeNames:  map[string]string{"#display_name": "display-name"},
			ExpressionAttributeValues: map[string]types.AttributeValue{":val_count": n("2"), ":val_display_name": s("Bob")},
			ReturnValues:              types.ReturnValueUpdatedNew,
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]types.AttributeValue{"count": n("2"), "display-name": s("Bob")}, out.Attributes)

		got, err := store.GetItem(ctx, &dynamodb.GetItemInput{TableName: &singleTableDesign.Name, Key: key})
		require.NoError(t, err)
		assert.Equal(t, s("x"), got.Item["name"])
		assert.Equal(t, s("Bob"), got.Item["display-name"])
	})

	t.Run("updated old", func(t *testing.T) {
		out, err := store.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 &singleTableDesign.Name,
			Key:                       key,
			UpdateExpression:          ptrStr("set name = :v"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":v": s("y")},
			ReturnValues:              types.ReturnValueUpdatedOld,
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]types.AttributeValue{"name": s("x")}, out.Attributes)
	})

	for name, expr := range map[string]string{
		"remove unsupported": "REMOVE name",
		"functions":          "SET name = if_not_exists(name, :v)",
		"arithmetic":         "SET count = count + :v",
		"key attribute":      "SET sk = :v",
		"undefined value":    "SET name = :missing",
		"undefined name":     "SET #missing = :v",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := store.UpdateItem(ctx, &dynamodb.UpdateItemInput{
				TableName:                 &singleTableDesign.Name,
				Key:                       key,
				UpdateExpression:          ptrStr(expr),
				ExpressionAttributeValues: map[string]types.AttributeValue{":v": s("z")},
			})
			require.Error(t, err)
		})
	}
}
