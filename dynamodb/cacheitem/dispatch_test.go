package cacheitem

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/acksell/refcache/dynamodb/attr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeserialize_UnknownVariant(t *testing.T) {
	_, err := Deserialize(Envelope{Type: "MysteryItem", Client: "c", Source: "s"})
	var unknown *UnknownVariantError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "MysteryItem", unknown.Type)
}

func TestLookupVariant_Normalized(t *testing.T) {
	for _, typ := range []string{"ObjectItem", "object_item", "OBJECT-ITEM", "objectitem"} {
		v, err := LookupVariant(typ)
		require.NoError(t, err, typ)
		assert.Equal(t, ObjectItem, v)
	}
}

func TestDeserialize_Compiled(t *testing.T) {
	rec := newTemplateItem(t)
	rec.ResetID("some-fake-template")
	b, err := json.Marshal(rec)
	require.NoError(t, err)

	got, err := DeserializeJSON(b)
	require.NoError(t, err)
	assert.Equal(t, "ObjectItem", got.Type())
	assert.Equal(t, rec.Partition, got.Partition)
	assert.Equal(t, "some-fake-template", got.ID())
	assert.Equal(t, 123, got.Data["some"])
	assert.Equal(t, "in-a", got.Data["keys"])
	assert.Equal(t, []any{123, 321}, got.Data["cool-scraping-template"])
	assert.Equal(t, rec.Address(), got.Address())
}

func TestDeserialize_PlainData(t *testing.T) {
	got, err := Deserialize(Envelope{
		Type:   "cache_item",
		Key:    "k",
		Client: "c",
		Source: "s",
		Data:   map[string]any{"a": "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "CacheItem", got.Type())
	assert.Nil(t, got.SortKey)
	assert.Equal(t, map[string]any{"a": "b"}, got.Data)
}

func TestDeserializeJSON_PlainData(t *testing.T) {
	const env = `{"type":"ObjectItem","key":"agentId","client":"c","source":"s","data":{"agentId":"a1","count":5,"ratio":0.5}}`

	check := func(t *testing.T, got *Record) {
		t.Helper()
		assert.Equal(t, "a1", got.ID())
		compiled, err := got.ToRecord()
		require.NoError(t, err)
		assert.Equal(t, attr.N("5"), compiled["count"])
		assert.Equal(t, attr.N("0.5"), compiled["ratio"])
	}

	t.Run("object", func(t *testing.T) {
		got, err := DeserializeJSON([]byte(env))
		require.NoError(t, err)
		check(t, got)
	})

	t.Run("json text", func(t *testing.T) {
		text, err := json.Marshal(env)
		require.NoError(t, err)
		got, err := DeserializeJSON(text)
		require.NoError(t, err)
		check(t, got)
	})
}

func TestDeserialize_Schedule(t *testing.T) {
	rec, err := NewScheduleItem(Input{
		Client: "c",
		Source: "s",
		Data:   DataMap(map[string]any{"updated_at": "2024-01-01", "job": "sync"}),
	})
	require.NoError(t, err)
	env, err := rec.Serialize()
	require.NoError(t, err)

	got, err := Deserialize(env)
	require.NoError(t, err)
	assert.Equal(t, rec.Address(), got.Address())
	assert.Equal(t, "sync", got.Data["job"])
}

func TestReconcile(t *testing.T) {
	local, err := NewObjectItem(Input{
		Key:    KeyName("agent"),
		Client: "c",
		Source: "s",
		Data:   DataMap(map[string]any{"agent": "A1", "name": "local"}),
	})
	require.NoError(t, err)

	merged := Reconcile(local, map[string]any{"name": "remote", "extra": 1})
	assert.Equal(t, map[string]any{"agent": "A1", "name": "local", "extra": 1}, merged.Data)
	assert.Equal(t, local.Address(), merged.Address())
	assert.NotContains(t, local.Data, "extra")
}

func TestUpdateExpressionValues(t *testing.T) {
	rec, err := NewObjectItem(Input{
		Key:    KeyName("agent"),
		Client: "c",
		Source: "s",
		Data: DataMap(map[string]any{
			"agent":        "A1",
			"count":        2,
			"display-name": "Bob",
			"is_update":    true,
		}),
	})
	require.NoError(t, err)

	u, err := rec.UpdateExpressionValues([]string{"c-s-agent", "A1"})
	require.NoError(t, err)
	assert.Equal(t, "SET count = :val_count, #display_name = :val_display_name", u.Expression())
	assert.Equal(t, map[string]string{"#display_name": "display-name"}, u.AttributeNames())
	assert.Equal(t, map[string]attr.Value{
		":val_count":        attr.N("2"),
		":val_display_name": attr.S("Bob"),
	}, u.Values)

	avs, err := u.AttributeValues()
	require.NoError(t, err)
	assert.Len(t, avs, 2)
}

func TestUpdateExpressionValues_Empty(t *testing.T) {
	rec, err := NewCacheItem(Input{Key: KeyName("k"), Client: "c", Source: "s"})
	require.NoError(t, err)
	u, err := rec.UpdateExpressionValues(nil)
	require.NoError(t, err)
	assert.Equal(t, "", u.Expression())
	assert.Nil(t, u.AttributeNames())
}
