package cacheitem

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/acksell/refcache/dynamodb/attr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTemplateItem(t *testing.T) *Record {
	t.Helper()
	rec, err := NewObjectItem(Input{
		Key:    KeyName("template"),
		Client: "fakeCustomer",
		Source: "fakeDataSource",
		Data: DataMap(map[string]any{
			"some":                   123,
			"keys":                   "in-a",
			"cool-scraping-template": []any{123, 321},
		}),
	})
	require.NoError(t, err)
	return rec
}

func TestObjectItem_Compiled(t *testing.T) {
	rec := newTemplateItem(t)
	require.Nil(t, rec.SortKey)
	rec.ResetID("some-fake-template")

	env, err := rec.Serialize()
	require.NoError(t, err)
	assert.Equal(t, map[string]attr.Value{
		"some":                   attr.N("123"),
		"keys":                   attr.S("in-a"),
		"cool-scraping-template": attr.NumberSet("123", "321"),
		"object-type":            attr.S("fakeCustomer-fakeDataSource-template"),
		"object-id":              attr.S("some-fake-template"),
	}, env.Compiled)
	assert.Equal(t, "ObjectItem", env.Type)
	assert.Equal(t, "template", env.Key)
	require.NotNil(t, env.ID)
	assert.Equal(t, "some-fake-template", *env.ID)

	compiled, err := rec.ToRecord()
	require.NoError(t, err)
	assert.Equal(t, env.Compiled, compiled)
}

func TestObjectItem_JSON(t *testing.T) {
	rec := newTemplateItem(t)
	rec.ResetID("some-fake-template")

	b, err := json.Marshal(rec)
	require.NoError(t, err)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &got))
	assert.JSONEq(t, `{
		"some": {"N": "123"},
		"keys": {"S": "in-a"},
		"cool-scraping-template": {"NS": ["123", "321"]},
		"object-type": {"S": "fakeCustomer-fakeDataSource-template"},
		"object-id": {"S": "some-fake-template"}
	}`, string(got["compiled"]))
	assert.JSONEq(t, `"some-fake-template"`, string(got["id"]))
	assert.JSONEq(t, `{
		"object-type": {"S": "fakeCustomer-fakeDataSource-template"},
		"object-id": {"S": "some-fake-template"}
	}`, string(got["address"]))
}

func TestObjectItem_SortKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		data map[string]any
		want *string
	}{
		{
			name: "numeric id under key",
			key:  "agentId",
			data: map[string]any{"agentId": 123},
			want: ptr("123"),
		},
		{
			name: "sort attribute wins",
			key:  "agentId",
			data: map[string]any{"agentId": 1, "object-id": 65432},
			want: ptr("65432"),
		},
		{
			name: "empty sort attribute falls through",
			key:  "agentId",
			data: map[string]any{"agentId": "A7", "object-id": ""},
			want: ptr("A7"),
		},
		{
			name: "json text addresses itself",
			key:  "template",
			data: map[string]any{"template": `{"fields": ["a", "b"]}`},
			want: ptr("template"),
		},
		{
			name: "native structure addresses itself",
			key:  "template",
			data: map[string]any{"template": map[string]any{"fields": []any{"a"}}},
			want: ptr("template"),
		},
		{
			name: "non alphanumeric value used as is",
			key:  "agentId",
			data: map[string]any{"agentId": "abc-123"},
			want: ptr("abc-123"),
		},
		{
			name: "numeric text addresses itself",
			key:  "score",
			data: map[string]any{"score": "12.5"},
			want: ptr("score"),
		},
		{
			name: "negative number text addresses itself",
			key:  "delta",
			data: map[string]any{"delta": "-5"},
			want: ptr("delta"),
		},
		{
			name: "float id",
			key:  "score",
			data: map[string]any{"score": 23.5},
			want: ptr("23.5"),
		},
		{
			name: "nothing found",
			key:  "agentId",
			data: map[string]any{"name": "x"},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewObjectItem(Input{Key: KeyName(tt.key), Client: "c", Source: "s", Data: DataMap(tt.data)})
			require.NoError(t, err)
			assert.Equal(t, "c-s-"+tt.key, rec.Partition)
			assert.Equal(t, tt.want, rec.SortKey)
		})
	}
}

func TestObjectItem_RequiresKey(t *testing.T) {
	_, err := NewObjectItem(Input{Client: "c", Source: "s"})
	var missing *MissingRequiredFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "key", missing.Field)
}

func TestNew_ClientAndSource(t *testing.T) {
	t.Run("missing client", func(t *testing.T) {
		_, err := NewCacheItem(Input{Key: KeyName("k"), Source: "s"})
		var missing *MissingRequiredFieldError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "client", missing.Field)
	})

	t.Run("missing source", func(t *testing.T) {
		_, err := NewCacheItem(Input{Key: KeyName("k"), Client: "c", Data: DataMap(map[string]any{"source": ""})})
		var missing *MissingRequiredFieldError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "source", missing.Field)
	})

	t.Run("taken from data", func(t *testing.T) {
		rec, err := NewCacheItem(Input{Key: KeyName("k"), Data: DataMap(map[string]any{"client": "dc", "source": "ds"})})
		require.NoError(t, err)
		assert.Equal(t, "dc-ds-k", rec.Partition)
	})

	t.Run("explicit wins over data", func(t *testing.T) {
		rec, err := NewCacheItem(Input{Key: KeyName("k"), Client: "c", Source: "s", Data: DataMap(map[string]any{"client": "dc"})})
		require.NoError(t, err)
		assert.Equal(t, "c", rec.Client)
		assert.Equal(t, "c-s-k", rec.Partition)
	})
}

func TestCacheItem_Address(t *testing.T) {
	rec, err := NewCacheItem(Input{Client: "c", Source: "s"})
	require.NoError(t, err)
	assert.Equal(t, map[string]attr.Value{"cache-type": attr.S("c-s")}, rec.Address())

	rec.ResetID("1")
	assert.Equal(t, map[string]attr.Value{
		"cache-type": attr.S("c-s"),
		"cache-id":   attr.S("1"),
	}, rec.Address())
}

func TestResetID_Idempotent(t *testing.T) {
	rec := newTemplateItem(t)
	rec.ResetID("x")
	first := rec.Address()
	rec.ResetID("x")
	assert.Equal(t, first, rec.Address())
	assert.Equal(t, "x", rec.ID())
}

func TestNew_KeyAddress(t *testing.T) {
	rec, err := NewObjectItem(Input{
		Key: KeyAddress(map[string]any{
			"object-type": map[string]any{"S": "c-s-agent"},
			"object-id":   attr.S("42"),
		}),
		Client: "c",
		Source: "s",
	})
	require.NoError(t, err)
	assert.Equal(t, "agent", rec.Key)
	assert.Equal(t, "c-s-agent", rec.Partition)
	assert.Equal(t, "42", rec.ID())

	_, err = NewObjectItem(Input{
		Key:    KeyAddress(map[string]any{"object-type": "other-s-agent"}),
		Client: "c",
		Source: "s",
	})
	require.Error(t, err)
}

func TestData_Resolve(t *testing.T) {
	t.Run("json object", func(t *testing.T) {
		m, err := DataJSON(`{"a": 1, "b": "x"}`).Resolve()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": json.Number("1"), "b": "x"}, m)
	})

	t.Run("json array rejected", func(t *testing.T) {
		_, err := DataJSON(`[1, 2]`).Resolve()
		require.Error(t, err)
	})

	t.Run("columns", func(t *testing.T) {
		m, err := DataColumns("a", " b ", "").Resolve()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": nil, "b": nil}, m)
	})

	t.Run("parsed column list", func(t *testing.T) {
		m, err := ParseData("name, age").Resolve()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": nil, "age": nil}, m)
	})

	t.Run("parsed json", func(t *testing.T) {
		m, err := ParseData(`{"name": "x"}`).Resolve()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "x"}, m)
	})

	t.Run("unusable text", func(t *testing.T) {
		_, err := ParseData("justone").Resolve()
		require.ErrorIs(t, err, ErrUnusableData)
	})

	t.Run("map is copied", func(t *testing.T) {
		src := map[string]any{"a": 1}
		m, err := DataMap(src).Resolve()
		require.NoError(t, err)
		m["b"] = 2
		assert.Len(t, src, 1)
	})
}

func TestToAttributeValues(t *testing.T) {
	rec := newTemplateItem(t)
	rec.ResetID("id-1")
	avs, err := rec.ToAttributeValues()
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "id-1"}, avs["object-id"])
	assert.Equal(t, &types.AttributeValueMemberNS{Value: []string{"123", "321"}}, avs["cool-scraping-template"])
}

func ptr(s string) *string { return &s }
