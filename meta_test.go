package refcache

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOperationMeta(t *testing.T) {
	m := NewOperationMeta("insert")
	assert.Equal(t, "insert", m.Op)
	_, err := uuid.Parse(m.CorrelationID)
	require.NoError(t, err)
	assert.Empty(t, m.CausationID)
	assert.NotEqual(t, m.CorrelationID, NewOperationMeta("insert").CorrelationID)
}

func TestMetaFromContext(t *testing.T) {
	t.Run("empty context starts a new operation", func(t *testing.T) {
		m := MetaFromContext(context.Background(), "query")
		assert.Equal(t, "query", m.Op)
		assert.NotEmpty(t, m.CorrelationID)
	})

	t.Run("stored metadata is continued", func(t *testing.T) {
		parent := NewOperationMeta("cli")
		ctx := ContextWithMeta(context.Background(), parent)
		m := MetaFromContext(ctx, "insert")
		assert.Equal(t, "insert", m.Op)
		assert.Equal(t, parent.CorrelationID, m.CorrelationID)
		assert.Equal(t, parent.CorrelationID, m.CausationID)
	})
}

func TestOperationMeta_LogAttr(t *testing.T) {
	attr := NewOperationMeta("remove").LogAttr()
	assert.Equal(t, "operation", attr.Key)
	assert.Len(t, attr.Value.Group(), 2)

	child := NewOperationMeta("cli").Child("remove").LogAttr()
	assert.Len(t, child.Value.Group(), 3)
}
