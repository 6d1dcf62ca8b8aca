package cacheitem

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleItem(t *testing.T) {
	t.Run("single scheduling field", func(t *testing.T) {
		rec, err := NewScheduleItem(Input{
			Client: "c",
			Source: "s",
			Data:   DataMap(map[string]any{"updated_at": "2024-01-01", "job": "sync"}),
		})
		require.NoError(t, err)
		assert.Equal(t, "updated_at", rec.Key)
		assert.Equal(t, "c-s-updated_at", rec.Partition)
		assert.Equal(t, "2024-01-01", rec.ID())
		assert.Equal(t, map[string]any{"job": "sync"}, rec.Data)
		assert.Equal(t, "schedule-type", rec.PartitionName())
		assert.Equal(t, "schedule-id", rec.SortName())
	})

	t.Run("explicit key", func(t *testing.T) {
		rec, err := NewScheduleItem(Input{Key: KeyName("nightly"), Client: "c", Source: "s"})
		require.NoError(t, err)
		assert.Equal(t, "c-s-nightly", rec.Partition)
		assert.Nil(t, rec.SortKey)
	})

	t.Run("key naming the scheduling field", func(t *testing.T) {
		rec, err := NewScheduleItem(Input{
			Key:    KeyName("startDate"),
			Client: "c",
			Source: "s",
			Data:   DataMap(map[string]any{"startDate": 20240101}),
		})
		require.NoError(t, err)
		assert.Equal(t, "c-s-startDate", rec.Partition)
		assert.Equal(t, "20240101", rec.ID())
		assert.Empty(t, rec.Data)
	})

	for name, in := range map[string]Input{
		"two scheduling fields": {
			Client: "c", Source: "s",
			Data: DataMap(map[string]any{"start_date": "a", "end_date": "b"}),
		},
		"key and scheduling field": {
			Key: KeyName("nightly"), Client: "c", Source: "s",
			Data: DataMap(map[string]any{"updatedSince": "a"}),
		},
		"no candidate": {
			Client: "c", Source: "s",
			Data: DataMap(map[string]any{"job": "sync"}),
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewScheduleItem(in)
			var ambiguous *AmbiguousPartitionKeyError
			require.True(t, errors.As(err, &ambiguous))
		})
	}
}
