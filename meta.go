package refcache

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// OperationMeta identifies one logical cache operation across the engine,
// the store and remote functions.
type OperationMeta struct {
	// Op is the name of the operation, e.g. "insert" or "query".
	Op string
	// CausationID should provide an ID that can be used to trace
	// back to the request that caused the operation.
	CausationID string
	// CorrelationID groups together everything done for the same
	// logical operation.
	CorrelationID string
}

// NewOperationMeta starts a new operation with a fresh correlation id.
func NewOperationMeta(op string) OperationMeta {
	return OperationMeta{Op: op, CorrelationID: uuid.NewString()}
}

// Child starts a follow-up operation caused by m, sharing its correlation id.
func (m OperationMeta) Child(op string) OperationMeta {
	return OperationMeta{Op: op, CausationID: m.CorrelationID, CorrelationID: m.CorrelationID}
}

// LogAttr groups the metadata for structured logging.
func (m OperationMeta) LogAttr() slog.Attr {
	attrs := []any{slog.String("op", m.Op), slog.String("correlation_id", m.CorrelationID)}
	if m.CausationID != "" {
		attrs = append(attrs, slog.String("causation_id", m.CausationID))
	}
	return slog.Group("operation", attrs...)
}

type metaKey struct{}

func ContextWithMeta(ctx context.Context, m OperationMeta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

// MetaFromContext returns the metadata stored on ctx. Without one, a new
// operation named op is started.
func MetaFromContext(ctx context.Context, op string) OperationMeta {
	if m, ok := ctx.Value(metaKey{}).(OperationMeta); ok {
		return m.Child(op)
	}
	return NewOperationMeta(op)
}
