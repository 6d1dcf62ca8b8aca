// Package engine runs cache operations for records: inserts, queries and
// removals through remote functions, and direct reads and writes against
// the store.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/acksell/refcache"
	"github.com/acksell/refcache/dynamodb/cacheitem"
	"github.com/acksell/refcache/dynamodb/ddbiface"
	"github.com/acksell/refcache/dynamodb/remote"
	"github.com/acksell/refcache/dynamodb/table"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	DefaultInsertFunction = "uOne-ingest-associations-insert"
	DefaultQueryFunction  = "uOne-ingest-associations-query"
	DefaultRemoveFunction = "uOne-ingest-associations-remove"
)

var (
	ErrNoInvoker = errors.New("engine has no remote invoker")
	ErrNoStore   = errors.New("engine has no datastore")
)

// Functions names the remote function behind each operation.
type Functions struct {
	Insert string
	Query  string
	Remove string
}

func DefaultFunctions() Functions {
	return Functions{
		Insert: DefaultInsertFunction,
		Query:  DefaultQueryFunction,
		Remove: DefaultRemoveFunction,
	}
}

// Request names the records an operation works on.
type Request struct {
	Key    string
	Client string
	Source string
	Data   cacheitem.Data
}

// Engine runs operations against a remote invoker and a datastore. Either
// may be nil, in which case the operations needing it fail.
type Engine struct {
	invoker   remote.Invoker
	ddb       ddbiface.AWSDynamoClientV2
	tables    table.Resolver
	functions Functions
	logger    *slog.Logger
	metrics   *metrics
}

type Option func(*options)

type options struct {
	tables    table.Resolver
	functions Functions
	logger    *slog.Logger
	metrics   *metrics
}

// WithTables sets the variant to table mapping.
// Defaults to the References and Schedules tables.
func WithTables(r table.Resolver) Option {
	return func(o *options) {
		o.tables = r
	}
}

// WithFunctions overrides the remote function names.
func WithFunctions(f Functions) Option {
	return func(o *options) {
		o.functions = f
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics exports operation counters and latencies on m.
// See [NewMetrics].
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m.m
	}
}

func New(invoker remote.Invoker, ddb ddbiface.AWSDynamoClientV2, opts ...Option) *Engine {
	o := options{
		tables:    table.NewResolver(table.DefaultReferenceTable, table.DefaultScheduleTable),
		functions: DefaultFunctions(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = newMetrics()
	}
	return &Engine{
		invoker:   invoker,
		ddb:       ddb,
		tables:    o.tables,
		functions: o.functions,
		logger:    o.logger,
		metrics:   o.metrics,
	}
}

// begin starts an operation. The returned func records its outcome and must
// be deferred with a pointer to the operation's error.
func (e *Engine) begin(ctx context.Context, op string) (context.Context, *slog.Logger, func(*error)) {
	meta := refcache.MetaFromContext(ctx, op)
	log := e.logger.With(meta.LogAttr())
	start := time.Now()
	log.DebugContext(ctx, "operation started")
	return refcache.ContextWithMeta(ctx, meta), log, func(errp *error) {
		outcome := outcomeSuccess
		if *errp != nil {
			outcome = outcomeError
			log.ErrorContext(ctx, "operation failed", "error", *errp)
		} else {
			log.DebugContext(ctx, "operation finished", "duration", time.Since(start))
		}
		e.metrics.observe(op, outcome, time.Since(start))
	}
}

func (e *Engine) invoke(ctx context.Context, log *slog.Logger, function string, payload any) (remote.Response, error) {
	if e.invoker == nil {
		return remote.Response{}, ErrNoInvoker
	}
	log.DebugContext(ctx, "invoking remote function", "function", function)
	return e.invoker.Invoke(ctx, function, payload)
}

func sortedKeys(m map[string]any) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
