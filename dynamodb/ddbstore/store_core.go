package ddbstore

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/acksell/refcache/dynamodb/ddbiface"
	"github.com/acksell/refcache/dynamodb/table"
	"github.com/dgraph-io/badger/v4"
)

// Store is a local stand-in for DynamoDB backed by BadgerDB. It implements
// the item and query calls the engines use, with equality key conditions,
// SET updates and projections.
type Store struct {
	db     *badger.DB
	tables map[string]*tableSchema
}

var _ ddbiface.AWSDynamoClientV2 = (*Store)(nil)

type tableSchema struct {
	definition table.TableDefinition
}

func (t *tableSchema) encodeKey(pk table.PrimaryKey) ([]byte, error) {
	return encodeBadgerKey(t.definition.Name, pk)
}

// StoreOptions configures the BadgerDB store.
type StoreOptions struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger receives BadgerDB's own logs. If nil, they are discarded.
	Logger *slog.Logger
}

// New opens a store holding the given tables.
func New(opts StoreOptions, defs ...table.TableDefinition) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)

	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(badgerLogger{log: opts.Logger.With("component", "badger")})
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	tables := make(map[string]*tableSchema, len(defs))
	for _, def := range defs {
		tables[def.Name] = &tableSchema{definition: def}
	}

	return &Store{
		db:     db,
		tables: tables,
	}, nil
}

// Close closes the BadgerDB database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getTable(tableName *string) (*tableSchema, error) {
	if tableName == nil {
		return nil, fmt.Errorf("table name is required")
	}
	schema, ok := s.tables[*tableName]
	if !ok {
		return nil, fmt.Errorf("table not found: %s", *tableName)
	}
	return schema, nil
}

// badgerLogger routes BadgerDB logs to slog.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
