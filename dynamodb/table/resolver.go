package table

import (
	"errors"
	"fmt"
	"sort"

	"github.com/acksell/refcache/dynamodb/cacheitem"
)

const (
	DefaultReferenceTable = "References"
	DefaultScheduleTable  = "Schedules"
)

var ErrNoTable = errors.New("no table configured for record type")

// ForVariant defines a table keyed by the variant's address attributes.
func ForVariant(name string, v cacheitem.Variant) TableDefinition {
	return TableDefinition{
		Name: name,
		KeyDefinitions: PrimaryKeyDefinition{
			PartitionKey: KeyDef{Name: v.PartitionName(), Kind: KeyKindS},
			SortKey:      KeyDef{Name: v.SortName(), Kind: KeyKindS},
		},
	}
}

// Resolver maps record variants to the table that stores them.
type Resolver struct {
	tables map[string]TableDefinition
}

// NewResolver stores object records in references and schedule records in
// schedules. An empty name leaves the variant without a table.
func NewResolver(references, schedules string) Resolver {
	r := Resolver{tables: map[string]TableDefinition{}}
	if references != "" {
		r.tables[cacheitem.ObjectItem.Name()] = ForVariant(references, cacheitem.ObjectItem)
	}
	if schedules != "" {
		r.tables[cacheitem.ScheduleItem.Name()] = ForVariant(schedules, cacheitem.ScheduleItem)
	}
	return r
}

func (r Resolver) Table(v cacheitem.Variant) (TableDefinition, error) {
	def, ok := r.tables[v.Name()]
	if !ok {
		return TableDefinition{}, fmt.Errorf("%w: %s", ErrNoTable, v.Name())
	}
	return def, nil
}

// Definitions lists every configured table, ordered by name.
func (r Resolver) Definitions() []TableDefinition {
	defs := make([]TableDefinition, 0, len(r.tables))
	for _, def := range r.tables {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
