package cacheitem

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"golang.org/x/exp/slices"
)

// Variant decides the attribute names of a record type and how its
// partition and sort key are derived. The set of variants is closed.
type Variant interface {
	Name() string
	PartitionName() string
	SortName() string

	bind(r *Record) error
}

var (
	CacheItem    Variant = cacheItem{}
	ObjectItem   Variant = objectItem{}
	ScheduleItem Variant = scheduleItem{}
)

func NewCacheItem(in Input) (*Record, error) { return New(CacheItem, in) }
func NewObjectItem(in Input) (*Record, error) { return New(ObjectItem, in) }
func NewScheduleItem(in Input) (*Record, error) { return New(ScheduleItem, in) }

func partitionFor(r *Record, key string) string {
	if key == "" {
		return fmt.Sprintf("%s-%s", r.Client, r.Source)
	}
	return fmt.Sprintf("%s-%s-%s", r.Client, r.Source, key)
}

// cacheItem is the generic record: partitioned by key, no derived sort key.
type cacheItem struct{}

func (cacheItem) Name() string { return "CacheItem" }
func (cacheItem) PartitionName() string { return "cache-type" }
func (cacheItem) SortName() string { return "cache-id" }

func (cacheItem) bind(r *Record) error {
	r.Partition = partitionFor(r, r.Key)
	return nil
}

// objectItem describes an object of a client's source. The key names the
// object type and the sort key identifies the object.
type objectItem struct{}

func (objectItem) Name() string { return "ObjectItem" }
func (objectItem) PartitionName() string { return "object-type" }
func (objectItem) SortName() string { return "object-id" }

func (o objectItem) bind(r *Record) error {
	if r.Key == "" {
		return &MissingRequiredFieldError{Field: "key"}
	}
	r.Partition = partitionFor(r, r.Key)
	if id, ok := o.objectID(r); ok {
		r.ResetID(id)
	}
	return nil
}

// objectID looks for the identifier under the sort attribute, then under the
// key field. Structured values describe the type itself rather than an
// instance, in which case the record is identified by its own key.
func (o objectItem) objectID(r *Record) (string, bool) {
	found, ok := present(r.Data, o.SortName())
	if !ok {
		found, ok = present(r.Data, r.Key)
	}
	if !ok {
		return "", false
	}
	if structured(found) {
		return r.Key, true
	}
	return stringify(found), true
}

// present reports a field that exists and holds a non-empty value.
func present(data map[string]any, field string) (any, bool) {
	v, ok := data[field]
	if !ok || v == nil {
		return nil, false
	}
	switch x := v.(type) {
	case string:
		return v, x != ""
	case bool:
		return v, x
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return v, rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v, rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v, rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return v, rv.Float() != 0
	}
	return v, true
}

// structured reports text that parses as JSON, or a native map or list.
// Alphanumeric text is an identifier even when it parses, so "123" is kept
// while "12.5", "-5" and "{...}" describe something other than an instance.
func structured(v any) bool {
	switch s := v.(type) {
	case string:
		if isAlnum(s) {
			return false
		}
		return json.Valid([]byte(strings.TrimSpace(s)))
	case []byte:
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return true
	}
	return false
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) {
			return false
		}
	}
	return true
}

// ScheduleFields are the data fields that can address a schedule. They
// only feed the address and are removed from the stored data.
var ScheduleFields = []string{
	"start_date", "startDate",
	"end_date", "endDate",
	"updated_at", "updatedAt",
	"updatedSince", "updated_since",
}

// scheduleItem is partitioned by the scheduling field it tracks and sorted
// by that field's value.
type scheduleItem struct{}

func (scheduleItem) Name() string { return "ScheduleItem" }
func (scheduleItem) PartitionName() string { return "schedule-type" }
func (scheduleItem) SortName() string { return "schedule-id" }

func (scheduleItem) bind(r *Record) error {
	var candidates []string
	if r.Key != "" {
		candidates = append(candidates, r.Key)
	}
	for _, f := range ScheduleFields {
		if _, ok := r.Data[f]; ok && f != r.Key {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) != 1 {
		return &AmbiguousPartitionKeyError{Candidates: candidates}
	}

	key := candidates[0]
	if v, ok := r.Data[key]; ok && v != nil && slices.Contains(ScheduleFields, key) {
		r.ResetID(stringify(v))
	}
	r.Key = key
	r.Partition = partitionFor(r, key)
	for _, f := range ScheduleFields {
		delete(r.Data, f)
	}
	return nil
}

