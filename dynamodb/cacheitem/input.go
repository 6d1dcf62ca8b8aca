package cacheitem

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/acksell/refcache/dynamodb/attr"
	"golang.org/x/exp/maps"
)

// Input is everything needed to build a record.
// Client and Source take precedence over same-named fields in Data.
type Input struct {
	Key    Key
	Client string
	Source string
	Data   Data
}

// Key identifies the record either by name or by a full composite address
// as returned by Record.Address.
type Key struct {
	name    string
	address map[string]any
}

// KeyName keys a record by a plain name.
func KeyName(name string) Key {
	return Key{name: name}
}

// KeyAddress keys a record by its composite address. Values may be plain
// strings, attr.Values or {"S": "..."} payloads.
func KeyAddress(address map[string]any) Key {
	return Key{address: address}
}

type dataKind int

const (
	dataNone dataKind = iota
	dataMap
	dataJSON
	dataColumns
	dataText
)

// Data is the record payload in one of the accepted input shapes. It is
// resolved to a map once, when the record is built.
type Data struct {
	kind    dataKind
	fields  map[string]any
	text    string
	columns []string
}

// DataMap uses m as the record data. m is copied.
func DataMap(m map[string]any) Data {
	return Data{kind: dataMap, fields: m}
}

// DataJSON parses text as a JSON object.
func DataJSON(text string) Data {
	return Data{kind: dataJSON, text: text}
}

// DataColumns declares fields without values, as used by reads that only
// name the columns they want back.
func DataColumns(columns ...string) Data {
	return Data{kind: dataColumns, columns: columns}
}

// ParseData accepts either a JSON object or a comma separated column list.
func ParseData(text string) Data {
	return Data{kind: dataText, text: text}
}

// Resolve returns the canonical map form of d.
func (d Data) Resolve() (map[string]any, error) {
	switch d.kind {
	case dataNone:
		return map[string]any{}, nil
	case dataMap:
		if d.fields == nil {
			return map[string]any{}, nil
		}
		return maps.Clone(d.fields), nil
	case dataJSON:
		m, err := parseJSONObject(d.text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse data: %w", err)
		}
		return m, nil
	case dataColumns:
		return columnMap(d.columns), nil
	case dataText:
		if m, err := parseJSONObject(d.text); err == nil {
			return m, nil
		}
		if strings.Contains(d.text, ",") {
			return columnMap(strings.Split(d.text, ",")), nil
		}
		return nil, ErrUnusableData
	}
	return nil, fmt.Errorf("unknown data kind %d", d.kind)
}

func parseJSONObject(text string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("expected a JSON object, got %q", text)
	}
	return m, nil
}

func columnMap(columns []string) map[string]any {
	m := make(map[string]any, len(columns))
	for _, c := range columns {
		if c = strings.TrimSpace(c); c != "" {
			m[c] = nil
		}
	}
	return m
}

// keyString extracts a plain string from an address value.
func keyString(v any) (string, bool) {
	switch k := v.(type) {
	case nil:
		return "", false
	case string:
		return k, true
	case attr.Value:
		return k.Str, k.Tag == attr.TagS || k.Tag == attr.TagN
	case map[string]any:
		for _, tag := range []string{"S", "N"} {
			if s, ok := k[tag].(string); ok && len(k) == 1 {
				return s, true
			}
		}
		return "", false
	}
	return stringify(v), true
}
