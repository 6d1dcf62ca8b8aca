package cacheitem

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/acksell/refcache/dynamodb/attr"
	"golang.org/x/exp/maps"
)

var variants = map[string]Variant{
	"cacheitem":    CacheItem,
	"objectitem":   ObjectItem,
	"scheduleitem": ScheduleItem,
}

// normalizeType lower-cases a type tag and drops punctuation, so
// "ObjectItem", "object_item" and "object-item" all match.
func normalizeType(t string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, t)
}

// LookupVariant resolves a type tag to its variant.
func LookupVariant(typ string) (Variant, error) {
	v, ok := variants[normalizeType(typ)]
	if !ok {
		return nil, &UnknownVariantError{Type: typ}
	}
	return v, nil
}

// Deserialize rebuilds a record from its envelope. A compiled payload is
// decoded and used as the record data, so the result only holds native
// values. An explicit id is bound after construction.
func Deserialize(env Envelope) (*Record, error) {
	v, err := LookupVariant(env.Type)
	if err != nil {
		return nil, err
	}
	data := maps.Clone(env.Data)
	if len(env.Compiled) > 0 {
		data, err = attr.DecodeRecord(env.Compiled)
		if err != nil {
			return nil, fmt.Errorf("failed to decode compiled %s: %w", env.Type, err)
		}
	}
	r, err := New(v, Input{
		Key:    KeyName(env.Key),
		Client: env.Client,
		Source: env.Source,
		Data:   DataMap(data),
	})
	if err != nil {
		return nil, err
	}
	if env.ID != nil {
		r.ResetID(*env.ID)
	}
	return r, nil
}

// DeserializeJSON decodes a JSON envelope and rebuilds its record. Numbers
// in data keep their literal text. The envelope may also arrive as a JSON
// string holding the envelope text.
func DeserializeJSON(b []byte) (*Record, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var text string
		if err := json.Unmarshal(b, &text); err != nil {
			return nil, fmt.Errorf("failed to unmarshal envelope text: %w", err)
		}
		b = bytes.TrimSpace([]byte(text))
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return Deserialize(env)
}

// Reconcile returns a copy of local whose data is remote overlaid with the
// local data. Local values win.
func Reconcile(local *Record, remote map[string]any) *Record {
	merged := local.clone()
	data := maps.Clone(remote)
	if data == nil {
		data = map[string]any{}
	}
	maps.Copy(data, local.Data)
	merged.Data = data
	return merged
}
