package attr

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ReservedUpdateField is a control flag carried in record data. It never
// reaches the store.
const ReservedUpdateField = "is_update"

// Encode converts a native value into its tagged wire form.
func Encode(v any) (Value, error) {
	v = indirect(v)
	tag, ok := Classify(v)
	if !ok {
		return Value{}, &TypeKindError{Value: v}
	}
	if tv, ok := v.(Value); ok {
		return tv, nil
	}
	switch tag {
	case TagNULL:
		return Null(), nil
	case TagBOOL:
		return Bool(truthy(v)), nil
	case TagN:
		s, err := formatNumber(v)
		if err != nil {
			return Value{}, err
		}
		return N(s), nil
	case TagS:
		return S(v.(string)), nil
	case TagB:
		return Bin(reflect.ValueOf(v).Bytes()), nil
	case TagSS, TagNS:
		elems, _ := elements(v)
		strs := make([]string, len(elems))
		for i, e := range elems {
			e = indirect(e)
			if tag == TagSS {
				strs[i] = e.(string)
				continue
			}
			s, err := formatNumber(e)
			if err != nil {
				return Value{}, err
			}
			strs[i] = s
		}
		return Value{Tag: tag, Strs: strs}, nil
	case TagBS:
		elems, _ := elements(v)
		bs := make([][]byte, len(elems))
		for i, e := range elems {
			bs[i] = reflect.ValueOf(indirect(e)).Bytes()
		}
		return BinarySet(bs...), nil
	case TagM:
		rv := reflect.ValueOf(v)
		out := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := fmt.Sprint(iter.Key().Interface())
			ev, err := encodeMember(iter.Value().Interface())
			if err != nil {
				return Value{}, fmt.Errorf("map member %q: %w", k, err)
			}
			out[k] = ev
		}
		return Map(out), nil
	case TagL:
		elems, _ := elements(v)
		out := make([]Value, len(elems))
		for i, e := range elems {
			ev, err := encodeMember(e)
			if err != nil {
				return Value{}, fmt.Errorf("list member %d: %w", i, err)
			}
			out[i] = ev
		}
		return List(out...), nil
	}
	return Value{}, &TypeKindError{Value: v}
}

// encodeMember lets already-tagged members of M and L pass through.
func encodeMember(v any) (Value, error) {
	if tv, ok := tagged(v); ok {
		return tv, nil
	}
	return Encode(v)
}

// EncodeRecord encodes every field of data except the reserved update flag.
func EncodeRecord(data map[string]any) (map[string]Value, error) {
	out := make(map[string]Value, len(data))
	for k, v := range data {
		if k == ReservedUpdateField {
			continue
		}
		ev, err := Encode(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = ev
	}
	return out, nil
}

// formatNumber renders a number-like value as an N string. Integral floats
// keep a trailing ".0" so they decode back to floats.
func formatNumber(v any) (string, error) {
	switch n := indirect(v).(type) {
	case string:
		return strings.TrimSpace(n), nil
	case json.Number:
		return n.String(), nil
	}
	rv := reflect.ValueOf(indirect(v))
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		bits := 64
		if rv.Kind() == reflect.Float32 {
			bits = 32
		}
		s := strconv.FormatFloat(rv.Float(), 'f', -1, bits)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s, nil
	}
	return "", &TypeKindError{Value: v}
}

// truthy is the BOOL coercion: case-insensitive "true" strings and
// non-zero numbers are true.
func truthy(v any) bool {
	switch b := indirect(v).(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(strings.TrimSpace(b), "true")
	case json.Number:
		f, err := b.Float64()
		return err == nil && f != 0
	}
	rv := reflect.ValueOf(indirect(v))
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	}
	return false
}
