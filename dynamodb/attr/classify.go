package attr

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// rule pairs a predicate with the tag it assigns. Rules are evaluated in
// order and the first match wins, so a string like "12" is N before it can
// be S and a []byte is B before it can be a list.
type rule struct {
	tag   Tag
	match func(v any) bool
}

// rules is assigned in init because isListLike classifies its members.
var rules []rule

func init() {
	rules = []rule{
		{TagBOOL, isBoolLike},
		{TagN, isNumLike},
		{TagS, isStrLike},
		{TagB, isBytesLike},
		{TagSS, eachElement(isStrLike)},
		{TagNS, eachElement(isNumLike)},
		{TagBS, eachElement(isBytesLike)},
		{TagM, isMapLike},
		{TagL, isListLike},
		{TagNULL, isNull},
	}
}

var (
	intPattern        = regexp.MustCompile(`^\s*[+-]?\d+\s*$`)
	scientificPattern = regexp.MustCompile(`^\s*[+-]?\d+(\.\d+)?[eE]-\d+\s*$`)
)

// Classify returns the wire tag for v, or false when no rule matches.
// A Value is already typed and reports its own tag.
func Classify(v any) (Tag, bool) {
	v = indirect(v)
	if tv, ok := v.(Value); ok {
		return tv.Tag, tv.Tag.Valid()
	}
	for _, r := range rules {
		if r.match(v) {
			return r.tag, true
		}
	}
	return "", false
}

var jsonNumberType = reflect.TypeOf(json.Number(""))

// indirect follows pointers so *T classifies like T. Nil pointers become nil,
// and named string and bool types are reduced to their underlying kind.
func indirect(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	switch {
	case rv.Kind() == reflect.String && rv.Type() != jsonNumberType:
		return rv.String()
	case rv.Kind() == reflect.Bool:
		return rv.Bool()
	}
	return rv.Interface()
}

func isNull(v any) bool { return v == nil }

func isBoolLike(v any) bool {
	switch b := v.(type) {
	case bool:
		return true
	case string:
		s := strings.TrimSpace(b)
		return strings.EqualFold(s, "true") || strings.EqualFold(s, "false")
	}
	return false
}

func isNumLike(v any) bool {
	switch n := v.(type) {
	case json.Number:
		_, err := n.Float64()
		return err == nil
	case string:
		return intPattern.MatchString(n) || scientificPattern.MatchString(n)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return false
}

func isStrLike(v any) bool {
	s, ok := v.(string)
	return ok && !isNumLike(s)
}

func isBytesLike(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8
}

func isSet(rv reflect.Value) bool {
	if rv.Kind() != reflect.Map {
		return false
	}
	elem := rv.Type().Elem()
	return elem.Kind() == reflect.Struct && elem.NumField() == 0
}

func isMapLike(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Map && !isSet(rv)
}

// elements returns the members of a slice, array or set. Byte slices are
// scalars and never have elements. Set members are ordered by their printed
// form so encoding is deterministic.
func elements(v any) ([]any, bool) {
	if isBytesLike(v) {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.Slice, rv.Kind() == reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	case isSet(rv):
		out := make([]any, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			out = append(out, k.Interface())
		}
		sort.Slice(out, func(i, j int) bool {
			return fmt.Sprint(out[i]) < fmt.Sprint(out[j])
		})
		return out, true
	}
	return nil, false
}

// eachElement matches collections whose members all satisfy pred.
// An empty collection matches, which makes an empty list an SS.
func eachElement(pred func(any) bool) func(any) bool {
	return func(v any) bool {
		elems, ok := elements(v)
		if !ok {
			return false
		}
		for _, e := range elems {
			if !pred(indirect(e)) {
				return false
			}
		}
		return true
	}
}

func isListLike(v any) bool {
	elems, ok := elements(v)
	if !ok {
		return false
	}
	for _, e := range elems {
		if _, ok := tagged(e); ok {
			continue
		}
		if _, ok := Classify(e); !ok {
			return false
		}
	}
	return true
}

// tagged reports whether v already is a wire value: a Value, or a one-key
// mapping whose key is a wire tag and whose payload fits that tag.
func tagged(v any) (Value, bool) {
	v = indirect(v)
	if tv, ok := v.(Value); ok {
		return tv, tv.Tag.Valid()
	}
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return Value{}, false
	}
	for k, payload := range m {
		tag := Tag(k)
		if !tag.Valid() {
			return Value{}, false
		}
		tv, err := fromPayload(tag, payload)
		if err != nil {
			return Value{}, false
		}
		return tv, true
	}
	return Value{}, false
}

// fromPayload builds a Value from an untyped payload as found in JSON-decoded
// documents, e.g. {"SS": ["a", "b"]}.
func fromPayload(tag Tag, payload any) (Value, error) {
	payload = indirect(payload)
	switch tag {
	case TagS:
		if s, ok := payload.(string); ok {
			return S(s), nil
		}
	case TagN:
		switch n := payload.(type) {
		case string:
			return N(n), nil
		case json.Number:
			return N(n.String()), nil
		}
		if isNumLike(payload) {
			s, err := formatNumber(payload)
			return N(s), err
		}
	case TagBOOL:
		if b, ok := payload.(bool); ok {
			return Bool(b), nil
		}
	case TagNULL:
		if b, ok := payload.(bool); ok && b {
			return Null(), nil
		}
	case TagB:
		b, err := decodeBase64(payload)
		if err == nil {
			return Bin(b), nil
		}
	case TagSS, TagNS:
		elems, ok := elements(payload)
		if !ok {
			break
		}
		strs := make([]string, len(elems))
		for i, e := range elems {
			s, ok := e.(string)
			if !ok {
				return Value{}, fmt.Errorf("%s member %d is %T", tag, i, e)
			}
			strs[i] = s
		}
		return Value{Tag: tag, Strs: strs}, nil
	case TagBS:
		elems, ok := elements(payload)
		if !ok {
			break
		}
		bs := make([][]byte, len(elems))
		for i, e := range elems {
			b, err := decodeBase64(e)
			if err != nil {
				return Value{}, err
			}
			bs[i] = b
		}
		return BinarySet(bs...), nil
	case TagM:
		m, ok := payload.(map[string]any)
		if !ok {
			break
		}
		out := make(map[string]Value, len(m))
		for k, e := range m {
			ev, ok := tagged(e)
			if !ok {
				return Value{}, fmt.Errorf("M member %q is not tagged", k)
			}
			out[k] = ev
		}
		return Map(out), nil
	case TagL:
		elems, ok := elements(payload)
		if !ok {
			break
		}
		out := make([]Value, len(elems))
		for i, e := range elems {
			ev, ok := tagged(e)
			if !ok {
				return Value{}, fmt.Errorf("L member %d is not tagged", i)
			}
			out[i] = ev
		}
		return List(out...), nil
	}
	return Value{}, fmt.Errorf("%T is not a %s payload", payload, tag)
}
