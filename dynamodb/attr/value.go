package attr

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/exp/constraints"
)

// Tag is one of the wire kinds understood by the store.
type Tag string

const (
	TagNULL Tag = "NULL"
	TagBOOL Tag = "BOOL"
	TagN    Tag = "N"
	TagS    Tag = "S"
	TagB    Tag = "B"
	TagSS   Tag = "SS"
	TagNS   Tag = "NS"
	TagBS   Tag = "BS"
	TagM    Tag = "M"
	TagL    Tag = "L"
)

var tags = map[Tag]struct{}{
	TagNULL: {}, TagBOOL: {}, TagN: {}, TagS: {}, TagB: {},
	TagSS: {}, TagNS: {}, TagBS: {}, TagM: {}, TagL: {},
}

// Valid reports whether t is part of the wire tag set.
func (t Tag) Valid() bool {
	_, ok := tags[t]
	return ok
}

// Value is a tagged wire value. Only the field matching Tag is meaningful:
//
//	N, S        Str
//	BOOL        Bool
//	NULL        Bool (always true)
//	B           Bytes
//	SS, NS      Strs
//	BS          ByteSet
//	M           Map
//	L           List
type Value struct {
	Tag     Tag
	Str     string
	Bool    bool
	Bytes   []byte
	Strs    []string
	ByteSet [][]byte
	Map     map[string]Value
	List    []Value
}

func S(s string) Value { return Value{Tag: TagS, Str: s} }
func N(s string) Value { return Value{Tag: TagN, Str: s} }
func Bool(b bool) Value { return Value{Tag: TagBOOL, Bool: b} }
func Null() Value { return Value{Tag: TagNULL, Bool: true} }
func Bin(b []byte) Value { return Value{Tag: TagB, Bytes: b} }
func StringSet(ss ...string) Value { return Value{Tag: TagSS, Strs: ss} }
func NumberSet(ns ...string) Value { return Value{Tag: TagNS, Strs: ns} }
func BinarySet(bs ...[]byte) Value { return Value{Tag: TagBS, ByteSet: bs} }
func Map(m map[string]Value) Value { return Value{Tag: TagM, Map: m} }
func List(l ...Value) Value { return Value{Tag: TagL, List: l} }

// Number encodes a Go number with the same formatting Encode uses.
func Number[T constraints.Integer | constraints.Float](n T) Value {
	s, _ := formatNumber(n)
	return N(s)
}

// Wire returns the untagged payload carried by v.
func (v Value) Wire() any {
	switch v.Tag {
	case TagN, TagS:
		return v.Str
	case TagBOOL:
		return v.Bool
	case TagNULL:
		return true
	case TagB:
		return v.Bytes
	case TagSS, TagNS:
		return v.Strs
	case TagBS:
		return v.ByteSet
	case TagM:
		return v.Map
	case TagL:
		return v.List
	}
	return nil
}

func (v Value) String() string {
	return fmt.Sprintf("{%s: %v}", v.Tag, v.Wire())
}

// MarshalJSON writes v in the one-key {"TAG": payload} shape.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Tag.Valid() {
		return nil, &UnknownTagError{Tag: string(v.Tag)}
	}
	return json.Marshal(map[string]any{string(v.Tag): v.Wire()})
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal tagged value: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("tagged value must have exactly one key, got %d", len(raw))
	}
	for k, payload := range raw {
		tag := Tag(k)
		if !tag.Valid() {
			return &UnknownTagError{Tag: k}
		}
		out := Value{Tag: tag}
		var err error
		switch tag {
		case TagS:
			err = json.Unmarshal(payload, &out.Str)
		case TagN:
			out.Str, err = unmarshalNumber(payload)
		case TagBOOL:
			err = json.Unmarshal(payload, &out.Bool)
		case TagNULL:
			out.Bool = true
		case TagB:
			err = json.Unmarshal(payload, &out.Bytes)
		case TagSS:
			err = json.Unmarshal(payload, &out.Strs)
		case TagNS:
			err = unmarshalNumberSet(payload, &out.Strs)
		case TagBS:
			err = json.Unmarshal(payload, &out.ByteSet)
		case TagM:
			err = json.Unmarshal(payload, &out.Map)
		case TagL:
			err = json.Unmarshal(payload, &out.List)
		}
		if err != nil {
			return fmt.Errorf("failed to unmarshal %s payload: %w", tag, err)
		}
		*v = out
	}
	return nil
}

// N payloads are strings on the wire, but plain JSON numbers are accepted too.
func unmarshalNumber(payload []byte) (string, error) {
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return s, nil
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func unmarshalNumberSet(payload []byte, out *[]string) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return err
	}
	ns := make([]string, len(raw))
	for i, r := range raw {
		s, err := unmarshalNumber(r)
		if err != nil {
			return err
		}
		ns[i] = s
	}
	*out = ns
	return nil
}

// ToAttributeValue converts v into its DynamoDB SDK representation.
func ToAttributeValue(v Value) (types.AttributeValue, error) {
	switch v.Tag {
	case TagS:
		return &types.AttributeValueMemberS{Value: v.Str}, nil
	case TagN:
		return &types.AttributeValueMemberN{Value: v.Str}, nil
	case TagBOOL:
		return &types.AttributeValueMemberBOOL{Value: v.Bool}, nil
	case TagNULL:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case TagB:
		return &types.AttributeValueMemberB{Value: v.Bytes}, nil
	case TagSS:
		return &types.AttributeValueMemberSS{Value: v.Strs}, nil
	case TagNS:
		return &types.AttributeValueMemberNS{Value: v.Strs}, nil
	case TagBS:
		return &types.AttributeValueMemberBS{Value: v.ByteSet}, nil
	case TagM:
		m, err := ToAttributeValueMap(v.Map)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	case TagL:
		l := make([]types.AttributeValue, len(v.List))
		for i, e := range v.List {
			av, err := ToAttributeValue(e)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			l[i] = av
		}
		return &types.AttributeValueMemberL{Value: l}, nil
	}
	return nil, &UnknownTagError{Tag: string(v.Tag)}
}

func ToAttributeValueMap(m map[string]Value) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(m))
	for k, v := range m {
		av, err := ToAttributeValue(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = av
	}
	return out, nil
}

// FromAttributeValue converts a DynamoDB SDK value into a Value.
func FromAttributeValue(av types.AttributeValue) (Value, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return S(v.Value), nil
	case *types.AttributeValueMemberN:
		return N(v.Value), nil
	case *types.AttributeValueMemberBOOL:
		return Bool(v.Value), nil
	case *types.AttributeValueMemberNULL:
		return Null(), nil
	case *types.AttributeValueMemberB:
		return Bin(v.Value), nil
	case *types.AttributeValueMemberSS:
		return StringSet(v.Value...), nil
	case *types.AttributeValueMemberNS:
		return NumberSet(v.Value...), nil
	case *types.AttributeValueMemberBS:
		return BinarySet(v.Value...), nil
	case *types.AttributeValueMemberM:
		m, err := FromAttributeValueMap(v.Value)
		if err != nil {
			return Value{}, err
		}
		return Map(m), nil
	case *types.AttributeValueMemberL:
		l := make([]Value, len(v.Value))
		for i, e := range v.Value {
			ev, err := FromAttributeValue(e)
			if err != nil {
				return Value{}, fmt.Errorf("list index %d: %w", i, err)
			}
			l[i] = ev
		}
		return List(l...), nil
	}
	return Value{}, fmt.Errorf("unsupported attribute value %T", av)
}

func FromAttributeValueMap(m map[string]types.AttributeValue) (map[string]Value, error) {
	out := make(map[string]Value, len(m))
	for k, av := range m {
		v, err := FromAttributeValue(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
