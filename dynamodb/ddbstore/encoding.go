package ddbstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/acksell/refcache/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/vmihailenco/msgpack/v5"
)

// Key format: [tableName][0x00][partitionKey][0x00][sortKey]
//
// Key parts are escaped so they never contain the separator, which makes
// [tableName][0x00][partitionKey][0x00] a prefix of exactly one partition.

const keySeparator byte = 0x00

const (
	keyTypeString byte = 'S'
	keyTypeNumber byte = 'N'
	keyTypeBinary byte = 'B'
)

func encodeBadgerKey(tableName string, pk table.PrimaryKey) ([]byte, error) {
	prefix, err := encodePartitionPrefix(tableName, pk.Definition, pk.Values.PartitionKey)
	if err != nil {
		return nil, err
	}
	if pk.Definition.SortKey.Name == "" {
		return prefix, nil
	}
	sk, err := encodeKeyValue(pk.Values.SortKey, pk.Definition.SortKey.Kind)
	if err != nil {
		return nil, fmt.Errorf("encode sort key: %w", err)
	}
	return append(prefix, sk...), nil
}

func encodePartitionPrefix(tableName string, def table.PrimaryKeyDefinition, partitionKey any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(tableName)
	buf.WriteByte(keySeparator)
	pk, err := encodeKeyValue(partitionKey, def.PartitionKey.Kind)
	if err != nil {
		return nil, fmt.Errorf("encode partition key: %w", err)
	}
	buf.Write(pk)
	buf.WriteByte(keySeparator)
	return buf.Bytes(), nil
}

// encodeKeyValue encodes a key value so byte order follows DynamoDB's key order.
func encodeKeyValue(value any, kind table.KeyKind) ([]byte, error) {
	var buf bytes.Buffer
	switch kind {
	case table.KeyKindS:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string for S key, got %T", value)
		}
		buf.WriteByte(keyTypeString)
		buf.Write(escapeBytes([]byte(s)))
	case table.KeyKindN:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected number string for N key, got %T", value)
		}
		encoded, err := encodeNumber(s)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(keyTypeNumber)
		buf.Write(escapeBytes(encoded))
	case table.KeyKindB:
		b, ok := value.([]byte)
		if !ok {
			return nil, fmt.Errorf("expected bytes for B key, got %T", value)
		}
		buf.WriteByte(keyTypeBinary)
		buf.Write(escapeBytes(b))
	default:
		return nil, fmt.Errorf("unsupported key kind: %s", kind)
	}
	return buf.Bytes(), nil
}

// encodeNumber maps a number onto bytes that sort numerically: the sign bit
// is flipped for non-negative values and every bit inverted for negatives.
func encodeNumber(numStr string) ([]byte, error) {
	f, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return nil, fmt.Errorf("parse number %q: %w", numStr, err)
	}
	bits := math.Float64bits(f)
	if f >= 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bits)
	return buf, nil
}

// escapeBytes replaces 0x00 with 0x01 0x01 and 0x01 with 0x01 0x02.
func escapeBytes(b []byte) []byte {
	var buf bytes.Buffer
	for _, c := range b {
		switch c {
		case 0x00:
			buf.Write([]byte{0x01, 0x01})
		case 0x01:
			buf.Write([]byte{0x01, 0x02})
		default:
			buf.WriteByte(c)
		}
	}
	return buf.Bytes()
}

// storedAV is the msgpack form of an attribute value.
type storedAV struct {
	T    string              `msgpack:"t"`
	S    string              `msgpack:"s,omitempty"`
	B    []byte              `msgpack:"b,omitempty"`
	Bool bool                `msgpack:"o,omitempty"`
	SS   []string            `msgpack:"ss,omitempty"`
	BS   [][]byte            `msgpack:"bs,omitempty"`
	M    map[string]storedAV `msgpack:"m,omitempty"`
	L    []storedAV          `msgpack:"l,omitempty"`
}

// SerializeItem encodes an item for storage.
func SerializeItem(item map[string]types.AttributeValue) ([]byte, error) {
	stored := make(map[string]storedAV, len(item))
	for k, v := range item {
		sav, err := toStored(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		stored[k] = sav
	}
	b, err := msgpack.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	return b, nil
}

// DeserializeItem decodes an item written by SerializeItem.
func DeserializeItem(data []byte) (map[string]types.AttributeValue, error) {
	var stored map[string]storedAV
	if err := msgpack.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	item := make(map[string]types.AttributeValue, len(stored))
	for k, v := range stored {
		av, err := fromStored(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		item[k] = av
	}
	return item, nil
}

func toStored(av types.AttributeValue) (storedAV, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return storedAV{T: "S", S: v.Value}, nil
	case *types.AttributeValueMemberN:
		return storedAV{T: "N", S: v.Value}, nil
	case *types.AttributeValueMemberB:
		return storedAV{T: "B", B: v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return storedAV{T: "BOOL", Bool: v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return storedAV{T: "NULL", Bool: v.Value}, nil
	case *types.AttributeValueMemberSS:
		return storedAV{T: "SS", SS: v.Value}, nil
	case *types.AttributeValueMemberNS:
		return storedAV{T: "NS", SS: v.Value}, nil
	case *types.AttributeValueMemberBS:
		return storedAV{T: "BS", BS: v.Value}, nil
	case *types.AttributeValueMemberM:
		m := make(map[string]storedAV, len(v.Value))
		for k, e := range v.Value {
			sav, err := toStored(e)
			if err != nil {
				return storedAV{}, err
			}
			m[k] = sav
		}
		return storedAV{T: "M", M: m}, nil
	case *types.AttributeValueMemberL:
		l := make([]storedAV, len(v.Value))
		for i, e := range v.Value {
			sav, err := toStored(e)
			if err != nil {
				return storedAV{}, err
			}
			l[i] = sav
		}
		return storedAV{T: "L", L: l}, nil
	}
	return storedAV{}, fmt.Errorf("unsupported attribute value type: %T", av)
}

func fromStored(sav storedAV) (types.AttributeValue, error) {
	switch sav.T {
	case "S":
		return &types.AttributeValueMemberS{Value: sav.S}, nil
	case "N":
		return &types.AttributeValueMemberN{Value: sav.S}, nil
	case "B":
		return &types.AttributeValueMemberB{Value: sav.B}, nil
	case "BOOL":
		return &types.AttributeValueMemberBOOL{Value: sav.Bool}, nil
	case "NULL":
		return &types.AttributeValueMemberNULL{Value: sav.Bool}, nil
	case "SS":
		return &types.AttributeValueMemberSS{Value: sav.SS}, nil
	case "NS":
		return &types.AttributeValueMemberNS{Value: sav.SS}, nil
	case "BS":
		return &types.AttributeValueMemberBS{Value: sav.BS}, nil
	case "M":
		m := make(map[string]types.AttributeValue, len(sav.M))
		for k, e := range sav.M {
			av, err := fromStored(e)
			if err != nil {
				return nil, err
			}
			m[k] = av
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	case "L":
		l := make([]types.AttributeValue, len(sav.L))
		for i, e := range sav.L {
			av, err := fromStored(e)
			if err != nil {
				return nil, err
			}
			l[i] = av
		}
		return &types.AttributeValueMemberL{Value: l}, nil
	}
	return nil, fmt.Errorf("unsupported stored type: %q", sav.T)
}
