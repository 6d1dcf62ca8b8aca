package cacheitem

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/acksell/refcache/dynamodb/attr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/exp/maps"
)

// Record is a piece of client data addressed by a partition and an optional
// sort key. The variant decides the attribute names and how the key parts
// are derived from the input.
type Record struct {
	variant Variant

	Key    string
	Client string
	Source string
	Data   map[string]any

	Partition string
	// SortKey is nil until the variant or ResetID binds it.
	SortKey *string
}

// New builds a record of the given variant.
func New(v Variant, in Input) (*Record, error) {
	data, err := in.Data.Resolve()
	if err != nil {
		return nil, err
	}
	r := &Record{
		variant: v,
		Client:  firstNonEmpty(in.Client, fieldString(data, "client")),
		Source:  firstNonEmpty(in.Source, fieldString(data, "source")),
		Data:    data,
	}
	if r.Client == "" {
		return nil, &MissingRequiredFieldError{Field: "client"}
	}
	if r.Source == "" {
		return nil, &MissingRequiredFieldError{Field: "source"}
	}

	var boundSort *string
	if in.Key.address != nil {
		key, sort, err := r.keyFromAddress(in.Key.address)
		if err != nil {
			return nil, err
		}
		r.Key, boundSort = key, sort
	} else {
		r.Key = in.Key.name
	}

	if err := v.bind(r); err != nil {
		return nil, err
	}
	if boundSort != nil {
		r.ResetID(*boundSort)
	}
	return r, nil
}

// keyFromAddress recovers the key from a composite address by stripping the
// client and source prefix from the partition value.
func (r *Record) keyFromAddress(address map[string]any) (string, *string, error) {
	partition, ok := keyString(address[r.variant.PartitionName()])
	if !ok {
		return "", nil, &MissingRequiredFieldError{Field: r.variant.PartitionName()}
	}
	prefix := r.Client + "-" + r.Source + "-"
	if !strings.HasPrefix(partition, prefix) {
		return "", nil, fmt.Errorf("partition %q does not belong to %s-%s", partition, r.Client, r.Source)
	}
	var sort *string
	if s, ok := keyString(address[r.variant.SortName()]); ok {
		sort = &s
	}
	return strings.TrimPrefix(partition, prefix), sort, nil
}

func (r *Record) Type() string { return r.variant.Name() }
func (r *Record) PartitionName() string { return r.variant.PartitionName() }
func (r *Record) SortName() string { return r.variant.SortName() }
func (r *Record) Variant() Variant { return r.variant }

// ResetID binds the sort key. Calling it again with the same id is a no-op.
func (r *Record) ResetID(id string) {
	r.SortKey = &id
}

// ID returns the sort key, or "" when it is unset.
func (r *Record) ID() string {
	if r.SortKey == nil {
		return ""
	}
	return *r.SortKey
}

// Address returns the composite key attributes. The sort attribute is
// omitted while the sort key is unset.
func (r *Record) Address() map[string]attr.Value {
	address := map[string]attr.Value{
		r.PartitionName(): attr.S(r.Partition),
	}
	if r.SortKey != nil {
		address[r.SortName()] = attr.S(*r.SortKey)
	}
	return address
}

// ToRecord returns the encoded data merged with the address. Address
// attributes win over data fields of the same name.
func (r *Record) ToRecord() (map[string]attr.Value, error) {
	compiled, err := attr.EncodeRecord(r.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s data: %w", r.Type(), err)
	}
	maps.Copy(compiled, r.Address())
	return compiled, nil
}

// ToAttributeValues is ToRecord in the SDK's representation, ready for PutItem.
func (r *Record) ToAttributeValues() (map[string]types.AttributeValue, error) {
	compiled, err := r.ToRecord()
	if err != nil {
		return nil, err
	}
	return attr.ToAttributeValueMap(compiled)
}

// Envelope is the serialized record exchanged with remote operations.
type Envelope struct {
	Type     string                `json:"type"`
	Key      string                `json:"key"`
	ID       *string               `json:"id"`
	Client   string                `json:"client"`
	Source   string                `json:"source"`
	Data     map[string]any        `json:"data"`
	Address  map[string]attr.Value `json:"address"`
	Compiled map[string]attr.Value `json:"compiled,omitempty"`
}

func (r *Record) Serialize() (Envelope, error) {
	compiled, err := r.ToRecord()
	if err != nil {
		return Envelope{}, err
	}
	var id *string
	if r.SortKey != nil {
		s := *r.SortKey
		id = &s
	}
	return Envelope{
		Type:     r.Type(),
		Key:      r.Key,
		ID:       id,
		Client:   r.Client,
		Source:   r.Source,
		Data:     maps.Clone(r.Data),
		Address:  r.Address(),
		Compiled: compiled,
	}, nil
}

func (r *Record) MarshalJSON() ([]byte, error) {
	env, err := r.Serialize()
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func (r *Record) clone() *Record {
	c := *r
	c.Data = maps.Clone(r.Data)
	if r.SortKey != nil {
		s := *r.SortKey
		c.SortKey = &s
	}
	return &c
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func fieldString(data map[string]any, field string) string {
	v, ok := data[field]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

// stringify renders key material the way it appears in an address.
func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case []byte:
		return string(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case attr.Value:
		if s.Tag == attr.TagS || s.Tag == attr.TagN {
			return s.Str
		}
	}
	return fmt.Sprint(v)
}
