package attr

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Decode converts a wire payload back into a native value.
//
// Decoding is deliberately not symmetric for L: a list payload is only
// parsed when it arrives as JSON text, otherwise it is returned as-is and
// its members stay tagged. M payloads are decoded member by member.
func Decode(tag Tag, wire any) (any, error) {
	wire = indirect(wire)
	switch tag {
	case TagNULL:
		return nil, nil
	case TagBOOL:
		return truthy(wire), nil
	case TagN:
		return decodeNumber(wire)
	case TagS:
		if s, ok := wire.(string); ok {
			return s, nil
		}
		return fmt.Sprint(wire), nil
	case TagB:
		return decodeBytes(wire)
	case TagSS:
		return stringList(wire)
	case TagNS:
		strs, err := stringList(wire)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(strs))
		for i, s := range strs {
			n, err := decodeNumber(s)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case TagBS:
		elems, ok := elements(wire)
		if !ok {
			return nil, fmt.Errorf("BS payload is %T, want a list", wire)
		}
		out := make([][]byte, len(elems))
		for i, e := range elems {
			b, err := decodeBytes(e)
			if err != nil {
				return nil, fmt.Errorf("BS member %d: %w", i, err)
			}
			out[i] = b
		}
		return out, nil
	case TagM:
		return decodeMap(wire)
	case TagL:
		return decodeList(wire), nil
	}
	return nil, &UnknownTagError{Tag: string(tag)}
}

// DecodeValue decodes a tagged Value.
func DecodeValue(v Value) (any, error) {
	return Decode(v.Tag, v.Wire())
}

// DecodeRecord decodes every field of a compiled record.
func DecodeRecord(compiled map[string]Value) (map[string]any, error) {
	out := make(map[string]any, len(compiled))
	for k, v := range compiled {
		dv, err := DecodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = dv
	}
	return out, nil
}

// decodeNumber yields an int for integral text and a float64 for text with
// a decimal point or exponent. Integers too large for int fall back to float64.
func decodeNumber(wire any) (any, error) {
	var s string
	switch n := wire.(type) {
	case string:
		s = n
	case json.Number:
		s = n.String()
	default:
		if !isNumLike(wire) {
			return nil, fmt.Errorf("N payload is %T, want a number", wire)
		}
		var err error
		if s, err = formatNumber(wire); err != nil {
			return nil, err
		}
	}
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse N %q: %w", s, err)
		}
		return f, nil
	}
	i, err := strconv.Atoi(s)
	if err == nil {
		return i, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("failed to parse N %q: %w", s, err)
}

// decodeBytes accepts raw bytes, or text taken as its own bytes.
func decodeBytes(wire any) ([]byte, error) {
	switch b := indirect(wire).(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	}
	return nil, fmt.Errorf("B payload is %T, want bytes", wire)
}

// decodeBase64 reads B payloads of DynamoDB JSON documents, where binary
// always travels as base64 text.
func decodeBase64(wire any) ([]byte, error) {
	switch b := indirect(wire).(type) {
	case []byte:
		return b, nil
	case string:
		raw, err := base64.StdEncoding.DecodeString(b)
		if err != nil {
			return nil, fmt.Errorf("B payload is not base64: %w", err)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("B payload is %T, want bytes", wire)
}

// stringList reads SS/NS payloads, including lists that arrive as a string
// literal such as `["a", "b"]` or `a,b`.
func stringList(wire any) ([]string, error) {
	if s, ok := wire.(string); ok {
		return parseListLiteral(s), nil
	}
	elems, ok := elements(wire)
	if !ok {
		return nil, fmt.Errorf("set payload is %T, want a list", wire)
	}
	out := make([]string, len(elems))
	for i, e := range elems {
		switch s := indirect(e).(type) {
		case string:
			out[i] = s
		case json.Number:
			out[i] = s.String()
		default:
			out[i] = fmt.Sprint(s)
		}
	}
	return out, nil
}

func parseListLiteral(s string) []string {
	if strings.Contains(s, "[") {
		var raw []any
		if err := json.Unmarshal([]byte(s), &raw); err == nil {
			out := make([]string, len(raw))
			for i, e := range raw {
				if str, ok := e.(string); ok {
					out[i] = str
				} else {
					out[i] = fmt.Sprint(e)
				}
			}
			return out
		}
		s = strings.NewReplacer("[", "", "]", "", `"`, "", "'", "").Replace(s)
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func decodeMap(wire any) (map[string]any, error) {
	switch m := wire.(type) {
	case map[string]Value:
		return DecodeRecord(m)
	case map[string]any:
		out := make(map[string]any, len(m))
		for k, e := range m {
			tv, ok := tagged(e)
			if !ok {
				out[k] = e
				continue
			}
			dv, err := DecodeValue(tv)
			if err != nil {
				return nil, fmt.Errorf("map member %q: %w", k, err)
			}
			out[k] = dv
		}
		return out, nil
	}
	return nil, fmt.Errorf("M payload is %T, want a mapping", wire)
}

func decodeList(wire any) any {
	s, ok := wire.(string)
	if !ok {
		return wire
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return wire
	}
	return out
}
