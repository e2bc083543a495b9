package document

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
)

// Parse decodes one JSON value into a tree. Object keys of decoded input are
// stored in lexical order; keys added later keep insertion order.
func Parse(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("document: parse: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("document: parse: trailing data after value")
	}
	return FromAny(raw)
}

// MustParse is like Parse but panics on error. Intended for tests and literals.
func MustParse(data string) *Value {
	v, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return v
}

// FromAny converts the generic shapes produced by JSON decoders
// (map[string]any, []any, string, bool, numbers, nil) into a tree.
func FromAny(raw any) (*Value, error) {
	switch x := raw.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(x), nil
	case string:
		return NewString(x), nil
	case json.Number:
		return NewNumber(x.String()), nil
	case float64:
		return NewNumber(strconv.FormatFloat(x, 'g', -1, 64)), nil
	case float32:
		return NewNumber(strconv.FormatFloat(float64(x), 'g', -1, 32)), nil
	case int:
		return NewInt(x), nil
	case int64:
		return NewNumber(strconv.FormatInt(x, 10)), nil
	case *Value:
		return x.Clone(), nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			child, err := FromAny(x[k])
			if err != nil {
				return nil, err
			}
			obj.Set(k, child)
		}
		return obj, nil
	case []any:
		arr := NewArray()
		for _, it := range x {
			child, err := FromAny(it)
			if err != nil {
				return nil, err
			}
			arr.Push(child)
		}
		return arr, nil
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("document: convert %T: %w", raw, err)
		}
		return Parse(data)
	}
}

// MarshalJSON encodes the tree, keeping object key order.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces v with the decoded tree.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

// String returns the compact JSON encoding of v.
func (v *Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid document: %v>", err)
	}
	return string(data)
}

// Decode re-encodes v and unmarshals it into out.
func (v *Value) Decode(out any) error {
	data, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (v *Value) encode(buf *bytes.Buffer) error {
	switch v.Kind() {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.flag))
	case Number:
		buf.WriteString(v.num)
	case String:
		s, err := json.Marshal(string(v.str))
		if err != nil {
			return err
		}
		buf.Write(s)
	case Object:
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := v.props[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case Array:
		buf.WriteByte('[')
		for i, it := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := it.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}
	return nil
}
