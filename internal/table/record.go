// Package table decodes tabular JSON without losing column order and renders it as HTML.
package table

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Field is one key/value pair of a Record.
type Field struct {
	Key   string
	Value interface{}
}

// Record is a JSON object whose keys keep their original order.
type Record []Field

// Get returns the value stored under key.
func (r Record) Get(key string) (interface{}, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in order.
func (r Record) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// Set replaces the value under key or appends a new field.
func (r *Record) Set(key string, value interface{}) {
	for i, f := range *r {
		if f.Key == key {
			(*r)[i].Value = value
			return
		}
	}
	*r = append(*r, Field{Key: key, Value: value})
}

// MarshalJSON writes the fields in order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := newDecoder(bytes.NewReader(data))
	v, err := decodeValue(dec)
	if err != nil {
		return err
	}
	rec, ok := v.(Record)
	if !ok {
		return errors.New("table: expected a JSON object")
	}
	*r = rec
	return nil
}

// Decode parses any JSON document. Objects become Record, arrays []interface{},
// numbers int64 or float64.
func Decode(data []byte) (interface{}, error) {
	dec := newDecoder(bytes.NewReader(data))
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("table: trailing data after JSON value")
	}
	return v, nil
}

// DecodeRecords parses a JSON array of objects.
func DecodeRecords(data []byte) ([]Record, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, errors.New("table: expected a JSON array of records")
	}
	records := make([]Record, 0, len(items))
	for i, item := range items {
		rec, ok := item.(Record)
		if !ok {
			return nil, fmt.Errorf("table: element %d is not an object", i)
		}
		records = append(records, rec)
	}
	return records, nil
}

func newDecoder(r io.Reader) *json.Decoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			rec := Record{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("table: unexpected object key %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				rec.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return rec, nil
		case '[':
			items := []interface{}{}
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return items, nil
		default:
			return nil, fmt.Errorf("table: unexpected delimiter %v", t)
		}
	case json.Number:
		return parseNumber(t), nil
	default:
		return t, nil
	}
}

// parseNumber keeps integer literals as int64 and everything else as float64.
func parseNumber(n json.Number) interface{} {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
