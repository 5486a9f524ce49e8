package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
)

// orderedDocument decodes a JSON value into a form the smithy document
// encoder writes back in the original key order. Objects become struct values
// built at runtime: the encoder walks struct fields by index, while map keys
// come out in random order.
func orderedDocument(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := decodeOrdered(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

func decodeOrdered(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			items := []any{}
			for dec.More() {
				v, err := decodeOrdered(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return items, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		return t.Float64()
	default:
		// string, bool or nil
		return t, nil
	}
}

func decodeObject(dec *json.Decoder) (any, error) {
	var (
		fields []reflect.StructField
		values []any
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key := tok.(string)
		if key == "" || key == "-" || strings.Contains(key, ",") {
			return nil, fmt.Errorf("object key %q cannot be sent as a document", key)
		}
		v, err := decodeOrdered(dec)
		if err != nil {
			return nil, err
		}
		fields = append(fields, reflect.StructField{
			Name: "F" + strconv.Itoa(len(fields)),
			Type: reflect.TypeOf((*any)(nil)).Elem(),
			Tag:  reflect.StructTag(`document:` + strconv.Quote(key)),
		})
		values = append(values, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	obj := reflect.New(reflect.StructOf(fields)).Elem()
	for i, v := range values {
		if v != nil {
			obj.Field(i).Set(reflect.ValueOf(v))
		}
	}
	return obj.Interface(), nil
}
