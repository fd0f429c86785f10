package domain

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/mitchellh/mapstructure"
)

var (
	bytesType    = reflect.TypeOf([]byte(nil))
	headersType  = reflect.TypeOf(Headers(nil))
	strategyType = reflect.TypeOf(ExistsStrategy(0))
)

// DecodeRequest builds a typed request from loosely typed input, as received from MCP tool
// arguments or JSON on the command line. Bodies and contents may be given as strings,
// headers as an object or as a list of {name, value} pairs, and the strategy by name.
// The decoded request is validated before it is returned.
func DecodeRequest(kind OperationKind, input map[string]any) (Request, error) {
	var target any
	switch kind {
	case KindNetwork:
		target = &NetworkRequest{Method: "GET"}
	case KindFileRead:
		target = &FileReadRequest{}
	case KindFileWrite:
		target = &FileWriteRequest{Strategy: Abort}
	default:
		return nil, fmt.Errorf("decode request: %w", ErrUnsupportedKind)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToBytesHook,
			stringToStrategyHook,
			mapToHeadersHook,
		),
	})
	if err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return nil, fmt.Errorf("decode %s request: %w", kind, err)
	}

	var req Request
	switch r := target.(type) {
	case *NetworkRequest:
		req = *r
	case *FileReadRequest:
		req = *r
	case *FileWriteRequest:
		req = *r
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func stringToBytesHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() == reflect.String && to == bytesType {
		return []byte(data.(string)), nil
	}
	return data, nil
}

func stringToStrategyHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() == reflect.String && to == strategyType {
		return ParseExistsStrategy(data.(string))
	}
	return data, nil
}

// mapToHeadersHook turns an object into Headers. Object keys have no order, so they are
// sorted to keep the result deterministic.
func mapToHeadersHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.Map || to != headersType {
		return data, nil
	}
	m := reflect.ValueOf(data)
	names := make([]string, 0, m.Len())
	values := make(map[string]string, m.Len())
	iter := m.MapRange()
	for iter.Next() {
		name := fmt.Sprint(iter.Key().Interface())
		names = append(names, name)
		values[name] = fmt.Sprint(iter.Value().Interface())
	}
	sort.Strings(names)
	headers := make(Headers, 0, len(names))
	for _, name := range names {
		headers = append(headers, Header{Name: name, Value: values[name]})
	}
	return headers, nil
}
