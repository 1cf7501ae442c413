package jsonrpc2

import (
	"encoding/json"
	"reflect"
)

// parsePositionalArguments takes the params of a JSONRPC message, and asserts
// each positional argument into the reflected value of its type. A method
// with exactly one argument may also receive it as a bare JSON object.
// Trailing pointer arguments may be omitted and are passed as nil.
func parsePositionalArguments(msgParams json.RawMessage, types []reflect.Type) ([]reflect.Value, error) {
	if isNull(msgParams) {
		msgParams = nil
	}

	var args []json.RawMessage
	switch {
	case len(msgParams) == 0:
	case isArray(msgParams):
		if err := json.Unmarshal(msgParams, &args); err != nil {
			return nil, Errorf(ErrCodeInvalidParams, "invalid params: %s", err)
		}
	case len(types) == 1:
		args = []json.RawMessage{msgParams}
	default:
		return nil, Errorf(ErrCodeInvalidParams, "invalid params: expected an array of %d arguments", len(types))
	}
	if len(args) > len(types) {
		return nil, Errorf(ErrCodeInvalidParams, "too many arguments: expected %d, got %d", len(types), len(args))
	}

	values := make([]reflect.Value, 0, len(types))
	for i, argType := range types {
		value := reflect.New(argType)
		if i < len(args) {
			if err := json.Unmarshal(args[i], value.Interface()); err != nil {
				return nil, Errorf(ErrCodeInvalidParams, "invalid argument %d: %s", i, err)
			}
		} else if argType.Kind() != reflect.Ptr {
			return nil, Errorf(ErrCodeInvalidParams, "not enough arguments: expected %d, got %d", len(types), len(args))
		}
		values = append(values, value.Elem())
	}

	return values, nil
}
