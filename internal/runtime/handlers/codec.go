package handlers

import (
	"bytes"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	errspkg "github.com/drblury/lambdaflow/internal/runtime/errors"
	jsoncodec "github.com/drblury/lambdaflow/internal/runtime/jsoncodec"
)

var (
	protoMessageType = reflect.TypeFor[proto.Message]()
	nullLiteral      = []byte("null")
)

// Codec is the serialization boundary between wire payloads and a handler's
// input and output types.
type Codec[I any, O any] struct {
	inputType  reflect.Type
	outputType reflect.Type
	textOutput bool
}

// NewCodec resolves the codec for I and O. textOutput forces the plain textual
// form of every result.
func NewCodec[I any, O any](textOutput bool) Codec[I, O] {
	outputType := reflect.TypeFor[O]()
	return Codec[I, O]{
		inputType:  reflect.TypeFor[I](),
		outputType: outputType,
		textOutput: textOutput || outputType.Kind() == reflect.String,
	}
}

// Decode converts payload into I. An empty or null payload yields the zero
// value. String inputs accept raw text that is not a JSON string.
func (c Codec[I, O]) Decode(payload []byte) (I, error) {
	var input I

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, nullLiteral) {
		return input, nil
	}

	if c.inputType.Kind() == reflect.Pointer && c.inputType.Implements(protoMessageType) {
		msg := reflect.New(c.inputType.Elem()).Interface().(proto.Message)
		if err := protojson.Unmarshal(trimmed, msg); err != nil {
			return input, &errspkg.DecodeError{TypeName: c.inputType.String(), Err: err}
		}
		return msg.(I), nil
	}

	if c.inputType.Kind() == reflect.String {
		if !jsoncodec.Valid(trimmed) || jsoncodec.Unmarshal(trimmed, &input) != nil {
			reflect.ValueOf(&input).Elem().SetString(string(payload))
		}
		return input, nil
	}

	if err := jsoncodec.Unmarshal(trimmed, &input); err != nil {
		return input, &errspkg.DecodeError{TypeName: c.inputType.String(), Err: err}
	}
	return input, nil
}

// Encode converts a handler result into the reported body. A nil result
// becomes an empty body, never "null".
func (c Codec[I, O]) Encode(output O) ([]byte, error) {
	value := any(output)
	if isNilValue(value) {
		return []byte{}, nil
	}

	if c.textOutput {
		return []byte(fmt.Sprint(value)), nil
	}

	if msg, ok := value.(proto.Message); ok {
		body, err := protojson.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("lambdaflow: encode %T: %w", value, err)
		}
		return body, nil
	}

	body, err := jsoncodec.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("lambdaflow: encode %T: %w", value, err)
	}
	return body, nil
}

func isNilValue(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
