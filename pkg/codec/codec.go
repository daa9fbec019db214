package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Error wraps any payload (de)serialization failure. It is fatal for the
// affected task.
type Error struct {
	Op    string // "encode" or "decode"
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("codec: %s failed: %v", e.Op, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Encode serializes an attribute value into a compact binary blob. Attribute
// maps, slices, strings, byte slices, booleans, integers and floats all
// round-trip; values outside the msgpack model fail with *Error.
func Encode(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, &Error{Op: "encode", Cause: err}
	}
	return data, nil
}

// Decode deserializes a blob produced by Encode into out, which must be a
// pointer. Truncated or foreign input fails with *Error.
func Decode(data []byte, out any) error {
	if err := msgpack.Unmarshal(data, out); err != nil {
		return &Error{Op: "decode", Cause: err}
	}
	return nil
}

// EncodeAttrs serializes an envelope attribute map. Kept distinct from Encode
// so the wire shape of the payload field has a single owner.
func EncodeAttrs(attrs map[string]any) ([]byte, error) {
	return Encode(attrs)
}

// DecodeAttrs reconstitutes an envelope attribute map from its payload blob.
func DecodeAttrs(data []byte) (map[string]any, error) {
	var attrs map[string]any
	if err := Decode(data, &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

// OperatorPayload is the dehydrated form of an operator invocation: the
// registered operator name plus its data-only arguments. User-defined
// argument types must be registered with RegisterType on both sides.
type OperatorPayload struct {
	Name string
	Args map[string]any
}

// RegisterType records a concrete type for operator payload and binding
// transport. Both the submitter and the worker must register the same set of
// types before encoding or decoding.
func RegisterType(v any) {
	gob.Register(v)
}

// EncodeOperator serializes an operator payload for shipping to a worker.
func EncodeOperator(p OperatorPayload) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, &Error{Op: "encode", Cause: err}
	}
	return buf.Bytes(), nil
}

// DecodeOperator rehydrates an operator payload on the worker.
func DecodeOperator(data []byte) (OperatorPayload, error) {
	var p OperatorPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return OperatorPayload{}, &Error{Op: "decode", Cause: err}
	}
	return p, nil
}

// EncodeBinding serializes a delegate context mapping.
func EncodeBinding(binding map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(binding); err != nil {
		return nil, &Error{Op: "encode", Cause: err}
	}
	return buf.Bytes(), nil
}

// DecodeBinding rehydrates a delegate context mapping.
func DecodeBinding(data []byte) (map[string]any, error) {
	var binding map[string]any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&binding); err != nil {
		return nil, &Error{Op: "decode", Cause: err}
	}
	return binding, nil
}
