package cache

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec converts values to and from the data field of a cache entry.
// Encode must return valid JSON.
type Codec[T any] interface {
	Encode(T) (json.RawMessage, error)
	Decode(json.RawMessage) (T, error)
}

// JSONCodec stores values as plain JSON
type JSONCodec[T any] struct{}

// Encode implements Codec
func (JSONCodec[T]) Encode(v T) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode json")
	}
	return data, nil
}

// Decode implements Codec
func (JSONCodec[T]) Decode(raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, errors.Wrap(err, "failed to decode json")
	}
	return v, nil
}

// MsgpackCodec stores values as msgpack, embedded in the entry as a base64 string
type MsgpackCodec[T any] struct{}

// Encode implements Codec
func (MsgpackCodec[T]) Encode(v T) (json.RawMessage, error) {
	packed, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode msgpack")
	}
	// []byte marshals to a base64 JSON string
	return json.Marshal(packed)
}

// Decode implements Codec
func (MsgpackCodec[T]) Decode(raw json.RawMessage) (T, error) {
	var v T
	var packed []byte
	if err := json.Unmarshal(raw, &packed); err != nil {
		return v, errors.Wrap(err, "msgpack payload is not a base64 string")
	}
	if err := msgpack.Unmarshal(packed, &v); err != nil {
		return v, errors.Wrap(err, "failed to decode msgpack")
	}
	return v, nil
}
