package cache

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
)

// Codec converts values of a namespace to and from the bytes kept by the
// durable store.
type Codec[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// JSONCodec encodes values with encoding/json. It is the default codec.
type JSONCodec[V any] struct{}

func (JSONCodec[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec[V]) Decode(data []byte) (V, error) {
	var v V
	err := json.Unmarshal(data, &v)
	return v, err
}

// GobCodec encodes values with encoding/gob.
type GobCodec[V any] struct{}

func (GobCodec[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobCodec[V]) Decode(data []byte) (V, error) {
	var v V
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v)
	return v, err
}

// RawCodec stores byte payloads unchanged.
type RawCodec struct{}

func (RawCodec) Encode(v []byte) ([]byte, error) { return bytes.Clone(v), nil }

func (RawCodec) Decode(data []byte) ([]byte, error) { return bytes.Clone(data), nil }
