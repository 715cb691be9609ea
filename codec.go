// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tabledb

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"reflect"
)

// Codec defines the contract for converting a typed key or value to and from
// the byte representation stored by the engine.  Implementations must be
// deterministic and lossless so that Decode(Encode(x)) == x for every valid x.
//
// The name reported by Name is persisted in the table schema and compared on
// every open, so two codecs which produce incompatible encodings must never
// share a name.
type Codec[T any] interface {
	// Name returns the unique name of the codec, including the concrete
	// type it encodes.
	Name() string

	// Encode converts the passed value into its byte representation.
	Encode(v T) ([]byte, error)

	// Decode converts the passed bytes back into a typed value.  It must
	// fail with an error, never panic, when the bytes are malformed or
	// truncated.
	Decode(data []byte) (T, error)
}

// typeName returns a stable name for the concrete type T.
func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

// JSONCodec is a Codec which marshals values of any type to JSON.  It is the
// general-purpose codec for struct values.  Note that the encoding of JSON
// keys is not byte-order preserving with respect to the natural ordering of
// the underlying type.
type JSONCodec[T any] struct{}

// Name returns the unique name of the codec.
//
// This function is part of the Codec interface implementation.
func (JSONCodec[T]) Name() string {
	return "json[" + typeName[T]() + "]"
}

// Encode marshals the passed value to JSON.
//
// This function is part of the Codec interface implementation.
func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		str := fmt.Sprintf("failed to encode %s value", typeName[T]())
		return nil, makeError(ErrCodec, str, err)
	}
	return data, nil
}

// Decode unmarshals the passed JSON bytes into a typed value.
//
// This function is part of the Codec interface implementation.
func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		str := fmt.Sprintf("failed to decode %s value", typeName[T]())
		return v, makeError(ErrCodec, str, err)
	}
	return v, nil
}

// StringCodec is a Codec for strings.  The encoded form is the raw bytes of
// the string, so encoded keys sort in the natural string order.
type StringCodec struct{}

// Name returns the unique name of the codec.
//
// This function is part of the Codec interface implementation.
func (StringCodec) Name() string {
	return "string"
}

// Encode returns the raw bytes of the string.
//
// This function is part of the Codec interface implementation.
func (StringCodec) Encode(v string) ([]byte, error) {
	return []byte(v), nil
}

// Decode returns the bytes as a string.
//
// This function is part of the Codec interface implementation.
func (StringCodec) Decode(data []byte) (string, error) {
	return string(data), nil
}

// Uint64Codec is a Codec for unsigned 64-bit integers.  Values are encoded
// big endian so the encoded keys sort in numeric order.
type Uint64Codec struct{}

// Name returns the unique name of the codec.
//
// This function is part of the Codec interface implementation.
func (Uint64Codec) Name() string {
	return "uint64be"
}

// Encode serializes the value as 8 big-endian bytes.
//
// This function is part of the Codec interface implementation.
func (Uint64Codec) Encode(v uint64) ([]byte, error) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:], nil
}

// Decode deserializes 8 big-endian bytes into a uint64.
//
// This function is part of the Codec interface implementation.
func (Uint64Codec) Decode(data []byte) (uint64, error) {
	if len(data) != 8 {
		str := fmt.Sprintf("malformed uint64 - wrong length %d", len(data))
		return 0, makeError(ErrCodec, str, nil)
	}
	return binary.BigEndian.Uint64(data), nil
}

// BytesCodec is a Codec for raw byte slices.  Encode and Decode copy the
// slice so callers never alias engine-internal memory.
type BytesCodec struct{}

// Name returns the unique name of the codec.
//
// This function is part of the Codec interface implementation.
func (BytesCodec) Name() string {
	return "bytes"
}

// Encode returns a copy of the passed slice.
//
// This function is part of the Codec interface implementation.
func (BytesCodec) Encode(v []byte) ([]byte, error) {
	buf := make([]byte, len(v))
	copy(buf, v)
	return buf, nil
}

// Decode returns a copy of the passed slice.
//
// This function is part of the Codec interface implementation.
func (BytesCodec) Decode(data []byte) ([]byte, error) {
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}
