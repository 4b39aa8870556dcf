// Package serde provides the type serializers used by the copying chain
// outputs to produce defensive deep copies when object reuse is
// disabled. The teacher repo reaches for encoding/gob when it needs to
// serialize an arbitrary Go value (operator's CombineWatermark state)
// and for protobuf when the value already has a generated message type
// (its state manager); this package mirrors that split.
package serde

import (
	"bytes"
	"encoding/gob"

	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"
)

// TypeSerializer produces an independent copy of a value, used by the
// copying chain outputs to implement StreamRecord.copy(serializer.copy(value)).
type TypeSerializer[T any] interface {
	Copy(value T) (T, error)
}

// GobSerializer round-trips a value through encoding/gob. It is the
// default serializer for record types that carry no generated codec:
// the standard library is used here deliberately, not a third-party
// generic codec, because the teacher itself reaches for gob whenever it
// needs to snapshot an arbitrary Go struct (operator.NewCombineWatermarkStateDescriptor)
// rather than pulling in a schema-based library for that purpose.
type GobSerializer[T any] struct{}

func (GobSerializer[T]) Copy(value T) (T, error) {
	var buf bytes.Buffer
	// Encoding through a pointer keeps an interface-typed T (such as any)
	// encoded as an interface, so it can be decoded back into one.
	if err := gob.NewEncoder(&buf).Encode(&value); err != nil {
		var zero T
		return zero, errors.WithMessage(err, "failed to gob-encode value for defensive copy")
	}
	var out T
	if err := gob.NewDecoder(&buf).Decode(&out); err != nil {
		var zero T
		return zero, errors.WithMessage(err, "failed to gob-decode value for defensive copy")
	}
	return out, nil
}

// Codec encodes a value to bytes for a network writer output; unlike
// TypeSerializer it is one-directional since the network side never
// needs to hand the bytes back as a Go value inside this module's scope
// (spec.md §1 Out of scope: deserialization on the receiving task).
type Codec[T any] interface {
	Encode(value T) ([]byte, error)
}

// GobCodec mirrors GobSerializer but only encodes, for the network
// writer output path.
type GobCodec[T any] struct{}

func (GobCodec[T]) Encode(value T) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return nil, errors.WithMessage(err, "failed to gob-encode value for network write")
	}
	return buf.Bytes(), nil
}

// ProtoMessage is the constraint satisfied by generated protobuf types.
type ProtoMessage[T any] interface {
	proto.Message
	*T
}

// ProtoSerializer round-trips a value through protobuf marshal/unmarshal,
// mirroring store/manager.go's use of proto.Marshal/proto.Unmarshal for
// wire-stable state. Preferred over GobSerializer whenever the record
// type is a generated protobuf message, since it produces a stable,
// cross-version wire representation.
type ProtoSerializer[T any, PT ProtoMessage[T]] struct{}

func (ProtoSerializer[T, PT]) Copy(value T) (T, error) {
	bs, err := proto.Marshal(PT(&value))
	if err != nil {
		var zero T
		return zero, errors.WithMessage(err, "failed to protobuf-marshal value for defensive copy")
	}
	var out T
	if err := proto.Unmarshal(bs, PT(&out)); err != nil {
		var zero T
		return zero, errors.WithMessage(err, "failed to protobuf-unmarshal value for defensive copy")
	}
	return out, nil
}

// ProtoCodec mirrors ProtoSerializer but only encodes, for the network
// writer output path.
type ProtoCodec[T any, PT ProtoMessage[T]] struct{}

func (ProtoCodec[T, PT]) Encode(value T) ([]byte, error) {
	bs, err := proto.Marshal(PT(&value))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to protobuf-marshal value for network write")
	}
	return bs, nil
}
