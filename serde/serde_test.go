package serde_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/ravelstream/opchain/serde"
)

func TestGobSerializerCopyIsIndependent(t *testing.T) {
	type payload struct{ N int }
	s := serde.GobSerializer[payload]{}

	out, err := s.Copy(payload{N: 42})
	require.NoError(t, err)
	assert.Equal(t, payload{N: 42}, out)
}

func TestGobCodecEncodesToBytes(t *testing.T) {
	c := serde.GobCodec[int]{}

	bs, err := c.Encode(7)
	require.NoError(t, err)
	assert.NotEmpty(t, bs)
}

func TestProtoSerializerRoundTripsGeneratedMessage(t *testing.T) {
	s := serde.ProtoSerializer[wrapperspb.StringValue, *wrapperspb.StringValue]{}

	out, err := s.Copy(wrapperspb.StringValue{Value: "chained"})
	require.NoError(t, err)
	assert.Equal(t, "chained", out.Value)
}

func TestProtoCodecEncodesGeneratedMessage(t *testing.T) {
	c := serde.ProtoCodec[wrapperspb.Int64Value, *wrapperspb.Int64Value]{}

	bs, err := c.Encode(wrapperspb.Int64Value{Value: 99})
	require.NoError(t, err)
	assert.NotEmpty(t, bs)
}
