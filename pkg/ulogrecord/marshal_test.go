package ulogrecord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRoundTripLoggedString(t *testing.T) {
	want := NewLoggedStringTagged(LogCrit, 9, 123456, "engine overtemp")

	b, err := want.MarshalBinary()
	require.NoError(t, err)

	var got Record
	require.NoError(t, got.UnmarshalBinary(b))

	assert.Equal(t, want.Kind, got.Kind)
	assert.Equal(t, want.Level, got.Level)
	assert.Equal(t, want.HasTag, got.HasTag)
	assert.Equal(t, want.Tag, got.Tag)
	assert.Equal(t, want.Timestamp, got.Timestamp)
	assert.Equal(t, want.Bytes(), got.Bytes())
}

func TestMarshalRoundTripData(t *testing.T) {
	want, err := NewData(3, 1, 555, []byte{9, 8, 7, 6})
	require.NoError(t, err)

	b, err := want.MarshalBinary()
	require.NoError(t, err)

	var got Record
	require.NoError(t, got.UnmarshalBinary(b))

	assert.Equal(t, KindData, got.Kind)
	assert.Equal(t, want.TopicIndex, got.TopicIndex)
	assert.Equal(t, want.Instance, got.Instance)
	assert.Equal(t, want.Bytes(), got.Bytes())
}

func TestMarshalRoundTripParameter(t *testing.T) {
	want, err := NewParameter("float P", F32(12.75))
	require.NoError(t, err)

	b, err := want.MarshalBinary()
	require.NoError(t, err)

	var got Record
	require.NoError(t, got.UnmarshalBinary(b))

	assert.Equal(t, KindParameter, got.Kind)
	assert.Equal(t, ParamF32, got.Param.Kind)
	assert.Equal(t, float32(12.75), got.Param.Float32())
	assert.Equal(t, "float P", string(got.Bytes()))
}

func TestUnmarshalShortBuffer(t *testing.T) {
	var r Record
	assert.ErrorIs(t, r.UnmarshalBinary([]byte{1, 2, 3}), ErrShortBuffer)
}

func TestUnmarshalTruncatedPayload(t *testing.T) {
	want := NewLoggedString(LogInfo, 1, "hello world")
	b, err := want.MarshalBinary()
	require.NoError(t, err)

	var r Record
	assert.ErrorIs(t, r.UnmarshalBinary(b[:len(b)-1]), ErrShortBuffer)
}
