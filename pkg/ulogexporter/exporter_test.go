package ulogexporter

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jettify/uf-ulog-go/internal/queue"
	"github.com/jettify/uf-ulog-go/pkg/ulogrecord"
	"github.com/jettify/uf-ulog-go/pkg/ulogregistry"
)

type frame struct {
	typ     byte
	payload []byte
}

func readFrames(t *testing.T, b []byte) []frame {
	t.Helper()
	var frames []frame
	for len(b) > 0 {
		require.GreaterOrEqual(t, len(b), 3)
		size := binary.LittleEndian.Uint16(b[:2])
		typ := b[2]
		b = b[3:]
		require.GreaterOrEqual(t, len(b), int(size))
		frames = append(frames, frame{typ: typ, payload: b[:size]})
		b = b[size:]
	}
	return frames
}

func testRegistry(t *testing.T) *ulogregistry.Registry {
	t.Helper()
	reg, err := ulogregistry.New(
		ulogregistry.MessageMeta{Name: "vehicle_status", Format: "uint64_t timestamp;uint8_t state", WireSize: 9},
	)
	require.NoError(t, err)
	return reg
}

func TestEmitStartupWritesHeaderFlagBitsAndFormats(t *testing.T) {
	var sink bytes.Buffer
	reg := testRegistry(t)
	exp := New(reg, queue.New[ulogrecord.Record](1), &sink, 4, 16)

	require.NoError(t, exp.EmitStartup(12345))

	out := sink.Bytes()
	require.GreaterOrEqual(t, len(out), 16)
	assert.Equal(t, fileMagic[:], out[:7])
	assert.Equal(t, fileVersion, out[7])
	assert.Equal(t, uint64(12345), binary.LittleEndian.Uint64(out[8:16]))

	frames := readFrames(t, out[16:])
	require.Len(t, frames, 2)
	assert.Equal(t, msgTypeFlagBits, frames[0].typ)
	assert.Equal(t, flagBitsPayloadSize, len(frames[0].payload))
	assert.Equal(t, msgTypeFormat, frames[1].typ)
	assert.Equal(t, "vehicle_status:uint64_t timestamp;uint8_t state", string(frames[1].payload))
}

func TestEmitStartupIsIdempotent(t *testing.T) {
	var sink bytes.Buffer
	exp := New(testRegistry(t), queue.New[ulogrecord.Record](1), &sink, 4, 16)

	require.NoError(t, exp.EmitStartup(1))
	n := sink.Len()
	require.NoError(t, exp.EmitStartup(2))
	assert.Equal(t, n, sink.Len(), "second EmitStartup must be a no-op")
}

func TestPollOnceIdleBeforeStart(t *testing.T) {
	var sink bytes.Buffer
	q := queue.New[ulogrecord.Record](1)
	exp := New(testRegistry(t), q, &sink, 4, 16)

	q.TrySend(ulogrecord.NewLoggedString(ulogrecord.LogInfo, 1, "should not be read"))
	step, err := exp.PollOnce()
	require.NoError(t, err)
	assert.Equal(t, Idle, step)

	v, ok := q.TryRecv()
	assert.True(t, ok, "PollOnce before EmitStartup must not touch the queue")
	assert.Equal(t, "should not be read", string(v.Bytes()))
}

func TestRunRequiresEmitStartup(t *testing.T) {
	var sink bytes.Buffer
	exp := New(testRegistry(t), queue.New[ulogrecord.Record](1), &sink, 4, 16)
	assert.ErrorIs(t, exp.Run(context.Background()), ErrNotStarted)
}

func TestWriteRecordLoggedStringUntagged(t *testing.T) {
	var sink bytes.Buffer
	exp := New(testRegistry(t), queue.New[ulogrecord.Record](1), &sink, 4, 16)
	require.NoError(t, exp.EmitStartup(0))
	sink.Reset()

	r := ulogrecord.NewLoggedString(ulogrecord.LogErr, 42, "oops")
	require.NoError(t, exp.WriteRecord(r))

	frames := readFrames(t, sink.Bytes())
	require.Len(t, frames, 1)
	assert.Equal(t, msgTypeLog, frames[0].typ)
	assert.Equal(t, byte('3'), frames[0].payload[0])
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(frames[0].payload[1:9]))
	assert.Equal(t, "oops", string(frames[0].payload[9:]))
}

func TestWriteRecordLoggedStringTagged(t *testing.T) {
	var sink bytes.Buffer
	exp := New(testRegistry(t), queue.New[ulogrecord.Record](1), &sink, 4, 16)
	require.NoError(t, exp.EmitStartup(0))
	sink.Reset()

	r := ulogrecord.NewLoggedStringTagged(ulogrecord.LogWarning, 3, 7, "low battery")
	require.NoError(t, exp.WriteRecord(r))

	frames := readFrames(t, sink.Bytes())
	require.Len(t, frames, 1)
	assert.Equal(t, msgTypeLogTagged, frames[0].typ)
	assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(frames[0].payload[1:3]))
}

func TestWriteRecordParameter(t *testing.T) {
	var sink bytes.Buffer
	exp := New(testRegistry(t), queue.New[ulogrecord.Record](1), &sink, 4, 16)
	require.NoError(t, exp.EmitStartup(0))
	sink.Reset()

	r, err := ulogrecord.NewParameter("int32_t FOO", ulogrecord.I32(99))
	require.NoError(t, err)
	require.NoError(t, exp.WriteRecord(r))

	frames := readFrames(t, sink.Bytes())
	require.Len(t, frames, 1)
	assert.Equal(t, msgTypeParameter, frames[0].typ)
	keyLen := int(frames[0].payload[0])
	assert.Equal(t, "int32_t FOO", string(frames[0].payload[1:1+keyLen]))
	assert.Equal(t, uint32(99), binary.LittleEndian.Uint32(frames[0].payload[1+keyLen:]))
}

func TestWriteRecordDataEmitsSubscriptionOnce(t *testing.T) {
	var sink bytes.Buffer
	exp := New(testRegistry(t), queue.New[ulogrecord.Record](1), &sink, 4, 16)
	require.NoError(t, exp.EmitStartup(0))
	sink.Reset()

	r1, err := ulogrecord.NewData(0, 0, 1, []byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, exp.WriteRecord(r1))

	frames := readFrames(t, sink.Bytes())
	require.Len(t, frames, 2)
	assert.Equal(t, msgTypeAddSubscription, frames[0].typ)
	assert.Equal(t, msgTypeData, frames[1].typ)

	sink.Reset()
	r2, err := ulogrecord.NewData(0, 0, 2, []byte{4, 5, 6})
	require.NoError(t, err)
	require.NoError(t, exp.WriteRecord(r2))

	frames = readFrames(t, sink.Bytes())
	require.Len(t, frames, 1, "subscription must only be emitted on first use of the slot")
	assert.Equal(t, msgTypeData, frames[0].typ)
}

func TestWriteRecordDataRejectsInvalidMultiId(t *testing.T) {
	var sink bytes.Buffer
	exp := New(testRegistry(t), queue.New[ulogrecord.Record](1), &sink, 2, 16)
	require.NoError(t, exp.EmitStartup(0))

	r, err := ulogrecord.NewData(0, 5, 1, []byte{1})
	require.NoError(t, err)
	assert.ErrorIs(t, exp.WriteRecord(r), ErrInvalidMultiId)
}

func TestWriteRecordDataRejectsInvalidTopicIndex(t *testing.T) {
	var sink bytes.Buffer
	exp := New(testRegistry(t), queue.New[ulogrecord.Record](1), &sink, 4, 16)
	require.NoError(t, exp.EmitStartup(0))

	r, err := ulogrecord.NewData(9, 0, 1, []byte{1})
	require.NoError(t, err)
	assert.ErrorIs(t, exp.WriteRecord(r), ErrInvalidTopicIndex)
}

func TestWriteRecordDataDropsOnStreamBudgetExhausted(t *testing.T) {
	var sink bytes.Buffer
	// maxStreams 1: topic 0 instance 0 -> slot 0 fits, instance 1 -> slot 1 is over budget.
	exp := New(testRegistry(t), queue.New[ulogrecord.Record](1), &sink, 4, 1)
	require.NoError(t, exp.EmitStartup(0))
	sink.Reset()

	r0, err := ulogrecord.NewData(0, 0, 1, []byte{1})
	require.NoError(t, err)
	require.NoError(t, exp.WriteRecord(r0))
	assert.Equal(t, uint32(0), exp.DroppedStreams())

	r1, err := ulogrecord.NewData(0, 1, 1, []byte{1})
	require.NoError(t, err)
	require.NoError(t, exp.WriteRecord(r1), "budget overflow is a silent drop, not an error")
	assert.Equal(t, uint32(1), exp.DroppedStreams())
}

func TestPollOnceDrainsOneRecordAfterStart(t *testing.T) {
	var sink bytes.Buffer
	q := queue.New[ulogrecord.Record](1)
	exp := New(testRegistry(t), q, &sink, 4, 16)
	require.NoError(t, exp.EmitStartup(0))
	sink.Reset()

	q.TrySend(ulogrecord.NewLoggedString(ulogrecord.LogInfo, 1, "hi"))
	step, err := exp.PollOnce()
	require.NoError(t, err)
	assert.Equal(t, Progressed, step)

	step, err = exp.PollOnce()
	require.NoError(t, err)
	assert.Equal(t, Idle, step)
}
