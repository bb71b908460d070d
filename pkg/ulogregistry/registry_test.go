package ulogregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsDuplicateNames(t *testing.T) {
	_, err := New(
		MessageMeta{Name: "a", Format: "uint64_t timestamp", WireSize: 8},
		MessageMeta{Name: "a", Format: "uint64_t timestamp", WireSize: 8},
	)
	require.Error(t, err)
}

func TestNewPreservesOrder(t *testing.T) {
	reg, err := New(
		MessageMeta{Name: "first", Format: "uint64_t timestamp", WireSize: 8},
		MessageMeta{Name: "second", Format: "uint64_t timestamp", WireSize: 8},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	meta, ok := reg.Get(0)
	require.True(t, ok)
	assert.Equal(t, "first", meta.Name)

	meta, ok = reg.Get(1)
	require.True(t, ok)
	assert.Equal(t, "second", meta.Name)
}

func TestGetOutOfRange(t *testing.T) {
	reg := MustNew(MessageMeta{Name: "only", Format: "uint64_t timestamp", WireSize: 8})
	_, ok := reg.Get(1)
	assert.False(t, ok)
}

func TestGetOnNilRegistry(t *testing.T) {
	var reg *Registry
	assert.Equal(t, 0, reg.Len())
	_, ok := reg.Get(0)
	assert.False(t, ok)
}

func TestAllStopsEarly(t *testing.T) {
	reg := MustNew(
		MessageMeta{Name: "a", Format: "uint64_t timestamp", WireSize: 8},
		MessageMeta{Name: "b", Format: "uint64_t timestamp", WireSize: 8},
		MessageMeta{Name: "c", Format: "uint64_t timestamp", WireSize: 8},
	)

	var seen []string
	reg.All(func(_ uint16, meta MessageMeta) bool {
		seen = append(seen, meta.Name)
		return meta.Name != "b"
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestMustNewPanicsOnDuplicate(t *testing.T) {
	assert.Panics(t, func() {
		MustNew(
			MessageMeta{Name: "dup", Format: "uint64_t timestamp", WireSize: 8},
			MessageMeta{Name: "dup", Format: "uint64_t timestamp", WireSize: 8},
		)
	})
}
