package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_StickyError_ShortCircuitsFurtherWrites(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.WriteU8(1))
	lenBefore := len(w.Bytes())

	err := w.WriteF64(nanValue())
	require.Error(t, err)

	err2 := w.WriteU8(2)
	assert.Equal(t, err, err2, "sticky error must be returned unchanged")
	assert.Equal(t, lenBefore, len(w.Bytes()), "no bytes should be appended after the sticky error")
}

func TestReader_StickyError_ShortCircuitsFurtherReads(t *testing.T) {
	r := NewReader([]byte{TagU8, 0x01})
	v, err := r.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(1), v)

	_, err = r.ReadU32()
	require.Error(t, err)
	posAfterFirstErr := r.pos

	_, err2 := r.ReadBool()
	assert.Equal(t, err, err2)
	assert.Equal(t, posAfterFirstErr, r.pos, "no further bytes should be consumed after the sticky error")
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}
