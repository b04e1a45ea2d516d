package wire

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, payload []byte) (byte, []byte) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, OpText, payload))
	op, got, err := readFrame(&buf)
	require.NoError(t, err)
	return op, got
}

func TestFrameRoundTripShort(t *testing.T) {
	op, got := roundTrip(t, []byte(`{"status":"pending"}`))
	assert.Equal(t, OpText, op)
	assert.Equal(t, `{"status":"pending"}`, string(got))
}

func TestFrameLengthEncoding(t *testing.T) {
	// 125 is the last 7-bit length, 126 the first extended one.
	for _, n := range []int{0, 1, 125, 126, 127, 65535} {
		payload := bytes.Repeat([]byte("a"), n)
		var buf bytes.Buffer
		require.NoError(t, writeFrame(&buf, OpText, payload))

		hdr := buf.Bytes()
		if n < 126 {
			assert.Equal(t, byte(n), hdr[1]&0x7f, "len %d", n)
		} else {
			assert.Equal(t, byte(126), hdr[1]&0x7f, "len %d", n)
		}

		_, got, err := readFrame(&buf)
		require.NoError(t, err)
		assert.Len(t, got, n)
	}
}

func TestFrameRejectsOversizedWrite(t *testing.T) {
	var buf bytes.Buffer
	err := writeFrame(&buf, OpText, make([]byte, 1<<16))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Zero(t, buf.Len())
}

func TestFrameRejects64BitLength(t *testing.T) {
	// 127 in the length byte announces a 64-bit extended length.
	_, _, err := readFrame(bytes.NewReader([]byte{finBit | OpText, 127}))
	assert.ErrorIs(t, err, ErrUnsupportedLength)
}

func TestFrameReadsMaskedClientFrame(t *testing.T) {
	payload := []byte("close me")
	key := [4]byte{0x12, 0x34, 0x56, 0x78}
	masked := make([]byte, len(payload))
	for i, b := range payload {
		masked[i] = b ^ key[i%4]
	}
	frame := append([]byte{finBit | OpClose, maskBit | byte(len(payload))}, key[:]...)
	frame = append(frame, masked...)

	op, got, err := readFrame(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, OpClose, op)
	assert.Equal(t, payload, got)
}

func TestFrameTruncatedHeader(t *testing.T) {
	_, _, err := readFrame(strings.NewReader("\x81"))
	assert.Error(t, err)
}
