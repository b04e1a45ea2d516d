package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	OpText  byte = 0x1
	OpClose byte = 0x8

	finBit  byte = 0x80
	maskBit byte = 0x80
)

var (
	// ErrFrameTooLarge: payloads needing a 64-bit extended length are out
	// of protocol; push messages are small JSON objects.
	ErrFrameTooLarge     = errors.New("wire: payload exceeds 16-bit frame length")
	ErrUnsupportedLength = errors.New("wire: 64-bit frame lengths unsupported")
)

func writeFrame(w io.Writer, op byte, payload []byte) error {
	if len(payload) >= 1<<16 {
		return ErrFrameTooLarge
	}
	var hdr [4]byte
	hdr[0] = finBit | op
	n := 2
	if len(payload) < 126 {
		hdr[1] = byte(len(payload))
	} else {
		hdr[1] = 126
		binary.BigEndian.PutUint16(hdr[2:4], uint16(len(payload)))
		n = 4
	}
	if _, err := w.Write(hdr[:n]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFrame parses one frame. Client frames arrive masked, so the mask
// bit and key are handled; a 127 length byte is a protocol error.
func readFrame(r io.Reader) (byte, []byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	op := hdr[0] & 0x0f
	masked := hdr[1]&maskBit != 0
	length := int(hdr[1] & 0x7f)
	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return 0, nil, err
		}
		length = int(binary.BigEndian.Uint16(ext[:]))
	case 127:
		return 0, nil, ErrUnsupportedLength
	}
	var key [4]byte
	if masked {
		if _, err := io.ReadFull(r, key[:]); err != nil {
			return 0, nil, err
		}
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	if masked {
		for i := range payload {
			payload[i] ^= key[i%4]
		}
	}
	return op, payload, nil
}
