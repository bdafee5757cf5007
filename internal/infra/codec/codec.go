// Package codec encodes local state records for the BlobStore.
//
// Records are CBOR with Core Deterministic Encoding, so the same value always
// produces the same bytes. Records larger than CompressThreshold are wrapped in
// a zstd frame. The first byte of every blob is a format tag.
package codec

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// CompressThreshold is the encoded size above which records are zstd-compressed.
const CompressThreshold = 4 << 10

const (
	tagCBOR     byte = 0x01
	tagZstdCBOR byte = 0x02
)

// ErrUnknownFormat is returned when a blob carries an unrecognized format tag.
var ErrUnknownFormat = errors.New("codec: unknown blob format")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	// zstd.Encoder and zstd.Decoder are safe for concurrent use.
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Timestamps keep nanosecond precision and their UTC offset.
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	// Unknown fields are ignored so older builds can read newer records.
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v into a tagged blob.
func Marshal(v any) ([]byte, error) {
	raw, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal: %w", err)
	}

	if len(raw) > CompressThreshold {
		compressed := zstdEncoder.EncodeAll(raw, make([]byte, 1, len(raw)/2+1))
		compressed[0] = tagZstdCBOR
		if len(compressed) < len(raw)+1 {
			return compressed, nil
		}
	}

	out := make([]byte, 0, len(raw)+1)
	out = append(out, tagCBOR)
	return append(out, raw...), nil
}

// Unmarshal decodes a tagged blob into v.
func Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("codec: unmarshal: empty blob")
	}

	var raw []byte
	switch data[0] {
	case tagCBOR:
		raw = data[1:]
	case tagZstdCBOR:
		var err error
		raw, err = zstdDecoder.DecodeAll(data[1:], nil)
		if err != nil {
			return fmt.Errorf("codec: zstd decompress: %w", err)
		}
	default:
		return fmt.Errorf("%w: tag 0x%02x", ErrUnknownFormat, data[0])
	}

	if err := decMode.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("codec: unmarshal: %w", err)
	}
	return nil
}

// Compressed reports whether the blob is stored in the zstd format.
func Compressed(data []byte) bool {
	return len(data) > 0 && data[0] == tagZstdCBOR
}
