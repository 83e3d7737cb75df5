// Package codec wraps the binary encodings used for persisted engine state:
// deterministic CBOR for structure, zstd for compression and BLAKE3 for
// integrity checksums. Callers import this package instead of the
// underlying libraries.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

// ChecksumSize is the length in bytes of a Checksum.
const ChecksumSize = 32

// Checksum is a BLAKE3-256 digest.
type Checksum [ChecksumSize]byte

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	// zstd.Encoder and zstd.Decoder are safe for concurrent use through
	// EncodeAll / DecodeAll.
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	// Core Deterministic Encoding: identical values always produce
	// identical bytes, which keeps checksums stable across runs.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		MaxArrayElements: 1 << 30,
		MaxMapPairs:      1 << 30,
	}.DecMode()
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

// Marshal encodes v to deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Compress returns the zstd encoding of data.
func Compress(data []byte) []byte {
	return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

// maxPreallocRatio caps how far an untrusted expectedSize may grow the
// initial output buffer past the compressed length.
const maxPreallocRatio = 64

// Decompress reverses Compress. expectedSize, when positive, is checked
// against the decoded length. It only sizes the output buffer up to a
// bounded multiple of the input, so a bogus value cannot force a huge
// allocation.
func Decompress(compressed []byte, expectedSize int) ([]byte, error) {
	limit := len(compressed) * maxPreallocRatio
	capacity := expectedSize
	if capacity <= 0 || capacity > limit {
		capacity = min(len(compressed)*2, limit)
	}
	out, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, capacity))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if expectedSize > 0 && len(out) != expectedSize {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), expectedSize)
	}
	return out, nil
}

// Sum returns the BLAKE3-256 checksum of data.
func Sum(data []byte) Checksum {
	return Checksum(blake3.Sum256(data))
}

// NewHasher returns a streaming BLAKE3 hasher.
func NewHasher() *blake3.Hasher {
	return blake3.New()
}

// Seal encodes v as CBOR and prefixes the payload with its checksum.
func Seal(v any) ([]byte, error) {
	payload, err := Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	sum := Sum(payload)
	out := make([]byte, 0, ChecksumSize+len(payload))
	out = append(out, sum[:]...)
	return append(out, payload...), nil
}

// Open verifies a Seal'd buffer and decodes it into v. It returns
// ErrChecksum when the payload does not match its checksum.
func Open(sealed []byte, v any) error {
	if len(sealed) < ChecksumSize {
		return fmt.Errorf("%w: %d bytes is shorter than the checksum", ErrChecksum, len(sealed))
	}
	var want Checksum
	copy(want[:], sealed[:ChecksumSize])
	payload := sealed[ChecksumSize:]
	if Sum(payload) != want {
		return ErrChecksum
	}
	if err := Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}
