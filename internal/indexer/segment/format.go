// Package segment persists index snapshots to disk so a process can reuse
// an index built earlier for the same corpus. Each snapshot is one file
// named after its corpus fingerprint: a fixed 64-byte header followed by a
// zstd-compressed CBOR payload whose BLAKE3 checksum is kept in the header.
package segment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/codec"
)

const (
	MagicBytes    uint32 = 0x58444952 // "RIDX"
	FormatVersion uint16 = 1
	HeaderSize    int    = 64

	// maxUncompressedSize bounds the header's uncompressed size, which
	// the payload checksum does not cover.
	maxUncompressedSize = 1 << 36

	filePrefix = "snap_"
	fileSuffix = ".ridx"
)

var (
	// ErrCorrupt marks a snapshot file that failed a structural or
	// checksum check.
	ErrCorrupt = errors.New("corrupt snapshot file")

	fingerprintPattern = regexp.MustCompile(`^[0-9a-f]{16,128}$`)
)

// Header is the fixed-size prefix of a snapshot file.
//
//	0:4   magic
//	4:6   format version
//	6:8   reserved
//	8:16  created at, unix nanoseconds
//	16:24 compressed payload size
//	24:32 uncompressed payload size
//	32:64 BLAKE3-256 of the compressed payload
type Header struct {
	Magic            uint32
	Version          uint16
	CreatedAt        int64
	PayloadSize      uint64
	UncompressedSize uint64
	Checksum         codec.Checksum
}

func (h Header) encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint16(b[4:6], h.Version)
	binary.LittleEndian.PutUint64(b[8:16], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[16:24], h.PayloadSize)
	binary.LittleEndian.PutUint64(b[24:32], h.UncompressedSize)
	copy(b[32:64], h.Checksum[:])
	return b
}

func decodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: short header (%d bytes)", ErrCorrupt, len(b))
	}
	h := Header{
		Magic:            binary.LittleEndian.Uint32(b[0:4]),
		Version:          binary.LittleEndian.Uint16(b[4:6]),
		CreatedAt:        int64(binary.LittleEndian.Uint64(b[8:16])),
		PayloadSize:      binary.LittleEndian.Uint64(b[16:24]),
		UncompressedSize: binary.LittleEndian.Uint64(b[24:32]),
	}
	copy(h.Checksum[:], b[32:64])
	if h.Magic != MagicBytes {
		return Header{}, fmt.Errorf("%w: bad magic bytes %x", ErrCorrupt, h.Magic)
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, h.Version)
	}
	return h, nil
}

// payload is the CBOR body of a snapshot file. Postings are flattened per
// term as alternating (doc delta, freq) pairs.
type payload struct {
	Fingerprint string     `cbor:"1,keyasint"`
	BuiltAt     int64      `cbor:"2,keyasint"`
	Terms       []string   `cbor:"3,keyasint"`
	Postings    [][]uint32 `cbor:"4,keyasint"`
	DocIDs      []string   `cbor:"5,keyasint"`
	DocLens     []uint32   `cbor:"6,keyasint"`
}

// FileName returns the snapshot file name for fingerprint.
func FileName(fingerprint string) string {
	return filePrefix + fingerprint + fileSuffix
}

func validFingerprint(fp string) error {
	if !fingerprintPattern.MatchString(fp) {
		return fmt.Errorf("invalid fingerprint %q", fp)
	}
	return nil
}
