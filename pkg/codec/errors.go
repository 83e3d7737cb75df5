package codec

import "errors"

// ErrChecksum is returned when a sealed payload fails verification.
var ErrChecksum = errors.New("codec: checksum mismatch")
