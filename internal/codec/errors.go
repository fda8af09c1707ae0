package codec

import "github.com/pkg/errors"

// ErrorKind classifies a decode failure for the device's rate-limited
// error logging and for the §7 ACK/NACK policy table, so callers can
// classify a failure without distinguishing on error strings.
type ErrorKind uint8

const (
	// ErrorKindNone indicates no error occurred.
	ErrorKindNone ErrorKind = iota
	// ErrorKindNoReference indicates a DELTA arrived with no valid reference.
	ErrorKindNoReference
	// ErrorKindSizeMismatch indicates a decompressed payload of the wrong length.
	ErrorKindSizeMismatch
	// ErrorKindDecompressFailure indicates the LZ4 block itself failed to decode.
	ErrorKindDecompressFailure
)

// String renders ErrorKind for logging.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "None"
	case ErrorKindNoReference:
		return "NoReference"
	case ErrorKindSizeMismatch:
		return "SizeMismatch"
	case ErrorKindDecompressFailure:
		return "DecompressFailure"
	default:
		return "Unknown"
	}
}

// Sentinel errors returned by Decoder methods. Classify with errors.Is.
var (
	// ErrNoReference is returned by DecodeDelta when the decoder has no reference frame.
	ErrNoReference = errors.New("codec: delta frame received with no reference")
	// ErrSizeMismatch is returned when a decompressed payload's length is wrong.
	ErrSizeMismatch = errors.New("codec: decompressed payload size mismatch")
	// ErrDecompressFailure is returned when LZ4 decompression fails outright.
	ErrDecompressFailure = errors.New("codec: lz4 decompress failed")
)

// KindOf maps a sentinel error (or a wrapped instance of one) to its ErrorKind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrNoReference):
		return ErrorKindNoReference
	case errors.Is(err, ErrSizeMismatch):
		return ErrorKindSizeMismatch
	case errors.Is(err, ErrDecompressFailure):
		return ErrorKindDecompressFailure
	default:
		return ErrorKindDecompressFailure
	}
}
