package wire

import "bytes"

// Legacy payload prefixes recognised by the device for backward
// compatibility with hosts that predate this codec (§9 open question:
// "Legacy modes ... are accepted by the device but not emitted by the
// new host encoder"). Disabled by default; a transport.DeviceLoop
// consults them only when built with transport.WithLegacyFrames.
var rgb565Prefix = []byte("RGB565")

// LegacyKind classifies a binary WebSocket payload that does not carry
// one of the three delta-protocol magics.
type LegacyKind uint8

const (
	// LegacyNone indicates the payload matched no recognised legacy shape.
	LegacyNone LegacyKind = iota
	// LegacyRawLZ4 indicates a bare lz4_size_prefixed(rgb565) buffer, with
	// no magic or geometry header at all -- treat it exactly like a KEY
	// frame's payload, at the device's already-known geometry.
	LegacyRawLZ4
	// LegacyRawRGB565 indicates an ASCII "RGB565" prefix followed by raw,
	// uncompressed big-endian RGB565 pixels.
	LegacyRawRGB565
)

// DetectLegacy classifies msg for a device configured with
// WithLegacyFrames and returns the bytes after any prefix. A payload
// starting with "RGB565" is LegacyRawRGB565; any other payload of at
// least 4 bytes is reported as LegacyRawLZ4 without further checks, so
// the decompressed-size prefix is validated only later, by the decoder.
func DetectLegacy(msg []byte) (LegacyKind, []byte) {
	if bytes.HasPrefix(msg, rgb565Prefix) {
		return LegacyRawRGB565, msg[len(rgb565Prefix):]
	}
	if len(msg) >= 4 {
		return LegacyRawLZ4, msg
	}
	return LegacyNone, nil
}
