// Package wire serialises codec.Frame values into the two on-wire
// framings the streaming core uses: message framing (one CodecFrame per
// WebSocket binary message) and stream framing (magic-delimited,
// length-prefixed records for the USB byte stream, interleaved with
// ASCII control lines). The stream side is a push parser: callers hand
// StreamCodec.Feed whatever bytes they read, and it scans them for the
// 8-byte magics and returns each completed record as an Event.
package wire

import "github.com/damianoneill/screenstream/internal/codec"

// MagicLen is the fixed length, in bytes, of every magic tag. The three
// frame-kind magics must be distinct 8-byte ASCII tags so a decoder can
// classify an incoming message from its first 8 bytes alone. Changing
// any of these values is a wire-break; they are pinned here, versioned
// by this file.
const MagicLen = 8

// Frame-kind magics (message framing, §6 on-wire framing table).
var (
	KeyMagic   = [MagicLen]byte{'S', 'C', 'R', 'K', 'E', 'Y', '0', '1'}
	DeltaMagic = [MagicLen]byte{'S', 'C', 'R', 'D', 'L', 'T', '0', '1'}
	NopMagic   = [MagicLen]byte{'S', 'C', 'R', 'N', 'O', 'P', '0', '1'}
)

// Stream-framing magics (§4.3, §6).
var (
	ImageAAMagic  = [MagicLen]byte{'I', 'M', 'A', 'G', 'E', '_', 'A', 'A'}
	ImageBBMagic  = [MagicLen]byte{'I', 'M', 'A', 'G', 'E', '_', 'B', 'B'}
	SpeedTestStart = [MagicLen]byte{'S', 'P', 'D', 'T', 'E', 'S', 'T', '1'}
	SpeedTestEnd   = [MagicLen]byte{'S', 'P', 'D', 'E', 'N', 'D', '!', '!'}
	ReadInfoMagic  = [MagicLen]byte{'R', 'e', 'a', 'd', 'I', 'n', 'f', 'o'}
)

// ReadInfoLine is the alternative ASCII-line form of the device-info probe.
const ReadInfoLine = "ReadInfo\n"

// DeviceInfoReplyFormat is the device-info probe reply template (§6, §4.4.4.6).
const DeviceInfoReplyFormat = "ESP32-WIFI-SCREEN;%d;%d;PROTO:USB-SCREEN\n"

// SpeedResultFormat is the bandwidth-probe reply template (§4.4.4.5).
const SpeedResultFormat = "SPEEDRESULT;%d;%d\n"

func bytesEqualMagic(b []byte, m [MagicLen]byte) bool {
	if len(b) != MagicLen {
		return false
	}
	for i := range m {
		if b[i] != m[i] {
			return false
		}
	}
	return true
}

func magicOf(k codec.Kind) [MagicLen]byte {
	switch k {
	case codec.KindKey:
		return KeyMagic
	case codec.KindDelta:
		return DeltaMagic
	default:
		return NopMagic
	}
}

func kindOfMagic(b []byte) (codec.Kind, bool) {
	switch {
	case bytesEqualMagic(b, KeyMagic):
		return codec.KindKey, true
	case bytesEqualMagic(b, DeltaMagic):
		return codec.KindDelta, true
	case bytesEqualMagic(b, NopMagic):
		return codec.KindNop, true
	default:
		return 0, false
	}
}
