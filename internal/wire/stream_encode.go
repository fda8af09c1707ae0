package wire

import (
	"encoding/binary"
	"fmt"
)

// EncodeImageEnvelope builds one IMAGE_AA...IMAGE_BB stream record for
// an image of size w*h at position (x,y), carrying the already
// LZ4-size-prefixed payload produced by the codec.
func EncodeImageEnvelope(w, h, x, y int, compressed []byte) []byte {
	out := make([]byte, 0, MagicLen+8+len(compressed)+MagicLen)
	out = append(out, ImageAAMagic[:]...)
	var hdr [8]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(w))
	binary.BigEndian.PutUint16(hdr[2:4], uint16(h))
	binary.BigEndian.PutUint16(hdr[4:6], uint16(x))
	binary.BigEndian.PutUint16(hdr[6:8], uint16(y))
	out = append(out, hdr[:]...)
	out = append(out, compressed...)
	out = append(out, ImageBBMagic[:]...)
	return out
}

// EncodeSpeedTestEnvelope wraps payload in a SPDTEST1...SPDEND!! record.
func EncodeSpeedTestEnvelope(payload []byte) []byte {
	out := make([]byte, 0, MagicLen+len(payload)+MagicLen)
	out = append(out, SpeedTestStart[:]...)
	out = append(out, payload...)
	out = append(out, SpeedTestEnd[:]...)
	return out
}

// EncodeReadInfoProbe returns the 8-byte binary ReadInfo probe.
func EncodeReadInfoProbe() []byte {
	return append([]byte(nil), ReadInfoMagic[:]...)
}

// EncodeDeviceInfoReply formats the device-info probe reply (§6).
func EncodeDeviceInfoReply(w, h int) string {
	return fmt.Sprintf(DeviceInfoReplyFormat, w, h)
}

// EncodeSpeedResult formats the bandwidth-test reply (§4.4.4 point 5).
func EncodeSpeedResult(bytes int, elapsedMS int64) string {
	return fmt.Sprintf(SpeedResultFormat, bytes, elapsedMS)
}
