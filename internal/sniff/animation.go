package sniff

import (
	"bytes"
	"encoding/binary"
	"strings"
)

const (
	gifHeaderLen = 6
	gifLSDLen    = 7
)

const (
	gifExtension    = 0x21
	gifControlLabel = 0xF9
)

// IsGIFAnimated reports whether the first Graphics Control Extension of a
// GIF carries a non-zero delay time. Application, comment and plain text
// extensions ahead of it (a NETSCAPE2.0 loop block, usually) are skipped.
// The search stops at the first image descriptor, so a GIF whose first
// frame has no delay is reported as still even if later frames have one.
func IsGIFAnimated(b []byte) bool {
	packedAt := gifHeaderLen + gifLSDLen - 3
	if len(b) <= packedAt {
		return false
	}
	packed := b[packedAt]
	offset := gifHeaderLen + gifLSDLen
	if packed&0x80 != 0 {
		offset += 3 * (1 << ((packed & 0x07) + 1))
	}
	for offset+2 <= len(b) && b[offset] == gifExtension {
		if b[offset+1] == gifControlLabel {
			// introducer, label, block size, packed fields, delay (2 bytes LE)
			if offset+6 > len(b) {
				return false
			}
			return binary.LittleEndian.Uint16(b[offset+4:offset+6]) != 0
		}
		next, ok := skipSubBlocks(b, offset+2)
		if !ok {
			return false
		}
		offset = next
	}
	return false
}

// skipSubBlocks returns the offset just past the zero-length terminator of
// the data sub-block chain starting at off.
func skipSubBlocks(b []byte, off int) (int, bool) {
	for off < len(b) {
		size := int(b[off])
		off++
		if size == 0 {
			return off, true
		}
		off += size
	}
	return 0, false
}

// animMarker is "ANIM" as it appears in the base64 stream of a WebP whose
// ANIM chunk starts at byte 30, directly after a VP8X chunk.
const animMarker = "QU5JTQ"

// HasANIMMarker checks the base64 payload of a WebP for an encoded ANIM
// chunk at the offset produced by a canonical VP8X layout.
func HasANIMMarker(b64 string) bool {
	if len(b64) < 46 {
		return false
	}
	return b64[40:46] == animMarker
}

// IsWebPAnimated walks the RIFF chunks of a WebP looking for the VP8X
// animation flag or an ANIM/ANMF chunk.
func IsWebPAnimated(b []byte) bool {
	if len(b) < 12 || !bytes.Equal(b[0:4], []byte("RIFF")) || !bytes.Equal(b[8:12], []byte("WEBP")) {
		return false
	}
	for off := 12; off+8 <= len(b); {
		fourcc := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		switch fourcc {
		case "VP8X":
			if off+9 <= len(b) && b[off+8]&0x02 != 0 {
				return true
			}
		case "ANIM", "ANMF":
			return true
		}
		if size < 0 {
			return false
		}
		// chunks are padded to an even size
		off += 8 + size + size&1
	}
	return false
}

// IsAnimatedWebPDataURI combines the base64 marker check with a chunk walk
// of the decoded payload.
func IsAnimatedWebPDataURI(s string) bool {
	d, err := ParseDataURI(s)
	if err != nil {
		return false
	}
	if HasANIMMarker(strings.TrimSpace(d.Payload)) {
		return true
	}
	b, err := d.Bytes()
	if err != nil {
		return false
	}
	return IsWebPAnimated(b)
}
