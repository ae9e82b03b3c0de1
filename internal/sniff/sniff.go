// Package sniff identifies image payloads from their leading bytes and
// reconciles that identification with the MIME type a data URI declares.
package sniff

import (
	"bytes"
	"encoding/binary"
)

// Format is a MIME type derived from binary signature bytes.
type Format string

const (
	FormatJPEG    Format = "image/jpeg"
	FormatPNG     Format = "image/png"
	FormatGIF     Format = "image/gif"
	FormatWebP    Format = "image/webp"
	FormatAVIF    Format = "image/avif"
	FormatUnknown Format = "unknown"
	FormatError   Format = "error"
)

// MinSniffLen is the number of leading bytes needed to check every signature.
const MinSniffLen = 12

// Known reports whether f names an actual image format.
func (f Format) Known() bool {
	return f != FormatUnknown && f != FormatError && f != ""
}

// avifBrands are ISO-BMFF brands that mark AVIF or a HEIF image sequence
// that AVIF decoders accept.
var avifBrands = [][]byte{
	[]byte("avif"),
	[]byte("avis"),
	[]byte("avio"),
	[]byte("mif1"),
	[]byte("msf1"),
}

// Sniff returns the format identified by the signature bytes of b.
// It never consults a declared type.
func Sniff(b []byte) Format {
	if len(b) < MinSniffLen {
		return FormatUnknown
	}
	switch {
	case b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return FormatJPEG
	case bytes.Equal(b[0:4], []byte{0x89, 'P', 'N', 'G'}):
		return FormatPNG
	case bytes.Equal(b[0:4], []byte("GIF8")):
		return FormatGIF
	case bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return FormatWebP
	case bytes.Equal(b[4:8], []byte("ftyp")) && hasAVIFBrand(b):
		return FormatAVIF
	}
	return FormatUnknown
}

// hasAVIFBrand checks the major brand and every compatible brand of the
// leading ftyp box.
func hasAVIFBrand(b []byte) bool {
	if isAVIFBrand(b[8:12]) {
		return true
	}
	end := int(binary.BigEndian.Uint32(b[0:4]))
	if end > len(b) || end < 16 {
		end = len(b)
	}
	for off := 16; off+4 <= end; off += 4 {
		if isAVIFBrand(b[off : off+4]) {
			return true
		}
	}
	return false
}

func isAVIFBrand(brand []byte) bool {
	for _, want := range avifBrands {
		if bytes.Equal(brand, want) {
			return true
		}
	}
	return false
}
