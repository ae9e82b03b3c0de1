// Package transcode re-encodes images embedded in a project document.
// Still images become AVIF, animated GIFs become animated WebP when the
// codec can write animation, and a result is only kept when it is smaller
// than what it replaces.
package transcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/gen2brain/avif"

	"github.com/dgallion1/projpack/internal/sniff"
)

// Target selects which encoder a codec operation uses.
type Target int

const (
	TargetStill Target = iota
	TargetAnimated
)

func (t Target) String() string {
	if t == TargetAnimated {
		return "animated"
	}
	return "still"
}

// ErrUnsupported is returned by a codec that cannot encode a target.
// Sessions keep the original image instead of counting a failure.
var ErrUnsupported = errors.New("encoder not available")

// Codec encodes fully decoded pixel buffers.
type Codec interface {
	// Prepare loads the encoder for target. Sessions call it at most once
	// per target.
	Prepare(target Target) error
	// MIME is the type of the data produced for target.
	MIME(target Target) string
	EncodeStill(img image.Image, quality int) ([]byte, error)
	EncodeAnimated(frames []image.Image, delaysMS []int, quality int) ([]byte, error)
}

// WASMCodec encodes AVIF stills through the libavif build shipped with
// github.com/gen2brain/avif. It has no animation encoder, so animated GIFs
// stay as they are.
type WASMCodec struct {
	// Speed is the AVIF encoder speed, 0 (slowest) to 10.
	Speed int
}

// NewWASMCodec returns a codec with moderate encoder effort.
func NewWASMCodec() *WASMCodec {
	return &WASMCodec{Speed: 6}
}

func (c *WASMCodec) MIME(target Target) string {
	if target == TargetAnimated {
		return string(sniff.FormatWebP)
	}
	return string(sniff.FormatAVIF)
}

// Prepare encodes a single pixel so the encoder module is compiled before
// the first real image arrives. The animated target reports ErrUnsupported.
func (c *WASMCodec) Prepare(target Target) error {
	if target == TargetAnimated {
		return fmt.Errorf("prepare %s encoder: %w", target, ErrUnsupported)
	}
	px := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	if _, err := c.EncodeStill(px, 50); err != nil {
		return fmt.Errorf("prepare %s encoder: %w", target, err)
	}
	return nil
}

func (c *WASMCodec) EncodeStill(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := avif.Encode(&buf, img, c.avifOptions(quality)); err != nil {
		return nil, fmt.Errorf("encode avif: %w", err)
	}
	return buf.Bytes(), nil
}

// avifOptions maps quality onto the encoder. avif.Encode replaces a
// quality of 0 with its own default, so 0 is sent as 1.
func (c *WASMCodec) avifOptions(quality int) avif.Options {
	quality = max(quality, 1)
	return avif.Options{
		Quality:      quality,
		QualityAlpha: quality,
		Speed:        c.Speed,
	}
}

func (c *WASMCodec) EncodeAnimated([]image.Image, []int, int) ([]byte, error) {
	return nil, ErrUnsupported
}
