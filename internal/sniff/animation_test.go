package sniff

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"image"
	"image/color/palette"
	"image/gif"
	"testing"
)

// craftGIF builds a minimal GIF89a header followed by a Graphics Control
// Extension with the given delay.
func craftGIF(globalTable bool, delay uint16) []byte {
	b := []byte("GIF89a")
	packed := byte(0x00)
	if globalTable {
		packed = 0x80 // N=0 => 2 colors, 6 bytes
	}
	b = append(b, 0x01, 0x00, 0x01, 0x00, packed, 0x00, 0x00)
	if globalTable {
		b = append(b, 0, 0, 0, 0xFF, 0xFF, 0xFF)
	}
	gce := []byte{0x21, 0xF9, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00}
	binary.LittleEndian.PutUint16(gce[4:6], delay)
	return append(b, gce...)
}

func TestIsGIFAnimated_Delay(t *testing.T) {
	if IsGIFAnimated(craftGIF(false, 0)) {
		t.Error("expected delay=0 to be still")
	}
	if !IsGIFAnimated(craftGIF(false, 10)) {
		t.Error("expected delay=10 to be animated")
	}
}

func TestIsGIFAnimated_SkipsGlobalColorTable(t *testing.T) {
	if !IsGIFAnimated(craftGIF(true, 10)) {
		t.Error("expected delay=10 after global color table to be animated")
	}
	if IsGIFAnimated(craftGIF(true, 0)) {
		t.Error("expected delay=0 after global color table to be still")
	}
}

func TestIsGIFAnimated_Truncated(t *testing.T) {
	full := craftGIF(false, 10)
	for n := 0; n < len(full)-2; n++ {
		if IsGIFAnimated(full[:n]) {
			t.Errorf("expected truncated gif (%d bytes) to be still", n)
		}
	}
}

func TestIsGIFAnimated_NoExtension(t *testing.T) {
	b := craftGIF(false, 10)
	b[13] = 0x2C // image descriptor instead of extension
	if IsGIFAnimated(b) {
		t.Error("expected gif without a control extension to be still")
	}
}

func encodedGIF(t *testing.T, frames int, delay int) []byte {
	t.Helper()
	g := &gif.GIF{}
	for i := range frames {
		img := image.NewPaletted(image.Rect(0, 0, 4, 4), palette.Plan9)
		img.Pix[0] = uint8(i + 1)
		g.Image = append(g.Image, img)
		g.Delay = append(g.Delay, delay)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestIsGIFAnimated_LoopExtensionFirst(t *testing.T) {
	b := encodedGIF(t, 2, 10)
	if !bytes.Contains(b, []byte("NETSCAPE2.0")) {
		t.Fatal("expected encoder to write a loop extension")
	}
	if !IsGIFAnimated(b) {
		t.Error("expected encoded two-frame gif to be animated")
	}
	if IsGIFAnimated(encodedGIF(t, 1, 0)) {
		t.Error("expected single still frame to be still")
	}
}

func TestIsGIFAnimated_SkipsCommentExtension(t *testing.T) {
	b := craftGIF(false, 0)
	gce := append([]byte(nil), b[13:]...)
	comment := []byte{0x21, 0xFE, 3, 'h', 'i', '!', 0}

	withComment := append(append(b[:13:13], comment...), gce...)
	if IsGIFAnimated(withComment) {
		t.Error("expected delay=0 behind a comment to be still")
	}
	binary.LittleEndian.PutUint16(gce[4:6], 7)
	withComment = append(append(b[:13:13], comment...), gce...)
	if !IsGIFAnimated(withComment) {
		t.Error("expected delay=7 behind a comment to be animated")
	}
	if IsGIFAnimated(withComment[:15]) {
		t.Error("expected unterminated comment to be still")
	}
}

func animatedWebP() []byte {
	b := []byte("RIFF\x00\x00\x00\x00WEBP")
	b = append(b, []byte("VP8X")...)
	b = append(b, 10, 0, 0, 0)
	b = append(b, 0x02, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	b = append(b, []byte("ANIM")...)
	b = append(b, 6, 0, 0, 0)
	b = append(b, 0, 0, 0, 0, 0, 0)
	return b
}

func TestHasANIMMarker_CanonicalLayout(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString(animatedWebP())
	if !HasANIMMarker(b64) {
		t.Errorf("expected marker at offset 40, payload %q", b64)
	}
	if HasANIMMarker("short") {
		t.Error("expected short payload to have no marker")
	}
}

func TestIsWebPAnimated_ChunkWalk(t *testing.T) {
	if !IsWebPAnimated(animatedWebP()) {
		t.Error("expected animated webp")
	}

	still := []byte("RIFF\x00\x00\x00\x00WEBPVP8L")
	still = append(still, 5, 0, 0, 0, 0x2F, 0, 0, 0, 0, 0)
	if IsWebPAnimated(still) {
		t.Error("expected lossless still webp not to be animated")
	}
}

func TestIsWebPAnimated_ExtraChunkBeforeANIM(t *testing.T) {
	b := []byte("RIFF\x00\x00\x00\x00WEBP")
	b = append(b, []byte("VP8X")...)
	b = append(b, 10, 0, 0, 0)
	b = append(b, 0x00, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	b = append(b, []byte("ICCP")...)
	b = append(b, 3, 0, 0, 0, 1, 2, 3, 0) // odd size padded
	b = append(b, []byte("ANMF")...)
	b = append(b, 0, 0, 0, 0)

	if HasANIMMarker(base64.StdEncoding.EncodeToString(b)) {
		t.Fatal("expected heuristic to miss a shifted chunk")
	}
	if !IsWebPAnimated(b) {
		t.Error("expected chunk walk to find ANMF")
	}
	if !IsAnimatedWebPDataURI(NewDataURI(`"`, "image/webp", b)) {
		t.Error("expected data URI check to report animation")
	}
}
