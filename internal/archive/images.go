package archive

import (
	"fmt"

	"github.com/dgallion1/projpack/internal/sniff"
	"github.com/dgallion1/projpack/internal/token"
)

// ImagesDir is the archive directory holding externalized images.
const ImagesDir = "images"

var externalizable = map[string]bool{
	string(sniff.FormatJPEG): true,
	"image/jpg":              true,
	string(sniff.FormatPNG):  true,
	string(sniff.FormatGIF):  true,
	string(sniff.FormatWebP): true,
	string(sniff.FormatAVIF): true,
}

// Externalize moves every image data URI into its own archive member named
// images/{index}{ext} and replaces the token with the quoted member path.
// The declared type is corrected from the payload bytes first, so the
// extension always matches the member's contents. Tokens that fail to
// decode are left inline.
func Externalize(tokens []token.Token) ([]token.Token, []File) {
	out := make([]token.Token, len(tokens))
	var files []File
	for i, tok := range tokens {
		out[i] = tok
		if tok.Kind != token.DataURI {
			continue
		}
		d, err := sniff.ParseDataURI(sniff.FixMIME(tok.Content))
		if err != nil || !externalizable[d.MIME] {
			continue
		}
		data, err := d.Bytes()
		if err != nil {
			continue
		}
		name := fmt.Sprintf("%s/%d%s", ImagesDir, tok.Index, sniff.Extension(d.MIME))
		files = append(files, File{Name: name, Data: data, ContentType: d.MIME})
		out[i].Content = d.Quote + name + d.Quote
	}
	return out, files
}
