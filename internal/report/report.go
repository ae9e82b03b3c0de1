// Package report summarizes a packing run as Markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dgallion1/projpack/internal/pipeline"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown renders a run summary followed by the archive member table.
func Markdown(res *pipeline.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escape(res.Name))
	fmt.Fprintf(&b, "Packed from <%s> in %s.\n\n", res.BaseURL, time.Duration(res.ElapsedMS)*time.Millisecond)

	b.WriteString("| Run | |\n|---|---:|\n")
	row(&b, "Archive size", humanize.Bytes(uint64(len(res.Archive))))
	row(&b, "Members", humanize.Comma(int64(len(res.Manifest.Entries))))
	row(&b, "Uncompressed", humanize.Bytes(uint64(res.Manifest.TotalSize())))
	row(&b, "Document", fmt.Sprintf("%s → %s", humanize.Bytes(uint64(res.DocumentBefore)), humanize.Bytes(uint64(res.DocumentAfter))))
	row(&b, "External images", fmt.Sprintf("%d of %d inlined", res.Inlined, res.Images))
	t := res.Transcode
	if t.Converted+t.Kept+t.Failed > 0 {
		row(&b, "Re-encoded", humanize.Comma(t.Converted))
		row(&b, "Kept original", humanize.Comma(t.Kept))
		row(&b, "Label fixes", humanize.Comma(t.MIMEFixed))
		row(&b, "Encode failures", humanize.Comma(t.Failed))
		row(&b, "Saved", humanize.Bytes(uint64(max(t.BytesSaved, 0))))
	}
	if res.Separated > 0 {
		row(&b, "Separate images", humanize.Comma(int64(res.Separated)))
	}
	row(&b, "Crawled files", humanize.Comma(int64(res.Crawled)))

	b.WriteString("\n## Files\n\n| Name | Size | Stored | BLAKE3 |\n|---|---:|:---:|---|\n")
	for _, e := range res.Manifest.Entries {
		stored := ""
		if e.Stored {
			stored = "✓"
		}
		digest := e.Digest
		if len(digest) > 16 {
			digest = digest[:16]
		}
		fmt.Fprintf(&b, "| %s | %s | %s | `%s` |\n", escape(e.Name), humanize.Bytes(uint64(e.Size)), stored, digest)
	}

	if len(res.References) > 0 {
		b.WriteString("\n## Document references\n\n")
		kinds := slices.Sorted(maps.Keys(res.References))
		for _, k := range kinds {
			fmt.Fprintf(&b, "- %s: %s\n", escape(k), humanize.Comma(int64(res.References[k])))
		}
	}

	if len(res.Manifest.Duplicates) > 0 {
		b.WriteString("\n## Skipped duplicates\n\n")
		for _, d := range res.Manifest.Duplicates {
			fmt.Fprintf(&b, "- %s\n", escape(d))
		}
	}
	return b.String()
}

// HTML renders Markdown(res) as a standalone page.
func HTML(res *pipeline.Result) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(res)), &body); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	var page bytes.Buffer
	page.WriteString("<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>")
	page.WriteString(htmlEscaper.Replace(res.Name))
	page.WriteString("</title></head><body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body></html>\n")
	return page.Bytes(), nil
}

func row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "| %s | %s |\n", label, value)
}

var mdEscaper = strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`, "`", "\\`", "<", "&lt;", ">", "&gt;")

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escape(s string) string {
	return mdEscaper.Replace(s)
}
