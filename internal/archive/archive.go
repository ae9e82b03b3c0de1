// Package archive bundles the processed project document and its crawled
// assets into a single zip file.
package archive

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/zeebo/blake3"
)

// FallbackName is used when neither a title nor the source URL yields a name.
const FallbackName = "project"

// File is one member of the output archive.
type File struct {
	Name        string
	Data        []byte
	ContentType string
}

// Entry describes a written archive member.
type Entry struct {
	Name   string `json:"name"`
	Size   int    `json:"size"`
	Stored bool   `json:"stored"`
	Digest string `json:"blake3"`
}

// Manifest lists the members of an assembled archive in write order.
type Manifest struct {
	Entries    []Entry  `json:"entries"`
	Duplicates []string `json:"duplicates,omitempty"`
}

// TotalSize returns the uncompressed size of all members.
func (m Manifest) TotalSize() int {
	n := 0
	for _, e := range m.Entries {
		n += e.Size
	}
	return n
}

// Name picks the archive file name: an explicit title, then the last
// non-empty path segment of base, then the first label of its host.
func Name(title string, base *url.URL) string {
	name := FallbackName
	switch {
	case strings.TrimSpace(title) != "":
		name = strings.TrimSpace(title)
	case base != nil && lastSegment(base.Path) != "":
		name = lastSegment(base.Path)
	case base != nil && base.Hostname() != "":
		if label, _, _ := strings.Cut(base.Hostname(), "."); label != "" {
			name = label
		}
	}
	return sanitize(name) + ".zip"
}

func lastSegment(p string) string {
	segs := strings.Split(p, "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] != "" {
			if s, err := url.PathUnescape(segs[i]); err == nil {
				return s
			}
			return segs[i]
		}
	}
	return ""
}

func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, name)
	if name == "." || name == ".." {
		return FallbackName
	}
	return name
}

// storedExtensions are written without compression because their content
// is already compressed.
var storedExtensions = map[string]bool{
	".png":   true,
	".jpg":   true,
	".jpeg":  true,
	".gif":   true,
	".webp":  true,
	".avif":  true,
	".woff":  true,
	".woff2": true,
	".zip":   true,
}

// Assemble writes files to w as a zip archive. Members are deduplicated by
// name; the first file with a given name wins.
func Assemble(w io.Writer, files []File) (Manifest, error) {
	var m Manifest
	zw := zip.NewWriter(w)
	seen := make(map[string]bool, len(files))
	modified := time.Now()

	for _, f := range files {
		name := cleanName(f.Name)
		if name == "" {
			continue
		}
		if seen[name] {
			m.Duplicates = append(m.Duplicates, name)
			continue
		}
		seen[name] = true

		stored := storedExtensions[strings.ToLower(path.Ext(name))]
		method := zip.Deflate
		if stored {
			method = zip.Store
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   method,
			Modified: modified,
		})
		if err != nil {
			return m, fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := fw.Write(f.Data); err != nil {
			return m, fmt.Errorf("write %s: %w", name, err)
		}
		sum := blake3.Sum256(f.Data)
		m.Entries = append(m.Entries, Entry{
			Name:   name,
			Size:   len(f.Data),
			Stored: stored,
			Digest: hex.EncodeToString(sum[:]),
		})
	}
	if err := zw.Close(); err != nil {
		return m, fmt.Errorf("close archive: %w", err)
	}
	return m, nil
}

// cleanName turns a crawl name into a relative archive path.
func cleanName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Clean("/" + name)
	return strings.TrimPrefix(name, "/")
}
