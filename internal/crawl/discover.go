package crawl

import (
	"bytes"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/projpack/internal/archive"
	"github.com/dgallion1/projpack/internal/token"
)

// linkedExtensions are the file types the crawler follows.
var linkedExtensions = map[string]bool{
	".ttf":   true,
	".eot":   true,
	".woff":  true,
	".woff2": true,
	".css":   true,
	".js":    true,
	".html":  true,
	".htm":   true,
	".json":  true,
}

// textExtensions are scanned for further references once fetched.
var textExtensions = map[string]bool{
	".css":  true,
	".js":   true,
	".html": true,
	".htm":  true,
	".json": true,
}

// Normalize turns a raw reference into an archive-relative name. It strips
// an href/src prefix, surrounding quotes, a query or fragment, leading
// "./" segments and leading slashes. External references and references
// that reduce to nothing return ok=false.
func Normalize(raw string) (name string, ok bool) {
	value := strings.TrimSpace(token.ParseReference(raw).Value)
	value = strings.Trim(value, `"'`+"`")
	if value == "" || isExternal(value) {
		return "", false
	}
	if i := strings.IndexAny(value, "?#"); i >= 0 {
		value = value[:i]
	}
	for strings.HasPrefix(value, "./") {
		value = value[2:]
	}
	value = strings.TrimLeft(value, "/")
	if value == "" {
		return "", false
	}
	return value, true
}

func isExternal(value string) bool {
	if strings.HasPrefix(value, "//") {
		return true
	}
	u, err := url.Parse(value)
	if err != nil {
		return true
	}
	return u.Scheme != ""
}

// Discover returns the normalized names referenced by f, in first-seen
// order without repeats. HTML documents are additionally walked for href
// and src attributes.
func Discover(f archive.File) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(raw string) {
		name, ok := Normalize(raw)
		if !ok || seen[name] || !linkedExtensions[strings.ToLower(path.Ext(name))] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	for _, tok := range token.Tokenize(string(f.Data), token.LinkedFiles) {
		if tok.IsAsset() {
			add(tok.Content)
		}
	}
	if isHTML(f) {
		for _, v := range htmlLinks(f.Data) {
			add(v)
		}
	}
	return names
}

func isHTML(f archive.File) bool {
	ext := strings.ToLower(path.Ext(f.Name))
	return ext == ".html" || ext == ".htm" || strings.HasPrefix(f.ContentType, "text/html")
}

// htmlLinks collects href and src attribute values from an HTML document.
func htmlLinks(data []byte) []string {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "href" || a.Key == "src" {
					links = append(links, a.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links
}

func isText(name string) bool {
	return textExtensions[strings.ToLower(path.Ext(name))]
}
