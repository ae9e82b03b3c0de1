package token

import "strings"

const (
	quoteClass = `["'\x60]`
	urlChars   = `[A-Za-z0-9\-._~:/?#\[\]@!$&'()*+,;%=]`
)

var (
	// DataURIMatcher recognizes any quoted base64 data URI.
	DataURIMatcher = Matcher{
		Kind: DataURI,
		Pattern: `(?i:` + quoteClass + `data:(?:(?:application|audio|chemical|font|image|message|model|text|video|x-conference)/[a-z0-9.\-+]+|gcode);base64,[a-zA-Z0-9+/]+={0,2}` + quoteClass + `)`,
		Quoted: true,
	}

	// ImageRefMatcher recognizes quoted relative `images/…` references and
	// absolute http(s) image URLs.
	ImageRefMatcher = Matcher{
		Kind: ExternalImageRef,
		Pattern: `(?i:` + quoteClass + `images/[A-Za-z0-9_-]+\.(?:png|jpe?g|gif|bmp|webp|svg|avif)` + quoteClass +
			`|` + quoteClass + `https?://(?:www\.)?` + urlChars + `+\.(?:png|jpe?g|gif|bmp|webp|svg)` + quoteClass + `)`,
		Quoted: true,
	}

	// WebAssetMatcher recognizes fonts, stylesheets, scripts and HTML pages
	// linked through an href/src assignment.
	WebAssetMatcher = Matcher{
		Kind:    WebAssetRef,
		Pattern: `(?i:(?:href=|src=|href: basePath \+ '|src: basePath \+ ')"?\.?` + urlChars + `+\.(?:ttf|eot|woff2?|css|js|html)\b)`,
	}

	// JSONFileMatcher recognizes quoted JSON file names.
	JSONFileMatcher = Matcher{
		Kind:    JSONFileRef,
		Pattern: quoteClass + `(?:[a-zA-Z0-9\-._~]|[!$&'()*+,;=:@]|%[0-9a-fA-F]{2})+\.json` + quoteClass,
		Quoted:  true,
	}
)

var (
	// DataURIs splits a document on inline data URIs.
	DataURIs = NewPatternSet(DataURIMatcher)
	// ImageRefs splits a document on external image references.
	ImageRefs = NewPatternSet(ImageRefMatcher)
	// LinkedFiles splits a document on linked web assets and JSON files.
	LinkedFiles = NewPatternSet(WebAssetMatcher, JSONFileMatcher)
	// All recognizes every reference kind. Data URIs take precedence so an
	// image URL is never matched inside a base64 payload.
	All = NewPatternSet(DataURIMatcher, ImageRefMatcher, WebAssetMatcher, JSONFileMatcher)
)

// attributePrefixes are stripped from web asset references, longest first.
var attributePrefixes = []string{
	"href: basePath + '",
	"src: basePath + '",
	"href=",
	"src=",
}

// Reference is the syntactic breakdown of an asset-reference token.
type Reference struct {
	Raw    string
	Quote  string
	Prefix string
	Value  string
}

// ParseReference splits a reference token into its prefix, quote and value.
func ParseReference(raw string) Reference {
	ref := Reference{Raw: raw}
	rest := raw
	for _, p := range attributePrefixes {
		if strings.HasPrefix(rest, p) {
			ref.Prefix = p
			rest = rest[len(p):]
			break
		}
	}
	if rest != "" && isQuote(rest[0]) {
		ref.Quote = rest[:1]
		rest = rest[1:]
		if rest != "" && rest[len(rest)-1] == ref.Quote[0] {
			rest = rest[:len(rest)-1]
		}
	}
	ref.Value = rest
	return ref
}

// Wrap renders value in the reference's quote.
func (r Reference) Wrap(value string) string {
	return r.Quote + value + r.Quote
}
