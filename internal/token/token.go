// Package token splits a text document into an ordered sequence of literal
// text and asset-reference tokens. Joining the tokens in index order always
// reproduces the input.
package token

import (
	"regexp"
	"slices"
	"strings"
)

// Kind classifies a token.
type Kind int

const (
	Literal Kind = iota
	DataURI
	ExternalImageRef
	WebAssetRef
	JSONFileRef
)

func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case DataURI:
		return "data_uri"
	case ExternalImageRef:
		return "external_image"
	case WebAssetRef:
		return "web_asset"
	case JSONFileRef:
		return "json_file"
	}
	return "unknown"
}

// Token is one segment of a document. Index is assigned once by Tokenize
// and is the only ordering key used to reassemble the document.
type Token struct {
	Content string
	Index   int
	Kind    Kind
}

// IsAsset reports whether the token references an asset rather than
// carrying literal text.
func (t Token) IsAsset() bool {
	return t.Kind != Literal
}

// Matcher recognizes one kind of reference. Quoted matchers require the
// first and last characters of a match to be the same quote character.
type Matcher struct {
	Kind    Kind
	Pattern string
	Quoted  bool
}

// PatternSet is an ordered list of matchers. When two matchers could match
// at the same position the earlier one wins.
type PatternSet struct {
	matchers []Matcher
	re       *regexp.Regexp
}

// NewPatternSet compiles matchers into a single alternation. Patterns must
// not contain capturing groups.
func NewPatternSet(matchers ...Matcher) *PatternSet {
	parts := make([]string, len(matchers))
	for i, m := range matchers {
		parts[i] = "(" + m.Pattern + ")"
	}
	return &PatternSet{
		matchers: matchers,
		re:       regexp.MustCompile(strings.Join(parts, "|")),
	}
}

// Tokenize splits text on every reference the set recognizes. The result
// alternates literal and reference segments the way a capturing split
// does: n matches produce 2n+1 tokens, empty literals included.
func Tokenize(text string, set *PatternSet) []Token {
	matches := set.re.FindAllStringSubmatchIndex(text, -1)
	tokens := make([]Token, 0, 2*len(matches)+1)
	last := 0
	for _, loc := range matches {
		tokens = append(tokens, Token{Content: text[last:loc[0]], Index: len(tokens), Kind: Literal})

		raw := text[loc[0]:loc[1]]
		kind := Literal
		for i, m := range set.matchers {
			if loc[2+2*i] < 0 {
				continue
			}
			if !m.Quoted || symmetric(raw) {
				kind = m.Kind
			}
			break
		}
		tokens = append(tokens, Token{Content: raw, Index: len(tokens), Kind: kind})
		last = loc[1]
	}
	tokens = append(tokens, Token{Content: text[last:], Index: len(tokens), Kind: Literal})
	return tokens
}

// Join concatenates tokens in index order.
func Join(tokens []Token) string {
	sorted := slices.Clone(tokens)
	slices.SortStableFunc(sorted, func(a, b Token) int { return a.Index - b.Index })
	var sb strings.Builder
	for _, t := range sorted {
		sb.WriteString(t.Content)
	}
	return sb.String()
}

// CountAssets returns the number of non-literal tokens.
func CountAssets(tokens []Token) int {
	n := 0
	for _, t := range tokens {
		if t.IsAsset() {
			n++
		}
	}
	return n
}

// CountByKind tallies asset tokens by kind name.
func CountByKind(tokens []Token) map[string]int {
	counts := make(map[string]int)
	for _, t := range tokens {
		if t.IsAsset() {
			counts[t.Kind.String()]++
		}
	}
	return counts
}

func symmetric(s string) bool {
	return len(s) >= 2 && isQuote(s[0]) && s[0] == s[len(s)-1]
}

func isQuote(c byte) bool {
	return c == '"' || c == '\'' || c == '`'
}
