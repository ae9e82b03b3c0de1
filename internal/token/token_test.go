package token

import (
	"strings"
	"testing"
)

const pngURI = `"data:image/png;base64,iVBORw0KGgo="`

func TestTokenize_LosslessPartition(t *testing.T) {
	docs := []string{
		"",
		"no references here",
		`{"image":` + pngURI + `}`,
		`{"a":"images/cat.png","b":'https://example.com/x/dog.jpg',"c":` + pngURI + `}`,
		`<link href="css/app.css"><script src="./js/app.js"></script>{"next":"row2.json"}`,
		`"data:image/png;base64,AAAA'` + "\n`data:image/gif;base64,R0lGODlh`",
	}
	for _, doc := range docs {
		for _, set := range []*PatternSet{All, DataURIs, ImageRefs, LinkedFiles} {
			if got := Join(Tokenize(doc, set)); got != doc {
				t.Errorf("expected join to reproduce %q, got %q", doc, got)
			}
		}
	}
}

func TestTokenize_SplitShape(t *testing.T) {
	doc := `{"image":` + pngURI + `}`
	tokens := Tokenize(doc, DataURIs)
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(tokens))
	}
	for i, tok := range tokens {
		if tok.Index != i {
			t.Errorf("token %d: expected index %d, got %d", i, i, tok.Index)
		}
	}
	if tokens[1].Kind != DataURI || tokens[1].Content != pngURI {
		t.Errorf("expected data uri token, got %+v", tokens[1])
	}
	if tokens[0].Kind != Literal || tokens[2].Kind != Literal {
		t.Error("expected literal tokens around the reference")
	}
}

func TestTokenize_AdjacentMatchesKeepEmptyLiterals(t *testing.T) {
	doc := pngURI + pngURI
	tokens := Tokenize(doc, DataURIs)
	if len(tokens) != 5 {
		t.Fatalf("expected 5 tokens, got %d", len(tokens))
	}
	if tokens[0].Content != "" || tokens[2].Content != "" || tokens[4].Content != "" {
		t.Errorf("expected empty literals between adjacent references: %+v", tokens)
	}
	if CountAssets(tokens) != 2 {
		t.Errorf("expected 2 assets, got %d", CountAssets(tokens))
	}
}

func TestTokenize_AsymmetricQuotesAreLiteral(t *testing.T) {
	doc := `x "data:image/png;base64,AAAA' y`
	tokens := Tokenize(doc, DataURIs)
	if CountAssets(tokens) != 0 {
		t.Errorf("expected no asset tokens for mismatched quotes, got %+v", tokens)
	}
}

func TestTokenize_DataURIPrecedence(t *testing.T) {
	// The payload contains text an image URL matcher could latch onto.
	doc := `"data:image/png;base64,aW1hZ2VzL2EucG5n" "images/a.png"`
	tokens := Tokenize(doc, All)
	var kinds []Kind
	for _, tok := range tokens {
		if tok.IsAsset() {
			kinds = append(kinds, tok.Kind)
		}
	}
	if len(kinds) != 2 || kinds[0] != DataURI || kinds[1] != ExternalImageRef {
		t.Errorf("expected [data_uri external_image], got %v", kinds)
	}
}

func TestTokenize_ImageRefs(t *testing.T) {
	doc := `["images/abc_1.PNG", 'https://www.example.com/pics/p.webp', "images/no.txt", ` + "`images/q.avif`]"
	var got []string
	for _, tok := range Tokenize(doc, ImageRefs) {
		if tok.Kind == ExternalImageRef {
			got = append(got, tok.Content)
		}
	}
	want := []string{`"images/abc_1.PNG"`, `'https://www.example.com/pics/p.webp'`, "`images/q.avif`"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTokenize_LinkedFiles(t *testing.T) {
	doc := `<link href="css/app.css"><script src="./js/app.js"></script>` +
		`<script>load({href: basePath + 'fonts/a.woff2'})</script>{"next":"row2.json","api":"data.jsonp"}`
	var got []string
	for _, tok := range Tokenize(doc, LinkedFiles) {
		if tok.IsAsset() {
			got = append(got, tok.Kind.String()+":"+tok.Content)
		}
	}
	want := []string{
		`web_asset:href="css/app.css`,
		`web_asset:src="./js/app.js`,
		`web_asset:href: basePath + 'fonts/a.woff2`,
		`json_file:"row2.json"`,
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTokenize_JSONNotMistakenForScript(t *testing.T) {
	doc := `<script src="app.json"></script>`
	for _, tok := range Tokenize(doc, LinkedFiles) {
		if tok.Kind == WebAssetRef {
			t.Errorf("expected no web asset match, got %q", tok.Content)
		}
	}
}

func TestJoin_RestoresIndexOrder(t *testing.T) {
	tokens := []Token{
		{Content: "c", Index: 2},
		{Content: "a", Index: 0},
		{Content: "b", Index: 1},
	}
	if got := Join(tokens); got != "abc" {
		t.Errorf("expected %q, got %q", "abc", got)
	}
	if tokens[0].Content != "c" {
		t.Error("expected Join not to reorder its input")
	}
}

func TestParseReference(t *testing.T) {
	cases := []struct {
		raw    string
		prefix string
		quote  string
		value  string
	}{
		{`href="css/app.css`, "href=", `"`, "css/app.css"},
		{`src=./js/app.js`, "src=", "", "./js/app.js"},
		{`href: basePath + 'fonts/a.woff2`, "href: basePath + '", "", "fonts/a.woff2"},
		{`"row2.json"`, "", `"`, "row2.json"},
		{"`images/a.png`", "", "`", "images/a.png"},
	}
	for _, tc := range cases {
		ref := ParseReference(tc.raw)
		if ref.Prefix != tc.prefix || ref.Quote != tc.quote || ref.Value != tc.value {
			t.Errorf("ParseReference(%q) = %+v", tc.raw, ref)
		}
	}
	if got := ParseReference(`'images/a.png'`).Wrap("x"); got != `'x'` {
		t.Errorf("expected wrap to reuse quote, got %q", got)
	}
}

func TestCountByKind(t *testing.T) {
	doc := `{"a":"data:image/png;base64,AAAA","b":"images/x.jpg","c":"images/y.png"} <link href="css/app.css">`
	counts := CountByKind(Tokenize(doc, All))
	if counts["data_uri"] != 1 || counts["external_image"] != 2 || counts["web_asset"] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
	if _, ok := counts["literal"]; ok {
		t.Error("expected literals to be left out")
	}
}
