package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"strings"

	"github.com/dgallion1/projpack/internal/fetch"
	"github.com/dgallion1/projpack/internal/sniff"
	"github.com/dgallion1/projpack/internal/token"
)

// Fetcher retrieves a resource over HTTP.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*fetch.Resource, error)
}

// Inliner replaces external image references with data URIs.
type Inliner struct {
	fetcher Fetcher
	base    *url.URL
	log     *slog.Logger
}

// NewInliner resolves relative references against base, which should be
// the project directory URL.
func NewInliner(f Fetcher, base *url.URL, log *slog.Logger) *Inliner {
	return &Inliner{fetcher: f, base: base, log: log}
}

// Inline fetches the image a token points at and returns the token with its
// content replaced by a data URI in the same quote. Fetch failures are
// returned to the caller, which keeps the original token.
func (in *Inliner) Inline(ctx context.Context, tok token.Token) (token.Token, error) {
	if tok.Kind != token.ExternalImageRef {
		return tok, nil
	}
	ref := token.ParseReference(tok.Content)
	target, err := in.resolve(ref.Value)
	if err != nil {
		return tok, err
	}

	res, err := in.fetcher.Get(ctx, target)
	if err != nil {
		in.log.Warn("image fetch failed", "index", tok.Index, "url", target, "error", err)
		return tok, err
	}

	out := tok
	out.Content = sniff.NewDataURI(ref.Quote, imageMIME(res, ref.Value), res.Body)
	return out, nil
}

// Worker adapts Inline to the dispatcher's per-worker transform factory.
func (in *Inliner) Worker(int) func(context.Context, token.Token) (token.Token, error) {
	return in.Inline
}

func (in *Inliner) resolve(value string) (string, error) {
	u, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("parse image reference %q: %w", value, err)
	}
	if u.IsAbs() || in.base == nil {
		return u.String(), nil
	}
	return in.base.ResolveReference(u).String(), nil
}

// imageMIME prefers the sniffed signature, then an image Content-Type, then
// the file extension of the reference.
func imageMIME(res *fetch.Resource, name string) string {
	if f := sniff.Sniff(res.Body); f.Known() {
		return string(f)
	}
	if mt, _, err := mime.ParseMediaType(res.ContentType); err == nil && strings.HasPrefix(mt, "image/") {
		return mt
	}
	return sniff.MIMEFromExtension(name)
}
