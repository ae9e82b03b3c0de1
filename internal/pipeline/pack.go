package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/dgallion1/projpack/internal/archive"
	"github.com/dgallion1/projpack/internal/crawl"
	"github.com/dgallion1/projpack/internal/fetch"
	"github.com/dgallion1/projpack/internal/token"
	"github.com/dgallion1/projpack/internal/transcode"
)

// ErrInvalidSourceURL is returned before any fetch when the source URL is
// not an absolute http(s) location.
var ErrInvalidSourceURL = errors.New("invalid source URL")

const (
	ProjectFile = "project.json"
	IndexFile   = "index.html"
)

// Phase names one of the two progress channels of a run.
type Phase string

const (
	PhaseFetch     Phase = "fetch"
	PhaseTranscode Phase = "transcode"
)

// Progress receives per-phase asset counts.
type Progress interface {
	Report(phase Phase, current, max int)
}

// StageReporter is optionally implemented by a Progress to learn which
// step a run is in.
type StageReporter interface {
	Stage(name string)
}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(phase Phase, current, max int)

func (f ProgressFunc) Report(phase Phase, current, max int) { f(phase, current, max) }

type discardProgress struct{}

func (discardProgress) Report(Phase, int, int) {}

// Fetcher retrieves a resource over HTTP.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*fetch.Resource, error)
}

// Request describes one packing run.
type Request struct {
	SourceURL            string `json:"url"`
	Title                string `json:"title,omitempty"`
	Quality              int    `json:"quality"`
	EnableCompression    bool   `json:"enable_compression"`
	SaveImagesSeparately bool   `json:"save_images_separately"`
}

func (r Request) Validate() error {
	if r.Quality < 0 || r.Quality > 100 {
		return fmt.Errorf("quality must be between 0 and 100, got %d", r.Quality)
	}
	if _, err := ProjectURL(r.SourceURL); err != nil {
		return err
	}
	return nil
}

// Result is the outcome of a successful run.
type Result struct {
	Name      string           `json:"name"`
	BaseURL   string           `json:"base_url"`
	Archive   []byte           `json:"-"`
	Manifest  archive.Manifest `json:"manifest"`
	Images    int              `json:"images"`
	Inlined   int              `json:"inlined"`
	Transcode transcode.Stats  `json:"transcode"`
	Separated int              `json:"separated"`
	Crawled   int              `json:"crawled"`

	DocumentBefore int `json:"document_before"`
	DocumentAfter  int `json:"document_after"`

	// References counts what the packed document still points at, by
	// token kind.
	References map[string]int `json:"references"`

	Elapsed   time.Duration `json:"-"`
	ElapsedMS int64         `json:"elapsed_ms"`
}

// PackerOptions sizes the per-run pools.
type PackerOptions struct {
	FetchWorkers       int
	TranscodeWorkers   int
	MaxConcurrentCrawl int
}

// Packer turns a hosted project into a zip archive.
type Packer struct {
	fetcher Fetcher
	codec   transcode.Codec
	opts    PackerOptions
	log     *slog.Logger
}

func NewPacker(f Fetcher, codec transcode.Codec, opts PackerOptions, log *slog.Logger) *Packer {
	if opts.FetchWorkers <= 0 {
		opts.FetchWorkers = 2
	}
	if opts.TranscodeWorkers <= 0 {
		opts.TranscodeWorkers = 1
	}
	if opts.MaxConcurrentCrawl <= 0 {
		opts.MaxConcurrentCrawl = 8
	}
	return &Packer{fetcher: f, codec: codec, opts: opts, log: log}
}

// ProjectURL validates raw and returns the project directory URL: query and
// fragment dropped, a trailing index.html or project.json removed, and the
// path ending in "/".
func ProjectURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSourceURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSourceURL, raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawPath = ""
	p := u.Path
	p = strings.TrimSuffix(p, IndexFile)
	p = strings.TrimSuffix(p, ProjectFile)
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	u.Path = p
	return u, nil
}

// Pack runs every phase for req. Only an invalid URL, an unreachable
// project.json or index.html, cancellation and archive write errors fail
// the run; per-asset failures keep the original content.
func (p *Packer) Pack(ctx context.Context, req Request, progress Progress) (*Result, error) {
	start := time.Now()
	if progress == nil {
		progress = discardProgress{}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	base, _ := ProjectURL(req.SourceURL)
	log := p.log.With("source", base.String())
	res := &Result{BaseURL: base.String(), Name: archive.Name(req.Title, base)}

	stage(progress, "fetching")
	doc, err := p.fetcher.Get(ctx, resolve(base, ProjectFile))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ProjectFile, err)
	}
	text := string(doc.Body)
	res.DocumentBefore = len(text)

	tokens := token.Tokenize(text, token.ImageRefs)
	res.Images = token.CountAssets(tokens)
	inliner := transcode.NewInliner(p.fetcher, base, log)
	progress.Report(PhaseFetch, 0, res.Images)
	tokens = Dispatch(ctx, tokens, p.opts.FetchWorkers, inliner.Worker, func(done int) {
		progress.Report(PhaseFetch, done, res.Images)
	})
	text = token.Join(tokens)
	res.Inlined = res.Images - token.CountAssets(token.Tokenize(text, token.ImageRefs))
	log.Info("images inlined", "found", res.Images, "inlined", res.Inlined)

	if req.EnableCompression {
		stage(progress, "transcoding")
		pool, err := transcode.NewPool(p.codec, req.Quality, log)
		if err != nil {
			return nil, err
		}
		tokens = token.Tokenize(text, token.DataURIs)
		total := token.CountAssets(tokens)
		progress.Report(PhaseTranscode, 0, total)
		tokens = Dispatch(ctx, tokens, p.opts.TranscodeWorkers, pool.Worker, func(done int) {
			progress.Report(PhaseTranscode, done, total)
		})
		text = token.Join(tokens)
		res.Transcode = pool.Stats()
		log.Info("images transcoded",
			"converted", res.Transcode.Converted,
			"kept", res.Transcode.Kept,
			"failed", res.Transcode.Failed,
		)
	}

	var images []archive.File
	if req.SaveImagesSeparately {
		stage(progress, "externalizing")
		tokens, images = archive.Externalize(token.Tokenize(text, token.DataURIs))
		text = token.Join(tokens)
		res.Separated = len(images)
	}
	res.DocumentAfter = len(text)
	res.References = token.CountByKind(token.Tokenize(text, token.All))

	stage(progress, "crawling")
	index, err := p.fetcher.Get(ctx, resolve(base, IndexFile))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", IndexFile, err)
	}
	crawler := crawl.New(p.fetcher, base, p.opts.MaxConcurrentCrawl, log)
	st, err := crawler.Crawl(ctx, archive.File{
		Name:        IndexFile,
		Data:        index.Body,
		ContentType: index.ContentType,
	}, ProjectFile)
	if err != nil {
		return nil, err
	}
	crawled := st.Files()
	res.Crawled = len(crawled)

	stage(progress, "assembling")
	files := make([]archive.File, 0, 1+len(images)+len(crawled))
	files = append(files, archive.File{Name: ProjectFile, Data: []byte(text), ContentType: "application/json"})
	files = append(files, images...)
	files = append(files, crawled...)

	var buf bytes.Buffer
	res.Manifest, err = archive.Assemble(&buf, files)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", res.Name, err)
	}
	res.Archive = buf.Bytes()
	res.Elapsed = time.Since(start)
	res.ElapsedMS = res.Elapsed.Milliseconds()
	log.Info("pack complete", "archive", res.Name, "bytes", len(res.Archive), "elapsed_ms", res.ElapsedMS)
	return res, nil
}

func resolve(base *url.URL, name string) string {
	return base.ResolveReference(&url.URL{Path: name}).String()
}

func stage(progress Progress, name string) {
	if sr, ok := progress.(StageReporter); ok {
		sr.Stage(name)
	}
}
