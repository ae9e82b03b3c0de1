package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dgallion1/projpack/internal/archive"
	"github.com/dgallion1/projpack/internal/fetch"
)

// Fetcher retrieves a resource over HTTP.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*fetch.Resource, error)
}

// Crawler follows linked files relative to a project directory URL.
type Crawler struct {
	fetcher Fetcher
	base    *url.URL
	log     *slog.Logger
	sem     *semaphore.Weighted
}

// New returns a crawler that resolves names against base and keeps at most
// maxConcurrent fetches in flight.
func New(f Fetcher, base *url.URL, maxConcurrent int, log *slog.Logger) *Crawler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Crawler{
		fetcher: f,
		base:    base,
		log:     log,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Crawl registers root and recursively fetches everything it links to.
// Names in preVisited, and root itself, are never fetched. Unreachable
// files are skipped; only cancellation of ctx is returned as an error.
func (c *Crawler) Crawl(ctx context.Context, root archive.File, preVisited ...string) (*State, error) {
	st := NewState(preVisited...)
	st.Visit(root.Name)
	st.Add(root)
	if err := c.walk(ctx, st, root); err != nil {
		return st, fmt.Errorf("crawl %s: %w", root.Name, err)
	}
	c.log.Info("crawl complete", "files", st.Len())
	return st, nil
}

func (c *Crawler) walk(ctx context.Context, st *State, f archive.File) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range Discover(f) {
		if !st.Visit(name) {
			continue
		}
		g.Go(func() error {
			child, ok, err := c.fetch(gctx, name)
			if err != nil || !ok {
				return err
			}
			st.Add(child)
			if !isText(child.Name) {
				return nil
			}
			return c.walk(gctx, st, child)
		})
	}
	return g.Wait()
}

// fetch downloads one name. ok is false when the file could not be
// retrieved; err is only set when ctx is done.
func (c *Crawler) fetch(ctx context.Context, name string) (archive.File, bool, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return archive.File{}, false, err
	}
	defer c.sem.Release(1)

	target, err := c.resolve(name)
	if err != nil {
		c.log.Warn("skipping unresolvable reference", "name", name, "error", err)
		return archive.File{}, false, nil
	}
	res, err := c.fetcher.Get(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return archive.File{}, false, ctx.Err()
		}
		c.log.Warn("skipping unreachable file", "name", name, "url", target, "error", err)
		return archive.File{}, false, nil
	}
	return archive.File{Name: name, Data: res.Body, ContentType: res.ContentType}, true, nil
}

func (c *Crawler) resolve(name string) (string, error) {
	u, err := url.Parse(name)
	if err != nil {
		return "", err
	}
	if c.base == nil {
		return u.String(), nil
	}
	return c.base.ResolveReference(u).String(), nil
}
