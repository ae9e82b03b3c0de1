package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrTooLarge is returned when a response body exceeds the configured limit.
var ErrTooLarge = errors.New("response body too large")

// ErrStatus is wrapped by errors for non-2xx responses.
var ErrStatus = errors.New("unexpected status")

// Error describes a failed GET. Status is zero for transport failures.
type Error struct {
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("get %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("get %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Resource is a fetched response body.
type Resource struct {
	URL         string
	ContentType string
	Body        []byte
}

// Client performs plain HTTP(S) GETs with a per-request timeout and a body
// size cap.
type Client struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64

	Stats *LatencyStats
}

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 256 << 20
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
		Stats:     NewLatencyStats(time.Hour),
	}
}

// Get fetches rawURL. Non-2xx responses are returned as *Error.
func (c *Client) Get(ctx context.Context, rawURL string) (res *Resource, err error) {
	start := time.Now()
	defer func() { c.Stats.Record(time.Since(start).Milliseconds(), err != nil) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: fmt.Errorf("create request: %w", err)}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, &Error{URL: rawURL, Status: resp.StatusCode, Err: ErrStatus}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, &Error{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > c.maxBytes {
		return nil, &Error{URL: rawURL, Err: ErrTooLarge}
	}
	return &Resource{
		URL:         rawURL,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
