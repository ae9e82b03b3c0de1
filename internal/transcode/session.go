package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dgallion1/projpack/internal/sniff"
	"github.com/dgallion1/projpack/internal/token"
)

// transcodable are the declared types Convert will re-encode. AVIF is
// already the target format.
var transcodable = map[string]bool{
	string(sniff.FormatJPEG): true,
	"image/jpg":              true,
	string(sniff.FormatPNG):  true,
	string(sniff.FormatGIF):  true,
	string(sniff.FormatWebP): true,
}

// lazy runs an initializer at most once and remembers its error.
type lazy struct {
	done atomic.Bool
	mu   sync.Mutex
	err  error
}

func (l *lazy) do(fn func() error) error {
	if l.done.Load() {
		return l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.done.Load() {
		l.err = fn()
		l.done.Store(true)
	}
	return l.err
}

// Stats counts what a session did with the tokens it saw.
type Stats struct {
	Converted  int64 `json:"converted"`
	Kept       int64 `json:"kept"`
	MIMEFixed  int64 `json:"mime_fixed"`
	Failed     int64 `json:"failed"`
	BytesSaved int64 `json:"bytes_saved"`
}

// Session transcodes data URI tokens for a single pool worker.
type Session struct {
	codec   Codec
	quality int
	log     *slog.Logger

	still    lazy
	animated lazy

	converted  atomic.Int64
	kept       atomic.Int64
	fixed      atomic.Int64
	failed     atomic.Int64
	bytesSaved atomic.Int64
}

func NewSession(codec Codec, quality int, log *slog.Logger) *Session {
	return &Session{codec: codec, quality: quality, log: log}
}

// Convert applies the compression policy to one token. Tokens that are not
// image data URIs are returned as is. A MIME correction is always kept;
// the re-encoded image replaces it only when its data URI is not longer.
// Decode and codec failures are logged and yield the corrected original, as
// does a target the codec cannot encode.
func (s *Session) Convert(ctx context.Context, tok token.Token) (token.Token, error) {
	if err := ctx.Err(); err != nil {
		return tok, err
	}
	if tok.Kind != token.DataURI {
		return tok, nil
	}
	d, err := sniff.ParseDataURI(tok.Content)
	if err != nil || !d.IsImage() {
		return tok, nil
	}

	out := tok
	out.Content = sniff.FixMIME(tok.Content)
	if out.Content != tok.Content {
		s.fixed.Add(1)
		d, _ = sniff.ParseDataURI(out.Content)
	}
	if !transcodable[d.MIME] || (d.MIME == string(sniff.FormatWebP) && sniff.IsAnimatedWebPDataURI(out.Content)) {
		s.kept.Add(1)
		return out, nil
	}

	data, err := d.Bytes()
	if err != nil {
		s.fail(tok, "decode payload", err)
		return out, nil
	}

	var (
		encoded []byte
		target  = TargetStill
	)
	if d.MIME == string(sniff.FormatGIF) && sniff.IsGIFAnimated(data) {
		target = TargetAnimated
		encoded, err = s.encodeAnimated(data)
	} else {
		encoded, err = s.encodeStill(data)
	}
	if errors.Is(err, ErrUnsupported) {
		s.kept.Add(1)
		s.log.Debug("image kept, no encoder", "index", tok.Index, "target", target.String())
		return out, nil
	}
	if err != nil {
		s.fail(tok, "transcode "+target.String(), err)
		return out, nil
	}

	candidate := sniff.NewDataURI(d.Quote, s.codec.MIME(target), encoded)
	if len(candidate) > len(out.Content) {
		s.kept.Add(1)
		return out, nil
	}
	s.converted.Add(1)
	s.bytesSaved.Add(int64(len(out.Content) - len(candidate)))
	out.Content = candidate
	return out, nil
}

func (s *Session) encodeStill(data []byte) ([]byte, error) {
	if err := s.still.do(func() error { return s.codec.Prepare(TargetStill) }); err != nil {
		return nil, err
	}
	img, err := decodeStill(data)
	if err != nil {
		return nil, err
	}
	return s.codec.EncodeStill(img, s.quality)
}

func (s *Session) encodeAnimated(data []byte) ([]byte, error) {
	if err := s.animated.do(func() error { return s.codec.Prepare(TargetAnimated) }); err != nil {
		return nil, err
	}
	frames, delays, err := decodeAnimation(data)
	if err != nil {
		return nil, err
	}
	return s.codec.EncodeAnimated(frames, delays, s.quality)
}

func (s *Session) fail(tok token.Token, op string, err error) {
	s.failed.Add(1)
	s.log.Warn("image transcode failed", "index", tok.Index, "op", op, "error", err)
}

// Stats returns the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Converted:  s.converted.Load(),
		Kept:       s.kept.Load(),
		MIMEFixed:  s.fixed.Load(),
		Failed:     s.failed.Load(),
		BytesSaved: s.bytesSaved.Load(),
	}
}

// Add accumulates o into st.
func (st *Stats) Add(o Stats) {
	st.Converted += o.Converted
	st.Kept += o.Kept
	st.MIMEFixed += o.MIMEFixed
	st.Failed += o.Failed
	st.BytesSaved += o.BytesSaved
}

// Pool hands out one Session per dispatcher worker and aggregates their
// counters.
type Pool struct {
	codec   Codec
	quality int
	log     *slog.Logger

	mu       sync.Mutex
	sessions []*Session
}

func NewPool(codec Codec, quality int, log *slog.Logger) (*Pool, error) {
	if quality < 0 || quality > 100 {
		return nil, fmt.Errorf("quality %d out of range 0-100", quality)
	}
	return &Pool{codec: codec, quality: quality, log: log}, nil
}

// Worker returns the transform used by dispatcher worker id.
func (p *Pool) Worker(id int) func(context.Context, token.Token) (token.Token, error) {
	s := NewSession(p.codec, p.quality, p.log.With("transcode_worker", id))
	p.mu.Lock()
	p.sessions = append(p.sessions, s)
	p.mu.Unlock()
	return s.Convert
}

// Stats sums the counters of every session handed out so far.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total Stats
	for _, s := range p.sessions {
		total.Add(s.Stats())
	}
	return total
}
