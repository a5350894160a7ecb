// Package http reads containers over HTTP range requests.
//
// A Source satisfies trfs.ByteSource, so a container served by any static
// file server that honours Range can be loaded without downloading it:
//
//	src, err := http.NewSource(ctx, "https://cdn.example.com/assets.trfs")
//	if err != nil {
//	    return err
//	}
//	archive, err := trfs.New(src)
package http //nolint:revive // intentional naming for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	nethttp "net/http"
	"strconv"
	"strings"

	"github.com/meigma/trfs/internal/trfstype"
)

var (
	// ErrRangeUnsupported is returned when the server ignores Range headers.
	ErrRangeUnsupported = errors.New("trfs/http: range requests not supported")

	// ErrChanged is returned when the remote content no longer matches the
	// validators seen when the Source was created. The loaded table is then
	// stale, so the read is refused rather than retried.
	ErrChanged = errors.New("trfs/http: remote content changed")
)

// Source implements positioned reads over HTTP range requests.
// It keeps no cursor and is safe for concurrent use.
type Source struct {
	url          string
	client       *nethttp.Client
	headers      nethttp.Header
	size         int64
	etag         string
	lastModified string
	conditional  bool
	logger       *slog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeader sets a header on every request, such as Authorization.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithConditionalReads controls whether reads carry If-Match or
// If-Unmodified-Since with the validators seen at creation. When enabled
// (the default) a replaced container fails with ErrChanged instead of
// returning bytes that disagree with the loaded table.
func WithConditionalReads(enabled bool) Option {
	return func(s *Source) {
		s.conditional = enabled
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// NewSource probes url for its size and validators and returns a Source.
// The server must answer a one-byte range request with 206.
func NewSource(ctx context.Context, url string, opts ...Option) (*Source, error) {
	s := &Source{
		url:         url,
		client:      nethttp.DefaultClient,
		conditional: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}

	if err := s.probe(ctx); err != nil {
		return nil, err
	}
	s.log().Debug("opened http source", "url", s.url, "size", s.size, "etag", s.etag)
	return s, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (s *Source) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Size returns the total size of the remote content.
func (s *Source) Size() int64 {
	return s.size
}

// SourceID identifies the remote content for block caches. It changes when
// the server reports a different ETag, modification time or size.
func (s *Source) SourceID() string {
	if s.etag != "" {
		return fmt.Sprintf("url:%s|etag:%s", s.url, s.etag)
	}
	if s.lastModified != "" {
		return fmt.Sprintf("url:%s|mod:%s|size:%d", s.url, s.lastModified, s.size)
	}
	return fmt.Sprintf("url:%s|size:%d", s.url, s.size)
}

// ReadAt reads len(p) bytes at off with one range request. It implements
// io.ReaderAt: a read that reaches the end of the content returns the bytes
// available and io.EOF.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("%w: read at %d: negative offset", trfstype.ErrIO, off)
	}
	if off >= s.size {
		return 0, io.EOF
	}

	end := off + int64(len(p)) - 1
	expected := len(p)
	if end >= s.size {
		end = s.size - 1
		expected = int(end - off + 1)
	}

	resp, err := s.get(context.Background(), off, end, s.conditional)
	if err != nil {
		return 0, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
	case nethttp.StatusPreconditionFailed:
		return 0, ErrChanged
	case nethttp.StatusRequestedRangeNotSatisfiable:
		return 0, io.EOF
	case nethttp.StatusOK:
		return 0, ErrRangeUnsupported
	default:
		return 0, fmt.Errorf("%w: range request failed: %s", trfstype.ErrIO, resp.Status)
	}

	n, err := io.ReadFull(resp.Body, p[:expected])
	if err != nil {
		return n, fmt.Errorf("%w: read range body: %w", trfstype.ErrIO, err)
	}
	if expected < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// probe learns the content size from a one-byte range request, cross-checked
// against HEAD when the server answers it.
func (s *Source) probe(ctx context.Context) error {
	headSize := int64(-1)
	if req, err := s.newRequest(ctx, nethttp.MethodHead, false); err == nil {
		if resp, err := s.client.Do(req); err == nil {
			if resp.StatusCode == nethttp.StatusOK {
				headSize = resp.ContentLength
				s.etag = resp.Header.Get("ETag")
				s.lastModified = resp.Header.Get("Last-Modified")
			}
			resp.Body.Close()
		}
	}

	resp, err := s.get(ctx, 0, 0, false)
	if err != nil {
		return err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
	case nethttp.StatusOK:
		return ErrRangeUnsupported
	default:
		return fmt.Errorf("%w: range probe failed: %s", trfstype.ErrIO, resp.Status)
	}

	size, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return err
	}
	if headSize > 0 && headSize != size {
		return fmt.Errorf("%w: content size mismatch: head=%d range=%d", trfstype.ErrIO, headSize, size)
	}
	s.size = size
	if s.etag == "" {
		s.etag = resp.Header.Get("ETag")
	}
	if s.lastModified == "" {
		s.lastModified = resp.Header.Get("Last-Modified")
	}
	return nil
}

// get issues a GET for the inclusive byte range [off, end].
func (s *Source) get(ctx context.Context, off, end int64, conditional bool) (*nethttp.Response, error) {
	req, err := s.newRequest(ctx, nethttp.MethodGet, conditional)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, end))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", trfstype.ErrIO, err)
	}
	s.log().Debug("range request", "url", s.url, "offset", off, "length", end-off+1, "status", resp.StatusCode)
	return resp, nil
}

// newRequest builds a request carrying the configured headers and, when
// conditional is set, the validators seen at creation.
func (s *Source) newRequest(ctx context.Context, method string, conditional bool) (*nethttp.Request, error) {
	req, err := nethttp.NewRequestWithContext(ctx, method, s.url, nethttp.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", trfstype.ErrIO, err)
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	// Transparent gzip would make byte ranges meaningless.
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	if conditional {
		switch {
		case s.etag != "":
			req.Header.Set("If-Match", s.etag)
		case s.lastModified != "":
			req.Header.Set("If-Unmodified-Since", s.lastModified)
		}
	}
	return req, nil
}

// drain discards and closes a response body so the connection can be reused.
func drain(resp *nethttp.Response) {
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // best-effort drain for connection reuse
	_ = resp.Body.Close()
}

// parseContentRange extracts the total size from "bytes start-end/size".
func parseContentRange(value string) (int64, error) {
	invalid := fmt.Errorf("%w: invalid Content-Range %q", trfstype.ErrIO, value)

	rest, ok := strings.CutPrefix(strings.TrimSpace(value), "bytes ")
	if !ok {
		return 0, invalid
	}
	_, total, ok := strings.Cut(rest, "/")
	if !ok || total == "*" {
		return 0, invalid
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, invalid
	}
	return size, nil
}
