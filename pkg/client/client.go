// Package client fetches listings and files from a static directory-listing
// HTTP server, with retry on connection failures and chunked streaming.
package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/time/rate"

	"github.com/fruitsalade/dirfetch/internal/logging"
	"github.com/fruitsalade/dirfetch/internal/metrics"
	"github.com/fruitsalade/dirfetch/pkg/errkind"
	"github.com/fruitsalade/dirfetch/pkg/listing"
	"github.com/fruitsalade/dirfetch/pkg/models"
	"github.com/fruitsalade/dirfetch/pkg/retry"
)

// MiB is the default streaming chunk size.
const MiB = 1 << 20

// Client talks to one listing server.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config
	chunkSize   int
	limiter     *rate.Limiter
	text        *textCodec
}

// Config holds client configuration.
type Config struct {
	BaseURL           string
	Encoding          string        // text encoding of listings and printed files
	MaxAttempts       int           // attempts for non-root requests
	AttemptTimeout    time.Duration // connect and response-header timeout per attempt
	ChunkSize         int           // streaming chunk size in bytes
	RequestsPerSecond float64       // 0 = unlimited

	// Transport overrides the default transport. Used by tests to inject
	// connection failures.
	Transport http.RoundTripper
}

// Progress receives chunk-level progress of a streamed body.
type Progress interface {
	Start(total int)
	Step()
	Finish()
}

// Options selects how Fetch consumes the response.
type Options struct {
	Raw      bool     // return the unconsumed response
	Binary   bool     // caller wants bytes, not text
	Stream   bool     // read large bodies in chunks
	Progress Progress // optional, used only for chunked reads
}

// Result is the outcome of a successful fetch.
type Result struct {
	URL   string
	IsDir bool
	Body  []byte

	// Response is set only in raw mode; the caller must close its body.
	Response *http.Response
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 7
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 5 * time.Second
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = MiB
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "utf-8"
	}

	text, err := newTextCodec(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.AttemptTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: cfg.AttemptTimeout,
			// Accept-Encoding is set explicitly; bodies are decoded in readBody.
			DisableCompression:  true,
			TLSHandshakeTimeout: cfg.AttemptTimeout,
		}
	}

	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.MaxAttempts

	c := &Client{
		baseURL:     NormalizeURL(cfg.BaseURL),
		httpClient:  &http.Client{Transport: transport},
		retryConfig: rc,
		chunkSize:   cfg.ChunkSize,
		text:        text,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// NormalizeURL prepends http:// when the scheme is missing and strips one
// trailing slash.
func NormalizeURL(raw string) string {
	u := raw
	if !strings.HasPrefix(u, "http") {
		u = "http://" + u
	}
	return strings.TrimSuffix(u, "/")
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL returns the request URL for a virtual path.
func (c *Client) URL(remotePath string) string {
	return c.baseURL + escapePath(remotePath)
}

// Ping probes the server root with a single attempt. Only the status is
// checked; the body is never read.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.Fetch(ctx, "", Options{Raw: true})
	if err != nil {
		return err
	}
	return res.Response.Body.Close()
}

// FetchListing fetches and parses the listing of dir.
func (c *Client) FetchListing(ctx context.Context, dir string) (*models.Listing, error) {
	res, err := c.Fetch(ctx, dir, Options{})
	if err != nil {
		return nil, err
	}
	if !res.IsDir {
		return nil, errkind.New(errkind.Arg, "%s is not a directory", dir)
	}
	body := c.text.decode(res.Body)
	return listing.ParseListing(dir, body), nil
}

// FetchFile fetches remotePath as bytes, streaming large bodies in chunks.
// IsDir reports what the server returned; the caller decides whether that
// was expected.
func (c *Client) FetchFile(ctx context.Context, remotePath string, progress Progress) (*Result, error) {
	return c.Fetch(ctx, remotePath, Options{Binary: true, Stream: true, Progress: progress})
}

// FetchText fetches remotePath and decodes it with the configured encoding.
func (c *Client) FetchText(ctx context.Context, remotePath string) (string, error) {
	res, err := c.Fetch(ctx, remotePath, Options{Binary: true})
	if err != nil {
		return "", err
	}
	text, err := c.text.decodeStrict(res.Body)
	if err != nil {
		return "", &errkind.Error{
			Kind: errkind.Decode,
			Op:   "print",
			Path: remotePath,
			Msg:  "Decode Error. File can't be a binary file",
			Err:  err,
		}
	}
	return text, nil
}

// Fetch performs a GET for remotePath. The empty path is the root probe and
// gets a single attempt; every other path is retried on connection failures.
func (c *Client) Fetch(ctx context.Context, remotePath string, opts Options) (*Result, error) {
	url := c.URL(remotePath)

	cfg := c.retryConfig
	if remotePath == "" {
		cfg = retry.Once()
	}
	cfg.OnRetry = func(attempt int, err error) {
		metrics.RecordRetry()
		logging.WithContext(ctx).Info("retrying request",
			logging.String("url", url),
			logging.Int("attempt", attempt+1),
			logging.Err(err),
		)
	}

	start := time.Now()
	resp, err := retry.DoWithResult(ctx, cfg, func() (*http.Response, error) {
		return c.do(ctx, url)
	})
	if err != nil {
		metrics.RecordRequest(0, time.Since(start))
		msg := "Failed to fetch " + url
		if retry.IsRetryable(err) {
			msg = fmt.Sprintf("Failed to connect to %s after %d attempts", url, cfg.MaxAttempts)
		}
		return nil, &errkind.Error{
			Kind: errkind.Transfer,
			Op:   "fetch",
			Path: url,
			Msg:  msg,
			Err:  retry.Unwrap(err),
		}
	}
	metrics.RecordRequest(resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, &errkind.Error{
			Kind: errkind.NotFound,
			Op:   "fetch",
			Path: url,
			Msg:  "File Not Found(404) at " + url,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &errkind.Error{
			Kind: errkind.Transfer,
			Op:   "fetch",
			Path: url,
			Msg:  fmt.Sprintf("%s for url: %s", resp.Status, url),
		}
	}

	result := &Result{
		URL:   url,
		IsDir: IsDirectory(resp.Header.Get("Content-Type")),
	}
	if opts.Raw {
		result.Response = resp
		return result, nil
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp, opts)
	if err != nil {
		return nil, errkind.Wrap(errkind.Transfer, "read", url, err)
	}
	result.Body = body

	logging.WithContext(ctx).Debug("fetched",
		logging.String("url", url),
		logging.Int64("content_length", resp.ContentLength),
		logging.Int("bytes", len(body)),
		logging.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// IsDirectory reports whether a Content-Type marks a generated listing.
func IsDirectory(contentType string) bool {
	return strings.HasPrefix(contentType, "text/html; charset")
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", "gzip, zstd")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isConnectionError(err) {
			return nil, retry.Retryable(err)
		}
		return nil, err
	}
	return resp, nil
}

// isConnectionError reports failures to establish or keep a connection.
// Timeouts after the connection is up are not retried.
func isConnectionError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

func (c *Client) readBody(resp *http.Response, opts Options) ([]byte, error) {
	r, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	// Content-Length counts encoded bytes, so encoded bodies are never chunked.
	length := resp.ContentLength
	if resp.Header.Get("Content-Encoding") != "" {
		length = -1
	}
	if !opts.Binary || !opts.Stream || length <= int64(c.chunkSize) {
		body, err := io.ReadAll(r)
		metrics.RecordBytes(int64(len(body)))
		return body, err
	}

	total := int((length + int64(c.chunkSize) - 1) / int64(c.chunkSize))
	if opts.Progress != nil {
		opts.Progress.Start(total)
		defer opts.Progress.Finish()
	}

	// Content-Length is untrusted, so the preallocation is capped.
	var out bytes.Buffer
	out.Grow(int(min(length, 64*int64(c.chunkSize))))
	buf := make([]byte, c.chunkSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			out.Write(buf[:n])
			metrics.RecordBytes(int64(n))
			if opts.Progress != nil {
				opts.Progress.Step()
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if int64(out.Len()) < length {
		return nil, fmt.Errorf("short body: got %d of %d bytes", out.Len(), length)
	}
	return out.Bytes(), nil
}

func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return gr, nil
	case "zstd":
		zr, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}

// escapePath percent-encodes characters that cannot appear in a URL path
// while leaving existing %XX escapes from listing hrefs intact.
func escapePath(p string) string {
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		ch := p[i]
		switch {
		case ch == '%' && i+2 < len(p) && isHex(p[i+1]) && isHex(p[i+2]):
			b.WriteByte(ch)
		case shouldEscape(ch):
			fmt.Fprintf(&b, "%%%02X", ch)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func shouldEscape(ch byte) bool {
	if 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || '0' <= ch && ch <= '9' {
		return false
	}
	return !strings.ContainsRune("-._~/!$&'()*+,;=:@[]", rune(ch))
}

func isHex(ch byte) bool {
	return '0' <= ch && ch <= '9' || 'a' <= ch && ch <= 'f' || 'A' <= ch && ch <= 'F'
}
