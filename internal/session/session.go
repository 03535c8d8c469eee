// Package session holds the browsing state of one connection: the virtual
// current directory and the last listing. All state changes happen only
// after an operation succeeds.
package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/fruitsalade/dirfetch/internal/download"
	"github.com/fruitsalade/dirfetch/internal/logging"
	"github.com/fruitsalade/dirfetch/pkg/client"
	"github.com/fruitsalade/dirfetch/pkg/models"
	"github.com/fruitsalade/dirfetch/pkg/vpath"
)

// Session is the state owner for one server.
type Session struct {
	id       string
	client   *client.Client
	dl       *download.Downloader
	resolver vpath.Resolver

	cwd     string
	listing *models.Listing
}

// New creates a session rooted at "/".
func New(c *client.Client, dl *download.Downloader) *Session {
	s := &Session{
		id:     uuid.NewString(),
		client: c,
		dl:     dl,
		cwd:    vpath.Root,
	}
	s.resolver = vpath.Resolver{OnWarning: func(msg string) {
		logging.Warn(msg, logging.String("session_id", s.id))
	}}
	return s
}

// ID returns the session identifier used in log entries.
func (s *Session) ID() string {
	return s.id
}

// Context tags ctx for logging with the session ID.
func (s *Session) Context(ctx context.Context) context.Context {
	return logging.WithSession(ctx, s.id)
}

// BaseURL returns the server URL.
func (s *Session) BaseURL() string {
	return s.client.BaseURL()
}

// Cwd returns the virtual current directory.
func (s *Session) Cwd() string {
	return s.cwd
}

// Listing returns the last listing, or nil before the first one.
func (s *Session) Listing() *models.Listing {
	return s.listing
}

// Connect probes the server root once.
func (s *Session) Connect(ctx context.Context) error {
	return s.client.Ping(s.Context(ctx))
}

// Resolve turns a typed argument into an absolute virtual path.
func (s *Session) Resolve(raw string) (string, error) {
	return s.resolver.Resolve(s.cwd, raw, s.listing)
}

// List fetches the listing of raw (the current directory when empty) and
// makes it the listing "[n]" refers to.
func (s *Session) List(ctx context.Context, raw string) (*models.Listing, error) {
	p, err := s.Resolve(raw)
	if err != nil {
		return nil, err
	}
	l, err := s.client.FetchListing(s.Context(ctx), p)
	if err != nil {
		return nil, err
	}
	s.listing = l
	return l, nil
}

// Navigate changes the current directory to raw once the server confirms it
// is a directory. Its listing replaces the last listing.
func (s *Session) Navigate(ctx context.Context, raw string) (string, error) {
	p, err := s.Resolve(raw)
	if err != nil {
		return "", err
	}
	l, err := s.client.FetchListing(s.Context(ctx), p)
	if err != nil {
		return "", err
	}
	s.cwd = p
	s.listing = l
	return p, nil
}

// FetchFile fetches raw as bytes.
func (s *Session) FetchFile(ctx context.Context, raw string) (*client.Result, error) {
	p, err := s.Resolve(raw)
	if err != nil {
		return nil, err
	}
	return s.client.FetchFile(s.Context(ctx), p, nil)
}

// Print fetches raw and decodes it as text.
func (s *Session) Print(ctx context.Context, raw string) (string, error) {
	p, err := s.Resolve(raw)
	if err != nil {
		return "", err
	}
	return s.client.FetchText(s.Context(ctx), p)
}

// Download stores raw at its local name. It returns "" when an existing
// destination was kept.
func (s *Session) Download(ctx context.Context, raw string, recursive bool) (string, error) {
	p, err := s.Resolve(raw)
	if err != nil {
		return "", err
	}
	return s.dl.Download(s.Context(ctx), p, recursive, s.listing)
}
