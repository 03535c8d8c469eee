// Package testutil provides an in-memory listing server that renders
// directories the way Python's http.server does.
package testutil

import (
	"fmt"
	"html"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
)

// ListingServer serves an in-memory tree.
type ListingServer struct {
	*httptest.Server

	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
	links map[string]bool
	hits  map[string]int
}

// NewListingServer starts a server with an empty root directory.
func NewListingServer() *ListingServer {
	s := &ListingServer{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
		links: make(map[string]bool),
		hits:  make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// AddFile adds a file and any missing parent directories.
func (s *ListingServer) AddFile(p string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = path.Clean("/" + p)
	s.files[p] = content
	s.addParents(p)
}

// AddDir adds a directory and any missing parents.
func (s *ListingServer) AddDir(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = path.Clean("/" + p)
	s.dirs[p] = true
	s.addParents(p)
}

// MarkLink renders an existing entry as a symlink.
func (s *ListingServer) MarkLink(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[path.Clean("/"+p)] = true
}

// Hits returns how many requests reached p.
func (s *ListingServer) Hits(p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[p]
}

func (s *ListingServer) addParents(p string) {
	for dir := path.Dir(p); ; dir = path.Dir(dir) {
		s.dirs[dir] = true
		if dir == "/" {
			return
		}
	}
}

func (s *ListingServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := r.URL.Path
	s.hits[p]++

	clean := path.Clean("/" + p)
	if s.dirs[clean] {
		if !strings.HasSuffix(p, "/") {
			http.Redirect(w, r, r.URL.EscapedPath()+"/", http.StatusMovedPermanently)
			return
		}
		s.writeListing(w, clean)
		return
	}

	content, ok := s.files[clean]
	if !ok || strings.HasSuffix(p, "/") {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Write(content)
}

func (s *ListingServer) writeListing(w http.ResponseWriter, dir string) {
	var names []string
	for p := range s.files {
		if path.Dir(p) == dir {
			names = append(names, path.Base(p))
		}
	}
	for p := range s.dirs {
		if p != "/" && path.Dir(p) == dir {
			names = append(names, path.Base(p))
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})

	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE HTML>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>Directory listing for %s</title>\n</head>\n<body>\n", html.EscapeString(dir))
	fmt.Fprintf(&b, "<h1>Directory listing for %s</h1>\n<hr>\n<ul>\n", html.EscapeString(dir))
	for _, name := range names {
		full := path.Join(dir, name)
		display, link := name, name
		if s.dirs[full] {
			display, link = name+"/", name+"/"
		}
		if s.links[full] {
			display = name + "@"
		}
		fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a></li>\n",
			url.PathEscape(strings.TrimSuffix(link, "/"))+suffix(link),
			html.EscapeString(display))
	}
	b.WriteString("</ul>\n<hr>\n</body>\n</html>\n")

	body := b.String()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Write([]byte(body))
}

func suffix(link string) string {
	if strings.HasSuffix(link, "/") {
		return "/"
	}
	return ""
}

// FlakyTransport fails the first Failures round trips with a dial error and
// then delegates to Base.
type FlakyTransport struct {
	Base     http.RoundTripper
	Failures int

	mu    sync.Mutex
	calls int
}

// RoundTrip implements http.RoundTripper.
func (t *FlakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.calls++
	fail := t.calls <= t.Failures
	t.mu.Unlock()

	if fail {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// Calls returns the number of round trips attempted.
func (t *FlakyTransport) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
