package download

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fruitsalade/dirfetch/internal/prompt"
	"github.com/fruitsalade/dirfetch/internal/sink"
	"github.com/fruitsalade/dirfetch/internal/testutil"
	"github.com/fruitsalade/dirfetch/pkg/client"
	"github.com/fruitsalade/dirfetch/pkg/errkind"
	"github.com/fruitsalade/dirfetch/pkg/models"
)

type fixture struct {
	server *testutil.ListingServer
	client *client.Client
	root   string
	out    *bytes.Buffer
	d      *Downloader
}

func newFixture(t *testing.T, confirm prompt.Confirmer) *fixture {
	t.Helper()
	s := testutil.NewListingServer()
	t.Cleanup(s.Close)
	s.AddFile("/a", []byte("file a"))
	s.AddFile("/b c", []byte("spaced"))
	s.AddFile("/c/h", []byte("file h"))
	s.AddFile("/c/j/k", []byte("file k"))

	c, err := client.New(client.Config{BaseURL: s.URL, AttemptTimeout: time.Second})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	root := t.TempDir()
	local, err := sink.NewLocal(root)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	out := &bytes.Buffer{}
	return &fixture{
		server: s,
		client: c,
		root:   root,
		out:    out,
		d:      &Downloader{Fetcher: c, Sink: local, Confirm: confirm, Out: out},
	}
}

func (f *fixture) listing(t *testing.T, dir string) *models.Listing {
	t.Helper()
	l, err := f.client.FetchListing(context.Background(), dir)
	if err != nil {
		t.Fatalf("FetchListing(%s): %v", dir, err)
	}
	return l
}

func (f *fixture) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(name)))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func TestDownloadTree(t *testing.T) {
	f := newFixture(t, prompt.Never{})
	ctx := context.Background()

	dest, err := f.d.Download(ctx, "/c", true, f.listing(t, "/"))
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if dest != "c" {
		t.Errorf("dest = %q, want c", dest)
	}
	if got := f.read(t, "c/h"); got != "file h" {
		t.Errorf("c/h = %q", got)
	}
	if got := f.read(t, "c/j/k"); got != "file k" {
		t.Errorf("c/j/k = %q", got)
	}

	wantOrder := []string{
		"Downloading c\n",
		"Downloading /c/h to c/h\n",
		"Downloading /c/j to c/j\n",
		"Downloading /c/j/k to c/j/k\n",
		"Successfully saved to ",
	}
	out := f.out.String()
	pos := 0
	for _, w := range wantOrder {
		i := strings.Index(out[pos:], w)
		if i < 0 {
			t.Fatalf("output missing %q after offset %d:\n%s", w, pos, out)
		}
		pos += i + len(w)
	}
}

func TestDownloadFile(t *testing.T) {
	f := newFixture(t, prompt.Never{})

	dest, err := f.d.Download(context.Background(), "/a", false, nil)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if dest != "a" || f.read(t, "a") != "file a" {
		t.Errorf("dest = %q, content = %q", dest, f.read(t, "a"))
	}
}

func TestDownloadModeMismatch(t *testing.T) {
	f := newFixture(t, prompt.Never{})
	ctx := context.Background()

	if _, err := f.d.Download(ctx, "/a", true, nil); !errkind.Is(err, errkind.Arg) {
		t.Errorf("file with -r: err = %v, want ArgError", err)
	}
	if _, err := f.d.Download(ctx, "/c", false, nil); !errkind.Is(err, errkind.Arg) {
		t.Errorf("dir without -r: err = %v, want ArgError", err)
	}
	entries, _ := os.ReadDir(f.root)
	if len(entries) != 0 {
		t.Errorf("mode mismatch wrote %d entries", len(entries))
	}
}

func TestDownloadRoot(t *testing.T) {
	f := newFixture(t, prompt.Never{})
	_, err := f.d.Download(context.Background(), "/", true, nil)
	if !errkind.Is(err, errkind.Arg) {
		t.Errorf("err = %v, want ArgError", err)
	}
}

func TestDownloadNotFound(t *testing.T) {
	f := newFixture(t, prompt.Never{})
	_, err := f.d.Download(context.Background(), "/missing", false, nil)
	if !errkind.Is(err, errkind.NotFound) {
		t.Errorf("err = %v, want NotFoundError", err)
	}
}

func TestDownloadDeclinedOverwrite(t *testing.T) {
	f := newFixture(t, prompt.Never{})
	existing := filepath.Join(f.root, "a")
	if err := os.WriteFile(existing, []byte("original bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	dest, err := f.d.Download(context.Background(), "/a", false, nil)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if dest != "" {
		t.Errorf("dest = %q, want empty for declined overwrite", dest)
	}
	if got := f.read(t, "a"); got != "original bytes" {
		t.Errorf("existing file changed to %q", got)
	}
	if strings.Contains(f.out.String(), "Downloading") {
		t.Errorf("declined download printed %q", f.out.String())
	}
}

func TestDownloadOverwriteDirectory(t *testing.T) {
	f := newFixture(t, prompt.Always{})
	stray := filepath.Join(f.root, "c", "stray")
	if err := os.MkdirAll(filepath.Dir(stray), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stray, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := f.d.Download(context.Background(), "/c", true, nil); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if _, err := os.Stat(stray); !os.IsNotExist(err) {
		t.Errorf("stray file survived overwrite: %v", err)
	}
	if got := f.read(t, "c/j/k"); got != "file k" {
		t.Errorf("c/j/k = %q", got)
	}
}

func TestDownloadUsesDisplayName(t *testing.T) {
	f := newFixture(t, prompt.Never{})
	f.server.MarkLink("/c")
	ctx := context.Background()
	root := f.listing(t, "/")

	e, ok := root.FindByHref("c/")
	if !ok || e.Kind != models.LinkDirectory {
		t.Fatalf("c/ entry = %+v, %v", e, ok)
	}
	dest, err := f.d.Download(ctx, "/c", true, root)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if dest != "c@" {
		t.Errorf("dest = %q, want c@", dest)
	}
	if got := f.read(t, "c@/j/k"); got != "file k" {
		t.Errorf("c@/j/k = %q", got)
	}

	dest, err = f.d.Download(ctx, "/b%20c", false, root)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if dest != "b c" || f.read(t, "b c") != "spaced" {
		t.Errorf("dest = %q", dest)
	}
}

func TestDownloadIgnoresListingOfOtherDirectory(t *testing.T) {
	last := &models.Listing{Dir: "/elsewhere", Entries: []models.RemoteEntry{
		{Href: "a", DisplayName: "renamed"},
	}}
	if got := localName("/a", "a", false, last); got != "a" {
		t.Errorf("localName = %q, want a", got)
	}
	last.Dir = "/"
	if got := localName("/a", "a", false, last); got != "renamed" {
		t.Errorf("localName = %q, want renamed", got)
	}
}

type countingProgress struct{ starts int }

func (p *countingProgress) Start(int) { p.starts++ }
func (p *countingProgress) Step()     {}
func (p *countingProgress) Finish()   {}

func TestDownloadProgress(t *testing.T) {
	f := newFixture(t, prompt.Never{})
	f.server.AddFile("/big", bytes.Repeat([]byte("z"), 2*client.MiB))
	p := &countingProgress{}
	f.d.NewProgress = func() client.Progress { return p }

	if _, err := f.d.Download(context.Background(), "/big", false, nil); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if p.starts != 1 {
		t.Errorf("progress started %d times, want 1", p.starts)
	}
}
