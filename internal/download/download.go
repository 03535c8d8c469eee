// Package download materializes remote files and directory trees into a
// sink.
package download

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/fruitsalade/dirfetch/internal/logging"
	"github.com/fruitsalade/dirfetch/internal/metrics"
	"github.com/fruitsalade/dirfetch/internal/prompt"
	"github.com/fruitsalade/dirfetch/internal/sink"
	"github.com/fruitsalade/dirfetch/pkg/client"
	"github.com/fruitsalade/dirfetch/pkg/errkind"
	"github.com/fruitsalade/dirfetch/pkg/models"
	"github.com/fruitsalade/dirfetch/pkg/vpath"
)

// Fetcher is the subset of the transfer client the downloader needs.
type Fetcher interface {
	FetchFile(ctx context.Context, remotePath string, progress client.Progress) (*client.Result, error)
	FetchListing(ctx context.Context, dir string) (*models.Listing, error)
}

// Downloader copies remote paths into a Sink.
type Downloader struct {
	Fetcher Fetcher
	Sink    sink.Sink
	Confirm prompt.Confirmer
	Out     io.Writer

	// NewProgress returns the progress reporter for one streamed file.
	// Nil disables progress output.
	NewProgress func() client.Progress
}

// frame is one directory being copied. Entries are consumed in listing
// order; a subdirectory is pushed as soon as it is reached.
type frame struct {
	remote  string
	local   string
	entries []models.RemoteEntry
	next    int
}

// Download fetches remotePath and stores it under its local name. recursive
// must be set exactly when remotePath is a directory. last is the most
// recent listing and supplies display names. It returns the local name, or
// "" when the user declined to overwrite an existing destination.
func (d *Downloader) Download(ctx context.Context, remotePath string, recursive bool, last *models.Listing) (string, error) {
	base := vpath.Base(remotePath)
	if base == vpath.Root {
		return "", errkind.New(errkind.Arg, "Dest can't be /")
	}

	res, err := d.Fetcher.FetchFile(ctx, remotePath, d.progress())
	if err != nil {
		return "", err
	}
	if recursive != res.IsDir {
		return "", errkind.New(errkind.Arg,
			"Specify -r when dest is a directory. Don't do this when dest is a file.\nType get -h for more help")
	}

	name := localName(remotePath, base, res.IsDir, last)

	ok, err := d.claim(ctx, name)
	if err != nil || !ok {
		return "", err
	}

	fmt.Fprintf(d.Out, "Downloading %s\n", name)
	if res.IsDir {
		err = d.downloadTree(ctx, remotePath, name)
	} else {
		err = d.writeFile(ctx, name, res.Body)
	}
	if err != nil {
		return "", err
	}

	fmt.Fprintf(d.Out, "Successfully saved to %s\n", d.Sink.Location(name))
	return name, nil
}

// localName prefers the display name the listing published for the entry
// and falls back to the decoded final path segment.
func localName(remotePath, base string, isDir bool, last *models.Listing) string {
	href := base
	if isDir {
		href += "/"
	}
	if last != nil && last.Dir == vpath.Parent(remotePath) {
		if e, ok := last.FindByHref(href); ok {
			return e.LocalName()
		}
	}
	if decoded, err := url.PathUnescape(base); err == nil {
		return decoded
	}
	return base
}

// claim makes name available, asking before anything existing is removed.
func (d *Downloader) claim(ctx context.Context, name string) (bool, error) {
	exists, err := d.Sink.Exists(ctx, name)
	if err != nil {
		return false, err
	}
	if !exists {
		return true, nil
	}

	ok, err := d.Confirm.ConfirmOverwrite(ctx, d.Sink.Location(name))
	if err != nil {
		return false, err
	}
	metrics.RecordOverwriteDecision(ok)
	if !ok {
		logging.WithContext(ctx).Debug("kept existing destination", logging.String("dest", name))
		return false, nil
	}

	if err := d.Sink.Remove(ctx, name); err != nil {
		return false, err
	}
	logging.WithContext(ctx).Debug("removed existing destination", logging.String("dest", name))
	return true, nil
}

func (d *Downloader) downloadTree(ctx context.Context, remote, local string) error {
	root, err := d.openDir(ctx, remote, local)
	if err != nil {
		return err
	}
	stack := []*frame{root}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		top := stack[len(stack)-1]
		if top.next == len(top.entries) {
			stack = stack[:len(stack)-1]
			continue
		}
		entry := top.entries[top.next]
		top.next++

		childRemote := vpath.Join(top.remote, entry.Href)
		childLocal := top.local + "/" + entry.LocalName()
		fmt.Fprintf(d.Out, "Downloading %s to %s\n", childRemote, childLocal)

		ok, err := d.claim(ctx, childLocal)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		if entry.Kind.IsDir() {
			child, err := d.openDir(ctx, childRemote, childLocal)
			if err != nil {
				return err
			}
			stack = append(stack, child)
			continue
		}

		res, err := d.Fetcher.FetchFile(ctx, childRemote, d.progress())
		if err != nil {
			return err
		}
		if err := d.writeFile(ctx, childLocal, res.Body); err != nil {
			return err
		}
	}
	return nil
}

// openDir creates local and fetches the listing of remote.
func (d *Downloader) openDir(ctx context.Context, remote, local string) (*frame, error) {
	if err := d.Sink.Mkdir(ctx, local); err != nil {
		return nil, err
	}
	metrics.RecordDirCreated()
	logging.WithContext(ctx).Debug("created directory", logging.String("dest", local))

	l, err := d.Fetcher.FetchListing(ctx, remote)
	if err != nil {
		return nil, err
	}
	return &frame{remote: remote, local: local, entries: l.Entries}, nil
}

func (d *Downloader) writeFile(ctx context.Context, name string, data []byte) error {
	err := d.Sink.WriteFile(ctx, name, data)
	metrics.RecordFileSaved(err == nil)
	if err != nil {
		return err
	}
	logging.WithContext(ctx).Debug("saved file",
		logging.String("dest", name),
		logging.Int("bytes", len(data)),
	)
	return nil
}

func (d *Downloader) progress() client.Progress {
	if d.NewProgress == nil {
		return nil
	}
	return d.NewProgress()
}
