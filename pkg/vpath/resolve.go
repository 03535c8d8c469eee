// Package vpath resolves user-typed remote paths against a virtual current
// directory. Paths are handled symbolically; the local filesystem is never
// consulted.
package vpath

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fruitsalade/dirfetch/pkg/errkind"
	"github.com/fruitsalade/dirfetch/pkg/models"
)

// Root is the top of every virtual tree.
const Root = "/"

var (
	indexRef       = regexp.MustCompile(`^\[(\d+)\]$`)
	escapedIndex   = regexp.MustCompile(`^\\\[\d+\]`)
	escapedIndex2x = regexp.MustCompile(`^\\\\\[\d+\]`)
)

// Resolver expands, joins, collapses and guards remote paths.
type Resolver struct {
	// OnWarning receives soft warnings about characters that are legal in
	// file names but may confuse the server's markup.
	OnWarning func(msg string)
}

// Resolve resolves raw against cwd using the zero Resolver.
func Resolve(cwd, raw string, last *models.Listing) (string, error) {
	return Resolver{}.Resolve(cwd, raw, last)
}

// Resolve returns the absolute virtual path raw designates when typed in cwd.
// last is the most recent listing, used to expand "[n]" references.
func (r Resolver) Resolve(cwd, raw string, last *models.Listing) (string, error) {
	arg, err := ExpandIndex(raw, last)
	if err != nil {
		return "", err
	}

	p := Collapse(Join(cwd, arg))

	if err := r.checkSpecial(p); err != nil {
		return "", err
	}
	return p, nil
}

// ExpandIndex replaces an exact "[n]" reference with the href of the n-th
// entry of last. One escaping backslash is stripped from "\[n]" and "\\[n]".
func ExpandIndex(raw string, last *models.Listing) (string, error) {
	if m := indexRef.FindStringSubmatch(raw); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return "", errkind.New(errkind.Index, "list index out of range: %s", raw)
		}
		entry, ok := last.At(n)
		if !ok {
			return "", errkind.New(errkind.Index, "list index out of range: %s (listing has %d entries)", raw, last.Len())
		}
		return entry.Href, nil
	}
	if escapedIndex.MatchString(raw) || escapedIndex2x.MatchString(raw) {
		return raw[1:], nil
	}
	return raw, nil
}

// Join joins arg onto dir with POSIX semantics: an absolute arg replaces dir
// and an empty arg leaves dir unchanged. The result is normalized.
func Join(dir, arg string) string {
	if strings.HasPrefix(arg, "/") {
		return Clean(arg)
	}
	if arg == "" {
		return Clean(dir)
	}
	return Clean(dir + "/" + arg)
}

// Clean drops empty and "." segments and the trailing slash. ".." segments
// are kept; Collapse resolves them.
func Clean(p string) string {
	parts := strings.Split(p, "/")
	kept := parts[:0]
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		kept = append(kept, part)
	}
	return "/" + strings.Join(kept, "/")
}

// Parent returns p without its last segment. The parent of the root is the
// root.
func Parent(p string) string {
	p = Clean(p)
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return Root
	}
	return p[:i]
}

// Base returns the last segment of p, or "/" for the root.
func Base(p string) string {
	p = Clean(p)
	if p == Root {
		return Root
	}
	return p[strings.LastIndex(p, "/")+1:]
}

// Collapse resolves ".." against the string path, clamping at the root.
// The first "../" replaces "<head>../" with the parent of head; a trailing
// ".." drops the last two segments of the path that still carries it.
func Collapse(p string) string {
	p = Clean(p)
	for {
		if i := strings.Index(p, "../"); i >= 0 {
			head, tail := p[:i], p[i+3:]
			p = Join(Parent(head), tail)
			continue
		}
		if strings.HasSuffix(p, "..") {
			p = Parent(Parent(p))
			continue
		}
		return p
	}
}

// checkSpecial rejects query strings and warns about markup characters.
func (r Resolver) checkSpecial(p string) error {
	if strings.Contains(p, "?") {
		return &errkind.Error{
			Kind: errkind.SpecialCharacter,
			Op:   "resolve",
			Path: p,
			Msg:  "? exists in the arg",
		}
	}
	if r.OnWarning == nil {
		return nil
	}
	for _, c := range "&<>" {
		if strings.ContainsRune(p, c) {
			r.OnWarning(fmt.Sprintf("%c exists in the arg", c))
		}
	}
	return nil
}
