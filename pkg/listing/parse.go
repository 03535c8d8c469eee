// Package listing infers directory entries from the HTML index pages
// rendered by minimal static-file servers.
package listing

import (
	"regexp"
	"strings"

	"github.com/fruitsalade/dirfetch/pkg/models"
)

// rowPattern matches one listing row. Rows must be on a single line.
var rowPattern = regexp.MustCompile(`<li><a href="([^"]*)">(.*?)</a></li>`)

// Parse returns every listing row of body in document order.
func Parse(body string) []models.RemoteEntry {
	matches := rowPattern.FindAllStringSubmatch(body, -1)
	entries := make([]models.RemoteEntry, 0, len(matches))
	for _, m := range matches {
		entries = append(entries, Classify(m[1], m[2]))
	}
	return entries
}

// ParseListing parses body into a Listing for the virtual directory dir.
func ParseListing(dir, body string) *models.Listing {
	return &models.Listing{Dir: dir, Entries: Parse(body)}
}

// Classify derives the entry kind from an anchor. Symlinks carry an "@"
// suffix in the anchor text while the href is left bare.
func Classify(href, text string) models.RemoteEntry {
	entry := models.RemoteEntry{Href: href, DisplayName: text}

	switch {
	case strings.HasSuffix(href, "/") && isLinkDirText(href, text):
		entry.Kind = models.LinkDirectory
		if !strings.HasSuffix(entry.DisplayName, "/") {
			entry.DisplayName += "/"
		}
	case strings.HasSuffix(href, "/"):
		entry.Kind = models.Directory
	case href+"@" == text:
		entry.Kind = models.LinkFile
	default:
		entry.Kind = models.File
	}
	return entry
}

// isLinkDirText accepts both "name@" and the already decorated "name@/".
func isLinkDirText(href, text string) bool {
	marked := strings.TrimSuffix(href, "/") + "@"
	return text == marked || text == marked+"/"
}
