package shell

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fruitsalade/dirfetch/pkg/models"
)

var archiveExts = map[string]bool{"tar": true, "tgz": true, "zip": true, "rar": true, "bz2": true}

// styles colors listing rows. Colors are dropped automatically when out is
// not a terminal.
type styles struct {
	plain   lipgloss.Style
	source  lipgloss.Style
	archive lipgloss.Style
	link    lipgloss.Style
	dir     lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		plain:   r.NewStyle(),
		source:  r.NewStyle().Bold(true),
		archive: r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		link:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		dir:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
	}
}

func (s styles) entry(e models.RemoteEntry) string {
	switch {
	case e.Kind.IsLink():
		return s.link.Render(e.DisplayName)
	case e.Kind == models.Directory:
		return s.dir.Render(e.DisplayName)
	}
	ext := e.DisplayName[strings.LastIndex(e.DisplayName, ".")+1:]
	switch {
	case ext == "py":
		return s.source.Render(e.DisplayName)
	case archiveExts[ext]:
		return s.archive.Render(e.DisplayName)
	default:
		return s.plain.Render(e.DisplayName)
	}
}

// renderListing prints one "[n] name" row per entry.
func (s styles) renderListing(out io.Writer, l *models.Listing) {
	for i, e := range l.Entries {
		fmt.Fprintf(out, "[%d] %s\n", i+1, s.entry(e))
	}
}
