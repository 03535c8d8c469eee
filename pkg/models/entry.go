// Package models contains the data types shared by the dirfetch packages.
package models

import (
	"html"
	"strings"
)

// EntryKind is the type of a listing row as inferred from its anchor.
type EntryKind int

const (
	File EntryKind = iota
	LinkFile
	Directory
	LinkDirectory
)

func (k EntryKind) String() string {
	switch k {
	case LinkFile:
		return "link"
	case Directory:
		return "dir"
	case LinkDirectory:
		return "linkdir"
	default:
		return "file"
	}
}

// IsDir reports whether the kind is a directory or a link to one.
func (k EntryKind) IsDir() bool {
	return k == Directory || k == LinkDirectory
}

// IsLink reports whether the server marked the entry as a symlink.
func (k EntryKind) IsLink() bool {
	return k == LinkFile || k == LinkDirectory
}

// RemoteEntry is one row of a directory listing.
// Href is used for remote requests, DisplayName for local paths.
type RemoteEntry struct {
	Href        string
	DisplayName string
	Kind        EntryKind
}

// LocalName returns the file name to use on local storage: the display
// name with HTML entities decoded and the directory slash removed. The "@"
// link marker is part of the name.
func (e RemoteEntry) LocalName() string {
	return html.UnescapeString(strings.TrimSuffix(e.DisplayName, "/"))
}

// Listing is the ordered content of one directory response. Users refer to
// entries by 1-based index.
type Listing struct {
	Dir     string // virtual path the listing was fetched from
	Entries []RemoteEntry
}

// Len returns the number of entries.
func (l *Listing) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Entries)
}

// At returns the entry with the given 1-based index.
func (l *Listing) At(n int) (RemoteEntry, bool) {
	if l == nil || n < 1 || n > len(l.Entries) {
		return RemoteEntry{}, false
	}
	return l.Entries[n-1], true
}

// FindByHref returns the first entry published with href.
func (l *Listing) FindByHref(href string) (RemoteEntry, bool) {
	if l == nil {
		return RemoteEntry{}, false
	}
	for _, e := range l.Entries {
		if e.Href == href {
			return e, true
		}
	}
	return RemoteEntry{}, false
}
