package listing

import (
	"testing"

	"github.com/fruitsalade/dirfetch/pkg/models"
)

const sampleBody = `<!DOCTYPE HTML>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Directory listing for /</title>
</head>
<body>
<h1>Directory listing for /</h1>
<hr>
<ul>
<li><a href="a">a</a></li>
<li><a href="b">b@</a></li>
<li><a href="b%20c.tar">b c.tar</a></li>
<li><a href="c/">c@</a></li>
<li><a href="example_dir/">example_dir/</a></li>
</ul>
<hr>
</body>
</html>
`

func TestParse(t *testing.T) {
	got := Parse(sampleBody)

	want := []models.RemoteEntry{
		{Href: "a", DisplayName: "a", Kind: models.File},
		{Href: "b", DisplayName: "b@", Kind: models.LinkFile},
		{Href: "b%20c.tar", DisplayName: "b c.tar", Kind: models.File},
		{Href: "c/", DisplayName: "c@/", Kind: models.LinkDirectory},
		{Href: "example_dir/", DisplayName: "example_dir/", Kind: models.Directory},
	}

	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i+1, got[i], want[i])
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		href, text  string
		kind        models.EntryKind
		displayName string
	}{
		{"c/", "c@/", models.LinkDirectory, "c@/"},
		{"c/", "c@", models.LinkDirectory, "c@/"},
		{"j/", "j/", models.Directory, "j/"},
		{"a", "a@", models.LinkFile, "a@"},
		{"a", "a", models.File, "a"},
		{"x/", "other", models.Directory, "other"},
		{"a@", "a@", models.File, "a@"},
	}
	for _, tt := range tests {
		e := Classify(tt.href, tt.text)
		if e.Kind != tt.kind {
			t.Errorf("Classify(%q, %q).Kind = %v, want %v", tt.href, tt.text, e.Kind, tt.kind)
		}
		if e.DisplayName != tt.displayName {
			t.Errorf("Classify(%q, %q).DisplayName = %q, want %q", tt.href, tt.text, e.DisplayName, tt.displayName)
		}
		if e.Href != tt.href {
			t.Errorf("Classify(%q, %q).Href = %q", tt.href, tt.text, e.Href)
		}
	}
}

func TestParseIgnoresOtherMarkup(t *testing.T) {
	body := `<a href="x">x</a>
<li>plain</li>
<li><a href="y" class="z">y</a></li>
<li><a href="ok">ok</a></li>`

	got := Parse(body)
	if len(got) != 1 || got[0].Href != "ok" {
		t.Errorf("Parse = %+v, want only ok", got)
	}
}

func TestParseEmpty(t *testing.T) {
	if got := Parse(""); len(got) != 0 {
		t.Errorf("Parse(\"\") = %+v", got)
	}
	l := ParseListing("/d", "<ul>\n</ul>")
	if l.Dir != "/d" || l.Len() != 0 {
		t.Errorf("ParseListing = %+v", l)
	}
}

func TestParseSameLineRows(t *testing.T) {
	got := Parse(`<li><a href="a">a</a></li><li><a href="b/">b/</a></li>`)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[1].Kind != models.Directory {
		t.Errorf("second entry kind = %v", got[1].Kind)
	}
}
