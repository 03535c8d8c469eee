package client

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

var errInvalidUTF8 = errors.New("invalid utf-8 sequence")

// textCodec decodes bodies using a WHATWG encoding label.
type textCodec struct {
	name string
	enc  encoding.Encoding
}

func newTextCodec(label string) (*textCodec, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", label, err)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", label, err)
	}
	return &textCodec{name: name, enc: enc}, nil
}

// decode replaces undecodable bytes.
func (t *textCodec) decode(b []byte) string {
	if t.name == "utf-8" {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	out, err := t.enc.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return string(out)
}

// decodeStrict fails on content that is not valid in the encoding.
func (t *textCodec) decodeStrict(b []byte) (string, error) {
	if t.name == "utf-8" {
		if !utf8.Valid(b) {
			return "", errInvalidUTF8
		}
		return string(b), nil
	}
	out, err := t.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
