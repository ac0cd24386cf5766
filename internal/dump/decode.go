package dump

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrBinary is returned by Decode for content that is not text.
var ErrBinary = errors.New("binary content")

// Decode converts raw file content to text.
//
// Content is rejected with ErrBinary only when it both sniffs as a non-text
// type and contains binary control bytes, so text that happens to begin with
// a short magic number still decodes. UTF-16 with a byte order mark is
// transcoded; everything else is read as UTF-8 with each ill-formed sequence
// replaced by U+FFFD.
func Decode(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	if !isText(mt) && hasBinaryBytes(data) {
		return "", fmt.Errorf("%w (%s)", ErrBinary, mt.String())
	}

	var t transform.Transformer = unicode.UTF8.NewDecoder()
	if strings.HasPrefix(charset(mt), "utf-16") {
		t = unicode.BOMOverride(t)
	}
	out, _, err := transform.Bytes(t, data)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return string(out), nil
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func charset(mt *mimetype.MIME) string {
	_, params, err := mime.ParseMediaType(mt.String())
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}

// hasBinaryBytes reports whether data holds a byte that never appears in
// text: the WHATWG mime-sniffing "binary data byte" set.
func hasBinaryBytes(data []byte) bool {
	for _, b := range data {
		if b <= 0x08 || b == 0x0B || (0x0E <= b && b <= 0x1A) || (0x1C <= b && b <= 0x1F) {
			return true
		}
	}
	return false
}
