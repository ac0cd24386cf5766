package dump

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"empty", nil, ""},
		{"ascii", []byte("hello\nworld\n"), "hello\nworld\n"},
		{"utf8", []byte("héllo 世界\n"), "héllo 世界\n"},
		{"crlf kept", []byte("a\r\nb\r\n"), "a\r\nb\r\n"},
		{"invalid byte replaced", []byte("caf\xe9 au lait"), "caf\ufffd au lait"},
		{"truncated sequence replaced once", []byte("x\xe4\xb8"), "x\ufffd"},
		{"utf8 bom kept", []byte("\xef\xbb\xbfkey = 1\n"), "\ufeffkey = 1\n"},
		{"utf16le bom", []byte{0xFF, 0xFE, 'h', 0, 'i', 0, '\n', 0}, "hi\n"},
		{"utf16be bom", []byte{0xFE, 0xFF, 0, 'o', 0, 'k'}, "ok"},
		{"magic prefix without binary bytes", []byte("MZ,header\n1,2\n"), "MZ,header\n1,2\n"},
		{"json", []byte(`{"a": [1, 2]}`), `{"a": [1, 2]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Binary(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"nul bytes", []byte("\x00\x00\x00\x00garbage\x00")},
		{"png header", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")},
		{"zip header", []byte("PK\x03\x04\x14\x00\x00\x00\x08\x00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.in)
			assert.ErrorIs(t, err, ErrBinary)
		})
	}
}
