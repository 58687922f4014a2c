package fetcher

import (
	"bytes"
	"encoding/base64"
	"strings"
)

var imageSignatures = []struct {
	magic []byte
	mime  string
}{
	{[]byte{0xFF, 0xD8, 0xFF}, "image/jpeg"},
	{[]byte("\x89PNG\r\n\x1a\n"), "image/png"},
	{[]byte("GIF87a"), "image/gif"},
	{[]byte("GIF89a"), "image/gif"},
	{[]byte("RIFF"), "image/webp"},
	{[]byte("BM"), "image/bmp"},
}

// SniffImageMIME determines an image MIME type from its magic bytes, falling
// back to an image/* Content-Type header. Anything else is ErrUnknownImage.
func SniffImageMIME(data []byte, contentType string) (string, error) {
	for _, sig := range imageSignatures {
		if bytes.HasPrefix(data, sig.magic) {
			return sig.mime, nil
		}
	}
	if contentType != "" {
		mime := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
		if strings.HasPrefix(mime, "image/") {
			return mime, nil
		}
	}
	return "", ErrUnknownImage
}

// DataURI encodes data as a data:<mime>;base64,<payload> URI.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
