package fetcher

import (
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"

	"github.com/jmylchreest/ptsites/internal/logger"
)

// minConfidence is the chardet score below which a guess is ignored.
const minConfidence = 50

// chardet reports ICU names; a few differ from the WHATWG labels that
// charset.Lookup understands.
var charsetAliases = map[string]string{
	"gb-18030": "gb18030",
}

// DecodeBody converts a raw response body to a UTF-8 string. Valid UTF-8 is
// returned unchanged. Otherwise a guess from the bytes wins over any charset
// declared in contentType, a BOM or a <meta> tag, which is only the fallback.
func DecodeBody(raw []byte, contentType string) string {
	if len(raw) == 0 {
		return ""
	}
	if utf8.Valid(raw) {
		return string(raw)
	}

	if guess := detectCharset(raw); guess != "" {
		if out, ok := decodeAs(raw, guess); ok {
			return out
		}
		logger.Debug("detected charset unusable", "charset", guess)
	}

	enc, name, _ := charset.DetermineEncoding(raw, contentType)
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		logger.Debug("charset decode failed", "charset", name, "error", err)
		return string(raw)
	}
	return string(out)
}

func decodeAs(raw []byte, name string) (string, bool) {
	enc, _ := charset.Lookup(name)
	if enc == nil {
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	return string(out), true
}

func detectCharset(raw []byte) string {
	res, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || res == nil || res.Confidence < minConfidence {
		return ""
	}
	name := strings.ToLower(res.Charset)
	if alias, ok := charsetAliases[name]; ok {
		return alias
	}
	return name
}
