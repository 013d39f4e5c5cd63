package audio

import (
	"path/filepath"
	"strings"
)

// TranscriptSuffix is appended to the upload stem to name the downloadable transcript
const TranscriptSuffix = "_transcricao.txt"

// DefaultExtensions lists the file types accepted by the upload form
var DefaultExtensions = []string{"mp3", "wav", "m4a", "ogg"}

var supportedLanguages = []string{"pt", "en", "es", "fr", "de", "it", "ja", "ko", "zh"}

// Upload is an audio file received from the form. It lives for a single request.
type Upload struct {
	Filename string
	Data     []byte
}

// Ext returns the extension of the original filename including the dot,
// or an empty string when there is none.
func (u Upload) Ext() string {
	_, ext := splitExt(u.Filename)
	return ext
}

// Stem returns the base filename without its extension.
func (u Upload) Stem() string {
	stem, _ := splitExt(u.Filename)
	return stem
}

// TranscriptFilename returns the suggested name of the downloadable transcript.
func (u Upload) TranscriptFilename() string {
	return u.Stem() + TranscriptSuffix
}

// Size returns the payload length in bytes.
func (u Upload) Size() int64 {
	return int64(len(u.Data))
}

// splitExt splits a filename like "interview.mp3" into "interview" and ".mp3".
// Leading dots belong to the stem, so ".env" has no extension.
func splitExt(name string) (string, string) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		return "", ""
	}

	i := strings.LastIndex(base, ".")
	if i <= 0 || strings.Trim(base[:i], ".") == "" {
		return base, ""
	}
	return base[:i], base[i:]
}

// ExtensionAllowed reports whether ext (with or without the leading dot) is in
// allowed. The comparison ignores case.
func ExtensionAllowed(ext string, allowed []string) bool {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(ext, strings.TrimPrefix(a, ".")) {
			return true
		}
	}
	return false
}

// SupportedLanguages returns the language codes offered by the form, in display order.
func SupportedLanguages() []string {
	out := make([]string, len(supportedLanguages))
	copy(out, supportedLanguages)
	return out
}

// IsSupportedLanguage reports whether code is one of the offered language codes.
// Codes are matched exactly; they are forwarded to the provider verbatim.
func IsSupportedLanguage(code string) bool {
	for _, l := range supportedLanguages {
		if l == code {
			return true
		}
	}
	return false
}
