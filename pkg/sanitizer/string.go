package sanitizer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Glyphs that show up when UTF-8 bytes are read back as Latin-1.
var mojibakeMarkers = [...]string{"Ã", "Â", "Ð", "\uFFFD"}

// AsString renders an extracted scalar as trimmed text, repairing mis-encoded accents.
// nil becomes the empty string.
func AsString(value any) string {
	return FixMojibake(strings.TrimSpace(stringify(value)))
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}

// FixMojibake undoes one round of UTF-8 text having been decoded as Latin-1.
//
// Text without any marker glyph is returned unchanged. Otherwise the text is encoded
// back to Latin-1 bytes and those bytes are read as UTF-8; the result is only kept when
// it is valid and carries strictly fewer markers than the input.
func FixMojibake(text string) string {
	if text == "" {
		return text
	}

	before := countMarkers(text)
	if before == 0 {
		return text
	}

	latin1, err := charmap.ISO8859_1.NewEncoder().String(text)
	if err != nil {
		return text
	}
	if !utf8.ValidString(latin1) {
		return text
	}

	if countMarkers(latin1) < before {
		return latin1
	}
	return text
}

func countMarkers(text string) int {
	n := 0
	for _, marker := range mojibakeMarkers {
		n += strings.Count(text, marker)
	}
	return n
}
