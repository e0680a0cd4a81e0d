package media

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// extensionsByMime maps every supported image type to the extension used in object names.
var extensionsByMime = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// detectMimeType sniffs the leading bytes of an upload. The client supplied
// content type is never trusted.
func detectMimeType(head []byte) string {
	detected := mimetype.Detect(head)
	return strings.ToLower(detected.String())
}

func normalizeAllowed(types []string) map[string]struct{} {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		clean := strings.ToLower(strings.TrimSpace(t))
		if _, ok := extensionsByMime[clean]; !ok {
			continue
		}
		set[clean] = struct{}{}
	}
	if len(set) == 0 {
		for t := range extensionsByMime {
			set[t] = struct{}{}
		}
	}
	return set
}

func allowedDescription(allowed map[string]struct{}) string {
	names := make([]string, 0, len(allowed))
	for t := range allowed {
		names = append(names, strings.ToUpper(extensionsByMime[t]))
	}
	sort.Strings(names)
	return humanReadableList(names)
}

func humanReadableList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return fmt.Sprintf("%s or %s", items[0], items[1])
	default:
		return fmt.Sprintf("%s, or %s", strings.Join(items[:len(items)-1], ", "), items[len(items)-1])
	}
}
