package cache

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// KeySeparator is placed between key parts
const KeySeparator = "__"

// BuildKey derives a cache key from an ordered list of parts.
// Strings are used verbatim, other values are JSON encoded (fmt as a last resort).
// Each part is prefixed with its byte length so that different part lists
// never produce the same key, whatever the parts contain.
func BuildKey(parts ...any) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		s := serializePart(p)
		out[i] = strconv.Itoa(len(s)) + ":" + s
	}
	return strings.Join(out, KeySeparator)
}

func serializePart(p any) string {
	if s, ok := p.(string); ok {
		return s
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf("%v", p)
	}
	return string(data)
}
