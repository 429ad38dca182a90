package timer

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// SuggestTags ranks known tags against query. An empty query returns the
// known tags alphabetically. At most limit results are returned when limit
// is positive.
func SuggestTags(query string, known []string, limit int) []string {
	var out []string

	query = strings.TrimSpace(query)
	if query == "" {
		out = append(out, known...)
		sort.Slice(out, func(i, j int) bool {
			return strings.ToLower(out[i]) < strings.ToLower(out[j])
		})
	} else {
		for _, m := range fuzzy.Find(query, known) {
			out = append(out, m.Str)
		}
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
