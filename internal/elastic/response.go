package elastic

import "github.com/buger/jsonparser"

// Probes over raw search result trees.

// HitsTotal handles both the modern {"value":N} object and the bare
// number older backends return.
func HitsTotal(result []byte) int64 {
	if total, err := jsonparser.GetInt(result, "hits", "total", "value"); err == nil {
		return total
	}
	if total, err := jsonparser.GetInt(result, "hits", "total"); err == nil {
		return total
	}
	return 0
}

// FirstHit returns the first element of hits.hits, if any.
func FirstHit(result []byte) ([]byte, bool) {
	hit, dataType, _, err := jsonparser.Get(result, "hits", "hits", "[0]")
	if err != nil || dataType != jsonparser.Object {
		return nil, false
	}
	return hit, true
}
