package message

import "github.com/nornicgraph/boltd/pkg/packstream"

// Accessors for the free-form "extra"/"auth"/"metadata" dictionaries that
// appear throughout the message vocabulary (spec.md §4.3). These never
// fail on a missing or mistyped key — callers get the default and treat
// absence as "use the protocol default", matching how Neo4j drivers send
// sparse extra dicts.

// Int64 returns d[key] as an int64, or def if absent or not an integer.
func Int64(d *packstream.Dictionary, key string, def int64) int64 {
	v, ok := d.Get(key)
	if !ok {
		return def
	}
	n, ok := v.(int64)
	if !ok {
		return def
	}
	return n
}

// String returns d[key] as a string, or def if absent or not a string.
func String(d *packstream.Dictionary, key string, def string) string {
	v, ok := d.Get(key)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

// Bool returns d[key] as a bool, or def if absent or not a bool.
func Bool(d *packstream.Dictionary, key string, def bool) bool {
	v, ok := d.Get(key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// StringList returns d[key] as a []string, dropping any non-string
// entries, or nil if absent or not a list.
func StringList(d *packstream.Dictionary, key string) []string {
	v, ok := d.Get(key)
	if !ok {
		return nil
	}
	l, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(l))
	for _, item := range l {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// N returns the PULL/DISCARD record quota from extra["n"], defaulting to
// AllRemaining when absent.
func N(extra *packstream.Dictionary) int64 {
	return Int64(extra, "n", AllRemaining)
}

// Qid returns the target stream id from extra["qid"], defaulting to
// MostRecentStream when absent.
func Qid(extra *packstream.Dictionary) int64 {
	return Int64(extra, "qid", MostRecentStream)
}
