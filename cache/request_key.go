package cache

import (
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// MaxQueryKeyLength is the longest canonical query string embedded verbatim
// in a request key. Longer query strings are replaced by their xxhash digest.
const MaxQueryKeyLength = 256

// RequestKey is the default key function: method, normalized path and the
// canonical query string, e.g. "GET:/cars/makes?lang=en".
func RequestKey(r *http.Request) string {
	key := r.Method + KeySeparator + NormalizePath(r.URL.Path)

	q := CanonicalQuery(r.URL.Query())
	if q == "" {
		return key
	}
	if len(q) > MaxQueryKeyLength {
		q = "#" + strconv.FormatUint(xxhash.Sum64String(q), 16)
	}
	return key + "?" + q
}

// NormalizePath cleans p and drops any trailing slash so "/cars/" and
// "/cars" share a key.
func NormalizePath(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := path.Clean("/" + p)
	if cleaned != "/" {
		cleaned = strings.TrimSuffix(cleaned, "/")
	}
	return cleaned
}

// CanonicalQuery encodes values with the parameter names sorted. A repeated
// parameter keeps its values in request order since handlers reading the
// first value see different requests. Parameters whose values are all empty
// are dropped.
func CanonicalQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}

	keys := make([]string, 0, len(values))
	for k, vs := range values {
		if hasNonEmpty(vs) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func hasNonEmpty(vs []string) bool {
	for _, v := range vs {
		if v != "" {
			return true
		}
	}
	return false
}
