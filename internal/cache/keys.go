package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key builds a request fingerprint from an endpoint and its query
// parameters. Params are serialized in sorted key order so that equivalent
// requests always produce the same fingerprint, then hashed to keep keys
// short and uniform across backends.
func Key(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return fmt.Sprintf("%s:%016x", endpoint, xxhash.Sum64String(endpoint))
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(endpoint)
	for _, name := range names {
		sb.WriteByte('&')
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(params[name])
	}

	return fmt.Sprintf("%s:%016x", endpoint, xxhash.Sum64String(sb.String()))
}
