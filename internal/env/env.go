// Package env merges a managed entry's declared environment overrides over
// a base environment, the way the Child Runner prepares a child's env.
package env

import "strings"

// Merge returns a fresh []string combining base (typically os.Environ())
// with overrides ("KEY=VALUE" pairs) applied on top. Keys in overrides take
// precedence over matching keys in base; order is otherwise preserved.
func Merge(base []string, overrides []string) []string {
	if len(overrides) == 0 {
		return append([]string(nil), base...)
	}

	keyOf := func(kv string) string {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			return kv[:i]
		}
		return kv
	}

	overrideKeys := make(map[string]bool, len(overrides))
	for _, kv := range overrides {
		if k := keyOf(kv); k != "" {
			overrideKeys[k] = true
		}
	}

	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		if !overrideKeys[keyOf(kv)] {
			out = append(out, kv)
		}
	}
	for _, kv := range overrides {
		if keyOf(kv) != "" {
			out = append(out, kv)
		}
	}
	return out
}
