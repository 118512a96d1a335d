// Package attrs reads values back out of slog-style key/value argument lists.
package attrs

// String returns the string value paired with key in kv, laid out as
// [key1, value1, key2, value2, ...]. The last pair wins when a key repeats.
func String(kv []any, key string) (string, bool) {
	var (
		out   string
		found bool
	)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); !ok || k != key {
			continue
		}
		if v, ok := kv[i+1].(string); ok {
			out, found = v, true
		}
	}
	return out, found
}
