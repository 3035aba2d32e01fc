// Package keyname maps caller-visible key names to the keys used by the object storage backend.
package keyname

import "strings"

// Compose joins the configured prefix and a caller key name into a backend key.
//
// A single leading "/" is removed from the prefix. An empty prefix leaves the key name untouched.
// A key name already starting with "/" is appended as-is, any other key name gets a "/" separator.
func Compose(prefix, keyName string) string {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix == "" {
		return keyName
	}
	if strings.HasPrefix(keyName, "/") {
		return prefix + keyName
	}
	return prefix + "/" + keyName
}

// Decompose drops len(prefix)+1 bytes from a backend key, i.e. the prefix and one separator.
// A key name that started with "/" comes back without it. A prefix with a leading "/" is
// counted in full although Compose stripped that "/", so one character of the key name is lost.
func Decompose(prefix, prefixedKey string) string {
	if prefix == "" {
		return prefixedKey
	}
	n := len(prefix) + 1
	if n > len(prefixedKey) {
		return ""
	}
	return prefixedKey[n:]
}
