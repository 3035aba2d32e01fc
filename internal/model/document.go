package model

import (
	"path"
	"time"
)

// DocumentFile describes a document held by the document store.
// It is a projection of backend state built on every create or find; it is never persisted itself.
type DocumentFile struct {
	// KeyName is the caller-visible key. On create it holds the prefixed key instead.
	KeyName string `json:"key_name"`
	// Name is the display name of the document.
	Name string `json:"name"`
	// LastAccessDate is nil when the backend does not report it.
	LastAccessDate *time.Time `json:"last_access_date"`
	LastUpdateDate time.Time  `json:"last_update_date"`
	// Size is the byte count. Documents returned by a find leave it at zero.
	Size int64 `json:"size"`
}

// BaseName returns the last "/"-separated segment of a backend key.
func BaseName(key string) string {
	if key == "" {
		return ""
	}
	_, name := path.Split(key)
	return name
}
