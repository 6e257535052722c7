package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	DefaultSubjectPrefix  = "msg"
	SubjectStorageChanged = "storage.changed"
)

// BuildScopeSubject builds the request subject a scope is served on.
func BuildScopeSubject(prefix, scope string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return fmt.Sprintf("%s.%s", prefix, SanitizeToken(scope))
}

// BuildChangeSubject builds a granular storage change subject for key.
func BuildChangeSubject(key string) string {
	return fmt.Sprintf("%s.%s", SubjectStorageChanged, SanitizeToken(key))
}

var tokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_", "\t", "_")

// SanitizeToken makes s safe to use as a single subject token.
func SanitizeToken(s string) string {
	if s == "" {
		return "_"
	}
	return tokenReplacer.Replace(s)
}
