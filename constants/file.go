package constants

import "strings"

// AllowedExtensions holds the default allowed file extensions for export-file discovery.
var AllowedExtensions = map[string]struct{}{
	"csv":   {},
	"jsonl": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
