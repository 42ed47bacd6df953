package utils

import (
	"path/filepath"
	"strings"
)

// FileExt returns the lowercased extension of an uploaded filename, ".png" style.
// Unknown or missing extensions fall back to ".bin" so R2 keys stay well-formed.
func FileExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg":
		return ext
	default:
		return ".bin"
	}
}
