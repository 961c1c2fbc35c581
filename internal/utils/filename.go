package utils

import (
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Extensions accepted for post images. Matching is case-insensitive.
var allowedImageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

var generatedImageNameRe = regexp.MustCompile(`^[0-9a-f]{32}\.(png|jpg|jpeg|gif)$`)

// AllowedImageExt reports whether the client-supplied filename carries an
// allowed image extension
func AllowedImageExt(filename string) bool {
	return allowedImageExts[strings.ToLower(filepath.Ext(filename))]
}

// GeneratedImageName returns a collision-resistant stored filename preserving
// the original extension (lowercased). The client-supplied name itself is
// never reused, so it cannot carry path traversal or overwrite an existing file.
func GeneratedImageName(original string) string {
	id := uuid.New()
	ext := strings.ToLower(filepath.Ext(original))
	return hex.EncodeToString(id[:]) + ext
}

// IsGeneratedImageName reports whether name has the exact shape produced by
// GeneratedImageName. Anything else is rejected before touching the filesystem.
func IsGeneratedImageName(name string) bool {
	return generatedImageNameRe.MatchString(name)
}
