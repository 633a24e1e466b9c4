package comicinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format is an archive container family.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatRar
)

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatRar:
		return "rar"
	default:
		return "unknown"
	}
}

// FormatOf selects the container family from the file extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cbz", ".zip":
		return FormatZip
	case ".cbr", ".rar":
		return FormatRar
	default:
		return FormatUnknown
	}
}

// IsArchive reports whether name has a recognized archive extension.
func IsArchive(name string) bool {
	return FormatOf(name) != FormatUnknown
}

// TempPrefix marks files created next to an archive while it is rewritten.
const TempPrefix = ".tankobon-"

// IsTemp reports whether name is a rewrite temp file.
func IsTemp(name string) bool {
	return strings.HasPrefix(filepath.Base(name), TempPrefix)
}

// safeJoin resolves an archive entry name under root and rejects names
// that would escape it.
func safeJoin(root, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." ||
		strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("comicinfo: entry escapes archive root: %s", name)
	}
	return filepath.Join(root, cleaned), nil
}
