// Package catalog resolves a series title guess to best-effort metadata
// from a remote manga catalog. Lookups never fail: any problem yields an
// empty CatalogInfo.
package catalog

import (
	"context"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/starford/tankobon/internal/models"
)

// Lookup resolves a title guess to catalog metadata.
type Lookup interface {
	Lookup(ctx context.Context, title string) models.CatalogInfo
}

// Nop is a Lookup that never contacts anything.
type Nop struct{}

// Lookup returns empty info.
func (Nop) Lookup(context.Context, string) models.CatalogInfo {
	return models.CatalogInfo{AltTitles: []string{}}
}

// NormalizeTitle trims a title and converts it to Unicode NFC so that
// visually identical directory names map to the same lookup key.
func NormalizeTitle(title string) string {
	return norm.NFC.String(strings.TrimSpace(title))
}

func empty(info models.CatalogInfo) bool {
	return info.SeriesID == "" && info.Title == ""
}
