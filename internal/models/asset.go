package models

import (
	"path/filepath"
	"strings"
	"time"
)

// Area is one of the upload destinations, each with its own directory and listing.
type Area string

const (
	AreaTemplates Area = "templates"
	AreaMemes     Area = "memes"
)

var Areas = []Area{AreaTemplates, AreaMemes}

// AllowedExtensions is the upload whitelist. Keys are lower-cased and include the dot.
var AllowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

func ParseArea(s string) (Area, bool) {
	a := Area(strings.ToLower(strings.TrimSpace(s)))
	return a, a.Valid()
}

func (a Area) Valid() bool {
	return a == AreaTemplates || a == AreaMemes
}

// Table is the backing table name for the area.
func (a Area) Table() string {
	return string(a)
}

// Singular is used for page headings.
func (a Area) Singular() string {
	switch a {
	case AreaTemplates:
		return "template"
	case AreaMemes:
		return "meme"
	default:
		return ""
	}
}

type Asset struct {
	ID           int64     `json:"id"`
	Area         Area      `json:"area"`
	Title        string    `json:"title"`
	Path         string    `json:"path"`
	OriginalName *string   `json:"original_name,omitempty"`
	UploadedBy   string    `json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// FileName is the generated on-disk name, without the area prefix.
func (a Asset) FileName() string {
	return filepath.Base(a.Path)
}

type CreateAssetParams struct {
	Area         Area
	Title        string
	Path         string
	OriginalName string
	UploadedBy   string
}

// AssetWithReactions is a listing row enriched with counts and the viewer's own reaction.
type AssetWithReactions struct {
	Asset
	URL      string         `json:"url"`
	Counts   ReactionCounts `json:"counts"`
	MyChoice ReactionKind   `json:"my_choice,omitempty"`
}
