package models

import (
	"errors"
	"regexp"
	"strings"
)

const (
	MinFontSize     = 8
	MaxFontSize     = 100
	DefaultFontSize = 16
	DefaultColor    = "#000000"

	ShareCodeLength = 6
	maxTitleLength  = 200
)

var (
	hexColorRegex  = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	shareCodeRegex = regexp.MustCompile(`^[A-Z0-9]{6}$`)
)

func ClampFontSize(size int) int {
	if size < MinFontSize {
		return MinFontSize
	}
	if size > MaxFontSize {
		return MaxFontSize
	}
	return size
}

func ValidColor(c string) bool {
	return hexColorRegex.MatchString(c)
}

func ValidShareCode(code string) bool {
	return shareCodeRegex.MatchString(code)
}

// SanitizeLabels drops labels that cannot be rendered and clamps the rest.
// Stored documents are not trusted to have the right shape.
func SanitizeLabels(labels []TextLabel) []TextLabel {
	out := make([]TextLabel, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if l.Id == "" || strings.TrimSpace(l.Text) == "" {
			continue
		}
		if _, dup := seen[l.Id]; dup {
			continue
		}
		seen[l.Id] = struct{}{}
		if l.FontSize == 0 {
			l.FontSize = DefaultFontSize
		}
		l.FontSize = ClampFontSize(l.FontSize)
		if !ValidColor(l.Color) {
			l.Color = DefaultColor
		}
		out = append(out, l)
	}
	return out
}

// SanitizePages guarantees at least one page.
func SanitizePages(pages []Page) []Page {
	if len(pages) == 0 {
		return []Page{{}}
	}
	out := make([]Page, len(pages))
	for i, p := range pages {
		if strings.HasPrefix(p.ImageData, "data:") || strings.HasPrefix(p.ImageData, "http") {
			out[i] = p
		}
	}
	return out
}

func (n *Note) Validate() error {
	if n.Id == "" {
		return errors.New("note id missing")
	}
	if n.OwnerId == "" {
		return errors.New("note owner missing")
	}
	if len(n.Title) > maxTitleLength {
		n.Title = n.Title[:maxTitleLength]
	}
	if n.ShareCode != "" && !ValidShareCode(n.ShareCode) {
		n.ShareCode = ""
	}
	n.Pages = SanitizePages(n.Pages)
	n.TextObjects = SanitizeLabels(n.TextObjects)
	return nil
}

func (p *SharePublication) Validate() error {
	if !ValidShareCode(p.Code) {
		return errors.New("invalid share code")
	}
	p.Pages = SanitizePages(p.Pages)
	p.TextObjects = SanitizeLabels(p.TextObjects)
	return nil
}
