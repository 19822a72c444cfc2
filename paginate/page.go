// Package paginate aligns break markers to virtual page boundaries and
// computes how a tall capture is cut into fixed-size pages.
package paginate

import (
	"fmt"
	"math"
	"strings"
)

// PageSize is a physical page in millimetres.
type PageSize struct {
	Name   string  `json:"name" yaml:"name"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

var (
	A4     = PageSize{Name: "A4", Width: 210, Height: 297}
	A5     = PageSize{Name: "A5", Width: 148, Height: 210}
	Letter = PageSize{Name: "Letter", Width: 215.9, Height: 279.4}
	Legal  = PageSize{Name: "Legal", Width: 215.9, Height: 355.6}
)

// Landscape swaps width and height when the page is portrait.
func (p PageSize) Landscape() PageSize {
	if p.Width < p.Height {
		p.Width, p.Height = p.Height, p.Width
	}
	return p
}

// LookupPageSize resolves a page name (case-insensitive) and orientation
// ("portrait" or "landscape", empty means portrait).
func LookupPageSize(name, orientation string) (PageSize, error) {
	var p PageSize
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "a4":
		p = A4
	case "a5":
		p = A5
	case "letter":
		p = Letter
	case "legal":
		p = Legal
	default:
		return PageSize{}, fmt.Errorf("paginate: unknown page size %q", name)
	}
	switch strings.ToLower(strings.TrimSpace(orientation)) {
	case "", "portrait":
	case "landscape":
		p = p.Landscape()
	default:
		return PageSize{}, fmt.Errorf("paginate: unknown orientation %q", orientation)
	}
	return p, nil
}

// VirtualPageHeight is the capture-space height (px) of one physical page
// when the capture is captureWidth px wide. 1200px on A4 gives 1697px.
func VirtualPageHeight(p PageSize, captureWidth float64) float64 {
	if p.Width <= 0 || captureWidth <= 0 {
		return 0
	}
	return math.Floor(captureWidth * p.Height / p.Width)
}
