package paginate

import "math"

// sliverEpsilon drops a trailing slice thinner than this (px), which only
// rounding can produce.
const sliverEpsilon = 0.5

// Slice is one page-sized band of the capture, top to bottom.
type Slice struct {
	Index int `json:"index"`
	// Top is where the band starts in the capture; Height is the content it
	// holds (the last band may be shorter than a page).
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
	// Offset is the vertical position at which the full capture is placed
	// on this page so the band shows: remaining height minus capture height.
	Offset float64 `json:"offset"`
}

// Slices cuts totalHeight into pageHeight bands.
func Slices(totalHeight, pageHeight float64) []Slice {
	if totalHeight <= 0 || pageHeight <= 0 {
		return nil
	}
	var out []Slice
	heightLeft := totalHeight
	for i := 0; heightLeft > sliverEpsilon || i == 0; i++ {
		top := totalHeight - heightLeft
		out = append(out, Slice{
			Index:  i,
			Top:    top,
			Height: math.Min(pageHeight, heightLeft),
			Offset: heightLeft - totalHeight,
		})
		heightLeft -= pageHeight
	}
	return out
}

// PageCount is the number of pages Slices would produce.
func PageCount(totalHeight, pageHeight float64) int {
	return len(Slices(totalHeight, pageHeight))
}
