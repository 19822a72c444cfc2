package paginate

import (
	"errors"
	"fmt"
	"math"

	"github.com/ByLCY/folio/dom"
)

// DefaultTolerance is how far (px) below a page top a marker may start
// without receiving a spacer.
const DefaultTolerance = 15.0

// ErrUnalignable is returned for a marker that cannot be shifted, e.g. a
// marker laid out in a row directly under the capture root.
var ErrUnalignable = errors.New("paginate: marker cannot be aligned")

// Spacer describes one inserted spacer element.
type Spacer struct {
	Marker *dom.Node `json:"-"`
	Node   *dom.Node `json:"-"`
	// Offset is the marker position before this pass, Shifted the position
	// measured after earlier spacers were inserted.
	Offset  float64 `json:"offset"`
	Shifted float64 `json:"shifted"`
	Height  float64 `json:"height"`
}

// Align inserts spacers into root so that every break marker starts within
// tolerance of a multiple of pageHeight. Markers are handled top to bottom;
// root is reflowed after each insertion and the next marker re-measured.
func Align(root *dom.Node, pageHeight, tolerance float64) ([]Spacer, error) {
	if root == nil {
		return nil, errors.New("paginate: nil root")
	}
	if pageHeight <= 0 {
		return nil, fmt.Errorf("paginate: page height must be positive, got %g", pageHeight)
	}
	if tolerance < 0 || tolerance >= pageHeight {
		return nil, fmt.Errorf("paginate: tolerance %g outside [0, %g)", tolerance, pageHeight)
	}

	root.Reflow()
	markers := root.Markers()
	offsets := make([]float64, len(markers))
	for i, m := range markers {
		off, err := m.OffsetWithin(root)
		if err != nil {
			return nil, fmt.Errorf("paginate: marker %d: %w", i, err)
		}
		offsets[i] = off
	}

	var spacers []Spacer
	for i, m := range markers {
		pos := offsets[i]
		if len(spacers) > 0 {
			off, err := m.OffsetWithin(root)
			if err != nil {
				return spacers, fmt.Errorf("paginate: marker %d: %w", i, err)
			}
			pos = off
		}
		rem := math.Mod(pos, pageHeight)
		if rem <= tolerance {
			continue
		}
		anchor := flowAnchor(m, root)
		if anchor == nil {
			return spacers, fmt.Errorf("%w: marker %d", ErrUnalignable, i)
		}
		h := pageHeight - rem
		sp := dom.NewSpacer(h)
		if err := anchor.Parent().InsertBefore(sp, anchor); err != nil {
			return spacers, fmt.Errorf("paginate: insert spacer for marker %d: %w", i, err)
		}
		spacers = append(spacers, Spacer{Marker: m, Node: sp, Offset: offsets[i], Shifted: pos, Height: h})
		root.Reflow()
	}
	return spacers, nil
}

// flowAnchor returns the node before which a spacer shifts m vertically:
// m itself, or its closest ancestor whose parent stacks children as blocks.
func flowAnchor(m, root *dom.Node) *dom.Node {
	anchor := m
	for anchor != root && anchor.Parent() != nil {
		if anchor.Parent().Display == dom.Block {
			return anchor
		}
		anchor = anchor.Parent()
	}
	return nil
}

// Misalignment reports a marker that does not start near a page top.
type Misalignment struct {
	Marker    *dom.Node
	Offset    float64
	Remainder float64
}

// Verify checks the alignment invariant on an already laid-out root.
func Verify(root *dom.Node, pageHeight, tolerance float64) []Misalignment {
	var out []Misalignment
	for _, m := range root.Markers() {
		off, err := m.OffsetWithin(root)
		if err != nil {
			continue
		}
		rem := math.Mod(off, pageHeight)
		if rem > tolerance {
			out = append(out, Misalignment{Marker: m, Offset: off, Remainder: rem})
		}
	}
	return out
}
