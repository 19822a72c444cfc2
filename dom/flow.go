package dom

import "math"

// Reflow recomputes the position and size of n and every descendant, using
// n.Width (or the previous computed width) as the available width.
func (n *Node) Reflow() {
	width := n.Width
	if width <= 0 {
		width = n.ComputedWidth
	}
	n.layout(width)
	if n.parent == nil {
		n.Top, n.Left = 0, 0
	}
}

func (n *Node) layout(avail float64) {
	w := avail
	if n.Width > 0 && n.Width < avail {
		w = n.Width
	}
	n.ComputedWidth = w
	inner := math.Max(w-n.Padding.Left-n.Padding.Right, 0)

	textHeight := n.Text.Height()
	content := textHeight

	visible := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Hidden {
			c.Height = 0
			continue
		}
		visible = append(visible, c)
	}

	switch n.Display {
	case Row:
		fixed, flexible := 0.0, 0
		for _, c := range visible {
			if c.Width > 0 {
				fixed += c.Width
			} else {
				flexible++
			}
		}
		gaps := 0.0
		if len(visible) > 1 {
			gaps = n.Gap * float64(len(visible)-1)
		}
		share := 0.0
		if flexible > 0 {
			share = math.Max(inner-fixed-gaps, 0) / float64(flexible)
		}
		x := n.Padding.Left
		tallest := 0.0
		for i, c := range visible {
			if i > 0 {
				x += n.Gap
			}
			cw := share
			if c.Width > 0 {
				cw = c.Width
			}
			c.layout(cw)
			c.Left = x
			c.Top = n.Padding.Top + textHeight
			x += c.ComputedWidth
			tallest = math.Max(tallest, c.Height)
		}
		content = textHeight + tallest
	default:
		y := n.Padding.Top + textHeight
		placed := false
		for _, c := range visible {
			// 分页垫片不参与 gap 计算，保证插入高度即为后续节点的偏移量。
			if !c.Spacer {
				if placed {
					y += n.Gap
				}
				placed = true
			}
			c.layout(inner)
			c.Left = n.Padding.Left
			c.Top = y
			y += c.Height
		}
		content = y - n.Padding.Top
	}

	n.Height = math.Max(n.MinHeight, content+n.Padding.Top+n.Padding.Bottom)
}

// OffsetParent returns the nearest positioned ancestor, or the top-most
// ancestor when none is positioned. A root has no offset parent.
func (n *Node) OffsetParent() *Node {
	if n.parent == nil {
		return nil
	}
	cur := n.parent
	for cur.parent != nil {
		if cur.Positioned {
			return cur
		}
		cur = cur.parent
	}
	return cur
}

// OffsetTop is the vertical distance from the offset parent's top edge.
func (n *Node) OffsetTop() float64 {
	return topsUntil(n, n.OffsetParent())
}

// OffsetWithin sums OffsetTop along the offsetParent chain until root is
// reached, yielding the vertical position of n inside root.
func (n *Node) OffsetWithin(root *Node) (float64, error) {
	if !root.Contains(n) {
		return 0, ErrNotDescendant
	}
	y := 0.0
	cur := n
	for cur != root {
		op := cur.OffsetParent()
		if op != nil && op != root && root.Contains(op) {
			y += cur.OffsetTop()
			cur = op
			continue
		}
		// offset parent is root or lies above it
		y += topsUntil(cur, root)
		break
	}
	return y, nil
}

// BottomWithin is the offset of n's bottom edge inside root.
func (n *Node) BottomWithin(root *Node) (float64, error) {
	top, err := n.OffsetWithin(root)
	if err != nil {
		return 0, err
	}
	return top + n.Height, nil
}

func topsUntil(from, stop *Node) float64 {
	y := 0.0
	for cur := from; cur != nil && cur != stop; cur = cur.parent {
		y += cur.Top
	}
	return y
}
