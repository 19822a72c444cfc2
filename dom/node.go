// Package dom models the capture tree: a laid-out block tree with computed
// styles, offsets and break markers, mirroring the subset of the browser DOM
// the export pipeline reads.
package dom

import (
	"errors"
	"strings"
)

var (
	// ErrNotChild is returned when a reference node does not belong to the parent.
	ErrNotChild = errors.New("dom: reference node is not a child of this node")
	// ErrNotDescendant is returned when a node lies outside the given root.
	ErrNotDescendant = errors.New("dom: node is not a descendant of root")
)

// SpacerClass marks spacer elements inserted during pagination.
const SpacerClass = "folio-page-spacer"

// Display selects how children are arranged.
type Display int

const (
	// Block stacks children vertically.
	Block Display = iota
	// Row places children side by side, sharing the available width.
	Row
)

// MarshalText renders the display mode for debug JSON.
func (d Display) MarshalText() ([]byte, error) {
	if d == Row {
		return []byte("row"), nil
	}
	return []byte("block"), nil
}

// Edges holds per-side lengths in px.
type Edges struct {
	Top    float64 `json:"top,omitempty"`
	Right  float64 `json:"right,omitempty"`
	Bottom float64 `json:"bottom,omitempty"`
	Left   float64 `json:"left,omitempty"`
}

// Uniform returns edges with the same value on every side.
func Uniform(v float64) Edges { return Edges{Top: v, Right: v, Bottom: v, Left: v} }

// Line is one typeset line of a text node.
type Line struct {
	Content   string  `json:"content"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	GapBefore float64 `json:"gapBefore,omitempty"`
}

// TextContent holds typeset text. Sizes are px.
type TextContent struct {
	Content   string  `json:"content"`
	Font      string  `json:"font"`
	FontSrc   string  `json:"fontSrc,omitempty"`
	FontStyle string  `json:"fontStyle,omitempty"`
	FontSize  float64 `json:"fontSize"`
	Align     string  `json:"align,omitempty"`
	Lines     []Line  `json:"lines"`
}

// Height is the sum of line heights and leading.
func (t *TextContent) Height() float64 {
	if t == nil {
		return 0
	}
	h := 0.0
	for _, ln := range t.Lines {
		h += ln.GapBefore + ln.Height
	}
	return h
}

// ImageContent references an image asset.
type ImageContent struct {
	Src string `json:"src"`
	Fit string `json:"fit,omitempty"`
}

// Node is one element of the capture tree.
type Node struct {
	Tag         string        `json:"tag"`
	ID          string        `json:"id,omitempty"`
	Classes     []string      `json:"classes,omitempty"`
	Style       Style         `json:"style,omitempty"`
	Text        *TextContent  `json:"text,omitempty"`
	Image       *ImageContent `json:"image,omitempty"`
	Display     Display       `json:"display"`
	Positioned  bool          `json:"positioned,omitempty"`
	Hidden      bool          `json:"hidden,omitempty"`
	BreakBefore bool          `json:"breakBefore,omitempty"`
	Spacer      bool          `json:"spacer,omitempty"`
	Padding     Edges         `json:"padding"`
	Gap         float64       `json:"gap,omitempty"`
	MinHeight   float64       `json:"minHeight,omitempty"`
	Width       float64       `json:"width,omitempty"`

	// 以下字段由 Reflow 计算，坐标相对父节点的左上角。
	Top           float64 `json:"top"`
	Left          float64 `json:"left"`
	Height        float64 `json:"height"`
	ComputedWidth float64 `json:"computedWidth"`

	Children []*Node `json:"children,omitempty"`

	parent   *Node
	detached bool
}

// New creates an element with the given tag and classes.
func New(tag string, classes ...string) *Node {
	return &Node{Tag: tag, Classes: classes, Style: Style{}}
}

// NewSpacer creates an empty element of the given height.
func NewSpacer(height float64) *Node {
	n := New("div", SpacerClass)
	n.Spacer = true
	n.MinHeight = height
	return n
}

// Parent returns the parent node, nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// HasClass reports whether the node carries class (case-insensitive).
func (n *Node) HasClass(class string) bool {
	for _, c := range n.Classes {
		if strings.EqualFold(c, class) {
			return true
		}
	}
	return false
}

// AppendChild attaches child as the last child of n.
func (n *Node) AppendChild(child *Node) *Node {
	if child.parent != nil {
		child.parent.removeChild(child)
	}
	child.parent = n
	child.detached = false
	n.Children = append(n.Children, child)
	return child
}

// InsertBefore inserts child immediately before ref, which must be a child of n.
func (n *Node) InsertBefore(child, ref *Node) error {
	idx := n.indexOf(ref)
	if idx < 0 {
		return ErrNotChild
	}
	if child.parent != nil {
		child.parent.removeChild(child)
		idx = n.indexOf(ref)
	}
	child.parent = n
	child.detached = false
	n.Children = append(n.Children, nil)
	copy(n.Children[idx+1:], n.Children[idx:])
	n.Children[idx] = child
	return nil
}

// Detach removes n from its parent and marks it as no longer attached.
func (n *Node) Detach() {
	if n.parent != nil {
		n.parent.removeChild(n)
		n.parent = nil
	}
	n.detached = true
}

// Attached reports whether neither n nor any ancestor has been detached.
func (n *Node) Attached() bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.detached {
			return false
		}
	}
	return true
}

// Contains reports whether other is n or one of its descendants.
func (n *Node) Contains(other *Node) bool {
	for cur := other; cur != nil; cur = cur.parent {
		if cur == n {
			return true
		}
	}
	return false
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Markers returns every break-before descendant of n in document order.
func (n *Node) Markers() []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		if c != n && c.BreakBefore && !c.Hidden {
			out = append(out, c)
		}
		return !c.Hidden
	})
	return out
}

// FindByID returns the first node with the given id.
func (n *Node) FindByID(id string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if c.ID == id {
			found = c
			return false
		}
		return true
	})
	return found
}

// Clone returns a deep copy of n. The copy is a new root: it has no parent
// and shares no mutable state with n.
func (n *Node) Clone() *Node {
	cp := *n
	cp.parent = nil
	cp.detached = false
	cp.Classes = append([]string(nil), n.Classes...)
	cp.Style = n.Style.Clone()
	if n.Text != nil {
		t := *n.Text
		t.Lines = append([]Line(nil), n.Text.Lines...)
		cp.Text = &t
	}
	if n.Image != nil {
		img := *n.Image
		cp.Image = &img
	}
	cp.Children = make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		cc := c.Clone()
		cc.parent = &cp
		cp.Children = append(cp.Children, cc)
	}
	return &cp
}

func (n *Node) indexOf(child *Node) int {
	for i, c := range n.Children {
		if c == child {
			return i
		}
	}
	return -1
}

func (n *Node) removeChild(child *Node) {
	idx := n.indexOf(child)
	if idx < 0 {
		return
	}
	n.Children = append(n.Children[:idx], n.Children[idx+1:]...)
}
