package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func section(h float64) *Node {
	n := New("section")
	n.MinHeight = h
	return n
}

func TestReflowStacksBlocks(t *testing.T) {
	root := New("div")
	root.Width = 1200
	root.Padding = Uniform(10)
	root.Gap = 5
	a := root.AppendChild(section(100))
	b := root.AppendChild(section(50))
	root.Reflow()

	assert.Equal(t, 10.0, a.Top)
	assert.Equal(t, 115.0, b.Top)
	assert.Equal(t, 10.0+100+5+50+10, root.Height)
	assert.Equal(t, 1180.0, a.ComputedWidth)
}

func TestReflowRowSharesWidth(t *testing.T) {
	row := New("tr")
	row.Display = Row
	row.Width = 300
	fixed := section(20)
	fixed.Width = 100
	row.AppendChild(fixed)
	flex := row.AppendChild(section(40))
	row.Reflow()

	assert.Equal(t, 200.0, flex.ComputedWidth)
	assert.Equal(t, 100.0, flex.Left)
	assert.Equal(t, 40.0, row.Height)
}

func TestOffsetWithinFollowsOffsetParentChain(t *testing.T) {
	root := New("body")
	root.Width = 800
	root.AppendChild(section(300))
	wrapper := root.AppendChild(New("div"))
	wrapper.Positioned = true
	wrapper.Padding = Edges{Top: 20}
	inner := wrapper.AppendChild(New("div"))
	inner.AppendChild(section(40))
	target := inner.AppendChild(section(10))
	root.Reflow()

	assert.Same(t, wrapper, target.OffsetParent())
	assert.Equal(t, 60.0, target.OffsetTop())
	off, err := target.OffsetWithin(root)
	require.NoError(t, err)
	assert.Equal(t, 360.0, off)

	// 以中间节点为根时同样成立
	off, err = target.OffsetWithin(wrapper)
	require.NoError(t, err)
	assert.Equal(t, 60.0, off)

	_, err = root.OffsetWithin(wrapper)
	assert.ErrorIs(t, err, ErrNotDescendant)
}

func TestSpacerSkipsGap(t *testing.T) {
	root := New("div")
	root.Width = 100
	root.Gap = 8
	root.AppendChild(section(10))
	m := root.AppendChild(section(10))
	root.Reflow()
	before := m.Top

	require.NoError(t, root.InsertBefore(NewSpacer(30), m))
	root.Reflow()
	assert.Equal(t, before+30, m.Top)
}

func TestCloneIsIsolated(t *testing.T) {
	root := New("div", "card")
	root.Style.Set("color", "oklch(0.5 0.1 20)")
	child := root.AppendChild(New("p"))
	child.Text = &TextContent{Content: "x", Lines: []Line{{Content: "x", Height: 12}}}

	cp := root.Clone()
	cp.Style.Set("color", "#000000")
	cp.Children[0].Text.Lines[0].Content = "y"
	cp.Classes[0] = "other"

	assert.Equal(t, "oklch(0.5 0.1 20)", root.Style.Get("color"))
	assert.Equal(t, "x", child.Text.Lines[0].Content)
	assert.Equal(t, "card", root.Classes[0])
	assert.Same(t, cp, cp.Children[0].Parent())
	assert.Nil(t, cp.Parent())
}

func TestDetachAndMarkers(t *testing.T) {
	root := New("div")
	a := root.AppendChild(section(10))
	a.BreakBefore = true
	hidden := root.AppendChild(section(10))
	hidden.Hidden = true
	hidden.AppendChild(section(1)).BreakBefore = true
	b := root.AppendChild(New("div"))
	c := b.AppendChild(section(5))
	c.BreakBefore = true

	assert.Equal(t, []*Node{a, c}, root.Markers())

	b.Detach()
	assert.False(t, c.Attached())
	assert.True(t, a.Attached())
	assert.False(t, root.Contains(c))
	assert.ErrorIs(t, root.InsertBefore(New("x"), c), ErrNotChild)
}
