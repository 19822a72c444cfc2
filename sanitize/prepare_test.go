package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/folio/csscolor"
	"github.com/ByLCY/folio/dom"
)

func wideGamutTree() *dom.Node {
	root := dom.New("div", "report")
	root.Style.Set("background-color", "oklch(0.98 0.01 250)")
	root.Style.Set("color", "lab(20% 10 -30)")

	danger := root.AppendChild(dom.New("span", "badge", "danger"))
	danger.Style.Set("color", "oklch(0.6 0.22 25)")
	danger.Style.Set("border-color", "color(display-p3 1 0 0)")

	success := root.AppendChild(dom.New("div", "success"))
	success.Style.Set("background-color", "oklab(0.7 -0.1 0.1)")
	success.Style.Set("box-shadow", "0 1px 3px oklch(0 0 0 / 0.2), 0 1px 2px rgba(0,0,0,0.1)")

	plain := success.AppendChild(dom.New("p"))
	plain.Style.Set("color", "#334155")
	plain.Style.Set("text-shadow", "1px 1px hwb(0 0% 0%)")
	plain.Style.Set("outline-color", "color-mix(in srgb, red 40%, blue)")
	plain.Style.Set("fill", "lch(50% 30 120)")
	plain.Style.Set("stroke", "weird-fn(1 2 3)")
	return root
}

func TestPrepareLeavesNoUnsupportedColor(t *testing.T) {
	root := wideGamutTree()
	rep, err := Prepare(root, MustDefault())
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Visited)

	root.Walk(func(n *dom.Node) bool {
		for p := range Properties {
			v := n.Style.Get(p)
			assert.Truef(t, csscolor.Supported(v), "%s %s still unsupported: %q", n.Tag, p, v)
		}
		return true
	})
}

func TestPrepareUsesClassRules(t *testing.T) {
	root := wideGamutTree()
	_, err := Prepare(root, MustDefault())
	require.NoError(t, err)

	danger := root.Children[0]
	assert.Equal(t, "#dc2626", danger.Style.Get("color"))
	assert.Equal(t, "#fca5a5", danger.Style.Get("border-color"))

	success := root.Children[1]
	assert.Equal(t, "#16a34a", success.Style.Get("background-color"))
	// only the function token is replaced inside shadows
	assert.Equal(t, "0 1px 3px #15803d, 0 1px 2px rgba(0,0,0,0.1)", success.Style.Get("box-shadow"))

	assert.Equal(t, "#ffffff", root.Style.Get("background-color"))
	assert.Equal(t, "#1e293b", root.Style.Get("color"))
}

func TestPrepareMissFallsBackToDefault(t *testing.T) {
	root := wideGamutTree()
	rep, err := Prepare(root, MustDefault())
	require.NoError(t, err)

	plain := root.Children[1].Children[0]
	assert.Equal(t, "#334155", plain.Style.Get("color"))
	assert.Equal(t, "#1e293b", plain.Style.Get("stroke"))
	assert.Equal(t, "#e2e8f0", plain.Style.Get("outline-color"))
	assert.Greater(t, rep.Misses(), 0)
}

func TestPrepareRewritesNestedUnsupportedCalls(t *testing.T) {
	root := dom.New("div", "report")
	badge := root.AppendChild(dom.New("span", "danger"))
	badge.Style.Set("color", "var(--brand, oklch(0.6 0.2 30))")
	badge.Style.Set("background-color", "rgb(from oklch(0.6 0.2 30) r g b)")
	badge.Style.Set("box-shadow", "0 1px 2px var(--shadow, lab(0% 0 0 / 0.2))")
	badge.Style.Set("border-color", "var(--line, #e5e7eb)")

	rep, err := Prepare(root, MustDefault())
	require.NoError(t, err)
	assert.Len(t, rep.Substitutions, 3)
	assert.Equal(t, "#dc2626", badge.Style.Get("color"))
	assert.Equal(t, "#fee2e2", badge.Style.Get("background-color"))
	assert.Equal(t, "0 1px 2px #dc2626", badge.Style.Get("box-shadow"))
	assert.Equal(t, "var(--line, #e5e7eb)", badge.Style.Get("border-color"))
	for p := range Properties {
		v := badge.Style.Get(p)
		assert.Truef(t, csscolor.Supported(v), "%s still unsupported: %q", p, v)
	}
}

func TestPrepareIsIdempotent(t *testing.T) {
	root := wideGamutTree()
	_, err := Prepare(root, nil)
	require.NoError(t, err)
	rep, err := Prepare(root, nil)
	require.NoError(t, err)
	assert.Empty(t, rep.Substitutions)
}

func TestNewRuleTableValidates(t *testing.T) {
	_, err := NewRuleTable([]Rule{{Class: "x", Group: GroupText, Color: "oklch(1 0 0)"}}, nil)
	assert.Error(t, err)
	_, err = NewRuleTable([]Rule{{Class: "x", Group: "shadow", Color: "#000000"}}, nil)
	assert.Error(t, err)
	_, err = NewRuleTable(nil, map[Group]string{GroupText: "#123"})
	assert.NoError(t, err)
}
