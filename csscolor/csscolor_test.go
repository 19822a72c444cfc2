package csscolor

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnsupportedFindsWideGamutFunctions(t *testing.T) {
	fs := Unsupported("0 1px 2px oklch(0.7 0.1 20 / 0.5), 0 0 1px rgba(0,0,0,.2)")
	if assert.Len(t, fs, 1) {
		assert.Equal(t, "oklch", fs[0].Name)
	}
	assert.False(t, Supported("color-mix(in srgb, red 50%, blue)"))
	assert.False(t, Supported("lab(50% 40 59.5)"))
	assert.True(t, Supported("rgb(10 20 30)"))
	assert.True(t, Supported("#ffffff"))
	assert.True(t, Supported("var(--accent)"))
}

func TestUnsupportedNestedInSupportedCall(t *testing.T) {
	v := "0 0 1px var(--brand, oklch(0.6 0.2 30))"
	fs := Unsupported(v)
	if assert.Len(t, fs, 1) {
		assert.Equal(t, "var", fs[0].Name)
		assert.Equal(t, len(v), fs[0].End)
	}
	assert.False(t, Supported("rgb(from oklch(0.6 0.2 30) r g b)"))
	assert.False(t, Supported("rgb(from red r g b)"))
	assert.False(t, Supported("hsl(var(--h, lab(50% 40 59)) 50% 50%)"))
	assert.True(t, Supported("var(--brand, rgb(1 2 3))"))
	assert.True(t, Supported("rgba(var(--r), 0, 0, 1)"))
}

func TestFuncsHandlesNestedParens(t *testing.T) {
	v := "color-mix(in oklch, oklch(0.5 0.1 20) 40%, white)"
	fs := Funcs(v)
	if assert.Len(t, fs, 1) {
		assert.Equal(t, len(v), fs[0].End)
	}
}

func TestParse(t *testing.T) {
	c, ok := Parse("#0f172a")
	assert.True(t, ok)
	assert.Equal(t, color.RGBA{15, 23, 42, 255}, c)

	c, ok = Parse("#fff")
	assert.True(t, ok)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, c)

	c, ok = Parse("rgb(255, 0, 0)")
	assert.True(t, ok)
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, c)

	c, ok = Parse("rgba(255 255 255 / 0)")
	assert.True(t, ok)
	assert.Equal(t, uint8(0), c.A)

	_, ok = Parse("oklch(0.6 0.2 30)")
	assert.False(t, ok)
	_, ok = Parse("transparent")
	assert.False(t, ok)

	c, ok = Parse("hsl(0, 100%, 50%)")
	assert.True(t, ok)
	assert.Equal(t, uint8(255), c.R)
}

func TestHex(t *testing.T) {
	assert.Equal(t, "#0f172a", Hex(color.RGBA{15, 23, 42, 255}))
	assert.True(t, ValidHex("#dc2626"))
	assert.False(t, ValidHex("dc2626"))
}
