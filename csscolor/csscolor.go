// Package csscolor parses the CSS color syntax the rasterizer understands and
// locates color functions it does not.
package csscolor

import (
	"image/color"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// supportedFuncs are the color functions the rasterizer can interpret.
var supportedFuncs = map[string]bool{
	"rgb":  true,
	"rgba": true,
	"hsl":  true,
	"hsla": true,
}

// keywords that are valid values but carry no color of their own.
var keywords = map[string]bool{
	"none":         true,
	"inherit":      true,
	"initial":      true,
	"unset":        true,
	"currentcolor": true,
	"transparent":  true,
}

var named = map[string]color.RGBA{
	"black":   {0, 0, 0, 255},
	"white":   {255, 255, 255, 255},
	"red":     {255, 0, 0, 255},
	"green":   {0, 128, 0, 255},
	"blue":    {0, 0, 255, 255},
	"gray":    {128, 128, 128, 255},
	"grey":    {128, 128, 128, 255},
	"silver":  {192, 192, 192, 255},
	"orange":  {255, 165, 0, 255},
	"yellow":  {255, 255, 0, 255},
	"purple":  {128, 0, 128, 255},
	"navy":    {0, 0, 128, 255},
	"teal":    {0, 128, 128, 255},
	"maroon":  {128, 0, 0, 255},
	"olive":   {128, 128, 0, 255},
	"lime":    {0, 255, 0, 255},
	"aqua":    {0, 255, 255, 255},
	"fuchsia": {255, 0, 255, 255},
}

// Func is one function call found inside a CSS value, e.g. "oklch(0.6 0.2 30)".
type Func struct {
	Name  string
	Start int // byte offset of the name
	End   int // byte offset after the closing parenthesis
}

// Funcs returns every top-level function call in value in order.
func Funcs(value string) []Func {
	var out []Func
	i := 0
	for i < len(value) {
		if !isIdentStart(value[i]) {
			i++
			continue
		}
		start := i
		for i < len(value) && isIdent(value[i]) {
			i++
		}
		if i >= len(value) || value[i] != '(' {
			continue
		}
		name := strings.ToLower(value[start:i])
		depth := 0
		end := i
		for end < len(value) {
			switch value[end] {
			case '(':
				depth++
			case ')':
				depth--
			}
			end++
			if depth == 0 {
				break
			}
		}
		out = append(out, Func{Name: name, Start: start, End: end})
		i = end
	}
	return out
}

// Unsupported returns the top-level function calls in value the rasterizer
// cannot read. A supported call (or var) counts as unsupported when an
// argument nests an unsupported call or uses relative color syntax, so the
// whole outer call is reported.
func Unsupported(value string) []Func {
	var out []Func
	for _, f := range Funcs(value) {
		if unsupported(f, value) {
			out = append(out, f)
		}
	}
	return out
}

func unsupported(f Func, value string) bool {
	if !supportedFuncs[f.Name] && f.Name != "var" {
		return true
	}
	open := f.Start + len(f.Name) + 1
	end := f.End
	if end > open && value[end-1] == ')' {
		end--
	}
	if open > end {
		return false
	}
	args := value[open:end]
	if supportedFuncs[f.Name] {
		if fields := strings.Fields(args); len(fields) > 0 && strings.EqualFold(fields[0], "from") {
			return true
		}
	}
	for _, inner := range Funcs(args) {
		if unsupported(inner, args) {
			return true
		}
	}
	return false
}

// Supported reports whether value contains no unsupported color function.
func Supported(value string) bool { return len(Unsupported(value)) == 0 }

// Parse converts a single supported CSS color into RGBA. Keywords and
// unknown values return ok=false.
func Parse(value string) (color.RGBA, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || keywords[v] {
		return color.RGBA{}, false
	}
	if c, ok := named[v]; ok {
		return c, true
	}
	if strings.HasPrefix(v, "#") {
		return parseHex(v)
	}
	fs := Funcs(v)
	if len(fs) != 1 || fs[0].Start != 0 || !supportedFuncs[fs[0].Name] {
		return color.RGBA{}, false
	}
	args := splitArgs(v[len(fs[0].Name)+1 : fs[0].End-1])
	switch fs[0].Name {
	case "rgb", "rgba":
		return parseRGB(args)
	default:
		return parseHSL(args)
	}
}

// Hex formats c as #rrggbb.
func Hex(c color.RGBA) string {
	cf, _ := colorful.MakeColor(color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
	return cf.Hex()
}

// ValidHex reports whether s is a #rgb or #rrggbb literal.
func ValidHex(s string) bool {
	_, err := colorful.Hex(s)
	return err == nil
}

func parseHex(v string) (color.RGBA, bool) {
	switch len(v) {
	case 4, 7:
		c, err := colorful.Hex(v)
		if err != nil {
			return color.RGBA{}, false
		}
		r, g, b := c.RGB255()
		return color.RGBA{R: r, G: g, B: b, A: 255}, true
	case 5, 9:
		// #rgba / #rrggbbaa
		digits := v[1:]
		if len(digits) == 4 {
			var sb strings.Builder
			for _, ch := range digits {
				sb.WriteRune(ch)
				sb.WriteRune(ch)
			}
			digits = sb.String()
		}
		n, err := strconv.ParseUint(digits, 16, 32)
		if err != nil {
			return color.RGBA{}, false
		}
		return premultiply(uint8(n>>24), uint8(n>>16), uint8(n>>8), float64(uint8(n))/255), true
	}
	return color.RGBA{}, false
}

func parseRGB(args []string) (color.RGBA, bool) {
	if len(args) < 3 {
		return color.RGBA{}, false
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		f, ok := parseComponent(args[i], 255)
		if !ok {
			return color.RGBA{}, false
		}
		ch[i] = clamp8(f)
	}
	alpha := 1.0
	if len(args) > 3 {
		a, ok := parseComponent(args[3], 1)
		if !ok {
			return color.RGBA{}, false
		}
		alpha = a
	}
	return premultiply(ch[0], ch[1], ch[2], alpha), true
}

func parseHSL(args []string) (color.RGBA, bool) {
	if len(args) < 3 {
		return color.RGBA{}, false
	}
	h, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "deg"), 64)
	if err != nil {
		return color.RGBA{}, false
	}
	s, ok1 := parseComponent(args[1], 1)
	l, ok2 := parseComponent(args[2], 1)
	if !ok1 || !ok2 {
		return color.RGBA{}, false
	}
	alpha := 1.0
	if len(args) > 3 {
		a, ok := parseComponent(args[3], 1)
		if !ok {
			return color.RGBA{}, false
		}
		alpha = a
	}
	r, g, b := colorful.Hsl(h, s, l).Clamped().RGB255()
	return premultiply(r, g, b, alpha), true
}

// parseComponent reads a number or percentage; percentages scale to max.
func parseComponent(s string, max float64) (float64, bool) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "%") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, false
		}
		return f / 100 * max, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func splitArgs(s string) []string {
	s = strings.NewReplacer(",", " ", "/", " ").Replace(s)
	return strings.Fields(s)
}

func premultiply(r, g, b uint8, alpha float64) color.RGBA {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return color.RGBA{
		R: uint8(float64(r) * alpha),
		G: uint8(float64(g) * alpha),
		B: uint8(float64(b) * alpha),
		A: uint8(255 * alpha),
	}
}

func clamp8(f float64) uint8 {
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return uint8(f + 0.5)
}

func isIdentStart(b byte) bool {
	return b == '-' || b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdent(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}
