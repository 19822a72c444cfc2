package canvasrenderer

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ByLCY/folio/csscolor"
	"github.com/ByLCY/folio/dom"
	"github.com/ByLCY/folio/fonts"
	"github.com/ByLCY/folio/layout"
	"github.com/ByLCY/folio/logger"
	"github.com/ByLCY/folio/renderer"
	"github.com/ByLCY/folio/sanitize"
)

const defaultBorderWidth = 1.0

// ErrEmptyCapture is returned when the root has no drawable area.
var ErrEmptyCapture = errors.New("canvasrenderer: capture has zero width or height")

// Renderer rasterizes capture trees via github.com/tdewolff/canvas. Canvas
// units are CSS pixels; the raster resolution applies the scale factor.
type Renderer struct {
	loader renderer.AssetLoader
	rules  *sanitize.RuleTable
	log    *logger.Logger

	// injected resources
	fontBlobs map[string][]byte // by unique name

	fontMu         sync.Mutex
	fontFamilies   map[string]*fontFamilyEntry
	fallbackFamily *canvas.FontFamily
}

var (
	_ renderer.Rasterizer = (*Renderer)(nil)
	_ layout.Typesetter   = (*Renderer)(nil)
)

type fontFamilyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

// Options configures the canvas renderer.
type Options struct {
	BaseDir string
	Fonts   map[string]Resource // fonts accessible via builtin:<name>
	Images  map[string]Resource // images accessible via builtin:<name>
	Loader  renderer.AssetLoader
	Rules   *sanitize.RuleTable
	Logger  *logger.Logger
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// NewRenderer creates a canvas-based renderer rooted at baseDir for resolving assets.
func NewRenderer(baseDir string) *Renderer { return NewRendererWithOptions(Options{BaseDir: baseDir}) }

// NewRendererWithOptions creates a renderer with injected resources and optional baseDir.
func NewRendererWithOptions(opts Options) *Renderer {
	r := &Renderer{
		loader:       opts.Loader,
		rules:        opts.Rules,
		log:          opts.Logger,
		fontBlobs:    map[string][]byte{},
		fontFamilies: map[string]*fontFamilyEntry{},
	}
	if r.rules == nil {
		r.rules = sanitize.MustDefault()
	}
	if r.log == nil {
		r.log = logger.Default()
	}
	r.log = r.log.WithComponent("rasterizer")
	for name, res := range opts.Fonts {
		if data := res.read(); len(data) > 0 && name != "" {
			r.fontBlobs[name] = data
		}
	}
	if r.loader == nil {
		loader := renderer.NewLoader(opts.BaseDir)
		for name, res := range opts.Images {
			if data := res.read(); len(data) > 0 && name != "" {
				loader.Images[name] = data
			}
		}
		r.loader = loader
	}
	return r
}

// read ignores errors here; a missing resource surfaces when it is used.
func (res Resource) read() []byte {
	if len(res.Bytes) > 0 {
		return res.Bytes
	}
	if res.Path != "" {
		data, _ := os.ReadFile(res.Path)
		return data
	}
	return nil
}

// Rasterize draws root onto an opaque canvas and rasterizes it at opts.Scale.
// Failed images become placeholders and are reported as warnings.
func (r *Renderer) Rasterize(ctx context.Context, root *dom.Node, opts renderer.Options) (*renderer.RasterImage, error) {
	if root == nil {
		return nil, fmt.Errorf("渲染根节点为空")
	}
	opts = opts.Normalize()
	width := root.ComputedWidth
	if width <= 0 {
		width = root.Width
	}
	height := root.Height
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyCapture
	}

	c := canvas.New(width, height)
	cctx := canvas.NewContext(c)
	cctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点

	bg, ok := csscolor.Parse(opts.Background)
	if !ok || bg.A < 255 {
		bg = color.RGBA{255, 255, 255, 255}
	}
	cctx.SetFillColor(bg)
	cctx.SetStrokeColor(canvas.Transparent)
	cctx.DrawPath(0, 0, canvas.Rectangle(width, height))

	var warnings []renderer.Warning
	if err := r.drawNode(ctx, cctx, root, 0, 0, &warnings); err != nil {
		return nil, err
	}

	img := rasterizer.Draw(c, canvas.DPMM(opts.Scale), canvas.DefaultColorSpace)
	bounds := img.Bounds()
	return &renderer.RasterImage{
		Image:    img,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Scale:    opts.Scale,
		Warnings: warnings,
	}, nil
}

func (r *Renderer) drawNode(ctx context.Context, cctx *canvas.Context, n *dom.Node, originX, originY float64, warnings *[]renderer.Warning) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.Hidden {
		return nil
	}
	x := originX + n.Left
	y := originY + n.Top
	w := n.ComputedWidth

	r.drawBox(cctx, n, x, y, w, n.Height)
	if n.Text != nil {
		if err := r.drawText(cctx, n, x+n.Padding.Left, y+n.Padding.Top, w-n.Padding.Left-n.Padding.Right); err != nil {
			return err
		}
	}
	if n.Image != nil {
		if err := r.drawImage(ctx, cctx, n, x, y, w, n.Height); err != nil {
			*warnings = append(*warnings, renderer.Warning{Src: n.Image.Src, Err: err})
			r.log.Warnw("图片加载失败，使用占位图", "src", n.Image.Src, "error", err)
			drawPlaceholder(cctx, x, y, w, n.Height)
		}
	}
	for _, c := range n.Children {
		if err := r.drawNode(ctx, cctx, c, x, y, warnings); err != nil {
			return err
		}
	}
	return nil
}

// drawBox 绘制背景与边框。
func (r *Renderer) drawBox(cctx *canvas.Context, n *dom.Node, x, y, w, h float64) {
	if w <= 0 || h <= 0 {
		return
	}
	fill, hasFill := r.color(n, "background-color", sanitize.GroupBackground)
	if !hasFill {
		fill, hasFill = r.color(n, "background", sanitize.GroupBackground)
	}
	stroke, hasStroke := r.color(n, "border-color", sanitize.GroupBorder)
	if !hasFill && !hasStroke {
		return
	}
	if hasFill {
		cctx.SetFillColor(fill)
	} else {
		cctx.SetFillColor(canvas.Transparent)
	}
	if hasStroke {
		bw := defaultBorderWidth
		if v := n.Style.Get("border-width"); v != "" {
			if f, err := strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64); err == nil && f >= 0 {
				bw = f
			}
		}
		cctx.SetStrokeColor(stroke)
		cctx.SetStrokeWidth(bw)
	} else {
		cctx.SetStrokeColor(canvas.Transparent)
	}
	cctx.DrawPath(x, y, canvas.Rectangle(w, h))
}

// color 解析节点的颜色属性；不支持的写法按分组回退，不会画成黑色。
func (r *Renderer) color(n *dom.Node, prop string, g sanitize.Group) (color.RGBA, bool) {
	v := n.Style.Get(prop)
	if v == "" {
		return color.RGBA{}, false
	}
	if c, ok := csscolor.Parse(v); ok {
		return c, c.A > 0
	}
	if csscolor.Supported(v) {
		// keywords such as transparent/none/inherit
		return color.RGBA{}, false
	}
	fb, _ := r.rules.Fallback(n, g)
	c, _ := csscolor.Parse(fb)
	return c, true
}

func (r *Renderer) drawText(cctx *canvas.Context, n *dom.Node, x, y, width float64) error {
	text := n.Text
	col, ok := r.color(n, "color", sanitize.GroupText)
	if !ok {
		col, _ = csscolor.Parse(r.rules.Default(sanitize.GroupText))
	}
	face, err := r.fontFace(layout.FontFor(text), text.FontSize, col)
	if err != nil {
		return err
	}

	lines := text.Lines
	if len(lines) == 0 {
		lines = []dom.Line{{Content: text.Content, Width: width, Height: text.FontSize}}
	}

	// 处理水平对齐：left（默认）/center/right。
	var textAlign canvas.TextAlign
	var anchorX float64
	switch strings.ToLower(text.Align) {
	case "center":
		textAlign = canvas.Center
		anchorX = x + width/2
	case "right", "end":
		textAlign = canvas.Right
		anchorX = x + width
	default:
		textAlign = canvas.Left
		anchorX = x
	}

	metrics := face.Metrics()
	cursorY := y
	for _, line := range lines {
		cursorY += line.GapBefore
		lineHeight := line.Height
		if lineHeight <= 0 {
			lineHeight = text.FontSize
		}
		if line.Content != "" {
			// 基线位置：行顶部加上字体上升部
			tl := canvas.NewTextLine(face, line.Content, textAlign)
			cctx.DrawText(anchorX, cursorY+metrics.Ascent, tl)
		}
		cursorY += lineHeight
	}
	return nil
}

// drawImage 按 contain 语义把图片居中放入节点内容区。
func (r *Renderer) drawImage(ctx context.Context, cctx *canvas.Context, n *dom.Node, x, y, w, h float64) error {
	img, err := r.loader.Load(ctx, n.Image.Src)
	if err != nil {
		return err
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return fmt.Errorf("图片 %s 尺寸为零", n.Image.Src)
	}
	boxW := w - n.Padding.Left - n.Padding.Right
	boxH := h - n.Padding.Top - n.Padding.Bottom
	if boxW <= 0 || boxH <= 0 {
		return nil
	}
	s := math.Min(boxW/float64(bounds.Dx()), boxH/float64(bounds.Dy()))
	if strings.EqualFold(n.Image.Fit, "none") {
		s = 1
	}
	drawnW := float64(bounds.Dx()) * s
	drawnH := float64(bounds.Dy()) * s
	cctx.DrawImage(x+n.Padding.Left+(boxW-drawnW)/2, y+n.Padding.Top+(boxH-drawnH)/2, img, canvas.DPMM(1/s))
	return nil
}

// drawPlaceholder 绘制破损图片占位：浅色底、边框与对角线。
func drawPlaceholder(cctx *canvas.Context, x, y, w, h float64) {
	if w <= 0 || h <= 0 {
		return
	}
	cctx.SetFillColor(canvas.Hex("#f1f5f9"))
	cctx.SetStrokeColor(canvas.Hex("#cbd5e1"))
	cctx.SetStrokeWidth(defaultBorderWidth)
	cctx.DrawPath(x, y, canvas.Rectangle(w, h))

	p := &canvas.Path{}
	p.MoveTo(0, 0)
	p.LineTo(w, h)
	p.MoveTo(w, 0)
	p.LineTo(0, h)
	cctx.SetFillColor(canvas.Transparent)
	cctx.DrawPath(x, y, p)
}

// LayoutLines 实现 layout.Typesetter 接口，使用贪心换行算法。
// 约定：width/fontSize/lineHeight 入参均为 px；字体系统使用 pt，在边界做换算。
func (r *Renderer) LayoutLines(content string, width float64, font layout.FontResource, fontSize, lineHeight float64, wrap string) ([]dom.Line, error) {
	face, err := r.fontFace(font, fontSize, color.RGBA{30, 30, 30, 255})
	if err != nil {
		return nil, err
	}

	if wrap == "" {
		wrap = "anywhere"
	}
	lines := greedyWrapTokens(content, width, face, wrap)
	textHeight := face.Metrics().LineHeight
	if textHeight <= 0 {
		textHeight = lineHeight
	}
	leading := math.Max(lineHeight-textHeight, 0)
	if len(lines) == 0 {
		lines = []dom.Line{{
			Content: "",
			Width:   0,
			Height:  textHeight,
		}}
	}
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = textHeight
		}
		if i == 0 {
			lines[i].GapBefore = 0
		} else {
			lines[i].GapBefore = leading
		}
	}
	return lines, nil
}

func (r *Renderer) fontFace(font layout.FontResource, sizePx float64, col color.Color) (*canvas.FontFace, error) {
	family, style, err := r.ensureFontFamily(font)
	if err != nil {
		return nil, err
	}
	return family.Face(toPt(sizePx), col, style, canvas.FontNormal), nil
}

func (r *Renderer) ensureFontFamily(font layout.FontResource) (*canvas.FontFamily, canvas.FontStyle, error) {
	key := fontCacheKey(font)
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if entry, ok := r.fontFamilies[key]; ok {
		return entry.family, entry.style, nil
	}

	style := parseFontStyle(font.Style)
	familyName := font.Family
	if familyName == "" {
		familyName = font.Name
	}
	if familyName == "" {
		familyName = "Body"
	}
	family := canvas.NewFontFamily(familyName)

	if err := r.loadFontIntoFamily(family, font, style); err != nil {
		fallback, fbStyle, fbErr := r.fallback()
		if fbErr != nil {
			return nil, canvas.FontRegular, err
		}
		r.log.Debugw("字体加载失败，使用内置字体", "font", font.Name, "src", font.Src, "error", err)
		r.fontFamilies[key] = &fontFamilyEntry{family: fallback, style: fbStyle}
		return fallback, fbStyle, nil
	}

	entry := &fontFamilyEntry{family: family, style: style}
	r.fontFamilies[key] = entry
	return family, style, nil
}

func (r *Renderer) loadFontIntoFamily(family *canvas.FontFamily, font layout.FontResource, style canvas.FontStyle) error {
	data, err := r.loadFontBytes(font)
	if err != nil {
		return err
	}
	return family.LoadFont(data, 0, style)
}

func (r *Renderer) loadFontBytes(font layout.FontResource) ([]byte, error) {
	if font.Src == "" {
		return nil, fmt.Errorf("字体 %s 缺少 src", font.Name)
	}
	src := font.Src
	if strings.HasPrefix(src, "built-in:") || strings.HasPrefix(src, "builtin:") {
		name := strings.TrimPrefix(strings.TrimPrefix(src, "built-in:"), "builtin:")
		if blob, ok := r.fontBlobs[name]; ok {
			return blob, nil
		}
		return fonts.Load(name)
	}
	path := src
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("字体路径必须为绝对路径或 builtin:*：%s", src)
	}
	return os.ReadFile(path)
}

func (r *Renderer) fallback() (*canvas.FontFamily, canvas.FontStyle, error) {
	if r.fallbackFamily != nil {
		return r.fallbackFamily, canvas.FontRegular, nil
	}
	data, err := fonts.Load(fonts.Regular)
	if err != nil {
		return nil, canvas.FontRegular, err
	}
	family := canvas.NewFontFamily("folio-fallback")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, canvas.FontRegular, err
	}
	r.fallbackFamily = family
	return family, canvas.FontRegular, nil
}

func parseFontStyle(style string) canvas.FontStyle {
	if style == "" {
		return canvas.FontRegular
	}
	s := strings.ToLower(style)
	result := canvas.FontRegular
	switch {
	case strings.Contains(s, "black"):
		result = canvas.FontBlack
	case strings.Contains(s, "extrabold"):
		result = canvas.FontExtraBold
	case strings.Contains(s, "semibold"), strings.Contains(s, "demibold"):
		result = canvas.FontSemiBold
	case strings.Contains(s, "bold"):
		result = canvas.FontBold
	case strings.Contains(s, "medium"):
		result = canvas.FontMedium
	case strings.Contains(s, "light"):
		result = canvas.FontLight
	}
	if strings.Contains(s, "italic") || strings.Contains(s, "oblique") {
		result |= canvas.FontItalic
	}
	return result
}

func fontCacheKey(font layout.FontResource) string {
	return fmt.Sprintf("%s|%s|%s", font.Name, font.Src, font.Style)
}

// toPt 把 px 字号换算为字体面使用的 pt：画布单位按 mm 计量，这里 1 单位即 1px。
func toPt(px float64) float64 { return px * layout.MmToPt }

func greedyWrapTokens(content string, width float64, face *canvas.FontFace, wrap string) []dom.Line {
	limit := width
	if limit <= 0 {
		limit = math.MaxFloat64
	}

	// nowrap：仅按显式换行划分，不基于宽度折行
	if wrap == "nowrap" {
		parts := strings.Split(content, "\n")
		lines := make([]dom.Line, 0, len(parts))
		for _, p := range parts {
			lines = append(lines, dom.Line{Content: p, Width: face.TextWidth(p)})
		}
		return lines
	}

	// break-word：忽略空白机会，纯按宽度切分（但仍然尊重显式换行）
	if wrap == "break-word" {
		var lines []dom.Line
		var builder strings.Builder
		current := 0.0
		emit := func(force bool) {
			if builder.Len() == 0 {
				if force {
					lines = append(lines, dom.Line{Content: "", Width: 0})
				}
				return
			}
			lines = append(lines, dom.Line{Content: builder.String(), Width: current})
			builder.Reset()
			current = 0
		}
		for _, r := range content {
			if r == '\r' {
				continue
			}
			if r == '\n' {
				emit(true)
				continue
			}
			s := string(r)
			cw := face.TextWidth(s)
			if current > 0 && current+cw > limit {
				emit(false)
			}
			builder.WriteString(s)
			current += cw
		}
		emit(true)
		return lines
	}

	// 默认（anywhere/normal 等）：优先在空白处分割，超过限制时在词内拆分
	tokens := tokenizeContent(content)
	var lines []dom.Line
	var builder strings.Builder
	currentWidth := 0.0

	emit := func(force bool) {
		if builder.Len() == 0 {
			if force {
				lines = append(lines, dom.Line{Content: "", Width: 0})
			}
			return
		}
		content := strings.TrimRightFunc(builder.String(), unicode.IsSpace)
		lines = append(lines, dom.Line{
			Content: content,
			Width:   face.TextWidth(content),
		})
		builder.Reset()
		currentWidth = 0
	}

	appendToken := func(token string) {
		// 行首空白丢弃
		if builder.Len() == 0 && strings.TrimSpace(token) == "" {
			return
		}
		builder.WriteString(token)
		currentWidth += face.TextWidth(token)
	}

	for _, token := range tokens {
		if token == "\n" {
			emit(true)
			continue
		}

		tokenWidth := face.TextWidth(token)
		if currentWidth > 0 && currentWidth+tokenWidth > limit && strings.TrimSpace(token) != "" {
			emit(false)
		}
		if tokenWidth <= limit {
			appendToken(token)
			continue
		}

		for _, chunk := range splitTokenByWidth(token, limit, face) {
			chunkWidth := face.TextWidth(chunk)
			if currentWidth > 0 && currentWidth+chunkWidth > limit {
				emit(false)
			}
			appendToken(chunk)
		}
	}

	emit(true)
	return lines
}

func tokenizeContent(s string) []string {
	var tokens []string
	var builder strings.Builder
	lastWasSpace := false
	flush := func() {
		if builder.Len() == 0 {
			return
		}
		tokens = append(tokens, builder.String())
		builder.Reset()
	}

	for _, r := range s {
		if r == '\r' {
			continue
		}
		if r == '\n' {
			flush()
			tokens = append(tokens, "\n")
			lastWasSpace = false
			continue
		}
		isSpace := unicode.IsSpace(r)
		if builder.Len() == 0 {
			lastWasSpace = isSpace
		} else if lastWasSpace != isSpace {
			flush()
			lastWasSpace = isSpace
		}
		builder.WriteRune(r)
	}
	flush()
	return tokens
}

func splitTokenByWidth(token string, limit float64, face *canvas.FontFace) []string {
	if limit <= 0 || limit == math.MaxFloat64 {
		return []string{token}
	}
	var parts []string
	var builder strings.Builder
	for _, r := range token {
		builder.WriteRune(r)
		if face.TextWidth(builder.String()) > limit && builder.Len() > 1 {
			runes := []rune(builder.String())
			parts = append(parts, string(runes[:len(runes)-1]))
			builder.Reset()
			builder.WriteRune(r)
		}
	}
	if builder.Len() > 0 {
		parts = append(parts, builder.String())
	}
	return parts
}
