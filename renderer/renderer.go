// Package renderer defines how a laid-out capture tree becomes pixels.
package renderer

import (
	"context"
	"image"

	"github.com/ByLCY/folio/dom"
)

// DefaultScale 是截取时的像素倍率。
const DefaultScale = 2.0

// Rasterizer 将截取树绘制为位图。实现必须只读取 root，不修改它。
type Rasterizer interface {
	Rasterize(ctx context.Context, root *dom.Node, opts Options) (*RasterImage, error)
}

// Options 控制一次栅格化。
type Options struct {
	// Scale 为每个 CSS 像素对应的输出像素数，<=0 时取 DefaultScale。
	Scale float64
	// Background 为不透明底色（CSS 颜色），为空时为白色。
	Background string
}

// Normalize fills defaults.
func (o Options) Normalize() Options {
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.Background == "" {
		o.Background = "#ffffff"
	}
	return o
}

// RasterImage 是栅格化结果。Width/Height 为像素尺寸。
type RasterImage struct {
	Image    image.Image
	Width    int
	Height   int
	Scale    float64
	Warnings []Warning
}

// CSSHeight returns the image height in capture pixels.
func (r *RasterImage) CSSHeight() float64 {
	if r == nil || r.Scale <= 0 {
		return 0
	}
	return float64(r.Height) / r.Scale
}

// Warning 记录不影响整体截取的局部失败，例如图片加载失败。
type Warning struct {
	Src string
	Err error
}

func (w Warning) Error() string {
	return "image " + w.Src + ": " + w.Err.Error()
}
