// Package pdfdoc cuts a rasterized capture into page-sized slices and encodes
// them as a multi-page PDF.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"math"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/folio/layout"
	"github.com/ByLCY/folio/paginate"
	"github.com/ByLCY/folio/renderer"
)

// ErrNoImage is returned when Compose receives nothing to slice.
var ErrNoImage = errors.New("pdfdoc: raster image is empty")

// Options 控制分页与文档元信息。
type Options struct {
	Page paginate.PageSize
	// CaptureWidth 为截取宽度（CSS px），为 0 时由图片宽度除以倍率推得。
	CaptureWidth float64
	Meta         layout.DocumentMeta
}

// Document is a composed, not yet encoded, PDF.
type Document struct {
	Page paginate.PageSize
	Meta layout.DocumentMeta
	// Slices 以栅格像素为单位。
	Slices []paginate.Slice
	// PageHeight 为一页对应的栅格像素高度。
	PageHeight float64

	img *renderer.RasterImage
}

// Compose plans the page slices for img.
func Compose(img *renderer.RasterImage, opts Options) (*Document, error) {
	if img == nil || img.Image == nil || img.Width <= 0 || img.Height <= 0 {
		return nil, ErrNoImage
	}
	page := opts.Page
	if page.Width <= 0 || page.Height <= 0 {
		page = paginate.A4
	}
	scale := img.Scale
	if scale <= 0 {
		scale = renderer.DefaultScale
	}
	captureWidth := opts.CaptureWidth
	if captureWidth <= 0 {
		captureWidth = float64(img.Width) / scale
	}
	pageHeight := paginate.VirtualPageHeight(page, captureWidth) * scale
	if pageHeight <= 0 {
		return nil, fmt.Errorf("pdfdoc: page %s has no height at width %.0fpx", page.Name, captureWidth)
	}
	return &Document{
		Page:       page,
		Meta:       opts.Meta,
		Slices:     paginate.Slices(float64(img.Height), pageHeight),
		PageHeight: pageHeight,
		img:        img,
	}, nil
}

// PageCount is the number of pages Encode writes.
func (d *Document) PageCount() int { return len(d.Slices) }

// Encode writes the document as PDF. Each slice is placed at the top of its
// own page, scaled so the capture width fills the page width.
func (d *Document) Encode(w io.Writer) error {
	if d == nil || d.img == nil {
		return ErrNoImage
	}
	writer := pdf.New(w, d.Page.Width, d.Page.Height, nil)
	keywords := strings.Join(d.Meta.Keywords, ", ")
	writer.SetInfo(d.Meta.Title, d.Meta.Subject, keywords, d.Meta.Author, d.Meta.Creator)

	dpmm := float64(d.img.Width) / d.Page.Width
	for i, s := range d.Slices {
		if i > 0 {
			writer.NewPage(d.Page.Width, d.Page.Height)
		}
		band := crop(d.img.Image, s)
		c := canvas.New(d.Page.Width, d.Page.Height)
		ctx := canvas.NewContext(c)
		ctx.SetCoordSystem(canvas.CartesianIV)
		if band != nil {
			ctx.DrawImage(0, 0, band, canvas.DPMM(dpmm))
		}
		c.RenderTo(writer)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return nil
}

// Bytes encodes the document into memory. The info dictionary's
// CreationDate is the encoding time; every other byte is fixed by the input.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// crop copies the band of src covered by s into a zero-origin image, or
// returns nil when it rounds to nothing.
func crop(src image.Image, s paginate.Slice) image.Image {
	b := src.Bounds()
	top := b.Min.Y + int(math.Round(s.Top))
	bottom := b.Min.Y + int(math.Round(s.Top+s.Height))
	if bottom > b.Max.Y {
		bottom = b.Max.Y
	}
	if bottom <= top {
		return nil
	}
	r := image.Rect(b.Min.X, top, b.Max.X, bottom)
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)
	return dst
}

// PageCount reads an encoded PDF and returns its page count.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("pdfdoc: read pdf: %w", err)
	}
	return n, nil
}
