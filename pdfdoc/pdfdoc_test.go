package pdfdoc

import (
	"bytes"
	"image"
	"image/color"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/folio/layout"
	"github.com/ByLCY/folio/paginate"
	"github.com/ByLCY/folio/renderer"
)

func stripes(w, h int) *renderer.RasterImage {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
		if (y/20)%2 == 0 {
			c = color.RGBA{R: 30, G: 41, B: 59, A: 255}
		}
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return &renderer.RasterImage{Image: img, Width: w, Height: h, Scale: 1}
}

func TestComposeSlicesByVirtualPage(t *testing.T) {
	img := stripes(240, 800)
	img.Scale = 2

	doc, err := Compose(img, Options{Page: paginate.A4})
	require.NoError(t, err)

	// 120 CSS px on A4 gives floor(169.7) = 169 px per page, 338 raster px.
	assert.Equal(t, 338.0, doc.PageHeight)
	require.Len(t, doc.Slices, 3)
	assert.Equal(t, 0.0, doc.Slices[0].Top)
	assert.Equal(t, 338.0, doc.Slices[1].Top)
	assert.Equal(t, 124.0, doc.Slices[2].Height)
	assert.Equal(t, -676.0, doc.Slices[2].Offset)

	var sum float64
	for _, s := range doc.Slices {
		sum += s.Height
	}
	assert.Equal(t, 800.0, sum)
}

func TestComposeUsesExplicitCaptureWidth(t *testing.T) {
	img := stripes(1200, 1697)

	doc, err := Compose(img, Options{Page: paginate.A4, CaptureWidth: 1200})
	require.NoError(t, err)
	assert.Equal(t, 1697.0, doc.PageHeight)
	assert.Equal(t, 1, doc.PageCount())
}

func TestComposeShortCaptureIsOnePage(t *testing.T) {
	doc, err := Compose(stripes(120, 10), Options{Page: paginate.Letter})
	require.NoError(t, err)
	assert.Equal(t, 1, doc.PageCount())
}

func TestComposeRejectsEmptyImage(t *testing.T) {
	_, err := Compose(nil, Options{})
	assert.ErrorIs(t, err, ErrNoImage)

	_, err = Compose(&renderer.RasterImage{}, Options{})
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestEncodeWritesOnePagePerSlice(t *testing.T) {
	doc, err := Compose(stripes(120, 400), Options{
		Page: paginate.A4,
		Meta: layout.DocumentMeta{Title: "Daily sales", Author: "Store 12", Creator: "Folio"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, doc.PageCount())

	data, err := doc.Bytes()
	require.NoError(t, err)
	require.True(t, len(data) > 4)
	assert.Equal(t, "%PDF", string(data[:4]))

	pages, err := PageCount(data)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
}

var creationDate = regexp.MustCompile(`\(D:[0-9]{14}[^)]*\)`)

func TestEncodeIsRepeatable(t *testing.T) {
	doc, err := Compose(stripes(120, 400), Options{Page: paginate.A4, Meta: layout.DocumentMeta{Title: "Daily sales"}})
	require.NoError(t, err)

	first, err := doc.Bytes()
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	second, err := doc.Bytes()
	require.NoError(t, err)

	require.Len(t, creationDate.FindAll(first, -1), 1)
	assert.Equal(t, len(first), len(second))
	// 只有 CreationDate 随编码时刻变化
	mask := []byte("(D:00000000000000)")
	assert.True(t, bytes.Equal(creationDate.ReplaceAll(first, mask), creationDate.ReplaceAll(second, mask)))
}

func TestCropClampsToImage(t *testing.T) {
	img := stripes(10, 50)
	band := crop(img.Image, paginate.Slice{Top: 40, Height: 30})
	require.NotNil(t, band)
	assert.Equal(t, image.Rect(0, 0, 10, 10), band.Bounds())

	assert.Nil(t, crop(img.Image, paginate.Slice{Top: 50, Height: 0.2}))
}
