package renderer

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLoaderSources(t *testing.T) {
	blob := pngBytes(t, 4, 3)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logo.png"), blob, 0o644))

	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, sawAuth = r.BasicAuth()
		_, _ = w.Write(blob)
	}))
	defer srv.Close()

	l := NewLoader(dir)
	l.Images["stamp"] = blob
	ctx := context.Background()

	for _, src := range []string{
		"data:image/png;base64," + base64.StdEncoding.EncodeToString(blob),
		"builtin:stamp",
		"logo.png",
		filepath.Join(dir, "logo.png"),
		srv.URL + "/logo.png",
	} {
		img, err := l.Load(ctx, src)
		require.NoError(t, err, src)
		assert.Equal(t, 4, img.Bounds().Dx(), src)
	}
	assert.False(t, sawAuth)
}

func TestLoaderFailures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	l := NewLoader("")
	ctx := context.Background()
	for _, src := range []string{"", "relative.png", "data:broken", srv.URL + "/missing.png", "builtin:nope"} {
		_, err := l.Load(ctx, src)
		assert.Error(t, err, src)
	}
}

func TestOptionsNormalize(t *testing.T) {
	o := Options{}.Normalize()
	assert.Equal(t, DefaultScale, o.Scale)
	assert.Equal(t, "#ffffff", o.Background)
	ri := &RasterImage{Height: 400, Scale: 2}
	assert.Equal(t, 200.0, ri.CSSHeight())
}
