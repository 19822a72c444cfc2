package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/folio/csscolor"
	"github.com/ByLCY/folio/dom"
	"github.com/ByLCY/folio/layout"
	"github.com/ByLCY/folio/logger"
	"github.com/ByLCY/folio/paginate"
	"github.com/ByLCY/folio/printdoc"
	"github.com/ByLCY/folio/renderer"
	"github.com/ByLCY/folio/workbook"
)

// fakeRasterizer records the tree it was given and returns a blank image of
// the matching size.
type fakeRasterizer struct {
	mu       sync.Mutex
	roots    []*dom.Node
	warnings []renderer.Warning
	err      error
	panic    bool
	gate     chan struct{}
	entered  chan struct{}
}

func (f *fakeRasterizer) Rasterize(ctx context.Context, root *dom.Node, opts renderer.Options) (*renderer.RasterImage, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.panic {
		panic("rasterizer exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.roots = append(f.roots, root)
	f.mu.Unlock()
	opts = opts.Normalize()
	w := int(math.Round(root.ComputedWidth * opts.Scale))
	h := int(math.Round(root.Height * opts.Scale))
	return &renderer.RasterImage{
		Image:    image.NewRGBA(image.Rect(0, 0, w, h)),
		Width:    w,
		Height:   h,
		Scale:    opts.Scale,
		Warnings: f.warnings,
	}, nil
}

func (f *fakeRasterizer) last() *dom.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.roots) == 0 {
		return nil
	}
	return f.roots[len(f.roots)-1]
}

func report(heights ...float64) (*dom.Node, []*dom.Node) {
	root := dom.New("main", "report")
	root.ID = "sales-report"
	root.Width = 1200
	var sections []*dom.Node
	for _, h := range heights {
		s := dom.New("section")
		s.MinHeight = h
		s.BreakBefore = true
		root.AppendChild(s)
		sections = append(sections, s)
	}
	return root, sections
}

func testConfig() Config {
	cfg := DefaultConfig()
	// 缩小倍率以减小测试图片
	cfg.Scale = 0.1
	cfg.Settle = 0
	return cfg
}

func newTestExporter(r renderer.Rasterizer, opts ...Option) (*Exporter, *Recorder, *MemorySink) {
	rec := &Recorder{}
	sink := &MemorySink{}
	opts = append([]Option{WithNotifier(rec), WithSink(sink), WithLogger(logger.Nop())}, opts...)
	return New(testConfig(), r, opts...), rec, sink
}

func TestPDFSectionsStartOnNewPages(t *testing.T) {
	fr := &fakeRasterizer{}
	e, rec, sink := newTestExporter(fr)
	root, _ := report(1800, 300, 2200)

	out, err := e.PDF(context.Background(), PDFRequest{Root: root, Filename: "sales-2024-01", Meta: layout.DocumentMeta{Title: "Sales"}})
	require.NoError(t, err)

	// 1800 + spacer 1594 + 300 + spacer 1397 + 2200 = 7291px; 7291/1697 → 5 pages.
	assert.Equal(t, 5, out.Pages)
	require.Len(t, out.Spacers, 2)
	assert.Equal(t, 1594.0, out.Spacers[0].Height)
	assert.Equal(t, 1397.0, out.Spacers[1].Height)
	assert.Equal(t, "sales-2024-01.pdf", out.Filename)
	assert.NotEmpty(t, out.ExportID)

	clone := fr.last()
	require.NotNil(t, clone)
	starts := []float64{}
	for _, m := range clone.Markers() {
		off, err := m.OffsetWithin(clone)
		require.NoError(t, err)
		starts = append(starts, off)
		assert.LessOrEqual(t, math.Mod(off, 1697), paginate.DefaultTolerance)
	}
	assert.Equal(t, []float64{0, 3394, 5091}, starts)

	// the live tree is never touched
	assert.Len(t, root.Children, 3)
	assert.NotSame(t, root, clone)

	file, ok := sink.Last()
	require.True(t, ok)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, "%PDF", string(file.Data[:4]))

	notices := rec.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, LevelSuccess, notices[0].Level)
	assert.Equal(t, out.ExportID, notices[0].ExportID)

	assert.Equal(t, []State{StateIdle, StateCapturing, StateNormalizing, StateRasterizing, StateSlicing, StateSaved}, out.States)
	assert.Equal(t, StateIdle, e.Trigger("pdf:sales-report").State())
}

func TestPDFNormalizesColorsOnCloneOnly(t *testing.T) {
	fr := &fakeRasterizer{}
	e, _, _ := newTestExporter(fr)
	root, sections := report(400, 400)
	sections[0].Classes = []string{"danger"}
	sections[0].Style.Set("color", "oklch(0.6 0.2 25)")
	sections[1].Style.Set("background-color", "color-mix(in srgb, red 40%, white)")
	sections[1].Style.Set("box-shadow", "0 1px 2px oklab(0.5 0.1 0.1 / 50%)")

	out, err := e.PDF(context.Background(), PDFRequest{Root: root})
	require.NoError(t, err)
	assert.Len(t, out.Sanitized.Substitutions, 3)

	clone := fr.last()
	clone.Walk(func(n *dom.Node) bool {
		for _, v := range n.Style {
			assert.True(t, csscolor.Supported(v), v)
		}
		return true
	})
	assert.Equal(t, "oklch(0.6 0.2 25)", sections[0].Style.Get("color"))
}

func TestPDFExplicitMarkers(t *testing.T) {
	fr := &fakeRasterizer{}
	e, _, _ := newTestExporter(fr)
	root, sections := report(1000, 500)
	sections[1].BreakBefore = false

	out, err := e.PDF(context.Background(), PDFRequest{Root: root, Markers: []*dom.Node{sections[1]}})
	require.NoError(t, err)
	require.Len(t, out.Spacers, 1)
	assert.Equal(t, 697.0, out.Spacers[0].Height)
	assert.False(t, sections[1].BreakBefore)
}

func TestPDFCaptureFailures(t *testing.T) {
	detachedRoot, _ := report(100)
	parent := dom.New("body")
	parent.AppendChild(detachedRoot)
	detachedRoot.Detach()

	hidden, _ := report(100)
	hidden.Hidden = true

	empty := dom.New("main")
	empty.Width = 1200

	narrow, _ := report(100)
	narrow.Width = 0

	outsideRoot, _ := report(100)
	stray := dom.New("section")

	tests := []struct {
		name string
		req  PDFRequest
		want error
	}{
		{"nil root", PDFRequest{Target: "x"}, ErrNoTarget},
		{"detached", PDFRequest{Root: detachedRoot}, ErrDetached},
		{"hidden", PDFRequest{Root: hidden}, ErrHidden},
		{"zero height", PDFRequest{Root: empty}, ErrZeroHeight},
		{"zero width", PDFRequest{Root: narrow}, ErrZeroWidth},
		{"marker outside", PDFRequest{Root: outsideRoot, Markers: []*dom.Node{stray}}, ErrMarkerOutside},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &fakeRasterizer{}
			e, rec, sink := newTestExporter(fr)
			_, err := e.PDF(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)

			var ee *Error
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, KindCapture, ee.Kind)

			notices := rec.Notices()
			require.Len(t, notices, 1)
			assert.Equal(t, LevelError, notices[0].Level)
			assert.Contains(t, notices[0].Message, tt.want.Error())

			assert.Nil(t, fr.last(), "rasterizer must not run")
			assert.Empty(t, sink.Files())
		})
	}
}

func TestPDFRasterizerFailureIsNotified(t *testing.T) {
	e, rec, _ := newTestExporter(&fakeRasterizer{err: errors.New("gpu lost")})
	root, _ := report(200)

	_, err := e.PDF(context.Background(), PDFRequest{Root: root})
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, KindCapture, ee.Kind)
	require.Len(t, rec.Notices(), 1)

	// the trigger is usable again
	assert.Equal(t, StateIdle, e.Trigger("pdf:sales-report").State())
}

func TestPDFPanicBecomesNotice(t *testing.T) {
	e, rec, _ := newTestExporter(&fakeRasterizer{panic: true})
	root, _ := report(200)

	assert.NotPanics(t, func() {
		_, err := e.PDF(context.Background(), PDFRequest{Root: root})
		require.Error(t, err)
	})
	notices := rec.Notices()
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Message, "rasterizer exploded")
}

func TestPDFBrokenImageStillCompletes(t *testing.T) {
	fr := &fakeRasterizer{warnings: []renderer.Warning{{Src: "https://cdn.example.com/x.png", Err: errors.New("403")}}}
	e, rec, _ := newTestExporter(fr)
	root, _ := report(2000)

	out, err := e.PDF(context.Background(), PDFRequest{Root: root})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Pages)
	assert.Len(t, out.Warnings, 1)
	assert.Equal(t, LevelSuccess, rec.Notices()[0].Level)
}

func TestPDFSecondTriggerWhileBusyIsIgnored(t *testing.T) {
	fr := &fakeRasterizer{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	e, rec, _ := newTestExporter(fr)
	root, _ := report(500)

	done := make(chan error, 1)
	go func() {
		_, err := e.PDF(context.Background(), PDFRequest{Root: root})
		done <- err
	}()
	<-fr.entered
	assert.Equal(t, StateRasterizing, e.Trigger("pdf:sales-report").State())

	_, err := e.PDF(context.Background(), PDFRequest{Root: root})
	assert.ErrorIs(t, err, ErrBusy)

	// a different target is not blocked
	other, _ := report(500)
	other.ID = "other"
	otherDone := make(chan error, 1)
	go func() {
		_, err := e.PDF(context.Background(), PDFRequest{Root: other})
		otherDone <- err
	}()
	<-fr.entered

	close(fr.gate)
	require.NoError(t, <-done)
	require.NoError(t, <-otherDone)
	assert.Len(t, rec.Notices(), 2)
}

func TestPDFSettleHonoursContext(t *testing.T) {
	fr := &fakeRasterizer{}
	rec := &Recorder{}
	cfg := testConfig()
	cfg.Settle = time.Hour
	e := New(cfg, fr, WithNotifier(rec), WithLogger(logger.Nop()))
	root, _ := report(100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.PDF(ctx, PDFRequest{Root: root})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rec.Notices(), 1)
	assert.Nil(t, fr.last())
}

func TestPDFIsRepeatable(t *testing.T) {
	fr := &fakeRasterizer{}
	e, _, _ := newTestExporter(fr)
	root, _ := report(900, 1200, 300)

	first, err := e.PDF(context.Background(), PDFRequest{Root: root})
	require.NoError(t, err)
	second, err := e.PDF(context.Background(), PDFRequest{Root: root})
	require.NoError(t, err)

	assert.Equal(t, first.Pages, second.Pages)
	assert.Equal(t, first.Spacers[0].Height, second.Spacers[0].Height)
	assert.Equal(t, fr.roots[0].Height, fr.roots[1].Height)
	assert.NotEqual(t, first.ExportID, second.ExportID)
}

func TestWorkbookExport(t *testing.T) {
	e, rec, sink := newTestExporter(nil)
	out, err := e.Workbook(context.Background(), WorkbookRequest{
		Target:   "walpo",
		Filename: "walpo-2024-01",
		Sheets: []workbook.Sheet{
			{Name: "Ledger", Rows: []workbook.Row{{"name": "Rent", "value": 120.5}, {"name": "Water", "value": 40}}},
			{Name: "Summary", Rows: []workbook.Row{{"total": 160.5}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "walpo-2024-01.xlsx", out.Filename)
	assert.Equal(t, []State{StateIdle, StateCapturing, StateSaved}, out.States)

	file, ok := sink.Last()
	require.True(t, ok)
	sheets, err := workbook.Read(bytes.NewReader(file.Data))
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	assert.Equal(t, "Rent", sheets[0].Rows[0]["name"])
	assert.Equal(t, 120.5, sheets[0].Rows[0]["value"])
	assert.Equal(t, int64(40), sheets[0].Rows[1]["value"])
	assert.Equal(t, LevelSuccess, rec.Notices()[0].Level)
}

func TestWorkbookSerializationFailure(t *testing.T) {
	e, rec, sink := newTestExporter(nil)
	_, err := e.Workbook(context.Background(), WorkbookRequest{
		Sheets: []workbook.Sheet{{Name: "Bad", Rows: []workbook.Row{{"v": []any{math.NaN()}}}}},
	})
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, KindSerialization, ee.Kind)
	assert.Empty(t, sink.Files(), "no partial file")

	notices := rec.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, "Export failed", notices[0].Title)
}

type stubPrinter struct {
	err error
}

func (p stubPrinter) Print(_ context.Context, html string) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []byte("%PDF-1.4 " + html[:15]), nil
}

func TestPrintExport(t *testing.T) {
	svc := printdoc.NewService(stubPrinter{}, printdoc.BrandingConfig{StoreName: "Corner Market"})
	e, rec, sink := newTestExporter(nil, WithPrinter(svc))

	out, err := e.Print(context.Background(), PrintRequest{Model: printdoc.ReportTemplateModel{Title: "Stock"}})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", out.ContentType)
	assert.Equal(t, "stock.pdf", out.Filename)
	assert.Len(t, sink.Files(), 1)
	assert.Equal(t, LevelSuccess, rec.Notices()[0].Level)
}

func TestPrintPopupBlocked(t *testing.T) {
	svc := printdoc.NewService(stubPrinter{err: printdoc.ErrPopupBlocked}, printdoc.BrandingConfig{})
	e, rec, _ := newTestExporter(nil, WithPrinter(svc))

	_, err := e.Print(context.Background(), PrintRequest{Model: printdoc.ReportTemplateModel{Title: "Stock"}})
	assert.ErrorIs(t, err, ErrPopupBlocked)

	notices := rec.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, KindPopupBlocked, notices[0].Kind)
	assert.Contains(t, notices[0].Message, "Allow pop-ups")

	// no print service configured is treated the same way
	e2, rec2, _ := newTestExporter(nil)
	_, err = e2.Print(context.Background(), PrintRequest{})
	assert.ErrorIs(t, err, ErrPopupBlocked)
	assert.Equal(t, KindPopupBlocked, rec2.Notices()[0].Kind)
}

func TestDirSink(t *testing.T) {
	dir := t.TempDir()
	loc, err := DirSink{Dir: filepath.Join(dir, "out")}.Save(context.Background(), "../escape.pdf", "application/pdf", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "escape.pdf"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file removed")

	_, err = DirSink{Dir: dir}.Save(context.Background(), "", "", nil)
	assert.Error(t, err)
}

func TestWithExt(t *testing.T) {
	assert.Equal(t, "a.pdf", withExt("a", "", ".pdf"))
	assert.Equal(t, "a.PDF", withExt("a.PDF", "", ".pdf"))
	assert.Equal(t, "meta.xlsx", withExt(" ", "meta", ".xlsx"))
}
