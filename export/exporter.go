// Package export is the trigger boundary of the pipeline: it runs one export
// per trigger at a time, moves it through its states and turns every outcome
// into exactly one notice.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ByLCY/folio/dom"
	"github.com/ByLCY/folio/layout"
	"github.com/ByLCY/folio/logger"
	"github.com/ByLCY/folio/paginate"
	"github.com/ByLCY/folio/pdfdoc"
	"github.com/ByLCY/folio/printdoc"
	"github.com/ByLCY/folio/renderer"
	"github.com/ByLCY/folio/sanitize"
	"github.com/ByLCY/folio/workbook"
)

// DefaultSettle is the wait before capture so pending layout can finish.
const DefaultSettle = 300 * time.Millisecond

// Config holds the pipeline parameters.
type Config struct {
	Page paginate.PageSize
	// Tolerance 为分页标记允许距页顶的最大偏移（px）。
	Tolerance  float64
	Scale      float64
	Background string
	Settle     time.Duration
	Rules      *sanitize.RuleTable
	Workbook   workbook.Options
}

func (c Config) normalize() Config {
	if c.Page.Width <= 0 || c.Page.Height <= 0 {
		c.Page = paginate.A4
	}
	if c.Tolerance <= 0 {
		c.Tolerance = paginate.DefaultTolerance
	}
	if c.Scale <= 0 {
		c.Scale = renderer.DefaultScale
	}
	if c.Rules == nil {
		c.Rules = sanitize.MustDefault()
	}
	return c
}

// DefaultConfig returns A4 portrait, 15px tolerance, 2x scale.
func DefaultConfig() Config {
	return Config{
		Page:       paginate.A4,
		Tolerance:  paginate.DefaultTolerance,
		Scale:      renderer.DefaultScale,
		Background: "#ffffff",
		Settle:     DefaultSettle,
	}
}

// Exporter runs exports.
type Exporter struct {
	cfg      Config
	raster   renderer.Rasterizer
	printer  *printdoc.Service
	sink     Sink
	notifier Notifier
	log      *logger.Logger
	newID    func() string

	mu       sync.Mutex
	triggers map[string]*Trigger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithSink sets where finished files go. Default is a MemorySink.
func WithSink(s Sink) Option { return func(e *Exporter) { e.sink = s } }

// WithNotifier sets who receives notices. Default logs them.
func WithNotifier(n Notifier) Option { return func(e *Exporter) { e.notifier = n } }

// WithPrinter sets the print service used by Print.
func WithPrinter(p *printdoc.Service) Option { return func(e *Exporter) { e.printer = p } }

// WithLogger sets the base logger.
func WithLogger(l *logger.Logger) Option { return func(e *Exporter) { e.log = l } }

// New returns an exporter that rasterizes with r.
func New(cfg Config, r renderer.Rasterizer, opts ...Option) *Exporter {
	e := &Exporter{
		cfg:      cfg.normalize(),
		raster:   r,
		sink:     &MemorySink{},
		notifier: LogNotifier{},
		newID:    uuid.NewString,
		triggers: make(map[string]*Trigger),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Default()
	}
	e.log = e.log.WithComponent("export")
	return e
}

// Config returns the normalized configuration.
func (e *Exporter) Config() Config { return e.cfg }

// Trigger returns the trigger guarding key, creating it on first use.
func (e *Exporter) Trigger(key string) *Trigger {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.triggers[key]
	if !ok {
		t = NewTrigger(nil)
		e.triggers[key] = t
	}
	return t
}

// Outcome describes a finished export.
type Outcome struct {
	ExportID    string             `json:"exportId"`
	Filename    string             `json:"filename"`
	ContentType string             `json:"contentType"`
	Location    string             `json:"location"`
	Pages       int                `json:"pages,omitempty"`
	Spacers     []paginate.Spacer  `json:"spacers,omitempty"`
	Sanitized   sanitize.Report    `json:"sanitized"`
	Warnings    []renderer.Warning `json:"-"`
	States      []State            `json:"states"`
	Data        []byte             `json:"-"`
}

// PDFRequest asks for a paginated PDF of a capture tree.
type PDFRequest struct {
	// Target 标识触发控件，同一 Target 同时只允许一次导出。
	Target   string
	Root     *dom.Node
	Filename string
	Meta     layout.DocumentMeta
	// Markers 可额外指定分页标记，必须位于 Root 内。
	Markers []*dom.Node
	// Page 覆盖配置中的纸张。
	Page *paginate.PageSize
}

// WorkbookRequest asks for an xlsx file.
type WorkbookRequest struct {
	Target   string
	Filename string
	Sheets   []workbook.Sheet
}

// PrintRequest asks for a printed report document.
type PrintRequest struct {
	Target string
	Model  printdoc.ReportTemplateModel
}

type run struct {
	e       *Exporter
	op      string
	trigger *Trigger
	id      string
	ctx     context.Context
	log     *logger.Logger
}

// begin claims the trigger for op/target. A busy trigger yields ErrBusy and
// no notice.
func (e *Exporter) begin(ctx context.Context, op, target string) (*run, error) {
	t := e.Trigger(op + ":" + target)
	if err := t.Begin(); err != nil {
		e.log.Debugw("export ignored, trigger busy", "op", op, "target", target)
		return nil, err
	}
	id := e.newID()
	ctx = logger.WithLogger(logger.WithExportID(ctx, id), e.log)
	return &run{e: e, op: op, trigger: t, id: id, ctx: ctx, log: logger.FromContext(ctx)}, nil
}

func (r *run) advance(s State) {
	if err := r.trigger.Advance(s); err != nil {
		r.log.Errorw("state transition rejected", "error", err)
		return
	}
	r.log.Debugw("export state", "state", s)
}

// finish notifies once and releases the trigger.
func (r *run) finish(out *Outcome, err *Error) {
	if err != nil {
		r.log.Warnw("export failed", "kind", err.Kind, "error", err.Err)
		r.e.notifier.Notify(r.ctx, failureNotice(r.id, err))
		r.trigger.Finish(err)
		return
	}
	r.advanceIfNeeded(StateSaved)
	out.States = r.trigger.History()
	r.log.Infow("export saved", "filename", out.Filename, "location", out.Location, "bytes", len(out.Data))
	r.e.notifier.Notify(r.ctx, successNotice(r.id, r.op, out.Filename, out.Location))
	r.trigger.Finish(nil)
}

func (r *run) advanceIfNeeded(s State) {
	if r.trigger.State() != s {
		r.advance(s)
	}
}

// guard converts a panic in fn into a capture failure.
func (r *run) guard(fn func() (*Outcome, *Error)) (out *Outcome, failure *Error) {
	defer func() {
		if p := recover(); p != nil {
			out, failure = nil, CaptureError(r.op, fmt.Errorf("panic: %v", p))
		}
	}()
	return fn()
}

func (r *run) complete(fn func() (*Outcome, *Error)) (*Outcome, error) {
	out, failure := r.guard(fn)
	r.finish(out, failure)
	if failure != nil {
		return nil, failure
	}
	out.ExportID = r.id
	return out, nil
}

// PDF captures req.Root, paginates it and saves the PDF.
func (e *Exporter) PDF(ctx context.Context, req PDFRequest) (*Outcome, error) {
	target := req.Target
	if target == "" && req.Root != nil {
		target = req.Root.ID
	}
	r, err := e.begin(ctx, "pdf", target)
	if err != nil {
		return nil, err
	}
	return r.complete(func() (*Outcome, *Error) { return e.pdf(r, req) })
}

func (e *Exporter) pdf(r *run, req PDFRequest) (*Outcome, *Error) {
	ctx := r.ctx
	if err := settle(ctx, e.cfg.Settle); err != nil {
		return nil, CaptureError("pdf", err)
	}
	if err := validateTarget(req.Root, req.Markers); err != nil {
		return nil, CaptureError("pdf", err)
	}

	clone := req.Root.Clone()
	if err := markExplicit(req.Root, clone, req.Markers); err != nil {
		return nil, CaptureError("pdf", err)
	}
	clone.Reflow()
	if clone.ComputedWidth <= 0 {
		return nil, CaptureError("pdf", ErrZeroWidth)
	}
	if clone.Height <= 0 {
		return nil, CaptureError("pdf", ErrZeroHeight)
	}

	r.advance(StateNormalizing)
	report, err := sanitize.Prepare(clone, e.cfg.Rules)
	if err != nil {
		return nil, CaptureError("pdf", err)
	}
	if n := len(report.Substitutions); n > 0 {
		r.log.Debugw("unsupported colors replaced", "count", n, "generic", report.Misses())
	}

	page := e.cfg.Page
	if req.Page != nil {
		page = *req.Page
	}
	width := clone.ComputedWidth
	pageHeight := paginate.VirtualPageHeight(page, width)
	spacers, err := paginate.Align(clone, pageHeight, e.cfg.Tolerance)
	if err != nil {
		return nil, CaptureError("pdf", err)
	}
	for _, m := range paginate.Verify(clone, pageHeight, e.cfg.Tolerance) {
		r.log.Warnw("break marker off page top", "marker", m.Marker.ID, "offset", m.Offset, "remainder", m.Remainder)
	}
	r.log.Debugw("break markers aligned", "spacers", len(spacers), "page_height", pageHeight)

	r.advance(StateRasterizing)
	if e.raster == nil {
		return nil, CaptureError("pdf", fmt.Errorf("no rasterizer configured"))
	}
	img, err := e.raster.Rasterize(ctx, clone, renderer.Options{Scale: e.cfg.Scale, Background: e.cfg.Background})
	if err != nil {
		return nil, CaptureError("pdf", err)
	}
	for _, w := range img.Warnings {
		r.log.Warnw("capture continued without asset", "src", w.Src, "error", w.Err)
	}

	r.advance(StateSlicing)
	doc, err := pdfdoc.Compose(img, pdfdoc.Options{Page: page, CaptureWidth: width, Meta: req.Meta})
	if err != nil {
		return nil, SerializationError("pdf", err)
	}
	data, err := doc.Bytes()
	if err != nil {
		return nil, SerializationError("pdf", err)
	}

	filename := withExt(req.Filename, req.Meta.Filename, ".pdf")
	loc, err := e.sink.Save(ctx, filename, "application/pdf", data)
	if err != nil {
		return nil, SerializationError("pdf", err)
	}
	return &Outcome{
		Filename:    filename,
		ContentType: "application/pdf",
		Location:    loc,
		Pages:       doc.PageCount(),
		Spacers:     spacers,
		Sanitized:   report,
		Warnings:    img.Warnings,
		Data:        data,
	}, nil
}

// Workbook serializes req.Sheets and saves the xlsx file.
func (e *Exporter) Workbook(ctx context.Context, req WorkbookRequest) (*Outcome, error) {
	r, err := e.begin(ctx, "xlsx", req.Target)
	if err != nil {
		return nil, err
	}
	return r.complete(func() (*Outcome, *Error) {
		data, err := workbook.Bytes(req.Sheets, e.cfg.Workbook)
		if err != nil {
			return nil, SerializationError("xlsx", err)
		}
		const ct = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename := withExt(req.Filename, "", ".xlsx")
		loc, err := e.sink.Save(r.ctx, filename, ct, data)
		if err != nil {
			return nil, SerializationError("xlsx", err)
		}
		return &Outcome{Filename: filename, ContentType: ct, Location: loc, Data: data}, nil
	})
}

// Print renders req.Model and prints it through the configured print service.
func (e *Exporter) Print(ctx context.Context, req PrintRequest) (*Outcome, error) {
	r, err := e.begin(ctx, "print", req.Target)
	if err != nil {
		return nil, err
	}
	return r.complete(func() (*Outcome, *Error) {
		if e.printer == nil {
			return nil, PopupBlockedError("print", fmt.Errorf("%w: no print service", ErrPopupBlocked))
		}
		res, err := e.printer.Print(r.ctx, req.Model)
		if err != nil {
			return nil, Classify("print", err, KindSerialization)
		}
		loc, err := e.sink.Save(r.ctx, res.Filename, res.ContentType, res.Data)
		if err != nil {
			return nil, SerializationError("print", err)
		}
		return &Outcome{Filename: res.Filename, ContentType: res.ContentType, Location: loc, Data: res.Data}, nil
	})
}

// settle waits d, returning early with ctx's error.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// validateTarget checks the live root before anything is cloned.
func validateTarget(root *dom.Node, markers []*dom.Node) error {
	if root == nil {
		return ErrNoTarget
	}
	if !root.Attached() {
		return ErrDetached
	}
	for cur := root; cur != nil; cur = cur.Parent() {
		if cur.Hidden {
			return ErrHidden
		}
	}
	for i, m := range markers {
		if m == nil || !root.Contains(m) || m == root {
			return fmt.Errorf("%w: marker %d", ErrMarkerOutside, i)
		}
	}
	return nil
}

// markExplicit sets BreakBefore on the clone counterparts of markers.
func markExplicit(root, clone *dom.Node, markers []*dom.Node) error {
	for i, m := range markers {
		path := pathOf(root, m)
		n := clone
		for _, idx := range path {
			if idx >= len(n.Children) {
				return fmt.Errorf("%w: marker %d", ErrMarkerOutside, i)
			}
			n = n.Children[idx]
		}
		n.BreakBefore = true
	}
	return nil
}

// pathOf returns child indexes leading from root to n.
func pathOf(root, n *dom.Node) []int {
	var path []int
	for cur := n; cur != root && cur.Parent() != nil; cur = cur.Parent() {
		p := cur.Parent()
		for i, c := range p.Children {
			if c == cur {
				path = append(path, i)
				break
			}
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func withExt(name, fallback, ext string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(fallback)
	}
	if name == "" {
		name = "export-" + time.Now().Format("20060102-150405")
	}
	if !strings.EqualFold(filepath.Ext(name), ext) {
		name += ext
	}
	return name
}
