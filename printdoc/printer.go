package printdoc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/ByLCY/folio/logger"
	"github.com/ByLCY/folio/paginate"
)

// ErrPopupBlocked is returned when no browsing context could be opened for
// the print document.
var ErrPopupBlocked = errors.New("printdoc: print window could not be opened")

// Printer turns a rendered HTML document into printed output.
type Printer interface {
	Print(ctx context.Context, html string) ([]byte, error)
}

// ChromePrinter prints through a fresh headless Chrome context per document.
type ChromePrinter struct {
	// ExecPath 为 Chrome 可执行文件路径，为空时由 chromedp 自行查找。
	ExecPath string
	Page     paginate.PageSize
	// MarginMM 四边页边距（毫米）。
	MarginMM float64
	Timeout  time.Duration
	// Settle 为文档载入后到打印前的等待。
	Settle time.Duration
}

const (
	defaultPrintTimeout = 60 * time.Second
	defaultPrintMargin  = 10.0
	mmPerInch           = 25.4
)

// NewChromePrinter returns a printer for page with default margins and timeout.
func NewChromePrinter(execPath string, p paginate.PageSize) *ChromePrinter {
	return &ChromePrinter{
		ExecPath: execPath,
		Page:     p,
		MarginMM: defaultPrintMargin,
		Timeout:  defaultPrintTimeout,
		Settle:   200 * time.Millisecond,
	}
}

// Print loads html into a new tab and prints it to PDF.
func (p *ChromePrinter) Print(ctx context.Context, html string) ([]byte, error) {
	log := logger.FromContext(ctx).WithComponent("chrome")
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultPrintTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
	)
	if p.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(p.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			log.Debugf("chromedp: "+format, args...)
		}),
	)
	defer tabCancel()

	// 空 Run 仅启动浏览器与标签页；失败即视为无法打开打印窗口。
	if err := chromedp.Run(tabCtx); err != nil {
		log.Warnw("open print context failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPopupBlocked, err)
	}

	pg := p.Page
	if pg.Width <= 0 || pg.Height <= 0 {
		pg = paginate.A4
	}
	margin := p.MarginMM / mmPerInch

	var out []byte
	err := chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(p.Settle),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			out, _, err = page.PrintToPDF().
				WithPaperWidth(pg.Width / mmPerInch).
				WithPaperHeight(pg.Height / mmPerInch).
				WithMarginTop(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithMarginRight(margin).
				WithPrintBackground(true).
				WithPreferCSSPageSize(false).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("printdoc: print: %w", err)
	}
	log.Debugw("printed document", "bytes", len(out), "page", pg.Name)
	return out, nil
}

// HTMLPrinter returns the document itself, for callers that hand it to a
// browser to print.
type HTMLPrinter struct{}

func (HTMLPrinter) Print(_ context.Context, html string) ([]byte, error) {
	return []byte(html), nil
}

