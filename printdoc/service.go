package printdoc

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ByLCY/folio/logger"
)

// Result is one printed document.
type Result struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Service renders a report and hands it to a Printer.
type Service struct {
	Printer  Printer
	Branding BrandingConfig
	// Now 用于生成时间，测试中可替换。
	Now func() time.Time
}

// NewService returns a service printing with p under branding b.
func NewService(p Printer, b BrandingConfig) *Service {
	return &Service{Printer: p, Branding: b, Now: time.Now}
}

// Print renders model and prints it. A panic inside the printer is returned
// as an error.
func (s *Service) Print(ctx context.Context, model ReportTemplateModel) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("printdoc: printer panicked: %v", r)
		}
	}()
	if s.Printer == nil {
		return nil, fmt.Errorf("%w: no printer configured", ErrPopupBlocked)
	}
	if model.GeneratedAt.IsZero() {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		model.GeneratedAt = now()
	}

	html, err := Render(model, s.Branding)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debugw("print document rendered", "title", model.Title, "bytes", len(html))

	data, err := s.Printer.Print(ctx, html)
	if err != nil {
		return nil, err
	}
	res = &Result{Data: data, ContentType: "text/html; charset=utf-8"}
	ext := ".html"
	if bytes.HasPrefix(data, []byte("%PDF")) {
		res.ContentType = "application/pdf"
		ext = ".pdf"
	}
	res.Filename = Filename(model) + ext
	return res, nil
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Filename is the download name for model without an extension, e.g.
// "daily-sales-2024-03-09".
func Filename(model ReportTemplateModel) string {
	name := strings.Trim(unsafeFilename.ReplaceAllString(strings.ToLower(model.Title), "-"), "-.")
	if name == "" {
		name = "report"
	}
	if !model.AsOf.IsZero() {
		name += "-" + model.AsOf.Format(time.DateOnly)
	}
	return name
}
