package printdoc

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/ByLCY/folio/format"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

// base 在包初始化时解析一次；每次渲染克隆后绑定当前品牌的货币前缀。
var base = template.Must(template.New("report.html.tmpl").
	Funcs(funcMap(format.DefaultCurrencyPrefix)).
	ParseFS(templateFS, "templates/report.html.tmpl"))

type view struct {
	Model    ReportTemplateModel
	Branding BrandingConfig
	Logo     template.URL
}

// Render returns the full HTML print document for model.
func Render(model ReportTemplateModel, branding BrandingConfig) (string, error) {
	logo, err := logoURL(branding.LogoURL)
	if err != nil {
		return "", err
	}
	tpl, err := base.Clone()
	if err != nil {
		return "", fmt.Errorf("printdoc: clone template: %w", err)
	}
	tpl.Funcs(funcMap(branding.prefix()))

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, view{Model: model, Branding: branding, Logo: logo}); err != nil {
		return "", fmt.Errorf("printdoc: render %q: %w", model.Title, err)
	}
	return buf.String(), nil
}

func funcMap(prefix string) template.FuncMap {
	return template.FuncMap{
		"cell": func(kind format.CellKind, v any) string {
			return format.Value(kind, v, prefix)
		},
		"date":     format.Date,
		"datetime": format.DateTime,
		"align":    Column.align,
		"label": func(c Column) string {
			if c.Label != "" {
				return c.Label
			}
			return c.Key
		},
		"money": func(c Column) bool {
			return c.Kind == format.KindCurrency || c.Kind == format.KindNumber
		},
		"negative": func(v any) bool {
			d, ok := format.Decimal(v)
			return ok && d.IsNegative()
		},
	}
}

// logoURL accepts http(s) URLs and inline data:image URIs only.
func logoURL(raw string) (template.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if strings.HasPrefix(raw, "data:image/") {
		return template.URL(raw), nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("printdoc: logo url %q must be http(s) or a data:image URI", raw)
	}
	return template.URL(u.String()), nil
}
