// Package printdoc renders self-contained HTML print documents for the back
// office reports and prints them to PDF.
package printdoc

import (
	"time"

	"github.com/ByLCY/folio/format"
)

// BrandingConfig is the store identity printed in every header and footer.
// It is passed to each render; nothing reads it from globals.
type BrandingConfig struct {
	StoreName      string `json:"storeName" yaml:"store_name"`
	Address        string `json:"address" yaml:"address"`
	Phone          string `json:"phone" yaml:"phone"`
	Email          string `json:"email" yaml:"email"`
	TaxID          string `json:"taxId" yaml:"tax_id"`
	LogoURL        string `json:"logoUrl" yaml:"logo_url"`
	CurrencyPrefix string `json:"currencyPrefix" yaml:"currency_prefix"`
	FooterNote     string `json:"footerNote" yaml:"footer_note"`
}

func (b BrandingConfig) prefix() string {
	if b.CurrencyPrefix == "" {
		return format.DefaultCurrencyPrefix
	}
	return b.CurrencyPrefix
}

// Period 报表所覆盖的日期区间。
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SummaryItem is one headline figure shown above the tables.
type SummaryItem struct {
	Label string          `json:"label"`
	Value any             `json:"value"`
	Kind  format.CellKind `json:"kind"`
}

// Column describes one table column and how its cells are formatted.
type Column struct {
	Key   string          `json:"key"`
	Label string          `json:"label"`
	Kind  format.CellKind `json:"kind"`
	// Align 为 left/center/right，为空时数值列右对齐。
	Align string `json:"align,omitempty"`
}

func (c Column) align() string {
	switch c.Align {
	case "left", "center", "right":
		return c.Align
	}
	switch c.Kind {
	case format.KindCurrency, format.KindNumber, format.KindInteger, format.KindPercent:
		return "right"
	}
	return "left"
}

// Table is one titled data table; row order is preserved.
type Table struct {
	Title   string           `json:"title"`
	Columns []Column         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	// Totals 为可选的合计行，键同 Columns。
	Totals map[string]any `json:"totals,omitempty"`
}

// ReportTemplateModel is everything one printed report shows.
type ReportTemplateModel struct {
	Title       string        `json:"title"`
	Subtitle    string        `json:"subtitle"`
	AsOf        time.Time     `json:"asOf"`
	Period      *Period       `json:"period,omitempty"`
	Summary     []SummaryItem `json:"summary,omitempty"`
	Tables      []Table       `json:"tables"`
	Notes       []string      `json:"notes,omitempty"`
	GeneratedAt time.Time     `json:"generatedAt"`
}
