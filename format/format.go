// Package format holds the value formatting shared by the workbook, the print
// document and template bindings.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrencyPrefix 默认货币前缀。
const DefaultCurrencyPrefix = "$"

// CellKind 描述列的展示类型。
type CellKind string

const (
	KindText     CellKind = "text"
	KindNumber   CellKind = "number"
	KindInteger  CellKind = "integer"
	KindCurrency CellKind = "currency"
	KindDate     CellKind = "date"
	KindPercent  CellKind = "percent"
)

// Currency renders v with exactly two decimals and a thousands separator.
// Negative amounts carry the minus sign in front of the prefix: -$1,234.50.
func Currency(v any, prefix string) string {
	d, ok := Decimal(v)
	if !ok {
		return fmt.Sprint(v)
	}
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + prefix + group(d.StringFixed(2))
}

// Number renders v with the given number of decimals and thousands separators.
func Number(v any, places int32) string {
	d, ok := Decimal(v)
	if !ok {
		return fmt.Sprint(v)
	}
	d = d.Round(places)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + group(d.StringFixed(places))
}

// Percent renders v (already in percent units) with two decimals.
func Percent(v any) string {
	d, ok := Decimal(v)
	if !ok {
		return fmt.Sprint(v)
	}
	return d.StringFixed(2) + "%"
}

// Date renders t as 2006-01-02. Zero time renders as an empty string.
func Date(v any) string {
	t, ok := Time(v)
	if !ok {
		return fmt.Sprint(v)
	}
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// DateTime renders t as 2006-01-02 15:04.
func DateTime(v any) string {
	t, ok := Time(v)
	if !ok {
		return fmt.Sprint(v)
	}
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

// Value 按列类型格式化单元格。
func Value(kind CellKind, v any, currencyPrefix string) string {
	if v == nil {
		return ""
	}
	switch kind {
	case KindCurrency:
		return Currency(v, currencyPrefix)
	case KindNumber:
		return Number(v, 2)
	case KindInteger:
		return Number(v, 0)
	case KindPercent:
		return Percent(v)
	case KindDate:
		return Date(v)
	default:
		return Text(v)
	}
}

// Text 将任意值转为展示文本。
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case decimal.Decimal:
		return x.String()
	case time.Time:
		return Date(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return fmt.Sprintf("%.0f", x)
		}
		return decimal.NewFromFloat(x).String()
	default:
		return fmt.Sprint(v)
	}
}

// Decimal converts the numeric shapes that come out of JSON, Go code and
// decimal-aware callers.
func Decimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, false
		}
		return *x, true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int32:
		return decimal.NewFromInt32(x), true
	case int64:
		return decimal.NewFromInt(x), true
	case uint:
		return decimal.NewFromInt(int64(x)), true
	case uint32:
		return decimal.NewFromInt(int64(x)), true
	case uint64:
		return decimal.RequireFromString(strconv.FormatUint(x, 10)), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case fmt.Stringer:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// Time accepts time.Time and the string layouts the back office emits.
func Time(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", time.DateOnly} {
			if t, err := time.Parse(layout, strings.TrimSpace(x)); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// group inserts thousands separators into an unsigned fixed-point string.
func group(s string) string {
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if len(intPart) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
