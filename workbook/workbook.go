// Package workbook serializes named row sets into a multi-sheet xlsx file.
package workbook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// MaxSheetNameLen is the xlsx limit on sheet name length, in characters.
const MaxSheetNameLen = 31

const (
	defaultDateFormat     = "yyyy-mm-dd"
	defaultDateTimeFormat = "yyyy-mm-dd hh:mm"
	defaultDecimalFormat  = "#,##0.00"
	maxColumnWidth        = 60.0
)

var (
	// ErrNoSheets is returned when there is nothing to write.
	ErrNoSheets = errors.New("workbook: no sheets")
	// ErrInvalidSheetName is returned when the spreadsheet library rejects a
	// sheet name that survived sanitizing.
	ErrInvalidSheetName = errors.New("workbook: invalid sheet name")
	// ErrUnencodable is returned for values with no cell representation,
	// such as NaN, infinities, channels and funcs.
	ErrUnencodable = errors.New("workbook: value cannot be stored in a cell")
)

// invalidNameChars cannot appear in a sheet name.
var invalidNameChars = strings.NewReplacer(
	"[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", `\`, "_",
)

// Row is one flat record; keys become column headers.
type Row map[string]any

// Sheet is one named row set.
type Sheet struct {
	Name string `json:"name"`
	// Columns fixes header order. Keys not listed are appended after it.
	Columns []string `json:"columns,omitempty"`
	Rows    []Row    `json:"rows"`
}

// Options controls cell number formats.
type Options struct {
	DateFormat     string
	DateTimeFormat string
	DecimalFormat  string
}

func (o Options) normalize() Options {
	if o.DateFormat == "" {
		o.DateFormat = defaultDateFormat
	}
	if o.DateTimeFormat == "" {
		o.DateTimeFormat = defaultDateTimeFormat
	}
	if o.DecimalFormat == "" {
		o.DecimalFormat = defaultDecimalFormat
	}
	return o
}

// CellError locates a value that could not be serialized.
type CellError struct {
	Sheet  string
	Row    int
	Column string
	Err    error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("workbook: sheet %q row %d column %q: %v", e.Sheet, e.Row, e.Column, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

// Write builds the workbook and writes it to w.
func Write(w io.Writer, sheets []Sheet, opts Options) error {
	f, err := build(sheets, opts)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("workbook: write: %w", err)
	}
	return nil
}

// Bytes builds the workbook in memory.
func Bytes(sheets []Sheet, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, sheets, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SheetNames returns the names sheets will be written under, in order.
func SheetNames(sheets []Sheet) []string {
	taken := make(map[string]bool, len(sheets))
	out := make([]string, len(sheets))
	for i, s := range sheets {
		out[i] = uniqueName(SanitizeSheetName(s.Name, i+1), taken)
	}
	return out
}

// SanitizeSheetName makes name acceptable as a sheet name. index is the
// 1-based position used when the name is empty.
func SanitizeSheetName(name string, index int) string {
	name = invalidNameChars.Replace(name)
	name = strings.TrimSpace(strings.Trim(name, "'"))
	name = truncate(name, MaxSheetNameLen)
	name = strings.TrimSpace(strings.Trim(name, "'"))
	if name == "" {
		return "Sheet" + strconv.Itoa(index)
	}
	return name
}

func uniqueName(name string, taken map[string]bool) string {
	candidate := name
	for n := 2; taken[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncate(name, MaxSheetNameLen-utf8.RuneCountInString(suffix)) + suffix
	}
	taken[strings.ToLower(candidate)] = true
	return candidate
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Headers is the column order for s: Columns first, then every other key in
// first-seen order. Keys within one row are taken in sorted order.
func Headers(s Sheet) []string {
	seen := lo.FlatMap(s.Rows, func(r Row, _ int) []string {
		keys := lo.Keys(r)
		sort.Strings(keys)
		return keys
	})
	return lo.Uniq(append(append([]string{}, s.Columns...), seen...))
}

type styles struct {
	header, date, dateTime, decimal int
}

func build(sheets []Sheet, opts Options) (*excelize.File, error) {
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}
	opts = opts.normalize()
	names := SheetNames(sheets)

	f := excelize.NewFile()
	st, err := newStyles(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	first := f.GetSheetName(0)
	for i, s := range sheets {
		name := names[i]
		if i == 0 {
			err = f.SetSheetName(first, name)
		} else {
			_, err = f.NewSheet(name)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidSheetName, name, err)
		}
		if err := writeSheet(f, name, s, st); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func newStyles(f *excelize.File, opts Options) (styles, error) {
	var st styles
	var err error
	if st.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"F1F5F9"}},
	}); err != nil {
		return st, fmt.Errorf("workbook: header style: %w", err)
	}
	if st.date, err = f.NewStyle(&excelize.Style{CustomNumFmt: &opts.DateFormat}); err != nil {
		return st, fmt.Errorf("workbook: date style: %w", err)
	}
	if st.dateTime, err = f.NewStyle(&excelize.Style{CustomNumFmt: &opts.DateTimeFormat}); err != nil {
		return st, fmt.Errorf("workbook: datetime style: %w", err)
	}
	if st.decimal, err = f.NewStyle(&excelize.Style{CustomNumFmt: &opts.DecimalFormat}); err != nil {
		return st, fmt.Errorf("workbook: decimal style: %w", err)
	}
	return st, nil
}

func writeSheet(f *excelize.File, name string, s Sheet, st styles) error {
	headers := Headers(s)
	if len(headers) == 0 {
		return nil
	}
	widths := make([]float64, len(headers))
	for c, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellValue(name, cell, h); err != nil {
			return &CellError{Sheet: name, Row: 1, Column: h, Err: err}
		}
		widths[c] = float64(utf8.RuneCountInString(h))
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(name, "A1", last, st.header); err != nil {
		return fmt.Errorf("workbook: sheet %q header style: %w", name, err)
	}

	for r, row := range s.Rows {
		rowNum := r + 2
		for c, h := range headers {
			v, ok := row[h]
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, rowNum)
			value, style, err := cellValue(v, st)
			if err != nil {
				return &CellError{Sheet: name, Row: rowNum, Column: h, Err: err}
			}
			if value == nil {
				continue
			}
			if err := f.SetCellValue(name, cell, value); err != nil {
				return &CellError{Sheet: name, Row: rowNum, Column: h, Err: err}
			}
			if style != 0 {
				if err := f.SetCellStyle(name, cell, cell, style); err != nil {
					return &CellError{Sheet: name, Row: rowNum, Column: h, Err: err}
				}
			}
			if w := displayWidth(value); w > widths[c] {
				widths[c] = w
			}
		}
	}

	for c, w := range widths {
		col, _ := excelize.ColumnNumberToName(c + 1)
		if err := f.SetColWidth(name, col, col, lo.Clamp(w+2, 8, maxColumnWidth)); err != nil {
			return fmt.Errorf("workbook: sheet %q column width: %w", name, err)
		}
	}
	return nil
}

// cellValue converts v to something excelize stores natively. Nested values
// are stringified as JSON. A nil value means an empty cell.
func cellValue(v any, st styles) (any, int, error) {
	switch x := v.(type) {
	case nil:
		return nil, 0, nil
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return x, 0, nil
	case float32:
		if err := finite(float64(x)); err != nil {
			return nil, 0, err
		}
		return x, 0, nil
	case float64:
		if err := finite(x); err != nil {
			return nil, 0, err
		}
		return x, 0, nil
	case decimal.Decimal:
		return x.InexactFloat64(), st.decimal, nil
	case *decimal.Decimal:
		if x == nil {
			return nil, 0, nil
		}
		return x.InexactFloat64(), st.decimal, nil
	case time.Time:
		if x.IsZero() {
			return nil, 0, nil
		}
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x, st.date, nil
		}
		return x, st.dateTime, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, 0, nil
		}
		if f, err := x.Float64(); err == nil {
			if err := finite(f); err != nil {
				return nil, 0, err
			}
			return f, 0, nil
		}
		return x.String(), 0, nil
	case fmt.Stringer:
		if !nested(v) {
			return x.String(), 0, nil
		}
	}
	if !nested(v) {
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Pointer:
			if rv.IsNil() {
				return nil, 0, nil
			}
			return cellValue(rv.Elem().Interface(), st)
		case reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
			return nil, 0, fmt.Errorf("%w: %T", ErrUnencodable, v)
		case reflect.Float32, reflect.Float64:
			if err := finite(rv.Float()); err != nil {
				return nil, 0, err
			}
		}
		return fmt.Sprint(v), 0, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, 0, fmt.Errorf("stringify %T: %w", v, err)
	}
	return string(data), 0, nil
}

func finite(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %v", ErrUnencodable, f)
	}
	return nil
}

func nested(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	}
	return false
}

func displayWidth(v any) float64 {
	switch x := v.(type) {
	case string:
		return float64(utf8.RuneCountInString(x))
	case time.Time:
		return 16
	default:
		return float64(len(fmt.Sprint(x)))
	}
}

// Read parses an xlsx stream back into sheets. The first row of each sheet is
// the header; numeric cells come back as int64 or float64.
func Read(r io.Reader) ([]Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("workbook: open: %w", err)
	}
	defer f.Close()

	var out []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("workbook: sheet %q: %w", name, err)
		}
		s := Sheet{Name: name}
		if len(rows) > 0 {
			s.Columns = rows[0]
		}
		for _, cells := range lo.Drop(rows, 1) {
			row := Row{}
			for c, raw := range cells {
				if raw == "" || c >= len(s.Columns) {
					continue
				}
				row[s.Columns[c]] = parseValue(raw)
			}
			s.Rows = append(s.Rows, row)
		}
		out = append(out, s)
	}
	return out, nil
}

// parseValue returns int64 for integers, float64 for decimals, or the
// original string.
func parseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
		return f
	}
	return s
}
