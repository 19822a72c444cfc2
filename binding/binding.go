package binding

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ByLCY/folio/format"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Pipe 对绑定值做展示转换，arg 为 `name:arg` 中冒号后的部分。
type Pipe func(val any, arg string) string

var pipes = map[string]Pipe{
	"currency": func(v any, arg string) string {
		if arg == "" {
			arg = format.DefaultCurrencyPrefix
		}
		return format.Currency(v, arg)
	},
	"number": func(v any, arg string) string {
		places, err := strconv.Atoi(arg)
		if err != nil {
			places = 2
		}
		return format.Number(v, int32(places))
	},
	"integer":  func(v any, _ string) string { return format.Number(v, 0) },
	"percent":  func(v any, _ string) string { return format.Percent(v) },
	"date":     func(v any, _ string) string { return format.Date(v) },
	"datetime": func(v any, _ string) string { return format.DateTime(v) },
	"upper":    func(v any, _ string) string { return strings.ToUpper(format.Text(v)) },
	"lower":    func(v any, _ string) string { return strings.ToLower(format.Text(v)) },
	"default": func(v any, arg string) string {
		if s := format.Text(v); s != "" {
			return s
		}
		return arg
	},
}

// Interpolate 将文本中的 ${path.to.value} 替换为 data 中的值。
// 支持管道：${total | currency}、${rate | number:1}。
// 若 data 为空或路径不存在，则返回原占位符。
func Interpolate(text string, data any) string {
	if data == nil {
		return text
	}
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := exprPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		parts := strings.Split(groups[1], "|")
		path := strings.TrimSpace(parts[0])
		if path == "" {
			return match
		}
		val, ok := resolvePath(data, path)
		if !ok {
			return match
		}
		if len(parts) == 1 {
			return format.Text(val)
		}
		out := val
		for _, raw := range parts[1:] {
			name, arg, _ := strings.Cut(strings.TrimSpace(raw), ":")
			pipe, ok := pipes[strings.TrimSpace(name)]
			if !ok {
				return match
			}
			out = pipe(out, strings.Trim(strings.TrimSpace(arg), `"`))
		}
		return fmt.Sprint(out)
	})
}

// Lookup resolves a dotted path such as `report.rows[0].sku` against data.
func Lookup(data any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" || data == nil {
		return nil, false
	}
	return resolvePath(data, path)
}

// Items 返回路径上的数组，供 repeat 使用。
func Items(data any, path string) ([]any, bool) {
	val, ok := Lookup(data, path)
	if !ok {
		return nil, false
	}
	switch c := val.(type) {
	case []any:
		return c, true
	case []map[string]any:
		out := make([]any, len(c))
		for i, item := range c {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}

// Scope 在 parent 之上叠加局部变量（不修改 parent）。
func Scope(parent any, vars map[string]any) map[string]any {
	out := map[string]any{}
	if m, ok := parent.(map[string]any); ok {
		for k, v := range m {
			out[k] = v
		}
	}
	for k, v := range vars {
		out[k] = v
	}
	return out
}

func resolvePath(data any, path string) (any, bool) {
	current := data
	segments := strings.Split(path, ".")
	for _, segment := range segments {
		name, indexes := parseSegment(segment)
		if name != "" {
			var ok bool
			current, ok = descendMap(current, name)
			if !ok {
				return nil, false
			}
		}
		for _, idxStr := range indexes {
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, false
			}
			var ok bool
			current, ok = descendArray(current, idx)
			if !ok {
				return nil, false
			}
		}
	}
	return current, true
}

func parseSegment(segment string) (string, []string) {
	name := segment
	indexes := []string{}
	if i := strings.Index(segment, "["); i != -1 {
		name = segment[:i]
		rest := segment[i:]
		for len(rest) > 0 {
			if rest[0] != '[' {
				break
			}
			end := strings.IndexByte(rest, ']')
			if end == -1 {
				break
			}
			indexes = append(indexes, rest[1:end])
			rest = rest[end+1:]
		}
	}
	return name, indexes
}

func descendMap(current any, key string) (any, bool) {
	switch c := current.(type) {
	case map[string]any:
		val, ok := c[key]
		return val, ok
	case map[string]string:
		val, ok := c[key]
		return val, ok
	default:
		return nil, false
	}
}

func descendArray(current any, idx int) (any, bool) {
	switch c := current.(type) {
	case []any:
		if idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	case []map[string]any:
		if idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	default:
		return nil, false
	}
}
