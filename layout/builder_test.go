package layout

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ByLCY/folio/dom"
	"github.com/ByLCY/folio/dsl"
)

// stubTypesetter 是一个最小实现，仅用于测试，避免引入 renderer 造成循环依赖。
// 每个字符宽 fontSize/2，按宽度硬切行。
type stubTypesetter struct{}

func (s *stubTypesetter) LayoutLines(content string, width float64, font FontResource, fontSize float64, lineHeight float64, wrap string) ([]dom.Line, error) {
	runes := []rune(content)
	perLine := len(runes)
	if wrap != "nowrap" && fontSize > 0 {
		perLine = int(width / (fontSize / 2))
	}
	if perLine <= 0 {
		perLine = 1
	}
	var lines []dom.Line
	for start := 0; start < len(runes); start += perLine {
		end := start + perLine
		if end > len(runes) {
			end = len(runes)
		}
		seg := runes[start:end]
		lines = append(lines, dom.Line{Content: string(seg), Width: float64(len(seg)) * fontSize / 2, Height: fontSize})
	}
	// 不设置 GapBefore（保持 0），由 layoutLines 根据默认 leading 回填。
	return lines, nil
}

const sampleReport = `
report SalesSummary v1 {
  meta {
    title: "Sales ${period}"
    filename: "sales-${period}"
  }

  resources {
    font Heading { src: "builtin:go-bold" }
    color Accent = #0F62FE
    style Title { font: Heading; size: 20px; color: Accent }
    style danger { color: oklch(0.577 0.245 27.325); border: oklch(0.8 0.1 27) }
  }

  capture A4 portrait width 1200px padding 24px gap 16px {
    section id summary gap 8px {
      text Title { "Sales ${period}" }
      row gap 16px {
        text size 16px { "Revenue ${total | currency}" }
        text class danger size 16px { "Refunds ${refunds | currency}" }
      }
    }
    section id detail break-before positioned padding 12px {
      table {
        header { cell { "SKU" } cell { "Qty" } }
        repeat rows as row {
          row { cell { "${row.sku}" } cell { "${row.qty}" } }
        }
      }
    }
    spacer height 40px
  }
}
`

func sampleData() map[string]any {
	return map[string]any{
		"period":  "2024-03",
		"total":   1234.5,
		"refunds": -20.0,
		"rows": []any{
			map[string]any{"sku": "A-1", "qty": float64(3)},
			map[string]any{"sku": "B-2", "qty": float64(10)},
			map[string]any{"sku": "C-3", "qty": float64(7)},
		},
	}
}

func buildCapture(t *testing.T, text string, data any) *Capture {
	t.Helper()
	doc, err := dsl.Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("解析 DSL 失败: %v", err)
	}
	c, err := Build(doc, data, BuildOptions{Typesetter: &stubTypesetter{}})
	if err != nil {
		t.Fatalf("布局计算失败: %v", err)
	}
	return c
}

func TestBuildCaptureTree(t *testing.T) {
	c := buildCapture(t, sampleReport, sampleData())

	if c.Width != 1200 || c.Root.ComputedWidth != 1200 {
		t.Fatalf("截取宽度应为 1200，实际 %g/%g", c.Width, c.Root.ComputedWidth)
	}
	if c.Page.Name != "A4" {
		t.Fatalf("纸张应为 A4，实际 %s", c.Page.Name)
	}
	if c.Meta.Title != "Sales 2024-03" || c.Meta.Filename != "sales-2024-03" {
		t.Fatalf("元信息插值错误: %+v", c.Meta)
	}
	if c.Root.Padding.Top != 24 || c.Root.Gap != 16 {
		t.Fatalf("capture 参数解析错误: padding=%+v gap=%g", c.Root.Padding, c.Root.Gap)
	}
	if len(c.Root.Children) != 3 {
		t.Fatalf("根节点应有 3 个子节点，实际 %d", len(c.Root.Children))
	}

	summary := c.Root.FindByID("summary")
	if summary == nil || summary.Gap != 8 {
		t.Fatalf("summary 区块缺失或 gap 错误: %+v", summary)
	}
	title := summary.Children[0]
	if title.Text == nil || title.Text.Content != "Sales 2024-03" {
		t.Fatalf("标题文本错误: %+v", title.Text)
	}
	if title.Text.Font != "Heading" || title.Text.FontSize != 20 {
		t.Fatalf("标题样式未生效: font=%s size=%g", title.Text.Font, title.Text.FontSize)
	}
	if got := title.Style.Get("color"); got != "#0F62FE" {
		t.Fatalf("颜色资源应解析为 #0F62FE，实际 %s", got)
	}

	row := summary.Children[1]
	if row.Display != dom.Row || len(row.Children) != 2 {
		t.Fatalf("row 结构错误: %+v", row)
	}
	revenue, refunds := row.Children[0], row.Children[1]
	if revenue.Text.Content != "Revenue $1,234.50" || refunds.Text.Content != "Refunds -$20.00" {
		t.Fatalf("管道插值错误: %q / %q", revenue.Text.Content, refunds.Text.Content)
	}
	if got := refunds.Style.Get("color"); !strings.HasPrefix(got, "oklch(") {
		t.Fatalf("class 样式应保留原始 oklch 颜色，实际 %q", got)
	}
	if got := refunds.Style.Get("border-color"); !strings.HasPrefix(got, "oklch(") {
		t.Fatalf("class 样式 border 应映射到 border-color，实际 %q", got)
	}
	if want := (1200 - 48 - 16) / 2.0; math.Abs(revenue.ComputedWidth-want) > 1e-9 {
		t.Fatalf("row 子节点应平分宽度 %g，实际 %g", want, revenue.ComputedWidth)
	}

	detail := c.Root.FindByID("detail")
	if detail == nil || !detail.BreakBefore || !detail.Positioned {
		t.Fatalf("detail 区块标记错误: %+v", detail)
	}
	if markers := c.Root.Markers(); len(markers) != 1 || markers[0] != detail {
		t.Fatalf("应只有 detail 一个分页标记")
	}
	table := detail.Children[0]
	if table.Tag != "table" || len(table.Children) != 4 {
		t.Fatalf("表格应有表头 + 3 行，实际 %d", len(table.Children))
	}
	if table.Children[0].Children[0].Tag != "th" || table.Children[1].Children[0].Tag != "td" {
		t.Fatalf("表头/单元格标签错误")
	}
	if got := table.Children[2].Children[0].Text.Content; got != "B-2" {
		t.Fatalf("repeat 第二行应为 B-2，实际 %s", got)
	}

	spacer := c.Root.Children[2]
	if spacer.Height != 40 || spacer.Spacer {
		t.Fatalf("模板 spacer 应为 40px 普通节点: %+v", spacer)
	}
}

// TestTextHeightInvariant 断言：文本高度 == Σ(line.Height + line.GapBefore)，且首行无前导。
func TestTextHeightInvariant(t *testing.T) {
	c := buildCapture(t, sampleReport, sampleData())
	c.Root.Walk(func(n *dom.Node) bool {
		if n.Text == nil {
			return true
		}
		if len(n.Text.Lines) == 0 {
			t.Fatalf("文本节点缺少行: %q", n.Text.Content)
		}
		if n.Text.Lines[0].GapBefore != 0 {
			t.Fatalf("首行不应有 GapBefore")
		}
		sum := 0.0
		for _, ln := range n.Text.Lines {
			sum += ln.Height + ln.GapBefore
		}
		if inner := n.Height - n.Padding.Top - n.Padding.Bottom; math.Abs(inner-sum) > 1e-9 {
			t.Fatalf("文本高度不一致: node=%g lines=%g", inner, sum)
		}
		return true
	})
}

func TestTextWrapsToComputedWidth(t *testing.T) {
	src := `report W v1 {
  capture A4 width 200px {
    text size 20px { "abcdefghijklmnopqrst" }
    row { text size 20px { "abcdefghijklmnopqrst" } text size 20px { "x" } }
  }
}`
	c := buildCapture(t, src, nil)
	full := c.Root.Children[0]
	half := c.Root.Children[1].Children[0]
	if len(full.Text.Lines) != 1 {
		t.Fatalf("200px 宽可容纳 20 个字符，应为 1 行，实际 %d", len(full.Text.Lines))
	}
	if len(half.Text.Lines) != 2 {
		t.Fatalf("100px 宽应折成 2 行，实际 %d", len(half.Text.Lines))
	}
	if half.Parent().Height != half.Height {
		t.Fatalf("row 高度应取最高子节点")
	}
}

func TestBuildErrors(t *testing.T) {
	cases := map[string]string{
		"缺少 capture": `report E v1 { meta { title: "x" } }`,
		"样式循环":       `report E v1 { resources { style A extends B { size: 1px } style B extends A { size: 2px } } capture A4 { text { "x" } } }`,
		"未知纸张":       `report E v1 { capture B9 { text { "x" } } }`,
	}
	for name, src := range cases {
		doc, err := dsl.ParseString(src)
		if err != nil {
			t.Fatalf("%s: 解析失败 %v", name, err)
		}
		if _, err := Build(doc, nil, BuildOptions{Typesetter: &stubTypesetter{}}); err == nil {
			t.Fatalf("%s: 期望返回错误", name)
		}
	}
	doc, _ := dsl.ParseString(`report E v1 { capture A4 { text { "x" } } }`)
	if _, err := Build(doc, nil, BuildOptions{}); err == nil {
		t.Fatalf("缺少 Typesetter 时应报错")
	}
}

func TestRepeatMissingDataIsEmpty(t *testing.T) {
	src := `report R v1 { capture Letter landscape { section id list { repeat rows { text { "${item}" } } } } }`
	c := buildCapture(t, src, map[string]any{})
	if list := c.Root.FindByID("list"); len(list.Children) != 0 {
		t.Fatalf("缺失数据的 repeat 不应生成节点")
	}
	if c.Page.Width < c.Page.Height {
		t.Fatalf("landscape 未生效: %+v", c.Page)
	}
}

func TestWriteDebugJSON(t *testing.T) {
	c := buildCapture(t, sampleReport, sampleData())
	path := filepath.Join(t.TempDir(), "capture.json")
	if err := WriteDebugJSON(c, path); err != nil {
		t.Fatalf("写调试 JSON 失败: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取调试 JSON 失败: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("调试 JSON 非法: %v", err)
	}
	if _, ok := decoded["root"]; !ok {
		t.Fatalf("调试 JSON 缺少 root 字段")
	}
	if h, _ := decoded["virtualPageHeight"].(float64); h != 1697 {
		t.Fatalf("虚拟页高应为 1697，实际 %v", decoded["virtualPageHeight"])
	}
	markers, _ := decoded["markers"].([]any)
	if len(markers) != 1 || markers[0].(map[string]any)["id"] != "detail" {
		t.Fatalf("调试 JSON 应列出 detail 标记: %v", decoded["markers"])
	}
}

func TestCompile(t *testing.T) {
	c, err := Compile(strings.NewReader(sampleReport), sampleData(), BuildOptions{Typesetter: &stubTypesetter{}, Width: 800})
	if err != nil {
		t.Fatalf("编译失败: %v", err)
	}
	if c.Width != 800 || c.Root.Width != 800 {
		t.Fatalf("宽度覆盖未生效: %v", c.Width)
	}
	if _, err := Compile(strings.NewReader("report {"), nil, BuildOptions{Typesetter: &stubTypesetter{}}); err == nil {
		t.Fatalf("语法错误应返回错误")
	}
}

func TestDefaultWidthOnlyWhenUndeclared(t *testing.T) {
	opts := BuildOptions{Typesetter: &stubTypesetter{}, DefaultWidth: 900}
	c, err := Compile(strings.NewReader(`report W v1 { capture A4 { text { "x" } } }`), nil, opts)
	if err != nil {
		t.Fatalf("编译失败: %v", err)
	}
	if c.Width != 900 {
		t.Fatalf("未声明宽度时应使用 DefaultWidth，实际 %v", c.Width)
	}
	c, err = Compile(strings.NewReader(`report W v1 { capture A4 width 600px { text { "x" } } }`), nil, opts)
	if err != nil {
		t.Fatalf("编译失败: %v", err)
	}
	if c.Width != 600 {
		t.Fatalf("模板声明的宽度应优先，实际 %v", c.Width)
	}
}
