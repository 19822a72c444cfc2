package layout

import (
	"github.com/ByLCY/folio/dom"
	"github.com/ByLCY/folio/paginate"
)

// 该文件定义布局结果与资源描述，供导出流水线、渲染与调试 JSON 共用。

// Capture 是布局后的截取根节点及其目标纸张。
type Capture struct {
	Name      string            `json:"name"`
	Root      *dom.Node         `json:"root"`
	Page      paginate.PageSize `json:"page"`
	Width     float64           `json:"width"` // 截取宽度（px）
	Resources ResourceSet       `json:"resources"`
	Meta      DocumentMeta      `json:"meta"`
}

// ResourceSet 记录解析出的字体、颜色、图片与样式定义。
type ResourceSet struct {
	Fonts  map[string]FontResource  `json:"fonts"`
	Colors map[string]string        `json:"colors"` // 名称 → CSS 颜色值，保留原始写法
	Images map[string]ImageResource `json:"images"`
	Styles map[string]Style         `json:"styles"`
}

// FontResource 描述字体资源，src 可以是文件路径或 builtin:* 形式。
type FontResource struct {
	Name      string `json:"name"`
	Src       string `json:"src"`
	Style     string `json:"style"`
	Base      string `json:"base"`      // builtin 模式下记录真实字体名
	Family    string `json:"family"`    // 渲染器使用的 Family 名称
	IsBuiltin bool   `json:"isBuiltin"` // 是否为内建字体
	Fallback  string `json:"fallback"`
}

// ImageResource 记录图片资源，宽高以 px 保存。
type ImageResource struct {
	Name   string  `json:"name"`
	Src    string  `json:"src"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Fit    string  `json:"fit,omitempty"`
}

// Style 用于描述可继承的样式。
type Style struct {
	Name    string            `json:"name"`
	Extends string            `json:"extends,omitempty"`
	Props   map[string]string `json:"props"`
}

// DocumentMeta 保存导出文件的元信息。
type DocumentMeta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
	Filename string   `json:"filename,omitempty"`
}

// FontFor rebuilds the font resource recorded on a text node.
func FontFor(text *dom.TextContent) FontResource {
	if text == nil {
		return FontResource{}
	}
	return FontResource{
		Name:   text.Font,
		Family: text.Font,
		Src:    text.FontSrc,
		Style:  text.FontStyle,
	}
}
