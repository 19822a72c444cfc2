package layout

import "github.com/ByLCY/folio/dom"

// BuildOptions 配置布局阶段所需的依赖，例如排版后端。
type BuildOptions struct {
	Typesetter Typesetter
	// Width 覆盖模板中的截取宽度（px），<=0 时使用模板或默认值。
	Width float64
	// DefaultWidth 为模板未声明 width 时的截取宽度，<=0 时为 1200px。
	DefaultWidth float64
}

// Typesetter 负责根据字体与宽度约束将文本拆成可绘制的行（单位 px）。
type Typesetter interface {
	LayoutLines(content string, width float64, font FontResource, fontSize float64, lineHeight float64, wrap string) ([]dom.Line, error)
}
