package layout

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ByLCY/folio/binding"
	"github.com/ByLCY/folio/dom"
	"github.com/ByLCY/folio/dsl"
	"github.com/ByLCY/folio/fonts"
	"github.com/ByLCY/folio/paginate"
)

const (
	defaultCaptureWidth = 1200.0
	defaultFontSize     = 14.0 // px
	defaultImageHeight  = 48.0
	defaultCellPadding  = 6.0
	defaultFontName     = "Body"
)

// 无值属性，出现即为 true。
var flagAttrs = map[string]bool{
	"break-before": true,
	"positioned":   true,
	"hidden":       true,
}

// 可带多个长度值的属性（CSS 简写语义）。
var multiValueAttrs = map[string]bool{
	"padding": true,
}

// DSL 属性名 → 计算样式属性名。
var styleAttrs = map[string]string{
	"color":            "color",
	"background":       "background-color",
	"background-color": "background-color",
	"border":           "border-color",
	"border-color":     "border-color",
	"border-width":     "border-width",
	"outline":          "outline-color",
	"outline-color":    "outline-color",
	"shadow":           "box-shadow",
	"box-shadow":       "box-shadow",
	"text-shadow":      "text-shadow",
	"fill":             "fill",
	"stroke":           "stroke",
}

// textSpec 保存排版阶段需要但不进入 dom 的信息。
type textSpec struct {
	font       FontResource
	lineHeight float64
	wrap       string
}

type builder struct {
	res     ResourceSet
	opts    BuildOptions
	pending map[*dom.Node]textSpec
}

// Build 根据模板 AST 与数据生成截取树：先搭建节点，按宽度排版文本，再整体 Reflow。
func Build(doc *dsl.Document, data any, opts BuildOptions) (*Capture, error) {
	if doc == nil {
		return nil, fmt.Errorf("文档为空")
	}
	if opts.Typesetter == nil {
		return nil, fmt.Errorf("layout: 缺少排版后端 Typesetter")
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	res, err := collectResources(doc)
	if err != nil {
		return nil, err
	}
	meta := collectMeta(doc, data)
	section := doc.Capture()
	params := resolveCaptureParams(section.Spec.Params, opts.DefaultWidth)
	page, err := paginate.LookupPageSize(section.Spec.Size, params.orientation)
	if err != nil {
		return nil, err
	}
	width := params.width
	if opts.Width > 0 {
		width = opts.Width
	}

	root := dom.New("main", "report")
	root.ID = doc.Name
	root.Width = width
	root.Padding = params.padding
	root.Gap = params.gap

	b := &builder{res: res, opts: opts, pending: map[*dom.Node]textSpec{}}
	if section.Block != nil {
		if err := b.processBlock(section.Block, root, data); err != nil {
			return nil, err
		}
	}
	if err := b.typeset(root); err != nil {
		return nil, err
	}

	return &Capture{
		Name:      doc.Name,
		Root:      root,
		Page:      page,
		Width:     width,
		Resources: res,
		Meta:      meta,
	}, nil
}

// Compile 解析模板源码并构建截取树。
func Compile(r io.Reader, data any, opts BuildOptions) (*Capture, error) {
	doc, err := dsl.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("解析 DSL 失败: %w", err)
	}
	return Build(doc, data, opts)
}

func (b *builder) processBlock(block *dsl.Block, parent *dom.Node, scope any) error {
	for _, stmt := range block.Statements {
		if stmt.Command == nil {
			continue
		}
		cmd := stmt.Command
		var err error
		switch cmd.Name {
		case "section", "div":
			err = b.handleSection(cmd, parent, scope)
		case "row", "header":
			err = b.handleRow(cmd, parent, scope)
		case "text":
			err = b.handleText(cmd, parent, scope, "p")
		case "cell":
			err = b.handleCell(cmd, parent, scope)
		case "image":
			err = b.handleImage(cmd, parent, scope)
		case "table":
			err = b.handleTable(cmd, parent, scope)
		case "repeat":
			err = b.handleRepeat(cmd, parent, scope)
		case "spacer":
			err = b.handleSpacer(cmd, parent, scope)
		default:
			// Validate 已拒绝未知命令
			continue
		}
		if err != nil {
			return fmt.Errorf("第 %d 行 %s: %w", cmd.Pos.Line, cmd.Name, err)
		}
	}
	return nil
}

func (b *builder) handleSection(cmd *dsl.Command, parent *dom.Node, scope any) error {
	_, attrs := b.resolveAttrs(cmd.Args, scope)
	n := dom.New("section")
	b.applyBox(n, attrs)
	parent.AppendChild(n)
	if cmd.Block == nil {
		return nil
	}
	return b.processBlock(cmd.Block, n, scope)
}

func (b *builder) handleRow(cmd *dsl.Command, parent *dom.Node, scope any) error {
	_, attrs := b.resolveAttrs(cmd.Args, scope)
	n := dom.New("div", "row")
	if parent.Tag == "table" {
		n.Tag = "tr"
		n.Classes = nil
		if cmd.Name == "header" {
			n.Classes = []string{"table-header"}
			if attrs["background"] == "" {
				attrs["background"] = "#f1f5f9"
			}
		}
	}
	n.Display = dom.Row
	b.applyBox(n, attrs)
	parent.AppendChild(n)
	if cmd.Block == nil {
		return nil
	}
	return b.processBlock(cmd.Block, n, scope)
}

func (b *builder) handleTable(cmd *dsl.Command, parent *dom.Node, scope any) error {
	if cmd.Block == nil {
		return fmt.Errorf("table 语句缺少行定义")
	}
	_, attrs := b.resolveAttrs(cmd.Args, scope)
	if attrs["border"] == "" && attrs["border-color"] == "" {
		attrs["border"] = "#e2e8f0"
	}
	n := dom.New("table")
	b.applyBox(n, attrs)
	parent.AppendChild(n)
	return b.processBlock(cmd.Block, n, scope)
}

func (b *builder) handleCell(cmd *dsl.Command, parent *dom.Node, scope any) error {
	tag := "td"
	if parent.HasClass("table-header") {
		tag = "th"
	}
	return b.handleText(cmd, parent, scope, tag)
}

func (b *builder) handleText(cmd *dsl.Command, parent *dom.Node, scope any, tag string) error {
	styleName, attrs := b.resolveAttrs(cmd.Args, scope)
	content := binding.Interpolate(extractText(cmd.Block), scope)
	if content == "" && tag == "p" {
		return fmt.Errorf("text 语句缺少文本内容")
	}
	if tag != "p" && attrs["padding"] == "" {
		attrs["padding"] = strconv.FormatFloat(defaultCellPadding, 'f', -1, 64) + "px"
	}

	fontName := attrs["font"]
	if fontName == "" && tag == "th" {
		if _, ok := b.res.Fonts["Heading"]; ok {
			fontName = "Heading"
		}
	}
	if fontName == "" {
		fontName = styleName
	}
	if fontName == "" {
		fontName = defaultFontName
	}
	font, err := resolveFontResource(fontName, b.res)
	if err != nil {
		return err
	}
	size := ParseRawLengthStr(attrs["size"])
	if size.Value <= 0 {
		size = Length{Value: defaultFontSize, Unit: UnitPX}
	}
	fontSize := size.ToPX()
	lineHeight := ParseLineHeight(attrs["line-height"]).Resolve(size, UnitPX)

	n := dom.New(tag)
	b.applyBox(n, attrs)
	n.Text = &dom.TextContent{
		Content:   content,
		Font:      font.Name,
		FontSrc:   font.Src,
		FontStyle: font.Style,
		FontSize:  fontSize,
		Align:     normalizeAlign(attrs["align"]),
	}
	if n.Style.Get("color") == "" {
		n.Style.Set("color", "#1e293b")
	}
	b.pending[n] = textSpec{font: font, lineHeight: lineHeight, wrap: normalizeWrap(attrs["wrap"])}
	parent.AppendChild(n)
	return nil
}

func (b *builder) handleImage(cmd *dsl.Command, parent *dom.Node, scope any) error {
	args := cmd.Args
	var src string
	var resource ImageResource
	if len(args) > 0 && !flagAttrs[args[0].Value] && (args[0].Type == "String" || b.res.Images[args[0].Value].Name != "") {
		if img, ok := b.res.Images[args[0].Value]; ok {
			resource = img
			src = img.Src
		} else {
			src = binding.Interpolate(args[0].Value, scope)
		}
		args = args[1:]
	}
	_, attrs := b.resolveAttrs(args, scope)
	if v := attrs["src"]; v != "" {
		src = v
	}
	if src == "" {
		return fmt.Errorf("image 语句缺少图片来源")
	}
	n := dom.New("img")
	b.applyBox(n, attrs)
	fit := attrs["fit"]
	if fit == "" {
		fit = resource.Fit
	}
	n.Image = &dom.ImageContent{Src: src, Fit: fit}
	if n.Width <= 0 {
		n.Width = resource.Width
	}
	if n.MinHeight <= 0 {
		n.MinHeight = resource.Height
	}
	if n.MinHeight <= 0 {
		n.MinHeight = defaultImageHeight
	}
	parent.AppendChild(n)
	return nil
}

// handleRepeat 为路径上的每个元素展开一次子块：`repeat rows as row { … }`。
func (b *builder) handleRepeat(cmd *dsl.Command, parent *dom.Node, scope any) error {
	if cmd.Block == nil {
		return fmt.Errorf("repeat 语句缺少子内容")
	}
	var path strings.Builder
	name := "item"
	for i := 0; i < len(cmd.Args); i++ {
		if cmd.Args[i].Value == "as" && cmd.Args[i].Type == "Ident" && i+1 < len(cmd.Args) {
			name = cmd.Args[i+1].Value
			break
		}
		path.WriteString(cmd.Args[i].Raw)
	}
	if path.Len() == 0 {
		return fmt.Errorf("repeat 语句缺少数据路径")
	}
	items, ok := binding.Items(scope, path.String())
	if !ok {
		// 数据缺失时与空列表等价
		return nil
	}
	for i, item := range items {
		child := binding.Scope(scope, map[string]any{name: item, "index": i, "number": i + 1})
		if err := b.processBlock(cmd.Block, parent, child); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) handleSpacer(cmd *dsl.Command, parent *dom.Node, scope any) error {
	_, attrs := b.resolveAttrs(cmd.Args, scope)
	n := dom.New("div", "spacer")
	b.applyBox(n, attrs)
	parent.AppendChild(n)
	return nil
}

// resolveAttrs 合并：命名样式 < class 对应样式 < 行内属性；属性值支持 ${} 插值。
func (b *builder) resolveAttrs(args []*dsl.Lexeme, scope any) (string, map[string]string) {
	styleName, inline := parseArgs(args, b.res.Styles)
	for k, v := range inline {
		inline[k] = binding.Interpolate(v, scope)
	}
	attrs := mergeStyleAttributes(styleName, inline, b.res.Styles)
	for _, class := range splitClasses(attrs["class"]) {
		style, ok := b.res.Styles[class]
		if !ok {
			continue
		}
		for k, v := range style.Props {
			if _, set := inline[k]; !set {
				attrs[k] = v
			}
		}
	}
	return styleName, attrs
}

func (b *builder) applyBox(n *dom.Node, attrs map[string]string) {
	if v := attrs["id"]; v != "" {
		n.ID = v
	}
	n.Classes = append(n.Classes, splitClasses(attrs["class"])...)
	n.BreakBefore = flagValue(attrs["break-before"])
	n.Positioned = flagValue(attrs["positioned"])
	n.Hidden = flagValue(attrs["hidden"])
	if v := attrs["padding"]; v != "" {
		n.Padding = parseEdges(v)
	}
	if v := attrs["gap"]; v != "" {
		n.Gap = parseLength(v)
	}
	if v := attrs["height"]; v != "" {
		n.MinHeight = parseLength(v)
	}
	if v := attrs["width"]; v != "" {
		n.Width = parseLength(v)
	}
	for key, prop := range styleAttrs {
		if v := attrs[key]; v != "" {
			n.Style.Set(prop, resolveColor(v, b.res))
		}
	}
}

// typeset 在宽度确定后对所有文本节点分行，然后重新计算高度与偏移。
func (b *builder) typeset(root *dom.Node) error {
	root.Reflow()
	var firstErr error
	root.Walk(func(n *dom.Node) bool {
		if firstErr != nil {
			return false
		}
		spec, ok := b.pending[n]
		if !ok || n.Text == nil {
			return true
		}
		width := math.Max(n.ComputedWidth-n.Padding.Left-n.Padding.Right, 0)
		lines, err := layoutLines(n.Text.Content, width, spec.font, n.Text.FontSize, spec.lineHeight, b.opts.Typesetter, spec.wrap)
		if err != nil {
			firstErr = fmt.Errorf("排版文本失败: %w", err)
			return false
		}
		n.Text.Lines = lines
		return true
	})
	if firstErr != nil {
		return firstErr
	}
	root.Reflow()
	return nil
}

func collectResources(doc *dsl.Document) (ResourceSet, error) {
	res := ResourceSet{
		Fonts:  map[string]FontResource{},
		Colors: map[string]string{},
		Images: map[string]ImageResource{},
		Styles: map[string]Style{},
	}
	rawStyles := map[string]Style{}

	for _, cmd := range doc.Resources() {
		switch cmd.Name {
		case "font":
			if font := parseFontResource(cmd); font.Name != "" {
				res.Fonts[font.Name] = font
			}
		case "color":
			if name, value := parseColorResource(cmd); name != "" && value != "" {
				res.Colors[name] = value
			}
		case "image":
			if image := parseImageResource(cmd); image.Name != "" {
				res.Images[image.Name] = image
			}
		case "style":
			if style := parseStyleResource(cmd); style.Name != "" {
				rawStyles[style.Name] = style
			}
		}
	}

	if _, ok := res.Fonts[defaultFontName]; !ok {
		res.Fonts[defaultFontName] = FontResource{
			Name:      defaultFontName,
			Src:       "builtin:" + fonts.Regular,
			Base:      fonts.Regular,
			Family:    defaultFontName,
			IsBuiltin: true,
		}
	}

	resolvedStyles, err := resolveStyles(rawStyles)
	if err != nil {
		return res, err
	}
	res.Styles = resolvedStyles

	return res, nil
}

func collectMeta(doc *dsl.Document, data any) DocumentMeta {
	meta := DocumentMeta{
		Creator: "Folio",
	}
	for _, a := range doc.MetaAssignments() {
		value := binding.Interpolate(valueToString(a.Value), data)
		switch strings.ToLower(a.Key) {
		case "title":
			meta.Title = value
		case "author":
			meta.Author = value
		case "subject":
			meta.Subject = value
		case "creator":
			meta.Creator = value
		case "filename":
			meta.Filename = value
		case "keywords":
			meta.Keywords = valueToStringSlice(a.Value)
		}
	}
	return meta
}

func parseFontResource(cmd *dsl.Command) FontResource {
	if len(cmd.Args) == 0 {
		return FontResource{}
	}
	font := FontResource{
		Name:   cmd.Args[0].Value,
		Family: cmd.Args[0].Value,
		Base:   cmd.Args[0].Value,
	}

	if cmd.Block == nil {
		return font
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		switch stmt.Assignment.Key {
		case "src":
			if stmt.Assignment.Value.String != nil {
				font.Src = string(*stmt.Assignment.Value.String)
				if strings.HasPrefix(font.Src, "builtin:") {
					font.IsBuiltin = true
					font.Base = strings.TrimPrefix(font.Src, "builtin:")
					if font.Base == "" {
						font.Base = fonts.Regular
					}
				}
			}
		case "style":
			if stmt.Assignment.Value.String != nil {
				font.Style = string(*stmt.Assignment.Value.String)
			}
		case "fallback":
			if stmt.Assignment.Value.String != nil {
				font.Fallback = string(*stmt.Assignment.Value.String)
			}
		}
	}
	return font
}

func parseImageResource(cmd *dsl.Command) ImageResource {
	if len(cmd.Args) == 0 {
		return ImageResource{}
	}
	image := ImageResource{
		Name: cmd.Args[0].Value,
	}
	if cmd.Block == nil {
		return image
	}

	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		switch stmt.Assignment.Key {
		case "src":
			if stmt.Assignment.Value.String != nil {
				image.Src = string(*stmt.Assignment.Value.String)
			}
		case "width":
			if stmt.Assignment.Value.Number != nil {
				image.Width = parseLength(*stmt.Assignment.Value.Number)
			}
		case "height":
			if stmt.Assignment.Value.Number != nil {
				image.Height = parseLength(*stmt.Assignment.Value.Number)
			}
		case "fit":
			image.Fit = valueToString(stmt.Assignment.Value)
		}
	}
	return image
}

func parseStyleResource(cmd *dsl.Command) Style {
	if len(cmd.Args) == 0 {
		return Style{}
	}
	style := Style{
		Name:  cmd.Args[0].Value,
		Props: map[string]string{},
	}
	if len(cmd.Args) >= 3 && strings.EqualFold(cmd.Args[1].Value, "extends") {
		style.Extends = cmd.Args[2].Value
	}

	if cmd.Block == nil {
		return style
	}

	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		val := valueToString(stmt.Assignment.Value)
		if val == "" {
			continue
		}
		style.Props[stmt.Assignment.Key] = val
	}
	return style
}

func resolveStyles(styles map[string]Style) (map[string]Style, error) {
	resolved := map[string]Style{}
	visiting := map[string]bool{}

	var dfs func(name string) (Style, error)
	dfs = func(name string) (Style, error) {
		if style, ok := resolved[name]; ok {
			return style, nil
		}
		style, ok := styles[name]
		if !ok {
			return Style{}, fmt.Errorf("style %s 未定义", name)
		}
		if visiting[name] {
			return Style{}, fmt.Errorf("style 继承存在循环：%s", name)
		}
		visiting[name] = true

		props := map[string]string{}
		if style.Extends != "" {
			parent, err := dfs(style.Extends)
			if err != nil {
				return Style{}, err
			}
			for k, v := range parent.Props {
				props[k] = v
			}
		}
		for k, v := range style.Props {
			props[k] = v
		}
		style.Props = props
		resolved[name] = style
		delete(visiting, name)
		return style, nil
	}

	for name := range styles {
		if _, err := dfs(name); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

func parseColorResource(cmd *dsl.Command) (string, string) {
	if len(cmd.Args) == 0 {
		return "", ""
	}
	name := cmd.Args[0].Value
	value := ""
	if len(cmd.Args) > 1 {
		value = cmd.Args[len(cmd.Args)-1].Value
	}
	return name, value
}

type captureParams struct {
	orientation string
	width       float64
	padding     dom.Edges
	gap         float64
}

// resolveCaptureParams 解析 `capture A4 portrait width 1200px padding 24px gap 16px`。
func resolveCaptureParams(params []*dsl.Lexeme, defaultWidth float64) captureParams {
	if defaultWidth <= 0 {
		defaultWidth = defaultCaptureWidth
	}
	out := captureParams{width: defaultWidth}
	for i := 0; i < len(params); i++ {
		switch token := params[i].Value; token {
		case "portrait", "landscape":
			out.orientation = token
		case "width":
			if i+1 < len(params) {
				if w := parseLength(params[i+1].Value); w > 0 {
					out.width = w
				}
				i++
			}
		case "gap":
			if i+1 < len(params) {
				out.gap = parseLength(params[i+1].Value)
				i++
			}
		case "padding":
			var vals []string
			for j := i + 1; j < len(params) && len(vals) < 4; j++ {
				if !isLength(params[j].Value) {
					break
				}
				vals = append(vals, params[j].Value)
			}
			out.padding = parseEdges(strings.Join(vals, " "))
			i += len(vals)
		}
	}
	return out
}

// parseArgs 把参数拆成可选样式名与属性表。首个标识符只有在样式表中存在时才视为样式名。
func parseArgs(args []*dsl.Lexeme, styles map[string]Style) (string, map[string]string) {
	result := map[string]string{}
	if len(args) == 0 {
		return "", result
	}

	cursor := 0
	var style string
	if args[0].Type == "Ident" {
		if _, ok := styles[args[0].Value]; ok {
			style = args[0].Value
			cursor = 1
		}
	}

	for cursor < len(args) {
		key := args[cursor].Value
		if flagAttrs[key] {
			result[key] = "true"
			cursor++
			continue
		}
		if cursor+1 >= len(args) {
			break
		}
		if multiValueAttrs[key] {
			var vals []string
			j := cursor + 1
			for ; j < len(args) && len(vals) < 4 && isLength(args[j].Value); j++ {
				vals = append(vals, args[j].Value)
			}
			if len(vals) > 0 {
				result[key] = strings.Join(vals, " ")
				cursor = j
				continue
			}
		}
		result[key] = args[cursor+1].Value
		cursor += 2
	}

	return style, result
}

func mergeStyleAttributes(style string, inline map[string]string, styles map[string]Style) map[string]string {
	out := make(map[string]string)
	if style != "" {
		if s, ok := styles[style]; ok {
			for k, v := range s.Props {
				out[k] = v
			}
		}
	}
	for k, v := range inline {
		out[k] = v
	}
	return out
}

func extractText(block *dsl.Block) string {
	if block == nil {
		return ""
	}
	var builder strings.Builder
	for _, stmt := range block.Statements {
		if stmt.Text != nil {
			builder.WriteString(string(stmt.Text.Value))
		}
	}
	return builder.String()
}

func resolveFontResource(name string, res ResourceSet) (FontResource, error) {
	if font, ok := res.Fonts[name]; ok {
		return font, nil
	}
	if font, ok := res.Fonts[defaultFontName]; ok {
		return font, nil
	}
	for _, font := range res.Fonts {
		return font, nil
	}
	return FontResource{}, fmt.Errorf("字体 %s 未定义，且没有可用的默认字体", name)
}

func layoutLines(content string, width float64, font FontResource, fontSize, lineHeight float64, ts Typesetter, wrap string) ([]dom.Line, error) {
	lines, err := ts.LayoutLines(content, width, font, fontSize, lineHeight, wrap)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		height := fontSize
		if height <= 0 {
			height = lineHeight
		}
		lines = []dom.Line{{Content: "", Width: width, Height: height}}
	}
	leading := math.Max(lineHeight-fontSize, 0)
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = fontSize
		}
		if i == 0 {
			lines[i].GapBefore = 0
		} else if lines[i].GapBefore <= 0 {
			lines[i].GapBefore = leading
		}
	}
	return lines, nil
}

func normalizeWrap(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "", "auto", "anywhere", "overflow-wrap:anywhere", "overflow-anywhere":
		return "anywhere"
	case "break-word", "word-break:break-word":
		return "break-word"
	case "nowrap", "no-wrap":
		return "nowrap"
	case "normal":
		return "normal"
	default:
		return "anywhere"
	}
}

func normalizeAlign(v string) string {
	switch v = strings.ToLower(strings.TrimSpace(v)); v {
	case "start":
		return "left"
	case "end":
		return "right"
	case "left", "center", "right":
		return v
	default:
		return ""
	}
}

func resolveColor(value string, res ResourceSet) string {
	value = strings.TrimSpace(value)
	if c, ok := res.Colors[value]; ok {
		return c
	}
	return value
}

func splitClasses(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
}

func flagValue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "1", "on":
		return true
	default:
		return false
	}
}

func isLength(v string) bool {
	l := ParseRawLengthStr(v)
	return l.Value != 0 || strings.HasPrefix(strings.TrimSpace(v), "0")
}

// parseLength 把 DSL 长度转为 px；无单位数值按 px 处理。
func parseLength(value string) float64 {
	return ParseRawLengthStr(value).ToPX()
}

// parseEdges 采用 CSS 简写语义：1~4 个值。
func parseEdges(value string) dom.Edges {
	fields := strings.Fields(value)
	vals := make([]float64, 0, len(fields))
	for _, f := range fields {
		vals = append(vals, parseLength(f))
	}
	switch len(vals) {
	case 1:
		return dom.Uniform(vals[0])
	case 2:
		return dom.Edges{Top: vals[0], Right: vals[1], Bottom: vals[0], Left: vals[1]}
	case 3:
		return dom.Edges{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[1]}
	case 4:
		return dom.Edges{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[3]}
	default:
		return dom.Edges{}
	}
}

func valueToString(val *dsl.Value) string {
	if val == nil {
		return ""
	}
	switch {
	case val.String != nil:
		return string(*val.String)
	case val.Number != nil:
		return *val.Number
	case val.Color != nil:
		return *val.Color
	case val.Expr != nil:
		var builder strings.Builder
		for _, part := range val.Expr.Parts {
			builder.WriteString(part.Value)
		}
		return builder.String()
	default:
		return ""
	}
}

func valueToStringSlice(val *dsl.Value) []string {
	if val == nil {
		return nil
	}
	if val.Array != nil {
		out := make([]string, 0, len(val.Array.Values))
		for _, item := range val.Array.Values {
			if s := valueToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := valueToString(val); s != "" {
		return []string{s}
	}
	return nil
}
