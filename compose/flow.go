package compose

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/ByLCY/galley/binding"
	"github.com/ByLCY/galley/dsl"
	"github.com/ByLCY/galley/fonts"
	"github.com/ByLCY/galley/layout"
	"github.com/ByLCY/galley/paint"
	"github.com/ByLCY/galley/region"
	"github.com/ByLCY/galley/typeset"
)

// defaultFontSize 是未指定 size 时的字号（pt）。
const defaultFontSize = 11.0

// defaultRule 是 rule 的默认线宽（pt）。
const defaultRule = 0.5

// builder 把命令树翻译为渲染器树。
type builder struct {
	reg   *fonts.Registry
	res   *resources
	scope binding.Scope
	opts  Options
	font  string
	// missing 记录无法解析的占位符路径，背景层的副本共享同一个集合。
	missing map[string]bool
}

// frame 是命令所在的容器：可用宽度与继承的文本属性。
type frame struct {
	width float64
	attrs map[string]string
}

func (b *builder) expand(text string) string {
	out, missing := b.scope.Expand(text)
	for _, p := range missing {
		b.missing[p] = true
	}
	return out
}

// block 依次翻译容器中的语句，并把结果纵向排列。
// 赋值语句修改之后语句继承的文本属性。
func (b *builder) block(block *dsl.Block, fr frame) (layout.Renderer, error) {
	if block == nil {
		return layout.Empty, nil
	}
	var renderers []layout.Renderer
	for _, st := range block.Statements {
		switch {
		case st.Assignment != nil:
			attrs := maps.Clone(fr.attrs)
			if attrs == nil {
				attrs = map[string]string{}
			}
			attrs[st.Assignment.Key] = st.Assignment.Value.Text()
			fr.attrs = attrs
		case st.Text != nil:
			span, err := b.span(string(st.Text.Value), fr.attrs)
			if err != nil {
				return nil, err
			}
			p, err := b.paragraph(fr.attrs, []typeset.Span{span})
			if err != nil {
				return nil, err
			}
			renderers = append(renderers, layout.RenderParagraph(p))
		case st.Command != nil:
			r, err := b.command(st.Command, fr)
			if err != nil {
				return nil, err
			}
			renderers = append(renderers, r)
		}
	}
	return layout.Vertically(renderers...), nil
}

func (b *builder) command(cmd *dsl.Command, fr frame) (layout.Renderer, error) {
	switch cmd.Name {
	case "paragraph":
		return b.paragraphCmd(cmd, fr)
	case "text":
		return b.textCmd(cmd, fr)
	case "spacer":
		return b.spacerCmd(cmd)
	case "pagebreak":
		return layout.PageBreak, nil
	case "columns":
		return b.columnsCmd(cmd, fr)
	case "table":
		return b.tableCmd(cmd, fr)
	case "polygon":
		return b.polygonCmd(cmd, fr)
	case "rule":
		return b.ruleCmd(cmd, fr)
	default:
		return nil, cmd.Errorf("未知命令")
	}
}

// attrsOf 合并继承属性、具名样式或字体、行内参数，withBlock 为真时再合并块内赋值。
func (b *builder) attrsOf(cmd *dsl.Command, base map[string]string, withBlock bool) ([]string, map[string]string, error) {
	positional, inline, err := parseArgs(cmd.Args)
	if err != nil {
		return nil, nil, cmd.Errorf("%w", err)
	}
	out := map[string]string{}
	maps.Copy(out, base)
	if len(positional) > 0 {
		if props, ok := b.res.styles[positional[0]]; ok {
			maps.Copy(out, props)
			positional = positional[1:]
		} else if b.reg.Has(positional[0]) {
			out["font"] = positional[0]
			positional = positional[1:]
		}
	}
	maps.Copy(out, inline)
	if withBlock {
		for _, a := range cmd.Block.Assignments() {
			out[a.Key] = a.Value.Text()
		}
	}
	return positional, out, nil
}

func (b *builder) paragraphCmd(cmd *dsl.Command, fr frame) (layout.Renderer, error) {
	positional, attrs, err := b.attrsOf(cmd, fr.attrs, true)
	if err != nil {
		return nil, err
	}
	if len(positional) > 0 {
		return nil, cmd.Errorf("无法识别的参数：%s", strings.Join(positional, " "))
	}
	var spans []typeset.Span
	if cmd.Block != nil {
		for _, st := range cmd.Block.Statements {
			switch {
			case st.Text != nil:
				span, err := b.span(string(st.Text.Value), attrs)
				if err != nil {
					return nil, cmd.Errorf("%w", err)
				}
				spans = append(spans, span)
			case st.Command != nil && st.Command.Name == "span":
				span, err := b.spanCmd(st.Command, attrs)
				if err != nil {
					return nil, err
				}
				spans = append(spans, span)
			case st.Command != nil:
				return nil, st.Command.Errorf("段落中只能包含文本与 span")
			}
		}
	}
	p, err := b.paragraph(attrs, spans)
	if err != nil {
		return nil, cmd.Errorf("%w", err)
	}
	return layout.RenderParagraph(p), nil
}

func (b *builder) spanCmd(cmd *dsl.Command, base map[string]string) (typeset.Span, error) {
	positional, attrs, err := b.attrsOf(cmd, base, true)
	if err != nil {
		return typeset.Span{}, err
	}
	if len(positional) > 0 {
		return typeset.Span{}, cmd.Errorf("无法识别的参数：%s", strings.Join(positional, " "))
	}
	span, err := b.span(extractText(cmd.Block), attrs)
	if err != nil {
		return typeset.Span{}, cmd.Errorf("%w", err)
	}
	return span, nil
}

// textCmd 把块内每个字符串作为一个段落。
func (b *builder) textCmd(cmd *dsl.Command, fr frame) (layout.Renderer, error) {
	positional, attrs, err := b.attrsOf(cmd, fr.attrs, true)
	if err != nil {
		return nil, err
	}
	if len(positional) > 0 {
		return nil, cmd.Errorf("无法识别的参数：%s", strings.Join(positional, " "))
	}
	var paragraphs []layout.Paragraph
	if cmd.Block != nil {
		for _, st := range cmd.Block.Statements {
			if st.Command != nil {
				return nil, st.Command.Errorf("text 中只能包含字符串")
			}
			if st.Text == nil {
				continue
			}
			span, err := b.span(string(st.Text.Value), attrs)
			if err != nil {
				return nil, cmd.Errorf("%w", err)
			}
			p, err := b.paragraph(attrs, []typeset.Span{span})
			if err != nil {
				return nil, cmd.Errorf("%w", err)
			}
			paragraphs = append(paragraphs, p)
		}
	}
	return layout.RenderText(paragraphs...), nil
}

func (b *builder) spacerCmd(cmd *dsl.Command) (layout.Renderer, error) {
	if len(cmd.Args) != 1 {
		return nil, cmd.Errorf("spacer 需要一个高度")
	}
	h, err := parseLength(cmd.Args[0].Value)
	if err != nil {
		return nil, cmd.Errorf("%w", err)
	}
	if h < 0 {
		return nil, cmd.Errorf("%w: 高度不能为负数", layout.ErrInvalidGeometry)
	}
	return layout.Spacer(h), nil
}

// columnsCmd 翻译 `columns gap 6mm { column 40% { ... } column { ... } }`。
// 未指定宽度的栏平分剩余宽度。
func (b *builder) columnsCmd(cmd *dsl.Command, fr frame) (layout.Renderer, error) {
	_, args, err := parseArgs(cmd.Args)
	if err != nil {
		return nil, cmd.Errorf("%w", err)
	}
	gap, err := optionalLength(args["gap"])
	if err != nil {
		return nil, cmd.Errorf("%w", err)
	}
	var defs []*dsl.Command
	for _, sub := range cmd.Block.Commands() {
		if sub.Name != "column" {
			return nil, sub.Errorf("columns 中只能包含 column")
		}
		defs = append(defs, sub)
	}
	if len(defs) == 0 {
		return nil, cmd.Errorf("columns 至少需要一栏")
	}
	specs := make([]string, len(defs))
	for i, def := range defs {
		if len(def.Args) > 0 {
			specs[i] = def.Args[0].Value
		}
	}
	widths, err := allocate(specs, fr.width, gap)
	if err != nil {
		return nil, cmd.Errorf("%w", err)
	}
	cols := make([]layout.Column, len(defs))
	for i, def := range defs {
		r, err := b.block(def.Block, frame{width: widths[i], attrs: inheritable(fr.attrs)})
		if err != nil {
			return nil, err
		}
		cols[i] = layout.Column{Width: widths[i], Renderer: r}
	}
	return layout.RenderColumnsWith(b.combine(), gap, cols...), nil
}

// tableCmd 翻译 `table gap 4pt { widths: [30%, auto] row { cell { ... } } }`。
func (b *builder) tableCmd(cmd *dsl.Command, fr frame) (layout.Renderer, error) {
	_, args, err := parseArgs(cmd.Args)
	if err != nil {
		return nil, cmd.Errorf("%w", err)
	}
	gap, err := optionalLength(args["gap"])
	if err != nil {
		return nil, cmd.Errorf("%w", err)
	}
	var rowDefs []*dsl.Command
	cells := 0
	for _, sub := range cmd.Block.Commands() {
		if sub.Name != "row" {
			return nil, sub.Errorf("table 中只能包含 row")
		}
		rowDefs = append(rowDefs, sub)
		cells = max(cells, len(sub.Block.Commands()))
	}
	var specs []string
	if v, ok := cmd.Block.Lookup("widths"); ok {
		specs = v.Strings()
	} else {
		specs = make([]string, cells)
	}
	widths, err := allocate(specs, fr.width, gap)
	if err != nil {
		return nil, cmd.Errorf("%w", err)
	}
	rows := make([][]layout.Renderer, len(rowDefs))
	for i, rowDef := range rowDefs {
		for j, cell := range rowDef.Block.Commands() {
			if cell.Name != "cell" {
				return nil, cell.Errorf("row 中只能包含 cell")
			}
			if j >= len(widths) {
				return nil, cell.Errorf("单元格数量超过列数 %d", len(widths))
			}
			r, err := b.block(cell.Block, frame{width: widths[j], attrs: inheritable(fr.attrs)})
			if err != nil {
				return nil, err
			}
			rows[i] = append(rows[i], r)
		}
	}
	return layout.RenderTableWith(b.combine(), gap, widths, rows), nil
}

// polygonCmd 翻译 `polygon Accent { points: [[0, 0], [50%, 0], [50%, 4]] }`，坐标相对于放置区域左上角。
func (b *builder) polygonCmd(cmd *dsl.Command, fr frame) (layout.Renderer, error) {
	positional, attrs, err := b.attrsOf(cmd, nil, true)
	if err != nil {
		return nil, err
	}
	if len(positional) > 0 {
		return nil, cmd.Errorf("无法识别的参数：%s", strings.Join(positional, " "))
	}
	val, ok := cmd.Block.Lookup("points")
	if !ok {
		return nil, cmd.Errorf("polygon 缺少 points")
	}
	items := val.Items()
	if len(items) < 2 {
		return nil, cmd.Errorf("%w: polygon 至少需要两个点", layout.ErrInvalidGeometry)
	}
	points := make([]region.Point, len(items))
	for i, item := range items {
		xy := item.Strings()
		if len(xy) != 2 {
			return nil, cmd.Errorf("第 %d 个点应为 [x, y]", i+1)
		}
		x, err := parseDimension(xy[0], fr.width)
		if err != nil {
			return nil, cmd.Errorf("%w", err)
		}
		y, err := parseLength(xy[1])
		if err != nil {
			return nil, cmd.Errorf("%w", err)
		}
		points[i] = region.Point{X: x, Y: y}
	}
	style, err := b.paintStyle(attrs)
	if err != nil {
		return nil, cmd.Errorf("%w", err)
	}
	return layout.RenderPolygon(points, style), nil
}

// ruleCmd 画一条占满容器宽度的水平线，`rule 1pt color Accent`。
func (b *builder) ruleCmd(cmd *dsl.Command, fr frame) (layout.Renderer, error) {
	positional, attrs, err := b.attrsOf(cmd, nil, true)
	if err != nil {
		return nil, err
	}
	thickness := defaultRule
	if len(positional) > 0 {
		if thickness, err = parseLength(positional[0]); err != nil {
			return nil, cmd.Errorf("%w", err)
		}
	}
	if thickness <= 0 {
		return nil, cmd.Errorf("%w: 线宽必须为正数", layout.ErrInvalidGeometry)
	}
	if first(attrs, "color", "fill", "fillColor") == "" {
		attrs["color"] = "#000000"
	}
	style, err := b.paintStyle(attrs)
	if err != nil {
		return nil, cmd.Errorf("%w", err)
	}
	points := []region.Point{{X: 0, Y: 0}, {X: fr.width, Y: 0}, {X: fr.width, Y: thickness}, {X: 0, Y: thickness}}
	return layout.RenderPolygon(points, style), nil
}

func (b *builder) combine() layout.CombineOptions {
	return layout.CombineOptions{Concurrent: b.opts.Concurrent}
}

// span 由文本与属性构造 Span，文本中的占位符在此展开。
func (b *builder) span(text string, attrs map[string]string) (typeset.Span, error) {
	font := attrs["font"]
	if font == "" {
		font = b.font
	}
	if !b.reg.Has(font) {
		return typeset.Span{}, fmt.Errorf("字体 %s 未登记", font)
	}
	size := defaultFontSize
	if v := attrs["size"]; v != "" {
		var err error
		if size, err = parseLength(v); err != nil {
			return typeset.Span{}, err
		}
		if size <= 0 {
			return typeset.Span{}, fmt.Errorf("字号必须为正数：%s", v)
		}
	}
	style, err := b.paintStyle(attrs)
	if err != nil {
		return typeset.Span{}, err
	}
	hyphenate, err := parseBool(attrs["hyphenate"])
	if err != nil {
		return typeset.Span{}, err
	}
	return typeset.Span{
		FontFamily: font,
		FontSize:   size,
		Text:       b.expand(text),
		Hyphenate:  hyphenate,
		Style:      style,
	}, nil
}

// paragraph 由属性构造段落，行距按段内最大字号计算。
func (b *builder) paragraph(attrs map[string]string, spans []typeset.Span) (layout.Paragraph, error) {
	align, err := typeset.ParseAlign(attrs["align"])
	if err != nil {
		return layout.Paragraph{}, err
	}
	size := 0.0
	for _, s := range spans {
		size = max(size, s.FontSize)
	}
	if size == 0 {
		size = defaultFontSize
	}
	lh := layout.LineHeightSpec{Kind: layout.LineHeightFactor, Factor: layout.DefaultLineHeight}
	if v := attrs["leading"]; v != "" {
		if lh, err = layout.ParseLineHeight(v); err != nil {
			return layout.Paragraph{}, err
		}
	}
	var lengths [4]float64
	for i, key := range []string{"gap", "indent", "first", "right"} {
		if lengths[i], err = optionalLength(attrs[key]); err != nil {
			return layout.Paragraph{}, err
		}
	}
	gap, indent, firstLine, right := lengths[0], lengths[1], lengths[2], lengths[3]

	p := layout.Paragraph{
		Align:        align,
		Spans:        spans,
		Leading:      lh.Resolve(size),
		ParagraphGap: gap,
		Breaking:     b.opts.Breaking,
		Spacing:      b.opts.Spacing,
		Hyphenator:   b.opts.Hyphenator,
	}
	if v := attrs["tolerance"]; v != "" {
		if p.Tolerance, err = parseFloat(v); err != nil {
			return layout.Paragraph{}, err
		}
	}
	if indent != 0 || firstLine != 0 {
		p.LeftIndent = func(line int) float64 {
			if line == 0 {
				return indent + firstLine
			}
			return indent
		}
	}
	if right != 0 {
		p.RightIndent = func(int) float64 { return right }
	}
	return p, nil
}

// paintStyle 读取绘制属性，颜色可以引用 resources 中声明的颜色名。
func (b *builder) paintStyle(attrs map[string]string) (paint.Style, error) {
	var s paint.Style
	if v := first(attrs, "color", "fill", "fillColor"); v != "" {
		s.FillColor = b.color(v)
	}
	if v := first(attrs, "stroke", "strokeColor"); v != "" {
		s.StrokeColor = b.color(v)
	}
	if v := first(attrs, "width", "lineWidth"); v != "" {
		w, err := parseLength(v)
		if err != nil {
			return s, err
		}
		s.LineWidth = paint.Float(w)
	}
	for key, dst := range map[string]**float64{"fillOpacity": &s.FillOpacity, "strokeOpacity": &s.StrokeOpacity} {
		if v := attrs[key]; v != "" {
			f, err := parseFloat(v)
			if err != nil {
				return s, err
			}
			*dst = paint.Float(f)
		}
	}
	if v := attrs["lineJoin"]; v != "" {
		s.LineJoin = paint.LineJoin(v)
	}
	if v := attrs["lineCap"]; v != "" {
		s.LineCap = paint.LineCap(v)
	}
	return s, s.Validate()
}

func (b *builder) color(v string) string {
	if c, ok := b.res.colors[v]; ok {
		return c
	}
	return v
}

// allocate 计算各栏宽度，空值或 auto 平分剩余宽度。
func allocate(specs []string, total, gap float64) ([]float64, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("至少需要一栏")
	}
	widths := make([]float64, len(specs))
	remaining := total - float64(len(specs)-1)*gap
	auto := 0
	for i, spec := range specs {
		if spec == "" || spec == "auto" {
			auto++
			continue
		}
		w, err := parseDimension(spec, total)
		if err != nil {
			return nil, err
		}
		widths[i] = w
		remaining -= w
	}
	for i, spec := range specs {
		if spec == "" || spec == "auto" {
			widths[i] = remaining / float64(auto)
		}
	}
	for i, w := range widths {
		if w <= 0 {
			return nil, fmt.Errorf("%w: 第 %d 栏宽度 %.2fpt 非法", layout.ErrInvalidGeometry, i+1, w)
		}
	}
	return widths, nil
}

func optionalLength(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	return parseLength(v)
}

func parseBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("布尔值 %q 无法解析", v)
	}
	return b, nil
}

// extractText 拼接块内的字符串字面量。
func extractText(block *dsl.Block) string {
	if block == nil {
		return ""
	}
	var builder strings.Builder
	for _, st := range block.Statements {
		if st.Text != nil {
			builder.WriteString(string(st.Text.Value))
		}
	}
	return builder.String()
}
