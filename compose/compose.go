// Package compose 把文档描述语言的语法树组装为区域流与渲染器树，并完成分页。
//
// 一个 page 段落描述纸张、页边距与分栏，其中每个 flow 是在内容区域流上运行的一层，
// background 在每一页的整页区域上各运行一次，可以使用 ${page.number} 与 ${page.count}。
package compose

import (
	"fmt"
	"sort"

	"github.com/ByLCY/galley/binding"
	"github.com/ByLCY/galley/dsl"
	"github.com/ByLCY/galley/fonts"
	"github.com/ByLCY/galley/layout"
	"github.com/ByLCY/galley/region"
	"github.com/ByLCY/galley/typeset"
)

// DefaultCreator 是未在 meta 中指定 creator 时写入的值。
const DefaultCreator = "galley"

// DefaultFontName 是文档没有声明任何字体时默认字体登记所用的名称。
const DefaultFontName = "Body"

// Options 控制组装与排版。
type Options struct {
	Breaking   typeset.Options
	Spacing    typeset.FormatOptions
	Hyphenator typeset.Hyphenator
	// Concurrent 为真时分栏与表格的各栏并发排版。
	Concurrent bool
	Creator    string
}

// DefaultOptions 返回默认参数：软连字符断字，顺序排版。
func DefaultOptions() Options {
	return Options{
		Breaking:   typeset.DefaultOptions(),
		Spacing:    typeset.DefaultFormatOptions(),
		Hyphenator: typeset.Soft{},
		Creator:    DefaultCreator,
	}
}

// Plan 是组装好、尚未运行的排版任务。
type Plan struct {
	Format region.Format
	Meta   layout.Meta
	// Jobs 是各个 flow 层，按声明顺序绘制。
	Jobs []layout.Job
	// Missing 是无法从数据中解析的占位符路径。
	Missing []string

	geometry   pageGeometry
	background func(page, count int) (layout.Renderer, error)
}

// Compile 登记文档声明的字体并构造排版任务。
func Compile(doc *dsl.Document, data any, reg *fonts.Registry, opts Options) (*Plan, error) {
	if doc == nil {
		return nil, fmt.Errorf("文档为空")
	}
	if reg == nil {
		return nil, fmt.Errorf("缺少字体注册表")
	}
	if opts.Creator == "" {
		opts.Creator = DefaultCreator
	}

	res, err := collectResources(doc, reg)
	if err != nil {
		return nil, err
	}
	if reg.Fallback() == "" {
		if err := reg.Register(DefaultFontName, fonts.DefaultFont); err != nil {
			return nil, err
		}
	}
	b := &builder{
		reg:     reg,
		res:     res,
		scope:   binding.NewScope(data),
		opts:    opts,
		font:    reg.Fallback(),
		missing: map[string]bool{},
	}
	if len(res.fonts) > 0 {
		b.font = res.fonts[0]
	}

	pages := doc.Pages()
	switch {
	case len(pages) == 0:
		return nil, fmt.Errorf("文档中缺少 page 段落")
	case len(pages) > 1:
		return nil, fmt.Errorf("只支持一个 page 段落，实际 %d 个", len(pages))
	}
	section := pages[0]
	geo, err := resolvePage(section.Spec)
	if err != nil {
		return nil, fmt.Errorf("%d:%d page: %w", section.Pos.Line, section.Pos.Column, err)
	}

	plan := &Plan{Format: geo.format, Meta: b.collectMeta(doc), geometry: geo}
	for _, st := range section.Block.Statements {
		cmd := st.Command
		if cmd == nil {
			return nil, fmt.Errorf("%d:%d page 段落中只能包含 flow 与 background", section.Pos.Line, section.Pos.Column)
		}
		_, attrs, err := b.attrsOf(cmd, nil, false)
		if err != nil {
			return nil, err
		}
		switch cmd.Name {
		case "flow":
			r, err := b.block(cmd.Block, frame{width: geo.columnWidth(), attrs: inheritable(attrs)})
			if err != nil {
				return nil, err
			}
			plan.Jobs = append(plan.Jobs, layout.Job{Stream: geo.stream(), Renderer: r})
		case "background":
			if plan.background != nil {
				return nil, cmd.Errorf("只能有一个 background")
			}
			plan.background = b.backgroundFor(cmd.Block, data, frame{width: geo.format.Width, attrs: inheritable(attrs)})
			// 先以第一页检查一次，让错误在排版前暴露。
			if _, err := plan.background(0, 1); err != nil {
				return nil, err
			}
		default:
			return nil, cmd.Errorf("page 段落中只能包含 flow 与 background")
		}
	}
	plan.Missing = b.missingPaths()
	return plan, nil
}

// backgroundFor 返回按页构造背景渲染器的函数，每页的作用域带有页码。
func (b *builder) backgroundFor(block *dsl.Block, data any, fr frame) func(page, count int) (layout.Renderer, error) {
	return func(page, count int) (layout.Renderer, error) {
		pb := *b
		pb.scope = binding.Scope{
			"data": data,
			"page": map[string]any{"number": page + 1, "count": count},
		}
		return pb.block(block, fr)
	}
}

func (b *builder) missingPaths() []string {
	out := make([]string, 0, len(b.missing))
	for p := range b.missing {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Layout 运行全部 flow 层并分页；存在背景层时按页数为每页运行一次，背景绘制在最底层。
func (p *Plan) Layout(m layout.Measures) (*layout.Document, error) {
	if p.background == nil {
		return layout.Layout(p.Format, p.Meta, m, p.Jobs...), nil
	}
	layers, report := layout.Run(m, p.Jobs...)
	count := max(len(layout.Paginate(p.Format.Height, layers...)), 1)
	jobs := make([]layout.Job, count)
	for i := range jobs {
		r, err := p.background(i, count)
		if err != nil {
			return nil, err
		}
		jobs[i] = layout.Job{Stream: region.Slice{p.geometry.pageBox(i)}, Renderer: r}
	}
	bgLayers, bgReport := layout.Run(m, jobs...)
	report.Merge(bgReport)
	pages := layout.Paginate(p.Format.Height, append(bgLayers, layers...)...)
	return &layout.Document{
		Format: p.Format,
		Meta:   p.Meta,
		Pages:  pages,
		Report: report,
	}, nil
}

// Build 组装并排版文档，测量由字体注册表提供。
func Build(doc *dsl.Document, data any, reg *fonts.Registry, opts Options) (*layout.Document, *Plan, error) {
	plan, err := Compile(doc, data, reg, opts)
	if err != nil {
		return nil, nil, err
	}
	out, err := plan.Layout(reg)
	if err != nil {
		return nil, nil, err
	}
	return out, plan, nil
}
