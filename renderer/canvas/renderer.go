package canvasrenderer

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/galley/fonts"
	"github.com/ByLCY/galley/layout"
	"github.com/ByLCY/galley/paint"
	"github.com/ByLCY/galley/renderer"
)

// Renderer draws paginated documents into a PDF via github.com/tdewolff/canvas.
// Layout coordinates are in pt; canvas works in mm, so every coordinate is converted at the boundary.
type Renderer struct {
	fonts *fonts.Registry

	fontMu       sync.Mutex
	fontFamilies map[string]*canvas.FontFamily
}

var _ renderer.Renderer = (*Renderer)(nil)

// NewRenderer creates a PDF renderer that resolves span font families through reg.
func NewRenderer(reg *fonts.Registry) *Renderer {
	return &Renderer{
		fonts:        reg,
		fontFamilies: map[string]*canvas.FontFamily{},
	}
}

// Render renders the document into a PDF byte slice.
func (r *Renderer) Render(doc *layout.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}
	width, height := toMm(doc.Format.Width), toMm(doc.Format.Height)

	var buf bytes.Buffer
	opts := pdf.DefaultOptions
	// 子集化会重写 CFF 字形程序，内置的 Latin Modern 在部分字形上无法通过
	opts.SubsetFonts = false
	writer := pdf.New(&buf, width, height, &opts)
	r.applyMeta(writer, doc.Meta)
	for i, page := range doc.Pages {
		if i > 0 {
			writer.NewPage(width, height)
		}
		c := canvas.New(width, height)
		ctx := canvas.NewContext(c)
		ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点

		if err := r.drawPage(ctx, page); err != nil {
			return nil, fmt.Errorf("绘制第 %d 页失败: %w", page.Index+1, err)
		}
		if err := guard(func() error { c.RenderTo(writer); return nil }); err != nil {
			return nil, fmt.Errorf("绘制第 %d 页失败: %w", page.Index+1, err)
		}
	}

	if err := guard(writer.Close); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// guard 把 PDF 写入器内部的 panic 转换为错误。
func guard(fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%v", v)
		}
	}()
	return fn()
}

func (r *Renderer) applyMeta(writer *pdf.PDF, meta layout.Meta) {
	writer.SetInfo(meta.Title, meta.Subject, meta.Keywords, meta.Author, meta.Creator)
}

func (r *Renderer) drawPage(ctx *canvas.Context, page layout.Page) error {
	for _, node := range page.Nodes {
		var err error
		switch n := node.(type) {
		case layout.Text:
			err = r.drawText(ctx, n)
		case layout.Polygon:
			err = drawPolygon(ctx, n)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) drawText(ctx *canvas.Context, t layout.Text) error {
	if t.Span == nil || t.Text == "" {
		return nil
	}
	col, err := renderer.TextFill(t)
	if err != nil {
		return err
	}
	family, err := r.fontFamily(t.Span.FontFamily)
	if err != nil {
		return err
	}
	face := family.Face(t.Span.FontSize, col, canvas.FontRegular, canvas.FontNormal)
	line := canvas.NewTextLine(face, t.Text, canvas.Left)

	// 节点 y 是文本顶部，基线 = 顶部 + 上升部
	baseline := t.Y + r.fonts.Ascender(t.Span.FontFamily)/1000*t.Span.FontSize
	ctx.DrawText(toMm(t.X), toMm(baseline), line)
	return nil
}

func drawPolygon(ctx *canvas.Context, p layout.Polygon) error {
	if len(p.Points) < 2 {
		return nil
	}
	fill, hasFill, err := p.Style.Fill()
	if err != nil {
		return err
	}
	stroke, hasStroke, err := p.Style.Stroke()
	if err != nil {
		return err
	}
	if !hasFill && !hasStroke {
		return nil
	}

	path := &canvas.Path{}
	path.MoveTo(toMm(p.Points[0].X), toMm(p.Points[0].Y))
	for _, pt := range p.Points[1:] {
		path.LineTo(toMm(pt.X), toMm(pt.Y))
	}
	path.Close()

	ctx.Push()
	defer ctx.Pop()
	if hasFill {
		ctx.SetFillColor(fill)
	} else {
		ctx.SetFillColor(canvas.Transparent)
	}
	if hasStroke {
		ctx.SetStrokeColor(stroke)
		ctx.SetStrokeWidth(toMm(p.Style.Width()))
		ctx.SetStrokeJoiner(joiner(p.Style.LineJoin))
		ctx.SetStrokeCapper(capper(p.Style.LineCap))
	} else {
		ctx.SetStrokeColor(canvas.Transparent)
	}
	ctx.DrawPath(0, 0, path)
	return nil
}

func joiner(j paint.LineJoin) canvas.Joiner {
	switch j {
	case paint.JoinRound:
		return canvas.RoundJoin
	case paint.JoinBevel:
		return canvas.BevelJoin
	default:
		return canvas.MiterJoin
	}
}

func capper(c paint.LineCap) canvas.Capper {
	switch c {
	case paint.CapRound:
		return canvas.RoundCap
	case paint.CapSquare:
		return canvas.SquareCap
	default:
		return canvas.ButtCap
	}
}

// fontFamily 返回字体对应的 canvas 字体族，按注册表中的实际字体缓存。
func (r *Renderer) fontFamily(name string) (*canvas.FontFamily, error) {
	face, err := r.fonts.Lookup(name)
	if err != nil {
		return nil, err
	}
	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	if family, ok := r.fontFamilies[face.Name]; ok {
		return family, nil
	}
	family := canvas.NewFontFamily(face.Name)
	if err := family.LoadFont(face.Data, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("加载字体 %s 失败: %w", face.Src, err)
	}
	r.fontFamilies[face.Name] = family
	return family, nil
}

// toMm 将点(pt)转换为毫米(mm)。
func toMm(pt float64) float64 { return pt * layout.PtToMm }
