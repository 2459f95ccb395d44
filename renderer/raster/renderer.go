// Package raster 把分页结果绘制为 PNG 图像，用于预览。
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/ByLCY/galley/fonts"
	"github.com/ByLCY/galley/layout"
	"github.com/ByLCY/galley/paint"
	"github.com/ByLCY/galley/renderer"
)

// DefaultScale 是每 pt 对应的像素数。
const DefaultScale = 2.0

// pageGap 是 Render 纵向拼接多页时页与页之间的像素间隔。
const pageGap = 16

type faceKey struct {
	family string
	size   float64
}

// Renderer 使用 fogleman/gg 绘制页面。
type Renderer struct {
	fonts *fonts.Registry
	scale float64

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

var _ renderer.Renderer = (*Renderer)(nil)

// NewRenderer 创建光栅输出，scale 不大于 0 时使用 DefaultScale。
func NewRenderer(reg *fonts.Registry, scale float64) *Renderer {
	if scale <= 0 {
		scale = DefaultScale
	}
	return &Renderer{fonts: reg, scale: scale, faces: map[faceKey]font.Face{}}
}

// Render 把所有页面纵向拼接为一张 PNG。
func (r *Renderer) Render(doc *layout.Document) ([]byte, error) {
	pages, err := r.RenderImages(doc)
	if err != nil {
		return nil, err
	}
	w, h := 0, 0
	for i, p := range pages {
		b := p.Bounds()
		w = max(w, b.Dx())
		h += b.Dy()
		if i > 0 {
			h += pageGap
		}
	}
	sheet := gg.NewContext(w, h)
	sheet.SetColor(color.NRGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff})
	sheet.Clear()
	y := 0
	for _, p := range pages {
		sheet.DrawImage(p, 0, y)
		y += p.Bounds().Dy() + pageGap
	}
	var buf bytes.Buffer
	if err := sheet.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("编码 PNG 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderPages 为每一页生成一张 PNG。
func (r *Renderer) RenderPages(doc *layout.Document) ([][]byte, error) {
	pages, err := r.RenderImages(doc)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(pages))
	for i, p := range pages {
		var buf bytes.Buffer
		if err := gg.NewContextForImage(p).EncodePNG(&buf); err != nil {
			return nil, fmt.Errorf("编码第 %d 页 PNG 失败: %w", i+1, err)
		}
		out[i] = buf.Bytes()
	}
	return out, nil
}

// RenderImages 为每一页生成一张图像。
func (r *Renderer) RenderImages(doc *layout.Document) ([]image.Image, error) {
	if doc == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}
	w := int(math.Ceil(doc.Format.Width * r.scale))
	h := int(math.Ceil(doc.Format.Height * r.scale))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("纸张尺寸非法: %gx%g", doc.Format.Width, doc.Format.Height)
	}
	out := make([]image.Image, 0, len(doc.Pages))
	for _, page := range doc.Pages {
		dc := gg.NewContext(w, h)
		dc.SetColor(color.White)
		dc.Clear()
		for _, node := range page.Nodes {
			var err error
			switch n := node.(type) {
			case layout.Text:
				err = r.drawText(dc, n)
			case layout.Polygon:
				err = r.drawPolygon(dc, n)
			}
			if err != nil {
				return nil, fmt.Errorf("绘制第 %d 页失败: %w", page.Index+1, err)
			}
		}
		out = append(out, dc.Image())
	}
	return out, nil
}

func (r *Renderer) drawText(dc *gg.Context, t layout.Text) error {
	if t.Span == nil || t.Text == "" {
		return nil
	}
	col, err := renderer.TextFill(t)
	if err != nil {
		return err
	}
	face, err := r.face(t.Span.FontFamily, t.Span.FontSize*r.scale)
	if err != nil {
		return err
	}
	baseline := t.Y + r.fonts.Ascender(t.Span.FontFamily)/1000*t.Span.FontSize
	dc.SetFontFace(face)
	dc.SetColor(col)
	dc.DrawString(t.Text, t.X*r.scale, baseline*r.scale)
	return nil
}

func (r *Renderer) drawPolygon(dc *gg.Context, p layout.Polygon) error {
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
	dc.Push()
	defer dc.Pop()
	dc.NewSubPath()
	for i, pt := range p.Points {
		if i == 0 {
			dc.MoveTo(pt.X*r.scale, pt.Y*r.scale)
			continue
		}
		dc.LineTo(pt.X*r.scale, pt.Y*r.scale)
	}
	dc.ClosePath()
	if hasFill {
		dc.SetColor(fill)
		dc.FillPreserve()
	}
	if hasStroke {
		dc.SetColor(stroke)
		dc.SetLineWidth(p.Style.Width() * r.scale)
		dc.SetLineJoin(lineJoin(p.Style.LineJoin))
		dc.SetLineCap(lineCap(p.Style.LineCap))
		dc.StrokePreserve()
	}
	dc.ClearPath()
	return nil
}

func (r *Renderer) face(family string, size float64) (font.Face, error) {
	key := faceKey{family: family, size: size}
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.faces[key]; ok {
		return f, nil
	}
	f, err := r.fonts.NewFace(family, size)
	if err != nil {
		return nil, fmt.Errorf("创建字体 %s 失败: %w", family, err)
	}
	r.faces[key] = f
	return f, nil
}

// lineJoin 把 miter 映射为 round，gg 不支持 miter 连接。
func lineJoin(j paint.LineJoin) gg.LineJoin {
	if j == paint.JoinBevel {
		return gg.LineJoinBevel
	}
	return gg.LineJoinRound
}

func lineCap(c paint.LineCap) gg.LineCap {
	switch c {
	case paint.CapButt, "":
		return gg.LineCapButt
	case paint.CapSquare:
		return gg.LineCapSquare
	default:
		return gg.LineCapRound
	}
}
