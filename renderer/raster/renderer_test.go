package raster

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/ByLCY/galley/fonts"
	"github.com/ByLCY/galley/layout"
	"github.com/ByLCY/galley/paint"
	"github.com/ByLCY/galley/region"
	"github.com/ByLCY/galley/typeset"
)

func newRegistry(t *testing.T) *fonts.Registry {
	t.Helper()
	reg := fonts.NewRegistry("")
	if err := reg.Register("Body", fonts.DefaultFont); err != nil {
		t.Fatalf("登记字体失败: %v", err)
	}
	return reg
}

func sampleDocument() *layout.Document {
	span := &typeset.Span{FontFamily: "Body", FontSize: 10}
	square := []region.Point{{X: 10, Y: 10}, {X: 30, Y: 10}, {X: 30, Y: 30}, {X: 10, Y: 30}}
	return &layout.Document{
		Format: region.Format{Width: 100, Height: 50},
		Pages: []layout.Page{
			{Index: 0, Nodes: []layout.RenderNode{
				layout.Polygon{X: 10, Y: 10, Points: square, Style: paint.Style{FillColor: "#ff0000"}},
				layout.Text{X: 40, Y: 10, Span: span, Text: "Hi"},
			}},
			{Index: 1},
		},
	}
}

// TestRenderPagesSizeAndFill 每页图像尺寸按比例放大，多边形内部为填充色。
func TestRenderPagesSizeAndFill(t *testing.T) {
	r := NewRenderer(newRegistry(t), 2)
	pages, err := r.RenderPages(sampleDocument())
	if err != nil {
		t.Fatalf("渲染失败: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("期望 2 页，实际 %d", len(pages))
	}
	img, err := png.Decode(bytes.NewReader(pages[0]))
	if err != nil {
		t.Fatalf("解码 PNG 失败: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Fatalf("图像尺寸错误: %v", b)
	}
	got := color.NRGBAModel.Convert(img.At(40, 40)).(color.NRGBA)
	if got.R != 0xff || got.G != 0 || got.B != 0 {
		t.Fatalf("多边形内部应为红色，实际 %+v", got)
	}
	corner := color.NRGBAModel.Convert(img.At(1, 1)).(color.NRGBA)
	if corner != (color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
		t.Fatalf("页面背景应为白色，实际 %+v", corner)
	}
}

// TestRenderStacksPages 单张输出按页纵向拼接。
func TestRenderStacksPages(t *testing.T) {
	data, err := NewRenderer(newRegistry(t), 1).Render(sampleDocument())
	if err != nil {
		t.Fatalf("渲染失败: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("解码 PNG 失败: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 2*50+pageGap {
		t.Fatalf("拼接尺寸错误: %v", b)
	}
}

func TestRenderErrors(t *testing.T) {
	r := NewRenderer(newRegistry(t), 0)
	if r.scale != DefaultScale {
		t.Fatalf("缩放比例应回退为默认值，实际 %g", r.scale)
	}
	if _, err := r.Render(nil); err == nil {
		t.Fatalf("空文档应报错")
	}
	doc := sampleDocument()
	doc.Pages[0].Nodes = append(doc.Pages[0].Nodes, layout.Polygon{
		Points: []region.Point{{X: 0, Y: 0}, {X: 5, Y: 5}},
		Style:  paint.Style{StrokeColor: "nope"},
	})
	if _, err := r.RenderPages(doc); err == nil {
		t.Fatalf("非法颜色应报错")
	}
}
