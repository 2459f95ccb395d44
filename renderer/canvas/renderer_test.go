package canvasrenderer

import (
	"bytes"
	"errors"
	"strings"
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
	span := &typeset.Span{FontFamily: "Body", FontSize: 12, Style: paint.Style{FillColor: "#333"}}
	return &layout.Document{
		Format: region.Formats["A5"],
		Meta:   layout.Meta{Title: "样例", Author: "galley"},
		Pages: []layout.Page{
			{Index: 0, Nodes: []layout.RenderNode{
				layout.Text{X: 40, Y: 40, Span: span, Text: "Hello"},
				layout.Polygon{Points: []region.Point{{X: 10, Y: 10}, {X: 100, Y: 10}, {X: 100, Y: 30}}, Style: paint.Style{FillColor: "#eee", StrokeColor: "#000", LineJoin: paint.JoinRound}},
			}},
			{Index: 1, Nodes: []layout.RenderNode{
				layout.Text{X: 40, Y: 40, Span: span, Text: "World"},
			}},
		},
	}
}

// TestRenderProducesPDF 输出以 PDF 文件头开头。
func TestRenderProducesPDF(t *testing.T) {
	r := NewRenderer(newRegistry(t))
	data, err := r.Render(sampleDocument())
	if err != nil {
		t.Fatalf("渲染失败: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("输出不是 PDF: %q", data[:min(len(data), 16)])
	}
}

func TestRenderRejectsEmptyDocument(t *testing.T) {
	r := NewRenderer(newRegistry(t))
	if _, err := r.Render(nil); err == nil {
		t.Fatalf("空文档应报错")
	}
	if _, err := r.Render(&layout.Document{Format: region.Formats["A4"]}); err == nil {
		t.Fatalf("没有页面时应报错")
	}
}

// TestRenderReportsBadColor 非法颜色在绘制时返回错误，并指出页码。
func TestRenderReportsBadColor(t *testing.T) {
	doc := sampleDocument()
	doc.Pages[1].Nodes = append(doc.Pages[1].Nodes, layout.Polygon{
		Points: []region.Point{{X: 0, Y: 0}, {X: 1, Y: 1}},
		Style:  paint.Style{FillColor: "#zzzzzz"},
	})
	if _, err := NewRenderer(newRegistry(t)).Render(doc); err == nil {
		t.Fatalf("非法颜色应报错")
	}
}

// TestFontFamilyCached 同一字体只加载一次，未知字体回退到已登记字体。
func TestFontFamilyCached(t *testing.T) {
	r := NewRenderer(newRegistry(t))
	a, err := r.fontFamily("Body")
	if err != nil {
		t.Fatalf("加载字体失败: %v", err)
	}
	b, err := r.fontFamily("Unknown")
	if err != nil {
		t.Fatalf("回退字体失败: %v", err)
	}
	if a != b {
		t.Fatalf("回退字体应复用缓存的字体族")
	}
}

func TestJoinerAndCapper(t *testing.T) {
	if joiner(paint.JoinRound) == joiner(paint.JoinBevel) {
		t.Fatalf("round 与 bevel 应映射到不同的连接方式")
	}
	if capper(paint.CapSquare) == capper("") {
		t.Fatalf("square 与默认端点应不同")
	}
}

func TestToMm(t *testing.T) {
	if got := toMm(72); got < 25.39 || got > 25.41 {
		t.Fatalf("72pt 应约等于 25.4mm，实际 %g", got)
	}
}

// TestRenderDefaultFontSymbols 默认字体下美元符号等全部可打印 ASCII 字符都能写入 PDF。
func TestRenderDefaultFontSymbols(t *testing.T) {
	var ascii strings.Builder
	for c := '!'; c <= '~'; c++ {
		ascii.WriteRune(c)
	}
	span := &typeset.Span{FontFamily: "Body", FontSize: 10}
	for _, text := range []string{"$", "${data.missing}", ascii.String()} {
		doc := &layout.Document{
			Format: region.Formats["A5"],
			Pages: []layout.Page{{Nodes: []layout.RenderNode{
				layout.Text{X: 20, Y: 20, Span: span, Text: text},
			}}},
		}
		data, err := NewRenderer(newRegistry(t)).Render(doc)
		if err != nil {
			t.Fatalf("渲染 %q 失败: %v", text, err)
		}
		if !bytes.HasPrefix(data, []byte("%PDF-")) {
			t.Fatalf("渲染 %q 的输出不是 PDF", text)
		}
	}
}

// TestGuardRecoversPanic 写入器内部的 panic 转换为错误，普通错误原样返回。
func TestGuardRecoversPanic(t *testing.T) {
	err := guard(func() error { panic("CFF: bad number of operands") })
	if err == nil || !strings.Contains(err.Error(), "bad number of operands") {
		t.Fatalf("panic 应转换为错误，实际 %v", err)
	}
	want := errors.New("磁盘已满")
	if got := guard(func() error { return want }); !errors.Is(got, want) {
		t.Fatalf("普通错误应原样返回，实际 %v", got)
	}
	if err := guard(func() error { return nil }); err != nil {
		t.Fatalf("无错误时应返回 nil: %v", err)
	}
}
