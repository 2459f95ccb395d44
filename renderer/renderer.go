package renderer

import (
	"image/color"

	"github.com/ByLCY/galley/layout"
)

// Renderer 将分页结果输出为最终文件，例如 PDF 或图像。
// Render 返回生成的二进制数据（例如 PDF 字节切片）以及可能的错误。
type Renderer interface {
	Render(doc *layout.Document) ([]byte, error)
}

// TextColor 是文本未指定填充色时使用的颜色。
var TextColor = color.NRGBA{A: 0xff}

// TextFill 返回文本节点的填充色：span 样式的填充色，缺省为 TextColor。
func TextFill(t layout.Text) (color.NRGBA, error) {
	if t.Span == nil {
		return TextColor, nil
	}
	c, ok, err := t.Span.Style.Fill()
	if err != nil {
		return color.NRGBA{}, err
	}
	if !ok {
		return TextColor, nil
	}
	return c, nil
}
