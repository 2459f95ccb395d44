package compose

import (
	"fmt"
	"strconv"

	"github.com/ByLCY/galley/dsl"
	"github.com/ByLCY/galley/layout"
	"github.com/ByLCY/galley/region"
)

// defaultMargin 是未指定 margin 时四边的页边距。
const defaultMargin = 20 * layout.MmToPt

// pageGeometry 是 page 段落头部描述的纸张、页边距与分栏。
type pageGeometry struct {
	format  region.Format
	margins region.Margins
	columns int
	gap     float64
}

// resolvePage 解析 `A4 landscape margin 20mm 15mm columns 2 gap 8mm`。
func resolvePage(spec dsl.PageSpec) (pageGeometry, error) {
	format, err := region.LookupFormat(spec.Size)
	if err != nil {
		return pageGeometry{}, err
	}
	geo := pageGeometry{margins: region.Uniform(defaultMargin), columns: 1}
	landscape := false
	params := spec.Params
	for i := 0; i < len(params); i++ {
		switch params[i].Value {
		case "landscape":
			landscape = true
		case "portrait":
			landscape = false
		case "margin":
			var vals []float64
			for j := i + 1; j < len(params) && len(vals) < 4; j++ {
				v, err := parseLength(params[j].Value)
				if err != nil {
					break
				}
				vals = append(vals, v)
			}
			if len(vals) == 0 {
				return pageGeometry{}, fmt.Errorf("margin 缺少取值")
			}
			geo.margins = cssMargins(vals)
			i += len(vals)
		case "columns":
			if i+1 >= len(params) {
				return pageGeometry{}, fmt.Errorf("columns 缺少取值")
			}
			n, err := strconv.Atoi(params[i+1].Value)
			if err != nil || n < 1 {
				return pageGeometry{}, fmt.Errorf("栏数必须为正整数：%s", params[i+1].Value)
			}
			geo.columns = n
			i++
		case "gap":
			if i+1 >= len(params) {
				return pageGeometry{}, fmt.Errorf("gap 缺少取值")
			}
			v, err := parseLength(params[i+1].Value)
			if err != nil {
				return pageGeometry{}, err
			}
			geo.gap = v
			i++
		default:
			return pageGeometry{}, fmt.Errorf("无法识别的页面参数：%s", params[i].Value)
		}
	}
	if landscape {
		format = format.Landscape()
	}
	geo.format = format
	if geo.columnWidth() <= 0 || geo.contentHeight() <= 0 {
		return pageGeometry{}, fmt.Errorf("%w: 页边距超出纸张尺寸", layout.ErrInvalidGeometry)
	}
	return geo, nil
}

// cssMargins 按 CSS 的 1 到 4 值语义展开页边距。
func cssMargins(vals []float64) region.Margins {
	switch len(vals) {
	case 1:
		return region.Uniform(vals[0])
	case 2:
		return region.Margins{Top: vals[0], Right: vals[1], Bottom: vals[0], Left: vals[1]}
	case 3:
		return region.Margins{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[1]}
	default:
		return region.Margins{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[3]}
	}
}

func (g pageGeometry) stream() region.Stream {
	return region.Columns(g.format, g.columns, g.gap, g.margins)
}

func (g pageGeometry) columnWidth() float64 {
	content := g.format.Width - (g.margins.Left + g.margins.Right)
	return (content - float64(g.columns-1)*g.gap) / float64(g.columns)
}

func (g pageGeometry) contentHeight() float64 {
	return g.format.Height - (g.margins.Top + g.margins.Bottom)
}

// pageBox 是第 page 页的整页区域，用于背景层。
func (g pageGeometry) pageBox(page int) region.Region {
	return region.Region{
		Tag:    region.TagNewPage,
		Y:      float64(page) * g.format.Height,
		Width:  g.format.Width,
		Height: g.format.Height,
	}
}
