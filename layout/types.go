// Package layout 是区域流上的排版引擎：段落渲染、纵向拼接、分栏与表格、
// 多渲染器合并以及分页。
//
// 渲染器是纯函数 (Measures, region.Stream) → Result，不修改任何共享状态。
// 所有坐标的单位都是 pt。
package layout

import (
	"encoding/json"
	"errors"

	"github.com/ByLCY/galley/paint"
	"github.com/ByLCY/galley/region"
	"github.com/ByLCY/galley/typeset"
)

var (
	// ErrLayoutInfeasible 表示放宽容差后仍无可行断行，结果来自强制断行。
	ErrLayoutInfeasible = errors.New("无可行断行")
	// ErrRegionExhausted 表示内容需要的区域超出了区域流能提供的范围。
	ErrRegionExhausted = errors.New("区域已耗尽")
	// ErrInvalidGeometry 表示区域尺寸非法或单个 box 比可用行宽更宽。
	ErrInvalidGeometry = errors.New("几何尺寸非法")
)

// Measures 是排版所需的字体测量服务。
// Ascender 与 LeftBearing 以 1000 单位的 em 为基准返回。
type Measures interface {
	typeset.Measurer
	Ascender(family string) float64
	LeftBearing(family string, glyph string) float64
}

// RenderNode 是 Text 或 Polygon。
type RenderNode interface {
	isRenderNode()
	// Origin 返回节点的绝对坐标，分页依据其 y 值。
	Origin() (x, y float64)
}

// Text 在 (X, Y) 处绘制文本，Y 是文本顶部（基线减去字体上升部）。
type Text struct {
	X    float64       `json:"x"`
	Y    float64       `json:"y"`
	Span *typeset.Span `json:"span"`
	Text string        `json:"text"`
}

// Polygon 绘制一个填充/描边多边形，Points 为绝对坐标。
type Polygon struct {
	X      float64        `json:"x"`
	Y      float64        `json:"y"`
	Points []region.Point `json:"points"`
	Style  paint.Style    `json:"style"`
}

func (Text) isRenderNode()    {}
func (Polygon) isRenderNode() {}

// Origin 实现 RenderNode。
func (t Text) Origin() (float64, float64) { return t.X, t.Y }

// Origin 实现 RenderNode。
func (p Polygon) Origin() (float64, float64) { return p.X, p.Y }

// MarshalJSON 附带 type 字段，便于调试输出区分节点类型。
func (t Text) MarshalJSON() ([]byte, error) {
	type alias Text
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{"text", alias(t)})
}

// MarshalJSON 附带 type 字段。
func (p Polygon) MarshalJSON() ([]byte, error) {
	type alias Polygon
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{"polygon", alias(p)})
}

// Report 汇总一次渲染中的降级与溢出情况，问题不会中断其他渲染器。
type Report struct {
	// Overflow 是因区域耗尽而未绘制的行数。
	Overflow int `json:"overflow"`
	// Degraded 是使用强制断行的段落数。
	Degraded int     `json:"degraded"`
	Issues   []error `json:"-"`
}

func (r *Report) add(err error) { r.Issues = append(r.Issues, err) }

// Merge 累加另一份报告。
func (r *Report) Merge(o Report) {
	r.Overflow += o.Overflow
	r.Degraded += o.Degraded
	r.Issues = append(r.Issues, o.Issues...)
}

// Err 合并所有问题，没有问题时返回 nil。可用 errors.Is 判断具体类型。
func (r Report) Err() error { return errors.Join(r.Issues...) }

// Messages 返回问题的文本描述。
func (r Report) Messages() []string {
	out := make([]string, 0, len(r.Issues))
	for _, err := range r.Issues {
		out = append(out, err.Error())
	}
	return out
}

// Result 是渲染器的输出：已占用的区域（按区域流顺序）与绝对定位的绘制节点。
type Result struct {
	Regions []region.Region `json:"regions"`
	Nodes   []RenderNode    `json:"nodes"`
	Report  Report          `json:"report"`
}

func (r *Result) append(o Result) {
	r.Regions = append(r.Regions, o.Regions...)
	r.Nodes = append(r.Nodes, o.Nodes...)
	r.Report.Merge(o.Report)
}

// Renderer 在区域流上排版并报告占用的区域。
type Renderer func(m Measures, s region.Stream) Result

// Empty 不占用任何区域。
func Empty(Measures, region.Stream) Result { return Result{} }
