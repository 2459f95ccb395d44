// Package region 定义排版区域（矩形）以及按下标拉取区域的流。
//
// 坐标系以左上角为原点、y 向下增长，单位为 pt。多页文档把所有页面竖直
// 拼接在同一个坐标空间里：第 i 页的区域位于 y ∈ [i·pageHeight, (i+1)·pageHeight)。
package region

import "math"

// Epsilon 是区域比较时允许的误差。
const Epsilon = 0.001

// TagNewPage 标记一页中的第一个区域，PageBreak 依赖它定位下一页。
const TagNewPage = "new_page"

// Region 是一个可放置内容的矩形。
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Tag    string  `json:"tag,omitempty"`
}

// Point 是二维坐标。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Right 返回右边界。
func (r Region) Right() float64 { return r.X + r.Width }

// Bottom 返回下边界。
func (r Region) Bottom() float64 { return r.Y + r.Height }

// Valid 报告宽高是否均为正数。
func (r Region) Valid() bool { return r.Width > 0 && r.Height > 0 }

// Intersects 报告两个矩形是否相交，边界相接也算相交。
func (r Region) Intersects(o Region) bool {
	return !(r.Right() < o.X || r.Bottom() < o.Y || o.Right() < r.X || o.Bottom() < r.Y)
}

// Overlaps 报告两个矩形是否有正面积的公共部分。
// 面积为零的矩形退化为包含判断，这样贴着区域边界的空结果仍能归属到原区域。
func (r Region) Overlaps(o Region) bool {
	if r.Width <= 0 || r.Height <= 0 {
		return o.Contains(r)
	}
	if o.Width <= 0 || o.Height <= 0 {
		return r.Contains(o)
	}
	return math.Min(r.Right(), o.Right())-math.Max(r.X, o.X) > Epsilon &&
		math.Min(r.Bottom(), o.Bottom())-math.Max(r.Y, o.Y) > Epsilon
}

// Contains 报告 o 是否完全落在 r 内（允许 Epsilon 误差）。
func (r Region) Contains(o Region) bool {
	return o.X >= r.X-Epsilon && o.Y >= r.Y-Epsilon &&
		o.Right() <= r.Right()+Epsilon && o.Bottom() <= r.Bottom()+Epsilon
}

// Equal 在 Epsilon 误差内比较位置与尺寸，忽略 Tag。
func (r Region) Equal(o Region) bool {
	near := func(a, b float64) bool { return math.Abs(a-b) <= Epsilon }
	return near(r.X, o.X) && near(r.Y, o.Y) && near(r.Width, o.Width) && near(r.Height, o.Height)
}

// Union 返回同时覆盖两个矩形的最小矩形，保留 r 的 Tag。
func (r Region) Union(o Region) Region {
	x0, y0 := math.Min(r.X, o.X), math.Min(r.Y, o.Y)
	x1, y1 := math.Max(r.Right(), o.Right()), math.Max(r.Bottom(), o.Bottom())
	return Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0, Tag: r.Tag}
}

// Intersect 返回两个矩形的公共部分；不相交时 ok 为 false。
func (r Region) Intersect(o Region) (Region, bool) {
	x0, y0 := math.Max(r.X, o.X), math.Max(r.Y, o.Y)
	x1, y1 := math.Min(r.Right(), o.Right()), math.Min(r.Bottom(), o.Bottom())
	if x1 < x0 || y1 < y0 {
		return Region{}, false
	}
	return Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0, Tag: r.Tag}, true
}

// Translate 平移矩形。
func (r Region) Translate(dx, dy float64) Region {
	r.X += dx
	r.Y += dy
	return r
}

// BoundsOf 返回点集的外接矩形；空点集返回零值。
func BoundsOf(points []Point) Region {
	if len(points) == 0 {
		return Region{}
	}
	xmin, ymin := math.Inf(1), math.Inf(1)
	xmax, ymax := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		xmin = math.Min(xmin, p.X)
		ymin = math.Min(ymin, p.Y)
		xmax = math.Max(xmax, p.X)
		ymax = math.Max(ymax, p.Y)
	}
	return Region{X: xmin, Y: ymin, Width: xmax - xmin, Height: ymax - ymin}
}
