package layout

import (
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/galley/paint"
	"github.com/ByLCY/galley/region"
)

// Vertically 让多个渲染器依次消费同一个区域流。
// 每个渲染器结束后，其最后占用区域下方的剩余部分（高度为正时）作为新的流头部，
// 已完全消费的区域被跳过。
func Vertically(renderers ...Renderer) Renderer {
	return func(m Measures, s region.Stream) Result {
		var out Result
		cur := s
		for _, r := range renderers {
			rec := region.NewRecorder(cur)
			res := r(m, rec)
			if n := len(res.Regions); n > 0 {
				last := res.Regions[n-1]
				if idx, src, ok := sourceOf(cur, last, rec.Max()); ok {
					rest := region.Region{
						X:      src.X,
						Y:      last.Bottom(),
						Width:  src.Width,
						Height: src.Bottom() - last.Bottom(),
					}
					if rest.Height > region.Epsilon {
						cur = region.Prepend(rest, region.Drop(idx+1, cur))
					} else {
						cur = region.Drop(idx+1, cur)
					}
				} else {
					out.Report.add(fmt.Errorf("%w: 占用区域 %+v 不在区域流中", ErrInvalidGeometry, last))
				}
			}
			out.append(res)
		}
		return out
	}
}

// sourceOf 在 s 的前 limit+1 个区域中查找 r 的来源区域：优先完全包含，其次重叠，最后相接。
func sourceOf(s region.Stream, r region.Region, limit int) (int, region.Region, bool) {
	overlap, touch := -1, -1
	var overlapR, touchR region.Region
	for i := 0; i <= limit; i++ {
		src, ok := s.Get(i)
		if !ok {
			break
		}
		switch {
		case src.Contains(r):
			return i, src, true
		case overlap < 0 && r.Overlaps(src):
			overlap, overlapR = i, src
		case touch < 0 && r.Intersects(src):
			touch, touchR = i, src
		}
	}
	if overlap >= 0 {
		return overlap, overlapR, true
	}
	if touch >= 0 {
		return touch, touchR, true
	}
	return -1, region.Region{}, false
}

// Lane 是 Combine 中的一路：Transform 把原区域映射为该路看到的区域。
type Lane struct {
	Transform func(region.Region) region.Region
	Renderer  Renderer
}

// CombineOptions 控制 Combine 的执行方式。
type CombineOptions struct {
	// Concurrent 为 true 时各路并发执行；合并阶段始终按确定顺序进行。
	Concurrent bool
}

// Combine 等价于 CombineWith(CombineOptions{}, lanes...)。
func Combine(lanes ...Lane) Renderer { return CombineWith(CombineOptions{}, lanes...) }

// CombineWith 让每一路在变换后的同一区域流上独立渲染，再把各路占用的区域按其重叠的原区域
// 分组合并：同一原区域下的占用区域取外接矩形，按原区域下标升序输出，合并结果不带 Tag。
// 绘制节点按各路的输入顺序拼接。某一路 panic 时记入报告，其余各路的结果照常合并。
func CombineWith(opts CombineOptions, lanes ...Lane) Renderer {
	return func(m Measures, s region.Stream) Result {
		results := make([]Result, len(lanes))
		recorders := make([]*region.Recorder, len(lanes))
		run := func(i int) (err error) {
			lane := lanes[i]
			recorders[i] = region.NewRecorder(s)
			if lane.Renderer == nil {
				return nil
			}
			defer func() {
				if v := recover(); v != nil {
					err = fmt.Errorf("第 %d 路渲染失败: %v", i, v)
				}
			}()
			results[i] = lane.Renderer(m, region.Transform(recorders[i], lane.Transform))
			return nil
		}
		var laneErr error
		if opts.Concurrent && len(lanes) > 1 {
			var g errgroup.Group
			for i := range lanes {
				g.Go(func() error { return run(i) })
			}
			laneErr = g.Wait()
		} else {
			for i := range lanes {
				if err := run(i); err != nil && laneErr == nil {
					laneErr = err
				}
			}
		}

		limit := -1
		for _, rec := range recorders {
			limit = max(limit, rec.Max())
		}

		var out Result
		if laneErr != nil {
			out.Report.add(laneErr)
		}
		groups := map[int][]region.Region{}
		for _, res := range results {
			for _, r := range res.Regions {
				matched := false
				for idx := 0; idx <= limit; idx++ {
					src, ok := s.Get(idx)
					if !ok {
						break
					}
					if r.Overlaps(src) {
						groups[idx] = append(groups[idx], r)
						matched = true
					} else if matched {
						break
					}
				}
				if !matched {
					out.Report.add(fmt.Errorf("%w: 占用区域 %+v 与区域流不相交", ErrInvalidGeometry, r))
				}
			}
			out.Nodes = append(out.Nodes, res.Nodes...)
			out.Report.Merge(res.Report)
		}

		indices := make([]int, 0, len(groups))
		for idx := range groups {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for _, idx := range indices {
			rs := groups[idx]
			merged := rs[0]
			for _, r := range rs[1:] {
				merged = merged.Union(r)
			}
			merged.Tag = ""
			out.Regions = append(out.Regions, merged)
		}
		return out
	}
}

// Column 是分栏中的一栏。
type Column struct {
	Width    float64
	Renderer Renderer
}

// RenderColumns 把区域横向切分为定宽的栏，栏间距为 gap，每栏运行各自的渲染器。
func RenderColumns(gap float64, columns ...Column) Renderer {
	return RenderColumnsWith(CombineOptions{}, gap, columns...)
}

// RenderColumnsWith 与 RenderColumns 相同，但可以指定合并方式。
func RenderColumnsWith(opts CombineOptions, gap float64, columns ...Column) Renderer {
	lanes := make([]Lane, len(columns))
	offset := 0.0
	for i, col := range columns {
		x, w := offset, col.Width
		lanes[i] = Lane{
			Transform: func(r region.Region) region.Region {
				return region.Region{X: r.X + x, Y: r.Y, Width: w, Height: r.Height, Tag: r.Tag}
			},
			Renderer: col.Renderer,
		}
		offset += col.Width + gap
	}
	return CombineWith(opts, lanes...)
}

// RenderTable 把多行单元格纵向排列，每行按 widths 分栏。
// 单元格数量与列宽数量不一致时取较短者。
func RenderTable(gap float64, widths []float64, rows [][]Renderer) Renderer {
	return RenderTableWith(CombineOptions{}, gap, widths, rows)
}

// RenderTableWith 与 RenderTable 相同，但可以指定合并方式。
func RenderTableWith(opts CombineOptions, gap float64, widths []float64, rows [][]Renderer) Renderer {
	renderers := make([]Renderer, len(rows))
	for i, row := range rows {
		n := min(len(row), len(widths))
		cols := make([]Column, n)
		for j := 0; j < n; j++ {
			cols[j] = Column{Width: widths[j], Renderer: row[j]}
		}
		renderers[i] = RenderColumnsWith(opts, gap, cols...)
	}
	return Vertically(renderers...)
}

// RenderPolygon 以首个区域的左上角为原点放置多边形，占用区域为其外接矩形与首个区域的交集。
func RenderPolygon(points []region.Point, style paint.Style) Renderer {
	return func(_ Measures, s region.Stream) Result {
		var res Result
		ref, ok := s.Get(0)
		if !ok {
			res.Report.add(fmt.Errorf("%w: 没有可放置多边形的区域", ErrRegionExhausted))
			return res
		}
		if err := style.Validate(); err != nil {
			res.Report.add(fmt.Errorf("%w: %v", ErrInvalidGeometry, err))
		}
		abs := make([]region.Point, len(points))
		for i, p := range points {
			abs[i] = region.Point{X: p.X + ref.X, Y: p.Y + ref.Y}
		}
		bounds := region.BoundsOf(points).Translate(ref.X, ref.Y)
		consumed, ok := bounds.Intersect(ref)
		if !ok {
			consumed = region.Region{X: ref.X, Y: ref.Y, Width: ref.Width}
		}
		consumed.Tag = ""
		res.Regions = []region.Region{consumed}
		res.Nodes = []RenderNode{Polygon{X: ref.X, Y: ref.Y, Points: abs, Style: style}}
		return res
	}
}

// PageBreak 消费区域直到下一个带有 region.TagNewPage 标记的区域（不含）。
func PageBreak(_ Measures, s region.Stream) Result {
	var res Result
	idx, _, ok := region.Find(s, func(r region.Region) bool { return r.Tag == region.TagNewPage })
	if !ok {
		res.Report.add(fmt.Errorf("%w: 找不到下一页", ErrRegionExhausted))
		return res
	}
	res.Regions = region.Take(s, idx)
	for i := range res.Regions {
		res.Regions[i].Tag = ""
	}
	return res
}

// Spacer 从首个区域顶部占用 height 的高度，超出区域高度时占满该区域。
func Spacer(height float64) Renderer {
	return func(_ Measures, s region.Stream) Result {
		var res Result
		r, ok := s.Get(0)
		if !ok {
			res.Report.add(fmt.Errorf("%w: 没有可放置空白的区域", ErrRegionExhausted))
			return res
		}
		if height < 0 {
			res.Report.add(fmt.Errorf("%w: 空白高度不能为负数", ErrInvalidGeometry))
			return res
		}
		r.Height = min(r.Height, height)
		r.Tag = ""
		res.Regions = []region.Region{r}
		return res
	}
}
