package layout

import (
	"fmt"
	"unicode/utf8"

	"github.com/ByLCY/galley/region"
	"github.com/ByLCY/galley/typeset"
)

// Paragraph 描述一个段落。
type Paragraph struct {
	Align typeset.Align  `json:"align"`
	Spans []typeset.Span `json:"spans"`
	// Leading 是行距（pt），必须为正数。
	Leading float64 `json:"leading"`
	// ParagraphGap 是段落最后一行之后额外占用的高度。
	ParagraphGap float64 `json:"paragraphGap,omitempty"`
	// LeftIndent 与 RightIndent 按行号（从 0 开始）返回缩进量，可为 nil。
	LeftIndent  func(line int) float64 `json:"-"`
	RightIndent func(line int) float64 `json:"-"`
	// Tolerance 覆盖 Breaking.Tolerance，为 0 时使用默认值 10。
	Tolerance float64               `json:"tolerance,omitempty"`
	Breaking  typeset.Options       `json:"-"`
	Spacing   typeset.FormatOptions `json:"-"`
	// Hyphenator 为 nil 时不断字。
	Hyphenator typeset.Hyphenator `json:"-"`
}

func (p Paragraph) indent(line int) (left, right float64) {
	if p.LeftIndent != nil {
		left = p.LeftIndent(line)
	}
	if p.RightIndent != nil {
		right = p.RightIndent(line)
	}
	return left, right
}

// located 是某个文本高度所落入的区域。
type located struct {
	region region.Region
	index  int
	ok     bool
}

// RenderParagraph 返回排版单个段落的渲染器。
//
// 区域高度 H 可容纳 floor(H/leading) 行；换到新区域时行内纵向游标重置为一个行距。
// 每行的基线位于区域顶部加游标处，文本节点的 y 为基线减去字体上升部。
func RenderParagraph(p Paragraph) Renderer {
	return func(m Measures, s region.Stream) Result {
		var res Result
		if p.Leading <= 0 {
			res.Report.add(fmt.Errorf("%w: 行距必须为正数，实际 %g", ErrInvalidGeometry, p.Leading))
			return res
		}
		items := typeset.Format(p.Align, p.Spans, m, p.Hyphenator, p.Spacing)
		if len(items) == 0 {
			return res
		}

		// 行高到区域的映射只在本次调用内缓存
		cache := map[float64]located{}
		locate := func(textY float64) located {
			if l, ok := cache[textY]; ok {
				return l
			}
			l := locateTextY(s, p.Leading, textY)
			cache[textY] = l
			return l
		}

		widths := func(line int) (float64, bool) {
			l := locate(float64(line) * p.Leading)
			if !l.ok {
				return 0, false
			}
			left, right := p.indent(line - 1)
			return l.region.Width - left - right, true
		}

		opts := p.Breaking
		if p.Tolerance > 0 {
			opts.Tolerance = p.Tolerance
		}
		br := typeset.Break(typeset.Nodes(items), widths, opts)
		if br.Degraded {
			res.Report.Degraded++
			res.Report.add(fmt.Errorf("%w: 容差放宽到 %g 后仍需强制断行", ErrLayoutInfeasible, br.Tolerance))
		}
		if len(br.Overfull) > 0 {
			res.Report.add(fmt.Errorf("%w: 第 %v 行内容宽于可用行宽", ErrInvalidGeometry, br.Overfull))
		}

		var (
			textY, y float64
			current  = located{index: -1}
			start    int
		)
		for lineIndex, bp := range br.Breaks {
			var line []typeset.Item
			if start = skipDiscardable(items, start); start <= bp.Position {
				line = items[start : bp.Position+1]
			}
			start = bp.Position

			textY += p.Leading
			l := locate(textY)
			if !l.ok {
				res.Report.Overflow++
				continue
			}
			if current.index >= 0 && l.index != current.index {
				y = p.Leading
			} else {
				y += p.Leading
			}
			current = l
			if !l.region.Valid() {
				res.Report.add(fmt.Errorf("%w: 区域 %d 尺寸为 %gx%g", ErrInvalidGeometry, l.index, l.region.Width, l.region.Height))
			}
			left, _ := p.indent(lineIndex)
			res.Nodes = append(res.Nodes, placeLine(m, line, bp.Ratio, l.region.X+left, l.region.Y+y)...)
		}
		if res.Report.Overflow > 0 {
			res.Report.add(fmt.Errorf("%w: %d 行未能放置", ErrRegionExhausted, res.Report.Overflow))
		}

		if current.index < 0 {
			return res
		}
		for i := 0; i < current.index; i++ {
			if r, ok := s.Get(i); ok {
				r.Tag = ""
				res.Regions = append(res.Regions, r)
			}
		}
		last := current.region
		last.Height = min(last.Height, y+p.ParagraphGap)
		last.Tag = ""
		res.Regions = append(res.Regions, last)
		return res
	}
}

// locateTextY 找到文本高度 textY（从段落顶部累计的行底位置）所在的区域。
func locateTextY(s region.Stream, leading, textY float64) located {
	top := 0.0
	for i := 0; i < region.ScanLimit; i++ {
		r, ok := s.Get(i)
		if !ok {
			break
		}
		if textY-top <= r.Height+region.Epsilon {
			return located{region: r, index: i, ok: true}
		}
		if r.Height > 0 {
			top += float64(int(r.Height/leading+region.Epsilon)) * leading
		}
	}
	return located{index: -1}
}

// skipDiscardable 从 i 开始跳过 glue 与非强制惩罚，返回第一个 box 或强制惩罚的下标。
func skipDiscardable(items []typeset.Item, i int) int {
	for ; i < len(items); i++ {
		switch n := items[i].Node.(type) {
		case typeset.Box:
			return i
		case typeset.Penalty:
			if n.Forced() {
				return i
			}
		}
	}
	return len(items) - 1
}

// placeLine 把一行节点转换为文本节点。originX 已包含左缩进，baseline 是该行基线。
func placeLine(m Measures, line []typeset.Item, ratio, originX, baseline float64) []RenderNode {
	var (
		out     []RenderNode
		x       float64
		xOffset float64
	)
	for j, it := range line {
		span := it.Span
		top := baseline - m.Ascender(span.FontFamily)/1000*span.FontSize
		switch n := it.Node.(type) {
		case typeset.Box:
			if x == 0 && n.Text != "" {
				first, _ := utf8.DecodeRuneInString(n.Text)
				xOffset = -m.LeftBearing(span.FontFamily, string(first)) / 1000 * span.FontSize
			}
			if n.Text != "" {
				out = append(out, Text{X: originX + x + xOffset, Y: top, Span: span, Text: n.Text})
			}
			x += n.Width
		case typeset.Glue:
			if ratio < 0 {
				x += n.Width + ratio*n.Shrink
			} else {
				x += n.Width + ratio*n.Stretch
			}
		case typeset.Penalty:
			if j == len(line)-1 && n.Flagged && n.Cost == typeset.HyphenPenalty {
				out = append(out, Text{X: originX + x + xOffset, Y: top, Span: span, Text: "-"})
			}
		}
	}
	return out
}

// RenderText 把多个段落纵向排列。
func RenderText(paragraphs ...Paragraph) Renderer {
	renderers := make([]Renderer, len(paragraphs))
	for i, p := range paragraphs {
		renderers[i] = RenderParagraph(p)
	}
	return Vertically(renderers...)
}
