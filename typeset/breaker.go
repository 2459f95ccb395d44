package typeset

import (
	"math"
	"sort"
)

// Fitness 是按调整比例划分的松紧等级。
type Fitness int

const (
	Tight Fitness = iota
	Normal
	Loose
	VeryLoose
)

func (f Fitness) String() string {
	switch f {
	case Tight:
		return "tight"
	case Normal:
		return "normal"
	case Loose:
		return "loose"
	default:
		return "very-loose"
	}
}

func fitnessOf(ratio float64) Fitness {
	switch {
	case ratio < -0.5:
		return Tight
	case ratio <= 0.5:
		return Normal
	case ratio <= 1:
		return Loose
	default:
		return VeryLoose
	}
}

// LineWidths 返回第 line 行（从 1 开始）的可用宽度；ok 为 false 表示没有更多的行空间。
type LineWidths func(line int) (width float64, ok bool)

// Constant 返回所有行宽度相同的 LineWidths。
func Constant(width float64) LineWidths {
	return func(int) (float64, bool) { return width, true }
}

// Demerits 是断行代价的各项系数。
type Demerits struct {
	Line    float64 `toml:"line"`
	Flagged float64 `toml:"flagged"`
	Fitness float64 `toml:"fitness"`
}

// Options 配置断行。
type Options struct {
	// Tolerance 是允许的最大调整比例。
	Tolerance float64 `toml:"tolerance"`
	// MaxTolerance 是放宽容差的上限，超过后进入强制断行。
	MaxTolerance float64  `toml:"max_tolerance"`
	Demerits     Demerits `toml:"demerits"`
}

// DefaultOptions 返回默认断行参数。
func DefaultOptions() Options {
	return Options{
		Tolerance:    10,
		MaxTolerance: 1000,
		Demerits:     Demerits{Line: 1, Flagged: 100, Fitness: 3000},
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.Tolerance <= 0 {
		o.Tolerance = def.Tolerance
	}
	if o.MaxTolerance < o.Tolerance {
		o.MaxTolerance = math.Max(def.MaxTolerance, o.Tolerance)
	}
	if o.Demerits == (Demerits{}) {
		o.Demerits = def.Demerits
	}
	return o
}

// Breakpoint 是一次断行选择。Line 从 1 开始，Ratio 是该行（以此断点结尾）使用的调整比例。
type Breakpoint struct {
	Position int     `json:"position"`
	Ratio    float64 `json:"ratio"`
	Line     int     `json:"line"`
	Fitness  Fitness `json:"fitness"`
	Demerits float64 `json:"demerits"`
}

// Result 是断行结果。
type Result struct {
	Breaks []Breakpoint `json:"breaks"`
	// Tolerance 是最终成功使用的容差。
	Tolerance float64 `json:"tolerance"`
	// Degraded 表示放宽到上限仍无可行解，结果来自强制断行。
	Degraded bool `json:"degraded"`
	// Overfull 列出自然宽度超过可用宽度且无法压缩的行号。
	Overfull []int `json:"overfull,omitempty"`
}

// Break 在节点序列上运行 Knuth–Plass 最优断行。
// 序列若不以强制惩罚结尾，则最后一个节点视为强制断点。
// 给定容差无解时容差逐次翻倍直至上限，仍无解则在所有合法断点中取代价最小的划分，永不失败。
func Break(nodes []Node, widths LineWidths, opts Options) Result {
	if len(nodes) == 0 {
		return Result{}
	}
	opts = opts.normalized()
	b := newBreaker(nodes, widths, opts.Demerits)
	for tol := opts.Tolerance; tol <= opts.MaxTolerance; tol *= 2 {
		if breaks, ok := b.run(tol, false); ok {
			return Result{Breaks: breaks, Tolerance: tol, Overfull: b.overfull(breaks)}
		}
	}
	breaks, _ := b.run(opts.MaxTolerance, true)
	return Result{Breaks: breaks, Tolerance: opts.MaxTolerance, Degraded: true, Overfull: b.overfull(breaks)}
}

type active struct {
	pos      int // -1 表示段落起点
	line     int
	fitness  Fitness
	ratio    float64
	demerits float64
	flagged  bool
	prev     *active
}

type breaker struct {
	nodes    []Node
	widths   LineWidths
	demerits Demerits
	// 前缀和：nodes[0:i) 中 box 与 glue 的宽度、伸长量、压缩量
	width, stretch, shrink []float64
	lineCache              map[int]float64
}

func newBreaker(nodes []Node, widths LineWidths, d Demerits) *breaker {
	n := len(nodes)
	b := &breaker{
		nodes:     nodes,
		widths:    widths,
		demerits:  d,
		width:     make([]float64, n+1),
		stretch:   make([]float64, n+1),
		shrink:    make([]float64, n+1),
		lineCache: map[int]float64{},
	}
	for i, node := range nodes {
		b.width[i+1], b.stretch[i+1], b.shrink[i+1] = b.width[i], b.stretch[i], b.shrink[i]
		switch v := node.(type) {
		case Box:
			b.width[i+1] += v.Width
		case Glue:
			b.width[i+1] += v.Width
			b.stretch[i+1] += v.Stretch
			b.shrink[i+1] += v.Shrink
		}
	}
	return b
}

// lineWidth 返回第 line 行的宽度；行空间耗尽时沿用最后一个可用宽度。
func (b *breaker) lineWidth(line int) float64 {
	if w, ok := b.lineCache[line]; ok {
		return w
	}
	w := 0.0
	if b.widths != nil {
		if v, ok := b.widths(line); ok {
			w = v
		} else {
			for l := line - 1; l >= 1; l-- {
				if v, ok := b.widths(l); ok {
					w = v
					break
				}
			}
		}
	}
	b.lineCache[line] = w
	return w
}

// legal 报告 i 是否为合法断点，forced 报告是否强制断行。
func (b *breaker) legal(i int) (ok, forced bool) {
	last := i == len(b.nodes)-1
	switch v := b.nodes[i].(type) {
	case Penalty:
		if v.Forced() || last {
			return true, true
		}
		return !v.Forbidden(), false
	case Glue:
		if last {
			return true, true
		}
		if i > 0 {
			// 紧跟强制断点的 glue 上断行只会产生空行
			if next, isPenalty := b.nodes[i+1].(Penalty); isPenalty && next.Forced() {
				return false, false
			}
			if _, isBox := b.nodes[i-1].(Box); isBox {
				return true, false
			}
		}
	case Box:
		if last {
			return true, true
		}
	}
	return false, false
}

// lineStart 返回从断点 from 之后开始的一行中第一个计入的节点下标：跳过 glue 与非强制惩罚。
func (b *breaker) lineStart(from int) int {
	s := from
	if s < 0 {
		s = 0
	}
	for ; s < len(b.nodes); s++ {
		switch v := b.nodes[s].(type) {
		case Box:
			return s
		case Penalty:
			if v.Forced() && s > from {
				return s
			}
		}
	}
	return s
}

// measure 计算从 a 到断点 end 的一行的自然宽度、总伸长量与总压缩量。
func (b *breaker) measure(from, end int) (natural, stretch, shrink float64) {
	s := b.lineStart(from)
	e := end
	switch v := b.nodes[end].(type) {
	case Box:
		e = end + 1
	case Penalty:
		natural += v.Width
	}
	if s > e {
		s = e
	}
	natural += b.width[e] - b.width[s]
	stretch = b.stretch[e] - b.stretch[s]
	shrink = b.shrink[e] - b.shrink[s]
	return natural, stretch, shrink
}

func adjustment(natural, stretch, shrink, target float64) float64 {
	switch {
	case natural < target:
		if stretch > 0 {
			return (target - natural) / stretch
		}
		return Infinity
	case natural > target:
		if shrink > 0 {
			return (target - natural) / shrink
		}
		return -Infinity
	default:
		return 0
	}
}

// candidateKey 决定哪些候选互相竞争。常规模式按 (行号, 松紧等级) 区分；
// 强制模式只按下一行宽度与松紧等级区分，行号不同但后续行宽相同的候选合并。
type candidateKey struct {
	line    int
	width   float64
	fitness Fitness
}

// candidates 收集同一断点上的新活动节点，同键只保留代价最小者。
type candidates struct {
	index map[candidateKey]int
	list  []active
}

func newCandidates() *candidates {
	return &candidates{index: map[candidateKey]int{}}
}

func (c *candidates) add(k candidateKey, a active) {
	if i, ok := c.index[k]; ok {
		if a.demerits < c.list[i].demerits {
			c.list[i] = a
		}
		return
	}
	c.index[k] = len(c.list)
	c.list = append(c.list, a)
}

func (b *breaker) key(a active, force bool) candidateKey {
	if force {
		return candidateKey{width: b.lineWidth(a.line + 1), fitness: a.fitness}
	}
	return candidateKey{line: a.line, fitness: a.fitness}
}

// run 执行一遍断行。force 为真时是最后的强制遍：欠满的行视为可行，
// 当所有活动节点都将因超宽被淘汰时，保留其中代价最小的超宽行，与 TeX 的紧急处理一致。
func (b *breaker) run(tolerance float64, force bool) ([]Breakpoint, bool) {
	actives := []*active{{pos: -1, fitness: Normal}}
	for i := range b.nodes {
		ok, forced := b.legal(i)
		if !ok {
			continue
		}
		var penalty Penalty
		if p, isPenalty := b.nodes[i].(Penalty); isPenalty {
			penalty = p
		}
		found := newCandidates()
		var rescue active
		rescued := false
		kept := actives[:0]
		for _, a := range actives {
			natural, stretch, shrink := b.measure(a.pos, i)
			target := b.lineWidth(a.line + 1)
			ratio := adjustment(natural, stretch, shrink, target)
			if ratio >= -1 && !forced {
				kept = append(kept, a)
			}
			feasible := ratio >= -1 && (ratio <= tolerance || force)
			if !feasible && !force {
				continue
			}
			d := b.transition(a, ratio, natural-target, penalty)
			fit := fitnessOf(ratio)
			if force {
				ratio = clampRatio(ratio, stretch)
			}
			next := active{
				pos:      i,
				line:     a.line + 1,
				fitness:  fit,
				ratio:    ratio,
				demerits: a.demerits + d,
				flagged:  penalty.Flagged,
				prev:     a,
			}
			if !feasible {
				if !rescued || next.demerits < rescue.demerits {
					rescue, rescued = next, true
				}
				continue
			}
			found.add(b.key(next, force), next)
		}
		actives = kept
		if len(found.list) == 0 && len(actives) == 0 && rescued {
			found.add(b.key(rescue, force), rescue)
		}
		sort.SliceStable(found.list, func(x, y int) bool {
			if found.list[x].line != found.list[y].line {
				return found.list[x].line < found.list[y].line
			}
			return found.list[x].fitness < found.list[y].fitness
		})
		for j := range found.list {
			actives = append(actives, &found.list[j])
		}
		if len(actives) == 0 {
			return nil, false
		}
	}

	last := len(b.nodes) - 1
	var best *active
	for _, a := range actives {
		if a.pos != last {
			continue
		}
		if best == nil || a.demerits < best.demerits {
			best = a
		}
	}
	if best == nil {
		return nil, false
	}
	var breaks []Breakpoint
	for a := best; a != nil && a.pos >= 0; a = a.prev {
		breaks = append(breaks, Breakpoint{
			Position: a.pos,
			Ratio:    a.ratio,
			Line:     a.line,
			Fitness:  a.fitness,
			Demerits: a.demerits,
		})
	}
	for x, y := 0, len(breaks)-1; x < y; x, y = x+1, y-1 {
		breaks[x], breaks[y] = breaks[y], breaks[x]
	}
	return breaks, true
}

// transition 计算从 a 断到当前断点的代价。excess 为自然宽度超出目标宽度的量。
func (b *breaker) transition(a *active, ratio, excess float64, p Penalty) float64 {
	var badness float64
	if ratio < -1 {
		// 超宽行：按超出量给出远大于任何可行行的代价
		badness = Infinity * (1 + math.Max(excess, 0))
	} else {
		badness = 100 * math.Pow(math.Abs(ratio), 3)
	}
	d := math.Pow(b.demerits.Line+badness, 2)
	switch {
	case p.Cost >= 0:
		d += p.Cost * p.Cost
	case p.Cost > -Infinity:
		d -= p.Cost * p.Cost
	}
	if p.Flagged && a.flagged {
		d += b.demerits.Flagged
	}
	if a.pos >= 0 && absDiff(int(fitnessOf(ratio)), int(a.fitness)) > 1 {
		d += b.demerits.Fitness
	}
	return d
}

func clampRatio(ratio, stretch float64) float64 {
	switch {
	case ratio < -1:
		return -1
	case stretch == 0 && ratio > 0:
		return 0
	default:
		return ratio
	}
}

func (b *breaker) overfull(breaks []Breakpoint) []int {
	var out []int
	from := -1
	for _, bp := range breaks {
		natural, _, shrink := b.measure(from, bp.Position)
		if natural-shrink > b.lineWidth(bp.Line)+1e-9 {
			out = append(out, bp.Line)
		}
		from = bp.Position
	}
	return out
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
