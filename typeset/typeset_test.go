package typeset

import (
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// fixedMeasure 每个字符宽 10pt，与字体无关。
var fixedMeasure = MeasureFunc(func(_ string, _ float64, text string) float64 {
	return float64(utf8.RuneCountInString(text)) * 10
})

func diff(t *testing.T, want, got any) {
	t.Helper()
	if d := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); d != "" {
		t.Fatalf("结果不一致 (-want +got):\n%s", d)
	}
}

func samplePatterns(t *testing.T) *Patterns {
	t.Helper()
	src := `
left_min = 2
right_min = 3
patterns = ["hy3ph", "he2n", "hena4", "hen5at", "1na", "n2at", "1tio", "2io", "o2n"]
exceptions = ["ta-ble"]
`
	p, err := LoadPatterns(strings.NewReader(src))
	if err != nil {
		t.Fatalf("加载断字词典失败: %v", err)
	}
	return p
}

// TestBreakSingleLineRatio 两个单词放进 100pt 的行，比例为 (100-90)/6。
func TestBreakSingleLineRatio(t *testing.T) {
	nodes := []Node{Box{Width: 50, Text: "Hi"}, Glue{Width: 10, Stretch: 6, Shrink: 3}, Box{Width: 30, Text: "ok"}}
	res := Break(nodes, Constant(100), Options{Tolerance: 10})
	if len(res.Breaks) != 1 {
		t.Fatalf("期望 1 个断点，实际 %+v", res.Breaks)
	}
	bp := res.Breaks[0]
	if bp.Position != 2 || bp.Line != 1 {
		t.Fatalf("断点位置错误: %+v", bp)
	}
	if math.Abs(bp.Ratio-10.0/6) > 1e-9 {
		t.Fatalf("调整比例期望 %g，实际 %g", 10.0/6, bp.Ratio)
	}
	if res.Degraded || res.Tolerance != 10 {
		t.Fatalf("不应放宽容差: %+v", res)
	}
}

func TestBreakEmpty(t *testing.T) {
	if res := Break(nil, Constant(100), DefaultOptions()); len(res.Breaks) != 0 {
		t.Fatalf("空序列不应产生断点: %+v", res)
	}
}

// TestBreakPositionsIncrease 不同宽度下断点严格递增且最后一个断点结束序列。
func TestBreakPositionsIncrease(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog and keeps running through the hyphenation field until night"
	for _, align := range []Align{AlignLeft, AlignCenter, AlignJustify} {
		items := Format(align, []Span{{FontFamily: "f", FontSize: 10, Text: text, Hyphenate: true}}, fixedMeasure, samplePatterns(t), FormatOptions{})
		nodes := Nodes(items)
		for _, width := range []float64{60, 120, 200, 400, 2000} {
			res := Break(nodes, Constant(width), DefaultOptions())
			if len(res.Breaks) == 0 {
				t.Fatalf("%s/%g: 没有断点", align, width)
			}
			prev := -1
			for i, bp := range res.Breaks {
				if bp.Position <= prev {
					t.Fatalf("%s/%g: 断点未严格递增: %+v", align, width, res.Breaks)
				}
				if bp.Line != i+1 {
					t.Fatalf("%s/%g: 行号错误: %+v", align, width, bp)
				}
				prev = bp.Position
			}
			if prev != len(nodes)-1 {
				t.Fatalf("%s/%g: 最后断点 %d 不等于 %d", align, width, prev, len(nodes)-1)
			}
		}
	}
}

// TestBreakRelaxesTolerance 需要比例 15 的行在容差 10 下无解，放宽到 20 后成功。
func TestBreakRelaxesTolerance(t *testing.T) {
	nodes := []Node{
		Box{Width: 40}, Glue{Width: 10, Stretch: 2}, Box{Width: 20},
		Glue{}, Penalty{Cost: -Infinity, Flagged: true},
	}
	res := Break(nodes, Constant(100), Options{Tolerance: 10, MaxTolerance: 100})
	if res.Degraded {
		t.Fatalf("放宽后应有可行解: %+v", res)
	}
	if res.Tolerance != 20 {
		t.Fatalf("期望容差放宽到 20，实际 %g", res.Tolerance)
	}
	if got := res.Breaks[0].Ratio; math.Abs(got-15) > 1e-9 {
		t.Fatalf("比例期望 15，实际 %g", got)
	}
}

// TestBreakOverlongWordFallsBack 不断字时过长单词作为超宽行放置而不是失败。
func TestBreakOverlongWordFallsBack(t *testing.T) {
	items := Format(AlignJustify, []Span{{FontFamily: "f", FontSize: 10, Text: "incomprehensible"}}, fixedMeasure, nil, FormatOptions{})
	nodes := Nodes(items)
	if b, ok := nodes[0].(Box); !ok || b.Width != 160 {
		t.Fatalf("首节点应为 160pt 的整词: %+v", nodes[0])
	}
	res := Break(nodes, Constant(100), DefaultOptions())
	if !res.Degraded {
		t.Fatalf("应标记为降级: %+v", res)
	}
	if len(res.Breaks) != 1 || res.Breaks[0].Position != len(nodes)-1 {
		t.Fatalf("应只有一行: %+v", res.Breaks)
	}
	if r := res.Breaks[0].Ratio; r < -1 || math.IsNaN(r) {
		t.Fatalf("强制断行的比例应被截断到 -1: %g", r)
	}
	diff(t, []int{1}, res.Overfull)
}

// TestBreakDegradedPrefersLeastBad 强制模式下仍只让必要的行超宽。
func TestBreakDegradedPrefersLeastBad(t *testing.T) {
	items := Format(AlignLeft, []Span{{FontFamily: "f", FontSize: 10, Text: "a incomprehensible b"}}, fixedMeasure, nil, FormatOptions{})
	res := Break(Nodes(items), Constant(100), DefaultOptions())
	if !res.Degraded {
		t.Fatalf("应标记为降级: %+v", res)
	}
	diff(t, []int{2}, res.Overfull)
	if len(res.Breaks) != 3 {
		t.Fatalf("期望三行，实际 %+v", res.Breaks)
	}
}

// TestBreakReusesLastWidth 行空间耗尽后沿用最后一个可用宽度。
func TestBreakReusesLastWidth(t *testing.T) {
	widths := func(line int) (float64, bool) {
		if line > 1 {
			return 0, false
		}
		return 50, true
	}
	items := Format(AlignLeft, []Span{{FontFamily: "f", FontSize: 10, Text: "aa bb cc dd"}}, fixedMeasure, nil, FormatOptions{})
	res := Break(Nodes(items), widths, DefaultOptions())
	if res.Degraded {
		t.Fatalf("沿用宽度后应可行: %+v", res)
	}
	if len(res.Breaks) != 2 {
		t.Fatalf("期望两行，实际 %+v", res.Breaks)
	}
}

func TestFitnessClasses(t *testing.T) {
	cases := map[float64]Fitness{-0.8: Tight, -0.5: Normal, 0.5: Normal, 0.9: Loose, 1.5: VeryLoose}
	for r, want := range cases {
		if got := fitnessOf(r); got != want {
			t.Fatalf("比例 %g 期望 %s，实际 %s", r, want, got)
		}
	}
}

// TestFlaggedPairCostsMore 连续两个带标记断点额外计入 flagged 代价。
func TestFlaggedPairCostsMore(t *testing.T) {
	b := newBreaker([]Node{Box{}}, Constant(10), DefaultOptions().Demerits)
	prev := &active{pos: 0, fitness: Normal, flagged: true}
	plain := b.transition(prev, 0, 0, Penalty{Cost: 100})
	flagged := b.transition(prev, 0, 0, Penalty{Cost: 100, Flagged: true})
	if flagged-plain != 100 {
		t.Fatalf("flagged 代价期望 100，实际 %g", flagged-plain)
	}
	jump := b.transition(&active{pos: 0, fitness: Tight}, 1.5, 0, Penalty{})
	base := math.Pow(1+100*math.Pow(1.5, 3), 2)
	if jump-base != 3000 {
		t.Fatalf("等级跳变代价期望 3000，实际 %g", jump-base)
	}
	forced := b.transition(&active{pos: -1}, 0, 0, Penalty{Cost: -Infinity})
	if forced != 1 {
		t.Fatalf("强制断点不计惩罚，期望 1，实际 %g", forced)
	}
}

// TestCandidatesKeepLowerDemerits 同一断点上键相同的候选只保留代价更小的前驱。
func TestCandidatesKeepLowerDemerits(t *testing.T) {
	type entry struct {
		key      candidateKey
		demerits float64
		from     int
	}
	normal := candidateKey{line: 2, fitness: Normal}
	cases := []struct {
		name string
		in   []entry
		want []int
	}{
		{"后来者更优", []entry{{normal, 50, 1}, {normal, 20, 3}}, []int{3}},
		{"先到者更优", []entry{{normal, 20, 1}, {normal, 50, 3}}, []int{1}},
		{"代价相同保留先到者", []entry{{normal, 20, 1}, {normal, 20, 3}}, []int{1}},
		{"等级不同并存", []entry{{normal, 50, 1}, {candidateKey{line: 2, fitness: Loose}, 20, 3}}, []int{1, 3}},
		{"行号不同并存", []entry{{normal, 50, 1}, {candidateKey{line: 3, fitness: Normal}, 20, 3}}, []int{1, 3}},
		{"多次替换", []entry{{normal, 90, 1}, {normal, 70, 3}, {normal, 80, 5}, {normal, 10, 7}}, []int{7}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newCandidates()
			for _, e := range tc.in {
				c.add(e.key, active{pos: 9, line: e.key.line, fitness: e.key.fitness, demerits: e.demerits, prev: &active{pos: e.from}})
			}
			var got []int
			for _, a := range c.list {
				got = append(got, a.prev.pos)
			}
			diff(t, tc.want, got)
		})
	}
}

// TestCandidateKeyMergesLinesWhenForced 强制模式下行号不同但后续行宽相同的候选共用一个键。
func TestCandidateKeyMergesLinesWhenForced(t *testing.T) {
	widths := func(line int) (float64, bool) {
		if line == 1 {
			return 80, true
		}
		return 100, true
	}
	b := newBreaker([]Node{Box{}}, widths, DefaultOptions().Demerits)
	third := active{line: 3, fitness: Normal}
	seventh := active{line: 7, fitness: Normal}
	if b.key(third, false) == b.key(seventh, false) {
		t.Fatalf("常规模式应按行号区分候选")
	}
	if b.key(third, true) != b.key(seventh, true) {
		t.Fatalf("强制模式下后续行宽相同的候选应合并")
	}
	if b.key(active{line: 0, fitness: Normal}, true) == b.key(third, true) {
		t.Fatalf("后续行宽不同的候选不应合并")
	}
}

// exhaustiveDemerits 枚举所有可行划分，返回最小总代价；没有可行划分时返回 +Inf。
func exhaustiveDemerits(b *breaker, tolerance float64) float64 {
	last := len(b.nodes) - 1
	var walk func(a *active) float64
	walk = func(a *active) float64 {
		if a.pos == last {
			return a.demerits
		}
		best := math.Inf(1)
		for i := a.pos + 1; i <= last; i++ {
			if ok, _ := b.legal(i); !ok {
				continue
			}
			natural, stretch, shrink := b.measure(a.pos, i)
			target := b.lineWidth(a.line + 1)
			ratio := adjustment(natural, stretch, shrink, target)
			if ratio < -1 {
				break
			}
			if ratio > tolerance {
				continue
			}
			var p Penalty
			if v, isPenalty := b.nodes[i].(Penalty); isPenalty {
				p = v
			}
			next := &active{
				pos:      i,
				line:     a.line + 1,
				fitness:  fitnessOf(ratio),
				demerits: a.demerits + b.transition(a, ratio, natural-target, p),
				flagged:  p.Flagged,
				prev:     a,
			}
			best = math.Min(best, walk(next))
		}
		return best
	}
	return walk(&active{pos: -1, fitness: Normal})
}

// TestBreakMatchesExhaustiveSearch 剪枝后的结果与穷举所有划分得到的最小代价一致。
func TestBreakMatchesExhaustiveSearch(t *testing.T) {
	texts := []string{
		"aa bbb c dddd ee f ggg hh iii j kk",
		"a bb ccc dddd eeeee ff g hhh ii jjjj",
		"xxxx y zz www v uuu tt s rrrr qq",
	}
	opts := Options{Tolerance: 100, MaxTolerance: 100, Demerits: DefaultOptions().Demerits}
	for _, text := range texts {
		nodes := Nodes(Format(AlignJustify, []Span{{FontFamily: "f", FontSize: 10, Text: text}}, fixedMeasure, nil, FormatOptions{}))
		want := exhaustiveDemerits(newBreaker(nodes, Constant(100), opts.Demerits), opts.Tolerance)
		if math.IsInf(want, 1) {
			t.Fatalf("%q 应存在可行划分", text)
		}
		res := Break(nodes, Constant(100), opts)
		if res.Degraded {
			t.Fatalf("%q 不应降级: %+v", text, res)
		}
		got := res.Breaks[len(res.Breaks)-1].Demerits
		if math.Abs(got-want) > 1e-6*math.Max(1, want) {
			t.Fatalf("%q 总代价期望 %g，实际 %g", text, want, got)
		}
	}
}

// TestBreakForcedFallbackScales 长段落中出现一个放不下的长 URL 时，强制断行仍在线性规模内完成。
func TestBreakForcedFallbackScales(t *testing.T) {
	url := "https://example.com/" + strings.Repeat("x", 31)
	text := strings.Repeat("word ", 1000) + url + strings.Repeat(" word", 1000)
	nodes := Nodes(Format(AlignJustify, []Span{{FontFamily: "f", FontSize: 10, Text: text}}, fixedMeasure, nil, FormatOptions{}))

	start := time.Now()
	res := Break(nodes, Constant(300), DefaultOptions())
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("强制断行耗时过长: %s", elapsed)
	}
	if !res.Degraded {
		t.Fatalf("应标记为降级")
	}
	if len(res.Overfull) != 1 {
		t.Fatalf("只有 URL 所在行应超宽，实际 %v", res.Overfull)
	}
	prev := -1
	for i, bp := range res.Breaks {
		if bp.Position <= prev || bp.Line != i+1 {
			t.Fatalf("断点 %d 不合法: %+v", i, bp)
		}
		prev = bp.Position
	}
	if res.Breaks[len(res.Breaks)-1].Position != len(nodes)-1 {
		t.Fatalf("最后一个断点应在段落末尾")
	}
}

func TestFormatJustifyNodes(t *testing.T) {
	items := Format(AlignJustify, []Span{{FontFamily: "f", FontSize: 10, Text: "aa bb"}}, fixedMeasure, nil, FormatOptions{})
	want := []Node{
		Box{Width: 20, Text: "aa"},
		Glue{Width: 10, Stretch: 5, Shrink: 10.0 / 3},
		Box{Width: 20, Text: "bb"},
		Glue{Stretch: Infinity},
		Penalty{Cost: -Infinity, Flagged: true},
	}
	diff(t, want, Nodes(items))
	if items[0].Span == nil || items[0].Span.Text != "aa bb" {
		t.Fatalf("节点应携带来源 span")
	}
}

func TestFormatLeftAndCenterGlue(t *testing.T) {
	spans := []Span{{FontFamily: "f", FontSize: 10, Text: "aa bb"}}
	left := Nodes(Format(AlignLeft, spans, fixedMeasure, nil, FormatOptions{}))
	diff(t, []Node{
		Box{Width: 20, Text: "aa"},
		Glue{Stretch: 12}, Penalty{}, Glue{Width: 10, Stretch: -12},
		Box{Width: 20, Text: "bb"},
		Glue{Stretch: Infinity}, Penalty{Cost: -Infinity, Flagged: true},
	}, left)

	center := Nodes(Format(AlignCenter, spans, fixedMeasure, nil, FormatOptions{}))
	diff(t, []Node{
		Box{}, Glue{Stretch: 12},
		Box{Width: 20, Text: "aa"},
		Glue{Stretch: 12}, Penalty{}, Glue{Width: 10, Stretch: -24}, Box{}, Penalty{Cost: Infinity}, Glue{Stretch: 12},
		Box{Width: 20, Text: "bb"},
		Glue{Stretch: 12}, Penalty{Cost: -Infinity},
	}, center)
}

// TestFormatSpansKeepBoxOrder 三种对齐方式在单行时产生相同的单词序列。
func TestFormatSpansKeepBoxOrder(t *testing.T) {
	spans := []Span{
		{FontFamily: "f", FontSize: 10, Text: "Hello "},
		{FontFamily: "g", FontSize: 12, Text: "wide world"},
	}
	var texts [][]string
	for _, align := range []Align{AlignLeft, AlignCenter, AlignJustify} {
		items := Format(align, spans, fixedMeasure, nil, FormatOptions{})
		res := Break(Nodes(items), Constant(10000), DefaultOptions())
		if len(res.Breaks) != 1 {
			t.Fatalf("%s: 应只有一行: %+v", align, res.Breaks)
		}
		var words []string
		for _, it := range items {
			if b, ok := it.Node.(Box); ok && b.Text != "" {
				words = append(words, b.Text)
			}
		}
		texts = append(texts, words)
	}
	diff(t, texts[0], texts[1])
	diff(t, texts[0], texts[2])
	diff(t, []string{"Hello", "wide", "world"}, texts[0])
}

func TestFormatHyphenation(t *testing.T) {
	p := samplePatterns(t)
	spans := []Span{{FontFamily: "f", FontSize: 10, Text: "hyphenation hyphen", Hyphenate: true}}
	nodes := Nodes(Format(AlignJustify, spans, fixedMeasure, p, FormatOptions{}))
	want := []Node{
		Box{Width: 20, Text: "hy"},
		Penalty{Width: 10, Cost: HyphenPenalty, Flagged: true},
		Box{Width: 40, Text: "phen"},
		Penalty{Width: 10, Cost: HyphenPenalty, Flagged: true},
		Box{Width: 50, Text: "ation"},
	}
	diff(t, want, nodes[:len(want)])

	spans[0].Hyphenate = false
	nodes = Nodes(Format(AlignJustify, spans, fixedMeasure, p, FormatOptions{}))
	if b, ok := nodes[0].(Box); !ok || b.Text != "hyphenation" {
		t.Fatalf("关闭断字时应保留整词: %+v", nodes[0])
	}
}

func TestPatternsHyphenate(t *testing.T) {
	p := samplePatterns(t)
	diff(t, []string{"hy", "phen", "ation"}, p.Hyphenate("hyphenation"))
	diff(t, []string{"Hy", "phen", "ation"}, p.Hyphenate("Hyphenation"))
	diff(t, []string{"Ta", "ble"}, p.Hyphenate("Table"))
	diff(t, []string{"hen"}, p.Hyphenate("hen"))
	if _, err := NewPatterns(PatternFile{Patterns: []string{"12"}}); err == nil {
		t.Fatalf("不含字母的模式应当报错")
	}
}

// TestTeXPatterns hyph-utf8 格式的空白分隔模式与 TOML 词典得到相同切分。
func TestTeXPatterns(t *testing.T) {
	p, err := LoadTeXPatterns(strings.NewReader("hy3ph he2n\nhena4 hen5at\n1na n2at 1tio 2io o2n\n"))
	if err != nil {
		t.Fatalf("加载 TeX 模式失败: %v", err)
	}
	diff(t, samplePatterns(t).Hyphenate("hyphenation"), p.Hyphenate("hyphenation"))
	diff(t, []string{"hy", "phen", "ation"}, p.Hyphenate("hyphenation"))
}

// TestPatternsRightMin 离词尾不足 right_min 个字符的断点被丢弃。
func TestPatternsRightMin(t *testing.T) {
	p, err := NewPatterns(PatternFile{RightMin: 6, Patterns: []string{"hy3ph", "he2n", "hena4", "hen5at", "1na", "n2at", "1tio", "2io", "o2n"}})
	if err != nil {
		t.Fatalf("编译模式失败: %v", err)
	}
	diff(t, []string{"hy", "phenation"}, p.Hyphenate("hyphenation"))
}

func TestSoftHyphenator(t *testing.T) {
	diff(t, []string{"co", "operate"}, Soft{}.Hyphenate("co\u00adoperate"))
	diff(t, []string{"plain"}, Soft{}.Hyphenate("plain"))
	diff(t, []string{"plain"}, None{}.Hyphenate("plain"))
}

func TestSplitWordsKeepsEmpty(t *testing.T) {
	diff(t, []string{"", "a", "", "b", ""}, splitWords(" a  b "))
	diff(t, []string{""}, splitWords(""))
}

func TestParseAlign(t *testing.T) {
	if a, err := ParseAlign("Justify"); err != nil || a != AlignJustify {
		t.Fatalf("解析 justify 失败: %v %v", a, err)
	}
	if _, err := ParseAlign("diagonal"); err == nil {
		t.Fatalf("未知对齐应当报错")
	}
}
