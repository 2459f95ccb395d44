// Package typeset 实现 box/glue/penalty 模型、Knuth–Plass 最优断行以及
// 把带样式文本转换为可断行节点序列的段落格式化器。
package typeset

import "github.com/ByLCY/galley/paint"

// Infinity 是惩罚与伸缩量使用的“无穷大”。
// cost >= Infinity 的惩罚禁止断行，cost <= -Infinity 的惩罚强制断行。
const Infinity = 10000.0

// Node 是 Box、Glue、Penalty 三者之一。
type Node interface {
	isNode()
}

// Box 是不可拆分的定宽内容，通常是一个单词或单词片段。
type Box struct {
	Width float64 `json:"width"`
	Text  string  `json:"text"`
}

// Glue 是可伸缩的空白。
type Glue struct {
	Width   float64 `json:"width"`
	Stretch float64 `json:"stretch"`
	Shrink  float64 `json:"shrink"`
}

// Penalty 是可能的断点。在此断行时 Width 计入该行宽度。
type Penalty struct {
	Width   float64 `json:"width"`
	Cost    float64 `json:"cost"`
	Flagged bool    `json:"flagged"`
}

func (Box) isNode()     {}
func (Glue) isNode()    {}
func (Penalty) isNode() {}

// Forced 报告该惩罚是否强制断行。
func (p Penalty) Forced() bool { return p.Cost <= -Infinity }

// Forbidden 报告该惩罚是否禁止断行。
func (p Penalty) Forbidden() bool { return p.Cost >= Infinity }

// Span 是一段共享样式的文本。
type Span struct {
	FontFamily string            `json:"fontFamily"`
	FontSize   float64           `json:"fontSize"`
	Text       string            `json:"text"`
	Hyphenate  bool              `json:"hyphenate,omitempty"`
	Style      paint.Style       `json:"style,omitempty"`
	Options    map[string]string `json:"options,omitempty"`
}

// Item 把节点与其来源 Span 绑定，断行过程中 Span 原样传递。
type Item struct {
	Node Node  `json:"node"`
	Span *Span `json:"-"`
}

// Nodes 提取 Item 序列中的节点。
func Nodes(items []Item) []Node {
	out := make([]Node, len(items))
	for i, it := range items {
		out[i] = it.Node
	}
	return out
}

// Measurer 测量给定字体、字号下文本的宽度。
type Measurer interface {
	Measure(family string, size float64, text string) float64
}

// MeasureFunc 把函数适配为 Measurer。
type MeasureFunc func(family string, size float64, text string) float64

// Measure 实现 Measurer。
func (f MeasureFunc) Measure(family string, size float64, text string) float64 {
	return f(family, size, text)
}
