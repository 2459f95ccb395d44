package typeset

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Align 是段落对齐方式。
type Align string

const (
	AlignLeft    Align = "left"
	AlignCenter  Align = "center"
	AlignJustify Align = "justify"
)

// ParseAlign 解析对齐方式，空字符串视为左对齐。
func ParseAlign(v string) (Align, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "left", "start":
		return AlignLeft, nil
	case "center", "middle":
		return AlignCenter, nil
	case "justify", "both":
		return AlignJustify, nil
	default:
		return "", fmt.Errorf("未知的对齐方式：%s", v)
	}
}

// HyphenPenalty 是断字处的惩罚值。
const HyphenPenalty = 100

// minHyphenateLength 是参与断字的单词最少字符数（不含）。
const minHyphenateLength = 4

// raggedStretch 是左对齐与居中时行尾可用的伸长量。
const raggedStretch = 12

// FormatOptions 控制两端对齐时词间空白的伸缩。
// 伸长量 = 空格宽度·SpaceWidth/SpaceStretch，压缩量 = 空格宽度·SpaceWidth/SpaceShrink。
type FormatOptions struct {
	SpaceWidth   float64 `toml:"space_width"`
	SpaceStretch float64 `toml:"space_stretch"`
	SpaceShrink  float64 `toml:"space_shrink"`
}

// DefaultFormatOptions 返回 3/6/9 的默认比例。
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{SpaceWidth: 3, SpaceStretch: 6, SpaceShrink: 9}
}

func (o FormatOptions) normalized() FormatOptions {
	def := DefaultFormatOptions()
	if o.SpaceWidth <= 0 {
		o.SpaceWidth = def.SpaceWidth
	}
	if o.SpaceStretch <= 0 {
		o.SpaceStretch = def.SpaceStretch
	}
	if o.SpaceShrink <= 0 {
		o.SpaceShrink = def.SpaceShrink
	}
	return o
}

// Format 把 spans 转换为对应对齐方式的节点序列。
// 每个单词之间按对齐方式插入空白；span 之间不隐式插入空白。
// h 为 nil 时不断字。
func Format(align Align, spans []Span, m Measurer, h Hyphenator, opts FormatOptions) []Item {
	if len(spans) == 0 {
		return nil
	}
	opts = opts.normalized()
	owned := make([]Span, len(spans))
	copy(owned, spans)

	var items []Item
	push := func(s *Span, n Node) { items = append(items, Item{Node: n, Span: s}) }

	if align == AlignCenter {
		push(&owned[0], Box{})
		push(&owned[0], Glue{Stretch: raggedStretch})
	}

	for si := range owned {
		span := &owned[si]
		space := m.Measure(span.FontFamily, span.FontSize, " ")
		hyphen := m.Measure(span.FontFamily, span.FontSize, "-")
		words := splitWords(span.Text)
		lastSpan := si == len(owned)-1

		for wi, word := range words {
			parts := []string{word}
			if span.Hyphenate && h != nil && utf8.RuneCountInString(word) > minHyphenateLength {
				if frags := h.Hyphenate(word); len(frags) > 1 {
					parts = frags
				}
			}
			for pi, part := range parts {
				push(span, Box{Width: m.Measure(span.FontFamily, span.FontSize, part), Text: part})
				if pi != len(parts)-1 {
					push(span, Penalty{Width: hyphen, Cost: HyphenPenalty, Flagged: true})
				}
			}

			switch {
			case lastSpan && wi == len(words)-1:
				if align == AlignCenter {
					push(span, Glue{Stretch: raggedStretch})
					push(span, Penalty{Cost: -Infinity})
				} else {
					push(span, Glue{Stretch: Infinity})
					push(span, Penalty{Cost: -Infinity, Flagged: true})
				}
			case wi != len(words)-1:
				for _, n := range interword(align, space, opts) {
					push(span, n)
				}
			}
		}
	}
	return items
}

func interword(align Align, space float64, opts FormatOptions) []Node {
	switch align {
	case AlignJustify:
		return []Node{Glue{
			Width:   space,
			Stretch: space * opts.SpaceWidth / opts.SpaceStretch,
			Shrink:  space * opts.SpaceWidth / opts.SpaceShrink,
		}}
	case AlignCenter:
		return []Node{
			Glue{Stretch: raggedStretch},
			Penalty{},
			Glue{Width: space, Stretch: -2 * raggedStretch},
			Box{},
			Penalty{Cost: Infinity},
			Glue{Stretch: raggedStretch},
		}
	default:
		return []Node{
			Glue{Stretch: raggedStretch},
			Penalty{},
			Glue{Width: space, Stretch: -raggedStretch},
		}
	}
}

// splitWords 按每个空白字符切分，连续空白会产生空单词。
func splitWords(text string) []string {
	words := []string{}
	start := 0
	for i, r := range text {
		if unicode.IsSpace(r) {
			words = append(words, text[start:i])
			start = i + utf8.RuneLen(r)
		}
	}
	return append(words, text[start:])
}
