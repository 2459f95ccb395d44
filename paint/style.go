// Package paint 描述多边形与文本共用的绘制属性。
package paint

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// LineJoin 取值 miter / round / bevel。
type LineJoin string

// LineCap 取值 butt / round / square。
type LineCap string

const (
	JoinMiter LineJoin = "miter"
	JoinRound LineJoin = "round"
	JoinBevel LineJoin = "bevel"

	CapButt   LineCap = "butt"
	CapRound  LineCap = "round"
	CapSquare LineCap = "square"
)

// DefaultLineWidth 是未指定线宽时的描边宽度（pt）。
const DefaultLineWidth = 1.0

// Style 是绘制属性的集合，所有字段都可以缺省。颜色使用十六进制字符串。
type Style struct {
	LineWidth     *float64 `json:"lineWidth,omitempty" toml:"line_width"`
	StrokeColor   string   `json:"strokeColor,omitempty" toml:"stroke_color"`
	FillColor     string   `json:"fillColor,omitempty" toml:"fill_color"`
	StrokeOpacity *float64 `json:"strokeOpacity,omitempty" toml:"stroke_opacity"`
	FillOpacity   *float64 `json:"fillOpacity,omitempty" toml:"fill_opacity"`
	LineJoin      LineJoin `json:"lineJoin,omitempty" toml:"line_join"`
	LineCap       LineCap  `json:"lineCap,omitempty" toml:"line_cap"`
}

// Over 返回以 s 为底、o 中已设置字段覆盖后的样式。
func (s Style) Over(o Style) Style {
	out := s
	if o.LineWidth != nil {
		out.LineWidth = o.LineWidth
	}
	if o.StrokeColor != "" {
		out.StrokeColor = o.StrokeColor
	}
	if o.FillColor != "" {
		out.FillColor = o.FillColor
	}
	if o.StrokeOpacity != nil {
		out.StrokeOpacity = o.StrokeOpacity
	}
	if o.FillOpacity != nil {
		out.FillOpacity = o.FillOpacity
	}
	if o.LineJoin != "" {
		out.LineJoin = o.LineJoin
	}
	if o.LineCap != "" {
		out.LineCap = o.LineCap
	}
	return out
}

// Width 返回描边宽度，缺省为 DefaultLineWidth。
func (s Style) Width() float64 {
	if s.LineWidth == nil {
		return DefaultLineWidth
	}
	return *s.LineWidth
}

// Fill 解析填充色并叠加填充透明度；未设置填充色时 ok 为 false。
func (s Style) Fill() (color.NRGBA, bool, error) {
	return resolve(s.FillColor, s.FillOpacity)
}

// Stroke 解析描边色并叠加描边透明度；未设置描边色时 ok 为 false。
func (s Style) Stroke() (color.NRGBA, bool, error) {
	return resolve(s.StrokeColor, s.StrokeOpacity)
}

// Validate 检查颜色、透明度与线型取值是否合法。
func (s Style) Validate() error {
	if _, _, err := s.Fill(); err != nil {
		return err
	}
	if _, _, err := s.Stroke(); err != nil {
		return err
	}
	if s.LineWidth != nil && *s.LineWidth < 0 {
		return fmt.Errorf("线宽不能为负数: %g", *s.LineWidth)
	}
	switch s.LineJoin {
	case "", JoinMiter, JoinRound, JoinBevel:
	default:
		return fmt.Errorf("未知的 lineJoin: %s", s.LineJoin)
	}
	switch s.LineCap {
	case "", CapButt, CapRound, CapSquare:
	default:
		return fmt.Errorf("未知的 lineCap: %s", s.LineCap)
	}
	return nil
}

func resolve(hex string, opacity *float64) (color.NRGBA, bool, error) {
	if hex == "" {
		return color.NRGBA{}, false, nil
	}
	c, err := ParseColor(hex)
	if err != nil {
		return color.NRGBA{}, false, err
	}
	if opacity != nil {
		o := *opacity
		if o < 0 || o > 1 {
			return color.NRGBA{}, false, fmt.Errorf("透明度需在 0 到 1 之间: %g", o)
		}
		c.A = uint8(float64(c.A)*o + 0.5)
	}
	return c, true, nil
}

// ParseColor 解析 #rgb、#rgba、#rrggbb、#rrggbbaa 形式的颜色。
func ParseColor(value string) (color.NRGBA, error) {
	v := strings.TrimPrefix(strings.TrimSpace(value), "#")
	expand := func(s string) string {
		var b strings.Builder
		for _, r := range s {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		return b.String()
	}
	switch len(v) {
	case 3, 4:
		v = expand(v)
	case 6, 8:
	default:
		return color.NRGBA{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
	if len(v) == 6 {
		v += "ff"
	}
	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("颜色值 %s 无法解析: %w", value, err)
	}
	return color.NRGBA{
		R: uint8(n >> 24),
		G: uint8(n >> 16),
		B: uint8(n >> 8),
		A: uint8(n),
	}, nil
}

// Float 返回指向 v 的指针，便于构造可选字段。
func Float(v float64) *float64 { return &v }
