package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// 引擎内部的长度单位统一为 pt，这里负责把带单位的输入换算过来。

// Unit 表示长度值在输入中的原始单位。
type Unit int

const (
	UnitNone Unit = iota // 无单位，按 pt 处理
	UnitMM               // millimeters
	UnitCM               // centimeters
	UnitIN               // inches
	UnitPT               // points
)

// pt 与 mm 的换算常量。
const (
	PtToMm = 0.352777
	MmToPt = 1.0 / PtToMm
)

func (u Unit) String() string {
	switch u {
	case UnitMM:
		return "mm"
	case UnitCM:
		return "cm"
	case UnitIN:
		return "in"
	case UnitPT:
		return "pt"
	default:
		return ""
	}
}

// Length 保留数值及其单位。
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

func (l Length) IsZero() bool { return l.Value == 0 }

// ToPT 换算为 pt；无单位的值视为 pt。
func (l Length) ToPT() float64 {
	switch l.Unit {
	case UnitMM:
		return l.Value * MmToPt
	case UnitCM:
		return l.Value * 10 * MmToPt
	case UnitIN:
		return l.Value * 72
	default:
		return l.Value
	}
}

// ToMM 换算为 mm。
func (l Length) ToMM() float64 {
	switch l.Unit {
	case UnitMM:
		return l.Value
	case UnitCM:
		return l.Value * 10
	case UnitIN:
		return l.Value * 25.4
	default:
		return l.Value * PtToMm
	}
}

func (l Length) String() string {
	return strconv.FormatFloat(l.Value, 'f', -1, 64) + l.Unit.String()
}

var unitSuffixes = []struct {
	s string
	u Unit
}{{"mm", UnitMM}, {"cm", UnitCM}, {"in", UnitIN}, {"pt", UnitPT}}

// ParseLength 解析形如 "12pt"、"2.5cm"、"10" 的长度。
func ParseLength(value string) (Length, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Length{}, fmt.Errorf("长度不能为空")
	}
	unit := UnitNone
	num := v
	for _, suf := range unitSuffixes {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{}, fmt.Errorf("长度 %q 无法解析: %w", value, err)
	}
	return Length{Value: f, Unit: unit}, nil
}

// LineHeightKind 区分倍数行高与绝对行高。
type LineHeightKind int

const (
	LineHeightFactor LineHeightKind = iota
	LineHeightAbsolute
)

// LineHeightSpec 保留作者的原始意图：倍数（如 1.2x）或绝对长度（如 18pt）。
type LineHeightSpec struct {
	Kind   LineHeightKind `json:"kind"`
	Factor float64        `json:"factor,omitempty"`
	Len    Length         `json:"len,omitempty"`
}

// DefaultLineHeight 是未指定行高时使用的倍数。
const DefaultLineHeight = 1.2

// ParseLineHeight 解析 "1.2x"、"1.2" 或 "18pt"。无单位的纯数字视为倍数。
func ParseLineHeight(value string) (LineHeightSpec, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if f, ok := strings.CutSuffix(v, "x"); ok {
		factor, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return LineHeightSpec{}, fmt.Errorf("行高 %q 无法解析: %w", value, err)
		}
		return LineHeightSpec{Kind: LineHeightFactor, Factor: factor}, nil
	}
	l, err := ParseLength(v)
	if err != nil {
		return LineHeightSpec{}, fmt.Errorf("行高 %q 无法解析: %w", value, err)
	}
	if l.Unit == UnitNone {
		return LineHeightSpec{Kind: LineHeightFactor, Factor: l.Value}, nil
	}
	return LineHeightSpec{Kind: LineHeightAbsolute, Len: l}, nil
}

// Resolve 根据字号（pt）计算行距（pt）。
func (s LineHeightSpec) Resolve(fontSize float64) float64 {
	switch s.Kind {
	case LineHeightAbsolute:
		return s.Len.ToPT()
	default:
		if s.Factor <= 0 {
			return fontSize * DefaultLineHeight
		}
		return fontSize * s.Factor
	}
}
