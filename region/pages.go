package region

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Format 是纸张尺寸（pt）。
type Format struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Landscape 交换宽高。
func (f Format) Landscape() Format { return Format{Width: f.Height, Height: f.Width} }

// Formats 列出常用纸张尺寸（pt）。
var Formats = map[string]Format{
	"4A0":       {4767.87, 6740.79},
	"2A0":       {3370.39, 4767.87},
	"A0":        {2383.94, 3370.39},
	"A1":        {1683.78, 2383.94},
	"A2":        {1190.55, 1683.78},
	"A3":        {841.89, 1190.55},
	"A4":        {595.28, 841.89},
	"A5":        {419.53, 595.28},
	"A6":        {297.64, 419.53},
	"A7":        {209.76, 297.64},
	"A8":        {147.40, 209.76},
	"A9":        {104.88, 147.40},
	"A10":       {73.70, 104.88},
	"B0":        {2834.65, 4008.19},
	"B1":        {2004.09, 2834.65},
	"B2":        {1417.32, 2004.09},
	"B3":        {1000.63, 1417.32},
	"B4":        {708.66, 1000.63},
	"B5":        {498.90, 708.66},
	"B6":        {354.33, 498.90},
	"B7":        {249.45, 354.33},
	"B8":        {175.75, 249.45},
	"B9":        {124.72, 175.75},
	"B10":       {87.87, 124.72},
	"C0":        {2599.37, 3676.54},
	"C1":        {1836.85, 2599.37},
	"C2":        {1298.27, 1836.85},
	"C3":        {918.43, 1298.27},
	"C4":        {649.13, 918.43},
	"C5":        {459.21, 649.13},
	"C6":        {323.15, 459.21},
	"C7":        {229.61, 323.15},
	"C8":        {161.57, 229.61},
	"C9":        {113.39, 161.57},
	"C10":       {79.37, 113.39},
	"RA0":       {2437.80, 3458.27},
	"RA1":       {1729.13, 2437.80},
	"RA2":       {1218.90, 1729.13},
	"RA3":       {864.57, 1218.90},
	"RA4":       {609.45, 864.57},
	"SRA0":      {2551.18, 3628.35},
	"SRA1":      {1814.17, 2551.18},
	"SRA2":      {1275.59, 1814.17},
	"SRA3":      {907.09, 1275.59},
	"SRA4":      {637.80, 907.09},
	"EXECUTIVE": {521.86, 756.00},
	"FOLIO":     {612.00, 936.00},
	"LEGAL":     {612.00, 1008.00},
	"LETTER":    {612.00, 792.00},
	"TABLOID":   {792.00, 1224.00},
}

// LookupFormat 按名称（不区分大小写）查找纸张尺寸。
func LookupFormat(name string) (Format, error) {
	f, ok := Formats[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Format{}, fmt.Errorf("暂不支持的纸张尺寸：%s（可用：%s）", name, strings.Join(FormatNames(), ", "))
	}
	return f, nil
}

// FormatNames 返回按字母排序的全部纸张名称。
func FormatNames() []string {
	names := make([]string, 0, len(Formats))
	for name := range Formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Margins 是页边距（pt）。
type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Uniform 返回四边相同的页边距。
func Uniform(v float64) Margins { return Margins{Top: v, Right: v, Bottom: v, Left: v} }

// Pages 返回每页一个内容区的无限流，第 i 个区域位于第 i 页并带有 TagNewPage。
func Pages(f Format, m Margins) Stream {
	return Func(func(index int) (Region, bool) {
		return Region{
			Tag:    TagNewPage,
			X:      m.Left,
			Y:      float64(index)*f.Height + m.Top,
			Width:  f.Width - (m.Left + m.Right),
			Height: f.Height - (m.Top + m.Bottom),
		}, true
	})
}

// Columns 返回每页 n 栏的无限流，栏间距为 gap。每页第一栏带有 TagNewPage。
func Columns(f Format, n int, gap float64, m Margins) Stream {
	if n <= 1 {
		return Pages(f, m)
	}
	content := f.Width - (m.Left + m.Right)
	width := (content - float64(n-1)*gap) / float64(n)
	return Func(func(index int) (Region, bool) {
		page, col := index/n, index%n
		r := Region{
			X:      m.Left + float64(col)*(width+gap),
			Y:      float64(page)*f.Height + m.Top,
			Width:  width,
			Height: f.Height - (m.Top + m.Bottom),
		}
		if col == 0 {
			r.Tag = TagNewPage
		}
		return r, true
	})
}

// PageOf 返回 y 坐标所在的页码。
func PageOf(y, pageHeight float64) int {
	if pageHeight <= 0 {
		return 0
	}
	return int(math.Floor(y / pageHeight))
}
