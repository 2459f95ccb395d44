package compose

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ByLCY/galley/dsl"
	"github.com/ByLCY/galley/layout"
)

// argKeys 是以 "键 值" 形式出现在命令行上的属性。
var argKeys = map[string]bool{
	"font":      true,
	"size":      true,
	"color":     true,
	"fill":      true,
	"stroke":    true,
	"width":     true,
	"leading":   true,
	"gap":       true,
	"indent":    true,
	"first":     true,
	"right":     true,
	"tolerance": true,
	"align":     true,
}

// argFlags 是单独出现的开关，展开为属性。
var argFlags = map[string][2]string{
	"left":        {"align", "left"},
	"center":      {"align", "center"},
	"justify":     {"align", "justify"},
	"hyphenate":   {"hyphenate", "true"},
	"nohyphenate": {"hyphenate", "false"},
}

// inherited 是会传递给子命令的文本属性。
var inherited = map[string]bool{
	"font":      true,
	"size":      true,
	"color":     true,
	"leading":   true,
	"align":     true,
	"hyphenate": true,
	"gap":       true,
	"indent":    true,
	"first":     true,
	"right":     true,
	"tolerance": true,
}

// parseArgs 把命令参数拆为位置参数与属性。
func parseArgs(args []*dsl.Lexeme) ([]string, map[string]string, error) {
	var positional []string
	attrs := map[string]string{}
	for i := 0; i < len(args); i++ {
		v := args[i].Value
		if flag, ok := argFlags[v]; ok && args[i].Type == "Ident" {
			attrs[flag[0]] = flag[1]
			continue
		}
		if argKeys[v] && args[i].Type == "Ident" {
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("参数 %s 缺少取值", v)
			}
			attrs[v] = args[i+1].Value
			i++
			continue
		}
		positional = append(positional, v)
	}
	return positional, attrs, nil
}

// inheritable 只保留可以传递给子命令的属性。
func inheritable(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		if inherited[k] {
			out[k] = v
		}
	}
	return out
}

// first 返回 keys 中第一个非空的属性值。
func first(attrs map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(attrs[k]); v != "" {
			return v
		}
	}
	return ""
}

// parseLength 把带单位的长度换算为 pt。
func parseLength(value string) (float64, error) {
	l, err := layout.ParseLength(value)
	if err != nil {
		return 0, err
	}
	return l.ToPT(), nil
}

// parseDimension 支持相对 reference 的百分比。
func parseDimension(value string, reference float64) (float64, error) {
	v := strings.TrimSpace(value)
	if num, ok := strings.CutSuffix(v, "%"); ok {
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("百分比 %q 无法解析: %w", value, err)
		}
		return reference * f / 100, nil
	}
	return parseLength(v)
}

// parseFloat 解析无单位的数值。
func parseFloat(value string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("数值 %q 无法解析: %w", value, err)
	}
	return f, nil
}
