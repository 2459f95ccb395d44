// Package binding 把外部 JSON 数据插入文档文本中的 ${path} 占位符。
package binding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Scope 是插值时可见的根对象，顶层键即路径的第一段，例如 data。
type Scope map[string]any

// NewScope 以 data 为 "data" 键创建作用域。
func NewScope(data any) Scope {
	return Scope{"data": data}
}

// Interpolate 将文本中的 ${path.to.value} 替换为作用域中的值，缺失路径保留原占位符。
func (s Scope) Interpolate(text string) string {
	out, _ := s.Expand(text)
	return out
}

// Expand 与 Interpolate 相同，同时返回无法解析的路径。
func (s Scope) Expand(text string) (string, []string) {
	if !strings.Contains(text, "${") {
		return text, nil
	}
	var missing []string
	out := exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-1])
		if path == "" {
			return match
		}
		val, ok := s.Lookup(path)
		if !ok {
			missing = append(missing, path)
			return match
		}
		return format(val)
	})
	return out, missing
}

// Lookup 解析 a.b[0].c 形式的路径。
func (s Scope) Lookup(path string) (any, bool) {
	var current any = map[string]any(s)
	for _, segment := range strings.Split(path, ".") {
		name, indexes, ok := parseSegment(strings.TrimSpace(segment))
		if !ok {
			return nil, false
		}
		if name != "" {
			if current, ok = descendMap(current, name); !ok {
				return nil, false
			}
		}
		for _, idx := range indexes {
			if current, ok = descendArray(current, idx); !ok {
				return nil, false
			}
		}
	}
	return current, true
}

// Load 解码 JSON 数据，数字保留原文写法。
func Load(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("解析数据失败: %w", err)
	}
	return data, nil
}

// LoadFile 读取并解码 JSON 数据文件。
func LoadFile(path string) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取数据文件失败: %w", err)
	}
	data, err := Load(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// parseSegment 拆分 name[1][2]，索引必须是非负整数。
func parseSegment(segment string) (string, []int, bool) {
	i := strings.IndexByte(segment, '[')
	if i == -1 {
		return segment, nil, segment != ""
	}
	name, rest := segment[:i], segment[i:]
	var indexes []int
	for rest != "" {
		end := strings.IndexByte(rest, ']')
		if rest[0] != '[' || end == -1 {
			return "", nil, false
		}
		idx, err := strconv.Atoi(rest[1:end])
		if err != nil || idx < 0 {
			return "", nil, false
		}
		indexes = append(indexes, idx)
		rest = rest[end+1:]
	}
	return name, indexes, true
}

func descendMap(current any, key string) (any, bool) {
	switch c := current.(type) {
	case map[string]any:
		val, ok := c[key]
		return val, ok
	case Scope:
		val, ok := c[key]
		return val, ok
	case map[string]string:
		val, ok := c[key]
		return val, ok
	default:
		return nil, false
	}
}

func descendArray(current any, idx int) (any, bool) {
	switch c := current.(type) {
	case []any:
		if idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	case []string:
		if idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	default:
		return nil, false
	}
}

func format(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = format(item)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}
