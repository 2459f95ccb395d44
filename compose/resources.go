package compose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ByLCY/galley/dsl"
	"github.com/ByLCY/galley/fonts"
	"github.com/ByLCY/galley/layout"
	"github.com/ByLCY/galley/paint"
)

// resources 是 resources 段落中声明的字体、颜色与样式。
type resources struct {
	fonts  []string
	colors map[string]string
	styles map[string]map[string]string
}

type styleDef struct {
	name    string
	extends string
	props   map[string]string
}

// collectResources 登记字体并解析颜色与样式继承。
func collectResources(doc *dsl.Document, reg *fonts.Registry) (*resources, error) {
	res := &resources{colors: map[string]string{}}
	defs := map[string]styleDef{}
	for _, cmd := range doc.Resources() {
		switch cmd.Name {
		case "font":
			name, src, fallback, err := parseFontResource(cmd)
			if err != nil {
				return nil, err
			}
			if err := reg.Register(name, src); err != nil {
				return nil, cmd.Errorf("%w", err)
			}
			res.fonts = append(res.fonts, name)
			if fallback {
				if err := reg.SetFallback(name); err != nil {
					return nil, cmd.Errorf("%w", err)
				}
			}
		case "color":
			name, value, err := parseColorResource(cmd)
			if err != nil {
				return nil, err
			}
			res.colors[name] = value
		case "style":
			def, err := parseStyleResource(cmd)
			if err != nil {
				return nil, err
			}
			defs[def.name] = def
		default:
			return nil, cmd.Errorf("未知的资源类型")
		}
	}
	styles, err := resolveStyles(defs)
	if err != nil {
		return nil, err
	}
	res.styles = styles
	return res, nil
}

// parseFontResource 支持 `font Body { src: "..." fallback: true }` 与 `font Body "..."`。
func parseFontResource(cmd *dsl.Command) (name, src string, fallback bool, err error) {
	if len(cmd.Args) == 0 {
		return "", "", false, cmd.Errorf("缺少字体名称")
	}
	name = cmd.Args[0].Value
	if len(cmd.Args) > 1 {
		src = cmd.Args[len(cmd.Args)-1].Value
	}
	props := cmd.Block.Properties()
	if v := props["src"]; v != "" {
		src = v
	}
	if src == "" {
		return "", "", false, cmd.Errorf("字体 %s 缺少 src", name)
	}
	switch strings.ToLower(props["fallback"]) {
	case "", "false":
	case "true":
		fallback = true
	default:
		return "", "", false, cmd.Errorf("fallback 只能是 true 或 false")
	}
	return name, src, fallback, nil
}

// parseColorResource 解析 `color Accent = #0F62FE`。
func parseColorResource(cmd *dsl.Command) (string, string, error) {
	if len(cmd.Args) < 2 {
		return "", "", cmd.Errorf("颜色声明格式应为 color 名称 = #RRGGBB")
	}
	name := cmd.Args[0].Value
	value := cmd.Args[len(cmd.Args)-1].Value
	if _, err := paint.ParseColor(value); err != nil {
		return "", "", cmd.Errorf("颜色 %s: %w", name, err)
	}
	return name, value, nil
}

func parseStyleResource(cmd *dsl.Command) (styleDef, error) {
	if len(cmd.Args) == 0 {
		return styleDef{}, cmd.Errorf("缺少样式名称")
	}
	def := styleDef{name: cmd.Args[0].Value, props: map[string]string{}}
	if len(cmd.Args) >= 3 && strings.EqualFold(cmd.Args[1].Value, "extends") {
		def.extends = cmd.Args[2].Value
	}
	for k, v := range cmd.Block.Properties() {
		if v != "" {
			def.props[k] = v
		}
	}
	return def, nil
}

// resolveStyles 展开 extends 链，子样式覆盖父样式。
func resolveStyles(defs map[string]styleDef) (map[string]map[string]string, error) {
	resolved := map[string]map[string]string{}
	visiting := map[string]bool{}

	var dfs func(name string) (map[string]string, error)
	dfs = func(name string) (map[string]string, error) {
		if props, ok := resolved[name]; ok {
			return props, nil
		}
		def, ok := defs[name]
		if !ok {
			return nil, fmt.Errorf("style %s 未定义", name)
		}
		if visiting[name] {
			return nil, fmt.Errorf("style 继承存在循环：%s", name)
		}
		visiting[name] = true

		props := map[string]string{}
		if def.extends != "" {
			parent, err := dfs(def.extends)
			if err != nil {
				return nil, err
			}
			for k, v := range parent {
				props[k] = v
			}
		}
		for k, v := range def.props {
			props[k] = v
		}
		resolved[name] = props
		delete(visiting, name)
		return props, nil
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := dfs(name); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

// collectMeta 读取 meta 段落，取值支持 ${...} 插值。
func (b *builder) collectMeta(doc *dsl.Document) layout.Meta {
	meta := layout.Meta{Creator: b.opts.Creator}
	for _, a := range doc.Meta() {
		v := b.expand(a.Value.Text())
		switch strings.ToLower(a.Key) {
		case "title":
			meta.Title = v
		case "author":
			meta.Author = v
		case "subject":
			meta.Subject = v
		case "creator":
			meta.Creator = v
		case "keywords":
			meta.Keywords = v
		}
	}
	return meta
}
