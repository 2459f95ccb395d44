// Package config 读取 galley 的 TOML 配置文件。
//
//	[layout]
//	tolerance = 10
//	max_tolerance = 1000
//	concurrent = true
//
//	[hyphenation]
//	enabled = true
//	dictionary = "hyph-en.toml"
//
//	[fonts]
//	dir = "fonts"
//	fallback = "builtin:lmroman10regular"
//
//	[output]
//	format = "png"
//	scale = 2
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ByLCY/galley/fonts"
	"github.com/ByLCY/galley/typeset"
)

// 支持的输出格式。
const (
	FormatPDF = "pdf"
	FormatPNG = "png"
)

// Config 是完整配置。
type Config struct {
	Layout      Layout      `toml:"layout"`
	Hyphenation Hyphenation `toml:"hyphenation"`
	Fonts       Fonts       `toml:"fonts"`
	Output      Output      `toml:"output"`
	Log         Log         `toml:"log"`

	// dir 是配置文件所在目录，相对路径以它为基准。
	dir string
}

// Layout 是断行与排版参数。
type Layout struct {
	Tolerance    float64               `toml:"tolerance"`
	MaxTolerance float64               `toml:"max_tolerance"`
	Demerits     typeset.Demerits      `toml:"demerits"`
	Spacing      typeset.FormatOptions `toml:"spacing"`
	Concurrent   bool                  `toml:"concurrent"`
}

// Hyphenation 控制断字。未指定词典时只在软连字符处断字。
type Hyphenation struct {
	Enabled bool `toml:"enabled"`
	// Dictionary 是 .toml 词典或 hyph-utf8 的 .pat.txt 模式文件
	Dictionary string `toml:"dictionary"`
}

// Fonts 是字体查找设置。
type Fonts struct {
	Dir      string `toml:"dir"`
	Fallback string `toml:"fallback"`
}

// Output 是输出设置。
type Output struct {
	Format string  `toml:"format"`
	Scale  float64 `toml:"scale"`
}

// Log 是日志设置。
type Log struct {
	Level string `toml:"level"`
}

// Default 返回默认配置。
func Default() Config {
	b := typeset.DefaultOptions()
	return Config{
		Layout: Layout{
			Tolerance:    b.Tolerance,
			MaxTolerance: b.MaxTolerance,
			Demerits:     b.Demerits,
			Spacing:      typeset.DefaultFormatOptions(),
		},
		Hyphenation: Hyphenation{Enabled: true},
		Fonts:       Fonts{Fallback: fonts.DefaultFont},
		Output:      Output{Format: FormatPDF, Scale: 2},
		Log:         Log{Level: "info"},
	}
}

// Load 读取 path 并覆盖默认值；path 为空时返回默认配置。
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Decode 把 TOML 文本解码到 cfg 上，未出现的键保持原值。
func Decode(data string, cfg *Config) error {
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return fmt.Errorf("解析配置失败: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("未知配置项: %s", strings.Join(keys, ", "))
	}
	return cfg.Validate()
}

// Validate 检查取值范围。
func (c Config) Validate() error {
	switch c.Output.Format {
	case FormatPDF, FormatPNG:
	default:
		return fmt.Errorf("不支持的输出格式: %s", c.Output.Format)
	}
	if c.Output.Scale <= 0 {
		return fmt.Errorf("输出缩放比例必须为正数: %g", c.Output.Scale)
	}
	if c.Layout.Tolerance < 0 || c.Layout.MaxTolerance < 0 {
		return fmt.Errorf("容差不能为负数")
	}
	return nil
}

// Breaking 返回断行参数。
func (c Config) Breaking() typeset.Options {
	return typeset.Options{
		Tolerance:    c.Layout.Tolerance,
		MaxTolerance: c.Layout.MaxTolerance,
		Demerits:     c.Layout.Demerits,
	}
}

// Hyphenator 按配置构造断字器。
func (c Config) Hyphenator() (typeset.Hyphenator, error) {
	if !c.Hyphenation.Enabled {
		return typeset.None{}, nil
	}
	if c.Hyphenation.Dictionary == "" {
		return typeset.Soft{}, nil
	}
	p, err := typeset.LoadPatternFile(c.Resolve(c.Hyphenation.Dictionary))
	if err != nil {
		return nil, fmt.Errorf("加载断字词典失败: %w", err)
	}
	return p, nil
}

// Resolve 把相对路径解析到配置文件所在目录。
func (c Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	return filepath.Join(c.dir, path)
}

// FontDir 返回字体目录，未配置时使用 fallback。
func (c Config) FontDir(fallback string) string {
	if c.Fonts.Dir == "" {
		return fallback
	}
	return c.Resolve(c.Fonts.Dir)
}
