package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/galley/typeset"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入 %s 失败: %v", name, err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("读取默认配置失败: %v", err)
	}
	if diff := cmp.Diff(Default().Breaking(), cfg.Breaking()); diff != "" {
		t.Fatalf("默认断行参数不符 (-want +got):\n%s", diff)
	}
	if cfg.Output.Format != FormatPDF || cfg.Output.Scale != 2 {
		t.Fatalf("默认输出设置错误: %+v", cfg.Output)
	}
}

// TestLoadOverridesDefaults 文件中出现的键覆盖默认值，其余保持不变。
func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "galley.toml", `
[layout]
tolerance = 4
concurrent = true

[fonts]
dir = "assets"

[output]
format = "png"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("读取配置失败: %v", err)
	}
	want := typeset.DefaultOptions()
	want.Tolerance = 4
	if diff := cmp.Diff(want, cfg.Breaking()); diff != "" {
		t.Fatalf("断行参数不符 (-want +got):\n%s", diff)
	}
	if !cfg.Layout.Concurrent || cfg.Output.Format != FormatPNG || cfg.Output.Scale != 2 {
		t.Fatalf("配置覆盖错误: %+v", cfg)
	}
	if got := cfg.FontDir("."); got != filepath.Join(dir, "assets") {
		t.Fatalf("字体目录应相对于配置文件，实际 %s", got)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"unknown.toml": "[layout]\nbogus = 1\n",
		"format.toml":  "[output]\nformat = \"svg\"\n",
		"scale.toml":   "[output]\nscale = 0\n",
		"syntax.toml":  "[layout\n",
	}
	for name, content := range cases {
		if _, err := Load(writeFile(t, dir, name, content)); err == nil {
			t.Fatalf("%s 应报错", name)
		}
	}
	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatalf("文件不存在时应报错")
	}
}

func TestHyphenator(t *testing.T) {
	cfg := Default()
	h, err := cfg.Hyphenator()
	if err != nil {
		t.Fatalf("构造断字器失败: %v", err)
	}
	if _, ok := h.(typeset.Soft); !ok {
		t.Fatalf("未指定词典时应使用软连字符断字，实际 %T", h)
	}

	cfg.Hyphenation.Enabled = false
	if h, _ = cfg.Hyphenator(); h.Hyphenate("hyphen")[0] != "hyphen" {
		t.Fatalf("关闭断字后不应切分单词")
	}

	dir := t.TempDir()
	writeFile(t, dir, "hyph.toml", "patterns = [\"hy3ph\", \"he2n\"]\n")
	path := writeFile(t, dir, "galley.toml", "[hyphenation]\nenabled = true\ndictionary = \"hyph.toml\"\n")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("读取配置失败: %v", err)
	}
	h, err = cfg.Hyphenator()
	if err != nil {
		t.Fatalf("加载词典失败: %v", err)
	}
	if _, ok := h.(*typeset.Patterns); !ok {
		t.Fatalf("指定词典时应使用模式断字，实际 %T", h)
	}

	writeFile(t, dir, "hyph-en.pat.txt", "hy3ph he2n hena4 hen5at\n1na n2at 1tio 2io o2n\n")
	cfg.Hyphenation.Dictionary = "hyph-en.pat.txt"
	if h, err = cfg.Hyphenator(); err != nil {
		t.Fatalf("加载 TeX 模式词典失败: %v", err)
	}
	if got := h.Hyphenate("hyphenation"); len(got) != 3 {
		t.Fatalf("TeX 模式词典应切出三段，实际 %v", got)
	}

	cfg.Hyphenation.Dictionary = "missing.toml"
	if _, err := cfg.Hyphenator(); err == nil {
		t.Fatalf("词典不存在时应报错")
	}
}
