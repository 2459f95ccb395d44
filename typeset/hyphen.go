package typeset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
	"github.com/speedata/hyphenation"
)

// Hyphenator 把单词切分为断字片段，片段拼接后等于原单词。
type Hyphenator interface {
	Hyphenate(word string) []string
}

// None 从不断字。
type None struct{}

// Hyphenate 实现 Hyphenator。
func (None) Hyphenate(word string) []string { return []string{word} }

// SoftHyphen 是软连字符 U+00AD。
const SoftHyphen = '\u00ad'

// Soft 只在单词中显式写出的软连字符处断字，片段中不保留软连字符。
type Soft struct{}

// Hyphenate 实现 Hyphenator。
func (Soft) Hyphenate(word string) []string {
	if !strings.ContainsRune(word, SoftHyphen) {
		return []string{word}
	}
	var parts []string
	for _, p := range strings.Split(word, string(SoftHyphen)) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return []string{""}
	}
	return parts
}

// Patterns 是基于 Liang 算法的断字词典，模式匹配由 github.com/speedata/hyphenation 完成。
type Patterns struct {
	lang              *hyphenation.Lang
	leftMin, rightMin int
	exceptions        map[string][]string
}

// PatternFile 是断字词典的 TOML 结构。
//
//	left_min = 2
//	right_min = 3
//	patterns = [".hy3p", "he2n"]
//	exceptions = ["ta-ble"]
type PatternFile struct {
	LeftMin    int      `toml:"left_min"`
	RightMin   int      `toml:"right_min"`
	Patterns   []string `toml:"patterns"`
	Exceptions []string `toml:"exceptions"`
}

// LoadPatternFile 读取断字词典。扩展名为 .toml 时按 PatternFile 解析，
// 其余按 hyph-utf8 的 .pat.txt 格式（空白分隔的 TeX 模式）解析。
func LoadPatternFile(path string) (*Patterns, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("无法打开断字词典 %s: %w", path, err)
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return LoadPatterns(f)
	}
	return LoadTeXPatterns(f)
}

// LoadPatterns 从 TOML 内容读取断字词典。
func LoadPatterns(r io.Reader) (*Patterns, error) {
	var pf PatternFile
	if _, err := toml.NewDecoder(r).Decode(&pf); err != nil {
		return nil, fmt.Errorf("解析断字词典失败: %w", err)
	}
	return NewPatterns(pf)
}

// LoadTeXPatterns 读取空白分隔的 TeX 模式，使用默认的左右最小片段长度。
func LoadTeXPatterns(r io.Reader) (*Patterns, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("读取断字词典失败: %w", err)
	}
	return NewPatterns(PatternFile{Patterns: strings.Fields(string(data))})
}

// NewPatterns 编译模式与例外词。
func NewPatterns(pf PatternFile) (*Patterns, error) {
	p := &Patterns{
		leftMin:    pf.LeftMin,
		rightMin:   pf.RightMin,
		exceptions: make(map[string][]string, len(pf.Exceptions)),
	}
	if p.leftMin <= 0 {
		p.leftMin = 2
	}
	if p.rightMin <= 0 {
		p.rightMin = 3
	}
	for _, raw := range pf.Patterns {
		if !strings.ContainsFunc(raw, unicode.IsLetter) {
			return nil, fmt.Errorf("断字模式 %q 不含字母", raw)
		}
	}
	lang, err := hyphenation.New(strings.NewReader(strings.ToLower(strings.Join(pf.Patterns, "\n"))))
	if err != nil {
		return nil, fmt.Errorf("编译断字模式失败: %w", err)
	}
	p.lang = lang
	for _, ex := range pf.Exceptions {
		parts := strings.Split(ex, "-")
		p.exceptions[strings.ToLower(strings.Join(parts, ""))] = parts
	}
	return p, nil
}

// Hyphenate 实现 Hyphenator。断点位置按字符计，离词首不足 leftMin 或离词尾不足 rightMin 的断点被丢弃。
func (p *Patterns) Hyphenate(word string) []string {
	runes := []rune(word)
	lower := strings.ToLower(word)
	if parts, ok := p.exceptions[lower]; ok {
		return splitLike(runes, parts)
	}
	if len(runes) < p.leftMin+p.rightMin {
		return []string{word}
	}

	var parts []string
	start := 0
	for _, k := range p.lang.Hyphenate(lower) {
		if k < p.leftMin || k > len(runes)-p.rightMin || k <= start {
			continue
		}
		parts = append(parts, string(runes[start:k]))
		start = k
	}
	return append(parts, string(runes[start:]))
}

// splitLike 按例外词给出的片段长度切分原单词，保留原大小写。
func splitLike(runes []rune, parts []string) []string {
	out := make([]string, 0, len(parts))
	pos := 0
	for _, part := range parts {
		n := len([]rune(part))
		out = append(out, string(runes[pos:pos+n]))
		pos += n
	}
	return out
}
