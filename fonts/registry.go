// Package fonts 管理排版使用的字体：内置 Latin Modern 字体与按路径加载的字体文件，
// 并基于 sfnt 提供排版所需的测量服务。
package fonts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Face 是一个已解析的字体。
type Face struct {
	Name string
	Src  string
	Data []byte
	font *sfnt.Font
	upem float64
}

type widthKey struct {
	family string
	text   string
}

// Registry 按名称登记字体并实现 layout.Measures。可被多个 goroutine 同时使用。
type Registry struct {
	baseDir  string
	fallback string

	mu     sync.Mutex
	faces  map[string]*Face
	buf    sfnt.Buffer
	widths map[widthKey]float64 // 以字体单位缓存的字符串宽度
}

// NewRegistry 创建字体注册表，相对路径的字体按 baseDir 解析。
func NewRegistry(baseDir string) *Registry {
	return &Registry{
		baseDir: baseDir,
		faces:   map[string]*Face{},
		widths:  map[widthKey]float64{},
	}
}

// Register 以 name 登记字体，src 为 "builtin:<名称>" 或字体文件路径。
// 第一个登记的字体同时作为回退字体，除非之后调用 SetFallback。
func (r *Registry) Register(name, src string) error {
	if name == "" {
		return fmt.Errorf("字体名称不能为空")
	}
	data, err := r.load(src)
	if err != nil {
		return err
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("解析字体 %s 失败: %w", src, err)
	}
	face := &Face{Name: name, Src: src, Data: data, font: f, upem: float64(f.UnitsPerEm())}
	if face.upem <= 0 {
		return fmt.Errorf("字体 %s 的 unitsPerEm 非法", src)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.faces[name] = face
	if r.fallback == "" {
		r.fallback = name
	}
	for k := range r.widths {
		if k.family == name {
			delete(r.widths, k)
		}
	}
	return nil
}

func (r *Registry) load(src string) ([]byte, error) {
	if src == "" {
		return nil, fmt.Errorf("字体缺少 src")
	}
	if IsBuiltin(src) {
		return Builtin(src)
	}
	path := src
	if !filepath.IsAbs(path) {
		if r.baseDir == "" {
			return nil, fmt.Errorf("未指定资源目录时不允许直接使用字体路径：%s（请改用 builtin:）", src)
		}
		path = filepath.Join(r.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取字体 %s 失败: %w", src, err)
	}
	return data, nil
}

// SetFallback 指定未登记的字体名所使用的字体。
func (r *Registry) SetFallback(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.faces[name]; !ok {
		return fmt.Errorf("回退字体 %s 未登记", name)
	}
	r.fallback = name
	return nil
}

// Fallback 返回回退字体名，尚未登记任何字体时为空。
func (r *Registry) Fallback() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fallback
}

// Has 报告 name 是否已登记。
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.faces[name]
	return ok
}

// Names 按字母序返回已登记的字体名。
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.faces))
	for name := range r.faces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup 返回 name 对应的字体，未登记时返回回退字体。
func (r *Registry) Lookup(name string) (*Face, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(name)
}

func (r *Registry) lookup(name string) (*Face, error) {
	if f, ok := r.faces[name]; ok {
		return f, nil
	}
	if f, ok := r.faces[r.fallback]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("字体 %s 未登记且没有回退字体", name)
}

// NewFace 以 size（pt，72 DPI）创建 font.Face，供光栅输出使用。
func (r *Registry) NewFace(name string, size float64) (font.Face, error) {
	f, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f.font, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
}

// Measure 返回 text 以 size 排版时的宽度（pt），包含字偶距。未知字体按回退字体测量，仍不可用时返回 0。
func (r *Registry) Measure(family string, size float64, text string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := r.lookup(family)
	if err != nil {
		return 0
	}
	key := widthKey{family: f.Name, text: text}
	units, ok := r.widths[key]
	if !ok {
		units = r.advance(f, text)
		r.widths[key] = units
	}
	return units / f.upem * size
}

// advance 以字体单位计算字符串宽度。
func (r *Registry) advance(f *Face, text string) float64 {
	ppem := fixed.I(int(f.upem))
	var (
		total fixed.Int26_6
		prev  sfnt.GlyphIndex
		first = true
	)
	for _, c := range text {
		idx, _ := f.font.GlyphIndex(&r.buf, c)
		if !first {
			// 没有 kern 表时返回 sfnt.ErrNotFound，按无字偶距处理
			if k, err := f.font.Kern(&r.buf, prev, idx, ppem, font.HintingNone); err == nil {
				total += k
			}
		}
		if adv, err := f.font.GlyphAdvance(&r.buf, idx, ppem, font.HintingNone); err == nil {
			total += adv
		}
		prev, first = idx, false
	}
	return float64(total) / 64
}

// Ascender 返回字体上升部，以 1000 单位的 em 为基准。
func (r *Registry) Ascender(family string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := r.lookup(family)
	if err != nil {
		return 0
	}
	m, err := f.font.Metrics(&r.buf, fixed.I(int(f.upem)), font.HintingNone)
	if err != nil {
		return 0
	}
	return float64(m.Ascent) / 64 / f.upem * 1000
}

// LeftBearing 返回 glyph 首个字符的左侧空白，以 1000 单位的 em 为基准。
func (r *Registry) LeftBearing(family string, glyph string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := r.lookup(family)
	if err != nil || glyph == "" {
		return 0
	}
	c := []rune(glyph)[0]
	idx, err := f.font.GlyphIndex(&r.buf, c)
	if err != nil {
		return 0
	}
	bounds, _, err := f.font.GlyphBounds(&r.buf, idx, fixed.I(int(f.upem)), font.HintingNone)
	if err != nil {
		return 0
	}
	return float64(bounds.Min.X) / 64 / f.upem * 1000
}
