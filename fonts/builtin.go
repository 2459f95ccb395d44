package fonts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-fonts/latin-modern/lmmono10regular"
	"github.com/go-fonts/latin-modern/lmroman10bold"
	"github.com/go-fonts/latin-modern/lmroman10bolditalic"
	"github.com/go-fonts/latin-modern/lmroman10italic"
	"github.com/go-fonts/latin-modern/lmroman10regular"
	"github.com/go-fonts/latin-modern/lmsans10bold"
	"github.com/go-fonts/latin-modern/lmsans10regular"
)

// BuiltinPrefix 标记内置字体，例如 "builtin:lmroman10regular"。
const BuiltinPrefix = "builtin:"

// DefaultFont 是未配置回退字体时使用的内置字体。
const DefaultFont = BuiltinPrefix + "lmroman10regular"

var builtin = map[string][]byte{
	"lmroman10regular":    lmroman10regular.TTF,
	"lmroman10bold":       lmroman10bold.TTF,
	"lmroman10italic":     lmroman10italic.TTF,
	"lmroman10bolditalic": lmroman10bolditalic.TTF,
	"lmsans10regular":     lmsans10regular.TTF,
	"lmsans10bold":        lmsans10bold.TTF,
	"lmmono10regular":     lmmono10regular.TTF,
}

// Builtin 返回内置字体的字节数据，name 可带或不带 "builtin:" 前缀。
func Builtin(name string) ([]byte, error) {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(name, BuiltinPrefix), "built-in:"))
	data, ok := builtin[key]
	if !ok {
		return nil, fmt.Errorf("找不到内置字体资源 %s%s", BuiltinPrefix, key)
	}
	return data, nil
}

// BuiltinNames 按字母序返回全部内置字体名。
func BuiltinNames() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsBuiltin 报告 src 是否引用内置字体。
func IsBuiltin(src string) bool {
	return strings.HasPrefix(src, BuiltinPrefix) || strings.HasPrefix(src, "built-in:")
}
