package dsl_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/galley/dsl"
)

const sampleDSL = `
doc Galley v1 {
  meta {
    title: "Quarterly"
    keywords: [
      "finance"
      "internal"
    ]
  }

  resources {
    font Body {
      src: "builtin:lmroman10regular"
    }

    color Accent = #0F62FE
    style Note extends Base { fillColor: "#555" }
  }

  page A4 landscape margin 18mm columns 2 gap 8mm {
    flow {
      paragraph justify leading 1.3x { "Hello, ${user.name}!" }

      columns gap 6mm {
        column 50% {
          text Body size 10pt { "left" }
        }
      }

      polygon Accent {
        points: [[0, 0], [100, -5], [100, 2]]
        align: data.align
      }
      pagebreak
    }
  }
}
`

func TestParseDocument(t *testing.T) {
	doc, err := dsl.ParseString(sampleDSL)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if doc.Name != "Galley" || doc.Version != "v1" {
		t.Fatalf("文档头错误: %s %s", doc.Name, doc.Version)
	}
	kinds := make([]string, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		kinds = append(kinds, s.Kind())
	}
	if diff := cmp.Diff([]string{"meta", "resources", "page"}, kinds); diff != "" {
		t.Fatalf("分区类型不符 (-want +got):\n%s", diff)
	}

	meta := doc.Meta()
	if len(meta) != 2 || meta[0].Key != "title" || meta[0].Value.Text() != "Quarterly" {
		t.Fatalf("meta 解析错误: %+v", meta)
	}
	if diff := cmp.Diff([]string{"finance", "internal"}, meta[1].Value.Strings()); diff != "" {
		t.Fatalf("keywords 不符 (-want +got):\n%s", diff)
	}

	res := doc.Resources()
	if len(res) != 3 {
		t.Fatalf("期望 3 个资源声明，实际 %d", len(res))
	}
	if res[1].Name != "color" || res[1].Args[2].Value != "#0F62FE" {
		t.Fatalf("颜色资源解析错误: %+v", res[1].Args)
	}
	if res[2].Block.Properties()["fillColor"] != "#555" {
		t.Fatalf("样式属性解析错误: %+v", res[2].Block.Properties())
	}

	pages := doc.Pages()
	if len(pages) != 1 {
		t.Fatalf("期望 1 个页面分区，实际 %d", len(pages))
	}
	page := pages[0]
	params := make([]string, 0, len(page.Spec.Params))
	for _, p := range page.Spec.Params {
		params = append(params, p.Value)
	}
	if diff := cmp.Diff([]string{"landscape", "margin", "18mm", "columns", "2", "gap", "8mm"}, params); diff != "" {
		t.Fatalf("页面参数不符 (-want +got):\n%s", diff)
	}

	flow := page.Block.Commands()[0]
	if flow.Name != "flow" {
		t.Fatalf("期望 flow 命令，实际 %s", flow.Name)
	}
	cmds := flow.Block.Commands()
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"paragraph", "columns", "polygon", "pagebreak"}, names); diff != "" {
		t.Fatalf("流内命令不符 (-want +got):\n%s", diff)
	}

	para := cmds[0]
	if para.Block.Statements[0].Text == nil {
		t.Fatalf("段落缺少文本字面量")
	}
	if got := string(para.Block.Statements[0].Text.Value); !strings.Contains(got, "${user.name}") {
		t.Fatalf("文本应保留插值占位符，实际 %s", got)
	}

	column := cmds[1].Block.Commands()[0]
	if column.Name != "column" || column.Args[0].Value != "50%" {
		t.Fatalf("column 参数错误: %+v", column.Args)
	}

	points, ok := cmds[2].Block.Lookup("points")
	if !ok {
		t.Fatalf("polygon 缺少 points")
	}
	var got [][]string
	for _, item := range points.Items() {
		got = append(got, item.Strings())
	}
	if diff := cmp.Diff([][]string{{"0", "0"}, {"100", "-5"}, {"100", "2"}}, got); diff != "" {
		t.Fatalf("points 不符 (-want +got):\n%s", diff)
	}
	align, _ := cmds[2].Block.Lookup("align")
	if align.Expr == nil || align.Text() != "data.align" {
		t.Fatalf("表达式应按原样拼接，实际 %q", align.Text())
	}
}

func TestParseErrorHasPosition(t *testing.T) {
	_, err := dsl.ParseString("doc X v1 {\n  page A4 {\n")
	if err == nil {
		t.Fatalf("未闭合的文档应报错")
	}
}

func TestCommandErrorf(t *testing.T) {
	doc, err := dsl.ParseString("doc X v1 {\n  page A4 {\n    flow { bogus }\n  }\n}\n")
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	bogus := doc.Pages()[0].Block.Commands()[0].Block.Commands()[0]
	msg := bogus.Errorf("未知命令").Error()
	if !strings.HasPrefix(msg, "3:12 bogus") {
		t.Fatalf("错误信息应带位置，实际 %q", msg)
	}
}
