package layout

import "github.com/ByLCY/galley/region"

// Job 是在某个区域流上运行的一个渲染器，例如正文或页眉背景层。
type Job struct {
	Stream   region.Stream
	Renderer Renderer
}

// Page 是一页上的绘制节点，坐标已换算为页内坐标。
type Page struct {
	Index int          `json:"index"`
	Nodes []RenderNode `json:"nodes"`
}

// Meta 是文档元数据。
type Meta struct {
	Title    string `json:"title,omitempty"`
	Author   string `json:"author,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Creator  string `json:"creator,omitempty"`
	Keywords string `json:"keywords,omitempty"`
}

// Document 是分页后的排版结果，交给输出端绘制。
type Document struct {
	Format region.Format `json:"format"`
	Meta   Meta          `json:"meta"`
	Pages  []Page        `json:"pages"`
	Report Report        `json:"report"`
}

// Run 依次运行各个任务，每个任务的节点构成一层。
func Run(m Measures, jobs ...Job) ([][]RenderNode, Report) {
	var report Report
	layers := make([][]RenderNode, 0, len(jobs))
	for _, job := range jobs {
		if job.Renderer == nil || job.Stream == nil {
			continue
		}
		res := job.Renderer(m, job.Stream)
		layers = append(layers, res.Nodes)
		report.Merge(res.Report)
	}
	return layers, report
}

// Paginate 按 floor(y / pageHeight) 把节点分到各页，并把 y 平移到页内坐标。
// 先出现的层先绘制；页数为最大页号加一，中间的空页也会保留。
func Paginate(pageHeight float64, layers ...[]RenderNode) []Page {
	if pageHeight <= 0 {
		return nil
	}
	count := 0
	for _, layer := range layers {
		for _, n := range layer {
			_, y := n.Origin()
			count = max(count, pageIndex(y, pageHeight)+1)
		}
	}
	pages := make([]Page, count)
	for i := range pages {
		pages[i].Index = i
	}
	for _, layer := range layers {
		for _, n := range layer {
			_, y := n.Origin()
			page := pageIndex(y, pageHeight)
			dy := -float64(page) * pageHeight
			pages[page].Nodes = append(pages[page].Nodes, shift(n, dy))
		}
	}
	return pages
}

// pageIndex 把负坐标归到第一页。
func pageIndex(y, pageHeight float64) int {
	return max(region.PageOf(y, pageHeight), 0)
}

func shift(n RenderNode, dy float64) RenderNode {
	switch v := n.(type) {
	case Text:
		v.Y += dy
		return v
	case Polygon:
		v.Y += dy
		pts := make([]region.Point, len(v.Points))
		for i, p := range v.Points {
			pts[i] = region.Point{X: p.X, Y: p.Y + dy}
		}
		v.Points = pts
		return v
	default:
		return n
	}
}

// Layout 运行全部任务并分页。
func Layout(format region.Format, meta Meta, m Measures, jobs ...Job) *Document {
	layers, report := Run(m, jobs...)
	return &Document{
		Format: format,
		Meta:   meta,
		Pages:  Paginate(format.Height, layers...),
		Report: report,
	}
}
