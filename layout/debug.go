package layout

import (
	"encoding/json"
	"os"
)

// WriteDebugJSON 将分页结果输出为 JSON，便于调试或可视化。
func WriteDebugJSON(doc *Document, path string) error {
	if doc == nil {
		return nil
	}
	out := struct {
		*Document
		Issues []string `json:"issues,omitempty"`
	}{doc, doc.Report.Messages()}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
