package layout

import (
	"encoding/json"
	"os"

	"github.com/ByLCY/folio/paginate"
)

// debugDump 在截取树之外附带分页视角：虚拟页高与各分页标记的原始偏移。
type debugDump struct {
	*Capture
	VirtualPageHeight float64       `json:"virtualPageHeight"`
	Markers           []debugMarker `json:"markers"`
}

type debugMarker struct {
	ID     string  `json:"id,omitempty"`
	Offset float64 `json:"offset"`
	// Page 为对齐前标记所在页（从 1 开始）。
	Page int `json:"page"`
}

// WriteDebugJSON 将截取树及分页标记输出为 JSON，便于调试或可视化。
func WriteDebugJSON(c *Capture, path string) error {
	if c == nil {
		return nil
	}
	data, err := json.MarshalIndent(newDebugDump(c), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func newDebugDump(c *Capture) debugDump {
	d := debugDump{Capture: c, Markers: []debugMarker{}}
	if c.Root == nil {
		return d
	}
	c.Root.Reflow()
	d.VirtualPageHeight = paginate.VirtualPageHeight(c.Page, c.Width)
	for _, m := range c.Root.Markers() {
		off, err := m.OffsetWithin(c.Root)
		if err != nil {
			continue
		}
		page := 1
		if d.VirtualPageHeight > 0 {
			page = int(off/d.VirtualPageHeight) + 1
		}
		d.Markers = append(d.Markers, debugMarker{ID: m.ID, Offset: off, Page: page})
	}
	return d
}
