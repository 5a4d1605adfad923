package render

import (
	"log/slog"

	"github.com/specialistvlad/topomirror/internal/graph"
)

// LogRenderer writes view changes to a structured logger. Element events
// go out at debug level and frames at info.
type LogRenderer struct {
	logger *slog.Logger
}

var _ Renderer = (*LogRenderer)(nil)

// NewLogRenderer creates a renderer on logger.
func NewLogRenderer(logger *slog.Logger) *LogRenderer {
	return &LogRenderer{logger: logger.With("component", "render")}
}

func (r *LogRenderer) NodeAdded(n graph.NodeRecord) {
	r.logger.Debug("Node added", "id", n.ID, "host", n.Host, "type", n.Metadata.Type())
}

func (r *LogRenderer) NodeRemoved(id string) {
	r.logger.Debug("Node removed", "id", id)
}

func (r *LogRenderer) NodeUpdated(n graph.NodeRecord) {
	r.logger.Debug("Node updated", "id", n.ID, "capture", n.Metadata.CaptureID())
}

func (r *LogRenderer) EdgeAdded(e graph.EdgeRecord) {
	r.logger.Debug("Edge added", "id", e.ID, "parent", e.Parent, "child", e.Child)
}

func (r *LogRenderer) EdgeRemoved(id string) {
	r.logger.Debug("Edge removed", "id", id)
}

func (r *LogRenderer) Redraw(f Frame) {
	r.logger.Info("Redraw",
		"nodes", f.Nodes,
		"edges", f.Edges,
		"groups", len(f.Groups),
		"alerts", len(f.Alerts),
	)
}
