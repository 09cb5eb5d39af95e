package screen

import (
	"time"

	"github.com/zoeyai/automata/internal/logger"
	"github.com/zoeyai/automata/pkg/auto"
)

// LogHighlighter 把高亮请求写入日志，用于没有叠加层的环境
type LogHighlighter struct {
	log *logger.Logger
}

// NewLogHighlighter 创建 LogHighlighter，l 为 nil 时使用默认 logger
func NewLogHighlighter(l *logger.Logger) *LogHighlighter {
	if l == nil {
		l = logger.Default()
	}
	return &LogHighlighter{log: l.WithComponent("DEBUG")}
}

// Highlight 实现 vision.Highlighter
func (h *LogHighlighter) Highlight(region auto.Region, d time.Duration) {
	h.log.Info("高亮 %v 中心 (%d,%d) %v", region, region.Center().X, region.Center().Y, d)
}
