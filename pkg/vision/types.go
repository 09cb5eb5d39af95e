package vision

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/zoeyai/automata/pkg/auto"
	"github.com/zoeyai/automata/pkg/vision/cv"
)

// Match 一次成功的搜索结果，区域位于屏幕坐标系
type Match struct {
	Region auto.Region `json:"region"`
	Score  float64     `json:"score"`
}

func (m Match) String() string {
	return fmt.Sprintf("Match(%v, %.3f)", m.Region, m.Score)
}

// FrameSource 提供当前帧
// frame 归提供方所有，只在 fn 执行期间有效，没有帧时为 nil。
type FrameSource interface {
	UseFrame(fn func(frame *Pattern) error) error
}

// ImageMatcher 外部图像比较实现
type ImageMatcher interface {
	// MatchSingle 返回最佳匹配的相似度以及是否达到阈值
	MatchSingle(haystack, needle gocv.Mat, minSimilarity float64) (float64, bool, error)
	// MatchAll 返回所有达到阈值的匹配，坐标位于 haystack 内
	MatchAll(haystack, needle gocv.Mat, minSimilarity float64) ([]cv.MatchResult, error)
}

// Highlighter 在屏幕上高亮区域，调用立即返回
type Highlighter interface {
	Highlight(region auto.Region, d time.Duration)
}

// HighlighterFunc 函数形式的 Highlighter
type HighlighterFunc func(region auto.Region, d time.Duration)

// Highlight 实现 Highlighter
func (f HighlighterFunc) Highlight(region auto.Region, d time.Duration) {
	f(region, d)
}
