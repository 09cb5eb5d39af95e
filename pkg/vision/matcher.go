package vision

import (
	"context"
	"fmt"
	"image"
	"iter"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/zoeyai/automata/internal/logger"
	"github.com/zoeyai/automata/pkg/auto"
)

// Matcher 在当前帧的屏幕区域内搜索目标图像
//
// 区域均为屏幕坐标，搜索前按 Transform 换算到截图坐标并裁剪到帧范围内。
// Matcher 的方法可以并发调用，帧的替换与裁剪由 FrameSource.UseFrame 串行化。
type Matcher struct {
	frames FrameSource
	images ImageMatcher

	transform         auto.Transform
	highlighter       Highlighter
	highlightDuration time.Duration
	scanInterval      time.Duration
	debug             atomic.Bool

	log *logger.Logger
}

// MatcherOption 匹配器选项
type MatcherOption func(*Matcher)

// WithTransform 设置屏幕与截图之间的坐标换算
func WithTransform(t auto.Transform) MatcherOption {
	return func(m *Matcher) {
		m.transform = t
	}
}

// WithHighlighter 设置调试高亮实现
func WithHighlighter(h Highlighter) MatcherOption {
	return func(m *Matcher) {
		m.highlighter = h
	}
}

// WithHighlightDuration 设置调试模式下每次搜索的高亮时长
func WithHighlightDuration(d time.Duration) MatcherOption {
	return func(m *Matcher) {
		m.highlightDuration = d
	}
}

// WithDebugMode 开启调试模式
func WithDebugMode(enabled bool) MatcherOption {
	return func(m *Matcher) {
		m.debug.Store(enabled)
	}
}

// WithLogger 设置 logger
func WithLogger(l *logger.Logger) MatcherOption {
	return func(m *Matcher) {
		m.log = l.WithComponent("MATCH")
	}
}

// WithScanInterval 设置 Exists / WaitVanish 的轮询间隔
func WithScanInterval(d time.Duration) MatcherOption {
	return func(m *Matcher) {
		if d > 0 {
			m.scanInterval = d
		}
	}
}

// NewMatcher 创建匹配器
func NewMatcher(frames FrameSource, images ImageMatcher, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		frames:            frames,
		images:            images,
		transform:         auto.IdentityTransform(),
		highlightDuration: auto.HighlightDuration,
		scanInterval:      auto.ScanInterval,
		log:               logger.Default().WithComponent("MATCH"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetDebugMode 运行时切换调试模式
func (m *Matcher) SetDebugMode(enabled bool) {
	m.debug.Store(enabled)
}

// DebugMode 是否处于调试模式
func (m *Matcher) DebugMode() bool {
	return m.debug.Load()
}

// Transform 当前使用的坐标换算
func (m *Matcher) Transform() auto.Transform {
	return m.transform
}

// cropFrame 取当前帧并裁剪出 region 对应的部分
// 没有帧或区域落在帧外时返回 nil。rect 为裁剪后在帧内的实际范围。
// 裁剪在 UseFrame 内完成，子图与帧共享像素，帧被替换后子图仍然有效。
func (m *Matcher) cropFrame(region auto.Region) (crop *Pattern, rect image.Rectangle, err error) {
	if m.debug.Load() && m.highlighter != nil {
		m.highlighter.Highlight(region, m.highlightDuration)
	}

	err = m.frames.UseFrame(func(frame *Pattern) error {
		if frame == nil {
			return nil
		}
		rect = m.transform.ToImageSpace(region).ToImageRect().Intersect(frame.Bounds())
		if rect.Empty() {
			return nil
		}
		var cropErr error
		crop, cropErr = frame.Crop(rect)
		return cropErr
	})
	if err != nil {
		return nil, rect, err
	}
	return crop, rect, nil
}

// ExistsNow 对当前帧做一次检查，判断 region 内是否存在 pattern
//
// 没有帧、区域在帧外、或比较失败（例如目标比区域大）都视为不存在。
// 取消时返回包装了 auto.ErrExitRequested 的错误。
func (m *Matcher) ExistsNow(ctx context.Context, region auto.Region, pattern *Pattern, similarity float64) (bool, error) {
	if err := auto.CheckExit(ctx); err != nil {
		return false, err
	}

	needle, err := pattern.Mat()
	if err != nil {
		return false, err
	}

	start := time.Now()
	crop, _, err := m.cropFrame(region)
	if err != nil {
		return false, err
	}
	if crop == nil {
		m.log.LogEvent("EXISTS", false, elapsedMs(start),
			fmt.Sprintf("%s in %v: 无可用帧", pattern.Name(), region))
		return false, nil
	}
	defer crop.Release()

	haystack, err := crop.Mat()
	if err != nil {
		return false, err
	}

	score, ok, err := m.images.MatchSingle(haystack, needle, similarity)
	if err != nil {
		m.log.Debug("比较失败，视为不存在: %s in %v: %v", pattern.Name(), region, err)
		ok = false
	}

	m.log.LogEvent("EXISTS", ok, elapsedMs(start),
		fmt.Sprintf("%s in %v score=%.3f", pattern.Name(), region, score))
	return ok, nil
}

// Exists 轮询直到 region 内出现 pattern 或超时
// 默认超时为 0（只检查一次），默认相似度 auto.MinSimilarity。
func (m *Matcher) Exists(ctx context.Context, region auto.Region, pattern *Pattern, opts ...auto.Option) (bool, error) {
	o := auto.ApplyOptions(opts...)
	return auto.CheckConditionLoopEvery(ctx, func() (bool, error) {
		return m.ExistsNow(ctx, region, pattern, o.Similarity)
	}, o.Timeout, m.scanInterval)
}

// WaitVanish 轮询直到 region 内不再出现 pattern
// 返回 true 表示已消失，false 表示超时时仍然存在。
func (m *Matcher) WaitVanish(ctx context.Context, region auto.Region, pattern *Pattern, timeout time.Duration, opts ...auto.Option) (bool, error) {
	o := auto.ApplyOptions(opts...)
	return auto.CheckConditionLoopEvery(ctx, func() (bool, error) {
		found, err := m.ExistsNow(ctx, region, pattern, o.Similarity)
		return !found, err
	}, timeout, m.scanInterval)
}

// FindAll 在当前帧的 region 内查找 pattern 的所有出现位置
//
// 只裁剪一次、比较一次；结果为屏幕坐标，按相似度从高到低排列。
// 返回的序列可以重复遍历，每次产出前检查 ctx，取消时产出取消错误并结束。
// 选项中的 Timeout 不生效。
func (m *Matcher) FindAll(ctx context.Context, region auto.Region, pattern *Pattern, opts ...auto.Option) (iter.Seq2[Match, error], error) {
	o := auto.ApplyOptions(opts...)

	if err := auto.CheckExit(ctx); err != nil {
		return nil, err
	}

	needle, err := pattern.Mat()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	matches, err := m.findAll(region, pattern.Name(), needle, o.Similarity)
	if err != nil {
		return nil, err
	}
	m.log.LogEvent("FINDALL", len(matches) > 0, elapsedMs(start),
		fmt.Sprintf("%s in %v: %d 个结果", pattern.Name(), region, len(matches)))

	return func(yield func(Match, error) bool) {
		for _, match := range matches {
			if err := auto.CheckExit(ctx); err != nil {
				yield(Match{}, err)
				return
			}
			if !yield(match, nil) {
				return
			}
		}
	}, nil
}

func (m *Matcher) findAll(region auto.Region, name string, needle gocv.Mat, similarity float64) ([]Match, error) {
	crop, rect, err := m.cropFrame(region)
	if err != nil {
		return nil, err
	}
	if crop == nil {
		return nil, nil
	}
	defer crop.Release()

	haystack, err := crop.Mat()
	if err != nil {
		return nil, err
	}

	results, err := m.images.MatchAll(haystack, needle, similarity)
	if err != nil {
		m.log.Debug("比较失败，视为无结果: %s in %v: %v", name, region, err)
		return nil, nil
	}

	// 区域被帧边界裁剪时，裁剪图原点相对 region 左上角有偏移
	requested := m.transform.ToImageSpace(region).Location()
	shift := m.transform.ToScreenLocation(auto.Location{
		X: rect.Min.X - requested.X,
		Y: rect.Min.Y - requested.Y,
	})
	origin := region.Location().Offset(shift)

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		if r.Confidence < similarity {
			continue
		}
		matches = append(matches, Match{
			Region: m.transform.ToScreenSpace(auto.RegionFromImageRect(r.Rect())).Offset(origin),
			Score:  r.Confidence,
		})
	}
	return matches, nil
}

// GetPattern 复制当前帧中 region 对应的图像，没有帧时返回 nil
func (m *Matcher) GetPattern(region auto.Region) (*Pattern, error) {
	crop, _, err := m.cropFrame(region)
	if err != nil || crop == nil {
		return nil, err
	}
	defer crop.Release()
	return crop.Copy("")
}

// Highlight 在屏幕上高亮 region，立即返回
func (m *Matcher) Highlight(ctx context.Context, region auto.Region, d time.Duration) error {
	if err := auto.CheckExit(ctx); err != nil {
		return err
	}
	if m.highlighter != nil {
		m.highlighter.Highlight(region, d)
	}
	return nil
}

// HighlightAndWait 高亮 region 并等待显示结束
func (m *Matcher) HighlightAndWait(ctx context.Context, region auto.Region, d time.Duration) error {
	if err := m.Highlight(ctx, region, d); err != nil {
		return err
	}
	return auto.Wait(ctx, d)
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
