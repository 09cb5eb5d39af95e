// Package vision 维护最新一帧截图，并在屏幕区域内搜索模板图像
//
// 组成:
//   - FrameCache: 截图线程通知、消费者按需转换的单槽缓存，只保留最新一帧
//   - Matcher: 把屏幕区域换算到截图坐标后裁剪当前帧，交给 ImageMatcher 比较
//   - Pattern: 持有 gocv.Mat 的图像，释放后任何像素访问都会返回 ErrPatternReleased
//   - PatternStore: 模板素材的 LRU 缓存
//
// 基本用法:
//
//	cache := vision.NewFrameCache(source)
//	defer cache.Release()
//	source.OnFrameReady(cache.NotifyFrameReady)
//
//	m := vision.NewMatcher(cache, cv.NewTemplateMatcher(), vision.WithTransform(source.Transform()))
//	ok, err := m.Exists(ctx, auto.NewRegion(0, 0, 400, 300), pattern, auto.WithTimeout(5*time.Second))
package vision
