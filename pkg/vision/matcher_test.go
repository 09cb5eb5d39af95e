package vision

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zoeyai/automata/internal/logger"
	"github.com/zoeyai/automata/pkg/auto"
	"github.com/zoeyai/automata/pkg/vision/cv"
)

const (
	screenW, screenH = 300, 200
	tmplW, tmplH     = 20, 20
)

func quietLogger() *logger.Logger {
	l := logger.New()
	l.SetEnabled(false)
	return l
}

// screenWithTemplate 生成噪声画面，并在 at 处粘贴模板
func screenWithTemplate(t *testing.T, at ...auto.Location) (*Pattern, *Pattern) {
	t.Helper()
	tmplPix := noise(7, tmplW*tmplH)
	screenPix := noise(1, screenW*screenH)
	for _, l := range at {
		paste(screenPix, screenW, tmplPix, tmplW, tmplH, l.X, l.Y)
	}
	return grayPattern(t, FrameName, screenW, screenH, screenPix),
		grayPattern(t, "button.png", tmplW, tmplH, tmplPix)
}

func TestExistsNow(t *testing.T) {
	frame, tmpl := screenWithTemplate(t, auto.Location{X: 120, Y: 80})
	m := NewMatcher(&fakeFrames{frame: frame}, cv.NewTemplateMatcher(), WithLogger(quietLogger()))
	ctx := context.Background()

	tests := []struct {
		name   string
		region auto.Region
		want   bool
	}{
		{"包含目标", auto.NewRegion(100, 60, 100, 80), true},
		{"整屏", auto.NewRegion(0, 0, screenW, screenH), true},
		{"不含目标", auto.NewRegion(0, 0, 80, 60), false},
		{"区域比目标小", auto.NewRegion(120, 80, 10, 10), false},
		{"区域在帧外", auto.NewRegion(1000, 1000, 50, 50), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.ExistsNow(ctx, tt.region, tmpl, auto.MinSimilarity)
			if err != nil {
				t.Fatalf("ExistsNow 失败: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExistsNow(%v) = %v, want %v", tt.region, got, tt.want)
			}
		})
	}
}

func TestExistsNoFrame(t *testing.T) {
	_, tmpl := screenWithTemplate(t)
	images := &fakeImages{found: func(int) bool { return true }}
	m := NewMatcher(&fakeFrames{}, images, WithLogger(quietLogger()))

	ok, err := m.Exists(context.Background(), auto.NewRegion(0, 0, 100, 100), tmpl)
	if err != nil || ok {
		t.Errorf("没有帧时应返回 false, got ok=%v err=%v", ok, err)
	}
	if images.callCount() != 0 {
		t.Errorf("没有帧时不应比较, got %d", images.callCount())
	}
}

func TestExistsZeroTimeoutEvaluatesOnce(t *testing.T) {
	frame, tmpl := screenWithTemplate(t)
	images := &fakeImages{}
	m := NewMatcher(&fakeFrames{frame: frame}, images, WithLogger(quietLogger()))

	start := time.Now()
	ok, err := m.Exists(context.Background(), auto.NewRegion(0, 0, 100, 100), tmpl)
	elapsed := time.Since(start)

	if err != nil || ok {
		t.Errorf("got ok=%v err=%v", ok, err)
	}
	if images.callCount() != 1 {
		t.Errorf("超时为 0 时应只检查一次, got %d", images.callCount())
	}
	if elapsed >= auto.ScanInterval {
		t.Errorf("超时为 0 时不应等待, elapsed=%v", elapsed)
	}
}

func TestExistsPollsUntilFound(t *testing.T) {
	frame, tmpl := screenWithTemplate(t)
	images := &fakeImages{found: func(call int) bool { return call >= 3 }}
	m := NewMatcher(&fakeFrames{frame: frame}, images,
		WithLogger(quietLogger()), WithScanInterval(20*time.Millisecond))

	ok, err := m.Exists(context.Background(), auto.NewRegion(0, 0, 100, 100), tmpl,
		auto.WithTimeout(time.Second))
	if err != nil || !ok {
		t.Fatalf("应在超时前找到, got ok=%v err=%v", ok, err)
	}
	if images.callCount() != 3 {
		t.Errorf("应检查 3 次, got %d", images.callCount())
	}
}

func TestExistsMatcherErrorCountsAsNotFound(t *testing.T) {
	frame, tmpl := screenWithTemplate(t)
	m := NewMatcher(&fakeFrames{frame: frame}, &fakeImages{err: errFakeMatch}, WithLogger(quietLogger()))

	ok, err := m.ExistsNow(context.Background(), auto.NewRegion(0, 0, 100, 100), tmpl, 0.8)
	if err != nil || ok {
		t.Errorf("比较失败应视为不存在, got ok=%v err=%v", ok, err)
	}
}

func TestExistsCancelled(t *testing.T) {
	frame, tmpl := screenWithTemplate(t)
	images := &fakeImages{}
	m := NewMatcher(&fakeFrames{frame: frame}, images, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Exists(ctx, auto.NewRegion(0, 0, 100, 100), tmpl, auto.WithTimeout(time.Minute))
	if !errors.Is(err, auto.ErrExitRequested) {
		t.Errorf("应返回 ErrExitRequested, got %v", err)
	}
	if images.callCount() != 0 {
		t.Errorf("取消后不应比较, got %d", images.callCount())
	}
}

func TestExistsCancelledWhilePolling(t *testing.T) {
	frame, tmpl := screenWithTemplate(t)
	m := NewMatcher(&fakeFrames{frame: frame}, &fakeImages{}, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := m.Exists(ctx, auto.NewRegion(0, 0, 100, 100), tmpl, auto.WithTimeout(time.Minute))
	elapsed := time.Since(start)

	if !errors.Is(err, auto.ErrExitRequested) {
		t.Errorf("应返回 ErrExitRequested, got %v", err)
	}
	if elapsed > auto.SleepSlice {
		t.Errorf("取消后应在一个休眠片段内返回, elapsed=%v", elapsed)
	}
}

func TestExistsReleasedPattern(t *testing.T) {
	frame, tmpl := screenWithTemplate(t)
	m := NewMatcher(&fakeFrames{frame: frame}, &fakeImages{}, WithLogger(quietLogger()))
	tmpl.Release()

	_, err := m.Exists(context.Background(), auto.NewRegion(0, 0, 100, 100), tmpl)
	if !errors.Is(err, ErrPatternReleased) {
		t.Errorf("应返回 ErrPatternReleased, got %v", err)
	}
}

func TestWaitVanish(t *testing.T) {
	frame, tmpl := screenWithTemplate(t)
	region := auto.NewRegion(0, 0, 100, 100)

	t.Run("消失", func(t *testing.T) {
		images := &fakeImages{found: func(call int) bool { return call <= 2 }}
		m := NewMatcher(&fakeFrames{frame: frame}, images,
			WithLogger(quietLogger()), WithScanInterval(20*time.Millisecond))

		ok, err := m.WaitVanish(context.Background(), region, tmpl, time.Second)
		if err != nil || !ok {
			t.Fatalf("应等到消失, got ok=%v err=%v", ok, err)
		}
		if images.callCount() != 3 {
			t.Errorf("应检查 3 次, got %d", images.callCount())
		}
	})

	t.Run("超时", func(t *testing.T) {
		images := &fakeImages{found: func(int) bool { return true }}
		m := NewMatcher(&fakeFrames{frame: frame}, images,
			WithLogger(quietLogger()), WithScanInterval(20*time.Millisecond))

		ok, err := m.WaitVanish(context.Background(), region, tmpl, 100*time.Millisecond)
		if err != nil || ok {
			t.Fatalf("始终存在时应超时, got ok=%v err=%v", ok, err)
		}
		if images.callCount() < 2 {
			t.Errorf("超时前应多次检查, got %d", images.callCount())
		}
	})

	t.Run("没有帧视为已消失", func(t *testing.T) {
		m := NewMatcher(&fakeFrames{}, &fakeImages{}, WithLogger(quietLogger()))
		ok, err := m.WaitVanish(context.Background(), region, tmpl, 0)
		if err != nil || !ok {
			t.Errorf("got ok=%v err=%v", ok, err)
		}
	})
}

func collect(t *testing.T, seq func(func(Match, error) bool)) []Match {
	t.Helper()
	var matches []Match
	for m, err := range seq {
		if err != nil {
			t.Fatalf("遍历结果失败: %v", err)
		}
		matches = append(matches, m)
	}
	return matches
}

func TestFindAll(t *testing.T) {
	at := []auto.Location{{X: 40, Y: 30}, {X: 150, Y: 50}, {X: 90, Y: 140}}
	frame, tmpl := screenWithTemplate(t, at...)
	m := NewMatcher(&fakeFrames{frame: frame}, cv.NewTemplateMatcher(), WithLogger(quietLogger()))

	region := auto.NewRegion(20, 10, 260, 180)
	seq, err := m.FindAll(context.Background(), region, tmpl)
	if err != nil {
		t.Fatalf("FindAll 失败: %v", err)
	}

	matches := collect(t, seq)
	if len(matches) != len(at) {
		t.Fatalf("应找到 %d 个, got %d: %v", len(at), len(matches), matches)
	}

	got := make([]auto.Region, len(matches))
	for i, match := range matches {
		got[i] = match.Region
		if match.Score < auto.MinSimilarity {
			t.Errorf("结果相似度低于阈值: %v", match)
		}
	}
	want := make([]auto.Region, len(at))
	for i, l := range at {
		want[i] = auto.NewRegion(l.X, l.Y, tmplW, tmplH)
	}
	byPos := func(a, b auto.Region) int {
		if a.X != b.X {
			return a.X - b.X
		}
		return a.Y - b.Y
	}
	slices.SortFunc(got, byPos)
	slices.SortFunc(want, byPos)
	if !slices.Equal(got, want) {
		t.Errorf("结果区域应为屏幕坐标:\n got  %v\n want %v", got, want)
	}

	// 可以重复遍历
	if again := collect(t, seq); len(again) != len(matches) {
		t.Errorf("再次遍历应得到相同结果, got %d", len(again))
	}
}

func TestFindAllDropsBelowSimilarity(t *testing.T) {
	frame, tmpl := screenWithTemplate(t)
	images := &fakeImages{results: []cv.MatchResult{
		{Rectangle: cv.NewRectangle(0, 0, 20, 20), Confidence: 0.99},
		{Rectangle: cv.NewRectangle(30, 0, 20, 20), Confidence: 0.95},
		{Rectangle: cv.NewRectangle(60, 0, 20, 20), Confidence: 0.90},
		{Rectangle: cv.NewRectangle(90, 0, 20, 20), Confidence: 0.50},
	}}
	m := NewMatcher(&fakeFrames{frame: frame}, images, WithLogger(quietLogger()))

	seq, err := m.FindAll(context.Background(), auto.NewRegion(10, 10, 200, 100), tmpl)
	if err != nil {
		t.Fatalf("FindAll 失败: %v", err)
	}
	matches := collect(t, seq)
	if len(matches) != 3 {
		t.Fatalf("应只保留 3 个结果, got %v", matches)
	}
	for i, x := range []int{10, 40, 70} {
		if want := auto.NewRegion(x, 10, 20, 20); matches[i].Region != want {
			t.Errorf("结果 %d = %v, want %v", i, matches[i].Region, want)
		}
	}
}

func TestFindAllWithTransform(t *testing.T) {
	// 屏幕 200x200，截图 100x100
	frame := grayPattern(t, FrameName, 100, 100, noise(5, 100*100))
	_, tmpl := screenWithTemplate(t)
	images := &fakeImages{results: []cv.MatchResult{
		{Rectangle: cv.NewRectangle(10, 10, 20, 20), Confidence: 0.9},
	}}
	transform := auto.NewTransform(auto.Size{Width: 200, Height: 200}, auto.Size{Width: 100, Height: 100})
	m := NewMatcher(&fakeFrames{frame: frame}, images,
		WithLogger(quietLogger()), WithTransform(transform))

	seq, err := m.FindAll(context.Background(), auto.NewRegion(40, 40, 100, 100), tmpl)
	if err != nil {
		t.Fatalf("FindAll 失败: %v", err)
	}
	matches := collect(t, seq)
	if len(matches) != 1 {
		t.Fatalf("应有 1 个结果, got %v", matches)
	}
	if want := auto.NewRegion(60, 60, 40, 40); matches[0].Region != want {
		t.Errorf("got %v, want %v", matches[0].Region, want)
	}
}

func TestFindAllClippedRegion(t *testing.T) {
	frame := grayPattern(t, FrameName, 100, 100, noise(5, 100*100))
	_, tmpl := screenWithTemplate(t)
	images := &fakeImages{results: []cv.MatchResult{
		{Rectangle: cv.NewRectangle(5, 5, 10, 10), Confidence: 0.9},
	}}
	m := NewMatcher(&fakeFrames{frame: frame}, images, WithLogger(quietLogger()))

	// 区域左上角超出帧，裁剪后的原点为 (0,0)
	seq, err := m.FindAll(context.Background(), auto.NewRegion(-10, -20, 50, 50), tmpl)
	if err != nil {
		t.Fatalf("FindAll 失败: %v", err)
	}
	matches := collect(t, seq)
	if len(matches) != 1 {
		t.Fatalf("应有 1 个结果, got %v", matches)
	}
	if want := auto.NewRegion(5, 5, 10, 10); matches[0].Region != want {
		t.Errorf("got %v, want %v", matches[0].Region, want)
	}
}

func TestFindAllCancelledDuringIteration(t *testing.T) {
	frame, tmpl := screenWithTemplate(t)
	images := &fakeImages{results: []cv.MatchResult{
		{Rectangle: cv.NewRectangle(0, 0, 20, 20), Confidence: 0.99},
		{Rectangle: cv.NewRectangle(30, 0, 20, 20), Confidence: 0.95},
		{Rectangle: cv.NewRectangle(60, 0, 20, 20), Confidence: 0.90},
	}}
	m := NewMatcher(&fakeFrames{frame: frame}, images, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seq, err := m.FindAll(ctx, auto.NewRegion(0, 0, 200, 100), tmpl)
	if err != nil {
		t.Fatalf("FindAll 失败: %v", err)
	}

	var got []Match
	var iterErr error
	for match, err := range seq {
		if err != nil {
			iterErr = err
			break
		}
		got = append(got, match)
		cancel()
	}

	if len(got) != 1 {
		t.Errorf("取消后不应再产出结果, got %d", len(got))
	}
	if !errors.Is(iterErr, auto.ErrExitRequested) {
		t.Errorf("应产出 ErrExitRequested, got %v", iterErr)
	}

	if _, err := m.FindAll(ctx, auto.NewRegion(0, 0, 200, 100), tmpl); !errors.Is(err, auto.ErrExitRequested) {
		t.Errorf("已取消时 FindAll 应直接返回错误, got %v", err)
	}
}

func TestFindAllNoFrame(t *testing.T) {
	_, tmpl := screenWithTemplate(t)
	m := NewMatcher(&fakeFrames{}, &fakeImages{}, WithLogger(quietLogger()))

	seq, err := m.FindAll(context.Background(), auto.NewRegion(0, 0, 100, 100), tmpl)
	if err != nil {
		t.Fatalf("FindAll 失败: %v", err)
	}
	if matches := collect(t, seq); len(matches) != 0 {
		t.Errorf("没有帧时应无结果, got %v", matches)
	}
}

func TestFrameSourceErrorPropagates(t *testing.T) {
	_, tmpl := screenWithTemplate(t)
	m := NewMatcher(&fakeFrames{err: ErrFrameCacheReleased}, &fakeImages{}, WithLogger(quietLogger()))

	if _, err := m.ExistsNow(context.Background(), auto.NewRegion(0, 0, 10, 10), tmpl, 0.8); !errors.Is(err, ErrFrameCacheReleased) {
		t.Errorf("应返回 ErrFrameCacheReleased, got %v", err)
	}
}

func TestDebugModeHighlights(t *testing.T) {
	frame, tmpl := screenWithTemplate(t, auto.Location{X: 120, Y: 80})
	h := &recordHighlighter{}
	m := NewMatcher(&fakeFrames{frame: frame}, cv.NewTemplateMatcher(),
		WithLogger(quietLogger()), WithHighlighter(h))
	region := auto.NewRegion(100, 60, 100, 80)
	ctx := context.Background()

	if ok, _ := m.ExistsNow(ctx, region, tmpl, 0.8); !ok {
		t.Fatal("应找到目标")
	}
	if h.count() != 0 {
		t.Errorf("非调试模式不应高亮, got %d", h.count())
	}

	m.SetDebugMode(true)
	if !m.DebugMode() {
		t.Fatal("调试模式应已开启")
	}
	if ok, _ := m.ExistsNow(ctx, region, tmpl, 0.8); !ok {
		t.Error("调试模式不应影响结果")
	}
	if h.count() != 1 || h.regions[0] != region {
		t.Errorf("调试模式应高亮搜索区域, got %v", h.regions)
	}
}

func TestGetPattern(t *testing.T) {
	frame, _ := screenWithTemplate(t)
	m := NewMatcher(&fakeFrames{frame: frame}, &fakeImages{}, WithLogger(quietLogger()))

	p, err := m.GetPattern(auto.NewRegion(10, 20, 30, 40))
	if err != nil {
		t.Fatalf("GetPattern 失败: %v", err)
	}
	defer p.Release()

	if p.Width() != 30 || p.Height() != 40 {
		t.Errorf("尺寸应为 30x40, got %v", p.Size())
	}
	if !strings.HasPrefix(p.Name(), "crop-") {
		t.Errorf("名称应以 crop- 开头, got %q", p.Name())
	}

	// 副本与帧互不影响
	frame.Release()
	if _, err := p.Mat(); err != nil {
		t.Errorf("帧释放后副本仍应可用: %v", err)
	}

	empty := NewMatcher(&fakeFrames{}, &fakeImages{}, WithLogger(quietLogger()))
	if p, err := empty.GetPattern(auto.NewRegion(0, 0, 10, 10)); p != nil || err != nil {
		t.Errorf("没有帧时应返回 nil, got %v %v", p, err)
	}
}

func TestHighlightAndWait(t *testing.T) {
	h := &recordHighlighter{}
	m := NewMatcher(&fakeFrames{}, &fakeImages{}, WithLogger(quietLogger()), WithHighlighter(h))

	start := time.Now()
	if err := m.HighlightAndWait(context.Background(), auto.NewRegion(1, 2, 3, 4), 50*time.Millisecond); err != nil {
		t.Fatalf("HighlightAndWait 失败: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("应等待高亮结束, elapsed=%v", elapsed)
	}
	if h.count() != 1 {
		t.Errorf("应高亮一次, got %d", h.count())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Highlight(ctx, auto.NewRegion(1, 2, 3, 4), time.Second); !errors.Is(err, auto.ErrExitRequested) {
		t.Errorf("取消后应返回 ErrExitRequested, got %v", err)
	}
}

func TestDebugModeHighlightsWithoutFrame(t *testing.T) {
	_, tmpl := screenWithTemplate(t)
	h := &recordHighlighter{}
	m := NewMatcher(&fakeFrames{}, &fakeImages{},
		WithLogger(quietLogger()), WithHighlighter(h), WithDebugMode(true))

	region := auto.NewRegion(0, 0, 50, 50)
	if ok, err := m.ExistsNow(context.Background(), region, tmpl, 0.8); ok || err != nil {
		t.Fatalf("没有帧时应返回 false, got ok=%v err=%v", ok, err)
	}
	if h.count() != 1 || h.regions[0] != region {
		t.Errorf("没有帧时也应高亮搜索区域, got %v", h.regions)
	}
}

func TestExistsConcurrentConsumers(t *testing.T) {
	_, tmpl := screenWithTemplate(t)
	capture := newFakeCapture(func() *fakeRaw { return grayRaw(screenW, screenH) })
	cache := NewFrameCache(capture, WithFrameCacheLogger(quietLogger()))
	defer cache.Release()

	m := NewMatcher(cache, &fakeImages{},
		WithLogger(quietLogger()), WithScanInterval(time.Millisecond))

	// 持续通知新帧，使每次取帧都会替换并释放旧帧
	stop := make(chan struct{})
	var notifier sync.WaitGroup
	notifier.Add(1)
	go func() {
		defer notifier.Done()
		for {
			select {
			case <-stop:
				return
			default:
				cache.NotifyFrameReady()
			}
		}
	}()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.Exists(context.Background(), auto.NewRegion(10, 10, 100, 100), tmpl,
				auto.WithTimeout(200*time.Millisecond))
			if ok {
				err = errors.New("不应找到目标")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(stop)
	notifier.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("并发轮询不应失败: %v", err)
		}
	}
	if st := cache.Stats(); st.Conversions < 2 {
		t.Errorf("轮询期间帧应被多次替换, got %+v", st)
	}
}
