package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/zoeyai/automata/internal/logger"
	"github.com/zoeyai/automata/pkg/auto"
	"github.com/zoeyai/automata/pkg/auto/grid"
	"github.com/zoeyai/automata/pkg/auto/screen"
	"github.com/zoeyai/automata/pkg/config"
	"github.com/zoeyai/automata/pkg/permissions"
	"github.com/zoeyai/automata/pkg/vision"
	"github.com/zoeyai/automata/pkg/vision/cv"
)

// 版本信息 (可通过 ldflags 注入)
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// 退出码
const (
	exitFound    = 0
	exitNotFound = 1
	exitError    = 2
)

// 搜索模式
const (
	modeExists  = "exists"
	modeVanish  = "vanish"
	modeFindAll = "findall"
)

// firstFrameTimeout 等待首帧的最长时间
const firstFrameTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// 命令行参数
	var (
		configPath  = flag.String("config", "", "配置文件路径 (.json/.yaml)")
		debug       = flag.Bool("debug", false, "调试模式，搜索前高亮搜索区域")
		similarity  = flag.Float64("similarity", 0, "最小相似度 (0-1]")
		timeout     = flag.Duration("timeout", 0, "轮询超时时间，0 表示只检查一次")
		regionFlag  = flag.String("region", "", "搜索区域 x,y,w,h，默认整个截图区域")
		gridFlag    = flag.String("grid", "", "只搜索区域中的一个格子 rows.cols.row.col")
		mode        = flag.String("mode", modeExists, "搜索模式: exists | vanish | findall")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	// 显示版本
	if *showVersion {
		printVersion()
		return exitFound
	}

	// 显示帮助
	if *showHelp {
		printHelp()
		return exitFound
	}

	if flag.NArg() != 1 {
		fmt.Println("[ERROR] 缺少目标图像路径")
		printHelp()
		return exitError
	}
	templatePath := flag.Arg(0)

	if err := checkMode(*mode); err != nil {
		fmt.Printf("[ERROR] %v\n", err)
		return exitError
	}

	// 加载配置
	manager := config.GetDefaultManager()
	if *configPath != "" {
		manager = config.NewManagerWithFile(*configPath)
	}
	cfg, err := manager.Load()
	if err != nil {
		fmt.Printf("[WARN] 加载配置失败，使用默认配置: %v\n", err)
	}

	// 命令行参数优先级高于配置文件
	if *debug {
		cfg.DebugMode = true
	}
	if *similarity != 0 {
		cfg.MinSimilarity = *similarity
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("[ERROR] 配置无效: %v\n", err)
		return exitError
	}

	log := logger.Default()
	if err := cfg.Log.Apply(log); err != nil {
		fmt.Printf("[WARN] 日志配置失败: %v\n", err)
	}
	defer log.Close()

	// macOS 权限检查
	if runtime.GOOS == "darwin" && !checkMacOSPermissions() {
		return exitError
	}

	// Ctrl+C 取消当前搜索
	exit := auto.NewExitSignal(nil)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			log.Info("收到中断信号，正在退出...")
			exit.RequestExit()
		}
	}()
	ctx := exit.Context()

	// 截图
	grabber, err := screen.NewGrabber(cfg.Capture.Backend, cfg.Capture.Display)
	if err != nil {
		fmt.Printf("[ERROR] %v\n", err)
		return exitError
	}
	source, err := screen.NewSource(grabber, screen.Config{
		Region:     cfg.Capture.Region,
		Scale:      cfg.Capture.Scale,
		Interval:   cfg.Capture.Interval.D(),
		MaxBuffers: cfg.Capture.MaxBuffers,
	})
	if err != nil {
		fmt.Printf("[ERROR] 初始化截图失败: %v\n", err)
		return exitError
	}

	cache := vision.NewFrameCache(source)
	defer cache.Release()
	source.OnFrameReady(cache.NotifyFrameReady)
	source.Start(ctx)
	defer source.Stop()

	// 目标图像
	store, err := vision.NewPatternStore(cfg.AssetDir, cfg.AssetCacheSize)
	if err != nil {
		fmt.Printf("[ERROR] %v\n", err)
		return exitError
	}
	defer store.Close()

	pattern, err := store.Load(templatePath)
	if err != nil {
		fmt.Printf("[ERROR] 加载目标图像失败: %v\n", err)
		return exitError
	}

	matcher := vision.NewMatcher(cache, cv.NewTemplateMatcher(),
		vision.WithTransform(source.Transform()),
		vision.WithHighlighter(screen.NewLogHighlighter(log)),
		vision.WithHighlightDuration(cfg.HighlightDuration.D()),
		vision.WithDebugMode(cfg.DebugMode),
		vision.WithScanInterval(cfg.ScanInterval.D()),
	)

	region := auto.NewRegion(0, 0, source.ScreenSize().Width, source.ScreenSize().Height)
	if *regionFlag != "" {
		region, err = parseRegion(*regionFlag)
		if err != nil {
			fmt.Printf("[ERROR] %v\n", err)
			return exitError
		}
	}
	if region, err = grid.CellFromString(region, *gridFlag); err != nil {
		fmt.Printf("[ERROR] %v\n", err)
		return exitError
	}

	// 首帧到达之前的搜索没有意义
	ready, err := auto.CheckConditionLoop(ctx, func() (bool, error) {
		ready := false
		err := cache.UseFrame(func(frame *vision.Pattern) error {
			ready = frame != nil
			return nil
		})
		return ready, err
	}, firstFrameTimeout)
	if err != nil {
		return reportError(err)
	}
	if !ready {
		fmt.Printf("[ERROR] %v 内未截取到画面\n", firstFrameTimeout)
		return exitError
	}

	fmt.Printf("[INFO] 在 %v 中搜索 %s (模式 %s, 相似度 %.2f, 超时 %v)\n",
		region, pattern.Name(), *mode, cfg.MinSimilarity, *timeout)

	opts := []auto.Option{auto.WithTimeout(*timeout), auto.WithSimilarity(cfg.MinSimilarity)}

	var ok bool
	switch *mode {
	case modeExists:
		ok, err = matcher.Exists(ctx, region, pattern, opts...)
		if err == nil {
			printResult(ok, "已找到", "未找到")
		}
	case modeVanish:
		ok, err = matcher.WaitVanish(ctx, region, pattern, *timeout, opts...)
		if err == nil {
			printResult(ok, "已消失", "仍然存在")
		}
	case modeFindAll:
		ok, err = printAll(ctx, matcher, region, pattern, opts)
	}
	if err != nil {
		return reportError(err)
	}

	if ok {
		return exitFound
	}
	return exitNotFound
}

func printAll(ctx context.Context, matcher *vision.Matcher, region auto.Region, pattern *vision.Pattern, opts []auto.Option) (bool, error) {
	seq, err := matcher.FindAll(ctx, region, pattern, opts...)
	if err != nil {
		return false, err
	}

	n := 0
	for match, err := range seq {
		if err != nil {
			return false, err
		}
		n++
		fmt.Printf("[RESULT] %d: %v 中心 (%d,%d)\n", n, match, match.Region.Center().X, match.Region.Center().Y)
	}
	fmt.Printf("[RESULT] 共 %d 个\n", n)
	return n > 0, nil
}

func printResult(ok bool, yes, no string) {
	if ok {
		fmt.Printf("[RESULT] %s\n", yes)
		return
	}
	fmt.Printf("[RESULT] %s\n", no)
}

func reportError(err error) int {
	if errors.Is(err, auto.ErrExitRequested) {
		fmt.Println("[INFO] 已取消")
	} else {
		fmt.Printf("[ERROR] %v\n", err)
	}
	return exitError
}

func checkMode(mode string) error {
	switch mode {
	case modeExists, modeVanish, modeFindAll:
		return nil
	}
	return fmt.Errorf("未知的搜索模式: %s", mode)
}

// parseRegion 解析 "x,y,w,h"
func parseRegion(s string) (auto.Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return auto.Region{}, fmt.Errorf("区域格式应为 x,y,w,h: %q", s)
	}

	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return auto.Region{}, fmt.Errorf("区域格式应为 x,y,w,h: %q", s)
		}
		v[i] = n
	}

	r := auto.NewRegion(v[0], v[1], v[2], v[3])
	if r.Empty() {
		return auto.Region{}, fmt.Errorf("区域宽高必须大于 0: %v", r)
	}
	return r, nil
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("Automata v%s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("Automata - 屏幕图像搜索工具")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  automata [选项] <目标图像>")
	fmt.Println()
	fmt.Println("选项:")
	fmt.Println("  -config string      配置文件路径 (.json/.yaml)")
	fmt.Println("  -debug              调试模式，搜索前高亮搜索区域")
	fmt.Println("  -similarity float   最小相似度 (0-1]，默认 0.8")
	fmt.Println("  -timeout duration   轮询超时时间 (例: 5s)，默认只检查一次")
	fmt.Println("  -region x,y,w,h     搜索区域，坐标相对截图区域左上角")
	fmt.Println("  -grid r.c.row.col   只搜索区域中的一个格子 (例: 2.2.1.1 为左上角)")
	fmt.Println("  -mode string        exists | vanish | findall，默认 exists")
	fmt.Println("  -version            显示版本信息")
	fmt.Println("  -help               显示帮助信息")
	fmt.Println()
	fmt.Println("退出码:")
	fmt.Println("  0  找到 / 已消失")
	fmt.Println("  1  未找到 / 超时")
	fmt.Println("  2  错误 / 已取消")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  # 5 秒内等待按钮出现")
	fmt.Println("  automata -timeout 5s button.png")
	fmt.Println()
	fmt.Println("  # 列出区域内的所有图标")
	fmt.Println("  automata -mode findall -region 0,0,800,600 icon.png")
	fmt.Println()
	fmt.Printf("配置文件位置: %s\n", config.GetDefaultManager().GetConfigFile())
}

// checkMacOSPermissions 检查 macOS 权限
func checkMacOSPermissions() bool {
	fmt.Println("[INFO] 正在检查 macOS 权限...")
	ok, msg := permissions.Ensure()
	if ok {
		fmt.Println("[INFO] ✓ 屏幕录制权限已授予")
		return true
	}

	fmt.Println()
	fmt.Println("[WARN] ========== 缺少权限 ==========")
	fmt.Println("[WARN] " + msg)
	fmt.Println("[WARN] ==================================")
	fmt.Println()
	permissions.OpenScreenRecordingSettings()
	return false
}
