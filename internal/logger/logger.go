// Package logger 提供统一的日志工具
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// Level 日志级别
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel 解析日志级别字符串
func ParseLevel(s string) Level {
	switch s {
	case "DEBUG", "debug":
		return DEBUG
	case "INFO", "info":
		return INFO
	case "WARN", "warn", "WARNING", "warning":
		return WARN
	case "ERROR", "error":
		return ERROR
	default:
		return INFO
	}
}

// sink 是所有子 logger 共享的输出端
type sink struct {
	mu       sync.Mutex
	level    Level
	enabled  bool
	console  bool
	file     bool
	filePath string
	extra    io.Writer
	logger   *log.Logger
	fileOut  *os.File
}

// Logger 日志记录器
//
// 通过 WithComponent 派生的子 logger 与父 logger 共用级别和输出配置，
// 只在消息前附加组件标签。
type Logger struct {
	out       *sink
	component string
}

// 全局默认 logger
var defaultLogger = New()

// New 创建新的 Logger 实例
func New() *Logger {
	return &Logger{
		out: &sink{
			level:   INFO,
			enabled: true,
			console: true,
			logger:  log.New(os.Stdout, "", 0),
		},
	}
}

// Default 获取默认 logger
func Default() *Logger {
	return defaultLogger
}

// WithComponent 返回带组件标签的子 logger（如 FRAME、MATCH）
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{out: l.out, component: name}
}

// Component 返回组件标签
func (l *Logger) Component() string {
	return l.component
}

// SetLevel 设置日志级别
func (l *Logger) SetLevel(level Level) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.level = level
}

// Level 返回当前日志级别
func (l *Logger) Level() Level {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	return l.out.level
}

// SetEnabled 设置是否启用日志
func (l *Logger) SetEnabled(enabled bool) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.enabled = enabled
}

// SetConsole 设置是否输出到控制台
func (l *Logger) SetConsole(enabled bool) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.console = enabled
	l.out.updateOutput()
}

// SetOutput 设置额外的输出目标，传 nil 取消
func (l *Logger) SetOutput(w io.Writer) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.extra = w
	l.out.updateOutput()
}

// SetFile 设置是否输出到文件
func (l *Logger) SetFile(enabled bool, path string) error {
	s := l.out
	s.mu.Lock()
	defer s.mu.Unlock()

	// 关闭旧文件
	if s.fileOut != nil {
		s.fileOut.Close()
		s.fileOut = nil
	}

	s.file = enabled
	s.filePath = path

	if enabled && path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("无法打开日志文件: %w", err)
		}
		s.fileOut = f
	}

	s.updateOutput()
	return nil
}

func (s *sink) updateOutput() {
	var writers []io.Writer

	if s.console {
		writers = append(writers, os.Stdout)
	}
	if s.file && s.fileOut != nil {
		writers = append(writers, s.fileOut)
	}
	if s.extra != nil {
		writers = append(writers, s.extra)
	}

	switch len(writers) {
	case 0:
		s.logger.SetOutput(io.Discard)
	case 1:
		s.logger.SetOutput(writers[0])
	default:
		s.logger.SetOutput(io.MultiWriter(writers...))
	}
}

// log 内部日志方法
func (l *Logger) log(level Level, format string, args ...interface{}) {
	s := l.out
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || level < s.level {
		return
	}

	timestamp := time.Now().Format("15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	if l.component != "" {
		s.logger.Printf("%s | %-5s | %-6s | %s", timestamp, level.String(), l.component, msg)
		return
	}
	s.logger.Printf("%s | %-5s | %s", timestamp, level.String(), msg)
}

// Debug 输出 DEBUG 级别日志
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info 输出 INFO 级别日志
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn 输出 WARN 级别日志
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error 输出 ERROR 级别日志
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// LogEvent 记录带分类的事件日志
// 成功记为 DEBUG（搜索在轮询中非常频繁），失败记为 INFO。
func (l *Logger) LogEvent(category string, ok bool, elapsedMs float64, detail string) {
	status := "OK"
	if !ok {
		status = "NG"
	}

	if ok {
		l.Debug("%-5s | %s | %6.1fms | %s", category, status, elapsedMs, detail)
	} else {
		l.Info("%-5s | %s | %6.1fms | %s", category, status, elapsedMs, detail)
	}
}

// Close 关闭 logger，释放资源
func (l *Logger) Close() error {
	s := l.out
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fileOut != nil {
		err := s.fileOut.Close()
		s.fileOut = nil
		s.file = false
		s.updateOutput()
		return err
	}
	return nil
}

// 包级别便捷函数
func Debug(format string, args ...interface{}) { defaultLogger.Debug(format, args...) }
func Info(format string, args ...interface{})  { defaultLogger.Info(format, args...) }
func Warn(format string, args ...interface{})  { defaultLogger.Warn(format, args...) }
func Error(format string, args ...interface{}) { defaultLogger.Error(format, args...) }
func LogEvent(category string, ok bool, elapsedMs float64, detail string) {
	defaultLogger.LogEvent(category, ok, elapsedMs, detail)
}
