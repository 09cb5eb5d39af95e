package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zoeyai/automata/internal/logger"
	"github.com/zoeyai/automata/pkg/auto"
)

// Duration 以字符串形式序列化的时长，例如 "330ms"
type Duration time.Duration

// D 转换为 time.Duration
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON 实现 json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON 接受 "1.5s" 形式的字符串或纳秒数
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("无效的时长: %s", data)
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML 实现 yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML 实现 yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("无效的时长: %w", err)
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("无效的时长 %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// CaptureConfig 截图配置
type CaptureConfig struct {
	// Backend 截图后端: robotgo 或 screenshot
	Backend string `json:"backend" yaml:"backend"`
	// Display 显示器编号，仅 screenshot 后端
	Display int `json:"display" yaml:"display"`
	// Region 截取区域，为空表示整个显示器
	Region auto.Region `json:"region" yaml:"region"`
	// Scale 截图分辨率相对屏幕的比例
	Scale    float64  `json:"scale" yaml:"scale"`
	Interval Duration `json:"interval" yaml:"interval"`
	// MaxBuffers 截图缓冲数量
	MaxBuffers int `json:"max_buffers" yaml:"max_buffers"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string `json:"level" yaml:"level"`
	Console bool   `json:"console" yaml:"console"`
	File    bool   `json:"file" yaml:"file"`
	Path    string `json:"path" yaml:"path"`
}

// Apply 把日志配置应用到 l
func (c LogConfig) Apply(l *logger.Logger) error {
	l.SetLevel(logger.ParseLevel(c.Level))
	l.SetConsole(c.Console)
	return l.SetFile(c.File, c.Path)
}

// Config 运行配置
type Config struct {
	// DebugMode 每次搜索前高亮搜索区域
	DebugMode bool `json:"debug_mode" yaml:"debug_mode"`
	// MinSimilarity 默认最小相似度
	MinSimilarity     float64  `json:"min_similarity" yaml:"min_similarity"`
	ScanInterval      Duration `json:"scan_interval" yaml:"scan_interval"`
	HighlightDuration Duration `json:"highlight_duration" yaml:"highlight_duration"`

	Capture CaptureConfig `json:"capture" yaml:"capture"`
	Log     LogConfig     `json:"log" yaml:"log"`

	// AssetDir 目标图像目录
	AssetDir string `json:"asset_dir" yaml:"asset_dir"`
	// AssetCacheSize 目标图像缓存数量
	AssetCacheSize int `json:"asset_cache_size" yaml:"asset_cache_size"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		DebugMode:         false,
		MinSimilarity:     auto.MinSimilarity,
		ScanInterval:      Duration(auto.ScanInterval),
		HighlightDuration: Duration(auto.HighlightDuration),
		Capture: CaptureConfig{
			Backend:    "robotgo",
			Scale:      1,
			Interval:   Duration(100 * time.Millisecond),
			MaxBuffers: 3,
		},
		Log: LogConfig{
			Level:   "INFO",
			Console: true,
		},
		AssetDir:       ".",
		AssetCacheSize: 64,
	}
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	if c.MinSimilarity <= 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("min_similarity 必须在 (0,1] 之间: %v", c.MinSimilarity)
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scan_interval 必须大于 0: %v", c.ScanInterval)
	}
	if c.HighlightDuration < 0 {
		return fmt.Errorf("highlight_duration 不能为负: %v", c.HighlightDuration)
	}
	switch strings.ToLower(c.Capture.Backend) {
	case "", "robotgo", "screenshot":
	default:
		return fmt.Errorf("未知的截图后端: %s", c.Capture.Backend)
	}
	if c.Capture.Display < 0 {
		return fmt.Errorf("capture.display 不能为负: %d", c.Capture.Display)
	}
	if r := c.Capture.Region; r.Width < 0 || r.Height < 0 {
		return fmt.Errorf("capture.region 尺寸不能为负: %v", r)
	}
	if c.Capture.Scale < auto.MinScale || c.Capture.Scale > 1 {
		return fmt.Errorf("capture.scale 必须在 [%v,1] 之间: %v", auto.MinScale, c.Capture.Scale)
	}
	if c.Capture.Interval <= 0 {
		return fmt.Errorf("capture.interval 必须大于 0: %v", c.Capture.Interval)
	}
	if c.Capture.MaxBuffers < 2 {
		return fmt.Errorf("capture.max_buffers 至少为 2: %d", c.Capture.MaxBuffers)
	}
	if c.Log.File && c.Log.Path == "" {
		return fmt.Errorf("启用日志文件时 log.path 不能为空")
	}
	if c.AssetCacheSize < 0 {
		return fmt.Errorf("asset_cache_size 不能为负: %d", c.AssetCacheSize)
	}
	return nil
}

// Manager 配置管理器
// 文件扩展名为 .yaml/.yml 时使用 YAML，否则使用 JSON。
type Manager struct {
	configDir  string
	configFile string
	mu         sync.RWMutex
}

// NewManager 创建配置管理器，配置文件为 ~/.automata/config.json
func NewManager() *Manager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return NewManagerWithDir(filepath.Join(homeDir, ".automata"))
}

// NewManagerWithDir 使用指定目录创建配置管理器
func NewManagerWithDir(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configFile: filepath.Join(configDir, "config.json"),
	}
}

// NewManagerWithFile 使用指定配置文件创建配置管理器
func NewManagerWithFile(path string) *Manager {
	return &Manager{
		configDir:  filepath.Dir(path),
		configFile: path,
	}
}

// ensureDir 确保配置目录存在
func (m *Manager) ensureDir() error {
	return os.MkdirAll(m.configDir, 0755)
}

func (m *Manager) isYAML() bool {
	switch strings.ToLower(filepath.Ext(m.configFile)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load 加载配置
// 文件不存在时返回默认配置；文件中缺省的字段保留默认值。
func (m *Manager) Load() (*Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, err := os.Stat(m.configFile); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(m.configFile)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := DefaultConfig()
	if m.isYAML() {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return DefaultConfig(), fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return DefaultConfig(), fmt.Errorf("配置无效: %w", err)
	}
	return config, nil
}

// Save 保存配置
func (m *Manager) Save(config *Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("配置无效: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureDir(); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	var data []byte
	var err error
	if m.isYAML() {
		data, err = yaml.Marshal(config)
	} else {
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(m.configFile, data, 0600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// Clear 清除配置
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.configFile); os.IsNotExist(err) {
		return nil
	}

	return os.Remove(m.configFile)
}

// GetConfigDir 获取配置目录
func (m *Manager) GetConfigDir() string {
	return m.configDir
}

// GetConfigFile 获取配置文件路径
func (m *Manager) GetConfigFile() string {
	return m.configFile
}

// Exists 检查配置文件是否存在
func (m *Manager) Exists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, err := os.Stat(m.configFile)
	return err == nil
}

// 全局配置管理器
var defaultManager = NewManager()

// GetDefaultManager 获取默认配置管理器
func GetDefaultManager() *Manager {
	return defaultManager
}

// Load 使用默认管理器加载配置
func Load() (*Config, error) {
	return defaultManager.Load()
}

// Save 使用默认管理器保存配置
func Save(config *Config) error {
	return defaultManager.Save(config)
}

// Clear 使用默认管理器清除配置
func Clear() error {
	return defaultManager.Clear()
}
