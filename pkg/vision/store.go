package vision

import (
	"fmt"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/zoeyai/automata/internal/logger"
)

// DefaultStoreSize PatternStore 默认缓存数量
const DefaultStoreSize = 64

// PatternStore 按文件名加载并缓存目标图像
// 被淘汰或清空的 Pattern 会被释放，调用方不应长期持有 Load 返回值。
type PatternStore struct {
	dir   string
	cache *lru.Cache[string, *Pattern]
	log   *logger.Logger
}

// NewPatternStore 创建图像仓库，size <= 0 时使用 DefaultStoreSize
func NewPatternStore(dir string, size int) (*PatternStore, error) {
	if size <= 0 {
		size = DefaultStoreSize
	}
	s := &PatternStore{
		dir: dir,
		log: logger.Default().WithComponent("STORE"),
	}
	cache, err := lru.NewWithEvict(size, func(name string, p *Pattern) {
		if err := p.Release(); err != nil {
			s.log.Warn("释放缓存图像 %s 失败: %v", name, err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("创建图像缓存失败: %w", err)
	}
	s.cache = cache
	return s, nil
}

// Dir 图像目录
func (s *PatternStore) Dir() string {
	return s.dir
}

// Load 读取 <dir>/<name> 的灰度图像，已缓存时直接返回
func (s *PatternStore) Load(name string) (*Pattern, error) {
	if p, ok := s.cache.Get(name); ok {
		return p, nil
	}

	path := name
	if !filepath.IsAbs(name) {
		path = filepath.Join(s.dir, name)
	}
	p, err := LoadPattern(name, path)
	if err != nil {
		return nil, err
	}

	// 并发加载同一图像时保留先放入的那个
	if prev, ok, _ := s.cache.PeekOrAdd(name, p); ok {
		p.Release()
		return prev, nil
	}
	s.log.Debug("加载图像 %s (%dx%d)", name, p.Width(), p.Height())
	return p, nil
}

// Remove 移除并释放图像
func (s *PatternStore) Remove(name string) bool {
	return s.cache.Remove(name)
}

// Len 已缓存数量
func (s *PatternStore) Len() int {
	return s.cache.Len()
}

// Close 释放所有缓存的图像
func (s *PatternStore) Close() {
	s.cache.Purge()
}
