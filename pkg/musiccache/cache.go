package musiccache

import (
	"sync"

	"lyricsync/pkg/music"
)

// Cache 以曲目 ID 为键的内存歌词缓存，进程生命周期内有效
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*music.Lyrics
}

func New() *Cache {
	return &Cache{entries: make(map[string]*music.Lyrics)}
}

// Get 读取缓存
func (c *Cache) Get(trackID string) (*music.Lyrics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lyrics, ok := c.entries[trackID]
	return lyrics, ok
}

// Add 写入缓存，已存在的键会被覆盖
func (c *Cache) Add(trackID string, lyrics *music.Lyrics) {
	if trackID == "" || lyrics == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[trackID] = lyrics
}

// Clear 清空全部缓存
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*music.Lyrics)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
