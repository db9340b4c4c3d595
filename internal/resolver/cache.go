package resolver

import (
	"container/list"
	"strconv"
	"sync"
	"time"

	"tzupdated/internal/metrics"
)

// 文档注释：本地 LRU 缓存（精确坐标为键）
// 背景：查询接口上热点坐标会被反复请求，使用进程内缓存跳过索引与判定；TTL 可调。
// 约束：键为保留 6 位小数的坐标（约 0.1 米），不做网格量化，避免一个缓存格跨越时区边界。
type LRU struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	lst  *list.List
	dict map[string]*list.Element
}

type kv struct {
	k   string
	v   Resolution
	exp time.Time
}

func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRU{cap: capacity, ttl: ttl, lst: list.New(), dict: make(map[string]*list.Element)}
}

func (c *LRU) Get(k string) (Resolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		it := e.Value.(kv)
		if c.ttl <= 0 || time.Now().Before(it.exp) {
			c.lst.MoveToFront(e)
			return it.v, true
		}
		c.lst.Remove(e)
		delete(c.dict, k)
	}
	return Resolution{}, false
}

func (c *LRU) Set(k string, v Resolution) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp := time.Now().Add(c.ttl)
	if e, ok := c.dict[k]; ok {
		e.Value = kv{k: k, v: v, exp: exp}
		c.lst.MoveToFront(e)
		return
	}
	c.dict[k] = c.lst.PushFront(kv{k: k, v: v, exp: exp})
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		delete(c.dict, back.Value.(kv).k)
		c.lst.Remove(back)
	}
}

func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}

// CoordKey 缓存键：lat,lon 的最短精确十进制表示；不做取整，不同坐标不会共享缓存项
func CoordKey(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'g', -1, 64) + "," + strconv.FormatFloat(lon, 'g', -1, 64)
}

// Cached 在解析器前加一层 LRU；数据集不可变，缓存项不会因数据变化而失效
type Cached struct {
	r   *Resolver
	lru *LRU
}

func NewCached(r *Resolver, capacity int, ttl time.Duration) *Cached {
	return &Cached{r: r, lru: NewLRU(capacity, ttl)}
}

func (c *Cached) Explain(lat, lon float64) Resolution {
	key := CoordKey(lat, lon)
	if v, ok := c.lru.Get(key); ok {
		metrics.CacheHitsTotal.WithLabelValues("lru").Inc()
		return v
	}
	metrics.CacheMissesTotal.WithLabelValues("lru").Inc()
	v := c.r.Explain(lat, lon)
	c.lru.Set(key, v)
	return v
}

func (c *Cached) Resolve(lat, lon float64) (string, bool) {
	v := c.Explain(lat, lon)
	return v.Timezone, v.Found
}

func (c *Cached) Resolver() *Resolver { return c.r }
