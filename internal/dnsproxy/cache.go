package dnsproxy

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

type cacheEntry struct {
	msg       *dns.Msg
	expiresAt time.Time
}

// ResponseCache caches upstream DNS responses for their record TTL.
// It is bounded: when full, an arbitrary entry is evicted to make room.
type ResponseCache struct {
	mu         sync.RWMutex
	items      map[string]cacheEntry
	maxEntries int
}

// NewResponseCache creates a cache holding at most maxEntries responses.
// A maxEntries of 0 disables the bound.
func NewResponseCache(maxEntries int) *ResponseCache {
	return &ResponseCache{
		items:      make(map[string]cacheEntry),
		maxEntries: maxEntries,
	}
}

func (c *ResponseCache) Get(key string, now time.Time) (*dns.Msg, bool) {
	c.mu.RLock()
	ent, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if now.After(ent.expiresAt) {
		c.mu.Lock()
		if ent2, ok2 := c.items[key]; ok2 && now.After(ent2.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return ent.msg.Copy(), true
}

func (c *ResponseCache) Put(key string, msg *dns.Msg, ttl time.Duration, now time.Time) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 && len(c.items) >= c.maxEntries {
		for k := range c.items {
			delete(c.items, k)
			break
		}
	}
	c.items[key] = cacheEntry{
		msg:       msg.Copy(),
		expiresAt: now.Add(ttl),
	}
}

// Len returns the current number of cached responses.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func cacheKey(q dns.Question, dnssecOk bool) string {
	name := strings.ToLower(dns.Fqdn(q.Name))
	return fmt.Sprintf("%s|%d|%d|do=%t", name, q.Qtype, q.Qclass, dnssecOk)
}

// minTTL returns the smallest TTL across all resource records of a
// message, which bounds how long the whole response may be cached.
func minTTL(msg *dns.Msg) (time.Duration, bool) {
	ttl := uint32(0)
	set := false
	for _, rr := range append(append(msg.Answer, msg.Ns...), msg.Extra...) {
		h := rr.Header()
		if h == nil {
			continue
		}
		if !set || h.Ttl < ttl {
			ttl = h.Ttl
			set = true
		}
	}
	if !set {
		return 0, false
	}
	return time.Duration(ttl) * time.Second, true
}

func isCacheableQuery(r *dns.Msg) bool {
	if r == nil || r.Opcode != dns.OpcodeQuery || r.Response {
		return false
	}
	return len(r.Question) == 1
}

func doBit(r *dns.Msg) bool {
	edns := r.IsEdns0()
	if edns == nil {
		return false
	}
	return edns.Do()
}
