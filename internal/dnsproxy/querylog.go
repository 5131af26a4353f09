package dnsproxy

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

const (
	queryLogBufferSize = 256 * 1024
	queryLogMaxBytes   = 50 * 1024 * 1024
	queryLogMaxBackups = 5
)

// QueryEvent is one line of the DNS query log, serialized as JSON.
type QueryEvent struct {
	Ts        string `json:"ts"`
	Transport string `json:"transport"`
	ClientIP  string `json:"client_ip"`
	Domain    string `json:"domain"`
	QueryType string `json:"query_type"`
	Rcode     string `json:"rcode"`
	Answers   int    `json:"answers"`
	CacheHit  bool   `json:"cache_hit"`
	Upstream  string `json:"upstream,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
	Result    string `json:"result"`
}

// QueryLog is an append-only JSON-lines log with size-based rotation.
// Writes are buffered; the owning monitor flushes periodically.
type QueryLog struct {
	mu         sync.Mutex
	path       string
	f          *os.File
	w          *bufio.Writer
	size       int64
	maxBytes   int64
	maxBackups int
}

func NewQueryLog(path string) (*QueryLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}

	return &QueryLog{
		path:       path,
		f:          f,
		w:          bufio.NewWriterSize(f, queryLogBufferSize),
		size:       size,
		maxBytes:   queryLogMaxBytes,
		maxBackups: queryLogMaxBackups,
	}, nil
}

func (l *QueryLog) Write(ev QueryEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return err
	}
	if err := l.rotateIfNeeded(int64(buf.Len())); err != nil {
		return err
	}
	if _, err := l.w.Write(buf.Bytes()); err != nil {
		return err
	}
	l.size += int64(buf.Len())
	return nil
}

func (l *QueryLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Flush()
}

func (l *QueryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.w.Flush()
	return l.f.Close()
}

func (l *QueryLog) rotateIfNeeded(nextBytes int64) error {
	if l.maxBytes <= 0 {
		return nil
	}
	if l.size+nextBytes <= l.maxBytes {
		return nil
	}
	return l.rotate()
}

func (l *QueryLog) rotate() error {
	_ = l.w.Flush()
	_ = l.f.Close()

	if l.maxBackups > 0 {
		last := l.path + "." + strconv.Itoa(l.maxBackups)
		_ = os.Remove(last)
		for i := l.maxBackups - 1; i >= 1; i-- {
			src := l.path + "." + strconv.Itoa(i)
			dst := l.path + "." + strconv.Itoa(i+1)
			if _, err := os.Stat(src); err == nil {
				_ = os.Rename(src, dst)
			}
		}
		_ = os.Rename(l.path, l.path+".1")
	} else {
		_ = os.Remove(l.path)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.f = f
	l.w = bufio.NewWriterSize(f, queryLogBufferSize)
	l.size = 0
	return nil
}
