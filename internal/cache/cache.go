package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cache is the read/write surface shared by cache implementations.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches whose entries can expire.
type Cleaner interface {
	// CleanExpired drops expired entries and reports how many were removed.
	CleanExpired() int
}

// Manager runs a single periodic cleanup pass over every registered
// cache, so individual caches do not need their own janitor goroutine.
type Manager struct {
	caches   []Cleaner
	stop     chan struct{}
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

func NewManager() *Manager {
	return &Manager{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Register adds a cache to the cleanup rotation. Not safe to call once
// StartCleanup is running.
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// StartCleanup launches the cleanup loop with the given interval.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.started = true
	go func() {
		defer close(m.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed := 0
				for _, cache := range m.caches {
					removed += cache.CleanExpired()
				}
				if removed > 0 {
					slog.Debug("Cache cleanup pass", "removed", removed)
				}
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop terminates the cleanup loop and waits for it to exit. Safe to
// call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		if m.started {
			<-m.done
		}
	})
}
