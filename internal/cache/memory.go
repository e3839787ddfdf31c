package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"certwatch/internal/logger"
	"certwatch/pkg/models"
)

type cacheEntry struct {
	report    *models.TargetReport
	timestamp time.Time
	ttl       time.Duration
}

func (e *cacheEntry) isExpired(now time.Time) bool {
	if e.ttl == 0 {
		return false
	}
	return now.Sub(e.timestamp) > e.ttl
}

// MemoryStore is a TTL map. Entries older than the TTL read as misses and
// are swept periodically.
type MemoryStore struct {
	entries map[string]*cacheEntry
	mutex   sync.RWMutex
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	store := &MemoryStore{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}

	if ttl > 0 {
		go store.cleanupExpired()
	}

	return store
}

func (m *MemoryStore) Get(ctx context.Context, host string) (*models.TargetReport, bool) {
	log := logger.GetFromContext(ctx, logger.Get())

	m.mutex.RLock()
	entry, exists := m.entries[host]
	m.mutex.RUnlock()

	if !exists {
		log.Debug("cache miss",
			slog.String("host", host),
			slog.String("reason", "not_found"))
		return nil, false
	}

	now := time.Now()
	if entry.isExpired(now) {
		log.Debug("cache miss",
			slog.String("host", host),
			slog.String("reason", "expired"),
			slog.Duration("age", now.Sub(entry.timestamp)))

		m.mutex.Lock()
		if current, ok := m.entries[host]; ok && current == entry {
			delete(m.entries, host)
		}
		m.mutex.Unlock()
		return nil, false
	}

	age := now.Sub(entry.timestamp)
	log.Debug("cache hit",
		slog.String("host", host),
		slog.Duration("age", age),
		slog.Duration("remaining_ttl", m.ttl-age))

	return entry.report, true
}

func (m *MemoryStore) Set(ctx context.Context, host string, report *models.TargetReport) {
	m.mutex.Lock()
	m.entries[host] = &cacheEntry{
		report:    report,
		timestamp: time.Now(),
		ttl:       m.ttl,
	}
	total := len(m.entries)
	m.mutex.Unlock()

	logger.GetFromContext(ctx, logger.Get()).Debug("cache set",
		slog.String("host", host),
		slog.Int("total_entries", total))
}

func (m *MemoryStore) Clear() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.entries = make(map[string]*cacheEntry)
}

func (m *MemoryStore) Size() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return len(m.entries)
}

// Close stops the background sweep.
func (m *MemoryStore) Close() {
	m.once.Do(func() { close(m.stop) })
}

func (m *MemoryStore) cleanupExpired() {
	ticker := time.NewTicker(m.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			select {
			case <-m.stop:
				return
			default:
			}
		}

		m.mutex.Lock()
		now := time.Now()
		removed := 0
		for host, entry := range m.entries {
			if entry.isExpired(now) {
				delete(m.entries, host)
				removed++
			}
		}
		remaining := len(m.entries)
		m.mutex.Unlock()

		if removed > 0 {
			logger.Get().Debug("cache cleanup completed",
				slog.Int("removed", removed),
				slog.Int("remaining", remaining))
		}
	}
}
