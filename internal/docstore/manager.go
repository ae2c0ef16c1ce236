package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"intake-backend/internal/shared/storage/kv"
	"intake-backend/internal/shared/telemetry"
)

// ErrQuotaExceeded is returned by Put when a write does not fit even after
// one cleanup pass. The caller is never left guessing whether data was
// silently dropped.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Config tunes the manager. Zero values fall back to defaults; the defaults
// are operational observations, not validated limits, which is why they are
// configuration in the first place.
type Config struct {
	// LimitBytes is the hard storage budget. Default 10 MiB.
	LimitBytes int64
	// Retention is how many documents the global recency list keeps.
	// Default 50.
	Retention int
	// Watermark is the usage fraction above which CheckQuota stops
	// admitting writes. Default 0.8.
	Watermark float64
	// CacheTTL is how long cache-prefixed entries live. Default 24h.
	CacheTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.LimitBytes <= 0 {
		c.LimitBytes = 10 << 20
	}
	if c.Retention <= 0 {
		c.Retention = 50
	}
	if c.Watermark <= 0 || c.Watermark > 1 {
		c.Watermark = 0.8
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 24 * time.Hour
	}
	return c
}

// Manager owns the document keyspace on the shared KV medium: quota
// accounting, eviction and legacy migration. The mutex serializes
// check-then-write sequences in this process; the quota race with an
// out-of-process writer is accepted and self-heals through cleanup.
type Manager struct {
	mu    sync.Mutex
	store kv.Store
	cfg   Config
	now   func() time.Time
}

// NewManager wraps the given store.
func NewManager(store kv.Store, cfg Config) *Manager {
	return &Manager{store: store, cfg: cfg.withDefaults(), now: time.Now}
}

// CheckQuota sums the serialized size of every managed key. CanWrite turns
// false at the watermark, well before the hard limit.
func (m *Manager) CheckQuota(ctx context.Context) (Quota, error) {
	used, err := m.usedBytes(ctx)
	if err != nil {
		return Quota{}, err
	}
	q := Quota{
		UsedBytes:  used,
		LimitBytes: m.cfg.LimitBytes,
		Percentage: float64(used) / float64(m.cfg.LimitBytes) * 100,
	}
	q.CanWrite = float64(used) < float64(m.cfg.LimitBytes)*m.cfg.Watermark
	return q, nil
}

func (m *Manager) usedBytes(ctx context.Context) (int64, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list keys: %w", err)
	}
	var used int64
	for _, key := range keys {
		value, err := m.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return 0, fmt.Errorf("size key %s: %w", key, err)
		}
		used += int64(len(key) + len(value))
	}
	return used, nil
}

// Put writes a value under quota control: check before the write, and on a
// capacity failure run cleanup once and retry exactly once. A second
// failure surfaces ErrQuotaExceeded.
func (m *Manager) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putLocked(ctx, key, value)
}

func (m *Manager) putLocked(ctx context.Context, key string, value []byte) error {
	if err := m.tryWrite(ctx, key, value); err == nil {
		return nil
	} else if !errors.Is(err, ErrQuotaExceeded) {
		return err
	}

	report, err := m.cleanupLocked(ctx)
	if err != nil {
		return fmt.Errorf("cleanup during put: %w", err)
	}
	telemetry.Info("docstore.cleanup_on_put", map[string]any{
		"key":             key,
		"trimmed":         report.Trimmed,
		"stripped":        report.Stripped,
		"cache_removed":   report.CacheRemoved,
		"reclaimed_bytes": report.ReclaimedBytes,
	})

	if err := m.tryWrite(ctx, key, value); err != nil {
		return err
	}
	return nil
}

func (m *Manager) tryWrite(ctx context.Context, key string, value []byte) error {
	used, err := m.usedBytes(ctx)
	if err != nil {
		return err
	}
	if used+int64(len(key)+len(value)) > m.cfg.LimitBytes {
		return fmt.Errorf("%w: %d bytes used of %d, write of %d does not fit",
			ErrQuotaExceeded, used, m.cfg.LimitBytes, len(value))
	}
	return m.store.Set(ctx, key, value)
}

// CleanupReport summarizes one eviction pass.
type CleanupReport struct {
	// Trimmed counts documents dropped from the global recency list.
	Trimmed int
	// Stripped counts documents whose binary payload was evicted.
	Stripped int
	// CacheRemoved counts expired cache entries deleted.
	CacheRemoved   int
	ReclaimedBytes int64
}

// Cleanup runs the eviction policy: trim the global list to the retention
// count, strip binary payload from documents outside the retained window
// while keeping every metadata field, and drop expired cache entries.
// Deterministic; safe to run at any time.
func (m *Manager) Cleanup(ctx context.Context) (CleanupReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleanupLocked(ctx)
}

func (m *Manager) cleanupLocked(ctx context.Context) (CleanupReport, error) {
	var report CleanupReport

	before, err := m.usedBytes(ctx)
	if err != nil {
		return report, err
	}

	retained, err := m.trimGlobalList(ctx, &report)
	if err != nil {
		return report, err
	}
	if err := m.stripOutsideWindow(ctx, retained, &report); err != nil {
		return report, err
	}
	if err := m.expireCache(ctx, &report); err != nil {
		return report, err
	}

	after, err := m.usedBytes(ctx)
	if err != nil {
		return report, err
	}
	if before > after {
		report.ReclaimedBytes = before - after
	}
	return report, nil
}

// trimGlobalList cuts the recency list down to the retention count and
// returns the retained id set. A document dropped from the list is deleted
// outright only when no patient or triage bucket still references it;
// referenced documents survive as metadata and are handled by the strip
// pass.
func (m *Manager) trimGlobalList(ctx context.Context, report *CleanupReport) (map[string]bool, error) {
	ids, err := m.readIDList(ctx, keyGlobal)
	if err != nil {
		return nil, err
	}

	retained := make(map[string]bool, len(ids))
	if len(ids) <= m.cfg.Retention {
		for _, id := range ids {
			retained[id] = true
		}
		return retained, nil
	}

	keep := ids[:m.cfg.Retention]
	dropped := ids[m.cfg.Retention:]
	for _, id := range keep {
		retained[id] = true
	}

	referenced, err := m.referencedIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range dropped {
		if referenced[id] {
			continue
		}
		if err := m.store.Remove(ctx, docKey(id)); err != nil {
			return nil, fmt.Errorf("remove evicted doc %s: %w", id, err)
		}
	}
	report.Trimmed = len(dropped)

	if err := m.writeIDList(ctx, keyGlobal, keep); err != nil {
		return nil, err
	}
	return retained, nil
}

// referencedIDs collects every id held by a patient bucket or the triage
// bucket.
func (m *Manager) referencedIDs(ctx context.Context) (map[string]bool, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	out := make(map[string]bool)
	for _, key := range keys {
		if key != keyUnmatched && !strings.HasPrefix(key, keyPatientPrefix) {
			continue
		}
		ids, err := m.readIDList(ctx, key)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			out[id] = true
		}
	}
	return out, nil
}

// stripOutsideWindow evicts binary payload from every canonical record not
// in the retained set. Metadata fields are never touched.
func (m *Manager) stripOutsideWindow(ctx context.Context, retained map[string]bool, report *CleanupReport) error {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	for _, key := range keys {
		if !strings.HasPrefix(key, keyDocPrefix) {
			continue
		}
		id := key[len(keyDocPrefix):]
		if retained[id] {
			continue
		}
		doc, err := m.readDoc(ctx, id)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return err
		}
		if !doc.hasPayload() {
			continue
		}
		doc.stripPayload()
		if err := m.writeDocUnchecked(ctx, doc); err != nil {
			return err
		}
		report.Stripped++
	}
	return nil
}

// cacheEntry wraps transient values with their write time so expiry does
// not depend on the medium supporting TTLs.
type cacheEntry struct {
	SavedAt time.Time `json:"savedAt"`
	Data    []byte    `json:"data"`
}

func (m *Manager) expireCache(ctx context.Context, report *CleanupReport) error {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	cutoff := m.now().Add(-m.cfg.CacheTTL)
	for _, key := range keys {
		if !strings.HasPrefix(key, keyCachePrefix) {
			continue
		}
		raw, err := m.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return fmt.Errorf("read cache %s: %w", key, err)
		}
		var entry cacheEntry
		// Unparseable cache entries are treated as expired.
		if err := json.Unmarshal(raw, &entry); err != nil || entry.SavedAt.Before(cutoff) {
			if err := m.store.Remove(ctx, key); err != nil {
				return fmt.Errorf("remove cache %s: %w", key, err)
			}
			report.CacheRemoved++
		}
	}
	return nil
}

// SetCache stores a transient value under the cache prefix with the current
// timestamp. Cache writes go through quota control like everything else.
func (m *Manager) SetCache(ctx context.Context, key string, data []byte) error {
	raw, err := json.Marshal(cacheEntry{SavedAt: m.now(), Data: data})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	return m.Put(ctx, keyCachePrefix+key, raw)
}

// GetCache fetches a transient value. Expired entries read as missing even
// before cleanup removes them.
func (m *Manager) GetCache(ctx context.Context, key string) ([]byte, error) {
	raw, err := m.store.Get(ctx, keyCachePrefix+key)
	if err != nil {
		return nil, err
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, kv.ErrNotFound
	}
	if entry.SavedAt.Before(m.now().Add(-m.cfg.CacheTTL)) {
		return nil, kv.ErrNotFound
	}
	return entry.Data, nil
}

// readIDList loads an ordered id list, treating a missing key as empty.
func (m *Manager) readIDList(ctx context.Context, key string) ([]string, error) {
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return ids, nil
}

func (m *Manager) writeIDList(ctx context.Context, key string, ids []string) error {
	if len(ids) == 0 {
		if err := m.store.Remove(ctx, key); err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
		return nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	// Bookkeeping writes bypass the quota gate: they shrink or replace
	// existing data and must succeed during cleanup itself.
	if err := m.store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (m *Manager) readDoc(ctx context.Context, id string) (Document, error) {
	raw, err := m.store.Get(ctx, docKey(id))
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decode doc %s: %w", id, err)
	}
	return doc, nil
}

func (m *Manager) writeDocUnchecked(ctx context.Context, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode doc %s: %w", doc.ID, err)
	}
	if err := m.store.Set(ctx, docKey(doc.ID), raw); err != nil {
		return fmt.Errorf("write doc %s: %w", doc.ID, err)
	}
	return nil
}
