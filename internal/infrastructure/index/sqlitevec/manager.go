package sqlitevec

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
	"github.com/kemingtech/catalog-assistant/internal/core/ports"
)

// resetMarkerSuffix names the marker file written next to the index
// directory to schedule a hard reset for the next startup.
const resetMarkerSuffix = ".reset"

// Manager is the single process-wide owner of the index handle. The
// handle is opened lazily on first use. One RWMutex serializes handle
// replacement (Refresh, Reset) against handle acquisition: ordinary
// operations take a brief read lock to fetch the current handle and
// then run without it, so a concurrent replacement closes the database
// and in-flight statements fail cleanly instead of reading stale state.
type Manager struct {
	dir          string
	embedder     ports.Embedder
	embedTimeout time.Duration
	logger       *slog.Logger

	mu    sync.RWMutex
	store *Store
}

func NewManager(dir string, embedder ports.Embedder, embedTimeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dir:          dir,
		embedder:     embedder,
		embedTimeout: embedTimeout,
		logger:       logger,
	}
}

// handle returns the current store, opening it if none exists yet.
func (m *Manager) handle() (*Store, error) {
	m.mu.RLock()
	store := m.store
	m.mu.RUnlock()
	if store != nil {
		return store, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store != nil {
		return m.store, nil
	}

	store, err := Open(m.dir, m.embedder, m.embedTimeout)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	m.store = store
	m.logger.Info("semantic index opened", "dir", m.dir)
	return store, nil
}

func (m *Manager) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	store, err := m.handle()
	if err != nil {
		return domain.WrapError(domain.ErrIndexWrite, "acquire index handle", err)
	}
	return store.Upsert(ctx, chunks)
}

func (m *Manager) Delete(ctx context.Context, filter map[string]string) error {
	store, err := m.handle()
	if err != nil {
		return domain.WrapError(domain.ErrIndexWrite, "acquire index handle", err)
	}
	return store.Delete(ctx, filter)
}

func (m *Manager) Search(ctx context.Context, query string, k int, filter map[string]string) ([]domain.ScoredChunk, error) {
	store, err := m.handle()
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexRead, "acquire index handle", err)
	}
	return store.Search(ctx, query, k, filter)
}

func (m *Manager) GetByFilter(ctx context.Context, filter map[string]string) ([]domain.Chunk, error) {
	store, err := m.handle()
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexRead, "acquire index handle", err)
	}
	return store.GetByFilter(ctx, filter)
}

func (m *Manager) Stats(ctx context.Context) (domain.IndexStats, error) {
	store, err := m.handle()
	if err != nil {
		return domain.IndexStats{}, domain.WrapError(domain.ErrIndexRead, "acquire index handle", err)
	}
	return store.Stats(ctx)
}

// Refresh discards the current handle and opens a fresh one against
// the same storage. In-flight operations on the old handle observe
// closed-database errors.
func (m *Manager) Refresh(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Close(); err != nil {
			m.logger.Warn("close index handle", "error", err)
		}
		m.store = nil
	}

	store, err := Open(m.dir, m.embedder, m.embedTimeout)
	if err != nil {
		return fmt.Errorf("reopen index: %w", err)
	}
	m.store = store
	m.logger.Info("semantic index handle refreshed", "dir", m.dir)
	return nil
}

// Reset closes the handle, removes the index storage from disk and
// returns the manager to its uninitialized state; the next operation
// lazily recreates empty storage. Reset is idempotent.
func (m *Manager) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Close(); err != nil {
			m.logger.Warn("close index handle", "error", err)
		}
		m.store = nil
	}

	if err := os.RemoveAll(m.dir); err != nil {
		return domain.WrapError(domain.ErrIndexWrite, "remove index storage", err)
	}
	m.logger.Info("semantic index reset", "dir", m.dir)
	return nil
}

// MarkPendingReset schedules a hard reset without tearing down the
// live handle: a marker file is written next to the index directory
// and consumed on the next clean startup.
func (m *Manager) MarkPendingReset() error {
	if err := os.WriteFile(m.dir+resetMarkerSuffix, []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write reset marker: %w", err)
	}
	m.logger.Info("semantic index reset scheduled", "dir", m.dir)
	return nil
}

// Close releases the handle without touching the on-disk storage.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return nil
	}
	err := m.store.Close()
	m.store = nil
	return err
}

// ConsumePendingReset removes the index directory if a reset marker
// exists for it, then removes the marker. Call at startup before any
// handle is created.
func ConsumePendingReset(dir string, logger *slog.Logger) error {
	marker := dir + resetMarkerSuffix
	if _, err := os.Stat(marker); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat reset marker: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove index storage: %w", err)
	}
	if err := os.Remove(marker); err != nil {
		return fmt.Errorf("remove reset marker: %w", err)
	}
	if logger != nil {
		logger.Info("pending index reset applied", "dir", dir)
	}
	return nil
}
