package namespace

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kubefront/namespace-context/pkg/metrics"
)

// persistencePhase is the restore/track state machine. The explicit enum
// makes the exactly-once restoration contract auditable: Restoring is
// entered at most once per mount and Tracking is terminal.
type persistencePhase int

const (
	phaseUninitialized persistencePhase = iota
	phaseRestoring
	phaseTracking
)

// PersistenceManager synchronizes the preferred namespace with a
// PreferenceStore in two phases: a one-shot restore once the namespace
// list is known, then best-effort tracking of subsequent changes. Storage
// failures never propagate to callers.
type PersistenceManager struct {
	mu          sync.Mutex
	store       PreferenceStore
	key         string
	phase       persistencePhase
	lastWritten string
	log         *zap.Logger
}

// NewPersistenceManager creates a manager writing under the given key.
func NewPersistenceManager(store PreferenceStore, key string, log *zap.Logger) *PersistenceManager {
	if key == "" {
		key = DefaultStorageKey
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PersistenceManager{
		store: store,
		key:   key,
		log:   log.Named("namespace-persistence"),
	}
}

// Restore runs the one-shot restoration step against the loaded namespace
// list. When the stored name is present in the list it is adopted and
// returned; otherwise the caller's fallback is written back so storage and
// live state converge. Calling Restore again is a no-op: the manager moves
// to Tracking regardless of outcome.
func (m *PersistenceManager) Restore(available []Namespace, fallback string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != phaseUninitialized {
		return "", false
	}
	m.phase = phaseRestoring

	stored, err := m.safeGet()
	if err != nil {
		// Unreadable storage is the same as no stored preference.
		m.log.Debug("Could not read stored namespace", zap.Error(err))
		stored = ""
	}

	if stored != "" {
		for _, ns := range available {
			if ns.Name == stored {
				// Record it as already written so tracking does not
				// immediately write the same value back.
				m.lastWritten = stored
				m.phase = phaseTracking
				m.log.Info("Restored namespace from storage", zap.String("namespace", stored))
				return stored, true
			}
		}
		m.log.Info("Stored namespace no longer available, falling back",
			zap.String("stored", stored), zap.String("fallback", fallback))
	}

	if fallback != "" {
		m.writeLocked(fallback)
	}
	m.phase = phaseTracking
	return "", false
}

// Track records a change of the preferred namespace after restoration. An
// empty name removes the stored value. Before the restore step has run,
// Track is a no-op: the manager never writes against a partial list.
func (m *PersistenceManager) Track(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != phaseTracking {
		return
	}
	if name == m.lastWritten {
		return
	}
	m.writeLocked(name)
}

// Clear removes the stored value without touching live state. The next
// tracked change will write again even if it repeats the removed value.
func (m *PersistenceManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.safeRemove(); err != nil {
		m.log.Warn("Failed to clear stored namespace", zap.Error(err))
	}
	m.lastWritten = ""
}

func (m *PersistenceManager) writeLocked(name string) {
	var err error
	if name == "" {
		err = m.safeRemove()
	} else {
		err = m.safeSet(name)
	}
	if err != nil {
		// Quota exhaustion and friends: the in-memory selection is the
		// source of truth, so a failed write is logged and forgotten.
		m.log.Warn("Failed to persist namespace", zap.String("namespace", name), zap.Error(err))
		metrics.PreferenceWriteTotal.WithLabelValues(metrics.OutcomeError).Inc()
	} else {
		metrics.PreferenceWriteTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	}
	m.lastWritten = name
}

// The safe* wrappers guard against stores that panic instead of returning
// an error. Persistence is best-effort end to end.

func (m *PersistenceManager) safeGet() (value string, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = "", fmt.Errorf("preference store panicked: %v", r)
		}
	}()
	return m.store.Get(m.key)
}

func (m *PersistenceManager) safeSet(value string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("preference store panicked: %v", r)
		}
	}()
	return m.store.Set(m.key, value)
}

func (m *PersistenceManager) safeRemove() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("preference store panicked: %v", r)
		}
	}()
	return m.store.Remove(m.key)
}
