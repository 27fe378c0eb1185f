package ready

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Checker reports whether a component is ready to serve consumers.
type Checker interface {
	IsReady() bool
	GetReadinessStatus() Status
}

// Status represents the readiness of a component.
type Status struct {
	Ready   bool           `json:"ready"`
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// Manager aggregates readiness checks for the application. It is ready
// only when every registered checker is.
type Manager struct {
	mu       sync.Mutex
	checkers map[string]Checker
	logger   *zap.Logger
}

// NewManager creates a readiness manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		checkers: make(map[string]Checker),
		logger:   logger.Named("readiness-manager"),
	}
}

// AddChecker registers a named readiness checker.
func (m *Manager) AddChecker(name string, checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = checker
}

// IsReady reports whether all registered checkers are ready.
func (m *Manager) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, checker := range m.checkers {
		if !checker.IsReady() {
			return false
		}
	}
	return true
}

// GetReadinessStatus returns the aggregate readiness status.
func (m *Manager) GetReadinessStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := Status{
		Ready:   true,
		Status:  "ready",
		Details: make(map[string]any),
	}
	for name, checker := range m.checkers {
		checkerStatus := checker.GetReadinessStatus()
		status.Details[name] = checkerStatus
		if !checkerStatus.Ready {
			status.Ready = false
			status.Status = "not ready"
		}
	}
	return status
}

// ReadyHandler returns a gin handler serving the aggregate readiness. Not
// ready responds 503 so embedding frontends can hold rendering until the
// host integration has settled.
func (m *Manager) ReadyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := m.GetReadinessStatus()
		if status.Ready {
			c.JSON(http.StatusOK, status)
		} else {
			c.JSON(http.StatusServiceUnavailable, status)
		}
	}
}

// CheckerFunc adapts a plain function into a Checker.
type CheckerFunc func() bool

func (f CheckerFunc) IsReady() bool { return f() }

func (f CheckerFunc) GetReadinessStatus() Status {
	if f() {
		return Status{Ready: true, Status: "ready"}
	}
	return Status{Ready: false, Status: "not ready"}
}
