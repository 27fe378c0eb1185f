package settings

import (
	"context"

	"go.uber.org/zap"

	"github.com/kubefront/namespace-context/pkg/namespace"
)

// Manager loads the current user's identity from the backend user
// endpoint. It is a sibling of the namespace subsystem: namespace
// resolution never depends on it.
type Manager struct {
	client *namespace.Client
	log    *zap.Logger
}

// NewManager creates a settings manager on top of the backend client.
func NewManager(client *namespace.Client, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		client: client,
		log:    log.Named("settings"),
	}
}

// User returns the backend's view of the current user.
func (m *Manager) User(ctx context.Context) (*namespace.User, error) {
	user, err := m.client.GetUser(ctx)
	if err != nil {
		m.log.Error("Failed to load user info", zap.Error(err))
		return nil, err
	}
	m.log.Debug("Loaded user info",
		zap.String("userId", user.UserID),
		zap.Bool("clusterAdmin", user.ClusterAdmin))
	return user, nil
}
