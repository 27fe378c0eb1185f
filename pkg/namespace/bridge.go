package namespace

import (
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/kubefront/namespace-context/pkg/errors"
)

// HostHandlers is the handler table the dashboard SDK hands out during
// initialization. The bridge assigns OnNamespaceSelected before the
// registration callback returns; other fields stay under host control.
type HostHandlers struct {
	OnNamespaceSelected func(name string)
}

// HostBridge models the dashboard's global initialization entry point as
// an injected port, so the one piece of ambient global state in the system
// stays mockable. Init invokes the SDK, which calls cb with its handler
// table. Implementations may return an error or panic; both are contained
// by the event bridge.
type HostBridge interface {
	Init(cb func(h *HostHandlers)) error
}

// EventBridge registers a namespace-selection handler with the host SDK
// and forwards host-originated selection events into the provider.
type EventBridge struct {
	bridge   HostBridge
	onSelect func(name string)
	log      *zap.Logger
}

// NewEventBridge creates a bridge forwarding selections to onSelect.
func NewEventBridge(bridge HostBridge, onSelect func(name string), log *zap.Logger) *EventBridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventBridge{
		bridge:   bridge,
		onSelect: onSelect,
		log:      log.Named("host-bridge"),
	}
}

// Register wires the selection callback into the host SDK. Registration is
// best-effort: any error returned or panic raised synchronously by the SDK
// is captured and returned, never propagated.
func (b *EventBridge) Register() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewHostIntegrationError("host SDK initialization",
				fmt.Errorf("panic during init: %v", r))
		}
	}()

	initErr := b.bridge.Init(func(h *HostHandlers) {
		h.OnNamespaceSelected = func(name string) {
			b.log.Debug("Host selected namespace", zap.String("namespace", name))
			b.onSelect(name)
		}
	})
	if initErr != nil {
		return apperrors.NewHostIntegrationError("host SDK initialization", initErr)
	}

	b.log.Info("Registered namespace-selection handler with host")
	return nil
}
