package namespace

import (
	"context"

	"go.uber.org/zap"

	"github.com/kubefront/namespace-context/pkg/metrics"
)

// Fetcher resolves the list of available namespaces for a configuration.
// Depending on the hosting mode this is a backend call, a short-circuit to
// the mandatory namespace, or an empty list when the host owns selection.
type Fetcher struct {
	cfg    Config
	client *Client
	log    *zap.Logger
}

// NewFetcher creates a fetcher for the given configuration.
func NewFetcher(cfg Config, client *Client, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{
		cfg:    cfg,
		client: client,
		log:    log.Named("namespace-fetcher"),
	}
}

// Fetch produces the namespace list for the configured mode. The mandatory
// override wins over any mode-based branching and never touches the
// network. The returned list is sorted ascending by name.
func (f *Fetcher) Fetch(ctx context.Context) ([]Namespace, error) {
	if f.cfg.MandatoryNamespace != "" {
		f.log.Debug("Namespace list pinned to mandatory namespace",
			zap.String("namespace", f.cfg.MandatoryNamespace))
		metrics.NamespaceFetchTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return []Namespace{{Name: f.cfg.MandatoryNamespace}}, nil
	}

	if f.cfg.DeploymentMode != DeploymentStandalone {
		// Federated and dashboard-embedded modules defer namespace
		// selection to the host.
		metrics.NamespaceFetchTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return []Namespace{}, nil
	}

	namespaces, err := f.client.ListNamespaces(ctx)
	if err != nil {
		f.log.Error("Failed to fetch namespaces", zap.Error(err))
		metrics.NamespaceFetchTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}
	metrics.NamespaceFetchTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return sortedNamespaces(namespaces), nil
}
