package namespace

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/kubefront/namespace-context/pkg/errors"
	"github.com/kubefront/namespace-context/pkg/metrics"
)

// Options carries the injectable collaborators of a Provider. Zero values
// are usable: a nop logger, the default HTTP client, no host integration
// and no persistence.
type Options struct {
	Logger     *zap.Logger
	HTTPClient *http.Client

	// StoreLastNamespace enables persistence of the preferred namespace
	// under StorageKey in Store. Store is required when enabled.
	StoreLastNamespace bool
	Store              PreferenceStore
	StorageKey         string

	// HostBridge is the dashboard SDK entry point; only consulted in
	// script-gated configurations without a mandatory namespace.
	HostBridge HostBridge
	// ScriptRuntime evaluates the dashboard script once the probe finds
	// it. Without a runtime the loader degrades to probe-only.
	ScriptRuntime ScriptRuntime
	// ScriptURL overrides the well-known script location. Defaults to
	// URLPrefix + DefaultScriptPath.
	ScriptURL string
}

// Provider is the single source of truth combining fetched namespaces,
// host-bridge overrides, the persisted preference and the mandatory
// override into one consistent read model. It is safe for concurrent use.
type Provider struct {
	cfg  Config
	opts Options
	log  *zap.Logger

	mu                  sync.Mutex
	closed              bool
	namespaces          []Namespace
	namespacesLoaded    bool
	namespacesLoadError error
	selected            *Namespace
	initializationError error
	hostScriptReady     bool
	snapshot            *State
	watchers            []chan *State

	client      *Client
	persistence *PersistenceManager
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// Mount creates a provider and starts resolution: the namespace fetch and
// the host-script probe run concurrently, the event bridge activates once
// the script is ready, and the persisted preference is restored once the
// namespace list has loaded. The provider lives until Close is called or
// ctx is cancelled; results of in-flight work arriving after teardown are
// discarded.
func Mount(ctx context.Context, cfg Config, opts Options) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewConfigurationError("invalid namespace configuration", err)
	}
	if opts.StoreLastNamespace && opts.Store == nil {
		return nil, apperrors.NewConfigurationError("persistence enabled without a preference store", nil)
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("namespace-provider")

	metrics.Register()

	p := &Provider{
		cfg:  cfg,
		opts: opts,
		log:  log,
	}
	p.client = NewClient(cfg, opts.HTTPClient, log)
	if opts.StoreLastNamespace {
		p.persistence = NewPersistenceManager(opts.Store, opts.StorageKey, log)
	}

	ctx, p.cancel = context.WithCancel(ctx)

	fetcher := NewFetcher(cfg, p.client, log)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		namespaces, err := fetcher.Fetch(ctx)
		p.applyNamespaces(ctx, namespaces, err)
	}()

	if cfg.RequiresHostScript() {
		loader := NewScriptLoader(p.scriptURL(), opts.HTTPClient, opts.ScriptRuntime, log)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			loader.EnsureReady(ctx)
			p.markScriptReady(ctx)
		}()
	} else {
		// No script dependency in this configuration.
		p.markScriptReady(ctx)
	}

	go func() {
		<-ctx.Done()
		p.Close()
	}()

	return p, nil
}

func (p *Provider) scriptURL() string {
	if p.opts.ScriptURL != "" {
		return p.opts.ScriptURL
	}
	return strings.TrimSuffix(p.cfg.URLPrefix, "/") + DefaultScriptPath
}

// Close tears the provider down: watcher channels are closed and any
// still-in-flight fetch or probe result is discarded. Idempotent.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	watchers := p.watchers
	p.watchers = nil
	p.mu.Unlock()

	p.cancel()
	for _, ch := range watchers {
		close(ch)
	}
}

// Wait blocks until the fetch and script-load goroutines have finished.
// Intended for tests and orderly shutdown; consumers normally observe
// progress through Watch.
func (p *Provider) Wait() {
	p.wg.Wait()
}

// Snapshot returns the current aggregate state. The same pointer is
// returned until an underlying field changes.
func (p *Provider) Snapshot() *State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Watch returns a channel receiving the current state immediately and a
// new snapshot on every change. The channel is latest-wins: a slow
// consumer only ever misses intermediate states, never the newest one. It
// is closed when the provider closes.
func (p *Provider) Watch() <-chan *State {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan *State, 1)
	if p.closed {
		close(ch)
		return ch
	}
	ch <- p.snapshotLocked()
	p.watchers = append(p.watchers, ch)
	return ch
}

// UpdatePreferredNamespace is the sole write path into the preferred
// namespace, used by host-bridge events, the restore step and UI-driven
// selection alike. Passing nil clears both the live selection and the
// stored value. Under a mandatory namespace all updates are ignored. A
// name that is not in a non-empty namespace list is rejected.
func (p *Provider) UpdatePreferredNamespace(ns *Namespace) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	if p.cfg.MandatoryNamespace != "" {
		p.log.Debug("Ignoring namespace update, mandatory namespace is set",
			zap.String("mandatory", p.cfg.MandatoryNamespace))
		return
	}
	if ns != nil {
		resolved, ok := p.resolveLocked(ns.Name)
		if !ok {
			p.log.Warn("Ignoring selection of unknown namespace", zap.String("namespace", ns.Name))
			return
		}
		ns = resolved
	}
	p.setSelectedLocked(ns)
}

// ClearStoredNamespace removes the persisted preference without touching
// the live selection.
func (p *Provider) ClearStoredNamespace() {
	if p.persistence != nil {
		p.persistence.Clear()
	}
}

// GetUser proxies to the backend user endpoint for sibling subsystems.
func (p *Provider) GetUser(ctx context.Context) (*User, error) {
	return p.client.GetUser(ctx)
}

// applyNamespaces records a finished fetch. Loading is considered done on
// both the success and the failure path so consumers never wait forever.
func (p *Provider) applyNamespaces(ctx context.Context, namespaces []Namespace, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || ctx.Err() != nil {
		return
	}

	if err != nil {
		p.namespacesLoadError = err
	} else {
		p.namespaces = namespaces
		p.namespacesLoadError = nil
	}
	p.namespacesLoaded = true

	if p.persistence != nil {
		fallback := ""
		if def := p.defaultPreferredLocked(); def != nil {
			fallback = def.Name
		}
		if adopted, ok := p.persistence.Restore(p.namespaces, fallback); ok {
			if resolved, found := p.resolveLocked(adopted); found {
				p.selected = resolved
			}
		}
	}

	p.invalidateLocked()
}

// markScriptReady grants readiness exactly once and, on the transition,
// activates the host event bridge when the configuration calls for one.
func (p *Provider) markScriptReady(ctx context.Context) {
	p.mu.Lock()
	if p.closed || ctx.Err() != nil || p.hostScriptReady {
		p.mu.Unlock()
		return
	}
	p.hostScriptReady = true
	p.invalidateLocked()
	register := p.cfg.RequiresHostScript() &&
		p.cfg.MandatoryNamespace == "" &&
		p.opts.HostBridge != nil
	p.mu.Unlock()

	if !register {
		return
	}
	bridge := NewEventBridge(p.opts.HostBridge, p.handleHostSelection, p.log)
	if err := bridge.Register(); err != nil {
		p.log.Error("Host integration failed", zap.Error(err))
		apperrors.IncrementErrorCount(apperrors.HostIntegrationError)
		p.mu.Lock()
		if !p.closed {
			p.initializationError = err
			p.invalidateLocked()
		}
		p.mu.Unlock()
	}
}

// handleHostSelection maps a host-originated selection event into state.
func (p *Provider) handleHostSelection(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.cfg.MandatoryNamespace != "" {
		return
	}
	metrics.HostSelectionTotal.Inc()
	resolved, ok := p.resolveLocked(name)
	if !ok {
		p.log.Warn("Host selected a namespace that is not available", zap.String("namespace", name))
		return
	}
	p.setSelectedLocked(resolved)
}

// resolveLocked maps a name onto a Namespace. Against a non-empty list the
// name must be a member; against an empty list (host-owned modes, where no
// list is fetched) the name is accepted as-is.
func (p *Provider) resolveLocked(name string) (*Namespace, bool) {
	if name == "" {
		return nil, false
	}
	if len(p.namespaces) == 0 {
		return &Namespace{Name: name}, true
	}
	for i := range p.namespaces {
		if p.namespaces[i].Name == name {
			ns := p.namespaces[i]
			return &ns, true
		}
	}
	return nil, false
}

func (p *Provider) setSelectedLocked(ns *Namespace) {
	p.selected = ns
	p.invalidateLocked()
	if p.persistence != nil {
		name := ""
		if ns != nil {
			name = ns.Name
		}
		p.persistence.Track(name)
	}
}

// defaultPreferredLocked is the preference absent any explicit selection:
// the mandatory namespace when configured, else the first namespace in
// sorted order, else nil.
func (p *Provider) defaultPreferredLocked() *Namespace {
	if p.cfg.MandatoryNamespace != "" {
		return &Namespace{Name: p.cfg.MandatoryNamespace}
	}
	if len(p.namespaces) > 0 {
		ns := p.namespaces[0]
		return &ns
	}
	return nil
}

func (p *Provider) preferredLocked() *Namespace {
	if p.selected != nil {
		ns := *p.selected
		return &ns
	}
	return p.defaultPreferredLocked()
}

func (p *Provider) snapshotLocked() *State {
	if p.snapshot == nil {
		p.snapshot = p.buildStateLocked()
	}
	return p.snapshot
}

// invalidateLocked rebuilds the snapshot and notifies watchers, but only
// when a field actually changed. Consumers relying on pointer equality are
// never invalidated spuriously.
func (p *Provider) invalidateLocked() {
	next := p.buildStateLocked()
	if p.snapshot != nil && statesEqual(p.snapshot, next) {
		return
	}
	p.snapshot = next
	for _, ch := range p.watchers {
		select {
		case ch <- next:
		default:
			// Drop the stale snapshot, keep the newest.
			select {
			case <-ch:
			default:
			}
			ch <- next
		}
	}
}

func (p *Provider) buildStateLocked() *State {
	namespaces := make([]Namespace, len(p.namespaces))
	copy(namespaces, p.namespaces)
	return &State{
		Namespaces:          namespaces,
		NamespacesLoaded:    p.namespacesLoaded,
		NamespacesLoadError: p.namespacesLoadError,
		PreferredNamespace:  p.preferredLocked(),
		InitializationError: p.initializationError,
		HostScriptReady:     p.hostScriptReady,
	}
}

func statesEqual(a, b *State) bool {
	if a.NamespacesLoaded != b.NamespacesLoaded ||
		a.HostScriptReady != b.HostScriptReady ||
		a.NamespacesLoadError != b.NamespacesLoadError ||
		a.InitializationError != b.InitializationError {
		return false
	}
	if !namespacesEqual(a.Namespaces, b.Namespaces) {
		return false
	}
	switch {
	case a.PreferredNamespace == nil && b.PreferredNamespace == nil:
		return true
	case a.PreferredNamespace == nil || b.PreferredNamespace == nil:
		return false
	default:
		return *a.PreferredNamespace == *b.PreferredNamespace
	}
}
