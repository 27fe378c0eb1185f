package namespace

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/kubefront/namespace-context/pkg/metrics"
)

// DefaultScriptPath is the well-known location the dashboard serves its
// integration library from.
const DefaultScriptPath = "/dashboard_lib.bundle.js"

// ScriptRuntime loads and evaluates the dashboard integration library. It
// is injected because the embedding environment owns script execution; the
// loader only decides whether and when to invoke it.
type ScriptRuntime interface {
	Load(ctx context.Context, url string) error
}

// ScriptLoader ensures the optional host script is present and initialized
// at most once. It never blocks readiness: a missing or broken script
// degrades to ready so the embedding module can always render.
type ScriptLoader struct {
	url        string
	httpClient *http.Client
	runtime    ScriptRuntime
	log        *zap.Logger
}

// NewScriptLoader creates a loader for the script at url.
func NewScriptLoader(url string, httpClient *http.Client, runtime ScriptRuntime, log *zap.Logger) *ScriptLoader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ScriptLoader{
		url:        url,
		httpClient: httpClient,
		runtime:    runtime,
		log:        log.Named("script-loader"),
	}
}

// EnsureReady probes for the host script and loads it when present. It
// always returns normally; every failure path grants readiness. The probe
// failure logs a warning and the load failure logs an error, both equally
// non-fatal.
func (l *ScriptLoader) EnsureReady(ctx context.Context) {
	present, err := l.probe(ctx)
	if err != nil || !present {
		l.log.Warn("Host script not available, continuing without dashboard integration",
			zap.String("url", l.url), zap.Error(err))
		metrics.ScriptLoadTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return
	}

	if l.runtime == nil {
		l.log.Warn("Host script present but no script runtime injected",
			zap.String("url", l.url))
		metrics.ScriptLoadTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return
	}

	if err := l.runtime.Load(ctx, l.url); err != nil {
		l.log.Error("Host script failed to load, continuing without dashboard integration",
			zap.String("url", l.url), zap.Error(err))
		metrics.ScriptLoadTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return
	}

	l.log.Info("Host script loaded", zap.String("url", l.url))
	metrics.ScriptLoadTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
}

// probe issues a HEAD-style existence check against the script URL.
func (l *ScriptLoader) probe(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, l.url, nil)
	if err != nil {
		return false, err
	}
	res, err := l.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = res.Body.Close() }()
	return res.StatusCode >= 200 && res.StatusCode < 400, nil
}
