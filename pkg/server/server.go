package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kubefront/namespace-context/pkg/metrics"
	"github.com/kubefront/namespace-context/pkg/namespace"
	"github.com/kubefront/namespace-context/pkg/ready"
)

// Options configures the status server.
type Options struct {
	Port  int
	Debug bool
}

// StatusServer exposes the provider's resolved namespace state over HTTP:
// the aggregate read model, readiness gated on the host script, health and
// metrics. It is read-only; all selection flows through the provider API.
type StatusServer struct {
	engine       *gin.Engine
	server       *http.Server
	log          *zap.Logger
	provider     *namespace.Provider
	readyManager *ready.Manager
}

// NewStatusServer creates a status server for the given provider.
func NewStatusServer(provider *namespace.Provider, opts Options, log *zap.Logger) *StatusServer {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("status-server")

	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(log))

	readyManager := ready.NewManager(log)
	// Consumers must not render against partial state before the host
	// script has settled.
	readyManager.AddChecker("host-script", ready.CheckerFunc(func() bool {
		return provider.Snapshot().HostScriptReady
	}))
	readyManager.AddChecker("namespaces", ready.CheckerFunc(func() bool {
		return provider.Snapshot().NamespacesLoaded
	}))

	s := &StatusServer{
		engine:       engine,
		log:          log,
		provider:     provider,
		readyManager: readyManager,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: engine,
	}
	return s
}

func (s *StatusServer) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/readyz", s.readyManager.ReadyHandler())
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := s.engine.Group("/api/v1")
	api.GET("/state", s.handleState)
	api.GET("/namespaces", s.handleNamespaces)
}

// stateResponse is the wire form of namespace.State; error fields are
// flattened to strings.
type stateResponse struct {
	Namespaces          []namespace.Namespace `json:"namespaces"`
	NamespacesLoaded    bool                  `json:"namespacesLoaded"`
	NamespacesLoadError string                `json:"namespacesLoadError,omitempty"`
	PreferredNamespace  *namespace.Namespace  `json:"preferredNamespace,omitempty"`
	InitializationError string                `json:"initializationError,omitempty"`
	HostScriptReady     bool                  `json:"hostScriptReady"`
}

func (s *StatusServer) handleState(c *gin.Context) {
	st := s.provider.Snapshot()
	resp := stateResponse{
		Namespaces:         st.Namespaces,
		NamespacesLoaded:   st.NamespacesLoaded,
		PreferredNamespace: st.PreferredNamespace,
		HostScriptReady:    st.HostScriptReady,
	}
	if st.NamespacesLoadError != nil {
		resp.NamespacesLoadError = st.NamespacesLoadError.Error()
	}
	if st.InitializationError != nil {
		resp.InitializationError = st.InitializationError.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *StatusServer) handleNamespaces(c *gin.Context) {
	st := s.provider.Snapshot()
	c.JSON(http.StatusOK, gin.H{"data": st.Namespaces})
}

// Engine returns the underlying gin engine, mainly for tests.
func (s *StatusServer) Engine() *gin.Engine {
	return s.engine
}

// Start begins serving in a background goroutine.
func (s *StatusServer) Start() {
	go func() {
		s.log.Info("Starting status server", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("Status server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *StatusServer) Stop(ctx context.Context) error {
	s.log.Info("Shutting down status server")
	return s.server.Shutdown(ctx)
}
