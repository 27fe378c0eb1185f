package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kubefront/namespace-context/cmd/version"
	"github.com/kubefront/namespace-context/internal/config"
	"github.com/kubefront/namespace-context/pkg/logging"
	"github.com/kubefront/namespace-context/pkg/namespace"
	"github.com/kubefront/namespace-context/pkg/server"
	"github.com/kubefront/namespace-context/pkg/settings"
)

var (
	cfg    *config.Config
	logger = logging.NewLogger()

	rootCmd = &cobra.Command{
		Use:   "namespace-context",
		Short: "Namespace resolution for embedded micro-frontend modules",
		Long: `Resolves, persists and serves the current namespace for a module that can
run standalone, federated inside a host application, or embedded in a
Kubeflow dashboard that owns namespace selection itself.`,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.InitConfig()
			if err := logging.InitLogger(cfg.LogLevel); err != nil {
				logger.Fatal("Failed to initialize logger", zap.Error(err))
			}
		},
	}

	resolveCmd = &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the current namespace once and print the state as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Resolve continuously and serve the state over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	withUser bool
)

func init() {
	config.SetupFlags(rootCmd)
	resolveCmd.Flags().BoolVar(&withUser, "with-user", false,
		"Also fetch the current user from the backend.")
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(version.NewVersionCmd())
}

func mountProvider(ctx context.Context) (*namespace.Provider, namespace.Config, error) {
	nsCfg := namespace.Config{
		DeploymentMode:     namespace.DeploymentMode(cfg.DeploymentMode),
		PlatformMode:       namespace.PlatformMode(cfg.PlatformMode),
		URLPrefix:          cfg.URLPrefix,
		APIVersion:         cfg.APIVersion,
		MandatoryNamespace: cfg.MandatoryNamespace,
	}
	opts := namespace.Options{
		Logger:    logger,
		ScriptURL: cfg.ScriptURL,
	}
	if cfg.StoreLastNamespace {
		opts.StoreLastNamespace = true
		opts.Store = namespace.NewFileStore(cfg.StorageDir)
		opts.StorageKey = cfg.StorageKey
	}
	provider, err := namespace.Mount(ctx, nsCfg, opts)
	return provider, nsCfg, err
}

func runResolve(ctx context.Context) error {
	provider, nsCfg, err := mountProvider(ctx)
	if err != nil {
		return err
	}
	defer provider.Close()

	// Wait for the fetch and the script gate to settle.
	watch := provider.Watch()
	deadline := time.After(30 * time.Second)
	for settled := false; !settled; {
		select {
		case st, ok := <-watch:
			if !ok {
				return fmt.Errorf("provider closed before resolution finished")
			}
			settled = st.NamespacesLoaded && st.HostScriptReady
		case <-deadline:
			return fmt.Errorf("timed out waiting for namespace resolution")
		}
	}

	st := provider.Snapshot()
	out := map[string]any{
		"namespaces":         st.Namespaces,
		"namespacesLoaded":   st.NamespacesLoaded,
		"preferredNamespace": st.PreferredNamespace,
		"hostScriptReady":    st.HostScriptReady,
	}
	if st.NamespacesLoadError != nil {
		out["namespacesLoadError"] = st.NamespacesLoadError.Error()
	}
	if st.InitializationError != nil {
		out["initializationError"] = st.InitializationError.Error()
	}
	if withUser && nsCfg.DeploymentMode == namespace.DeploymentStandalone {
		mgr := settings.NewManager(namespace.NewClient(nsCfg, nil, logger), logger)
		if user, err := mgr.User(ctx); err == nil {
			out["user"] = user
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runServe(ctx context.Context) error {
	provider, _, err := mountProvider(ctx)
	if err != nil {
		return err
	}
	defer provider.Close()

	srv := server.NewStatusServer(provider, server.Options{
		Port:  cfg.Port,
		Debug: cfg.LogLevel == "debug",
	}, logger)
	srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func main() {
	// Best effort, stdout may already be gone.
	defer func() { _ = logging.Sync() }()

	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command failed", zap.Error(err))
		os.Exit(1)
	}
}
