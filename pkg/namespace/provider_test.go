package namespace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeBridge is a host SDK double that hands out its handler table and
// lets tests fire selection events.
type fakeBridge struct {
	mu       sync.Mutex
	handlers *HostHandlers
}

func (b *fakeBridge) Init(cb func(h *HostHandlers)) error {
	h := &HostHandlers{}
	cb(h)
	b.mu.Lock()
	b.handlers = h
	b.mu.Unlock()
	return nil
}

func (b *fakeBridge) registered() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handlers != nil && b.handlers.OnNamespaceSelected != nil
}

func (b *fakeBridge) selectNamespace(name string) {
	b.mu.Lock()
	h := b.handlers
	b.mu.Unlock()
	h.OnNamespaceSelected(name)
}

type panickyBridge struct{}

func (panickyBridge) Init(cb func(h *HostHandlers)) error {
	panic("host SDK blew up")
}

type erroringBridge struct{}

func (erroringBridge) Init(cb func(h *HostHandlers)) error {
	return errors.New("init rejected")
}

var _ = Describe("Provider", func() {
	var (
		ctx     context.Context
		backend *httptest.Server
		hits    atomic.Int32
	)

	newStandaloneBackend := func(body string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		}))
	}

	standaloneCfg := func() Config {
		return Config{
			DeploymentMode: DeploymentStandalone,
			PlatformMode:   PlatformDefault,
			URLPrefix:      backend.URL,
			APIVersion:     "v1",
		}
	}

	loaded := func(p *Provider) func() bool {
		return func() bool {
			st := p.Snapshot()
			return st.NamespacesLoaded && st.HostScriptReady
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		hits.Store(0)
	})

	AfterEach(func() {
		if backend != nil {
			backend.Close()
			backend = nil
		}
	})

	Describe("standalone resolution", func() {
		BeforeEach(func() {
			backend = newStandaloneBackend(`{"data":[{"name":"b"},{"name":"a"},{"name":"c"}]}`)
		})

		It("exposes the sorted list and defaults to the first namespace", func() {
			p, err := Mount(ctx, standaloneCfg(), Options{HTTPClient: backend.Client()})
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Eventually(loaded(p)).Should(BeTrue())
			st := p.Snapshot()
			Expect(st.Namespaces).To(Equal([]Namespace{{Name: "a"}, {Name: "b"}, {Name: "c"}}))
			Expect(st.NamespacesLoadError).To(BeNil())
			Expect(st.PreferredNamespace).NotTo(BeNil())
			Expect(st.PreferredNamespace.Name).To(Equal("a"))
		})

		It("returns the same snapshot pointer until something changes", func() {
			p, err := Mount(ctx, standaloneCfg(), Options{HTTPClient: backend.Client()})
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Eventually(loaded(p)).Should(BeTrue())
			first := p.Snapshot()
			Expect(p.Snapshot()).To(BeIdenticalTo(first))

			p.UpdatePreferredNamespace(&Namespace{Name: "b"})
			second := p.Snapshot()
			Expect(second).NotTo(BeIdenticalTo(first))
			Expect(second.PreferredNamespace.Name).To(Equal("b"))
		})

		It("rejects selection of a namespace outside the list", func() {
			p, err := Mount(ctx, standaloneCfg(), Options{HTTPClient: backend.Client()})
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Eventually(loaded(p)).Should(BeTrue())
			p.UpdatePreferredNamespace(&Namespace{Name: "nope"})
			Expect(p.Snapshot().PreferredNamespace.Name).To(Equal("a"))
		})

		It("notifies watchers with the newest state", func() {
			p, err := Mount(ctx, standaloneCfg(), Options{HTTPClient: backend.Client()})
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			watch := p.Watch()
			Eventually(watch).Should(Receive(WithTransform(func(st *State) bool {
				return st != nil
			}, BeTrue())))
		})

		It("closes watcher channels on Close", func() {
			p, err := Mount(ctx, standaloneCfg(), Options{HTTPClient: backend.Client()})
			Expect(err).NotTo(HaveOccurred())

			watch := p.Watch()
			p.Close()
			Eventually(watch).Should(BeClosed())
		})

		It("tears down when the mount context is cancelled", func() {
			mountCtx, cancel := context.WithCancel(ctx)
			p, err := Mount(mountCtx, standaloneCfg(), Options{HTTPClient: backend.Client()})
			Expect(err).NotTo(HaveOccurred())

			watch := p.Watch()
			cancel()
			Eventually(watch).Should(BeClosed())
		})
	})

	Describe("fetch failures", func() {
		BeforeEach(func() {
			backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "backend down", http.StatusBadGateway)
			}))
		})

		It("finishes loading with the error surfaced", func() {
			p, err := Mount(ctx, standaloneCfg(), Options{HTTPClient: backend.Client()})
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Eventually(loaded(p)).Should(BeTrue())
			st := p.Snapshot()
			Expect(st.NamespacesLoaded).To(BeTrue())
			Expect(st.NamespacesLoadError).To(HaveOccurred())
			Expect(st.Namespaces).To(BeEmpty())
			Expect(st.PreferredNamespace).To(BeNil())
		})
	})

	Describe("mandatory namespace", func() {
		BeforeEach(func() {
			backend = newStandaloneBackend(`{"data":[{"name":"other"}]}`)
		})

		mandatoryCfg := func() Config {
			cfg := standaloneCfg()
			cfg.MandatoryNamespace = "pinned"
			return cfg
		}

		It("pins the list and the preference without fetching", func() {
			p, err := Mount(ctx, mandatoryCfg(), Options{HTTPClient: backend.Client()})
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Eventually(loaded(p)).Should(BeTrue())
			st := p.Snapshot()
			Expect(st.Namespaces).To(Equal([]Namespace{{Name: "pinned"}}))
			Expect(st.PreferredNamespace.Name).To(Equal("pinned"))
			Expect(hits.Load()).To(BeZero())
		})

		It("ignores selection attempts", func() {
			p, err := Mount(ctx, mandatoryCfg(), Options{HTTPClient: backend.Client()})
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Eventually(loaded(p)).Should(BeTrue())
			p.UpdatePreferredNamespace(&Namespace{Name: "other"})
			Expect(p.Snapshot().PreferredNamespace.Name).To(Equal("pinned"))

			p.UpdatePreferredNamespace(nil)
			Expect(p.Snapshot().PreferredNamespace.Name).To(Equal("pinned"))
		})
	})

	Describe("persistence", func() {
		var store *MemStore

		BeforeEach(func() {
			backend = newStandaloneBackend(`{"data":[{"name":"ns-1"},{"name":"ns-2"},{"name":"ns-3"}]}`)
			store = NewMemStore()
		})

		persistedOpts := func() Options {
			return Options{
				HTTPClient:         backend.Client(),
				StoreLastNamespace: true,
				Store:              store,
			}
		}

		It("restores a stored namespace without an explicit selection", func() {
			Expect(store.Set(DefaultStorageKey, "ns-2")).To(Succeed())

			p, err := Mount(ctx, standaloneCfg(), persistedOpts())
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Eventually(func() string {
				st := p.Snapshot()
				if st.PreferredNamespace == nil {
					return ""
				}
				return st.PreferredNamespace.Name
			}).Should(Equal("ns-2"))
		})

		It("falls back and overwrites storage when the stored namespace is gone", func() {
			Expect(store.Set(DefaultStorageKey, "deleted-ns")).To(Succeed())

			p, err := Mount(ctx, standaloneCfg(), persistedOpts())
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Eventually(loaded(p)).Should(BeTrue())
			Expect(p.Snapshot().PreferredNamespace.Name).To(Equal("ns-1"))
			Eventually(func() string {
				value, _ := store.Get(DefaultStorageKey)
				return value
			}).Should(Equal("ns-1"))
		})

		It("tracks explicit selections into storage", func() {
			p, err := Mount(ctx, standaloneCfg(), persistedOpts())
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Eventually(loaded(p)).Should(BeTrue())
			p.UpdatePreferredNamespace(&Namespace{Name: "ns-3"})

			value, err := store.Get(DefaultStorageKey)
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("ns-3"))
		})

		It("clearing the stored value leaves the live selection alone", func() {
			p, err := Mount(ctx, standaloneCfg(), persistedOpts())
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Eventually(loaded(p)).Should(BeTrue())
			p.UpdatePreferredNamespace(&Namespace{Name: "ns-2"})

			p.ClearStoredNamespace()
			value, err := store.Get(DefaultStorageKey)
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(BeEmpty())
			Expect(p.Snapshot().PreferredNamespace.Name).To(Equal("ns-2"))
		})

		It("updating to nil clears the selection and the stored value", func() {
			p, err := Mount(ctx, standaloneCfg(), persistedOpts())
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Eventually(loaded(p)).Should(BeTrue())
			p.UpdatePreferredNamespace(&Namespace{Name: "ns-2"})

			p.UpdatePreferredNamespace(nil)
			// The aggregate falls back to the default once the explicit
			// selection is gone.
			Expect(p.Snapshot().PreferredNamespace.Name).To(Equal("ns-1"))
			value, err := store.Get(DefaultStorageKey)
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(BeEmpty())
		})

		It("keeps the in-memory selection when the storage write fails", func() {
			opts := persistedOpts()
			opts.Store = &failingStore{NewMemStore()}

			p, err := Mount(ctx, standaloneCfg(), opts)
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Eventually(loaded(p)).Should(BeTrue())
			Expect(func() { p.UpdatePreferredNamespace(&Namespace{Name: "ns-3"}) }).NotTo(Panic())
			Expect(p.Snapshot().PreferredNamespace.Name).To(Equal("ns-3"))
		})

		It("refuses to mount when persistence is enabled without a store", func() {
			opts := persistedOpts()
			opts.Store = nil
			_, err := Mount(ctx, standaloneCfg(), opts)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("dashboard-embedded mode", func() {
		var scriptStatus atomic.Int32

		BeforeEach(func() {
			scriptStatus.Store(http.StatusOK)
			backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == DefaultScriptPath {
					w.WriteHeader(int(scriptStatus.Load()))
					return
				}
				hits.Add(1)
				http.NotFound(w, r)
			}))
		})

		kubeflowCfg := func() Config {
			return Config{
				DeploymentMode: DeploymentKubeflow,
				PlatformMode:   PlatformKubeflow,
				URLPrefix:      backend.URL,
				APIVersion:     "v1",
			}
		}

		It("grants readiness even when the script probe fails", func() {
			scriptStatus.Store(http.StatusNotFound)

			p, err := Mount(ctx, kubeflowCfg(), Options{HTTPClient: backend.Client()})
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Eventually(func() bool { return p.Snapshot().HostScriptReady }).Should(BeTrue())
		})

		It("applies host-originated selection events", func() {
			bridge := &fakeBridge{}
			p, err := Mount(ctx, kubeflowCfg(), Options{
				HTTPClient:    backend.Client(),
				HostBridge:    bridge,
				ScriptRuntime: &recordingRuntime{},
			})
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Eventually(bridge.registered).Should(BeTrue())
			bridge.selectNamespace("team-alpha")
			Expect(p.Snapshot().PreferredNamespace.Name).To(Equal("team-alpha"))
		})

		It("captures a panicking host SDK as an initialization error", func() {
			p, err := Mount(ctx, kubeflowCfg(), Options{
				HTTPClient:    backend.Client(),
				HostBridge:    panickyBridge{},
				ScriptRuntime: &recordingRuntime{},
			})
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Eventually(func() error { return p.Snapshot().InitializationError }).Should(HaveOccurred())
		})

		It("captures a rejecting host SDK as an initialization error", func() {
			p, err := Mount(ctx, kubeflowCfg(), Options{
				HTTPClient:    backend.Client(),
				HostBridge:    erroringBridge{},
				ScriptRuntime: &recordingRuntime{},
			})
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Eventually(func() error { return p.Snapshot().InitializationError }).Should(HaveOccurred())
		})

		It("does not construct the bridge under a mandatory namespace", func() {
			bridge := &fakeBridge{}
			cfg := kubeflowCfg()
			cfg.MandatoryNamespace = "pinned"

			p, err := Mount(ctx, cfg, Options{
				HTTPClient:    backend.Client(),
				HostBridge:    bridge,
				ScriptRuntime: &recordingRuntime{},
			})
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Eventually(func() bool { return p.Snapshot().HostScriptReady }).Should(BeTrue())
			Consistently(bridge.registered).Should(BeFalse())
			Expect(p.Snapshot().PreferredNamespace.Name).To(Equal("pinned"))
		})
	})
})
