package namespace

import (
	"fmt"
	"sort"
)

// DeploymentMode describes the hosting arrangement the embedding module
// runs under.
type DeploymentMode string

const (
	// DeploymentStandalone runs against the module's own backend.
	DeploymentStandalone DeploymentMode = "standalone"
	// DeploymentFederated runs as a federated module inside a larger host
	// application that owns namespace selection.
	DeploymentFederated DeploymentMode = "federated"
	// DeploymentKubeflow runs embedded inside a Kubeflow dashboard that
	// owns namespace selection through its integration script.
	DeploymentKubeflow DeploymentMode = "kubeflow"
)

// ParseDeploymentMode converts a string into a DeploymentMode.
func ParseDeploymentMode(s string) (DeploymentMode, error) {
	switch DeploymentMode(s) {
	case DeploymentStandalone, DeploymentFederated, DeploymentKubeflow:
		return DeploymentMode(s), nil
	}
	return "", fmt.Errorf("unknown deployment mode %q", s)
}

// PlatformMode describes the platform the module is deployed onto.
type PlatformMode string

const (
	PlatformDefault  PlatformMode = "default"
	PlatformKubeflow PlatformMode = "kubeflow"
)

// ParsePlatformMode converts a string into a PlatformMode.
func ParsePlatformMode(s string) (PlatformMode, error) {
	switch PlatformMode(s) {
	case PlatformDefault, PlatformKubeflow:
		return PlatformMode(s), nil
	}
	return "", fmt.Errorf("unknown platform mode %q", s)
}

// Namespace is the tenant/scope identifier a multi-tenant module operates
// within. Name is the stable identifier; DisplayName is optional and only
// used for presentation.
type Namespace struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
}

// User is the identity returned by the backend's user endpoint. It is
// consumed by the settings subsystem, not by namespace resolution.
type User struct {
	UserID       string `json:"userId"`
	ClusterAdmin bool   `json:"clusterAdmin,omitempty"`
}

// Config is supplied once at mount by the embedding application and is
// read-only for the lifetime of the provider.
type Config struct {
	DeploymentMode DeploymentMode
	PlatformMode   PlatformMode
	URLPrefix      string
	APIVersion     string
	// MandatoryNamespace pins the module to a single namespace and
	// disables both backend listing and host-driven selection.
	MandatoryNamespace string
}

// Validate checks the mode fields and the backend coordinates required by
// the configured mode.
func (c Config) Validate() error {
	if _, err := ParseDeploymentMode(string(c.DeploymentMode)); err != nil {
		return err
	}
	if _, err := ParsePlatformMode(string(c.PlatformMode)); err != nil {
		return err
	}
	if c.DeploymentMode == DeploymentStandalone && c.MandatoryNamespace == "" {
		if c.URLPrefix == "" {
			return fmt.Errorf("url prefix is required in standalone mode")
		}
		if c.APIVersion == "" {
			return fmt.Errorf("api version is required in standalone mode")
		}
	}
	return nil
}

// RequiresHostScript reports whether this configuration depends on the
// dashboard integration script being loaded before consumers may render.
func (c Config) RequiresHostScript() bool {
	return c.DeploymentMode == DeploymentKubeflow && c.PlatformMode == PlatformKubeflow
}

// State is the aggregate read model exposed to consumers. Instances are
// immutable snapshots; a new one is produced only when an underlying field
// changes, so consumers may rely on pointer equality to skip work.
type State struct {
	// Namespaces is sorted ascending by name, case-sensitive.
	Namespaces          []Namespace
	NamespacesLoaded    bool
	NamespacesLoadError error
	PreferredNamespace  *Namespace
	InitializationError error
	HostScriptReady     bool
}

// sortedNamespaces returns a sorted copy of the given namespaces. The
// input slice is never modified.
func sortedNamespaces(in []Namespace) []Namespace {
	out := make([]Namespace, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func namespacesEqual(a, b []Namespace) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
