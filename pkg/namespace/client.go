package namespace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/kubefront/namespace-context/pkg/errors"
)

// Client talks to the module's backend-for-frontend. It only knows the two
// endpoints the subsystem consumes: the namespace list and the user info.
type Client struct {
	httpClient *http.Client
	urlPrefix  string
	apiVersion string
	log        *zap.Logger
}

// NewClient creates a backend client for the given configuration.
func NewClient(cfg Config, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		httpClient: httpClient,
		urlPrefix:  strings.TrimSuffix(cfg.URLPrefix, "/"),
		apiVersion: cfg.APIVersion,
		log:        log.Named("backend-client"),
	}
}

func (c *Client) endpoint(resource string) string {
	return fmt.Sprintf("%s/api/%s/%s", c.urlPrefix, c.apiVersion, resource)
}

// ListNamespaces fetches the available namespaces from the backend. The
// result is not sorted; callers decide the exposed ordering.
func (c *Client) ListNamespaces(ctx context.Context) ([]Namespace, error) {
	var resp struct {
		Data []Namespace `json:"data"`
	}
	if err := c.getJSON(ctx, c.endpoint("namespaces"), &resp); err != nil {
		return nil, apperrors.NewFetchError("listing namespaces", err)
	}
	return resp.Data, nil
}

// GetUser fetches the current user's identity from the backend.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	var resp struct {
		Data User `json:"data"`
	}
	if err := c.getJSON(ctx, c.endpoint("user"), &resp); err != nil {
		return nil, apperrors.NewFetchError("fetching user info", err)
	}
	return &resp.Data, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := res.Body.Close(); cerr != nil {
			c.log.Debug("Failed to close response body", zap.Error(cerr))
		}
	}()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("unexpected status %d from %s: %s", res.StatusCode, url, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}
