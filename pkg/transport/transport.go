// Package transport implements the HTTP collaborator the orchestrator
// fetches configuration documents and module bundles through. All
// endpoints are plain GETs of JSON-shaped documents or bundle bytes.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openmosaic/openmosaic/pkg/config"
	"github.com/openmosaic/openmosaic/pkg/orchestrator"
)

// treeDocument is the well-known name of the root configuration tree.
const treeDocument = "micro-front-ends.json"

// maxBundleBytes caps a single bundle download (32 MiB).
const maxBundleBytes = 32 << 20

// Client fetches configuration documents and bundles over HTTP. It
// implements orchestrator.Transport.
type Client struct {
	baseURL  string
	http     *http.Client
	decoder  *config.Decoder
	maxBytes int64
	log      zerolog.Logger
}

// Options configures a Client.
type Options struct {
	// BaseURL is the configuration base URL. Required.
	BaseURL string

	// Timeout bounds every request. Defaults to 30s.
	Timeout time.Duration

	// HTTPClient overrides the underlying client. Optional.
	HTTPClient *http.Client

	// MaxResponseBytes caps a single response body. Bodies over the
	// cap are rejected, not truncated. Defaults to 32 MiB.
	MaxResponseBytes int64

	// Logger is the base logger.
	Logger zerolog.Logger
}

// New creates a transport client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = maxBundleBytes
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     httpClient,
		decoder:  config.NewDecoder(),
		maxBytes: opts.MaxResponseBytes,
		log:      opts.Logger.With().Str("component", "transport").Logger(),
	}, nil
}

// FetchContainerTree retrieves and decodes the root configuration tree.
func (c *Client) FetchContainerTree(ctx context.Context) ([]*orchestrator.ContainerConfig, error) {
	raw, err := c.get(ctx, treeDocument)
	if err != nil {
		return nil, err
	}
	return c.decoder.DecodeContainerTree(raw)
}

// FetchModuleConfig retrieves and decodes one module's detail
// configuration, versioned by cache-busting query parameter.
func (c *Client) FetchModuleConfig(ctx context.Context, cc *orchestrator.ContainerConfig) (*orchestrator.MicroFrontEndConfig, error) {
	raw, err := c.get(ctx, cc.ConfigPath())
	if err != nil {
		return nil, err
	}
	return c.decoder.DecodeModuleConfig(raw)
}

// FetchBundle retrieves one module's bundle bytes.
func (c *Client) FetchBundle(ctx context.Context, cc *orchestrator.ContainerConfig) ([]byte, error) {
	return c.get(ctx, cc.BundlePath())
}

// get performs one GET against the base URL and returns the body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + "/" + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json, application/wasm, application/octet-stream")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	// Read one byte past the cap so an oversized body is detected
	// instead of silently truncated.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("response from %s exceeds %d byte limit", url, c.maxBytes)
	}

	c.log.Debug().
		Str("url", url).
		Int("bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("fetched")
	return body, nil
}
