package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"stock-analytics-service/config"
)

// Client wraps the HashiCorp Vault client for market data credentials.
// When Vault is disabled the client serves the fallback key from
// configuration, so local development does not need a Vault server.
type Client struct {
	client      *api.Client
	config      config.VaultConfig
	fallbackKey string

	mu     sync.RWMutex
	cached string
}

// NewClient creates a new Vault client. fallbackKey is used when Vault
// is disabled or the secret is missing.
func NewClient(cfg config.VaultConfig, fallbackKey string) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg, fallbackKey: fallbackKey}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client:      client,
		config:      cfg,
		fallbackKey: fallbackKey,
	}, nil
}

// MarketDataAPIKey returns the provider API key. The key is read from
// the KV v2 secrets engine once and cached for the process lifetime.
func (c *Client) MarketDataAPIKey(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.cached != "" {
		defer c.mu.RUnlock()
		return c.cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		if c.fallbackKey == "" {
			return "", fmt.Errorf("vault is disabled and no fallback API key is configured")
		}
		return c.fallbackKey, nil
	}

	path := fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)

	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to read API key from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		if c.fallbackKey != "" {
			return c.fallbackKey, nil
		}
		return "", fmt.Errorf("API key not found at %s", path)
	}

	// KV v2 nests the payload under "data"
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid secret format at %s", path)
	}

	key, ok := data["api_key"].(string)
	if !ok || key == "" {
		return "", fmt.Errorf("secret at %s has no api_key field", path)
	}

	c.mu.Lock()
	c.cached = key
	c.mu.Unlock()

	return key, nil
}

// HealthCheck verifies connectivity to the Vault server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if !health.Initialized || health.Sealed {
		return fmt.Errorf("vault is not ready (initialized=%v, sealed=%v)", health.Initialized, health.Sealed)
	}
	return nil
}
