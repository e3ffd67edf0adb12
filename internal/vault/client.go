// Package vault fetches the platform signing secrets from HashiCorp Vault.
// With Vault disabled the config/env values are used as-is, so local runs
// need no Vault at all.
package vault

import (
	"context"
	"fmt"
	"sync"

	"studyhall-platform/config"

	"github.com/hashicorp/vault/api"
)

// SigningSecrets are the secrets the platform signs things with. Each one
// scopes a distinct trust boundary.
type SigningSecrets struct {
	JWTSecret        string `json:"jwt_secret"`
	CheckpointSecret string `json:"checkpoint_secret"`
	ProviderSecret   string `json:"provider_secret"`
	InternalSecret   string `json:"internal_secret"`
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config config.VaultConfig

	mu     sync.RWMutex
	cached *SigningSecrets
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
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
		client: client,
		config: cfg,
	}, nil
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// LoadSigningSecrets reads the signing secrets from Vault and overlays them
// on the fallback values. A secret missing in Vault keeps its fallback, so a
// partially populated Vault still boots.
func (c *Client) LoadSigningSecrets(ctx context.Context, fallback SigningSecrets) (SigningSecrets, error) {
	if !c.config.Enabled {
		return fallback, nil
	}

	c.mu.RLock()
	if c.cached != nil {
		cached := *c.cached
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	path := fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)

	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return fallback, fmt.Errorf("failed to read signing secrets from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return fallback, fmt.Errorf("signing secrets not found at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return fallback, fmt.Errorf("invalid secret format at %s", path)
	}

	result := fallback
	if v := getString(data, "jwt_secret"); v != "" {
		result.JWTSecret = v
	}
	if v := getString(data, "checkpoint_secret"); v != "" {
		result.CheckpointSecret = v
	}
	if v := getString(data, "provider_secret"); v != "" {
		result.ProviderSecret = v
	}
	if v := getString(data, "internal_secret"); v != "" {
		result.InternalSecret = v
	}

	c.mu.Lock()
	c.cached = &result
	c.mu.Unlock()

	return result, nil
}

// StoreSigningSecrets writes the signing secrets to Vault. Used by the
// operational tooling, never by the serving path.
func (c *Client) StoreSigningSecrets(ctx context.Context, secrets SigningSecrets) error {
	if !c.config.Enabled {
		return fmt.Errorf("vault is disabled")
	}

	path := fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"jwt_secret":        secrets.JWTSecret,
			"checkpoint_secret": secrets.CheckpointSecret,
			"provider_secret":   secrets.ProviderSecret,
			"internal_secret":   secrets.InternalSecret,
		},
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, path, secretData); err != nil {
		return fmt.Errorf("failed to store signing secrets in vault: %w", err)
	}

	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()

	return nil
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().Health()
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
