// Package secrets fills process environment variables from a HashiCorp Vault
// KV secret before configuration is read.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/mindcare-directory/pkg/retry"
)

// VaultConfig locates one KV secret whose keys are environment variable names
type VaultConfig struct {
	Enabled   bool
	Addr      string
	Token     string
	Namespace string
	Mount     string
	Path      string
	KVVersion int
	Timeout   time.Duration
	// Overwrite replaces variables that are already set
	Overwrite bool
}

// Result reports what Apply did
type Result struct {
	Loaded  int
	Skipped int
}

// ConfigFromEnv reads the VAULT_* variables
func ConfigFromEnv() VaultConfig {
	cfg := VaultConfig{
		Enabled:   strings.EqualFold(os.Getenv("VAULT_ENABLED"), "true"),
		Addr:      os.Getenv("VAULT_ADDR"),
		Token:     os.Getenv("VAULT_TOKEN"),
		Namespace: os.Getenv("VAULT_NAMESPACE"),
		Mount:     "secret",
		Path:      os.Getenv("VAULT_PATH"),
		KVVersion: 2,
		Timeout:   5 * time.Second,
		Overwrite: strings.EqualFold(os.Getenv("VAULT_OVERWRITE"), "true"),
	}
	if v := os.Getenv("VAULT_MOUNT"); v != "" {
		cfg.Mount = v
	}
	if v, err := strconv.Atoi(os.Getenv("VAULT_KV_VERSION")); err == nil {
		cfg.KVVersion = v
	}
	if v, err := time.ParseDuration(os.Getenv("VAULT_TIMEOUT")); err == nil && v > 0 {
		cfg.Timeout = v
	}
	return cfg
}

// Apply fetches the secret and exports each key as an environment variable.
// It does nothing when cfg is not enabled.
func Apply(ctx context.Context, cfg VaultConfig) (Result, error) {
	if !cfg.Enabled {
		return Result{}, nil
	}
	if cfg.Addr == "" || cfg.Token == "" || cfg.Path == "" {
		return Result{}, errors.New("vault configuration incomplete: VAULT_ADDR, VAULT_TOKEN and VAULT_PATH are required")
	}

	url := secretURL(cfg)
	client := &http.Client{Timeout: cfg.Timeout}

	var data map[string]interface{}
	retryCfg := retry.Config{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2}
	err := retry.Do(ctx, retryCfg, func(ctx context.Context) error {
		var err error
		data, err = fetch(ctx, client, cfg, url)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("vault %s: %w", cfg.Path, err)
	}

	var res Result
	for key, value := range data {
		if !cfg.Overwrite && os.Getenv(key) != "" {
			res.Skipped++
			continue
		}
		if err := os.Setenv(key, stringify(value)); err != nil {
			return res, fmt.Errorf("failed to set %s: %w", key, err)
		}
		res.Loaded++
	}
	return res, nil
}

func secretURL(cfg VaultConfig) string {
	addr := strings.TrimRight(cfg.Addr, "/")
	mount := strings.Trim(cfg.Mount, "/")
	path := strings.TrimLeft(cfg.Path, "/")
	if cfg.KVVersion == 1 {
		return fmt.Sprintf("%s/v1/%s/%s", addr, mount, path)
	}
	return fmt.Sprintf("%s/v1/%s/data/%s", addr, mount, path)
}

func fetch(ctx context.Context, client *http.Client, cfg VaultConfig, url string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("X-Vault-Token", cfg.Token)
	if cfg.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", cfg.Namespace)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("vault returned %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, retry.Permanent(fmt.Errorf("vault returned %s: %s", resp.Status, strings.TrimSpace(string(body))))
	}

	var payload struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, retry.Permanent(fmt.Errorf("invalid vault response: %w", err))
	}
	data := payload.Data
	if cfg.KVVersion != 1 {
		// KV v2 nests the secret under data.data
		inner, ok := data["data"].(map[string]interface{})
		if !ok {
			return nil, retry.Permanent(errors.New("vault response missing data for KV v2"))
		}
		data = inner
	}
	if data == nil {
		return nil, retry.Permanent(errors.New("vault response missing data"))
	}
	return data, nil
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}
