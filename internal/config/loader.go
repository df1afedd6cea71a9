// Package config loads and persists the JSON configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"sophia/internal/domain"
)

// EnvAPIKey overrides the file's fleet API key when set.
const EnvAPIKey = "MERAKI_KEY"

// marshalIndent and writeFile are used by WriteDefault and Save; tests may replace to force errors.
var (
	marshalIndent = json.MarshalIndent
	writeFile     = os.WriteFile
)

// WriteDefault writes a default Config to path (e.g. sophia.json). Paths are not created.
func WriteDefault(path string) error {
	cfg := &domain.Config{
		Fleet: domain.FleetConfig{
			BaseURL:          "https://api.meraki.com/api/v1",
			DefaultNetworkID: "L_3698581193978021054",
			TimeoutSeconds:   30,
		},
		Snapshot: domain.SnapshotConfig{
			ImageDir:        "images",
			SettleDelayMS:   10000,
			PollIntervalMS:  2000,
			MaxIntervalMS:   15000,
			DeadlineSeconds: 90,
		},
		Gateway: domain.GatewayConfig{Port: 8080},
		Retry: domain.RetryConfig{
			MaxRetries:     3,
			InitialBackoff: 500,
			MaxBackoff:     30000,
			Multiplier:     2,
		},
		Conversation: domain.ConversationConfig{HistoryPath: ""},
		Infra:        domain.InfraConfig{LogFormat: "text", LogLevel: "info"},
	}
	data, err := marshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, data, 0644)
}

// Load reads path (e.g. sophia.json), unmarshals into domain.Config, cleans
// all path fields to mitigate path traversal, and applies the MERAKI_KEY
// environment override. Returns error if file is missing or invalid JSON.
func Load(path string) (*domain.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	var c domain.Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	CleanPaths(&c)
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.Fleet.APIKey = key
	}
	return &c, nil
}

// CleanPaths applies filepath.Clean to all path fields in cfg to prevent path traversal.
func CleanPaths(cfg *domain.Config) {
	if cfg == nil {
		return
	}
	if cfg.Snapshot.ImageDir != "" {
		cfg.Snapshot.ImageDir = filepath.Clean(cfg.Snapshot.ImageDir)
	}
	if cfg.Conversation.HistoryPath != "" {
		cfg.Conversation.HistoryPath = filepath.Clean(cfg.Conversation.HistoryPath)
	}
}

// Save writes cfg to path as JSON. An API key injected from the environment
// is never written back to disk.
func Save(path string, cfg *domain.Config) error {
	if cfg == nil {
		return fmt.Errorf("config save: nil config")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config save mkdir: %w", err)
	}
	out := *cfg
	if key := os.Getenv(EnvAPIKey); key != "" && out.Fleet.APIKey == key {
		out.Fleet.APIKey = ""
	}
	data, err := marshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("config save marshal: %w", err)
	}
	if err := writeFile(path, data, 0644); err != nil {
		return fmt.Errorf("config save write: %w", err)
	}
	return nil
}
