package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"sophia/internal/domain"
)

func TestLoad_WhenFileDoesNotExist_ShouldReturnError(t *testing.T) {
	_, err := Load("/nonexistent/sophia.json")
	if err == nil {
		t.Fatal("expected error when config file does not exist")
	}
}

func TestLoad_WhenFileIsInvalidJSON_ShouldReturnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sophia.json")
	if err := os.WriteFile(path, []byte(`{ invalid }`), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error when config is invalid JSON")
	}
}

func TestLoad_WhenFileIsValid_ShouldReturnConfigWithCleanedPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sophia.json")
	cfg := `{
		"fleet": { "baseUrl": "https://api.meraki.com/api/v1", "defaultNetworkId": "L_1", "timeoutSeconds": 30 },
		"snapshot": { "imageDir": "images/../images", "settleDelayMs": 10000 },
		"conversation": { "historyPath": "history/./session.jsonl" },
		"gateway": { "port": 8080 },
		"infra": { "logFormat": "json", "logLevel": "info" }
	}`
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected non-nil config")
	}
	// Paths must be cleaned (no .. or .)
	if got.Snapshot.ImageDir != "images" {
		t.Errorf("expected cleaned image dir 'images', got %q", got.Snapshot.ImageDir)
	}
	if got.Conversation.HistoryPath != filepath.Join("history", "session.jsonl") {
		t.Errorf("expected cleaned history path, got %q", got.Conversation.HistoryPath)
	}
}

func TestLoad_WhenFileIsValid_ShouldPopulateAllSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sophia.json")
	cfg := `{
		"fleet": {
			"baseUrl": "https://api.example.net/api/v1",
			"apiKey": "file-key",
			"defaultNetworkId": "L_3698581193978021054",
			"timeoutSeconds": 45
		},
		"snapshot": {
			"imageDir": "images",
			"settleDelayMs": 10000,
			"pollIntervalMs": 2000,
			"maxIntervalMs": 15000,
			"deadlineSeconds": 90
		},
		"gateway": { "port": 3000, "authToken": "secret-gateway-token" },
		"retry": { "maxRetries": 3, "initialBackoff": 500, "maxBackoff": 30000, "multiplier": 2 },
		"conversation": { "historyPath": "session.jsonl" },
		"infra": { "logFormat": "text", "logLevel": "debug" }
	}`
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Fleet.BaseURL != "https://api.example.net/api/v1" {
		t.Errorf("fleet.baseUrl: got %q", got.Fleet.BaseURL)
	}
	if got.Fleet.DefaultNetworkID != "L_3698581193978021054" {
		t.Errorf("fleet.defaultNetworkId: got %q", got.Fleet.DefaultNetworkID)
	}
	if got.Fleet.TimeoutSeconds != 45 {
		t.Errorf("fleet.timeoutSeconds: want 45, got %d", got.Fleet.TimeoutSeconds)
	}
	if got.Snapshot.SettleDelayMS != 10000 || got.Snapshot.DeadlineSeconds != 90 {
		t.Errorf("snapshot: settle=%d deadline=%d", got.Snapshot.SettleDelayMS, got.Snapshot.DeadlineSeconds)
	}
	if got.Gateway.Port != 3000 {
		t.Errorf("gateway.port: want 3000, got %d", got.Gateway.Port)
	}
	if got.Gateway.AuthToken != "secret-gateway-token" {
		t.Errorf("gateway.authToken: got %q", got.Gateway.AuthToken)
	}
	if got.Retry.MaxRetries != 3 || got.Retry.Multiplier != 2 {
		t.Errorf("retry: maxRetries=%d multiplier=%d", got.Retry.MaxRetries, got.Retry.Multiplier)
	}
	if got.Infra.LogLevel != "debug" {
		t.Errorf("infra.logLevel: want debug, got %q", got.Infra.LogLevel)
	}
}

func TestLoad_WhenEnvKeySet_ShouldOverrideFileKey(t *testing.T) {
	t.Setenv(EnvAPIKey, "env-key")
	dir := t.TempDir()
	path := filepath.Join(dir, "sophia.json")
	cfg := `{ "fleet": { "apiKey": "file-key" } }`
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Fleet.APIKey != "env-key" {
		t.Errorf("expected environment key to win, got %q", got.Fleet.APIKey)
	}
}

func TestLoad_WhenEnvKeyUnset_ShouldKeepFileKey(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "sophia.json")
	cfg := `{ "fleet": { "apiKey": "file-key" } }`
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Fleet.APIKey != "file-key" {
		t.Errorf("expected file key to survive, got %q", got.Fleet.APIKey)
	}
}

func TestCleanPaths_WhenConfigIsNil_ShouldNotPanic(t *testing.T) {
	CleanPaths(nil)
}

func TestCleanPaths_WhenGivenPathWithTraversal_ShouldReturnCleanedPath(t *testing.T) {
	c := &domain.Config{
		Snapshot:     domain.SnapshotConfig{ImageDir: filepath.Join("foo", "..", "bar")},
		Conversation: domain.ConversationConfig{HistoryPath: filepath.Join("hist", ".", "day.jsonl")},
	}
	CleanPaths(c)
	if c.Snapshot.ImageDir != "bar" {
		t.Errorf("imageDir: expected cleaned 'bar', got %q", c.Snapshot.ImageDir)
	}
	if c.Conversation.HistoryPath != filepath.Join("hist", "day.jsonl") {
		t.Errorf("historyPath: expected cleaned path, got %q", c.Conversation.HistoryPath)
	}
}

func TestCleanPaths_WhenHistoryPathEmpty_ShouldStayEmpty(t *testing.T) {
	c := &domain.Config{}
	CleanPaths(c)
	if c.Conversation.HistoryPath != "" {
		t.Errorf("empty history path must stay empty, got %q", c.Conversation.HistoryPath)
	}
}

func TestWriteDefault_ShouldCreateValidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sophia.json")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load after WriteDefault: %v", err)
	}
	if cfg.Gateway.Port != 8080 {
		t.Errorf("unexpected default port: %d", cfg.Gateway.Port)
	}
	if cfg.Fleet.BaseURL != "https://api.meraki.com/api/v1" {
		t.Errorf("unexpected default base URL: %q", cfg.Fleet.BaseURL)
	}
	if cfg.Snapshot.SettleDelayMS != 10000 || cfg.Snapshot.ImageDir != "images" {
		t.Errorf("unexpected snapshot defaults: settle=%d dir=%q", cfg.Snapshot.SettleDelayMS, cfg.Snapshot.ImageDir)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("unexpected retry default: %d", cfg.Retry.MaxRetries)
	}
}

func TestWriteDefault_WhenParentDirMissing_ShouldReturnWriteError(t *testing.T) {
	dir := t.TempDir()
	// WriteDefault does not create parent dirs
	path := filepath.Join(dir, "nonexistent", "sophia.json")
	err := WriteDefault(path)
	if err == nil {
		t.Fatal("WriteDefault to path with missing parent: expected error")
	}
}

func TestWriteDefault_WhenMarshalFails_ShouldReturnError(t *testing.T) {
	prev := marshalIndent
	defer func() { marshalIndent = prev }()
	marshalIndent = func(interface{}, string, string) ([]byte, error) {
		return nil, fmt.Errorf("injected marshal error")
	}
	path := filepath.Join(t.TempDir(), "sophia.json")
	err := WriteDefault(path)
	if err == nil {
		t.Fatal("WriteDefault when marshal fails: expected error")
	}
}

func TestSave_WhenConfigNil_ShouldReturnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sophia.json")
	err := Save(path, nil)
	if err == nil {
		t.Fatal("Save(nil) should return error")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("nil")) {
		t.Errorf("error should mention nil: %v", err)
	}
}

func TestSave_WhenConfigValid_ShouldPersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sophia.json")
	cfg := &domain.Config{
		Fleet:   domain.FleetConfig{BaseURL: "https://api.meraki.com/api/v1", DefaultNetworkID: "L_9", TimeoutSeconds: 20},
		Gateway: domain.GatewayConfig{Port: 9000, AuthToken: "tok"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}
	if loaded.Gateway.Port != 9000 || loaded.Gateway.AuthToken != "tok" {
		t.Errorf("loaded gateway: port=%d token=%s", loaded.Gateway.Port, loaded.Gateway.AuthToken)
	}
	if loaded.Fleet.DefaultNetworkID != "L_9" {
		t.Errorf("loaded fleet: defaultNetworkId=%s", loaded.Fleet.DefaultNetworkID)
	}
}

func TestSave_WhenKeyCameFromEnv_ShouldNotPersistIt(t *testing.T) {
	t.Setenv(EnvAPIKey, "env-key")
	path := filepath.Join(t.TempDir(), "sophia.json")
	cfg := &domain.Config{Fleet: domain.FleetConfig{APIKey: "env-key"}}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(data, []byte("env-key")) {
		t.Error("environment-sourced API key must not be written to disk")
	}
}

func TestSave_WhenParentDirIsFile_ShouldReturnMkdirError(t *testing.T) {
	dir := t.TempDir()
	fileAsParent := filepath.Join(dir, "file")
	if err := os.WriteFile(fileAsParent, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(fileAsParent, "sophia.json")
	cfg := &domain.Config{Gateway: domain.GatewayConfig{Port: 8080}}
	err := Save(path, cfg)
	if err == nil {
		t.Fatal("Save when parent is file: expected error")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("mkdir")) {
		t.Errorf("error should mention mkdir: %v", err)
	}
}

func TestSave_WhenMarshalFails_ShouldReturnError(t *testing.T) {
	prev := marshalIndent
	defer func() { marshalIndent = prev }()
	marshalIndent = func(interface{}, string, string) ([]byte, error) {
		return nil, fmt.Errorf("injected marshal error")
	}
	path := filepath.Join(t.TempDir(), "sophia.json")
	cfg := &domain.Config{Gateway: domain.GatewayConfig{Port: 8080}}
	err := Save(path, cfg)
	if err == nil {
		t.Fatal("Save when marshal fails: expected error")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("marshal")) {
		t.Errorf("error should mention marshal: %v", err)
	}
}

func TestSave_WhenWriteFileFails_ShouldReturnError(t *testing.T) {
	prev := writeFile
	defer func() { writeFile = prev }()
	writeFile = func(string, []byte, os.FileMode) error {
		return fmt.Errorf("injected write error")
	}
	path := filepath.Join(t.TempDir(), "sophia.json")
	cfg := &domain.Config{Gateway: domain.GatewayConfig{Port: 8080}}
	err := Save(path, cfg)
	if err == nil {
		t.Fatal("Save when write fails: expected error")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("write")) {
		t.Errorf("error should mention write: %v", err)
	}
}
